// Package bridge serves remote commands against a tsi.Target.
package bridge

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/bebe.go/pkg/framework"
	"github.com/robotalks/bebe.go/pkg/host/tsi"
	"github.com/robotalks/bebe.go/pkg/remote"
	"github.com/robotalks/bebe.go/pkg/remote/msgs"
)

// Target states reported by msgs.TargetState.
const (
	StateNocked   = "nocked"
	StateReset    = "reset"
	StateReleased = "released"
)

// MaxReadSize bounds a single MemRead.
const MaxReadSize = msgs.MaxChunkSize

// ErrBadWordWrite indicates a word write without 4 bytes of data.
var ErrBadWordWrite = errors.New("word write needs 4 bytes")

// Nocker (re)establishes the session with the boot agent.
type Nocker interface {
	Nock(ctx context.Context) error
}

// Handler implements remote.CommandHandler. Commands are executed one at
// a time.
type Handler struct {
	Target tsi.Target
	// Nocker is optional, without it Nock is unsupported.
	Nocker Nocker
	// Events is optional and receives msgs.TargetState.
	Events remote.Registrar

	lock sync.Mutex
}

// NewHandler creates a Handler.
func NewHandler(target tsi.Target) *Handler {
	return &Handler{Target: target}
}

// HandleCommand implements remote.CommandHandler.
func (h *Handler) HandleCommand(ctx context.Context, msg fx.Message) (fx.Message, error) {
	h.lock.Lock()
	defer h.lock.Unlock()
	switch m := msg.(type) {
	case *msgs.MemRead:
		return h.read(ctx, m)
	case *msgs.MemWrite:
		return nil, h.write(ctx, m)
	case *msgs.Jump:
		glog.V(2).Infof("jump %#x", m.Addr)
		if err := h.Target.Jump(ctx, m.Addr); err != nil {
			return nil, err
		}
		h.notify(ctx, StateReleased, m.Addr)
	case *msgs.Reset:
		glog.V(2).Info("reset")
		if err := h.Target.Reset(ctx); err != nil {
			return nil, err
		}
		h.notify(ctx, StateReset, 0)
	case *msgs.Nock:
		if h.Nocker == nil {
			return nil, msgs.ErrUnsupportedCommand
		}
		if err := h.Nocker.Nock(ctx); err != nil {
			return nil, err
		}
		h.notify(ctx, StateNocked, 0)
	default:
		return nil, msgs.ErrUnsupportedCommand
	}
	return nil, nil
}

func (h *Handler) read(ctx context.Context, m *msgs.MemRead) (fx.Message, error) {
	if m.Word {
		val, err := h.Target.ReadWord(ctx, m.Addr)
		if err != nil {
			return nil, err
		}
		data := make([]byte, 4)
		binary.LittleEndian.PutUint32(data, val)
		return msgs.NewMemData(m.Addr, data), nil
	}
	if m.Size > MaxReadSize {
		return nil, fmt.Errorf("read size %d exceeds %d", m.Size, MaxReadSize)
	}
	data := make([]byte, m.Size)
	if err := h.Target.ReadChunk(ctx, m.Addr, data); err != nil {
		return nil, err
	}
	return msgs.NewMemData(m.Addr, data), nil
}

func (h *Handler) write(ctx context.Context, m *msgs.MemWrite) error {
	if !m.Word {
		return h.Target.WriteChunk(ctx, m.Addr, m.Data)
	}
	val, ok := m.WordValue()
	if !ok {
		return ErrBadWordWrite
	}
	return h.Target.WriteWord(ctx, m.Addr, val)
}

func (h *Handler) notify(ctx context.Context, state string, addr uint64) {
	if h.Events == nil {
		return
	}
	if err := h.Events.SendEvent(ctx, msgs.NewTargetState(state, addr)); err != nil {
		glog.Warningf("send %s event: %v", state, err)
	}
}
