package comm

import (
	"context"
	"encoding/binary"
	"fmt"

	fx "github.com/robotalks/bebe.go/pkg/framework"
	"github.com/robotalks/bebe.go/pkg/remote"
	"github.com/robotalks/bebe.go/pkg/remote/msgs"
)

// TargetConn is a tsi.Target reached through a bridge.
type TargetConn struct {
	Conn remote.Conn
}

// NewTargetConn creates a TargetConn.
func NewTargetConn(conn remote.Conn) *TargetConn {
	return &TargetConn{Conn: conn}
}

func (t *TargetConn) do(ctx context.Context, msg fx.Message) (fx.Message, error) {
	return remote.Wait(ctx, t.Conn.DoCommand(msg))
}

func (t *TargetConn) ok(ctx context.Context, msg fx.Message) error {
	reply, err := t.do(ctx, msg)
	if err != nil {
		return err
	}
	if _, ok := reply.(*msgs.CommandOK); !ok {
		return fmt.Errorf("%T: unexpected reply %T", msg, reply)
	}
	return nil
}

func (t *TargetConn) read(ctx context.Context, msg *msgs.MemRead) ([]byte, error) {
	reply, err := t.do(ctx, msg)
	if err != nil {
		return nil, err
	}
	data, ok := reply.(*msgs.MemData)
	if !ok {
		return nil, fmt.Errorf("read %#x: unexpected reply %T", msg.Addr, reply)
	}
	if uint32(len(data.Data)) != msg.Size {
		return nil, fmt.Errorf("read %#x: got %d bytes, want %d", msg.Addr, len(data.Data), msg.Size)
	}
	return data.Data, nil
}

// ReadChunk implements tsi.Target. It is split into MemReads of at most
// msgs.MaxChunkSize bytes.
func (t *TargetConn) ReadChunk(ctx context.Context, addr uint64, buf []byte) error {
	for len(buf) > 0 {
		n := len(buf)
		if n > msgs.MaxChunkSize {
			n = msgs.MaxChunkSize
		}
		data, err := t.read(ctx, msgs.NewMemRead(addr, uint32(n)))
		if err != nil {
			return err
		}
		copy(buf, data)
		buf, addr = buf[n:], addr+uint64(n)
	}
	return nil
}

// WriteChunk implements tsi.Target. It is split like ReadChunk.
func (t *TargetConn) WriteChunk(ctx context.Context, addr uint64, data []byte) error {
	for len(data) > 0 {
		n := len(data)
		if n > msgs.MaxChunkSize {
			n = msgs.MaxChunkSize
		}
		if err := t.ok(ctx, msgs.NewMemWrite(addr, data[:n])); err != nil {
			return err
		}
		data, addr = data[n:], addr+uint64(n)
	}
	return nil
}

// ReadWord implements tsi.Target.
func (t *TargetConn) ReadWord(ctx context.Context, addr uint64) (uint32, error) {
	data, err := t.read(ctx, msgs.NewWordRead(addr))
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// WriteWord implements tsi.Target.
func (t *TargetConn) WriteWord(ctx context.Context, addr uint64, val uint32) error {
	return t.ok(ctx, msgs.NewWordWrite(addr, val))
}

// Reset implements tsi.Target.
func (t *TargetConn) Reset(ctx context.Context) error {
	return t.ok(ctx, &msgs.Reset{})
}

// Jump implements tsi.Target.
func (t *TargetConn) Jump(ctx context.Context, addr uint64) error {
	return t.ok(ctx, msgs.NewJump(addr))
}

// Nock asks the bridge to (re)establish its session with the agent.
func (t *TargetConn) Nock(ctx context.Context) error {
	return t.ok(ctx, &msgs.Nock{})
}
