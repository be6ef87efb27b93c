// Package remote defines how tools reach a target through a bridge: a
// bridge registers itself, connectors discover and connect to it, and
// commands travel as msgs over a packet transport.
package remote

import (
	"context"
	"errors"

	fx "github.com/robotalks/bebe.go/pkg/framework"
)

// ErrClosed indicates the connection closed before a result arrived.
var ErrClosed = errors.New("connection closed")

// BridgeType is the registry type of bebe bridges.
const BridgeType = "bebe"

// BridgeRef identifies a bridge.
type BridgeRef struct {
	Type string
	ID   string
}

// Name is the registry name, also the topic prefix of the bridge.
func (r BridgeRef) Name() string {
	return r.Type + "/" + r.ID
}

// IsValid tells if both type and id are set.
func (r BridgeRef) IsValid() bool {
	return r.Type != "" && r.ID != ""
}

// BridgeMeta describes the target behind a bridge.
type BridgeMeta struct {
	Target string            `json:"target,omitempty"`
	Labels map[string]string `json:"labels,omitempty"`
}

// BridgeInfo is a registered bridge.
type BridgeInfo struct {
	Ref  BridgeRef
	Meta BridgeMeta
}

// Registrar announces a bridge and delivers its events.
type Registrar interface {
	SendEvent(context.Context, fx.Message) error
}

// Connector is used by tools to reach bridges.
type Connector interface {
	// Discover enumerates registered bridges.
	Discover(context.Context) ([]BridgeInfo, error)
	// Connect connects to a bridge.
	Connect(context.Context, BridgeRef) (Conn, error)
}

// Conn is a connection to a bridge.
type Conn interface {
	DoCommand(fx.Message) CommandFuture
	Close() error
}

// Result is the result of a command.
type Result struct {
	Msg fx.Message
	Err error
}

// CommandFuture is a sent command awaiting its result.
type CommandFuture interface {
	ResultChan() <-chan Result
}

// CommandHandler executes commands on the bridge side.
type CommandHandler interface {
	HandleCommand(context.Context, fx.Message) (fx.Message, error)
}

// HandleCommandFunc is the func form of CommandHandler.
type HandleCommandFunc func(context.Context, fx.Message) (fx.Message, error)

// HandleCommand implements CommandHandler.
func (f HandleCommandFunc) HandleCommand(ctx context.Context, msg fx.Message) (fx.Message, error) {
	return f(ctx, msg)
}

// Wait waits for the result of f.
func Wait(ctx context.Context, f CommandFuture) (fx.Message, error) {
	select {
	case res, ok := <-f.ResultChan():
		if !ok {
			return nil, ErrClosed
		}
		return res.Msg, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
