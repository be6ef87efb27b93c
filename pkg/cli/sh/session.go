package sh

import (
	"context"
	"errors"
	"io"

	"github.com/robotalks/bebe.go/pkg/host/client"
	"github.com/robotalks/bebe.go/pkg/host/serial"
	"github.com/robotalks/bebe.go/pkg/host/tsi"
	"github.com/robotalks/bebe.go/pkg/remote"
	"github.com/robotalks/bebe.go/pkg/remote/comm"
)

// ErrNoPing is returned by Ping on sessions through a bridge.
var ErrNoPing = errors.New("ping needs a direct session")

// Session is an open target, reached directly over a serial line or
// through a bridge.
type Session struct {
	Name   string
	Target tsi.Target

	nock   func(context.Context) error
	ping   func(context.Context) error
	closer io.Closer
}

// NewDirectSession talks to the agent over rw.
func NewDirectSession(name string, rw io.ReadWriter) *Session {
	c := client.New(rw)
	return &Session{
		Name:   name,
		Target: tsi.NewBase(c),
		nock:   c.Nock,
		ping:   c.Ping,
		closer: c,
	}
}

// OpenDirect opens a serial device or tcp://host:port.
func OpenDirect(target string, baudRate uint) (*Session, error) {
	rw, err := serial.Open(target, baudRate)
	if err != nil {
		return nil, err
	}
	return NewDirectSession(target, rw), nil
}

// NewBridgeSession uses conn to a bridge.
func NewBridgeSession(name string, conn remote.Conn) *Session {
	t := comm.NewTargetConn(conn)
	return &Session{
		Name:   name,
		Target: t,
		nock:   t.Nock,
		closer: conn,
	}
}

// Nock establishes the session with the agent.
func (s *Session) Nock(ctx context.Context) error {
	return s.nock(ctx)
}

// Ping checks the agent is serving without side effects.
func (s *Session) Ping(ctx context.Context) error {
	if s.ping == nil {
		return ErrNoPing
	}
	return s.ping(ctx)
}

// Close releases the underlying connection.
func (s *Session) Close() error {
	return s.closer.Close()
}
