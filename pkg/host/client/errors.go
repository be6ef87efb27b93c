package client

import (
	"errors"
	"fmt"

	"github.com/robotalks/bebe.go/pkg/bebe"
)

var (
	// ErrNotNocked indicates the session is not established.
	// Nock must succeed before any command is sent.
	ErrNotNocked = errors.New("not nocked")
	// ErrReleased indicates control was transferred away from the agent.
	ErrReleased = errors.New("target released")
	// ErrTimeout indicates the target did not answer in time.
	ErrTimeout = errors.New("timeout")
)

// ReplyError is an unexpected reply byte.
type ReplyError struct {
	Op   bebe.Opcode
	Want byte
	Got  byte
}

// Error implements error.
func (e *ReplyError) Error() string {
	return fmt.Sprintf("%s: unexpected reply %#02x, want %#02x", e.Op, e.Got, e.Want)
}
