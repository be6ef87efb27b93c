// Package framework provides the runtime glue shared by the daemons and
// tools: background runnables, error aggregation and the message
// abstraction of the remote protocol.
package framework

import "context"

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable is a background task.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Message is a unit exchanged with a remote peer.
type Message interface {
	// NewMessage creates an empty message of the same type.
	NewMessage() Message
}
