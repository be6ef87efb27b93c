package comm

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/bebe.go/pkg/framework"
	"github.com/robotalks/bebe.go/pkg/remote"
	"github.com/robotalks/bebe.go/pkg/remote/msgs"
)

// DefaultCommandExpiration is how long a command waits for its reply.
const DefaultCommandExpiration = 5 * time.Second

// Conn implements remote.Conn over a Pipe. Run must be running for
// results to arrive.
type Conn struct {
	Expiration time.Duration
	// EventHandler receives events from the bridge.
	EventHandler func(fx.Message)

	pipe     Pipe
	seq      uint32
	commands list.List
	seqMap   map[uint32]*commandFuture
	closed   bool
	lock     sync.Mutex
}

// NewConn creates a Conn.
func NewConn(rw PacketReadWriter) *Conn {
	c := &Conn{}
	c.Init(rw)
	return c
}

// Init initializes an embedded Conn.
func (c *Conn) Init(rw PacketReadWriter) {
	c.Expiration = DefaultCommandExpiration
	c.pipe.ReadWriter = rw
	c.pipe.Handler = msgs.HandleTypedMsgFunc(c.handleTypedMsg)
	c.seqMap = make(map[uint32]*commandFuture)
}

// DoCommand implements remote.Conn.
func (c *Conn) DoCommand(msg fx.Message) remote.CommandFuture {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.seq++; c.seq == 0 {
		c.seq++
	}
	f := &commandFuture{
		seq:      c.seq,
		expireAt: time.Now().Add(c.Expiration),
		result:   make(chan remote.Result, 1),
	}
	if c.closed {
		f.done(remote.Result{Err: remote.ErrClosed})
		return f
	}
	if err := c.pipe.SendCommandMsg(msg, f.seq); err != nil {
		f.done(remote.Result{Err: err})
		return f
	}
	f.elem = c.commands.PushBack(f)
	c.seqMap[f.seq] = f
	return f
}

// Run receives replies and expires commands without one. Pending
// commands fail with remote.ErrClosed when it returns.
func (c *Conn) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.purgeInterval())
	defer ticker.Stop()
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.pipe.Run(ctx)
	}()
	for {
		select {
		case err := <-errCh:
			c.shutdown()
			return err
		case now := <-ticker.C:
			c.purgeExpired(now)
		}
	}
}

// Close closes the transport, which stops Run.
func (c *Conn) Close() error {
	return c.pipe.Close()
}

func (c *Conn) purgeInterval() time.Duration {
	if d := c.Expiration / 4; d > 0 && d < time.Second {
		return d
	}
	return time.Second
}

func (c *Conn) handleTypedMsg(ctx context.Context, msg fx.Message, typed *msgs.Typed) error {
	if typed.IsEvent() {
		glog.V(3).Infof("event %T", msg)
		if h := c.EventHandler; h != nil {
			h(msg)
		}
		return nil
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	f := c.seqMap[typed.Sequence]
	if f == nil {
		glog.V(3).Infof("drop reply %T seq=%d", msg, typed.Sequence)
		return nil
	}
	c.commands.Remove(f.elem)
	delete(c.seqMap, f.seq)
	result := remote.Result{Msg: msg}
	if cmdErr, ok := msg.(*msgs.CommandErr); ok {
		result.Err = cmdErr
	}
	f.done(result)
	return nil
}

func (c *Conn) purgeExpired(now time.Time) {
	c.lock.Lock()
	defer c.lock.Unlock()
	for c.commands.Len() > 0 {
		elem := c.commands.Front()
		f := elem.Value.(*commandFuture)
		if f.expireAt.After(now) {
			break
		}
		c.commands.Remove(elem)
		delete(c.seqMap, f.seq)
		f.done(remote.Result{Err: context.DeadlineExceeded})
	}
}

func (c *Conn) shutdown() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.closed = true
	for elem := c.commands.Front(); elem != nil; elem = elem.Next() {
		elem.Value.(*commandFuture).done(remote.Result{Err: remote.ErrClosed})
	}
	c.commands.Init()
	c.seqMap = make(map[uint32]*commandFuture)
}

type commandFuture struct {
	seq      uint32
	expireAt time.Time
	elem     *list.Element
	result   chan remote.Result
}

func (f *commandFuture) done(res remote.Result) {
	f.result <- res
	close(f.result)
}

func (f *commandFuture) ResultChan() <-chan remote.Result {
	return f.result
}
