// Package client implements the host end of the BEBE wire protocol.
package client

import (
	"context"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/bebe.go/pkg/bebe"
)

// State is the session state.
type State int

// States.
const (
	StateIdle State = iota
	StateNocked
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNocked:
		return "nocked"
	case StateReleased:
		return "released"
	}
	return "invalid"
}

// DefaultQuietPeriod is the default Client.QuietPeriod.
const DefaultQuietPeriod = 20 * time.Millisecond

// pingOp is not a command of the agent, so it always answers Nack.
const pingOp = 0x00

// Client talks to a boot agent over a character stream.
type Client struct {
	// Timeout bounds every command, including each Nock attempt.
	Timeout time.Duration
	// Attempts is the number of Nock attempts, 0 means until ctx is done.
	Attempts int
	Backoff  BackoffConfig
	// QuietPeriod is how long the line must stay silent after the nock
	// ack for the session to be considered synced.
	QuietPeriod time.Duration

	rw     io.ReadWriter
	byteCh chan byte
	dead   chan struct{}
	err    error
	state  State
	lock   sync.Mutex
	rng    *rand.Rand
}

// New creates a Client and starts reading from rw. Reading stops when rw
// returns an error.
func New(rw io.ReadWriter) *Client {
	c := &Client{
		Timeout:     time.Second,
		Attempts:    5,
		Backoff:     DefaultBackoff,
		QuietPeriod: DefaultQuietPeriod,
		rw:          rw,
		byteCh:      make(chan byte, 256),
		dead:        make(chan struct{}),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	buf := make([]byte, 64)
	for {
		n, err := c.rw.Read(buf)
		for _, b := range buf[:n] {
			c.byteCh <- b
		}
		if err != nil {
			c.err = err
			close(c.dead)
			return
		}
	}
}

// State returns the session state.
func (c *Client) State() State {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.state
}

// Close closes the underlying stream if it is an io.Closer.
func (c *Client) Close() error {
	if closer, ok := c.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Nock establishes the session. Each attempt drains stale input, sends the
// magic and a ping, and waits for the ack and nack, ignoring probes, echoes
// and leftovers of earlier replies. It also resynchronizes a session that is
// already nocked, and reaches an agent restarted by the program a Jump
// released the target to.
func (c *Client) Nock(ctx context.Context) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	for attempt := 1; ; attempt++ {
		err := c.command(ctx, c.nockOnce)
		if err == nil {
			c.state = StateNocked
			glog.V(2).Infof("nocked after %d attempt(s)", attempt)
			return nil
		}
		glog.V(2).Infof("nock attempt %d: %v", attempt, err)
		if err != ErrTimeout || (c.Attempts > 0 && attempt >= c.Attempts) {
			c.fail()
			return err
		}
		timer := time.NewTimer(NextBackoffDelay(c.Backoff, attempt, c.rng))
		select {
		case <-ctx.Done():
			timer.Stop()
			c.fail()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// fail drops a nocked session. A released target stays released.
func (c *Client) fail() {
	if c.state == StateNocked {
		c.state = StateIdle
	}
}

// nockOnce sends the magic followed by a ping. The agent answers the ping
// right after its ack, so the session is synced at an ack immediately
// followed by a nack, provided nothing else arrives within QuietPeriod. A
// serving agent never sends unsolicited bytes, so anything more is the
// tail of an abandoned reply that happened to contain the same pair.
func (c *Client) nockOnce(ctx context.Context) error {
	c.drain()
	if _, err := c.rw.Write(append(bebe.MagicBytes(), pingOp)); err != nil {
		return err
	}
	var prev byte
	b, err := c.recv(ctx)
	for err == nil {
		if prev == bebe.Ack && b == bebe.Nack {
			var quiet bool
			prev = b
			if b, quiet, err = c.quiet(ctx); quiet {
				return nil
			}
			glog.V(2).Info("line busy after nock ack, still syncing")
			continue
		}
		prev = b
		b, err = c.recv(ctx)
	}
	return err
}

// quiet waits QuietPeriod for a byte. It returns true if none arrived.
func (c *Client) quiet(ctx context.Context) (byte, bool, error) {
	if c.QuietPeriod <= 0 {
		return 0, true, nil
	}
	timer := time.NewTimer(c.QuietPeriod)
	defer timer.Stop()
	select {
	case b := <-c.byteCh:
		return b, false, nil
	case <-timer.C:
		return 0, true, nil
	case <-c.dead:
		b, err := c.recv(ctx)
		return b, false, err
	case <-ctx.Done():
		return 0, false, ctx.Err()
	}
}

// Read issues a READ of n bytes at addr. Sized reads (1, 4, 8) are single
// accesses whose value arrives most significant byte first.
func (c *Client) Read(ctx context.Context, addr uint64, n uint32) (data []byte, err error) {
	err = c.session(ctx, func(ctx context.Context) error {
		if _, err := c.rw.Write(bebe.AppendRead(nil, addr, n)); err != nil {
			return err
		}
		data = make([]byte, n)
		for i := range data {
			b, err := c.recv(ctx)
			if err != nil {
				return err
			}
			data[i] = b
		}
		return nil
	})
	return
}

// Write issues a WRITE of data at addr. Sized writes (1, 4, 8) take data
// most significant byte first and store it as a single access.
func (c *Client) Write(ctx context.Context, addr uint64, data []byte) error {
	return c.session(ctx, func(ctx context.Context) error {
		if _, err := c.rw.Write(bebe.AppendWrite(nil, addr, data)); err != nil {
			return err
		}
		return c.expect(ctx, bebe.OpWrite, bebe.Ack)
	})
}

// Read32 loads a 32-bit word with a single access.
func (c *Client) Read32(ctx context.Context, addr uint64) (uint32, error) {
	data, err := c.Read(ctx, addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(data), nil
}

// Write32 stores a 32-bit word with a single access.
func (c *Client) Write32(ctx context.Context, addr uint64, val uint32) error {
	var data [4]byte
	binary.BigEndian.PutUint32(data[:], val)
	return c.Write(ctx, addr, data[:])
}

// Read64 loads a 64-bit word with a single access.
func (c *Client) Read64(ctx context.Context, addr uint64) (uint64, error) {
	data, err := c.Read(ctx, addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(data), nil
}

// Write64 stores a 64-bit word with a single access.
func (c *Client) Write64(ctx context.Context, addr uint64, val uint64) error {
	var data [8]byte
	binary.BigEndian.PutUint64(data[:], val)
	return c.Write(ctx, addr, data[:])
}

// ReadBytes reads memory in address order. Spans of 4 or 8 bytes are
// split so they never turn into a word access.
func (c *Client) ReadBytes(ctx context.Context, addr uint64, n uint32) ([]byte, error) {
	if !bebe.IsSized(n) || n == 1 {
		return c.Read(ctx, addr, n)
	}
	head, err := c.Read(ctx, addr, n-1)
	if err != nil {
		return nil, err
	}
	tail, err := c.Read(ctx, addr+uint64(n-1), 1)
	if err != nil {
		return nil, err
	}
	return append(head, tail...), nil
}

// WriteBytes writes memory in address order, the counterpart of ReadBytes.
func (c *Client) WriteBytes(ctx context.Context, addr uint64, data []byte) error {
	n := uint32(len(data))
	if !bebe.IsSized(n) || n == 1 {
		return c.Write(ctx, addr, data)
	}
	if err := c.Write(ctx, addr, data[:n-1]); err != nil {
		return err
	}
	return c.Write(ctx, addr+uint64(n-1), data[n-1:])
}

// Jump transfers control to addr. The agent is gone once it acks, so the
// client is released.
func (c *Client) Jump(ctx context.Context, addr uint64) error {
	return c.session(ctx, func(ctx context.Context) error {
		if _, err := c.rw.Write(bebe.AppendJump(nil, addr)); err != nil {
			return err
		}
		if err := c.expect(ctx, bebe.OpJump, bebe.Ack); err != nil {
			return err
		}
		c.state = StateReleased
		return nil
	})
}

// Ping checks the agent is serving by sending a command it rejects.
func (c *Client) Ping(ctx context.Context) error {
	return c.session(ctx, func(ctx context.Context) error {
		if _, err := c.rw.Write([]byte{pingOp}); err != nil {
			return err
		}
		return c.expect(ctx, pingOp, bebe.Nack)
	})
}

// session runs fn within a nocked session. Any failure other than a
// wrong reply leaves the stream out of sync and drops the session.
func (c *Client) session(ctx context.Context, fn func(context.Context) error) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	switch c.state {
	case StateIdle:
		return ErrNotNocked
	case StateReleased:
		return ErrReleased
	}
	err := c.command(ctx, fn)
	if err != nil {
		if _, ok := err.(*ReplyError); !ok {
			c.state = StateIdle
		}
	}
	return err
}

func (c *Client) command(ctx context.Context, fn func(context.Context) error) error {
	if c.Timeout <= 0 {
		return fn(ctx)
	}
	sub, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()
	err := fn(sub)
	if err != nil && sub.Err() != nil && ctx.Err() == nil {
		return ErrTimeout
	}
	return err
}

func (c *Client) expect(ctx context.Context, op bebe.Opcode, want byte) error {
	b, err := c.recv(ctx)
	if err != nil {
		return err
	}
	if b != want {
		return &ReplyError{Op: op, Want: want, Got: b}
	}
	return nil
}

func (c *Client) recv(ctx context.Context) (byte, error) {
	select {
	case b := <-c.byteCh:
		return b, nil
	default:
	}
	select {
	case b := <-c.byteCh:
		return b, nil
	case <-c.dead:
		select {
		case b := <-c.byteCh:
			return b, nil
		default:
			return 0, c.err
		}
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (c *Client) drain() {
	for {
		select {
		case <-c.byteCh:
		default:
			return
		}
	}
}
