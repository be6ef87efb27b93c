package uart

import (
	"io"
	"runtime"
	"time"

	"github.com/golang/glog"
)

// DefaultPollWait is the default time TryReceive waits on a Stream.
const DefaultPollWait = 5 * time.Millisecond

// Stream is a Port backed by an io.ReadWriter instead of registers.
// Blocking operations suspend the goroutine rather than spin.
//
// The agent has no way to report a broken line, so when the underlying
// stream fails the calling goroutine is terminated, as if the target
// lost power.
type Stream struct {
	// PollWait bounds how long TryReceive waits for a byte before
	// reporting empty. It paces the handshake probes.
	PollWait time.Duration

	w    io.Writer
	rxCh chan byte
	buf  [1]byte
}

// NewStream creates a Stream and starts reading from rw.
func NewStream(rw io.ReadWriter) *Stream {
	s := &Stream{
		PollWait: DefaultPollWait,
		w:        rw,
		rxCh:     make(chan byte, 64),
	}
	go s.readLoop(rw)
	return s
}

func (s *Stream) readLoop(r io.Reader) {
	defer close(s.rxCh)
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		for i := 0; i < n; i++ {
			s.rxCh <- buf[i]
		}
		if err != nil {
			if err != io.EOF {
				glog.Warningf("uart stream read: %v", err)
			}
			return
		}
	}
}

// Send implements Port.
func (s *Stream) Send(b byte) {
	s.buf[0] = b
	if _, err := s.w.Write(s.buf[:]); err != nil {
		glog.Warningf("uart stream write: %v", err)
		runtime.Goexit()
	}
}

// Receive implements Port.
func (s *Stream) Receive() byte {
	b, ok := <-s.rxCh
	if !ok {
		runtime.Goexit()
	}
	return b
}

// TryReceive implements Port.
func (s *Stream) TryReceive() (byte, bool) {
	select {
	case b, ok := <-s.rxCh:
		return s.got(b, ok)
	default:
	}
	if s.PollWait <= 0 {
		return 0, false
	}
	timer := time.NewTimer(s.PollWait)
	defer timer.Stop()
	select {
	case b, ok := <-s.rxCh:
		return s.got(b, ok)
	case <-timer.C:
		return 0, false
	}
}

func (s *Stream) got(b byte, ok bool) (byte, bool) {
	if !ok {
		runtime.Goexit()
	}
	return b, true
}
