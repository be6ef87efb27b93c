package sim

import (
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/robotalks/bebe.go/pkg/bebe/uart"
)

// TxDepth is the depth of the transmit FIFO.
const TxDepth = 8

// IdleStall bounds how long a register read of an empty receiver
// stalls the hart waiting for data.
const IdleStall = 200 * time.Microsecond

// UART models the UART register block.
//
// The target side is the register interface (Load/Store), used only by the
// hart goroutine. The host side is io.ReadWriteCloser: Read returns what the
// target transmitted, Write queues bytes for the target to receive.
//
// A register read that reports a full transmitter or an empty receiver
// stalls briefly (as a bus wait state) so spinning harts don't burn a CPU.
// Once closed, any register access terminates the hart goroutine.
type UART struct {
	txctrl uint32
	rxctrl uint32
	div    uint32
	tx     []byte
	rx     []byte
	lock   sync.Mutex

	txSpace   chan struct{}
	txReady   chan struct{}
	rxReady   chan struct{}
	closed    chan struct{}
	closeOnce sync.Once

	stall *time.Timer
}

// NewUART creates a UART with transmitter and receiver disabled.
func NewUART() *UART {
	return &UART{
		txSpace: make(chan struct{}, 1),
		txReady: make(chan struct{}, 1),
		rxReady: make(chan struct{}, 1),
		closed:  make(chan struct{}),
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Load reads a register.
func (u *UART) Load(off uint32) uint32 {
	u.powered()
	switch off {
	case uart.RegTxData:
		if u.txFull() {
			u.idle(u.txSpace)
			if u.txFull() {
				return uart.TxFull
			}
		}
		return 0
	case uart.RegRxData:
		if b, ok := u.pop(); ok {
			return uint32(b)
		}
		u.idle(u.rxReady)
		if b, ok := u.pop(); ok {
			return uint32(b)
		}
		return uart.RxEmpty
	}
	u.lock.Lock()
	defer u.lock.Unlock()
	switch off {
	case uart.RegTxCtrl:
		return u.txctrl
	case uart.RegRxCtrl:
		return u.rxctrl
	case uart.RegDiv:
		return u.div
	}
	return 0
}

// Store writes a register.
func (u *UART) Store(off uint32, val uint32) {
	u.powered()
	u.lock.Lock()
	defer u.lock.Unlock()
	switch off {
	case uart.RegTxData:
		// a disabled transmitter or a full FIFO drops the byte.
		if u.txctrl&uart.CtrlEnable != 0 && len(u.tx) < TxDepth {
			u.tx = append(u.tx, byte(val))
			notify(u.txReady)
		}
	case uart.RegTxCtrl:
		u.txctrl = val
	case uart.RegRxCtrl:
		u.rxctrl = val
	case uart.RegDiv:
		u.div = val
	}
}

// Divisor returns the baud divisor register.
func (u *UART) Divisor() uint32 {
	u.lock.Lock()
	defer u.lock.Unlock()
	return u.div
}

func (u *UART) txFull() bool {
	u.lock.Lock()
	defer u.lock.Unlock()
	return len(u.tx) >= TxDepth
}

func (u *UART) pop() (byte, bool) {
	u.lock.Lock()
	defer u.lock.Unlock()
	if u.rxctrl&uart.CtrlEnable == 0 || len(u.rx) == 0 {
		return 0, false
	}
	b := u.rx[0]
	u.rx = u.rx[1:]
	return b, true
}

func (u *UART) powered() {
	select {
	case <-u.closed:
		runtime.Goexit()
	default:
	}
}

// idle is only called from the hart goroutine, which owns stall.
func (u *UART) idle(wake <-chan struct{}) {
	if u.stall == nil {
		u.stall = time.NewTimer(IdleStall)
	} else {
		u.stall.Reset(IdleStall)
	}
	select {
	case <-wake:
		if !u.stall.Stop() {
			<-u.stall.C
		}
	case <-u.stall.C:
	case <-u.closed:
		runtime.Goexit()
	}
}

// Read implements io.Reader for the host side. It blocks until the target
// has transmitted at least one byte.
func (u *UART) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		u.lock.Lock()
		n := copy(p, u.tx)
		u.tx = u.tx[n:]
		u.lock.Unlock()
		if n > 0 {
			notify(u.txSpace)
			return n, nil
		}
		select {
		case <-u.txReady:
		case <-u.closed:
			return 0, io.EOF
		}
	}
}

// Write implements io.Writer for the host side.
func (u *UART) Write(p []byte) (int, error) {
	select {
	case <-u.closed:
		return 0, io.ErrClosedPipe
	default:
	}
	u.lock.Lock()
	u.rx = append(u.rx, p...)
	u.lock.Unlock()
	notify(u.rxReady)
	return len(p), nil
}

// Buffered returns the number of bytes waiting to be received by the target.
func (u *UART) Buffered() int {
	u.lock.Lock()
	defer u.lock.Unlock()
	return len(u.rx)
}

// Close implements io.Closer. It powers the UART off.
func (u *UART) Close() error {
	u.closeOnce.Do(func() { close(u.closed) })
	return nil
}
