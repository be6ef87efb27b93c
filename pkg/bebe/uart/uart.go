// Package uart provides the polled UART transport used by the boot agent.
package uart

import "github.com/robotalks/bebe.go/pkg/bebe/hw"

// DefaultBase is the physical base address of the UART register block.
const DefaultBase uint64 = 0x10020000

// Register offsets from the base.
const (
	RegTxData uint32 = 0x00
	RegRxData uint32 = 0x04
	RegTxCtrl uint32 = 0x08
	RegRxCtrl uint32 = 0x0c
	RegDiv    uint32 = 0x14
)

// Register bits.
const (
	// CtrlEnable is the enable bit of txctrl/rxctrl.
	CtrlEnable uint32 = 0x1
	// TxFull is set in txdata while the transmit FIFO is full.
	TxFull uint32 = 1 << 31
	// RxEmpty is set in rxdata while the receive FIFO is empty.
	RxEmpty uint32 = 1 << 31
)

// Port is a byte transport. Send and Receive may block for as long as the
// line stalls; TryReceive never blocks.
type Port interface {
	Send(b byte)
	Receive() byte
	TryReceive() (byte, bool)
}

// RxWord is a raw read of rxdata: either a received byte or empty.
type RxWord uint32

// Empty indicates no byte was available.
func (w RxWord) Empty() bool {
	return uint32(w)&RxEmpty != 0
}

// Byte returns the received byte. Meaningless if Empty.
func (w RxWord) Byte() byte {
	return byte(w)
}

// Get returns the byte and whether it is present.
func (w RxWord) Get() (byte, bool) {
	if w.Empty() {
		return 0, false
	}
	return w.Byte(), true
}

// UART drives the register block by busy polling.
type UART struct {
	regs hw.Registers
}

// New creates a UART on the register block.
func New(regs hw.Registers) *UART {
	return &UART{regs: regs}
}

// Init enables the transmitter and receiver. It must be called once,
// before any other operation.
func (u *UART) Init() {
	u.regs.Store(RegTxCtrl, CtrlEnable)
	u.regs.Store(RegRxCtrl, CtrlEnable)
	// the enables must reach the device before any data moves.
	u.regs.Fence()
}

// Send implements Port.
func (u *UART) Send(b byte) {
	for u.regs.Load(RegTxData) != 0 {
		// spin while FIFO full
	}
	u.regs.Store(RegTxData, uint32(b))
}

// Receive implements Port.
func (u *UART) Receive() byte {
	for {
		if b, ok := u.Poll().Get(); ok {
			return b
		}
	}
}

// Poll reads rxdata exactly once.
func (u *UART) Poll() RxWord {
	return RxWord(u.regs.Load(RegRxData))
}

// TryReceive implements Port.
func (u *UART) TryReceive() (byte, bool) {
	return u.Poll().Get()
}

// ReceiveU32 receives a big-endian 32-bit value.
func ReceiveU32(p Port) uint32 {
	var v uint32
	for i := 0; i < 4; i++ {
		v = (v << 8) | uint32(p.Receive())
	}
	return v
}

// ReceiveU64 receives a big-endian 64-bit value.
func ReceiveU64(p Port) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = (v << 8) | uint64(p.Receive())
	}
	return v
}

// SendBuffer sends the bytes in order.
func SendBuffer(p Port, buf []byte) {
	for _, b := range buf {
		p.Send(b)
	}
}
