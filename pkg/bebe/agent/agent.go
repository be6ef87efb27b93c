// Package agent implements the BEBE boot agent: the handshake that unlocks
// a session and the command loop that serves memory access and control
// transfer requests.
package agent

import (
	"encoding/binary"
	"errors"

	"github.com/golang/glog"

	"github.com/robotalks/bebe.go/pkg/bebe"
	"github.com/robotalks/bebe.go/pkg/bebe/hw"
	"github.com/robotalks/bebe.go/pkg/bebe/uart"
)

// ErrJumpReturned is the panic value when hw.Hart.Jump returns.
var ErrJumpReturned = errors.New("jump returned")

// Agent serves one host over a Port.
type Agent struct {
	port uart.Port
	hart hw.Hart
}

// New creates an Agent.
func New(port uart.Port, hart hw.Hart) *Agent {
	return &Agent{port: port, hart: hart}
}

// Main is the boot agent entry point: it brings up the UART on regs,
// waits for a host and serves it. It only leaves through a JUMP.
func Main(regs hw.Registers, hart hw.Hart) {
	u := uart.New(regs)
	u.Init()
	New(u, hart).Run()
}

// Run waits for the handshake and then serves commands forever.
func (a *Agent) Run() {
	a.Nock()
	a.Serve()
}

// Nock waits until the last 8 received bytes are bebe.Magic and
// acknowledges once. A probe is sent on every iteration, and every received
// byte is echoed, so the target is observable before any host shows up.
func (a *Agent) Nock() {
	var window uint64
	for window != bebe.Magic {
		a.port.Send(bebe.Probe)
		if b, ok := a.port.TryReceive(); ok {
			window = (window << 8) | uint64(b)
			a.port.Send(b)
		}
	}
	a.port.Send(bebe.Ack)
	glog.V(2).Info("nocked")
}

// Serve runs the command loop. It never returns; a JUMP leaves it
// through hw.Hart.Jump.
func (a *Agent) Serve() {
	for {
		a.dispatch(bebe.Opcode(a.port.Receive()))
	}
}

func (a *Agent) dispatch(op bebe.Opcode) {
	if !op.IsValid() {
		glog.V(3).Infof("unknown opcode %s", op)
		a.port.Send(bebe.Nack)
		return
	}
	switch op {
	case bebe.OpWrite:
		a.write()
	case bebe.OpRead:
		a.read()
	case bebe.OpJump:
		a.jump()
	case bebe.OpNock:
		for i := 0; i < bebe.NockTail; i++ {
			a.port.Receive()
		}
		a.port.Send(bebe.Ack)
		glog.V(2).Info("re-nocked")
	}
}

func (a *Agent) write() {
	n := uart.ReceiveU32(a.port)
	dst := uart.ReceiveU64(a.port)
	glog.V(3).Infof("WRITE %#x len=%d", dst, n)
	switch n {
	case 1:
		a.hart.Store8(dst, a.port.Receive())
	case 4:
		a.hart.Store32(dst, uart.ReceiveU32(a.port))
	case 8:
		a.hart.Store64(dst, uart.ReceiveU64(a.port))
	default:
		for i := uint32(0); i < n; i++ {
			a.hart.Store8(dst+uint64(i), a.port.Receive())
		}
	}
	a.port.Send(bebe.Ack)
}

func (a *Agent) read() {
	n := uart.ReceiveU32(a.port)
	src := uart.ReceiveU64(a.port)
	glog.V(3).Infof("READ %#x len=%d", src, n)
	// the data is the reply, there is no ack.
	var buf [8]byte
	switch n {
	case 1:
		a.port.Send(a.hart.Load8(src))
	case 4:
		binary.BigEndian.PutUint32(buf[:], a.hart.Load32(src))
		uart.SendBuffer(a.port, buf[:4])
	case 8:
		binary.BigEndian.PutUint64(buf[:], a.hart.Load64(src))
		uart.SendBuffer(a.port, buf[:8])
	default:
		for i := uint32(0); i < n; i++ {
			a.port.Send(a.hart.Load8(src + uint64(i)))
		}
	}
}

func (a *Agent) jump() {
	dst := uart.ReceiveU64(a.port)
	glog.V(2).Infof("JUMP %#x", dst)
	a.port.Send(bebe.Ack)
	// the destination may have just been written by WRITE.
	a.hart.FenceI()
	a.hart.Jump(dst)
	panic(ErrJumpReturned)
}
