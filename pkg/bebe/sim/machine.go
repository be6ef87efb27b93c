package sim

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/bebe.go/pkg/bebe/agent"
	"github.com/robotalks/bebe.go/pkg/bebe/hw"
	"github.com/robotalks/bebe.go/pkg/bebe/uart"
)

// UARTWindow is the size of the address window decoded to the UART.
const UARTWindow uint64 = 0x1000

// Entry is a routine installed at an address. It runs on the hart when
// control is transferred there.
type Entry func(m *Machine)

// Machine is a simulated single-hart target running the boot agent.
type Machine struct {
	Memory   *Memory
	UART     *UART
	UARTBase uint64

	entries   map[uint64]Entry
	fences    int64
	fenceIs   int64
	jumps     []uint64
	jumpsLock sync.Mutex
	jumpCh    chan uint64
	done      chan struct{}
	startOnce sync.Once
}

// NewMachine creates a Machine with the UART at its default base.
func NewMachine() *Machine {
	return &Machine{
		Memory:   NewMemory(),
		UART:     NewUART(),
		UARTBase: uart.DefaultBase,
		entries:  make(map[uint64]Entry),
		jumpCh:   make(chan uint64, 16),
		done:     make(chan struct{}),
	}
}

// SetEntry installs a routine at addr. Must be called before Start.
func (m *Machine) SetEntry(addr uint64, entry Entry) *Machine {
	m.entries[addr] = entry
	return m
}

// Start powers the hart on: it runs the boot agent in its own goroutine.
func (m *Machine) Start() {
	m.startOnce.Do(func() {
		go func() {
			defer close(m.done)
			agent.Main(m.Registers(), m)
		}()
	})
}

// Done is closed when the hart stops.
func (m *Machine) Done() <-chan struct{} {
	return m.done
}

// Jumped reports control transfers as they happen.
func (m *Machine) Jumped() <-chan uint64 {
	return m.jumpCh
}

// Jumps returns all control transfers so far.
func (m *Machine) Jumps() []uint64 {
	m.jumpsLock.Lock()
	defer m.jumpsLock.Unlock()
	return append([]uint64(nil), m.jumps...)
}

// Fences returns the number of fence rw,rw issued.
func (m *Machine) Fences() int64 {
	return atomic.LoadInt64(&m.fences)
}

// FenceIs returns the number of fence.i issued.
func (m *Machine) FenceIs() int64 {
	return atomic.LoadInt64(&m.fenceIs)
}

// Close powers the machine off.
func (m *Machine) Close() error {
	return m.UART.Close()
}

// Registers returns the UART registers as seen by the hart.
func (m *Machine) Registers() hw.Registers {
	return machineRegs{m}
}

type machineRegs struct {
	m *Machine
}

func (r machineRegs) Load(off uint32) uint32        { return r.m.UART.Load(off) }
func (r machineRegs) Store(off uint32, val uint32) { r.m.UART.Store(off, val) }
func (r machineRegs) Fence()                       { atomic.AddInt64(&r.m.fences, 1) }

func (m *Machine) mmio(addr uint64) (uint32, bool) {
	if addr >= m.UARTBase && addr-m.UARTBase < UARTWindow {
		return uint32(addr - m.UARTBase), true
	}
	return 0, false
}

// Load8 implements hw.Memory.
func (m *Machine) Load8(addr uint64) uint8 {
	if off, ok := m.mmio(addr); ok {
		return uint8(m.UART.Load(off&^3) >> (8 * (off & 3)))
	}
	return m.Memory.Load8(addr)
}

// Load32 implements hw.Memory.
func (m *Machine) Load32(addr uint64) uint32 {
	if off, ok := m.mmio(addr); ok {
		return m.UART.Load(off)
	}
	return m.Memory.Load32(addr)
}

// Load64 implements hw.Memory.
func (m *Machine) Load64(addr uint64) uint64 {
	if off, ok := m.mmio(addr); ok {
		return uint64(m.UART.Load(off)) | uint64(m.UART.Load(off+4))<<32
	}
	return m.Memory.Load64(addr)
}

// Store8 implements hw.Memory.
func (m *Machine) Store8(addr uint64, val uint8) {
	if off, ok := m.mmio(addr); ok {
		m.UART.Store(off&^3, uint32(val)<<(8*(off&3)))
		return
	}
	m.Memory.Store8(addr, val)
}

// Store32 implements hw.Memory.
func (m *Machine) Store32(addr uint64, val uint32) {
	if off, ok := m.mmio(addr); ok {
		m.UART.Store(off, val)
		return
	}
	m.Memory.Store32(addr, val)
}

// Store64 implements hw.Memory.
func (m *Machine) Store64(addr uint64, val uint64) {
	if off, ok := m.mmio(addr); ok {
		m.UART.Store(off, uint32(val))
		m.UART.Store(off+4, uint32(val>>32))
		return
	}
	m.Memory.Store64(addr, val)
}

// FenceI implements hw.Hart.
func (m *Machine) FenceI() {
	atomic.AddInt64(&m.fenceIs, 1)
}

// Jump implements hw.Hart. It runs the routine installed at entry, if
// any, and then stops the hart.
func (m *Machine) Jump(entry uint64) {
	m.jumpsLock.Lock()
	m.jumps = append(m.jumps, entry)
	m.jumpsLock.Unlock()
	select {
	case m.jumpCh <- entry:
	default:
	}
	if fn := m.entries[entry]; fn != nil {
		glog.V(2).Infof("hart: enter %#x", entry)
		fn(m)
	} else {
		glog.Infof("hart: jump to %#x, no code to run, halted", entry)
	}
	runtime.Goexit()
}

// Reboot is an Entry that starts the boot agent again, as a jump to the
// reset vector does.
func Reboot(m *Machine) {
	agent.Main(m.Registers(), m)
}
