package sim

import (
	"encoding/binary"
	"sync"
)

// PageSize is the allocation unit of Memory.
const PageSize = 4096

// Memory is a sparse little-endian physical memory. Pages are allocated on
// first write; unwritten memory reads as zero.
type Memory struct {
	pages map[uint64]*[PageSize]byte
	lock  sync.RWMutex
}

// NewMemory creates an empty Memory.
func NewMemory() *Memory {
	return &Memory{pages: make(map[uint64]*[PageSize]byte)}
}

// Read copies len(p) bytes starting at addr into p.
func (m *Memory) Read(addr uint64, p []byte) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	for len(p) > 0 {
		off := addr % PageSize
		n := PageSize - off
		if n > uint64(len(p)) {
			n = uint64(len(p))
		}
		if pg := m.pages[addr-off]; pg != nil {
			copy(p[:n], pg[off:off+n])
		} else {
			for i := range p[:n] {
				p[i] = 0
			}
		}
		p, addr = p[n:], addr+n
	}
}

// Write copies p into memory starting at addr.
func (m *Memory) Write(addr uint64, p []byte) {
	m.lock.Lock()
	defer m.lock.Unlock()
	for len(p) > 0 {
		off := addr % PageSize
		pg := m.pages[addr-off]
		if pg == nil {
			pg = new([PageSize]byte)
			m.pages[addr-off] = pg
		}
		n := copy(pg[off:], p)
		p, addr = p[n:], addr+uint64(n)
	}
}

// Pages returns the number of allocated pages.
func (m *Memory) Pages() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.pages)
}

// Load8 implements hw.Memory.
func (m *Memory) Load8(addr uint64) uint8 {
	var b [1]byte
	m.Read(addr, b[:])
	return b[0]
}

// Load32 implements hw.Memory.
func (m *Memory) Load32(addr uint64) uint32 {
	var b [4]byte
	m.Read(addr, b[:])
	return binary.LittleEndian.Uint32(b[:])
}

// Load64 implements hw.Memory.
func (m *Memory) Load64(addr uint64) uint64 {
	var b [8]byte
	m.Read(addr, b[:])
	return binary.LittleEndian.Uint64(b[:])
}

// Store8 implements hw.Memory.
func (m *Memory) Store8(addr uint64, val uint8) {
	m.Write(addr, []byte{val})
}

// Store32 implements hw.Memory.
func (m *Memory) Store32(addr uint64, val uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], val)
	m.Write(addr, b[:])
}

// Store64 implements hw.Memory.
func (m *Memory) Store64(addr uint64, val uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], val)
	m.Write(addr, b[:])
}

// LoadMemWrite writes directly to memory, bypassing the target.
func (m *Memory) LoadMemWrite(addr uint64, data []byte) error {
	m.Write(addr, data)
	return nil
}

// LoadMemRead reads directly from memory, bypassing the target.
func (m *Memory) LoadMemRead(addr uint64, buf []byte) error {
	m.Read(addr, buf)
	return nil
}
