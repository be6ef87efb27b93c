// Package hw defines the hardware capabilities the boot agent runs on.
package hw

// Registers gives access to a block of 32-bit device registers.
// Offsets are in bytes from the base of the block.
type Registers interface {
	Load(off uint32) uint32
	Store(off uint32, val uint32)
	// Fence is a full memory ordering barrier (fence rw, rw): every
	// access issued before it is visible to the device before any
	// access issued after it.
	Fence()
}

// Memory is the physical address space of the target.
// Accesses are not checked: any address may be used.
type Memory interface {
	Load8(addr uint64) uint8
	Load32(addr uint64) uint32
	Load64(addr uint64) uint64
	Store8(addr uint64, val uint8)
	Store32(addr uint64, val uint32)
	Store64(addr uint64, val uint64)
}

// Hart is the executing core.
type Hart interface {
	Memory

	// FenceI makes prior stores visible to instruction fetch.
	FenceI()
	// Jump transfers control to entry as a call with no arguments.
	// It never returns: the caller's frame is abandoned. An implementation
	// that cannot transfer control must terminate the calling goroutine
	// (e.g. with runtime.Goexit) instead of returning.
	Jump(entry uint64)
}
