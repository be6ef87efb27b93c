// Package tsi provides host access to a target's memory and reset, the
// layer program loaders and test harnesses are written against.
package tsi

import (
	"context"

	"github.com/golang/glog"
)

// MSIPBase is the machine software interrupt pending register of hart 0.
const MSIPBase uint64 = 0x02000000

// DefaultChunkSize bounds a single memory command.
const DefaultChunkSize = 1024

// Target is the host view of a target.
type Target interface {
	// ReadChunk reads len(buf) bytes in address order.
	ReadChunk(ctx context.Context, addr uint64, buf []byte) error
	// WriteChunk writes data in address order.
	WriteChunk(ctx context.Context, addr uint64, data []byte) error
	// ReadWord loads a 32-bit word with a single access.
	ReadWord(ctx context.Context, addr uint64) (uint32, error)
	// WriteWord stores a 32-bit word with a single access.
	WriteWord(ctx context.Context, addr uint64, val uint32) error
	// Reset wakes the target up to run the loaded program.
	Reset(ctx context.Context) error
	// Jump transfers control to addr.
	Jump(ctx context.Context, addr uint64) error
}

// Conn is a boot agent session, implemented by client.Client.
type Conn interface {
	ReadBytes(ctx context.Context, addr uint64, n uint32) ([]byte, error)
	WriteBytes(ctx context.Context, addr uint64, data []byte) error
	Read32(ctx context.Context, addr uint64) (uint32, error)
	Write32(ctx context.Context, addr uint64, val uint32) error
	Jump(ctx context.Context, addr uint64) error
}

// Base implements Target over a boot agent session.
type Base struct {
	Conn      Conn
	ChunkSize int
}

// NewBase creates a Base.
func NewBase(conn Conn) *Base {
	return &Base{Conn: conn, ChunkSize: DefaultChunkSize}
}

func (b *Base) chunkSize() int {
	if b.ChunkSize > 0 {
		return b.ChunkSize
	}
	return DefaultChunkSize
}

// ReadChunk implements Target.
func (b *Base) ReadChunk(ctx context.Context, addr uint64, buf []byte) error {
	for len(buf) > 0 {
		n := len(buf)
		if size := b.chunkSize(); n > size {
			n = size
		}
		data, err := b.Conn.ReadBytes(ctx, addr, uint32(n))
		if err != nil {
			return err
		}
		copy(buf, data)
		buf, addr = buf[n:], addr+uint64(n)
	}
	return nil
}

// WriteChunk implements Target.
func (b *Base) WriteChunk(ctx context.Context, addr uint64, data []byte) error {
	for len(data) > 0 {
		n := len(data)
		if size := b.chunkSize(); n > size {
			n = size
		}
		if err := b.Conn.WriteBytes(ctx, addr, data[:n]); err != nil {
			return err
		}
		data, addr = data[n:], addr+uint64(n)
	}
	return nil
}

// ReadWord implements Target.
func (b *Base) ReadWord(ctx context.Context, addr uint64) (uint32, error) {
	return b.Conn.Read32(ctx, addr)
}

// WriteWord implements Target.
func (b *Base) WriteWord(ctx context.Context, addr uint64, val uint32) error {
	return b.Conn.Write32(ctx, addr, val)
}

// Reset raises the software interrupt of hart 0.
func (b *Base) Reset(ctx context.Context) error {
	glog.V(2).Infof("reset: msip %#x", MSIPBase)
	return b.Conn.Write32(ctx, MSIPBase, 1)
}

// Jump implements Target.
func (b *Base) Jump(ctx context.Context, addr uint64) error {
	return b.Conn.Jump(ctx, addr)
}
