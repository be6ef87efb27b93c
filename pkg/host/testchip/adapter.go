// Package testchip adapts a tsi.Target for test chip harnesses: coherent
// address remapping, memory loading through a simulator backdoor and
// scripted accesses at reset.
package testchip

import (
	"context"
	"encoding/binary"
	"errors"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/bebe.go/pkg/host/tsi"
)

// ErrNoBackdoor indicates loadmem is requested without a backdoor.
var ErrNoBackdoor = errors.New("no loadmem backdoor")

// LoadMem is a backdoor into target memory bypassing the target.
type LoadMem interface {
	LoadMemWrite(addr uint64, data []byte) error
	LoadMemRead(addr uint64, buf []byte) error
}

// Adapter wraps a tsi.Target.
type Adapter struct {
	Target   tsi.Target
	Options  Options
	Backdoor LoadMem

	loadmem bool
}

// NewAdapter creates an Adapter. backdoor may be nil when the options
// have no loadmem.
func NewAdapter(target tsi.Target, opts *Options, backdoor LoadMem) *Adapter {
	a := &Adapter{Target: target, Backdoor: backdoor}
	if opts != nil {
		a.Options = *opts
	}
	return a
}

func (a *Adapter) addr(addr uint64) uint64 {
	// loadmem always uses raw addresses.
	if a.loadmem {
		return addr
	}
	return a.Options.Remap(addr)
}

// ReadChunk implements tsi.Target.
func (a *Adapter) ReadChunk(ctx context.Context, addr uint64, buf []byte) error {
	if a.loadmem {
		return a.Backdoor.LoadMemRead(addr, buf)
	}
	return a.Target.ReadChunk(ctx, a.addr(addr), buf)
}

// WriteChunk implements tsi.Target.
func (a *Adapter) WriteChunk(ctx context.Context, addr uint64, data []byte) error {
	if a.loadmem {
		return a.Backdoor.LoadMemWrite(addr, data)
	}
	return a.Target.WriteChunk(ctx, a.addr(addr), data)
}

// ReadWord implements tsi.Target.
func (a *Adapter) ReadWord(ctx context.Context, addr uint64) (uint32, error) {
	if a.loadmem {
		var buf [4]byte
		if err := a.Backdoor.LoadMemRead(addr, buf[:]); err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint32(buf[:]), nil
	}
	return a.Target.ReadWord(ctx, a.addr(addr))
}

// WriteWord implements tsi.Target.
func (a *Adapter) WriteWord(ctx context.Context, addr uint64, val uint32) error {
	if a.loadmem {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], val)
		return a.Backdoor.LoadMemWrite(addr, buf[:])
	}
	return a.Target.WriteWord(ctx, a.addr(addr), val)
}

// Reset issues the scripted init accesses in order and then resets the
// target unless +no_hart0_msip is given.
func (a *Adapter) Reset(ctx context.Context) error {
	for _, access := range a.Options.Init {
		if access.Store {
			glog.Infof("Writing %x with %x", access.Addr, access.Value)
			if err := a.WriteWord(ctx, access.Addr, access.Value); err != nil {
				return err
			}
			glog.Infof("Done writing %x with %x", access.Addr, access.Value)
			continue
		}
		val, err := a.ReadWord(ctx, access.Addr)
		if err != nil {
			return err
		}
		glog.Infof("Reading %x ... got %x", access.Addr, val)
	}
	if a.Options.NoHart0MSIP {
		return nil
	}
	return a.Target.Reset(ctx)
}

// Jump implements tsi.Target.
func (a *Adapter) Jump(ctx context.Context, addr uint64) error {
	return a.Target.Jump(ctx, addr)
}

// LoadProgram loads an ELF image and returns its entry point. An empty
// path stands for the +loadmem image. With +loadmem the image is written
// through the backdoor at raw addresses.
func (a *Adapter) LoadProgram(ctx context.Context, path string) (uint64, error) {
	if path == "" {
		path = a.Options.LoadMem
	}
	if a.Options.HasLoadMem() {
		if a.Backdoor == nil {
			return 0, ErrNoBackdoor
		}
		a.loadmem = true
		defer func() { a.loadmem = false }()
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return tsi.LoadELF(ctx, a, f)
}
