package tsi

import (
	"context"
	"debug/elf"
	"fmt"
	"io"

	"github.com/golang/glog"
)

// LoadELF writes every loadable segment of the image to t, zero filling
// the part of a segment beyond its file contents. It returns the entry
// point.
func LoadELF(ctx context.Context, t Target, r io.ReaderAt) (uint64, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return 0, fmt.Errorf("parse elf: %w", err)
	}
	defer f.Close()
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Memsz == 0 {
			continue
		}
		if prog.Filesz > prog.Memsz {
			return 0, fmt.Errorf("segment at %#x: filesz %d exceeds memsz %d", prog.Paddr, prog.Filesz, prog.Memsz)
		}
		glog.V(2).Infof("load %#x filesz=%d memsz=%d", prog.Paddr, prog.Filesz, prog.Memsz)
		data := make([]byte, prog.Memsz)
		if _, err := io.ReadFull(prog.Open(), data[:prog.Filesz]); err != nil {
			return 0, fmt.Errorf("read segment at %#x: %w", prog.Paddr, err)
		}
		if err := t.WriteChunk(ctx, prog.Paddr, data); err != nil {
			return 0, fmt.Errorf("write segment at %#x: %w", prog.Paddr, err)
		}
	}
	return f.Entry, nil
}
