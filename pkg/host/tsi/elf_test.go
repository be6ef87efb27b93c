package tsi

import (
	"bytes"
	"context"
	"debug/elf"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/bebe.go/pkg/bebe/sim"
)

type segment struct {
	addr  uint64
	data  []byte
	memsz uint64
	typ   elf.ProgType
}

func buildELF(t *testing.T, entry uint64, segs ...segment) []byte {
	const ehsize, phentsize = 64, 56
	hdr := elf.Header64{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_RISCV),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     entry,
		Phoff:     ehsize,
		Ehsize:    ehsize,
		Phentsize: phentsize,
		Phnum:     uint16(len(segs)),
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &hdr))
	off := uint64(ehsize + phentsize*len(segs))
	for _, seg := range segs {
		prog := elf.Prog64{
			Type:   uint32(seg.typ),
			Flags:  uint32(elf.PF_R | elf.PF_X),
			Off:    off,
			Vaddr:  seg.addr,
			Paddr:  seg.addr,
			Filesz: uint64(len(seg.data)),
			Memsz:  seg.memsz,
			Align:  4,
		}
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, &prog))
		off += uint64(len(seg.data))
	}
	for _, seg := range segs {
		buf.Write(seg.data)
	}
	return buf.Bytes()
}

// memTarget is a Target straight on simulated memory.
type memTarget struct {
	Base
	mem *sim.Memory
}

func (m *memTarget) WriteChunk(ctx context.Context, addr uint64, data []byte) error {
	return m.mem.LoadMemWrite(addr, data)
}

func TestLoadELF(t *testing.T) {
	mem := sim.NewMemory()
	mem.Write(0x80001000, bytes.Repeat([]byte{0xff}, 32))
	image := buildELF(t, 0x80000000,
		segment{addr: 0x80000000, data: []byte{0x13, 0, 0, 0, 0x6f, 0, 0, 0}, memsz: 8, typ: elf.PT_LOAD},
		segment{addr: 0x90000000, data: []byte{1, 2, 3}, memsz: 3, typ: elf.PT_NOTE},
		segment{addr: 0x80001000, data: []byte{0xaa, 0xbb}, memsz: 16, typ: elf.PT_LOAD},
	)
	entry, err := LoadELF(context.Background(), &memTarget{mem: mem}, bytes.NewReader(image))
	require.NoError(t, err)
	require.Equal(t, uint64(0x80000000), entry)

	text := make([]byte, 8)
	mem.Read(0x80000000, text)
	require.Equal(t, []byte{0x13, 0, 0, 0, 0x6f, 0, 0, 0}, text)

	data := make([]byte, 32)
	mem.Read(0x80001000, data)
	expected := append([]byte{0xaa, 0xbb}, make([]byte, 14)...)
	expected = append(expected, bytes.Repeat([]byte{0xff}, 16)...)
	require.Equal(t, expected, data)

	require.Zero(t, mem.Load8(0x90000000))
}

func TestLoadELFBadImage(t *testing.T) {
	_, err := LoadELF(context.Background(), &memTarget{mem: sim.NewMemory()}, bytes.NewReader([]byte("not an elf")))
	require.Error(t, err)

	image := buildELF(t, 0, segment{addr: 0x1000, data: []byte{1, 2, 3, 4}, memsz: 2, typ: elf.PT_LOAD})
	_, err = LoadELF(context.Background(), &memTarget{mem: sim.NewMemory()}, bytes.NewReader(image))
	require.Error(t, err)
}
