package testchip

import (
	"bytes"
	"context"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/bebe.go/pkg/bebe/sim"
	"github.com/robotalks/bebe.go/pkg/host/tsi"
)

type recordTarget struct {
	ops   []string
	words map[uint64]uint32
}

func (r *recordTarget) record(format string, args ...interface{}) {
	r.ops = append(r.ops, fmt.Sprintf(format, args...))
}

func (r *recordTarget) ReadChunk(ctx context.Context, addr uint64, buf []byte) error {
	r.record("read %#x/%d", addr, len(buf))
	return nil
}

func (r *recordTarget) WriteChunk(ctx context.Context, addr uint64, data []byte) error {
	r.record("write %#x/%d", addr, len(data))
	return nil
}

func (r *recordTarget) ReadWord(ctx context.Context, addr uint64) (uint32, error) {
	r.record("read32 %#x", addr)
	return r.words[addr], nil
}

func (r *recordTarget) WriteWord(ctx context.Context, addr uint64, val uint32) error {
	r.record("write32 %#x=%#x", addr, val)
	return nil
}

func (r *recordTarget) Reset(ctx context.Context) error {
	r.record("reset")
	return nil
}

func (r *recordTarget) Jump(ctx context.Context, addr uint64) error {
	r.record("jump %#x", addr)
	return nil
}

var _ tsi.Target = &Adapter{}

func TestAdapterRemap(t *testing.T) {
	target := &recordTarget{}
	a := NewAdapter(target, &Options{CohBase: 0x80000000, CohSize: 0x1000, CohOffset: 0x10000000}, nil)
	ctx := context.Background()
	require.NoError(t, a.WriteChunk(ctx, 0x80000010, make([]byte, 8)))
	require.NoError(t, a.ReadChunk(ctx, 0x80001000, make([]byte, 4)))
	require.NoError(t, a.WriteWord(ctx, 0x80000ffc, 7))
	_, err := a.ReadWord(ctx, 0x10)
	require.NoError(t, err)
	require.NoError(t, a.Jump(ctx, 0x80000000))
	require.Equal(t, []string{
		"write 0x90000010/8",
		"read 0x80001000/4",
		"write32 0x90000ffc=0x7",
		"read32 0x10",
		"jump 0x80000000",
	}, target.ops)
}

func TestAdapterReset(t *testing.T) {
	opts, err := ParseArgs([]string{
		"+init_write=0x100:0x1",
		"+init_read=0x104",
		"+init_write=0x80000000:0x2",
		"+coh_base=0x80000000",
		"+coh_size=0x10",
		"+coh_offset=0x1000",
	}, false)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("with msip", func(t *testing.T) {
		target := &recordTarget{words: map[uint64]uint32{0x104: 0x55}}
		require.NoError(t, NewAdapter(target, opts, nil).Reset(ctx))
		require.Equal(t, []string{
			"write32 0x100=0x1",
			"read32 0x104",
			"write32 0x80001000=0x2",
			"reset",
		}, target.ops)
	})

	t.Run("no msip", func(t *testing.T) {
		noMSIP := *opts
		noMSIP.NoHart0MSIP = true
		target := &recordTarget{}
		require.NoError(t, NewAdapter(target, &noMSIP, nil).Reset(ctx))
		require.Equal(t, []string{
			"write32 0x100=0x1",
			"read32 0x104",
			"write32 0x80001000=0x2",
		}, target.ops)
	})

	t.Run("nothing", func(t *testing.T) {
		target := &recordTarget{}
		require.NoError(t, NewAdapter(target, nil, nil).Reset(ctx))
		require.Equal(t, []string{"reset"}, target.ops)
	})
}

func writeELF(t *testing.T, entry, addr uint64, data []byte) string {
	const ehsize, phentsize = 64, 56
	hdr := elf.Header64{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_RISCV),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     entry,
		Phoff:     ehsize,
		Ehsize:    ehsize,
		Phentsize: phentsize,
		Phnum:     1,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	prog := elf.Prog64{
		Type:   uint32(elf.PT_LOAD),
		Off:    ehsize + phentsize,
		Vaddr:  addr,
		Paddr:  addr,
		Filesz: uint64(len(data)),
		Memsz:  uint64(len(data)),
	}
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &hdr))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &prog))
	buf.Write(data)
	path := filepath.Join(t.TempDir(), "prog.elf")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func TestAdapterLoadMem(t *testing.T) {
	path := writeELF(t, 0x80000000, 0x80000000, []byte{1, 2, 3, 4, 5, 6})
	opts, err := ParseArgs([]string{
		"+loadmem=" + path,
		"+coh_base=0x80000000",
		"+coh_size=0x1000",
		"+coh_offset=0x1000",
		"+init_write=0x80000000:0x11223344",
	}, true)
	require.NoError(t, err)
	mem := sim.NewMemory()
	target := &recordTarget{}
	a := NewAdapter(target, opts, mem)
	ctx := context.Background()

	entry, err := a.LoadProgram(ctx, "")
	require.NoError(t, err)
	require.Equal(t, uint64(0x80000000), entry)
	// raw addresses through the backdoor, nothing on the target.
	loaded := make([]byte, 6)
	mem.Read(0x80000000, loaded)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6}, loaded)
	require.Empty(t, target.ops)

	// out of loading, accesses are remapped to the target again.
	require.NoError(t, a.Reset(ctx))
	require.Equal(t, []string{"write32 0x80001000=0x11223344", "reset"}, target.ops)
}

func TestAdapterLoadProgram(t *testing.T) {
	path := writeELF(t, 0x80000004, 0x80000000, []byte{1, 2, 3, 4})
	target := &recordTarget{}
	a := NewAdapter(target, &Options{CohBase: 0x80000000, CohSize: 0x1000, CohOffset: 0x1000}, nil)
	entry, err := a.LoadProgram(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, uint64(0x80000004), entry)
	require.Equal(t, []string{"write 0x80001000/4"}, target.ops)

	a = NewAdapter(target, &Options{LoadMem: path}, nil)
	_, err = a.LoadProgram(context.Background(), "")
	require.Equal(t, ErrNoBackdoor, err)

	_, err = NewAdapter(target, nil, nil).LoadProgram(context.Background(), filepath.Join(t.TempDir(), "none.elf"))
	require.Error(t, err)
}

func TestAdapterBackdoorWords(t *testing.T) {
	mem := sim.NewMemory()
	a := NewAdapter(&recordTarget{}, &Options{}, mem)
	a.loadmem = true
	ctx := context.Background()
	require.NoError(t, a.WriteWord(ctx, 0x100, 0xa1b2c3d4))
	require.Equal(t, uint32(0xa1b2c3d4), mem.Load32(0x100))
	v, err := a.ReadWord(ctx, 0x100)
	require.NoError(t, err)
	require.Equal(t, uint32(0xa1b2c3d4), v)
}
