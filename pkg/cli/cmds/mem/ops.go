// Package mem exposes target memory and control commands in the shell.
package mem

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/robotalks/bebe.go/pkg/host/tsi"
)

// DefaultReadSize is the byte count of read without a length.
const DefaultReadSize = 16

// ParseNumber parses decimal, 0x hex, 0o octal or 0b binary.
func ParseNumber(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 0, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

// ParseBytes decodes hex strings, optionally 0x prefixed, into bytes in
// argument order.
func ParseBytes(args []string) ([]byte, error) {
	var data []byte
	for _, arg := range args {
		s := strings.TrimPrefix(strings.TrimPrefix(arg, "0x"), "0X")
		if len(s)%2 != 0 {
			s = "0" + s
		}
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid bytes %q", arg)
		}
		data = append(data, b...)
	}
	return data, nil
}

// HexDump formats data at addr, 16 bytes per line.
func HexDump(addr uint64, data []byte) string {
	var w bytes.Buffer
	for off := 0; off < len(data); off += 16 {
		end := off + 16
		if end > len(data) {
			end = len(data)
		}
		fmt.Fprintf(&w, "%016x:", addr+uint64(off))
		for _, b := range data[off:end] {
			fmt.Fprintf(&w, " %02x", b)
		}
		if end < len(data) {
			w.WriteByte('\n')
		}
	}
	return w.String()
}

// MemData is the JSON form of memory contents.
type MemData struct {
	Addr uint64 `json:"addr"`
	Data string `json:"data"`
}

// Read reads size bytes at addr.
func Read(ctx context.Context, t tsi.Target, addr uint64, size uint32) (*MemData, error) {
	buf := make([]byte, size)
	if err := t.ReadChunk(ctx, addr, buf); err != nil {
		return nil, err
	}
	return &MemData{Addr: addr, Data: hex.EncodeToString(buf)}, nil
}

// LoadFile writes the ELF image at path into t.
func LoadFile(ctx context.Context, t tsi.Target, path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return tsi.LoadELF(ctx, t, f)
}

// Boot loads the ELF image at path and jumps to its entry.
func Boot(ctx context.Context, t tsi.Target, path string) (uint64, error) {
	entry, err := LoadFile(ctx, t, path)
	if err != nil {
		return 0, err
	}
	return entry, t.Jump(ctx, entry)
}
