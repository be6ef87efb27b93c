package bebe

import (
	"encoding/binary"
	"fmt"
)

// Handshake bytes.
const (
	// Probe is sent by the target on every handshake iteration.
	Probe byte = 'A'
	// Magic is the value of the 8-byte window that unlocks the target.
	// It reads "GOBEARS!" on the wire.
	Magic uint64 = 0x474f424541525321
)

// Opcode is the one-byte command tag.
type Opcode byte

// Opcodes, case-sensitive.
const (
	OpRead  Opcode = 'R'
	OpWrite Opcode = 'W'
	OpJump  Opcode = 'J'
	// OpNock is the first byte of Magic. It lets a host re-send the whole
	// magic sequence while the target is already in the command loop.
	OpNock Opcode = 'G'
)

// Response bytes.
const (
	Ack  byte = 'Y'
	Nack byte = 'N'
)

// NockTail is the number of bytes following OpNock in Magic.
const NockTail = 7

// String implements fmt.Stringer.
func (o Opcode) String() string {
	switch o {
	case OpRead:
		return "READ"
	case OpWrite:
		return "WRITE"
	case OpJump:
		return "JUMP"
	case OpNock:
		return "NOCK"
	}
	return fmt.Sprintf("UNKNOWN(%#02x)", byte(o))
}

// IsValid indicates the opcode is understood by the agent.
func (o Opcode) IsValid() bool {
	switch o {
	case OpRead, OpWrite, OpJump, OpNock:
		return true
	}
	return false
}

// MagicBytes returns Magic in wire order.
func MagicBytes() []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, Magic)
	return b
}

// IsSized reports whether a transfer of n bytes is done with a single
// sized memory access (and a big-endian value on the wire) instead of
// a byte-by-byte copy.
func IsSized(n uint32) bool {
	return n == 1 || n == 4 || n == 8
}

// AppendRead appends a READ request.
func AppendRead(b []byte, addr uint64, n uint32) []byte {
	b = append(b, byte(OpRead))
	b = appendU32(b, n)
	return appendU64(b, addr)
}

// AppendWrite appends a WRITE request including its payload.
// The payload is sent as-is; for sized transfers it must already be
// the big-endian encoding of the value.
func AppendWrite(b []byte, addr uint64, data []byte) []byte {
	b = append(b, byte(OpWrite))
	b = appendU32(b, uint32(len(data)))
	b = appendU64(b, addr)
	return append(b, data...)
}

// AppendJump appends a JUMP request.
func AppendJump(b []byte, addr uint64) []byte {
	return appendU64(append(b, byte(OpJump)), addr)
}

func appendU32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendU64(b []byte, v uint64) []byte {
	return appendU32(appendU32(b, uint32(v>>32)), uint32(v))
}
