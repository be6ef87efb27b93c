// Package bebe provides the BEBE boot-time debug protocol support.
package bebe

// BEBE is spoken between a boot agent running on a target with no operating
// system and a host attached to the target's UART. The host gets raw access
// to the target's physical address space: it can read memory, write memory
// and transfer control to an address.
//
// The protocol has two phases. While unlocked ("nocking"), the target keeps
// sending Probe and echoes every byte it receives; it watches the last 8
// received bytes for Magic and answers a single Ack once they match. Any
// leading garbage is pushed out of the window by later bytes, so the host can
// attach at any time.
//
// Once unlocked, the target reads one opcode byte at a time and executes it.
// All numeric fields are big-endian. There is no framing beyond fixed field
// positions, and no checksum: the transport is trusted.
//
// Producer: boot agent (target)
// Consumer: host tooling
