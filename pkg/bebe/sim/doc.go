// Package sim provides a simulated target for the boot agent: paged physical
// memory, a register-level UART model with the same full/empty flag
// semantics as the hardware, and a hart tying them together.
package sim
