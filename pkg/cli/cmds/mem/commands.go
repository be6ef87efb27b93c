package mem

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/bebe.go/pkg/cli/sh"
)

type wordValue struct {
	Addr  uint64 `json:"addr"`
	Value uint32 `json:"value"`
}

type entryPoint struct {
	Entry uint64 `json:"entry"`
}

type okResult struct {
	OK bool `json:"ok"`
}

func withTarget(fn func(ctx context.Context, c *ishell.Context, s *sh.Shell) error) func(*ishell.Context) {
	return sh.MustBeConnected(func(c *ishell.Context) {
		s := sh.ShellFrom(c)
		ctx, cancel := s.CommandContext()
		defer cancel()
		if err := fn(ctx, c, s); err != nil {
			c.Err(err)
		}
	})
}

func printOK(c *ishell.Context) {
	sh.Print(c, "OK", okResult{OK: true})
}

func addrArg(c *ishell.Context, min int) (uint64, error) {
	if len(c.Args) < min {
		return 0, fmt.Errorf("usage: %s %s", c.Cmd.Name, c.Cmd.Help)
	}
	return ParseNumber(c.Args[0], 64)
}

var (
	// NockCmd establishes the session with the agent.
	NockCmd = ishell.Cmd{
		Name: "nock",
		Help: "",
		Func: withTarget(func(ctx context.Context, c *ishell.Context, s *sh.Shell) error {
			if err := s.Session.Nock(ctx); err != nil {
				return err
			}
			printOK(c)
			return nil
		}),
	}

	// PingCmd checks the agent answers.
	PingCmd = ishell.Cmd{
		Name: "ping",
		Help: "",
		Func: withTarget(func(ctx context.Context, c *ishell.Context, s *sh.Shell) error {
			if err := s.Session.Ping(ctx); err != nil {
				return err
			}
			printOK(c)
			return nil
		}),
	}

	// ReadCmd dumps memory.
	ReadCmd = ishell.Cmd{
		Name:    "read",
		Aliases: []string{"r"},
		Help:    "ADDR [LEN]",
		Func: withTarget(func(ctx context.Context, c *ishell.Context, s *sh.Shell) error {
			addr, err := addrArg(c, 1)
			if err != nil {
				return err
			}
			size := uint64(DefaultReadSize)
			if len(c.Args) > 1 {
				if size, err = ParseNumber(c.Args[1], 32); err != nil {
					return err
				}
			}
			data, err := Read(ctx, s.Session.Target, addr, uint32(size))
			if err != nil {
				return err
			}
			raw, _ := hex.DecodeString(data.Data)
			sh.Print(c, HexDump(addr, raw), data)
			return nil
		}),
	}

	// WriteCmd writes bytes.
	WriteCmd = ishell.Cmd{
		Name:    "write",
		Aliases: []string{"w"},
		Help:    "ADDR HEX...",
		Func: withTarget(func(ctx context.Context, c *ishell.Context, s *sh.Shell) error {
			addr, err := addrArg(c, 2)
			if err != nil {
				return err
			}
			data, err := ParseBytes(c.Args[1:])
			if err != nil {
				return err
			}
			if err := s.Session.Target.WriteChunk(ctx, addr, data); err != nil {
				return err
			}
			printOK(c)
			return nil
		}),
	}

	// Read32Cmd reads a word.
	Read32Cmd = ishell.Cmd{
		Name:    "read32",
		Aliases: []string{"rw"},
		Help:    "ADDR",
		Func: withTarget(func(ctx context.Context, c *ishell.Context, s *sh.Shell) error {
			addr, err := addrArg(c, 1)
			if err != nil {
				return err
			}
			val, err := s.Session.Target.ReadWord(ctx, addr)
			if err != nil {
				return err
			}
			sh.Print(c, fmt.Sprintf("%016x: %08x", addr, val), wordValue{Addr: addr, Value: val})
			return nil
		}),
	}

	// Write32Cmd writes a word.
	Write32Cmd = ishell.Cmd{
		Name:    "write32",
		Aliases: []string{"ww"},
		Help:    "ADDR VALUE",
		Func: withTarget(func(ctx context.Context, c *ishell.Context, s *sh.Shell) error {
			addr, err := addrArg(c, 2)
			if err != nil {
				return err
			}
			val, err := ParseNumber(c.Args[1], 32)
			if err != nil {
				return err
			}
			if err := s.Session.Target.WriteWord(ctx, addr, uint32(val)); err != nil {
				return err
			}
			printOK(c)
			return nil
		}),
	}

	// JumpCmd transfers control to ADDR.
	JumpCmd = ishell.Cmd{
		Name:    "jump",
		Aliases: []string{"j"},
		Help:    "ADDR",
		Func: withTarget(func(ctx context.Context, c *ishell.Context, s *sh.Shell) error {
			addr, err := addrArg(c, 1)
			if err != nil {
				return err
			}
			if err := s.Session.Target.Jump(ctx, addr); err != nil {
				return err
			}
			printOK(c)
			return nil
		}),
	}

	// ResetCmd resets the target.
	ResetCmd = ishell.Cmd{
		Name: "reset",
		Help: "",
		Func: withTarget(func(ctx context.Context, c *ishell.Context, s *sh.Shell) error {
			if err := s.Session.Target.Reset(ctx); err != nil {
				return err
			}
			printOK(c)
			return nil
		}),
	}

	// LoadCmd writes an ELF image.
	LoadCmd = ishell.Cmd{
		Name: "load",
		Help: "FILE",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("usage: load FILE"))
				return
			}
			entry, err := LoadFile(context.Background(), sh.ShellFrom(c).Session.Target, c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			sh.Print(c, fmt.Sprintf("entry %#x", entry), entryPoint{Entry: entry})
		}),
	}

	// BootCmd loads an ELF image and jumps to its entry.
	BootCmd = ishell.Cmd{
		Name: "boot",
		Help: "FILE",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("usage: boot FILE"))
				return
			}
			entry, err := Boot(context.Background(), sh.ShellFrom(c).Session.Target, c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			sh.Print(c, fmt.Sprintf("jumped to %#x", entry), entryPoint{Entry: entry})
		}),
	}
)

func init() {
	sh.AddCmds(
		&NockCmd,
		&PingCmd,
		&ReadCmd,
		&WriteCmd,
		&Read32Cmd,
		&Write32Cmd,
		&JumpCmd,
		&ResetCmd,
		&LoadCmd,
		&BootCmd,
	)
}
