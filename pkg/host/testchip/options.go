package testchip

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrMalformedArg indicates an init store without the ":0x" separator.
var ErrMalformedArg = errors.New("improperly formatted +init_write argument")

// ArgError reports the argument that failed to parse.
type ArgError struct {
	Arg string
	Err error
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("%s: %v", e.Arg, e.Err)
}

// Unwrap returns the cause.
func (e *ArgError) Unwrap() error {
	return e.Err
}

// InitAccess is a scripted access issued at reset.
type InitAccess struct {
	Store bool
	Addr  uint64
	Value uint32
}

func (a InitAccess) String() string {
	if a.Store {
		return fmt.Sprintf("write %#x=%#x", a.Addr, a.Value)
	}
	return fmt.Sprintf("read %#x", a.Addr)
}

// Options configures an Adapter.
type Options struct {
	// LoadMem is the image to load through the backdoor, empty if none.
	LoadMem     string
	Init        []InitAccess
	NoHart0MSIP bool
	CohBase     uint64
	CohSize     uint64
	CohOffset   uint64
}

// HasLoadMem tells if memory is loaded through the backdoor.
func (o *Options) HasLoadMem() bool {
	return o.LoadMem != ""
}

// Coherent tells if addr is in the coherent window.
func (o *Options) Coherent(addr uint64) bool {
	return addr >= o.CohBase && addr < o.CohBase+o.CohSize
}

// Remap translates addr into the coherent path.
func (o *Options) Remap(addr uint64) uint64 {
	if o.Coherent(addr) {
		return addr + o.CohOffset
	}
	return addr
}

// Plusarg prefixes.
const (
	ArgLoadMem     = "+loadmem="
	ArgInitWrite   = "+init_write=0x"
	ArgInitRead    = "+init_read=0x"
	ArgNoHart0MSIP = "+no_hart0_msip"
	ArgCohOffset   = "+coh_offset=0x"
	ArgCohBase     = "+coh_base=0x"
	ArgCohSize     = "+coh_size=0x"
)

// ParseArgs creates Options from plusargs.
func ParseArgs(args []string, canHaveLoadMem bool) (*Options, error) {
	o := &Options{}
	if err := o.ParseArgs(args, canHaveLoadMem); err != nil {
		return nil, err
	}
	return o, nil
}

// ParseArgs applies plusargs on top of o. Init accesses are appended in
// order. +loadmem is dropped unless canHaveLoadMem. Other args are
// ignored.
func (o *Options) ParseArgs(args []string, canHaveLoadMem bool) error {
	for _, arg := range args {
		var err error
		switch {
		case strings.HasPrefix(arg, ArgLoadMem):
			if canHaveLoadMem {
				o.LoadMem = arg[len(ArgLoadMem):]
			}
		case strings.HasPrefix(arg, ArgInitWrite):
			err = o.parseInitWrite(arg[len(ArgInitWrite):])
		case strings.HasPrefix(arg, ArgInitRead):
			var addr uint64
			if addr, err = parseHex(arg[len(ArgInitRead):], 64); err == nil {
				o.Init = append(o.Init, InitAccess{Addr: addr})
			}
		case strings.HasPrefix(arg, ArgNoHart0MSIP):
			o.NoHart0MSIP = true
		case strings.HasPrefix(arg, ArgCohOffset):
			o.CohOffset, err = parseHex(arg[len(ArgCohOffset):], 64)
		case strings.HasPrefix(arg, ArgCohBase):
			o.CohBase, err = parseHex(arg[len(ArgCohBase):], 64)
		case strings.HasPrefix(arg, ArgCohSize):
			o.CohSize, err = parseHex(arg[len(ArgCohSize):], 64)
		}
		if err != nil {
			return &ArgError{Arg: arg, Err: err}
		}
	}
	return nil
}

func (o *Options) parseInitWrite(s string) error {
	pos := strings.Index(s, ":0x")
	if pos < 0 {
		return ErrMalformedArg
	}
	addr, err := parseHex(s[:pos], 64)
	if err != nil {
		return err
	}
	val, err := parseHex(s[pos+3:], 32)
	if err != nil {
		return err
	}
	o.Init = append(o.Init, InitAccess{Store: true, Addr: addr, Value: uint32(val)})
	return nil
}

func parseHex(s string, bits int) (uint64, error) {
	return strconv.ParseUint(s, 16, bits)
}

type fileInit struct {
	Op    string `toml:"op"`
	Addr  uint64 `toml:"addr"`
	Value uint32 `toml:"value"`
}

type fileConfig struct {
	LoadMem     string     `toml:"loadmem"`
	NoHart0MSIP bool       `toml:"no_hart0_msip"`
	CohBase     uint64     `toml:"coh_base"`
	CohSize     uint64     `toml:"coh_size"`
	CohOffset   uint64     `toml:"coh_offset"`
	Init        []fileInit `toml:"init"`
}

// LoadConfigFile creates Options from a TOML file.
func LoadConfigFile(path string, canHaveLoadMem bool) (*Options, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("load adapter config: %w", err)
	}
	o := &Options{}
	if meta.IsDefined("loadmem") && canHaveLoadMem {
		o.LoadMem = strings.TrimSpace(raw.LoadMem)
	}
	if meta.IsDefined("no_hart0_msip") {
		o.NoHart0MSIP = raw.NoHart0MSIP
	}
	if meta.IsDefined("coh_base") {
		o.CohBase = raw.CohBase
	}
	if meta.IsDefined("coh_size") {
		o.CohSize = raw.CohSize
	}
	if meta.IsDefined("coh_offset") {
		o.CohOffset = raw.CohOffset
	}
	for n, init := range raw.Init {
		switch strings.TrimSpace(init.Op) {
		case "write":
			o.Init = append(o.Init, InitAccess{Store: true, Addr: init.Addr, Value: init.Value})
		case "read":
			o.Init = append(o.Init, InitAccess{Addr: init.Addr})
		default:
			return nil, fmt.Errorf("load adapter config: init[%d]: unknown op %q", n, init.Op)
		}
	}
	return o, nil
}
