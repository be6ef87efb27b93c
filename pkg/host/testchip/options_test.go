package testchip

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		loadmem bool
		opts    Options
	}{
		{
			name: "defaults",
		},
		{
			name: "all",
			args: []string{
				"+loadmem=prog.elf",
				"+init_write=0x10000000:0x1",
				"+init_read=0x10000004",
				"+init_write=0x2000:0xdeadbeef",
				"+no_hart0_msip",
				"+coh_base=0x80000000",
				"+coh_size=0x1000",
				"+coh_offset=0x100000000",
			},
			loadmem: true,
			opts: Options{
				LoadMem: "prog.elf",
				Init: []InitAccess{
					{Store: true, Addr: 0x10000000, Value: 1},
					{Addr: 0x10000004},
					{Store: true, Addr: 0x2000, Value: 0xdeadbeef},
				},
				NoHart0MSIP: true,
				CohBase:     0x80000000,
				CohSize:     0x1000,
				CohOffset:   0x100000000,
			},
		},
		{
			name: "loadmem not supported",
			args: []string{"+loadmem=prog.elf"},
		},
		{
			name: "unknown and non-hex ignored",
			args: []string{"+verbose", "prog.elf", "+init_write=16:0x1", "+max-cycles=100"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			opts, err := ParseArgs(test.args, test.loadmem)
			require.NoError(t, err)
			require.Equal(t, test.opts, *opts)
		})
	}
}

func TestParseArgsErrors(t *testing.T) {
	_, err := ParseArgs([]string{"+init_read=0x10", "+init_write=0x10000000=0x1"}, false)
	require.True(t, errors.Is(err, ErrMalformedArg))
	var argErr *ArgError
	require.True(t, errors.As(err, &argErr))
	require.Equal(t, "+init_write=0x10000000=0x1", argErr.Arg)

	for _, arg := range []string{
		"+init_write=0xzz:0x1",
		"+init_write=0x10:0x100000000",
		"+init_read=0x",
		"+coh_base=0xg",
	} {
		_, err := ParseArgs([]string{arg}, false)
		require.Error(t, err, arg)
		require.False(t, errors.Is(err, ErrMalformedArg), arg)
	}
}

func TestRemap(t *testing.T) {
	opts := Options{CohBase: 0x80000000, CohSize: 0x1000, CohOffset: 0x1000000}
	require.Equal(t, uint64(0x7ffffffc), opts.Remap(0x7ffffffc))
	require.Equal(t, uint64(0x81000000), opts.Remap(0x80000000))
	require.Equal(t, uint64(0x81000fff), opts.Remap(0x80000fff))
	require.Equal(t, uint64(0x80001000), opts.Remap(0x80001000))

	var none Options
	require.Equal(t, uint64(0), none.Remap(0))
	require.False(t, none.Coherent(0))
}

const testConfig = `
loadmem = "boot.elf"
coh_base = 0x80000000
coh_size = 0x1000

[[init]]
op = "write"
addr = 0x10000000
value = 0x1

[[init]]
op = "read"
addr = 0x10000004
`

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "adapter.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, testConfig)
	opts, err := LoadConfigFile(path, true)
	require.NoError(t, err)
	require.NoError(t, opts.ParseArgs([]string{"+init_write=0x20:0x2", "+no_hart0_msip"}, true))
	require.Equal(t, Options{
		LoadMem: "boot.elf",
		Init: []InitAccess{
			{Store: true, Addr: 0x10000000, Value: 1},
			{Addr: 0x10000004},
			{Store: true, Addr: 0x20, Value: 2},
		},
		NoHart0MSIP: true,
		CohBase:     0x80000000,
		CohSize:     0x1000,
	}, *opts)

	opts, err = LoadConfigFile(path, false)
	require.NoError(t, err)
	require.False(t, opts.HasLoadMem())
}

func TestLoadConfigFileErrors(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.toml"), false)
	require.Error(t, err)

	_, err = LoadConfigFile(writeConfig(t, "[[init]]\nop = \"poke\"\naddr = 1\n"), false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "poke")

	_, err = LoadConfigFile(writeConfig(t, "coh_base = \"x\"\n"), false)
	require.Error(t, err)
}
