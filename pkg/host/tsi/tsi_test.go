package tsi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/bebe.go/pkg/bebe/sim"
	"github.com/robotalks/bebe.go/pkg/host/client"
)

func nockedBase(t *testing.T) (*sim.Machine, *Base) {
	m := sim.NewMachine()
	m.Start()
	c := client.New(m.UART)
	c.Timeout = 2 * time.Second
	require.NoError(t, c.Nock(context.Background()))
	return m, NewBase(c)
}

func TestBaseChunks(t *testing.T) {
	m, b := nockedBase(t)
	defer m.Close()
	b.ChunkSize = 16
	ctx := context.Background()

	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i * 7)
	}
	require.NoError(t, b.WriteChunk(ctx, 0x80000003, data))
	mem := make([]byte, len(data))
	m.Memory.Read(0x80000003, mem)
	require.Equal(t, data, mem)

	buf := make([]byte, len(data))
	require.NoError(t, b.ReadChunk(ctx, 0x80000003, buf))
	require.Equal(t, data, buf)
}

func TestBaseWords(t *testing.T) {
	m, b := nockedBase(t)
	defer m.Close()
	ctx := context.Background()
	require.NoError(t, b.WriteWord(ctx, 0x80000000, 0x11223344))
	require.Equal(t, uint32(0x11223344), m.Memory.Load32(0x80000000))
	v, err := b.ReadWord(ctx, 0x80000000)
	require.NoError(t, err)
	require.Equal(t, uint32(0x11223344), v)
}

func TestBaseReset(t *testing.T) {
	m, b := nockedBase(t)
	defer m.Close()
	require.NoError(t, b.Reset(context.Background()))
	require.Equal(t, uint32(1), m.Memory.Load32(MSIPBase))
}

func TestBaseJump(t *testing.T) {
	m, b := nockedBase(t)
	defer m.Close()
	require.NoError(t, b.Jump(context.Background(), 0x80000000))
	require.Equal(t, uint64(0x80000000), <-m.Jumped())
}
