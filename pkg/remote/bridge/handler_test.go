package bridge

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/bebe.go/pkg/framework"
	"github.com/robotalks/bebe.go/pkg/bebe/sim"
	"github.com/robotalks/bebe.go/pkg/host/client"
	"github.com/robotalks/bebe.go/pkg/host/tsi"
	"github.com/robotalks/bebe.go/pkg/remote/comm"
	"github.com/robotalks/bebe.go/pkg/remote/comm/stream"
	"github.com/robotalks/bebe.go/pkg/remote/msgs"
)

type bridgeEnv struct {
	machine *sim.Machine
	target  *comm.TargetConn
	events  chan *msgs.TargetState
	stop    func()
}

func newBridgeEnv(t *testing.T) *bridgeEnv {
	m := sim.NewMachine()
	m.Start()
	c := client.New(m.UART)
	c.Timeout = 2 * time.Second

	h := NewHandler(tsi.NewBase(c))
	h.Nocker = c
	connSide, serverSide := net.Pipe()
	server := comm.NewServer(stream.New(serverSide), h)
	h.Events = server
	conn := comm.NewConn(stream.New(connSide))
	env := &bridgeEnv{
		machine: m,
		target:  comm.NewTargetConn(conn),
		events:  make(chan *msgs.TargetState, 4),
	}
	conn.EventHandler = func(msg fx.Message) {
		if state, ok := msg.(*msgs.TargetState); ok {
			env.events <- state
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	runner := fx.NewRunnerWith(ctx).Go(conn, server)
	env.stop = func() {
		cancel()
		runner.Wait()
		m.Close()
	}
	return env
}

func (e *bridgeEnv) event(t *testing.T) *msgs.TargetState {
	select {
	case state := <-e.events:
		return state
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
	}
	return nil
}

var _ tsi.Target = &comm.TargetConn{}

func TestBridgeSession(t *testing.T) {
	env := newBridgeEnv(t)
	defer env.stop()
	ctx := context.Background()

	require.Equal(t, client.ErrNotNocked.Error(), env.target.WriteChunk(ctx, 0x80000000, []byte{1}).Error())

	require.NoError(t, env.target.Nock(ctx))
	require.Equal(t, StateNocked, env.event(t).State)

	data := []byte("hello, target")
	require.NoError(t, env.target.WriteChunk(ctx, 0x80000000, data))
	buf := make([]byte, len(data))
	require.NoError(t, env.target.ReadChunk(ctx, 0x80000000, buf))
	require.Equal(t, data, buf)

	require.NoError(t, env.target.WriteWord(ctx, 0x80000100, 0xcafef00d))
	require.Equal(t, uint32(0xcafef00d), env.machine.Memory.Load32(0x80000100))
	val, err := env.target.ReadWord(ctx, 0x80000100)
	require.NoError(t, err)
	require.Equal(t, uint32(0xcafef00d), val)

	require.NoError(t, env.target.Reset(ctx))
	require.Equal(t, StateReset, env.event(t).State)
	require.Equal(t, uint32(1), env.machine.Memory.Load32(tsi.MSIPBase))

	require.NoError(t, env.target.Jump(ctx, 0x80000000))
	state := env.event(t)
	require.Equal(t, StateReleased, state.State)
	require.Equal(t, uint64(0x80000000), state.Addr)
	require.Equal(t, uint64(0x80000000), <-env.machine.Jumped())
}

func TestHandlerErrors(t *testing.T) {
	h := NewHandler(nil)
	ctx := context.Background()
	_, err := h.HandleCommand(ctx, &msgs.Nock{})
	require.Equal(t, msgs.ErrUnsupportedCommand, err)
	_, err = h.HandleCommand(ctx, msgs.NewCommandOK())
	require.Equal(t, msgs.ErrUnsupportedCommand, err)
	_, err = h.HandleCommand(ctx, msgs.NewMemRead(0, MaxReadSize+1))
	require.Error(t, err)
	bad := msgs.NewMemWrite(0, []byte{1, 2})
	bad.Word = true
	_, err = h.HandleCommand(ctx, bad)
	require.Equal(t, ErrBadWordWrite, err)
}

func TestBridgeLargeChunk(t *testing.T) {
	env := newBridgeEnv(t)
	defer env.stop()
	ctx := context.Background()
	require.NoError(t, env.target.Nock(ctx))

	data := make([]byte, 2*MaxReadSize+123)
	for i := range data {
		data[i] = byte(i * 7)
	}
	require.NoError(t, env.target.WriteChunk(ctx, 0x80000000, data))
	require.Equal(t, data[len(data)-1], env.machine.Memory.Load8(0x80000000+uint64(len(data)-1)))
	buf := make([]byte, len(data))
	require.NoError(t, env.target.ReadChunk(ctx, 0x80000000, buf))
	require.Equal(t, data, buf)
}
