package comm

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/bebe.go/pkg/framework"
	"github.com/robotalks/bebe.go/pkg/remote"
	"github.com/robotalks/bebe.go/pkg/remote/msgs"
)

// pipeCloser is shared by both ends: closing either end closes the pipe.
type pipeCloser struct {
	ch   chan struct{}
	once sync.Once
}

func (p *pipeCloser) close() {
	p.once.Do(func() { close(p.ch) })
}

type chanPacketRW struct {
	readCh  <-chan []byte
	writeCh chan<- []byte
	closer  *pipeCloser
}

func packetPipe() (*chanPacketRW, *chanPacketRW) {
	a2b, b2a := make(chan []byte, 16), make(chan []byte, 16)
	closer := &pipeCloser{ch: make(chan struct{})}
	return &chanPacketRW{readCh: b2a, writeCh: a2b, closer: closer},
		&chanPacketRW{readCh: a2b, writeCh: b2a, closer: closer}
}

func (c *chanPacketRW) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-c.readCh:
		return pkt, nil
	case <-c.closer.ch:
		return nil, io.EOF
	}
}

func (c *chanPacketRW) WritePacket(pkt []byte) error {
	select {
	case c.writeCh <- pkt:
		return nil
	case <-c.closer.ch:
		return io.ErrClosedPipe
	}
}

func (c *chanPacketRW) Close() error {
	c.closer.close()
	return nil
}

func TestPacketPipeCloseBothEnds(t *testing.T) {
	a, b := packetPipe()
	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
	_, err := b.ReadPacket()
	require.Equal(t, io.EOF, err)
	require.Equal(t, io.ErrClosedPipe, a.WritePacket([]byte{1}))
}

func runConnServer(t *testing.T, handler remote.CommandHandler) (*Conn, *Server, func()) {
	connRW, serverRW := packetPipe()
	conn, server := NewConn(connRW), NewServer(serverRW, handler)
	ctx, cancel := context.WithCancel(context.Background())
	runner := fx.NewRunnerWith(ctx).Go(conn, server)
	return conn, server, func() {
		cancel()
		runner.Wait()
	}
}

func TestConnServer(t *testing.T) {
	failure := errors.New("failure")
	handler := remote.HandleCommandFunc(func(ctx context.Context, msg fx.Message) (fx.Message, error) {
		switch m := msg.(type) {
		case *msgs.MemRead:
			return msgs.NewMemData(m.Addr, make([]byte, m.Size)), nil
		case *msgs.Jump:
			return nil, nil
		case *msgs.Reset:
			return nil, failure
		}
		return nil, msgs.ErrUnsupportedCommand
	})
	conn, _, stop := runConnServer(t, handler)
	defer stop()
	ctx := context.Background()

	reply, err := remote.Wait(ctx, conn.DoCommand(msgs.NewMemRead(0x1000, 3)))
	require.NoError(t, err)
	require.Equal(t, msgs.NewMemData(0x1000, []byte{0, 0, 0}).MemData, reply.(*msgs.MemData).MemData)

	reply, err = remote.Wait(ctx, conn.DoCommand(msgs.NewJump(0x1000)))
	require.NoError(t, err)
	require.IsType(t, &msgs.CommandOK{}, reply)

	_, err = remote.Wait(ctx, conn.DoCommand(&msgs.Reset{}))
	require.Error(t, err)
	require.Equal(t, "failure", err.Error())

	_, err = remote.Wait(ctx, conn.DoCommand(&msgs.Nock{}))
	require.Equal(t, msgs.ErrUnsupportedCommand.Error(), err.Error())
}

func TestConnEvents(t *testing.T) {
	conn, server, stop := runConnServer(t, nil)
	defer stop()
	eventCh := make(chan fx.Message, 1)
	conn.EventHandler = func(msg fx.Message) { eventCh <- msg }
	require.NoError(t, server.SendEvent(context.Background(), msgs.NewTargetState("nocked", 0)))
	select {
	case msg := <-eventCh:
		require.Equal(t, "nocked", msg.(*msgs.TargetState).State)
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
	require.Error(t, server.SendEvent(context.Background(), msgs.NewCommandOK()))
}

func TestConnExpiration(t *testing.T) {
	connRW, _ := packetPipe()
	conn := NewConn(connRW)
	conn.Expiration = 20 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go conn.Run(ctx)
	_, err := remote.Wait(context.Background(), conn.DoCommand(msgs.NewJump(0)))
	require.Equal(t, context.DeadlineExceeded, err)
}

func TestConnClose(t *testing.T) {
	connRW, _ := packetPipe()
	conn := NewConn(connRW)
	done := make(chan error, 1)
	go func() { done <- conn.Run(context.Background()) }()
	f := conn.DoCommand(msgs.NewJump(0))
	require.NoError(t, conn.Close())
	require.Equal(t, io.EOF, <-done)
	_, err := remote.Wait(context.Background(), f)
	require.Equal(t, remote.ErrClosed, err)
	_, err = remote.Wait(context.Background(), conn.DoCommand(msgs.NewJump(0)))
	require.Equal(t, remote.ErrClosed, err)
}

func TestServerSet(t *testing.T) {
	var set ServerSet
	var mux RegistrarMux
	mux.Add(&set)
	connRW, serverRW := packetPipe()
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- set.Serve(ctx, serverRW, nil) }()
	for deadline := time.Now().Add(time.Second); set.Len() == 0; {
		require.True(t, time.Now().Before(deadline), "server not added")
		time.Sleep(time.Millisecond)
	}

	require.NoError(t, mux.SendEvent(ctx, msgs.NewTargetState("released", 0x80000000)))
	pkt, err := connRW.ReadPacket()
	require.NoError(t, err)
	typed, err := msgs.DecodeTyped(pkt)
	require.NoError(t, err)
	require.Equal(t, msgs.TargetStateTypeID, typed.TypeId)

	cancel()
	<-served
	require.Equal(t, 0, set.Len())
}

func TestPipeUndecodableCommand(t *testing.T) {
	connRW, serverRW := packetPipe()
	server := NewServer(serverRW, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Run(ctx)

	typed := &msgs.Typed{}
	typed.TypeId = msgs.GroupCustom | 1
	typed.Sequence = 3
	require.NoError(t, NewPipe(connRW).SendTyped(typed))
	require.NoError(t, connRW.WritePacket([]byte{0xff, 0xff, 0xff}))
	pkt, err := connRW.ReadPacket()
	require.NoError(t, err)
	reply, err := msgs.DecodeTyped(pkt)
	require.NoError(t, err)
	require.Equal(t, msgs.CommandErrTypeID, reply.TypeId)
	require.Equal(t, uint32(3), reply.Sequence)
}
