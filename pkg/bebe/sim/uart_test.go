package sim

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/bebe.go/pkg/bebe/uart"
)

func TestUARTDisabled(t *testing.T) {
	u := NewUART()
	u.Write([]byte{1})
	require.Equal(t, uart.RxEmpty, u.Load(uart.RegRxData))
	u.Store(uart.RegTxData, 'A')
	require.Zero(t, u.Load(uart.RegTxData))

	u.Store(uart.RegRxCtrl, uart.CtrlEnable)
	require.Equal(t, uint32(1), u.Load(uart.RegRxData))
	require.Equal(t, uart.RxEmpty, u.Load(uart.RegRxData))
}

func TestUARTTransmit(t *testing.T) {
	u := NewUART()
	u.Store(uart.RegTxCtrl, uart.CtrlEnable)
	u.Store(uart.RegDiv, 0x1b1)
	require.Equal(t, uint32(0x1b1), u.Load(uart.RegDiv))
	require.Equal(t, uint32(0x1b1), u.Divisor())
	require.Equal(t, uart.CtrlEnable, u.Load(uart.RegTxCtrl))

	for i := 0; i < TxDepth; i++ {
		require.Zero(t, u.Load(uart.RegTxData))
		u.Store(uart.RegTxData, uint32('0'+i))
	}
	require.Equal(t, uart.TxFull, u.Load(uart.RegTxData))
	// dropped on overrun
	u.Store(uart.RegTxData, 'X')

	buf := make([]byte, 16)
	n, err := u.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "01234567", string(buf[:n]))
	require.Zero(t, u.Load(uart.RegTxData))
}

func TestUARTReceive(t *testing.T) {
	u := NewUART()
	u.Store(uart.RegRxCtrl, uart.CtrlEnable)
	n, err := u.Write([]byte("hi"))
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 2, u.Buffered())
	p := uart.New(u.regs())
	require.Equal(t, byte('h'), p.Receive())
	b, ok := p.TryReceive()
	require.True(t, ok)
	require.Equal(t, byte('i'), b)
	_, ok = p.TryReceive()
	require.False(t, ok)
}

func TestUARTClose(t *testing.T) {
	u := NewUART()
	require.NoError(t, u.Close())
	_, err := u.Write([]byte{1})
	require.Equal(t, io.ErrClosedPipe, err)
	_, err = u.Read(make([]byte, 1))
	require.Equal(t, io.EOF, err)

	returned := false
	done := make(chan struct{})
	go func() {
		defer close(done)
		u.Load(uart.RegRxData)
		returned = true
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
	require.False(t, returned)
}

// regs adapts the UART to hw.Registers for tests.
func (u *UART) regs() *testRegs {
	return &testRegs{u}
}

type testRegs struct {
	*UART
}

func (r *testRegs) Fence() {}
