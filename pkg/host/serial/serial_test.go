package serial

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/jacobsa/go-serial/serial"
	"github.com/stretchr/testify/require"
)

func TestPortOptions(t *testing.T) {
	opts := PortOptions("/dev/ttyUSB1", 0)
	require.Equal(t, "/dev/ttyUSB1", opts.PortName)
	require.Equal(t, uint(DefaultBaudRate), opts.BaudRate)
	require.Equal(t, uint(8), opts.DataBits)
	require.Equal(t, uint(1), opts.StopBits)
	require.Equal(t, serial.PARITY_NONE, opts.ParityMode)
	require.Equal(t, uint(921600), PortOptions("/dev/ttyUSB1", 921600).BaudRate)
}

func TestOpenTCP(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	go func() {
		conn, err := l.Accept()
		if err == nil {
			conn.Write([]byte{'A'})
			conn.Close()
		}
	}()
	rw, err := Open(TCPScheme+l.Addr().String(), 0)
	require.NoError(t, err)
	defer rw.Close()
	buf := make([]byte, 1)
	_, err = rw.Read(buf)
	require.NoError(t, err)
	require.Equal(t, byte('A'), buf[0])
}

func TestOpenMissingDevice(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "ttyNONE"), 0)
	require.Error(t, err)
}
