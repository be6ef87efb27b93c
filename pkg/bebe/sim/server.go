package sim

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/bebe.go/pkg/framework"
)

// Server exposes the host side of a UART to one TCP client at a time. A
// new client replaces the previous one. Output with no client attached is
// dropped so the target never stalls on a full TX FIFO.
type Server struct {
	UART     io.ReadWriter
	Listener net.Listener

	lock sync.Mutex
	conn net.Conn
}

// NewServer creates a Server.
func NewServer(uart io.ReadWriter, l net.Listener) *Server {
	return &Server{UART: uart, Listener: l}
}

// Name implements fx.Named.
func (s *Server) Name() string {
	return "uart@" + s.Listener.Addr().String()
}

// Run implements fx.Runnable.
func (s *Server) Run(ctx context.Context) error {
	go s.pumpOutput()
	return fx.RunWithContextCloser(ctx, s.Listener, func() error {
		defer s.attach(nil)
		for {
			conn, err := s.Listener.Accept()
			if err != nil {
				return err
			}
			glog.Infof("client %s attached", conn.RemoteAddr())
			s.attach(conn)
			go s.pumpInput(conn)
		}
	})
}

func (s *Server) attach(conn net.Conn) {
	s.lock.Lock()
	prev := s.conn
	s.conn = conn
	s.lock.Unlock()
	if prev != nil {
		prev.Close()
	}
}

func (s *Server) detach(conn net.Conn) {
	s.lock.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.lock.Unlock()
	conn.Close()
}

func (s *Server) current() net.Conn {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.conn
}

func (s *Server) pumpInput(conn net.Conn) {
	defer s.detach(conn)
	n, err := io.Copy(s.UART, conn)
	glog.Infof("client %s detached after %d bytes: %v", conn.RemoteAddr(), n, err)
}

func (s *Server) pumpOutput() {
	buf := make([]byte, 256)
	for {
		n, err := s.UART.Read(buf)
		if n > 0 {
			if conn := s.current(); conn != nil {
				if _, werr := conn.Write(buf[:n]); werr != nil {
					glog.V(2).Infof("write client: %v", werr)
					s.detach(conn)
				}
			} else {
				glog.V(3).Infof("drop %d bytes", n)
			}
		}
		if err != nil {
			return
		}
	}
}
