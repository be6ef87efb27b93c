// Package websocket carries packets as websocket binary messages.
package websocket

import (
	"context"
	"net/http"

	"golang.org/x/net/websocket"

	fx "github.com/robotalks/bebe.go/pkg/framework"
)

// ReadWriter implements comm.PacketReadWriter.
type ReadWriter websocket.Conn

// New wraps conn.
func New(conn *websocket.Conn) *ReadWriter {
	return (*ReadWriter)(conn)
}

// Dial connects to a websocket server.
func Dial(url string) (*ReadWriter, error) {
	conn, err := websocket.Dial(url, "", "http://localhost/")
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// ReadPacket implements comm.PacketReader.
func (p *ReadWriter) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive((*websocket.Conn)(p), &pkt)
	return
}

// WritePacket implements comm.PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	return websocket.Message.Send((*websocket.Conn)(p), pkt)
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	return (*websocket.Conn)(p).Close()
}

// ServeFunc serves one accepted connection.
type ServeFunc func(context.Context, *ReadWriter) error

// Handler accepts websocket connections and serves each with fn. ctx
// bounds all connections.
func Handler(ctx context.Context, fn ServeFunc) http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		fn(ctx, New(conn))
	})
}

// Server is a Runnable listening on Addr.
type Server struct {
	Addr  string
	Path  string
	Serve ServeFunc
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	path := s.Path
	if path == "" {
		path = "/"
	}
	mux.Handle(path, Handler(ctx, s.Serve))
	srv := &http.Server{Addr: s.Addr, Handler: mux}
	return fx.RunWithContextCancel(ctx, func() { srv.Close() }, srv.ListenAndServe)
}
