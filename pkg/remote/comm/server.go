package comm

import (
	"context"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/bebe.go/pkg/framework"
	"github.com/robotalks/bebe.go/pkg/remote"
	"github.com/robotalks/bebe.go/pkg/remote/msgs"
)

// Server is the bridge end of a Pipe: it executes commands with a
// remote.CommandHandler and sends events.
type Server struct {
	Handler remote.CommandHandler

	pipe Pipe
}

// NewServer creates a Server.
func NewServer(rw PacketReadWriter, handler remote.CommandHandler) *Server {
	s := &Server{}
	s.Init(rw, handler)
	return s
}

// Init initializes an embedded Server.
func (s *Server) Init(rw PacketReadWriter, handler remote.CommandHandler) {
	s.Handler = handler
	s.pipe.ReadWriter = rw
	s.pipe.Handler = msgs.HandleTypedMsgFunc(s.handleTypedMsg)
}

// SendEvent implements remote.Registrar.
func (s *Server) SendEvent(ctx context.Context, msg fx.Message) error {
	return s.pipe.SendEventMsg(msg)
}

// Run serves commands until the transport fails or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.pipe.Run(ctx)
}

// Close closes the transport.
func (s *Server) Close() error {
	return s.pipe.Close()
}

func (s *Server) handleTypedMsg(ctx context.Context, msg fx.Message, typed *msgs.Typed) error {
	if !typed.IsCommand() || typed.IsReply() {
		glog.V(3).Infof("ignore %T", msg)
		return nil
	}
	var reply fx.Message
	var err error
	if s.Handler == nil {
		err = msgs.ErrUnsupportedCommand
	} else {
		reply, err = s.Handler.HandleCommand(ctx, msg)
	}
	if err != nil {
		glog.V(2).Infof("command %T seq=%d: %v", msg, typed.Sequence, err)
		cmdErr, ok := err.(*msgs.CommandErr)
		if !ok {
			cmdErr = msgs.NewCommandErr(err)
		}
		reply = cmdErr
	} else if reply == nil {
		reply = msgs.NewCommandOK()
	}
	return s.pipe.SendCommandMsg(reply, typed.Sequence)
}

// ServerSet tracks the Servers of accepted connections.
type ServerSet struct {
	servers map[*Server]struct{}
	lock    sync.RWMutex
}

// Add adds a Server.
func (s *ServerSet) Add(server *Server) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.servers == nil {
		s.servers = make(map[*Server]struct{})
	}
	s.servers[server] = struct{}{}
}

// Remove removes a Server.
func (s *ServerSet) Remove(server *Server) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.servers, server)
}

// Len returns the number of Servers.
func (s *ServerSet) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.servers)
}

// SendEvent implements remote.Registrar by sending to every Server.
func (s *ServerSet) SendEvent(ctx context.Context, msg fx.Message) error {
	s.lock.RLock()
	defer s.lock.RUnlock()
	var errs fx.AggregatedError
	for server := range s.servers {
		errs.Add(server.SendEvent(ctx, msg))
	}
	return errs.Aggregate()
}

// Serve runs a Server on rw until it stops, tracking it meanwhile.
func (s *ServerSet) Serve(ctx context.Context, rw PacketReadWriter, handler remote.CommandHandler) error {
	server := NewServer(rw, handler)
	s.Add(server)
	defer s.Remove(server)
	return server.Run(ctx)
}

// RegistrarMux sends events through several Registrars.
type RegistrarMux struct {
	Registrars []remote.Registrar
}

// Add adds Registrars.
func (r *RegistrarMux) Add(regs ...remote.Registrar) {
	r.Registrars = append(r.Registrars, regs...)
}

// SendEvent implements remote.Registrar.
func (r *RegistrarMux) SendEvent(ctx context.Context, msg fx.Message) error {
	var errs fx.AggregatedError
	for _, reg := range r.Registrars {
		errs.Add(reg.SendEvent(ctx, msg))
	}
	return errs.Aggregate()
}
