package mqtt

import (
	"io"
	"sync"

	"github.com/robotalks/bebe.go/pkg/remote"
)

// ReadWriter implements comm.PacketReadWriter on a pair of topics.
type ReadWriter struct {
	Queue    *Queue
	SubTopic string
	PubTopic string

	sub       *Subscription
	packetCh  chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewPacketReadWriter creates a ReadWriter.
func NewPacketReadWriter(q *Queue) *ReadWriter {
	return &ReadWriter{
		Queue:    q,
		packetCh: make(chan []byte, 16),
		closeCh:  make(chan struct{}),
	}
}

// WithTopics sets the topics.
func (p *ReadWriter) WithTopics(sub, pub string) *ReadWriter {
	p.SubTopic, p.PubTopic = sub, pub
	return p
}

// ForConnector sets the topics of the tool end: receive on <name>/msg,
// send on <name>/cmd.
func (p *ReadWriter) ForConnector(ref remote.BridgeRef) *ReadWriter {
	return p.WithTopics(ref.Name()+"/msg", ref.Name()+"/cmd")
}

// ForBridge sets the topics of the bridge end: receive on <name>/cmd,
// send on <name>/msg.
func (p *ReadWriter) ForBridge(ref remote.BridgeRef) *ReadWriter {
	return p.WithTopics(ref.Name()+"/cmd", ref.Name()+"/msg")
}

// Open subscribes SubTopic.
func (p *ReadWriter) Open() error {
	p.sub = p.Queue.Sub(p.SubTopic, p.handleMsg)
	if token := p.sub.Token; token != nil {
		token.Wait()
		return token.Error()
	}
	return nil
}

// ReadPacket implements comm.PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packetCh:
		return pkt, nil
	case <-p.closeCh:
		return nil, io.EOF
	}
}

// WritePacket implements comm.PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	token := p.Queue.Pub(p.PubTopic, pkt)
	token.Wait()
	return token.Error()
}

// Close unsubscribes and unblocks ReadPacket.
func (p *ReadWriter) Close() (err error) {
	p.closeOnce.Do(func() {
		close(p.closeCh)
		if p.sub != nil {
			err = p.sub.Close()
		}
	})
	return
}

func (p *ReadWriter) handleMsg(_ string, payload []byte) {
	select {
	case p.packetCh <- payload:
	case <-p.closeCh:
	}
}
