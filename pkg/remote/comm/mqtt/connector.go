package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/robotalks/bebe.go/pkg/remote"
	"github.com/robotalks/bebe.go/pkg/remote/comm"
)

// DefaultDiscoverTimeout is how long Discover collects announcements.
const DefaultDiscoverTimeout = 500 * time.Millisecond

// Connector implements remote.Connector.
type Connector struct {
	DiscoverTimeout time.Duration

	options     *paho.ClientOptions
	topicPrefix string
}

// NewConnector creates a Connector.
func NewConnector(brokerURL string) (*Connector, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	return &Connector{
		DiscoverTimeout: DefaultDiscoverTimeout,
		options:         opts,
		topicPrefix:     topicPrefix,
	}, nil
}

// ParseAnnouncement parses a retained <type>/<id>/meta message. An empty
// payload is a withdrawn announcement.
func ParseAnnouncement(topic string, payload []byte) (remote.BridgeInfo, bool) {
	var info remote.BridgeInfo
	items := strings.Split(topic, "/")
	if len(items) != 3 || items[2] != "meta" || len(payload) == 0 {
		return info, false
	}
	info.Ref = remote.BridgeRef{Type: items[0], ID: items[1]}
	if err := json.Unmarshal(payload, &info.Meta); err != nil {
		glog.Warningf("bad announcement on %q: %v", topic, err)
	}
	return info, true
}

// Discover implements remote.Connector.
func (c *Connector) Discover(ctx context.Context) ([]remote.BridgeInfo, error) {
	q := NewQueue(c.options, c.topicPrefix)
	token := q.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}
	defer q.Close()

	infoCh := make(chan remote.BridgeInfo, 16)
	sub := q.Sub("+/+/meta", func(topic string, payload []byte) {
		if info, ok := ParseAnnouncement(topic, payload); ok {
			select {
			case infoCh <- info:
			case <-ctx.Done():
			}
		}
	})
	defer sub.Close()

	dur := c.DiscoverTimeout
	if dur <= 0 {
		dur = DefaultDiscoverTimeout
	}
	timeout := time.NewTimer(dur)
	defer timeout.Stop()
	var found []remote.BridgeInfo
	seen := make(map[string]bool)
	for {
		select {
		case info := <-infoCh:
			if name := info.Ref.Name(); !seen[name] {
				seen[name] = true
				found = append(found, info)
			}
		case <-timeout.C:
			return found, nil
		case <-ctx.Done():
			return found, ctx.Err()
		}
	}
}

// Connect implements remote.Connector. The returned Conn is running until
// closed.
func (c *Connector) Connect(ctx context.Context, ref remote.BridgeRef) (remote.Conn, error) {
	conn := &Conn{Queue: NewQueue(c.options, c.topicPrefix)}
	rw := NewPacketReadWriter(conn.Queue).ForConnector(ref)
	conn.Init(rw)
	token := conn.Queue.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}
	if err := rw.Open(); err != nil {
		conn.Queue.Close()
		return nil, err
	}
	go func() {
		err := conn.Run(context.Background())
		glog.V(2).Infof("connection to %s closed: %v", ref.Name(), err)
		conn.Queue.Close()
	}()
	return conn, nil
}

// Conn is a connection to a bridge through the broker.
type Conn struct {
	comm.Conn
	Queue *Queue
}
