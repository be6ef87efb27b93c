// Package mqtt runs the remote protocol over an MQTT broker. A bridge
// <type>/<id> announces itself with a retained <type>/<id>/meta, receives
// commands on <type>/<id>/cmd and sends replies and events on
// <type>/<id>/msg.
package mqtt

import (
	"net/url"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
)

// Handler is called with a received message. topic has the prefix
// stripped.
type Handler func(topic string, payload []byte)

// ConnectHandler is called on connect or disconnect.
type ConnectHandler func(*Queue)

// Queue wraps a paho client with a topic prefix and handler based
// subscriptions. Several handlers may share a subscription.
type Queue struct {
	Client       paho.Client
	TopicPrefix  string
	OnConnect    ConnectHandler
	OnDisconnect ConnectHandler

	subs map[string][]*Subscription
	lock sync.RWMutex
}

// Subscription is a handler subscribed to a topic pattern.
type Subscription struct {
	// Token is the token of the broker subscription, nil if the pattern
	// was already subscribed.
	Token paho.Token

	queue   *Queue
	pattern string
	handler Handler
}

// MatchTopic matches topic against an MQTT pattern with + and #.
func MatchTopic(topic, pattern string) bool {
	levels, patterns := strings.Split(topic, "/"), strings.Split(pattern, "/")
	for i, p := range patterns {
		if p == "#" {
			return true
		}
		if i >= len(levels) || (p != "+" && p != levels[i]) {
			return false
		}
	}
	return len(levels) == len(patterns)
}

// ClientOptionsFromURL creates client options and the topic prefix from a
// broker URL: mqtt://[user[:password]@]host:port/prefix/?client-id=id.
func ClientOptionsFromURL(brokerURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, "", err
	}
	scheme := u.Scheme
	switch scheme {
	case "", "mqtt":
		scheme = "tcp"
	case "mqtts":
		scheme = "ssl"
	}
	opts := paho.NewClientOptions().
		AddBroker(scheme + "://" + u.Host).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	if clientID := u.Query().Get("client-id"); clientID != "" {
		opts.SetClientID(clientID)
	}
	return opts, strings.TrimPrefix(u.Path, "/"), nil
}

// NewQueue creates a Queue. The connection handlers of options are
// replaced.
func NewQueue(options *paho.ClientOptions, topicPrefix string) *Queue {
	q := &Queue{TopicPrefix: topicPrefix}
	options.SetOnConnectHandler(q.onConnect)
	options.SetConnectionLostHandler(q.onConnectionLost)
	q.Client = paho.NewClient(options)
	return q
}

// NewQueueFromURL creates a Queue from a broker URL.
func NewQueueFromURL(brokerURL string) (*Queue, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	return NewQueue(opts, topicPrefix), nil
}

// Connect connects to the broker.
func (q *Queue) Connect() paho.Token {
	return q.Client.Connect()
}

// Close disconnects immediately.
func (q *Queue) Close() error {
	q.Client.Disconnect(0)
	return nil
}

// Sub adds handler on a topic pattern.
func (q *Queue) Sub(pattern string, handler Handler) *Subscription {
	sub, first := q.addSub(pattern, handler)
	if first {
		glog.V(2).Infof("SUB %q", q.TopicPrefix+pattern)
		sub.Token = q.Client.Subscribe(q.TopicPrefix+pattern, 0, q.dispatch)
	}
	return sub
}

// Pub publishes with QoS 0.
func (q *Queue) Pub(topic string, payload []byte) paho.Token {
	return q.PubWith(topic, payload, 0, false)
}

// PubWith publishes with QoS and retain flag.
func (q *Queue) PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token {
	return q.Client.Publish(q.TopicPrefix+topic, qos, retain, payload)
}

// Resubscribe subscribes all patterns again, after a reconnect.
func (q *Queue) Resubscribe() paho.Token {
	filters := make(map[string]byte)
	q.lock.RLock()
	for pattern := range q.subs {
		filters[q.TopicPrefix+pattern] = 0
	}
	q.lock.RUnlock()
	if len(filters) == 0 {
		return &paho.DummyToken{}
	}
	glog.V(2).Infof("SUB %d pattern(s)", len(filters))
	return q.Client.SubscribeMultiple(filters, q.dispatch)
}

func (q *Queue) onConnect(paho.Client) {
	glog.Info("mqtt connected")
	q.Resubscribe()
	if h := q.OnConnect; h != nil {
		h(q)
	}
}

func (q *Queue) onConnectionLost(_ paho.Client, err error) {
	glog.Warningf("mqtt connection lost: %v", err)
	if h := q.OnDisconnect; h != nil {
		h(q)
	}
}

func (q *Queue) dispatch(_ paho.Client, msg paho.Message) {
	topic := msg.Topic()
	if !strings.HasPrefix(topic, q.TopicPrefix) {
		return
	}
	glog.V(3).Infof("RCV %q", topic)
	q.deliver(topic[len(q.TopicPrefix):], msg.Payload())
}

func (q *Queue) addSub(pattern string, handler Handler) (*Subscription, bool) {
	sub := &Subscription{queue: q, pattern: pattern, handler: handler}
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.subs == nil {
		q.subs = make(map[string][]*Subscription)
	}
	first := len(q.subs[pattern]) == 0
	q.subs[pattern] = append(q.subs[pattern], sub)
	return sub, first
}

// removeSub reports if the pattern has no handler left.
func (q *Queue) removeSub(sub *Subscription) bool {
	q.lock.Lock()
	defer q.lock.Unlock()
	subs := q.subs[sub.pattern]
	for i, s := range subs {
		if s == sub {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(q.subs, sub.pattern)
		return true
	}
	q.subs[sub.pattern] = subs
	return false
}

func (q *Queue) deliver(topic string, payload []byte) {
	var handlers []Handler
	q.lock.RLock()
	for pattern, subs := range q.subs {
		if pattern == topic || MatchTopic(topic, pattern) {
			for _, sub := range subs {
				handlers = append(handlers, sub.handler)
			}
		}
	}
	q.lock.RUnlock()
	for _, h := range handlers {
		h(topic, payload)
	}
}

// Close removes the handler, and unsubscribes when it is the last one on
// the pattern.
func (s *Subscription) Close() error {
	if !s.queue.removeSub(s) {
		return nil
	}
	glog.V(2).Infof("UNSUB %q", s.queue.TopicPrefix+s.pattern)
	token := s.queue.Client.Unsubscribe(s.queue.TopicPrefix + s.pattern)
	token.Wait()
	return token.Error()
}
