package mqtt

import (
	"context"
	"encoding/json"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	fx "github.com/robotalks/bebe.go/pkg/framework"
	"github.com/robotalks/bebe.go/pkg/remote"
	"github.com/robotalks/bebe.go/pkg/remote/comm"
)

// Registrar announces a bridge on the broker and serves its commands.
type Registrar struct {
	Queue *Queue
	Info  remote.BridgeInfo

	meta   []byte
	rw     *ReadWriter
	server comm.Server
}

// NewRegistrar creates a Registrar. Commands are executed by handler.
func NewRegistrar(brokerURL string, info remote.BridgeInfo, handler remote.CommandHandler) (*Registrar, error) {
	meta, err := json.Marshal(&info.Meta)
	if err != nil {
		return nil, err
	}
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	metaTopic := topicPrefix + info.Ref.Name() + "/meta"
	// the broker withdraws the announcement if the bridge goes away.
	opts.SetBinaryWill(metaTopic, nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("bebe:" + info.Ref.Name())
	}
	r := &Registrar{
		Queue: NewQueue(opts, topicPrefix),
		Info:  info,
		meta:  meta,
	}
	r.Queue.OnConnect = func(*Queue) { r.announce(r.meta) }
	r.rw = NewPacketReadWriter(r.Queue).ForBridge(info.Ref)
	r.server.Init(r.rw, handler)
	return r, nil
}

// SendEvent implements remote.Registrar.
func (r *Registrar) SendEvent(ctx context.Context, msg fx.Message) error {
	return r.server.SendEvent(ctx, msg)
}

// Name implements Named.
func (r *Registrar) Name() string {
	return "mqtt:" + r.Info.Ref.Name()
}

// Run implements Runnable.
func (r *Registrar) Run(ctx context.Context) error {
	token := r.Queue.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}
	defer r.Queue.Close()
	if err := r.rw.Open(); err != nil {
		return err
	}
	glog.Infof("registered %s", r.Info.Ref.Name())
	err := r.server.Run(ctx)
	r.announce(nil).Wait()
	return err
}

func (r *Registrar) announce(meta []byte) paho.Token {
	return r.Queue.PubWith(r.Info.Ref.Name()+"/meta", meta, 1, true)
}
