package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"log"

	"github.com/golang/glog"

	fx "github.com/robotalks/bebe.go/pkg/framework"
	"github.com/robotalks/bebe.go/pkg/host/client"
	"github.com/robotalks/bebe.go/pkg/host/serial"
	"github.com/robotalks/bebe.go/pkg/host/testchip"
	"github.com/robotalks/bebe.go/pkg/host/tsi"
	"github.com/robotalks/bebe.go/pkg/remote/bridge"
	"github.com/robotalks/bebe.go/pkg/remote/comm"
	"github.com/robotalks/bebe.go/pkg/remote/comm/websocket"
	env "github.com/robotalks/bebe.go/pkg/remote/env/bridge"
)

var (
	baudRate      uint = serial.DefaultBaudRate
	adapterConfig string
	bootImage     string
)

func init() {
	env.SetupFlags()
	flag.UintVar(&baudRate, "baud", baudRate, "Baud rate of a serial target.")
	flag.StringVar(&adapterConfig, "adapter-config", adapterConfig, "TOML file with adapter options, plusargs override it.")
	flag.StringVar(&bootImage, "boot", bootImage, "ELF image to load, reset and jump to after nocking.")
}

func adapterOptions() *testchip.Options {
	opts := &testchip.Options{}
	if adapterConfig != "" {
		var err error
		if opts, err = testchip.LoadConfigFile(adapterConfig, false); err != nil {
			log.Fatalln(err)
		}
	}
	if err := opts.ParseArgs(flag.Args(), false); err != nil {
		log.Fatalln(err)
	}
	return opts
}

func boot(ctx context.Context, adapter *testchip.Adapter, path string) error {
	entry, err := adapter.LoadProgram(ctx, path)
	if err != nil {
		return err
	}
	if err := adapter.Reset(ctx); err != nil {
		return err
	}
	glog.Infof("booting %s at %#x", path, entry)
	return adapter.Jump(ctx, entry)
}

// usage: bebed [flags] [+init_write=0xADDR:0xVAL] [+init_read=0xADDR] ...
func main() {
	flag.Parse()
	conf := env.NewConfig().MustValidate()
	opts := adapterOptions()

	rw, err := serial.Open(conf.Target, baudRate)
	if err != nil {
		log.Fatalln(err)
	}
	c := client.New(rw)
	defer c.Close()
	adapter := testchip.NewAdapter(tsi.NewBase(c), opts, nil)

	runner := fx.NewRunner().HandleSignals()
	if err := c.Nock(runner.Context); err != nil {
		glog.Warningf("nock %s: %v, waiting for a remote nock", conf.Target, err)
	} else if bootImage != "" {
		if err := boot(runner.Context, adapter, bootImage); err != nil {
			log.Fatalln(err)
		}
	}

	handler := bridge.NewHandler(adapter)
	handler.Nocker = c
	events := &comm.RegistrarMux{}
	handler.Events = events

	reg, err := conf.NewRegistrar(handler)
	if err != nil {
		log.Fatalln(err)
	}
	if reg != nil {
		events.Add(reg)
		runner.Go(reg)
	}
	if conf.WebsocketAddr != "" {
		servers := &comm.ServerSet{}
		events.Add(servers)
		runner.Go(fx.NamedRun("ws:"+conf.WebsocketAddr, &websocket.Server{
			Addr: conf.WebsocketAddr,
			Serve: func(ctx context.Context, rw *websocket.ReadWriter) error {
				return servers.Serve(ctx, rw, handler)
			},
		}))
		glog.Infof("websocket on %s", conf.WebsocketAddr)
	}
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}
