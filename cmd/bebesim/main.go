package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"log"
	"net"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/bebe.go/pkg/bebe/sim"
	fx "github.com/robotalks/bebe.go/pkg/framework"
	"github.com/robotalks/bebe.go/pkg/host/testchip"
)

var (
	listenAddr  = "127.0.0.1:7700"
	resetVector = uint64(0x10000)
)

func init() {
	if val := os.Getenv("BEBE_SIM_LISTEN"); val != "" {
		listenAddr = val
	}
	flag.StringVar(&listenAddr, "listen", listenAddr, "TCP address exposing the target UART.")
	flag.Uint64Var(&resetVector, "reset-vector", resetVector, "Address restarting the boot agent when jumped to, 0 to disable.")
}

// usage: bebesim [flags] [+loadmem=FILE]
func main() {
	flag.Parse()

	opts, err := testchip.ParseArgs(flag.Args(), true)
	if err != nil {
		log.Fatalln(err)
	}

	m := sim.NewMachine()
	if resetVector != 0 {
		m.SetEntry(resetVector, sim.Reboot)
	}
	if opts.HasLoadMem() {
		entry, err := testchip.NewAdapter(nil, opts, m.Memory).LoadProgram(context.Background(), "")
		if err != nil {
			log.Fatalf("loadmem %s: %v", opts.LoadMem, err)
		}
		glog.Infof("loaded %s, entry %#x", opts.LoadMem, entry)
	}

	l, err := net.Listen("tcp", listenAddr)
	if err != nil {
		log.Fatalln(err)
	}
	glog.Infof("target UART on %s", l.Addr())

	runner := fx.NewRunner().HandleSignals()
	ctx, cancel := context.WithCancel(runner.Context)
	m.Start()
	go func() {
		<-m.Done()
		glog.Infof("hart halted, jumps %#x", m.Jumps())
		cancel()
	}()
	runner.GoWith(ctx, sim.NewServer(m.UART, l))
	err = runner.Wait()
	m.Close()
	if err != nil {
		log.Fatalln(err)
	}
}
