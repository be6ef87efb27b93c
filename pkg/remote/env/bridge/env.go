// Package bridge configures a bridge daemon from flags and environment.
package bridge

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/robotalks/bebe.go/pkg/remote"
	"github.com/robotalks/bebe.go/pkg/remote/comm/mqtt"
	"github.com/robotalks/bebe.go/pkg/remote/env"
)

// Config configures a bridge.
type Config struct {
	Info remote.BridgeInfo

	// Target is a serial device path or tcp://host:port.
	Target string
	// MQTTBrokerURL e.g. mqtt://host:port/topic-prefix, empty to disable.
	MQTTBrokerURL string
	// WebsocketAddr is the listen address of websocket clients, empty to
	// disable.
	WebsocketAddr string
}

var defaultConfig = Config{
	Info:          remote.BridgeInfo{Ref: remote.BridgeRef{Type: remote.BridgeType}},
	MQTTBrokerURL: "mqtt://localhost:1883/",
}

func init() {
	defaultConfig.Info.Ref.ID = env.MachineID()
	if val := os.Getenv("BEBE_ID"); val != "" {
		defaultConfig.Info.Ref.ID = val
	}
	if val := os.Getenv("BEBE_TARGET"); val != "" {
		defaultConfig.Target = val
	}
	if val, ok := os.LookupEnv("BEBE_MQTT_URL"); ok {
		defaultConfig.MQTTBrokerURL = val
	}
}

// SetupFlags binds command line flags to the defaults.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Info.Ref.ID, "id", defaultConfig.Info.Ref.ID, "Bridge ID")
	flag.StringVar(&defaultConfig.Target, "target", defaultConfig.Target, "Target serial device or tcp://host:port")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL, empty to disable")
	flag.StringVar(&defaultConfig.WebsocketAddr, "ws", defaultConfig.WebsocketAddr, "Websocket listen address, empty to disable")
}

// Default returns the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig copies the defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Validate checks the config.
func (c *Config) Validate() error {
	if !c.Info.Ref.IsValid() {
		return fmt.Errorf("bridge id must be specified")
	}
	if c.Target == "" {
		return fmt.Errorf("target must be specified")
	}
	if c.MQTTBrokerURL == "" && c.WebsocketAddr == "" {
		return fmt.Errorf("at least one of MQTT and websocket is required")
	}
	return nil
}

// NewRegistrar creates the MQTT registrar, nil if MQTT is disabled.
func (c *Config) NewRegistrar(handler remote.CommandHandler) (*mqtt.Registrar, error) {
	if c.MQTTBrokerURL == "" {
		return nil, nil
	}
	info := c.Info
	info.Meta.Target = c.Target
	reg, err := mqtt.NewRegistrar(c.MQTTBrokerURL, info, handler)
	if err != nil {
		return nil, fmt.Errorf("create MQTT registrar: %w", err)
	}
	return reg, nil
}

// MustValidate fails on an invalid config.
func (c *Config) MustValidate() *Config {
	if err := c.Validate(); err != nil {
		log.Fatalln(err)
	}
	return c
}
