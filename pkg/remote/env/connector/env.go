// Package connector configures tools that reach targets, either directly
// or through a bridge.
package connector

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"

	"github.com/robotalks/bebe.go/pkg/remote"
	"github.com/robotalks/bebe.go/pkg/remote/comm"
	"github.com/robotalks/bebe.go/pkg/remote/comm/mqtt"
	"github.com/robotalks/bebe.go/pkg/remote/comm/websocket"
)

// Config configures a connector.
type Config struct {
	// Ref is the bridge to connect to.
	Ref remote.BridgeRef
	// RegistryURL is where bridges register, mqtt://host:port/prefix, or a
	// websocket URL of a single bridge.
	RegistryURL string
	// Target is a serial device path or tcp://host:port for direct access.
	Target string
}

var defaultConfig = Config{
	Ref:         remote.BridgeRef{Type: remote.BridgeType},
	RegistryURL: "mqtt://localhost:1883/",
}

func init() {
	if val := os.Getenv("BEBE_ID"); val != "" {
		defaultConfig.Ref.ID = val
	}
	if val := os.Getenv("BEBE_MQTT_URL"); val != "" {
		defaultConfig.RegistryURL = val
	}
	if val := os.Getenv("BEBE_TARGET"); val != "" {
		defaultConfig.Target = val
	}
}

// SetupFlags binds command line flags to the defaults.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Ref.ID, "bridge-id", defaultConfig.Ref.ID, "Bridge ID to connect")
	flag.StringVar(&defaultConfig.RegistryURL, "registry", defaultConfig.RegistryURL, "Bridge registry URL (mqtt:// or ws://)")
	flag.StringVar(&defaultConfig.Target, "target", defaultConfig.Target, "Target serial device or tcp://host:port")
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

// NewConnector creates a Connector for RegistryURL.
func (c *Config) NewConnector() (remote.Connector, error) {
	u, err := url.Parse(c.RegistryURL)
	if err != nil {
		return nil, fmt.Errorf("invalid registry URL: %w", err)
	}
	switch u.Scheme {
	case "mqtt", "mqtts":
		return mqtt.NewConnector(c.RegistryURL)
	case "ws", "wss":
		return &websocketConnector{url: c.RegistryURL}, nil
	}
	return nil, fmt.Errorf("unknown registry URL scheme: %q", u.Scheme)
}

// MustNewConnector fails if the Connector can't be created.
func (c *Config) MustNewConnector() remote.Connector {
	conn, err := c.NewConnector()
	if err != nil {
		log.Fatalln(err)
	}
	return conn
}

// Connect connects to the configured bridge.
func (c *Config) Connect(ctx context.Context) (remote.Conn, error) {
	connector, err := c.NewConnector()
	if err != nil {
		return nil, err
	}
	if _, ok := connector.(*websocketConnector); !ok && !c.Ref.IsValid() {
		return nil, fmt.Errorf("bridge id must be specified")
	}
	return connector.Connect(ctx, c.Ref)
}

// websocketConnector reaches the single bridge listening at url.
type websocketConnector struct {
	url string
}

func (w *websocketConnector) Discover(context.Context) ([]remote.BridgeInfo, error) {
	return []remote.BridgeInfo{{Ref: remote.BridgeRef{Type: remote.BridgeType, ID: w.url}}}, nil
}

func (w *websocketConnector) Connect(ctx context.Context, _ remote.BridgeRef) (remote.Conn, error) {
	rw, err := websocket.Dial(w.url)
	if err != nil {
		return nil, err
	}
	conn := comm.NewConn(rw)
	go conn.Run(context.Background())
	return conn, nil
}
