package sh

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/bebe.go/pkg/host/serial"
	"github.com/robotalks/bebe.go/pkg/remote"
	env "github.com/robotalks/bebe.go/pkg/remote/env/connector"
)

// ErrNotConnected is reported by commands requiring a session.
var ErrNotConnected = errors.New("not connected")

// DefaultCommandTimeout bounds a single shell command.
const DefaultCommandTimeout = 10 * time.Second

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool
	BaudRate    uint
	Timeout     time.Duration

	Shell   *ishell.Shell
	Config  *env.Config
	Session *Session
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool
	baudRate   uint = serial.DefaultBaudRate

	// commands
	commands = []*ishell.Cmd{
		&DiscoverCmd,
		&ConnectCmd,
		&OpenCmd,
		&DisconnectCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.UintVar(&baudRate, "baud", baudRate, "Baud rate of serial targets.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		BaudRate:    baudRate,
		Timeout:     DefaultCommandTimeout,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a session.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Session == nil {
			c.Err(ErrNotConnected)
			return
		}
		fn(c)
	}
}

// CommandContext bounds a command by the shell timeout.
func (s *Shell) CommandContext() (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), s.Timeout)
}

// Print writes v as JSON in JSON mode, otherwise text.
func Print(c *ishell.Context, text string, v interface{}) {
	if !ShellFrom(c).OutputJSON {
		c.Println(text)
		return
	}
	out, err := json.Marshal(v)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(string(out))
}

// FormatInfo prints BridgeInfo into friendly string for display.
func FormatInfo(info remote.BridgeInfo) string {
	if info.Meta.Target != "" {
		return info.Ref.Name() + ": " + info.Meta.Target
	}
	return info.Ref.Name()
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// DiscoverBridges discovers bridges.
func (s *Shell) DiscoverBridges(ctx context.Context) ([]remote.BridgeInfo, error) {
	connector, err := s.Config.NewConnector()
	if err != nil {
		return nil, err
	}
	return connector.Discover(ctx)
}

// SelectBridge discovers bridges and asks for a choice.
func (s *Shell) SelectBridge(ctx context.Context) (*remote.BridgeInfo, error) {
	infoList, err := s.DiscoverBridges(ctx)
	if err != nil {
		return nil, err
	}
	if len(infoList) == 0 {
		return nil, nil
	}
	var index int
	if len(infoList) > 1 {
		if !s.Interactive {
			return nil, fmt.Errorf("more than 1 bridges discovered in non-interactive mode")
		}
		items := make([]string, len(infoList))
		for n, info := range infoList {
			items[n] = FormatInfo(info)
		}
		index = s.Shell.MultiChoice(items, "Which one to connect?")
		if index < 0 {
			return nil, nil
		}
	}
	return &infoList[index], nil
}

// Use replaces the current session.
func (s *Shell) Use(session *Session) {
	s.Disconnect()
	s.Session = session
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", session.Name))
}

// Connect connects the bridge with ref.
func (s *Shell) Connect(ctx context.Context, ref remote.BridgeRef) error {
	connector, err := s.Config.NewConnector()
	if err != nil {
		return err
	}
	conn, err := connector.Connect(ctx, ref)
	if err != nil {
		return err
	}
	s.Use(NewBridgeSession(ref.Name(), conn))
	return nil
}

// Open opens target directly.
func (s *Shell) Open(target string) error {
	session, err := OpenDirect(target, s.BaudRate)
	if err != nil {
		return err
	}
	s.Use(session)
	return nil
}

// Disconnect closes the current session.
func (s *Shell) Disconnect() {
	if s.Session != nil {
		if err := s.Session.Close(); err != nil {
			log.Printf("close %s: %v", s.Session.Name, err)
		}
		s.Session = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

func (s *Shell) autoConnect() error {
	if s.Config.Target != "" {
		return s.Open(s.Config.Target)
	}
	if s.Config.Ref.IsValid() {
		ctx, cancel := s.CommandContext()
		defer cancel()
		return s.Connect(ctx, s.Config.Ref)
	}
	return nil
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect {
		if err := s.autoConnect(); err != nil {
			log.Fatalf("connect failed: %v", err)
		}
		if s.Interactive && s.Session != nil {
			s.Shell.Printf("Connected %s\n", s.Session.Name)
		}
	}
	defer s.Disconnect()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// DiscoverCmd discovers bridges.
	DiscoverCmd = ishell.Cmd{
		Name:    "discover",
		Aliases: []string{"list", "l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			ctx, cancel := s.CommandContext()
			defer cancel()
			infoList, err := s.DiscoverBridges(ctx)
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				if len(infoList) == 0 {
					// in case infoList is nil, make it empty slice.
					infoList = []remote.BridgeInfo{}
				}
				Print(c, "", infoList)
				return
			}
			if len(infoList) == 0 {
				c.Println("No bridges found")
				return
			}
			for _, info := range infoList {
				c.Println(FormatInfo(info))
			}
		},
	}

	// ConnectCmd connects a bridge.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[ID]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			ctx, cancel := s.CommandContext()
			defer cancel()
			ref := remote.BridgeRef{Type: remote.BridgeType}
			if len(c.Args) > 0 {
				ref.ID = c.Args[0]
			} else {
				info, err := s.SelectBridge(ctx)
				if err != nil {
					c.Err(err)
					return
				}
				if info == nil {
					c.Err(fmt.Errorf("no bridge discovered"))
					return
				}
				ref = info.Ref
			}
			if err := s.Connect(ctx, ref); err != nil {
				c.Err(err)
			}
		},
	}

	// OpenCmd opens a target directly.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "DEVICE|tcp://HOST:PORT",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("target expected"))
				return
			}
			if err := ShellFrom(c).Open(c.Args[0]); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd closes the current session.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).WithAutoConnect(true).Run(flag.Args()...)
}
