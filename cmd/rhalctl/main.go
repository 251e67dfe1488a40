// Command rhalctl is a thin CLI collaborator against a running rhal.Manager,
// non-core per spec.md §1. It mirrors the teacher's own CLI dependency and
// command-grouping style (the upstream modbus package's mbcli command, which
// is not part of this repository).
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/rhoban/rhal"
	"github.com/rhoban/rhal/protocol/modbus"
)

// connectOptions are the bus-connection flags shared by every subcommand.
type connectOptions struct {
	RTU      string `long:"rtu" description:"serial device to open an RTU connection over (e.g. /dev/ttyUSB0)"`
	Baud     int    `long:"baud" default:"115200" description:"baud rate, used with --rtu"`
	TCP      string `long:"tcp" description:"host:port to open a TCP Modbus connection to"`
	Mock     bool   `long:"mock" description:"use an in-memory mock protocol instead of a real bus"`
	Timeout  int    `long:"timeout" default:"1" description:"per-call timeout, in seconds"`
	Broadcast int   `long:"broadcast-coil" default:"0" description:"coil address used for emergency stop/resume"`
}

func (c *connectOptions) manager() (*rhal.Manager, error) {
	mgr := rhal.NewManager(rhal.ManagerConfig{WaitWriteCheckResponse: true})
	timeout := time.Duration(c.Timeout) * time.Second

	switch {
	case c.Mock:
		p := mockProtocol()
		if err := mgr.SetProtocol(mockBus(), p); err != nil {
			return nil, err
		}
	case c.RTU != "":
		mb, err := modbus.NewRTU(c.RTU, c.Baud, 'N', 1, 0, false)
		if err != nil {
			return nil, fmt.Errorf("rhalctl: opening RTU %s: %w", c.RTU, err)
		}
		if err := mgr.SetProtocol(noopBus{}, modbus.NewProtocolAdapter(mb, timeout, c.Broadcast)); err != nil {
			return nil, err
		}
	case c.TCP != "":
		mb, err := modbus.NewTCP(c.TCP)
		if err != nil {
			return nil, fmt.Errorf("rhalctl: connecting to %s: %w", c.TCP, err)
		}
		if err := mgr.SetProtocol(noopBus{}, modbus.NewProtocolAdapter(mb, timeout, c.Broadcast)); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("rhalctl: one of --rtu, --tcp or --mock is required")
	}
	return mgr, nil
}

// noopBus satisfies rhal.Bus for protocols (like the modbus adapter) that
// own their own transport and never go through the Manager's Bus field.
type noopBus struct{}

func (noopBus) Send([]byte) error                    { return nil }
func (noopBus) WaitReadable(time.Duration) bool       { return false }
func (noopBus) Available() int                        { return 0 }
func (noopBus) Read([]byte) (int, error)              { return 0, nil }
func (noopBus) Flush() error                          { return nil }
func (noopBus) ClearInput()                           {}

type rootCommand struct {
	connectOptions
	Scan           scanCommand           `command:"scan" description:"probe every device id and report presence and type"`
	Ping           pingCommand           `command:"ping" description:"ping a single device id"`
	Read           readCommand           `command:"read" description:"perform a single immediate register read"`
	Write          writeCommand          `command:"write" description:"perform a single immediate register write"`
	Stats          statsCommand          `command:"stats" description:"print accumulated call statistics"`
	EmergencyStop  emergencyStopCommand  `command:"emergency-stop" description:"broadcast an emergency stop"`
	ExitEmergency  exitEmergencyCommand  `command:"resume" description:"broadcast exit-emergency-state"`
}

// current holds the parsed connection flags for the subcommand Execute
// callbacks to read; go-flags populates rootCommand's fields before
// invoking a subcommand's Execute, so this is valid by the time any
// Execute method runs.
var current *rootCommand

func main() {
	current = &rootCommand{}
	parser := flags.NewParser(current, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.Parse(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
