package modbus_test

import (
	"testing"
	"time"

	"github.com/rhoban/rhal"
	"github.com/rhoban/rhal/protocol/modbus"
)

// acceptAllHoldings is an UpdateHoldings handler that accepts every write
// unconditionally, matching the teacher's own testServerTCP example.
func acceptAllHoldings(server modbus.Server, atomic modbus.Atomic, address int, values []int, current []int) ([]int, error) {
	return values, nil
}

// newLoopbackServer starts a Modbus-TCP server emulating a single device's
// 64 holding registers, listening on host, and returns the underlying
// modbus.Server; every write is accepted as-is. This
// exercises the teacher's server-side package (server.go, serverCache.go,
// serverHolding.go, tcpServer.go) which ProtocolAdapter's client-only
// surface otherwise never touches, so this package's own tests are where
// the server half of the dependency earns its place in the tree (see
// DESIGN.md).
func newLoopbackServer(t *testing.T, host string) modbus.Server {
	t.Helper()
	srv, err := modbus.NewServer([]byte("rhal-test-device"), []string{"rhoban", "rhal-test", "1.0", "n/a"})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv.RegisterHoldings(64, acceptAllHoldings)

	tcpsrv, err := modbus.NewTCPServer(host, modbus.ServeAllUnits(srv))
	if err != nil {
		t.Fatalf("NewTCPServer: %v", err)
	}
	t.Cleanup(func() { _ = tcpsrv.Close() })
	return srv
}

// dialWithRetry accounts for the small window between the listener binding
// and the test's own dial attempt.
func dialWithRetry(t *testing.T, host string) modbus.Modbus {
	t.Helper()
	var lastErr error
	for i := 0; i < 20; i++ {
		mb, err := modbus.NewTCP(host)
		if err == nil {
			return mb
		}
		lastErr = err
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("NewTCP %s: %v", host, lastErr)
	return nil
}

// goalRegisterDevice is a minimal rhal.Device exercising one writable,
// word-aligned register over a real Modbus-TCP round trip.
type goalRegisterDevice struct {
	*rhal.BaseDevice
	goal *rhal.Register
}

func newGoalRegisterDevice(id int) *goalRegisterDevice {
	return &goalRegisterDevice{BaseDevice: rhal.NewBaseDevice(id, "loopback-dev", "test.loopback")}
}

func (d *goalRegisterDevice) Init(registers *rhal.RegistersList, params *rhal.ParametersList) {
	d.BaseDevice.Init(registers, params)
	d.goal = rhal.NewRegister("goal", 0, rhal.UintCodec{Width: 2})
	_ = registers.Add(d.goal)
}

func TestProtocolAdapterOverRealModbusTCPRoundTrip(t *testing.T) {
	const host = "127.0.0.1:18502"
	const unitID = 3

	newLoopbackServer(t, host)
	client := dialWithRetry(t, host)
	defer client.Close()

	adapter := modbus.NewProtocolAdapter(client, time.Second, 0)

	mgr := rhal.NewManager(rhal.ManagerConfig{WaitWriteCheckResponse: true})
	if err := mgr.SetProtocol(noopBus{}, adapter); err != nil {
		t.Fatalf("SetProtocol: %v", err)
	}

	dev := newGoalRegisterDevice(unitID)
	if err := mgr.AddDevice(dev); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}

	if err := dev.goal.Write(4321); err != nil {
		t.Fatalf("Write: %v", err)
	}

	rv := dev.goal.Read()
	if rv.IsError {
		t.Fatalf("unexpected read error after a write round trip")
	}
	if rv.Value != 4321 {
		t.Fatalf("want 4321 read back over the wire, got %v", rv.Value)
	}
}

// noopBus satisfies rhal.Bus for the adapter, which owns its own TCP
// transport and never calls back into a Bus.
type noopBus struct{}

func (noopBus) Send([]byte) error              { return nil }
func (noopBus) WaitReadable(time.Duration) bool { return false }
func (noopBus) Available() int                  { return 0 }
func (noopBus) Read([]byte) (int, error)        { return 0, nil }
func (noopBus) Flush() error                    { return nil }
func (noopBus) ClearInput()                     {}
