package rhal_test

import (
	"testing"
	"time"

	"github.com/rhoban/rhal"
	"github.com/rhoban/rhal/rhalmock"
)

const (
	testAddrWrite = 10
	testAddrRead  = 20
)

type cycleDevice struct {
	*rhal.BaseDevice
	writeReg *rhal.Register
	readReg  *rhal.Register
}

func newCycleDevice(id int, name string) *cycleDevice {
	return &cycleDevice{BaseDevice: rhal.NewBaseDevice(id, name, "test.cycleDevice")}
}

func (d *cycleDevice) Init(registers *rhal.RegistersList, params *rhal.ParametersList) {
	d.BaseDevice.Init(registers, params)
	d.writeReg = rhal.NewRegister("write", testAddrWrite, rhal.UintCodec{Width: 2})
	d.readReg = rhal.NewRegister("read", testAddrRead, rhal.UintCodec{Width: 2},
		rhal.WithReadOnly(), rhal.WithPeriod(1))
	_ = registers.Add(d.writeReg)
	_ = registers.Add(d.readReg)
}

func encodeUint16(v float64) []byte {
	buf := make([]byte, 2)
	rhal.UintCodec{Width: 2}.Encode(buf, v)
	return buf
}

func TestManagerScheduledCycleWritesAndReads(t *testing.T) {
	protocol := rhalmock.NewProtocol()
	protocol.AddDevice(5, 1)
	protocol.SetMemory(5, testAddrRead, encodeUint16(777))

	mgr := rhal.NewManager(rhal.ManagerConfig{ScheduleMode: true, WaitWriteCheckResponse: true})
	if err := mgr.SetProtocol(rhalmock.NewBus(), protocol); err != nil {
		t.Fatalf("SetProtocol: %v", err)
	}

	dev := newCycleDevice(5, "dev5")
	if err := mgr.AddDevice(dev); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}

	go mgr.Run(2 * time.Millisecond)
	defer mgr.Stop()

	handle := mgr.RegisterCooperative()
	defer mgr.UnregisterCooperative(handle)

	if err := dev.writeReg.Write(123); err != nil {
		t.Fatalf("Write: %v", err)
	}
	// The Manager double-buffers: a value written (or fetched) during one
	// cycle's transaction is only published to the user-visible side on the
	// following cycle's swap. Flush a few cycles so the write has definitely
	// reached the bus and the read has definitely been swapped in.
	for i := 0; i < 3; i++ {
		mgr.WaitNextFlush(handle)
	}

	rv := dev.readReg.Read()
	if rv.IsError {
		t.Fatalf("unexpected read error")
	}
	if rv.Value != 777 {
		t.Fatalf("want 777, got %v", rv.Value)
	}

	mem := protocol.Memory(5)
	got := rhal.UintCodec{Width: 2}.Decode(mem[testAddrWrite : testAddrWrite+2])
	if got != 123 {
		t.Fatalf("want write of 123 reflected in memory, got %v", got)
	}
}

func TestManagerPingReflectsPresence(t *testing.T) {
	protocol := rhalmock.NewProtocol()
	protocol.AddDevice(5, 1)

	mgr := rhal.NewManager(rhal.ManagerConfig{})
	if err := mgr.SetProtocol(rhalmock.NewBus(), protocol); err != nil {
		t.Fatalf("SetProtocol: %v", err)
	}

	if !mgr.Ping(5) {
		t.Fatalf("expected device 5 to respond")
	}
	if mgr.Ping(6) {
		t.Fatalf("expected device 6 to not respond")
	}
}

func TestManagerScanCreatesDeviceViaFactory(t *testing.T) {
	protocol := rhalmock.NewProtocol()
	protocol.AddDevice(7, 42)

	mgr := rhal.NewManager(rhal.ManagerConfig{TypeRegisterAddr: 0, ThrowErrorOnScan: true})
	if err := mgr.SetProtocol(rhalmock.NewBus(), protocol); err != nil {
		t.Fatalf("SetProtocol: %v", err)
	}
	mgr.Registry().RegisterFactory(42, "test.cycleDevice", func(id int, name string) rhal.Device {
		return newCycleDevice(id, name)
	})

	if err := mgr.Scan(); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	dev, ok := mgr.Registry().ByID(7)
	if !ok {
		t.Fatalf("expected device 7 to be registered after scan")
	}
	if dev.TypeName() != "test.cycleDevice" {
		t.Fatalf("unexpected type name %q", dev.TypeName())
	}
	if dev.Registers().Len() == 0 {
		t.Fatalf("expected scan to have run Init on the discovered device")
	}
}

func TestManagerScanUnknownTypeSkipsWhenNotThrowing(t *testing.T) {
	protocol := rhalmock.NewProtocol()
	protocol.AddDevice(8, 999)

	mgr := rhal.NewManager(rhal.ManagerConfig{TypeRegisterAddr: 0, ThrowErrorOnScan: false})
	if err := mgr.SetProtocol(rhalmock.NewBus(), protocol); err != nil {
		t.Fatalf("SetProtocol: %v", err)
	}

	if err := mgr.Scan(); err != nil {
		t.Fatalf("expected scan to skip unknown types silently, got %v", err)
	}
	if _, ok := mgr.Registry().ByID(8); ok {
		t.Fatalf("unregistered type must not be added to the registry")
	}
}

func TestManagerScanUnknownTypeErrorsWhenThrowing(t *testing.T) {
	protocol := rhalmock.NewProtocol()
	protocol.AddDevice(8, 999)

	mgr := rhal.NewManager(rhal.ManagerConfig{TypeRegisterAddr: 0, ThrowErrorOnScan: true})
	if err := mgr.SetProtocol(rhalmock.NewBus(), protocol); err != nil {
		t.Fatalf("SetProtocol: %v", err)
	}

	if err := mgr.Scan(); err == nil {
		t.Fatalf("expected an UnknownType error")
	}
}

func TestManagerEmergencyStopCountersAndLatch(t *testing.T) {
	protocol := rhalmock.NewProtocol()
	mgr := rhal.NewManager(rhal.ManagerConfig{})
	if err := mgr.SetProtocol(rhalmock.NewBus(), protocol); err != nil {
		t.Fatalf("SetProtocol: %v", err)
	}

	mgr.EmergencyStop()
	if !protocol.EmergencyStopped() {
		t.Fatalf("expected protocol to observe the emergency stop")
	}
	mgr.ExitEmergencyState()
	if protocol.EmergencyStopped() {
		t.Fatalf("expected protocol to observe exit-emergency-state")
	}
	stops, exits := mgr.EmergencyCounters()
	if stops != 1 || exits != 1 {
		t.Fatalf("want 1 stop and 1 exit, got %d/%d", stops, exits)
	}
}

func TestManagerImmediateModeForcesSynchronousIO(t *testing.T) {
	protocol := rhalmock.NewProtocol()
	protocol.AddDevice(5, 1)
	protocol.SetMemory(5, testAddrRead, encodeUint16(55))

	mgr := rhal.NewManager(rhal.ManagerConfig{ScheduleMode: false, WaitWriteCheckResponse: true})
	if err := mgr.SetProtocol(rhalmock.NewBus(), protocol); err != nil {
		t.Fatalf("SetProtocol: %v", err)
	}
	dev := newCycleDevice(5, "dev5")
	if err := mgr.AddDevice(dev); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}

	if err := dev.writeReg.Write(9); err != nil {
		t.Fatalf("Write: %v", err)
	}
	mem := protocol.Memory(5)
	got := rhal.UintCodec{Width: 2}.Decode(mem[testAddrWrite : testAddrWrite+2])
	if got != 9 {
		t.Fatalf("immediate mode write should land synchronously, got %v", got)
	}

	rv := dev.readReg.Read()
	if rv.IsError || rv.Value != 55 {
		t.Fatalf("immediate mode read should happen synchronously, got %+v", rv)
	}
}
