package rhal

import "testing"

func TestRegistersListRejectsDuplicateName(t *testing.T) {
	rl := newRegistersList(1, nil)
	if err := rl.Add(NewRegister("a", 0, UintCodec{Width: 2})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := rl.Add(NewRegister("a", 4, UintCodec{Width: 2}))
	if e, ok := err.(*Error); !ok || e.Kind() != KindDuplicateName {
		t.Fatalf("expected KindDuplicateName, got %v", err)
	}
}

func TestRegistersListRejectsOverlap(t *testing.T) {
	rl := newRegistersList(1, nil)
	if err := rl.Add(NewRegister("a", 0, UintCodec{Width: 4})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := rl.Add(NewRegister("b", 2, UintCodec{Width: 2}))
	if e, ok := err.(*Error); !ok || e.Kind() != KindAddressOverlap {
		t.Fatalf("expected KindAddressOverlap, got %v", err)
	}
}

func TestRegistersListRejectsOutOfAddressSpace(t *testing.T) {
	rl := newRegistersList(1, nil)
	err := rl.Add(NewRegister("a", AddrSpaceLen-1, UintCodec{Width: 2}))
	if e, ok := err.(*Error); !ok || e.Kind() != KindOutOfAddressSpace {
		t.Fatalf("expected KindOutOfAddressSpace, got %v", err)
	}
}

type fakeDevice struct {
	*BaseDevice
}

func newFakeDevice(id int, name, typeName string) *fakeDevice {
	return &fakeDevice{BaseDevice: NewBaseDevice(id, name, typeName)}
}

func (d *fakeDevice) Init(registers *RegistersList, params *ParametersList) {
	d.BaseDevice.Init(registers, params)
}

func TestAggregateAddRejectsDuplicateIDAndName(t *testing.T) {
	a := NewAggregate()
	d1 := newFakeDevice(1, "left", "fake.T")
	if err := a.Add(d1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Add(newFakeDevice(1, "other", "fake.T")); err == nil {
		t.Fatalf("expected duplicate id error")
	}
	if err := a.Add(newFakeDevice(2, "left", "fake.T")); err == nil {
		t.Fatalf("expected duplicate name error")
	}
}

func TestAggregateResolveScanCreatesAndMatches(t *testing.T) {
	a := NewAggregate()
	const typeNumber = 42
	a.RegisterFactory(typeNumber, "fake.T", func(id int, name string) Device {
		return newFakeDevice(id, name, "fake.T")
	})

	dev, err := a.resolveScan(5, typeNumber, "device-5", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dev.ID() != 5 {
		t.Fatalf("want id 5, got %d", dev.ID())
	}

	again, err := a.resolveScan(5, typeNumber, "device-5", nil)
	if err != nil {
		t.Fatalf("unexpected error on rescan: %v", err)
	}
	if again != dev {
		t.Fatalf("rescan of an existing id must return the same device")
	}
}

func TestAggregateResolveScanTypeMismatch(t *testing.T) {
	a := NewAggregate()
	a.RegisterFactory(1, "type.One", func(id int, name string) Device {
		return newFakeDevice(id, name, "type.One")
	})
	a.RegisterFactory(2, "type.Two", func(id int, name string) Device {
		return newFakeDevice(id, name, "type.Two")
	})

	if _, err := a.resolveScan(9, 1, "device-9", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := a.resolveScan(9, 2, "device-9", nil)
	e, ok := err.(*Error)
	if !ok || e.Kind() != KindScanTypeMismatch {
		t.Fatalf("expected KindScanTypeMismatch, got %v", err)
	}
}

func TestAggregateResolveScanUnknownType(t *testing.T) {
	a := NewAggregate()
	_, err := a.resolveScan(9, 999, "device-9", nil)
	e, ok := err.(*Error)
	if !ok || e.Kind() != KindUnknownType {
		t.Fatalf("expected KindUnknownType, got %v", err)
	}
}

func TestParametersListSaveLoadJSON(t *testing.T) {
	reg := NewTypedDeviceRegistry[*fakeDevice]()
	dev := newFakeDevice(3, "dev3", "fake.T")
	params := newParametersList()
	dev.Init(newRegistersList(3, nil), params)
	dontRead := params.Get("dontRead")
	dontRead.SetBool(true)
	if err := reg.Add(dev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	typeParams := newParametersList()
	data, err := reg.SaveJSON(typeParams)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dev.Params().Get("dontRead").SetBool(false)
	if err := reg.LoadJSON(data, typeParams); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dev.Params().Get("dontRead").Bool() {
		t.Fatalf("expected dontRead restored to true after LoadJSON")
	}
}

func TestParametersListLoadJSONRejectsUnknownDevice(t *testing.T) {
	reg := NewTypedDeviceRegistry[*fakeDevice]()
	bogus := []byte(`{"parameters":{},"devices":[{"id":77,"name":"ghost","parameters":{}}]}`)
	err := reg.LoadJSON(bogus, newParametersList())
	e, ok := err.(*Error)
	if !ok || e.Kind() != KindSchemaMismatch {
		t.Fatalf("expected KindSchemaMismatch, got %v", err)
	}
}
