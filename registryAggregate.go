package rhal

import "sort"

// DeviceFactory constructs a new Device of a specific concrete type, given
// its bus id and name. Device plug-in packages register one factory per
// type number with an Aggregate registry so scan() can create devices of
// types it has never seen configured ahead of time.
type DeviceFactory func(id int, name string) Device

// Aggregate is the type-erased union of every TypedDeviceRegistry<T> in a
// Manager. It forbids a device id or name from being reused across types
// (spec.md §4.2), and dispatches scan()'s creation step to the factory
// registered for the probed type number.
type Aggregate struct {
	byID     map[int]Device
	byName   map[string]Device
	byType   map[string][]Device
	factories map[int]registeredFactory
}

type registeredFactory struct {
	typeName string
	create   DeviceFactory
}

// NewAggregate creates an empty aggregate registry.
func NewAggregate() *Aggregate {
	return &Aggregate{
		byID:      make(map[int]Device),
		byName:    make(map[string]Device),
		byType:    make(map[string][]Device),
		factories: make(map[int]registeredFactory),
	}
}

// RegisterFactory associates a scan-time type number with a constructor
// for its Device plug-in. typeName must equal the TypeName() of the devices
// create returns: scan compares it with an already-registered device's
// TypeName() and reports ScanTypeMismatch when they differ.
func (a *Aggregate) RegisterFactory(typeNumber int, typeName string, create DeviceFactory) {
	a.factories[typeNumber] = registeredFactory{typeName: typeName, create: create}
}

// Add registers an already-constructed device, enforcing that its id and
// name are unique across every type known to this aggregate.
func (a *Aggregate) Add(dev Device) error {
	id := dev.ID()
	if id < MinDeviceID || id > MaxDeviceID {
		return InvalidIDErrorF("device id %d outside [%d, %d]", id, MinDeviceID, MaxDeviceID)
	}
	if _, exists := a.byID[id]; exists {
		return DuplicateNameErrorF("device id %d already registered", id)
	}
	if _, exists := a.byName[dev.Name()]; exists {
		return DuplicateNameErrorF("device name %q already registered", dev.Name())
	}
	a.byID[id] = dev
	a.byName[dev.Name()] = dev
	a.byType[dev.TypeName()] = append(a.byType[dev.TypeName()], dev)
	return nil
}

// Remove drops the device registered under id, across every type.
func (a *Aggregate) Remove(id int) {
	dev, ok := a.byID[id]
	if !ok {
		return
	}
	delete(a.byID, id)
	delete(a.byName, dev.Name())
	list := a.byType[dev.TypeName()]
	for i, d := range list {
		if d == dev {
			a.byType[dev.TypeName()] = append(list[:i], list[i+1:]...)
			break
		}
	}
}

// ByID returns the device registered under id, regardless of type.
func (a *Aggregate) ByID(id int) (Device, bool) {
	dev, ok := a.byID[id]
	return dev, ok
}

// ByName returns the device registered under name, regardless of type.
func (a *Aggregate) ByName(name string) (Device, bool) {
	dev, ok := a.byName[name]
	return dev, ok
}

// All returns every device known to this aggregate, sorted by id, across
// all types.
func (a *Aggregate) All() []Device {
	out := make([]Device, 0, len(a.byID))
	for _, dev := range a.byID {
		out = append(out, dev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// ByType returns every device of the named type.
func (a *Aggregate) ByType(typeName string) []Device {
	list := a.byType[typeName]
	out := make([]Device, len(list))
	copy(out, list)
	return out
}

// resolveScan implements the create-or-match step of scan() (spec.md
// §4.4): if a device is already registered at id, its type must match
// typeNumber's registered type name, or ScanTypeMismatch is returned. If
// none is registered, the factory for typeNumber is invoked to create one.
// onCreate, when non-nil, runs between construction and registration
// (Manager.Scan uses it to call Device.Init/OnInit, which this package
// cannot do itself: RegistersList needs a registerManager back-reference
// only Manager can provide). An unregistered typeNumber returns
// UnknownType.
func (a *Aggregate) resolveScan(id, typeNumber int, nameIfNew string, onCreate func(Device) error) (Device, error) {
	factory, known := a.factories[typeNumber]
	if existing, ok := a.byID[id]; ok {
		if !known || existing.TypeName() != factory.typeName {
			return nil, ScanTypeMismatchErrorF(
				"device id %d: scan found type number %d but a device of type %q is already registered",
				id, typeNumber, existing.TypeName())
		}
		return existing, nil
	}
	if !known {
		return nil, UnknownTypeErrorF("device id %d: scan found unregistered type number %d", id, typeNumber)
	}
	dev := factory.create(id, nameIfNew)
	if onCreate != nil {
		if err := onCreate(dev); err != nil {
			return nil, err
		}
	}
	if err := a.Add(dev); err != nil {
		return nil, err
	}
	return dev, nil
}
