package rhal

import "sync"

// Device is the contract a device plug-in implements to declare its
// registers and parameters to a Manager. Concrete plug-ins (e.g.
// rhal/devices/dynaservo) embed *BaseDevice and add typed accessor
// methods on top of the registers they declare in Init.
type Device interface {
	// ID returns the device's bus id, in [MinDeviceID, MaxDeviceID].
	ID() int
	// Name returns the device's unique display name.
	Name() string
	// TypeName returns the device type string used for scan() matching
	// and JSON persistence (e.g. "dynaservo.MX64").
	TypeName() string
	// Init declares this device's registers and parameters. It is called
	// once, by Manager.AddDevice or Manager.Scan, before the device is
	// usable: RegistersList/ParametersList are constructed by the Manager
	// itself (RegistersList needs a manager back-reference, spec.md §3),
	// so application code never calls Init directly.
	Init(registers *RegistersList, params *ParametersList)
	// OnInit is invoked once, immediately after Init, once registers and
	// parameters are fully declared; plug-ins use it to apply parameter
	// defaults onto registers (setConfig-style), not just build structure.
	OnInit()
	// OnSwap is invoked by the Manager once per cycle, immediately after
	// swap-reads and before batch computation.
	OnSwap()
	// Registers returns the device's declared registers list.
	Registers() *RegistersList
	// Params returns the device's declared parameters list.
	Params() *ParametersList
}

// BaseDevice implements the bookkeeping common to every Device: identity,
// health state machine, and the dontRead parameter. Plug-ins embed it and
// are free to override OnSwap.
type BaseDevice struct {
	mu sync.Mutex

	id       int
	name     string
	typeName string

	present bool
	warning bool
	errored bool
	lastState ResponseState

	presentCount int
	warningCount int
	errorCount   int

	registers *RegistersList
	params    *ParametersList
	dontRead  *Parameter
}

// NewBaseDevice constructs the shared device bookkeeping. Plug-ins call
// this from their own constructor and embed the result.
func NewBaseDevice(id int, name, typeName string) *BaseDevice {
	return &BaseDevice{id: id, name: name, typeName: typeName}
}

func (d *BaseDevice) ID() int         { return d.id }
func (d *BaseDevice) Name() string    { return d.name }
func (d *BaseDevice) TypeName() string { return d.typeName }

// OnSwap is the default no-op hook; plug-ins that need per-cycle
// derived-value computation override it.
func (d *BaseDevice) OnSwap() {}

// OnInit is the default no-op hook; plug-ins that need to push parameter
// values onto registers at startup (e.g. angle-limit parameters onto
// hardware limit registers) override it.
func (d *BaseDevice) OnInit() {}

// Init declares the dontRead parameter common to every device, and keeps
// the RegistersList/ParametersList for later lookups. Plug-ins embedding
// BaseDevice must call this from their own Init before declaring their
// own registers.
func (d *BaseDevice) Init(registers *RegistersList, params *ParametersList) {
	d.registers = registers
	d.params = params
	d.dontRead = NewBoolParameter("dontRead", false)
	_ = params.Add(d.dontRead)
}

// DontRead reports whether this device has been administratively excluded
// from the Manager's periodic read schedule (it may still be
// force-read/force-written).
func (d *BaseDevice) DontRead() bool {
	if d.dontRead == nil {
		return false
	}
	return d.dontRead.Bool()
}

// SetDontRead sets the dontRead parameter.
func (d *BaseDevice) SetDontRead(v bool) {
	if d.dontRead != nil {
		d.dontRead.SetBool(v)
	}
}

// Registers returns the device's declared registers list.
func (d *BaseDevice) Registers() *RegistersList { return d.registers }

// Params returns the device's declared parameters list.
func (d *BaseDevice) Params() *ParametersList { return d.params }

// IsPresent reports whether the most recent response indicated the device
// answered on the bus (state was not Quiet).
func (d *BaseDevice) IsPresent() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.present
}

// IsWarning reports whether the most recent response carried a warning
// bit (Overload|Overheat|BadVoltage|Alert).
func (d *BaseDevice) IsWarning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.warning
}

// IsError reports whether the most recent response carried an error bit.
func (d *BaseDevice) IsError() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.errored
}

// Counters returns the cumulative counts of transitions into the
// present/warning/error states, for diagnostics.
func (d *BaseDevice) Counters() (present, warning, error int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.presentCount, d.warningCount, d.errorCount
}

// updateHealth applies spec.md §4.3's state machine from a response's
// ResponseState bits. It is called by the Manager for every response this
// device produces, success or failure.
func (d *BaseDevice) updateHealth(state ResponseState) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastState = state
	present := state&StateQuiet == 0
	warning := state.IsWarning()
	errored := state.IsError()

	if present && !d.present {
		d.presentCount++
	}
	if warning && !d.warning {
		d.warningCount++
	}
	if errored && !d.errored {
		d.errorCount++
	}

	d.present = present
	d.warning = warning
	d.errored = errored
}

// LastResponseState returns the ResponseState bits from the most recent
// response this device produced.
func (d *BaseDevice) LastResponseState() ResponseState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastState
}
