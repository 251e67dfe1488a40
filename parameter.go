package rhal

import "strconv"

// ParamKind classifies the value held by a Parameter.
type ParamKind uint8

const (
	ParamBool ParamKind = iota
	ParamNumber
	ParamString
)

// Parameter is a named, typed, persistent configuration value attached to
// a device or to a device type's shared defaults. Unlike a Register, a
// Parameter has no wire representation: it is read by the device plug-in
// at init/onSwap time and is (de)serialized as plain JSON.
type Parameter struct {
	name         string
	kind         ParamKind
	defaultValue interface{}
	value        interface{}
}

// NewBoolParameter creates a boolean Parameter with the given default.
func NewBoolParameter(name string, def bool) *Parameter {
	return &Parameter{name: name, kind: ParamBool, defaultValue: def, value: def}
}

// NewNumberParameter creates a numeric Parameter with the given default.
func NewNumberParameter(name string, def float64) *Parameter {
	return &Parameter{name: name, kind: ParamNumber, defaultValue: def, value: def}
}

// NewStringParameter creates a string Parameter with the given default.
func NewStringParameter(name string, def string) *Parameter {
	return &Parameter{name: name, kind: ParamString, defaultValue: def, value: def}
}

// Name returns the parameter's name.
func (p *Parameter) Name() string { return p.name }

// Kind returns the parameter's value kind.
func (p *Parameter) Kind() ParamKind { return p.kind }

// Bool returns the parameter's value as a bool; it panics if Kind() is not
// ParamBool, mirroring the original's asserted accessors.
func (p *Parameter) Bool() bool { return p.value.(bool) }

// Number returns the parameter's value as a float64.
func (p *Parameter) Number() float64 { return p.value.(float64) }

// String returns the parameter's value as a string. Unlike Bool/Number,
// String also stringifies bool and number values so it is always safe to
// call for logging and display purposes.
func (p *Parameter) String() string {
	switch v := p.value.(type) {
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return v
	default:
		return ""
	}
}

// SetBool assigns a new boolean value; it is a no-op if Kind() is not
// ParamBool.
func (p *Parameter) SetBool(v bool) {
	if p.kind == ParamBool {
		p.value = v
	}
}

// SetNumber assigns a new numeric value; it is a no-op if Kind() is not
// ParamNumber.
func (p *Parameter) SetNumber(v float64) {
	if p.kind == ParamNumber {
		p.value = v
	}
}

// SetString assigns a new string value; it is a no-op if Kind() is not
// ParamString.
func (p *Parameter) SetString(v string) {
	if p.kind == ParamString {
		p.value = v
	}
}

// Reset restores the parameter to its default value.
func (p *Parameter) Reset() { p.value = p.defaultValue }

// rawValue returns the JSON-ready value for persistence.
func (p *Parameter) rawValue() interface{} { return p.value }

// setRawValue assigns a value decoded from JSON (bool, float64, or
// string, per encoding/json's default unmarshaling of interface{}). It
// returns a *Error if kind does not match.
func (p *Parameter) setRawValue(v interface{}) error {
	switch p.kind {
	case ParamBool:
		b, ok := v.(bool)
		if !ok {
			return SchemaMismatchErrorF("parameter %q: expected bool, got %T", p.name, v)
		}
		p.value = b
	case ParamNumber:
		n, ok := v.(float64)
		if !ok {
			return SchemaMismatchErrorF("parameter %q: expected number, got %T", p.name, v)
		}
		p.value = n
	case ParamString:
		s, ok := v.(string)
		if !ok {
			return SchemaMismatchErrorF("parameter %q: expected string, got %T", p.name, v)
		}
		p.value = s
	}
	return nil
}

// ParametersList holds every Parameter belonging to one device or device
// type, indexed by name, and forbids duplicate names.
type ParametersList struct {
	byName  map[string]*Parameter
	ordered []*Parameter
}

func newParametersList() *ParametersList {
	return &ParametersList{byName: make(map[string]*Parameter)}
}

// NewParametersList creates an empty ParametersList for use by device
// plug-ins and Protocol implementations that keep their own type-level
// shared defaults outside the per-device list the Manager builds from
// Device.Init (e.g. a device package's package-level parameter defaults, or
// a Protocol adapter's tunable knobs).
func NewParametersList() *ParametersList {
	return newParametersList()
}

// Add registers p, returning a KindDuplicateName *Error if its name is
// already present.
func (l *ParametersList) Add(p *Parameter) error {
	if _, exists := l.byName[p.name]; exists {
		return DuplicateNameErrorF("parameter name %q already used", p.name)
	}
	l.byName[p.name] = p
	l.ordered = append(l.ordered, p)
	return nil
}

// Get returns the parameter with the given name, or nil if none exists.
func (l *ParametersList) Get(name string) *Parameter {
	return l.byName[name]
}

// Exists reports whether a parameter with the given name is present.
func (l *ParametersList) Exists(name string) bool {
	_, ok := l.byName[name]
	return ok
}

// All returns every parameter in this list, in insertion order.
func (l *ParametersList) All() []*Parameter {
	out := make([]*Parameter, len(l.ordered))
	copy(out, l.ordered)
	return out
}
