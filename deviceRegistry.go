package rhal

import (
	"bytes"
	"encoding/json"
)

// TypedDeviceRegistry is a per-device-type store, indexed by id and by
// name, with JSON (de)serialization for that type's device list. T is the
// concrete device plug-in type (e.g. *dynaservo.MX64), which must
// implement Device.
type TypedDeviceRegistry[T Device] struct {
	byID   map[int]T
	byName map[string]T
}

// NewTypedDeviceRegistry creates an empty per-type registry.
func NewTypedDeviceRegistry[T Device]() *TypedDeviceRegistry[T] {
	return &TypedDeviceRegistry[T]{
		byID:   make(map[int]T),
		byName: make(map[string]T),
	}
}

// Add registers dev, returning a *Error if its id is outside
// [MinDeviceID, MaxDeviceID], or if its id or name is already used within
// this type.
func (r *TypedDeviceRegistry[T]) Add(dev T) error {
	id := dev.ID()
	if id < MinDeviceID || id > MaxDeviceID {
		return InvalidIDErrorF("device id %d outside [%d, %d]", id, MinDeviceID, MaxDeviceID)
	}
	if _, exists := r.byID[id]; exists {
		return DuplicateNameErrorF("device id %d already registered", id)
	}
	if _, exists := r.byName[dev.Name()]; exists {
		return DuplicateNameErrorF("device name %q already registered", dev.Name())
	}
	r.byID[id] = dev
	r.byName[dev.Name()] = dev
	return nil
}

// Remove drops a device by id, as changeDeviceId requires: the old id is
// no longer resolvable afterward, and the caller is responsible for
// re-adding it under the new id (the Manager does not auto-rewrite).
func (r *TypedDeviceRegistry[T]) Remove(id int) {
	if dev, ok := r.byID[id]; ok {
		delete(r.byName, dev.Name())
		delete(r.byID, id)
	}
}

// ByID returns the device registered under id, or the zero value and
// false if none exists.
func (r *TypedDeviceRegistry[T]) ByID(id int) (T, bool) {
	dev, ok := r.byID[id]
	return dev, ok
}

// ByName returns the device registered under name, or the zero value and
// false if none exists.
func (r *TypedDeviceRegistry[T]) ByName(name string) (T, bool) {
	dev, ok := r.byName[name]
	return dev, ok
}

// All returns every device of this type, in no particular order.
func (r *TypedDeviceRegistry[T]) All() []T {
	out := make([]T, 0, len(r.byID))
	for _, dev := range r.byID {
		out = append(out, dev)
	}
	return out
}

// Len returns the number of devices of this type.
func (r *TypedDeviceRegistry[T]) Len() int { return len(r.byID) }

// typedFileSchema is the strict per-type persistence format described in
// SPEC_FULL.md §9/§3: shared type-level parameter defaults plus one entry
// per device, each carrying its own parameter overrides. Device register
// values are never persisted; only parameters are.
type typedFileSchema struct {
	Parameters map[string]interface{}   `json:"parameters"`
	Devices    []typedDeviceFileSchema `json:"devices"`
}

type typedDeviceFileSchema struct {
	ID         int                    `json:"id"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// SaveJSON serializes this type's shared parameters plus every device's
// id, name, and parameter values.
func (r *TypedDeviceRegistry[T]) SaveJSON(typeParams *ParametersList) ([]byte, error) {
	doc := typedFileSchema{Parameters: paramsToMap(typeParams)}
	for _, dev := range r.byID {
		doc.Devices = append(doc.Devices, typedDeviceFileSchema{
			ID:         dev.ID(),
			Name:       dev.Name(),
			Parameters: paramsToMap(dev.Params()),
		})
	}
	return json.MarshalIndent(doc, "", "  ")
}

// LoadJSON applies shared type-level parameter overrides from data onto
// typeParams, and per-device parameter overrides onto the device already
// registered under each entry's id. It is strict: unknown parameter names
// or devices absent from the registry fail with KindSchemaMismatch rather
// than being silently skipped.
func (r *TypedDeviceRegistry[T]) LoadJSON(data []byte, typeParams *ParametersList) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var doc typedFileSchema
	if err := dec.Decode(&doc); err != nil {
		return SchemaMismatchErrorF("decoding device type file: %v", err)
	}
	if err := applyParamsMap(typeParams, doc.Parameters); err != nil {
		return err
	}
	for _, entry := range doc.Devices {
		dev, ok := r.byID[entry.ID]
		if !ok {
			return SchemaMismatchErrorF("device id %d in file has no registered plug-in", entry.ID)
		}
		if err := applyParamsMap(dev.Params(), entry.Parameters); err != nil {
			return err
		}
	}
	return nil
}

func paramsToMap(list *ParametersList) map[string]interface{} {
	m := make(map[string]interface{})
	if list == nil {
		return m
	}
	for _, p := range list.All() {
		m[p.Name()] = p.rawValue()
	}
	return m
}

func applyParamsMap(list *ParametersList, m map[string]interface{}) error {
	if list == nil {
		return nil
	}
	for name, raw := range m {
		p := list.Get(name)
		if p == nil {
			return SchemaMismatchErrorF("unknown parameter %q", name)
		}
		if err := p.setRawValue(raw); err != nil {
			return err
		}
	}
	return nil
}
