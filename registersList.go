package rhal

import "sort"

// RegistersList holds every Register belonging to one device, indexed by
// name, and enforces the structural invariants from spec.md §4.1: no two
// registers on the same device may share a name, and no two may overlap
// in address space.
type RegistersList struct {
	deviceID int
	manager  registerManager
	byName   map[string]*Register
	ordered  []*Register
}

func newRegistersList(deviceID int, manager registerManager) *RegistersList {
	return &RegistersList{
		deviceID: deviceID,
		manager:  manager,
		byName:   make(map[string]*Register),
	}
}

// Add allocates rx/tx buffers for r, binds it to this device, and appends
// it to the list. It returns a *Error (KindDuplicateName or
// KindAddressOverlap or KindOutOfAddressSpace) if r conflicts with a
// register already present; in that case the list is left unchanged.
func (l *RegistersList) Add(r *Register) error {
	if _, exists := l.byName[r.name]; exists {
		return DuplicateNameErrorF("device %d: register name %q already used", l.deviceID, r.name)
	}
	if err := checkAddressRange(r.name, r.addr, r.length); err != nil {
		return err
	}
	for _, other := range l.ordered {
		if rangesOverlap(r.addr, r.length, other.addr, other.length) {
			return AddressOverlapErrorF("device %d: register %q %s overlaps %q %s",
				l.deviceID, r.name, fmtRange(r.addr, r.length), other.name, fmtRange(other.addr, other.length))
		}
	}

	rx := make([]byte, r.length)
	tx := make([]byte, r.length)
	r.bindBuffers(l.deviceID, l.manager, rx, tx)

	l.byName[r.name] = r
	l.ordered = append(l.ordered, r)
	sort.Slice(l.ordered, func(i, j int) bool { return l.ordered[i].addr < l.ordered[j].addr })
	return nil
}

// Get returns the register with the given name, or nil if none exists.
func (l *RegistersList) Get(name string) *Register {
	return l.byName[name]
}

// Exists reports whether a register with the given name is present.
func (l *RegistersList) Exists(name string) bool {
	_, ok := l.byName[name]
	return ok
}

// All returns every register on this device, ordered by address.
func (l *RegistersList) All() []*Register {
	out := make([]*Register, len(l.ordered))
	copy(out, l.ordered)
	return out
}

// Len returns the number of registers on this device.
func (l *RegistersList) Len() int { return len(l.ordered) }
