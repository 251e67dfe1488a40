package rhal

import (
	"fmt"
	"sync"
)

// Ping attempts a low-overhead reachability probe against id and updates
// that device's presence in the registry, if it is known (spec.md §4.5).
func (m *Manager) Ping(id int) bool {
	m.busMu.Lock()
	ok := m.protocol.Ping(id)
	m.busMu.Unlock()

	state := StateQuiet
	if ok {
		state = StateOK
	}
	if dev, found := m.registry.ByID(id); found {
		if bd, ok := dev.(interface{ updateHealth(ResponseState) }); ok {
			bd.updateHealth(state)
		}
	}
	return ok
}

// CheckDevices pings every device currently known to the registry and
// updates its presence.
func (m *Manager) CheckDevices() {
	for _, dev := range m.registry.All() {
		m.Ping(dev.ID())
	}
}

// Scan probes the entire device id range. For every id that answers, it
// reads the type number at TypeRegisterAddr and either matches it against
// an already-registered device (a mismatch always fails with
// ScanTypeMismatch) or creates one via the Aggregate's registered factory.
// An id whose type number has no registered factory fails with
// UnknownType unless ThrowErrorOnScan is false, in which case it is
// silently skipped and the scan continues.
func (m *Manager) Scan() error {
	m.busMu.Lock()
	defer m.busMu.Unlock()

	typeBuf := make([]byte, 2)
	typeCodec := UintCodec{Width: 2}

	for id := MinDeviceID; id <= MaxDeviceID; id++ {
		state, data := m.protocol.Read(id, m.cfg.TypeRegisterAddr, 2)
		if !state.IsPresent() {
			continue
		}
		copy(typeBuf, data)
		typeNumber := int(typeCodec.Decode(typeBuf))
		name := fmt.Sprintf("device-%d", id)

		_, err := m.registry.resolveScan(id, typeNumber, name, m.initDevice)
		if err != nil {
			if e, ok := err.(*Error); ok && e.Kind() == KindUnknownType && !m.cfg.ThrowErrorOnScan {
				continue
			}
			return err
		}
	}
	return nil
}

// emergencyCounters tracks how many times the broadcast emergency commands
// have been issued, for diagnostics (spec.md §4.5 "Both bump counters").
type emergencyCounters struct {
	mu   sync.Mutex
	stop uint64
	exit uint64
}

// EmergencyStop issues a broadcast emergency-stop command via the Protocol,
// holding the bus mutex for the duration of the call.
func (m *Manager) EmergencyStop() {
	m.busMu.Lock()
	m.protocol.EmergencyStop()
	m.busMu.Unlock()
	m.emergency.mu.Lock()
	m.emergency.stop++
	m.emergency.mu.Unlock()
}

// ExitEmergencyState broadcasts the inverse of EmergencyStop.
func (m *Manager) ExitEmergencyState() {
	m.busMu.Lock()
	m.protocol.ExitEmergencyState()
	m.busMu.Unlock()
	m.emergency.mu.Lock()
	m.emergency.exit++
	m.emergency.mu.Unlock()
}

// EmergencyCounters returns how many times EmergencyStop/ExitEmergencyState
// have been issued on this Manager.
func (m *Manager) EmergencyCounters() (stops, exits uint64) {
	m.emergency.mu.Lock()
	defer m.emergency.mu.Unlock()
	return m.emergency.stop, m.emergency.exit
}

// ChangeDeviceID pings oldID, then writes newID into IDRegisterAddr under
// the bus mutex, honoring WaitWriteCheckResponse exactly as a scheduled
// write would. It does not rewrite the Manager's in-memory registry: the
// caller is expected to re-Scan or restart, per spec.md §4.5.
func (m *Manager) ChangeDeviceID(oldID, newID int) error {
	if newID < MinDeviceID || newID > MaxDeviceID {
		return InvalidIDErrorF("changeDeviceId: new id %d outside [%d, %d]", newID, MinDeviceID, MaxDeviceID)
	}

	m.busMu.Lock()
	defer m.busMu.Unlock()

	if !m.protocol.Ping(oldID) {
		return UnknownIDErrorF("changeDeviceId: device %d did not respond to ping", oldID)
	}

	data := make([]byte, 2)
	UintCodec{Width: 2}.Encode(data, float64(newID))

	var state ResponseState
	if m.cfg.WaitWriteCheckResponse {
		state = m.protocol.WriteAndCheck(oldID, m.cfg.IDRegisterAddr, data)
	} else {
		m.protocol.Write(oldID, m.cfg.IDRegisterAddr, data)
		state = StateOK
	}
	if state.IsError() {
		return ForceRetriesExhaustedErrorF("changeDeviceId %d->%d: write failed: %s", oldID, newID, state)
	}
	return nil
}
