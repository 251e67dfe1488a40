package rhal

import "time"

// forceReadRegister performs the single-register synchronous read path
// used by immediate mode and by Register.Read() on force-read registers
// (spec.md §4.5 Force paths). It retries up to MaxForceReTries times; on
// exhaustion it returns a KindForceRetriesExhausted *Error if
// ThrowErrorOnRead is set, or logs a warning and returns nil otherwise.
func (m *Manager) forceReadRegister(r *Register) error {
	if m.protocol == nil {
		return NilCollaboratorErrorF("forceRead: no protocol configured")
	}
	id := r.DeviceID()
	var lastState ResponseState

	for attempt := 0; attempt < MaxForceReTries; attempt++ {
		start := time.Now()
		m.busMu.Lock()
		state, data := m.protocol.Read(id, r.Addr(), r.Length())
		m.busMu.Unlock()
		m.stats.Record(StatRead, time.Since(start))

		lastState = state
		if m.applyResponseState(r, state) {
			copy(r.rxBuffer, data)
			r.finishRead(time.Now())
			return nil
		}
		r.readError()
	}

	if m.cfg.ThrowErrorOnRead {
		return ForceRetriesExhaustedErrorF("forceRead device %d register %q: exhausted %d retries, last state %s",
			id, r.Name(), MaxForceReTries, lastState)
	}
	m.logWarning("forceRead device %d register %q exhausted %d retries, last state %s",
		id, r.Name(), MaxForceReTries, lastState)
	return nil
}

// forceWriteRegister performs the single-register synchronous write path.
// It respects WaitWriteCheckResponse and applies the slow-register
// post-delay on success, mirroring the scheduled write path exactly.
func (m *Manager) forceWriteRegister(r *Register) error {
	if m.protocol == nil {
		return NilCollaboratorErrorF("forceWrite: no protocol configured")
	}
	id := r.DeviceID()
	var lastState ResponseState

	for attempt := 0; attempt < MaxForceReTries; attempt++ {
		r.selectForWrite()
		data := make([]byte, r.Length())
		copy(data, r.txBuffer)

		start := time.Now()
		m.busMu.Lock()
		var state ResponseState
		if m.cfg.WaitWriteCheckResponse {
			state = m.protocol.WriteAndCheck(id, r.Addr(), data)
		} else {
			m.protocol.Write(id, r.Addr(), data)
			state = StateOK
		}
		m.busMu.Unlock()
		m.stats.Record(StatWrite, time.Since(start))

		lastState = state
		if m.applyResponseState(r, state) {
			if r.IsSlow() {
				time.Sleep(time.Duration(SlowRegisterDelayMs) * time.Millisecond)
			}
			return nil
		}
		r.writeError()
	}

	if m.cfg.ThrowErrorOnRead {
		return ForceRetriesExhaustedErrorF("forceWrite device %d register %q: exhausted %d retries, last state %s",
			id, r.Name(), MaxForceReTries, lastState)
	}
	m.logWarning("forceWrite device %d register %q exhausted %d retries, last state %s",
		id, r.Name(), MaxForceReTries, lastState)
	return nil
}
