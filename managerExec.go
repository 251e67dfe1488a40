package rhal

import "time"

// executeWritePlan runs every write batch entry in order (spec.md §4.5
// Transaction execution), then applies the slow-register post-delay once
// if any written register required it. It returns the number of
// registers touched, for Statistics.RecordCycle.
func (m *Manager) executeWritePlan(plan []*batchEntry) int {
	if len(plan) == 0 {
		return 0
	}
	m.busMu.Lock()
	defer m.busMu.Unlock()

	touched := 0
	slowSeen := false

	for _, entry := range plan {
		start := time.Now()
		if entry.isSync() {
			ids := entry.deviceIDs
			datas := make([][]byte, len(ids))
			for i, id := range ids {
				datas[i] = concatTxBuffers(entry.regs[id])
			}
			var states []ResponseState
			if m.cfg.WaitWriteCheckResponse {
				states = m.protocol.SyncWriteAndCheck(ids, entry.addr, datas)
				m.stats.Record(StatSyncWrite, time.Since(start))
			} else {
				m.protocol.SyncWrite(ids, entry.addr, datas)
				m.stats.Record(StatSyncWrite, time.Since(start))
				states = make([]ResponseState, len(ids))
				for i := range states {
					states[i] = StateOK
				}
			}
			for i, id := range ids {
				regs := entry.regs[id]
				ok := m.applyResponseState(regs[0], states[i])
				if !ok {
					for _, r := range regs {
						r.writeError()
					}
				}
				for _, r := range regs {
					if r.IsSlow() {
						slowSeen = true
					}
					touched++
				}
			}
			continue
		}

		id := entry.deviceIDs[0]
		regs := entry.regs[id]
		data := concatTxBuffers(regs)
		var state ResponseState
		if m.cfg.WaitWriteCheckResponse {
			state = m.protocol.WriteAndCheck(id, entry.addr, data)
		} else {
			m.protocol.Write(id, entry.addr, data)
			state = StateOK
		}
		m.stats.Record(StatWrite, time.Since(start))
		ok := m.applyResponseState(regs[0], state)
		if !ok {
			for _, r := range regs {
				r.writeError()
			}
		}
		for _, r := range regs {
			if r.IsSlow() {
				slowSeen = true
			}
			touched++
		}
	}

	if slowSeen {
		time.Sleep(time.Duration(SlowRegisterDelayMs) * time.Millisecond)
	}
	return touched
}

// executeReadPlan runs every read batch entry in order, distributing each
// response's bytes to the member registers' rxBuffer and marking the
// swap-pending state or the retry/error state per response.
func (m *Manager) executeReadPlan(plan []*batchEntry) int {
	if len(plan) == 0 {
		return 0
	}
	m.busMu.Lock()
	defer m.busMu.Unlock()

	touched := 0
	for _, entry := range plan {
		start := time.Now()
		if entry.isSync() {
			ids := entry.deviceIDs
			states, datas := m.protocol.SyncRead(ids, entry.addr, entry.length)
			m.stats.Record(StatSyncRead, time.Since(start))
			now := time.Now()
			for i, id := range ids {
				regs := entry.regs[id]
				ok := m.applyResponseState(regs[0], states[i])
				if ok {
					distributeRxBuffer(regs, datas[i])
					for _, r := range regs {
						r.finishRead(now)
					}
				} else {
					for _, r := range regs {
						r.readError()
					}
				}
				touched += len(regs)
			}
			continue
		}

		id := entry.deviceIDs[0]
		regs := entry.regs[id]
		state, data := m.protocol.Read(id, entry.addr, entry.length)
		m.stats.Record(StatRead, time.Since(start))
		ok := m.applyResponseState(regs[0], state)
		if ok {
			now := time.Now()
			distributeRxBuffer(regs, data)
			for _, r := range regs {
				r.finishRead(now)
			}
		} else {
			for _, r := range regs {
				r.readError()
			}
		}
		touched += len(regs)
	}
	return touched
}

// concatTxBuffers concatenates a contiguous register group's pending
// write bytes, in address order, into one transaction payload.
func concatTxBuffers(regs []*Register) []byte {
	total := 0
	for _, r := range regs {
		total += r.length
	}
	buf := make([]byte, 0, total)
	for _, r := range regs {
		buf = append(buf, r.txBuffer...)
	}
	return buf
}

// distributeRxBuffer copies one transaction response, in address order,
// into each member register's rxBuffer.
func distributeRxBuffer(regs []*Register, data []byte) {
	off := 0
	for _, r := range regs {
		copy(r.rxBuffer, data[off:off+r.length])
		off += r.length
	}
}
