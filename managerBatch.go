package rhal

// batchEntry is one bus transaction descriptor: either a single device's
// contiguous window, or (when merged) a synchronized window shared by
// several devices at the same [addr, addr+length).
type batchEntry struct {
	addr      int
	length    int
	deviceIDs []int
	regs      map[int][]*Register
}

// isSync reports whether this entry addresses more than one device and
// therefore requires the sync-read/sync-write protocol path.
func (b *batchEntry) isSync() bool { return len(b.deviceIDs) > 1 }

// computeBatches implements spec.md §4.5's batching algorithm, grounded
// verbatim in the original's `BaseManager::computeBatchedRegisters`:
// registers are assumed already sorted by (device id, address); a
// temporary group extends only on the same device id with adjacent
// addresses, and a closed group attempts to merge into any
// already-emitted entry (not just the last) sharing the same address and
// length, when sync is enabled for this direction.
func computeBatches(selected []*Register, syncEnabled bool) []*batchEntry {
	var plan []*batchEntry

	var groupDeviceID, groupAddr, groupLength int
	var groupRegs []*Register
	hasGroup := false

	closeGroup := func() {
		if !hasGroup {
			return
		}
		if syncEnabled {
			for _, entry := range plan {
				if entry.addr == groupAddr && entry.length == groupLength {
					entry.deviceIDs = append(entry.deviceIDs, groupDeviceID)
					entry.regs[groupDeviceID] = groupRegs
					hasGroup = false
					return
				}
			}
		}
		plan = append(plan, &batchEntry{
			addr:      groupAddr,
			length:    groupLength,
			deviceIDs: []int{groupDeviceID},
			regs:      map[int][]*Register{groupDeviceID: groupRegs},
		})
		hasGroup = false
	}

	for _, r := range selected {
		if hasGroup && r.DeviceID() == groupDeviceID && r.Addr() == groupAddr+groupLength {
			groupRegs = append(groupRegs, r)
			groupLength += r.Length()
			continue
		}
		closeGroup()
		groupDeviceID = r.DeviceID()
		groupAddr = r.Addr()
		groupLength = r.Length()
		groupRegs = []*Register{r}
		hasGroup = true
	}
	closeGroup()

	return plan
}
