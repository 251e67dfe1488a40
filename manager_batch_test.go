package rhal

import "testing"

func makeRegs(deviceID, addr, length int) *Register {
	r := NewRegister("r", addr, UintCodec{Width: length})
	rl := newRegistersList(deviceID, nil)
	if err := rl.Add(r); err != nil {
		panic(err)
	}
	return r
}

func TestComputeBatchesMergesContiguousSameDevice(t *testing.T) {
	a := makeRegs(1, 0, 2)
	b := makeRegs(1, 2, 2)
	plan := computeBatches([]*Register{a, b}, false)
	if len(plan) != 1 {
		t.Fatalf("want 1 merged entry, got %d", len(plan))
	}
	if plan[0].addr != 0 || plan[0].length != 4 {
		t.Fatalf("want addr 0 length 4, got addr %d length %d", plan[0].addr, plan[0].length)
	}
	if plan[0].isSync() {
		t.Fatalf("single-device entry must not be sync")
	}
}

func TestComputeBatchesDoesNotMergeNonContiguous(t *testing.T) {
	a := makeRegs(1, 0, 2)
	b := makeRegs(1, 4, 2)
	plan := computeBatches([]*Register{a, b}, false)
	if len(plan) != 2 {
		t.Fatalf("want 2 separate entries for a gap, got %d", len(plan))
	}
}

func TestComputeBatchesSyncMergesAcrossDevicesWithMatchingWindow(t *testing.T) {
	a := makeRegs(1, 0, 2)
	b := makeRegs(2, 0, 2)
	plan := computeBatches([]*Register{a, b}, true)
	if len(plan) != 1 {
		t.Fatalf("want 1 sync entry, got %d", len(plan))
	}
	if !plan[0].isSync() {
		t.Fatalf("expected sync entry")
	}
	if len(plan[0].deviceIDs) != 2 {
		t.Fatalf("want both device ids merged, got %v", plan[0].deviceIDs)
	}
}

func TestComputeBatchesWithoutSyncKeepsDevicesSeparate(t *testing.T) {
	a := makeRegs(1, 0, 2)
	b := makeRegs(2, 0, 2)
	plan := computeBatches([]*Register{a, b}, false)
	if len(plan) != 2 {
		t.Fatalf("want 2 separate entries when sync disabled, got %d", len(plan))
	}
}

func TestComputeBatchesSyncRequiresMatchingWindow(t *testing.T) {
	a := makeRegs(1, 0, 2)
	b := makeRegs(2, 2, 2)
	plan := computeBatches([]*Register{a, b}, true)
	if len(plan) != 2 {
		t.Fatalf("different windows must not merge even with sync enabled, got %d entries", len(plan))
	}
}
