package rhal

import (
	"sync"
	"time"
)

// ReadValue is the triple returned by Register.Read(): the value, the
// timestamp at which it was received from the bus, and whether no
// successful read has completed yet or the most recent read attempt failed
// (isError, spec.md invariant I5).
type ReadValue struct {
	Timestamp time.Time
	Value     float64
	IsError   bool
}

// registerManager is the subset of Manager a Register needs for its
// force-read/force-write routing and immediate-mode check. It is
// implemented by *Manager; kept as an interface here so register.go has
// no import-time dependency on manager.go's internals.
type registerManager interface {
	forceReadRegister(r *Register) error
	forceWriteRegister(r *Register) error
	isImmediateMode() bool
}

// Register is one typed, double-buffered field of one device. See
// spec.md §3/§4.1 for the full contract.
type Register struct {
	// Immutable configuration.
	name             string
	addr             int
	length           int
	periodPackedRead int
	forceRead        bool
	forceWrite       bool
	slow             bool
	readOnly         bool
	codec            Codec
	policy           AggregationPolicy
	isBoolean        bool

	// deviceID is set once by RegistersList.Add.
	deviceID int
	// manager is a non-owning back-reference for forceRead/forceWrite.
	manager registerManager

	mu sync.Mutex

	// Manager-owned raw buffers, length bytes each, allocated for this
	// register alone by RegistersList.Add; they are not slices of a shared
	// per-device memory region.
	rxBuffer []byte
	txBuffer []byte

	// Mutable state, guarded by mu.
	lastReadUser    time.Time
	lastReadManager time.Time
	lastUserWrite   time.Time

	currentRead float64
	hasRead     bool
	pendingWrite float64
	dirtyRead   bool
	dirtyWrite  bool
	needsSwap   bool
	lastError   bool

	minValue, maxValue, stepValue float64
	hasRange                      bool

	onRead  func(float64)
	onWrite func(float64)
}

// NewRegister constructs a Register. addr and length describe its place
// in the device's address space; codec converts between the typed value
// and the raw buffers. The register is not usable until RegistersList.Add
// allocates its buffers and assigns it to a device.
func NewRegister(name string, addr int, codec Codec, opts ...RegisterOption) *Register {
	r := &Register{
		name:   name,
		addr:   addr,
		length: codec.Length(),
		codec:  codec,
		policy: AggregateLast,
	}
	if _, ok := codec.(BoolCodec); ok {
		r.isBoolean = true
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RegisterOption configures optional Register behavior at construction.
type RegisterOption func(*Register)

// WithPeriod sets the read period, in cycles; 0 (the default) means never
// scheduled for periodic read.
func WithPeriod(cycles int) RegisterOption {
	return func(r *Register) { r.periodPackedRead = cycles }
}

// WithForceRead marks the register so read() always performs an immediate
// bus transaction instead of returning the last swapped value.
func WithForceRead() RegisterOption {
	return func(r *Register) { r.forceRead = true }
}

// WithForceWrite marks the register so write() always performs an
// immediate bus transaction instead of waiting for the next cycle.
func WithForceWrite() RegisterOption {
	return func(r *Register) { r.forceWrite = true }
}

// WithSlow marks the register as requiring a post-write settle delay
// (SlowRegisterDelayMs) before further bus activity in the same cycle.
func WithSlow() RegisterOption {
	return func(r *Register) { r.slow = true }
}

// WithReadOnly marks the register so write() always fails.
func WithReadOnly() RegisterOption {
	return func(r *Register) { r.readOnly = true }
}

// WithAggregation sets the aggregation policy applied to overlapping
// writes between transmissions.
func WithAggregation(p AggregationPolicy) RegisterOption {
	return func(r *Register) { r.policy = p }
}

// WithCallbacks installs optional read/write callbacks. Either may be nil.
func WithCallbacks(onRead, onWrite func(float64)) RegisterOption {
	return func(r *Register) {
		r.onRead = onRead
		r.onWrite = onWrite
	}
}

// WithRange attaches optional min/max/step hints for UI consumers; it does
// not constrain write() itself.
func WithRange(min, max, step float64) RegisterOption {
	return func(r *Register) {
		r.minValue, r.maxValue, r.stepValue = min, max, step
		r.hasRange = true
	}
}

// Name returns the register's name, unique within its device.
func (r *Register) Name() string { return r.name }

// Addr returns the register's address within its device.
func (r *Register) Addr() int { return r.addr }

// Length returns the register's byte length.
func (r *Register) Length() int { return r.length }

// DeviceID returns the id of the device that owns this register.
func (r *Register) DeviceID() int { return r.deviceID }

// IsReadOnly reports whether write() is disallowed on this register.
func (r *Register) IsReadOnly() bool { return r.readOnly }

// IsSlow reports whether a write to this register requires the post-write
// settle delay.
func (r *Register) IsSlow() bool { return r.slow }

// Range returns the optional min/max/step hints and whether they were set.
func (r *Register) Range() (min, max, step float64, ok bool) {
	return r.minValue, r.maxValue, r.stepValue, r.hasRange
}

// bindBuffers is called once by RegistersList.Add to hand this register
// its device id, manager back-reference and its own rx/tx buffers.
func (r *Register) bindBuffers(deviceID int, manager registerManager, rx, tx []byte) {
	r.deviceID = deviceID
	r.manager = manager
	r.rxBuffer = rx
	r.txBuffer = tx
}

// AskRead marks the register dirty-read without blocking.
func (r *Register) AskRead() {
	r.mu.Lock()
	r.dirtyRead = true
	r.mu.Unlock()
}

// AskWrite marks the register dirty-write without changing the pending
// value.
func (r *Register) AskWrite() {
	r.mu.Lock()
	r.dirtyWrite = true
	r.mu.Unlock()
}

// Write aggregates value into the pending write according to the
// register's policy, then schedules it for transmission. If the register
// is read-only, it returns a KindReadOnlyWrite Error and leaves all state
// unchanged (spec.md invariant I6). If the register is flagged
// force-write, or the Manager is in immediate mode, the write is also
// performed synchronously on the bus before Write returns.
func (r *Register) Write(value float64) error {
	if r.readOnly {
		return ReadOnlyWriteErrorF("register %q is read-only", r.name)
	}

	r.mu.Lock()
	if r.dirtyWrite {
		r.pendingWrite = aggregate(r.policy, r.pendingWrite, value, r.isBoolean)
	} else {
		r.pendingWrite = value
		r.dirtyWrite = true
	}
	r.lastUserWrite = nowFunc()
	cb := r.onWrite
	mustForce := r.forceWrite || (r.manager != nil && r.manager.isImmediateMode())
	r.mu.Unlock()

	if cb != nil {
		cb(value)
	}

	if mustForce && r.manager != nil {
		return r.manager.forceWriteRegister(r)
	}
	return nil
}

// Read returns the register's current user-visible value, timestamp, and
// whether no successful read has completed yet or the most recent read
// attempt failed. If the register is flagged force-read, or the Manager is
// in immediate mode, Read first performs a synchronous bus read and
// publishes its result.
func (r *Register) Read() ReadValue {
	if r.manager != nil {
		r.mu.Lock()
		mustForce := r.forceRead || r.manager.isImmediateMode()
		r.mu.Unlock()
		if mustForce {
			_ = r.manager.forceReadRegister(r)
			r.swap()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return ReadValue{
		Timestamp: r.lastReadUser,
		Value:     r.currentRead,
		IsError:   !r.hasRead || r.lastError,
	}
}

// needsReadThisCycle implements spec.md §4.1's derived "needs-read"
// policy. cycleCount is the Manager's current cycle counter. dontRead
// suppresses the periodic component (an explicit AskRead still forces a
// read, but the device's administrative exclusion from the regular
// schedule is honored).
func (r *Register) needsReadThisCycle(cycleCount int, dontRead bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dirtyRead {
		return true
	}
	if dontRead {
		return false
	}
	return r.periodPackedRead > 0 && cycleCount%r.periodPackedRead == 0
}

// needsWriteThisCycle reports the dirty-write flag without side effects.
func (r *Register) needsWriteThisCycle() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirtyWrite
}

// selectForWrite re-encodes the pending value into txBuffer and clears
// dirty-write, as the Manager does when building a write batch
// (spec.md invariant I3).
func (r *Register) selectForWrite() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codec.Encode(r.txBuffer[:r.length], r.pendingWrite)
	r.dirtyWrite = false
}

// readyForRead clears dirty-read as the Manager begins a read
// transaction covering this register.
func (r *Register) readyForRead() {
	r.mu.Lock()
	r.dirtyRead = false
	r.mu.Unlock()
}

// finishRead records a successful hardware read: sets needs-swap and the
// manager-side timestamp (spec.md invariant I4).
func (r *Register) finishRead(at time.Time) {
	r.mu.Lock()
	r.needsSwap = true
	r.lastReadManager = at
	r.lastError = false
	r.mu.Unlock()
}

// readError marks the register dirty-read again so it is retried next
// cycle, and sets the error flag surfaced through Read().
func (r *Register) readError() {
	r.mu.Lock()
	r.dirtyRead = true
	r.lastError = true
	r.mu.Unlock()
}

// writeError re-marks the register dirty-write so the whole aggregated
// value (now lost from txBuffer) is retried from the last pending value.
func (r *Register) writeError() {
	r.mu.Lock()
	r.dirtyWrite = true
	r.mu.Unlock()
}

// swap, run by the Manager under the register's mutex at the start of
// each cycle, decodes rxBuffer into the user-visible value and timestamp
// iff needsSwap is set (spec.md invariant I4).
func (r *Register) swap() {
	r.mu.Lock()
	if !r.needsSwap {
		r.mu.Unlock()
		return
	}
	value := r.codec.Decode(r.rxBuffer[:r.length])
	r.currentRead = value
	r.hasRead = true
	r.lastReadUser = r.lastReadManager
	r.needsSwap = false
	r.lastError = false
	cb := r.onRead
	r.mu.Unlock()

	if cb != nil {
		cb(value)
	}
}

// nowFunc is a seam for tests; production code always uses time.Now.
var nowFunc = time.Now
