package rhal

import "testing"

func newTestRegister(opts ...RegisterOption) *Register {
	r := NewRegister("x", 0, UintCodec{Width: 2}, opts...)
	rl := newRegistersList(1, nil)
	if err := rl.Add(r); err != nil {
		panic(err)
	}
	return r
}

func TestRegisterWriteAggregatesLast(t *testing.T) {
	r := newTestRegister()
	if err := r.Write(10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Write(20); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.needsWriteThisCycle() {
		t.Fatalf("expected dirty write")
	}
	r.selectForWrite()
	if got := (UintCodec{Width: 2}).Decode(r.txBuffer); got != 20 {
		t.Fatalf("want last value 20, got %v", got)
	}
}

func TestRegisterWriteAggregatesSum(t *testing.T) {
	r := newTestRegister(WithAggregation(AggregateSum))
	_ = r.Write(3)
	_ = r.Write(4)
	r.selectForWrite()
	if got := (UintCodec{Width: 2}).Decode(r.txBuffer); got != 7 {
		t.Fatalf("want sum 7, got %v", got)
	}
}

func TestRegisterReadOnlyRejectsWrite(t *testing.T) {
	r := newTestRegister(WithReadOnly())
	err := r.Write(1)
	if err == nil {
		t.Fatalf("expected error writing to read-only register")
	}
	e, ok := err.(*Error)
	if !ok || e.Kind() != KindReadOnlyWrite {
		t.Fatalf("expected KindReadOnlyWrite, got %v", err)
	}
	if r.needsWriteThisCycle() {
		t.Fatalf("read-only write must not mark dirty")
	}
}

func TestRegisterReadBeforeFirstSwapIsError(t *testing.T) {
	r := newTestRegister()
	rv := r.Read()
	if !rv.IsError {
		t.Fatalf("expected IsError before any successful read")
	}
}

func TestRegisterSwapPublishesValue(t *testing.T) {
	r := newTestRegister()
	UintCodec{Width: 2}.Encode(r.rxBuffer, 42)
	r.finishRead(nowFunc())
	r.swap()
	rv := r.Read()
	if rv.IsError {
		t.Fatalf("unexpected error after swap")
	}
	if rv.Value != 42 {
		t.Fatalf("want 42, got %v", rv.Value)
	}
}

func TestRegisterNeedsReadThisCycleHonorsPeriodAndDontRead(t *testing.T) {
	r := newTestRegister(WithPeriod(4))
	if r.needsReadThisCycle(1, false) {
		t.Fatalf("cycle 1 is not a multiple of period 4")
	}
	if !r.needsReadThisCycle(8, false) {
		t.Fatalf("cycle 8 is a multiple of period 4")
	}
	if r.needsReadThisCycle(8, true) {
		t.Fatalf("dontRead must suppress periodic read")
	}
	r.AskRead()
	if !r.needsReadThisCycle(1, true) {
		t.Fatalf("explicit AskRead must override dontRead")
	}
}

func TestScaledCodecRoundTrips(t *testing.T) {
	c := ScaledCodec{Raw: UintCodec{Width: 2}, Scale: 360.0 / 4096.0}
	buf := make([]byte, 2)
	c.Encode(buf, 180)
	got := c.Decode(buf)
	if diff := got - 180; diff > 0.2 || diff < -0.2 {
		t.Fatalf("want approx 180, got %v", got)
	}
}

func TestIntCodecSignExtends(t *testing.T) {
	c := IntCodec{Width: 2}
	buf := make([]byte, 2)
	c.Encode(buf, -100)
	if got := c.Decode(buf); got != -100 {
		t.Fatalf("want -100, got %v", got)
	}
}

func TestBoolCodec(t *testing.T) {
	c := BoolCodec{}
	buf := make([]byte, 1)
	c.Encode(buf, 1)
	if c.Decode(buf) != 1 {
		t.Fatalf("want true")
	}
	c.Encode(buf, 0)
	if c.Decode(buf) != 0 {
		t.Fatalf("want false")
	}
}
