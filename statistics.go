package rhal

import (
	"fmt"
	"sync"
	"time"
)

// StatClass identifies one of the call classes the Manager accounts for
// separately (spec.md §3 Statistics).
type StatClass int

const (
	StatRead StatClass = iota
	StatWrite
	StatSyncRead
	StatSyncWrite
	StatFlush
	numStatClasses
)

func (c StatClass) String() string {
	switch c {
	case StatRead:
		return "read"
	case StatWrite:
		return "write"
	case StatSyncRead:
		return "syncRead"
	case StatSyncWrite:
		return "syncWrite"
	case StatFlush:
		return "flush"
	default:
		return "unknown"
	}
}

type classStats struct {
	count    uint64
	totalUs  uint64
	maxUs    uint64
	emaUs    float64
}

// Statistics accumulates per-call-class counters and microsecond duration
// statistics, plus per-cycle register counts, with a running max and an
// exponential moving average. The EMA weight (alpha = 1/8) and the
// counter set are grounded in the original's `Manager::Statistics`
// accumulation, which this repo reproduces with a plain mutex-guarded
// struct rather than the original's lock-free ring.
type Statistics struct {
	mu      sync.Mutex
	classes [numStatClasses]classStats

	registersPerCycle    uint64
	registersPerCycleMax uint64
	registersPerCycleEma float64
	cycles               uint64
}

const statisticsEmaAlpha = 1.0 / 8.0

// NewStatistics creates a zeroed Statistics accumulator.
func NewStatistics() *Statistics { return &Statistics{} }

// Record adds one observation of duration d to class.
func (s *Statistics) Record(class StatClass, d time.Duration) {
	us := uint64(d.Microseconds())
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &s.classes[class]
	c.count++
	c.totalUs += us
	if us > c.maxUs {
		c.maxUs = us
	}
	if c.count == 1 {
		c.emaUs = float64(us)
	} else {
		c.emaUs = statisticsEmaAlpha*float64(us) + (1-statisticsEmaAlpha)*c.emaUs
	}
}

// RecordCycle records the number of registers touched (read+write) in one
// Manager cycle.
func (s *Statistics) RecordCycle(registerCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles++
	n := uint64(registerCount)
	if n > s.registersPerCycleMax {
		s.registersPerCycleMax = n
	}
	if s.cycles == 1 {
		s.registersPerCycleEma = float64(n)
	} else {
		s.registersPerCycleEma = statisticsEmaAlpha*float64(n) + (1-statisticsEmaAlpha)*s.registersPerCycleEma
	}
	s.registersPerCycle = n
}

// Snapshot is an immutable copy of one class's counters, for Print/tests.
type Snapshot struct {
	Class       StatClass
	Count       uint64
	TotalUs     uint64
	MaxUs       uint64
	MeanUs      float64
}

// Snapshots returns a copy of every call class's accumulated statistics.
func (s *Statistics) Snapshots() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Snapshot, 0, numStatClasses)
	for i := StatClass(0); i < numStatClasses; i++ {
		c := s.classes[i]
		out = append(out, Snapshot{Class: i, Count: c.count, TotalUs: c.totalUs, MaxUs: c.maxUs, MeanUs: c.emaUs})
	}
	return out
}

// Reset clears every counter back to zero.
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes = [numStatClasses]classStats{}
	s.registersPerCycle = 0
	s.registersPerCycleMax = 0
	s.registersPerCycleEma = 0
	s.cycles = 0
}

// Print returns a human-readable summary built with fmt.Sprintf,
// matching the teacher's plain fmt.Printf-based diagnostics rather than a
// structured logging library (see DESIGN.md).
func (s *Statistics) Print() string {
	out := ""
	for _, snap := range s.Snapshots() {
		out += fmt.Sprintf("%-10s count=%-8d total=%-10dus max=%-8dus mean=%.1fus\n",
			snap.Class, snap.Count, snap.TotalUs, snap.MaxUs, snap.MeanUs)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out += fmt.Sprintf("%-10s cycles=%-8d last=%-8d max=%-8d mean=%.1f\n",
		"registers", s.cycles, s.registersPerCycle, s.registersPerCycleMax, s.registersPerCycleEma)
	return out
}
