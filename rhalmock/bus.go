// Package rhalmock provides an in-memory Bus and Protocol pair for testing
// rhal.Manager and device plug-ins without real hardware, grounded in the
// original RhAL's `Lib/Protocol/FakeProtocol.cpp`: a Protocol implementation
// whose entire purpose is to never touch a wire.
package rhalmock

import (
	"bytes"
	"sync"
	"time"
)

// Bus is a loopback rhal.Bus: everything Send writes becomes available to
// Read, as if the wire echoed every byte straight back. It exists so a
// custom Protocol implementation that frames bytes directly over a Bus
// (rather than owning its own transport, as the modbus collaborator does)
// can be exercised in tests; Manager itself never calls Bus methods.
type Bus struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewBus creates an empty loopback Bus.
func NewBus() *Bus { return &Bus{} }

// Send appends data to the loopback buffer.
func (b *Bus) Send(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(data)
	return nil
}

// WaitReadable reports whether any bytes are already buffered; it never
// actually blocks since the loopback has no transport latency.
func (b *Bus) WaitReadable(timeout time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len() > 0
}

// Available returns the number of buffered, unread bytes.
func (b *Bus) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

// Read drains up to len(buffer) bytes from the loopback buffer.
func (b *Bus) Read(buffer []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Read(buffer)
}

// Flush is a no-op: there is nothing in flight to wait for.
func (b *Bus) Flush() error { return nil }

// ClearInput discards any buffered, unread bytes.
func (b *Bus) ClearInput() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}
