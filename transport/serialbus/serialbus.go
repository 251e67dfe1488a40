// Package serialbus is a concrete rhal.Bus over a real serial port, backed
// by github.com/goburrow/serial, grounded in the original's `SerialBus.cpp`
// open/configure/flush sequence. It is a collaborator, not core: rhal.Bus
// is the contract; this package is one implementation of it.
package serialbus

import (
	"fmt"
	"time"

	"github.com/goburrow/serial"
)

// Option configures an optional Bus parameter at construction.
type Option func(*config)

type config struct {
	dataBits int
	parity   string
	stopBits int
	timeout  time.Duration
	reopen   bool
}

// WithDataBits overrides the default of 8 data bits.
func WithDataBits(n int) Option { return func(c *config) { c.dataBits = n } }

// WithParity overrides the default of no parity ("N"); valid values are
// "N", "E", "O", matching goburrow/serial.Config.Parity.
func WithParity(p string) Option { return func(c *config) { c.parity = p } }

// WithStopBits overrides the default of 1 stop bit.
func WithStopBits(n int) Option { return func(c *config) { c.stopBits = n } }

// WithReadTimeout overrides the default WaitReadable/Read timeout.
func WithReadTimeout(d time.Duration) Option { return func(c *config) { c.timeout = d } }

// WithAutoReopen disables the single best-effort re-open attempt Send
// performs after a transport error, when passed false. It defaults to true.
func WithAutoReopen(enabled bool) Option { return func(c *config) { c.reopen = enabled } }

// Bus is an rhal.Bus backed by a real serial device.
type Bus struct {
	device string
	baud   int
	cfg    config

	port    serial.Port
	pending []byte
}

// New opens device at baud and returns a ready-to-use Bus. It returns an
// error if the port cannot be opened at all; once open, transport errors
// are instead logged (a `WARNING: ...`-prefixed line). A Send error also
// triggers a single best-effort re-open and one retry, so a transient
// USB-serial hiccup does not require the Manager to be restarted; a Read
// error is logged and returned without a re-open.
func New(device string, baud int, opts ...Option) (*Bus, error) {
	cfg := config{dataBits: 8, parity: "N", stopBits: 1, timeout: 200 * time.Millisecond, reopen: true}
	for _, o := range opts {
		o(&cfg)
	}
	b := &Bus{device: device, baud: baud, cfg: cfg}
	if err := b.open(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bus) open() error {
	port, err := serial.Open(&serial.Config{
		Address:  b.device,
		BaudRate: b.baud,
		DataBits: b.cfg.dataBits,
		Parity:   b.cfg.parity,
		StopBits: b.cfg.stopBits,
		Timeout:  b.cfg.timeout,
	})
	if err != nil {
		return fmt.Errorf("serialbus: open %s: %w", b.device, err)
	}
	b.port = port
	return nil
}

// Send writes data to the wire. On a transport error it logs a warning and,
// if auto-reopen is enabled, attempts one reconnection before retrying
// once.
func (b *Bus) Send(data []byte) error {
	_, err := b.port.Write(data)
	if err == nil {
		return nil
	}
	fmt.Printf("WARNING: serialbus %s: write failed: %v\n", b.device, err)
	if !b.cfg.reopen {
		return err
	}
	if reopenErr := b.reopen(); reopenErr != nil {
		return err
	}
	_, err = b.port.Write(data)
	return err
}

// WaitReadable probes the port for readability; the timeout argument is
// not used. goburrow/serial has no select/poll primitive, so this performs a
// 1-byte peek read bounded by the port's own configured Timeout and reports
// whether anything arrived, mirroring the original's termios-based
// `SerialBus::waitForData`.
func (b *Bus) WaitReadable(timeout time.Duration) bool {
	probe := make([]byte, 1)
	n, err := b.port.Read(probe)
	if err != nil || n == 0 {
		return false
	}
	b.pending = append(b.pending, probe[:n]...)
	return true
}

// Available returns the number of bytes already peeked by WaitReadable and
// not yet consumed by Read.
func (b *Bus) Available() int { return len(b.pending) }

// Read drains any bytes buffered by WaitReadable first, then reads directly
// from the port.
func (b *Bus) Read(buffer []byte) (int, error) {
	if len(b.pending) > 0 {
		n := copy(buffer, b.pending)
		b.pending = b.pending[n:]
		return n, nil
	}
	n, err := b.port.Read(buffer)
	if err != nil {
		fmt.Printf("WARNING: serialbus %s: read failed: %v\n", b.device, err)
	}
	return n, err
}

// Flush is a no-op: goburrow/serial writes synchronously and exposes no
// separate drain call.
func (b *Bus) Flush() error { return nil }

// ClearInput discards anything buffered by WaitReadable.
func (b *Bus) ClearInput() { b.pending = nil }

func (b *Bus) reopen() error {
	if b.port != nil {
		_ = b.port.Close()
	}
	if err := b.open(); err != nil {
		fmt.Printf("WARNING: serialbus %s: re-open failed: %v\n", b.device, err)
		return err
	}
	return nil
}

// Close releases the underlying serial port.
func (b *Bus) Close() error { return b.port.Close() }
