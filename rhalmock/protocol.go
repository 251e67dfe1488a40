package rhalmock

import (
	"sync"

	"github.com/rhoban/rhal"
)

type deviceMemory struct {
	present    bool
	memory     []byte
	failReads  int
	failWrites int
}

// Protocol is an in-memory rhal.Protocol: every device is a plain byte
// array, and reads/writes act directly on it instead of crossing a wire.
// It supports fault injection (FailNextRead/FailNextWrite) so tests can
// exercise the Manager's retry and error-accounting paths deterministically
// (spec.md §8's literal scenarios), and an emergency-stop latch so tests
// can assert EmergencyStop/ExitEmergencyState were actually issued.
type Protocol struct {
	mu      sync.Mutex
	devices map[int]*deviceMemory
	params  *rhal.ParametersList

	emergencyStopped bool
}

// NewProtocol creates an empty mock Protocol with no devices present.
func NewProtocol() *Protocol {
	p := &Protocol{devices: make(map[int]*deviceMemory)}
	p.params = rhal.NewParametersList()
	return p
}

// AddDevice makes id respond on the bus with a zeroed AddrSpaceLen memory
// region. typeNumber is written as a little-endian uint16 at addr 0, the
// convention Manager.Scan uses by default (ManagerConfig.TypeRegisterAddr).
func (p *Protocol) AddDevice(id int, typeNumber int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	mem := &deviceMemory{present: true, memory: make([]byte, rhal.AddrSpaceLen)}
	codec := rhal.UintCodec{Width: 2}
	codec.Encode(mem.memory[0:2], float64(typeNumber))
	p.devices[id] = mem
}

// SetPresent toggles whether id answers at all; a non-present id always
// reports StateQuiet.
func (p *Protocol) SetPresent(id int, present bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if mem, ok := p.devices[id]; ok {
		mem.present = present
	}
}

// SetMemory overwrites id's memory starting at addr with data, useful to
// seed register values a test wants a subsequent Read to observe.
func (p *Protocol) SetMemory(id, addr int, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if mem, ok := p.devices[id]; ok {
		copy(mem.memory[addr:], data)
	}
}

// Memory returns a copy of id's full memory region, for assertions.
func (p *Protocol) Memory(id int) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	mem, ok := p.devices[id]
	if !ok {
		return nil
	}
	out := make([]byte, len(mem.memory))
	copy(out, mem.memory)
	return out
}

// FailNextRead arranges for the next n reads addressed to id to report
// StateBadChecksum instead of succeeding.
func (p *Protocol) FailNextRead(id int, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if mem, ok := p.devices[id]; ok {
		mem.failReads = n
	}
}

// FailNextWrite arranges for the next n writes addressed to id to report
// StateBadChecksum instead of succeeding.
func (p *Protocol) FailNextWrite(id int, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if mem, ok := p.devices[id]; ok {
		mem.failWrites = n
	}
}

// EmergencyStopped reports whether EmergencyStop has been called more
// recently than ExitEmergencyState.
func (p *Protocol) EmergencyStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.emergencyStopped
}

func (p *Protocol) Ping(id int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	mem, ok := p.devices[id]
	return ok && mem.present
}

func (p *Protocol) Read(id int, addr int, length int) (rhal.ResponseState, []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	mem, ok := p.devices[id]
	if !ok || !mem.present {
		return rhal.StateQuiet, nil
	}
	if mem.failReads > 0 {
		mem.failReads--
		return rhal.StateBadChecksum, nil
	}
	out := make([]byte, length)
	copy(out, mem.memory[addr:addr+length])
	return rhal.StateOK, out
}

func (p *Protocol) Write(id int, addr int, data []byte) {
	_ = p.WriteAndCheck(id, addr, data)
}

func (p *Protocol) WriteAndCheck(id int, addr int, data []byte) rhal.ResponseState {
	p.mu.Lock()
	defer p.mu.Unlock()
	mem, ok := p.devices[id]
	if !ok || !mem.present {
		return rhal.StateQuiet
	}
	if mem.failWrites > 0 {
		mem.failWrites--
		return rhal.StateBadChecksum
	}
	copy(mem.memory[addr:], data)
	return rhal.StateOK
}

func (p *Protocol) SyncRead(ids []int, addr int, length int) ([]rhal.ResponseState, [][]byte) {
	states := make([]rhal.ResponseState, len(ids))
	datas := make([][]byte, len(ids))
	for i, id := range ids {
		states[i], datas[i] = p.Read(id, addr, length)
	}
	return states, datas
}

func (p *Protocol) SyncWrite(ids []int, addr int, data [][]byte) {
	for i, id := range ids {
		p.Write(id, addr, data[i])
	}
}

func (p *Protocol) SyncWriteAndCheck(ids []int, addr int, data [][]byte) []rhal.ResponseState {
	states := make([]rhal.ResponseState, len(ids))
	for i, id := range ids {
		states[i] = p.WriteAndCheck(id, addr, data[i])
	}
	return states
}

func (p *Protocol) EmergencyStop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emergencyStopped = true
}

func (p *Protocol) ExitEmergencyState() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emergencyStopped = false
}

func (p *Protocol) ParametersList() *rhal.ParametersList { return p.params }
