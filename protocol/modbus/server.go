package modbus

import (
	"fmt"
)

/*
Atomic allows locked access to the server's internal cache of coil and holding values.
implementation in serverCache.go An Atomic instance is created by calling the StartAtomic() function on the Server

Do not Complete an atomic unless you started it. It's normal to `defer a.Complete()` immediately after starting it

	atomic := server.StartAtomic()
	defer atomic.Complete()

	// do stuff using the atomic...

*/
type Atomic interface {
	// Complete indicates that all operations in the atomic set are queued. It returns when all operations have completed.
	Complete()

	execute(func())
}

// UpdateCoils is a function called when coils are expected to be written by request from a remote client
// Do not Complete the atomic
type UpdateCoils func(server Server, atomic Atomic, address int, values []bool, current []bool) ([]bool, error)

// UpdateHoldings is a function called when holding registers are expected to be written by request from a remote client
// Do not Complete the atomic
type UpdateHoldings func(server Server, atomic Atomic, address int, values []int, current []int) ([]int, error)

// Server represents a system that can handle an incoming request from a remote client
type Server interface {
	// Diagnostics returns the current diagnostic counts of the server instance
	Diagnostics() ServerDiagnostics

	// Busy will return true if a command is actively being handled
	Busy() bool

	// StartAtomic requests that access to the internal memory model/cache (coils and holding registers)
	// of the Server is granted. Only 1 transaction is active at a time, and is active until it is Completed.
	StartAtomic() Atomic

	// RegisterCoils indicates how many coils to make available in the server memory model/cache, and which function to call
	// when a remote client attempts to update the coil settings
	RegisterCoils(count int, handler UpdateCoils)
	// ReadCoils performs a coil read operation as part of an existing atomic operation from the memory model/cache
	ReadCoils(atomic Atomic, address int, count int) ([]bool, error)
	// ReadCoilsAtomic performs an atomic ReadCoils
	ReadCoilsAtomic(address int, count int) ([]bool, error)
	// WriteCoils performs a coil write operation as part of an existing atomic operation to the memory model/cache
	WriteCoils(atomic Atomic, address int, values []bool) error
	// WriteCoilsAtomic performs an atomic WriteCoils
	WriteCoilsAtomic(address int, values []bool) error

	// RegisterHoldings indicates how many holding registers to make available in the server memory model/cache, and which
	// function to call when a remote client attempts to update the holding register values
	RegisterHoldings(count int, handler UpdateHoldings)
	// ReadHoldings performs a holding register read operation as part of an existing atomic operation from the memory model/cache
	ReadHoldings(atomic Atomic, address int, count int) ([]int, error)
	// ReadHoldingsAtomic performs an atomic ReadHoldings
	ReadHoldingsAtomic(address int, count int) ([]int, error)
	// WriteHoldings performs a holding register write operation as part of an existing atomic operation to the memory model/cache
	WriteHoldings(atomic Atomic, address int, values []int) error
	// WriteHoldingsAtomic performs an atomic WriteHoldings
	WriteHoldingsAtomic(address int, values []int) error

	// request is called from the modbus layer and instructs the server to handle a request.
	request(bus Modbus, unit byte, function byte, data []byte) ([]byte, error)
}

type requestHandler func(Modbus, *dataReader, *dataBuilder) error

type checkHandler func() error

type requestHandlerMeta struct {
	function byte
	minSize  int
	handler  requestHandler
	event    bool
}

func (rhm requestHandlerMeta) notEvent() {
	rhm.event = false
}

type server struct {
	id             []byte
	deviceInfo     []string
	rhandlers      map[byte]requestHandlerMeta
	coils          []bool
	holdings       []int
	atomics        chan Atomic
	diag           *serverDiagnosticManager
	updateCoils    UpdateCoils
	updateHoldings UpdateHoldings
}

// NewServer creates a Server instance that can be bound to a Modbus instance using modbus.SetServer(...).
// The server memory model only carries coils and holding registers: every register an RhAL device
// declares lives in holdings, and the single coil it exposes is the broadcast emergency-stop line.
func NewServer(id []byte, deviceInfo []string) (Server, error) {
	if len(deviceInfo) < 3 {
		return nil, fmt.Errorf("DeviceInfo is required to have at least 3 members, not %v", deviceInfo)
	}
	s := &server{}
	s.id = make([]byte, len(id))
	copy(s.id, id)
	s.deviceInfo = make([]string, len(deviceInfo))
	copy(s.deviceInfo, deviceInfo)
	s.rhandlers = make(map[byte]requestHandlerMeta)
	s.diag = newServerDiagnosticManager()
	s.atomics = make(chan Atomic, 0)

	// Set up the coil handlers
	s.addRequestHandler(0x05, 4, s.x05WriteSingleCoil)

	// Set up the holding register handlers
	s.addRequestHandler(0x03, 4, s.x03ReadHoldingRegisters)
	s.addRequestHandler(0x06, 4, s.x06WriteSingleHoldingRegister)
	s.addRequestHandler(0x10, 4, s.x10WriteHoldingRegisters)

	go s.manageCache()

	return s, nil
}

func (s *server) addRequestHandler(function byte, minsize int, handler requestHandler) requestHandlerMeta {
	ret := requestHandlerMeta{function, minsize, handler, true}
	s.rhandlers[function] = ret
	return ret
}

func (s *server) Diagnostics() ServerDiagnostics {
	return s.diag.getDiagnostics()
}

func (s *server) Busy() bool {
	return s.diag.busy()
}

func (s *server) RegisterCoils(count int, handler UpdateCoils) {
	atomic := s.StartAtomic()
	defer atomic.Complete()
	s.ensureCoils(atomic, count)
	s.updateCoils = handler
}

func (s *server) RegisterHoldings(count int, handler UpdateHoldings) {
	atomic := s.StartAtomic()
	defer atomic.Complete()
	s.ensureHoldings(atomic, count)
	s.updateHoldings = handler
}

func (s *server) request(mb Modbus, unit byte, function byte, request []byte) ([]byte, error) {
	h, ok := s.rhandlers[function]
	if !ok {
		return nil, fmt.Errorf("Function code 0x%02x not implemented", function)
	}

	s.diag.message()
	if h.event {
		s.diag.eventQueued()
		defer s.diag.eventComplete()
	}

	req := getReader(request)
	res := dataBuilder{}

	err := req.canRead(h.minSize)
	if err != nil {
		return nil, err
	}

	err = h.handler(mb, &req, &res)
	if err != nil {
		return nil, err
	}

	err = req.remaining()
	if err != nil {
		return nil, err
	}

	if h.event {
		// a successful recorded event increments the successful event counter
		s.diag.eventCounter()
	}

	return res.payload(), nil
}
