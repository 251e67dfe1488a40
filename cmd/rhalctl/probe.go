package main

import "github.com/rhoban/rhal"

// probeDevice is a throwaway rhal.Device the read/write commands use to
// reach an arbitrary (id, addr, length) over the Manager's force-read/
// force-write path, since rhalctl has no compiled-in device plug-in for
// whatever hardware the operator is addressing ad hoc.
type probeDevice struct {
	*rhal.BaseDevice

	addr, length int
	forWrite     bool

	reg *rhal.Register
}

func newProbeDevice(id, addr, length int, forWrite bool) *probeDevice {
	return &probeDevice{
		BaseDevice: rhal.NewBaseDevice(id, "rhalctl-probe", "rhalctl.probe"),
		addr:       addr,
		length:     length,
		forWrite:   forWrite,
	}
}

// Init declares the single register this probe reaches, at the address and
// length supplied to newProbeDevice.
func (p *probeDevice) Init(registers *rhal.RegistersList, params *rhal.ParametersList) {
	p.BaseDevice.Init(registers, params)

	codec := rhal.UintCodec{Width: p.length}
	opt := rhal.WithForceRead()
	if p.forWrite {
		opt = rhal.WithForceWrite()
	}
	p.reg = rhal.NewRegister("probe", p.addr, codec, opt)
	_ = registers.Add(p.reg)
}
