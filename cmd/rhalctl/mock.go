package main

import (
	"github.com/rhoban/rhal"
	"github.com/rhoban/rhal/rhalmock"
)

// mockProtocol returns a small in-memory fleet for --mock dry runs: a
// handful of device ids answering with a made-up type number, so scan/ping
// have something to report without touching real hardware.
func mockProtocol() *rhalmock.Protocol {
	p := rhalmock.NewProtocol()
	for id := 1; id <= 4; id++ {
		p.AddDevice(id, 310)
	}
	return p
}

func mockBus() rhal.Bus { return rhalmock.NewBus() }
