package main

import (
	"fmt"

	"github.com/rhoban/rhal"
)

type scanCommand struct{}

// Execute probes the full device id range by ping and prints every
// responding id. rhalctl has no device plug-ins of its own to construct, so
// it reports raw presence rather than driving rhal.Manager.Scan (which
// requires a registered factory per type number).
func (c *scanCommand) Execute(args []string) error {
	mgr, err := current.manager()
	if err != nil {
		return err
	}

	found := 0
	for id := rhal.MinDeviceID; id <= rhal.MaxDeviceID; id++ {
		if !mgr.Ping(id) {
			continue
		}
		found++
		fmt.Printf("device %3d: present\n", id)
	}
	if found == 0 {
		fmt.Println("no devices responded")
	}
	return nil
}
