package main

import "fmt"

type writeCommand struct {
	Args struct {
		ID     int     `positional-arg-name:"id" required:"yes"`
		Addr   int     `positional-arg-name:"addr" required:"yes"`
		Length int     `positional-arg-name:"length" required:"yes"`
		Value  float64 `positional-arg-name:"value" required:"yes"`
	} `positional-args:"yes" required:"yes"`
}

func (c *writeCommand) Execute(args []string) error {
	mgr, err := current.manager()
	if err != nil {
		return err
	}
	probe := newProbeDevice(c.Args.ID, c.Args.Addr, c.Args.Length, true)
	if err := mgr.AddDevice(probe); err != nil {
		return err
	}
	if err := probe.reg.Write(c.Args.Value); err != nil {
		return err
	}
	fmt.Printf("device %d addr 0x%02x: wrote %v\n", c.Args.ID, c.Args.Addr, c.Args.Value)
	return nil
}
