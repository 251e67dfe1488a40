package main

import "fmt"

type readCommand struct {
	Args struct {
		ID     int `positional-arg-name:"id" required:"yes"`
		Addr   int `positional-arg-name:"addr" required:"yes"`
		Length int `positional-arg-name:"length" required:"yes"`
	} `positional-args:"yes" required:"yes"`
}

func (c *readCommand) Execute(args []string) error {
	mgr, err := current.manager()
	if err != nil {
		return err
	}
	probe := newProbeDevice(c.Args.ID, c.Args.Addr, c.Args.Length, false)
	if err := mgr.AddDevice(probe); err != nil {
		return err
	}
	rv := probe.reg.Read()
	if rv.IsError {
		fmt.Printf("device %d addr 0x%02x: read failed\n", c.Args.ID, c.Args.Addr)
		return nil
	}
	fmt.Printf("device %d addr 0x%02x: %v (at %s)\n", c.Args.ID, c.Args.Addr, rv.Value, rv.Timestamp.Format("15:04:05.000"))
	return nil
}
