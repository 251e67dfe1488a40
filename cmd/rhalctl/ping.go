package main

import "fmt"

type pingCommand struct {
	Args struct {
		ID int `positional-arg-name:"id" required:"yes"`
	} `positional-args:"yes" required:"yes"`
}

func (c *pingCommand) Execute(args []string) error {
	mgr, err := current.manager()
	if err != nil {
		return err
	}
	if mgr.Ping(c.Args.ID) {
		fmt.Printf("device %d: present\n", c.Args.ID)
	} else {
		fmt.Printf("device %d: no response\n", c.Args.ID)
	}
	return nil
}
