package main

import "fmt"

type statsCommand struct{}

func (c *statsCommand) Execute(args []string) error {
	mgr, err := current.manager()
	if err != nil {
		return err
	}
	fmt.Print(mgr.Statistics().Print())
	stops, exits := mgr.EmergencyCounters()
	fmt.Printf("%-10s stops=%-8d exits=%-8d\n", "emergency", stops, exits)
	return nil
}
