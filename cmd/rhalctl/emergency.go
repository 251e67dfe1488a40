package main

import "fmt"

type emergencyStopCommand struct{}

func (c *emergencyStopCommand) Execute(args []string) error {
	mgr, err := current.manager()
	if err != nil {
		return err
	}
	mgr.EmergencyStop()
	fmt.Println("emergency stop broadcast")
	return nil
}

type exitEmergencyCommand struct{}

func (c *exitEmergencyCommand) Execute(args []string) error {
	mgr, err := current.manager()
	if err != nil {
		return err
	}
	mgr.ExitEmergencyState()
	fmt.Println("exit-emergency-state broadcast")
	return nil
}
