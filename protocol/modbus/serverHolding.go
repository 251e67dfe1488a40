package modbus

import (
	"fmt"
)

func (s *server) x03ReadHoldingRegisters(mb Modbus, request *dataReader, response *dataBuilder) error {
	addr, _ := request.word()
	count, _ := request.word()

	atomic := s.StartAtomic()
	defer atomic.Complete()

	registers, err := s.ReadHoldings(atomic, addr, count)
	if err != nil {
		return err
	}

	response.byte(2 * len(registers))
	response.words(registers...)
	return nil
}

func (s *server) xHoldingCommonWrite(atomic Atomic, addr int, values []int) error {
	current, err := s.ReadHoldings(atomic, addr, 1)
	if err != nil {
		return err
	}

	replacement, err := s.updateHoldings(s, atomic, addr, values, current)
	if err != nil {
		return err
	}

	// Update the cache with the replacement values
	err = s.WriteHoldings(atomic, addr, replacement)
	return err
}

func (s *server) x06WriteSingleHoldingRegister(mb Modbus, request *dataReader, response *dataBuilder) error {
	addr, _ := request.word()
	value, _ := request.word()

	atomic := s.StartAtomic()
	defer atomic.Complete()

	err := s.xHoldingCommonWrite(atomic, addr, []int{value})
	if err != nil {
		return err
	}

	response.words(addr, value)
	return nil
}

func (s *server) x10WriteHoldingRegisters(mb Modbus, request *dataReader, response *dataBuilder) error {
	addr, _ := request.word()
	count, _ := request.word()
	bcnt, err := request.byte()
	if err != nil {
		return err
	}
	if bcnt != count*2 {
		return fmt.Errorf("Expected %v bytes for %v registers, but got %v", count*2, count, bcnt)
	}
	words, err := request.words(count)
	if err != nil {
		return err
	}

	atomic := s.StartAtomic()
	defer atomic.Complete()

	err = s.xHoldingCommonWrite(atomic, addr, words)
	if err != nil {
		return err
	}

	response.words(addr, count)
	return nil
}
