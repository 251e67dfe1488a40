package modbus

import (
	"fmt"
	"time"
)

// X05xWriteSingleCoil server response to a Write Single Coil request
type X05xWriteSingleCoil struct {
	Address int
	Value   bool
}

func (s X05xWriteSingleCoil) String() string {
	v := "set / on"
	if !s.Value {
		v = "clear / off"
	}
	return fmt.Sprintf("X05xWriteSingleCoil %05d -> %v", s.Address, v)
}

func (c *client) WriteSingleCoil(address int, value bool, tout time.Duration) (*X05xWriteSingleCoil, error) {
	p := dataBuilder{}
	p.word(address)
	if value {
		p.word(0xFF00)
	} else {
		p.word(0x0000)
	}
	tx := pdu{0x05, p.payload()}
	ret := &X05xWriteSingleCoil{}
	decode := func(r *dataReader) error {
		err := r.canRead(4)
		if err != nil {
			return err
		}
		a, _ := r.word()
		v, _ := r.word()
		ret.Address = a
		ret.Value = v == 0xff00
		return nil
	}
	err := <-c.query(tout, tx, decode)
	if err != nil {
		return nil, err
	}
	return ret, nil
}
