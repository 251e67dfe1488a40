package modbus

import (
	"fmt"
	"strings"
	"time"
)

// X03xReadHolding server response to a Read Multiple Holding Registers request
type X03xReadHolding struct {
	Address int
	Values  []int
}

func (s X03xReadHolding) String() string {
	cnt := len(s.Values)
	txt := make([]string, cnt)
	for i, v := range s.Values {
		txt[i] = fmt.Sprintf("    0x%04x:   0x%04x  % 6d\n", s.Address+i, v, v)
	}
	return fmt.Sprintf("X03xReadHolding %05d -> %05d (count %v)\n", s.Address, s.Address+cnt-1, cnt) + strings.Join(txt, "")
}

func (c client) ReadHoldings(from int, count int, tout time.Duration) (*X03xReadHolding, error) {
	p := dataBuilder{}
	p.word(from)
	p.word(count)
	ret := &X03xReadHolding{}
	tx := pdu{0x03, p.payload()}
	decode := func(r *dataReader) error {
		l, err := r.byte()
		if err != nil {
			return err
		}
		if l != count*2 {
			return fmt.Errorf("Expect Read Holding Registers response to have correct count of values, %v not %v", count, l/2)
		}
		v, err := r.words(count)
		if err != nil {
			return err
		}
		ret.Address = from
		ret.Values = v
		return nil
	}
	err := <-c.query(tout, tx, decode)
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// X10xWriteMultipleHoldings server response to a Write Multiple Holding Registers request
type X10xWriteMultipleHoldings struct {
	Address int
	Count   int
}

func (s X10xWriteMultipleHoldings) String() string {
	return fmt.Sprintf("X10xWriteMultipleHoldings 0x%04x: count %d", s.Address, s.Count)
}

func (c client) WriteMultipleHoldings(address int, values []int, tout time.Duration) (*X10xWriteMultipleHoldings, error) {
	p := dataBuilder{}
	p.word(address)
	p.word(len(values))
	p.byte(len(values) * 2)
	p.words(values...)
	tx := pdu{0x10, p.payload()}
	ret := &X10xWriteMultipleHoldings{}
	decode := func(r *dataReader) error {
		got, err := r.word()
		if err != nil {
			return err
		}
		if got != address {
			return fmt.Errorf("Expect Write Multiple Holding Registers response to for the same address %v, not %v", address, got)
		}
		set, err := r.word()
		if err != nil {
			return err
		}
		if set != len(values) {
			return fmt.Errorf("Expect Write Multiple Holding Registers response to for the same value count %v, not %v", len(values), set)
		}
		ret.Address = address
		ret.Count = set
		return nil
	}
	err := <-c.query(tout, tx, decode)
	if err != nil {
		return nil, err
	}
	return ret, nil
}
