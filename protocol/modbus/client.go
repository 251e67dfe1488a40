package modbus

import (
	"errors"
	"fmt"
	"time"
)

type client struct {
	unit  byte
	trans *modbus
	rx    chan pdu
}

// Client is able to drive a single modbus server (Send functions and get responses). RhAL's
// ProtocolAdapter only needs the holding-register and single-coil surface: holdings carry every
// register RhAL devices declare, and the single coil is the broadcast emergency-stop line.
type Client interface {
	// UnitID retrieves the remote unitID we are communicating with
	UnitID() int

	// WriteSingleCoil writes a single coil values to the remote unit
	WriteSingleCoil(address int, value bool, tout time.Duration) (*X05xWriteSingleCoil, error)

	// ReadHoldings reads multipls holding register values from a remote unit
	ReadHoldings(from int, count int, tout time.Duration) (*X03xReadHolding, error)
	// WriteMultipleHoldings writes multiple holding registers to the remote unit
	WriteMultipleHoldings(address int, values []int, tout time.Duration) (*X10xWriteMultipleHoldings, error)
}

func (c *client) UnitID() int {
	return int(c.unit)
}

type readDecoder func(*dataReader) error

// query is a reuable function that all client-operations uses to coordinate the communication
// with the remote server.
func (c *client) query(tout time.Duration, tx pdu, callback readDecoder) <-chan error {
	errc := make(chan error, 0)
	go func() {
		ticker := time.NewTimer(tout)
		c.trans.txid++
		a := adu{true, c.trans.txid, byte(c.unit), tx}
		select {
		case <-ticker.C:
			errc <- fmt.Errorf("Timeout exceeded waiting to send: %v", tout)
			return
		case c.trans.tx <- a:
			// great, sent the data.....
		}
		select {
		case <-ticker.C:
			errc <- fmt.Errorf("Timeout exceeded waiting to receive: %v", tout)
			return
		case rx := <-c.rx:
			// great, received the data.....
			var err error
			if rx.function >= 128 {
				// error condition
				ec := byte(0)
				if len(rx.data) > 0 {
					ec = rx.data[0]
				}
				switch ec {
				case 1:
					err = errors.New("Modbus Illegal Function")
				case 2:
					err = errors.New("Modbus Illegal Data Address")
				case 3:
					err = errors.New("Modbus Illegal Data Value")
				case 4:
					err = errors.New("Modbus Server Device Failure")
				case 5:
					err = errors.New("Modbus ACK Only")
				case 6:
					err = errors.New("Modbus Server Busy")
				default:
					err = fmt.Errorf("Modbus Unknown error code: %v", ec)
				}
			} else {
				reader := getReader(rx.data)
				err = callback(&reader)
				if err == nil {
					err = reader.remaining()
				}
			}
			errc <- err
			close(errc)
		}
	}()
	return errc
}

func errChan() chan error {
	return make(chan error, 1)
}
