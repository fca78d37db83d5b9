// Package i2cbus opens the sensor on a host i2c bus through periph.io.
package i2cbus

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// MAX_TX_SIZE is the Linux i2c-dev limit on a single message.
const MAX_TX_SIZE = 8192

// DEFAULT_SPEED is the fastest clock the sensor's SCCB interface accepts.
const DEFAULT_SPEED = 400 * physic.KiloHertz

// Bus is the sensor's address on an i2c bus. It implements ov5640.Conn.
type Bus struct {
	dev    *i2c.Dev
	closer i2c.BusCloser
}

// Open initialises the host drivers and opens busName ("" for the first
// bus) with the device at addr. A zero speed keeps the bus clock as it is.
func Open(busName string, addr uint16, speed physic.Frequency) (*Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialise host drivers: %w", err)
	}

	bc, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c bus %q: %w", busName, err)
	}

	b, err := New(bc, addr, speed)
	if err != nil {
		bc.Close()
		return nil, err
	}
	b.closer = bc
	return b, nil
}

// New uses an already open bus.
func New(bus i2c.Bus, addr uint16, speed physic.Frequency) (*Bus, error) {
	if speed != 0 {
		if err := bus.SetSpeed(speed); err != nil {
			return nil, fmt.Errorf("failed to set i2c speed %s: %w", speed, err)
		}
	}
	return &Bus{dev: &i2c.Dev{Addr: addr, Bus: bus}}, nil
}

func (b *Bus) Tx(w, r []byte) error {
	return b.dev.Tx(w, r)
}

func (b *Bus) MaxTxSize() int {
	return MAX_TX_SIZE
}

func (b *Bus) String() string {
	return b.dev.String()
}

// Close releases the bus if it was opened by Open.
func (b *Bus) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}
