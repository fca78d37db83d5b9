// Package ov5640 drives an OV5640 CMOS camera sensor over a 2-wire register
// bus: canned configuration tables, auto-focus firmware download and the
// auto-focus state machine.
package ov5640

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Conn is a raw transaction on the sensor's bus address. A non-empty w is
// written as one transaction, a non-empty r is filled by one read
// transaction. periph.io i2c.Dev satisfies it.
type Conn interface {
	Tx(w, r []byte) error
}

// limiter is implemented by transports with a maximum transaction size.
type limiter interface {
	MaxTxSize() int
}

type pollConfig struct {
	timeout  time.Duration
	interval time.Duration
}

// Device is one physical sensor. All control operations go through Apply,
// which serialises them on the session lock.
type Device struct {
	conn     Conn
	light    Light
	logger   log.Logger
	firmware FirmwareImage

	maxBurst     int
	settle       time.Duration
	focusPoll    pollConfig
	firmwarePoll pollConfig
	sleep        func(time.Duration)

	mu    sync.Mutex
	state State
}

// New creates a Device on conn. The bus must already be configured.
func New(conn Conn, opts ...Option) *Device {
	d := &Device{
		conn:         conn,
		light:        NopLight{},
		firmware:     DefaultFirmware(),
		maxBurst:     MaxBurstLen,
		settle:       SettleDelay,
		focusPoll:    pollConfig{FocusPollTimeout, FocusPollInterval},
		firmwarePoll: pollConfig{FirmwarePollTimeout, FirmwarePollInterval},
		sleep:        time.Sleep,
		state:        newState(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = NewLogger(os.Stderr, "")
	}
	d.logger = log.With(d.logger, "dev", "ov5640")
	return d
}

// Close releases the transport if it is closable.
func (d *Device) Close() error {
	if c, ok := d.conn.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// State returns a snapshot of the session state.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// ChipID reads the sensor identification registers.
func (d *Device) ChipID() (uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	hi, err := d.readRegister(CHIP_ID_HIGH)
	if err != nil {
		return 0, fmt.Errorf("failed to read chip id: %w", err)
	}
	lo, err := d.readRegister(CHIP_ID_LOW)
	if err != nil {
		return 0, fmt.Errorf("failed to read chip id: %w", err)
	}
	id := uint16(hi)<<8 | uint16(lo)
	if id != ChipID {
		level.Warn(d.logger).Log("msg", "unexpected chip id", "id", fmt.Sprintf("0x%04X", id))
	}
	return id, nil
}

func (d *Device) tx(w, r []byte) error {
	err := d.conn.Tx(w, r)
	if d.settle > 0 {
		d.sleep(d.settle)
	}
	return err
}

func (d *Device) readRegister(reg register) (v uint8, err error) {
	defer wrapErr("read", reg.Address, &err)

	if err = d.tx([]byte{byte(reg.Address >> 8), byte(reg.Address)}, nil); err != nil {
		return
	}
	var buf [1]byte
	if err = d.tx(nil, buf[:]); err != nil {
		return
	}
	return buf[0], nil
}

func (d *Device) writeRegister(reg register, value uint8) error {
	if reg.ReadOnly {
		return &InvalidParameterError{"read-only register", fmt.Sprintf("0x%04X", reg.Address)}
	}
	if err := d.tx([]byte{byte(reg.Address >> 8), byte(reg.Address), value}, nil); err != nil {
		return &BusError{"write", reg.Address, err}
	}
	return nil
}

// writeBursts submits bursts in order and stops at the first failure.
func (d *Device) writeBursts(bursts []Burst) error {
	for _, b := range bursts {
		if err := d.tx(b.message(), nil); err != nil {
			return &BusError{"burst", b.Start, err}
		}
	}
	return nil
}

// burstLimit is the payload cap for bursts: max, reduced to what the
// transport can carry after the two address bytes.
func (d *Device) burstLimit(max int) int {
	if l, ok := d.conn.(limiter); ok {
		if n := l.MaxTxSize() - 2; n > 0 && n < max {
			return n
		}
	}
	return max
}

func (d *Device) writeTable(t Table) error {
	bursts := Coalesce(t, d.burstLimit(d.maxBurst))
	level.Debug(d.logger).Log("msg", "writing table", "table", t.Name(), "writes", t.Len(), "bursts", len(bursts))
	if err := d.writeBursts(bursts); err != nil {
		return fmt.Errorf("failed to write table %s: %w", t.Name(), err)
	}
	return nil
}
