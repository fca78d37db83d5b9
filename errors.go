package ov5640

import (
	"fmt"
	"time"
)

// BusError is a transport failure on a specific register address. For a
// burst, Addr is the start address of the failing burst.
type BusError struct {
	Op   string
	Addr uint16
	Err  error
}

func (e *BusError) Unwrap() error {
	return e.Err
}

func (e *BusError) Error() string {
	return fmt.Sprintf("ov5640: %s 0x%04X: %s", e.Op, e.Addr, e.Err)
}

// FirmwareError reports a failed auto-focus firmware download. The sensor
// stays usable but auto-focus is disabled until the next successful Init.
type FirmwareError struct {
	Step string
	Err  error
}

func (e *FirmwareError) Unwrap() error {
	return e.Err
}

func (e *FirmwareError) Error() string {
	return "ov5640: firmware " + e.Step + ": " + e.Err.Error()
}

// PollTimeoutError is returned when a status register did not reach the
// expected value before the poll deadline.
type PollTimeoutError struct {
	Reg     uint16
	Want    uint8
	Last    uint8
	Elapsed time.Duration
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("ov5640: register 0x%04X still 0x%02X after %s (want 0x%02X)", e.Reg, e.Last, e.Elapsed, e.Want)
}

// InvalidParameterError rejects a control value that has no fallback table.
type InvalidParameterError struct {
	Param string
	Value any
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("ov5640: invalid %s %v", e.Param, e.Value)
}

func wrapErr(op string, addr uint16, err *error) {
	if *err != nil {
		*err = &BusError{op, addr, *err}
	}
}
