package ov5640

import (
	"time"

	"github.com/go-kit/log"
)

// Option configures a Device.
type Option func(*Device)

func WithLogger(l log.Logger) Option {
	return func(d *Device) { d.logger = l }
}

// WithLight attaches the flash / torch peripheral.
func WithLight(l Light) Option {
	return func(d *Device) { d.light = l }
}

// WithMaxBurst limits configuration bursts to n payload bytes.
func WithMaxBurst(n int) Option {
	return func(d *Device) { d.maxBurst = n }
}

// WithSettleDelay overrides the pause after each bus transaction.
func WithSettleDelay(delay time.Duration) Option {
	return func(d *Device) { d.settle = delay }
}

// WithFirmware replaces the embedded auto-focus firmware.
func WithFirmware(img FirmwareImage) Option {
	return func(d *Device) { d.firmware = img }
}

// WithFocusTimeout overrides the auto-focus poll deadline and interval.
func WithFocusTimeout(timeout, interval time.Duration) Option {
	return func(d *Device) {
		d.focusPoll = pollConfig{timeout, interval}
	}
}

// WithFirmwareTimeout overrides the firmware ready poll deadline and
// interval.
func WithFirmwareTimeout(timeout, interval time.Duration) Option {
	return func(d *Device) {
		d.firmwarePoll = pollConfig{timeout, interval}
	}
}
