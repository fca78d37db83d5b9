package ov5640

import (
	"context"
	"time"
)

// pollRegister reads reg until it holds want or the deadline passes. The
// deadline is measured from the first read so bus time counts against it.
// Bus errors end the poll immediately; an expired deadline returns a
// *PollTimeoutError.
func (d *Device) pollRegister(ctx context.Context, reg register, want uint8, cfg pollConfig) error {
	start := time.Now()
	deadline := start.Add(cfg.timeout)
	for {
		v, err := d.readRegister(reg)
		if err != nil {
			return err
		}
		if v == want {
			return nil
		}
		if !time.Now().Before(deadline) {
			return &PollTimeoutError{reg.Address, want, v, time.Since(start)}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		d.sleep(cfg.interval)
	}
}
