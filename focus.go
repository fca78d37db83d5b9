package ov5640

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-kit/log/level"
)

// FocusState tracks the auto-focus state machine:
//
//	None -> Initial               firmware loaded by Init
//	None|Initial|Done|Cancelled -> Searching   StartAutoFocus
//	Searching -> Done             ack register cleared, or poll gave up
//	Done -> Cancelled             CancelAutoFocus
//	Done|Cancelled -> None        FinishAutoFocus
type FocusState uint8

const (
	FocusNone FocusState = iota
	FocusInitial
	FocusSearching
	FocusDone
	FocusCancelled
)

var focusStateNames = [...]string{"none", "initial", "searching", "done", "cancelled"}

func (s FocusState) String() string {
	if int(s) < len(focusStateNames) {
		return focusStateNames[s]
	}
	return "unknown"
}

// FocusResult is the code reported back for focus operations. The first
// three values are what the camera HAL expects.
type FocusResult uint8

const (
	AFFailed FocusResult = iota
	AFDone
	AFCancelled
	AFBusy
)

var focusResultNames = [...]string{"failed", "done", "cancelled", "busy"}

func (r FocusResult) String() string {
	if int(r) < len(focusResultNames) {
		return focusResultNames[r]
	}
	return "unknown"
}

// SearchMode selects a one-shot or a continuous focus search.
type SearchMode uint8

const (
	SearchSingle SearchMode = iota + 1
	SearchContinuous
)

func (m SearchMode) String() string {
	switch m {
	case SearchSingle:
		return "single"
	case SearchContinuous:
		return "continuous"
	}
	return fmt.Sprintf("SearchMode(%d)", m)
}

// FocusMode is the lens range.
type FocusMode uint8

const (
	FocusModeAuto FocusMode = iota
	FocusModeMacro
)

func (m FocusMode) String() string {
	switch m {
	case FocusModeAuto:
		return "auto"
	case FocusModeMacro:
		return "macro"
	}
	return fmt.Sprintf("FocusMode(%d)", m)
}

// command issues one auto-focus MCU command and waits for the firmware to
// clear the ack register. A poll timeout is recorded and returned as a
// *PollTimeoutError; bus errors are returned as they are.
func (d *Device) command(ctx context.Context, cmd uint8) error {
	if err := d.writeRegister(AF_CMD_ACK, afAckPending); err != nil {
		return err
	}
	if err := d.writeRegister(AF_CMD_MAIN, cmd); err != nil {
		return err
	}
	err := d.pollRegister(ctx, AF_CMD_ACK, afAckDone, d.focusPoll)
	var timeout *PollTimeoutError
	if errors.As(err, &timeout) {
		d.state.LastTimeout = timeout
		level.Warn(d.logger).Log("msg", "auto-focus command not acknowledged", "cmd", fmt.Sprintf("0x%02X", cmd), "err", err)
	}
	return err
}

func (d *Device) startFocus(ctx context.Context, mode SearchMode) (FocusResult, error) {
	if mode != SearchSingle && mode != SearchContinuous {
		return AFFailed, &InvalidParameterError{"focus search mode", mode}
	}
	if !d.state.FocusAvailable {
		level.Warn(d.logger).Log("msg", "auto-focus unavailable, ignoring start")
		return AFFailed, nil
	}

	prev := d.state.Focus
	d.state.Focus = FocusSearching

	result, err := d.search(ctx, mode)
	var timeout *PollTimeoutError
	switch {
	case errors.As(err, &timeout):
		d.state.Focus = FocusDone
		return AFFailed, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		d.state.Focus = FocusCancelled
		return AFCancelled, err
	case err != nil:
		d.state.Focus = prev
		return AFFailed, err
	}
	d.state.Focus = FocusDone
	return result, nil
}

func (d *Device) search(ctx context.Context, mode SearchMode) (FocusResult, error) {
	// Stop whatever the firmware is doing before a new search.
	if err := d.command(ctx, afRelease); err != nil {
		return AFFailed, err
	}

	if mode == SearchContinuous {
		if err := d.command(ctx, afTriggerContinuous); err != nil {
			return AFFailed, err
		}
		return AFDone, nil
	}

	if d.state.Flash != FlashOff {
		if err := d.light.FlashOn(); err != nil {
			level.Warn(d.logger).Log("msg", "assist light on failed", "err", err)
		}
		defer func() {
			if err := d.light.AssistOff(); err != nil {
				level.Warn(d.logger).Log("msg", "assist light off failed", "err", err)
			}
		}()
	}
	if err := d.command(ctx, afTriggerSingle); err != nil {
		return AFFailed, err
	}
	return AFDone, nil
}

func (d *Device) cancelFocus() FocusResult {
	switch d.state.Focus {
	case FocusSearching, FocusDone:
		d.state.Focus = FocusCancelled
	}
	return AFCancelled
}

func (d *Device) finishFocus() {
	switch d.state.Focus {
	case FocusDone, FocusCancelled:
		d.state.Focus = FocusNone
	}
}

// focusResult reports the outcome of the last search. Raw holds the
// firmware's result register when it was read.
func (d *Device) focusResult() (res FocusResult, raw uint8, err error) {
	if err := d.light.FlashOff(); err != nil {
		level.Warn(d.logger).Log("msg", "flash off failed", "err", err)
	}

	switch d.state.Focus {
	case FocusNone, FocusInitial, FocusCancelled:
		return AFCancelled, 0, nil
	}

	ack, err := d.readRegister(AF_CMD_ACK)
	if err != nil {
		return AFFailed, 0, err
	}
	if ack == afAckPending {
		return AFBusy, 0, nil
	}
	raw, err = d.readRegister(AF_CMD_PARA4)
	if err != nil {
		return AFFailed, 0, err
	}
	if raw != 0 {
		return AFDone, raw, nil
	}
	return AFFailed, 0, nil
}
