package ov5640

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-kit/log/level"
)

// ControlOp is one control request. The set of operations is closed: only
// the types in this package implement it.
type ControlOp interface {
	fmt.Stringer
	apply(ctx context.Context, d *Device) (Result, error)
}

// Result is what a control operation reports back. Only the fields that
// make sense for the operation are set.
type Result struct {
	Focus FocusResult
	Value int
	Size  FrameSize
}

// Apply runs op with the session lock held for its whole duration, so a
// concurrent query never sees a half-applied update. Bus and poll delays
// block the caller. ctx is checked between poll iterations only.
func (d *Device) Apply(ctx context.Context, op ControlOp) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	level.Debug(d.logger).Log("msg", "control", "op", op)
	res, err := op.apply(ctx, d)
	if err != nil {
		level.Error(d.logger).Log("msg", "control failed", "op", op, "err", err)
	}
	return res, err
}

// Init either runs the full power-on configuration plus auto-focus firmware
// download (FirstTime) or restores the preview configuration after a
// capture.
type Init struct {
	FirstTime bool
}

func (o Init) String() string { return fmt.Sprintf("init(first=%t)", o.FirstTime) }

func (o Init) apply(ctx context.Context, d *Device) (Result, error) {
	if !o.FirstTime {
		if err := d.writeTable(PreviewTable); err != nil {
			return Result{}, err
		}
		d.state.Resolution = ResolutionPreview
		if d.state.Mode == RunModeCapture {
			d.state.Mode = RunModeRunning
		}
		return Result{}, nil
	}

	d.state = newState()
	if err := d.writeTable(InitTable); err != nil {
		return Result{}, err
	}
	d.state.Mode = RunModeIdle

	if err := d.loadFirmware(ctx, d.firmware); err != nil {
		level.Error(d.logger).Log("msg", "auto-focus disabled", "err", err)
		return Result{Focus: AFFailed}, err
	}
	d.state.FocusAvailable = true
	d.state.Focus = FocusInitial
	level.Info(d.logger).Log("msg", "sensor initialised", "focus", d.state.Focus)
	return Result{Focus: AFDone}, nil
}

// SetResolution switches between the two supported configurations.
type SetResolution struct {
	Target Resolution
}

func (o SetResolution) String() string { return "resolution(" + o.Target.String() + ")" }

func (o SetResolution) apply(_ context.Context, d *Device) (Result, error) {
	var t Table
	switch o.Target {
	case ResolutionPreview:
		t = PreviewTable
	case ResolutionCapture:
		t = CaptureTable
	default:
		return Result{}, &InvalidParameterError{"resolution", o.Target}
	}
	if err := d.writeTable(t); err != nil {
		return Result{}, err
	}
	d.state.Resolution = o.Target
	return Result{Size: sizes[o.Target]}, nil
}

// SetBrightness applies exposure bias level 1..5. Other levels fall back
// to the neutral table.
type SetBrightness struct {
	Level int
}

func (o SetBrightness) String() string { return fmt.Sprintf("brightness(%d)", o.Level) }

func (o SetBrightness) apply(_ context.Context, d *Device) (Result, error) {
	lvl := o.Level
	if lvl < BrightnessMin || lvl > BrightnessMax {
		level.Debug(d.logger).Log("msg", "brightness out of range, using neutral", "level", lvl)
		lvl = BrightnessDefault
	}
	if err := d.writeTable(evTable(lvl)); err != nil {
		return Result{}, err
	}
	d.state.Brightness = lvl
	return Result{Value: lvl}, nil
}

// SetFlashMode drives the torch and records the flash mode once the light
// has accepted it.
type SetFlashMode struct {
	Mode FlashMode
}

func (o SetFlashMode) String() string { return "flash(" + o.Mode.String() + ")" }

func (o SetFlashMode) apply(_ context.Context, d *Device) (Result, error) {
	if !o.Mode.valid() {
		return Result{}, &InvalidParameterError{"flash mode", int(o.Mode)}
	}
	var err error
	if o.Mode == FlashTorch {
		err = d.light.TorchOn()
	} else {
		err = d.light.TorchOff()
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to set flash mode %s: %w", o.Mode, err)
	}
	d.state.Flash = o.Mode
	d.state.CaptureFlash = o.Mode
	return Result{Value: int(o.Mode)}, nil
}

// StartCapture switches to the capture configuration. The next
// EnumFrameSize reports the capture size.
type StartCapture struct{}

func (StartCapture) String() string { return "capture" }

func (StartCapture) apply(_ context.Context, d *Device) (Result, error) {
	if err := d.writeTable(CaptureTable); err != nil {
		return Result{}, err
	}
	d.state.Mode = RunModeCapture
	d.state.Resolution = ResolutionCapture
	d.state.PendingCapture = true
	d.state.CaptureFlash = d.state.Flash
	return Result{Size: sizes[ResolutionCapture]}, nil
}

// StartAutoFocus runs a focus search. When the firmware could not be
// loaded it does nothing and reports AFFailed.
type StartAutoFocus struct {
	Mode SearchMode
}

func (o StartAutoFocus) String() string { return "autofocus(" + o.Mode.String() + ")" }

func (o StartAutoFocus) apply(ctx context.Context, d *Device) (Result, error) {
	res, err := d.startFocus(ctx, o.Mode)
	return Result{Focus: res}, err
}

// CancelAutoFocus marks the current search cancelled. It does not touch
// the bus and cannot interrupt a search in progress.
type CancelAutoFocus struct{}

func (CancelAutoFocus) String() string { return "cancel-autofocus" }

func (CancelAutoFocus) apply(_ context.Context, d *Device) (Result, error) {
	return Result{Focus: d.cancelFocus()}, nil
}

// FinishAutoFocus returns a completed or cancelled search to idle.
type FinishAutoFocus struct{}

func (FinishAutoFocus) String() string { return "finish-autofocus" }

func (FinishAutoFocus) apply(_ context.Context, d *Device) (Result, error) {
	d.finishFocus()
	return Result{}, nil
}

// FocusResultQuery queries the outcome of the last focus search.
type FocusResultQuery struct{}

func (FocusResultQuery) String() string { return "focus-result" }

func (FocusResultQuery) apply(_ context.Context, d *Device) (Result, error) {
	res, raw, err := d.focusResult()
	return Result{Focus: res, Value: int(raw)}, err
}

// SetStream starts or stops streaming. The sensor streams as soon as it is
// configured, so only the run mode changes.
type SetStream struct {
	On bool
}

func (o SetStream) String() string { return fmt.Sprintf("stream(%t)", o.On) }

func (o SetStream) apply(_ context.Context, d *Device) (Result, error) {
	switch {
	case o.On && d.state.Mode == RunModeIdle:
		d.state.Mode = RunModeRunning
	case !o.On && d.state.Mode == RunModeRunning:
		d.state.Mode = RunModeIdle
	}
	return Result{}, nil
}

// EnumFrameSize reports the frame size the host should expect: the capture
// size once after StartCapture, the preview size otherwise.
type EnumFrameSize struct{}

func (EnumFrameSize) String() string { return "frame-size" }

func (EnumFrameSize) apply(_ context.Context, d *Device) (Result, error) {
	r := ResolutionPreview
	if d.state.PendingCapture {
		r = ResolutionCapture
	}
	d.state.PendingCapture = false
	return Result{Size: sizes[r]}, nil
}

// SetFocusMode selects the lens range. Entering macro waits for the sensor
// to settle.
type SetFocusMode struct {
	Mode FocusMode
}

func (o SetFocusMode) String() string { return "focus-mode(" + o.Mode.String() + ")" }

func (o SetFocusMode) apply(_ context.Context, d *Device) (Result, error) {
	if o.Mode != FocusModeAuto && o.Mode != FocusModeMacro {
		return Result{}, &InvalidParameterError{"focus mode", int(o.Mode)}
	}
	if o.Mode == FocusModeMacro && d.state.FocusMode != FocusModeMacro {
		d.sleep(macroSettle)
	}
	d.state.FocusMode = o.Mode
	return Result{Value: int(o.Mode)}, nil
}

type GetBrightness struct{}

func (GetBrightness) String() string { return "get-brightness" }

func (GetBrightness) apply(_ context.Context, d *Device) (Result, error) {
	return Result{Value: d.state.Brightness}, nil
}

// GetCaptureFlash reports the flash mode used for the last capture.
type GetCaptureFlash struct{}

func (GetCaptureFlash) String() string { return "capture-flash" }

func (GetCaptureFlash) apply(_ context.Context, d *Device) (Result, error) {
	return Result{Value: int(d.state.CaptureFlash)}, nil
}

// ControlNames lists the names understood by ParseControl.
var ControlNames = []string{
	"init", "restore", "resolution", "brightness", "flash", "capture",
	"autofocus", "cancel-autofocus", "finish-autofocus", "focus-result",
	"stream", "frame-size", "focus-mode", "get-brightness", "capture-flash",
}

// ParseControl maps a control name and integer argument, as used on the
// command line and over MQTT, to an operation.
func ParseControl(name string, value int) (ControlOp, error) {
	switch strings.ToLower(name) {
	case "init":
		return Init{FirstTime: true}, nil
	case "restore":
		return Init{FirstTime: false}, nil
	case "resolution":
		return SetResolution{Resolution(value)}, nil
	case "brightness":
		return SetBrightness{value}, nil
	case "flash":
		return SetFlashMode{FlashMode(value)}, nil
	case "capture":
		return StartCapture{}, nil
	case "autofocus":
		return StartAutoFocus{SearchMode(value)}, nil
	case "cancel-autofocus":
		return CancelAutoFocus{}, nil
	case "finish-autofocus":
		return FinishAutoFocus{}, nil
	case "focus-result":
		return FocusResultQuery{}, nil
	case "stream":
		return SetStream{value != 0}, nil
	case "frame-size":
		return EnumFrameSize{}, nil
	case "focus-mode":
		return SetFocusMode{FocusMode(value)}, nil
	case "get-brightness":
		return GetBrightness{}, nil
	case "capture-flash":
		return GetCaptureFlash{}, nil
	}
	return nil, &InvalidParameterError{"control", name}
}
