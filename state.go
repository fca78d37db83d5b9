package ov5640

import "time"

// RunMode is the sensor's operating mode.
type RunMode uint8

const (
	RunModeNotReady RunMode = iota
	RunModeIdle
	RunModeRunning
	RunModeCapture
)

var runModeNames = [...]string{"not-ready", "idle", "running", "capture"}

func (m RunMode) String() string {
	if int(m) < len(runModeNames) {
		return runModeNames[m]
	}
	return "unknown"
}

// Resolution selects one of the two canned output configurations.
type Resolution uint8

const (
	ResolutionPreview Resolution = iota
	ResolutionCapture
)

func (r Resolution) String() string {
	switch r {
	case ResolutionPreview:
		return "preview"
	case ResolutionCapture:
		return "capture"
	}
	return "unknown"
}

// Brightness levels map onto exposure bias -2..+2.
const (
	BrightnessMin     = 1
	BrightnessDefault = 3
	BrightnessMax     = 5
)

// State is the mutable per-sensor session. It is only touched with the
// device lock held.
type State struct {
	Mode       RunMode
	Resolution Resolution
	Brightness int

	Focus          FocusState
	FocusAvailable bool
	FocusMode      FocusMode

	Flash FlashMode
	// CaptureFlash is the flash mode in effect for the most recent capture.
	CaptureFlash FlashMode

	FrameInterval time.Duration
	OneFrameDelay time.Duration

	// PendingCapture is set by StartCapture and consumed by EnumFrameSize.
	PendingCapture bool

	// LastTimeout is the most recent poll that gave up.
	LastTimeout *PollTimeoutError
}

func newState() State {
	return State{
		Mode:          RunModeNotReady,
		Resolution:    ResolutionPreview,
		Brightness:    BrightnessDefault,
		Focus:         FocusNone,
		FocusMode:     FocusModeAuto,
		Flash:         FlashAuto,
		CaptureFlash:  FlashAuto,
		FrameInterval: defaultFrameInterval,
		OneFrameDelay: oneFrameDelay,
	}
}
