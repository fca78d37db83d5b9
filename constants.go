package ov5640

import "time"

type register struct {
	Address  uint16
	ReadOnly bool
}

var SYSTEM_RESET_00 = register{0x3000, false}
var CHIP_ID_HIGH = register{0x300A, true}
var CHIP_ID_LOW = register{0x300B, true}
var AF_CMD_MAIN = register{0x3022, false}
var AF_CMD_ACK = register{0x3023, false}
var AF_CMD_PARA4 = register{0x3028, false}
var AF_FW_STATUS = register{0x3029, false}

// Address is the default 7-bit bus address of the sensor.
var Address uint16 = 0x3C

// ChipID is the value of CHIP_ID_HIGH:CHIP_ID_LOW on a genuine part.
const ChipID uint16 = 0x5640

// FirmwareBase is where the auto-focus MCU program memory starts.
const FirmwareBase uint16 = 0x8000

const (
	mcuDownload = 0x20
	mcuRelease  = 0x00

	afTriggerSingle     = 0x03
	afTriggerContinuous = 0x04
	afRelease           = 0x08

	afAckPending = 0x01
	afAckDone    = 0x00

	afStatusIdle = 0x70
)

const (
	// MaxBurstLen is the largest payload a single configuration burst carries.
	MaxBurstLen = 192

	// SettleDelay follows every bus transaction.
	SettleDelay = time.Millisecond

	// Auto-focus commands were tuned on hardware as 200 polls of 10 ms.
	FocusPollInterval = 10 * time.Millisecond
	FocusPollTimeout  = 200 * FocusPollInterval

	FirmwarePollInterval = 10 * time.Millisecond
	FirmwarePollTimeout  = time.Second

	// macroSettle must pass before the lens is driven in macro range.
	macroSettle = 150 * time.Millisecond

	// oneFrameDelay is one frame at the slowest (15 fps) preview rate.
	oneFrameDelay = 67 * time.Millisecond

	defaultFrameInterval = time.Second / 30
)

// FrameSize is an output resolution in pixels.
type FrameSize struct {
	Width  int
	Height int
}

var sizes = map[Resolution]FrameSize{
	ResolutionPreview: {640, 480},
	ResolutionCapture: {2592, 1944},
}
