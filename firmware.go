package ov5640

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"

	"github.com/go-kit/log/level"
	"github.com/marcinbor85/gohex"
)

//go:embed firmware/ov5640_af.hex
var defaultFirmwareHex []byte

// FirmwareImage is a program for the auto-focus MCU and the register address
// it is downloaded to.
type FirmwareImage struct {
	Base uint16
	Data []byte
}

// DefaultFirmware returns the embedded auto-focus firmware.
func DefaultFirmware() FirmwareImage {
	img, err := ParseFirmware(bytes.NewReader(defaultFirmwareHex))
	if err != nil {
		panic(err)
	}
	return img
}

// ParseFirmware reads an Intel HEX image. The image must be a single
// contiguous segment inside the 16-bit register space.
func ParseFirmware(r io.Reader) (FirmwareImage, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return FirmwareImage{}, fmt.Errorf("failed to parse firmware: %w", err)
	}
	segs := mem.GetDataSegments()
	switch {
	case len(segs) == 0:
		return FirmwareImage{}, errors.New("firmware image is empty")
	case len(segs) > 1:
		return FirmwareImage{}, fmt.Errorf("firmware image has %d segments, want 1", len(segs))
	}
	seg := segs[0]
	if uint64(seg.Address)+uint64(len(seg.Data)) > 0x10000 {
		return FirmwareImage{}, fmt.Errorf("firmware image 0x%X+%d exceeds register space", seg.Address, len(seg.Data))
	}
	return FirmwareImage{Base: uint16(seg.Address), Data: seg.Data}, nil
}

// Bursts splits the image into the fewest contiguous bursts of at most
// maxLen bytes.
func (img FirmwareImage) Bursts(maxLen int) []Burst {
	if maxLen < 1 {
		maxLen = 1
	}
	var bursts []Burst
	for off := 0; off < len(img.Data); off += maxLen {
		end := min(off+maxLen, len(img.Data))
		bursts = append(bursts, Burst{img.Base + uint16(off), img.Data[off:end]})
	}
	return bursts
}

// maxFirmwareBurst bounds a firmware burst when the transport reports no
// limit; it fits the 8 KiB i2c-dev message cap.
const maxFirmwareBurst = 8192 - 2

// loadFirmware holds the MCU in reset, downloads img, then releases the MCU
// through AFPostTable and waits for the firmware to report idle.
func (d *Device) loadFirmware(ctx context.Context, img FirmwareImage) error {
	if err := d.writeRegister(SYSTEM_RESET_00, mcuDownload); err != nil {
		return &FirmwareError{"enter download", err}
	}

	// The readback has been seen to disagree on working parts, so a mismatch
	// is only reported.
	if v, err := d.readRegister(SYSTEM_RESET_00); err != nil {
		level.Warn(d.logger).Log("msg", "download mode readback failed", "err", err)
	} else if v != mcuDownload {
		level.Warn(d.logger).Log("msg", "download mode readback mismatch", "got", fmt.Sprintf("0x%02X", v))
	}

	bursts := img.Bursts(d.burstLimit(maxFirmwareBurst))
	level.Info(d.logger).Log("msg", "downloading auto-focus firmware", "bytes", len(img.Data), "bursts", len(bursts))
	if err := d.writeBursts(bursts); err != nil {
		return &FirmwareError{"download", err}
	}

	if err := d.writeTable(AFPostTable); err != nil {
		return &FirmwareError{"release", err}
	}

	err := d.pollRegister(ctx, AF_FW_STATUS, afStatusIdle, d.firmwarePoll)
	var timeout *PollTimeoutError
	switch {
	case errors.As(err, &timeout):
		d.state.LastTimeout = timeout
		level.Warn(d.logger).Log("msg", "firmware did not report idle", "err", err)
	case err != nil:
		return &FirmwareError{"status", err}
	}
	return nil
}
