package ov5640

// FlashMode is the requested behaviour of the flash LED.
type FlashMode uint8

const (
	FlashOff FlashMode = iota
	FlashAuto
	FlashOn
	FlashTorch
)

var flashModeNames = [...]string{"off", "auto", "on", "torch"}

func (m FlashMode) String() string {
	if int(m) < len(flashModeNames) {
		return flashModeNames[m]
	}
	return "invalid"
}

func (m FlashMode) valid() bool {
	return m <= FlashTorch
}

// Light is the flash / torch driver that sits next to the sensor. It is a
// separate peripheral; the sensor registers know nothing about it.
type Light interface {
	FlashOn() error
	FlashOff() error
	TorchOn() error
	TorchOff() error
	// AssistOff ends the focus assist light started by FlashOn.
	AssistOff() error
}

// NopLight is used when no flash peripheral is fitted.
type NopLight struct{}

func (NopLight) FlashOn() error   { return nil }
func (NopLight) FlashOff() error  { return nil }
func (NopLight) TorchOn() error   { return nil }
func (NopLight) TorchOff() error  { return nil }
func (NopLight) AssistOff() error { return nil }
