// Package light drives the flash LED controller next to the sensor through
// two GPIO lines: a strobe line for the flash and the focus assist light,
// and an enable line for the torch.
package light

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// GPIO implements ov5640.Light. A nil line is treated as not fitted.
type GPIO struct {
	flash gpio.PinOut
	torch gpio.PinOut
}

// Open looks the lines up by name, for example "GPIO17". An empty name
// leaves that line out.
func Open(flashPin, torchPin string) (*GPIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialise host drivers: %w", err)
	}

	var lines [2]gpio.PinOut
	for i, name := range []string{flashPin, torchPin} {
		if name == "" {
			continue
		}
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("unknown gpio %q", name)
		}
		lines[i] = p
	}

	return New(lines[0], lines[1])
}

// New drives both lines low and returns the light.
func New(flash, torch gpio.PinOut) (*GPIO, error) {
	l := &GPIO{flash: flash, torch: torch}
	if err := l.set(l.flash, gpio.Low, "flash"); err != nil {
		return nil, err
	}
	if err := l.set(l.torch, gpio.Low, "torch"); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *GPIO) set(p gpio.PinOut, level gpio.Level, what string) error {
	if p == nil {
		return nil
	}
	if err := p.Out(level); err != nil {
		return fmt.Errorf("failed to set %s line %s %s: %w", what, p, level, err)
	}
	return nil
}

func (l *GPIO) FlashOn() error {
	return l.set(l.flash, gpio.High, "flash")
}

func (l *GPIO) FlashOff() error {
	return l.set(l.flash, gpio.Low, "flash")
}

func (l *GPIO) TorchOn() error {
	return l.set(l.torch, gpio.High, "torch")
}

func (l *GPIO) TorchOff() error {
	return l.set(l.torch, gpio.Low, "torch")
}

// AssistOff ends the focus assist light. The assist light is the strobe
// line held high, so this is the same as FlashOff.
func (l *GPIO) AssistOff() error {
	return l.FlashOff()
}

// Halt releases both lines.
func (l *GPIO) Halt() error {
	for _, p := range []gpio.PinOut{l.flash, l.torch} {
		if p == nil {
			continue
		}
		if err := p.Halt(); err != nil {
			return err
		}
	}
	return nil
}
