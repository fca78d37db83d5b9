// Command ov5640ctl configures an OV5640 sensor over a host i2c bus or a
// USB serial bridge. It runs a single control operation, or serves control
// requests over MQTT when a broker is given.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jonas-koeritz/ov5640"
	"github.com/jonas-koeritz/ov5640/bridge"
	"github.com/jonas-koeritz/ov5640/i2cbus"
	"github.com/jonas-koeritz/ov5640/light"
	"github.com/jonas-koeritz/ov5640/mqttctl"
)

func main() {
	cfg, err := loadConfig(os.Args[1:], os.Getenv, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := ov5640.NewLogger(os.Stderr, cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		level.Error(logger).Log("err", err)
		os.Exit(1)
	}
}

func openConn(cfg config) (ov5640.Conn, error) {
	if cfg.Transport == "serial" {
		if cfg.SerialPort == "" {
			return bridge.Open(cfg.I2CAddr)
		}
		return bridge.Open(cfg.I2CAddr, cfg.SerialPort)
	}
	return i2cbus.Open(cfg.I2CBus, cfg.I2CAddr, cfg.I2CSpeed)
}

func deviceOptions(cfg config, logger log.Logger) ([]ov5640.Option, *light.GPIO, error) {
	opts := []ov5640.Option{ov5640.WithLogger(logger)}

	var lgt *light.GPIO
	if cfg.FlashPin != "" || cfg.TorchPin != "" {
		l, err := light.Open(cfg.FlashPin, cfg.TorchPin)
		if err != nil {
			return nil, nil, err
		}
		lgt = l
		opts = append(opts, ov5640.WithLight(l))
	}

	if cfg.Firmware != "" {
		img, err := readFirmware(cfg.Firmware)
		if err != nil {
			if lgt != nil {
				lgt.Halt()
			}
			return nil, nil, err
		}
		opts = append(opts, ov5640.WithFirmware(img))
	}
	return opts, lgt, nil
}

func readFirmware(path string) (ov5640.FirmwareImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return ov5640.FirmwareImage{}, err
	}
	defer f.Close()
	img, err := ov5640.ParseFirmware(f)
	if err != nil {
		return ov5640.FirmwareImage{}, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// newDevice takes ownership of conn. It is closed here when the device
// cannot be set up, otherwise by the returned cleanup, which also releases
// the light.
func newDevice(conn ov5640.Conn, cfg config, logger log.Logger) (*ov5640.Device, func(), error) {
	opts, lgt, err := deviceOptions(cfg, logger)
	if err != nil {
		if c, ok := conn.(io.Closer); ok {
			c.Close()
		}
		return nil, nil, err
	}
	dev := ov5640.New(conn, opts...)

	cleanup := func() {
		if err := dev.Close(); err != nil {
			level.Warn(logger).Log("msg", "failed to close transport", "err", err)
		}
		if lgt != nil {
			if err := lgt.Halt(); err != nil {
				level.Warn(logger).Log("msg", "failed to release light", "err", err)
			}
		}
	}
	return dev, cleanup, nil
}

func run(cfg config, logger log.Logger) error {
	conn, err := openConn(cfg)
	if err != nil {
		return err
	}
	dev, cleanup, err := newDevice(conn, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	id, err := dev.ChipID()
	if err != nil {
		return err
	}
	level.Info(logger).Log("msg", "sensor found", "transport", cfg.Transport, "chip_id", fmt.Sprintf("0x%04X", id))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Broker != "" {
		client, err := mqttctl.NewMQTTClient(cfg.Broker, "ov5640ctl-"+cfg.Topic)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		return mqttctl.NewServer(client, dev, cfg.Topic, logger).Serve(ctx)
	}

	if cfg.Op == "" {
		return nil
	}
	op, err := ov5640.ParseControl(cfg.Op, cfg.Value)
	if err != nil {
		return err
	}
	res, err := dev.Apply(ctx, op)
	if err != nil {
		return err
	}
	fmt.Printf("%s: focus=%s value=%d size=%dx%d\n", op, res.Focus, res.Value, res.Size.Width, res.Size.Height)
	return nil
}
