package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jonas-koeritz/ov5640"
	"periph.io/x/conn/v3/physic"
)

type config struct {
	Transport  string
	I2CBus     string
	I2CAddr    uint16
	I2CSpeed   physic.Frequency
	SerialPort string
	FlashPin   string
	TorchPin   string
	Firmware   string
	Broker     string
	Topic      string
	LogLevel   string

	Op    string
	Value int
}

// loadConfig reads flags from args. Every flag defaults to its environment
// variable.
func loadConfig(args []string, getenv func(string) string, output io.Writer) (config, error) {
	env := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	var cfg config
	if err := cfg.I2CSpeed.Set(env("OV5640_I2C_HZ", "400kHz")); err != nil {
		return cfg, fmt.Errorf("OV5640_I2C_HZ: %w", err)
	}
	addr, err := strconv.ParseUint(env("OV5640_I2C_ADDR", strconv.Itoa(int(ov5640.Address))), 0, 7)
	if err != nil {
		return cfg, fmt.Errorf("OV5640_I2C_ADDR: %w", err)
	}

	fs := flag.NewFlagSet("ov5640ctl", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintf(output, "Usage:\n  ov5640ctl [OPTIONS]\nOperations:\n  %s\nOptions:\n", strings.Join(ov5640.ControlNames, ", "))
		fs.PrintDefaults()
	}
	fs.StringVar(&cfg.Transport, "transport", env("OV5640_TRANSPORT", "i2c"), "sensor transport: i2c or serial")
	fs.StringVar(&cfg.I2CBus, "i2c-bus", env("OV5640_I2C_BUS", ""), "i2c bus name or number, empty for the first bus")
	a := fs.Uint("i2c-addr", uint(addr), "7-bit sensor address")
	fs.Var(&cfg.I2CSpeed, "i2c-speed", "i2c bus clock")
	fs.StringVar(&cfg.SerialPort, "port", env("OV5640_SERIAL_PORT", ""), "serial bridge port, empty to autodetect")
	fs.StringVar(&cfg.FlashPin, "flash-pin", env("OV5640_FLASH_PIN", ""), "gpio driving the flash strobe")
	fs.StringVar(&cfg.TorchPin, "torch-pin", env("OV5640_TORCH_PIN", ""), "gpio enabling the torch")
	fs.StringVar(&cfg.Firmware, "firmware", env("OV5640_FIRMWARE", ""), "auto-focus firmware in Intel HEX format, empty for the built-in image")
	fs.StringVar(&cfg.Broker, "broker", env("MQTT_BROKER", ""), "MQTT broker url; serve control requests when set")
	fs.StringVar(&cfg.Topic, "topic", env("MQTT_TOPIC", "ov5640"), "MQTT topic prefix")
	fs.StringVar(&cfg.LogLevel, "log-level", env("LOG_LEVEL", "INFO"), "DEBUG, INFO, WARNING or ERROR")
	fs.StringVar(&cfg.Op, "op", "", "operation to run once")
	fs.IntVar(&cfg.Value, "value", 0, "operation argument")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return cfg, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if *a > 0x7F {
		return cfg, fmt.Errorf("invalid i2c address 0x%X", *a)
	}
	cfg.I2CAddr = uint16(*a)

	switch cfg.Transport {
	case "i2c", "serial":
	default:
		return cfg, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
	return cfg, nil
}
