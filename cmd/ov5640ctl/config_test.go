package main

import (
	"io"
	"testing"

	"periph.io/x/conn/v3/physic"
)

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		env     map[string]string
		check   func(config) bool
		wantErr bool
	}{
		{
			name: "defaults",
			check: func(c config) bool {
				return c.Transport == "i2c" && c.I2CAddr == 0x3C && c.I2CSpeed == 400*physic.KiloHertz && c.Topic == "ov5640"
			},
		},
		{
			name: "environment",
			env:  map[string]string{"OV5640_TRANSPORT": "serial", "OV5640_I2C_ADDR": "0x3D", "OV5640_I2C_HZ": "100kHz", "MQTT_TOPIC": "cam0"},
			check: func(c config) bool {
				return c.Transport == "serial" && c.I2CAddr == 0x3D && c.I2CSpeed == 100*physic.KiloHertz && c.Topic == "cam0"
			},
		},
		{
			name:  "flags override environment",
			args:  []string{"-transport", "i2c", "-op", "brightness", "-value", "4"},
			env:   map[string]string{"OV5640_TRANSPORT": "serial"},
			check: func(c config) bool { return c.Transport == "i2c" && c.Op == "brightness" && c.Value == 4 },
		},
		{name: "bad transport", args: []string{"-transport", "spi"}, wantErr: true},
		{name: "bad address", env: map[string]string{"OV5640_I2C_ADDR": "0x80"}, wantErr: true},
		{name: "address flag out of range", args: []string{"-i2c-addr", "200"}, wantErr: true},
		{name: "bad speed", env: map[string]string{"OV5640_I2C_HZ": "fast"}, wantErr: true},
		{name: "extra arguments", args: []string{"init"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getenv := func(k string) string { return tt.env[k] }
			cfg, err := loadConfig(tt.args, getenv, io.Discard)
			if tt.wantErr {
				if err == nil {
					t.Errorf("loadConfig() = %+v, want error", cfg)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !tt.check(cfg) {
				t.Errorf("loadConfig() = %+v", cfg)
			}
		})
	}
}
