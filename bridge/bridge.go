// Package bridge talks to the sensor through a USB-CDC serial to i2c bridge.
// Every i2c transaction is one framed ASCII command:
//
//	"   #" LLLL CMD PAYLOAD CCCC
//
// where LLLL is the hex length of CMD, PAYLOAD and CCCC, and CCCC is the hex
// 16-bit sum of the CMD and PAYLOAD bytes. The host sends "XXXX" as its
// checksum; replies carry a real one.
package bridge

import (
	"encoding/hex"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// Bridge is an i2c connection to one device address behind the bridge. It
// implements ov5640.Conn.
type Bridge struct {
	port io.ReadWriteCloser
	Addr uint16

	mutex sync.Mutex
}

// Open connects to the bridge on serialPort, or autodetects it by USB id
// when no port is given.
func Open(addr uint16, serialPort ...string) (*Bridge, error) {
	portName := ""
	var err error

	if len(serialPort) == 0 || serialPort[0] == "" {
		portName, err = getSerialPort()
		if err != nil {
			return nil, fmt.Errorf("failed to open bridge: %w", err)
		}
	} else {
		portName = serialPort[0]
	}

	p, err := serial.Open(portName, &serial.Mode{}) // USB-CDC, line settings are ignored
	if err != nil {
		return nil, fmt.Errorf("failed to open bridge: %w", err)
	}
	if err := p.ResetInputBuffer(); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to open bridge: %w", err)
	}

	return New(p, addr), nil
}

// New uses an already open port.
func New(port io.ReadWriteCloser, addr uint16) *Bridge {
	return &Bridge{port: port, Addr: addr}
}

func (b *Bridge) Close() error {
	return b.port.Close()
}

// MaxTxSize is the largest write the bridge accepts, address bytes included.
func (b *Bridge) MaxTxSize() int {
	return MAX_TRANSFER
}

func (b *Bridge) String() string {
	return fmt.Sprintf("bridge(0x%02X)", b.Addr)
}

// Tx writes w as one i2c write and then fills r from one i2c read. Either
// may be empty.
func (b *Bridge) Tx(w, r []byte) error {
	if len(w) > MAX_TRANSFER || len(r) > MAX_TRANSFER {
		return fmt.Errorf("transaction too large: write %d, read %d (max %d)", len(w), len(r), MAX_TRANSFER)
	}

	if len(w) > 0 {
		response, err := b.sendCommand(CMD_WRITE, fmt.Sprintf("%02X%X", b.Addr, w))
		if err != nil {
			return fmt.Errorf("failed to write: %w", err)
		}
		if _, err := parseStatus(response); err != nil {
			return fmt.Errorf("failed to write: %w", err)
		}
	}

	if len(r) > 0 {
		response, err := b.sendCommand(CMD_READ, fmt.Sprintf("%02X%02X", b.Addr, len(r)))
		if err != nil {
			return fmt.Errorf("failed to read: %w", err)
		}
		data, err := parseStatus(response)
		if err != nil {
			return fmt.Errorf("failed to read: %w", err)
		}
		value, err := hex.DecodeString(string(data))
		if err != nil {
			return fmt.Errorf("failed to decode read data: %w", err)
		}
		if len(value) != len(r) {
			return fmt.Errorf("failed to read: got %d bytes, want %d", len(value), len(r))
		}
		copy(r, value)
	}
	return nil
}

// parseStatus splits a reply into its status byte and the rest of the
// payload. A non-ok status is an error.
func parseStatus(response []byte) ([]byte, error) {
	if len(response) < 2 {
		return nil, fmt.Errorf("invalid response length (%d)", len(response))
	}
	s, err := strconv.ParseUint(string(response[:2]), 16, 8)
	if err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}
	if status(s) != STATUS_OK {
		return nil, fmt.Errorf("bridge reported %s (0x%02X)", status(s), s)
	}
	return response[2:], nil
}

func (b *Bridge) sendCommand(cmdType, payload string) (data []byte, err error) {
	cmd := cmdType + payload + "XXXX"

	// Reformat cmd, include length
	cmd = fmt.Sprintf("%s%04X%s", packetMagic, len(cmd), cmd)

	b.mutex.Lock()
	defer b.mutex.Unlock()

	_, err = b.port.Write([]byte(cmd))
	if err != nil {
		return []byte{}, fmt.Errorf("failed to write to serial port: %w", err)
	}

	for packetType := ""; packetType != cmdType; packetType, data, err = b.readPacket() {
		if err != nil {
			return []byte{}, fmt.Errorf("failed to read response: %w", err)
		}
	}

	return
}

func (b *Bridge) readPacket() (packetType string, data []byte, err error) {
	header := make([]byte, 12)
	for ; string(header)[:4] != packetMagic; _, err = io.ReadFull(b.port, header) {
		if err != nil {
			return "", []byte{}, fmt.Errorf("failed to read header from serial port: %w", err)
		}
	}

	header = header[4:]
	packetType = string(header[4:])

	length, err := strconv.ParseUint(string(header[:4]), 16, 16)
	if err != nil {
		return "", []byte{}, fmt.Errorf("failed to decode packet length: %w", err)
	}
	if length < 8 {
		return "", []byte{}, fmt.Errorf("invalid packet length: %d", length)
	}

	data = make([]byte, length-8)
	_, err = io.ReadFull(b.port, data)
	if err != nil {
		return "", []byte{}, fmt.Errorf("failed to read data from serial port: %w", err)
	}

	crc := make([]byte, 4)
	_, err = io.ReadFull(b.port, crc)
	if err != nil {
		return "", []byte{}, fmt.Errorf("failed to read CRC from serial port: %w", err)
	}

	want, err := strconv.ParseUint(string(crc), 16, 16)
	if err != nil {
		return "", []byte{}, fmt.Errorf("failed to decode CRC: %w", err)
	}
	if got := checksum([]byte(packetType), data); got != uint16(want) {
		return "", []byte{}, fmt.Errorf("CRC mismatch on %s packet: got %04X, want %04X", packetType, got, want)
	}

	return
}

func checksum(parts ...[]byte) (sum uint16) {
	for _, p := range parts {
		for _, c := range p {
			sum += uint16(c)
		}
	}
	return
}

func getSerialPort() (string, error) {
	portDetails, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("failed to autodetect bridge serial port: %w", err)
	}

	for _, port := range portDetails {
		if port.IsUSB && strings.EqualFold(port.VID, VENDOR_ID) && slices.Contains(PRODUCT_IDs, strings.ToUpper(port.PID)) {
			return port.Name, nil
		}
	}

	return "", fmt.Errorf("no bridge found (VID %s)", VENDOR_ID)
}
