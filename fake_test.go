package ov5640

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-kit/log"
)

var errBus = errors.New("nack")

// fakeSensor models the register file of the sensor and the parts of the
// auto-focus firmware the driver talks to.
type fakeSensor struct {
	mu       sync.Mutex
	regs     map[uint16]uint8
	reads    map[uint16]uint8 // read overrides
	ptr      uint16
	txs      [][]byte
	calls    int // every Tx, including the data phase of reads
	inFlight int32
	overlap  int32

	maxTx    int
	stuckAck bool
	noBoot   bool
	result   uint8
	fail     func(w []byte) error
}

func newFakeSensor() *fakeSensor {
	return &fakeSensor{
		regs:   map[uint16]uint8{0x300A: 0x56, 0x300B: 0x40},
		reads:  map[uint16]uint8{},
		result: 0x01,
	}
}

func (s *fakeSensor) Tx(w, r []byte) error {
	if atomic.AddInt32(&s.inFlight, 1) > 1 {
		atomic.AddInt32(&s.overlap, 1)
	}
	defer atomic.AddInt32(&s.inFlight, -1)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if len(w) > 0 {
		s.txs = append(s.txs, append([]byte(nil), w...))
		if s.fail != nil {
			if err := s.fail(w); err != nil {
				return err
			}
		}
		if len(w) < 2 {
			return errors.New("short write")
		}
		s.ptr = uint16(w[0])<<8 | uint16(w[1])
		for i, v := range w[2:] {
			s.write(s.ptr+uint16(i), v)
		}
	}
	for i := range r {
		a := s.ptr + uint16(i)
		if v, ok := s.reads[a]; ok {
			r[i] = v
		} else {
			r[i] = s.regs[a]
		}
	}
	return nil
}

func (s *fakeSensor) write(a uint16, v uint8) {
	s.regs[a] = v
	switch a {
	case 0x3022:
		if v == afTriggerSingle || v == afTriggerContinuous {
			s.regs[0x3028] = s.result
		}
		if !s.stuckAck {
			s.regs[0x3023] = afAckDone
		}
	case 0x3023:
		if s.stuckAck {
			s.regs[0x3023] = afAckPending
		}
	case 0x3000:
		if v == mcuRelease && !s.noBoot {
			s.regs[0x3029] = afStatusIdle
		}
	}
}

func (s *fakeSensor) MaxTxSize() int {
	if s.maxTx == 0 {
		return 1 << 16
	}
	return s.maxTx
}

// writes returns the write transactions seen so far, excluding the 2-byte
// address phase of register reads.
func (s *fakeSensor) writes() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out [][]byte
	for _, tx := range s.txs {
		if len(tx) > 2 {
			out = append(out, tx)
		}
	}
	return out
}

func (s *fakeSensor) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txs)
}

func (s *fakeSensor) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = nil
	s.calls = 0
}

func (s *fakeSensor) transactions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeLight struct {
	mu       sync.Mutex
	calls    []string
	inFlight int32
	overlap  int32
	err      error
}

func (l *fakeLight) record(name string) error {
	if atomic.AddInt32(&l.inFlight, 1) > 1 {
		atomic.AddInt32(&l.overlap, 1)
	}
	defer atomic.AddInt32(&l.inFlight, -1)
	time.Sleep(100 * time.Microsecond)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
	return l.err
}

func (l *fakeLight) FlashOn() error   { return l.record("flash-on") }
func (l *fakeLight) FlashOff() error  { return l.record("flash-off") }
func (l *fakeLight) TorchOn() error   { return l.record("torch-on") }
func (l *fakeLight) TorchOff() error  { return l.record("torch-off") }
func (l *fakeLight) AssistOff() error { return l.record("assist-off") }

func (l *fakeLight) history() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func newTestDevice(t *testing.T, s *fakeSensor, opts ...Option) *Device {
	t.Helper()
	base := []Option{
		WithLogger(log.NewNopLogger()),
		WithSettleDelay(0),
		WithFocusTimeout(20*time.Millisecond, time.Millisecond),
		WithFirmwareTimeout(20*time.Millisecond, time.Millisecond),
	}
	return New(s, append(base, opts...)...)
}

func writesOf(bursts [][]byte) []RegisterWrite {
	var out []RegisterWrite
	for _, b := range bursts {
		out = append(out, Burst{uint16(b[0])<<8 | uint16(b[1]), b[2:]}.Writes()...)
	}
	return out
}
