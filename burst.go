package ov5640

import "slices"

// RegisterWrite is one 8-bit value destined for a 16-bit register address.
type RegisterWrite struct {
	Address uint16
	Value   uint8
}

// Table is an ordered, immutable list of register writes making up one
// configuration. Order is significant: some registers are commands whose
// side effects later writes depend on.
type Table struct {
	name   string
	writes []RegisterWrite
}

// NewTable copies writes into a new Table.
func NewTable(name string, writes ...RegisterWrite) Table {
	return Table{name: name, writes: slices.Clone(writes)}
}

func (t Table) Name() string {
	return t.name
}

func (t Table) Len() int {
	return len(t.writes)
}

// Writes returns a copy of the table entries.
func (t Table) Writes() []RegisterWrite {
	return slices.Clone(t.writes)
}

// Burst is one bus write transaction: a start address followed by values
// for consecutive registers.
type Burst struct {
	Start   uint16
	Payload []byte
}

// Writes expands b back into single register writes.
func (b Burst) Writes() []RegisterWrite {
	w := make([]RegisterWrite, len(b.Payload))
	for i, v := range b.Payload {
		w[i] = RegisterWrite{b.Start + uint16(i), v}
	}
	return w
}

// message is the wire form of b: address high byte, address low byte,
// payload.
func (b Burst) message() []byte {
	msg := make([]byte, 2, 2+len(b.Payload))
	msg[0] = byte(b.Start >> 8)
	msg[1] = byte(b.Start)
	return append(msg, b.Payload...)
}

// Coalesce groups consecutive writes to consecutive addresses into bursts of
// at most maxLen payload bytes. It never reorders writes; a write that does
// not continue the open run starts a new burst. maxLen below 1 is treated as 1.
func Coalesce(t Table, maxLen int) []Burst {
	if maxLen < 1 {
		maxLen = 1
	}
	var bursts []Burst
	var cur Burst
	for i, w := range t.writes {
		if len(cur.Payload) > 0 {
			prev := t.writes[i-1].Address
			if prev != 0xFFFF && w.Address == prev+1 && len(cur.Payload) < maxLen {
				cur.Payload = append(cur.Payload, w.Value)
				continue
			}
			bursts = append(bursts, cur)
		}
		cur = Burst{Start: w.Address, Payload: []byte{w.Value}}
	}
	if len(cur.Payload) > 0 {
		bursts = append(bursts, cur)
	}
	return bursts
}
