package ov5640

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"path"
	"strconv"
	"strings"
)

//go:embed tables/*.regs
var tableFS embed.FS

// Canned register tables. The values are vendor calibration data.
var (
	InitTable    = mustTable("init")
	PreviewTable = mustTable("preview")
	CaptureTable = mustTable("capture")
	AFPostTable  = mustTable("af_post")

	// EVTables holds the exposure bias steps -2..+2 for brightness levels 1..5.
	EVTables = [5]Table{
		mustTable("ev_m2"),
		mustTable("ev_m1"),
		mustTable("ev_0"),
		mustTable("ev_p1"),
		mustTable("ev_p2"),
	}
)

func mustTable(name string) Table {
	data, err := tableFS.ReadFile(path.Join("tables", name+".regs"))
	if err != nil {
		panic(err)
	}
	t, err := ParseTable(name, data)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTable reads a register table: one "AAAA VV" pair of hex numbers per
// line. Blank lines and text after '#' are ignored.
func ParseTable(name string, data []byte) (Table, error) {
	var writes []RegisterWrite
	sc := bufio.NewScanner(bytes.NewReader(data))
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return Table{}, fmt.Errorf("table %s line %d: want 2 fields, got %d", name, n, len(fields))
		}
		addr, err := strconv.ParseUint(fields[0], 16, 16)
		if err != nil {
			return Table{}, fmt.Errorf("table %s line %d: bad address: %w", name, n, err)
		}
		val, err := strconv.ParseUint(fields[1], 16, 8)
		if err != nil {
			return Table{}, fmt.Errorf("table %s line %d: bad value: %w", name, n, err)
		}
		writes = append(writes, RegisterWrite{uint16(addr), uint8(val)})
	}
	if err := sc.Err(); err != nil {
		return Table{}, err
	}
	return Table{name: name, writes: writes}, nil
}

// evTable maps a brightness level to its exposure table. Out of range levels
// select the neutral table.
func evTable(level int) Table {
	if level < BrightnessMin || level > BrightnessMax {
		level = BrightnessDefault
	}
	return EVTables[level-BrightnessMin]
}
