// Command fwhex converts a raw auto-focus firmware dump into the Intel HEX
// format read by ov5640.ParseFirmware.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jonas-koeritz/ov5640"
	"github.com/marcinbor85/gohex"
)

func fatalErr(ctx string, err error) {
	if err == nil {
		return
	}
	if ctx != "" {
		fmt.Fprintf(os.Stderr, "fwhex: %s: %v\n", ctx, err)
	} else {
		fmt.Fprintf(os.Stderr, "fwhex: %v\n", err)
	}
	os.Exit(1)
}

// outName derives the output file name from the input when none is given.
func outName(in, out string) string {
	if out != "" {
		return out
	}
	return strings.TrimSuffix(in, ".bin") + ".hex"
}

func convert(w io.Writer, r io.Reader, base uint16) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, fmt.Errorf("empty firmware")
	}
	if int(base)+len(data) > 0x10000 {
		return 0, fmt.Errorf("%d bytes at 0x%04X exceed the register space", len(data), base)
	}
	mem := gohex.NewMemory()
	if err := mem.AddBinary(uint32(base), data); err != nil {
		return 0, err
	}
	return len(data), mem.DumpIntelHex(w, 16)
}

func main() {
	fs := flag.NewFlagSet("fwhex", flag.ExitOnError)
	fs.Usage = func() {
		os.Stderr.WriteString("Usage:\n  fwhex [OPTIONS] BIN [HEX]\nOptions:\n")
		fs.PrintDefaults()
	}
	base := fs.Uint("base", uint(ov5640.FirmwareBase), "load address of the firmware")
	fs.Parse(os.Args[1:])
	if fs.NArg() < 1 || fs.NArg() > 2 || *base > 0xFFFF {
		fs.Usage()
		os.Exit(1)
	}

	in, err := os.Open(fs.Arg(0))
	fatalErr("", err)
	defer in.Close()

	out, err := os.Create(outName(fs.Arg(0), fs.Arg(1)))
	fatalErr("", err)
	defer out.Close()

	n, err := convert(out, in, uint16(*base))
	fatalErr("convert", err)
	fmt.Printf("%d bytes at 0x%04X -> %s\n", n, *base, out.Name())
}
