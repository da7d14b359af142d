// fat8charset converts bytes between a FAT8 machine's single-byte
// character set and UTF-8 text, one line at a time, for inspecting or
// constructing raw directory-entry and file-body bytes by hand.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/nullsector/fat8d88/internal/charset"
)

func usage() {
	fmt.Printf(`%s <mode> <options>

Filters a byte stream one line at a time (lines end at 0x0A, preserved
verbatim). Exactly one mode flag selects the table and direction:

`, path.Base(os.Args[0]))
	flag.PrintDefaults()
}

var (
	decodePC98    = flag.Bool("decode-pc98", false, "Decode PC-98/88 charset bytes from stdin to UTF-8 text")
	encodePC98    = flag.Bool("encode-pc98", false, "Encode UTF-8 text from stdin to PC-98/88 charset bytes")
	decodePC6001  = flag.Bool("decode-pc6001", false, "Decode PC-6001 charset bytes from stdin to UTF-8 text")
	encodePC6001  = flag.Bool("encode-pc6001", false, "Encode UTF-8 text from stdin to PC-6001 charset bytes")
	inPath        = flag.String("in", "-", "Input path, or - for stdin")
	outPath       = flag.String("out", "-", "Output path, or - for stdout")
	strict        = flag.Bool("strict", false, "Exit non-zero on the first unmappable code point instead of substituting 0x3F")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	table, encoding, err := selectMode()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fat8charset: %v\n", err)
		usage()
		os.Exit(1)
	}

	in, err := openIn(*inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fat8charset: %v\n", err)
		os.Exit(1)
	}
	defer in.Close()

	out, err := openOut(*outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fat8charset: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	if err := filterLines(in, out, table, encoding, *strict); err != nil {
		fmt.Fprintf(os.Stderr, "fat8charset: %v\n", err)
		os.Exit(1)
	}
}

func selectMode() (*charset.Table, bool, error) {
	type mode struct {
		set    bool
		table  *charset.Table
		encode bool
	}
	modes := []mode{
		{*decodePC98, charset.PC98(), false},
		{*encodePC98, charset.PC98(), true},
		{*decodePC6001, charset.PC6001(), false},
		{*encodePC6001, charset.PC6001(), true},
	}
	var chosen *mode
	for i := range modes {
		if !modes[i].set {
			continue
		}
		if chosen != nil {
			return nil, false, fmt.Errorf("exactly one of -decode-pc98, -encode-pc98, -decode-pc6001, -encode-pc6001 must be given")
		}
		chosen = &modes[i]
	}
	if chosen == nil {
		return nil, false, fmt.Errorf("one of -decode-pc98, -encode-pc98, -decode-pc6001, -encode-pc6001 must be given")
	}
	return chosen.table, chosen.encode, nil
}

func openIn(p string) (io.ReadCloser, error) {
	if p == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(p)
}

func openOut(p string) (io.WriteCloser, error) {
	if p == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(p)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// filterLines implements the line-filter contract: read one logical
// line at a time up to and including the 0x0A terminator, transcode
// it, and write it straight through, preserving line boundaries
// verbatim. Decoding a byte is always total (the tables are closed
// over all 256 values); encoding a code point with no mapping in the
// table is replaced with 0x3F unless strict is set, in which case the
// line filter stops and reports the offending code point.
func filterLines(in io.Reader, out io.Writer, table *charset.Table, encode, strict bool) error {
	r := bufio.NewReader(in)
	w := bufio.NewWriter(out)
	defer w.Flush()

	for {
		line, readErr := r.ReadBytes('\n')
		if len(line) > 0 {
			text, term := line, []byte(nil)
			if line[len(line)-1] == '\n' {
				text, term = line[:len(line)-1], line[len(line)-1:]
			}
			if encode {
				if err := encodeLine(w, table, text, strict); err != nil {
					return err
				}
			} else {
				if _, err := w.WriteString(table.Decode(text)); err != nil {
					return err
				}
			}
			if _, err := w.Write(term); err != nil {
				return err
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return w.Flush()
			}
			return readErr
		}
	}
}

func encodeLine(w *bufio.Writer, table *charset.Table, line []byte, strict bool) error {
	for _, r := range string(line) {
		b, ok := table.EncodeRune(r)
		if !ok {
			if strict {
				return fmt.Errorf("no byte maps to %q (U+%04X) in table %s", r, r, table.Name())
			}
			b = 0x3F
		}
		if err := w.WriteByte(b); err != nil {
			return err
		}
	}
	return nil
}
