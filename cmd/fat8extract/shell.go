package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/nullsector/fat8d88/internal/charset"
	"github.com/nullsector/fat8d88/internal/classify"
	"github.com/nullsector/fat8d88/internal/d88"
	"github.com/nullsector/fat8d88/internal/fat8"
	"github.com/nullsector/fat8d88/internal/obfuscate"
)

// runBrowseShell opens a single .d88 file and drops into a tiny
// read-eval-print loop for listing and dumping its directory without
// writing anything to disk, grounded on the historical tool's
// readline-driven disk shell.
func runBrowseShell(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	im, _, err := d88.Next(data)
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:      fmt.Sprintf("%s> ", path),
		HistoryFile: "",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Println("commands: ls, dump <name>, quit")

	var fs *fat8.FileSystem
	var variant fat8.Variant
	for {
		line, err := rl.Readline()
		if err != nil {
			return nil
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit":
			return nil
		case "ls":
			if fs == nil {
				fs, variant, err = browseDecode(im)
				if err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
					continue
				}
			}
			for _, e := range fs.Entries {
				fmt.Printf("%3d  %s.%s  attr=0x%02X  cluster=0x%02X\n", e.Idx, e.NameRaw, e.ExtRaw, e.Attribute, e.StartCluster)
			}
		case "dump":
			if len(fields) < 2 {
				fmt.Println("usage: dump <name>")
				continue
			}
			if fs == nil {
				fs, variant, err = browseDecode(im)
				if err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
					continue
				}
			}
			if err := browseDump(fs, variant, fields[1]); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}

func browseDecode(im *d88.Image) (*fat8.FileSystem, fat8.Variant, error) {
	geometry, boot := geometryFromImage(im)
	variant, err := fat8.Detect(geometry, boot)
	if err != nil {
		return nil, fat8.Variant{}, err
	}
	fs, err := fat8.Decode(im, variant)
	if err != nil {
		return nil, fat8.Variant{}, err
	}
	return fs, variant, nil
}

// browseDump finds the directory entry matching name (case
// insensitive, "NAME.EXT" form), materializes its body the same way
// pipeline.ExtractImage does -- chain walk, terminal sector trim,
// deobfuscation if the Obfuscated attribute is set -- and writes it to
// stdout.
func browseDump(fs *fat8.FileSystem, variant fat8.Variant, name string) error {
	table, err := charset.ByName(variant.Charset)
	if err != nil {
		return err
	}

	target := strings.ToUpper(strings.TrimSpace(name))
	for _, e := range fs.Entries {
		flags := classify.Classify(e.Attribute, e.NameRaw[0])
		if flags.Unlisted() {
			continue
		}
		entryName := strings.TrimSpace(table.Decode(e.NameRaw[:]))
		entryExt := strings.TrimSpace(table.Decode(e.ExtRaw[:]))
		full := entryName
		if entryExt != "" {
			full += "." + entryExt
		}
		if strings.ToUpper(full) != target {
			continue
		}

		body, truncated, err := fs.FileBody(e)
		if err != nil && len(body) == 0 {
			return err
		}
		if flags.Obfuscated {
			if deobf, ok := deobfuscatorFor(variant.Obfuscation); ok {
				out := make([]byte, len(body))
				for i, b := range body {
					out[i] = deobf(i, b)
				}
				body = out
			}
		}
		if truncated {
			fmt.Fprintf(os.Stderr, "warning: %s: body truncated (chain walk did not reach a clean terminator)\n", full)
		}
		os.Stdout.Write(body)
		return nil
	}
	return fmt.Errorf("no such file %q", name)
}

func deobfuscatorFor(kind string) (func(i int, b byte) byte, bool) {
	switch kind {
	case "pc98":
		return obfuscate.DeobfuscatePC98, true
	case "pc88":
		return obfuscate.DeobfuscatePC88, true
	default:
		return nil, false
	}
}

func geometryFromImage(im *d88.Image) (fat8.Geometry, []byte) {
	maxCyl, maxHead, spt := -1, -1, 0
	for key, secs := range im.Tracks {
		if int(key[0]) > maxCyl {
			maxCyl = int(key[0])
		}
		if int(key[1]) > maxHead {
			maxHead = int(key[1])
		}
		if len(secs) > spt {
			spt = len(secs)
		}
	}
	var boot []byte
	if secs, ok := im.Tracks[[2]byte{0, 0}]; ok {
		for _, s := range secs {
			if s.Record == 1 {
				boot = s.Data
			}
		}
	}
	return fat8.Geometry{Tracks: maxCyl + 1, Sides: maxHead + 1, SectorsPerTrack: spt}, boot
}
