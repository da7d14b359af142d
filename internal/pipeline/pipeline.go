// Package pipeline wires the container, filesystem, classification,
// and naming layers into the end-to-end extraction operation: given a
// .d88 file, walk every disk image it holds, decode its FAT8 volume,
// and hand each recovered file to a Sink.
package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nullsector/fat8d88/internal/charset"
	"github.com/nullsector/fat8d88/internal/classify"
	"github.com/nullsector/fat8d88/internal/d88"
	"github.com/nullsector/fat8d88/internal/fat8"
	"github.com/nullsector/fat8d88/internal/naming"
	"github.com/nullsector/fat8d88/internal/obfuscate"
	"github.com/nullsector/fat8d88/loggy"
)

// Sink is where an extraction's output goes: a directory per disk
// image, holding one artifact per recovered file plus the image's
// transcript log. A filesystem implementation is provided by
// FileSink; tests and alternative front ends can supply their own.
type Sink interface {
	CreateImageDir(imageKey string) error
	WriteArtifact(imageKey, filename string, data []byte) error
	WriteLog(imageKey string, lines []string) error
}

// ExtractedFile is one file recovered from a FAT8 volume, ready for a
// Sink to persist.
type ExtractedFile struct {
	Idx       int
	HostName  string
	Flags     classify.Flags
	Data      []byte
	Truncated bool
	Err       error
}

// ImageResult is everything produced while processing one disk image.
type ImageResult struct {
	Key             string
	Variant         fat8.Variant
	Files           []ExtractedFile
	FATDisagreement bool
	ErrorCount      int
}

func deobfuscateFunc(kind string) (func(i int, b byte) byte, bool) {
	switch kind {
	case "pc98":
		return obfuscate.DeobfuscatePC98, true
	case "pc88":
		return obfuscate.DeobfuscatePC88, true
	default:
		return nil, false
	}
}

// geometryOf inspects an already-parsed image's track map to recover
// the Tracks/Sides/SectorsPerTrack triple fat8.Detect keys its
// dispatch on.
func geometryOf(im *d88.Image) (fat8.Geometry, []byte) {
	maxCyl, maxHead := -1, -1
	spt := 0
	for key, secs := range im.Tracks {
		c, h := int(key[0]), int(key[1])
		if c > maxCyl {
			maxCyl = c
		}
		if h > maxHead {
			maxHead = h
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
				break
			}
		}
	}
	return fat8.Geometry{Tracks: maxCyl + 1, Sides: maxHead + 1, SectorsPerTrack: spt}, boot
}

// ExtractImage decodes one already-parsed disk image and writes its
// recovered files to sink. logKey names this image's Logger (and is
// used for log lines only); the final output directory name -- which
// must fold in an " [Error Count NN]" suffix that isn't known until
// decoding finishes -- is computed from dirKeyBase and handed to sink
// only once, after every error has been tallied.
func ExtractImage(im *d88.Image, logKey, dirKeyBase string, sink Sink) (*ImageResult, error) {
	l := loggy.Get(logKey)
	l.Logf("analyzing image %q (%d bytes)", im.NameOrComment, im.Size)

	geometry, boot := geometryOf(im)
	variant, err := fat8.Detect(geometry, boot)
	if err != nil {
		l.Errorf("variant detection failed: %v", err)
		return nil, err
	}
	l.Logf("detected variant %q", variant.Name)

	table, err := charset.ByName(variant.Charset)
	if err != nil {
		l.Errorf("charset lookup failed: %v", err)
		return nil, err
	}

	deobf, hasObf := deobfuscateFunc(variant.Obfuscation)

	fs, err := fat8.Decode(im, variant)
	if err != nil {
		l.Errorf("filesystem decode failed: %v", err)
		return nil, err
	}

	result := &ImageResult{Variant: variant, FATDisagreement: fs.FATDisagreement}
	if fs.FATDisagreement {
		l.Logf("triplicate FAT copies disagreed on at least one slot; reconciled by majority vote")
		result.ErrorCount++
	}

	policy := naming.NewPolicy()

	for _, entry := range fs.Entries {
		flags := classify.Classify(entry.Attribute, entry.NameRaw[0])
		if flags.Unlisted() {
			continue
		}

		name := table.Decode(entry.NameRaw[:])
		ext := table.Decode(entry.ExtRaw[:])

		body, truncated, bodyErr := fs.FileBody(entry)
		if bodyErr != nil {
			l.Errorf("file %q.%q: %v", name, ext, bodyErr)
			result.ErrorCount++
		}
		if flags.Obfuscated && hasObf {
			out := make([]byte, len(body))
			for i, b := range body {
				out[i] = deobf(i, b)
			}
			body = out
		}

		tags := naming.Tags{
			Reserved1:      flags.Reserved1,
			Reserved2:      flags.Reserved2,
			Reserved3:      flags.Reserved3,
			ReadOnly:       flags.ReadOnly,
			Obfuscated:     flags.Obfuscated,
			ReadAfterWrite: flags.ReadAfterWrite,
		}

		hostName := policy.Resolve(name, ext, flags.Kind(), tags)
		result.Files = append(result.Files, ExtractedFile{
			Idx:       entry.Idx,
			HostName:  hostName,
			Flags:     flags,
			Data:      body,
			Truncated: truncated,
			Err:       bodyErr,
		})
	}
	l.Logf("recovered %d files", len(result.Files))

	result.Key = dirKeyBase
	if result.ErrorCount > 0 {
		result.Key = fmt.Sprintf("%s [Error Count %02d]", dirKeyBase, result.ErrorCount)
	}

	if err := sink.CreateImageDir(result.Key); err != nil {
		return result, fmt.Errorf("pipeline: creating output directory for %s: %w", result.Key, err)
	}
	for _, f := range result.Files {
		if err := sink.WriteArtifact(result.Key, f.HostName, f.Data); err != nil {
			l.Errorf("writing artifact %q: %v", f.HostName, err)
		}
	}
	if err := sink.WriteLog(result.Key, l.Lines()); err != nil {
		return result, fmt.Errorf("pipeline: writing log for %s: %w", result.Key, err)
	}
	return result, nil
}

// ExtractFile walks the disk images in a .d88 file (there may be
// several, concatenated), handing each to sink under the key
// "<stem> [FAT8 Contents]", with a " [Disk NN]" suffix for
// multi-disk containers and an " [Error Count NN]" suffix whenever
// that image's decode recorded a structural error. It stops at the
// first image that fails to parse, detect or decode: that image and
// any after it get no output, and the error is returned together with
// the results of the images already extracted.
func ExtractFile(path string, data []byte, sink Sink) ([]*ImageResult, error) {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	dirBase := stem + " [FAT8 Contents]"

	var results []*ImageResult
	diskNum := 1
	remaining := data
	for len(remaining) > 0 {
		im, rest, err := d88.Next(remaining)
		if err != nil {
			return results, fmt.Errorf("pipeline: parsing %s: %w", path, err)
		}
		logKey := base
		keyBase := dirBase
		if diskNum > 1 || len(rest) > 0 {
			logKey = fmt.Sprintf("%s [Disk %02d]", base, diskNum)
			keyBase = fmt.Sprintf("%s [Disk %02d]", dirBase, diskNum)
		}
		res, err := ExtractImage(im, logKey, keyBase, sink)
		if err != nil {
			return results, fmt.Errorf("pipeline: %s: %w", keyBase, err)
		}
		results = append(results, res)
		remaining = rest
		diskNum++
	}
	return results, nil
}
