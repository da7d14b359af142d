// Package d88 parses the D88 floppy-disk container format: a 688-byte
// header (disk name/comment, write-protect flag, declared size, and a
// 164-entry track-offset table) followed by a sequence of 16-byte
// sector headers and their payloads. A single .d88 file may hold
// several whole disk images concatenated back to back; callers walk
// them one at a time with Next.
package d88

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	trackTableOffset = 0x20
	trackEntrySize   = 4
	trackTableLen    = 164
	sectorHeaderSize = 16
	writeProtectByte = 0x1A
	writeProtectMask = 0x10
	diskSizeOffset   = 0x1C
	nameCommentLen   = 0x10
)

// Sector is one 128..8192-byte logical sector, decoded from its
// 16-byte header plus payload.
type Sector struct {
	Cylinder      byte
	Head          byte
	Record        byte
	SizeCode      byte // N: nominal size is 128 << N
	SectorsInTrack uint16
	Density       byte
	Deleted       byte
	Status        byte
	Data          []byte
}

// NominalSize is the sector size implied by SizeCode, independent of
// the (frequently incorrect, per field experience with real images)
// data-length header field.
func (s Sector) NominalSize() int { return 128 << s.SizeCode }

// Image is one disk image out of a (possibly multi-disk) D88 file.
type Image struct {
	NameOrComment  string
	WriteProtected bool
	Size           uint32
	// Tracks maps (cylinder, head) to the sectors recorded for it, in
	// on-disk order.
	Tracks map[[2]byte][]Sector
	// raw holds the exact byte range belonging to this image, for
	// callers that need it (e.g. to compute a checksum or to slice
	// off the remainder for the next image in a multi-disk file).
	raw []byte
}

// Raw returns the disk image's exact byte span as it appeared in the
// source .d88 file, header and all.
func (im *Image) Raw() []byte { return im.raw }

var (
	ErrTruncated    = errors.New("d88: data too short to contain a valid header")
	ErrBadSize      = errors.New("d88: declared disk size is inconsistent with the data")
	ErrBadTrackSort = errors.New("d88: track table is not in ascending offset order")
	ErrSectorOverlap = errors.New("d88: sector data overlaps another sector's range")
	ErrSectorSpill  = errors.New("d88: sector data extends past the declared disk size")
	ErrMixedTrack   = errors.New("d88: a single sector run mixes cylinder/head values")
	ErrDupSector    = errors.New("d88: the same sector record number appears twice in one track")
)

// Next parses one disk image starting at the front of data and
// returns it along with the remaining bytes (empty if data held
// exactly one image). It is the caller's loop variable for walking a
// multi-disk .d88 file.
func Next(data []byte) (*Image, []byte, error) {
	if len(data) < trackTableOffset+trackEntrySize {
		return nil, nil, ErrTruncated
	}

	nameOrComment := trimTrailingZeros(data[:nameCommentLen])
	writeProtected := data[writeProtectByte]&writeProtectMask != 0
	size := binary.LittleEndian.Uint32(data[diskSizeOffset : diskSizeOffset+4])

	if int(size) > len(data) {
		return nil, nil, fmt.Errorf("%w: declared %d bytes, have %d", ErrBadSize, size, len(data))
	}
	if size <= trackTableOffset+trackEntrySize {
		return nil, nil, fmt.Errorf("%w: declared size %d is too small to hold a track table", ErrBadSize, size)
	}

	var trackOffsets []uint32
	for i := 0; i < trackTableLen; i++ {
		entryOff := trackTableOffset + i*trackEntrySize
		if len(trackOffsets) > 0 && uint32(entryOff) >= trackOffsets[0] {
			// the track table has ended: this slot falls inside the
			// first track's own data rather than the offset table.
			break
		}
		if entryOff+trackEntrySize > int(size) {
			break
		}
		off := binary.LittleEndian.Uint32(data[entryOff : entryOff+trackEntrySize])
		if i == 0 && off != 0 && off != size && (off-trackTableOffset)%trackEntrySize != 0 {
			return nil, nil, fmt.Errorf("%w: first track offset %d is not track-table aligned", ErrBadSize, off)
		}
		if off == 0 || off == size {
			continue
		}
		if len(trackOffsets) > 0 && off < trackOffsets[len(trackOffsets)-1] {
			return nil, nil, ErrBadTrackSort
		}
		if int(off)+sectorHeaderSize >= int(size) {
			return nil, nil, ErrSectorSpill
		}
		trackOffsets = append(trackOffsets, off)
	}

	im := &Image{
		NameOrComment:  nameOrComment,
		WriteProtected: writeProtected,
		Size:           size,
		Tracks:         make(map[[2]byte][]Sector),
		raw:            data[:size],
	}

	var allRanges [][2]uint32
	for _, trackOffset := range trackOffsets {
		cursor := trackOffset
		var cyl, head byte
		haveCH := false
		var sectors []Sector

		for cursor+sectorHeaderSize <= size {
			hdr := data[cursor : cursor+sectorHeaderSize]
			c, h, r, n := hdr[0], hdr[1], hdr[2], hdr[3]
			if !haveCH {
				cyl, head = c, h
				haveCH = true
			}
			if c != cyl || h != head {
				break
			}
			for _, s := range sectors {
				if s.Record == r {
					return nil, nil, fmt.Errorf("%w: track %d side %d record %d", ErrDupSector, c, h, r)
				}
			}
			sectorsInTrack := binary.LittleEndian.Uint16(hdr[4:6])
			dataStart := cursor + sectorHeaderSize
			dataLen := uint32(128) << n
			if uint64(dataStart)+uint64(dataLen) > uint64(size) {
				return nil, nil, ErrSectorSpill
			}
			allRanges = append(allRanges, [2]uint32{dataStart, dataStart + dataLen})

			sectors = append(sectors, Sector{
				Cylinder:       c,
				Head:           h,
				Record:         r,
				SizeCode:       n,
				SectorsInTrack: sectorsInTrack,
				Density:        hdr[6],
				Deleted:        hdr[7],
				Status:         hdr[8],
				Data:           data[dataStart : dataStart+dataLen],
			})

			cursor = dataStart + dataLen
		}

		if haveCH {
			key := [2]byte{cyl, head}
			im.Tracks[key] = append(im.Tracks[key], sectors...)
		}
	}

	if err := checkNoOverlap(allRanges); err != nil {
		return nil, nil, err
	}

	rest := data[size:]
	return im, rest, nil
}

func checkNoOverlap(ranges [][2]uint32) error {
	for i := 0; i < len(ranges); i++ {
		for j := i + 1; j < len(ranges); j++ {
			a, b := ranges[i], ranges[j]
			if a[0] < b[1] && b[0] < a[1] {
				return ErrSectorOverlap
			}
		}
	}
	return nil
}

func trimTrailingZeros(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return string(b[:end])
}
