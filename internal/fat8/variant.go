// Package fat8 detects which of the mutually incompatible FAT8
// on-disk layouts a decoded D88 image uses, then decodes its
// directory, reconciles its triplicate FAT, and walks cluster chains
// into raw file bodies.
package fat8

import (
	"bytes"
	"fmt"
)

// Variant is a closed description of one named FAT8 on-disk layout.
// The dispatch table below is a plain slice of these plus predicate
// closures, not an open interface hierarchy, per the geometry/
// fingerprint detection design this package follows.
type Variant struct {
	Name                 string
	Tracks               int
	FATTracks            int
	Sides                int
	SectorsPerTrack      int
	Charset              string
	Obfuscation          string // "pc88", "pc98", or "" for none
	MetadataTrack        int
	MetadataSide         int
	ClustersPerTrack     int
	SideIsClusterLSB     bool
	BootSectorHints      []func(first []byte) bool
}

// BytesPerSector is fixed across every known FAT8 layout: 256-byte
// sectors at standard density.
const BytesPerSector = 256

// knownVariants mirrors, one entry per named machine/geometry family,
// the historical format catalogue: two PC-9801 layouts (2DD and
// 8"/2HD), a 78-track 2HD variant seen in the wild, three PC-8001/8801
// layouts (1D/2D/8"), the PC-6001 mkII and its 36-track wild sibling,
// a PC-6601 wild variant, the PC-6601 SR 1DD layout and its 81-track
// wild sibling, and the Pasopia 2D layout (the only one where the
// side bit, not the track bit, is the low bit of the cluster number).
var knownVariants = []Variant{
	{
		Name: "PC-9800 3.5\" 2DD/5.25\" 2DD", Tracks: 80, FATTracks: 80, Sides: 2, SectorsPerTrack: 16,
		Charset: "pc98-8bit", Obfuscation: "pc98", MetadataTrack: 40, MetadataSide: 0, ClustersPerTrack: 1,
	},
	{
		Name: "PC-9800 8\" 2D/3.5\" 2HD/5.25\" 2HD", Tracks: 77, FATTracks: 77, Sides: 2, SectorsPerTrack: 26,
		Charset: "pc98-8bit", Obfuscation: "pc98", MetadataTrack: 35, MetadataSide: 0, ClustersPerTrack: 1,
		BootSectorHints: []func([]byte) bool{func(b []byte) bool { return len(b) == 128 }},
	},
	{
		Name: "PC-9800 8\" 2D/3.5\" 2HD/5.25\" 2HD (wild type, 78 tracks)", Tracks: 78, FATTracks: 77, Sides: 2, SectorsPerTrack: 26,
		Charset: "pc98-8bit", Obfuscation: "pc98", MetadataTrack: 35, MetadataSide: 0, ClustersPerTrack: 1,
		BootSectorHints: []func([]byte) bool{func(b []byte) bool { return len(b) == 128 }},
	},
	{
		Name: "PC-8000/PC-8800 5.25\" 1D", Tracks: 35, FATTracks: 35, Sides: 1, SectorsPerTrack: 16,
		Charset: "pc98-8bit", Obfuscation: "pc88", MetadataTrack: 18, MetadataSide: 0, ClustersPerTrack: 2,
	},
	{
		Name: "PC-8000/PC-8800 5.25\" 2D", Tracks: 40, FATTracks: 40, Sides: 2, SectorsPerTrack: 16,
		Charset: "pc98-8bit", Obfuscation: "pc88", MetadataTrack: 18, MetadataSide: 1, ClustersPerTrack: 2,
	},
	{
		Name: "PC-8801 mkII 8\" 2D/5.25\" 2HD", Tracks: 77, FATTracks: 77, Sides: 2, SectorsPerTrack: 26,
		Charset: "pc98-8bit", Obfuscation: "pc88", MetadataTrack: 35, MetadataSide: 0, ClustersPerTrack: 1,
		BootSectorHints: []func([]byte) bool{func(b []byte) bool { return len(b) != 128 }},
	},
	{
		Name: "PC-6001 mkII 5.25\" 1D", Tracks: 35, FATTracks: 35, Sides: 1, SectorsPerTrack: 16,
		Charset: "pc6001-8bit", Obfuscation: "", MetadataTrack: 18, MetadataSide: 0, ClustersPerTrack: 2,
		BootSectorHints: []func([]byte) bool{hasPrefix("SYS")},
	},
	{
		Name: "PC-6001 mkII 5.25\" 1D (wild type, 36 tracks)", Tracks: 36, FATTracks: 35, Sides: 1, SectorsPerTrack: 16,
		Charset: "pc6001-8bit", Obfuscation: "", MetadataTrack: 18, MetadataSide: 0, ClustersPerTrack: 2,
		BootSectorHints: []func([]byte) bool{hasPrefix("SYS")},
	},
	{
		Name: "PC-6601 3.5\" 1D (wild type)", Tracks: 40, FATTracks: 40, Sides: 1, SectorsPerTrack: 16,
		Charset: "pc6001-8bit", Obfuscation: "", MetadataTrack: 18, MetadataSide: 0, ClustersPerTrack: 2,
		BootSectorHints: []func([]byte) bool{hasPrefix("SYS")},
	},
	{
		Name: "PC-6601 SR 3.5\" 1DD (wild type)", Tracks: 80, FATTracks: 80, Sides: 1, SectorsPerTrack: 16,
		Charset: "pc6001-8bit", Obfuscation: "", MetadataTrack: 37, MetadataSide: 0, ClustersPerTrack: 2,
		BootSectorHints: []func([]byte) bool{hasPrefix("IPL"), hasPrefix("RXR")},
	},
	{
		Name: "PC-6601 SR 3.5\" 1DD (wild type, 81 tracks)", Tracks: 81, FATTracks: 80, Sides: 1, SectorsPerTrack: 16,
		Charset: "pc6001-8bit", Obfuscation: "", MetadataTrack: 37, MetadataSide: 0, ClustersPerTrack: 2,
		BootSectorHints: []func([]byte) bool{hasPrefix("IPL"), hasPrefix("RXR")},
	},
	{
		Name: "Pasopia 5.25\" 2D (wild type)", Tracks: 40, FATTracks: 40, Sides: 2, SectorsPerTrack: 16,
		Charset: "pc98-8bit", Obfuscation: "", MetadataTrack: 18, MetadataSide: 0, ClustersPerTrack: 2,
		SideIsClusterLSB: true,
		BootSectorHints:  []func([]byte) bool{func(b []byte) bool { return bytes.HasPrefix(b, []byte{0, 0, 0, 0}) }},
	},
}

func hasPrefix(prefix string) func([]byte) bool {
	p := []byte(prefix)
	return func(b []byte) bool { return bytes.HasPrefix(b, p) }
}

// Geometry is the observed shape of a disk image, read off its D88
// track table: how many tracks it has (highest cylinder + 1), how many
// sides (highest head + 1), and the largest number of sectors recorded
// on any one track.
type Geometry struct {
	Tracks          int
	Sides           int
	SectorsPerTrack int
}

// ErrUnknownFormat is returned by Detect when no known variant's
// geometry matches, even loosely.
type ErrUnknownFormat struct {
	Geometry Geometry
}

func (e ErrUnknownFormat) Error() string {
	return fmt.Sprintf("fat8: no known variant matches geometry %+v", e.Geometry)
}

// Detect picks the best-matching Variant for the observed geometry and
// boot sector (track 0, side 0, record 1's payload). Exact
// geometry+hint matches are preferred; failing that, a best-effort
// heuristic falls back to the geometry match alone (picking the
// variant whose track/side/sector counts are closest), and only gives
// up with ErrUnknownFormat when nothing is even approximately right.
func Detect(g Geometry, bootSector []byte) (Variant, error) {
	var geometryMatches []Variant
	for _, v := range knownVariants {
		if v.Tracks == g.Tracks && v.Sides == g.Sides && v.SectorsPerTrack == g.SectorsPerTrack {
			geometryMatches = append(geometryMatches, v)
		}
	}

	for _, v := range geometryMatches {
		if len(v.BootSectorHints) == 0 {
			continue
		}
		for _, hint := range v.BootSectorHints {
			if hint(bootSector) {
				return v, nil
			}
		}
	}
	// geometry matched but no hint fired (or the variant carries no
	// hint at all, i.e. geometry alone disambiguates it).
	for _, v := range geometryMatches {
		if len(v.BootSectorHints) == 0 {
			return v, nil
		}
	}
	if len(geometryMatches) > 0 {
		// every candidate wanted a hint and none fired: fall back to
		// the first geometry match rather than giving up outright.
		return geometryMatches[0], nil
	}

	if v, ok := nearestByGeometry(g); ok {
		return v, nil
	}

	return Variant{}, ErrUnknownFormat{Geometry: g}
}

// nearestByGeometry is the heuristic fallback: pick the variant whose
// (tracks, sides, sectors-per-track) triple has the smallest total
// absolute difference from the observed geometry, as long as sides
// and sectors-per-track (the two dimensions wild track counts never
// drift on) match exactly.
func nearestByGeometry(g Geometry) (Variant, bool) {
	best := -1
	bestDist := 1 << 30
	for i, v := range knownVariants {
		if v.Sides != g.Sides || v.SectorsPerTrack != g.SectorsPerTrack {
			continue
		}
		dist := v.Tracks - g.Tracks
		if dist < 0 {
			dist = -dist
		}
		if dist < bestDist {
			bestDist = dist
			best = i
		}
	}
	if best < 0 {
		return Variant{}, false
	}
	return knownVariants[best], true
}
