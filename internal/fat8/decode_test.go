package fat8

import (
	"testing"

	"github.com/nullsector/fat8d88/internal/d88"
)

// testVariant is a small synthetic geometry: 1 side, 8 sectors/track,
// 1 cluster per track, metadata on track 2. Layout within the
// metadata track (records 1..8): autorun = 8-3 = 5, so directory is
// records 1..4, autorun is record 5, FAT copies are records 6,7,8.
var testVariant = Variant{
	Name: "synthetic", Tracks: 4, FATTracks: 4, Sides: 1, SectorsPerTrack: 8,
	MetadataTrack: 2, MetadataSide: 0, ClustersPerTrack: 1,
}

func sector(cyl, head, rec byte, data []byte) d88.Sector {
	return d88.Sector{Cylinder: cyl, Head: head, Record: rec, SizeCode: 1, Data: data}
}

func fixedSector(fill byte) []byte {
	b := make([]byte, 256)
	for i := range b {
		b[i] = fill
	}
	return b
}

func dirEntryBytes(name, ext string, attr, startCluster byte) []byte {
	out := make([]byte, 16)
	copy(out, []byte(name))
	for i := len(name); i < 6; i++ {
		out[i] = ' '
	}
	copy(out[6:], []byte(ext))
	for i := 6 + len(ext); i < 9; i++ {
		out[i] = ' '
	}
	out[9] = attr
	out[10] = startCluster
	return out
}

func buildTestImage(t *testing.T) *d88.Image {
	t.Helper()
	im := &d88.Image{Tracks: make(map[[2]byte][]d88.Sector)}

	// Data tracks 0,1,3: one cluster each, filled with a track-specific byte.
	for _, tr := range []byte{0, 1, 3} {
		var data []d88.Sector
		for r := byte(1); r <= 8; r++ {
			data = append(data, sector(tr, 0, r, fixedSector(tr+0x10)))
		}
		im.Tracks[[2]byte{tr, 0}] = data
	}

	dir := make([]byte, 256)
	copy(dir[0:16], dirEntryBytes("HELLO", "TXT", 0x00, 0))
	// the rest of the sector is already zero-filled, so byte 16 (the
	// next entry's name[0]) naturally reads 0x00 and ends the directory.

	fatGood := make([]byte, 8)
	fatGood[0] = 0xC0 // cluster 0 terminal, 1 sector
	fatBad := make([]byte, 8)
	fatBad[0] = 0xFF // disagreeing copy

	var secs []d88.Sector
	secs = append(secs, sector(2, 0, 1, dir))
	for r := byte(2); r <= 4; r++ {
		secs = append(secs, sector(2, 0, r, make([]byte, 256)))
	}
	secs = append(secs, sector(2, 0, 5, make([]byte, 256))) // autorun
	secs = append(secs, sector(2, 0, 6, fatGood))
	secs = append(secs, sector(2, 0, 7, fatGood))
	secs = append(secs, sector(2, 0, 8, fatBad))
	im.Tracks[[2]byte{2, 0}] = secs

	return im
}

func TestDecodeDirectoryStopsAtSentinel(t *testing.T) {
	im := buildTestImage(t)
	fs, err := Decode(im, testVariant)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(fs.Entries) != 1 {
		t.Fatalf("expected 1 directory entry, got %d", len(fs.Entries))
	}
	if string(fs.Entries[0].NameRaw[:]) != "HELLO " {
		t.Fatalf("NameRaw = %q", fs.Entries[0].NameRaw)
	}
}

func TestReconcileFATMajorityVote(t *testing.T) {
	fat, disagreement := reconcileFAT([][]byte{{0xC0}, {0xC0}, {0xFF}}, 1)
	if !disagreement {
		t.Fatalf("expected disagreement to be reported")
	}
	if fat[0] != 0xC0 {
		t.Fatalf("reconciled value = 0x%02X, want 0xC0 (majority)", fat[0])
	}
}

func TestDecodeFileBody(t *testing.T) {
	im := buildTestImage(t)
	fs, err := Decode(im, testVariant)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	body, truncated, err := fs.FileBody(fs.Entries[0])
	if err != nil {
		t.Fatalf("FileBody: %v", err)
	}
	if truncated {
		t.Fatalf("did not expect truncation")
	}
	if len(body) != 256 {
		t.Fatalf("body length = %d, want 256", len(body))
	}
	for _, b := range body {
		if b != 0x10 { // track 0's fill byte
			t.Fatalf("unexpected byte 0x%02X in file body", b)
		}
	}
}

func TestChainDetectsCycle(t *testing.T) {
	fs := &FileSystem{FAT: []byte{1, 0}} // 0 -> 1 -> 0 -> ...
	_, _, err := fs.Chain(0)
	if err == nil {
		t.Fatalf("expected a cycle error")
	}
}

func TestChainDetectsOutOfRange(t *testing.T) {
	fs := &FileSystem{FAT: []byte{0x50}}
	_, _, err := fs.Chain(0x50)
	if err == nil {
		t.Fatalf("expected an out-of-range error for a start cluster beyond the FAT")
	}
}

func TestChainDetectsCorruptLink(t *testing.T) {
	fs := &FileSystem{FAT: []byte{0xFF}} // cluster 0 links to free cluster 0xFF
	clusters, _, err := fs.Chain(0)
	if err == nil {
		t.Fatalf("expected a corrupt-link error")
	}
	if len(clusters) != 1 {
		t.Fatalf("expected the partial chain to still include the starting cluster")
	}
}

func TestClusterLocationPasopiaSideIsLSB(t *testing.T) {
	fs := &FileSystem{Variant: Variant{Sides: 2, ClustersPerTrack: 2, SideIsClusterLSB: true}}
	// c = (track*clustersPerTrack + clusterInTrack)*sides + side
	track, side, clusterInTrack := fs.clusterLocation(5)
	if track != 1 || side != 1 || clusterInTrack != 0 {
		t.Fatalf("clusterLocation(5) = (%d,%d,%d), want (1,1,0)", track, side, clusterInTrack)
	}
}

func TestClusterLocationStandard(t *testing.T) {
	fs := &FileSystem{Variant: Variant{Sides: 2, ClustersPerTrack: 2, SideIsClusterLSB: false}}
	track, side, clusterInTrack := fs.clusterLocation(5)
	if track != 1 || side != 0 || clusterInTrack != 1 {
		t.Fatalf("clusterLocation(5) = (%d,%d,%d), want (1,0,1)", track, side, clusterInTrack)
	}
}

func TestVirtualSectorsLayout(t *testing.T) {
	dir, autorun, fatCopies := virtualSectors(8)
	if autorun != 5 {
		t.Fatalf("autorun = %d, want 5", autorun)
	}
	wantDir := []int{1, 2, 3, 4}
	if len(dir) != len(wantDir) {
		t.Fatalf("dir = %v, want %v", dir, wantDir)
	}
	for i, v := range wantDir {
		if dir[i] != v {
			t.Fatalf("dir[%d] = %d, want %d", i, dir[i], v)
		}
	}
	if fatCopies != [3]int{6, 7, 8} {
		t.Fatalf("fatCopies = %v, want [6 7 8]", fatCopies)
	}
}
