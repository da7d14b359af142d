package fat8

import (
	"errors"
	"fmt"

	"github.com/nullsector/fat8d88/internal/d88"
)

const (
	finalClusterOffset = 0xC0 // terminal range starts here
	badCluster         = 0xFE
	freeCluster        = 0xFF
)

// DirectoryEntry is one decoded 16-byte FAT8 directory slot.
type DirectoryEntry struct {
	Idx          int // 1-based position within the directory, for log/test ordering
	NameRaw      [6]byte
	ExtRaw       [3]byte
	Attribute    byte
	StartCluster byte
}

// Deleted reports whether the first name byte marks this slot free
// (0xFF) -- the FAT8 directory conflates "deleted" and "never used"
// into the single free sentinel.
func (d DirectoryEntry) Deleted() bool { return d.NameRaw[0] == 0xFF }

// FileSystem is a decoded FAT8 volume: its directory, its reconciled
// FAT, and enough geometry to walk cluster chains back into raw bytes.
type FileSystem struct {
	Variant           Variant
	MetadataTrack     int
	MetadataSide      int
	SectorsPerCluster int
	TotalClusters     int
	FAT               []byte // one entry per cluster, reconciled
	FATDisagreement   bool
	Entries           []DirectoryEntry
	AutorunData       []byte

	image *d88.Image
}

var (
	ErrChainCycle     = errors.New("fat8: cluster chain contains a cycle")
	ErrChainOutOfRange = errors.New("fat8: cluster chain next-pointer is out of range")
	ErrChainCorrupt   = errors.New("fat8: cluster chain points at a free or bad cluster")
	ErrMissingSector  = errors.New("fat8: a sector needed by the chain walk is missing from the image")
)

// virtualSectors computes the directory, FAT, and autorun record
// numbers (1-based, matching the D88 sector header's Record field)
// within the metadata track: the last three records are the FAT
// triplicate, the one before that is the autorun/ID sector, and
// everything from record 1 up to (but not including) the autorun
// record is directory.
func virtualSectors(sectorsPerTrack int) (dir []int, autorun int, fatCopies [3]int) {
	autorun = sectorsPerTrack - 3
	for r := 1; r < autorun; r++ {
		dir = append(dir, r)
	}
	fatCopies = [3]int{sectorsPerTrack - 2, sectorsPerTrack - 1, sectorsPerTrack}
	return
}

// Decode builds a FileSystem from a D88 image under the given variant.
func Decode(im *d88.Image, v Variant) (*FileSystem, error) {
	clustersPerTrack := v.ClustersPerTrack
	if clustersPerTrack == 0 {
		clustersPerTrack = 1
	}
	sectorsPerCluster := v.SectorsPerTrack / clustersPerTrack

	fs := &FileSystem{
		Variant:           v,
		MetadataTrack:     v.MetadataTrack,
		MetadataSide:      v.MetadataSide,
		SectorsPerCluster: sectorsPerCluster,
		TotalClusters:     v.FATTracks * v.Sides * clustersPerTrack,
		image:             im,
	}

	bySector, err := sectorsByRecord(im, v.MetadataTrack, v.MetadataSide)
	if err != nil {
		return nil, err
	}

	dirRecs, autorunRec, fatRecs := virtualSectors(v.SectorsPerTrack)

	if s, ok := bySector[autorunRec]; ok {
		fs.AutorunData = s.Data
	}

	fats := make([][]byte, 0, 3)
	for _, rec := range fatRecs {
		s, ok := bySector[rec]
		if !ok {
			return nil, fmt.Errorf("%w: metadata track FAT record %d", ErrMissingSector, rec)
		}
		fats = append(fats, s.Data)
	}
	fat, disagreement := reconcileFAT(fats, fs.TotalClusters)
	fs.FAT = fat
	fs.FATDisagreement = disagreement

	idx := 0
	for _, rec := range dirRecs {
		s, ok := bySector[rec]
		if !ok {
			return nil, fmt.Errorf("%w: metadata track directory record %d", ErrMissingSector, rec)
		}
		for off := 0; off+16 <= len(s.Data); off += 16 {
			idx++
			raw := s.Data[off : off+16]
			if raw[0] == 0x00 {
				goto doneDirectory
			}
			var e DirectoryEntry
			e.Idx = idx
			copy(e.NameRaw[:], raw[0:6])
			copy(e.ExtRaw[:], raw[6:9])
			e.Attribute = raw[9]
			e.StartCluster = raw[10]
			fs.Entries = append(fs.Entries, e)
		}
	}
doneDirectory:

	return fs, nil
}

// sectorsByRecord indexes every sector on (track, side) by its Record
// (R) field, the "virtual sector number" the rest of this package
// reasons in.
func sectorsByRecord(im *d88.Image, track, side int) (map[int]d88.Sector, error) {
	secs, ok := im.Tracks[[2]byte{byte(track), byte(side)}]
	if !ok {
		return nil, fmt.Errorf("%w: metadata track %d side %d not present in image", ErrMissingSector, track, side)
	}
	out := make(map[int]d88.Sector, len(secs))
	for _, s := range secs {
		out[int(s.Record)] = s
	}
	return out, nil
}

// reconcileFAT takes the 2 or 3 FAT copies found in the metadata track
// and, per slot, picks the value held by a majority of copies
// (ties broken in favor of copy 1, then copy 2). disagreement reports
// whether any slot needed reconciliation at all.
func reconcileFAT(copies [][]byte, totalClusters int) ([]byte, bool) {
	out := make([]byte, totalClusters)
	disagreement := false
	for slot := 0; slot < totalClusters; slot++ {
		counts := map[byte]int{}
		order := make([]byte, 0, len(copies))
		for _, c := range copies {
			if slot >= len(c) {
				continue
			}
			v := c[slot]
			if counts[v] == 0 {
				order = append(order, v)
			}
			counts[v]++
		}
		if len(order) > 1 {
			disagreement = true
		}
		best := order[0]
		bestCount := counts[best]
		for _, v := range order[1:] {
			if counts[v] > bestCount {
				best, bestCount = v, counts[v]
			}
		}
		out[slot] = best
	}
	return out, disagreement
}

// clusterLocation maps a cluster number to the (track, side,
// cluster-within-track) triple it occupies, honoring the Pasopia
// layout's inverted track/side bit ordering (SideIsClusterLSB).
func (fs *FileSystem) clusterLocation(cluster int) (track, side, clusterInTrack int) {
	cpt := fs.Variant.ClustersPerTrack
	if cpt == 0 {
		cpt = 1
	}
	if fs.Variant.SideIsClusterLSB {
		side = cluster % fs.Variant.Sides
		temp := cluster / fs.Variant.Sides
		track = temp / cpt
		clusterInTrack = temp % cpt
		return
	}
	clusterInTrack = cluster % cpt
	temp := cluster / cpt
	track = temp / fs.Variant.Sides
	side = temp % fs.Variant.Sides
	return
}

// ClusterSectors returns the sector data making up cluster, in
// ascending record order.
func (fs *FileSystem) ClusterSectors(cluster int) ([][]byte, error) {
	track, side, clusterInTrack := fs.clusterLocation(cluster)
	bySector, err := sectorsByRecord(fs.image, track, side)
	if err != nil {
		return nil, err
	}
	firstRec := clusterInTrack*fs.SectorsPerCluster + 1
	out := make([][]byte, 0, fs.SectorsPerCluster)
	for r := firstRec; r < firstRec+fs.SectorsPerCluster; r++ {
		s, ok := bySector[r]
		if !ok {
			return nil, fmt.Errorf("%w: track %d side %d record %d", ErrMissingSector, track, side, r)
		}
		out = append(out, s.Data)
	}
	return out, nil
}

// Chain walks the cluster list starting at startCluster, returning the
// full traversed cluster sequence (including the terminal cluster) and
// the terminal FAT value. It stops and returns an error wrapping one
// of ErrChainCycle, ErrChainOutOfRange, or ErrChainCorrupt the moment
// the walk can no longer proceed; the caller should still use the
// clusters gathered so far to produce a truncated body.
func (fs *FileSystem) Chain(startCluster byte) (clusters []byte, terminal byte, err error) {
	if int(startCluster) >= len(fs.FAT) {
		return nil, 0, fmt.Errorf("%w: start cluster 0x%02X", ErrChainOutOfRange, startCluster)
	}

	var visited [32]byte // 256-bit bitmap, one bit per possible cluster number
	markVisited := func(c byte) (alreadyVisited bool) {
		alreadyVisited = visited[c>>3]&(1<<(c&7)) != 0
		visited[c>>3] |= 1 << (c & 7)
		return alreadyVisited
	}

	cur := startCluster
	for {
		if markVisited(cur) {
			return clusters, cur, fmt.Errorf("%w: revisited cluster 0x%02X", ErrChainCycle, cur)
		}
		clusters = append(clusters, cur)

		next := fs.FAT[cur]
		if next == freeCluster || next == badCluster {
			return clusters, cur, fmt.Errorf("%w: cluster 0x%02X links to 0x%02X", ErrChainCorrupt, cur, next)
		}
		if next >= finalClusterOffset {
			// cur is the last cluster; next is its terminal value,
			// whose low 3 bits say how many of its sectors hold data.
			return clusters, next, nil
		}
		if int(next) >= len(fs.FAT) {
			return clusters, next, fmt.Errorf("%w: cluster 0x%02X links to 0x%02X", ErrChainOutOfRange, cur, next)
		}
		cur = next
	}
}

// FileBody materializes a directory entry's raw bytes by walking its
// cluster chain and concatenating sector data; for the terminal
// cluster only the first (terminal&0x07)+1 sectors are taken. If the
// walk could not complete (cycle/out-of-range/corrupt), the returned
// body holds whatever was gathered before the failure and truncated
// is true.
func (fs *FileSystem) FileBody(entry DirectoryEntry) (body []byte, truncated bool, err error) {
	chain, terminal, walkErr := fs.Chain(entry.StartCluster)
	if len(chain) == 0 {
		return nil, true, walkErr
	}

	full := chain
	isTerminalKnown := walkErr == nil
	if isTerminalKnown {
		full = chain[:len(chain)-1]
	}

	for _, c := range full {
		secs, serr := fs.ClusterSectors(int(c))
		if serr != nil {
			return body, true, serr
		}
		for _, s := range secs {
			body = append(body, s...)
		}
	}

	if !isTerminalKnown {
		return body, true, walkErr
	}

	sectorCount := int(terminal&0x07) + 1
	secs, serr := fs.ClusterSectors(int(chain[len(chain)-1]))
	if serr != nil {
		return body, true, serr
	}
	if sectorCount > len(secs) {
		sectorCount = len(secs)
		truncated = true
	}
	for _, s := range secs[:sectorCount] {
		body = append(body, s...)
	}

	return body, truncated, nil
}
