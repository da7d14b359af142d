package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileSink is the default Sink: one subdirectory per disk image under
// Root, named after the image key with filesystem-unsafe characters
// flattened, holding one file per recovered artifact plus a
// "_fat8_d88_output.txt" transcript of that image's log lines. When
// two images would otherwise map to the same directory name, the
// later one is disambiguated with a " (K)" suffix, K starting at 2,
// the same collision policy naming.Policy applies to individual
// filenames within an image.
type FileSink struct {
	Root string

	mu       sync.Mutex
	resolved map[string]string // imageKey -> final on-disk directory name, once assigned
	used     map[string]bool   // lowercase final directory names already claimed
}

func (s *FileSink) dirFor(imageKey string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, imageKey)
	return filepath.Join(s.Root, safe)
}

// finalName resolves imageKey to a collision-free directory name,
// remembering the assignment so every later WriteArtifact/WriteLog
// call for the same imageKey lands in the same directory.
func (s *FileSink) finalName(imageKey string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved == nil {
		s.resolved = make(map[string]string)
		s.used = make(map[string]bool)
	}
	if name, ok := s.resolved[imageKey]; ok {
		return name
	}

	candidate := imageKey
	for k := 2; s.used[strings.ToLower(candidate)]; k++ {
		candidate = fmt.Sprintf("%s (%d)", imageKey, k)
	}
	s.used[strings.ToLower(candidate)] = true
	s.resolved[imageKey] = candidate
	return candidate
}

func (s *FileSink) CreateImageDir(imageKey string) error {
	return os.MkdirAll(s.dirFor(s.finalName(imageKey)), 0o755)
}

func (s *FileSink) WriteArtifact(imageKey, filename string, data []byte) error {
	return os.WriteFile(filepath.Join(s.dirFor(s.finalName(imageKey)), filename), data, 0o644)
}

func (s *FileSink) WriteLog(imageKey string, lines []string) error {
	return os.WriteFile(filepath.Join(s.dirFor(s.finalName(imageKey)), "_fat8_d88_output.txt"), []byte(strings.Join(lines, "")), 0o644)
}
