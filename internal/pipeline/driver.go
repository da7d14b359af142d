package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime/debug"
	"sync"

	"github.com/nullsector/fat8d88/loggy"
)

var d88Regex = regexp.MustCompile(`(?i)[.]d88$`)

// Summary tallies a directory walk's outcome across every .d88 file
// found, for the CLI's closing report.
type Summary struct {
	Processed   int
	Errored     int
	ImageCount  int
	FileCount   int
	VariantTally map[string]int
}

// WalkDirectory fans a directory tree of .d88 files out across workers
// goroutines, extracting each into sink. The pattern -- a bounded
// channel feeding a fixed worker pool, a mutex-guarded summary, and a
// recover() per job so one corrupt image can't bring down the whole
// walk -- mirrors the historical multi-volume ingestor's worker loop.
func WalkDirectory(dir string, workers int, sink Sink) (*Summary, error) {
	if workers < 1 {
		workers = 1
	}

	incoming := make(chan string, workers*2)
	summary := &Summary{VariantTally: make(map[string]int)}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for path := range incoming {
				processOne(workerID, path, sink, summary, &mu)
			}
		}(i)
	}

	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			loggy.Get("walk").Errorf("%v", err)
			return nil
		}
		if !info.IsDir() && d88Regex.MatchString(path) {
			incoming <- path
		}
		return nil
	})

	close(incoming)
	wg.Wait()

	return summary, walkErr
}

func processOne(workerID int, path string, sink Sink, summary *Summary, mu *sync.Mutex) {
	l := loggy.Get(fmt.Sprintf("worker-%d", workerID))

	defer func() {
		if r := recover(); r != nil {
			l.Errorf("panic processing %s: %v", path, r)
			l.Errorf("%s", debug.Stack())
			mu.Lock()
			summary.Errored++
			mu.Unlock()
		}
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		l.Errorf("reading %s: %v", path, err)
		mu.Lock()
		summary.Errored++
		mu.Unlock()
		return
	}

	results, err := ExtractFile(path, data, sink)
	mu.Lock()
	defer mu.Unlock()
	if err != nil {
		l.Errorf("extracting %s: %v", path, err)
		summary.Errored++
	}
	summary.Processed++
	summary.ImageCount += len(results)
	for _, r := range results {
		summary.VariantTally[r.Variant.Name]++
		summary.FileCount += len(r.Files)
	}
}
