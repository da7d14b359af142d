// fat8extract recovers files from FAT8 volumes stored inside D88
// floppy-disk container files, writing each recovered file plus a
// per-image transcript log to an output directory.
package main

import (
	"flag"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime/debug"

	"github.com/nullsector/fat8d88/internal/pipeline"
	"github.com/nullsector/fat8d88/loggy"
)

func usage() {
	fmt.Printf(`%s <options> file-or-directory [file-or-directory ...]

Recovers files from FAT8 volumes inside D88 (.d88) disk images. Each
input path may be a single .d88 file or a directory to walk for them.

`, path.Base(os.Args[0]))
	flag.PrintDefaults()
}

var (
	outDir  = flag.String("out", "./fat8-extracted", "Directory to write recovered files and logs into")
	verbose = flag.Bool("verbose", false, "Echo the per-image log to stderr as extraction proceeds")
	workers = flag.Int("workers", 4, "Worker goroutines to use when a directory is given")
	browse  = flag.Bool("browse", false, "Open the first given .d88 file in an interactive directory browser instead of extracting")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	loggy.ECHO = *verbose

	if flag.NArg() == 0 {
		usage()
		os.Exit(1)
	}

	if *browse {
		if err := runBrowseShell(flag.Arg(0)); err != nil {
			fmt.Fprintf(os.Stderr, "fat8extract: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "fat8extract: creating output directory: %v\n", err)
		os.Exit(1)
	}
	sink := &pipeline.FileSink{Root: *outDir}

	var processed, errored int

	for _, arg := range flag.Args() {
		info, err := os.Stat(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fat8extract: %v\n", err)
			errored++
			continue
		}

		if info.IsDir() {
			summary, err := pipeline.WalkDirectory(arg, *workers, sink)
			if err != nil {
				fmt.Fprintf(os.Stderr, "fat8extract: walking %s: %v\n", arg, err)
			}
			processed += summary.Processed
			errored += summary.Errored
			fmt.Printf("%s: %d files processed, %d errors, %d images, %d recovered files\n",
				arg, summary.Processed, summary.Errored, summary.ImageCount, summary.FileCount)
			continue
		}

		if err := extractOneFile(arg, sink); err != nil {
			fmt.Fprintf(os.Stderr, "fat8extract: %s: %v\n", arg, err)
			errored++
			continue
		}
		processed++
	}

	fmt.Printf("\ndone: %d files processed, %d errors\n", processed, errored)
	if errored > 0 {
		os.Exit(1)
	}
}

func extractOneFile(path string, sink pipeline.Sink) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()

	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return readErr
	}

	results, extractErr := pipeline.ExtractFile(path, data, sink)
	for _, res := range results {
		fmt.Printf("%-40s %-50s %4d files\n", filepath.Base(path), res.Variant.Name, len(res.Files))
	}
	return extractErr
}
