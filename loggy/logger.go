// Package loggy provides the per-image structured logger used while
// walking a D88 container: one Logger per disk image, writing a
// timestamped, level-tagged line stream to a log file and, optionally,
// echoing it to stderr.
package loggy

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

var ECHO bool = false

type Logger struct {
	mu     sync.Mutex
	key    string
	lines  []string
	file   *os.File
}

var loggers map[string]*Logger
var loggersMu sync.Mutex

// Get returns the Logger for key, creating a buffering, non-file-backed
// Logger if one does not exist yet. key is typically the D88 file's
// base name, with a " [Disk NN]" suffix in a multi-disk file, so each
// disk image inside it gets its own independent line buffer.
func Get(key string) *Logger {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	if loggers == nil {
		loggers = make(map[string]*Logger)
	}
	l, ok := loggers[key]
	if !ok {
		l = &Logger{key: key}
		loggers[key] = l
	}
	return l
}

// Attach binds the Logger to an on-disk file; subsequent lines are
// flushed there immediately as well as buffered. Extraction artifact
// writers that want the full transcript (spec's *_fat8_d88_output.txt)
// should call Lines after the run instead of relying on the file handle.
func (l *Logger) Attach(f *os.File) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.file = f
}

func ts() string {
	t := time.Now()
	return fmt.Sprintf(
		"%.4d/%.2d/%.2d %.2d:%.2d:%.2d",
		t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(),
	)
}

func (l *Logger) emit(designator, format string, v ...interface{}) {
	line := ts() + " " + designator + " :: " + fmt.Sprintf(format, v...)
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}

	l.mu.Lock()
	l.lines = append(l.lines, line)
	if l.file != nil {
		l.file.WriteString(line)
		l.file.Sync()
	}
	l.mu.Unlock()

	if ECHO {
		os.Stderr.WriteString(line)
	}
}

// Lines returns the accumulated, ordered log lines for this image.
func (l *Logger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

func (l *Logger) Logf(format string, v ...interface{})   { l.emit("INFO ", format, v...) }
func (l *Logger) Errorf(format string, v ...interface{}) { l.emit("ERROR", format, v...) }
func (l *Logger) Debugf(format string, v ...interface{}) { l.emit("DEBUG", format, v...) }
func (l *Logger) Fatalf(format string, v ...interface{}) { l.emit("FATAL", format, v...) }

func (l *Logger) Log(v ...interface{})   { l.Logf("%s", fmt.Sprint(v...)) }
func (l *Logger) Error(v ...interface{}) { l.Errorf("%s", fmt.Sprint(v...)) }
func (l *Logger) Debug(v ...interface{}) { l.Debugf("%s", fmt.Sprint(v...)) }
