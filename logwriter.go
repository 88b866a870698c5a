package mapfile

import (
	"fmt"
	"time"
)

// LineTimeFormat is the timestamp layout of LineWriter records.
const LineTimeFormat = "2006-01-02 15:04:05.000"

// LineWriter formats text log records and appends them to a concurrent
// file, one "<stamp> [<tag>] LEVEL <name> - <msg>" line per call. Lines
// from concurrent writers interleave whole, never byte-wise, because each
// line is a single reservation.
type LineWriter struct {
	file  ConcurrentFile
	name  string
	tag   string
	level LogLevel

	now func() time.Time // test hook
}

// NewLineWriter binds a named line writer to file. Records below level
// are dropped without touching the file.
func NewLineWriter(file ConcurrentFile, name, tag string, level LogLevel) *LineWriter {
	return &LineWriter{
		file:  file,
		name:  name,
		tag:   tag,
		level: level,
	}
}

// Enabled reports whether records at the given level reach the file.
func (w *LineWriter) Enabled(level LogLevel) bool {
	return level >= w.level
}

func (w *LineWriter) write(level LogLevel, levelStr, format string, args ...any) error {
	if !w.Enabled(level) {
		return nil
	}
	nowFn := w.now
	if nowFn == nil {
		nowFn = time.Now
	}
	line := fmt.Sprintf("%s [%s] %s %s - %s\n",
		nowFn().Format(LineTimeFormat), w.tag, levelStr, w.name,
		fmt.Sprintf(format, args...))
	_, err := w.file.WriteAscii(line)
	return err
}

func (w *LineWriter) Debugf(format string, args ...any) error {
	return w.write(LogLevelDebug, "DEBUG", format, args...)
}

func (w *LineWriter) Infof(format string, args ...any) error {
	return w.write(LogLevelInfo, "INFO", format, args...)
}

func (w *LineWriter) Warnf(format string, args ...any) error {
	return w.write(LogLevelWarn, "WARN", format, args...)
}

func (w *LineWriter) Errorf(format string, args ...any) error {
	return w.write(LogLevelError, "ERROR", format, args...)
}
