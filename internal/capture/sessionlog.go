package capture

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// logTimeLayout names log files after the session start, e.g. config_log_20250131_142501.json.
const logTimeLayout = "20060102_150405"

// Log is the ordered, append-only session log.
//
// Log is not safe for concurrent use. Every writer runs inside the Dispatcher's
// single consumer goroutine, and the terminal Flush happens after the Dispatcher
// has been closed and drained.
type Log struct {
	records []Record

	flushed   bool
	flushPath string
	flushErr  error
}

// NewLog returns an empty session log.
func NewLog() *Log {
	return &Log{}
}

// Append adds a record at the end of the log. It reports false once the log
// has been flushed; flushed logs accept nothing.
func (l *Log) Append(r Record) bool {
	if l.flushed {
		return false
	}
	l.records = append(l.records, r)
	return true
}

// Len returns the number of records.
func (l *Log) Len() int {
	return len(l.records)
}

// Records returns a copy of the records in arrival order.
func (l *Log) Records() []Record {
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Counts returns the number of records per category.
func (l *Log) Counts() map[Category]int {
	counts := make(map[Category]int)
	for _, r := range l.records {
		counts[r.Category]++
	}
	return counts
}

// Flushed reports whether the terminal flush has run.
func (l *Log) Flushed() bool {
	return l.flushed
}

// Flush writes the whole log to path as an indented JSON array and seals it.
// Only the first call writes; later calls return the first call's result.
// The parent directory must already exist.
func (l *Log) Flush(path string) (string, error) {
	if l.flushed {
		return l.flushPath, l.flushErr
	}
	l.flushed = true
	l.flushPath = path
	l.flushErr = writeLogFile(path, l.records)
	return l.flushPath, l.flushErr
}

func writeLogFile(path string, records []Record) error {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("session log: destination %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("session log: destination %s is not a directory", dir)
	}

	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("session log: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("session log: write %s: %w", path, err)
	}
	return nil
}

// LogFileName builds the file name of a session log from its start time.
func LogFileName(prefix string, start time.Time) string {
	return fmt.Sprintf("%s_%s.json", prefix, start.Format(logTimeLayout))
}

// ReadLogFile reads a flushed session log back into memory.
func ReadLogFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("session log: read %s: %w", path, err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("session log: decode %s: %w", path, err)
	}
	for i, r := range records {
		if _, err := ParseCategory(string(r.Category)); err != nil {
			return nil, fmt.Errorf("session log: record %d: %w", i, err)
		}
	}
	return records, nil
}
