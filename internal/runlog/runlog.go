// Package runlog implements the run-scoped audit log. Every run writes a
// single append-only, line-oriented log file under the target root; each
// event line carries a UTC timestamp. The log is the complete record of a
// run, and in dry-run mode it is the preview of the actions a real run
// would take.
package runlog

import (
	"fmt"
	"io"
	"time"

	"github.com/go-git/go-billy/v5"
)

const timestampLayout = "2006-01-02 15:04:05 UTC"

// Log is the single writer for a run's audit log. The engine holds it
// exclusively for the run's duration.
type Log struct {
	f    billy.File
	echo io.Writer
	now  func() time.Time
}

// Create opens a fresh log file at the given name on fs. When echo is
// non-nil (verbose mode), every line is also written there.
func Create(fs billy.Filesystem, name string, echo io.Writer) (*Log, error) {
	f, err := fs.Create(name)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	return &Log{f: f, echo: echo, now: time.Now}, nil
}

// Headerf writes a raw header line without a timestamp prefix.
func (l *Log) Headerf(format string, args ...any) error {
	return l.write(fmt.Sprintf(format, args...))
}

// Eventf writes a timestamped event line.
func (l *Log) Eventf(format string, args ...any) error {
	stamp := l.now().UTC().Format(timestampLayout)
	return l.write(stamp + ": " + fmt.Sprintf(format, args...))
}

// write appends one line to the log file. The file write is part of the
// run contract and its failure aborts the run; the echo is a best-effort
// convenience and its errors are ignored.
func (l *Log) write(line string) error {
	if _, err := l.f.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("failed to write log line: %w", err)
	}
	if l.echo != nil {
		fmt.Fprintln(l.echo, line)
	}
	return nil
}

// Close closes the underlying log file.
func (l *Log) Close() error {
	return l.f.Close()
}
