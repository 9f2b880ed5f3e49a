package sysfs

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Writer pushes a short textual value into a kernel control interface.
// Implementations perform a single attempt; retry policy belongs to the
// caller, because it differs between boot tuning writes (fire-and-forget)
// and reconciliation writes (bounded retry).
type Writer interface {
	Write(path, value string) error
}

// OpenError indicates the control interface is missing or not writable.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("opening %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// WriteError indicates a failed or short write to a control interface.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing to %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// FileWriter writes values into sysfs files. Root, when non-empty, is
// prefixed to every path so tests and inspection runs can target a
// scratch directory instead of the live /sys tree.
type FileWriter struct {
	Root string
}

func (w *FileWriter) Write(path, value string) error {
	full := path
	if w.Root != "" {
		full = filepath.Join(w.Root, path)
	}

	f, err := os.OpenFile(full, os.O_WRONLY, 0)
	if err != nil {
		return &OpenError{Path: full, Err: err}
	}

	n, err := f.WriteString(value)
	if err != nil {
		f.Close()
		return &WriteError{Path: full, Err: err}
	}
	if n < len(value) {
		f.Close()
		return &WriteError{Path: full, Err: io.ErrShortWrite}
	}

	if err := f.Close(); err != nil {
		return &WriteError{Path: full, Err: err}
	}
	return nil
}

// DryRunWriter logs would-be writes instead of performing them.
type DryRunWriter struct {
	Logger *log.Logger
}

func (w *DryRunWriter) Write(path, value string) error {
	w.Logger.Printf("DRY RUN: Would write %q to %s", value, path)
	return nil
}

// RetryPolicy bounds how often a fallible operation is reattempted and
// how long to sleep between attempts. It is defined once and shared by
// every reconciliation call site.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// Run invokes op until it succeeds or Attempts is exhausted, sleeping
// Delay between attempts. It returns the last error on exhaustion.
func (p RetryPolicy) Run(op func() error) error {
	var err error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if attempt > 0 {
			time.Sleep(p.Delay)
		}
		if err = op(); err == nil {
			return nil
		}
	}
	return err
}

// WriteRetry performs w.Write under the policy.
func (p RetryPolicy) WriteRetry(w Writer, path, value string) error {
	return p.Run(func() error {
		return w.Write(path, value)
	})
}
