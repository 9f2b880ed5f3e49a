package sysfs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileWriterWritesValue(t *testing.T) {
	root := t.TempDir()
	path := "/sys/devices/system/cpu/cpu0/cpufreq/scaling_max_freq"

	full := filepath.Join(root, path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("Failed to create sysfs layout: %v", err)
	}
	if err := os.WriteFile(full, []byte("1300000"), 0644); err != nil {
		t.Fatalf("Failed to seed sysfs file: %v", err)
	}

	w := &FileWriter{Root: root}
	if err := w.Write(path, "640000"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		t.Fatalf("Failed to read back: %v", err)
	}
	if string(data) != "640000" {
		t.Errorf("Expected 640000, got %q", string(data))
	}
}

func TestFileWriterMissingInterface(t *testing.T) {
	w := &FileWriter{Root: t.TempDir()}

	err := w.Write("/sys/devices/system/cpu/cpu0/cpufreq/scaling_max_freq", "640000")
	if err == nil {
		t.Fatal("Expected error for missing interface")
	}

	var openErr *OpenError
	if !errors.As(err, &openErr) {
		t.Errorf("Expected OpenError, got %T: %v", err, err)
	}
}

func TestRetryPolicyStopsOnSuccess(t *testing.T) {
	calls := 0
	policy := RetryPolicy{Attempts: 20, Delay: 0}

	err := policy.Run(func() error {
		calls++
		if calls < 3 {
			return errors.New("injected")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}

func TestRetryPolicyExhaustsAttempts(t *testing.T) {
	calls := 0
	policy := RetryPolicy{Attempts: 5, Delay: 0}

	err := policy.Run(func() error {
		calls++
		return errors.New("injected")
	})

	if err == nil {
		t.Fatal("Expected error after exhausting attempts")
	}
	if calls != 5 {
		t.Errorf("Expected 5 attempts, got %d", calls)
	}
}

func TestWriteRetry(t *testing.T) {
	w := &failingWriter{failures: 2}
	policy := RetryPolicy{Attempts: 20, Delay: 0}

	if err := policy.WriteRetry(w, "/some/path", "1"); err != nil {
		t.Fatalf("Expected eventual success, got %v", err)
	}
	if w.calls != 3 {
		t.Errorf("Expected 3 write attempts, got %d", w.calls)
	}
}

type failingWriter struct {
	failures int
	calls    int
}

func (w *failingWriter) Write(path, value string) error {
	w.calls++
	if w.calls <= w.failures {
		return &WriteError{Path: path, Err: errors.New("injected")}
	}
	return nil
}
