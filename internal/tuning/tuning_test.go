package tuning

import (
	"errors"
	"io"
	"log"
	"testing"
)

type recordingWriter struct {
	writes   []write
	failPath string
}

func (w *recordingWriter) Write(path, value string) error {
	if path == w.failPath {
		return errors.New("injected")
	}
	w.writes = append(w.writes, write{path, value})
	return nil
}

func (w *recordingWriter) value(path string) (string, bool) {
	for i := len(w.writes) - 1; i >= 0; i-- {
		if w.writes[i].path == path {
			return w.writes[i].value, true
		}
	}
	return "", false
}

func newTestTuner(w *recordingWriter) *Tuner {
	return New(log.New(io.Discard, "", 0), w)
}

func TestApplyBootDefaults(t *testing.T) {
	w := &recordingWriter{}
	newTestTuner(w).ApplyBootDefaults()

	if len(w.writes) != len(bootDefaults) {
		t.Fatalf("Expected %d writes, got %d", len(bootDefaults), len(w.writes))
	}

	// Spot checks against the governor tuning table.
	checks := map[string]string{
		"/sys/devices/system/cpu/cpufreq/interactive/timer_rate":   "50000",
		"/sys/devices/system/cpu/cpufreq/interactive/target_loads": "45 1000000:65 1100000:75",
		disableLPClusterPath: "0",
		coreLockTriggerPath:  "1",
	}
	for path, want := range checks {
		got, ok := w.value(path)
		if !ok {
			t.Errorf("Expected write to %s", path)
			continue
		}
		if got != want {
			t.Errorf("%s: expected %q, got %q", path, want, got)
		}
	}
}

func TestApplyBootDefaultsContinuesPastFailure(t *testing.T) {
	w := &recordingWriter{failPath: "/sys/devices/system/cpu/cpufreq/cpuload/enable"}
	newTestTuner(w).ApplyBootDefaults()

	if len(w.writes) != len(bootDefaults)-1 {
		t.Errorf("Expected %d successful writes, got %d", len(bootDefaults)-1, len(w.writes))
	}
	// Writes after the failing one must still happen.
	if _, ok := w.value("/sys/module/cpuidle_t3/parameters/lp2_n_in_idle"); !ok {
		t.Error("Expected writes after the failed one to proceed")
	}
}

func TestSetInteractiveProfiles(t *testing.T) {
	tests := []struct {
		name        string
		on          bool
		trigger     string
		noLP        string
		hispeedLoad string
		lockPeriod  string
		lockCount   string
	}{
		{"interactive on", true, "1", "1", "75", "3000000", "2"},
		{"interactive off", false, "0", "0", "85", "200000", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &recordingWriter{}
			newTestTuner(w).SetInteractive(tt.on)

			if len(w.writes) != 5 {
				t.Fatalf("Expected 5 writes, got %d", len(w.writes))
			}

			checks := map[string]string{
				coreLockTriggerPath:  tt.trigger,
				disableLPClusterPath: tt.noLP,
				"/sys/devices/system/cpu/cpufreq/interactive/go_hispeed_load": tt.hispeedLoad,
				"/sys/devices/system/cpu/cpuquiet/balanced/core_lock_period":  tt.lockPeriod,
				"/sys/devices/system/cpu/cpuquiet/balanced/core_lock_count":   tt.lockCount,
			}
			for path, want := range checks {
				got, ok := w.value(path)
				if !ok {
					t.Errorf("Expected write to %s", path)
					continue
				}
				if got != want {
					t.Errorf("%s: expected %q, got %q", path, want, got)
				}
			}
		})
	}
}

func TestBoostpulse(t *testing.T) {
	w := &recordingWriter{}
	newTestTuner(w).Boostpulse()

	if len(w.writes) != 1 {
		t.Fatalf("Expected 1 write, got %d", len(w.writes))
	}
	if got, _ := w.value(boostpulsePath); got != "1" {
		t.Errorf("Expected boostpulse write of 1, got %q", got)
	}
}
