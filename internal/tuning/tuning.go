package tuning

import (
	"log"

	"github.com/librepad/power-service/internal/sysfs"
)

const (
	coreLockTriggerPath  = "/sys/devices/system/cpu/cpuquiet/balanced/core_lock_trigger"
	disableLPClusterPath = "/sys/devices/system/cpu/cpuquiet/tegra_cpuquiet/no_lp"
	boostpulsePath       = "/sys/devices/system/cpu/cpufreq/interactive/boostpulse"
)

type write struct {
	path  string
	value string
}

// bootDefaults tunes the interactive cpufreq governor and the cpuquiet
// balancer: 50ms sampling, min sample 500ms, speed <=1GHz below 45%
// load or >=1GHz at 65% until 1.1GHz while load <75%, hispeed >=1.2GHz
// at 75%.
var bootDefaults = []write{
	{"/sys/devices/system/cpu/cpufreq/interactive/timer_rate", "50000"},
	{"/sys/devices/system/cpu/cpufreq/interactive/min_sample_time", "500000"},
	{"/sys/devices/system/cpu/cpufreq/interactive/go_hispeed_load", "75"},
	{"/sys/devices/system/cpu/cpufreq/interactive/above_hispeed_delay", "20000"},
	{"/sys/devices/system/cpu/cpufreq/interactive/hispeed_freq", "1300000"},
	{"/sys/devices/system/cpu/cpufreq/interactive/target_loads", "45 1000000:65 1100000:75"},
	{"/sys/devices/system/cpu/cpufreq/cpuload/enable", "1"},
	{"/sys/devices/system/cpu/cpuquiet/tegra_cpuquiet/enable", "1"},
	{"/sys/devices/system/cpu/cpuquiet/balanced/core_lock_period", "3000000"},
	{"/sys/devices/system/cpu/cpuquiet/balanced/core_lock_count", "2"},
	{coreLockTriggerPath, "1"},
	{disableLPClusterPath, "0"},
	{"/sys/module/cpuidle/parameters/power_down_in_idle", "0"},
	{"/sys/module/cpuidle_t3/parameters/lp2_0_in_idle", "0"},
	{"/sys/module/cpuidle_t3/parameters/lp2_n_in_idle", "1"},
}

// interactiveOn biases the cluster balancer towards responsiveness
// while the device is in active use.
var interactiveOn = []write{
	{coreLockTriggerPath, "1"},
	{disableLPClusterPath, "1"},
	{"/sys/devices/system/cpu/cpufreq/interactive/go_hispeed_load", "75"},
	{"/sys/devices/system/cpu/cpuquiet/balanced/core_lock_period", "3000000"},
	{"/sys/devices/system/cpu/cpuquiet/balanced/core_lock_count", "2"},
}

// interactiveOff lets the low-power companion cluster take over when
// the screen is off.
var interactiveOff = []write{
	{coreLockTriggerPath, "0"},
	{disableLPClusterPath, "0"},
	{"/sys/devices/system/cpu/cpufreq/interactive/go_hispeed_load", "85"},
	{"/sys/devices/system/cpu/cpuquiet/balanced/core_lock_period", "200000"},
	{"/sys/devices/system/cpu/cpuquiet/balanced/core_lock_count", "0"},
}

// Tuner applies fixed scheduling-profile bundles. All writes are
// fire-and-forget: failures are logged and never propagated, and no
// shared state is involved.
type Tuner struct {
	logger *log.Logger
	writer sysfs.Writer
}

func New(logger *log.Logger, writer sysfs.Writer) *Tuner {
	return &Tuner{logger: logger, writer: writer}
}

func (t *Tuner) apply(writes []write) {
	for _, w := range writes {
		if err := t.writer.Write(w.path, w.value); err != nil {
			t.logger.Printf("tuning: %v", err)
		}
	}
}

// ApplyBootDefaults writes the one-time governor tuning table. Called
// once at startup, before the uevent listener comes up.
func (t *Tuner) ApplyBootDefaults() {
	t.apply(bootDefaults)
}

// SetInteractive switches between the interactive and the background
// scheduling profile.
func (t *Tuner) SetInteractive(on bool) {
	if on {
		t.apply(interactiveOn)
	} else {
		t.apply(interactiveOff)
	}
}

// Boostpulse kicks the interactive governor's boost interface once.
func (t *Tuner) Boostpulse() {
	if err := t.writer.Write(boostpulsePath, "1"); err != nil {
		t.logger.Printf("tuning: %v", err)
	}
}
