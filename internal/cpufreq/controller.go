package cpufreq

import (
	"fmt"
	"log"
	"sync"

	"github.com/librepad/power-service/internal/sysfs"
)

const coreLockTriggerPath = "/sys/devices/system/cpu/cpuquiet/balanced/core_lock_trigger"

// Limits holds the frequency presets, in the textual kHz form the
// cpufreq interfaces accept.
type Limits struct {
	LowPowerMin string
	LowPowerMax string
	NormalMax   string
}

// DefaultLimits are the board defaults for the Tegra 3 cluster.
func DefaultLimits() Limits {
	return Limits{
		LowPowerMin: "51000",
		LowPowerMax: "640000",
		NormalMax:   "1300000",
	}
}

// Controller keeps per-CPU frequency limits consistent with the global
// low-power flag. The flag and the per-CPU applied table form one unit
// of consistency: both are only touched under a single mutex, held for
// the whole examine-then-act sequence.
//
// The applied table is a cache of intent, not a read-back of kernel
// state: an entry is set optimistically when the max-frequency write
// succeeds and is never verified afterwards. A write the kernel accepts
// but does not honor goes unnoticed; this is a known limitation carried
// over from the board's original policy.
type Controller struct {
	logger *log.Logger
	writer sysfs.Writer
	retry  sysfs.RetryPolicy
	limits Limits

	mu       sync.Mutex
	lowPower bool
	applied  []bool
}

// NewController creates a controller for cpus CPUs, all assumed to be
// running the normal preset.
func NewController(logger *log.Logger, writer sysfs.Writer, retry sysfs.RetryPolicy, limits Limits, cpus int) *Controller {
	return &Controller{
		logger:  logger,
		writer:  writer,
		retry:   retry,
		limits:  limits,
		applied: make([]bool, cpus),
	}
}

func minFreqPath(cpu int) string {
	return fmt.Sprintf("/sys/devices/system/cpu/cpu%d/cpufreq/scaling_min_freq", cpu)
}

func maxFreqPath(cpu int) string {
	return fmt.Sprintf("/sys/devices/system/cpu/cpu%d/cpufreq/scaling_max_freq", cpu)
}

// SetLowPower switches the target policy and synchronously reconciles
// every CPU with a single write attempt each. The single attempt is a
// deliberate trade-off against the bounded retry of the event path:
// this is the caller-facing entry point and must return promptly. A CPU
// whose write fails is left for the next attach event to pick up.
func (c *Controller) SetLowPower(enable bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lowPower = enable

	// The cluster core locker is released while in low power and
	// re-engaged when leaving it, regardless of how the per-CPU writes
	// go.
	trigger := "1"
	if enable {
		trigger = "0"
	}
	if err := c.writer.Write(coreLockTriggerPath, trigger); err != nil {
		c.logger.Printf("Failed to write core lock trigger: %v", err)
	}

	for cpu := range c.applied {
		if c.applied[cpu] == enable {
			continue
		}
		if enable {
			c.applyLowPower(cpu, sysfs.RetryPolicy{Attempts: 1})
		} else {
			c.restoreNormal(cpu, sysfs.RetryPolicy{Attempts: 1})
		}
	}
}

// ReconcileCPU drives one CPU's limits towards the current policy, with
// bounded retry. It is the attach-event path: a CPU hot-plugged while
// low power is active comes up with default limits and must be brought
// back in line even though no policy call is in flight. Out-of-range
// indices are ignored.
func (c *Controller) ReconcileCPU(cpu int) {
	if cpu < 0 || cpu >= len(c.applied) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconcileLocked(cpu)
}

// Resync re-applies the current policy to every CPU with bounded retry.
// Used after resume, when the kernel may have reset the limits behind
// the controller's back.
func (c *Controller) Resync() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for cpu := range c.applied {
		if c.lowPower {
			// Treat the cached state as stale so the preset is rewritten.
			c.applied[cpu] = false
		}
		c.reconcileLocked(cpu)
	}
}

func (c *Controller) reconcileLocked(cpu int) {
	switch {
	case c.lowPower && !c.applied[cpu]:
		c.applyLowPower(cpu, c.retry)
	case !c.lowPower && c.applied[cpu]:
		c.restoreNormal(cpu, c.retry)
	}
}

// applyLowPower writes the low-power pair, min then max. Success is
// judged on the max write alone; the min write failing is logged and
// tolerated.
func (c *Controller) applyLowPower(cpu int, retry sysfs.RetryPolicy) {
	err := retry.Run(func() error {
		if err := c.writer.Write(minFreqPath(cpu), c.limits.LowPowerMin); err != nil {
			c.logger.Printf("cpu%d: %v", cpu, err)
		}
		return c.writer.Write(maxFreqPath(cpu), c.limits.LowPowerMax)
	})
	if err != nil {
		c.logger.Printf("cpu%d: failed to apply low-power limits: %v", cpu, err)
		return
	}
	c.applied[cpu] = true
}

// restoreNormal writes the normal max frequency only. The minimum is
// deliberately left wherever low power set it; see the package
// documentation for why this asymmetry is preserved.
func (c *Controller) restoreNormal(cpu int, retry sysfs.RetryPolicy) {
	err := retry.Run(func() error {
		return c.writer.Write(maxFreqPath(cpu), c.limits.NormalMax)
	})
	if err != nil {
		c.logger.Printf("cpu%d: failed to restore normal limits: %v", cpu, err)
		return
	}
	c.applied[cpu] = false
}

// LowPower reports the current target policy.
func (c *Controller) LowPower() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lowPower
}

// Applied reports whether the low-power preset is believed to be in
// effect on the given CPU. Out-of-range indices report false.
func (c *Controller) Applied(cpu int) bool {
	if cpu < 0 || cpu >= len(c.applied) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applied[cpu]
}

// CPUCount returns the number of CPUs under management.
func (c *Controller) CPUCount() int {
	return len(c.applied)
}
