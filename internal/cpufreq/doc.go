// Package cpufreq drives per-CPU frequency limits towards a global
// low-power policy flag.
//
// Two quirks of the board's original policy are preserved on purpose
// rather than corrected:
//
// Entering low power writes both the minimum and maximum frequency, but
// leaving it restores only the maximum. The minimum stays wherever low
// power set it until something else touches it. Whether that was
// intended is an open question for the product owners; correcting it
// here would silently change behavior in the field.
//
// The per-CPU applied table records write successes, never kernel
// read-backs, so it can diverge from reality if the kernel accepts a
// write without honoring it. Divergence self-heals on the next attach
// event or policy call for the affected CPU.
package cpufreq
