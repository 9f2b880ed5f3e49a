package config

import (
	"flag"
	"time"
)

type Config struct {
	RedisHost string
	RedisPort int

	CPUCount      int
	RetryAttempts int
	RetryDelay    time.Duration

	LowPowerMinFreq string
	LowPowerMaxFreq string
	NormalMaxFreq   string

	UeventBufferSize int

	IndicatorChip string
	IndicatorLine int

	LogindResync bool

	SysfsRoot string
	DryRun    bool
}

func New() *Config {
	return &Config{
		RedisHost:        "localhost",
		RedisPort:        6379,
		CPUCount:         4,
		RetryAttempts:    20,
		RetryDelay:       200 * time.Microsecond,
		LowPowerMinFreq:  "51000",
		LowPowerMaxFreq:  "640000",
		NormalMaxFreq:    "1300000",
		UeventBufferSize: 2048,
		IndicatorChip:    "gpiochip0",
		IndicatorLine:    -1,
		LogindResync:     true,
		SysfsRoot:        "",
		DryRun:           false,
	}
}

func (c *Config) Parse() {
	flag.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis host")
	flag.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")

	flag.IntVar(&c.CPUCount, "cpus", c.CPUCount,
		"Number of CPUs under frequency limit management")
	flag.IntVar(&c.RetryAttempts, "retry-attempts", c.RetryAttempts,
		"Attempts per reconciliation write before giving up")
	flag.DurationVar(&c.RetryDelay, "retry-delay", c.RetryDelay,
		"Delay between reconciliation write attempts")

	flag.StringVar(&c.LowPowerMinFreq, "low-power-min-freq", c.LowPowerMinFreq,
		"Minimum CPU frequency (kHz) while in low-power mode")
	flag.StringVar(&c.LowPowerMaxFreq, "low-power-max-freq", c.LowPowerMaxFreq,
		"Maximum CPU frequency (kHz) while in low-power mode")
	flag.StringVar(&c.NormalMaxFreq, "normal-max-freq", c.NormalMaxFreq,
		"Maximum CPU frequency (kHz) in normal mode")

	flag.IntVar(&c.UeventBufferSize, "uevent-buffer-size", c.UeventBufferSize,
		"Receive buffer size for kernel uevent datagrams")

	flag.StringVar(&c.IndicatorChip, "indicator-chip", c.IndicatorChip,
		"GPIO chip carrying the low-power indicator line")
	flag.IntVar(&c.IndicatorLine, "indicator-line", c.IndicatorLine,
		"GPIO line offset of the low-power indicator (-1 disables)")

	flag.BoolVar(&c.LogindResync, "logind-resync", c.LogindResync,
		"Resync frequency limits after resume via systemd-logind")

	flag.StringVar(&c.SysfsRoot, "sysfs-root", c.SysfsRoot,
		"Prefix for all sysfs paths (for inspection runs)")
	flag.BoolVar(&c.DryRun, "dry-run", c.DryRun,
		"Dry run (log sysfs writes instead of performing them)")

	flag.Parse()
}
