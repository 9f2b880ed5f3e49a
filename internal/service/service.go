package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/librepad/power-service/internal/config"
	"github.com/librepad/power-service/internal/cpufreq"
	"github.com/librepad/power-service/internal/indicator"
	"github.com/librepad/power-service/internal/logind"
	"github.com/librepad/power-service/internal/sysfs"
	"github.com/librepad/power-service/internal/tuning"
	"github.com/librepad/power-service/internal/uevent"
	"github.com/redis/go-redis/v9"
	redis_ipc "github.com/rescoot/redis-ipc"
)

// Service wires the frequency controller to its two stimulus sources:
// the kernel uevent listener (reactive path, calls straight into the
// controller from its own goroutine) and the Redis command surface
// (caller-driven path, funneled through a single event loop). The
// controller's lock is the only synchronization between the two.
type Service struct {
	config        *config.Config
	logger        *log.Logger
	redis         *redis_ipc.Client
	standardRedis *redis.Client

	controller *cpufreq.Controller
	tuner      *tuning.Tuner
	listener   *uevent.Listener
	resync     *logind.Watcher
	indicator  *indicator.Indicator

	events chan Event

	ctx context.Context
}

func New(cfg *config.Config, logger *log.Logger) (*Service, error) {
	redisConfig := redis_ipc.Config{
		Address:       cfg.RedisHost,
		Port:          cfg.RedisPort,
		RetryInterval: 5 * time.Second,
		MaxRetries:    3,
	}

	redisClient, err := redis_ipc.New(redisConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis client: %v", err)
	}

	standardRedisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
		DB:   0,
	})

	var writer sysfs.Writer
	if cfg.DryRun {
		writer = &sysfs.DryRunWriter{Logger: logger}
	} else {
		writer = &sysfs.FileWriter{Root: cfg.SysfsRoot}
	}

	retry := sysfs.RetryPolicy{
		Attempts: cfg.RetryAttempts,
		Delay:    cfg.RetryDelay,
	}
	limits := cpufreq.Limits{
		LowPowerMin: cfg.LowPowerMinFreq,
		LowPowerMax: cfg.LowPowerMaxFreq,
		NormalMax:   cfg.NormalMaxFreq,
	}

	service := &Service{
		config:        cfg,
		logger:        logger,
		redis:         redisClient,
		standardRedis: standardRedisClient,
		controller:    cpufreq.NewController(logger, writer, retry, limits, cfg.CPUCount),
		tuner:         tuning.New(logger, writer),
		events:        make(chan Event, 100),
	}

	return service, nil
}

func (s *Service) Run(ctx context.Context) error {
	s.ctx = ctx

	// One-time governor tuning, before any event can arrive.
	s.tuner.ApplyBootDefaults()

	listener, err := uevent.NewListener(s.logger, s.config.CPUCount,
		s.config.UeventBufferSize, s.controller.ReconcileCPU)
	if err != nil {
		// The command surface still works; only hotplug reconciliation
		// is lost.
		s.logger.Printf("Warning: CPU hotplug reconciliation unavailable: %v", err)
	} else {
		s.listener = listener
		s.listener.Start()
	}

	if s.config.LogindResync {
		watcher, err := logind.NewWatcher(s.logger, s.onResume)
		if err != nil {
			s.logger.Printf("Warning: resume resync disabled: %v", err)
		} else {
			s.resync = watcher
			s.resync.Start(ctx)
		}
	}

	if s.config.IndicatorLine >= 0 {
		ind, err := indicator.New(s.logger, s.config.IndicatorChip,
			s.config.IndicatorLine, s.config.DryRun)
		if err != nil {
			s.logger.Printf("Warning: low-power indicator disabled: %v", err)
		} else {
			s.indicator = ind
		}
	}

	s.redis.HandleRequests("power-hal:hint", s.onPowerHint)
	s.redis.HandleRequests("power-hal:interactive", s.onInteractive)

	// All state starts at the normal preset until told otherwise.
	s.publishMode(false)

	s.eventLoop(ctx)

	if s.listener != nil {
		s.listener.Stop()
	}
	if s.resync != nil {
		if err := s.resync.Close(); err != nil {
			s.logger.Printf("Failed to close logind watcher: %v", err)
		}
	}
	if s.indicator != nil {
		if err := s.indicator.Close(); err != nil {
			s.logger.Printf("Failed to close indicator: %v", err)
		}
	}

	if err := s.standardRedis.Close(); err != nil {
		s.logger.Printf("Failed to close Redis client: %v", err)
	}
	if err := s.redis.Close(); err != nil {
		s.logger.Printf("Failed to close Redis IPC client: %v", err)
	}

	return nil
}

func (s *Service) onPowerHint(data []byte) error {
	s.events <- Event{
		Type: EventPowerHint,
		Data: PowerHintData{Hint: string(data)},
	}
	return nil
}

func (s *Service) onInteractive(data []byte) error {
	s.events <- Event{
		Type: EventInteractive,
		Data: InteractiveData{Mode: string(data)},
	}
	return nil
}

// onResume is invoked from the logind watcher goroutine.
func (s *Service) onResume() {
	s.events <- Event{
		Type: EventResume,
		Data: nil,
	}
}

// eventLoop processes all command-surface events sequentially
func (s *Service) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-s.events:
			s.handleEvent(evt)
		}
	}
}

func (s *Service) handleEvent(evt Event) {
	switch evt.Type {
	case EventPowerHint:
		data := evt.Data.(PowerHintData)
		s.handlePowerHint(data.Hint)
	case EventInteractive:
		data := evt.Data.(InteractiveData)
		s.handleInteractive(data.Mode)
	case EventResume:
		s.handleResume()
	}
}

// handlePowerHint processes power hint commands. Recognized hints are
// "interaction" and "low-power" with an on/off payload; a bare
// "low-power" means off.
func (s *Service) handlePowerHint(hint string) {
	s.logger.Printf("Received power hint: %s", hint)

	switch hint {
	case "interaction":
		s.tuner.Boostpulse()
		s.publishBoost()
	case "low-power:on":
		s.setLowPower(true)
	case "low-power:off", "low-power":
		s.setLowPower(false)
	default:
		s.logger.Printf("Unknown power hint: %s", hint)
	}
}

// handleInteractive processes interactive profile commands
func (s *Service) handleInteractive(mode string) {
	s.logger.Printf("Received interactive command: %s", mode)

	switch mode {
	case "on":
		s.tuner.SetInteractive(true)
	case "off":
		s.tuner.SetInteractive(false)
	default:
		s.logger.Printf("Invalid interactive command: %s", mode)
	}
}

// handleResume rewrites the active policy after a suspend cycle
func (s *Service) handleResume() {
	s.controller.Resync()

	pipe := s.standardRedis.Pipeline()
	pipe.HSet(s.ctx, "power-hal", "last-resync", time.Now().Unix())
	pipe.Publish(s.ctx, "power-hal", "resync")
	if _, err := pipe.Exec(s.ctx); err != nil {
		s.logger.Printf("Warning: Failed to publish resync: %v", err)
	}
}

func (s *Service) setLowPower(enable bool) {
	s.logger.Printf("Setting low-power mode: %v", enable)

	s.controller.SetLowPower(enable)

	if s.indicator != nil {
		if err := s.indicator.Set(enable); err != nil {
			s.logger.Printf("Failed to update low-power indicator: %v", err)
		}
	}

	s.publishMode(enable)
}

func (s *Service) publishMode(lowPower bool) {
	mode := "normal"
	if lowPower {
		mode = "low-power"
	}

	tx := s.redis.NewTxGroup("power-mode")
	tx.Add("HSET", "power-hal", "mode", mode)
	tx.Add("PUBLISH", "power-hal", "mode")
	if _, err := tx.Exec(); err != nil {
		s.logger.Printf("Failed to publish power mode: %v", err)
	}
}

func (s *Service) publishBoost() {
	pipe := s.standardRedis.Pipeline()
	pipe.HSet(s.ctx, "power-hal", "last-boost", time.Now().Unix())
	pipe.Publish(s.ctx, "power-hal", "boost")
	if _, err := pipe.Exec(s.ctx); err != nil {
		s.logger.Printf("Warning: Failed to publish boost: %v", err)
	}
}
