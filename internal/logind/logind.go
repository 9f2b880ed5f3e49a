package logind

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/godbus/dbus/v5"
)

// Watcher subscribes to systemd-logind's PrepareForSleep signal on the
// system bus and invokes onResume after every wakeup. Suspend can reset
// cpufreq limits behind the controller's back, so the active policy is
// rewritten on resume.
type Watcher struct {
	logger   *log.Logger
	conn     *dbus.Conn
	signals  chan *dbus.Signal
	onResume func()
	wg       sync.WaitGroup
}

// NewWatcher connects to the system bus and registers the signal match.
func NewWatcher(logger *log.Logger, onResume func()) (*Watcher, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.login1.Manager"),
		dbus.WithMatchMember("PrepareForSleep"),
		dbus.WithMatchObjectPath("/org/freedesktop/login1"),
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to match PrepareForSleep signal: %w", err)
	}

	signals := make(chan *dbus.Signal, 8)
	conn.Signal(signals)

	return &Watcher{
		logger:   logger,
		conn:     conn,
		signals:  signals,
		onResume: onResume,
	}, nil
}

// Start launches the signal loop; it exits when ctx is cancelled or the
// bus connection goes away.
func (w *Watcher) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.loop(ctx)
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-w.signals:
			if !ok {
				w.logger.Printf("System bus connection closed, resume resync disabled")
				return
			}
			w.handleSignal(sig)
		}
	}
}

func (w *Watcher) handleSignal(sig *dbus.Signal) {
	if sig.Name != "org.freedesktop.login1.Manager.PrepareForSleep" {
		return
	}
	if len(sig.Body) != 1 {
		return
	}
	sleeping, ok := sig.Body[0].(bool)
	if !ok {
		return
	}

	if sleeping {
		w.logger.Printf("System going to sleep")
		return
	}

	w.logger.Printf("Resume detected, resyncing CPU frequency limits")
	w.onResume()
}

// Close tears down the bus connection and waits for the loop to exit.
func (w *Watcher) Close() error {
	err := w.conn.Close()
	w.wg.Wait()
	return err
}
