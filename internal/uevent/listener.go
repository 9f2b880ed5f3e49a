package uevent

import (
	"bytes"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// attachPattern marks a kernel notification that a CPU came online. The
// device path ends in the decimal CPU index.
const attachPattern = "online@/devices/system/cpu/"

// DefaultBufferSize bounds a single uevent datagram. Oversized
// datagrams are discarded.
const DefaultBufferSize = 2048

// Listener consumes CPU hotplug notifications from the kernel uevent
// netlink channel and hands decoded CPU indices to the attach callback.
// It owns one goroutine for the lifetime of the service; Stop closes
// the socket, which makes the blocked receive return and the goroutine
// exit cleanly.
type Listener struct {
	logger   *log.Logger
	fd       int
	bufSize  int
	cpus     int
	onAttach func(cpu int)
	closed   atomic.Bool
	wg       sync.WaitGroup
}

// NewListener opens the kobject uevent socket, subscribed to all
// multicast groups.
func NewListener(logger *log.Logger, cpus, bufSize int, onAttach func(cpu int)) (*Listener, error) {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, fmt.Errorf("opening uevent socket: %w", err)
	}

	addr := &unix.SockaddrNetlink{
		Family: unix.AF_NETLINK,
		Groups: 0xffffffff,
	}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("binding uevent socket: %w", err)
	}

	return &Listener{
		logger:   logger,
		fd:       fd,
		bufSize:  bufSize,
		cpus:     cpus,
		onAttach: onAttach,
	}, nil
}

// Start launches the receive loop.
func (l *Listener) Start() {
	l.wg.Add(1)
	go l.loop()
}

// Stop closes the socket and waits for the receive loop to exit.
func (l *Listener) Stop() {
	l.closed.Store(true)
	unix.Close(l.fd)
	l.wg.Wait()
}

func (l *Listener) loop() {
	defer l.wg.Done()

	buf := make([]byte, l.bufSize)
	for {
		n, _, err := unix.Recvfrom(l.fd, buf, 0)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if l.closed.Load() {
				return
			}
			// Anything else is fatal for the reactive path: the daemon
			// keeps serving policy commands, but hotplug reconciliation
			// is gone for the rest of this process.
			l.logger.Printf("ERROR: uevent receive failed, CPU hotplug reconciliation disabled: %v", err)
			return
		}

		if n <= 0 || n >= l.bufSize {
			continue
		}

		cpu, ok := ParseAttach(buf[:n], l.cpus)
		if !ok {
			continue
		}
		l.onAttach(cpu)
	}
}

// ParseAttach decodes a uevent datagram. It reports the CPU index and
// true when the payload is a CPU attach notification with a valid index
// in [0, cpus); every other payload, including attach notifications
// with an unparseable or out-of-range index, reports false.
func ParseAttach(msg []byte, cpus int) (int, bool) {
	// A uevent datagram is NUL-separated; the header line carries
	// "action@devpath".
	if i := bytes.IndexByte(msg, 0); i >= 0 {
		msg = msg[:i]
	}

	s := string(msg)
	if !strings.Contains(s, attachPattern) {
		return 0, false
	}

	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) {
		return 0, false
	}

	cpu, err := strconv.Atoi(s[i:])
	if err != nil || cpu >= cpus {
		return 0, false
	}
	return cpu, true
}
