// Package volmon watches udev netlink events for block device removal
// and reports watched roots that became unreachable, so cache entries
// can be marked missing without waiting for the next full scan.
package volmon

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"attune/internal/logging"
)

// Monitor listens for block device remove events. When a device
// disappears, every watched root is probed and the handler is invoked
// for each one that no longer resolves to a directory.
type Monitor struct {
	logger  *slog.Logger
	roots   func() []string
	handler func(root string)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// New creates a monitor. roots supplies the current watched set on each
// event; handler receives each root found unreachable. Either being nil
// yields a nil monitor, and all methods on a nil monitor are no-ops.
func New(logger *slog.Logger, roots func() []string, handler func(root string)) *Monitor {
	if roots == nil || handler == nil {
		return nil
	}
	return &Monitor{
		logger:  logging.NewComponentLogger(logger, "volmon"),
		roots:   roots,
		handler: handler,
	}
}

// Start begins listening for netlink events. A connect failure is not
// fatal: unreachable roots are still detected by the next scan, just
// not promptly.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("netlink connect failed, volume removal detection disabled",
			logging.Error(err))
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("volume monitor started")
	return nil
}

// Stop shuts the monitor down.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false
	m.logger.Info("volume monitor stopped")
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, m.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error", logging.Error(err))
		}
	}
}

// buildMatcher matches SUBSYSTEM=block ACTION=remove, the signature of
// a volume yanked out from under its mount.
func (m *Monitor) buildMatcher() netlink.Matcher {
	action := "remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "block",
		},
	})
	return rules
}

// handleEvent probes every watched root after a block device vanished.
// The removed device is not mapped back to a mount point; a stat probe
// per root is cheap and catches bind mounts and network mounts too.
func (m *Monitor) handleEvent(uevent netlink.UEvent) {
	m.logger.Debug("block device removed",
		logging.String("kobj", uevent.KObj),
		logging.String("devname", uevent.Env["DEVNAME"]))

	for _, root := range m.roots() {
		info, err := os.Stat(root)
		if err == nil && info.IsDir() {
			continue
		}
		m.logger.Info("watched root unreachable",
			logging.String(logging.FieldRoot, root))
		m.handler(root)
	}
}
