package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"clipline/internal/config"
	"clipline/internal/lease"
	"clipline/internal/logging"
	"clipline/internal/notifications"
	"clipline/internal/sla"
	"clipline/internal/tasks"
)

// Manager runs the background maintenance loops for the coordinator: the
// expired-claim reclaimer, the stale-claim safety sweep, and the overdue
// scan. Each loop ticks independently so a slow scan never delays reclaim.
type Manager struct {
	cfg      *config.Config
	store    *tasks.Store
	leases   *lease.Manager
	calc     *sla.Calculator
	notifier notifications.Service
	logger   *slog.Logger

	reclaimInterval time.Duration
	staleInterval   time.Duration
	overdueInterval time.Duration

	mu              sync.Mutex
	running         bool
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	startedAt       time.Time
	lastReclaim     time.Time
	lastStaleSweep  time.Time
	lastOverdueScan time.Time
	lastErr         error
}

// NewManager constructs a manager wired to the default notifier.
func NewManager(cfg *config.Config, store *tasks.Store, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *tasks.Store, logger *slog.Logger, notifier notifications.Service) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:             cfg,
		store:           store,
		leases:          lease.NewManager(store, cfg.DefaultTTL(), logger),
		calc:            sla.NewCalculator(cfg),
		notifier:        notifier,
		logger:          logger.With(logging.String("component", "workflow")),
		reclaimInterval: time.Duration(cfg.Lease.ReclaimIntervalMinutes) * time.Minute,
		staleInterval:   time.Duration(cfg.Lease.StaleSweepIntervalMins) * time.Minute,
		overdueInterval: time.Duration(cfg.Lease.OverdueScanIntervalMins) * time.Minute,
	}
}

// Start launches the maintenance loops.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.startedAt = time.Now().UTC()
	m.wg.Add(3)
	m.mu.Unlock()

	go m.loop(runCtx, m.reclaimInterval, m.reclaimExpired)
	go m.loop(runCtx, m.staleInterval, m.releaseStale)
	go m.loop(runCtx, m.overdueInterval, m.scanOverdue)

	m.logger.Info("workflow started",
		logging.Duration("reclaim_interval", m.reclaimInterval),
		logging.Duration("stale_interval", m.staleInterval),
		logging.Duration("overdue_interval", m.overdueInterval),
	)
	return nil
}

// Stop terminates the loops and waits for them to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped")
}

// Running reports whether the maintenance loops are active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Status describes the manager for operator surfaces.
type Status struct {
	Running         bool      `json:"running"`
	StartedAt       time.Time `json:"startedAt,omitempty"`
	LastReclaim     time.Time `json:"lastReclaim,omitempty"`
	LastStaleSweep  time.Time `json:"lastStaleSweep,omitempty"`
	LastOverdueScan time.Time `json:"lastOverdueScan,omitempty"`
	LastError       string    `json:"lastError,omitempty"`
}

// Status returns a snapshot of loop progress.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{
		Running:         m.running,
		StartedAt:       m.startedAt,
		LastReclaim:     m.lastReclaim,
		LastStaleSweep:  m.lastStaleSweep,
		LastOverdueScan: m.lastOverdueScan,
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	return st
}

func (m *Manager) loop(ctx context.Context, interval time.Duration, sweep func(context.Context) error) {
	defer m.wg.Done()
	if interval <= 0 {
		return
	}

	// Run once on startup so a daemon restart clears backlog immediately.
	m.runSweep(ctx, sweep)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runSweep(ctx, sweep)
		}
	}
}

func (m *Manager) runSweep(ctx context.Context, sweep func(context.Context) error) {
	err := sweep(ctx)
	if err != nil && errors.Is(err, context.Canceled) {
		return
	}
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) reclaimExpired(ctx context.Context) error {
	count, err := m.leases.ReclaimExpired(ctx)
	m.mu.Lock()
	m.lastReclaim = time.Now().UTC()
	m.mu.Unlock()
	if err != nil {
		m.logger.Warn("claim reclaim failed", logging.Error(err))
		m.notifyError(ctx, err, "claim reclaim")
		return err
	}
	if count > 0 {
		if nerr := m.notifier.NotifyClaimsReclaimed(ctx, count); nerr != nil {
			m.logger.Warn("reclaim notification failed", logging.Error(nerr))
		}
	}
	return nil
}

func (m *Manager) releaseStale(ctx context.Context) error {
	count, err := m.leases.ReleaseStale(ctx, m.cfg.StaleReleaseMargin())
	m.mu.Lock()
	m.lastStaleSweep = time.Now().UTC()
	m.mu.Unlock()
	if err != nil {
		m.logger.Warn("stale claim sweep failed", logging.Error(err))
		m.notifyError(ctx, err, "stale claim sweep")
		return err
	}
	if count > 0 {
		m.logger.Info("force-cleared stale claims", logging.Int64("count", count))
	}
	return nil
}

// notifyError forwards a sweep failure to the notifier. Dispatch problems are
// logged and swallowed so the loop keeps its own error as the primary record.
func (m *Manager) notifyError(ctx context.Context, err error, label string) {
	if nerr := m.notifier.NotifyError(ctx, err, label); nerr != nil {
		m.logger.Warn("error notification failed", logging.Error(nerr))
	}
}
