package backup

import (
	"context"
	"time"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/ctxkeep/pkg/utils/logging"
)

// Start runs the scheduler under ctx when automatic backups are enabled.
// After the warm-up delay one backup is taken, then one every
// BackupFrequency, each followed by a retention sweep.
func (m *Manager) Start(ctx context.Context) {
	m.schedMu.Lock()
	defer m.schedMu.Unlock()

	m.stopLocked()
	m.baseCtx = ctx
	m.startLocked()
}

// Stop cancels the scheduler and waits for it to exit. Existing backups stay.
func (m *Manager) Stop() {
	m.schedMu.Lock()
	defer m.schedMu.Unlock()

	m.stopLocked()
	m.baseCtx = nil
}

// SetConfig replaces the configuration. A running scheduler is restarted
// with the new interval, or stopped when automatic backups are disabled.
func (m *Manager) SetConfig(cfg model.BackupConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.schedMu.Lock()
	defer m.schedMu.Unlock()

	m.cfgMu.Lock()
	m.config = cfg
	m.cfgMu.Unlock()

	if m.baseCtx != nil {
		m.stopLocked()
		m.startLocked()
	}
	return nil
}

// Running reports whether the scheduler goroutine is active
func (m *Manager) Running() bool {
	m.schedMu.Lock()
	defer m.schedMu.Unlock()
	return m.cancel != nil
}

func (m *Manager) startLocked() {
	cfg := m.Config()
	if !cfg.AutoBackupEnabled || cfg.BackupFrequency <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(m.baseCtx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done

	go m.run(ctx, cfg.BackupFrequency, done)
	logging.From(ctx).Debug("backup scheduler started", "frequency", cfg.BackupFrequency)
}

func (m *Manager) stopLocked() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
	m.done = nil
}

func (m *Manager) run(ctx context.Context, frequency time.Duration, done chan struct{}) {
	defer close(done)

	warmup := time.NewTimer(m.warmup)
	defer warmup.Stop()

	select {
	case <-ctx.Done():
		return
	case <-warmup.C:
	}
	m.runScheduled(ctx)

	ticker := time.NewTicker(frequency)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runScheduled(ctx)
		}
	}
}

// runScheduled never returns an error; the next tick runs it again. Stopping
// the scheduler does not interrupt a backup already being written.
func (m *Manager) runScheduled(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	logger := logging.From(ctx)

	id, err := m.Backup(ctx)
	if err != nil {
		logger.Error("scheduled backup failed", "error", err)
		return
	}
	logger.Debug("scheduled backup done", "id", id)

	removed, err := m.SweepRetention(ctx)
	if err != nil {
		logger.Error("retention sweep failed", "error", err)
		return
	}
	if removed > 0 {
		logger.Info("retention sweep done", "removed", removed)
	}
}
