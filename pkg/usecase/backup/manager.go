package backup

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/ctxkeep/pkg/adapter"
	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/ctxkeep/pkg/utils/clock"
	"github.com/m-mizutani/goerr/v2"
)

const (
	backupPrefix        = "backups/"
	backupFilePrefix    = "backup-"
	backupFileExtension = ".json"

	// maxNameAttempts bounds the sequence suffixes tried for one millisecond
	maxNameAttempts = 1000

	// DefaultWarmup is the delay between enabling the scheduler and its first backup
	DefaultWarmup = 5 * time.Second
)

// ContextSource provides the contexts a scheduled backup snapshots
type ContextSource interface {
	GetAll(ctx context.Context) []*model.Context
}

// Manager writes, lists, restores and expires backups in a Storage. It
// never mutates contexts itself.
type Manager struct {
	storage adapter.Storage
	source  ContextSource
	version string
	now     clock.Func
	warmup  time.Duration

	// createMu serializes name allocation so two backups never share a key
	createMu sync.Mutex

	cfgMu  sync.RWMutex
	config model.BackupConfig

	schedMu sync.Mutex
	baseCtx context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option is a functional option for Manager
type Option func(*Manager)

func WithSource(source ContextSource) Option {
	return func(m *Manager) {
		m.source = source
	}
}

// WithVersion overrides the format version written and accepted
func WithVersion(version string) Option {
	return func(m *Manager) {
		m.version = version
	}
}

func WithClock(now clock.Func) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func WithWarmup(d time.Duration) Option {
	return func(m *Manager) {
		m.warmup = d
	}
}

func WithConfig(cfg model.BackupConfig) Option {
	return func(m *Manager) {
		m.config = cfg
	}
}

// New creates a backup Manager. The scheduler does not run until Start.
func New(storage adapter.Storage, opts ...Option) *Manager {
	m := &Manager{
		storage: storage,
		version: model.BackupFormatVersion,
		warmup:  DefaultWarmup,
		config:  model.DefaultBackupConfig(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Config returns the current backup configuration
func (m *Manager) Config() model.BackupConfig {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return m.config
}

func backupKey(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return "", goerr.Wrap(model.ErrValidation, "invalid backup id", goerr.V("id", id))
	}
	return backupPrefix + id, nil
}

func isBackupFile(name string) bool {
	return strings.HasPrefix(name, backupFilePrefix) && strings.HasSuffix(name, backupFileExtension)
}
