package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/m-mizutani/ctxkeep/pkg/adapter"
	"github.com/m-mizutani/ctxkeep/pkg/repository"
	"github.com/m-mizutani/ctxkeep/pkg/usecase/backup"
	"github.com/m-mizutani/ctxkeep/pkg/usecase/capture"
	"github.com/m-mizutani/ctxkeep/pkg/usecase/contexts"
	"github.com/m-mizutani/ctxkeep/pkg/usecase/service"
	"github.com/m-mizutani/ctxkeep/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

const (
	storeFileSystem = "fs"
	storeBadger     = "badger"
	storeFirestore  = "firestore"
)

// config holds configuration values
type config struct {
	logLevel     string
	settingsPath string
	dataDir      string
	seed         bool

	// Context repository
	store             string
	firestoreProject  string
	firestoreDatabase string

	// Backup storage
	backupDir     string
	backupBucket  string
	retentionDays int64

	// Embedding
	geminiProject  string
	geminiLocation string
	geminiAPIKey   string
	embeddingModel string
	embeddingDim   int64
	minScore       float64
	minScoreSet    bool
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("CTXKEEP_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to YAML settings file",
			Sources:     cli.EnvVars("CTXKEEP_CONFIG"),
			Destination: &cfg.settingsPath,
		},
		&cli.StringFlag{
			Name:        "data-dir",
			Aliases:     []string{"d"},
			Usage:       "Directory for contexts, sessions and local backups",
			Value:       defaultDataDir(),
			Sources:     cli.EnvVars("CTXKEEP_DATA_DIR"),
			Destination: &cfg.dataDir,
		},
		&cli.BoolFlag{
			Name:        "seed",
			Usage:       "Write example contexts into an empty store",
			Sources:     cli.EnvVars("CTXKEEP_SEED"),
			Destination: &cfg.seed,
		},
		&cli.StringFlag{
			Name:        "store",
			Usage:       "Context store backend (fs, badger, firestore)",
			Value:       storeFileSystem,
			Sources:     cli.EnvVars("CTXKEEP_STORE"),
			Destination: &cfg.store,
		},
		&cli.StringFlag{
			Name:        "firestore-project",
			Usage:       "Google Cloud project ID for the firestore store",
			Sources:     cli.EnvVars("CTXKEEP_FIRESTORE_PROJECT", "GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.firestoreProject,
		},
		&cli.StringFlag{
			Name:        "firestore-database",
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("CTXKEEP_FIRESTORE_DATABASE"),
			Destination: &cfg.firestoreDatabase,
		},
		&cli.StringFlag{
			Name:        "backup-dir",
			Usage:       "Directory for backups. Defaults to the data directory",
			Sources:     cli.EnvVars("CTXKEEP_BACKUP_DIR"),
			Destination: &cfg.backupDir,
		},
		&cli.StringFlag{
			Name:        "backup-bucket",
			Usage:       "Cloud Storage bucket for backups. Overrides --backup-dir",
			Sources:     cli.EnvVars("CTXKEEP_BACKUP_BUCKET"),
			Destination: &cfg.backupBucket,
		},
		&cli.IntFlag{
			Name:        "retention-days",
			Usage:       "Delete backups older than this many days (overrides settings file)",
			Sources:     cli.EnvVars("CTXKEEP_RETENTION_DAYS"),
			Destination: &cfg.retentionDays,
		},
	}
}

// embeddingFlags returns flags for the embedding provider
func embeddingFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini embeddings",
			Sources:     cli.EnvVars("CTXKEEP_GEMINI_PROJECT", "GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("CTXKEEP_GEMINI_LOCATION", "GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini API key, used when no project is given",
			Sources:     cli.EnvVars("CTXKEEP_GEMINI_API_KEY", "GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Embedding model name",
			Value:       adapter.DefaultEmbeddingModel,
			Sources:     cli.EnvVars("CTXKEEP_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
		&cli.IntFlag{
			Name:        "embedding-dimension",
			Usage:       "Embedding output dimension",
			Value:       adapter.DefaultEmbeddingDimension,
			Sources:     cli.EnvVars("CTXKEEP_EMBEDDING_DIMENSION"),
			Destination: &cfg.embeddingDim,
		},
		&cli.FloatFlag{
			Name:        "min-score",
			Usage:       "Minimum similarity for semantic search (overrides settings file)",
			Sources:     cli.EnvVars("CTXKEEP_MIN_SCORE"),
			Destination: &cfg.minScore,
			Action: func(ctx context.Context, c *cli.Command, v float64) error {
				cfg.minScoreSet = true
				return nil
			},
		},
	}
}

// withGlobal appends global and embedding flags to command specific flags
func withGlobal(cfg *config, flags ...cli.Flag) []cli.Flag {
	flags = append(flags, globalFlags(cfg)...)
	flags = append(flags, embeddingFlags(cfg)...)
	return flags
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ctxkeep"
	}
	return filepath.Join(home, ".ctxkeep")
}

// setupLogger installs a stderr logger with the configured level
func (cfg *config) setupLogger(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// newContextRepository creates the configured context store backend
func (cfg *config) newContextRepository(ctx context.Context) (repository.ContextRepository, error) {
	switch cfg.store {
	case storeFileSystem:
		return repository.NewFileSystem(filepath.Join(cfg.dataDir, "contexts"))

	case storeBadger:
		return repository.NewBadger(filepath.Join(cfg.dataDir, "badger"))

	case storeFirestore:
		if cfg.firestoreProject == "" {
			return nil, goerr.New("firestore-project is required for firestore store")
		}
		return repository.NewFirestore(ctx, cfg.firestoreProject, cfg.firestoreDatabase)

	default:
		return nil, goerr.New("unsupported store",
			goerr.V("store", cfg.store),
			goerr.V("supported", []string{storeFileSystem, storeBadger, storeFirestore}))
	}
}

// newSessionRepository creates the session state file repository
func (cfg *config) newSessionRepository() (repository.SessionRepository, error) {
	return repository.NewSessionFile(filepath.Join(cfg.dataDir, "sessions.json"))
}

// newEmbedder returns nil without error when no provider is configured
func (cfg *config) newEmbedder(ctx context.Context) (adapter.Embedder, error) {
	opts := []adapter.GeminiOption{
		adapter.WithEmbeddingModel(cfg.embeddingModel),
		adapter.WithDimension(int(cfg.embeddingDim)),
	}

	switch {
	case cfg.geminiProject != "":
		if cfg.geminiLocation == "" {
			return nil, goerr.New("gemini-location is required")
		}
		return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)

	case cfg.geminiAPIKey != "":
		return adapter.NewGeminiWithAPIKey(ctx, cfg.geminiAPIKey, opts...)

	default:
		return nil, nil
	}
}

// newBackupStorage creates Cloud Storage when a bucket is given, local otherwise
func (cfg *config) newBackupStorage(ctx context.Context) (adapter.Storage, error) {
	if cfg.backupBucket != "" {
		return adapter.NewStorage(ctx, cfg.backupBucket)
	}

	dir := cfg.backupDir
	if dir == "" {
		dir = cfg.dataDir
	}
	return adapter.NewLocalStorage(dir)
}

// app bundles the constructed services of one command run
type app struct {
	uc      *service.UseCase
	store   *contexts.Store
	backups *backup.Manager
	capture *capture.Service
	repo    repository.ContextRepository
}

func (a *app) Close() {
	if err := a.repo.Close(); err != nil {
		logging.Default().Warn("failed to close context repository", "error", err)
	}
}

// newApp wires repositories, adapters and use cases. Sessions are loaded
// from the session file before returning.
func (cfg *config) newApp(ctx context.Context, captureOpts ...capture.Option) (*app, error) {
	s, err := loadSettings(cfg.settingsPath)
	if err != nil {
		return nil, err
	}
	if cfg.retentionDays > 0 {
		s.Backup.RetentionPeriodDays = int(cfg.retentionDays)
	}
	if cfg.minScoreSet {
		s.Similarity.MinRelevanceScore = cfg.minScore
	}

	repo, err := cfg.newContextRepository(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create context repository")
	}

	embedder, err := cfg.newEmbedder(ctx)
	if err != nil {
		_ = repo.Close()
		return nil, goerr.Wrap(err, "failed to create embedder")
	}

	storeOpts := []contexts.Option{
		contexts.WithSimilarity(s.Similarity),
		contexts.WithSeed(cfg.seed),
	}
	if embedder != nil {
		storeOpts = append(storeOpts, contexts.WithEmbedder(embedder))
	}
	store := contexts.New(repo, storeOpts...)
	if err := store.Init(ctx); err != nil {
		_ = repo.Close()
		return nil, goerr.Wrap(err, "failed to initialize context store")
	}

	storage, err := cfg.newBackupStorage(ctx)
	if err != nil {
		_ = repo.Close()
		return nil, goerr.Wrap(err, "failed to create backup storage")
	}
	backups := backup.New(storage,
		backup.WithSource(store),
		backup.WithConfig(s.Backup),
	)

	sessionRepo, err := cfg.newSessionRepository()
	if err != nil {
		_ = repo.Close()
		return nil, goerr.Wrap(err, "failed to create session repository")
	}
	captureOpts = append([]capture.Option{
		capture.WithConfig(s.Capture),
		capture.WithRepository(sessionRepo),
	}, captureOpts...)
	svc := capture.New(store, captureOpts...)
	if err := svc.Load(ctx); err != nil {
		_ = repo.Close()
		return nil, err
	}

	return &app{
		uc:      service.New(store, backups, svc),
		store:   store,
		backups: backups,
		capture: svc,
		repo:    repo,
	}, nil
}
