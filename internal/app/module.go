// Package app wires the export pipeline into an fx application: one
// provider per subsystem, plus a lifecycle hook that runs the
// requested command and shuts the app down with its exit code.
package app

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/weflow/wxport/internal/config"
	"github.com/weflow/wxport/internal/export"
	"github.com/weflow/wxport/internal/lock"
	"github.com/weflow/wxport/internal/logging"
	"github.com/weflow/wxport/internal/progress"
	"github.com/weflow/wxport/internal/store"
)

// cacheDBName is the cache database file under the cache dir.
const cacheDBName = "wxport.db"

// Params holds the resolved CLI invocation passed to the fx module.
type Params struct {
	// ConfigPath overrides the default config location; empty means
	// ~/.wxport/config.toml.
	ConfigPath string
	Request    Request
}

// Request is one CLI command to execute.
type Request struct {
	// Command is one of export, stats, or runs.
	Command  string
	Sessions []string
	// OutDir receives batch exports; empty falls back to the
	// configured default.
	OutDir string
	// OutputFile forces a single-session export to an exact path.
	OutputFile string
	Options    export.Options
	JSON       bool
	RunsLimit  int
}

// Module returns the fx module for the CLI, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("app",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBroker,
			provideLock,
			provideCache,
			provideChatDB,
			provideExporter,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return config.Load(path)
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.LogPath, uuid.NewString())
}

func provideBroker() *progress.Broker {
	return progress.New()
}

func provideLock(cfg *config.Config, logger *zap.Logger) (*lock.Lock, error) {
	if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
		return nil, err
	}
	l, err := lock.Acquire(cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	logger.Info("cache lock acquired", zap.String("dir", cfg.CacheDir))
	return l, nil
}

// provideCache opens the app-owned cache database. The lock dependency
// orders it after lock acquisition.
func provideCache(cfg *config.Config, _ *lock.Lock, logger *zap.Logger) (*store.CacheDB, error) {
	dbPath := filepath.Join(cfg.CacheDir, cacheDBName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("cache initialized", zap.String("path", dbPath))
	return db, nil
}

func provideChatDB(cfg *config.Config, logger *zap.Logger) (*store.ChatDB, error) {
	db, err := store.OpenChat(cfg.StorePath)
	if err != nil {
		return nil, err
	}
	logger.Info("chat store opened", zap.String("path", cfg.StorePath))
	return db, nil
}

// chatStore adapts *store.ChatDB to the exporter's MessageStore; the
// concrete OpenCursor return type needs the interface wrap.
type chatStore struct {
	*store.ChatDB
}

func (s chatStore) OpenCursor(session string, batchSize int, asc bool, start, end int64) export.Cursor {
	return s.ChatDB.OpenCursor(session, batchSize, asc, start, end)
}

func provideExporter(cfg *config.Config, chat *store.ChatDB, cache *store.CacheDB, broker *progress.Broker, logger *zap.Logger) *export.Exporter {
	return export.New(export.Params{
		Config:   cfg,
		Store:    chatStore{chat},
		Contacts: chat,
		Cache:    cache,
		Broker:   broker,
		Logger:   logger,
	})
}

func registerLifecycle(lc fx.Lifecycle, shutdowner fx.Shutdowner, p Params, cfg *config.Config, exp *export.Exporter, cache *store.CacheDB, chat *store.ChatDB, lk *lock.Lock, broker *progress.Broker, logger *zap.Logger) {
	runCtx, cancel := context.WithCancel(context.Background())
	r := &runner{
		req:      p.Request,
		cfg:      cfg,
		exporter: exp,
		cache:    cache,
		broker:   broker,
		log:      logger,
	}

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				code := r.run(runCtx)
				_ = shutdowner.Shutdown(fx.ExitCode(code))
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			cancel()
			if err := chat.Close(); err != nil {
				logger.Warn("close chat store", zap.Error(err))
			}
			if err := cache.Close(); err != nil {
				logger.Warn("close cache db", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("release cache lock", zap.Error(err))
			}
			_ = logger.Sync()
			return nil
		},
	})
}
