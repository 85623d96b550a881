package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/adapters/redis"
	"github.com/aretw0/parley/pkg/adapters/sqlstore"
	"github.com/aretw0/parley/pkg/cache"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/loader"
	"github.com/aretw0/parley/pkg/observability"
	"github.com/aretw0/parley/pkg/persistence/middleware"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// lockPrefix namespaces the per-session locks next to the session keys.
const lockPrefix = "parley:lock:"

// app is the engine plus the resources it was built from.
type app struct {
	engine   *parley.Engine
	registry *prometheus.Registry
	redactor *middleware.Redactor
	closers  []func() error
}

// newApp wires stores, metrics and the engine from cfg.
// With metrics, the engine reports to a fresh registry exposed as app.registry.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, metrics bool) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	scenarios, err := a.openScenarioStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	opts := []parley.Option{
		parley.WithLogger(logger),
		parley.WithScenarioStore(scenarios),
		parley.WithMenuStep(cfg.MenuStep),
		parley.WithHelpStep(cfg.HelpStep),
		parley.WithFallbackStartStep(cfg.FallbackStartStep),
		parley.WithDefaultScenario(cfg.DefaultScenario),
	}
	if cfg.CacheSize == 0 {
		opts = append(opts, parley.WithoutCache())
	} else {
		opts = append(opts, parley.WithCache(
			cache.WithMaxEntries(cfg.CacheSize),
			cache.WithExpireAfterWrite(cfg.CacheTTL),
			cache.WithExpireAfterAccess(cfg.CacheIdle),
		))
	}

	var contexts ports.ContextStore
	if cfg.RedisAddr != "" {
		store, err := a.openRedis(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		contexts = store
		opts = append(opts, parley.WithLocker(redis.NewLocker(store.Client(), lockPrefix)))
	}
	if cfg.EncryptionKey != "" {
		seal, err := encryptionMiddleware(cfg)
		if err != nil {
			return nil, err
		}
		if contexts == nil {
			contexts = memory.NewStore()
		}
		contexts = seal(contexts)
		logger.Info("Conversation contexts are encrypted at rest", "old_keys", len(cfg.EncryptionOldKeys))
	}
	if contexts != nil {
		opts = append(opts, parley.WithContextStore(contexts))
	}

	a.redactor, err = middleware.NewRedactor(cfg.RedactVariables...)
	if err != nil {
		return nil, err
	}

	var m *observability.Metrics
	if metrics {
		m = observability.NewMetrics()
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		if err := m.Register(a.registry); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		opts = append(opts, parley.WithLifecycleHooks(m.Hooks()))
	}

	a.engine, err = parley.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}
	if a.registry != nil {
		a.registry.MustRegister(observability.NewCacheCollector(a.engine.CacheStats))
	}
	return a, nil
}

func (a *app) openScenarioStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (ports.ScenarioStore, error) {
	var store ports.ScenarioStore
	if cfg.DBDSN != "" {
		db, err := sqlstore.Open(
			sqlstore.WithDSN(cfg.DBDSN),
			sqlstore.WithDriver(cfg.DBDriver),
			sqlstore.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		store = db
		logger.Info("Using SQL scenario store", "driver", db.Driver())
	} else {
		store = memory.NewScenarioStore()
		logger.Info("Using in-memory scenario store")
	}

	if cfg.Scenarios != "" {
		file, err := loader.ReadFile(cfg.Scenarios)
		if err != nil {
			return nil, err
		}
		if err := seed(ctx, store, file, logger); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// seed writes the scenarios of file that the store does not hold yet.
// Scenarios without an explicit id are always written.
func seed(ctx context.Context, store ports.ScenarioStore, file *loader.File, logger *slog.Logger) error {
	pending := &loader.File{}
	for _, def := range file.Scenarios {
		if def.ID != 0 {
			_, err := store.GetScenario(ctx, def.ID)
			if err == nil {
				logger.Debug("Scenario already present, not seeding", "scenario_id", def.ID)
				continue
			}
			if !errors.Is(err, domain.ErrScenarioNotFound) {
				return fmt.Errorf("failed to look up scenario %d: %w", def.ID, err)
			}
		}
		pending.Scenarios = append(pending.Scenarios, def)
	}
	if err := loader.Seed(ctx, store, pending); err != nil {
		return err
	}
	logger.Info("Scenarios seeded", "count", len(pending.Scenarios), "skipped", len(file.Scenarios)-len(pending.Scenarios))
	return nil
}

func (a *app) openRedis(ctx context.Context, cfg config.Config, logger *slog.Logger) (*redis.Store, error) {
	store := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, redis.WithTTL(cfg.SessionTTL))
	a.closers = append(a.closers, store.Close)
	if err := store.Client().Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
	}
	logger.Info("Using Redis context store", "addr", cfg.RedisAddr, "db", cfg.RedisDB, "ttl", cfg.SessionTTL)
	return store, nil
}

func encryptionMiddleware(cfg config.Config) (middleware.Middleware, error) {
	active, err := middleware.ParseKey(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", config.EnvEncryptionKey, err)
	}
	enc := middleware.EncryptionConfig{ActiveKey: active}
	for i, encoded := range cfg.EncryptionOldKeys {
		key, err := middleware.ParseKey(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid %s entry %d: %w", config.EnvEncryptionOldKeys, i, err)
		}
		enc.FallbackKeys = append(enc.FallbackKeys, key)
	}
	return middleware.NewEncryptionMiddleware(enc)
}

// Close releases stores in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
