package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/ai"
	"github.com/spigell/jobmatch/internal/ai/gemini"
	"github.com/spigell/jobmatch/internal/db"
	"github.com/spigell/jobmatch/internal/enrichment"
	"github.com/spigell/jobmatch/internal/filtering"
	"github.com/spigell/jobmatch/internal/heuristics"
	"github.com/spigell/jobmatch/internal/logger"
	"github.com/spigell/jobmatch/internal/matching"
	"github.com/spigell/jobmatch/internal/secrets"
	"github.com/spigell/jobmatch/internal/service"
	"github.com/spigell/jobmatch/internal/store"
)

// runtime bundles what every command needs. close releases pools and clients.
type runtime struct {
	config  *Config
	logger  *zap.Logger
	service *service.Service
	closers []func()
}

func (r *runtime) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	_ = r.logger.Sync()
}

type storeBackend interface {
	store.Store
	store.ProfileSource
}

// setup loads the config and wires the service. Commands printing results on
// stdout keep logs on stderr.
func setup(ctx context.Context, logsToStderr bool) *runtime {
	opts := logger.Options{JSON: viper.GetBool("json"), Debug: viper.GetBool("debug")}
	if logsToStderr {
		opts.Output = "stderr"
	}
	logger, err := logger.New(opts)
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		logger.Fatal("config is required")
	}

	logger.Info("starting the jobmatch", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	rt := &runtime{config: config, logger: logger}

	backend, err := newStore(ctx, config.Store, rt)
	if err != nil {
		logger.Fatal("opening the job store", zap.Error(err), zap.String("driver", config.Store.Driver))
	}

	tables, err := heuristics.Load(config.TablesFile)
	if err != nil {
		logger.Fatal("loading heuristic tables", zap.Error(err))
	}
	logger.Debug("heuristic tables loaded",
		zap.Strings("role_buckets", tables.RoleNames()),
		zap.Strings("preference_buckets", tables.PreferenceNames()),
	)
	scorer := matching.NewScorer(tables)

	// Left nil when ai is disabled.
	var (
		enricher    ai.Enricher
		jobEnricher ai.JobEnricher
	)
	if gem, err := newEnricher(ctx, config.AI, logger); err != nil {
		logger.Warn("ai enrichment disabled", zap.Error(err))
	} else {
		enricher, jobEnricher = gem, gem
	}

	locker, err := newLocker(ctx, config.RedisURL, config.Enrichment, rt)
	if err != nil {
		logger.Fatal("connecting to redis", zap.Error(err))
	}

	runner := enrichment.NewRunner(enrichment.RunnerDeps{
		Selector:    enrichment.NewSelector(scorer),
		Enricher:    enricher,
		JobEnricher: jobEnricher,
		Writer:      backend,
		Locker:      locker,
		Logger:      logger,
	}, config.Enrichment.Delay)

	svc, err := service.New(service.Config{
		Filters: filtering.Config{
			Sources:           config.Filters.Sources,
			ExcludedCompanies: config.Filters.ExcludeCompanies,
			ExcludeFile:       config.Filters.ExcludeFile,
			DeriveSkills:      config.Filters.DeriveSkills,
		},
		PageSize: config.Store.PageSize,
		TopK:     config.Enrichment.TopK,
		JobLimit: config.Enrichment.JobLimit,
		Version:  config.Enrichment.Version,
	}, service.Deps{
		Jobs:     backend,
		Profiles: backend,
		Scorer:   scorer,
		Runner:   runner,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("creating the service", zap.Error(err))
	}
	rt.service = svc

	return rt
}

func newStore(ctx context.Context, cfg StoreConfig, rt *runtime) (storeBackend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "file":
		return store.NewFile(cfg.File)
	case "postgres":
		url, err := secrets.Load(secrets.Source{
			Name:  "database url",
			Value: cfg.DatabaseURL,
			File:  cfg.DatabaseURLFile,
			Env:   "DATABASE_URL",
		})
		if err != nil {
			return nil, err
		}
		pool, err := db.NewPostgresPool(ctx, url, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
		rt.logger.Info("postgres connected", zap.Int32("max_conns", pool.Config().MaxConns))

		return store.NewPostgres(pool, store.PostgresOptions{
			JobsTable:     cfg.JobsTable,
			ProfilesTable: cfg.ProfilesTable,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

func newEnricher(ctx context.Context, cfg *AIConfig, log *zap.Logger) (*gemini.Enricher, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, fmt.Errorf("ai.enabled is false")
	}
	if cfg.Gemini == nil {
		cfg.Gemini = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	genLogger := log.With(zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries))
	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	return gemini.NewEnricher(generator, cfg.Gemini.MaxLogLength, log), nil
}

func newLocker(ctx context.Context, redisURL string, cfg EnrichmentConfig, rt *runtime) (enrichment.Locker, error) {
	url, err := secrets.Optional(secrets.Source{Name: "redis url", Value: redisURL, Env: "REDIS_URL"})
	if err != nil {
		return nil, err
	}
	if url == "" {
		rt.logger.Debug("redis is not configured, enrichment runs without locks")
		return enrichment.NoopLocker{}, nil
	}

	client, err := db.NewRedisClient(ctx, url)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, func() { _ = client.Close() })
	rt.logger.Info("redis connected", zap.Duration("lock_ttl", cfg.LockTTL))

	return enrichment.NewRedisLocker(client, cfg.LockTTL), nil
}

// redacted hides secrets before the config is logged.
func redacted(c *Config) Config {
	out := *c
	if out.Store.DatabaseURL != "" {
		out.Store.DatabaseURL = "***"
	}
	if out.RedisURL != "" {
		out.RedisURL = "***"
	}
	if c.AI != nil && c.AI.Gemini != nil && c.AI.Gemini.APIKey != "" {
		aiCfg := *c.AI
		gem := *c.AI.Gemini
		gem.APIKey = "***"
		aiCfg.Gemini = &gem
		out.AI = &aiCfg
	}
	return out
}
