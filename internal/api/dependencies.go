package api

import (
	"sync"

	"github.com/jmoiron/sqlx"
	"golang.org/x/time/rate"

	"okasion-watch/collector/internal/common"
	"okasion-watch/collector/internal/config"
	"okasion-watch/collector/internal/db"
	"okasion-watch/collector/internal/db/repositories"
	"okasion-watch/collector/internal/fetcher"
	"okasion-watch/collector/internal/logging"
	"okasion-watch/collector/internal/metrics"
	"okasion-watch/collector/internal/pipeline"
	"okasion-watch/collector/internal/providers"
)

type Repositories struct {
	Vehicles *repositories.VehicleRepo
	Index    *repositories.ModelIndexRepo
	Stats    *repositories.IngestionStatsRepo
}

type Services struct {
	Cache    common.CacheInterface
	Fetcher  *fetcher.Fetcher
	Adapter  providers.SourceAdapter
	Pipeline *pipeline.Pipeline
}

type Dependencies struct {
	Cfg      *config.Config
	Metrics  *metrics.MetricsRegistry
	SQLX     *sqlx.DB
	Repo     *Repositories
	Services *Services
}

// Handlers carries the dependency container into the HTTP handlers.
type Handlers struct {
	deps       *Dependencies
	ingestBusy sync.Mutex
}

func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{deps: deps}
}

// InitDependencies wires the whole service: database handles, repositories,
// cache, fetcher, source adapter and the ingestion pipeline.
func InitDependencies(cfg *config.Config, registry *metrics.MetricsRegistry) (*Dependencies, error) {
	sqlxDB, err := db.ConnectSQLX(cfg.PostgresDSN())
	if err != nil {
		return nil, err
	}

	ormDB, err := db.ConnectORM(cfg.PostgresDSN())
	if err != nil {
		return nil, err
	}

	repos := &Repositories{
		Vehicles: repositories.NewVehicleRepo(ormDB),
		Index:    repositories.NewModelIndexRepo(ormDB),
		Stats:    repositories.NewIngestionStatsRepo(sqlxDB),
	}

	var cache common.CacheInterface
	if cfg.RedisEnabled() {
		redisCache, err := common.NewRedisCacheService(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
		if err != nil {
			logging.Warn("Redis unavailable, falling back to in-memory cache", "error", err)
			cache = common.NewCacheService(60, 600)
		} else {
			cache = redisCache
		}
	} else {
		cache = common.NewCacheService(60, 600)
	}

	f := fetcher.New(fetcher.Config{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.RetryDelay,
		Timeout:    cfg.FetchTimeout,
		// Keep upstream traffic polite: at most one request per second
		// across every adapter call, small bursts allowed.
		Limiter:  rate.NewLimiter(rate.Limit(1), 2),
		Registry: registry,
	})

	adapter, err := providers.ForConfig(cfg, f)
	if err != nil {
		return nil, err
	}

	pipe := pipeline.New(cfg, adapter, repos.Vehicles, repos.Index, repos.Stats, cache, registry)

	return &Dependencies{
		Cfg:     cfg,
		Metrics: registry,
		SQLX:    sqlxDB,
		Repo:    repos,
		Services: &Services{
			Cache:    cache,
			Fetcher:  f,
			Adapter:  adapter,
			Pipeline: pipe,
		},
	}, nil
}

// Close releases the long-lived resources held by the container.
func (d *Dependencies) Close() {
	if d.Services.Cache != nil {
		_ = d.Services.Cache.Close()
	}
	if d.SQLX != nil {
		_ = d.SQLX.Close()
	}
}
