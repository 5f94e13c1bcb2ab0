// Package bootstrap wires configuration, storage backends, and the
// ingestion pipeline into runnable applications.
package bootstrap

import (
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/gocatalog/internal/archive"
	"github.com/jonesrussell/gocatalog/internal/cache"
	"github.com/jonesrussell/gocatalog/internal/config"
	"github.com/jonesrussell/gocatalog/internal/database"
	"github.com/jonesrussell/gocatalog/internal/fetcher"
	"github.com/jonesrussell/gocatalog/internal/ingest"
	"github.com/jonesrussell/gocatalog/internal/logger"
	"github.com/jonesrussell/gocatalog/internal/metrics"
	"github.com/jonesrussell/gocatalog/internal/validator"
)

// App holds the wired components shared by every command.
type App struct {
	Config  *config.Config
	Log     logger.Logger
	DB      *sqlx.DB
	Redis   *redis.Client
	Minio   *minio.Client
	Metrics *metrics.Metrics

	Sources  *database.SourceRepository
	Products *database.ProductRepository
	Reviews  *database.ReviewRepository
	Archive  *archive.Store
	Runner   *ingest.Runner
}

// New loads configuration and wires the full pipeline.
func New(configPath, version string) (*App, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	log, err := CreateLogger(cfg, version)
	if err != nil {
		return nil, err
	}

	db, err := SetupDatabase(cfg, log)
	if err != nil {
		return nil, err
	}

	redisClient, err := SetupRedis(cfg, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	minioClient, err := SetupMinio(cfg, log)
	if err != nil {
		_ = redisClient.Close()
		_ = db.Close()
		return nil, err
	}

	m := metrics.New()

	sources := database.NewSourceRepository(db)
	products := database.NewProductRepository(db)
	reviews := database.NewReviewRepository(db)

	archiveStore := archive.NewStore(minioClient, cfg.Minio.Bucket, log)
	cacheStore := cache.NewRedisStore(redisClient)

	pool := fetcher.NewPool(
		&http.Client{Timeout: cfg.Fetcher.RequestTimeout},
		cacheStore,
		m,
		log,
		cfg.Fetcher,
	)

	runner := ingest.NewRunner(
		pool,
		archiveStore,
		validator.New(),
		products,
		reviews,
		sources,
		ingest.NewBuilder(cfg.Collector.CollectedBy),
		m,
		log,
	)

	return &App{
		Config:   cfg,
		Log:      log,
		DB:       db,
		Redis:    redisClient,
		Minio:    minioClient,
		Metrics:  m,
		Sources:  sources,
		Products: products,
		Reviews:  reviews,
		Archive:  archiveStore,
		Runner:   runner,
	}, nil
}

// Close releases all backend connections.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Log.Error("failed to close redis client", logger.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Log.Error("failed to close database", logger.Error(err))
		}
	}
	_ = a.Log.Sync()
}
