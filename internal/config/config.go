package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/fingraph/internal/storage"
	"github.com/OFFIS-RIT/fingraph/internal/util"
	"github.com/OFFIS-RIT/fingraph/pkg/cache"
	"github.com/OFFIS-RIT/fingraph/pkg/graph"
	"github.com/OFFIS-RIT/fingraph/pkg/logger"
	"github.com/OFFIS-RIT/fingraph/pkg/logger/console"
	"github.com/OFFIS-RIT/fingraph/pkg/source"
	pgxsource "github.com/OFFIS-RIT/fingraph/pkg/source/pgx"
	s3source "github.com/OFFIS-RIT/fingraph/pkg/source/s3"
	pgxstore "github.com/OFFIS-RIT/fingraph/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Record source backends.
const (
	SourcePgx = "pgx"
	SourceS3  = "s3"
)

// Config is the process configuration shared by the server, the worker and
// graphctl.
type Config struct {
	DatabaseURL string
	Port        string
	Debug       bool
	LogFormat   string

	MaxRetries int
	RetryDelay time.Duration
	MaxDepth   int
	Reconcile  bool
	LeaseTTL   time.Duration

	RecordSource string
	Bucket       string
	RecordPrefix string

	RedisURL string
	CacheTTL time.Duration
}

// Load reads the configuration from the environment, loading .env first.
func Load() Config {
	util.LoadEnv()
	return FromEnv()
}

// FromEnv reads the configuration without touching .env.
func FromEnv() Config {
	return Config{
		DatabaseURL: util.GetEnv("DATABASE_URL"),
		Port:        util.GetEnvString("PORT", "8080"),
		Debug:       util.GetEnvBool("DEBUG", false),
		LogFormat:   util.GetEnvString("LOG_FORMAT", "text"),

		MaxRetries: int(util.GetEnvNumeric("GRAPH_MAX_RETRIES", 3)),
		RetryDelay: util.GetEnvDuration("GRAPH_RETRY_DELAY", 500*time.Millisecond),
		MaxDepth:   int(util.GetEnvNumeric("GRAPH_MAX_DEPTH", 5)),
		Reconcile:  util.GetEnvBool("GRAPH_RECONCILE", false),
		LeaseTTL:   util.GetEnvDuration("GRAPH_LEASE_TTL", 5*time.Minute),

		RecordSource: strings.ToLower(util.GetEnvString("RECORD_SOURCE", SourcePgx)),
		Bucket:       util.GetEnvString("AWS_BUCKET", "fingraph"),
		RecordPrefix: util.GetEnvString("RECORD_PREFIX", ""),

		RedisURL: util.GetEnv("REDIS_URL"),
		CacheTTL: time.Duration(util.GetEnvNumeric("CACHE_TTL_SECONDS", 300)) * time.Second,
	}
}

// InitLogger installs the console backend.
func (c Config) InitLogger() {
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  c.Debug,
		Format: c.LogFormat,
	}))
}

// OpenRecordSource returns the configured record source. The pgx source
// reads the collector tables through pool.
func (c Config) OpenRecordSource(ctx context.Context, pool *pgxpool.Pool) (source.RecordSource, error) {
	switch c.RecordSource {
	case SourcePgx, "":
		return pgxsource.NewRecordSource(pool), nil
	case SourceS3:
		client, err := storage.NewS3Client(ctx)
		if err != nil {
			return nil, err
		}
		return s3source.NewRecordSource(client, c.Bucket, c.RecordPrefix), nil
	}
	return nil, fmt.Errorf("unknown record source %q", c.RecordSource)
}

// OpenCache connects to Redis when REDIS_URL is set. A nil cache means
// neighborhood queries always hit the store.
func (c Config) OpenCache() (*cache.NeighborhoodCache, error) {
	if c.RedisURL == "" {
		return nil, nil
	}
	return cache.New(cache.Options{URL: c.RedisURL, TTL: c.CacheTTL})
}

// NewGraphClient wires the pgx store, the record source and cache
// invalidation into a GraphClient.
func (c Config) NewGraphClient(pool *pgxpool.Pool, src source.RecordSource, nc *cache.NeighborhoodCache) (*graph.GraphClient, error) {
	return graph.NewGraphClient(graph.NewGraphClientParams{
		Store:      pgxstore.NewGraphDBStorageWithConnection(pool),
		Source:     src,
		MaxRetries: c.MaxRetries,
		RetryDelay: c.RetryDelay,
		Reconcile:  c.Reconcile,
		OnChange:   InvalidateOnChange(nc),
	})
}

// InvalidateOnChange returns a change hook that bumps the cache generation.
// It returns nil when there is no cache.
func InvalidateOnChange(nc *cache.NeighborhoodCache) func(ctx context.Context) {
	if nc == nil {
		return nil
	}
	return func(ctx context.Context) {
		if err := nc.Invalidate(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("[Cache] Invalidation failed", "err", err)
		}
	}
}
