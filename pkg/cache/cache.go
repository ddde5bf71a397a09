package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/fingraph/pkg/common"
	"github.com/OFFIS-RIT/fingraph/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	generationKey = "kg:generation"
	keyPrefix     = "kg:nbr"
)

// Options configures the Redis connection of a NeighborhoodCache.
type Options struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// TTL bounds the lifetime of a cached neighborhood. Defaults to 5 minutes.
	TTL time.Duration

	ConnectTimeout time.Duration
}

// NeighborhoodCache stores neighborhood query results in Redis.
//
// Entries are namespaced by a generation counter. Invalidate bumps the
// counter, so entries written before a graph change are never read again and
// simply expire.
type NeighborhoodCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and returns a NeighborhoodCache.
func New(opts Options) (*NeighborhoodCache, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisOpts.DialTimeout = opts.ConnectTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &NeighborhoodCache{client: client, ttl: opts.TTL}, nil
}

func (c *NeighborhoodCache) Close() error {
	return c.client.Close()
}

func (c *NeighborhoodCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cache generation: %w", err)
	}
	return gen, nil
}

func entryKey(gen, nodeID int64, depth int) string {
	return fmt.Sprintf("%s:%d:%d:%d", keyPrefix, gen, nodeID, depth)
}

// Get returns the cached neighborhood of nodeID at depth, if present.
func (c *NeighborhoodCache) Get(ctx context.Context, nodeID int64, depth int) (*common.Subgraph, bool, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return nil, false, err
	}
	data, err := c.client.Get(ctx, entryKey(gen, nodeID, depth)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached neighborhood: %w", err)
	}

	var sg common.Subgraph
	if err := json.Unmarshal(data, &sg); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached neighborhood: %w", err)
	}
	return &sg, true, nil
}

// Set stores sg as the neighborhood of nodeID at depth in the current
// generation.
func (c *NeighborhoodCache) Set(ctx context.Context, nodeID int64, depth int, sg *common.Subgraph) error {
	gen, err := c.generation(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(sg)
	if err != nil {
		return fmt.Errorf("failed to encode neighborhood: %w", err)
	}
	if err := c.client.Set(ctx, entryKey(gen, nodeID, depth), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache neighborhood: %w", err)
	}
	return nil
}

// Invalidate drops every cached neighborhood by moving to a new generation.
func (c *NeighborhoodCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("failed to bump cache generation: %w", err)
	}
	return nil
}

// Neighborhood returns the cached result or calls load and caches what it
// returns. Cache failures are logged and never fail the request.
func (c *NeighborhoodCache) Neighborhood(
	ctx context.Context,
	nodeID int64,
	depth int,
	load func(ctx context.Context) (*common.Subgraph, error),
) (*common.Subgraph, error) {
	sg, ok, err := c.Get(ctx, nodeID, depth)
	if err != nil {
		logger.Warn("[Cache] Read failed", "node_id", nodeID, "depth", depth, "err", err)
	}
	if ok {
		return sg, nil
	}

	sg, err = load(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.Set(ctx, nodeID, depth, sg); err != nil {
		logger.Warn("[Cache] Write failed", "node_id", nodeID, "depth", depth, "err", err)
	}
	return sg, nil
}
