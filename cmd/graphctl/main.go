package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/fingraph/internal/config"
	"github.com/OFFIS-RIT/fingraph/pkg/cache"
	"github.com/OFFIS-RIT/fingraph/pkg/graph"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "graphctl",
	Short: "Operate the financial knowledge graph",
	Long: `graphctl runs the graph pipeline stages and queries against the
configured database without going through the HTTP API.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		cfg.InitLogger()
	},
}

// session holds the connections a command needs.
type session struct {
	pool  *pgxpool.Pool
	cache *cache.NeighborhoodCache
	graph *graph.GraphClient
}

func (s *session) Close() {
	if s.cache != nil {
		_ = s.cache.Close()
	}
	s.pool.Close()
}

func openSession(ctx context.Context) (*session, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	s := &session{pool: pool}

	src, err := cfg.OpenRecordSource(ctx, pool)
	if err != nil {
		s.Close()
		return nil, err
	}
	if s.cache, err = cfg.OpenCache(); err != nil {
		s.cache = nil
		fmt.Fprintf(os.Stderr, "warning: cache invalidation disabled: %v\n", err)
	}
	if s.graph, err = cfg.NewGraphClient(pool, src, s.cache); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
