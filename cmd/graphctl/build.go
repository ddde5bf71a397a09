package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/OFFIS-RIT/fingraph/internal/queue"
	"github.com/OFFIS-RIT/fingraph/internal/timing"
	"github.com/OFFIS-RIT/fingraph/pkg/common"
	"github.com/OFFIS-RIT/fingraph/pkg/graph"
	"github.com/OFFIS-RIT/fingraph/pkg/leaselock"

	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the full graph build",
	Long: `Run extraction, edge construction, optional reconciliation and scoring
in one pass and print the build report as JSON.

With --queue the request is handed to the workers instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if useQueue, _ := cmd.Flags().GetBool("queue"); useQueue {
			return queueBuild(cmd)
		}

		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		var report *graph.BuildReport
		err = withLease(cmd, s, func(ctx context.Context) error {
			var buildErr error
			report, buildErr = s.graph.BuildGraph(ctx)
			if _, err := timing.NewBuildHistory(s.pool).RecordBuildRun(context.WithoutCancel(ctx), "", report, buildErr); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}
			return buildErr
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, report)
	},
}

func queueBuild(cmd *cobra.Command) error {
	conn := queue.Init()
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		return err
	}

	id, err := queue.NewBuildPublisher(ch).PublishBuildRequest(cmd.Context(), queue.BuildRequestMsg{Operation: queue.OpBuild})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "build queued: %s\n", id)
	return nil
}

var extractCmd = &cobra.Command{
	Use:       "extract <kind>",
	Short:     "Run one node extractor",
	Args:      cobra.ExactArgs(1),
	ValidArgs: nodeKindArgs(),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := common.ParseNodeKind(args[0])
		if err != nil {
			return err
		}
		return runCount(cmd, func(ctx context.Context, s *session) (int, error) {
			return s.graph.ExtractNodes(ctx, kind)
		})
	},
}

var edgesCmd = &cobra.Command{
	Use:   "edges",
	Short: "Rebuild the edges between existing nodes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCount(cmd, func(ctx context.Context, s *session) (int, error) {
			return s.graph.BuildEdges(ctx)
		})
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Recompute importance scores",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		if err := withLease(cmd, s, s.graph.ScoreAllNodes); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "scores updated")
		return nil
	},
}

var buildsCmd = &cobra.Command{
	Use:   "builds",
	Short: "List recent build runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := timing.NewBuildHistory(s.pool).ListBuildRuns(cmd.Context(), limit)
		if err != nil {
			return err
		}
		return printJSON(cmd, runs)
	},
}

func runCount(cmd *cobra.Command, fn func(ctx context.Context, s *session) (int, error)) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	var count int
	err = withLease(cmd, s, func(ctx context.Context) error {
		var err error
		count, err = fn(ctx, s)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d\n", count)
	return nil
}

// withLease runs fn under the build lease, waiting for a running build when
// --wait is set.
func withLease(cmd *cobra.Command, s *session, fn func(ctx context.Context) error) error {
	wait, _ := cmd.Flags().GetBool("wait")
	return leaselock.New(s.pool).WithLease(cmd.Context(), leaselock.BuildKey, leaselock.Options{TTL: cfg.LeaseTTL, Wait: wait}, fn)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	buildCmd.Flags().Bool("queue", false, "Publish a build request instead of building locally")
	buildsCmd.Flags().Int("limit", 20, "Number of runs to list")
	for _, c := range []*cobra.Command{buildCmd, extractCmd, edgesCmd, scoreCmd} {
		c.Flags().Bool("wait", false, "Wait for a running build instead of failing")
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(buildsCmd)
}

// nodeKindArgs lists the kinds accepted by extract, including the "entity"
// shorthand.
func nodeKindArgs() []string {
	args := make([]string, 0, len(common.NodeKinds)+1)
	for _, k := range common.NodeKinds {
		args = append(args, string(k))
	}
	return append(args, "entity")
}
