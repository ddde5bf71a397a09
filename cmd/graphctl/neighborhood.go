package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/OFFIS-RIT/fingraph/pkg/common"

	"github.com/spf13/cobra"
)

var neighborhoodCmd = &cobra.Command{
	Use:   "neighborhood <node-id>",
	Short: "Print the bounded neighborhood of a node",
	Long: `Print the nodes and edges around a node as JSON.

A depth below zero returns only the node; depth 0 adds its edges and
direct neighbours. Depth is capped at GRAPH_MAX_DEPTH.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid node id %q", args[0])
		}
		depth, _ := cmd.Flags().GetInt("depth")
		if cfg.MaxDepth > 0 && depth > cfg.MaxDepth {
			depth = cfg.MaxDepth
		}

		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		load := func(ctx context.Context) (*common.Subgraph, error) {
			return s.graph.GetNeighborhood(ctx, id, depth)
		}
		var sg *common.Subgraph
		if s.cache != nil {
			sg, err = s.cache.Neighborhood(ctx, id, depth, load)
		} else {
			sg, err = load(ctx)
		}
		if err != nil {
			return err
		}
		return printJSON(cmd, sg)
	},
}

func init() {
	neighborhoodCmd.Flags().IntP("depth", "d", 1, "Traversal depth")
	rootCmd.AddCommand(neighborhoodCmd)
}
