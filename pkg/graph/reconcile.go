package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/fingraph/pkg/logger"
)

// Reconcile removes every edge and node that was not written by the build run
// runID. Edges are swept first; removing a node also removes the edges that
// still reference it.
//
// Only call this after a run that saw every record set: a node missing from
// the run because its source was down would otherwise be deleted.
func (g *GraphClient) Reconcile(ctx context.Context, runID string) (int, int, error) {
	if runID == "" {
		return 0, 0, errors.New("run id is empty")
	}

	edges, err := g.store.SweepEdges(ctx, runID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sweep edges: %w", err)
	}
	nodes, err := g.store.SweepNodes(ctx, runID)
	if err != nil {
		return 0, edges, fmt.Errorf("failed to sweep nodes: %w", err)
	}

	logger.Info("[Graph][Reconcile] Stale records removed", "run_id", runID, "nodes", nodes, "edges", edges)
	if nodes > 0 || edges > 0 {
		g.notifyChange(ctx)
	}
	return nodes, edges, nil
}
