package graph

import (
	"context"
	"fmt"
	"math"

	"github.com/OFFIS-RIT/fingraph/pkg/common"
	"github.com/OFFIS-RIT/fingraph/pkg/logger"
)

// ImportanceScore combines degree and average incident strength into a
// [0, 100] centrality proxy: (connections*5 + avgStrength*100) / 2.
func ImportanceScore(connectionCount int, avgStrength float64) float64 {
	score := (float64(connectionCount)*5 + avgStrength*100) / 2
	if math.IsNaN(score) {
		return 0
	}
	return math.Max(0, math.Min(100, score))
}

type nodeDegree struct {
	connections int
	incident    int
	strengthSum float64
}

// degrees computes, per node id, in+out degree and the strength sum over the
// distinct incident edges. A self loop counts twice towards the degree but
// once towards the average.
func degrees(edges []common.Edge) map[int64]*nodeDegree {
	out := make(map[int64]*nodeDegree)
	get := func(id int64) *nodeDegree {
		d, ok := out[id]
		if !ok {
			d = &nodeDegree{}
			out[id] = d
		}
		return d
	}
	for _, e := range edges {
		src := get(e.SourceNodeID)
		src.connections++
		src.incident++
		src.strengthSum += e.Strength

		tgt := get(e.TargetNodeID)
		tgt.connections++
		if e.TargetNodeID != e.SourceNodeID {
			tgt.incident++
			tgt.strengthSum += e.Strength
		}
	}
	return out
}

// ScoreAllNodes recomputes connection_count and importance_score for every
// node from the current edge set. A failed write for one node is logged and
// skipped; failing to read the graph is returned.
func (g *GraphClient) ScoreAllNodes(ctx context.Context) error {
	n, err := g.scoreAll(ctx, nil)
	if n > 0 {
		g.notifyChange(ctx)
	}
	return err
}

func (g *GraphClient) scoreAll(ctx context.Context, run *buildRun) (int, error) {
	nodes, err := g.store.ListNodes(ctx, common.NodeFilter{})
	if err != nil {
		return 0, fmt.Errorf("failed to list nodes: %w", err)
	}
	edges, err := g.store.ListEdges(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list edges: %w", err)
	}

	degs := degrees(edges)
	scored := 0
	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			return scored, err
		}

		connections := 0
		avg := 0.0
		if d, ok := degs[node.ID]; ok {
			connections = d.connections
			if d.incident > 0 {
				avg = d.strengthSum / float64(d.incident)
			}
		}
		score := ImportanceScore(connections, avg)

		if err := g.store.UpdateNodeScore(ctx, node.ID, connections, score); err != nil {
			logger.Warn("[Graph][Score] Failed to update node score", "node_id", node.ID, "err", err)
			if run != nil {
				run.fail(StageScore, fmt.Sprintf("%d", node.ID), fmt.Errorf("failed to update score: %w", err))
			}
			continue
		}
		scored++
	}

	logger.Info("[Graph][Score] Nodes scored", "count", scored, "nodes", len(nodes), "edges", len(edges))
	return scored, nil
}
