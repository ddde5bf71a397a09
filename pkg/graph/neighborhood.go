package graph

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/OFFIS-RIT/fingraph/pkg/common"

	"golang.org/x/sync/errgroup"
)

// ErrNodeNotFound is returned when the start node of a neighborhood query
// does not exist.
var ErrNodeNotFound = errors.New("node not found")

// GetNeighborhood collects the sub-graph around startID, following edges in
// both directions.
//
// depth counts the hops that may still be expanded after the current node: a
// node reached with remaining depth r is included, and expanded only when
// r >= 0, its neighbors being visited with r-1. So depth < 0 returns just the
// start node, depth 0 returns the start node, its incident edges and their
// far endpoints, and depth d reaches nodes up to d+1 hops away.
//
// The traversal is breadth first with one batched node read and one batched
// edge read per level, so every node is expanded with the largest remaining
// depth it can have. Any read failure aborts the query.
func (g *GraphClient) GetNeighborhood(ctx context.Context, startID int64, depth int) (*common.Subgraph, error) {
	result := &common.Subgraph{
		Nodes: []common.Node{},
		Edges: []common.Edge{},
	}
	visitedNodes := map[int64]struct{}{startID: {}}
	visitedEdges := make(map[int64]struct{})

	frontier := []int64{startID}
	remaining := depth
	for level := 0; len(frontier) > 0; level++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		expand := remaining >= 0
		nodes, edges, err := g.fetchLevel(ctx, frontier, expand)
		if err != nil {
			return nil, err
		}
		if len(nodes) != len(frontier) {
			if level == 0 {
				return nil, ErrNodeNotFound
			}
			return nil, fmt.Errorf("failed to load neighborhood: %d of %d nodes at level %d are missing", len(frontier)-len(nodes), len(frontier), level)
		}
		result.Nodes = append(result.Nodes, nodes...)

		if !expand {
			break
		}

		inFrontier := make(map[int64]struct{}, len(frontier))
		for _, id := range frontier {
			inFrontier[id] = struct{}{}
		}

		next := make([]int64, 0)
		visit := func(id int64) {
			if _, seen := visitedNodes[id]; seen {
				return
			}
			visitedNodes[id] = struct{}{}
			next = append(next, id)
		}
		for _, e := range edges {
			if _, seen := visitedEdges[e.ID]; seen {
				continue
			}
			visitedEdges[e.ID] = struct{}{}
			result.Edges = append(result.Edges, e)

			if _, ok := inFrontier[e.SourceNodeID]; ok {
				visit(e.TargetNodeID)
			}
			if _, ok := inFrontier[e.TargetNodeID]; ok {
				visit(e.SourceNodeID)
			}
		}

		slices.Sort(next)
		frontier = next
		remaining--
	}

	return result, nil
}

// fetchLevel loads the frontier nodes (in frontier order) and, when expand is
// set, their incident edges ordered by id.
func (g *GraphClient) fetchLevel(ctx context.Context, frontier []int64, expand bool) ([]common.Node, []common.Edge, error) {
	var nodes []common.Node
	var edges []common.Edge

	eg, gCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		fetched, err := g.store.GetNodes(gCtx, frontier)
		if err != nil {
			return fmt.Errorf("failed to fetch nodes: %w", err)
		}
		byID := make(map[int64]common.Node, len(fetched))
		for _, n := range fetched {
			byID[n.ID] = n
		}
		nodes = make([]common.Node, 0, len(frontier))
		for _, id := range frontier {
			if n, ok := byID[id]; ok {
				nodes = append(nodes, n)
			}
		}
		return nil
	})
	if expand {
		eg.Go(func() error {
			fetched, err := g.store.ListIncidentEdges(gCtx, frontier)
			if err != nil {
				return fmt.Errorf("failed to fetch edges: %w", err)
			}
			slices.SortFunc(fetched, func(a, b common.Edge) int {
				switch {
				case a.ID < b.ID:
					return -1
				case a.ID > b.ID:
					return 1
				}
				return 0
			})
			edges = fetched
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	return nodes, edges, nil
}
