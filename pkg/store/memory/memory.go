package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/OFFIS-RIT/fingraph/pkg/common"
	"github.com/OFFIS-RIT/fingraph/pkg/store"
)

type nodeKey struct {
	kind common.NodeKind
	key  string
}

// GraphMemoryStorage is an in-process GraphStorage used by tests, the CLI
// dry-run mode and small single-process deployments. The mutex only keeps
// map access memory safe; it adds no cross-record transaction semantics.
type GraphMemoryStorage struct {
	mu sync.RWMutex

	nextNodeID int64
	nextEdgeID int64

	nodes     map[int64]common.Node
	nodeByKey map[nodeKey]int64

	instruments map[int64]common.InstrumentAttributes
	regulations map[int64]common.RegulationAttributes
	events      map[int64]common.EventAttributes
	assets      map[int64]common.AssetAttributes
	entities    map[int64]common.EntityAttributes

	edges     map[int64]common.Edge
	edgeByKey map[common.EdgeKey]int64

	// set by FailWrites
	failWrites int
	failErr    error
}

var _ store.GraphStorage = (*GraphMemoryStorage)(nil)

func New() *GraphMemoryStorage {
	return &GraphMemoryStorage{
		nodes:       make(map[int64]common.Node),
		nodeByKey:   make(map[nodeKey]int64),
		instruments: make(map[int64]common.InstrumentAttributes),
		regulations: make(map[int64]common.RegulationAttributes),
		events:      make(map[int64]common.EventAttributes),
		assets:      make(map[int64]common.AssetAttributes),
		entities:    make(map[int64]common.EntityAttributes),
		edges:       make(map[int64]common.Edge),
		edgeByKey:   make(map[common.EdgeKey]int64),
	}
}

// FailWrites makes the next n write calls return err.
func (s *GraphMemoryStorage) FailWrites(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = n
	s.failErr = err
}

func (s *GraphMemoryStorage) injectedFailure() error {
	if s.failWrites <= 0 {
		return nil
	}
	s.failWrites--
	return s.failErr
}

func (s *GraphMemoryStorage) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *GraphMemoryStorage) UpsertNode(ctx context.Context, node *common.Node) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injectedFailure(); err != nil {
		return 0, err
	}

	k := nodeKey{kind: node.Kind, key: node.Key}
	id, ok := s.nodeByKey[k]
	if ok {
		existing := s.nodes[id]
		updated := *node
		updated.ID = id
		updated.ConnectionCount = existing.ConnectionCount
		updated.ImportanceScore = existing.ImportanceScore
		s.nodes[id] = updated
		return id, nil
	}

	s.nextNodeID++
	id = s.nextNodeID
	created := *node
	created.ID = id
	created.ConnectionCount = 0
	created.ImportanceScore = 0
	s.nodes[id] = created
	s.nodeByKey[k] = id
	return id, nil
}

func (s *GraphMemoryStorage) GetNode(ctx context.Context, id int64) (*common.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &n, nil
}

// GetNodes returns the nodes for ids in the order given, skipping unknown ids.
func (s *GraphMemoryStorage) GetNodes(ctx context.Context, ids []int64) ([]common.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]common.Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := s.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *GraphMemoryStorage) ListNodes(ctx context.Context, filter common.NodeFilter) ([]common.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]common.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		if filter.Kind != "" && n.Kind != filter.Kind {
			continue
		}
		out = append(out, n)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ImportanceScore != out[j].ImportanceScore {
			return out[i].ImportanceScore > out[j].ImportanceScore
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *GraphMemoryStorage) NodeIDsByCode(ctx context.Context, kind common.NodeKind) (map[string]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64)
	for id, n := range s.nodes {
		if n.Kind == kind && n.Code != "" {
			out[n.Code] = id
		}
	}
	return out, nil
}

func (s *GraphMemoryStorage) UpdateNodeScore(ctx context.Context, id int64, connectionCount int, importanceScore float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injectedFailure(); err != nil {
		return err
	}
	n, ok := s.nodes[id]
	if !ok {
		return store.ErrNotFound
	}
	n.ConnectionCount = connectionCount
	n.ImportanceScore = importanceScore
	s.nodes[id] = n
	return nil
}

func (s *GraphMemoryStorage) checkAttributeWrite(ctx context.Context, nodeID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.injectedFailure(); err != nil {
		return err
	}
	if _, ok := s.nodes[nodeID]; !ok {
		return store.ErrNotFound
	}
	return nil
}

func (s *GraphMemoryStorage) UpsertInstrumentAttributes(ctx context.Context, attrs common.InstrumentAttributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAttributeWrite(ctx, attrs.NodeID); err != nil {
		return err
	}
	s.instruments[attrs.NodeID] = attrs
	return nil
}

func (s *GraphMemoryStorage) UpsertRegulationAttributes(ctx context.Context, attrs common.RegulationAttributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAttributeWrite(ctx, attrs.NodeID); err != nil {
		return err
	}
	attrs.RelatedInstruments = slices.Clone(attrs.RelatedInstruments)
	s.regulations[attrs.NodeID] = attrs
	return nil
}

func (s *GraphMemoryStorage) UpsertEventAttributes(ctx context.Context, attrs common.EventAttributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAttributeWrite(ctx, attrs.NodeID); err != nil {
		return err
	}
	attrs.AffectedInstruments = slices.Clone(attrs.AffectedInstruments)
	s.events[attrs.NodeID] = attrs
	return nil
}

func (s *GraphMemoryStorage) UpsertAssetAttributes(ctx context.Context, attrs common.AssetAttributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAttributeWrite(ctx, attrs.NodeID); err != nil {
		return err
	}
	attrs.OwnedBy = slices.Clone(attrs.OwnedBy)
	s.assets[attrs.NodeID] = attrs
	return nil
}

func (s *GraphMemoryStorage) UpsertEntityAttributes(ctx context.Context, attrs common.EntityAttributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAttributeWrite(ctx, attrs.NodeID); err != nil {
		return err
	}
	attrs.Managed = slices.Clone(attrs.Managed)
	s.entities[attrs.NodeID] = attrs
	return nil
}

func sortedValues[T any](m map[int64]T) []T {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

func (s *GraphMemoryStorage) ListRegulationAttributes(ctx context.Context) ([]common.RegulationAttributes, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.regulations), nil
}

func (s *GraphMemoryStorage) ListEventAttributes(ctx context.Context) ([]common.EventAttributes, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.events), nil
}

func (s *GraphMemoryStorage) ListAssetAttributes(ctx context.Context) ([]common.AssetAttributes, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.assets), nil
}

func (s *GraphMemoryStorage) ListEntityAttributes(ctx context.Context) ([]common.EntityAttributes, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.entities), nil
}

func (s *GraphMemoryStorage) UpsertEdge(ctx context.Context, edge *common.Edge) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injectedFailure(); err != nil {
		return 0, err
	}
	if _, ok := s.nodes[edge.SourceNodeID]; !ok {
		return 0, store.ErrNotFound
	}
	if _, ok := s.nodes[edge.TargetNodeID]; !ok {
		return 0, store.ErrNotFound
	}

	k := edge.Key()
	if id, ok := s.edgeByKey[k]; ok {
		updated := *edge
		updated.ID = id
		s.edges[id] = updated
		return id, nil
	}
	s.nextEdgeID++
	created := *edge
	created.ID = s.nextEdgeID
	s.edges[created.ID] = created
	s.edgeByKey[k] = created.ID
	return created.ID, nil
}

func (s *GraphMemoryStorage) ListEdges(ctx context.Context) ([]common.Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.edges), nil
}

func (s *GraphMemoryStorage) ListIncidentEdges(ctx context.Context, nodeIDs []int64) ([]common.Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[int64]struct{}, len(nodeIDs))
	for _, id := range nodeIDs {
		want[id] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]common.Edge, 0)
	for _, e := range sortedValues(s.edges) {
		_, src := want[e.SourceNodeID]
		_, tgt := want[e.TargetNodeID]
		if src || tgt {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *GraphMemoryStorage) deleteEdge(id int64) {
	e, ok := s.edges[id]
	if !ok {
		return
	}
	delete(s.edgeByKey, e.Key())
	delete(s.edges, id)
}

func (s *GraphMemoryStorage) SweepEdges(ctx context.Context, runID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	swept := 0
	for id, e := range s.edges {
		if e.SeenRun != runID {
			s.deleteEdge(id)
			swept++
		}
	}
	return swept, nil
}

func (s *GraphMemoryStorage) SweepNodes(ctx context.Context, runID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	swept := 0
	for id, n := range s.nodes {
		if n.SeenRun == runID {
			continue
		}
		for eid, e := range s.edges {
			if e.SourceNodeID == id || e.TargetNodeID == id {
				s.deleteEdge(eid)
			}
		}
		delete(s.instruments, id)
		delete(s.regulations, id)
		delete(s.events, id)
		delete(s.assets, id)
		delete(s.entities, id)
		delete(s.nodeByKey, nodeKey{kind: n.Kind, key: n.Key})
		delete(s.nodes, id)
		swept++
	}
	return swept, nil
}
