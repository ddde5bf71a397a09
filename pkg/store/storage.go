package store

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/fingraph/pkg/common"
)

// ErrNotFound is returned when a requested node does not exist.
var ErrNotFound = errors.New("not found")

// NodeStore persists generic nodes. UpsertNode is keyed on (Kind, Key): a
// second upsert with the same key updates the existing row and returns its id.
type NodeStore interface {
	UpsertNode(ctx context.Context, node *common.Node) (int64, error)
	GetNode(ctx context.Context, id int64) (*common.Node, error)
	GetNodes(ctx context.Context, ids []int64) ([]common.Node, error)
	ListNodes(ctx context.Context, filter common.NodeFilter) ([]common.Node, error)
	// NodeIDsByCode returns code -> id for all nodes of kind that have a code.
	NodeIDsByCode(ctx context.Context, kind common.NodeKind) (map[string]int64, error)
	UpdateNodeScore(ctx context.Context, id int64, connectionCount int, importanceScore float64) error
}

// AttributeStore persists the five type attribute tables, each 1:1 with nodes.
type AttributeStore interface {
	UpsertInstrumentAttributes(ctx context.Context, attrs common.InstrumentAttributes) error
	UpsertRegulationAttributes(ctx context.Context, attrs common.RegulationAttributes) error
	UpsertEventAttributes(ctx context.Context, attrs common.EventAttributes) error
	UpsertAssetAttributes(ctx context.Context, attrs common.AssetAttributes) error
	UpsertEntityAttributes(ctx context.Context, attrs common.EntityAttributes) error

	ListRegulationAttributes(ctx context.Context) ([]common.RegulationAttributes, error)
	ListEventAttributes(ctx context.Context) ([]common.EventAttributes, error)
	ListAssetAttributes(ctx context.Context) ([]common.AssetAttributes, error)
	ListEntityAttributes(ctx context.Context) ([]common.EntityAttributes, error)
}

// EdgeStore persists edges. UpsertEdge is keyed on (source, target, kind).
type EdgeStore interface {
	UpsertEdge(ctx context.Context, edge *common.Edge) (int64, error)
	ListEdges(ctx context.Context) ([]common.Edge, error)
	// ListIncidentEdges returns every edge whose source or target is in
	// nodeIDs, each edge once.
	ListIncidentEdges(ctx context.Context, nodeIDs []int64) ([]common.Edge, error)
}

// GraphStorage is the complete storage contract of the graph engine.
type GraphStorage interface {
	NodeStore
	AttributeStore
	EdgeStore

	Ping(ctx context.Context) error

	// SweepEdges deletes edges whose last build run differs from runID.
	SweepEdges(ctx context.Context, runID string) (int, error)
	// SweepNodes deletes nodes (with their attributes and incident edges)
	// whose last build run differs from runID.
	SweepNodes(ctx context.Context, runID string) (int, error)
}
