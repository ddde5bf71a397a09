package common

import (
	"fmt"
	"slices"
	"strings"
)

// NodeKind is the closed set of entity types a graph node can represent.
type NodeKind string

const (
	KindInstrument     NodeKind = "instrument"
	KindRegulation     NodeKind = "regulation"
	KindEvent          NodeKind = "event"
	KindAsset          NodeKind = "asset"
	KindManagingEntity NodeKind = "managing_entity"
)

// NodeKinds lists every node kind in extraction order.
var NodeKinds = []NodeKind{
	KindInstrument,
	KindRegulation,
	KindEvent,
	KindAsset,
	KindManagingEntity,
}

// Valid reports whether k is one of the known node kinds.
func (k NodeKind) Valid() bool {
	return slices.Contains(NodeKinds, k)
}

// ParseNodeKind converts a user supplied string into a NodeKind. "entity"
// is accepted for managing entities.
func ParseNodeKind(s string) (NodeKind, error) {
	k := NodeKind(strings.ToLower(strings.TrimSpace(s)))
	if k == "entity" {
		return KindManagingEntity, nil
	}
	if !k.Valid() {
		return "", fmt.Errorf("unknown node kind %q", s)
	}
	return k, nil
}

// EdgeKind is the closed set of relationship types.
type EdgeKind string

const (
	EdgeAffects   EdgeKind = "affects"
	EdgeRelatedTo EdgeKind = "related_to"
	EdgeContains  EdgeKind = "contains"
	EdgeManagedBy EdgeKind = "managed_by"
	// EdgeMentionedIn is reserved; no builder produces it.
	EdgeMentionedIn EdgeKind = "mentioned_in"
)

// EdgeKinds lists the edge kinds produced by the edge builders, in build order.
var EdgeKinds = []EdgeKind{
	EdgeAffects,
	EdgeRelatedTo,
	EdgeContains,
	EdgeManagedBy,
}

// Node is a graph vertex representing one real world entity: a financial
// instrument, a regulation, an event, a physical asset or a managing entity.
//
// Key is the upsert key supplied by the build stage: Code when the record has
// a natural code, otherwise Name. The store never derives it on its own.
type Node struct {
	ID              int64          `json:"id"`
	Kind            NodeKind       `json:"kind"`
	Key             string         `json:"-"`
	Name            string         `json:"name"`
	Code            string         `json:"code,omitempty"`
	Properties      NodeProperties `json:"properties,omitempty"`
	SourceTable     string         `json:"source_table,omitempty"`
	SourceID        string         `json:"source_id,omitempty"`
	ConnectionCount int            `json:"connection_count"`
	ImportanceScore float64        `json:"importance_score"`
	SeenRun         string         `json:"-"`
}

// Edge is a directed, typed and weighted relationship between two nodes.
// The triple (SourceNodeID, TargetNodeID, Kind) identifies an edge.
type Edge struct {
	ID           int64          `json:"id"`
	SourceNodeID int64          `json:"source_node_id"`
	TargetNodeID int64          `json:"target_node_id"`
	Kind         EdgeKind       `json:"kind"`
	Properties   EdgeProperties `json:"properties"`
	Strength     float64        `json:"strength"`
	Confidence   float64        `json:"confidence"`
	SourceType   string         `json:"source_type,omitempty"`
	SourceID     string         `json:"source_id,omitempty"`
	SeenRun      string         `json:"-"`
}

// EdgeKey is the dedup key of an edge.
type EdgeKey struct {
	SourceNodeID int64
	TargetNodeID int64
	Kind         EdgeKind
}

// Key returns the dedup key of e.
func (e Edge) Key() EdgeKey {
	return EdgeKey{SourceNodeID: e.SourceNodeID, TargetNodeID: e.TargetNodeID, Kind: e.Kind}
}

// Subgraph is the result of a neighborhood query. Every edge appears once.
type Subgraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NodeFilter narrows ListNodes. Zero values mean "no restriction".
type NodeFilter struct {
	Kind  NodeKind
	Limit int
}
