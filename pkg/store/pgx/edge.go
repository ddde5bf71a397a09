package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/OFFIS-RIT/fingraph/pkg/common"
	"github.com/OFFIS-RIT/fingraph/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const edgeColumns = `id, source_node_id, target_node_id, kind, properties, strength, confidence,
	COALESCE(source_type, ''), COALESCE(source_id, ''), COALESCE(last_seen_run, '')`

const upsertEdgeSQL = `
INSERT INTO edges (
    source_node_id, target_node_id, kind, properties, strength, confidence,
    source_type, source_id, last_seen_run
)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9)
ON CONFLICT (source_node_id, target_node_id, kind) DO UPDATE
SET properties    = EXCLUDED.properties,
    strength      = EXCLUDED.strength,
    confidence    = EXCLUDED.confidence,
    source_type   = EXCLUDED.source_type,
    source_id     = EXCLUDED.source_id,
    last_seen_run = EXCLUDED.last_seen_run,
    updated_at    = now()
RETURNING id;
`

// foreign_key_violation
const pgForeignKeyViolation = "23503"

// UpsertEdge inserts or refreshes the edge identified by (source, target,
// kind). A missing endpoint yields store.ErrNotFound.
func (s *GraphDBStorage) UpsertEdge(ctx context.Context, edge *common.Edge) (int64, error) {
	props, err := json.Marshal(edge.Properties)
	if err != nil {
		return 0, fmt.Errorf("failed to encode edge properties: %w", err)
	}

	var id int64
	err = s.conn.QueryRow(ctx, upsertEdgeSQL,
		edge.SourceNodeID,
		edge.TargetNodeID,
		string(edge.Kind),
		props,
		edge.Strength,
		edge.Confidence,
		edge.SourceType,
		edge.SourceID,
		edge.SeenRun,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return 0, fmt.Errorf("failed to upsert edge: %w", store.ErrNotFound)
		}
		return 0, fmt.Errorf("failed to upsert edge: %w", err)
	}
	return id, nil
}

func (s *GraphDBStorage) ListEdges(ctx context.Context) ([]common.Edge, error) {
	rows, err := s.conn.Query(ctx, "SELECT "+edgeColumns+" FROM edges ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	return collect(rows, scanEdge)
}

// ListIncidentEdges returns the edges touching any of nodeIDs, ordered by id.
func (s *GraphDBStorage) ListIncidentEdges(ctx context.Context, nodeIDs []int64) ([]common.Edge, error) {
	byID := make(map[int64]common.Edge)
	err := store.ChunkRange(len(nodeIDs), idChunkSize, func(start, end int) error {
		rows, err := s.conn.Query(ctx,
			"SELECT "+edgeColumns+" FROM edges WHERE source_node_id = ANY($1) OR target_node_id = ANY($1)",
			nodeIDs[start:end],
		)
		if err != nil {
			return fmt.Errorf("failed to list incident edges: %w", err)
		}
		edges, err := collect(rows, scanEdge)
		if err != nil {
			return err
		}
		for _, e := range edges {
			byID[e.ID] = e
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sortEdges(byID), nil
}

// SweepEdges deletes the edges not refreshed by runID.
func (s *GraphDBStorage) SweepEdges(ctx context.Context, runID string) (int, error) {
	tag, err := s.conn.Exec(ctx,
		"DELETE FROM edges WHERE last_seen_run IS DISTINCT FROM $1",
		runID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep edges: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// SweepNodes deletes the nodes not refreshed by runID. Attribute rows follow
// through ON DELETE CASCADE; remaining incident edges are removed first in the
// same transaction.
func (s *GraphDBStorage) SweepNodes(ctx context.Context, runID string) (int, error) {
	swept := 0
	err := s.withTx(ctx, func(tx pgxv5.Tx) error {
		_, err := tx.Exec(ctx, `
DELETE FROM edges e
USING nodes n
WHERE n.last_seen_run IS DISTINCT FROM $1
  AND (e.source_node_id = n.id OR e.target_node_id = n.id)`, runID)
		if err != nil {
			return fmt.Errorf("failed to delete edges of stale nodes: %w", err)
		}
		tag, err := tx.Exec(ctx, "DELETE FROM nodes WHERE last_seen_run IS DISTINCT FROM $1", runID)
		if err != nil {
			return fmt.Errorf("failed to sweep nodes: %w", err)
		}
		swept = int(tag.RowsAffected())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return swept, nil
}

func scanEdge(row pgxv5.Rows) (common.Edge, error) {
	var e common.Edge
	var kind string
	var props []byte
	err := row.Scan(
		&e.ID,
		&e.SourceNodeID,
		&e.TargetNodeID,
		&kind,
		&props,
		&e.Strength,
		&e.Confidence,
		&e.SourceType,
		&e.SourceID,
		&e.SeenRun,
	)
	if err != nil {
		return common.Edge{}, err
	}
	e.Kind = common.EdgeKind(kind)
	if len(props) > 0 {
		if err := json.Unmarshal(props, &e.Properties); err != nil {
			return common.Edge{}, fmt.Errorf("failed to decode edge properties: %w", err)
		}
	}
	return e, nil
}

func sortEdges(byID map[int64]common.Edge) []common.Edge {
	ids := make([]int64, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]common.Edge, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out
}
