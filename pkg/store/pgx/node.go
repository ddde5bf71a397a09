package pgx

import (
	"context"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/fingraph/pkg/common"
	"github.com/OFFIS-RIT/fingraph/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const nodeColumns = `id, kind, node_key, name, COALESCE(code, ''), properties,
	COALESCE(source_table, ''), COALESCE(source_id, ''),
	connection_count, importance_score, COALESCE(last_seen_run, '')`

const upsertNodeSQL = `
INSERT INTO nodes (kind, node_key, name, code, properties, source_table, source_id, last_seen_run)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), NULLIF($7, ''), $8)
ON CONFLICT (kind, node_key) DO UPDATE
SET name          = EXCLUDED.name,
    code          = EXCLUDED.code,
    properties    = EXCLUDED.properties,
    source_table  = EXCLUDED.source_table,
    source_id     = EXCLUDED.source_id,
    last_seen_run = EXCLUDED.last_seen_run,
    updated_at    = now()
RETURNING id;
`

// UpsertNode inserts or refreshes the node identified by (Kind, Key). The
// score columns of an existing row are left untouched.
func (s *GraphDBStorage) UpsertNode(ctx context.Context, node *common.Node) (int64, error) {
	if node.Key == "" {
		return 0, fmt.Errorf("node of kind %s has no key", node.Kind)
	}
	props, err := common.EncodeNodeProperties(node.Properties)
	if err != nil {
		return 0, fmt.Errorf("failed to encode node properties: %w", err)
	}

	var id int64
	err = s.conn.QueryRow(ctx, upsertNodeSQL,
		string(node.Kind),
		node.Key,
		node.Name,
		node.Code,
		props,
		node.SourceTable,
		node.SourceID,
		node.SeenRun,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert node: %w", err)
	}
	return id, nil
}

func (s *GraphDBStorage) GetNode(ctx context.Context, id int64) (*common.Node, error) {
	row := s.conn.QueryRow(ctx, "SELECT "+nodeColumns+" FROM nodes WHERE id = $1", id)
	node, err := scanNode(row)
	if err != nil {
		return nil, notFound(err)
	}
	return &node, nil
}

// GetNodes returns the nodes with the given ids in the order of ids. Unknown
// ids are skipped.
func (s *GraphDBStorage) GetNodes(ctx context.Context, ids []int64) ([]common.Node, error) {
	byID := make(map[int64]common.Node, len(ids))
	err := store.ChunkRange(len(ids), idChunkSize, func(start, end int) error {
		rows, err := s.conn.Query(ctx, "SELECT "+nodeColumns+" FROM nodes WHERE id = ANY($1)", ids[start:end])
		if err != nil {
			return fmt.Errorf("failed to get nodes: %w", err)
		}
		nodes, err := collectNodes(rows)
		if err != nil {
			return err
		}
		for _, n := range nodes {
			byID[n.ID] = n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orderNodes(ids, byID), nil
}

func (s *GraphDBStorage) ListNodes(ctx context.Context, filter common.NodeFilter) ([]common.Node, error) {
	query, args := listNodesQuery(filter)
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	return collectNodes(rows)
}

func listNodesQuery(filter common.NodeFilter) (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT " + nodeColumns + " FROM nodes")
	args := make([]any, 0, 2)
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		fmt.Fprintf(&sb, " WHERE kind = $%d", len(args))
	}
	sb.WriteString(" ORDER BY importance_score DESC, id ASC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	return sb.String(), args
}

func (s *GraphDBStorage) NodeIDsByCode(ctx context.Context, kind common.NodeKind) (map[string]int64, error) {
	rows, err := s.conn.Query(ctx,
		"SELECT code, id FROM nodes WHERE kind = $1 AND code IS NOT NULL AND code <> ''",
		string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load node codes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var code string
		var id int64
		if err := rows.Scan(&code, &id); err != nil {
			return nil, fmt.Errorf("failed to scan node code: %w", err)
		}
		out[code] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load node codes: %w", err)
	}
	return out, nil
}

func (s *GraphDBStorage) UpdateNodeScore(ctx context.Context, id int64, connectionCount int, importanceScore float64) error {
	tag, err := s.conn.Exec(ctx,
		"UPDATE nodes SET connection_count = $2, importance_score = $3, updated_at = now() WHERE id = $1",
		id, connectionCount, importanceScore,
	)
	if err != nil {
		return fmt.Errorf("failed to update node score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanNode(row pgxv5.Row) (common.Node, error) {
	var n common.Node
	var kind string
	var props []byte
	err := row.Scan(
		&n.ID,
		&kind,
		&n.Key,
		&n.Name,
		&n.Code,
		&props,
		&n.SourceTable,
		&n.SourceID,
		&n.ConnectionCount,
		&n.ImportanceScore,
		&n.SeenRun,
	)
	if err != nil {
		return common.Node{}, err
	}
	n.Kind = common.NodeKind(kind)
	n.Properties, err = common.DecodeNodeProperties(n.Kind, props)
	if err != nil {
		return common.Node{}, err
	}
	return n, nil
}

func collectNodes(rows pgxv5.Rows) ([]common.Node, error) {
	defer rows.Close()
	out := make([]common.Node, 0)
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read nodes: %w", err)
	}
	return out, nil
}

func orderNodes(ids []int64, byID map[int64]common.Node) []common.Node {
	out := make([]common.Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := byID[id]; ok {
			out = append(out, n)
		}
	}
	return out
}
