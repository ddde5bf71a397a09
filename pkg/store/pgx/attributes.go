package pgx

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/fingraph/pkg/common"

	pgxv5 "github.com/jackc/pgx/v5"
)

const upsertInstrumentAttributesSQL = `
INSERT INTO instrument_attributes (
    node_id, code, name, exchange, instrument_type, list_date, issue_size,
    underlying_asset, asset_type, asset_location, manager_name, manager_type
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (node_id) DO UPDATE
SET code             = EXCLUDED.code,
    name             = EXCLUDED.name,
    exchange         = EXCLUDED.exchange,
    instrument_type  = EXCLUDED.instrument_type,
    list_date        = EXCLUDED.list_date,
    issue_size       = EXCLUDED.issue_size,
    underlying_asset = EXCLUDED.underlying_asset,
    asset_type       = EXCLUDED.asset_type,
    asset_location   = EXCLUDED.asset_location,
    manager_name     = EXCLUDED.manager_name,
    manager_type     = EXCLUDED.manager_type;
`

const upsertRegulationAttributesSQL = `
INSERT INTO regulation_attributes (
    node_id, document_number, title, authority, publish_date, impact_level,
    category, related_instruments, source_id
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (node_id) DO UPDATE
SET document_number     = EXCLUDED.document_number,
    title               = EXCLUDED.title,
    authority           = EXCLUDED.authority,
    publish_date        = EXCLUDED.publish_date,
    impact_level        = EXCLUDED.impact_level,
    category            = EXCLUDED.category,
    related_instruments = EXCLUDED.related_instruments,
    source_id           = EXCLUDED.source_id;
`

const upsertEventAttributesSQL = `
INSERT INTO event_attributes (
    node_id, event_type, title, publish_date, sentiment_label, sentiment_score,
    affected_instruments, url, source_id
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (node_id) DO UPDATE
SET event_type           = EXCLUDED.event_type,
    title                = EXCLUDED.title,
    publish_date         = EXCLUDED.publish_date,
    sentiment_label      = EXCLUDED.sentiment_label,
    sentiment_score      = EXCLUDED.sentiment_score,
    affected_instruments = EXCLUDED.affected_instruments,
    url                  = EXCLUDED.url,
    source_id            = EXCLUDED.source_id;
`

const upsertAssetAttributesSQL = `
INSERT INTO asset_attributes (node_id, name, asset_type, location, owned_by)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (node_id) DO UPDATE
SET name       = EXCLUDED.name,
    asset_type = EXCLUDED.asset_type,
    location   = EXCLUDED.location,
    owned_by   = EXCLUDED.owned_by;
`

const upsertEntityAttributesSQL = `
INSERT INTO entity_attributes (node_id, name, entity_type, managed, managed_count)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (node_id) DO UPDATE
SET name          = EXCLUDED.name,
    entity_type   = EXCLUDED.entity_type,
    managed       = EXCLUDED.managed,
    managed_count = EXCLUDED.managed_count;
`

func (s *GraphDBStorage) UpsertInstrumentAttributes(ctx context.Context, a common.InstrumentAttributes) error {
	_, err := s.conn.Exec(ctx, upsertInstrumentAttributesSQL,
		a.NodeID, a.Code, a.Name, a.Exchange, a.InstrumentType, a.ListDate, a.IssueSize,
		a.UnderlyingAsset, a.AssetType, a.AssetLocation, a.ManagerName, a.ManagerType,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert instrument attributes: %w", err)
	}
	return nil
}

func (s *GraphDBStorage) UpsertRegulationAttributes(ctx context.Context, a common.RegulationAttributes) error {
	_, err := s.conn.Exec(ctx, upsertRegulationAttributesSQL,
		a.NodeID, a.DocumentNumber, a.Title, a.Authority, a.PublishDate, a.ImpactLevel,
		a.Category, textArray(a.RelatedInstruments), a.SourceID,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert regulation attributes: %w", err)
	}
	return nil
}

func (s *GraphDBStorage) UpsertEventAttributes(ctx context.Context, a common.EventAttributes) error {
	_, err := s.conn.Exec(ctx, upsertEventAttributesSQL,
		a.NodeID, a.EventType, a.Title, a.PublishDate, a.SentimentLabel, a.SentimentScore,
		textArray(a.AffectedInstruments), a.URL, a.SourceID,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert event attributes: %w", err)
	}
	return nil
}

func (s *GraphDBStorage) UpsertAssetAttributes(ctx context.Context, a common.AssetAttributes) error {
	_, err := s.conn.Exec(ctx, upsertAssetAttributesSQL,
		a.NodeID, a.Name, a.AssetType, a.Location, textArray(a.OwnedBy),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert asset attributes: %w", err)
	}
	return nil
}

func (s *GraphDBStorage) UpsertEntityAttributes(ctx context.Context, a common.EntityAttributes) error {
	_, err := s.conn.Exec(ctx, upsertEntityAttributesSQL,
		a.NodeID, a.Name, a.EntityType, textArray(a.Managed), a.ManagedCount,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert entity attributes: %w", err)
	}
	return nil
}

func (s *GraphDBStorage) ListRegulationAttributes(ctx context.Context) ([]common.RegulationAttributes, error) {
	rows, err := s.conn.Query(ctx, `
SELECT node_id, document_number, title, authority, publish_date, impact_level,
       category, related_instruments, source_id
FROM regulation_attributes
ORDER BY node_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list regulation attributes: %w", err)
	}
	return collect(rows, func(row pgxv5.Rows) (common.RegulationAttributes, error) {
		var a common.RegulationAttributes
		err := row.Scan(&a.NodeID, &a.DocumentNumber, &a.Title, &a.Authority, &a.PublishDate,
			&a.ImpactLevel, &a.Category, &a.RelatedInstruments, &a.SourceID)
		return a, err
	})
}

func (s *GraphDBStorage) ListEventAttributes(ctx context.Context) ([]common.EventAttributes, error) {
	rows, err := s.conn.Query(ctx, `
SELECT node_id, event_type, title, publish_date, sentiment_label, sentiment_score,
       affected_instruments, url, source_id
FROM event_attributes
ORDER BY node_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list event attributes: %w", err)
	}
	return collect(rows, func(row pgxv5.Rows) (common.EventAttributes, error) {
		var a common.EventAttributes
		err := row.Scan(&a.NodeID, &a.EventType, &a.Title, &a.PublishDate, &a.SentimentLabel,
			&a.SentimentScore, &a.AffectedInstruments, &a.URL, &a.SourceID)
		return a, err
	})
}

func (s *GraphDBStorage) ListAssetAttributes(ctx context.Context) ([]common.AssetAttributes, error) {
	rows, err := s.conn.Query(ctx, `
SELECT node_id, name, asset_type, location, owned_by
FROM asset_attributes
ORDER BY node_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list asset attributes: %w", err)
	}
	return collect(rows, func(row pgxv5.Rows) (common.AssetAttributes, error) {
		var a common.AssetAttributes
		err := row.Scan(&a.NodeID, &a.Name, &a.AssetType, &a.Location, &a.OwnedBy)
		return a, err
	})
}

func (s *GraphDBStorage) ListEntityAttributes(ctx context.Context) ([]common.EntityAttributes, error) {
	rows, err := s.conn.Query(ctx, `
SELECT node_id, name, entity_type, managed, managed_count
FROM entity_attributes
ORDER BY node_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list entity attributes: %w", err)
	}
	return collect(rows, func(row pgxv5.Rows) (common.EntityAttributes, error) {
		var a common.EntityAttributes
		err := row.Scan(&a.NodeID, &a.Name, &a.EntityType, &a.Managed, &a.ManagedCount)
		return a, err
	})
}

// collect scans every row with scan and closes rows.
func collect[T any](rows pgxv5.Rows, scan func(pgxv5.Rows) (T, error)) ([]T, error) {
	defer rows.Close()
	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return out, nil
}

// textArray keeps NOT NULL text[] columns non-null.
func textArray(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
