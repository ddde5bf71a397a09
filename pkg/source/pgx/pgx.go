package pgx

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/fingraph/pkg/common"
	"github.com/OFFIS-RIT/fingraph/pkg/source"

	pgxv5 "github.com/jackc/pgx/v5"
)

type queryer interface {
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
}

// RecordSource reads the collector tables (raw_*_records). Only rows the
// collector flagged with is_valid are returned.
type RecordSource struct {
	conn queryer
}

var _ source.RecordSource = (*RecordSource)(nil)

func NewRecordSource(conn queryer) *RecordSource {
	return &RecordSource{conn: conn}
}

const listInstrumentsSQL = `
SELECT id, code, name, exchange, instrument_type, list_date, issue_size,
       underlying_asset, asset_type, asset_location, manager_name, manager_type
FROM raw_instrument_records
WHERE is_valid
ORDER BY id`

const listRegulationsSQL = `
SELECT id, document_number, title, authority, publish_date, impact_level,
       category, related_instruments
FROM raw_regulation_records
WHERE is_valid
ORDER BY id`

// %s is one of the two fixed event tables
const listEventsSQL = `
SELECT id, title, publish_date, sentiment_label, sentiment_score,
       affected_instruments, url
FROM %s
WHERE is_valid
ORDER BY id`

func (s *RecordSource) ListValidInstrumentRecords(ctx context.Context) ([]common.InstrumentRecord, error) {
	rows, err := s.conn.Query(ctx, listInstrumentsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query instrument records: %w", err)
	}
	return collectRows(rows, func(row pgxv5.Rows) (common.InstrumentRecord, error) {
		r := common.InstrumentRecord{Valid: true}
		err := row.Scan(&r.ID, &r.Code, &r.Name, &r.Exchange, &r.InstrumentType, &r.ListDate, &r.IssueSize,
			&r.UnderlyingAsset, &r.AssetType, &r.AssetLocation, &r.ManagerName, &r.ManagerType)
		return r, err
	})
}

func (s *RecordSource) ListValidRegulationRecords(ctx context.Context) ([]common.RegulationRecord, error) {
	rows, err := s.conn.Query(ctx, listRegulationsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query regulation records: %w", err)
	}
	return collectRows(rows, func(row pgxv5.Rows) (common.RegulationRecord, error) {
		r := common.RegulationRecord{Valid: true}
		err := row.Scan(&r.ID, &r.DocumentNumber, &r.Title, &r.Authority, &r.PublishDate, &r.ImpactLevel,
			&r.Category, &r.RelatedInstruments)
		return r, err
	})
}

func (s *RecordSource) ListValidNewsRecords(ctx context.Context) ([]common.EventRecord, error) {
	return s.listEvents(ctx, common.SourceTableNews, common.EventTypeNews)
}

func (s *RecordSource) ListValidAnnouncementRecords(ctx context.Context) ([]common.EventRecord, error) {
	return s.listEvents(ctx, common.SourceTableAnnouncements, common.EventTypeAnnouncement)
}

func (s *RecordSource) listEvents(ctx context.Context, table, eventType string) ([]common.EventRecord, error) {
	rows, err := s.conn.Query(ctx, eventsQuery(table))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s records: %w", eventType, err)
	}
	return collectRows(rows, func(row pgxv5.Rows) (common.EventRecord, error) {
		r := common.EventRecord{EventType: eventType, Valid: true}
		err := row.Scan(&r.ID, &r.Title, &r.PublishDate, &r.SentimentLabel, &r.SentimentScore,
			&r.AffectedInstruments, &r.URL)
		return r, err
	})
}

func eventsQuery(table string) string {
	return fmt.Sprintf(listEventsSQL, pgxv5.Identifier{table}.Sanitize())
}

func collectRows[T any](rows pgxv5.Rows, scan func(pgxv5.Rows) (T, error)) ([]T, error) {
	defer rows.Close()
	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return out, nil
}
