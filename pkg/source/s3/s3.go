package s3

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/OFFIS-RIT/fingraph/internal/storage"
	"github.com/OFFIS-RIT/fingraph/pkg/common"
	"github.com/OFFIS-RIT/fingraph/pkg/logger"
	"github.com/OFFIS-RIT/fingraph/pkg/source"
)

// Folders below the prefix holding one record set each.
const (
	FolderInstruments   = "instruments"
	FolderRegulations   = "regulations"
	FolderNews          = "news"
	FolderAnnouncements = "announcements"
)

const maxLineSize = 4 << 20

// RecordSource reads record drops stored as JSON-lines files under
// <prefix>/<folder>/*.jsonl. Files are read in key order; records not marked
// valid are dropped.
type RecordSource struct {
	client storage.ObjectAPI
	bucket string
	prefix string
}

var _ source.RecordSource = (*RecordSource)(nil)

func NewRecordSource(client storage.ObjectAPI, bucket, prefix string) *RecordSource {
	return &RecordSource{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (s *RecordSource) ListValidInstrumentRecords(ctx context.Context) ([]common.InstrumentRecord, error) {
	records, err := readFolder[common.InstrumentRecord](ctx, s, FolderInstruments)
	if err != nil {
		return nil, err
	}
	return source.FilterValid(records, func(r common.InstrumentRecord) bool { return r.Valid }), nil
}

func (s *RecordSource) ListValidRegulationRecords(ctx context.Context) ([]common.RegulationRecord, error) {
	records, err := readFolder[common.RegulationRecord](ctx, s, FolderRegulations)
	if err != nil {
		return nil, err
	}
	return source.FilterValid(records, func(r common.RegulationRecord) bool { return r.Valid }), nil
}

func (s *RecordSource) ListValidNewsRecords(ctx context.Context) ([]common.EventRecord, error) {
	return s.listEvents(ctx, FolderNews, common.EventTypeNews)
}

func (s *RecordSource) ListValidAnnouncementRecords(ctx context.Context) ([]common.EventRecord, error) {
	return s.listEvents(ctx, FolderAnnouncements, common.EventTypeAnnouncement)
}

func (s *RecordSource) listEvents(ctx context.Context, folder, eventType string) ([]common.EventRecord, error) {
	records, err := readFolder[common.EventRecord](ctx, s, folder)
	if err != nil {
		return nil, err
	}
	valid := source.FilterValid(records, func(r common.EventRecord) bool { return r.Valid })
	for i := range valid {
		valid[i].EventType = eventType
	}
	return valid, nil
}

func (s *RecordSource) folderPrefix(folder string) string {
	if s.prefix == "" {
		return folder + "/"
	}
	return path.Join(s.prefix, folder) + "/"
}

func readFolder[T any](ctx context.Context, s *RecordSource, folder string) ([]T, error) {
	prefix := s.folderPrefix(folder)
	keys, err := storage.ListFilesWithPrefix(ctx, s.client, s.bucket, prefix)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasSuffix(k, ".jsonl") {
			files = append(files, k)
		}
	}
	sort.Strings(files)

	out := make([]T, 0)
	for _, key := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := storage.GetFile(ctx, s.client, s.bucket, key)
		if err != nil {
			return nil, err
		}
		records, err := decodeLines[T](data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", key, err)
		}
		out = append(out, records...)
	}

	logger.Debug("[Source][S3] Records read", "prefix", prefix, "files", len(files), "records", len(out))
	return out, nil
}

// decodeLines parses one JSON object per line. Blank lines are ignored.
func decodeLines[T any](data []byte) ([]T, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	out := make([]T, 0)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
