package source

import (
	"context"

	"github.com/OFFIS-RIT/fingraph/pkg/common"
)

// RecordSource supplies the raw records collected upstream. Implementations
// return only records flagged valid by the collector.
type RecordSource interface {
	ListValidInstrumentRecords(ctx context.Context) ([]common.InstrumentRecord, error)
	ListValidRegulationRecords(ctx context.Context) ([]common.RegulationRecord, error)
	ListValidNewsRecords(ctx context.Context) ([]common.EventRecord, error)
	ListValidAnnouncementRecords(ctx context.Context) ([]common.EventRecord, error)
}

// Static is a RecordSource over fixed slices. Invalid records are filtered
// out on read, like a collector-backed source would.
type Static struct {
	Instruments   []common.InstrumentRecord
	Regulations   []common.RegulationRecord
	News          []common.EventRecord
	Announcements []common.EventRecord
}

func (s *Static) ListValidInstrumentRecords(ctx context.Context) ([]common.InstrumentRecord, error) {
	return filterValid(ctx, s.Instruments, func(r common.InstrumentRecord) bool { return r.Valid })
}

func (s *Static) ListValidRegulationRecords(ctx context.Context) ([]common.RegulationRecord, error) {
	return filterValid(ctx, s.Regulations, func(r common.RegulationRecord) bool { return r.Valid })
}

func (s *Static) ListValidNewsRecords(ctx context.Context) ([]common.EventRecord, error) {
	return filterValid(ctx, s.News, func(r common.EventRecord) bool { return r.Valid })
}

func (s *Static) ListValidAnnouncementRecords(ctx context.Context) ([]common.EventRecord, error) {
	return filterValid(ctx, s.Announcements, func(r common.EventRecord) bool { return r.Valid })
}

func filterValid[T any](ctx context.Context, in []T, valid func(T) bool) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]T, 0, len(in))
	for _, r := range in {
		if valid(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// FilterValid keeps records for which valid returns true.
func FilterValid[T any](in []T, valid func(T) bool) []T {
	out, _ := filterValid(context.Background(), in, valid)
	return out
}
