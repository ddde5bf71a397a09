package pgx

import (
	"strings"
	"testing"

	"github.com/OFFIS-RIT/fingraph/pkg/common"
)

func TestEventsQuery(t *testing.T) {
	tests := []struct {
		table string
		want  string
	}{
		{common.SourceTableNews, `FROM "raw_news_records"`},
		{common.SourceTableAnnouncements, `FROM "raw_announcement_records"`},
	}
	for _, tt := range tests {
		got := eventsQuery(tt.table)
		if !strings.Contains(got, tt.want) {
			t.Fatalf("expected query to contain %q, got %q", tt.want, got)
		}
		if !strings.Contains(got, "WHERE is_valid") {
			t.Fatalf("expected query to filter valid records, got %q", got)
		}
	}
}
