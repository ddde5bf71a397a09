package graph

import (
	"context"
	"errors"
	"time"

	"github.com/OFFIS-RIT/fingraph/pkg/source"
	"github.com/OFFIS-RIT/fingraph/pkg/store"
)

// GraphClient runs the graph build pipeline (extraction, edge construction,
// scoring, reconciliation) against a store and answers neighborhood queries.
//
// A GraphClient should be created using NewGraphClient. Several clients can
// coexist, e.g. one per tenant store.
type GraphClient struct {
	store      store.GraphStorage
	source     source.RecordSource
	maxRetries int
	retryDelay time.Duration
	reconcile  bool
	onChange   func(ctx context.Context)
}

// NewGraphClientParams defines the configuration parameters for creating
// a new GraphClient.
//
// Store is required. Source may be nil for a query-only client; extraction
// then reports every record set as unavailable. MaxRetries bounds the reads
// against the record source; RetryDelay is the first wait between them and
// doubles after every failed read. Reconcile enables the mark-and-sweep pass at
// the end of BuildGraph. OnChange is called after every stage that mutated
// the graph, e.g. to invalidate caches.
type NewGraphClientParams struct {
	Store      store.GraphStorage
	Source     source.RecordSource
	MaxRetries int
	RetryDelay time.Duration
	Reconcile  bool
	OnChange   func(ctx context.Context)
}

// NewGraphClient creates and returns a new GraphClient configured with
// the provided parameters.
//
// Example:
//
//	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
//		Store:      pgxstore.NewGraphDBStorageWithConnection(pool),
//		Source:     pgxsource.NewRecordSource(pool),
//		MaxRetries: 3,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
func NewGraphClient(params NewGraphClientParams) (*GraphClient, error) {
	if params.Store == nil {
		return nil, errors.New("graph store is nil")
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelay := params.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 500 * time.Millisecond
	}
	return &GraphClient{
		store:      params.Store,
		source:     params.Source,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		reconcile:  params.Reconcile,
		onChange:   params.OnChange,
	}, nil
}

func (g *GraphClient) notifyChange(ctx context.Context) {
	if g.onChange != nil {
		g.onChange(ctx)
	}
}
