package graph

import (
	"fmt"
	"time"

	"github.com/OFFIS-RIT/fingraph/pkg/common"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Stage names used in reports and logs.
const (
	StageExtractInstruments = "extract_instruments"
	StageExtractRegulations = "extract_regulations"
	StageExtractEvents      = "extract_events"
	StageExtractAssets      = "extract_assets"
	StageExtractEntities    = "extract_entities"
	StageBuildEdges         = "build_edges"
	StageReconcile          = "reconcile"
	StageScore              = "score"
)

// Failure records one recovered problem during a build: an unavailable
// record set or a write that was skipped.
type Failure struct {
	Stage   string `json:"stage"`
	Ref     string `json:"ref,omitempty"`
	Message string `json:"message"`
}

// BuildReport summarizes one BuildGraph run. Counts only include successful
// writes; Failures explains counts lower than expected.
type BuildReport struct {
	RunID             string                   `json:"run_id"`
	InstrumentCount   int                      `json:"instrument_count"`
	RegulationCount   int                      `json:"regulation_count"`
	EventCount        int                      `json:"event_count"`
	AssetCount        int                      `json:"asset_count"`
	EntityCount       int                      `json:"entity_count"`
	EdgeCount         int                      `json:"edge_count"`
	ScoredCount       int                      `json:"scored_count"`
	SkippedReferences map[common.EdgeKind]int  `json:"skipped_references"`
	Reconciled        bool                     `json:"reconciled"`
	SweptNodes        int                      `json:"swept_nodes"`
	SweptEdges        int                      `json:"swept_edges"`
	Failures          []Failure                `json:"failures,omitempty"`
	StageDurations    map[string]time.Duration `json:"stage_durations"`
	StartedAt         time.Time                `json:"started_at"`
	Duration          time.Duration            `json:"duration"`
}

// buildRun carries the state of one pipeline execution. Every node and edge
// written during the run is stamped with its id.
type buildRun struct {
	id                string
	report            *BuildReport
	sourceUnavailable bool
}

func newRunID() (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("failed to generate run id: %w", err)
	}
	return id, nil
}

func newBuildRun() (*buildRun, error) {
	id, err := newRunID()
	if err != nil {
		return nil, err
	}
	return &buildRun{
		id: id,
		report: &BuildReport{
			RunID:             id,
			SkippedReferences: make(map[common.EdgeKind]int),
			StageDurations:    make(map[string]time.Duration),
			StartedAt:         time.Now(),
		},
	}, nil
}

func (r *buildRun) fail(stage, ref string, err error) {
	r.report.Failures = append(r.report.Failures, Failure{
		Stage:   stage,
		Ref:     ref,
		Message: err.Error(),
	})
}

func (r *buildRun) skip(kind common.EdgeKind) {
	r.report.SkippedReferences[kind]++
}

func (r *buildRun) finish() *BuildReport {
	r.report.Duration = time.Since(r.report.StartedAt)
	return r.report
}
