package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/fingraph/pkg/common"
	"github.com/OFFIS-RIT/fingraph/pkg/logger"
)

// BuildGraph runs the full pipeline: the five extractors, edge construction,
// the optional reconciliation pass and importance scoring.
//
// Unavailable record sets and failed writes are recovered from and listed in
// the report. An error is returned when the store cannot be reached before
// the build, when ctx is cancelled, or when scoring cannot read the graph; the
// partial report is returned alongside it.
func (g *GraphClient) BuildGraph(ctx context.Context) (*BuildReport, error) {
	if err := g.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to reach graph store: %w", err)
	}

	run, err := newBuildRun()
	if err != nil {
		return nil, err
	}
	report := run.report
	logger.Info("[Graph] Build started", "run_id", run.id)

	changed := false
	defer func() {
		if changed {
			g.notifyChange(ctx)
		}
	}()

	stages := []struct {
		name  string
		fn    func(context.Context, *buildRun) (int, error)
		count *int
	}{
		{StageExtractInstruments, g.extractInstruments, &report.InstrumentCount},
		{StageExtractRegulations, g.extractRegulations, &report.RegulationCount},
		{StageExtractEvents, g.extractEvents, &report.EventCount},
		{StageExtractAssets, g.extractAssets, &report.AssetCount},
		{StageExtractEntities, g.extractEntities, &report.EntityCount},
		{StageBuildEdges, g.buildEdges, &report.EdgeCount},
	}
	for _, stage := range stages {
		start := time.Now()
		n, err := stage.fn(ctx, run)
		report.StageDurations[stage.name] = time.Since(start)
		*stage.count = n
		if n > 0 {
			changed = true
		}
		if err != nil {
			return run.finish(), fmt.Errorf("failed to run stage %s: %w", stage.name, err)
		}
	}

	if g.reconcile {
		if len(report.Failures) == 0 {
			start := time.Now()
			nodes, edges, err := g.Reconcile(ctx, run.id)
			report.StageDurations[StageReconcile] = time.Since(start)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return run.finish(), ctxErr
				}
				logger.Error("[Graph] Reconciliation failed", "run_id", run.id, "err", err)
				run.fail(StageReconcile, run.id, err)
			} else {
				report.Reconciled = true
				report.SweptNodes = nodes
				report.SweptEdges = edges
			}
		} else {
			logger.Warn("[Graph] Reconciliation skipped, run has failures", "run_id", run.id, "failures", len(report.Failures))
		}
	}

	start := time.Now()
	scored, err := g.scoreAll(ctx, run)
	report.StageDurations[StageScore] = time.Since(start)
	report.ScoredCount = scored
	if scored > 0 {
		changed = true
	}
	if err != nil {
		return run.finish(), fmt.Errorf("failed to score nodes: %w", err)
	}

	run.finish()
	logger.Info("[Graph] Build finished",
		"run_id", run.id,
		"instruments", report.InstrumentCount,
		"regulations", report.RegulationCount,
		"events", report.EventCount,
		"assets", report.AssetCount,
		"entities", report.EntityCount,
		"edges", report.EdgeCount,
		"failures", len(report.Failures),
		"duration", report.Duration,
	)
	return report, nil
}

// GetNode returns the node with id, or store.ErrNotFound.
func (g *GraphClient) GetNode(ctx context.Context, id int64) (*common.Node, error) {
	return g.store.GetNode(ctx, id)
}

// ListNodes returns nodes ordered by importance score, highest first.
func (g *GraphClient) ListNodes(ctx context.Context, filter common.NodeFilter) ([]common.Node, error) {
	return g.store.ListNodes(ctx, filter)
}
