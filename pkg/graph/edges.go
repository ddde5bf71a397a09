package graph

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/fingraph/pkg/common"
	"github.com/OFFIS-RIT/fingraph/pkg/logger"
)

const sourceTypeDerived = "derived"

// BuildEdges runs the four edge builders (Affects, RelatedTo, Contains,
// ManagedBy) against the nodes currently in the store and returns the number
// of edges written. References to unknown instrument codes are skipped.
func (g *GraphClient) BuildEdges(ctx context.Context) (int, error) {
	return g.runStandalone(ctx, g.buildEdges)
}

type edgeBuilder func(ctx context.Context, run *buildRun, instruments map[string]int64) (int, error)

func (g *GraphClient) buildEdges(ctx context.Context, run *buildRun) (int, error) {
	instruments, err := g.store.NodeIDsByCode(ctx, common.KindInstrument)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		logger.Error("[Graph][Edges] Failed to load instrument index", "err", err)
		run.fail(StageBuildEdges, "", fmt.Errorf("failed to load instrument index: %w", err))
		instruments = map[string]int64{}
	}

	builders := map[common.EdgeKind]edgeBuilder{
		common.EdgeAffects:   g.buildAffectsEdges,
		common.EdgeRelatedTo: g.buildRelatedToEdges,
		common.EdgeContains:  g.buildContainsEdges,
		common.EdgeManagedBy: g.buildManagedByEdges,
	}

	total := 0
	for _, kind := range common.EdgeKinds {
		n, err := builders[kind](ctx, run, instruments)
		total += n
		if err != nil {
			return total, err
		}
		logger.Debug("[Graph][Edges] Builder finished", "kind", kind, "count", n, "skipped", run.report.SkippedReferences[kind])
	}

	logger.Info("[Graph][Edges] Edges built", "count", total)
	return total, nil
}

func (g *GraphClient) writeEdge(ctx context.Context, run *buildRun, edge *common.Edge) bool {
	edge.SeenRun = run.id
	if _, err := g.store.UpsertEdge(ctx, edge); err != nil {
		ref := fmt.Sprintf("%s:%d->%d", edge.Kind, edge.SourceNodeID, edge.TargetNodeID)
		logger.Warn("[Graph][Edges] Failed to upsert edge", "edge", ref, "err", err)
		run.fail(StageBuildEdges, ref, fmt.Errorf("failed to upsert edge: %w", err))
		return false
	}
	return true
}

// resolve looks up an instrument code, counting unresolved references.
func resolve(run *buildRun, instruments map[string]int64, kind common.EdgeKind, code string) (int64, bool) {
	id, ok := instruments[code]
	if !ok {
		run.skip(kind)
		logger.Debug("[Graph][Edges] Unresolved instrument reference", "kind", kind, "code", code)
	}
	return id, ok
}

func (g *GraphClient) listAttributes(ctx context.Context, run *buildRun, kind common.EdgeKind, list func() error) (bool, error) {
	if err := list(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		logger.Error("[Graph][Edges] Failed to list attributes", "kind", kind, "err", err)
		run.fail(StageBuildEdges, string(kind), fmt.Errorf("failed to list attributes: %w", err))
		return false, nil
	}
	return true, nil
}

// buildAffectsEdges links regulations to the instruments they reference.
func (g *GraphClient) buildAffectsEdges(ctx context.Context, run *buildRun, instruments map[string]int64) (int, error) {
	var regulations []common.RegulationAttributes
	ok, err := g.listAttributes(ctx, run, common.EdgeAffects, func() (err error) {
		regulations, err = g.store.ListRegulationAttributes(ctx)
		return err
	})
	if err != nil || !ok {
		return 0, err
	}

	count := 0
	for _, reg := range regulations {
		if len(reg.RelatedInstruments) == 0 {
			continue
		}
		strength := ImpactStrength(reg.ImpactLevel)
		for _, code := range reg.RelatedInstruments {
			if err := ctx.Err(); err != nil {
				return count, err
			}
			target, ok := resolve(run, instruments, common.EdgeAffects, code)
			if !ok {
				continue
			}
			edge := &common.Edge{
				SourceNodeID: reg.NodeID,
				TargetNodeID: target,
				Kind:         common.EdgeAffects,
				Properties:   common.EdgeProperties{ImpactLevel: reg.ImpactLevel},
				Strength:     strength,
				Confidence:   affectsConfidence,
				SourceType:   string(common.KindRegulation),
				SourceID:     reg.SourceID,
			}
			if g.writeEdge(ctx, run, edge) {
				count++
			}
		}
	}
	return count, nil
}

// buildRelatedToEdges links news and announcements to affected instruments.
func (g *GraphClient) buildRelatedToEdges(ctx context.Context, run *buildRun, instruments map[string]int64) (int, error) {
	var events []common.EventAttributes
	ok, err := g.listAttributes(ctx, run, common.EdgeRelatedTo, func() (err error) {
		events, err = g.store.ListEventAttributes(ctx)
		return err
	})
	if err != nil || !ok {
		return 0, err
	}

	count := 0
	for _, ev := range events {
		if len(ev.AffectedInstruments) == 0 {
			continue
		}
		strength := SentimentStrength(ev.SentimentScore)
		for _, code := range ev.AffectedInstruments {
			if err := ctx.Err(); err != nil {
				return count, err
			}
			target, ok := resolve(run, instruments, common.EdgeRelatedTo, code)
			if !ok {
				continue
			}
			edge := &common.Edge{
				SourceNodeID: ev.NodeID,
				TargetNodeID: target,
				Kind:         common.EdgeRelatedTo,
				Properties: common.EdgeProperties{
					Sentiment:      ev.SentimentLabel,
					SentimentScore: ev.SentimentScore,
				},
				Strength:   strength,
				Confidence: relatedToConfidence,
				SourceType: ev.EventType,
				SourceID:   ev.SourceID,
			}
			if g.writeEdge(ctx, run, edge) {
				count++
			}
		}
	}
	return count, nil
}

// buildContainsEdges links instruments to the assets they own.
func (g *GraphClient) buildContainsEdges(ctx context.Context, run *buildRun, instruments map[string]int64) (int, error) {
	var assets []common.AssetAttributes
	ok, err := g.listAttributes(ctx, run, common.EdgeContains, func() (err error) {
		assets, err = g.store.ListAssetAttributes(ctx)
		return err
	})
	if err != nil || !ok {
		return 0, err
	}

	count := 0
	for _, asset := range assets {
		for _, code := range asset.OwnedBy {
			if err := ctx.Err(); err != nil {
				return count, err
			}
			source, ok := resolve(run, instruments, common.EdgeContains, code)
			if !ok {
				continue
			}
			edge := &common.Edge{
				SourceNodeID: source,
				TargetNodeID: asset.NodeID,
				Kind:         common.EdgeContains,
				Properties:   common.EdgeProperties{AssetType: asset.AssetType},
				Strength:     structuralStrength,
				Confidence:   structuralConfidence,
				SourceType:   sourceTypeDerived,
			}
			if g.writeEdge(ctx, run, edge) {
				count++
			}
		}
	}
	return count, nil
}

// buildManagedByEdges links instruments to their managing entity.
func (g *GraphClient) buildManagedByEdges(ctx context.Context, run *buildRun, instruments map[string]int64) (int, error) {
	var entities []common.EntityAttributes
	ok, err := g.listAttributes(ctx, run, common.EdgeManagedBy, func() (err error) {
		entities, err = g.store.ListEntityAttributes(ctx)
		return err
	})
	if err != nil || !ok {
		return 0, err
	}

	count := 0
	for _, entity := range entities {
		for _, code := range entity.Managed {
			if err := ctx.Err(); err != nil {
				return count, err
			}
			source, ok := resolve(run, instruments, common.EdgeManagedBy, code)
			if !ok {
				continue
			}
			edge := &common.Edge{
				SourceNodeID: source,
				TargetNodeID: entity.NodeID,
				Kind:         common.EdgeManagedBy,
				Properties:   common.EdgeProperties{FundType: entity.EntityType},
				Strength:     structuralStrength,
				Confidence:   structuralConfidence,
				SourceType:   sourceTypeDerived,
			}
			if g.writeEdge(ctx, run, edge) {
				count++
			}
		}
	}
	return count, nil
}
