package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/fingraph/internal/util"
	"github.com/OFFIS-RIT/fingraph/pkg/common"
	"github.com/OFFIS-RIT/fingraph/pkg/logger"
	"github.com/OFFIS-RIT/fingraph/pkg/store"
)

var (
	errSourceMissing = errors.New("record source not configured")
	errMissingID     = errors.New("record has no id")
)

// Fallback keys get their own prefix so they never collide with a natural
// code of the same kind.
const (
	nameKeyPrefix   = "name:"
	sourceKeyPrefix = "source:"
)

// ExtractInstrumentNodes upserts one Instrument node per valid instrument
// record and returns the number of successful writes.
func (g *GraphClient) ExtractInstrumentNodes(ctx context.Context) (int, error) {
	return g.runStandalone(ctx, g.extractInstruments)
}

// ExtractRegulationNodes upserts one Regulation node per valid regulation record.
func (g *GraphClient) ExtractRegulationNodes(ctx context.Context) (int, error) {
	return g.runStandalone(ctx, g.extractRegulations)
}

// ExtractEventNodes upserts one Event node per valid news and announcement record.
func (g *GraphClient) ExtractEventNodes(ctx context.Context) (int, error) {
	return g.runStandalone(ctx, g.extractEvents)
}

// ExtractAssetNodes groups instrument records by underlying asset and upserts
// one Asset node per distinct asset name.
func (g *GraphClient) ExtractAssetNodes(ctx context.Context) (int, error) {
	return g.runStandalone(ctx, g.extractAssets)
}

// ExtractEntityNodes groups instrument records by manager and upserts one
// ManagingEntity node per distinct manager name.
func (g *GraphClient) ExtractEntityNodes(ctx context.Context) (int, error) {
	return g.runStandalone(ctx, g.extractEntities)
}

// ExtractNodes runs the extractor for kind.
func (g *GraphClient) ExtractNodes(ctx context.Context, kind common.NodeKind) (int, error) {
	switch kind {
	case common.KindInstrument:
		return g.ExtractInstrumentNodes(ctx)
	case common.KindRegulation:
		return g.ExtractRegulationNodes(ctx)
	case common.KindEvent:
		return g.ExtractEventNodes(ctx)
	case common.KindAsset:
		return g.ExtractAssetNodes(ctx)
	case common.KindManagingEntity:
		return g.ExtractEntityNodes(ctx)
	}
	return 0, fmt.Errorf("unknown node kind %q", kind)
}

func (g *GraphClient) runStandalone(ctx context.Context, fn func(context.Context, *buildRun) (int, error)) (int, error) {
	run, err := newBuildRun()
	if err != nil {
		return 0, err
	}
	n, err := fn(ctx, run)
	if n > 0 {
		g.notifyChange(ctx)
	}
	return n, err
}

// readRecords reads one record set with retries. A set that stays unavailable
// is logged and recorded on the run; the caller then extracts nothing.
func readRecords[T any](
	ctx context.Context,
	g *GraphClient,
	run *buildRun,
	stage string,
	read func(ctx context.Context) ([]T, error),
) ([]T, bool, error) {
	if g.source == nil {
		logger.Warn("[Graph][Extract] Record source unavailable", "stage", stage, "err", errSourceMissing)
		run.fail(stage, "", errSourceMissing)
		run.sourceUnavailable = true
		return nil, false, nil
	}

	records, err := util.RetryBackoff(ctx, g.maxRetries, g.retryDelay, read)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, ctxErr
		}
		logger.Error("[Graph][Extract] Record source unavailable", "stage", stage, "err", err)
		run.fail(stage, "", fmt.Errorf("failed to read records: %w", err))
		run.sourceUnavailable = true
		return nil, false, nil
	}
	return records, true, nil
}

// writeNode upserts node and its attribute record. Failures are logged and
// recorded, never returned: a single bad record must not stop the stage.
func (g *GraphClient) writeNode(
	ctx context.Context,
	run *buildRun,
	stage string,
	node *common.Node,
	writeAttrs func(nodeID int64) error,
) bool {
	node.SeenRun = run.id
	id, err := g.store.UpsertNode(ctx, node)
	if err != nil {
		logger.Warn("[Graph][Extract] Failed to upsert node", "stage", stage, "key", node.Key, "err", err)
		run.fail(stage, node.Key, fmt.Errorf("failed to upsert node: %w", err))
		return false
	}
	if err := writeAttrs(id); err != nil {
		logger.Warn("[Graph][Extract] Failed to upsert attributes", "stage", stage, "key", node.Key, "node_id", id, "err", err)
		run.fail(stage, node.Key, fmt.Errorf("failed to upsert attributes: %w", err))
		return false
	}
	return true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func cleanCodes(codes []string) []string {
	trimmed := make([]string, 0, len(codes))
	for _, c := range codes {
		trimmed = append(trimmed, strings.TrimSpace(c))
	}
	out := store.DedupeStrings(trimmed)
	if out == nil {
		out = []string{}
	}
	return out
}

func (g *GraphClient) extractInstruments(ctx context.Context, run *buildRun) (int, error) {
	records, ok, err := readRecords(ctx, g, run, StageExtractInstruments, g.sourceInstruments)
	if err != nil || !ok {
		return 0, err
	}

	count := 0
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		code := strings.TrimSpace(r.Code)
		name := firstNonEmpty(r.Name, code)
		if name == "" {
			run.fail(StageExtractInstruments, r.ID, errors.New("record has neither code nor name"))
			continue
		}
		key := code
		if key == "" {
			key = nameKeyPrefix + name
		}

		node := &common.Node{
			Kind: common.KindInstrument,
			Key:  key,
			Name: name,
			Code: code,
			Properties: common.InstrumentProperties{
				Exchange:       strings.TrimSpace(r.Exchange),
				InstrumentType: strings.TrimSpace(r.InstrumentType),
				ListDate:       strings.TrimSpace(r.ListDate),
			},
			SourceTable: common.SourceTableInstruments,
			SourceID:    r.ID,
		}
		ok := g.writeNode(ctx, run, StageExtractInstruments, node, func(nodeID int64) error {
			return g.store.UpsertInstrumentAttributes(ctx, common.InstrumentAttributes{
				NodeID:          nodeID,
				Code:            code,
				Name:            name,
				Exchange:        strings.TrimSpace(r.Exchange),
				InstrumentType:  strings.TrimSpace(r.InstrumentType),
				ListDate:        strings.TrimSpace(r.ListDate),
				IssueSize:       r.IssueSize,
				UnderlyingAsset: strings.TrimSpace(r.UnderlyingAsset),
				AssetType:       strings.TrimSpace(r.AssetType),
				AssetLocation:   strings.TrimSpace(r.AssetLocation),
				ManagerName:     strings.TrimSpace(r.ManagerName),
				ManagerType:     strings.TrimSpace(r.ManagerType),
			})
		})
		if ok {
			count++
		}
	}

	logger.Info("[Graph][Extract] Instruments extracted", "count", count, "records", len(records))
	return count, nil
}

func (g *GraphClient) extractRegulations(ctx context.Context, run *buildRun) (int, error) {
	records, ok, err := readRecords(ctx, g, run, StageExtractRegulations, g.sourceRegulations)
	if err != nil || !ok {
		return 0, err
	}

	count := 0
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		code := strings.TrimSpace(r.DocumentNumber)
		key := code
		if code == "" {
			id := strings.TrimSpace(r.ID)
			if id == "" {
				run.fail(StageExtractRegulations, "", errors.New("record has neither document number nor id"))
				continue
			}
			code = "regulation-" + id
			key = sourceKeyPrefix + code
		}
		name := firstNonEmpty(r.Title, code)
		related := cleanCodes(r.RelatedInstruments)

		node := &common.Node{
			Kind: common.KindRegulation,
			Key:  key,
			Name: name,
			Code: code,
			Properties: common.RegulationProperties{
				Authority:   strings.TrimSpace(r.Authority),
				PublishDate: strings.TrimSpace(r.PublishDate),
				ImpactLevel: strings.TrimSpace(r.ImpactLevel),
				Category:    strings.TrimSpace(r.Category),
			},
			SourceTable: common.SourceTableRegulations,
			SourceID:    r.ID,
		}
		ok := g.writeNode(ctx, run, StageExtractRegulations, node, func(nodeID int64) error {
			return g.store.UpsertRegulationAttributes(ctx, common.RegulationAttributes{
				NodeID:             nodeID,
				DocumentNumber:     strings.TrimSpace(r.DocumentNumber),
				Title:              name,
				Authority:          strings.TrimSpace(r.Authority),
				PublishDate:        strings.TrimSpace(r.PublishDate),
				ImpactLevel:        strings.TrimSpace(r.ImpactLevel),
				Category:           strings.TrimSpace(r.Category),
				RelatedInstruments: related,
				SourceID:           r.ID,
			})
		})
		if ok {
			count++
		}
	}

	logger.Info("[Graph][Extract] Regulations extracted", "count", count, "records", len(records))
	return count, nil
}

func (g *GraphClient) extractEvents(ctx context.Context, run *buildRun) (int, error) {
	news, err := g.extractEventStream(ctx, run, common.EventTypeNews, common.SourceTableNews, g.sourceNews)
	if err != nil {
		return news, err
	}
	announcements, err := g.extractEventStream(ctx, run, common.EventTypeAnnouncement, common.SourceTableAnnouncements, g.sourceAnnouncements)
	count := news + announcements
	if err != nil {
		return count, err
	}

	logger.Info("[Graph][Extract] Events extracted", "count", count, "news", news, "announcements", announcements)
	return count, nil
}

func (g *GraphClient) extractEventStream(
	ctx context.Context,
	run *buildRun,
	eventType string,
	sourceTable string,
	read func(ctx context.Context) ([]common.EventRecord, error),
) (int, error) {
	records, ok, err := readRecords(ctx, g, run, StageExtractEvents, read)
	if err != nil || !ok {
		return 0, err
	}

	count := 0
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		id := strings.TrimSpace(r.ID)
		if id == "" {
			run.fail(StageExtractEvents, eventType, errMissingID)
			continue
		}
		code := eventType + "-" + id
		name := firstNonEmpty(r.Title, code)
		affected := cleanCodes(r.AffectedInstruments)
		label := strings.TrimSpace(r.SentimentLabel)

		node := &common.Node{
			Kind: common.KindEvent,
			Key:  code,
			Name: name,
			Code: code,
			Properties: common.EventProperties{
				EventType:      eventType,
				PublishDate:    strings.TrimSpace(r.PublishDate),
				Sentiment:      label,
				SentimentScore: r.SentimentScore,
			},
			SourceTable: sourceTable,
			SourceID:    r.ID,
		}
		ok := g.writeNode(ctx, run, StageExtractEvents, node, func(nodeID int64) error {
			return g.store.UpsertEventAttributes(ctx, common.EventAttributes{
				NodeID:              nodeID,
				EventType:           eventType,
				Title:               name,
				PublishDate:         strings.TrimSpace(r.PublishDate),
				SentimentLabel:      label,
				SentimentScore:      r.SentimentScore,
				AffectedInstruments: affected,
				URL:                 strings.TrimSpace(r.URL),
				SourceID:            r.ID,
			})
		})
		if ok {
			count++
		}
	}
	return count, nil
}

// instrumentGroup accumulates the instruments referencing one asset or
// manager name.
type instrumentGroup struct {
	name     string
	subtype  string
	location string
	codes    []string
}

// groupInstruments groups records by the name returned by nameOf, in order of
// first appearance. Records with an empty name are left out.
func groupInstruments(
	records []common.InstrumentRecord,
	nameOf func(common.InstrumentRecord) string,
	subtypeOf func(common.InstrumentRecord) string,
	locationOf func(common.InstrumentRecord) string,
) []*instrumentGroup {
	groups := make([]*instrumentGroup, 0)
	byName := make(map[string]*instrumentGroup)
	for _, r := range records {
		name := strings.TrimSpace(nameOf(r))
		if name == "" {
			continue
		}
		grp, ok := byName[name]
		if !ok {
			grp = &instrumentGroup{name: name}
			byName[name] = grp
			groups = append(groups, grp)
		}
		if grp.subtype == "" {
			grp.subtype = strings.TrimSpace(subtypeOf(r))
		}
		if grp.location == "" && locationOf != nil {
			grp.location = strings.TrimSpace(locationOf(r))
		}
		grp.codes = append(grp.codes, strings.TrimSpace(r.Code))
	}
	for _, grp := range groups {
		grp.codes = cleanCodes(grp.codes)
	}
	return groups
}

func (g *GraphClient) extractAssets(ctx context.Context, run *buildRun) (int, error) {
	records, ok, err := readRecords(ctx, g, run, StageExtractAssets, g.sourceInstruments)
	if err != nil || !ok {
		return 0, err
	}

	groups := groupInstruments(
		records,
		func(r common.InstrumentRecord) string { return r.UnderlyingAsset },
		func(r common.InstrumentRecord) string { return r.AssetType },
		func(r common.InstrumentRecord) string { return r.AssetLocation },
	)

	count := 0
	for _, grp := range groups {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		node := &common.Node{
			Kind: common.KindAsset,
			Key:  grp.name,
			Name: grp.name,
			Properties: common.AssetProperties{
				AssetType:  grp.subtype,
				Location:   grp.location,
				OwnerCount: len(grp.codes),
			},
		}
		ok := g.writeNode(ctx, run, StageExtractAssets, node, func(nodeID int64) error {
			return g.store.UpsertAssetAttributes(ctx, common.AssetAttributes{
				NodeID:    nodeID,
				Name:      grp.name,
				AssetType: grp.subtype,
				Location:  grp.location,
				OwnedBy:   grp.codes,
			})
		})
		if ok {
			count++
		}
	}

	logger.Info("[Graph][Extract] Assets extracted", "count", count, "records", len(records))
	return count, nil
}

func (g *GraphClient) extractEntities(ctx context.Context, run *buildRun) (int, error) {
	records, ok, err := readRecords(ctx, g, run, StageExtractEntities, g.sourceInstruments)
	if err != nil || !ok {
		return 0, err
	}

	groups := groupInstruments(
		records,
		func(r common.InstrumentRecord) string { return r.ManagerName },
		func(r common.InstrumentRecord) string { return r.ManagerType },
		nil,
	)

	count := 0
	for _, grp := range groups {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		node := &common.Node{
			Kind: common.KindManagingEntity,
			Key:  grp.name,
			Name: grp.name,
			Properties: common.EntityProperties{
				EntityType:   grp.subtype,
				ManagedCount: len(grp.codes),
			},
		}
		ok := g.writeNode(ctx, run, StageExtractEntities, node, func(nodeID int64) error {
			return g.store.UpsertEntityAttributes(ctx, common.EntityAttributes{
				NodeID:       nodeID,
				Name:         grp.name,
				EntityType:   grp.subtype,
				Managed:      grp.codes,
				ManagedCount: len(grp.codes),
			})
		})
		if ok {
			count++
		}
	}

	logger.Info("[Graph][Extract] Managing entities extracted", "count", count, "records", len(records))
	return count, nil
}

func (g *GraphClient) sourceInstruments(ctx context.Context) ([]common.InstrumentRecord, error) {
	return g.source.ListValidInstrumentRecords(ctx)
}

func (g *GraphClient) sourceRegulations(ctx context.Context) ([]common.RegulationRecord, error) {
	return g.source.ListValidRegulationRecords(ctx)
}

func (g *GraphClient) sourceNews(ctx context.Context) ([]common.EventRecord, error) {
	return g.source.ListValidNewsRecords(ctx)
}

func (g *GraphClient) sourceAnnouncements(ctx context.Context) ([]common.EventRecord, error) {
	return g.source.ListValidAnnouncementRecords(ctx)
}
