package graph

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/OFFIS-RIT/fingraph/pkg/common"
	"github.com/OFFIS-RIT/fingraph/pkg/source"
	"github.com/OFFIS-RIT/fingraph/pkg/store/memory"
)

// flakySource fails the regulation read a fixed number of times.
type flakySource struct {
	*source.Static
	regulationFailures int
	regulationCalls    int
}

func (f *flakySource) ListValidRegulationRecords(ctx context.Context) ([]common.RegulationRecord, error) {
	f.regulationCalls++
	if f.regulationCalls <= f.regulationFailures {
		return nil, errors.New("connection refused")
	}
	return f.Static.ListValidRegulationRecords(ctx)
}

func newTestClient(t *testing.T, src source.RecordSource, reconcile bool) (*GraphClient, *memory.GraphMemoryStorage) {
	t.Helper()
	mem := memory.New()
	client, err := NewGraphClient(NewGraphClientParams{
		Store:      mem,
		Source:     src,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		Reconcile:  reconcile,
	})
	if err != nil {
		t.Fatalf("expected no error creating client, got %v", err)
	}
	return client, mem
}

func nodeByKey(t *testing.T, mem *memory.GraphMemoryStorage, kind common.NodeKind, key string) common.Node {
	t.Helper()
	nodes, err := mem.ListNodes(context.Background(), common.NodeFilter{Kind: kind})
	if err != nil {
		t.Fatalf("expected no error listing nodes, got %v", err)
	}
	for _, n := range nodes {
		if n.Key == key {
			return n
		}
	}
	t.Fatalf("expected %s node %q to exist", kind, key)
	return common.Node{}
}

func edgesOfKind(t *testing.T, mem *memory.GraphMemoryStorage, kind common.EdgeKind) []common.Edge {
	t.Helper()
	edges, err := mem.ListEdges(context.Background())
	if err != nil {
		t.Fatalf("expected no error listing edges, got %v", err)
	}
	out := make([]common.Edge, 0)
	for _, e := range edges {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func portfolioSource() *source.Static {
	return &source.Static{
		Instruments: []common.InstrumentRecord{
			{ID: "1", Code: "I1", Name: "Instrument One", Exchange: "SSE", InstrumentType: "REIT", Valid: true},
			{ID: "2", Code: "A", Name: "Fund A", UnderlyingAsset: "Park X", AssetType: "industrial park", AssetLocation: "Suzhou", ManagerName: "Acme Capital", ManagerType: "public REIT", Valid: true},
			{ID: "3", Code: "B", Name: "Fund B", UnderlyingAsset: " Park X ", ManagerName: "Acme Capital", Valid: true},
			{ID: "4", Code: "LONE", Name: "Isolated", Valid: true},
			{ID: "5", Code: "BAD", Name: "Rejected by collector", Valid: false},
		},
		Regulations: []common.RegulationRecord{
			{ID: "10", DocumentNumber: "R1", Title: "Disclosure rules", ImpactLevel: "High", RelatedInstruments: []string{"I1"}, Valid: true},
			{ID: "11", DocumentNumber: "R2", Title: "Reporting update", ImpactLevel: "low", RelatedInstruments: []string{"I1", "MISSING"}, Valid: true},
			{ID: "12", Title: "Circular without number", ImpactLevel: "medium", Valid: true},
		},
		News: []common.EventRecord{
			{ID: "20", Title: "Fund A raises rents", SentimentLabel: "positive", SentimentScore: floatPtr(-0.6), AffectedInstruments: []string{"A"}, Valid: true},
		},
		Announcements: []common.EventRecord{
			{ID: "30", Title: "Quarterly report", AffectedInstruments: []string{"B"}, Valid: true},
		},
	}
}

func TestBuildGraph_Counts(t *testing.T) {
	client, _ := newTestClient(t, portfolioSource(), false)

	report, err := client.BuildGraph(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	got := []int{report.InstrumentCount, report.RegulationCount, report.EventCount, report.AssetCount, report.EntityCount, report.EdgeCount}
	want := []int{4, 3, 2, 1, 1, 8}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected counts %v, got %v", want, got)
	}
	if report.SkippedReferences[common.EdgeAffects] != 1 {
		t.Fatalf("expected 1 skipped affects reference, got %d", report.SkippedReferences[common.EdgeAffects])
	}
	if len(report.Failures) != 0 {
		t.Fatalf("expected no failures, got %+v", report.Failures)
	}
	if report.RunID == "" {
		t.Fatalf("expected run id to be set")
	}
	if report.ScoredCount != 11 {
		t.Fatalf("expected 11 scored nodes, got %d", report.ScoredCount)
	}
}

func TestBuildGraph_RegulationsAffectingOneInstrument(t *testing.T) {
	client, mem := newTestClient(t, portfolioSource(), false)
	if _, err := client.BuildGraph(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	i1 := nodeByKey(t, mem, common.KindInstrument, "I1")
	r1 := nodeByKey(t, mem, common.KindRegulation, "R1")
	r2 := nodeByKey(t, mem, common.KindRegulation, "R2")

	affects := edgesOfKind(t, mem, common.EdgeAffects)
	if len(affects) != 2 {
		t.Fatalf("expected 2 affects edges, got %d", len(affects))
	}
	strengths := map[int64]float64{}
	for _, e := range affects {
		if e.TargetNodeID != i1.ID {
			t.Fatalf("expected affects edge to target I1, got %d", e.TargetNodeID)
		}
		if e.Confidence != 0.9 {
			t.Fatalf("expected confidence 0.9, got %v", e.Confidence)
		}
		strengths[e.SourceNodeID] = e.Strength
	}
	if strengths[r1.ID] != 1.0 || strengths[r2.ID] != 0.4 {
		t.Fatalf("expected strengths 1.0 and 0.4, got %v", strengths)
	}

	i1 = nodeByKey(t, mem, common.KindInstrument, "I1")
	if i1.ConnectionCount != 2 {
		t.Fatalf("expected I1 connection count 2, got %d", i1.ConnectionCount)
	}
	if i1.ImportanceScore < 39.999 || i1.ImportanceScore > 40.001 {
		t.Fatalf("expected I1 importance 40, got %v", i1.ImportanceScore)
	}
}

func TestBuildGraph_SharedAsset(t *testing.T) {
	client, mem := newTestClient(t, portfolioSource(), false)
	if _, err := client.BuildGraph(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	assets, err := mem.ListAssetAttributes(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(assets) != 1 {
		t.Fatalf("expected 1 asset, got %d", len(assets))
	}
	park := assets[0]
	if park.Name != "Park X" {
		t.Fatalf("expected asset name 'Park X', got %q", park.Name)
	}
	if !reflect.DeepEqual(park.OwnedBy, []string{"A", "B"}) {
		t.Fatalf("expected owned_by [A B], got %v", park.OwnedBy)
	}
	if park.AssetType != "industrial park" || park.Location != "Suzhou" {
		t.Fatalf("unexpected asset attributes: %+v", park)
	}

	contains := edgesOfKind(t, mem, common.EdgeContains)
	if len(contains) != 2 {
		t.Fatalf("expected 2 contains edges, got %d", len(contains))
	}
	for _, e := range contains {
		if e.TargetNodeID != park.NodeID {
			t.Fatalf("expected contains edge to target the asset, got %d", e.TargetNodeID)
		}
		if e.Strength != 1.0 || e.Confidence != 1.0 {
			t.Fatalf("expected strength/confidence 1.0/1.0, got %v/%v", e.Strength, e.Confidence)
		}
		if e.Properties.AssetType != "industrial park" {
			t.Fatalf("expected asset_type property, got %q", e.Properties.AssetType)
		}
	}

	entity := nodeByKey(t, mem, common.KindManagingEntity, "Acme Capital")
	props, ok := entity.Properties.(common.EntityProperties)
	if !ok {
		t.Fatalf("expected entity properties, got %T", entity.Properties)
	}
	if props.ManagedCount != 2 || props.EntityType != "public REIT" {
		t.Fatalf("unexpected entity properties: %+v", props)
	}
	if len(edgesOfKind(t, mem, common.EdgeManagedBy)) != 2 {
		t.Fatalf("expected 2 managed_by edges")
	}
}

func TestBuildGraph_EventsAndSynthesizedCodes(t *testing.T) {
	client, mem := newTestClient(t, portfolioSource(), false)
	if _, err := client.BuildGraph(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	circular := nodeByKey(t, mem, common.KindRegulation, "source:regulation-12")
	if circular.Code != "regulation-12" {
		t.Fatalf("expected synthesized code regulation-12, got %q", circular.Code)
	}
	news := nodeByKey(t, mem, common.KindEvent, "news-20")
	announcement := nodeByKey(t, mem, common.KindEvent, "announcement-30")

	related := edgesOfKind(t, mem, common.EdgeRelatedTo)
	if len(related) != 2 {
		t.Fatalf("expected 2 related_to edges, got %d", len(related))
	}
	for _, e := range related {
		if e.Confidence != 0.8 {
			t.Fatalf("expected confidence 0.8, got %v", e.Confidence)
		}
		switch e.SourceNodeID {
		case news.ID:
			if e.Strength != 0.6 || e.SourceType != common.EventTypeNews {
				t.Fatalf("unexpected news edge: %+v", e)
			}
			if e.Properties.Sentiment != "positive" {
				t.Fatalf("expected sentiment label on edge, got %q", e.Properties.Sentiment)
			}
		case announcement.ID:
			if e.Strength != 0.5 || e.SourceType != common.EventTypeAnnouncement {
				t.Fatalf("unexpected announcement edge: %+v", e)
			}
		default:
			t.Fatalf("unexpected related_to source %d", e.SourceNodeID)
		}
	}
}

func TestBuildGraph_IsolatedInstrumentScoresZero(t *testing.T) {
	client, mem := newTestClient(t, portfolioSource(), false)
	if _, err := client.BuildGraph(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	lone := nodeByKey(t, mem, common.KindInstrument, "LONE")
	if lone.ConnectionCount != 0 || lone.ImportanceScore != 0 {
		t.Fatalf("expected isolated node to score 0, got count=%d score=%v", lone.ConnectionCount, lone.ImportanceScore)
	}
}

func TestBuildGraph_ScoresWithinBounds(t *testing.T) {
	client, mem := newTestClient(t, portfolioSource(), false)
	if _, err := client.BuildGraph(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	nodes, _ := mem.ListNodes(context.Background(), common.NodeFilter{})
	for _, n := range nodes {
		if n.ImportanceScore < 0 || n.ImportanceScore > 100 {
			t.Fatalf("expected importance in [0,100], got %v for %q", n.ImportanceScore, n.Key)
		}
		if n.Name == "" {
			t.Fatalf("expected non-empty name for node %d", n.ID)
		}
	}
	edges, _ := mem.ListEdges(context.Background())
	for _, e := range edges {
		if e.Strength < 0 || e.Strength > 1 || e.Confidence < 0 || e.Confidence > 1 {
			t.Fatalf("expected strength/confidence in [0,1], got %v/%v", e.Strength, e.Confidence)
		}
	}
}

func TestBuildGraph_Idempotent(t *testing.T) {
	client, mem := newTestClient(t, portfolioSource(), false)
	ctx := context.Background()

	first, err := client.BuildGraph(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	nodesBefore, _ := mem.ListNodes(ctx, common.NodeFilter{})
	edgesBefore, _ := mem.ListEdges(ctx)

	second, err := client.BuildGraph(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	nodesAfter, _ := mem.ListNodes(ctx, common.NodeFilter{})
	edgesAfter, _ := mem.ListEdges(ctx)

	if first.EdgeCount != second.EdgeCount || first.InstrumentCount != second.InstrumentCount {
		t.Fatalf("expected equal counts across builds, got %+v and %+v", first, second)
	}
	if len(nodesBefore) != len(nodesAfter) || len(edgesBefore) != len(edgesAfter) {
		t.Fatalf("expected stable graph size, got %d/%d nodes and %d/%d edges",
			len(nodesBefore), len(nodesAfter), len(edgesBefore), len(edgesAfter))
	}

	ids := func(nodes []common.Node) map[string]int64 {
		out := make(map[string]int64)
		for _, n := range nodes {
			out[string(n.Kind)+"/"+n.Key] = n.ID
		}
		return out
	}
	if !reflect.DeepEqual(ids(nodesBefore), ids(nodesAfter)) {
		t.Fatalf("expected node ids to be stable across builds")
	}
	for i := range nodesBefore {
		if nodesBefore[i].ImportanceScore != nodesAfter[i].ImportanceScore {
			t.Fatalf("expected stable importance for %q", nodesBefore[i].Key)
		}
	}
}

func TestBuildGraph_EdgeKeyUnique(t *testing.T) {
	src := portfolioSource()
	src.Regulations = append(src.Regulations, common.RegulationRecord{
		ID: "13", DocumentNumber: "R3", Title: "Duplicate refs", RelatedInstruments: []string{"I1", "I1", " I1 "}, Valid: true,
	})
	client, mem := newTestClient(t, src, false)
	if _, err := client.BuildGraph(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	seen := make(map[common.EdgeKey]struct{})
	edges, _ := mem.ListEdges(context.Background())
	for _, e := range edges {
		if _, dup := seen[e.Key()]; dup {
			t.Fatalf("expected unique edge keys, got duplicate %+v", e.Key())
		}
		seen[e.Key()] = struct{}{}
	}
}

func TestBuildGraph_SourceUnavailable(t *testing.T) {
	src := &flakySource{Static: portfolioSource(), regulationFailures: 100}
	client, _ := newTestClient(t, src, true)

	report, err := client.BuildGraph(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if report.RegulationCount != 0 {
		t.Fatalf("expected 0 regulations, got %d", report.RegulationCount)
	}
	if report.InstrumentCount != 4 || report.EventCount != 2 {
		t.Fatalf("expected other extractors to proceed, got %+v", report)
	}
	if src.regulationCalls != 3 {
		t.Fatalf("expected 3 read attempts, got %d", src.regulationCalls)
	}
	if len(report.Failures) != 1 || report.Failures[0].Stage != StageExtractRegulations {
		t.Fatalf("expected one regulation failure, got %+v", report.Failures)
	}
	if report.Reconciled {
		t.Fatalf("expected reconciliation to be skipped")
	}
}

func TestBuildGraph_SourceRecoversWithinRetries(t *testing.T) {
	src := &flakySource{Static: portfolioSource(), regulationFailures: 2}
	client, _ := newTestClient(t, src, false)

	start := time.Now()
	report, err := client.BuildGraph(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	// 1ms then 2ms between the three reads
	if elapsed := time.Since(start); elapsed < 3*time.Millisecond {
		t.Fatalf("expected reads to back off, build took %v", elapsed)
	}
	if report.RegulationCount != 3 {
		t.Fatalf("expected 3 regulations after retry, got %d", report.RegulationCount)
	}
}

func TestBuildGraph_NoSource(t *testing.T) {
	client, _ := newTestClient(t, nil, false)

	report, err := client.BuildGraph(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if report.InstrumentCount != 0 || report.EdgeCount != 0 {
		t.Fatalf("expected empty build, got %+v", report)
	}
	// news and announcements are read separately
	if len(report.Failures) != 6 {
		t.Fatalf("expected 6 unavailable record sets, got %d", len(report.Failures))
	}
}

func TestBuildGraph_CancelledContext(t *testing.T) {
	client, _ := newTestClient(t, portfolioSource(), false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.BuildGraph(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExtractInstrumentNodes_WriteFailureSkipsRecord(t *testing.T) {
	client, mem := newTestClient(t, portfolioSource(), false)
	mem.FailWrites(1, errors.New("disk full"))

	n, err := client.ExtractInstrumentNodes(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 instruments after one failed write, got %d", n)
	}
}

func TestExtractInstrumentNodes_NameFallbackKeepsOwnKey(t *testing.T) {
	src := &source.Static{Instruments: []common.InstrumentRecord{
		{ID: "1", Code: "", Name: "A", Valid: true},
		{ID: "2", Code: "A", Name: "Fund A", Valid: true},
	}}
	client, mem := newTestClient(t, src, false)

	n, err := client.ExtractInstrumentNodes(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 instruments, got %d", n)
	}
	byName := nodeByKey(t, mem, common.KindInstrument, "name:A")
	byCode := nodeByKey(t, mem, common.KindInstrument, "A")
	if byName.ID == byCode.ID {
		t.Fatalf("expected distinct nodes for name and code")
	}
	if byName.Code != "" || byCode.Name != "Fund A" {
		t.Fatalf("unexpected nodes: %+v %+v", byName, byCode)
	}
}

func TestExtractEventNodes_RejectsMissingID(t *testing.T) {
	src := &source.Static{News: []common.EventRecord{
		{ID: "", Title: "Unnamed one", Valid: true},
		{ID: " ", Title: "Unnamed two", Valid: true},
		{ID: "7", Title: "Named", Valid: true},
	}}
	client, mem := newTestClient(t, src, false)

	run, err := newBuildRun()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	n, err := client.extractEvents(context.Background(), run)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 event, got %d", n)
	}
	nodes, _ := mem.ListNodes(context.Background(), common.NodeFilter{Kind: common.KindEvent})
	if len(nodes) != 1 || nodes[0].Key != "news-7" {
		t.Fatalf("expected only news-7, got %+v", nodes)
	}
	if len(run.report.Failures) != 2 {
		t.Fatalf("expected 2 failures, got %+v", run.report.Failures)
	}
	for _, f := range run.report.Failures {
		if f.Stage != StageExtractEvents {
			t.Fatalf("expected %s failure, got %+v", StageExtractEvents, f)
		}
	}
}

func TestExtractRegulationNodes_SynthesizedKeys(t *testing.T) {
	src := &source.Static{Regulations: []common.RegulationRecord{
		{ID: "1", DocumentNumber: "regulation-12", Title: "Numbered", Valid: true},
		{ID: "12", Title: "Unnumbered", Valid: true},
		{ID: "", Title: "Neither", Valid: true},
	}}
	client, mem := newTestClient(t, src, false)

	run, err := newBuildRun()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	n, err := client.extractRegulations(context.Background(), run)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 regulations, got %d", n)
	}
	numbered := nodeByKey(t, mem, common.KindRegulation, "regulation-12")
	unnumbered := nodeByKey(t, mem, common.KindRegulation, "source:regulation-12")
	if numbered.ID == unnumbered.ID || numbered.Name != "Numbered" || unnumbered.Name != "Unnumbered" {
		t.Fatalf("expected distinct regulations, got %+v %+v", numbered, unnumbered)
	}
	if len(run.report.Failures) != 1 || run.report.Failures[0].Stage != StageExtractRegulations {
		t.Fatalf("expected 1 regulation failure, got %+v", run.report.Failures)
	}
}

func TestBuildGraph_ChangedFieldUpdatesSameNode(t *testing.T) {
	src := portfolioSource()
	client, mem := newTestClient(t, src, false)
	ctx := context.Background()

	if _, err := client.BuildGraph(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	before, _ := mem.ListNodes(ctx, common.NodeFilter{})
	i1 := nodeByKey(t, mem, common.KindInstrument, "I1")

	src.Instruments[0].Exchange = "SZSE"
	if _, err := client.BuildGraph(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	after, _ := mem.ListNodes(ctx, common.NodeFilter{})
	if len(before) != len(after) {
		t.Fatalf("expected %d nodes after rebuild, got %d", len(before), len(after))
	}

	updated := nodeByKey(t, mem, common.KindInstrument, "I1")
	if updated.ID != i1.ID {
		t.Fatalf("expected node id %d to be kept, got %d", i1.ID, updated.ID)
	}
	props, ok := updated.Properties.(common.InstrumentProperties)
	if !ok {
		t.Fatalf("expected instrument properties, got %T", updated.Properties)
	}
	if props.Exchange != "SZSE" {
		t.Fatalf("expected exchange SZSE, got %q", props.Exchange)
	}
}

func TestBuildEdges_WriteFailureSkipsEdge(t *testing.T) {
	client, mem := newTestClient(t, portfolioSource(), false)
	ctx := context.Background()
	for _, kind := range common.NodeKinds {
		if _, err := client.ExtractNodes(ctx, kind); err != nil {
			t.Fatalf("expected no error extracting %s, got %v", kind, err)
		}
	}

	run, err := newBuildRun()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	mem.FailWrites(1, errors.New("disk full"))
	n, err := client.buildEdges(ctx, run)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 7 {
		t.Fatalf("expected 7 edges after one failed write, got %d", n)
	}
	edges, _ := mem.ListEdges(ctx)
	if len(edges) != 7 {
		t.Fatalf("expected 7 stored edges, got %d", len(edges))
	}
	if len(run.report.Failures) != 1 || run.report.Failures[0].Stage != StageBuildEdges {
		t.Fatalf("expected 1 edge failure, got %+v", run.report.Failures)
	}
}

func TestScoreAll_WriteFailureSkipsNode(t *testing.T) {
	client, mem := newTestClient(t, portfolioSource(), false)
	ctx := context.Background()
	if _, err := client.BuildGraph(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	run, err := newBuildRun()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	mem.FailWrites(1, errors.New("disk full"))
	n, err := client.scoreAll(ctx, run)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 10 {
		t.Fatalf("expected 10 scored nodes after one failed write, got %d", n)
	}
	if len(run.report.Failures) != 1 || run.report.Failures[0].Stage != StageScore {
		t.Fatalf("expected 1 score failure, got %+v", run.report.Failures)
	}
}

func TestExtractNodes_UnknownKind(t *testing.T) {
	client, _ := newTestClient(t, portfolioSource(), false)
	if _, err := client.ExtractNodes(context.Background(), common.NodeKind("fund")); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestBuildEdges_WithoutNodes(t *testing.T) {
	client, _ := newTestClient(t, portfolioSource(), false)
	n, err := client.BuildEdges(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 edges on an empty store, got %d", n)
	}
}

func TestBuildGraph_ReconcileRemovesStaleRecords(t *testing.T) {
	src := portfolioSource()
	client, mem := newTestClient(t, src, true)
	ctx := context.Background()

	if _, err := client.BuildGraph(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	r2 := nodeByKey(t, mem, common.KindRegulation, "R2")

	// R2 is withdrawn upstream.
	src.Regulations = []common.RegulationRecord{src.Regulations[0], src.Regulations[2]}
	report, err := client.BuildGraph(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !report.Reconciled {
		t.Fatalf("expected reconciliation to run")
	}
	if report.SweptNodes != 1 {
		t.Fatalf("expected 1 swept node, got %d", report.SweptNodes)
	}

	if _, err := mem.GetNode(ctx, r2.ID); err == nil {
		t.Fatalf("expected R2 to be removed")
	}
	edges, _ := mem.ListEdges(ctx)
	for _, e := range edges {
		if e.SourceNodeID == r2.ID || e.TargetNodeID == r2.ID {
			t.Fatalf("expected edges of R2 to be removed, got %+v", e)
		}
	}
	if len(edges) != 7 {
		t.Fatalf("expected 7 edges after reconciliation, got %d", len(edges))
	}
	i1 := nodeByKey(t, mem, common.KindInstrument, "I1")
	if i1.ConnectionCount != 1 {
		t.Fatalf("expected I1 to keep 1 connection, got %d", i1.ConnectionCount)
	}
}

func TestBuildGraph_OnChange(t *testing.T) {
	mem := memory.New()
	calls := 0
	client, err := NewGraphClient(NewGraphClientParams{
		Store:    mem,
		Source:   portfolioSource(),
		OnChange: func(context.Context) { calls++ },
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := client.BuildGraph(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 change notification, got %d", calls)
	}
}

func TestNewGraphClient_RequiresStore(t *testing.T) {
	if _, err := NewGraphClient(NewGraphClientParams{}); err == nil {
		t.Fatalf("expected error without store")
	}
}
