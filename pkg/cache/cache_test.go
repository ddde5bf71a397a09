package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/OFFIS-RIT/fingraph/pkg/common"

	"github.com/alicebob/miniredis/v2"
)

func setupTestCache(t *testing.T) (*NeighborhoodCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	c, err := New(Options{URL: "redis://" + mr.Addr(), TTL: time.Minute})
	if err != nil {
		t.Fatalf("expected no error connecting to miniredis, got %v", err)
	}
	t.Cleanup(func() {
		_ = c.Close()
	})
	return c, mr
}

func sampleSubgraph() *common.Subgraph {
	return &common.Subgraph{
		Nodes: []common.Node{
			{ID: 1, Kind: common.KindInstrument, Name: "Fund A", Code: "A", Properties: common.InstrumentProperties{Exchange: "SSE"}},
			{ID: 2, Kind: common.KindAsset, Name: "Park X", Properties: common.AssetProperties{AssetType: "industrial park", OwnerCount: 2}},
		},
		Edges: []common.Edge{
			{ID: 10, SourceNodeID: 1, TargetNodeID: 2, Kind: common.EdgeContains, Strength: 1, Confidence: 1},
		},
	}
}

func TestNeighborhoodCache_SetGet(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, 1, 2); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := c.Set(ctx, 1, 2, sampleSubgraph()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	sg, ok, err := c.Get(ctx, 1, 2)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if len(sg.Nodes) != 2 || len(sg.Edges) != 1 {
		t.Fatalf("expected 2 nodes and 1 edge, got %d and %d", len(sg.Nodes), len(sg.Edges))
	}
	props, ok := sg.Nodes[1].Properties.(common.AssetProperties)
	if !ok || props.OwnerCount != 2 {
		t.Fatalf("expected asset properties to survive, got %#v", sg.Nodes[1].Properties)
	}

	if _, ok, _ := c.Get(ctx, 1, 3); ok {
		t.Fatalf("expected depth to be part of the key")
	}
}

func TestNeighborhoodCache_InvalidateStartsNewGeneration(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, 1, 1, sampleSubgraph()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, ok, _ := c.Get(ctx, 1, 1); ok {
		t.Fatalf("expected miss after invalidation")
	}
	if got, _ := mr.Get(generationKey); got != "1" {
		t.Fatalf("expected generation 1, got %q", got)
	}
	if !mr.Exists("kg:nbr:0:1:1") {
		t.Fatalf("expected stale entry to remain until it expires")
	}
}

func TestNeighborhoodCache_TTL(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, 1, 0, sampleSubgraph()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, 1, 0); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestNeighborhoodCache_ReadThrough(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) (*common.Subgraph, error) {
		calls++
		return sampleSubgraph(), nil
	}
	for range 3 {
		if _, err := c.Neighborhood(ctx, 1, 1, load); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 load, got %d", calls)
	}

	wantErr := errors.New("boom")
	_, err := c.Neighborhood(ctx, 2, 1, func(context.Context) (*common.Subgraph, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected load error, got %v", err)
	}
}

func TestNeighborhoodCache_RedisDownFallsBackToLoad(t *testing.T) {
	c, mr := setupTestCache(t)
	mr.Close()

	sg, err := c.Neighborhood(context.Background(), 1, 1, func(context.Context) (*common.Subgraph, error) {
		return sampleSubgraph(), nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(sg.Nodes) != 2 {
		t.Fatalf("expected loaded subgraph, got %+v", sg)
	}
}

func TestNew_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := New(Options{URL: "redis://" + addr, ConnectTimeout: 200 * time.Millisecond}); err == nil {
		t.Fatalf("expected error for unreachable redis")
	}
}
