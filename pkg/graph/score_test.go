package graph

import (
	"math"
	"testing"

	"github.com/OFFIS-RIT/fingraph/pkg/common"
)

func TestImportanceScore(t *testing.T) {
	tests := []struct {
		name        string
		connections int
		avg         float64
		want        float64
	}{
		{"isolated", 0, 0, 0},
		{"two affects edges", 2, 0.7, 40},
		{"single structural edge", 1, 1, 52.5},
		{"capped", 50, 1, 100},
		{"negative strength", 0, -1, 0},
		{"nan", 1, math.NaN(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ImportanceScore(tt.connections, tt.avg)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestDegrees_SelfLoop(t *testing.T) {
	edges := []common.Edge{
		{ID: 1, SourceNodeID: 1, TargetNodeID: 2, Strength: 0.4},
		{ID: 2, SourceNodeID: 2, TargetNodeID: 2, Strength: 1.0},
	}
	d := degrees(edges)

	if d[1].connections != 1 || d[1].incident != 1 {
		t.Fatalf("unexpected degree for node 1: %+v", *d[1])
	}
	if d[2].connections != 3 {
		t.Fatalf("expected 3 connections for node 2, got %d", d[2].connections)
	}
	if d[2].incident != 2 {
		t.Fatalf("expected 2 incident edges for node 2, got %d", d[2].incident)
	}
	if math.Abs(d[2].strengthSum-1.4) > 1e-9 {
		t.Fatalf("expected strength sum 1.4, got %v", d[2].strengthSum)
	}
}
