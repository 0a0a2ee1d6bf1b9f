package pdfmaker

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/crosscorr/zrecover/internal/monitoring"
)

func makeRefs(n, matchedPer int) []Reference {
	refs := make([]Reference, n)
	for i := range refs {
		matched := make([]int64, matchedPer)
		for j := range matched {
			matched[j] = int64(i*matchedPer + j)
		}
		refs[i] = Reference{
			ID:       int64(i),
			Region:   int64(i % 4),
			Redshift: 0.1 + 0.01*float64(i),
			Matched:  matched,
		}
	}
	return refs
}

func TestCollapseIDs_UniformWeightsCountPairs(t *testing.T) {
	const k = 7
	refs := makeRefs(20, k)

	allTrue := Mask(func(int64) bool { return true })
	unit := Weights(func(int64) float64 { return 1.0 })

	ests, err := CollapseIDs(context.Background(), refs, allTrue, unit, CollapseOptions{})
	if err != nil {
		t.Fatalf("CollapseIDs failed: %v", err)
	}
	if len(ests) != len(refs) {
		t.Fatalf("got %d estimates, want %d", len(ests), len(refs))
	}
	for i, e := range ests {
		if e.Density != k {
			t.Errorf("reference %d: density %g, want %d", i, e.Density, k)
		}
		if e.Region != refs[i].Region || e.Redshift != refs[i].Redshift {
			t.Errorf("reference %d: region/redshift not carried over", i)
		}
	}
}

func TestCollapseIDs_MaskAndWeights(t *testing.T) {
	refs := []Reference{{
		ID: 0, Region: 2, Redshift: 0.4,
		Matched: []int64{0, 1, 2, 3},
	}}

	evenOnly := Mask(func(idx int64) bool { return idx%2 == 0 })
	weights := Weights(func(idx int64) float64 { return float64(idx) + 1 })

	ests, err := CollapseIDs(context.Background(), refs, evenOnly, weights, CollapseOptions{Workers: 1})
	if err != nil {
		t.Fatalf("CollapseIDs failed: %v", err)
	}
	// kept indices 0 and 2 carry weights 1 and 3
	if ests[0].Density != 4 {
		t.Errorf("density = %g, want 4", ests[0].Density)
	}
}

func TestCollapseIDs_RandCountNormalizes(t *testing.T) {
	refs := []Reference{{
		ID: 0, Region: 0, Redshift: 0.2,
		Matched:   []int64{0, 1, 2, 3, 4, 5},
		RandCount: 3,
	}}
	ests, err := CollapseIDs(context.Background(), refs, nil, nil, CollapseOptions{})
	if err != nil {
		t.Fatalf("CollapseIDs failed: %v", err)
	}
	if ests[0].Density != 2 {
		t.Errorf("density = %g, want 2 (6 pairs / 3 randoms)", ests[0].Density)
	}
}

func TestCollapseIDs_ParallelMatchesSerial(t *testing.T) {
	refs := makeRefs(1001, 3)
	mask := Mask(func(idx int64) bool { return idx%3 != 0 })
	weights := Weights(func(idx int64) float64 { return 0.5 + float64(idx%5) })

	serial, err := CollapseIDs(context.Background(), refs, mask, weights, CollapseOptions{Workers: 1})
	if err != nil {
		t.Fatalf("serial collapse failed: %v", err)
	}
	parallel, err := CollapseIDs(context.Background(), refs, mask, weights, CollapseOptions{Workers: 8})
	if err != nil {
		t.Fatalf("parallel collapse failed: %v", err)
	}
	if diff := cmp.Diff(serial, parallel); diff != "" {
		t.Errorf("parallel collapse differs from serial (-serial +parallel):\n%s", diff)
	}
}

func TestCollapseIDs_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CollapseIDs(ctx, makeRefs(100, 2), nil, nil, CollapseOptions{Workers: 4})
	if err == nil {
		t.Fatal("expected an error from a cancelled collapse")
	}
}

func TestCollapseIDs_Empty(t *testing.T) {
	ests, err := CollapseIDs(context.Background(), nil, nil, nil, CollapseOptions{})
	if err != nil {
		t.Fatalf("CollapseIDs failed: %v", err)
	}
	if len(ests) != 0 {
		t.Fatalf("got %d estimates for empty input", len(ests))
	}
}

func TestCollapseFullSample_IgnoresWeightsWithWarning(t *testing.T) {
	original := monitoring.Logf
	defer monitoring.SetLogger(original)

	var warned string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		warned = format
	})

	refs := makeRefs(10, 4)
	nonUnit := Weights(func(int64) float64 { return 100.0 })

	withWeights := CollapseFullSample(refs, nonUnit)
	if !strings.Contains(warned, "ignore") {
		t.Errorf("expected an ignored-weights warning, got %q", warned)
	}

	monitoring.SetLogger(func(string, ...interface{}) {})
	without := CollapseFullSample(refs, nil)

	if diff := cmp.Diff(without, withWeights); diff != "" {
		t.Errorf("weight source changed the full-sample estimate:\n%s", diff)
	}
	for i, e := range withWeights {
		if e.Density != 4 {
			t.Errorf("reference %d: density %g, want raw pair count 4", i, e.Density)
		}
	}
}

func TestCollapseFullSample_RandCount(t *testing.T) {
	refs := []Reference{{
		ID: 0, Region: 1, Redshift: 0.3,
		Matched:   []int64{7, 8, 9},
		RandCount: 2,
	}}
	ests := CollapseFullSample(refs, nil)
	if math.Abs(ests[0].Density-1.5) > 1e-15 {
		t.Errorf("density = %g, want 1.5 (3 pairs / 2 randoms)", ests[0].Density)
	}
}
