package pdfmaker

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/crosscorr/zrecover/internal/zbins"
)

func TestPDFMaker_GuardsPrerequisites(t *testing.T) {
	edges := zbins.Edges{0.0, 0.5, 1.0}

	cases := []struct {
		name string
		op   func(p *PDFMaker) error
		need State
	}{
		{"collapse before load", func(p *PDFMaker) error {
			return p.Collapse(context.Background(), nil, nil, CollapseOptions{})
		}, StatePairsLoaded},
		{"full collapse before load", func(p *PDFMaker) error {
			return p.CollapseFull(nil)
		}, StatePairsLoaded},
		{"densities before collapse", func(p *PDFMaker) error {
			return p.ComputeRegionDensities(edges, 1.0)
		}, StateCollapsed},
		{"bootstrap before densities", func(p *PDFMaker) error {
			return p.ComputePDFBootstrap(10, rand.New(rand.NewSource(1)))
		}, StateRegionDensities},
		{"fixed bootstrap before densities", func(p *PDFMaker) error {
			return p.ComputePDFFromDraws([][]int{{0}})
		}, StateRegionDensities},
		{"result before bootstrap", func(p *PDFMaker) error {
			_, err := p.Result()
			return err
		}, StateBootstrapped},
		{"write before bootstrap", func(p *PDFMaker) error {
			return p.MarkWritten()
		}, StateBootstrapped},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.op(New())
			var stateErr *PipelineStateError
			if !errors.As(err, &stateErr) {
				t.Fatalf("got %v, want PipelineStateError", err)
			}
			if stateErr.Need != tc.need {
				t.Errorf("error names prerequisite %q, want %q", stateErr.Need, tc.need)
			}
			if !strings.Contains(stateErr.Error(), tc.need.String()) {
				t.Errorf("message %q does not name the missing prerequisite", stateErr.Error())
			}
		})
	}
}

func TestPDFMaker_EndToEnd(t *testing.T) {
	refs := []Reference{
		{ID: 0, Region: 0, Redshift: 0.1, Matched: []int64{0, 1}},
		{ID: 1, Region: 0, Redshift: 0.2, Matched: []int64{2, 3}},
		{ID: 2, Region: 1, Redshift: 0.6, Matched: []int64{4}},
		{ID: 3, Region: 2, Redshift: 0.7, Matched: []int64{5, 6, 7}},
	}
	edges := zbins.Edges{0.0, 0.5, 1.0}

	p := New()
	if p.State() != StateUninitialized {
		t.Fatalf("fresh maker in state %q", p.State())
	}

	if err := p.LoadPairs(refs); err != nil {
		t.Fatalf("LoadPairs failed: %v", err)
	}
	zs, err := p.ReferenceRedshifts()
	if err != nil {
		t.Fatalf("ReferenceRedshifts failed: %v", err)
	}
	if len(zs) != len(refs) || zs[2] != 0.6 {
		t.Fatalf("ReferenceRedshifts = %v", zs)
	}

	if err := p.Collapse(context.Background(), nil, nil, CollapseOptions{Workers: 2}); err != nil {
		t.Fatalf("Collapse failed: %v", err)
	}
	if err := p.ComputeRegionDensities(edges, 1.0); err != nil {
		t.Fatalf("ComputeRegionDensities failed: %v", err)
	}
	matrix, err := p.RegionMatrix()
	if err != nil {
		t.Fatalf("RegionMatrix failed: %v", err)
	}
	if matrix.NRegions() != 3 {
		t.Fatalf("NRegions = %d, want 3", matrix.NRegions())
	}

	if err := p.ComputePDFFromDraws([][]int{{0, 1, 2}, {1, 2, 0}}); err != nil {
		t.Fatalf("ComputePDFFromDraws failed: %v", err)
	}
	res, err := p.Result()
	if err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	if res.NBins() != 2 || res.NTrials() != 2 {
		t.Fatalf("result shape %dx%d, want 2x2", res.NBins(), res.NTrials())
	}

	if err := p.MarkWritten(); err != nil {
		t.Fatalf("MarkWritten failed: %v", err)
	}
	if p.State() != StateWritten {
		t.Fatalf("state %q after write", p.State())
	}
	// re-writing is allowed and does not move the state
	if err := p.MarkWritten(); err != nil {
		t.Fatalf("idempotent MarkWritten failed: %v", err)
	}
	if p.State() != StateWritten {
		t.Fatalf("state %q after second write", p.State())
	}
}

func TestPDFMaker_LoadPairsEmpty(t *testing.T) {
	if err := New().LoadPairs(nil); err == nil {
		t.Fatal("expected an error for an empty pair table")
	}
}

func TestPDFMaker_RestoreRegionDensities(t *testing.T) {
	m := &RegionDensityMatrix{
		Regions: []int64{0, 1},
		Density: [][]float64{{2}, {4}},
		Counts:  [][]float64{{1}, {2}},
		Edges:   zbins.Edges{0.0, 1.0},
		ZMax:    1.0,
	}

	p := New()
	if err := p.RestoreRegionDensities(m); err != nil {
		t.Fatalf("RestoreRegionDensities failed: %v", err)
	}
	if p.State() != StateRegionDensities {
		t.Fatalf("state %q after restore", p.State())
	}
	if err := p.ComputePDFFromDraws([][]int{{0, 1}}); err != nil {
		t.Fatalf("bootstrap after restore failed: %v", err)
	}
	res, err := p.Result()
	if err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	// (2+4)/(1+2) = 2
	if res.Estimates[0] != 2 {
		t.Errorf("estimate = %g, want 2", res.Estimates[0])
	}

	if err := p.RestoreRegionDensities(nil); err == nil {
		t.Error("expected an error restoring a nil matrix")
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{
		StateUninitialized:   "uninitialized",
		StatePairsLoaded:     "pairs-loaded",
		StateCollapsed:       "collapsed",
		StateRegionDensities: "region-densities-computed",
		StateBootstrapped:    "bootstrap-computed",
		StateWritten:         "written",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
