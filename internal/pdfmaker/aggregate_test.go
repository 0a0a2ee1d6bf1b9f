package pdfmaker

import (
	"math"
	"testing"

	"github.com/crosscorr/zrecover/internal/zbins"
)

func TestAggregateRegions_CountInvariant(t *testing.T) {
	edges := zbins.Edges{0.0, 0.5, 1.0}
	zMax := 1.0

	ests := []CollapsedEstimate{
		{Region: 0, Redshift: 0.1, Density: 2.0},
		{Region: 0, Redshift: 0.6, Density: 1.0},
		{Region: 1, Redshift: 0.2, Density: 4.0},
		{Region: 1, Redshift: 0.7, Density: 0.5},
		{Region: 2, Redshift: 0.3, Density: 3.0},
		{Region: 2, Redshift: 1.2, Density: 9.0}, // above zMax, excluded
		{Region: 0, Redshift: 1.0, Density: 9.0}, // at zMax, excluded
	}

	m := AggregateRegions(ests, edges, zMax)

	if got, want := m.NRegions(), 3; got != want {
		t.Fatalf("NRegions = %d, want %d", got, want)
	}
	if got, want := m.NBins(), 2; got != want {
		t.Fatalf("NBins = %d, want %d", got, want)
	}

	// total object count equals the estimates below zMax
	if got, want := m.TotalCount(), 5.0; got != want {
		t.Errorf("TotalCount = %g, want %g", got, want)
	}

	// per-region rows are independent accumulations
	perRegionWant := map[int64]float64{0: 2, 1: 2, 2: 1}
	for i, label := range m.Regions {
		var rowCount float64
		for _, c := range m.Counts[i] {
			rowCount += c
		}
		if rowCount != perRegionWant[label] {
			t.Errorf("region %d row count = %g, want %g", label, rowCount, perRegionWant[label])
		}
	}
}

func TestAggregateRegions_CellValues(t *testing.T) {
	edges := zbins.Edges{0.0, 0.5, 1.0}
	ests := []CollapsedEstimate{
		{Region: 5, Redshift: 0.1, Density: 2.0},
		{Region: 5, Redshift: 0.2, Density: 4.0},
		{Region: 9, Redshift: 0.8, Density: 1.0},
	}
	m := AggregateRegions(ests, edges, 1.0)

	// regions come out in ascending label order
	if m.Regions[0] != 5 || m.Regions[1] != 9 {
		t.Fatalf("Regions = %v, want [5 9]", m.Regions)
	}

	if got := m.Density[0][0]; got != 6.0 {
		t.Errorf("region 5 bin 0 density = %g, want 6", got)
	}
	if got := m.Counts[0][0]; got != 2.0 {
		t.Errorf("region 5 bin 0 count = %g, want 2", got)
	}
	if got := m.OverDensity(0, 0); got != 3.0 {
		t.Errorf("region 5 bin 0 over-density = %g, want 3", got)
	}

	// empty cell reports the NaN sentinel, not a fault
	if got := m.OverDensity(0, 1); !math.IsNaN(got) {
		t.Errorf("empty cell over-density = %g, want NaN", got)
	}
	if got := m.OverDensity(1, 0); !math.IsNaN(got) {
		t.Errorf("empty cell over-density = %g, want NaN", got)
	}
}

func TestAggregateRegions_BelowRangeExcluded(t *testing.T) {
	edges := zbins.Edges{0.5, 1.0}
	ests := []CollapsedEstimate{
		{Region: 0, Redshift: 0.1, Density: 1.0}, // below the first edge
		{Region: 0, Redshift: 0.7, Density: 1.0},
	}
	m := AggregateRegions(ests, edges, 1.0)
	if got := m.TotalCount(); got != 1.0 {
		t.Errorf("TotalCount = %g, want 1 (sub-range estimate excluded)", got)
	}
}

func TestAggregateRegions_NaNRedshiftExcluded(t *testing.T) {
	// a reference with no matched redshift can surface as NaN; it must be
	// dropped like any other out-of-range estimate, not binned
	edges := zbins.Edges{0.0, 0.5, 1.0}
	ests := []CollapsedEstimate{
		{Region: 0, Redshift: math.NaN(), Density: 1.0},
		{Region: 0, Redshift: 0.2, Density: 2.0},
	}
	m := AggregateRegions(ests, edges, 1.0)
	if got := m.TotalCount(); got != 1.0 {
		t.Errorf("TotalCount = %g, want 1 (NaN redshift excluded)", got)
	}
	if got := m.Density[0][0]; got != 2.0 {
		t.Errorf("bin 0 density = %g, want 2", got)
	}
}
