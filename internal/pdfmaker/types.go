// Package pdfmaker is the density-collapsing, binning, and bootstrap-error
// engine of the clustering-redshift pipeline. It turns the precomputed
// reference↔unknown pair table into per-reference clustering amplitudes,
// aggregates them per spatial region and redshift bin, and estimates the
// recovered redshift PDF and its uncertainty by bootstrap resampling of the
// regions.
package pdfmaker

import (
	"math"

	"github.com/crosscorr/zrecover/internal/zbins"
)

// Reference is one object of the spectroscopic reference sample as exposed by
// the pair table: its spatial jackknife region, its known redshift, and the
// unknown-sample indices the pairing stage matched to it at the active
// angular scale. References are read-only to the engine.
type Reference struct {
	ID       int64
	Region   int64
	Redshift float64

	// Matched holds the unknown-object indices paired with this reference.
	Matched []int64

	// RandCount is an optional companion normalizer (a random or unmasked
	// pair total for the same scale). Zero means absent; when present the
	// collapsed density is the ratio of the weighted pair sum to it.
	RandCount float64
}

// Mask reports whether an unknown-object index passes the upstream selection.
// A nil Mask includes everything. The engine never interprets selection
// semantics; the mask arrives precomputed.
type Mask func(idx int64) bool

// Weights returns the weight of an unknown object. A nil Weights means unit
// weights.
type Weights func(idx int64) float64

// CollapsedEstimate is the scalar clustering amplitude collapsed from one
// reference object's matched pairs. Never mutated after creation.
type CollapsedEstimate struct {
	Region   int64
	Redshift float64
	Density  float64
}

// RegionDensityMatrix accumulates collapsed estimates per (region, redshift
// bin): the summed density and the contributing object count. Region rows are
// independent so the bootstrap can swap whole regions in and out. The matrix
// is immutable once built; bootstrap trials only read it.
type RegionDensityMatrix struct {
	// Regions holds the distinct region labels in ascending order. Row i of
	// Density and Counts belongs to Regions[i].
	Regions []int64

	// Density[i][b] is the summed collapsed density of region Regions[i] in
	// bin b; Counts[i][b] is the number of contributing references.
	Density [][]float64
	Counts  [][]float64

	// Edges and ZMax record what the matrix was built with, so a persisted
	// matrix can resume a run without recomputation.
	Edges zbins.Edges
	ZMax  float64
}

// NRegions returns the number of distinct regions.
func (m *RegionDensityMatrix) NRegions() int { return len(m.Regions) }

// NBins returns the number of redshift bins.
func (m *RegionDensityMatrix) NBins() int { return m.Edges.NBins() }

// OverDensity returns the mean collapsed density of a cell, or NaN for a cell
// with no contributing objects. NaN is the documented zero-count sentinel; it
// propagates through aggregation and is excluded from means, never raised as
// an error.
func (m *RegionDensityMatrix) OverDensity(region, bin int) float64 {
	if m.Counts[region][bin] == 0 {
		return math.NaN()
	}
	return m.Density[region][bin] / m.Counts[region][bin]
}

// TotalCount returns the number of objects accumulated across all cells.
func (m *RegionDensityMatrix) TotalCount() float64 {
	var total float64
	for _, row := range m.Counts {
		for _, c := range row {
			total += c
		}
	}
	return total
}

// PDFResult is the terminal artifact of the pipeline: the per-bin recovery
// estimate, its bootstrap error, and the full bin × trial matrix kept for
// serialization.
type PDFResult struct {
	Edges zbins.Edges

	// Estimates[b] is the mean over valid (non-NaN) bootstrap trials for bin
	// b; Errs[b] is the sample standard deviation over the same trials. A
	// bin with no valid trial reports NaN; a bin with one reports a NaN
	// error.
	Estimates []float64
	Errs      []float64

	// Trials[b][t] is the PDF value of bin b in bootstrap trial t. A NaN
	// entry marks a trial whose sampled regions held no objects in the bin.
	Trials [][]float64
}

// NBins returns the number of redshift bins in the result.
func (r *PDFResult) NBins() int { return r.Edges.NBins() }

// NTrials returns the number of bootstrap trials the result was derived from.
func (r *PDFResult) NTrials() int {
	if len(r.Trials) == 0 {
		return 0
	}
	return len(r.Trials[0])
}
