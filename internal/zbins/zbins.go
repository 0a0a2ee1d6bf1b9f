// Package zbins builds the redshift bin edges used to histogram the
// clustering amplitudes into a recovery PDF. Several spacing policies are
// provided; all of them return N+1 strictly increasing edges defining N
// half-open bins [edge_i, edge_i+1).
package zbins

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/crosscorr/zrecover/internal/monitoring"
)

var (
	// ErrBadRange indicates z_max is not greater than z_min.
	ErrBadRange = errors.New("zbins: z_max must be greater than z_min")

	// ErrBadBinCount indicates a non-positive bin count.
	ErrBadBinCount = errors.New("zbins: at least one bin is required")

	// ErrLogRange indicates logspace binning was requested with z_min <= -1,
	// where ln(1+z) is undefined.
	ErrLogRange = errors.New("zbins: logspace binning requires z_min > -1")

	// ErrDegenerateBinning indicates adaptive binning was requested with
	// fewer distinct in-range reference redshifts than bins.
	ErrDegenerateBinning = errors.New("zbins: too few distinct reference redshifts for requested bin count")

	// ErrNonMonotoneDistance indicates the injected comoving distance
	// function does not increase over the requested redshift range.
	ErrNonMonotoneDistance = errors.New("zbins: comoving distance function is not increasing over the redshift range")

	// ErrUnsortedEdges indicates externally supplied edges are not strictly
	// increasing.
	ErrUnsortedEdges = errors.New("zbins: bin edges must be strictly increasing")
)

// DistanceFunc maps a redshift to a comoving distance. It is injected by the
// caller; the binner only requires that it is increasing over the binning
// range.
type DistanceFunc func(z float64) float64

// Edges is an ordered set of N+1 bin edges defining N half-open redshift
// bins. Edges are immutable once built.
type Edges []float64

// NBins returns the number of bins the edges define.
func (e Edges) NBins() int {
	if len(e) < 2 {
		return 0
	}
	return len(e) - 1
}

// Bin locates the half-open bin containing z by binary search. It returns -1
// when z falls below the first edge, at/above the last edge, or is NaN.
func (e Edges) Bin(z float64) int {
	if len(e) < 2 || math.IsNaN(z) || z < e[0] || z >= e[len(e)-1] {
		return -1
	}
	i := sort.SearchFloat64s(e, z)
	if i < len(e) && e[i] == z {
		return i
	}
	return i - 1
}

func validateRange(zMin, zMax float64, nBins int) error {
	if nBins < 1 {
		return ErrBadBinCount
	}
	if !(zMax > zMin) {
		return ErrBadRange
	}
	return nil
}

// Linear returns nBins+1 edges evenly spaced between zMin and zMax inclusive.
func Linear(zMin, zMax float64, nBins int) (Edges, error) {
	if err := validateRange(zMin, zMax, nBins); err != nil {
		return nil, err
	}
	e := make(Edges, nBins+1)
	floats.Span(e, zMin, zMax)
	return e, nil
}

// Logspace returns edges evenly spaced in ln(1+z), mapped back to redshift.
// Spacing in ln(1+z) gives near-comoving bins without a cosmology and makes
// the per-bin errors directly comparable to the usual sigma/(1+z) figure.
func Logspace(zMin, zMax float64, nBins int) (Edges, error) {
	if err := validateRange(zMin, zMax, nBins); err != nil {
		return nil, err
	}
	if zMin <= -1 {
		return nil, ErrLogRange
	}
	e := make(Edges, nBins+1)
	floats.Span(e, math.Log1p(zMin), math.Log1p(zMax))
	for i := range e {
		e[i] = math.Expm1(e[i])
	}
	// pin the ends against round-trip error
	e[0] = zMin
	e[nBins] = zMax
	return e, nil
}

// Comoving returns edges evenly spaced in comoving distance, mapped back to
// redshift by bisecting the injected distance function over [zMin, zMax].
func Comoving(zMin, zMax float64, nBins int, dist DistanceFunc) (Edges, error) {
	if err := validateRange(zMin, zMax, nBins); err != nil {
		return nil, err
	}
	if dist == nil {
		return nil, fmt.Errorf("zbins: comoving binning requires a distance function")
	}
	dMin, dMax := dist(zMin), dist(zMax)
	if !(dMax > dMin) {
		return nil, ErrNonMonotoneDistance
	}
	e := make(Edges, nBins+1)
	e[0] = zMin
	e[nBins] = zMax
	for i := 1; i < nBins; i++ {
		target := dMin + (dMax-dMin)*float64(i)/float64(nBins)
		e[i] = invertDistance(dist, target, zMin, zMax)
	}
	for i := 1; i < len(e); i++ {
		if e[i] <= e[i-1] {
			return nil, ErrNonMonotoneDistance
		}
	}
	return e, nil
}

// invertDistance solves dist(z) == target for z in [lo, hi] by bisection.
// Assumes dist is increasing on the interval.
func invertDistance(dist DistanceFunc, target, lo, hi float64) float64 {
	for i := 0; i < 64 && hi-lo > 1e-12*(1+math.Abs(hi)); i++ {
		mid := 0.5 * (lo + hi)
		if dist(mid) < target {
			lo = mid
		} else {
			hi = mid
		}
	}
	return 0.5 * (lo + hi)
}

// Adaptive returns quantile edges over the reference redshifts restricted to
// [zMin, zMax], so each bin holds an equal share of the references (counts
// differ by at most one). Interior edges sit midway between the bracketing
// sorted redshifts, which keeps the counts exact for distinct values.
func Adaptive(zMin, zMax float64, nBins int, refZ []float64) (Edges, error) {
	if err := validateRange(zMin, zMax, nBins); err != nil {
		return nil, err
	}
	inRange := make([]float64, 0, len(refZ))
	for _, z := range refZ {
		if z >= zMin && z <= zMax {
			inRange = append(inRange, z)
		}
	}
	sort.Float64s(inRange)

	distinct := 0
	for i, z := range inRange {
		if i == 0 || z != inRange[i-1] {
			distinct++
		}
	}
	if distinct < nBins {
		return nil, fmt.Errorf("%w: %d distinct redshifts in [%g, %g], need %d",
			ErrDegenerateBinning, distinct, zMin, zMax, nBins)
	}

	e := make(Edges, nBins+1)
	e[0] = zMin
	e[nBins] = zMax
	n := len(inRange)
	for k := 1; k < nBins; k++ {
		pos := k * n / nBins
		e[k] = 0.5 * (inRange[pos-1] + inRange[pos])
	}
	for i := 1; i < len(e); i++ {
		if e[i] <= e[i-1] {
			return nil, fmt.Errorf("%w: repeated redshift values collapse adjacent quantile edges",
				ErrDegenerateBinning)
		}
	}
	return e, nil
}

// FromFile reads edges verbatim from a whitespace-separated numeric file. The
// file is taken at face value; callers that store a trailing upper bound drop
// it themselves.
func FromFile(path string) (Edges, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("zbins: read edge file: %w", err)
	}
	fields := strings.Fields(string(raw))
	if len(fields) < 2 {
		return nil, fmt.Errorf("zbins: edge file %s holds %d values, need at least 2", path, len(fields))
	}
	e := make(Edges, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("zbins: edge file %s value %d: %w", path, i, err)
		}
		e[i] = v
	}
	for i := 1; i < len(e); i++ {
		if e[i] <= e[i-1] {
			return nil, ErrUnsortedEdges
		}
	}
	return e, nil
}

// DropUpperBound removes the trailing entry of edges read from a file, which
// store one value past the upper edge of the final bin. It errors when the
// trimmed list would describe no bins at all.
func (e Edges) DropUpperBound() (Edges, error) {
	if len(e) < 3 {
		return nil, fmt.Errorf("zbins: %d edges left after dropping the trailing bound, need at least 2", len(e)-1)
	}
	return e[:len(e)-1], nil
}

// Config carries the inputs shared by the named policies plus the
// policy-specific extras.
type Config struct {
	ZMin, ZMax float64
	NBins      int

	// RefZ supplies the reference redshifts for the adaptive policy.
	RefZ []float64

	// Dist supplies the comoving distance function for the comoving policy.
	Dist DistanceFunc

	// EdgeFile supplies the path for the file policy.
	EdgeFile string
}

// Build dispatches on a policy name: linear, logspace, comoving, adaptive, or
// file. An unknown name is not fatal: a warning is logged listing the valid
// policies and linear binning is used instead. Downstream tooling depends on
// that fallback, so keep it.
func Build(policy string, cfg Config) (Edges, error) {
	switch policy {
	case "linear":
		return Linear(cfg.ZMin, cfg.ZMax, cfg.NBins)
	case "logspace":
		return Logspace(cfg.ZMin, cfg.ZMax, cfg.NBins)
	case "comoving":
		return Comoving(cfg.ZMin, cfg.ZMax, cfg.NBins, cfg.Dist)
	case "adaptive":
		return Adaptive(cfg.ZMin, cfg.ZMax, cfg.NBins, cfg.RefZ)
	case "file":
		return FromFile(cfg.EdgeFile)
	default:
		monitoring.Warnf("unknown binning policy %q; valid policies are "+
			"linear, logspace, comoving, adaptive, file; using linear binning", policy)
		return Linear(cfg.ZMin, cfg.ZMax, cfg.NBins)
	}
}
