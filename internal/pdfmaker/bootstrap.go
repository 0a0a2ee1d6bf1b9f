package pdfmaker

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

// BootstrapPDF estimates the recovery PDF and its error by resampling
// regions with replacement. Each trial draws NRegions region indices from
// rng, and the per-bin PDF value of a trial is the summed density of the
// sampled regions divided by their summed object count. The generated draws
// are returned alongside the result so they can be persisted for an exactly
// reproducible re-run.
func BootstrapPDF(m *RegionDensityMatrix, nTrials int, rng *rand.Rand) (*PDFResult, [][]int, error) {
	if nTrials < 1 {
		return nil, nil, fmt.Errorf("pdfmaker: bootstrap needs at least one trial, got %d", nTrials)
	}
	if rng == nil {
		return nil, nil, fmt.Errorf("pdfmaker: bootstrap needs a random source")
	}
	nRegions := m.NRegions()
	draws := make([][]int, nTrials)
	for t := range draws {
		draws[t] = make([]int, nRegions)
		for i := range draws[t] {
			draws[t][i] = rng.Intn(nRegions)
		}
	}
	res, err := BootstrapPDFFromDraws(m, draws)
	if err != nil {
		return nil, nil, err
	}
	return res, draws, nil
}

// BootstrapPDFFromDraws runs the bootstrap with a caller-supplied list of
// region draws, one []int of region row indices per trial. It is fully
// deterministic: the same draws on the same matrix reproduce the result bit
// for bit, which is what makes persisted draw lists a verification artifact.
//
// A trial/bin combination whose sampled regions hold no objects yields NaN
// (0/0), the zero-count sentinel; NaN trials are excluded from the per-bin
// mean and error.
func BootstrapPDFFromDraws(m *RegionDensityMatrix, draws [][]int) (*PDFResult, error) {
	if len(draws) == 0 {
		return nil, fmt.Errorf("pdfmaker: bootstrap needs at least one trial")
	}
	nRegions := m.NRegions()
	nBins := m.NBins()
	for t, draw := range draws {
		if len(draw) != nRegions {
			return nil, fmt.Errorf("pdfmaker: trial %d draws %d regions, matrix has %d",
				t, len(draw), nRegions)
		}
		for _, r := range draw {
			if r < 0 || r >= nRegions {
				return nil, fmt.Errorf("pdfmaker: trial %d samples region index %d, valid range [0, %d)",
					t, r, nRegions)
			}
		}
	}

	res := &PDFResult{
		Edges:     m.Edges,
		Estimates: make([]float64, nBins),
		Errs:      make([]float64, nBins),
		Trials:    make([][]float64, nBins),
	}
	for b := 0; b < nBins; b++ {
		res.Trials[b] = make([]float64, len(draws))
	}

	for t, draw := range draws {
		for b := 0; b < nBins; b++ {
			var sumDensity, sumCount float64
			for _, r := range draw {
				sumDensity += m.Density[r][b]
				sumCount += m.Counts[r][b]
			}
			// 0/0 is NaN, the defined sentinel for an empty trial
			res.Trials[b][t] = sumDensity / sumCount
		}
	}

	valid := make([]float64, 0, len(draws))
	for b := 0; b < nBins; b++ {
		valid = valid[:0]
		for _, v := range res.Trials[b] {
			// a restored matrix can hold nonzero density over a zero
			// count, which divides to Inf; only finite trials count
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				valid = append(valid, v)
			}
		}
		switch len(valid) {
		case 0:
			res.Estimates[b] = math.NaN()
			res.Errs[b] = math.NaN()
		case 1:
			res.Estimates[b] = valid[0]
			res.Errs[b] = math.NaN()
		default:
			res.Estimates[b] = stat.Mean(valid, nil)
			res.Errs[b] = stat.StdDev(valid, nil)
		}
	}
	return res, nil
}
