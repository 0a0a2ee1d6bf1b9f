package pdfmaker

import (
	"sort"

	"github.com/crosscorr/zrecover/internal/zbins"
)

// AggregateRegions builds the RegionDensityMatrix from the collapsed
// estimates. Estimates with redshift at or above zMax are excluded entirely,
// mirroring the z_max clipping applied at the binning step; estimates below
// the first edge fall outside every bin and are likewise skipped. Each region
// row is accumulated independently — nothing mixes information across regions
// here, which is what lets the bootstrap treat regions as swappable units.
func AggregateRegions(ests []CollapsedEstimate, edges zbins.Edges, zMax float64) *RegionDensityMatrix {
	labels := make([]int64, 0)
	seen := make(map[int64]int)
	for _, e := range ests {
		if _, ok := seen[e.Region]; !ok {
			seen[e.Region] = 0
			labels = append(labels, e.Region)
		}
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	for i, l := range labels {
		seen[l] = i
	}

	nBins := edges.NBins()
	m := &RegionDensityMatrix{
		Regions: labels,
		Density: make([][]float64, len(labels)),
		Counts:  make([][]float64, len(labels)),
		Edges:   edges,
		ZMax:    zMax,
	}
	for i := range labels {
		m.Density[i] = make([]float64, nBins)
		m.Counts[i] = make([]float64, nBins)
	}

	for _, e := range ests {
		if e.Redshift >= zMax {
			continue
		}
		bin := edges.Bin(e.Redshift)
		if bin < 0 {
			continue
		}
		row := seen[e.Region]
		m.Density[row][bin] += e.Density
		m.Counts[row][bin]++
	}
	return m
}
