package pdfmaker

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/crosscorr/zrecover/internal/monitoring"
)

// CollapseOptions tunes the parallel collapse.
type CollapseOptions struct {
	// Workers bounds the collapse worker pool. Zero or negative means
	// runtime.NumCPU().
	Workers int
}

func (o CollapseOptions) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

// CollapseIDs collapses each reference object's matched pair list into a
// single density estimate: matched indices are filtered through the inclusion
// mask and the surviving weights summed (unit weight when weights is nil).
// References carrying a RandCount are normalized by it.
//
// The references are split into contiguous chunks across a fixed-size worker
// pool; workers write disjoint slices of the preallocated result, so the join
// is a barrier with no locking and output order matches input order. Any
// worker error aborts the whole collapse; no partial result is returned.
func CollapseIDs(ctx context.Context, refs []Reference, mask Mask, weights Weights, opts CollapseOptions) ([]CollapsedEstimate, error) {
	ests := make([]CollapsedEstimate, len(refs))
	if len(refs) == 0 {
		return ests, nil
	}

	workers := opts.workers()
	if workers > len(refs) {
		workers = len(refs)
	}
	chunk := (len(refs) + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(refs); start += chunk {
		end := start + chunk
		if end > len(refs) {
			end = len(refs)
		}
		start, end := start, end
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				ests[i] = collapseOne(&refs[i], mask, weights)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pdfmaker: collapse worker failed: %w", err)
	}
	return ests, nil
}

// CollapseFullSample collapses every matched unknown object, with no
// selection and no weighting; the density is the raw matched-pair count
// (normalized by RandCount when present). This mirrors single-band surveys
// where no per-object weighting is possible. A supplied weight source is
// ignored with a warning rather than rejected, so the caller can keep one
// configuration for both workflows.
func CollapseFullSample(refs []Reference, weights Weights) []CollapsedEstimate {
	if weights != nil {
		monitoring.Warnf("a weight source was supplied in full-sample mode; " +
			"full-sample collapsing does not support weights and will ignore it")
	}
	ests := make([]CollapsedEstimate, len(refs))
	for i := range refs {
		ests[i] = collapseOne(&refs[i], nil, nil)
	}
	return ests
}

func collapseOne(ref *Reference, mask Mask, weights Weights) CollapsedEstimate {
	var sum float64
	for _, idx := range ref.Matched {
		if mask != nil && !mask(idx) {
			continue
		}
		if weights != nil {
			sum += weights(idx)
		} else {
			sum++
		}
	}
	if ref.RandCount > 0 {
		sum /= ref.RandCount
	}
	return CollapsedEstimate{
		Region:   ref.Region,
		Redshift: ref.Redshift,
		Density:  sum,
	}
}
