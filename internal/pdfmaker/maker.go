package pdfmaker

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/crosscorr/zrecover/internal/zbins"
)

// State is the pipeline position of a PDFMaker. Transitions are
// one-directional: load → collapse → aggregate → bootstrap → write.
type State int

const (
	StateUninitialized State = iota
	StatePairsLoaded
	StateCollapsed
	StateRegionDensities
	StateBootstrapped
	StateWritten
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StatePairsLoaded:
		return "pairs-loaded"
	case StateCollapsed:
		return "collapsed"
	case StateRegionDensities:
		return "region-densities-computed"
	case StateBootstrapped:
		return "bootstrap-computed"
	case StateWritten:
		return "written"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// PipelineStateError reports an orchestrator operation invoked before its
// prerequisite stage ran. It is a caller error, never recovered internally.
type PipelineStateError struct {
	Op   string
	Need State
	Got  State
}

func (e *PipelineStateError) Error() string {
	return fmt.Sprintf("pdfmaker: %s requires pipeline state %q, currently %q",
		e.Op, e.Need, e.Got)
}

// PDFMaker owns the end-to-end pipeline state: the loaded pair table, the
// collapsed estimates, the region-density matrix, and the bootstrap result.
// It sequences the engine stages and guards their ordering; it is the only
// surface the I/O layer touches.
type PDFMaker struct {
	state  State
	refs   []Reference
	ests   []CollapsedEstimate
	matrix *RegionDensityMatrix
	result *PDFResult
	draws  [][]int
}

// New returns a PDFMaker in the uninitialized state.
func New() *PDFMaker {
	return &PDFMaker{state: StateUninitialized}
}

// State returns the current pipeline state.
func (p *PDFMaker) State() State { return p.state }

func (p *PDFMaker) require(op string, need State) error {
	if p.state < need {
		return &PipelineStateError{Op: op, Need: need, Got: p.state}
	}
	return nil
}

func (p *PDFMaker) advance(to State) {
	if p.state < to {
		p.state = to
	}
}

// LoadPairs hands the pair table to the pipeline.
func (p *PDFMaker) LoadPairs(refs []Reference) error {
	if len(refs) == 0 {
		return fmt.Errorf("pdfmaker: pair table is empty")
	}
	p.refs = refs
	p.advance(StatePairsLoaded)
	return nil
}

// ReferenceRedshifts returns the redshifts of the loaded reference sample,
// in pair-table order. Adaptive binning consumes this.
func (p *PDFMaker) ReferenceRedshifts() ([]float64, error) {
	if err := p.require("ReferenceRedshifts", StatePairsLoaded); err != nil {
		return nil, err
	}
	zs := make([]float64, len(p.refs))
	for i := range p.refs {
		zs[i] = p.refs[i].Redshift
	}
	return zs, nil
}

// Collapse runs the selection-aware, weighted collapse over the loaded pairs.
func (p *PDFMaker) Collapse(ctx context.Context, mask Mask, weights Weights, opts CollapseOptions) error {
	if err := p.require("Collapse", StatePairsLoaded); err != nil {
		return err
	}
	ests, err := CollapseIDs(ctx, p.refs, mask, weights, opts)
	if err != nil {
		return err
	}
	p.ests = ests
	p.advance(StateCollapsed)
	return nil
}

// CollapseFull runs the unweighted full-sample collapse over the loaded
// pairs. A non-nil weight source is ignored with a warning.
func (p *PDFMaker) CollapseFull(weights Weights) error {
	if err := p.require("CollapseFull", StatePairsLoaded); err != nil {
		return err
	}
	p.ests = CollapseFullSample(p.refs, weights)
	p.advance(StateCollapsed)
	return nil
}

// Estimates returns the collapsed estimates.
func (p *PDFMaker) Estimates() ([]CollapsedEstimate, error) {
	if err := p.require("Estimates", StateCollapsed); err != nil {
		return nil, err
	}
	return p.ests, nil
}

// ComputeRegionDensities aggregates the collapsed estimates into the
// region × bin density matrix.
func (p *PDFMaker) ComputeRegionDensities(edges zbins.Edges, zMax float64) error {
	if err := p.require("ComputeRegionDensities", StateCollapsed); err != nil {
		return err
	}
	p.matrix = AggregateRegions(p.ests, edges, zMax)
	p.advance(StateRegionDensities)
	return nil
}

// RestoreRegionDensities resumes a pipeline at the region-densities stage
// from a previously persisted matrix, skipping the load and collapse stages.
func (p *PDFMaker) RestoreRegionDensities(m *RegionDensityMatrix) error {
	if m == nil || m.NRegions() == 0 {
		return fmt.Errorf("pdfmaker: cannot restore an empty region-density matrix")
	}
	p.matrix = m
	p.advance(StateRegionDensities)
	return nil
}

// RegionMatrix returns the region-density matrix, e.g. for snapshotting.
func (p *PDFMaker) RegionMatrix() (*RegionDensityMatrix, error) {
	if err := p.require("RegionMatrix", StateRegionDensities); err != nil {
		return nil, err
	}
	return p.matrix, nil
}

// ComputePDFBootstrap runs the bootstrap with nTrials random region draws.
func (p *PDFMaker) ComputePDFBootstrap(nTrials int, rng *rand.Rand) error {
	if err := p.require("ComputePDFBootstrap", StateRegionDensities); err != nil {
		return err
	}
	res, draws, err := BootstrapPDF(p.matrix, nTrials, rng)
	if err != nil {
		return err
	}
	p.result, p.draws = res, draws
	p.advance(StateBootstrapped)
	return nil
}

// ComputePDFFromDraws runs the bootstrap with a fixed, caller-supplied list
// of region draws. Re-running with the same draws reproduces the result
// exactly.
func (p *PDFMaker) ComputePDFFromDraws(draws [][]int) error {
	if err := p.require("ComputePDFFromDraws", StateRegionDensities); err != nil {
		return err
	}
	res, err := BootstrapPDFFromDraws(p.matrix, draws)
	if err != nil {
		return err
	}
	p.result, p.draws = res, draws
	p.advance(StateBootstrapped)
	return nil
}

// Draws returns the region draws of the last bootstrap run, for persistence.
func (p *PDFMaker) Draws() ([][]int, error) {
	if err := p.require("Draws", StateBootstrapped); err != nil {
		return nil, err
	}
	return p.draws, nil
}

// Result returns the final PDF estimate.
func (p *PDFMaker) Result() (*PDFResult, error) {
	if err := p.require("Result", StateBootstrapped); err != nil {
		return nil, err
	}
	return p.result, nil
}

// MarkWritten records that the result reached its output. Re-writing is
// allowed; the state never advances past written.
func (p *PDFMaker) MarkWritten() error {
	if err := p.require("MarkWritten", StateBootstrapped); err != nil {
		return err
	}
	p.advance(StateWritten)
	return nil
}
