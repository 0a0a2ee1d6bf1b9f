package output

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/crosscorr/zrecover/internal/pdfmaker"
)

// pdfPoints carries bin-center points plus symmetric bootstrap errors for the
// error-bar plotter.
type pdfPoints struct {
	plotter.XYs
	errs []float64
}

func (p pdfPoints) YError(i int) (float64, float64) {
	e := p.errs[i]
	if math.IsNaN(e) {
		return 0, 0
	}
	return e, e
}

// PlotPDF renders the recovered PDF with bootstrap error bars to a PNG (or
// any format gonum/plot infers from the extension). Bins carrying the NaN
// sentinel are skipped.
func PlotPDF(path string, res *pdfmaker.PDFResult) error {
	p := plot.New()
	p.Title.Text = "Recovered redshift PDF"
	p.X.Label.Text = "z"
	p.Y.Label.Text = "amplitude"

	pts := pdfPoints{}
	for b := 0; b < res.NBins(); b++ {
		est := res.Estimates[b]
		if math.IsNaN(est) {
			continue
		}
		center := 0.5 * (res.Edges[b] + res.Edges[b+1])
		pts.XYs = append(pts.XYs, plotter.XY{X: center, Y: est})
		pts.errs = append(pts.errs, res.Errs[b])
	}
	if len(pts.XYs) == 0 {
		return fmt.Errorf("plot pdf: no finite bins to draw")
	}

	line, err := plotter.NewLine(pts.XYs)
	if err != nil {
		return fmt.Errorf("plot pdf line: %w", err)
	}
	line.Width = vg.Points(1)
	p.Add(line)

	bars, err := plotter.NewYErrorBars(pts)
	if err != nil {
		return fmt.Errorf("plot pdf error bars: %w", err)
	}
	p.Add(bars)

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save pdf plot %s: %w", path, err)
	}
	return nil
}
