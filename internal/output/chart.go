package output

import (
	"fmt"
	"math"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/crosscorr/zrecover/internal/pdfmaker"
)

// ChartPDF renders the recovered PDF as a standalone interactive HTML line
// chart. Bins carrying the NaN sentinel render as gaps.
func ChartPDF(path string, res *pdfmaker.PDFResult) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Recovered redshift PDF",
			Subtitle: fmt.Sprintf("%d bins, %d bootstrap trials", res.NBins(), res.NTrials()),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "z"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "amplitude"}),
	)

	xs := make([]string, 0, res.NBins())
	estSeries := make([]opts.LineData, 0, res.NBins())
	for b := 0; b < res.NBins(); b++ {
		center := 0.5 * (res.Edges[b] + res.Edges[b+1])
		xs = append(xs, fmt.Sprintf("%.4g", center))
		if math.IsNaN(res.Estimates[b]) {
			estSeries = append(estSeries, opts.LineData{Value: nil})
		} else {
			estSeries = append(estSeries, opts.LineData{Value: res.Estimates[b]})
		}
	}
	line.SetXAxis(xs).AddSeries("p(z)", estSeries)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart output %s: %w", path, err)
	}
	defer f.Close()
	if err := line.Render(f); err != nil {
		return fmt.Errorf("render chart %s: %w", path, err)
	}
	return nil
}
