// Package output serializes pipeline artifacts: the final PDF table, the
// per-trial bootstrap matrix, the fixed region-draw lists, and graphical
// renderings of the recovered PDF.
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/crosscorr/zrecover/internal/pdfmaker"
)

// WritePDF writes the recovered PDF as an ASCII table, one row per redshift
// bin in ascending order: low edge, high edge, estimate, error. NaN entries
// (zero-count sentinel) are written literally.
func WritePDF(w io.Writer, res *pdfmaker.PDFResult) error {
	if _, err := fmt.Fprintln(w, "# z_low z_high estimate error"); err != nil {
		return err
	}
	for b := 0; b < res.NBins(); b++ {
		_, err := fmt.Fprintf(w, "%.8g %.8g %.8g %.8g\n",
			res.Edges[b], res.Edges[b+1], res.Estimates[b], res.Errs[b])
		if err != nil {
			return err
		}
	}
	return nil
}

// WritePDFFile writes the PDF table to a file.
func WritePDFFile(path string, res *pdfmaker.PDFResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create pdf output %s: %w", path, err)
	}
	defer f.Close()
	if err := WritePDF(f, res); err != nil {
		return fmt.Errorf("write pdf output %s: %w", path, err)
	}
	return nil
}

// WriteBootstrapTrials writes the full bin × trial bootstrap matrix, one row
// per bin with the bin's low edge in the first column.
func WriteBootstrapTrials(w io.Writer, res *pdfmaker.PDFResult) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# z_low then %d bootstrap trials per row\n", res.NTrials())
	for b := 0; b < res.NBins(); b++ {
		fmt.Fprintf(bw, "%.8g", res.Edges[b])
		for _, v := range res.Trials[b] {
			fmt.Fprintf(bw, " %.8g", v)
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}

// WriteBootstrapTrialsFile writes the bootstrap matrix to a file.
func WriteBootstrapTrialsFile(path string, res *pdfmaker.PDFResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create bootstrap output %s: %w", path, err)
	}
	defer f.Close()
	if err := WriteBootstrapTrials(f, res); err != nil {
		return fmt.Errorf("write bootstrap output %s: %w", path, err)
	}
	return nil
}

// WriteRegionDraws writes one whitespace-separated row of region indices per
// bootstrap trial, the same format LoadRegionDraws reads back.
func WriteRegionDraws(w io.Writer, draws [][]int) error {
	bw := bufio.NewWriter(w)
	for _, draw := range draws {
		for i, r := range draw {
			if i > 0 {
				if err := bw.WriteByte(' '); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(strconv.Itoa(r)); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteRegionDrawsFile writes the draw list to a file.
func WriteRegionDrawsFile(path string, draws [][]int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create draw output %s: %w", path, err)
	}
	defer f.Close()
	if err := WriteRegionDraws(f, draws); err != nil {
		return fmt.Errorf("write draw output %s: %w", path, err)
	}
	return nil
}

// LoadRegionDraws reads a fixed bootstrap draw list: one row of
// whitespace-separated region indices per trial. Every row must sample the
// same number of regions.
func LoadRegionDraws(path string) ([][]int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read draw list %s: %w", path, err)
	}
	var draws [][]int
	for ln, line := range strings.Split(string(raw), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		draw := make([]int, len(fields))
		for i, f := range fields {
			v, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("draw list %s line %d: %w", path, ln+1, err)
			}
			draw[i] = v
		}
		if len(draws) > 0 && len(draw) != len(draws[0]) {
			return nil, fmt.Errorf("draw list %s line %d: %d indices, earlier rows have %d",
				path, ln+1, len(draw), len(draws[0]))
		}
		draws = append(draws, draw)
	}
	if len(draws) == 0 {
		return nil, fmt.Errorf("draw list %s is empty", path)
	}
	return draws, nil
}
