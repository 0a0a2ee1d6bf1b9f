package output

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/crosscorr/zrecover/internal/pdfmaker"
)

// BinRecord is the JSON shape of one recovered PDF bin. Estimate and Err are
// pointers so the NaN sentinel encodes as null rather than breaking the
// encoder.
type BinRecord struct {
	ZLow     float64  `json:"z_low"`
	ZHigh    float64  `json:"z_high"`
	Estimate *float64 `json:"estimate"`
	Err      *float64 `json:"error"`
}

func finitePtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Records converts a PDF result into its JSON bin records, in ascending bin
// order.
func Records(res *pdfmaker.PDFResult) []BinRecord {
	recs := make([]BinRecord, res.NBins())
	for b := range recs {
		recs[b] = BinRecord{
			ZLow:     res.Edges[b],
			ZHigh:    res.Edges[b+1],
			Estimate: finitePtr(res.Estimates[b]),
			Err:      finitePtr(res.Errs[b]),
		}
	}
	return recs
}

// WriteJSON writes the recovered PDF as an indented JSON array of bin
// records.
func WriteJSON(w io.Writer, res *pdfmaker.PDFResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Records(res)); err != nil {
		return fmt.Errorf("encode pdf result: %w", err)
	}
	return nil
}
