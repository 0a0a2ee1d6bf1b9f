package pairstore

import (
	"fmt"

	"github.com/crosscorr/zrecover/internal/pdfmaker"
)

// CatalogEntry is one unknown-sample object as the engine sees it: its index
// in the pair lists, its weight, and whether the upstream selection kept it.
// The selection semantics themselves (color cuts, photo-z cuts, ...) were
// applied by whoever wrote the catalog; the store only reads the outcome.
type CatalogEntry struct {
	Idx      int64   `json:"idx"`
	Weight   float64 `json:"weight"`
	Selected bool    `json:"selected"`
}

// PutCatalog stores unknown-sample catalog entries in one transaction.
func (s *Store) PutCatalog(entries []CatalogEntry) error {
	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("begin catalog insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO unknowns (idx, weight, selected)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare catalog insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(e.Idx, e.Weight, e.Selected); err != nil {
			return fmt.Errorf("insert catalog entry %d: %w", e.Idx, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog insert: %w", err)
	}
	return nil
}

// LoadCatalog builds the inclusion mask and weight lookup handed to the
// collapser. Indices absent from the catalog are treated as not selected.
func (s *Store) LoadCatalog() (pdfmaker.Mask, pdfmaker.Weights, error) {
	rows, err := s.Query(`SELECT idx, weight, selected FROM unknowns`)
	if err != nil {
		return nil, nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	weights := make(map[int64]float64)
	selected := make(map[int64]bool)
	for rows.Next() {
		var e CatalogEntry
		if err := rows.Scan(&e.Idx, &e.Weight, &e.Selected); err != nil {
			return nil, nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		weights[e.Idx] = e.Weight
		selected[e.Idx] = e.Selected
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate catalog: %w", err)
	}
	if len(weights) == 0 {
		return nil, nil, fmt.Errorf("unknown-sample catalog is empty")
	}

	mask := pdfmaker.Mask(func(idx int64) bool { return selected[idx] })
	lookup := pdfmaker.Weights(func(idx int64) float64 {
		if w, ok := weights[idx]; ok {
			return w
		}
		return 1.0
	})
	return mask, lookup, nil
}
