package pairstore

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/crosscorr/zrecover/internal/pdfmaker"
	"github.com/crosscorr/zrecover/internal/zbins"
)

// regionSnapshot is the JSON shape of a persisted RegionDensityMatrix body.
type regionSnapshot struct {
	Regions []int64     `json:"regions"`
	Density [][]float64 `json:"density"`
	Counts  [][]float64 `json:"counts"`
}

// SaveRegionSnapshot persists a region-density matrix and returns the run ID
// it was stored under. A run restored from the snapshot resumes at the
// region-densities pipeline stage with no recomputation.
func (s *Store) SaveRegionSnapshot(m *pdfmaker.RegionDensityMatrix) (string, error) {
	runID := uuid.New().String()

	edgesJSON, err := json.Marshal(m.Edges)
	if err != nil {
		return "", fmt.Errorf("encode snapshot edges: %w", err)
	}
	body, err := json.Marshal(regionSnapshot{
		Regions: m.Regions,
		Density: m.Density,
		Counts:  m.Counts,
	})
	if err != nil {
		return "", fmt.Errorf("encode snapshot regions: %w", err)
	}

	_, err = s.Exec(`
		INSERT INTO region_snapshots (run_id, z_max, edges_json, regions_json)
		VALUES (?, ?, ?, ?)
	`, runID, m.ZMax, string(edgesJSON), string(body))
	if err != nil {
		return "", fmt.Errorf("insert region snapshot: %w", err)
	}
	return runID, nil
}

// LoadRegionSnapshot reads a persisted region-density matrix back.
func (s *Store) LoadRegionSnapshot(runID string) (*pdfmaker.RegionDensityMatrix, error) {
	var zMax float64
	var edgesJSON, body string
	err := s.QueryRow(`
		SELECT z_max, edges_json, regions_json FROM region_snapshots WHERE run_id = ?
	`, runID).Scan(&zMax, &edgesJSON, &body)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no region snapshot for run %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query region snapshot: %w", err)
	}

	var edges zbins.Edges
	if err := json.Unmarshal([]byte(edgesJSON), &edges); err != nil {
		return nil, fmt.Errorf("decode snapshot edges: %w", err)
	}
	var snap regionSnapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot regions: %w", err)
	}
	return &pdfmaker.RegionDensityMatrix{
		Regions: snap.Regions,
		Density: snap.Density,
		Counts:  snap.Counts,
		Edges:   edges,
		ZMax:    zMax,
	}, nil
}

// SaveBootstrapDraws persists the per-trial region draws of a bootstrap run.
// Feeding them back through the fixed-draw bootstrap reproduces the PDF
// result exactly.
func (s *Store) SaveBootstrapDraws(runID string, draws [][]int) error {
	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("begin draw insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO bootstrap_draws (run_id, trial, draws_json)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare draw insert: %w", err)
	}
	defer stmt.Close()

	for t, draw := range draws {
		body, err := json.Marshal(draw)
		if err != nil {
			return fmt.Errorf("encode trial %d draws: %w", t, err)
		}
		if _, err := stmt.Exec(runID, t, string(body)); err != nil {
			return fmt.Errorf("insert trial %d draws: %w", t, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit draw insert: %w", err)
	}
	return nil
}

// LoadBootstrapDraws reads back the per-trial region draws of a run in trial
// order.
func (s *Store) LoadBootstrapDraws(runID string) ([][]int, error) {
	rows, err := s.Query(`
		SELECT draws_json FROM bootstrap_draws WHERE run_id = ? ORDER BY trial
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query bootstrap draws: %w", err)
	}
	defer rows.Close()

	var draws [][]int
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan draw row: %w", err)
		}
		var draw []int
		if err := json.Unmarshal([]byte(body), &draw); err != nil {
			return nil, fmt.Errorf("decode draw row: %w", err)
		}
		draws = append(draws, draw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bootstrap draws: %w", err)
	}
	if len(draws) == 0 {
		return nil, fmt.Errorf("no bootstrap draws for run %s", runID)
	}
	return draws, nil
}
