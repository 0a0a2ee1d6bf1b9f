// Package pairstore persists the reference↔unknown pair table, the
// unknown-sample catalog, and the resumable pipeline artifacts (region
// density snapshots and bootstrap region draws) in a single sqlite file.
package pairstore

import (
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/crosscorr/zrecover/internal/pdfmaker"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the sqlite handle for one pair file.
type Store struct {
	*sql.DB
}

// Open opens (creating if necessary) the pair database at path and applies
// any pending schema migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open pair database: %w", err)
	}
	s := &Store{db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.DB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	// Closing m would close the underlying DB connection, so don't.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// PutReferences stores reference objects and their matched pair lists for one
// angular scale in a single transaction.
func (s *Store) PutReferences(scale string, refs []pdfmaker.Reference) error {
	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("begin pair insert: %w", err)
	}
	defer tx.Rollback()

	refStmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO refs (ref_id, region, redshift, rand_count)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare reference insert: %w", err)
	}
	defer refStmt.Close()

	pairStmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO pairs (ref_id, scale, idx_blob)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare pair insert: %w", err)
	}
	defer pairStmt.Close()

	for i := range refs {
		r := &refs[i]
		if _, err := refStmt.Exec(r.ID, r.Region, r.Redshift, r.RandCount); err != nil {
			return fmt.Errorf("insert reference %d: %w", r.ID, err)
		}
		if _, err := pairStmt.Exec(r.ID, scale, packIndices(r.Matched)); err != nil {
			return fmt.Errorf("insert pairs for reference %d: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit pair insert: %w", err)
	}
	return nil
}

// LoadReferences reads the full pair table for one angular scale, ordered by
// reference ID.
func (s *Store) LoadReferences(scale string) ([]pdfmaker.Reference, error) {
	rows, err := s.Query(`
		SELECT r.ref_id, r.region, r.redshift, r.rand_count, p.idx_blob
		FROM refs r
		JOIN pairs p ON p.ref_id = r.ref_id
		WHERE p.scale = ?
		ORDER BY r.ref_id
	`, scale)
	if err != nil {
		return nil, fmt.Errorf("query pair table for scale %q: %w", scale, err)
	}
	defer rows.Close()

	var refs []pdfmaker.Reference
	for rows.Next() {
		var ref pdfmaker.Reference
		var blob []byte
		if err := rows.Scan(&ref.ID, &ref.Region, &ref.Redshift, &ref.RandCount, &blob); err != nil {
			return nil, fmt.Errorf("scan pair row: %w", err)
		}
		ref.Matched, err = unpackIndices(blob)
		if err != nil {
			return nil, fmt.Errorf("decode pair indices for reference %d: %w", ref.ID, err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pair table: %w", err)
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("no pairs stored for scale %q", scale)
	}
	return refs, nil
}

// Scales lists the angular scales present in the pair table.
func (s *Store) Scales() ([]string, error) {
	rows, err := s.Query(`SELECT DISTINCT scale FROM pairs ORDER BY scale`)
	if err != nil {
		return nil, fmt.Errorf("query scales: %w", err)
	}
	defer rows.Close()

	var scales []string
	for rows.Next() {
		var sc string
		if err := rows.Scan(&sc); err != nil {
			return nil, fmt.Errorf("scan scale: %w", err)
		}
		scales = append(scales, sc)
	}
	return scales, rows.Err()
}

// packIndices encodes matched unknown-object indices as little-endian int64s.
func packIndices(idx []int64) []byte {
	blob := make([]byte, 8*len(idx))
	for i, v := range idx {
		binary.LittleEndian.PutUint64(blob[8*i:], uint64(v))
	}
	return blob
}

func unpackIndices(blob []byte) ([]int64, error) {
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("index blob length %d is not a multiple of 8", len(blob))
	}
	idx := make([]int64, len(blob)/8)
	for i := range idx {
		idx[i] = int64(binary.LittleEndian.Uint64(blob[8*i:]))
	}
	return idx, nil
}
