// Package ledger provides SQLite-backed persistence of ingested Observation metadata.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var ErrObservationNotFound = errors.New("observation not found")

// Observation is the archived unit built from one complete file group.
type Observation struct {
	ObsID      string     `json:"obs_id"`
	Collection string     `json:"collection"`
	TargetName string     `json:"target_name,omitempty"`
	Telescope  string     `json:"telescope,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Artifacts  []Artifact `json:"artifacts,omitempty"`
}

// Artifact is one stored file of an Observation.
type Artifact struct {
	URI         string    `json:"uri"`
	ObsID       string    `json:"obs_id"`
	ProductID   string    `json:"product_id"`
	ProductType string    `json:"product_type"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	MD5         string    `json:"md5"`
	TimeStart   *float64  `json:"time_start,omitempty"`
	TimeEnd     *float64  `json:"time_end,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store provides access to the ledger database.
type Store struct {
	db *sql.DB
}

// New opens the database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS observations (
		obs_id TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		target_name TEXT,
		telescope TEXT,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS artifacts (
		uri TEXT PRIMARY KEY,
		obs_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		product_type TEXT NOT NULL,
		content_type TEXT NOT NULL,
		size INTEGER NOT NULL,
		md5 TEXT NOT NULL,
		time_start REAL,
		time_end REAL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (obs_id) REFERENCES observations(obs_id)
	);

	CREATE INDEX IF NOT EXISTS idx_artifacts_obs ON artifacts(obs_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// UpsertObservation creates the observation or refreshes its fields. Empty target or telescope
// values never overwrite known ones.
func (s *Store) UpsertObservation(ctx context.Context, o Observation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO observations (obs_id, collection, target_name, telescope, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(obs_id) DO UPDATE SET
			collection = excluded.collection,
			target_name = COALESCE(NULLIF(excluded.target_name, ''), observations.target_name),
			telescope = COALESCE(NULLIF(excluded.telescope, ''), observations.telescope),
			updated_at = excluded.updated_at`,
		o.ObsID, o.Collection, o.TargetName, o.Telescope, o.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert observation %s: %w", o.ObsID, err)
	}
	return nil
}

func (s *Store) UpsertArtifact(ctx context.Context, a Artifact) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (uri, obs_id, product_id, product_type, content_type, size, md5, time_start, time_end, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uri) DO UPDATE SET
			obs_id = excluded.obs_id,
			product_id = excluded.product_id,
			product_type = excluded.product_type,
			content_type = excluded.content_type,
			size = excluded.size,
			md5 = excluded.md5,
			time_start = excluded.time_start,
			time_end = excluded.time_end,
			updated_at = excluded.updated_at`,
		a.URI, a.ObsID, a.ProductID, a.ProductType, a.ContentType, a.Size, a.MD5,
		nullFloat(a.TimeStart), nullFloat(a.TimeEnd), a.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert artifact %s: %w", a.URI, err)
	}
	return nil
}

// GetObservation returns the observation with its artifacts.
func (s *Store) GetObservation(ctx context.Context, obsID string) (*Observation, error) {
	var o Observation
	var target, telescope sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT obs_id, collection, target_name, telescope, updated_at FROM observations WHERE obs_id = ?`, obsID).
		Scan(&o.ObsID, &o.Collection, &target, &telescope, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrObservationNotFound
		}
		return nil, fmt.Errorf("get observation: %w", err)
	}
	o.TargetName = target.String
	o.Telescope = telescope.String
	o.Artifacts, err = s.ListArtifacts(ctx, obsID)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListArtifacts returns the artifacts of one observation ordered by URI.
func (s *Store) ListArtifacts(ctx context.Context, obsID string) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uri, obs_id, product_id, product_type, content_type, size, md5, time_start, time_end, updated_at
		FROM artifacts WHERE obs_id = ? ORDER BY uri`, obsID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var a Artifact
		var start, end sql.NullFloat64
		if err := rows.Scan(&a.URI, &a.ObsID, &a.ProductID, &a.ProductType, &a.ContentType,
			&a.Size, &a.MD5, &start, &end, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		if start.Valid {
			v := start.Float64
			a.TimeStart = &v
		}
		if end.Valid {
			v := end.Float64
			a.TimeEnd = &v
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
