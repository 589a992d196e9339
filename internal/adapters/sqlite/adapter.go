// Package sqlite provides a SQLite-backed snapshot of the catalog and neighbor table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously

	"github.com/ewilliams-labs/trackfinder/internal/core/domain"
	"github.com/ewilliams-labs/trackfinder/internal/core/ports"
)

const resource = "sqlite snapshot"

// Adapter implements the catalog, neighbor and snapshot ports for SQLite
type Adapter struct {
	db *sql.DB
}

var (
	_ ports.CatalogReader  = (*Adapter)(nil)
	_ ports.NeighborReader = (*Adapter)(nil)
	_ ports.SnapshotWriter = (*Adapter)(nil)
)

// NewAdapter creates a connection and runs the schema migration
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// one connection keeps ":memory:" databases shared across queries
	db.SetMaxOpenConns(1)

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	adapter := &Adapter{db: db}
	if err := adapter.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return adapter, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

// ReadCatalog returns the stored tracks in their original order.
func (a *Adapter) ReadCatalog(ctx context.Context) (*domain.Catalog, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, title, artist, has_features,
			IFNULL(tempo, 0), IFNULL(tonic, ''), IFNULL(mode, ''),
			IFNULL(harmony_degree, 0), IFNULL(progression1, ''), IFNULL(progression2, '')
		FROM tracks
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, unavailable("query tracks", err)
	}
	defer rows.Close()

	var b domain.CatalogBuilder
	for rows.Next() {
		var t domain.Track
		var f domain.AudioFeatures
		var hasFeatures bool
		if err := rows.Scan(
			&t.ID,
			&t.Title,
			&t.Artist,
			&hasFeatures,
			&f.Tempo,
			&f.Tonic,
			&f.Mode,
			&f.HarmonyDegree,
			&f.Progression1,
			&f.Progression2,
		); err != nil {
			return nil, unavailable("scan track", err)
		}
		if hasFeatures {
			t.Features = &f
		}
		if err := b.Add(t); err != nil {
			return nil, unavailable("invalid stored track", err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate tracks", err)
	}
	if b.Len() == 0 {
		return nil, &domain.DataUnavailableError{Resource: resource, Reason: "snapshot has no tracks"}
	}
	return b.Build(), nil
}

// ReadNeighbors returns the stored neighbor lists in rank order.
func (a *Adapter) ReadNeighbors(ctx context.Context) (*domain.NeighborTable, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT track_id, neighbor_id, distance
		FROM neighbors
		ORDER BY track_id ASC, rank ASC
	`)
	if err != nil {
		return nil, unavailable("query neighbors", err)
	}
	defer rows.Close()

	entries := make(map[string][]domain.NeighborEntry)
	for rows.Next() {
		var trackID string
		var n domain.NeighborEntry
		if err := rows.Scan(&trackID, &n.ID, &n.Distance); err != nil {
			return nil, unavailable("scan neighbor", err)
		}
		entries[trackID] = append(entries[trackID], n)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate neighbors", err)
	}
	return domain.NewNeighborTable(entries), nil
}

// SaveSnapshot replaces the stored catalog and neighbor table in one transaction.
func (a *Adapter) SaveSnapshot(ctx context.Context, c *domain.Catalog, n *domain.NeighborTable) error {
	if c == nil || n == nil {
		return errors.New("sqlite: snapshot requires a catalog and a neighbor table")
	}

	// 1. Start Transaction
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	// 2. Clear the previous snapshot
	for _, table := range []string{"neighbors", "tracks"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	// 3. Insert tracks in catalog order
	stmtTrack, err := tx.PrepareContext(ctx, `
		INSERT INTO tracks (
			id, position, title, artist, has_features,
			tempo, tonic, mode, harmony_degree, progression1, progression2
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmtTrack.Close()

	for i := 0; i < c.Len(); i++ {
		t := c.At(i)
		var f domain.AudioFeatures
		if t.Features != nil {
			f = *t.Features
		}
		if _, err := stmtTrack.ExecContext(ctx,
			t.ID, i, t.Title, t.Artist, t.Features != nil,
			nullFloat(t.Features != nil, f.Tempo),
			nullString(f.Tonic),
			nullString(f.Mode),
			nullFloat(t.Features != nil, f.HarmonyDegree),
			nullString(f.Progression1),
			nullString(f.Progression2),
		); err != nil {
			return fmt.Errorf("failed to save track %s: %w", t.ID, err)
		}
	}

	// 4. Insert neighbor lists with their rank
	stmtNeighbor, err := tx.PrepareContext(ctx, `
		INSERT INTO neighbors (track_id, rank, neighbor_id, distance)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmtNeighbor.Close()

	var insertErr error
	n.Each(func(id string, list []domain.NeighborEntry) {
		for rank, e := range list {
			if insertErr != nil {
				return
			}
			if _, err := stmtNeighbor.ExecContext(ctx, id, rank, e.ID, e.Distance); err != nil {
				insertErr = fmt.Errorf("failed to save neighbors of %s: %w", id, err)
			}
		}
	})
	if insertErr != nil {
		return insertErr
	}

	// 5. Commit Transaction
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}

	return nil
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS tracks (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		title TEXT NOT NULL,
		artist TEXT NOT NULL,
		has_features INTEGER NOT NULL DEFAULT 0,
		tempo REAL,
		tonic TEXT,
		mode TEXT,
		harmony_degree REAL,
		progression1 TEXT,
		progression2 TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_tracks_position ON tracks(position);

	CREATE TABLE IF NOT EXISTS neighbors (
		track_id TEXT NOT NULL,
		rank INTEGER NOT NULL,
		neighbor_id TEXT NOT NULL,
		distance REAL NOT NULL,
		PRIMARY KEY (track_id, rank)
	);
	`
	if _, err := a.db.Exec(query); err != nil {
		return err
	}

	// snapshots written before features were stored
	for _, col := range []string{"has_features INTEGER NOT NULL DEFAULT 0", "harmony_degree REAL", "progression1 TEXT", "progression2 TEXT"} {
		if _, err := a.db.Exec("ALTER TABLE tracks ADD COLUMN " + col); err != nil {
			if !isDuplicateColumnError(err) {
				return err
			}
		}
	}

	return nil
}

func unavailable(reason string, err error) error {
	return &domain.DataUnavailableError{Resource: resource, Reason: reason, Err: err}
}

func nullFloat(valid bool, v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: valid}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isDuplicateColumnError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "duplicate column") || strings.Contains(err.Error(), "already exists"))
}
