// Package sqlite provides a single-file lead repository for local use.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/fikircreative/prospector/internal/lead"
)

const (
	schema = `
CREATE TABLE IF NOT EXISTS leads (
	id         TEXT PRIMARY KEY,
	place_id   TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	address    TEXT,
	phone      TEXT,
	website    TEXT,
	rating     REAL,
	sector     TEXT NOT NULL,
	city       TEXT NOT NULL,
	country    TEXT NOT NULL,
	lat        REAL,
	lng        REAL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS leads_created_at_idx ON leads (created_at DESC);`

	insertColumns = 13
	// rowsPerStatement keeps bound parameters well under SQLite's limit.
	rowsPerStatement = 500
)

// LeadStore implements lead.Repository on SQLite.
type LeadStore struct {
	db    *sql.DB
	ids   lead.IDGenerator
	clock lead.Clock
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, ids lead.IDGenerator, clock lead.Clock) (*LeadStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &LeadStore{db: db, ids: ids, clock: clock}, nil
}

// InsertMany inserts leads inside one transaction, ignoring place IDs that
// already exist, and returns how many rows were written.
func (s *LeadStore) InsertMany(ctx context.Context, leads []lead.Lead) (int64, error) {
	leads = lead.Dedupe(leads)
	if len(leads) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	created := s.clock.Now().UnixMicro()
	var inserted int64
	for start := 0; start < len(leads); start += rowsPerStatement {
		chunk := leads[start:min(start+rowsPerStatement, len(leads))]
		query, args, err := s.buildInsert(chunk, created)
		if err != nil {
			return 0, err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("insert leads: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert: %w", err)
	}
	return inserted, nil
}

func (s *LeadStore) buildInsert(leads []lead.Lead, created int64) (string, []any, error) {
	var b strings.Builder
	b.WriteString(`INSERT OR IGNORE INTO leads (id, place_id, name, address, phone, website, rating,
	sector, city, country, lat, lng, created_at) VALUES `)
	row := "(" + strings.TrimSuffix(strings.Repeat("?,", insertColumns), ",") + ")"
	args := make([]any, 0, len(leads)*insertColumns)
	for i, l := range leads {
		id, err := s.ids.NewID()
		if err != nil {
			return "", nil, fmt.Errorf("generate lead id: %w", err)
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(row)
		args = append(args,
			id, l.PlaceID, l.Name, l.Address, l.Phone, l.Website, l.Rating,
			l.Sector, l.City, l.Country, l.Lat, l.Lng, created,
		)
	}
	return b.String(), args, nil
}

// ListRecent returns up to limit leads, newest first.
func (s *LeadStore) ListRecent(ctx context.Context, limit int) ([]lead.StoredLead, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, place_id, name, address, phone, website, rating,
	sector, city, country, lat, lng, created_at
FROM leads
ORDER BY created_at DESC, rowid DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]lead.StoredLead, 0, limit)
	for rows.Next() {
		var (
			l       lead.StoredLead
			created int64
		)
		if err := rows.Scan(
			&l.ID, &l.PlaceID, &l.Name, &l.Address, &l.Phone, &l.Website, &l.Rating,
			&l.Sector, &l.City, &l.Country, &l.Lat, &l.Lng, &created,
		); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		l.CreatedAt = time.UnixMicro(created).UTC()
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}
	return out, nil
}

// Ping checks the database handle.
func (s *LeadStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *LeadStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}
