// Package postgres provides the Postgres-backed lead repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fikircreative/prospector/internal/lead"
)

// DefaultTable is the lead table name used when none is configured.
const DefaultTable = "leads"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// LeadStoreConfig controls the Postgres connection pool used for leads.
type LeadStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Ping(context.Context) error
	Close()
}

// LeadStore implements lead.Repository on Postgres.
type LeadStore struct {
	pool  pool
	table string
	ids   lead.IDGenerator
	clock lead.Clock
}

// NewLeadStore connects a pool using cfg.
func NewLeadStore(ctx context.Context, cfg LeadStoreConfig, ids lead.IDGenerator, clock lead.Clock) (*LeadStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &LeadStore{pool: p, table: table, ids: ids, clock: clock}, nil
}

// NewLeadStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewLeadStoreWithPool(p pool, table string, ids lead.IDGenerator, clock lead.Clock) (*LeadStore, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	table, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &LeadStore{pool: p, table: table, ids: ids, clock: clock}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// EnsureSchema creates the lead table and its index when missing.
func (s *LeadStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id         UUID PRIMARY KEY,
	place_id   TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	address    TEXT,
	phone      TEXT,
	website    TEXT,
	rating     DOUBLE PRECISION,
	sector     TEXT NOT NULL,
	city       TEXT NOT NULL,
	country    TEXT NOT NULL,
	lat        DOUBLE PRECISION,
	lng        DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS %[1]s_created_at_idx ON %[1]s (created_at DESC);`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure lead schema: %w", err)
	}
	return nil
}

// InsertMany writes all leads in one statement and skips place IDs that are
// already stored. It returns the number of rows actually inserted.
func (s *LeadStore) InsertMany(ctx context.Context, leads []lead.Lead) (int64, error) {
	leads = lead.Dedupe(leads)
	if len(leads) == 0 {
		return 0, nil
	}
	n := len(leads)
	var (
		ids       = make([]string, n)
		placeIDs  = make([]string, n)
		names     = make([]string, n)
		addresses = make([]*string, n)
		phones    = make([]*string, n)
		websites  = make([]*string, n)
		ratings   = make([]*float64, n)
		sectors   = make([]string, n)
		cities    = make([]string, n)
		countries = make([]string, n)
		lats      = make([]*float64, n)
		lngs      = make([]*float64, n)
		created   = make([]time.Time, n)
	)
	now := s.clock.Now()
	for i, l := range leads {
		id, err := s.ids.NewID()
		if err != nil {
			return 0, fmt.Errorf("generate lead id: %w", err)
		}
		ids[i] = id
		placeIDs[i] = l.PlaceID
		names[i] = l.Name
		addresses[i] = l.Address
		phones[i] = l.Phone
		websites[i] = l.Website
		ratings[i] = l.Rating
		sectors[i] = l.Sector
		cities[i] = l.City
		countries[i] = l.Country
		lats[i] = l.Lat
		lngs[i] = l.Lng
		created[i] = now
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, place_id, name, address, phone, website, rating,
	sector, city, country, lat, lng, created_at
)
SELECT
	t.id::uuid, t.place_id, t.name, t.address, t.phone, t.website, t.rating,
	t.sector, t.city, t.country, t.lat, t.lng, t.created_at
FROM unnest(
	$1::text[], $2::text[], $3::text[], $4::text[], $5::text[], $6::text[], $7::float8[],
	$8::text[], $9::text[], $10::text[], $11::float8[], $12::float8[], $13::timestamptz[]
) AS t(id, place_id, name, address, phone, website, rating, sector, city, country, lat, lng, created_at)
ON CONFLICT (place_id) DO NOTHING`, s.table)

	tag, err := s.pool.Exec(ctx, query,
		ids, placeIDs, names, addresses, phones, websites, ratings,
		sectors, cities, countries, lats, lngs, created,
	)
	if err != nil {
		return 0, fmt.Errorf("insert leads: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListRecent returns up to limit leads, newest first.
func (s *LeadStore) ListRecent(ctx context.Context, limit int) ([]lead.StoredLead, error) {
	query := fmt.Sprintf(`
SELECT id::text, place_id, name, address, phone, website, rating,
	sector, city, country, lat, lng, created_at
FROM %s
ORDER BY created_at DESC
LIMIT $1`, s.table)

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	out := make([]lead.StoredLead, 0, limit)
	for rows.Next() {
		var l lead.StoredLead
		if err := rows.Scan(
			&l.ID,
			&l.PlaceID,
			&l.Name,
			&l.Address,
			&l.Phone,
			&l.Website,
			&l.Rating,
			&l.Sector,
			&l.City,
			&l.Country,
			&l.Lat,
			&l.Lng,
			&l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}
	return out, nil
}

// Ping checks database connectivity.
func (s *LeadStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *LeadStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}
