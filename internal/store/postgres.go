// Package store provides Postgres-backed persistence for enriched records.
package store

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gradworks/gradcafe-harvester/internal/pipeline"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool.
type Config struct {
	DSN      string
	Table    string
	MaxConns int32
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Postgres implements pipeline.Store with insert-ignore semantics keyed on
// the record's source URL.
type Postgres struct {
	pool  execCloser
	table string
}

// New creates a Postgres store using the provided config.
func New(ctx context.Context, cfg Config) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "grad_applications"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Postgres{pool: pool, table: table}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, table string) (*Postgres, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "grad_applications"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Postgres{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Postgres) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the table and its unique URL index when absent.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	p_id SERIAL PRIMARY KEY,
	program TEXT,
	comments TEXT,
	date_added DATE,
	url TEXT,
	status TEXT,
	term TEXT,
	us_or_international TEXT,
	gpa DOUBLE PRECISION,
	gre DOUBLE PRECISION,
	gre_v DOUBLE PRECISION,
	gre_aw DOUBLE PRECISION,
	degree TEXT,
	llm_generated_program TEXT,
	llm_generated_university TEXT
)`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	idx := fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_url ON %s(url)",
		s.table, s.table,
	)
	if _, err := s.pool.Exec(ctx, idx); err != nil {
		return fmt.Errorf("create url index: %w", err)
	}
	return nil
}

// UpsertIgnoreDuplicates inserts records one at a time with ON CONFLICT DO
// NOTHING and returns the count of rows actually inserted. Re-running the
// identical input leaves the store unchanged.
func (s *Postgres) UpsertIgnoreDuplicates(ctx context.Context, records []pipeline.EnrichedEntry) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	program,
	comments,
	date_added,
	url,
	status,
	term,
	us_or_international,
	gpa,
	gre,
	gre_v,
	gre_aw,
	degree,
	llm_generated_program,
	llm_generated_university
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
) ON CONFLICT (url) DO NOTHING`, s.table)

	var inserted int64
	for i, rec := range records {
		tag, err := s.pool.Exec(ctx, query, rowArgs(rec)...)
		if err != nil {
			return inserted, fmt.Errorf("insert record %d (%s): %w", i, rec.URL, err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// RebuildAll truncates the table and reloads it from the full history.
func (s *Postgres) RebuildAll(ctx context.Context, records []pipeline.EnrichedEntry) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("store is not configured")
	}
	truncate := fmt.Sprintf("TRUNCATE %s RESTART IDENTITY", s.table)
	if _, err := s.pool.Exec(ctx, truncate); err != nil {
		return 0, fmt.Errorf("truncate %s: %w", s.table, err)
	}
	return s.UpsertIgnoreDuplicates(ctx, records)
}

func rowArgs(rec pipeline.EnrichedEntry) []any {
	return []any{
		combineProgram(rec.Program, rec.University),
		nullString(rec.Comments),
		nullDate(rec.DateAdded),
		nullString(rec.URL),
		nullString(rec.Status),
		nullString(rec.StartTerm),
		nullString(rec.Citizenship),
		nullFloat(rec.GPA),
		nullFloat(rec.GREGeneral),
		nullFloat(rec.GREVerbal),
		nullFloat(rec.GREAnalytical),
		nullString(rec.DegreeType),
		nullString(rec.LLMProgram),
		nullString(rec.LLMUniversity),
	}
}

// combineProgram joins program and university into the single display column
// the dashboard queries expect.
func combineProgram(program, university string) any {
	switch {
	case program == "" && university == "":
		return nil
	case program == "":
		return university
	case university == "":
		return program
	default:
		return program + " - " + university
	}
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(s string) any {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return f
}

// nullDate parses the listing's "March 1, 2026" date format; anything else
// becomes NULL rather than failing the insert.
func nullDate(s string) any {
	if s == "" {
		return nil
	}
	t, err := time.Parse("January 2, 2006", s)
	if err != nil {
		return nil
	}
	return t
}
