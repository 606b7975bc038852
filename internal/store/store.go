// Package store persists GENIE variants, cancer types and per-cancer-type
// patient counts in a SQL database. DuckDB is the default engine;
// PostgreSQL is supported through the pgx driver.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"
)

// Supported database/sql driver names.
const (
	DriverDuckDB   = "duckdb"
	DriverPostgres = "pgx"
)

// Table names.
const (
	TableVariant      = "variant"
	TableCancerType   = "cancer_type"
	TablePatientCount = "variant_cancer_type_patient_count"
	TableImportRun    = "import_run"
)

// Store manages a database connection for the variant tables.
type Store struct {
	db     *sql.DB
	driver string
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for connection messages.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open opens a database and creates the schema if it does not exist.
// For DuckDB the dsn is a file path; use an empty string for an in-memory database.
// For PostgreSQL the dsn is a connection URL.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	switch driver {
	case DriverDuckDB:
		if dsn != "" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("open %s: connection url is required", driver)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q (want %s or %s)", driver, DriverDuckDB, DriverPostgres)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	s := &Store{db: db, driver: driver, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// ping checks the connection. PostgreSQL is retried with exponential
// backoff because a freshly started server can refuse the first few
// attempts; DuckDB fails on the first error.
func (s *Store) ping(ctx context.Context) error {
	if s.driver != DriverPostgres {
		if err := s.db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping %s: %w", s.driver, err)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 10 * time.Second

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := s.db.PingContext(ctx)
		if err != nil {
			s.logger.Debug("database not ready", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return fmt.Errorf("ping %s: %w", s.driver, err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver returns the database/sql driver name.
func (s *Store) Driver() string {
	return s.driver
}

// schema is valid for both DuckDB and PostgreSQL. Identifiers are assigned
// by the importer, so no table relies on an identity column.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS cancer_type (
		id BIGINT PRIMARY KEY,
		cancer_type VARCHAR NOT NULL,
		cancer_type_vcf VARCHAR NOT NULL UNIQUE,
		is_haemonc BOOLEAN NOT NULL,
		is_solid BOOLEAN NOT NULL,
		total_patient_count BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS variant (
		id BIGINT PRIMARY KEY,
		chrom VARCHAR NOT NULL,
		pos BIGINT NOT NULL,
		ref VARCHAR NOT NULL,
		alt VARCHAR NOT NULL,
		gene_symbol VARCHAR NOT NULL,
		refseq_transcript VARCHAR,
		consequence VARCHAR NOT NULL,
		classification VARCHAR NOT NULL,
		hgvs_c VARCHAR,
		hgvs_p VARCHAR,
		original_description VARCHAR NOT NULL,
		original_contig VARCHAR,
		original_start BIGINT,
		all_cancers_count BIGINT NOT NULL DEFAULT 0,
		haemonc_cancers_count BIGINT NOT NULL DEFAULT 0,
		solid_cancers_count BIGINT NOT NULL DEFAULT 0,
		CONSTRAINT uniq_variant_locus_allele UNIQUE (chrom, pos, ref, alt)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_variant_gene_symbol ON variant (gene_symbol)`,
	`CREATE INDEX IF NOT EXISTS idx_variant_chrom_pos ON variant (chrom, pos)`,
	`CREATE TABLE IF NOT EXISTS variant_cancer_type_patient_count (
		id BIGINT PRIMARY KEY,
		variant_id BIGINT NOT NULL REFERENCES variant (id),
		cancer_type_id BIGINT NOT NULL REFERENCES cancer_type (id),
		same_nucleotide_change_pc BIGINT NOT NULL,
		same_amino_acid_change_pc BIGINT NOT NULL,
		same_or_downstream_truncating_variants_per_cds_pc BIGINT NOT NULL,
		nested_inframe_deletions_per_aa_pc BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_patient_count_variant ON variant_cancer_type_patient_count (variant_id)`,
	`CREATE TABLE IF NOT EXISTS import_run (
		run_id VARCHAR PRIMARY KEY,
		vcf_path VARCHAR NOT NULL,
		vcf_size BIGINT NOT NULL,
		vcf_modtime TIMESTAMP NOT NULL,
		cancer_types_path VARCHAR NOT NULL,
		cancer_types BIGINT NOT NULL,
		variants BIGINT NOT NULL,
		patient_counts BIGINT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	)`,
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Counts holds row counts of the import tables.
type Counts struct {
	CancerTypes   int64
	Variants      int64
	PatientCounts int64
}

// Counts returns the current row count of each import table.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	for _, q := range []struct {
		table string
		dest  *int64
	}{
		{TableCancerType, &c.CancerTypes},
		{TableVariant, &c.Variants},
		{TablePatientCount, &c.PatientCounts},
	} {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+q.table).Scan(q.dest); err != nil {
			return Counts{}, fmt.Errorf("count %s rows: %w", q.table, err)
		}
	}
	return c, nil
}
