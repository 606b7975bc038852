package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"
)

// FileFingerprint holds stat-based identity for a source file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// ImportRun records one successful import.
type ImportRun struct {
	RunID           string
	VCF             FileFingerprint
	CancerTypesPath string
	CancerTypes     int64
	Variants        int64
	PatientCounts   int64
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Duration returns how long the run took.
func (r ImportRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RecordImportRun stores a completed run.
func (s *Store) RecordImportRun(ctx context.Context, r ImportRun) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO import_run (
		run_id, vcf_path, vcf_size, vcf_modtime, cancer_types_path,
		cancer_types, variants, patient_counts, started_at, finished_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.RunID, r.VCF.Path, r.VCF.Size, r.VCF.ModTime.UTC(), r.CancerTypesPath,
		r.CancerTypes, r.Variants, r.PatientCounts, r.StartedAt.UTC(), r.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record import run %s: %w", r.RunID, err)
	}
	return nil
}

// LastImportRun returns the most recently finished run.
// The boolean is false if no import has completed yet.
func (s *Store) LastImportRun(ctx context.Context) (ImportRun, bool, error) {
	var r ImportRun
	err := s.db.QueryRowContext(ctx, `SELECT
		run_id, vcf_path, vcf_size, vcf_modtime, cancer_types_path,
		cancer_types, variants, patient_counts, started_at, finished_at
		FROM import_run
		ORDER BY finished_at DESC
		LIMIT 1`).Scan(
		&r.RunID, &r.VCF.Path, &r.VCF.Size, &r.VCF.ModTime, &r.CancerTypesPath,
		&r.CancerTypes, &r.Variants, &r.PatientCounts, &r.StartedAt, &r.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ImportRun{}, false, nil
	}
	if err != nil {
		return ImportRun{}, false, fmt.Errorf("query last import run: %w", err)
	}
	return r, true, nil
}
