package store

import (
	"context"
	"fmt"
)

// CancerType is a row of the cancer_type reference table.
type CancerType struct {
	ID                int64
	Name              string // display name
	VCFName           string // token used inside VCF INFO keys
	IsHaemonc         bool
	IsSolid           bool
	TotalPatientCount int64
}

var cancerTypeColumns = []string{
	"id", "cancer_type", "cancer_type_vcf", "is_haemonc", "is_solid", "total_patient_count",
}

// ReplaceCancerTypes empties the cancer_type table and inserts types.
// Patient counts reference cancer types, so they are deleted first.
// The inserts run in a single transaction.
func (s *Store) ReplaceCancerTypes(ctx context.Context, types []CancerType) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+TablePatientCount); err != nil {
		return fmt.Errorf("clear %s: %w", TablePatientCount, err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+TableCancerType); err != nil {
		return fmt.Errorf("clear %s: %w", TableCancerType, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cancer types: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rows := make([][]any, len(types))
	for i, ct := range types {
		rows[i] = []any{ct.ID, ct.Name, ct.VCFName, ct.IsHaemonc, ct.IsSolid, ct.TotalPatientCount}
	}
	if err := insertRows(ctx, tx, TableCancerType, cancerTypeColumns, rows); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cancer types: %w", err)
	}
	committed = true
	return nil
}

// CancerTypes returns all cancer types ordered by id.
func (s *Store) CancerTypes(ctx context.Context) ([]CancerType, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, cancer_type, cancer_type_vcf, is_haemonc, is_solid, total_patient_count
		FROM cancer_type
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query cancer types: %w", err)
	}
	defer rows.Close()

	var out []CancerType
	for rows.Next() {
		var ct CancerType
		if err := rows.Scan(&ct.ID, &ct.Name, &ct.VCFName, &ct.IsHaemonc, &ct.IsSolid, &ct.TotalPatientCount); err != nil {
			return nil, fmt.Errorf("scan cancer type: %w", err)
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}
