package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"
)

// Variant is a row of the variant table.
type Variant struct {
	ID    int64
	Chrom string
	Pos   int64
	Ref   string
	Alt   string

	GeneSymbol          string
	RefSeqTranscript    sql.NullString
	Consequence         string // raw "&"-joined VEP terms
	Classification      string
	HGVSc               sql.NullString
	HGVSp               sql.NullString
	OriginalDescription string
	OriginalContig      sql.NullString
	OriginalStart       sql.NullInt64

	// Same-nucleotide-change patient counts of the aggregated cancer types,
	// duplicated here so variant listings need no join.
	AllCancersCount     int64
	HaemoncCancersCount int64
	SolidCancersCount   int64
}

// PatientCount is a row of the variant_cancer_type_patient_count table.
type PatientCount struct {
	ID           int64
	VariantID    int64
	CancerTypeID int64

	SameNucleotideChange               int64
	SameAminoAcidChange                int64
	SameOrDownstreamTruncatingPerCDS   int64
	NestedInframeDeletionsPerAminoAcid int64
}

// IsZero reports whether every counter is zero.
func (pc PatientCount) IsZero() bool {
	return pc.SameNucleotideChange == 0 && pc.SameAminoAcidChange == 0 &&
		pc.SameOrDownstreamTruncatingPerCDS == 0 && pc.NestedInframeDeletionsPerAminoAcid == 0
}

var variantColumns = []string{
	"id", "chrom", "pos", "ref", "alt",
	"gene_symbol", "refseq_transcript", "consequence", "classification",
	"hgvs_c", "hgvs_p", "original_description", "original_contig", "original_start",
	"all_cancers_count", "haemonc_cancers_count", "solid_cancers_count",
}

var patientCountColumns = []string{
	"id", "variant_id", "cancer_type_id",
	"same_nucleotide_change_pc", "same_amino_acid_change_pc",
	"same_or_downstream_truncating_variants_per_cds_pc", "nested_inframe_deletions_per_aa_pc",
}

func (v *Variant) values() []any {
	return []any{
		v.ID, v.Chrom, v.Pos, v.Ref, v.Alt,
		v.GeneSymbol, v.RefSeqTranscript, v.Consequence, v.Classification,
		v.HGVSc, v.HGVSp, v.OriginalDescription, v.OriginalContig, v.OriginalStart,
		v.AllCancersCount, v.HaemoncCancersCount, v.SolidCancersCount,
	}
}

func (pc *PatientCount) values() []any {
	return []any{
		pc.ID, pc.VariantID, pc.CancerTypeID,
		pc.SameNucleotideChange, pc.SameAminoAcidChange,
		pc.SameOrDownstreamTruncatingPerCDS, pc.NestedInframeDeletionsPerAminoAcid,
	}
}

// ClearVariants removes all patient counts and then all variants.
// Each delete commits on its own: the child table must be empty before
// the parent rows can go.
func (s *Store) ClearVariants(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+TablePatientCount); err != nil {
		return fmt.Errorf("clear %s: %w", TablePatientCount, err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+TableVariant); err != nil {
		return fmt.Errorf("clear %s: %w", TableVariant, err)
	}
	return nil
}

// WriteBatch inserts variants and their patient counts in one transaction.
// Variants are inserted first so every patient count can reference its variant.
// On error the transaction is rolled back and nothing from the batch is kept.
//
// DuckDB batches go through the Appender API; PostgreSQL batches use
// multi-row INSERT statements.
func (s *Store) WriteBatch(ctx context.Context, variants []Variant, counts []PatientCount) error {
	vrows := make([][]any, len(variants))
	for i := range variants {
		vrows[i] = variants[i].values()
	}
	crows := make([][]any, len(counts))
	for i := range counts {
		crows[i] = counts[i].values()
	}

	if s.driver == DriverDuckDB {
		return s.appendBatch(ctx, vrows, crows)
	}
	return s.insertBatch(ctx, vrows, crows)
}

func (s *Store) insertBatch(ctx context.Context, vrows, crows [][]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := insertRows(ctx, tx, TableVariant, variantColumns, vrows); err != nil {
		return err
	}
	if err := insertRows(ctx, tx, TablePatientCount, patientCountColumns, crows); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	committed = true
	return nil
}

// appendBatch writes both tables with DuckDB appenders inside one explicit
// transaction. Appenders and BEGIN/COMMIT must share a connection, so the
// batch pins one from the pool.
func (s *Store) appendBatch(ctx context.Context, vrows, crows [][]any) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN TRANSACTION"); err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := appendRows(conn, TableVariant, vrows); err != nil {
		return err
	}
	if err := appendRows(conn, TablePatientCount, crows); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	committed = true
	return nil
}

// appendRows appends rows to table and flushes the appender. Row values
// must follow the column order of the table definition.
func appendRows(conn *sql.Conn, table string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	return conn.Raw(func(driverConn any) error {
		appender, err := goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		if err != nil {
			return fmt.Errorf("create %s appender: %w", table, err)
		}

		for i, row := range rows {
			vals, err := driverValues(row)
			if err != nil {
				appender.Close()
				return fmt.Errorf("append %s row %d: %w", table, i+1, err)
			}
			if err := appender.AppendRow(vals...); err != nil {
				appender.Close()
				return fmt.Errorf("append %s row %d: %w", table, i+1, err)
			}
		}

		if err := appender.Close(); err != nil {
			return fmt.Errorf("flush %s rows: %w", table, err)
		}
		return nil
	})
}

// driverValues resolves sql.Null* fields, which the appender does not
// accept, to plain values or nil.
func driverValues(row []any) ([]driver.Value, error) {
	out := make([]driver.Value, len(row))
	for i, v := range row {
		if valuer, ok := v.(driver.Valuer); ok {
			dv, err := valuer.Value()
			if err != nil {
				return nil, err
			}
			out[i] = dv
			continue
		}
		out[i] = v
	}
	return out, nil
}

// maxParams bounds the bind parameters per INSERT statement
// (PostgreSQL accepts at most 65535).
var maxParams = 30000

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertRows inserts rows with multi-row VALUES statements, chunked to stay
// under the bind parameter limit.
func insertRows(ctx context.Context, ex execer, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	chunkSize := maxParams / len(columns)
	prefix := "INSERT INTO " + table + " (" + strings.Join(columns, ", ") + ") VALUES "

	for i := 0; i < len(rows); i += chunkSize {
		end := min(i+chunkSize, len(rows))
		chunk := rows[i:end]

		var sb strings.Builder
		sb.WriteString(prefix)
		args := make([]any, 0, len(chunk)*len(columns))
		n := 1
		for j, row := range chunk {
			if j > 0 {
				sb.WriteByte(',')
			}
			sb.WriteByte('(')
			for k := range row {
				if k > 0 {
					sb.WriteByte(',')
				}
				sb.WriteByte('$')
				sb.WriteString(strconv.Itoa(n))
				n++
			}
			sb.WriteByte(')')
			args = append(args, row...)
		}

		if _, err := ex.ExecContext(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("insert %s rows %d-%d: %w", table, i+1, end, err)
		}
	}
	return nil
}

const selectVariant = `SELECT
		id, chrom, pos, ref, alt,
		gene_symbol, refseq_transcript, consequence, classification,
		hgvs_c, hgvs_p, original_description, original_contig, original_start,
		all_cancers_count, haemonc_cancers_count, solid_cancers_count
		FROM variant`

// VariantsByGene returns all variants of a gene ordered by position.
func (s *Store) VariantsByGene(ctx context.Context, geneSymbol string) ([]Variant, error) {
	rows, err := s.db.QueryContext(ctx, selectVariant+`
		WHERE gene_symbol = $1
		ORDER BY pos, id`, geneSymbol)
	if err != nil {
		return nil, fmt.Errorf("query by gene: %w", err)
	}
	defer rows.Close()

	return scanVariants(rows)
}

// VariantsInRegion returns variants on chrom with start <= pos <= end ordered by position.
func (s *Store) VariantsInRegion(ctx context.Context, chrom string, start, end int64) ([]Variant, error) {
	rows, err := s.db.QueryContext(ctx, selectVariant+`
		WHERE chrom = $1 AND pos >= $2 AND pos <= $3
		ORDER BY pos, id`, chrom, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by region: %w", err)
	}
	defer rows.Close()

	return scanVariants(rows)
}

// VariantByID returns a single variant. The boolean is false if no such variant exists.
func (s *Store) VariantByID(ctx context.Context, id int64) (Variant, bool, error) {
	rows, err := s.db.QueryContext(ctx, selectVariant+` WHERE id = $1`, id)
	if err != nil {
		return Variant{}, false, fmt.Errorf("query variant %d: %w", id, err)
	}
	defer rows.Close()

	vs, err := scanVariants(rows)
	if err != nil || len(vs) == 0 {
		return Variant{}, false, err
	}
	return vs[0], true, nil
}

// scanVariants scans rows into Variant slices.
func scanVariants(rows *sql.Rows) ([]Variant, error) {
	var out []Variant
	for rows.Next() {
		var v Variant
		if err := rows.Scan(
			&v.ID, &v.Chrom, &v.Pos, &v.Ref, &v.Alt,
			&v.GeneSymbol, &v.RefSeqTranscript, &v.Consequence, &v.Classification,
			&v.HGVSc, &v.HGVSp, &v.OriginalDescription, &v.OriginalContig, &v.OriginalStart,
			&v.AllCancersCount, &v.HaemoncCancersCount, &v.SolidCancersCount,
		); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variants: %w", err)
	}
	return out, nil
}

// CancerTypeCount is a patient count joined with its cancer type.
type CancerTypeCount struct {
	PatientCount
	CancerType CancerType
}

// PatientCountsByVariant returns the per-cancer-type breakdown of a variant,
// ordered by cancer type id.
func (s *Store) PatientCountsByVariant(ctx context.Context, variantID int64) ([]CancerTypeCount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		pc.id, pc.variant_id, pc.cancer_type_id,
		pc.same_nucleotide_change_pc, pc.same_amino_acid_change_pc,
		pc.same_or_downstream_truncating_variants_per_cds_pc, pc.nested_inframe_deletions_per_aa_pc,
		ct.id, ct.cancer_type, ct.cancer_type_vcf, ct.is_haemonc, ct.is_solid, ct.total_patient_count
		FROM variant_cancer_type_patient_count pc
		JOIN cancer_type ct ON ct.id = pc.cancer_type_id
		WHERE pc.variant_id = $1
		ORDER BY ct.id`, variantID)
	if err != nil {
		return nil, fmt.Errorf("query patient counts: %w", err)
	}
	defer rows.Close()

	var out []CancerTypeCount
	for rows.Next() {
		var c CancerTypeCount
		if err := rows.Scan(
			&c.ID, &c.VariantID, &c.CancerTypeID,
			&c.SameNucleotideChange, &c.SameAminoAcidChange,
			&c.SameOrDownstreamTruncatingPerCDS, &c.NestedInframeDeletionsPerAminoAcid,
			&c.CancerType.ID, &c.CancerType.Name, &c.CancerType.VCFName,
			&c.CancerType.IsHaemonc, &c.CancerType.IsSolid, &c.CancerType.TotalPatientCount,
		); err != nil {
			return nil, fmt.Errorf("scan patient count: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patient counts: %w", err)
	}
	return out, nil
}
