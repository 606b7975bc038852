// Package vcf reads annotated VCF records for database import.
package vcf

import "strconv"

// RecordSource is implemented by readers that yield decoded VCF records.
type RecordSource interface {
	// Next reads the next record.
	// Returns nil, nil when there are no more records.
	Next() (*Record, error)

	// Close releases the underlying file.
	Close() error

	// LineNumber returns the current line number being processed.
	LineNumber() int
}

// Record is one decoded VCF body line.
type Record struct {
	Chrom string            // Chromosome name as written in the file
	Pos   int64             // 1-based genomic position
	Ref   string            // Reference allele
	Alt   string            // Alternate allele
	Info  map[string]string // INFO key-value pairs
}

// Locus returns the CHROM-POS-REF-ALT identifier of the record.
func (r *Record) Locus() string {
	return r.Chrom + "-" + strconv.FormatInt(r.Pos, 10) + "-" + r.Ref + "-" + r.Alt
}
