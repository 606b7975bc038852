// Package output provides search result formatters.
package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/genie-db/internal/search"
)

// TabWriter writes variant search results in tab-delimited format.
type TabWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"#Variant_id",
			"Location",
			"Ref",
			"Alt",
			"Gene",
			"RefSeq",
			"Consequence",
			"HGVSc",
			"HGVSp",
			"All_Cancers",
			"Haemonc_Cancers",
			"Solid_Cancers",
		},
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes a single variant row.
func (tw *TabWriter) Write(r search.Row) error {
	values := []string{
		strconv.FormatInt(r.VariantID, 10),
		fmt.Sprintf("%s:%d", r.Chrom, r.Pos),
		r.Ref,
		r.Alt,
		dash(r.Gene),
		dash(r.RefSeqTranscript),
		dash(r.Consequence),
		dash(r.HGVSc),
		dash(r.HGVSp),
		strconv.FormatInt(r.AllCancersCount, 10),
		strconv.FormatInt(r.HaemoncCancersCount, 10),
		strconv.FormatInt(r.SolidCancersCount, 10),
	}

	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

// CountsWriter writes a variant's per-cancer-type patient counts.
type CountsWriter struct {
	w *bufio.Writer
}

// NewCountsWriter creates a new tab-delimited patient count writer.
func NewCountsWriter(w io.Writer) *CountsWriter {
	return &CountsWriter{w: bufio.NewWriter(w)}
}

// WriteHeader writes the header line.
func (cw *CountsWriter) WriteHeader() error {
	_, err := cw.w.WriteString("#Cancer_type\tPatients\tSame_nucleotide_change\tFrequency\t" +
		"Same_amino_acid_change\tSame_or_downstream_truncating_per_CDS\tNested_inframe_deletions_per_AA\n")
	return err
}

// Write writes one cancer type row.
func (cw *CountsWriter) Write(c search.CancerCount) error {
	_, err := fmt.Fprintf(cw.w, "%s\t%d\t%d\t%.4f\t%d\t%d\t%d\n",
		c.CancerType, c.TotalPatientCount, c.SameNucleotideChange, c.Frequency(),
		c.SameAminoAcidChange, c.SameOrDownstreamTruncatingPerCDS, c.NestedInframeDeletionsPerAminoAcid)
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (cw *CountsWriter) Flush() error {
	return cw.w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
