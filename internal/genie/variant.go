package genie

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/inodb/genie-db/internal/consequence"
	"github.com/inodb/genie-db/internal/store"
	"github.com/inodb/genie-db/internal/vcf"
)

// ColumnKind is the storage type of a variant column.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindInt
)

// Column maps one INFO key onto a variant table column.
type Column struct {
	InfoKey  string
	Name     string
	Kind     ColumnKind
	Nullable bool // missing key stores NULL
	Default  string
	set      func(v *store.Variant, text string, n int64, valid bool)
}

// Required reports whether a record without the key is rejected.
func (c Column) Required() bool {
	return !c.Nullable && c.Default == ""
}

func nullString(s string, valid bool) sql.NullString {
	return sql.NullString{String: s, Valid: valid}
}

// VariantColumns is the INFO key to variant column mapping. Keys of the
// aggregated cancer types are listed without their _Count_N suffix.
var VariantColumns = []Column{
	{InfoKey: "Hugo_Symbol", Name: "gene_symbol",
		set: func(v *store.Variant, s string, _ int64, _ bool) { v.GeneSymbol = s }},
	{InfoKey: "RefSeq", Name: "refseq_transcript", Nullable: true,
		set: func(v *store.Variant, s string, _ int64, ok bool) { v.RefSeqTranscript = nullString(s, ok) }},
	{InfoKey: "Consequence", Name: "consequence",
		set: func(v *store.Variant, s string, _ int64, _ bool) { v.Consequence = s }},
	{InfoKey: "Variant_Classification", Name: "classification",
		set: func(v *store.Variant, s string, _ int64, _ bool) { v.Classification = s }},
	{InfoKey: "HGVSc", Name: "hgvs_c", Nullable: true,
		set: func(v *store.Variant, s string, _ int64, ok bool) { v.HGVSc = nullString(s, ok) }},
	{InfoKey: "HGVSp", Name: "hgvs_p", Nullable: true,
		set: func(v *store.Variant, s string, _ int64, ok bool) { v.HGVSp = nullString(s, ok) }},
	{InfoKey: "Genie_description", Name: "original_description",
		set: func(v *store.Variant, s string, _ int64, _ bool) { v.OriginalDescription = s }},
	{InfoKey: "OriginalContig", Name: "original_contig", Nullable: true,
		set: func(v *store.Variant, s string, _ int64, ok bool) { v.OriginalContig = nullString(s, ok) }},
	{InfoKey: "OriginalStart", Name: "original_start", Kind: KindInt, Nullable: true,
		set: func(v *store.Variant, _ string, n int64, ok bool) { v.OriginalStart = sql.NullInt64{Int64: n, Valid: ok} }},
	{InfoKey: "SameNucleotideChange_All_Cancers", Name: "all_cancers_count", Kind: KindInt, Default: "0",
		set: func(v *store.Variant, _ string, n int64, _ bool) { v.AllCancersCount = n }},
	{InfoKey: "SameNucleotideChange_Haemonc_Cancers", Name: "haemonc_cancers_count", Kind: KindInt, Default: "0",
		set: func(v *store.Variant, _ string, n int64, _ bool) { v.HaemoncCancersCount = n }},
	{InfoKey: "SameNucleotideChange_Solid_Cancers", Name: "solid_cancers_count", Kind: KindInt, Default: "0",
		set: func(v *store.Variant, _ string, n int64, _ bool) { v.SolidCancersCount = n }},
}

// MissingFieldError is returned when a record lacks a required INFO key.
type MissingFieldError struct {
	Key   string
	Locus string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("variant %s: required INFO key %q is missing", e.Locus, e.Key)
}

// columnKey strips the cohort size suffix from a patient count key.
func columnKey(key string) string {
	if i := strings.Index(key, CountMarker+"N"); i >= 0 {
		return key[:i]
	}
	return key
}

// VariantFromRecord builds the variant row for rec with the given id.
func VariantFromRecord(rec *vcf.Record, id int64) (store.Variant, error) {
	v := store.Variant{
		ID:    id,
		Chrom: rec.Chrom,
		Pos:   rec.Pos,
		Ref:   rec.Ref,
		Alt:   rec.Alt,
	}

	values := make(map[string]string, len(rec.Info))
	for key, val := range rec.Info {
		values[columnKey(key)] = val
	}

	for _, col := range VariantColumns {
		raw, ok := values[col.InfoKey]
		if !ok && col.Default != "" {
			raw, ok = col.Default, true
		}
		if !ok && col.Required() {
			return store.Variant{}, &MissingFieldError{Key: col.InfoKey, Locus: rec.Locus()}
		}

		var n int64
		if ok && col.Kind == KindInt {
			var err error
			n, err = strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return store.Variant{}, fmt.Errorf("variant %s: INFO %s=%q is not an integer", rec.Locus(), col.InfoKey, raw)
			}
		}
		col.set(&v, raw, n, ok)
	}

	return v, nil
}

// ValidateInfo checks INFO values with a controlled vocabulary.
// It is installed as the VCF decoder's validation hook.
func ValidateInfo(key, value string) error {
	if key == "Consequence" {
		return consequence.Validate(value)
	}
	return nil
}
