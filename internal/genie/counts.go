// Package genie maps the INFO annotations of the GENIE VCF onto
// variant and per-cancer-type patient count rows.
package genie

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/inodb/genie-db/internal/store"
)

// CountMarker separates the cancer type token from the cohort size in a
// patient count key, e.g. SameNucleotideChange_Lung_Cancer_Count_N_40.
const CountMarker = "_Count_"

// Family is a group of INFO patient count keys sharing a prefix.
type Family struct {
	Prefix string // INFO key prefix including the trailing underscore
	Column string // variant_cancer_type_patient_count column
	set    func(*store.PatientCount, int64)
}

// Families lists the patient count families stored per cancer type.
var Families = []Family{
	{
		Prefix: "SameNucleotideChange_",
		Column: "same_nucleotide_change_pc",
		set:    func(pc *store.PatientCount, n int64) { pc.SameNucleotideChange = n },
	},
	{
		Prefix: "SameAminoAcidChange_",
		Column: "same_amino_acid_change_pc",
		set:    func(pc *store.PatientCount, n int64) { pc.SameAminoAcidChange = n },
	},
	{
		Prefix: "SameOrDownstreamTruncatingVariantsPerCDS_",
		Column: "same_or_downstream_truncating_variants_per_cds_pc",
		set:    func(pc *store.PatientCount, n int64) { pc.SameOrDownstreamTruncatingPerCDS = n },
	},
	{
		Prefix: "NestedInframeDeletionsPerCDS_",
		Column: "nested_inframe_deletions_per_aa_pc",
		set:    func(pc *store.PatientCount, n int64) { pc.NestedInframeDeletionsPerAminoAcid = n },
	},
}

// familyOf returns the family whose prefix starts key.
func familyOf(key string) (*Family, bool) {
	for i := range Families {
		if strings.HasPrefix(key, Families[i].Prefix) {
			return &Families[i], true
		}
	}
	return nil, false
}

// Resolver maps a VCF cancer type token to a cancer_type id.
type Resolver interface {
	CancerTypeID(token string) (int64, bool)
}

// CancerTypeIndex is a Resolver backed by a token to id map.
type CancerTypeIndex map[string]int64

// NewCancerTypeIndex indexes cancer types by their VCF name.
func NewCancerTypeIndex(types []store.CancerType) CancerTypeIndex {
	idx := make(CancerTypeIndex, len(types))
	for _, ct := range types {
		idx[ct.VCFName] = ct.ID
	}
	return idx
}

// CancerTypeID implements Resolver.
func (idx CancerTypeIndex) CancerTypeID(token string) (int64, bool) {
	id, ok := idx[token]
	return id, ok
}

// UnknownCancerTypeError is returned when a patient count key names a
// cancer type missing from the reference data.
type UnknownCancerTypeError struct {
	Token string
	Key   string
}

func (e *UnknownCancerTypeError) Error() string {
	return fmt.Sprintf("unknown cancer type %q in INFO key %q: add it to the cancer types reference file and re-run the import",
		e.Token, e.Key)
}

// Reshape collects the patient count keys of one variant into one row per
// cancer type. Keys with the value "0" are skipped, and cancer types
// whose counters are all zero produce no row. Rows are ordered by cancer
// type id; ID and VariantID are left for the caller to assign.
func Reshape(info map[string]string, resolve Resolver) ([]store.PatientCount, error) {
	keys := make([]string, 0, len(info))
	for key := range info {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	byType := make(map[int64]*store.PatientCount)
	for _, key := range keys {
		value := info[key]
		if value == "0" {
			continue
		}
		fam, ok := familyOf(key)
		if !ok {
			continue
		}

		token, _, found := strings.Cut(key[len(fam.Prefix):], CountMarker)
		if !found || token == "" {
			return nil, fmt.Errorf("patient count key %q has no cancer type before %q", key, CountMarker)
		}

		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("patient count %s=%q is not a non-negative integer", key, value)
		}

		id, ok := resolve.CancerTypeID(token)
		if !ok {
			return nil, &UnknownCancerTypeError{Token: token, Key: key}
		}

		pc := byType[id]
		if pc == nil {
			pc = &store.PatientCount{CancerTypeID: id}
			byType[id] = pc
		}
		fam.set(pc, n)
	}

	out := make([]store.PatientCount, 0, len(byType))
	for _, pc := range byType {
		if !pc.IsZero() {
			out = append(out, *pc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CancerTypeID < out[j].CancerTypeID })
	return out, nil
}
