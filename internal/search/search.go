// Package search answers gene, region and variant lookups against the
// imported GENIE variants.
package search

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/inodb/genie-db/internal/consequence"
	"github.com/inodb/genie-db/internal/store"
)

// Key is the kind of a search term.
type Key string

const (
	KeyGene   Key = "gene"
	KeyRegion Key = "region"
)

// Chromosomes lists the chromosome names accepted in region terms.
var Chromosomes = func() []string {
	names := make([]string, 0, 25)
	for i := 1; i <= 22; i++ {
		names = append(names, strconv.Itoa(i))
	}
	return append(names, "X", "Y", "MT")
}()

var chromosomeSet = func() map[string]bool {
	m := make(map[string]bool, len(Chromosomes))
	for _, c := range Chromosomes {
		m[c] = true
	}
	return m
}()

// IsChromosome reports whether name is a known chromosome.
func IsChromosome(name string) bool {
	return chromosomeSet[name]
}

// ParseTerm classifies a free-text search value. Values of the form
// chrom:... with a known chromosome are regions; anything else is a gene.
func ParseTerm(value string) Key {
	value = strings.TrimSpace(value)
	if chrom, _, ok := strings.Cut(value, ":"); ok && IsChromosome(chrom) {
		return KeyRegion
	}
	return KeyGene
}

// Region is a closed interval of 1-based positions on one chromosome.
type Region struct {
	Chrom string
	Start int64
	End   int64
}

func (r Region) String() string {
	if r.Start == r.End {
		return fmt.Sprintf("%s:%d", r.Chrom, r.Start)
	}
	return fmt.Sprintf("%s:%d-%d", r.Chrom, r.Start, r.End)
}

// ParseRegion parses "chrom:start-end" or "chrom:pos".
func ParseRegion(s string) (Region, error) {
	chrom, poses, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || chrom == "" {
		return Region{}, fmt.Errorf("invalid region %q: want chrom:start-end or chrom:pos", s)
	}

	startStr, endStr, isRange := strings.Cut(poses, "-")
	if !isRange {
		endStr = startStr
	}
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil {
		return Region{}, fmt.Errorf("invalid region %q: bad start %q", s, startStr)
	}
	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil {
		return Region{}, fmt.Errorf("invalid region %q: bad end %q", s, endStr)
	}
	if start < 1 || end < start {
		return Region{}, fmt.Errorf("invalid region %q: positions must satisfy 1 <= start <= end", s)
	}
	return Region{Chrom: chrom, Start: start, End: end}, nil
}

// Querier is the read side of the store.
type Querier interface {
	VariantsByGene(ctx context.Context, geneSymbol string) ([]store.Variant, error)
	VariantsInRegion(ctx context.Context, chrom string, start, end int64) ([]store.Variant, error)
	PatientCountsByVariant(ctx context.Context, variantID int64) ([]store.CancerTypeCount, error)
}

// Row is one variant as listed in search results.
type Row struct {
	VariantID           int64
	Chrom               string
	Pos                 int64
	Ref                 string
	Alt                 string
	Gene                string
	RefSeqTranscript    string
	Consequence         string // display name of the most severe term
	HGVSc               string
	HGVSp               string
	AllCancersCount     int64
	HaemoncCancersCount int64
	SolidCancersCount   int64
}

// CancerCount is the patient count breakdown of a variant for one cancer type.
type CancerCount struct {
	CancerType        string
	VCFName           string
	Aggregate         bool
	TotalPatientCount int64

	SameNucleotideChange               int64
	SameAminoAcidChange                int64
	SameOrDownstreamTruncatingPerCDS   int64
	NestedInframeDeletionsPerAminoAcid int64
}

// Frequency returns the fraction of the cohort with the same nucleotide change.
func (c CancerCount) Frequency() float64 {
	if c.TotalPatientCount == 0 {
		return 0
	}
	return float64(c.SameNucleotideChange) / float64(c.TotalPatientCount)
}

// AggregateCancerTypes are the VCF names of cancer types that group others,
// in display order.
var AggregateCancerTypes = []string{"All_Cancers", "Haemonc_Cancers", "Solid_Cancers"}

func aggregateRank(vcfName string) int {
	for i, name := range AggregateCancerTypes {
		if name == vcfName {
			return i
		}
	}
	return -1
}

// Service runs searches against a Querier.
type Service struct {
	q Querier
}

// NewService creates a search service.
func NewService(q Querier) *Service {
	return &Service{q: q}
}

// Search classifies value with ParseTerm and runs the matching lookup.
func (s *Service) Search(ctx context.Context, value string) ([]Row, error) {
	return s.Variants(ctx, ParseTerm(value), strings.TrimSpace(value))
}

// Variants looks up variants by gene symbol or region, ordered by position.
// A malformed region or an unknown key gives an empty result.
func (s *Service) Variants(ctx context.Context, key Key, value string) ([]Row, error) {
	var (
		variants []store.Variant
		err      error
	)
	switch key {
	case KeyGene:
		variants, err = s.q.VariantsByGene(ctx, value)
	case KeyRegion:
		region, perr := ParseRegion(value)
		if perr != nil {
			return []Row{}, nil
		}
		variants, err = s.q.VariantsInRegion(ctx, region.Chrom, region.Start, region.End)
	default:
		return []Row{}, nil
	}
	if err != nil {
		return nil, err
	}

	rows := make([]Row, len(variants))
	for i, v := range variants {
		rows[i] = Row{
			VariantID:           v.ID,
			Chrom:               v.Chrom,
			Pos:                 v.Pos,
			Ref:                 v.Ref,
			Alt:                 v.Alt,
			Gene:                v.GeneSymbol,
			RefSeqTranscript:    v.RefSeqTranscript.String,
			Consequence:         consequence.Worst(v.Consequence),
			HGVSc:               v.HGVSc.String,
			HGVSp:               v.HGVSp.String,
			AllCancersCount:     v.AllCancersCount,
			HaemoncCancersCount: v.HaemoncCancersCount,
			SolidCancersCount:   v.SolidCancersCount,
		}
	}
	return rows, nil
}

// CancerCounts returns the per-cancer-type breakdown of a variant.
// Aggregate cancer types come first, followed by the others in reference order.
func (s *Service) CancerCounts(ctx context.Context, variantID int64) ([]CancerCount, error) {
	pcs, err := s.q.PatientCountsByVariant(ctx, variantID)
	if err != nil {
		return nil, err
	}

	out := make([]CancerCount, len(pcs))
	for i, pc := range pcs {
		out[i] = CancerCount{
			CancerType:                         pc.CancerType.Name,
			VCFName:                            pc.CancerType.VCFName,
			Aggregate:                          aggregateRank(pc.CancerType.VCFName) >= 0,
			TotalPatientCount:                  pc.CancerType.TotalPatientCount,
			SameNucleotideChange:               pc.SameNucleotideChange,
			SameAminoAcidChange:                pc.SameAminoAcidChange,
			SameOrDownstreamTruncatingPerCDS:   pc.SameOrDownstreamTruncatingPerCDS,
			NestedInframeDeletionsPerAminoAcid: pc.NestedInframeDeletionsPerAminoAcid,
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := aggregateRank(out[i].VCFName), aggregateRank(out[j].VCFName)
		if ri < 0 || rj < 0 {
			return ri >= 0 && rj < 0
		}
		return ri < rj
	})
	return out, nil
}
