package search

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/genie-db/internal/store"
)

func TestParseTerm(t *testing.T) {
	tests := []struct {
		value string
		want  Key
	}{
		{"NF1", KeyGene},
		{"17:31226000-31227000", KeyRegion},
		{"7:140753336", KeyRegion},
		{"X:100", KeyRegion},
		{"MT:5", KeyRegion},
		{"chr7:140753336", KeyGene},
		{"23:100", KeyGene},
		{" 12:25245350 ", KeyRegion},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTerm(tt.value))
		})
	}
}

func TestChromosomes(t *testing.T) {
	assert.Len(t, Chromosomes, 25)
	assert.True(t, IsChromosome("22"))
	assert.True(t, IsChromosome("Y"))
	assert.False(t, IsChromosome("0"))
	assert.False(t, IsChromosome("M"))
}

func TestParseRegion(t *testing.T) {
	tests := []struct {
		in      string
		want    Region
		wantErr bool
	}{
		{in: "17:31226000-31227000", want: Region{Chrom: "17", Start: 31226000, End: 31227000}},
		{in: "7:140753336", want: Region{Chrom: "7", Start: 140753336, End: 140753336}},
		{in: "7", wantErr: true},
		{in: ":5", wantErr: true},
		{in: "7:abc", wantErr: true},
		{in: "7:5-", wantErr: true},
		{in: "7:10-5", wantErr: true},
		{in: "7:0", wantErr: true},
		{in: "7:1-2-3", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRegion(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegionString(t *testing.T) {
	assert.Equal(t, "7:5", Region{Chrom: "7", Start: 5, End: 5}.String())
	assert.Equal(t, "7:5-9", Region{Chrom: "7", Start: 5, End: 9}.String())
}

func seedStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, store.DriverDuckDB, "")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.ReplaceCancerTypes(ctx, []store.CancerType{
		{ID: 1, Name: "Lung Cancer", VCFName: "Lung_Cancer", IsSolid: true, TotalPatientCount: 40},
		{ID: 2, Name: "All Cancers", VCFName: "All_Cancers", TotalPatientCount: 1000},
		{ID: 3, Name: "Bowel Cancer", VCFName: "Bowel_Cancer", IsSolid: true, TotalPatientCount: 50},
		{ID: 4, Name: "Solid Cancers", VCFName: "Solid_Cancers", IsSolid: true, TotalPatientCount: 800},
	}))
	require.NoError(t, s.WriteBatch(ctx,
		[]store.Variant{
			{ID: 1, Chrom: "12", Pos: 25245350, Ref: "C", Alt: "A", GeneSymbol: "KRAS",
				RefSeqTranscript: sql.NullString{String: "NM_004985.5", Valid: true},
				Consequence:      "splice_region_variant&missense_variant", Classification: "Missense_Mutation",
				HGVSp: sql.NullString{String: "p.Gly12Val", Valid: true}, OriginalDescription: "x",
				AllCancersCount: 7, SolidCancersCount: 6},
			{ID: 2, Chrom: "12", Pos: 25245347, Ref: "C", Alt: "T", GeneSymbol: "KRAS",
				Consequence: "stop_gained", Classification: "Nonsense_Mutation", OriginalDescription: "y"},
			{ID: 3, Chrom: "7", Pos: 140753336, Ref: "A", Alt: "T", GeneSymbol: "BRAF",
				Consequence: "missense_variant", Classification: "Missense_Mutation", OriginalDescription: "z"},
		},
		[]store.PatientCount{
			{ID: 1, VariantID: 1, CancerTypeID: 1, SameNucleotideChange: 4},
			{ID: 2, VariantID: 1, CancerTypeID: 2, SameNucleotideChange: 7},
			{ID: 3, VariantID: 1, CancerTypeID: 3, SameAminoAcidChange: 2},
			{ID: 4, VariantID: 1, CancerTypeID: 4, SameNucleotideChange: 6},
		},
	))
	return s
}

func TestService_Variants(t *testing.T) {
	ctx := context.Background()
	svc := NewService(seedStore(t))

	rows, err := svc.Variants(ctx, KeyGene, "KRAS")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(25245347), rows[0].Pos)
	assert.Equal(t, "Stop gained", rows[0].Consequence)
	assert.Equal(t, "Missense variant", rows[1].Consequence)
	assert.Equal(t, "NM_004985.5", rows[1].RefSeqTranscript)
	assert.Equal(t, "p.Gly12Val", rows[1].HGVSp)
	assert.Equal(t, "", rows[1].HGVSc)
	assert.Equal(t, int64(7), rows[1].AllCancersCount)

	rows, err = svc.Variants(ctx, KeyRegion, "7:140753336")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "BRAF", rows[0].Gene)

	rows, err = svc.Variants(ctx, KeyRegion, "12:25245000-25246000")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = svc.Variants(ctx, KeyRegion, "12:abc")
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = svc.Variants(ctx, Key("protein"), "G12V")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestService_Search(t *testing.T) {
	ctx := context.Background()
	svc := NewService(seedStore(t))

	rows, err := svc.Search(ctx, "BRAF")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rows, err = svc.Search(ctx, "12:25245350")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].VariantID)
}

func TestService_CancerCounts(t *testing.T) {
	ctx := context.Background()
	svc := NewService(seedStore(t))

	counts, err := svc.CancerCounts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, counts, 4)

	var names []string
	for _, c := range counts {
		names = append(names, c.VCFName)
	}
	assert.Equal(t, []string{"All_Cancers", "Solid_Cancers", "Lung_Cancer", "Bowel_Cancer"}, names)
	assert.True(t, counts[0].Aggregate)
	assert.False(t, counts[2].Aggregate)
	assert.InDelta(t, 0.1, counts[2].Frequency(), 1e-9)
	assert.Equal(t, int64(2), counts[3].SameAminoAcidChange)

	counts, err = svc.CancerCounts(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

type failingQuerier struct{ Querier }

func (failingQuerier) VariantsByGene(context.Context, string) ([]store.Variant, error) {
	return nil, errors.New("connection lost")
}

func TestService_VariantsError(t *testing.T) {
	_, err := NewService(failingQuerier{}).Variants(context.Background(), KeyGene, "KRAS")
	assert.EqualError(t, err, "connection lost")
}

func TestCancerCount_FrequencyZeroCohort(t *testing.T) {
	assert.Equal(t, 0.0, CancerCount{SameNucleotideChange: 3}.Frequency())
}
