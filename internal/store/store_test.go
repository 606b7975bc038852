package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), DriverDuckDB, "")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testCancerTypes() []CancerType {
	return []CancerType{
		{ID: 1, Name: "All Cancers", VCFName: "All_Cancers", TotalPatientCount: 1000},
		{ID: 2, Name: "Haemonc Cancers", VCFName: "Haemonc_Cancers", IsHaemonc: true, TotalPatientCount: 200},
		{ID: 3, Name: "Lung Cancer", VCFName: "Lung_Cancer", IsSolid: true, TotalPatientCount: 40},
	}
}

func krasVariant(id int64) Variant {
	return Variant{
		ID: id, Chrom: "12", Pos: 25245350, Ref: "C", Alt: "A",
		GeneSymbol:          "KRAS",
		RefSeqTranscript:    sql.NullString{String: "NM_004985.5", Valid: true},
		Consequence:         "missense_variant",
		Classification:      "Missense_Mutation",
		HGVSc:               sql.NullString{String: "c.35G>T", Valid: true},
		HGVSp:               sql.NullString{String: "p.Gly12Val", Valid: true},
		OriginalDescription: "KRAS p.G12V",
		OriginalContig:      sql.NullString{String: "chr12", Valid: true},
		OriginalStart:       sql.NullInt64{Int64: 25245350, Valid: true},
		AllCancersCount:     7,
	}
}

func TestOpenClose(t *testing.T) {
	s := openInMemory(t)
	assert.NotNil(t, s.DB())
	assert.Equal(t, DriverDuckDB, s.Driver())

	c, err := s.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Counts{}, c)
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "genie.duckdb")
	s, err := Open(context.Background(), DriverDuckDB, path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err)

	// Reopening an existing database keeps the schema.
	s, err = Open(context.Background(), DriverDuckDB, path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestOpen_UnreadableDuckDBFailsFast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.duckdb")
	require.NoError(t, os.WriteFile(path, []byte("this is not a duckdb database file"), 0644))

	start := time.Now()
	_, err := Open(context.Background(), DriverDuckDB, path)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestOpen_BadDriver(t *testing.T) {
	_, err := Open(context.Background(), "sqlite3", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")

	_, err = Open(context.Background(), DriverPostgres, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection url is required")
}

func TestReplaceCancerTypes(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)

	require.NoError(t, s.ReplaceCancerTypes(ctx, testCancerTypes()))
	got, err := s.CancerTypes(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, testCancerTypes(), got)

	// Replacing drops the old rows and any counts pointing at them.
	require.NoError(t, s.WriteBatch(ctx,
		[]Variant{krasVariant(1)},
		[]PatientCount{{ID: 1, VariantID: 1, CancerTypeID: 3, SameNucleotideChange: 5}},
	))
	require.NoError(t, s.ReplaceCancerTypes(ctx, testCancerTypes()[:1]))

	c, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{CancerTypes: 1, Variants: 1, PatientCounts: 0}, c)
}

func TestReplaceCancerTypes_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)

	types := testCancerTypes()
	types[2].VCFName = types[0].VCFName
	require.Error(t, s.ReplaceCancerTypes(ctx, types))

	got, err := s.CancerTypes(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.ReplaceCancerTypes(ctx, testCancerTypes()))
	got, err = s.CancerTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestWriteBatchAndLookup(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)
	require.NoError(t, s.ReplaceCancerTypes(ctx, testCancerTypes()))

	braf := Variant{
		ID: 2, Chrom: "7", Pos: 140753336, Ref: "A", Alt: "T",
		GeneSymbol: "BRAF", Consequence: "missense_variant&splice_region_variant",
		Classification: "Missense_Mutation", OriginalDescription: "BRAF p.V600E",
	}
	kras2 := krasVariant(3)
	kras2.Pos = 25245347
	kras2.Alt = "T"

	err := s.WriteBatch(ctx,
		[]Variant{krasVariant(1), braf, kras2},
		[]PatientCount{
			{ID: 1, VariantID: 1, CancerTypeID: 1, SameNucleotideChange: 7, SameAminoAcidChange: 9},
			{ID: 2, VariantID: 1, CancerTypeID: 3, SameNucleotideChange: 5},
		},
	)
	require.NoError(t, err)

	kras, err := s.VariantsByGene(ctx, "KRAS")
	require.NoError(t, err)
	require.Len(t, kras, 2)
	assert.Equal(t, int64(25245347), kras[0].Pos, "ordered by position")
	assert.Equal(t, krasVariant(1), kras[1])

	got, ok, err := s.VariantByID(ctx, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, braf, got)
	assert.False(t, got.HGVSc.Valid)
	assert.False(t, got.OriginalStart.Valid)

	_, ok, err = s.VariantByID(ctx, 99)
	require.NoError(t, err)
	assert.False(t, ok)

	region, err := s.VariantsInRegion(ctx, "12", 25245300, 25245400)
	require.NoError(t, err)
	assert.Len(t, region, 2)

	region, err = s.VariantsInRegion(ctx, "7", 140753336, 140753336)
	require.NoError(t, err)
	require.Len(t, region, 1)
	assert.Equal(t, "BRAF", region[0].GeneSymbol)

	none, err := s.VariantsByGene(ctx, "NOTEXIST")
	require.NoError(t, err)
	assert.Empty(t, none)

	counts, err := s.PatientCountsByVariant(ctx, 1)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "All_Cancers", counts[0].CancerType.VCFName)
	assert.Equal(t, int64(9), counts[0].SameAminoAcidChange)
	assert.Equal(t, "Lung Cancer", counts[1].CancerType.Name)
	assert.Equal(t, int64(5), counts[1].SameNucleotideChange)
	assert.Equal(t, int64(0), counts[1].NestedInframeDeletionsPerAminoAcid)
}

func TestWriteBatch_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)
	require.NoError(t, s.ReplaceCancerTypes(ctx, testCancerTypes()))
	require.NoError(t, s.WriteBatch(ctx, []Variant{krasVariant(1)}, nil))

	fresh := krasVariant(2)
	fresh.Pos = 1
	duplicate := krasVariant(3)

	err := s.WriteBatch(ctx, []Variant{fresh, duplicate},
		[]PatientCount{{ID: 1, VariantID: 2, CancerTypeID: 1, SameNucleotideChange: 1}})
	require.Error(t, err)

	c, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Variants)
	assert.Equal(t, int64(0), c.PatientCounts)
}

func TestWriteBatch_DefaultBatchSize(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)
	require.NoError(t, s.ReplaceCancerTypes(ctx, testCancerTypes()))

	const n = 10000
	variants := make([]Variant, n)
	counts := make([]PatientCount, n)
	for i := range variants {
		v := krasVariant(int64(i + 1))
		v.Pos = int64(1000 + i)
		if i%2 == 1 {
			v.HGVSp = sql.NullString{}
			v.OriginalStart = sql.NullInt64{}
		}
		variants[i] = v
		counts[i] = PatientCount{ID: int64(i + 1), VariantID: int64(i + 1), CancerTypeID: 3, SameNucleotideChange: 2}
	}

	start := time.Now()
	require.NoError(t, s.WriteBatch(ctx, variants, counts))
	assert.Less(t, time.Since(start), 15*time.Second)

	c, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(n), c.Variants)
	assert.Equal(t, int64(n), c.PatientCounts)

	v, ok, err := s.VariantByID(ctx, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, v.HGVSp.Valid)
	assert.False(t, v.OriginalStart.Valid)
	assert.Equal(t, "c.35G>T", v.HGVSc.String)
}

func TestInsertBatch_Chunked(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)
	require.NoError(t, s.ReplaceCancerTypes(ctx, testCancerTypes()))

	defer func(old int) { maxParams = old }(maxParams)
	maxParams = 3 * len(variantColumns)

	const n = 10
	vrows := make([][]any, n)
	crows := make([][]any, n)
	for i := range vrows {
		v := krasVariant(int64(i + 1))
		v.Pos = int64(1000 + i)
		vrows[i] = v.values()
		pc := PatientCount{ID: int64(i + 1), VariantID: int64(i + 1), CancerTypeID: 1, SameAminoAcidChange: 1}
		crows[i] = pc.values()
	}
	require.NoError(t, s.insertBatch(ctx, vrows, crows))

	c, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(n), c.Variants)
	assert.Equal(t, int64(n), c.PatientCounts)
}

func TestClearVariants(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)
	require.NoError(t, s.ReplaceCancerTypes(ctx, testCancerTypes()))
	require.NoError(t, s.WriteBatch(ctx,
		[]Variant{krasVariant(1)},
		[]PatientCount{{ID: 1, VariantID: 1, CancerTypeID: 1, SameNucleotideChange: 7}},
	))

	require.NoError(t, s.ClearVariants(ctx))

	c, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{CancerTypes: 3}, c)

	// Ids may be reused after clearing.
	require.NoError(t, s.WriteBatch(ctx, []Variant{krasVariant(1)}, nil))
}

func TestImportRun(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)

	_, ok, err := s.LastImportRun(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	older := ImportRun{
		RunID:           "run-1",
		VCF:             FileFingerprint{Path: "genie.vcf.gz", Size: 100, ModTime: start.Add(-time.Hour)},
		CancerTypesPath: "cancer_types.csv",
		CancerTypes:     3, Variants: 10, PatientCounts: 4,
		StartedAt: start, FinishedAt: start.Add(time.Minute),
	}
	newer := older
	newer.RunID = "run-2"
	newer.StartedAt = start.Add(time.Hour)
	newer.FinishedAt = start.Add(time.Hour + 2*time.Minute)

	require.NoError(t, s.RecordImportRun(ctx, older))
	require.NoError(t, s.RecordImportRun(ctx, newer))

	got, ok, err := s.LastImportRun(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "run-2", got.RunID)
	assert.Equal(t, int64(10), got.Variants)
	assert.Equal(t, 2*time.Minute, got.Duration())
	assert.True(t, got.VCF.ModTime.Equal(older.VCF.ModTime))
}

func TestStatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.vcf")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))

	fp, err := StatFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, fp.Path)
	assert.Equal(t, int64(3), fp.Size)

	_, err = StatFile(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, os.IsNotExist(err))
}

func TestPatientCountIsZero(t *testing.T) {
	assert.True(t, PatientCount{ID: 1, VariantID: 2}.IsZero())
	assert.False(t, PatientCount{NestedInframeDeletionsPerAminoAcid: 1}.IsZero())
}
