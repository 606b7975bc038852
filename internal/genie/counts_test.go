package genie

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/genie-db/internal/store"
)

func testIndex() CancerTypeIndex {
	return NewCancerTypeIndex([]store.CancerType{
		{ID: 1, VCFName: "All_Cancers"},
		{ID: 2, VCFName: "Haemonc_Cancers"},
		{ID: 3, VCFName: "TestCancer"},
		{ID: 4, VCFName: "Lung_Cancer"},
	})
}

func TestReshape(t *testing.T) {
	tests := []struct {
		name string
		info map[string]string
		want []store.PatientCount
	}{
		{
			name: "single family",
			info: map[string]string{"SameNucleotideChange_TestCancer_Count_N_100": "5"},
			want: []store.PatientCount{{CancerTypeID: 3, SameNucleotideChange: 5}},
		},
		{
			name: "zero value suppressed",
			info: map[string]string{"SameNucleotideChange_TestCancer_Count_N_100": "0"},
			want: []store.PatientCount{},
		},
		{
			name: "zero family kept when another is non-zero",
			info: map[string]string{
				"SameNucleotideChange_Lung_Cancer_Count_N_40": "0",
				"SameAminoAcidChange_Lung_Cancer_Count_N_40":  "2",
			},
			want: []store.PatientCount{{CancerTypeID: 4, SameAminoAcidChange: 2}},
		},
		{
			name: "all families across cancer types",
			info: map[string]string{
				"Hugo_Symbol": "KRAS",

				"SameNucleotideChange_Lung_Cancer_Count_N_40":                     "1",
				"SameAminoAcidChange_Lung_Cancer_Count_N_40":                      "2",
				"SameOrDownstreamTruncatingVariantsPerCDS_Lung_Cancer_Count_N_40": "3",
				"NestedInframeDeletionsPerCDS_Lung_Cancer_Count_N_40":             "4",
				"SameNucleotideChange_All_Cancers_Count_N_1000":                   "9",
			},
			want: []store.PatientCount{
				{CancerTypeID: 1, SameNucleotideChange: 9},
				{CancerTypeID: 4, SameNucleotideChange: 1, SameAminoAcidChange: 2,
					SameOrDownstreamTruncatingPerCDS: 3, NestedInframeDeletionsPerAminoAcid: 4},
			},
		},
		{
			name: "unrelated keys ignored",
			info: map[string]string{"HGVSc": "c.35G>T", "Other_Lung_Cancer_Count_N_1": "3"},
			want: []store.PatientCount{},
		},
		{
			name: "leading zeros parse as zero",
			info: map[string]string{"SameNucleotideChange_TestCancer_Count_N_100": "00"},
			want: []store.PatientCount{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Reshape(tt.info, testIndex())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReshape_UnknownCancerType(t *testing.T) {
	_, err := Reshape(map[string]string{
		"SameNucleotideChange_Martian_Cancer_Count_N_3": "1",
	}, testIndex())
	require.Error(t, err)

	var uerr *UnknownCancerTypeError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, "Martian_Cancer", uerr.Token)
	assert.Contains(t, err.Error(), "add it to the cancer types reference file")
}

func TestReshape_UnknownZeroIsSkipped(t *testing.T) {
	got, err := Reshape(map[string]string{
		"SameNucleotideChange_Martian_Cancer_Count_N_3": "0",
	}, testIndex())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReshape_BadKeysAndValues(t *testing.T) {
	tests := []struct {
		name    string
		info    map[string]string
		wantErr string
	}{
		{
			name:    "no count marker",
			info:    map[string]string{"SameNucleotideChange_TestCancer": "1"},
			wantErr: "has no cancer type",
		},
		{
			name:    "empty token",
			info:    map[string]string{"SameNucleotideChange__Count_N_3": "1"},
			wantErr: "has no cancer type",
		},
		{
			name:    "not a number",
			info:    map[string]string{"SameNucleotideChange_TestCancer_Count_N_100": "five"},
			wantErr: "not a non-negative integer",
		},
		{
			name:    "negative",
			info:    map[string]string{"SameNucleotideChange_TestCancer_Count_N_100": "-1"},
			wantErr: "not a non-negative integer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Reshape(tt.info, testIndex())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
