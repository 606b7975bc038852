// Package consequence ranks Ensembl VEP consequence terms by severity.
package consequence

import (
	"fmt"
	"strings"
)

// Term is a Sequence Ontology consequence term with its display name.
// Rank is the term's position in the severity table (0 = most severe).
type Term struct {
	Name    string
	Display string
	Rank    int
}

// Delimiters used in the VEP Consequence INFO field.
const (
	Delimiter       = '&'
	LegacyDelimiter = ','
)

// table lists VEP consequences from the most to the least severe.
// Order follows https://www.ensembl.org/info/genome/variation/prediction/predicted_data.html
var table = [...]struct{ name, display string }{
	{"transcript_ablation", "Transcript ablation"},
	{"splice_acceptor_variant", "Splice acceptor variant"},
	{"splice_donor_variant", "Splice donor variant"},
	{"stop_gained", "Stop gained"},
	{"frameshift_variant", "Frameshift variant"},
	{"stop_lost", "Stop lost"},
	{"start_lost", "Start lost"},
	{"transcript_amplification", "Transcript amplification"},
	{"feature_elongation", "Feature elongation"},
	{"feature_truncation", "Feature truncation"},
	{"inframe_insertion", "Inframe insertion"},
	{"inframe_deletion", "Inframe deletion"},
	{"missense_variant", "Missense variant"},
	{"protein_altering_variant", "Protein altering variant"},
	{"splice_donor_5th_base_variant", "Splice donor 5th base variant"},
	{"splice_region_variant", "Splice region variant"},
	{"splice_donor_region_variant", "Splice donor region variant"},
	{"splice_polypyrimidine_tract_variant", "Splice polypyrimidine tract variant"},
	{"incomplete_terminal_codon_variant", "Incomplete terminal codon variant"},
	{"start_retained_variant", "Start retained variant"},
	{"stop_retained_variant", "Stop retained variant"},
	{"synonymous_variant", "Synonymous variant"},
	{"coding_sequence_variant", "Coding sequence variant"},
	{"mature_miRNA_variant", "Mature miRNA variant"},
	{"5_prime_UTR_variant", "5 prime UTR variant"},
	{"3_prime_UTR_variant", "3 prime UTR variant"},
	{"non_coding_transcript_exon_variant", "Non coding transcript exon variant"},
	{"intron_variant", "Intron variant"},
	{"NMD_transcript_variant", "Transcript variant"},
	{"non_coding_transcript_variant", "Non coding transcript variant"},
	{"coding_transcript_variant", "Coding transcript variant"},
	{"upstream_gene_variant", "Upstream gene variant"},
	{"downstream_gene_variant", "Downstream gene variant"},
	{"TFBS_ablation", "TFBS ablation"},
	{"TFBS_amplification", "TFBS amplification"},
	{"TF_binding_site_variant", "TF binding site variant"},
	{"regulatory_region_ablation", "Regulatory region ablation"},
	{"regulatory_region_amplification", "Regulatory region amplification"},
	{"regulatory_region_variant", "Regulatory region variant"},
	{"intergenic_variant", "Intergenic variant"},
	{"sequence_variant", "Sequence variant"},
}

// Built once at init, read-only afterwards.
var (
	terms  []Term
	byName map[string]int
)

func init() {
	terms = make([]Term, len(table))
	byName = make(map[string]int, len(table))
	for i, e := range table {
		terms[i] = Term{Name: e.name, Display: e.display, Rank: i}
		byName[e.name] = i
	}
}

// Terms returns a copy of the ontology ordered from most to least severe.
func Terms() []Term {
	out := make([]Term, len(terms))
	copy(out, terms)
	return out
}

// Rank returns the severity rank of a term. The boolean is false for unknown terms.
func Rank(term string) (int, bool) {
	r, ok := byName[term]
	return r, ok
}

// Display returns the human-readable name of a term.
func Display(term string) (string, bool) {
	r, ok := byName[term]
	if !ok {
		return "", false
	}
	return terms[r].Display, true
}

// Worst returns the display name of the most severe term in a
// delimiter-joined consequence string (e.g. "missense_variant&splice_region_variant").
// Commas are accepted as a legacy delimiter.
// Returns "" if the string is empty or contains any unknown term.
func Worst(csqs string) string {
	if csqs == "" {
		return ""
	}
	csqs = strings.ReplaceAll(csqs, string(LegacyDelimiter), string(Delimiter))

	best := len(terms)
	for rest := csqs; ; {
		term := rest
		i := strings.IndexByte(rest, Delimiter)
		if i >= 0 {
			term = rest[:i]
			rest = rest[i+1:]
		}
		r, ok := byName[term]
		if !ok {
			return ""
		}
		if r < best {
			best = r
		}
		if i < 0 {
			break
		}
	}
	return terms[best].Display
}

// UnknownTermError reports a consequence string that cannot be ranked.
type UnknownTermError struct {
	Value string
}

func (e *UnknownTermError) Error() string {
	return fmt.Sprintf("failed to identify the most severe consequence from %q: "+
		"consequences must be delimited by \"&\" (or \",\") and every term must be a known VEP term", e.Value)
}

// Validate returns an *UnknownTermError if Worst cannot rank csqs.
func Validate(csqs string) error {
	if Worst(csqs) == "" {
		return &UnknownTermError{Value: csqs}
	}
	return nil
}
