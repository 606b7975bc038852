// Package reference loads the cancer type reference table.
package reference

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/inodb/genie-db/internal/store"
)

// Column names of the cancer types CSV header.
const (
	ColCancerType        = "cancer_type"
	ColCancerTypeVCF     = "cancer_type_vcf"
	ColIsHaemonc         = "is_haemonc"
	ColIsSolid           = "is_solid"
	ColTotalPatientCount = "total_patient_count"
)

// LoadCancerTypes reads a cancer types CSV file.
// The file must have a header naming at least the cancer_type,
// cancer_type_vcf, is_haemonc and total_patient_count columns;
// is_solid is optional and defaults to false.
// Cancer types are numbered from 1 in file order.
func LoadCancerTypes(path string) ([]store.CancerType, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cancer types: %w", err)
	}
	defer f.Close()

	types, err := ReadCancerTypes(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return types, nil
}

// ReadCancerTypes reads cancer types from CSV data.
func ReadCancerTypes(r io.Reader) ([]store.CancerType, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("cancer types: empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("cancer types header: %w", err)
	}

	idx := map[string]int{
		ColCancerType:        -1,
		ColCancerTypeVCF:     -1,
		ColIsHaemonc:         -1,
		ColIsSolid:           -1,
		ColTotalPatientCount: -1,
	}
	for i, col := range header {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		if _, ok := idx[col]; ok {
			idx[col] = i
		}
	}
	for _, col := range []string{ColCancerType, ColCancerTypeVCF, ColIsHaemonc, ColTotalPatientCount} {
		if idx[col] < 0 {
			return nil, fmt.Errorf("cancer types: missing %q column", col)
		}
	}

	var types []store.CancerType
	seen := make(map[string]int)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cancer types: %w", err)
		}
		line, _ := cr.FieldPos(0)

		ct, err := decodeRow(record, idx)
		if err != nil {
			return nil, fmt.Errorf("cancer types line %d: %w", line, err)
		}
		if prev, dup := seen[ct.VCFName]; dup {
			return nil, fmt.Errorf("cancer types line %d: %s %q already defined on line %d",
				line, ColCancerTypeVCF, ct.VCFName, prev)
		}
		seen[ct.VCFName] = line

		ct.ID = int64(len(types) + 1)
		types = append(types, ct)
	}

	if len(types) == 0 {
		return nil, fmt.Errorf("cancer types: no rows")
	}
	return types, nil
}

func decodeRow(record []string, idx map[string]int) (store.CancerType, error) {
	field := func(col string) string {
		i := idx[col]
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	ct := store.CancerType{
		Name:    field(ColCancerType),
		VCFName: field(ColCancerTypeVCF),
	}
	if ct.Name == "" || ct.VCFName == "" {
		return ct, fmt.Errorf("%s and %s must not be empty", ColCancerType, ColCancerTypeVCF)
	}

	var err error
	if ct.IsHaemonc, err = parseBool(field(ColIsHaemonc)); err != nil {
		return ct, fmt.Errorf("%s: %w", ColIsHaemonc, err)
	}
	if s := field(ColIsSolid); s != "" {
		if ct.IsSolid, err = parseBool(s); err != nil {
			return ct, fmt.Errorf("%s: %w", ColIsSolid, err)
		}
	}

	total := field(ColTotalPatientCount)
	ct.TotalPatientCount, err = strconv.ParseInt(total, 10, 64)
	if err != nil || ct.TotalPatientCount < 0 {
		return ct, fmt.Errorf("%s: %q is not a non-negative integer", ColTotalPatientCount, total)
	}
	return ct, nil
}

// parseBool accepts 0/1 and true/false in any case.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("%q is not a boolean (want 0, 1, true or false)", s)
}
