package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/otulearn/otulearn/pkg/errors"
)

// Metadata is a per-sample attribute table read from QIIME-style TSV:
// the first column holds sample IDs, the remaining columns hold
// categories. Column order and sample order are preserved.
type Metadata struct {
	sampleIDs []string
	columns   []string
	values    map[string][]string // column name -> per-sample values
}

// ReadMetadataTSV parses a tab-separated metadata file. The first row
// is the header; rows starting with '#' (such as the "#q2:types"
// directive) are skipped.
func ReadMetadataTSV(r io.Reader) (*Metadata, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "table.ReadMetadataTSV: parsing TSV")
	}
	if len(records) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "table.ReadMetadataTSV")
	}

	header := records[0]
	if len(header) < 2 {
		return nil, errors.NewValidationError("header",
			"metadata needs a sample-ID column plus at least one category", header)
	}
	columns := make([]string, len(header)-1)
	copy(columns, header[1:])

	md := &Metadata{
		columns: columns,
		values:  make(map[string][]string, len(columns)),
	}
	for _, col := range columns {
		md.values[col] = nil
	}

	seen := make(map[string]bool)
	for _, record := range records[1:] {
		if len(record) == 0 || strings.HasPrefix(record[0], "#") {
			continue
		}
		if len(record) != len(header) {
			return nil, errors.NewValidationError("row",
				fmt.Sprintf("expected %d fields, got %d", len(header), len(record)),
				record[0])
		}
		id := record[0]
		if seen[id] {
			return nil, errors.NewValidationError("sample_id", "duplicate sample ID", id)
		}
		seen[id] = true

		md.sampleIDs = append(md.sampleIDs, id)
		for k, col := range columns {
			md.values[col] = append(md.values[col], record[k+1])
		}
	}

	if len(md.sampleIDs) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "table.ReadMetadataTSV")
	}
	return md, nil
}

// LoadMetadataTSV reads a metadata TSV file from disk.
func LoadMetadataTSV(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "table.LoadMetadataTSV: opening %s", path)
	}
	defer f.Close()
	md, err := ReadMetadataTSV(f)
	if err != nil {
		return nil, errors.Wrapf(err, "table.LoadMetadataTSV: %s", path)
	}
	return md, nil
}

// SampleIDs returns the sample IDs in file order.
func (md *Metadata) SampleIDs() []string {
	out := make([]string, len(md.sampleIDs))
	copy(out, md.sampleIDs)
	return out
}

// Columns returns the category column names in file order.
func (md *Metadata) Columns() []string {
	out := make([]string, len(md.columns))
	copy(out, md.columns)
	return out
}

// HasColumn reports whether the named category exists.
func (md *Metadata) HasColumn(name string) bool {
	_, ok := md.values[name]
	return ok
}

// Column returns the values of the named category, ordered like
// SampleIDs.
func (md *Metadata) Column(name string) ([]string, error) {
	vals, ok := md.values[name]
	if !ok {
		return nil, errors.NewValueError("table.Column",
			fmt.Sprintf("unknown category %q (have: %s)", name, strings.Join(md.columns, ", ")))
	}
	out := make([]string, len(vals))
	copy(out, vals)
	return out, nil
}

// NumericColumn returns the named category parsed as float64 values.
// Non-numeric entries produce a ValueError naming the offending sample.
func (md *Metadata) NumericColumn(name string) ([]float64, error) {
	vals, err := md.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(vals))
	for i, v := range vals {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, errors.NewValueError("table.NumericColumn",
				fmt.Sprintf("category %q is not numeric for sample %q: %q",
					name, md.sampleIDs[i], v))
		}
		out[i] = f
	}
	return out, nil
}

// value returns the category value for one sample ID, with a lookup
// index built lazily by the caller.
func (md *Metadata) valueAt(col string, row int) string {
	return md.values[col][row]
}
