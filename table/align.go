package table

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/pkg/errors"
)

// Align intersects the table's samples with the metadata (preserving
// table order), drops samples whose category value is missing or empty,
// and returns the sample x feature design matrix, the raw string
// targets, and the surviving sample IDs.
func Align(t *FeatureTable, md *Metadata, category string) (*mat.Dense, []string, []string, error) {
	if !md.HasColumn(category) {
		return nil, nil, nil, errors.NewValueError("table.Align",
			fmt.Sprintf("unknown category %q (have: %s)",
				category, strings.Join(md.Columns(), ", ")))
	}

	mdRow := make(map[string]int, len(md.sampleIDs))
	for i, id := range md.sampleIDs {
		mdRow[id] = i
	}

	var keep []string
	var targets []string
	for _, id := range t.SampleIDs {
		row, ok := mdRow[id]
		if !ok {
			continue
		}
		value := strings.TrimSpace(md.valueAt(category, row))
		if value == "" {
			continue
		}
		keep = append(keep, id)
		targets = append(targets, value)
	}

	if len(keep) == 0 {
		return nil, nil, nil, errors.NewValidationError("samples",
			"no samples shared between the feature table and the metadata carry a value for the category",
			category)
	}

	aligned, err := t.FilterSamples(keep)
	if err != nil {
		return nil, nil, nil, err
	}
	return aligned.Samples(), targets, keep, nil
}
