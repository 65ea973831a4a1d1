package supervised

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/pkg/errors"
	"github.com/otulearn/otulearn/table"
)

// LoadData aligns a feature table with sample metadata on the named
// category and returns the sample x feature design matrix, the raw
// string targets and the surviving sample IDs.
func LoadData(t *table.FeatureTable, md *table.Metadata, category string) (*mat.Dense, []string, []string, error) {
	return table.Align(t, md, category)
}

// NumericTargets parses regression targets out of the metadata strings.
// A non-numeric value produces a ValueError naming the sample position.
func NumericTargets(targets []string) ([]float64, error) {
	out := make([]float64, len(targets))
	for i, v := range targets {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, errors.NewValueError("supervised.NumericTargets",
				fmt.Sprintf("target %d is not numeric: %q", i, v))
		}
		out[i] = f
	}
	return out, nil
}

// targetColumn lifts a target slice into the n x 1 matrix estimators
// consume.
func targetColumn(values []float64) *mat.Dense {
	y := mat.NewDense(len(values), 1, nil)
	for i, v := range values {
		y.Set(i, 0, v)
	}
	return y
}
