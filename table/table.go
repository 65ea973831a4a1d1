// Package table provides the feature-table and sample-metadata types
// otulearn trains on: a dense feature x sample abundance matrix read
// from BIOM v1 JSON, and a per-sample attribute table read from
// QIIME-style TSV.
package table

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/pkg/errors"
)

// FeatureTable is a dense abundance matrix in BIOM orientation:
// rows are features (OTUs/ASVs), columns are samples.
type FeatureTable struct {
	FeatureIDs []string
	SampleIDs  []string

	// data is features x samples.
	data *mat.Dense
}

// NewFeatureTable builds a table from IDs and a feature x sample matrix.
func NewFeatureTable(featureIDs, sampleIDs []string, data *mat.Dense) (*FeatureTable, error) {
	if data == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "table.NewFeatureTable")
	}
	r, c := data.Dims()
	if r == 0 || c == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "table.NewFeatureTable")
	}
	if len(featureIDs) != r {
		return nil, errors.NewDimensionError("table.NewFeatureTable", r, len(featureIDs), 0)
	}
	if len(sampleIDs) != c {
		return nil, errors.NewDimensionError("table.NewFeatureTable", c, len(sampleIDs), 1)
	}
	if dup := firstDuplicate(sampleIDs); dup != "" {
		return nil, errors.NewValidationError("sample_ids", "duplicate sample ID", dup)
	}
	if dup := firstDuplicate(featureIDs); dup != "" {
		return nil, errors.NewValidationError("feature_ids", "duplicate feature ID", dup)
	}

	return &FeatureTable{
		FeatureIDs: featureIDs,
		SampleIDs:  sampleIDs,
		data:       data,
	}, nil
}

// NFeatures returns the number of features (rows).
func (t *FeatureTable) NFeatures() int {
	r, _ := t.data.Dims()
	return r
}

// NSamples returns the number of samples (columns).
func (t *FeatureTable) NSamples() int {
	_, c := t.data.Dims()
	return c
}

// At returns the abundance of feature i in sample j.
func (t *FeatureTable) At(i, j int) float64 {
	return t.data.At(i, j)
}

// Samples returns the table transposed to sample x feature orientation,
// the layout every estimator consumes.
func (t *FeatureTable) Samples() *mat.Dense {
	r, c := t.data.Dims()
	out := mat.NewDense(c, r, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(j, i, t.data.At(i, j))
		}
	}
	return out
}

// FilterSamples returns a new table containing only the named samples,
// in the given order. Unknown sample IDs produce a ValueError.
func (t *FeatureTable) FilterSamples(ids []string) (*FeatureTable, error) {
	if len(ids) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "table.FilterSamples")
	}
	index := make(map[string]int, len(t.SampleIDs))
	for j, id := range t.SampleIDs {
		index[id] = j
	}

	r, _ := t.data.Dims()
	out := mat.NewDense(r, len(ids), nil)
	for k, id := range ids {
		j, ok := index[id]
		if !ok {
			return nil, errors.NewValueError("table.FilterSamples",
				fmt.Sprintf("unknown sample ID %q", id))
		}
		for i := 0; i < r; i++ {
			out.Set(i, k, t.data.At(i, j))
		}
	}

	sampleIDs := make([]string, len(ids))
	copy(sampleIDs, ids)
	featureIDs := make([]string, len(t.FeatureIDs))
	copy(featureIDs, t.FeatureIDs)
	return &FeatureTable{FeatureIDs: featureIDs, SampleIDs: sampleIDs, data: out}, nil
}

// FilterFeatures returns a new table containing only the features at
// the given row indices, in the given order.
func (t *FeatureTable) FilterFeatures(keep []int) (*FeatureTable, error) {
	if len(keep) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "table.FilterFeatures")
	}
	r, c := t.data.Dims()
	out := mat.NewDense(len(keep), c, nil)
	featureIDs := make([]string, len(keep))
	for k, i := range keep {
		if i < 0 || i >= r {
			return nil, errors.NewValueError("table.FilterFeatures",
				fmt.Sprintf("feature index %d out of range [0, %d)", i, r))
		}
		featureIDs[k] = t.FeatureIDs[i]
		for j := 0; j < c; j++ {
			out.Set(k, j, t.data.At(i, j))
		}
	}

	sampleIDs := make([]string, len(t.SampleIDs))
	copy(sampleIDs, t.SampleIDs)
	return &FeatureTable{FeatureIDs: featureIDs, SampleIDs: sampleIDs, data: out}, nil
}

func firstDuplicate(ids []string) string {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return id
		}
		seen[id] = true
	}
	return ""
}
