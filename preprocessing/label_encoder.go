package preprocessing

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/core/model"
	"github.com/otulearn/otulearn/pkg/errors"
)

// LabelEncoder maps string class labels to numeric codes and back.
// Codes are assigned in sorted label order, starting at 0, so encoded
// targets can be fed to any Classifier and decoded after prediction.
type LabelEncoder struct {
	model.BaseEstimator

	// Classes are the distinct labels seen during Fit, sorted.
	Classes []string

	codes map[string]float64
}

// NewLabelEncoder creates an unfitted LabelEncoder.
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{}
}

// Fit learns the label set from y.
func (le *LabelEncoder) Fit(y []string) error {
	if len(y) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty labels", errors.ErrEmptyData)
	}

	seen := make(map[string]bool)
	for _, label := range y {
		seen[label] = true
	}
	le.Classes = make([]string, 0, len(seen))
	for label := range seen {
		le.Classes = append(le.Classes, label)
	}
	sort.Strings(le.Classes)

	le.codes = make(map[string]float64, len(le.Classes))
	for i, label := range le.Classes {
		le.codes[label] = float64(i)
	}

	le.SetFitted()
	return nil
}

// Transform encodes labels as a column vector of class codes.
// Labels not seen during Fit produce a ValueError.
func (le *LabelEncoder) Transform(y []string) (*mat.VecDense, error) {
	if !le.IsFitted() {
		return nil, errors.NewNotFittedError("LabelEncoder", "Transform")
	}
	if le.codes == nil {
		le.rebuildCodes()
	}

	out := mat.NewVecDense(len(y), nil)
	for i, label := range y {
		code, ok := le.codes[label]
		if !ok {
			return nil, errors.NewValueError("LabelEncoder.Transform",
				fmt.Sprintf("unseen label %q", label))
		}
		out.SetVec(i, code)
	}
	return out, nil
}

// FitTransform learns the label set and encodes y in one step.
func (le *LabelEncoder) FitTransform(y []string) (*mat.VecDense, error) {
	if err := le.Fit(y); err != nil {
		return nil, err
	}
	return le.Transform(y)
}

// InverseTransform decodes class codes back to string labels.
// Codes are rounded to the nearest class index.
func (le *LabelEncoder) InverseTransform(codes []float64) ([]string, error) {
	if !le.IsFitted() {
		return nil, errors.NewNotFittedError("LabelEncoder", "InverseTransform")
	}

	out := make([]string, len(codes))
	for i, code := range codes {
		idx := int(code + 0.5)
		if code < -0.5 || idx >= len(le.Classes) {
			return nil, errors.NewValueError("LabelEncoder.InverseTransform",
				fmt.Sprintf("code %v out of range [0, %d)", code, len(le.Classes)))
		}
		out[i] = le.Classes[idx]
	}
	return out, nil
}

// InverseTransformVec decodes a prediction column vector.
func (le *LabelEncoder) InverseTransformVec(pred mat.Matrix) ([]string, error) {
	r, _ := pred.Dims()
	codes := make([]float64, r)
	for i := 0; i < r; i++ {
		codes[i] = pred.At(i, 0)
	}
	return le.InverseTransform(codes)
}

// rebuildCodes restores the code map after gob decoding, which only
// carries the exported Classes slice.
func (le *LabelEncoder) rebuildCodes() {
	le.codes = make(map[string]float64, len(le.Classes))
	for i, label := range le.Classes {
		le.codes[label] = float64(i)
	}
}
