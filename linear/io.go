package linear

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/otulearn/otulearn/pkg/errors"

	"gonum.org/v1/gonum/mat"
)

// ModelWeights is the portable JSON form of a fitted linear model:
// coefficients, intercept and feature count, tagged with the model
// name so mismatched files fail loudly on load.
type ModelWeights struct {
	Model        string    `json:"model"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	NFeatures    int       `json:"n_features"`
}

// WriteWeights encodes weights as indented JSON.
func WriteWeights(w io.Writer, mw ModelWeights) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&mw); err != nil {
		return fmt.Errorf("failed to encode weights: %w", err)
	}
	return nil
}

// ReadWeights decodes a weights file and checks the model name.
func ReadWeights(r io.Reader, wantModel string) (ModelWeights, error) {
	var mw ModelWeights
	if err := json.NewDecoder(r).Decode(&mw); err != nil {
		return mw, fmt.Errorf("failed to decode weights: %w", err)
	}
	if mw.Model != wantModel {
		return mw, errors.NewValueError("linear.ReadWeights",
			fmt.Sprintf("weights file holds a %s model, want %s", mw.Model, wantModel))
	}
	if len(mw.Coefficients) != mw.NFeatures {
		return mw, errors.NewValueError("linear.ReadWeights",
			"coefficient count does not match n_features")
	}
	return mw, nil
}

// ExportWeights writes the fitted model to a JSON file.
func (lr *LinearRegression) ExportWeights(filename string) error {
	if !lr.IsFitted() {
		return errors.NewNotFittedError("LinearRegression", "ExportWeights")
	}
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()
	return lr.ExportWeightsWriter(file)
}

// ExportWeightsWriter writes the fitted model as JSON.
func (lr *LinearRegression) ExportWeightsWriter(w io.Writer) error {
	if !lr.IsFitted() {
		return errors.NewNotFittedError("LinearRegression", "ExportWeightsWriter")
	}
	return WriteWeights(w, ModelWeights{
		Model:        "LinearRegression",
		Coefficients: lr.GetWeights(),
		Intercept:    lr.Intercept,
		NFeatures:    lr.NFeatures,
	})
}

// LoadWeights reads a JSON weights file into the model.
func (lr *LinearRegression) LoadWeights(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	return lr.LoadWeightsReader(file)
}

// LoadWeightsReader reads JSON weights into the model and marks it
// fitted.
func (lr *LinearRegression) LoadWeightsReader(r io.Reader) error {
	mw, err := ReadWeights(r, "LinearRegression")
	if err != nil {
		return err
	}
	lr.NFeatures = mw.NFeatures
	lr.Intercept = mw.Intercept
	lr.Weights = mat.NewVecDense(len(mw.Coefficients), mw.Coefficients)
	lr.SetFitted()
	return nil
}
