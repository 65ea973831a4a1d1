// Package model provides additional interfaces and types for machine learning models.
// This file complements the existing interfaces in estimator.go and transformer.go
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Estimator is the minimal contract shared by every model: it can be
// fitted and reports whether fitting happened.
type Estimator interface {
	Fitter

	// IsFitted returns whether the model has been fitted.
	IsFitted() bool
}

// Scorer is the interface for models that can compute a score.
type Scorer interface {
	// Score returns the default evaluation score of the prediction:
	// accuracy for classifiers, R^2 for regressors.
	Score(X mat.Matrix, y mat.Matrix) (float64, error)
}

// Regressor combines interfaces for regression models.
type Regressor interface {
	Estimator
	Predictor
	Scorer
}

// Classifier combines interfaces for classification models.
//
// Targets are numeric class codes: Fit reads the distinct values of y as
// the class set, and Predict returns values from that same set. String
// categories from sample metadata are mapped to codes by
// preprocessing.LabelEncoder before they reach a classifier.
type Classifier interface {
	Estimator
	Predictor
	Scorer

	// PredictProba returns probability estimates for each class, columns
	// ordered as Classes.
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the sorted class codes seen during fitting.
	Classes() []float64
}

// FeatureRanker is the interface for models that expose per-feature
// importance weights: impurity decrease for trees and ensembles,
// absolute coefficients for linear models.
type FeatureRanker interface {
	// FeatureImportances returns one non-negative weight per training
	// feature.
	FeatureImportances() ([]float64, error)
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters keyed by their
	// snake_case names ("n_estimators", "max_depth", ...).
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	// SetParams sets the model's hyperparameters.
	SetParams(params map[string]interface{}) error
}

// Tunable is the contract required by hyperparameter search and recursive
// feature elimination: the model's parameters can be read, modified, and
// the model can produce unfitted copies of itself.
type Tunable interface {
	Estimator
	Predictor
	ParameterGetter
	ParameterSetter

	// CloneBlank returns a new unfitted instance carrying the same
	// hyperparameters. The receiver is left untouched.
	CloneBlank() Tunable
}

// Persistable is the interface for models that can be saved and loaded.
type Persistable interface {
	// Save saves the model to a file.
	Save(path string) error

	// Load loads the model from a file.
	Load(path string) error
}
