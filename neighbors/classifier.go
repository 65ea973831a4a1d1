package neighbors

import (
	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/core/model"
	"github.com/otulearn/otulearn/metrics"
	"github.com/otulearn/otulearn/pkg/errors"
	"github.com/otulearn/otulearn/pkg/log"
)

// KNeighborsClassifier predicts the weighted majority class among the
// k nearest training samples.
type KNeighborsClassifier struct {
	model.BaseEstimator

	cfg knnConfig

	// Fitted state, exported for gob encoding. K, WeightScheme and P
	// duplicate the hyperparameters needed at query time so loaded
	// models predict without reconfiguration.
	TrainRows    [][]float64
	TrainTargets []float64
	ClassValues  []float64
	NFeaturesIn  int
	K            int
	WeightScheme string
	P            float64
}

var (
	_ model.Classifier = (*KNeighborsClassifier)(nil)
	_ model.Tunable    = (*KNeighborsClassifier)(nil)
)

// NewKNeighborsClassifier creates a classifier with k=5, uniform
// weights and the Euclidean metric.
func NewKNeighborsClassifier() *KNeighborsClassifier {
	return &KNeighborsClassifier{cfg: defaultKNNConfig()}
}

// WithNNeighbors sets the number of neighbors.
func (m *KNeighborsClassifier) WithNNeighbors(k int) *KNeighborsClassifier {
	m.cfg.nNeighbors = k
	return m
}

// WithWeights selects uniform or distance vote weighting.
func (m *KNeighborsClassifier) WithWeights(w string) *KNeighborsClassifier {
	m.cfg.weights = w
	return m
}

// WithP sets the Minkowski distance exponent.
func (m *KNeighborsClassifier) WithP(p float64) *KNeighborsClassifier {
	m.cfg.p = p
	return m
}

// WithAlgorithm selects the neighbor search algorithm.
func (m *KNeighborsClassifier) WithAlgorithm(a string) *KNeighborsClassifier {
	m.cfg.algorithm = a
	return m
}

// WithNJobs sets the number of parallel query workers.
func (m *KNeighborsClassifier) WithNJobs(n int) *KNeighborsClassifier {
	m.cfg.nJobs = n
	return m
}

// Fit stores the training sample.
func (m *KNeighborsClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "KNeighborsClassifier.Fit")

	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("KNeighborsClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if err := m.cfg.validate("KNeighborsClassifier.Fit", n); err != nil {
		return err
	}

	m.TrainRows = copyRows(X)
	m.TrainTargets = make([]float64, n)
	for i := 0; i < n; i++ {
		m.TrainTargets[i] = y.At(i, 0)
	}
	m.ClassValues = distinctSorted(y)
	m.NFeaturesIn = d
	m.K = m.cfg.nNeighbors
	m.WeightScheme = m.cfg.weights
	m.P = m.cfg.p
	m.SetFitted()

	log.GetLoggerWithName("neighbors.classifier").Debug("fitted knn classifier",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.ClassesKey, len(m.ClassValues),
	)
	return nil
}

// PredictProba returns normalized neighbor vote shares per class.
func (m *KNeighborsClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("KNeighborsClassifier", "PredictProba")
	}
	if _, c := X.Dims(); c != m.NFeaturesIn {
		return nil, errors.NewDimensionError("KNeighborsClassifier.PredictProba", m.NFeaturesIn, c, 1)
	}

	codeOf := make(map[float64]int, len(m.ClassValues))
	for idx, v := range m.ClassValues {
		codeOf[v] = idx
	}

	queries := copyRows(X)
	out := mat.NewDense(len(queries), len(m.ClassValues), nil)
	err := queryRows(len(queries), m.cfg.nJobs, func(i int) error {
		ns := nearest(m.TrainRows, queries[i], m.K, m.P)
		w := neighborWeights(ns, m.WeightScheme)
		total := 0.0
		for k, n := range ns {
			out.Set(i, codeOf[m.TrainTargets[n.index]],
				out.At(i, codeOf[m.TrainTargets[n.index]])+w[k])
			total += w[k]
		}
		if total > 0 {
			for c := range m.ClassValues {
				out.Set(i, c, out.At(i, c)/total)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Predict returns the weighted majority class for each row of X.
func (m *KNeighborsClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		best := 0
		for c := 1; c < len(m.ClassValues); c++ {
			if proba.At(i, c) > proba.At(i, best) {
				best = c
			}
		}
		out.Set(i, 0, m.ClassValues[best])
	}
	return out, nil
}

// Classes returns the sorted class codes seen during fitting.
func (m *KNeighborsClassifier) Classes() []float64 {
	out := make([]float64, len(m.ClassValues))
	copy(out, m.ClassValues)
	return out
}

// Score returns the accuracy on X, y.
func (m *KNeighborsClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy(colVec(y), colVec(pred))
}

// GetParams returns the hyperparameters keyed by their snake_case names.
func (m *KNeighborsClassifier) GetParams() map[string]interface{} {
	return m.cfg.asMap()
}

// SetParams updates hyperparameters from a snake_case keyed map.
func (m *KNeighborsClassifier) SetParams(params map[string]interface{}) error {
	return m.cfg.apply("KNeighborsClassifier.SetParams", params)
}

// CloneBlank returns an unfitted copy with the same hyperparameters.
func (m *KNeighborsClassifier) CloneBlank() model.Tunable {
	return &KNeighborsClassifier{cfg: m.cfg}
}

// KNeighborsRegressor predicts the weighted mean target among the k
// nearest training samples.
type KNeighborsRegressor struct {
	model.BaseEstimator

	cfg knnConfig

	// Fitted state, exported for gob encoding.
	TrainRows    [][]float64
	TrainTargets []float64
	NFeaturesIn  int
	K            int
	WeightScheme string
	P            float64
}

var (
	_ model.Regressor = (*KNeighborsRegressor)(nil)
	_ model.Tunable   = (*KNeighborsRegressor)(nil)
)

// NewKNeighborsRegressor creates a regressor with k=5, uniform weights
// and the Euclidean metric.
func NewKNeighborsRegressor() *KNeighborsRegressor {
	return &KNeighborsRegressor{cfg: defaultKNNConfig()}
}

// WithNNeighbors sets the number of neighbors.
func (m *KNeighborsRegressor) WithNNeighbors(k int) *KNeighborsRegressor {
	m.cfg.nNeighbors = k
	return m
}

// WithWeights selects uniform or distance vote weighting.
func (m *KNeighborsRegressor) WithWeights(w string) *KNeighborsRegressor {
	m.cfg.weights = w
	return m
}

// WithP sets the Minkowski distance exponent.
func (m *KNeighborsRegressor) WithP(p float64) *KNeighborsRegressor {
	m.cfg.p = p
	return m
}

// WithAlgorithm selects the neighbor search algorithm.
func (m *KNeighborsRegressor) WithAlgorithm(a string) *KNeighborsRegressor {
	m.cfg.algorithm = a
	return m
}

// WithNJobs sets the number of parallel query workers.
func (m *KNeighborsRegressor) WithNJobs(n int) *KNeighborsRegressor {
	m.cfg.nJobs = n
	return m
}

// Fit stores the training sample.
func (m *KNeighborsRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "KNeighborsRegressor.Fit")

	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("KNeighborsRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if err := m.cfg.validate("KNeighborsRegressor.Fit", n); err != nil {
		return err
	}

	m.TrainRows = copyRows(X)
	m.TrainTargets = make([]float64, n)
	for i := 0; i < n; i++ {
		m.TrainTargets[i] = y.At(i, 0)
	}
	m.NFeaturesIn = d
	m.K = m.cfg.nNeighbors
	m.WeightScheme = m.cfg.weights
	m.P = m.cfg.p
	m.SetFitted()

	log.GetLoggerWithName("neighbors.regressor").Debug("fitted knn regressor",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
	)
	return nil
}

// Predict returns the weighted neighbor mean for each row of X.
func (m *KNeighborsRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("KNeighborsRegressor", "Predict")
	}
	if _, c := X.Dims(); c != m.NFeaturesIn {
		return nil, errors.NewDimensionError("KNeighborsRegressor.Predict", m.NFeaturesIn, c, 1)
	}

	queries := copyRows(X)
	out := mat.NewDense(len(queries), 1, nil)
	err := queryRows(len(queries), m.cfg.nJobs, func(i int) error {
		ns := nearest(m.TrainRows, queries[i], m.K, m.P)
		w := neighborWeights(ns, m.WeightScheme)
		sum, total := 0.0, 0.0
		for k, n := range ns {
			sum += w[k] * m.TrainTargets[n.index]
			total += w[k]
		}
		if total > 0 {
			out.Set(i, 0, sum/total)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Score returns the coefficient of determination R^2 on X, y.
func (m *KNeighborsRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(colVec(y), colVec(pred))
}

// GetParams returns the hyperparameters keyed by their snake_case names.
func (m *KNeighborsRegressor) GetParams() map[string]interface{} {
	return m.cfg.asMap()
}

// SetParams updates hyperparameters from a snake_case keyed map.
func (m *KNeighborsRegressor) SetParams(params map[string]interface{}) error {
	return m.cfg.apply("KNeighborsRegressor.SetParams", params)
}

// CloneBlank returns an unfitted copy with the same hyperparameters.
func (m *KNeighborsRegressor) CloneBlank() model.Tunable {
	return &KNeighborsRegressor{cfg: m.cfg}
}
