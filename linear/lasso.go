package linear

import (
	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/core/model"
	"github.com/otulearn/otulearn/metrics"
	"github.com/otulearn/otulearn/pkg/errors"
	"github.com/otulearn/otulearn/pkg/log"
)

// Lasso is L1-regularized least squares fitted by cyclic coordinate
// descent. It is the pure-L1 corner of the elastic net and produces
// sparse coefficient vectors.
type Lasso struct {
	model.BaseEstimator

	alpha   float64
	tol     float64
	maxIter int

	// Fitted state, exported for gob encoding.
	Coefs       []float64
	Intercept   float64
	NFeaturesIn int
}

var (
	_ model.Regressor     = (*Lasso)(nil)
	_ model.Tunable       = (*Lasso)(nil)
	_ model.FeatureRanker = (*Lasso)(nil)
)

// NewLasso creates a model with alpha=1.
func NewLasso() *Lasso {
	return &Lasso{alpha: 1.0, tol: 1e-4, maxIter: 1000}
}

// WithAlpha sets the regularization strength.
func (m *Lasso) WithAlpha(a float64) *Lasso {
	m.alpha = a
	return m
}

// WithTol sets the coefficient-change threshold for stopping.
func (m *Lasso) WithTol(tol float64) *Lasso {
	m.tol = tol
	return m
}

// WithMaxIter caps the number of coordinate sweeps.
func (m *Lasso) WithMaxIter(n int) *Lasso {
	m.maxIter = n
	return m
}

// Fit runs coordinate descent on centered data.
func (m *Lasso) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "Lasso.Fit")

	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("Lasso.Fit", "empty data", errors.ErrEmptyData)
	}

	Xc, yc, xMeans, yMean := centerData(X, y)
	coefs, converged := coordinateDescent(Xc, yc, m.alpha, 1.0, m.tol, m.maxIter)
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("Lasso", m.maxIter,
			"coordinate descent did not converge; consider increasing max_iter"))
	}
	if err := errors.CheckNumericalStability("Lasso.Fit", coefs, m.maxIter); err != nil {
		return err
	}

	m.Coefs = coefs
	m.Intercept = interceptFor(coefs, xMeans, yMean)
	m.NFeaturesIn = d
	m.SetFitted()

	log.GetLoggerWithName("linear.lasso").Debug("fitted lasso",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
	)
	return nil
}

// Predict returns X*w + b for each row of X.
func (m *Lasso) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("Lasso", "Predict")
	}
	return linearPredict(X, m.Coefs, m.Intercept, m.NFeaturesIn, "Lasso.Predict")
}

// Score returns the coefficient of determination R^2 on X, y.
func (m *Lasso) Score(X, y mat.Matrix) (float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(matColVec(y), matColVec(pred))
}

// Coef returns the fitted coefficients.
func (m *Lasso) Coef() ([]float64, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("Lasso", "Coef")
	}
	out := make([]float64, len(m.Coefs))
	copy(out, m.Coefs)
	return out, nil
}

// FeatureImportances ranks features by absolute coefficient.
func (m *Lasso) FeatureImportances() ([]float64, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("Lasso", "FeatureImportances")
	}
	return absCoefs(m.Coefs), nil
}

// GetParams returns the hyperparameters keyed by their snake_case names.
func (m *Lasso) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":    m.alpha,
		"tol":      m.tol,
		"max_iter": m.maxIter,
	}
}

// SetParams updates hyperparameters from a snake_case keyed map.
func (m *Lasso) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "alpha":
			v, ok := model.CoerceFloat(value)
			if !ok || v < 0 {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			m.alpha = v
		case "tol":
			v, ok := model.CoerceFloat(value)
			if !ok || v <= 0 {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			m.tol = v
		case "max_iter":
			v, ok := model.CoerceInt(value)
			if !ok || v < 1 {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			m.maxIter = v
		default:
			return errors.NewValueError("Lasso.SetParams", "unknown parameter "+key)
		}
	}
	return nil
}

// CloneBlank returns an unfitted copy with the same hyperparameters.
func (m *Lasso) CloneBlank() model.Tunable {
	return &Lasso{alpha: m.alpha, tol: m.tol, maxIter: m.maxIter}
}
