package linear

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/core/model"
	"github.com/otulearn/otulearn/metrics"
	"github.com/otulearn/otulearn/pkg/errors"
	"github.com/otulearn/otulearn/pkg/log"
)

// coordinateDescent minimizes
//
//	1/(2n) ||y - Xw||^2 + alpha*l1Ratio*||w||_1 + alpha*(1-l1Ratio)/2*||w||^2
//
// by cyclic coordinate updates on centered data. It returns the
// coefficients and whether the loop converged within maxIter sweeps.
func coordinateDescent(Xc, yc *mat.Dense, alpha, l1Ratio, tol float64, maxIter int) ([]float64, bool) {
	n, d := Xc.Dims()
	nf := float64(n)

	// Column squared norms are constant across sweeps.
	colSq := make([]float64, d)
	for j := 0; j < d; j++ {
		for i := 0; i < n; i++ {
			v := Xc.At(i, j)
			colSq[j] += v * v
		}
	}

	w := make([]float64, d)
	resid := make([]float64, n)
	for i := 0; i < n; i++ {
		resid[i] = yc.At(i, 0)
	}

	l1 := alpha * l1Ratio
	l2 := alpha * (1 - l1Ratio)

	for sweep := 0; sweep < maxIter; sweep++ {
		maxChange := 0.0
		for j := 0; j < d; j++ {
			if colSq[j] == 0 {
				continue
			}
			old := w[j]

			// rho = (1/n) X_j . (resid + X_j w_j)
			rho := 0.0
			for i := 0; i < n; i++ {
				rho += Xc.At(i, j) * (resid[i] + Xc.At(i, j)*old)
			}
			rho /= nf

			wj := softThreshold(rho, l1) / (colSq[j]/nf + l2)
			if wj != old {
				delta := wj - old
				for i := 0; i < n; i++ {
					resid[i] -= delta * Xc.At(i, j)
				}
				w[j] = wj
				if c := math.Abs(delta); c > maxChange {
					maxChange = c
				}
			}
		}
		if maxChange < tol {
			return w, true
		}
	}
	return w, false
}

func softThreshold(v, threshold float64) float64 {
	switch {
	case v > threshold:
		return v - threshold
	case v < -threshold:
		return v + threshold
	default:
		return 0
	}
}

// ElasticNet combines L1 and L2 penalties, fitted by cyclic coordinate
// descent.
type ElasticNet struct {
	model.BaseEstimator

	alpha   float64
	l1Ratio float64
	tol     float64
	maxIter int

	// Fitted state, exported for gob encoding.
	Coefs       []float64
	Intercept   float64
	NFeaturesIn int
}

var (
	_ model.Regressor     = (*ElasticNet)(nil)
	_ model.Tunable       = (*ElasticNet)(nil)
	_ model.FeatureRanker = (*ElasticNet)(nil)
)

// NewElasticNet creates a model with alpha=1 and l1_ratio=0.5.
func NewElasticNet() *ElasticNet {
	return &ElasticNet{alpha: 1.0, l1Ratio: 0.5, tol: 1e-4, maxIter: 1000}
}

// WithAlpha sets the overall regularization strength.
func (m *ElasticNet) WithAlpha(a float64) *ElasticNet {
	m.alpha = a
	return m
}

// WithL1Ratio sets the L1 share of the penalty (1 is the lasso).
func (m *ElasticNet) WithL1Ratio(r float64) *ElasticNet {
	m.l1Ratio = r
	return m
}

// WithTol sets the coefficient-change threshold for stopping.
func (m *ElasticNet) WithTol(tol float64) *ElasticNet {
	m.tol = tol
	return m
}

// WithMaxIter caps the number of coordinate sweeps.
func (m *ElasticNet) WithMaxIter(n int) *ElasticNet {
	m.maxIter = n
	return m
}

// Fit runs coordinate descent on centered data.
func (m *ElasticNet) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "ElasticNet.Fit")

	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("ElasticNet.Fit", "empty data", errors.ErrEmptyData)
	}
	if m.l1Ratio < 0 || m.l1Ratio > 1 {
		return errors.NewValueError("ElasticNet.Fit", "l1_ratio must be in [0, 1]")
	}

	Xc, yc, xMeans, yMean := centerData(X, y)
	coefs, converged := coordinateDescent(Xc, yc, m.alpha, m.l1Ratio, m.tol, m.maxIter)
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("ElasticNet", m.maxIter,
			"coordinate descent did not converge; consider increasing max_iter"))
	}
	if err := errors.CheckNumericalStability("ElasticNet.Fit", coefs, m.maxIter); err != nil {
		return err
	}

	m.Coefs = coefs
	m.Intercept = interceptFor(coefs, xMeans, yMean)
	m.NFeaturesIn = d
	m.SetFitted()

	log.GetLoggerWithName("linear.elastic_net").Debug("fitted elastic net",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
	)
	return nil
}

// Predict returns X*w + b for each row of X.
func (m *ElasticNet) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("ElasticNet", "Predict")
	}
	return linearPredict(X, m.Coefs, m.Intercept, m.NFeaturesIn, "ElasticNet.Predict")
}

// Score returns the coefficient of determination R^2 on X, y.
func (m *ElasticNet) Score(X, y mat.Matrix) (float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(matColVec(y), matColVec(pred))
}

// Coef returns the fitted coefficients.
func (m *ElasticNet) Coef() ([]float64, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("ElasticNet", "Coef")
	}
	out := make([]float64, len(m.Coefs))
	copy(out, m.Coefs)
	return out, nil
}

// FeatureImportances ranks features by absolute coefficient.
func (m *ElasticNet) FeatureImportances() ([]float64, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("ElasticNet", "FeatureImportances")
	}
	return absCoefs(m.Coefs), nil
}

// GetParams returns the hyperparameters keyed by their snake_case names.
func (m *ElasticNet) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":    m.alpha,
		"l1_ratio": m.l1Ratio,
		"tol":      m.tol,
		"max_iter": m.maxIter,
	}
}

// SetParams updates hyperparameters from a snake_case keyed map.
func (m *ElasticNet) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "alpha":
			v, ok := model.CoerceFloat(value)
			if !ok || v < 0 {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			m.alpha = v
		case "l1_ratio":
			v, ok := model.CoerceFloat(value)
			if !ok || v < 0 || v > 1 {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			m.l1Ratio = v
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
			return errors.NewValueError("ElasticNet.SetParams", "unknown parameter "+key)
		}
	}
	return nil
}

// CloneBlank returns an unfitted copy with the same hyperparameters.
func (m *ElasticNet) CloneBlank() model.Tunable {
	return &ElasticNet{alpha: m.alpha, l1Ratio: m.l1Ratio, tol: m.tol, maxIter: m.maxIter}
}
