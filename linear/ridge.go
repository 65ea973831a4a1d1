package linear

import (
	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/core/model"
	"github.com/otulearn/otulearn/metrics"
	"github.com/otulearn/otulearn/pkg/errors"
	"github.com/otulearn/otulearn/pkg/log"
)

// Ridge solver names.
const (
	SolverAuto     = "auto"
	SolverCholesky = "cholesky"
	SolverSVD      = "svd"
)

// Ridge is L2-regularized least squares solved in closed form. The
// "cholesky" solver factorizes the regularized normal equations; "svd"
// shrinks the singular values directly and handles rank-deficient
// designs; "auto" tries Cholesky and falls back to SVD.
type Ridge struct {
	model.BaseEstimator

	alpha       float64
	tol         float64
	solver      string
	randomState int64

	// Fitted state, exported for gob encoding.
	Coefs       []float64
	Intercept   float64
	NFeaturesIn int
}

var (
	_ model.Regressor     = (*Ridge)(nil)
	_ model.Tunable       = (*Ridge)(nil)
	_ model.FeatureRanker = (*Ridge)(nil)
)

// NewRidge creates a model with alpha=1 and the auto solver.
func NewRidge() *Ridge {
	return &Ridge{alpha: 1.0, tol: 1e-4, solver: SolverAuto}
}

// WithAlpha sets the regularization strength.
func (m *Ridge) WithAlpha(a float64) *Ridge {
	m.alpha = a
	return m
}

// WithSolver selects auto, cholesky or svd.
func (m *Ridge) WithSolver(s string) *Ridge {
	m.solver = s
	return m
}

// WithTol sets the tolerance parameter; the closed-form solvers keep
// it for interface compatibility.
func (m *Ridge) WithTol(tol float64) *Ridge {
	m.tol = tol
	return m
}

// Fit solves the regularized normal equations on centered data.
func (m *Ridge) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "Ridge.Fit")

	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("Ridge.Fit", "empty data", errors.ErrEmptyData)
	}
	if m.alpha < 0 {
		return errors.NewValueError("Ridge.Fit", "alpha must be non-negative")
	}

	Xc, yc, xMeans, yMean := centerData(X, y)

	var coefs []float64
	switch m.solver {
	case SolverCholesky:
		coefs, err = ridgeCholesky(Xc, yc, m.alpha)
	case SolverSVD:
		coefs, err = ridgeSVD(Xc, yc, m.alpha)
	case SolverAuto:
		coefs, err = ridgeCholesky(Xc, yc, m.alpha)
		if err != nil {
			coefs, err = ridgeSVD(Xc, yc, m.alpha)
		}
	default:
		return errors.NewValueError("Ridge.Fit", "unknown solver "+m.solver)
	}
	if err != nil {
		return err
	}

	m.Coefs = coefs
	m.Intercept = interceptFor(coefs, xMeans, yMean)
	m.NFeaturesIn = d
	m.SetFitted()

	log.GetLoggerWithName("linear.ridge").Debug("fitted ridge",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		"solver", m.solver,
	)
	return nil
}

func ridgeCholesky(Xc, yc *mat.Dense, alpha float64) ([]float64, error) {
	_, d := Xc.Dims()

	var A mat.SymDense
	A.SymOuterK(1, Xc.T())
	for j := 0; j < d; j++ {
		A.SetSym(j, j, A.At(j, j)+alpha)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(&A); !ok {
		return nil, errors.NewModelError("Ridge.Fit", "normal equations not positive definite",
			errors.ErrSingularMatrix)
	}

	n, _ := Xc.Dims()
	yv := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		yv.SetVec(i, yc.At(i, 0))
	}
	var b mat.VecDense
	b.MulVec(Xc.T(), yv)

	var w mat.VecDense
	if err := chol.SolveVecTo(&w, &b); err != nil {
		return nil, errors.NewModelError("Ridge.Fit", "cholesky solve failed", err)
	}

	coefs := make([]float64, d)
	for j := 0; j < d; j++ {
		coefs[j] = w.AtVec(j)
	}
	return coefs, nil
}

func ridgeSVD(Xc, yc *mat.Dense, alpha float64) ([]float64, error) {
	n, d := Xc.Dims()

	var svd mat.SVD
	if ok := svd.Factorize(Xc, mat.SVDThin); !ok {
		return nil, errors.NewModelError("Ridge.Fit", "svd factorization failed",
			errors.ErrSingularMatrix)
	}
	var U, V mat.Dense
	svd.UTo(&U)
	svd.VTo(&V)
	s := svd.Values(nil)

	yv := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		yv.SetVec(i, yc.At(i, 0))
	}
	var uty mat.VecDense
	uty.MulVec(U.T(), yv)

	// Shrink each singular direction by s/(s^2 + alpha).
	k := len(s)
	scaled := mat.NewVecDense(k, nil)
	for j := 0; j < k; j++ {
		if s[j] > 1e-12 {
			scaled.SetVec(j, uty.AtVec(j)*s[j]/(s[j]*s[j]+alpha))
		}
	}

	var w mat.VecDense
	w.MulVec(&V, scaled)

	coefs := make([]float64, d)
	for j := 0; j < d; j++ {
		coefs[j] = w.AtVec(j)
	}
	return coefs, nil
}

// Predict returns X*w + b for each row of X.
func (m *Ridge) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("Ridge", "Predict")
	}
	return linearPredict(X, m.Coefs, m.Intercept, m.NFeaturesIn, "Ridge.Predict")
}

// Score returns the coefficient of determination R^2 on X, y.
func (m *Ridge) Score(X, y mat.Matrix) (float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(matColVec(y), matColVec(pred))
}

// Coef returns the fitted coefficients.
func (m *Ridge) Coef() ([]float64, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("Ridge", "Coef")
	}
	out := make([]float64, len(m.Coefs))
	copy(out, m.Coefs)
	return out, nil
}

// FeatureImportances ranks features by absolute coefficient.
func (m *Ridge) FeatureImportances() ([]float64, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("Ridge", "FeatureImportances")
	}
	return absCoefs(m.Coefs), nil
}

// GetParams returns the hyperparameters keyed by their snake_case names.
func (m *Ridge) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":        m.alpha,
		"tol":          m.tol,
		"solver":       m.solver,
		"random_state": m.randomState,
	}
}

// SetParams updates hyperparameters from a snake_case keyed map.
func (m *Ridge) SetParams(params map[string]interface{}) error {
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
		case "solver":
			s, ok := model.CoerceString(value)
			if !ok || (s != SolverAuto && s != SolverCholesky && s != SolverSVD) {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			m.solver = s
		case "random_state":
			v, ok := model.CoerceInt(value)
			if !ok {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			m.randomState = int64(v)
		default:
			return errors.NewValueError("Ridge.SetParams", "unknown parameter "+key)
		}
	}
	return nil
}

// CloneBlank returns an unfitted copy with the same hyperparameters.
func (m *Ridge) CloneBlank() model.Tunable {
	return &Ridge{alpha: m.alpha, tol: m.tol, solver: m.solver, randomState: m.randomState}
}

// centerData subtracts column means from X and the mean from y.
func centerData(X, y mat.Matrix) (Xc, yc *mat.Dense, xMeans []float64, yMean float64) {
	n, d := X.Dims()
	xMeans = make([]float64, d)
	for j := 0; j < d; j++ {
		for i := 0; i < n; i++ {
			xMeans[j] += X.At(i, j)
		}
		xMeans[j] /= float64(n)
	}
	for i := 0; i < n; i++ {
		yMean += y.At(i, 0)
	}
	yMean /= float64(n)

	Xc = mat.NewDense(n, d, nil)
	yc = mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			Xc.Set(i, j, X.At(i, j)-xMeans[j])
		}
		yc.Set(i, 0, y.At(i, 0)-yMean)
	}
	return Xc, yc, xMeans, yMean
}

func interceptFor(coefs, xMeans []float64, yMean float64) float64 {
	b := yMean
	for j, w := range coefs {
		b -= w * xMeans[j]
	}
	return b
}

func linearPredict(X mat.Matrix, coefs []float64, intercept float64, nFeatures int, op string) (mat.Matrix, error) {
	n, d := X.Dims()
	if d != nFeatures {
		return nil, errors.NewDimensionError(op, nFeatures, d, 1)
	}
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		v := intercept
		for j := 0; j < d; j++ {
			v += coefs[j] * X.At(i, j)
		}
		out.Set(i, 0, v)
	}
	return out, nil
}

func absCoefs(coefs []float64) []float64 {
	out := make([]float64, len(coefs))
	for j, v := range coefs {
		if v < 0 {
			v = -v
		}
		out[j] = v
	}
	return out
}

// matColVec copies the first column of m into a VecDense.
func matColVec(m mat.Matrix) *mat.VecDense {
	r, _ := m.Dims()
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v
}
