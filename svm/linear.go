package svm

import (
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/core/model"
	"github.com/otulearn/otulearn/metrics"
	"github.com/otulearn/otulearn/pkg/errors"
	"github.com/otulearn/otulearn/pkg/log"
	"github.com/otulearn/otulearn/preprocessing"
)

// linearConfig carries the hyperparameters shared by the primal SVMs.
type linearConfig struct {
	c           float64
	loss        string
	tol         float64
	epsilon     float64
	maxIter     int
	randomState int64
}

// LinearSVC is a linear support vector classifier trained in the
// primal with Pegasos-style stochastic subgradient descent. Features
// are standardized internally; multi-class problems are handled
// one-vs-rest.
type LinearSVC struct {
	model.BaseEstimator

	cfg linearConfig

	// Fitted state, exported for gob encoding. Weights holds one
	// weight vector per one-vs-rest problem.
	Weights     [][]float64
	Intercepts  []float64
	Scaler      *preprocessing.StandardScaler
	ClassValues []float64
	NFeaturesIn int
}

var (
	_ model.Tunable       = (*LinearSVC)(nil)
	_ model.Scorer        = (*LinearSVC)(nil)
	_ model.FeatureRanker = (*LinearSVC)(nil)
)

// NewLinearSVC creates a classifier with squared hinge loss, C=1 and
// up to 1000 epochs.
func NewLinearSVC() *LinearSVC {
	return &LinearSVC{cfg: linearConfig{
		c:       1.0,
		loss:    "squared_hinge",
		tol:     1e-4,
		maxIter: 1000,
	}}
}

// WithC sets the inverse regularization strength.
func (m *LinearSVC) WithC(c float64) *LinearSVC {
	m.cfg.c = c
	return m
}

// WithLoss selects "hinge" or "squared_hinge".
func (m *LinearSVC) WithLoss(loss string) *LinearSVC {
	m.cfg.loss = loss
	return m
}

// WithTol sets the relative weight-change threshold for stopping.
func (m *LinearSVC) WithTol(tol float64) *LinearSVC {
	m.cfg.tol = tol
	return m
}

// WithMaxIter caps the number of epochs.
func (m *LinearSVC) WithMaxIter(n int) *LinearSVC {
	m.cfg.maxIter = n
	return m
}

// WithRandomState seeds the sample shuffling.
func (m *LinearSVC) WithRandomState(seed int64) *LinearSVC {
	m.cfg.randomState = seed
	return m
}

// Fit trains one weight vector per class against the rest.
func (m *LinearSVC) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearSVC.Fit")

	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("LinearSVC.Fit", "empty data", errors.ErrEmptyData)
	}
	if m.cfg.loss != "hinge" && m.cfg.loss != "squared_hinge" {
		return errors.NewValueError("LinearSVC.Fit", "loss must be hinge or squared_hinge")
	}

	scaler := preprocessing.NewStandardScalerDefault()
	Xs, err := scaler.FitTransform(X)
	if err != nil {
		return err
	}
	rows := matrixRows(Xs)

	classValues := distinctSorted(y)
	if len(classValues) < 2 {
		return errors.NewValueError("LinearSVC.Fit", "need at least two classes")
	}

	problems := len(classValues)
	if problems == 2 {
		problems = 1
	}

	weights := make([][]float64, problems)
	intercepts := make([]float64, problems)
	for p := 0; p < problems; p++ {
		target := make([]float64, n)
		for i := 0; i < n; i++ {
			pos := classValues[p]
			if len(classValues) == 2 {
				pos = classValues[1]
			}
			if y.At(i, 0) == pos {
				target[i] = 1
			} else {
				target[i] = -1
			}
		}
		w, b := m.trainBinary(rows, target)
		weights[p] = w
		intercepts[p] = b
	}

	m.Weights = weights
	m.Intercepts = intercepts
	m.Scaler = scaler
	m.ClassValues = classValues
	m.NFeaturesIn = d
	m.SetFitted()

	log.GetLoggerWithName("svm.linear_svc").Debug("fitted linear svc",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.ClassesKey, len(classValues),
	)
	return nil
}

// trainBinary runs the Pegasos subgradient loop for one +1/-1 problem.
func (m *LinearSVC) trainBinary(rows [][]float64, target []float64) ([]float64, float64) {
	n := len(rows)
	d := len(rows[0])
	lambda := 1 / (m.cfg.c * float64(n))

	seed := m.cfg.randomState
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1))

	w := make([]float64, d)
	prev := make([]float64, d)
	b := 0.0
	t := 0

	converged := false
	for epoch := 0; epoch < m.cfg.maxIter && !converged; epoch++ {
		copy(prev, w)
		for _, i := range rng.Perm(n) {
			t++
			eta := 1 / (lambda * float64(t))
			margin := target[i] * (dot(w, rows[i]) + b)

			for j := range w {
				w[j] *= 1 - eta*lambda
			}
			if margin < 1 {
				g := eta * target[i]
				if m.cfg.loss == "squared_hinge" {
					g *= 2 * (1 - margin)
				}
				for j := range w {
					w[j] += g * rows[i][j]
				}
				b += g
			}
		}
		converged = relChange(prev, w) < m.cfg.tol
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("LinearSVC", m.cfg.maxIter,
			"maximum number of iterations reached before convergence"))
	}
	return w, b
}

// decision returns the one-vs-rest decision values for each row.
func (m *LinearSVC) decision(X mat.Matrix) (*mat.Dense, error) {
	Xs, err := m.Scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	rows := matrixRows(Xs)
	out := mat.NewDense(len(rows), len(m.Weights), nil)
	for i, row := range rows {
		for p, w := range m.Weights {
			out.Set(i, p, dot(w, row)+m.Intercepts[p])
		}
	}
	return out, nil
}

// Predict returns the class code with the largest decision value.
func (m *LinearSVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("LinearSVC", "Predict")
	}
	if _, c := X.Dims(); c != m.NFeaturesIn {
		return nil, errors.NewDimensionError("LinearSVC.Predict", m.NFeaturesIn, c, 1)
	}

	dec, err := m.decision(X)
	if err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		if len(m.ClassValues) == 2 {
			if dec.At(i, 0) >= 0 {
				out.Set(i, 0, m.ClassValues[1])
			} else {
				out.Set(i, 0, m.ClassValues[0])
			}
			continue
		}
		best := 0
		for p := 1; p < len(m.Weights); p++ {
			if dec.At(i, p) > dec.At(i, best) {
				best = p
			}
		}
		out.Set(i, 0, m.ClassValues[best])
	}
	return out, nil
}

// Classes returns the sorted class codes seen during fitting.
func (m *LinearSVC) Classes() []float64 {
	out := make([]float64, len(m.ClassValues))
	copy(out, m.ClassValues)
	return out
}

// Score returns the accuracy on X, y.
func (m *LinearSVC) Score(X, y mat.Matrix) (float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy(colVec(y), colVec(pred))
}

// Coef returns the fitted weight vectors, one per one-vs-rest problem.
func (m *LinearSVC) Coef() ([][]float64, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("LinearSVC", "Coef")
	}
	out := make([][]float64, len(m.Weights))
	for p, w := range m.Weights {
		out[p] = make([]float64, len(w))
		copy(out[p], w)
	}
	return out, nil
}

// Intercept returns the fitted intercepts.
func (m *LinearSVC) Intercept() ([]float64, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("LinearSVC", "Intercept")
	}
	out := make([]float64, len(m.Intercepts))
	copy(out, m.Intercepts)
	return out, nil
}

// FeatureImportances ranks features by mean absolute coefficient.
func (m *LinearSVC) FeatureImportances() ([]float64, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("LinearSVC", "FeatureImportances")
	}
	return meanAbsCoef(m.Weights), nil
}

// GetParams returns the hyperparameters keyed by their snake_case names.
func (m *LinearSVC) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":            m.cfg.c,
		"loss":         m.cfg.loss,
		"tol":          m.cfg.tol,
		"max_iter":     m.cfg.maxIter,
		"random_state": m.cfg.randomState,
	}
}

// SetParams updates hyperparameters from a snake_case keyed map.
func (m *LinearSVC) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "C":
			v, ok := model.CoerceFloat(value)
			if !ok || v <= 0 {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			m.cfg.c = v
		case "loss":
			s, ok := model.CoerceString(value)
			if !ok || (s != "hinge" && s != "squared_hinge") {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			m.cfg.loss = s
		case "tol":
			v, ok := model.CoerceFloat(value)
			if !ok || v <= 0 {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			m.cfg.tol = v
		case "max_iter":
			v, ok := model.CoerceInt(value)
			if !ok || v < 1 {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			m.cfg.maxIter = v
		case "random_state":
			v, ok := model.CoerceInt(value)
			if !ok {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			m.cfg.randomState = int64(v)
		default:
			return errors.NewValueError("LinearSVC.SetParams", "unknown parameter "+key)
		}
	}
	return nil
}

// CloneBlank returns an unfitted copy with the same hyperparameters.
func (m *LinearSVC) CloneBlank() model.Tunable {
	return &LinearSVC{cfg: m.cfg}
}

// LinearSVR is a linear support vector regressor minimizing the
// epsilon-insensitive loss in the primal.
type LinearSVR struct {
	model.BaseEstimator

	cfg linearConfig

	// Fitted state, exported for gob encoding.
	Weights     []float64
	InterceptB  float64
	Scaler      *preprocessing.StandardScaler
	NFeaturesIn int
}

var (
	_ model.Regressor     = (*LinearSVR)(nil)
	_ model.Tunable       = (*LinearSVR)(nil)
	_ model.FeatureRanker = (*LinearSVR)(nil)
)

// NewLinearSVR creates a regressor with C=1, epsilon=0 and up to 1000
// epochs.
func NewLinearSVR() *LinearSVR {
	return &LinearSVR{cfg: linearConfig{
		c:       1.0,
		tol:     1e-4,
		epsilon: 0,
		maxIter: 1000,
	}}
}

// WithC sets the inverse regularization strength.
func (m *LinearSVR) WithC(c float64) *LinearSVR {
	m.cfg.c = c
	return m
}

// WithEpsilon sets the width of the insensitive tube.
func (m *LinearSVR) WithEpsilon(e float64) *LinearSVR {
	m.cfg.epsilon = e
	return m
}

// WithTol sets the relative weight-change threshold for stopping.
func (m *LinearSVR) WithTol(tol float64) *LinearSVR {
	m.cfg.tol = tol
	return m
}

// WithMaxIter caps the number of epochs.
func (m *LinearSVR) WithMaxIter(n int) *LinearSVR {
	m.cfg.maxIter = n
	return m
}

// WithRandomState seeds the sample shuffling.
func (m *LinearSVR) WithRandomState(seed int64) *LinearSVR {
	m.cfg.randomState = seed
	return m
}

// Fit trains the regressor.
func (m *LinearSVR) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearSVR.Fit")

	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("LinearSVR.Fit", "empty data", errors.ErrEmptyData)
	}

	scaler := preprocessing.NewStandardScalerDefault()
	Xs, err := scaler.FitTransform(X)
	if err != nil {
		return err
	}
	rows := matrixRows(Xs)
	lambda := 1 / (m.cfg.c * float64(n))

	seed := m.cfg.randomState
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1))

	w := make([]float64, d)
	prev := make([]float64, d)
	b := 0.0
	t := 0

	converged := false
	for epoch := 0; epoch < m.cfg.maxIter && !converged; epoch++ {
		copy(prev, w)
		for _, i := range rng.Perm(n) {
			t++
			eta := 1 / (lambda * float64(t))
			resid := y.At(i, 0) - (dot(w, rows[i]) + b)

			for j := range w {
				w[j] *= 1 - eta*lambda
			}
			if math.Abs(resid) > m.cfg.epsilon {
				g := eta * sign(resid)
				for j := range w {
					w[j] += g * rows[i][j]
				}
				b += g
			}
		}
		converged = relChange(prev, w) < m.cfg.tol
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("LinearSVR", m.cfg.maxIter,
			"maximum number of iterations reached before convergence"))
	}

	m.Weights = w
	m.InterceptB = b
	m.Scaler = scaler
	m.NFeaturesIn = d
	m.SetFitted()

	log.GetLoggerWithName("svm.linear_svr").Debug("fitted linear svr",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
	)
	return nil
}

// Predict returns w.x + b for each row of X.
func (m *LinearSVR) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("LinearSVR", "Predict")
	}
	if _, c := X.Dims(); c != m.NFeaturesIn {
		return nil, errors.NewDimensionError("LinearSVR.Predict", m.NFeaturesIn, c, 1)
	}

	Xs, err := m.Scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	rows := matrixRows(Xs)
	out := mat.NewDense(len(rows), 1, nil)
	for i, row := range rows {
		out.Set(i, 0, dot(m.Weights, row)+m.InterceptB)
	}
	return out, nil
}

// Score returns the coefficient of determination R^2 on X, y.
func (m *LinearSVR) Score(X, y mat.Matrix) (float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(colVec(y), colVec(pred))
}

// Coef returns the fitted weight vector.
func (m *LinearSVR) Coef() ([]float64, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("LinearSVR", "Coef")
	}
	out := make([]float64, len(m.Weights))
	copy(out, m.Weights)
	return out, nil
}

// FeatureImportances ranks features by absolute coefficient.
func (m *LinearSVR) FeatureImportances() ([]float64, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("LinearSVR", "FeatureImportances")
	}
	return meanAbsCoef([][]float64{m.Weights}), nil
}

// GetParams returns the hyperparameters keyed by their snake_case names.
func (m *LinearSVR) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":            m.cfg.c,
		"epsilon":      m.cfg.epsilon,
		"tol":          m.cfg.tol,
		"max_iter":     m.cfg.maxIter,
		"random_state": m.cfg.randomState,
	}
}

// SetParams updates hyperparameters from a snake_case keyed map.
func (m *LinearSVR) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "C":
			v, ok := model.CoerceFloat(value)
			if !ok || v <= 0 {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			m.cfg.c = v
		case "epsilon":
			v, ok := model.CoerceFloat(value)
			if !ok || v < 0 {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			m.cfg.epsilon = v
		case "tol":
			v, ok := model.CoerceFloat(value)
			if !ok || v <= 0 {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			m.cfg.tol = v
		case "max_iter":
			v, ok := model.CoerceInt(value)
			if !ok || v < 1 {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			m.cfg.maxIter = v
		case "random_state":
			v, ok := model.CoerceInt(value)
			if !ok {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			m.cfg.randomState = int64(v)
		default:
			return errors.NewValueError("LinearSVR.SetParams", "unknown parameter "+key)
		}
	}
	return nil
}

// CloneBlank returns an unfitted copy with the same hyperparameters.
func (m *LinearSVR) CloneBlank() model.Tunable {
	return &LinearSVR{cfg: m.cfg}
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// relChange measures the relative L2 movement of the weight vector
// over one epoch.
func relChange(prev, cur []float64) float64 {
	num, den := 0.0, 0.0
	for j := range cur {
		d := cur[j] - prev[j]
		num += d * d
		den += cur[j] * cur[j]
	}
	if den == 0 {
		return math.Sqrt(num)
	}
	return math.Sqrt(num / den)
}

// meanAbsCoef averages absolute coefficients across weight vectors.
func meanAbsCoef(weights [][]float64) []float64 {
	out := make([]float64, len(weights[0]))
	for _, w := range weights {
		for j, v := range w {
			out[j] += math.Abs(v)
		}
	}
	for j := range out {
		out[j] /= float64(len(weights))
	}
	return out
}

// distinctSorted returns the sorted distinct values of a target column.
func distinctSorted(y mat.Matrix) []float64 {
	values, _ := collectDistinct(y)
	return values
}

func collectDistinct(y mat.Matrix) ([]float64, map[float64]int) {
	n, _ := y.Dims()
	seen := make(map[float64]int)
	var values []float64
	for i := 0; i < n; i++ {
		v := y.At(i, 0)
		if _, ok := seen[v]; !ok {
			seen[v] = 0
			values = append(values, v)
		}
	}
	sort.Float64s(values)
	for i, v := range values {
		seen[v] = i
	}
	return values, seen
}

// colVec copies the first column of m into a VecDense.
func colVec(m mat.Matrix) *mat.VecDense {
	r, _ := m.Dims()
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v
}
