package svm

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/core/model"
	"github.com/otulearn/otulearn/metrics"
	"github.com/otulearn/otulearn/pkg/errors"
	"github.com/otulearn/otulearn/pkg/log"
)

// kernelState is the resolved kernel configuration kept with a fitted
// model so predictions survive gob round trips.
type kernelState struct {
	Name   string
	Gamma  float64
	Degree int
	Coef0  float64
}

func (ks kernelState) kernel() *kernel {
	return &kernel{name: ks.Name, gamma: ks.Gamma, degree: ks.Degree, coef0: ks.Coef0}
}

// svcConfig carries the hyperparameters of the kernelized SVMs.
type svcConfig struct {
	c           float64
	kernelName  string
	gamma       gammaSpec
	degree      int
	coef0       float64
	tol         float64
	epsilon     float64
	maxIter     int
	randomState int64
}

func defaultSVCConfig() svcConfig {
	return svcConfig{
		c:          1.0,
		kernelName: KernelRBF,
		gamma:      gammaScale(),
		degree:     3,
		coef0:      0,
		tol:        1e-3,
		maxIter:    200,
	}
}

func (c *svcConfig) asMap() map[string]interface{} {
	return map[string]interface{}{
		"C":            c.c,
		"kernel":       c.kernelName,
		"gamma":        c.gamma.param(),
		"degree":       c.degree,
		"coef0":        c.coef0,
		"tol":          c.tol,
		"epsilon":      c.epsilon,
		"max_iter":     c.maxIter,
		"random_state": c.randomState,
	}
}

func (c *svcConfig) apply(op string, params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "C":
			v, ok := model.CoerceFloat(value)
			if !ok || v <= 0 {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			c.c = v
		case "kernel":
			s, ok := model.CoerceString(value)
			if !ok {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			switch s {
			case KernelLinear, KernelRBF, KernelPoly, KernelSigmoid:
			default:
				return errors.NewValidationError(key, "unsupported kernel", value)
			}
			c.kernelName = s
		case "gamma":
			g, ok := coerceGamma(value)
			if !ok {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			c.gamma = g
		case "degree":
			v, ok := model.CoerceInt(value)
			if !ok || v < 1 {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			c.degree = v
		case "coef0":
			v, ok := model.CoerceFloat(value)
			if !ok {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			c.coef0 = v
		case "tol":
			v, ok := model.CoerceFloat(value)
			if !ok || v <= 0 {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			c.tol = v
		case "epsilon":
			v, ok := model.CoerceFloat(value)
			if !ok || v < 0 {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			c.epsilon = v
		case "max_iter":
			v, ok := model.CoerceInt(value)
			if !ok || v < 1 {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			c.maxIter = v
		case "random_state":
			v, ok := model.CoerceInt(value)
			if !ok {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			c.randomState = int64(v)
		default:
			return errors.NewValueError(op, "unknown parameter "+key)
		}
	}
	return nil
}

// gramMatrix evaluates K(x_i, x_j) + 1 over the training rows; the
// constant term folds the bias into the expansion.
func gramMatrix(k *kernel, rows [][]float64) [][]float64 {
	n := len(rows)
	K := make([][]float64, n)
	for i := range K {
		K[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := k.eval(rows[i], rows[j]) + 1
			K[i][j] = v
			K[j][i] = v
		}
	}
	return K
}

// SVC is a kernelized support vector classifier trained with the
// kernel form of the Pegasos subgradient algorithm; multi-class
// problems are handled one-vs-rest. Only the linear kernel exposes
// feature weights, so recursive feature elimination is unavailable for
// the nonlinear kernels.
type SVC struct {
	model.BaseEstimator

	cfg svcConfig

	// Fitted state, exported for gob encoding. DualCoefs[p][i] is the
	// signed coefficient of training row i in one-vs-rest problem p,
	// already scaled by 1/(lambda*T).
	TrainRows   [][]float64
	DualCoefs   [][]float64
	Kern        kernelState
	ClassValues []float64
	NFeaturesIn int
}

var (
	_ model.Tunable = (*SVC)(nil)
	_ model.Scorer  = (*SVC)(nil)
)

// NewSVC creates a classifier with an RBF kernel, C=1 and
// gamma="scale".
func NewSVC() *SVC {
	return &SVC{cfg: defaultSVCConfig()}
}

// WithC sets the inverse regularization strength.
func (m *SVC) WithC(c float64) *SVC {
	m.cfg.c = c
	return m
}

// WithKernel selects the kernel: linear, rbf, poly or sigmoid.
func (m *SVC) WithKernel(name string) *SVC {
	m.cfg.kernelName = name
	return m
}

// WithGamma sets a literal kernel coefficient.
func (m *SVC) WithGamma(g float64) *SVC {
	m.cfg.gamma = gammaSpec{Mode: "value", Value: g}
	return m
}

// WithTol sets the relative objective-change threshold for stopping.
func (m *SVC) WithTol(tol float64) *SVC {
	m.cfg.tol = tol
	return m
}

// WithMaxIter caps the number of epochs.
func (m *SVC) WithMaxIter(n int) *SVC {
	m.cfg.maxIter = n
	return m
}

// WithRandomState seeds the sample order.
func (m *SVC) WithRandomState(seed int64) *SVC {
	m.cfg.randomState = seed
	return m
}

// Kernel returns the configured kernel name.
func (m *SVC) Kernel() string { return m.cfg.kernelName }

// Fit trains one dual expansion per class against the rest.
func (m *SVC) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "SVC.Fit")

	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("SVC.Fit", "empty data", errors.ErrEmptyData)
	}

	classValues := distinctSorted(y)
	if len(classValues) < 2 {
		return errors.NewValueError("SVC.Fit", "need at least two classes")
	}

	ks := kernelState{
		Name:   m.cfg.kernelName,
		Gamma:  m.cfg.gamma.resolve(X),
		Degree: m.cfg.degree,
		Coef0:  m.cfg.coef0,
	}
	k, err := newKernel(ks.Name, ks.Gamma, ks.Degree, ks.Coef0)
	if err != nil {
		return err
	}

	rows := matrixRows(X)
	K := gramMatrix(k, rows)

	problems := len(classValues)
	if problems == 2 {
		problems = 1
	}
	coefs := make([][]float64, problems)
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
		coefs[p] = m.trainBinary(K, target, p)
	}

	m.TrainRows = rows
	m.DualCoefs = coefs
	m.Kern = ks
	m.ClassValues = classValues
	m.NFeaturesIn = d
	m.SetFitted()

	log.GetLoggerWithName("svm.svc").Debug("fitted svc",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.ClassesKey, len(classValues),
		"kernel", ks.Name,
	)
	return nil
}

// trainBinary runs kernelized Pegasos for one +1/-1 problem and
// returns the scaled signed dual coefficients.
func (m *SVC) trainBinary(K [][]float64, target []float64, problem int) []float64 {
	n := len(target)
	lambda := 1 / (m.cfg.c * float64(n))

	seed := m.cfg.randomState
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	seed += int64(problem) * 104729
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1))

	counts := make([]float64, n)
	t := 0
	prevLoss := math.Inf(1)
	for epoch := 0; epoch < m.cfg.maxIter; epoch++ {
		for _, i := range rng.Perm(n) {
			t++
			s := 0.0
			for j := 0; j < n; j++ {
				if counts[j] != 0 {
					s += counts[j] * target[j] * K[j][i]
				}
			}
			s /= lambda * float64(t)
			if target[i]*s < 1 {
				counts[i]++
			}
		}

		// Epoch objective on the current expansion.
		loss := 0.0
		scale := 1 / (lambda * float64(t))
		for i := 0; i < n; i++ {
			s := 0.0
			for j := 0; j < n; j++ {
				if counts[j] != 0 {
					s += counts[j] * target[j] * K[j][i]
				}
			}
			loss += math.Max(0, 1-target[i]*s*scale)
		}
		loss /= float64(n)
		if math.Abs(prevLoss-loss) < m.cfg.tol {
			break
		}
		prevLoss = loss
	}

	scale := 1 / (lambda * float64(t))
	coef := make([]float64, n)
	for i := range coef {
		coef[i] = counts[i] * target[i] * scale
	}
	return coef
}

// decision evaluates the dual expansions for each row of X.
func (m *SVC) decision(X mat.Matrix) *mat.Dense {
	k := m.Kern.kernel()
	rows := matrixRows(X)
	out := mat.NewDense(len(rows), len(m.DualCoefs), nil)
	for i, row := range rows {
		for p, coef := range m.DualCoefs {
			s := 0.0
			for j, c := range coef {
				if c != 0 {
					s += c * (k.eval(m.TrainRows[j], row) + 1)
				}
			}
			out.Set(i, p, s)
		}
	}
	return out
}

// Predict returns the class code with the largest decision value.
func (m *SVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("SVC", "Predict")
	}
	if _, c := X.Dims(); c != m.NFeaturesIn {
		return nil, errors.NewDimensionError("SVC.Predict", m.NFeaturesIn, c, 1)
	}

	dec := m.decision(X)
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
		for p := 1; p < len(m.DualCoefs); p++ {
			if dec.At(i, p) > dec.At(i, best) {
				best = p
			}
		}
		out.Set(i, 0, m.ClassValues[best])
	}
	return out, nil
}

// Classes returns the sorted class codes seen during fitting.
func (m *SVC) Classes() []float64 {
	out := make([]float64, len(m.ClassValues))
	copy(out, m.ClassValues)
	return out
}

// Score returns the accuracy on X, y.
func (m *SVC) Score(X, y mat.Matrix) (float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy(colVec(y), colVec(pred))
}

// FeatureImportances is available for the linear kernel only, where
// the primal weights can be reconstructed from the dual expansion.
func (m *SVC) FeatureImportances() ([]float64, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("SVC", "FeatureImportances")
	}
	if m.Kern.Name != KernelLinear {
		return nil, errors.NewValueError("SVC.FeatureImportances",
			"feature weights are only defined for the linear kernel")
	}
	weights := make([][]float64, len(m.DualCoefs))
	for p, coef := range m.DualCoefs {
		w := make([]float64, m.NFeaturesIn)
		for j, c := range coef {
			if c != 0 {
				for f := 0; f < m.NFeaturesIn; f++ {
					w[f] += c * m.TrainRows[j][f]
				}
			}
		}
		weights[p] = w
	}
	return meanAbsCoef(weights), nil
}

// GetParams returns the hyperparameters keyed by their snake_case names.
func (m *SVC) GetParams() map[string]interface{} {
	params := m.cfg.asMap()
	delete(params, "epsilon")
	return params
}

// SetParams updates hyperparameters from a snake_case keyed map.
func (m *SVC) SetParams(params map[string]interface{}) error {
	return m.cfg.apply("SVC.SetParams", params)
}

// CloneBlank returns an unfitted copy with the same hyperparameters.
func (m *SVC) CloneBlank() model.Tunable {
	return &SVC{cfg: m.cfg}
}
