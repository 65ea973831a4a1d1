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

// SVR is a kernelized support vector regressor minimizing the
// epsilon-insensitive loss with the kernel form of the Pegasos
// subgradient algorithm.
type SVR struct {
	model.BaseEstimator

	cfg svcConfig

	// Fitted state, exported for gob encoding.
	TrainRows   [][]float64
	DualCoef    []float64
	Kern        kernelState
	NFeaturesIn int
}

var (
	_ model.Regressor = (*SVR)(nil)
	_ model.Tunable   = (*SVR)(nil)
)

// NewSVR creates a regressor with an RBF kernel, C=1, gamma="scale"
// and epsilon=0.1.
func NewSVR() *SVR {
	cfg := defaultSVCConfig()
	cfg.epsilon = 0.1
	return &SVR{cfg: cfg}
}

// WithC sets the inverse regularization strength.
func (m *SVR) WithC(c float64) *SVR {
	m.cfg.c = c
	return m
}

// WithKernel selects the kernel: linear, rbf, poly or sigmoid.
func (m *SVR) WithKernel(name string) *SVR {
	m.cfg.kernelName = name
	return m
}

// WithGamma sets a literal kernel coefficient.
func (m *SVR) WithGamma(g float64) *SVR {
	m.cfg.gamma = gammaSpec{Mode: "value", Value: g}
	return m
}

// WithEpsilon sets the width of the insensitive tube.
func (m *SVR) WithEpsilon(e float64) *SVR {
	m.cfg.epsilon = e
	return m
}

// WithTol sets the relative objective-change threshold for stopping.
func (m *SVR) WithTol(tol float64) *SVR {
	m.cfg.tol = tol
	return m
}

// WithMaxIter caps the number of epochs.
func (m *SVR) WithMaxIter(n int) *SVR {
	m.cfg.maxIter = n
	return m
}

// WithRandomState seeds the sample order.
func (m *SVR) WithRandomState(seed int64) *SVR {
	m.cfg.randomState = seed
	return m
}

// Kernel returns the configured kernel name.
func (m *SVR) Kernel() string { return m.cfg.kernelName }

// Fit trains the dual expansion.
func (m *SVR) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "SVR.Fit")

	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("SVR.Fit", "empty data", errors.ErrEmptyData)
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
	lambda := 1 / (m.cfg.c * float64(n))

	seed := m.cfg.randomState
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1))

	// counts[i] accumulates signed subgradient steps of row i; the
	// final expansion is scaled by 1/(lambda*T).
	counts := make([]float64, n)
	t := 0
	prevLoss := math.Inf(1)
	for epoch := 0; epoch < m.cfg.maxIter; epoch++ {
		for _, i := range rng.Perm(n) {
			t++
			s := 0.0
			for j := 0; j < n; j++ {
				if counts[j] != 0 {
					s += counts[j] * K[j][i]
				}
			}
			s /= lambda * float64(t)
			resid := y.At(i, 0) - s
			if math.Abs(resid) > m.cfg.epsilon {
				counts[i] += sign(resid)
			}
		}

		loss := 0.0
		scale := 1 / (lambda * float64(t))
		for i := 0; i < n; i++ {
			s := 0.0
			for j := 0; j < n; j++ {
				if counts[j] != 0 {
					s += counts[j] * K[j][i]
				}
			}
			loss += math.Max(0, math.Abs(y.At(i, 0)-s*scale)-m.cfg.epsilon)
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
		coef[i] = counts[i] * scale
	}

	m.TrainRows = rows
	m.DualCoef = coef
	m.Kern = ks
	m.NFeaturesIn = d
	m.SetFitted()

	log.GetLoggerWithName("svm.svr").Debug("fitted svr",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		"kernel", ks.Name,
	)
	return nil
}

// Predict evaluates the dual expansion for each row of X.
func (m *SVR) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("SVR", "Predict")
	}
	if _, c := X.Dims(); c != m.NFeaturesIn {
		return nil, errors.NewDimensionError("SVR.Predict", m.NFeaturesIn, c, 1)
	}

	k := m.Kern.kernel()
	rows := matrixRows(X)
	out := mat.NewDense(len(rows), 1, nil)
	for i, row := range rows {
		s := 0.0
		for j, c := range m.DualCoef {
			if c != 0 {
				s += c * (k.eval(m.TrainRows[j], row) + 1)
			}
		}
		out.Set(i, 0, s)
	}
	return out, nil
}

// Score returns the coefficient of determination R^2 on X, y.
func (m *SVR) Score(X, y mat.Matrix) (float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(colVec(y), colVec(pred))
}

// FeatureImportances is available for the linear kernel only.
func (m *SVR) FeatureImportances() ([]float64, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("SVR", "FeatureImportances")
	}
	if m.Kern.Name != KernelLinear {
		return nil, errors.NewValueError("SVR.FeatureImportances",
			"feature weights are only defined for the linear kernel")
	}
	w := make([]float64, m.NFeaturesIn)
	for j, c := range m.DualCoef {
		if c != 0 {
			for f := 0; f < m.NFeaturesIn; f++ {
				w[f] += c * m.TrainRows[j][f]
			}
		}
	}
	return meanAbsCoef([][]float64{w}), nil
}

// GetParams returns the hyperparameters keyed by their snake_case names.
func (m *SVR) GetParams() map[string]interface{} {
	return m.cfg.asMap()
}

// SetParams updates hyperparameters from a snake_case keyed map.
func (m *SVR) SetParams(params map[string]interface{}) error {
	return m.cfg.apply("SVR.SetParams", params)
}

// CloneBlank returns an unfitted copy with the same hyperparameters.
func (m *SVR) CloneBlank() model.Tunable {
	return &SVR{cfg: m.cfg}
}
