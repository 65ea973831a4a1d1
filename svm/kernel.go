// Package svm implements support vector machines: linear classifiers
// and regressors trained in the primal with stochastic subgradient
// descent, and kernelized variants trained in the dual. Targets follow
// the same numeric class-code convention as the tree ensembles.
package svm

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/core/model"
	"github.com/otulearn/otulearn/pkg/errors"
)

// Supported kernel names.
const (
	KernelLinear  = "linear"
	KernelRBF     = "rbf"
	KernelPoly    = "poly"
	KernelSigmoid = "sigmoid"
)

// gammaSpec holds the gamma parameter, which is either a literal value
// or one of the data-dependent modes "scale" and "auto".
type gammaSpec struct {
	Mode  string // "scale", "auto" or "value"
	Value float64
}

func gammaScale() gammaSpec { return gammaSpec{Mode: "scale"} }

// resolve computes the effective gamma for a training matrix:
// 1/(n_features * var(X)) for "scale", 1/n_features for "auto".
func (g gammaSpec) resolve(X mat.Matrix) float64 {
	_, d := X.Dims()
	switch g.Mode {
	case "scale":
		v := matrixVariance(X)
		if v <= 0 {
			v = 1
		}
		return 1 / (float64(d) * v)
	case "auto":
		return 1 / float64(d)
	default:
		return g.Value
	}
}

// param renders gamma for GetParams: the literal value, or the mode
// name when data-dependent.
func (g gammaSpec) param() interface{} {
	if g.Mode == "value" {
		return g.Value
	}
	return g.Mode
}

// coerceGamma reads a gamma value out of a SetParams map entry.
func coerceGamma(value interface{}) (gammaSpec, bool) {
	if s, ok := value.(string); ok {
		if s == "scale" || s == "auto" {
			return gammaSpec{Mode: s}, true
		}
		return gammaSpec{}, false
	}
	v, ok := model.CoerceFloat(value)
	if !ok || v <= 0 {
		return gammaSpec{}, false
	}
	return gammaSpec{Mode: "value", Value: v}, true
}

func matrixVariance(X mat.Matrix) float64 {
	n, d := X.Dims()
	total := float64(n * d)
	mean := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			mean += X.At(i, j)
		}
	}
	mean /= total
	ss := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			diff := X.At(i, j) - mean
			ss += diff * diff
		}
	}
	return ss / total
}

// kernel evaluates k(a, b) for a fixed kernel configuration.
type kernel struct {
	name   string
	gamma  float64
	degree int
	coef0  float64
}

func newKernel(name string, gamma float64, degree int, coef0 float64) (*kernel, error) {
	switch name {
	case KernelLinear, KernelRBF, KernelPoly, KernelSigmoid:
	default:
		return nil, errors.NewValueError("svm.newKernel", "unsupported kernel "+name)
	}
	return &kernel{name: name, gamma: gamma, degree: degree, coef0: coef0}, nil
}

func (k *kernel) eval(a, b []float64) float64 {
	switch k.name {
	case KernelLinear:
		return dot(a, b)
	case KernelRBF:
		return math.Exp(-k.gamma * sqDist(a, b))
	case KernelPoly:
		return math.Pow(k.gamma*dot(a, b)+k.coef0, float64(k.degree))
	default: // sigmoid
		return math.Tanh(k.gamma*dot(a, b) + k.coef0)
	}
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func sqDist(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// matrixRows copies a matrix into per-row slices for kernel evaluation.
func matrixRows(X mat.Matrix) [][]float64 {
	n, d := X.Dims()
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		rows[i] = make([]float64, d)
		for j := 0; j < d; j++ {
			rows[i][j] = X.At(i, j)
		}
	}
	return rows
}
