// Package neighbors implements brute-force k-nearest neighbor
// estimators with Minkowski distances. Queries are answered row-wise
// in parallel; the "auto" algorithm setting resolves to brute force,
// any other setting is rejected.
package neighbors

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/core/model"
	"github.com/otulearn/otulearn/core/parallel"
	"github.com/otulearn/otulearn/pkg/errors"
)

// Weighting schemes.
const (
	WeightsUniform  = "uniform"
	WeightsDistance = "distance"
)

// Algorithms. Only brute force is implemented; "auto" resolves to it.
const (
	AlgorithmAuto  = "auto"
	AlgorithmBrute = "brute"
)

// knnConfig carries the hyperparameters shared by the neighbor
// estimators.
type knnConfig struct {
	nNeighbors int
	weights    string
	p          float64
	algorithm  string
	nJobs      int
}

func defaultKNNConfig() knnConfig {
	return knnConfig{
		nNeighbors: 5,
		weights:    WeightsUniform,
		p:          2,
		algorithm:  AlgorithmAuto,
		nJobs:      1,
	}
}

func (c *knnConfig) validate(op string, nSamples int) error {
	if c.algorithm != AlgorithmAuto && c.algorithm != AlgorithmBrute {
		return errors.NewValueError(op, "algorithm must be auto or brute")
	}
	if c.weights != WeightsUniform && c.weights != WeightsDistance {
		return errors.NewValueError(op, "weights must be uniform or distance")
	}
	if c.p < 1 {
		return errors.NewValueError(op, "p must be at least 1")
	}
	if c.nNeighbors < 1 {
		return errors.NewValueError(op, "n_neighbors must be positive")
	}
	if c.nNeighbors > nSamples {
		return errors.NewValueError(op, "n_neighbors exceeds the number of samples")
	}
	return nil
}

func (c *knnConfig) asMap() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": c.nNeighbors,
		"weights":     c.weights,
		"p":           c.p,
		"algorithm":   c.algorithm,
		"n_jobs":      c.nJobs,
	}
}

func (c *knnConfig) apply(op string, params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "n_neighbors":
			v, ok := model.CoerceInt(value)
			if !ok || v < 1 {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			c.nNeighbors = v
		case "weights":
			s, ok := model.CoerceString(value)
			if !ok || (s != WeightsUniform && s != WeightsDistance) {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			c.weights = s
		case "p":
			v, ok := model.CoerceFloat(value)
			if !ok || v < 1 {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			c.p = v
		case "algorithm":
			s, ok := model.CoerceString(value)
			if !ok || (s != AlgorithmAuto && s != AlgorithmBrute) {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			c.algorithm = s
		case "n_jobs":
			v, ok := model.CoerceInt(value)
			if !ok {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			c.nJobs = v
		default:
			return errors.NewValueError(op, "unknown parameter "+key)
		}
	}
	return nil
}

// minkowski computes the p-norm distance between two rows.
func minkowski(a, b []float64, p float64) float64 {
	switch p {
	case 1:
		s := 0.0
		for i := range a {
			s += math.Abs(a[i] - b[i])
		}
		return s
	case 2:
		s := 0.0
		for i := range a {
			d := a[i] - b[i]
			s += d * d
		}
		return math.Sqrt(s)
	default:
		s := 0.0
		for i := range a {
			s += math.Pow(math.Abs(a[i]-b[i]), p)
		}
		return math.Pow(s, 1/p)
	}
}

// neighbor pairs a training index with its distance to the query.
type neighbor struct {
	index int
	dist  float64
}

// nearest returns the k training rows closest to the query.
func nearest(train [][]float64, query []float64, k int, p float64) []neighbor {
	ns := make([]neighbor, len(train))
	for i, row := range train {
		ns[i] = neighbor{index: i, dist: minkowski(row, query, p)}
	}
	sort.Slice(ns, func(a, b int) bool { return ns[a].dist < ns[b].dist })
	return ns[:k]
}

// neighborWeights assigns vote weights. With distance weighting, exact
// matches dominate: if any neighbor sits at distance zero, only the
// zero-distance neighbors vote.
func neighborWeights(ns []neighbor, scheme string) []float64 {
	w := make([]float64, len(ns))
	if scheme == WeightsUniform {
		for i := range w {
			w[i] = 1
		}
		return w
	}
	exact := false
	for _, n := range ns {
		if n.dist == 0 {
			exact = true
			break
		}
	}
	if exact {
		for i, n := range ns {
			if n.dist == 0 {
				w[i] = 1
			}
		}
		return w
	}
	for i, n := range ns {
		w[i] = 1 / n.dist
	}
	return w
}

// copyRows extracts the rows of a matrix.
func copyRows(X mat.Matrix) [][]float64 {
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

func distinctSorted(y mat.Matrix) []float64 {
	n, _ := y.Dims()
	seen := make(map[float64]bool)
	var values []float64
	for i := 0; i < n; i++ {
		v := y.At(i, 0)
		if !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	}
	sort.Float64s(values)
	return values
}

// queryRows runs fn over query rows with the configured parallelism.
func queryRows(n, nJobs int, fn func(i int) error) error {
	return parallel.ForEachIndex(n, parallel.Workers(nJobs), fn)
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
