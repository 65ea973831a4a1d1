// Package ensemble implements tree ensembles over the CART base
// learners in the tree package: random forests, extremely randomized
// trees, AdaBoost and gradient boosting, each in classifier and
// regressor form. Tree fitting is parallelized with a bounded worker
// pool; per-tree RNG streams are derived from the ensemble seed.
package ensemble

import (
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/core/model"
	"github.com/otulearn/otulearn/core/parallel"
	"github.com/otulearn/otulearn/pkg/errors"
	"github.com/otulearn/otulearn/tree"
)

// forestConfig carries the hyperparameters shared by the bagging-style
// ensembles (random forest, extra trees).
type forestConfig struct {
	nEstimators           int
	criterion             string
	maxDepth              int
	minSamplesSplit       float64
	minSamplesLeaf        int
	minWeightFractionLeaf float64
	maxFeatures           tree.FeatureSubset
	bootstrap             bool
	randomSplitter        bool
	nJobs                 int
	randomState           int64
}

// treeOptions renders the per-tree options, seeding each tree from the
// ensemble seed so parallel fits stay reproducible.
func (c *forestConfig) treeOptions(seed int64) []tree.Option {
	opts := []tree.Option{
		tree.WithCriterion(c.criterion),
		tree.WithMaxDepth(c.maxDepth),
		tree.WithMinSamplesSplit(c.minSamplesSplit),
		tree.WithMinSamplesLeaf(c.minSamplesLeaf),
		tree.WithMinWeightFractionLeaf(c.minWeightFractionLeaf),
		tree.WithMaxFeatures(c.maxFeatures),
		tree.WithRandomState(seed),
	}
	if c.randomSplitter {
		opts = append(opts, tree.WithRandomSplitter())
	}
	return opts
}

// baseSeed fixes the ensemble seed at fit time so that an unseeded
// ensemble still hands every tree an independent stream.
func (c *forestConfig) baseSeed() int64 {
	if c.randomState != 0 {
		return c.randomState
	}
	return time.Now().UnixNano()
}

// treeSeed derives the seed of tree i from the ensemble seed.
func treeSeed(base int64, i int) int64 {
	s := base + int64(i)*7919
	if s == 0 {
		s = 1
	}
	return s
}

// asMap renders the shared forest hyperparameters. Callers add or
// remove type-specific keys.
func (c *forestConfig) asMap() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":             c.nEstimators,
		"criterion":                c.criterion,
		"max_depth":                c.maxDepth,
		"min_samples_split":        c.minSamplesSplit,
		"min_samples_leaf":         c.minSamplesLeaf,
		"min_weight_fraction_leaf": c.minWeightFractionLeaf,
		"max_features":             c.maxFeatures,
		"bootstrap":                c.bootstrap,
		"n_jobs":                   c.nJobs,
		"random_state":             c.randomState,
	}
}

// apply updates hyperparameters from a snake_case keyed map.
func (c *forestConfig) apply(op string, params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "n_estimators":
			v, ok := model.CoerceInt(value)
			if !ok || v < 1 {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			c.nEstimators = v
		case "criterion":
			s, ok := model.CoerceString(value)
			if !ok {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			c.criterion = s
		case "max_depth":
			v, ok := model.CoerceInt(value)
			if !ok {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			if v < 0 {
				v = 0
			}
			c.maxDepth = v
		case "min_samples_split":
			v, ok := model.CoerceFloat(value)
			if !ok {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			c.minSamplesSplit = v
		case "min_samples_leaf":
			v, ok := model.CoerceInt(value)
			if !ok {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			c.minSamplesLeaf = v
		case "min_weight_fraction_leaf":
			v, ok := model.CoerceFloat(value)
			if !ok {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			c.minWeightFractionLeaf = v
		case "max_features":
			fs, ok := value.(tree.FeatureSubset)
			if !ok {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			c.maxFeatures = fs
		case "bootstrap":
			b, ok := model.CoerceBool(value)
			if !ok {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			c.bootstrap = b
		case "n_jobs":
			v, ok := model.CoerceInt(value)
			if !ok {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			c.nJobs = v
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

// bootstrapRows draws n row indices with replacement.
func bootstrapRows(rng *rand.Rand, n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = rng.IntN(n)
	}
	return rows
}

// subsetRows copies the given rows of X and y into fresh matrices.
func subsetRows(X, y mat.Matrix, rows []int) (*mat.Dense, *mat.Dense) {
	_, d := X.Dims()
	Xb := mat.NewDense(len(rows), d, nil)
	yb := mat.NewDense(len(rows), 1, nil)
	for k, i := range rows {
		for j := 0; j < d; j++ {
			Xb.Set(k, j, X.At(i, j))
		}
		yb.Set(k, 0, y.At(i, 0))
	}
	return Xb, yb
}

// fitClassifierTrees grows nEstimators classifier trees in parallel on
// (optionally bootstrapped) copies of the index-encoded training data.
func fitClassifierTrees(c *forestConfig, X, y mat.Matrix) ([]*tree.DecisionTreeClassifier, error) {
	n, _ := X.Dims()
	base := c.baseSeed()
	trees := make([]*tree.DecisionTreeClassifier, c.nEstimators)

	err := parallel.ForEachIndex(c.nEstimators, parallel.Workers(c.nJobs), func(i int) error {
		seed := treeSeed(base, i)
		Xi, yi := X, y
		if c.bootstrap {
			rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1))
			Xi, yi = subsetRows(X, y, bootstrapRows(rng, n))
		}
		t := tree.NewDecisionTreeClassifier(c.treeOptions(seed)...)
		if err := t.Fit(Xi, yi); err != nil {
			return err
		}
		trees[i] = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return trees, nil
}

// fitRegressorTrees is the regression counterpart of fitClassifierTrees.
func fitRegressorTrees(c *forestConfig, X, y mat.Matrix) ([]*tree.DecisionTreeRegressor, error) {
	n, _ := X.Dims()
	base := c.baseSeed()
	trees := make([]*tree.DecisionTreeRegressor, c.nEstimators)

	err := parallel.ForEachIndex(c.nEstimators, parallel.Workers(c.nJobs), func(i int) error {
		seed := treeSeed(base, i)
		Xi, yi := X, y
		if c.bootstrap {
			rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1))
			Xi, yi = subsetRows(X, y, bootstrapRows(rng, n))
		}
		t := tree.NewDecisionTreeRegressor(c.treeOptions(seed)...)
		if err := t.Fit(Xi, yi); err != nil {
			return err
		}
		trees[i] = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return trees, nil
}

// averageImportances averages per-tree importance vectors, optionally
// weighted, and renormalizes to sum one.
func averageImportances(vectors [][]float64, weights []float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	out := make([]float64, len(vectors[0]))
	for k, vec := range vectors {
		w := 1.0
		if weights != nil {
			w = weights[k]
		}
		for j, v := range vec {
			out[j] += w * v
		}
	}
	total := 0.0
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}

// voteProba averages the probability estimates of classifier trees
// fitted on index-encoded targets. Trees grown on bootstrap samples
// may have seen only a subset of the classes; their columns are mapped
// back to the full class set by code.
func voteProba(trees []*tree.DecisionTreeClassifier, X mat.Matrix, nClasses int) (*mat.Dense, error) {
	n, _ := X.Dims()
	sum := mat.NewDense(n, nClasses, nil)
	for _, t := range trees {
		proba, err := t.PredictProba(X)
		if err != nil {
			return nil, err
		}
		codes := t.Classes()
		for i := 0; i < n; i++ {
			for c, code := range codes {
				sum.Set(i, int(code), sum.At(i, int(code))+proba.At(i, c))
			}
		}
	}
	sum.Scale(1/float64(len(trees)), sum)
	return sum, nil
}

// meanPrediction averages regressor tree predictions.
func meanPrediction(trees []*tree.DecisionTreeRegressor, X mat.Matrix) (*mat.Dense, error) {
	n, _ := X.Dims()
	sum := mat.NewDense(n, 1, nil)
	for _, t := range trees {
		pred, err := t.Predict(X)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			sum.Set(i, 0, sum.At(i, 0)+pred.At(i, 0))
		}
	}
	sum.Scale(1/float64(len(trees)), sum)
	return sum, nil
}

// encodeTargets maps raw class codes in y to contiguous indices,
// returning the sorted distinct codes and the re-encoded column.
func encodeTargets(y mat.Matrix) ([]float64, *mat.Dense) {
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
	for idx, v := range values {
		seen[v] = idx
	}
	encoded := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		encoded.Set(i, 0, float64(seen[y.At(i, 0)]))
	}
	return values, encoded
}

// collectImportances gathers per-tree importance vectors.
func collectImportances[T interface {
	FeatureImportances() ([]float64, error)
}](trees []T) ([][]float64, error) {
	out := make([][]float64, 0, len(trees))
	for _, t := range trees {
		imp, err := t.FeatureImportances()
		if err != nil {
			return nil, err
		}
		out = append(out, imp)
	}
	return out, nil
}

// argmaxRow returns the column index of the row maximum.
func argmaxRow(m mat.Matrix, i int) int {
	_, c := m.Dims()
	best := 0
	for j := 1; j < c; j++ {
		if m.At(i, j) > m.At(i, best) {
			best = j
		}
	}
	return best
}
