package ensemble

import (
	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/core/model"
	"github.com/otulearn/otulearn/metrics"
	"github.com/otulearn/otulearn/pkg/errors"
	"github.com/otulearn/otulearn/pkg/log"
	"github.com/otulearn/otulearn/tree"
)

// ExtraTreesClassifier is an ensemble of extremely randomized trees:
// split thresholds are drawn uniformly per candidate feature instead of
// searched exhaustively, and trees fit the full sample by default.
type ExtraTreesClassifier struct {
	model.BaseEstimator

	cfg forestConfig

	// Fitted state, exported for gob encoding.
	Trees       []*tree.DecisionTreeClassifier
	ClassValues []float64
	NFeaturesIn int
	Importances []float64
}

var (
	_ model.Classifier    = (*ExtraTreesClassifier)(nil)
	_ model.FeatureRanker = (*ExtraTreesClassifier)(nil)
	_ model.Tunable       = (*ExtraTreesClassifier)(nil)
)

// NewExtraTreesClassifier creates an ensemble of 100 randomized gini
// trees without bootstrapping.
func NewExtraTreesClassifier() *ExtraTreesClassifier {
	return &ExtraTreesClassifier{cfg: forestConfig{
		nEstimators:     100,
		criterion:       "gini",
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     tree.SqrtFeatures(),
		randomSplitter:  true,
		nJobs:           1,
	}}
}

// WithNEstimators sets the number of trees.
func (et *ExtraTreesClassifier) WithNEstimators(n int) *ExtraTreesClassifier {
	et.cfg.nEstimators = n
	return et
}

// WithNJobs sets the number of parallel tree-fitting workers.
func (et *ExtraTreesClassifier) WithNJobs(n int) *ExtraTreesClassifier {
	et.cfg.nJobs = n
	return et
}

// WithRandomState seeds the ensemble.
func (et *ExtraTreesClassifier) WithRandomState(seed int64) *ExtraTreesClassifier {
	et.cfg.randomState = seed
	return et
}

// WithMaxDepth limits tree depth (0 means unlimited).
func (et *ExtraTreesClassifier) WithMaxDepth(d int) *ExtraTreesClassifier {
	et.cfg.maxDepth = d
	return et
}

// WithBootstrap enables bootstrap sampling, which extra trees leave
// off by default.
func (et *ExtraTreesClassifier) WithBootstrap(b bool) *ExtraTreesClassifier {
	et.cfg.bootstrap = b
	return et
}

// Fit grows the ensemble.
func (et *ExtraTreesClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "ExtraTreesClassifier.Fit")

	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("ExtraTreesClassifier.Fit", "empty data", errors.ErrEmptyData)
	}

	classValues, encoded := encodeTargets(y)
	trees, err := fitClassifierTrees(&et.cfg, X, encoded)
	if err != nil {
		return err
	}
	vectors, err := collectImportances(trees)
	if err != nil {
		return err
	}

	et.Trees = trees
	et.ClassValues = classValues
	et.NFeaturesIn = d
	et.Importances = averageImportances(vectors, nil)
	et.SetFitted()

	log.GetLoggerWithName("ensemble.extra_trees").Debug("fitted extra trees",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.ClassesKey, len(classValues),
		log.EstimatorsKey, et.cfg.nEstimators,
	)
	return nil
}

// Predict returns the majority-vote class code for each row of X.
func (et *ExtraTreesClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := et.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, et.ClassValues[argmaxRow(proba, i)])
	}
	return out, nil
}

// PredictProba averages per-tree probability estimates.
func (et *ExtraTreesClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !et.IsFitted() {
		return nil, errors.NewNotFittedError("ExtraTreesClassifier", "PredictProba")
	}
	if _, c := X.Dims(); c != et.NFeaturesIn {
		return nil, errors.NewDimensionError("ExtraTreesClassifier.PredictProba", et.NFeaturesIn, c, 1)
	}
	return voteProba(et.Trees, X, len(et.ClassValues))
}

// Classes returns the sorted class codes seen during fitting.
func (et *ExtraTreesClassifier) Classes() []float64 {
	out := make([]float64, len(et.ClassValues))
	copy(out, et.ClassValues)
	return out
}

// Score returns the accuracy on X, y.
func (et *ExtraTreesClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := et.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy(columnVec(y), columnVec(pred))
}

// FeatureImportances returns importances averaged over all trees.
func (et *ExtraTreesClassifier) FeatureImportances() ([]float64, error) {
	if !et.IsFitted() {
		return nil, errors.NewNotFittedError("ExtraTreesClassifier", "FeatureImportances")
	}
	out := make([]float64, len(et.Importances))
	copy(out, et.Importances)
	return out, nil
}

// GetParams returns the hyperparameters keyed by their snake_case names.
func (et *ExtraTreesClassifier) GetParams() map[string]interface{} {
	return et.cfg.asMap()
}

// SetParams updates hyperparameters from a snake_case keyed map.
func (et *ExtraTreesClassifier) SetParams(params map[string]interface{}) error {
	return et.cfg.apply("ExtraTreesClassifier.SetParams", params)
}

// CloneBlank returns an unfitted copy with the same hyperparameters.
func (et *ExtraTreesClassifier) CloneBlank() model.Tunable {
	return &ExtraTreesClassifier{cfg: et.cfg}
}

// ExtraTreesRegressor averages extremely randomized regression trees.
type ExtraTreesRegressor struct {
	model.BaseEstimator

	cfg forestConfig

	// Fitted state, exported for gob encoding.
	Trees       []*tree.DecisionTreeRegressor
	NFeaturesIn int
	Importances []float64
}

var (
	_ model.Regressor     = (*ExtraTreesRegressor)(nil)
	_ model.FeatureRanker = (*ExtraTreesRegressor)(nil)
	_ model.Tunable       = (*ExtraTreesRegressor)(nil)
)

// NewExtraTreesRegressor creates an ensemble of 100 randomized
// squared-error trees considering every feature per split.
func NewExtraTreesRegressor() *ExtraTreesRegressor {
	return &ExtraTreesRegressor{cfg: forestConfig{
		nEstimators:     100,
		criterion:       "squared_error",
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     tree.AllFeatures(),
		randomSplitter:  true,
		nJobs:           1,
	}}
}

// WithNEstimators sets the number of trees.
func (et *ExtraTreesRegressor) WithNEstimators(n int) *ExtraTreesRegressor {
	et.cfg.nEstimators = n
	return et
}

// WithNJobs sets the number of parallel tree-fitting workers.
func (et *ExtraTreesRegressor) WithNJobs(n int) *ExtraTreesRegressor {
	et.cfg.nJobs = n
	return et
}

// WithRandomState seeds the ensemble.
func (et *ExtraTreesRegressor) WithRandomState(seed int64) *ExtraTreesRegressor {
	et.cfg.randomState = seed
	return et
}

// WithMaxDepth limits tree depth (0 means unlimited).
func (et *ExtraTreesRegressor) WithMaxDepth(d int) *ExtraTreesRegressor {
	et.cfg.maxDepth = d
	return et
}

// Fit grows the ensemble.
func (et *ExtraTreesRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "ExtraTreesRegressor.Fit")

	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("ExtraTreesRegressor.Fit", "empty data", errors.ErrEmptyData)
	}

	trees, err := fitRegressorTrees(&et.cfg, X, y)
	if err != nil {
		return err
	}
	vectors, err := collectImportances(trees)
	if err != nil {
		return err
	}

	et.Trees = trees
	et.NFeaturesIn = d
	et.Importances = averageImportances(vectors, nil)
	et.SetFitted()

	log.GetLoggerWithName("ensemble.extra_trees").Debug("fitted extra trees regressor",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.EstimatorsKey, et.cfg.nEstimators,
	)
	return nil
}

// Predict averages per-tree predictions.
func (et *ExtraTreesRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !et.IsFitted() {
		return nil, errors.NewNotFittedError("ExtraTreesRegressor", "Predict")
	}
	if _, c := X.Dims(); c != et.NFeaturesIn {
		return nil, errors.NewDimensionError("ExtraTreesRegressor.Predict", et.NFeaturesIn, c, 1)
	}
	return meanPrediction(et.Trees, X)
}

// Score returns the coefficient of determination R^2 on X, y.
func (et *ExtraTreesRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := et.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(columnVec(y), columnVec(pred))
}

// FeatureImportances returns importances averaged over all trees.
func (et *ExtraTreesRegressor) FeatureImportances() ([]float64, error) {
	if !et.IsFitted() {
		return nil, errors.NewNotFittedError("ExtraTreesRegressor", "FeatureImportances")
	}
	out := make([]float64, len(et.Importances))
	copy(out, et.Importances)
	return out, nil
}

// GetParams returns the hyperparameters keyed by their snake_case names.
func (et *ExtraTreesRegressor) GetParams() map[string]interface{} {
	params := et.cfg.asMap()
	delete(params, "criterion")
	return params
}

// SetParams updates hyperparameters from a snake_case keyed map.
func (et *ExtraTreesRegressor) SetParams(params map[string]interface{}) error {
	return et.cfg.apply("ExtraTreesRegressor.SetParams", params)
}

// CloneBlank returns an unfitted copy with the same hyperparameters.
func (et *ExtraTreesRegressor) CloneBlank() model.Tunable {
	return &ExtraTreesRegressor{cfg: et.cfg}
}
