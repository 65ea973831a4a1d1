package ensemble

import (
	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/core/model"
	"github.com/otulearn/otulearn/metrics"
	"github.com/otulearn/otulearn/pkg/errors"
	"github.com/otulearn/otulearn/pkg/log"
	"github.com/otulearn/otulearn/tree"
)

// RandomForestClassifier is a bagged ensemble of CART classifier trees
// with per-split feature subsampling and majority voting by averaged
// class probabilities.
type RandomForestClassifier struct {
	model.BaseEstimator

	cfg forestConfig

	// Fitted state, exported for gob encoding.
	Trees       []*tree.DecisionTreeClassifier
	ClassValues []float64
	NFeaturesIn int
	Importances []float64
}

var (
	_ model.Classifier    = (*RandomForestClassifier)(nil)
	_ model.FeatureRanker = (*RandomForestClassifier)(nil)
	_ model.Tunable       = (*RandomForestClassifier)(nil)
)

// NewRandomForestClassifier creates a forest with sklearn-compatible
// defaults: 100 bootstrapped gini trees considering sqrt(n_features)
// per split.
func NewRandomForestClassifier() *RandomForestClassifier {
	return &RandomForestClassifier{cfg: forestConfig{
		nEstimators:     100,
		criterion:       "gini",
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     tree.SqrtFeatures(),
		bootstrap:       true,
		nJobs:           1,
	}}
}

// WithNEstimators sets the number of trees.
func (rf *RandomForestClassifier) WithNEstimators(n int) *RandomForestClassifier {
	rf.cfg.nEstimators = n
	return rf
}

// WithNJobs sets the number of parallel tree-fitting workers; values
// below 1 use all CPUs.
func (rf *RandomForestClassifier) WithNJobs(n int) *RandomForestClassifier {
	rf.cfg.nJobs = n
	return rf
}

// WithRandomState seeds the ensemble; per-tree streams derive from it.
func (rf *RandomForestClassifier) WithRandomState(seed int64) *RandomForestClassifier {
	rf.cfg.randomState = seed
	return rf
}

// WithMaxDepth limits tree depth (0 means unlimited).
func (rf *RandomForestClassifier) WithMaxDepth(d int) *RandomForestClassifier {
	rf.cfg.maxDepth = d
	return rf
}

// WithMaxFeatures sets the per-split feature subset.
func (rf *RandomForestClassifier) WithMaxFeatures(fs tree.FeatureSubset) *RandomForestClassifier {
	rf.cfg.maxFeatures = fs
	return rf
}

// Fit grows the forest.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestClassifier.Fit")

	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("RandomForestClassifier.Fit", "empty data", errors.ErrEmptyData)
	}

	classValues, encoded := encodeTargets(y)
	trees, err := fitClassifierTrees(&rf.cfg, X, encoded)
	if err != nil {
		return err
	}

	vectors, err := collectImportances(trees)
	if err != nil {
		return err
	}

	rf.Trees = trees
	rf.ClassValues = classValues
	rf.NFeaturesIn = d
	rf.Importances = averageImportances(vectors, nil)
	rf.SetFitted()

	log.GetLoggerWithName("ensemble.random_forest").Debug("fitted random forest",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.ClassesKey, len(classValues),
		log.EstimatorsKey, rf.cfg.nEstimators,
	)
	return nil
}

// Predict returns the majority-vote class code for each row of X.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, rf.ClassValues[argmaxRow(proba, i)])
	}
	return out, nil
}

// PredictProba averages per-tree probability estimates.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !rf.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestClassifier", "PredictProba")
	}
	if _, c := X.Dims(); c != rf.NFeaturesIn {
		return nil, errors.NewDimensionError("RandomForestClassifier.PredictProba", rf.NFeaturesIn, c, 1)
	}
	return voteProba(rf.Trees, X, len(rf.ClassValues))
}

// Classes returns the sorted class codes seen during fitting.
func (rf *RandomForestClassifier) Classes() []float64 {
	out := make([]float64, len(rf.ClassValues))
	copy(out, rf.ClassValues)
	return out
}

// Score returns the accuracy on X, y.
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy(columnVec(y), columnVec(pred))
}

// FeatureImportances returns importances averaged over all trees.
func (rf *RandomForestClassifier) FeatureImportances() ([]float64, error) {
	if !rf.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestClassifier", "FeatureImportances")
	}
	out := make([]float64, len(rf.Importances))
	copy(out, rf.Importances)
	return out, nil
}

// GetParams returns the hyperparameters keyed by their snake_case names.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return rf.cfg.asMap()
}

// SetParams updates hyperparameters from a snake_case keyed map.
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	return rf.cfg.apply("RandomForestClassifier.SetParams", params)
}

// CloneBlank returns an unfitted copy with the same hyperparameters.
func (rf *RandomForestClassifier) CloneBlank() model.Tunable {
	return &RandomForestClassifier{cfg: rf.cfg}
}

// RandomForestRegressor is the regression counterpart averaging
// per-tree predictions. By default every feature is considered at
// every split.
type RandomForestRegressor struct {
	model.BaseEstimator

	cfg forestConfig

	// Fitted state, exported for gob encoding.
	Trees       []*tree.DecisionTreeRegressor
	NFeaturesIn int
	Importances []float64
}

var (
	_ model.Regressor     = (*RandomForestRegressor)(nil)
	_ model.FeatureRanker = (*RandomForestRegressor)(nil)
	_ model.Tunable       = (*RandomForestRegressor)(nil)
)

// NewRandomForestRegressor creates a forest of 100 bootstrapped
// squared-error trees.
func NewRandomForestRegressor() *RandomForestRegressor {
	return &RandomForestRegressor{cfg: forestConfig{
		nEstimators:     100,
		criterion:       "squared_error",
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     tree.AllFeatures(),
		bootstrap:       true,
		nJobs:           1,
	}}
}

// WithNEstimators sets the number of trees.
func (rf *RandomForestRegressor) WithNEstimators(n int) *RandomForestRegressor {
	rf.cfg.nEstimators = n
	return rf
}

// WithNJobs sets the number of parallel tree-fitting workers.
func (rf *RandomForestRegressor) WithNJobs(n int) *RandomForestRegressor {
	rf.cfg.nJobs = n
	return rf
}

// WithRandomState seeds the ensemble.
func (rf *RandomForestRegressor) WithRandomState(seed int64) *RandomForestRegressor {
	rf.cfg.randomState = seed
	return rf
}

// WithMaxDepth limits tree depth (0 means unlimited).
func (rf *RandomForestRegressor) WithMaxDepth(d int) *RandomForestRegressor {
	rf.cfg.maxDepth = d
	return rf
}

// Fit grows the forest.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")

	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("RandomForestRegressor.Fit", "empty data", errors.ErrEmptyData)
	}

	trees, err := fitRegressorTrees(&rf.cfg, X, y)
	if err != nil {
		return err
	}
	vectors, err := collectImportances(trees)
	if err != nil {
		return err
	}

	rf.Trees = trees
	rf.NFeaturesIn = d
	rf.Importances = averageImportances(vectors, nil)
	rf.SetFitted()

	log.GetLoggerWithName("ensemble.random_forest").Debug("fitted random forest regressor",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.EstimatorsKey, rf.cfg.nEstimators,
	)
	return nil
}

// Predict averages per-tree predictions.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !rf.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestRegressor", "Predict")
	}
	if _, c := X.Dims(); c != rf.NFeaturesIn {
		return nil, errors.NewDimensionError("RandomForestRegressor.Predict", rf.NFeaturesIn, c, 1)
	}
	return meanPrediction(rf.Trees, X)
}

// Score returns the coefficient of determination R^2 on X, y.
func (rf *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(columnVec(y), columnVec(pred))
}

// FeatureImportances returns importances averaged over all trees.
func (rf *RandomForestRegressor) FeatureImportances() ([]float64, error) {
	if !rf.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestRegressor", "FeatureImportances")
	}
	out := make([]float64, len(rf.Importances))
	copy(out, rf.Importances)
	return out, nil
}

// GetParams returns the hyperparameters keyed by their snake_case names.
func (rf *RandomForestRegressor) GetParams() map[string]interface{} {
	params := rf.cfg.asMap()
	delete(params, "criterion")
	return params
}

// SetParams updates hyperparameters from a snake_case keyed map.
func (rf *RandomForestRegressor) SetParams(params map[string]interface{}) error {
	return rf.cfg.apply("RandomForestRegressor.SetParams", params)
}

// CloneBlank returns an unfitted copy with the same hyperparameters.
func (rf *RandomForestRegressor) CloneBlank() model.Tunable {
	return &RandomForestRegressor{cfg: rf.cfg}
}

// columnVec copies the first column of m into a VecDense.
func columnVec(m mat.Matrix) *mat.VecDense {
	r, _ := m.Dims()
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v
}
