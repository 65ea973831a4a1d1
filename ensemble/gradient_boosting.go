package ensemble

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/core/model"
	"github.com/otulearn/otulearn/metrics"
	"github.com/otulearn/otulearn/pkg/errors"
	"github.com/otulearn/otulearn/pkg/log"
	"github.com/otulearn/otulearn/tree"
)

// gbConfig carries the gradient boosting hyperparameters. The base
// learners are shallow squared-error regression trees fitted to the
// negative gradient of the stage loss.
type gbConfig struct {
	nEstimators           int
	learningRate          float64
	maxDepth              int
	minSamplesSplit       float64
	minSamplesLeaf        int
	minWeightFractionLeaf float64
	maxFeatures           tree.FeatureSubset
	subsample             float64
	randomState           int64
}

func defaultGBConfig() gbConfig {
	return gbConfig{
		nEstimators:     100,
		learningRate:    0.1,
		maxDepth:        3,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     tree.AllFeatures(),
		subsample:       1.0,
	}
}

func (c *gbConfig) treeOptions(seed int64) []tree.Option {
	return []tree.Option{
		tree.WithMaxDepth(c.maxDepth),
		tree.WithMinSamplesSplit(c.minSamplesSplit),
		tree.WithMinSamplesLeaf(c.minSamplesLeaf),
		tree.WithMinWeightFractionLeaf(c.minWeightFractionLeaf),
		tree.WithMaxFeatures(c.maxFeatures),
		tree.WithRandomState(seed),
	}
}

func (c *gbConfig) baseSeed() int64 {
	fc := forestConfig{randomState: c.randomState}
	return fc.baseSeed()
}

func (c *gbConfig) asMap() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":             c.nEstimators,
		"learning_rate":            c.learningRate,
		"max_depth":                c.maxDepth,
		"min_samples_split":        c.minSamplesSplit,
		"min_samples_leaf":         c.minSamplesLeaf,
		"min_weight_fraction_leaf": c.minWeightFractionLeaf,
		"max_features":             c.maxFeatures,
		"subsample":                c.subsample,
		"random_state":             c.randomState,
	}
}

func (c *gbConfig) apply(op string, params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "n_estimators":
			v, ok := model.CoerceInt(value)
			if !ok || v < 1 {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			c.nEstimators = v
		case "learning_rate":
			v, ok := model.CoerceFloat(value)
			if !ok || v <= 0 {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			c.learningRate = v
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
		case "subsample":
			v, ok := model.CoerceFloat(value)
			if !ok || v <= 0 || v > 1 {
				return errors.NewValidationError(key, "invalid parameter value", value)
			}
			c.subsample = v
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

// sampleRows draws ceil(frac*n) distinct row indices, or nil when the
// whole sample is used.
func sampleRows(rng *rand.Rand, n int, frac float64) []int {
	if frac >= 1 {
		return nil
	}
	k := int(math.Ceil(frac * float64(n)))
	if k < 1 {
		k = 1
	}
	return rng.Perm(n)[:k]
}

// fitStageTree fits one residual tree, optionally on a row subsample.
func fitStageTree(c *gbConfig, X mat.Matrix, residual []float64, rows []int, seed int64) (*tree.DecisionTreeRegressor, error) {
	n, d := X.Dims()
	t := tree.NewDecisionTreeRegressor(c.treeOptions(seed)...)

	Xi := X
	var yi mat.Matrix = mat.NewDense(n, 1, residual)
	if rows != nil {
		Xs := mat.NewDense(len(rows), d, nil)
		ys := mat.NewDense(len(rows), 1, nil)
		for k, i := range rows {
			for j := 0; j < d; j++ {
				Xs.Set(k, j, X.At(i, j))
			}
			ys.Set(k, 0, residual[i])
		}
		Xi, yi = Xs, ys
	}
	if err := t.Fit(Xi, yi); err != nil {
		return nil, err
	}
	return t, nil
}

// GradientBoostingClassifier fits stage-wise additive regression trees
// to the negative gradient of the log loss: the two-class problem uses
// a single sigmoid series, more classes one softmax series each.
type GradientBoostingClassifier struct {
	model.BaseEstimator

	cfg gbConfig

	// Fitted state, exported for gob encoding. Trees is indexed
	// stage-major: Trees[m][c] is the stage-m tree of class series c.
	Trees       [][]*tree.DecisionTreeRegressor
	InitScores  []float64
	Shrinkage   float64
	ClassValues []float64
	NFeaturesIn int
	Importances []float64
}

var (
	_ model.Classifier    = (*GradientBoostingClassifier)(nil)
	_ model.FeatureRanker = (*GradientBoostingClassifier)(nil)
	_ model.Tunable       = (*GradientBoostingClassifier)(nil)
)

// NewGradientBoostingClassifier creates a booster of 100 depth-3 trees
// with learning rate 0.1.
func NewGradientBoostingClassifier() *GradientBoostingClassifier {
	return &GradientBoostingClassifier{cfg: defaultGBConfig()}
}

// WithNEstimators sets the number of boosting stages.
func (gb *GradientBoostingClassifier) WithNEstimators(n int) *GradientBoostingClassifier {
	gb.cfg.nEstimators = n
	return gb
}

// WithLearningRate sets the shrinkage applied to each stage.
func (gb *GradientBoostingClassifier) WithLearningRate(lr float64) *GradientBoostingClassifier {
	gb.cfg.learningRate = lr
	return gb
}

// WithMaxDepth limits the residual tree depth.
func (gb *GradientBoostingClassifier) WithMaxDepth(d int) *GradientBoostingClassifier {
	gb.cfg.maxDepth = d
	return gb
}

// WithSubsample fits each stage on a random fraction of the rows.
func (gb *GradientBoostingClassifier) WithSubsample(f float64) *GradientBoostingClassifier {
	gb.cfg.subsample = f
	return gb
}

// WithRandomState seeds subsampling and the residual trees.
func (gb *GradientBoostingClassifier) WithRandomState(seed int64) *GradientBoostingClassifier {
	gb.cfg.randomState = seed
	return gb
}

// Fit runs gradient boosting on the log loss.
func (gb *GradientBoostingClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingClassifier.Fit")

	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("GradientBoostingClassifier.Fit", "empty data", errors.ErrEmptyData)
	}

	classValues, encoded := encodeTargets(y)
	k := len(classValues)
	if k < 2 {
		return errors.NewValueError("GradientBoostingClassifier.Fit", "need at least two classes")
	}

	// One series for the sigmoid two-class case, k for softmax.
	series := k
	if k == 2 {
		series = 1
	}

	// Class membership indicators.
	ind := make([][]float64, series)
	for c := range ind {
		ind[c] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		code := int(encoded.At(i, 0))
		if series == 1 {
			if code == 1 {
				ind[0][i] = 1
			}
		} else {
			ind[code][i] = 1
		}
	}

	// Initial scores: log-odds for sigmoid, log priors for softmax.
	init := make([]float64, series)
	for c := range init {
		pos := 0.0
		for _, v := range ind[c] {
			pos += v
		}
		prior := pos / float64(n)
		if prior <= 0 {
			prior = 1e-10
		}
		if prior >= 1 {
			prior = 1 - 1e-10
		}
		if series == 1 {
			init[c] = math.Log(prior / (1 - prior))
		} else {
			init[c] = math.Log(prior)
		}
	}

	scores := make([][]float64, series)
	for c := range scores {
		scores[c] = make([]float64, n)
		for i := range scores[c] {
			scores[c][i] = init[c]
		}
	}

	base := gb.cfg.baseSeed()
	rng := rand.New(rand.NewPCG(uint64(base), uint64(base)>>1))
	stages := make([][]*tree.DecisionTreeRegressor, 0, gb.cfg.nEstimators)
	residual := make([]float64, n)

	for m := 0; m < gb.cfg.nEstimators; m++ {
		rows := sampleRows(rng, n, gb.cfg.subsample)
		stage := make([]*tree.DecisionTreeRegressor, series)
		prob := stageProbabilities(scores, series)

		for c := 0; c < series; c++ {
			for i := 0; i < n; i++ {
				residual[i] = ind[c][i] - prob[c][i]
			}
			t, err := fitStageTree(&gb.cfg, X, residual, rows, treeSeed(base, m*series+c))
			if err != nil {
				return err
			}
			stage[c] = t

			pred, err := t.Predict(X)
			if err != nil {
				return err
			}
			for i := 0; i < n; i++ {
				scores[c][i] += gb.cfg.learningRate * pred.At(i, 0)
			}
		}
		stages = append(stages, stage)
	}

	var flat []*tree.DecisionTreeRegressor
	for _, stage := range stages {
		flat = append(flat, stage...)
	}
	vectors, err := collectImportances(flat)
	if err != nil {
		return err
	}

	gb.Trees = stages
	gb.InitScores = init
	gb.Shrinkage = gb.cfg.learningRate
	gb.ClassValues = classValues
	gb.NFeaturesIn = d
	gb.Importances = averageImportances(vectors, nil)
	gb.SetFitted()

	log.GetLoggerWithName("ensemble.gradient_boosting").Debug("fitted gradient boosting",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.ClassesKey, k,
		log.EstimatorsKey, len(stages),
	)
	return nil
}

// stageProbabilities turns additive scores into per-series class
// probabilities (sigmoid for one series, softmax otherwise).
func stageProbabilities(scores [][]float64, series int) [][]float64 {
	n := len(scores[0])
	prob := make([][]float64, series)
	for c := range prob {
		prob[c] = make([]float64, n)
	}
	if series == 1 {
		for i := 0; i < n; i++ {
			prob[0][i] = 1 / (1 + errors.StabilizeExp(-scores[0][i]))
		}
		return prob
	}
	for i := 0; i < n; i++ {
		maxS := scores[0][i]
		for c := 1; c < series; c++ {
			if scores[c][i] > maxS {
				maxS = scores[c][i]
			}
		}
		total := 0.0
		for c := 0; c < series; c++ {
			e := math.Exp(scores[c][i] - maxS)
			prob[c][i] = e
			total += e
		}
		for c := 0; c < series; c++ {
			prob[c][i] /= total
		}
	}
	return prob
}

// decisionScores accumulates the staged scores for new rows.
func (gb *GradientBoostingClassifier) decisionScores(X mat.Matrix) ([][]float64, error) {
	n, _ := X.Dims()
	series := len(gb.InitScores)
	scores := make([][]float64, series)
	for c := range scores {
		scores[c] = make([]float64, n)
		for i := range scores[c] {
			scores[c][i] = gb.InitScores[c]
		}
	}
	for _, stage := range gb.Trees {
		for c, t := range stage {
			pred, err := t.Predict(X)
			if err != nil {
				return nil, err
			}
			for i := 0; i < n; i++ {
				scores[c][i] += gb.Shrinkage * pred.At(i, 0)
			}
		}
	}
	return scores, nil
}

// Predict returns the highest-probability class code for each row of X.
func (gb *GradientBoostingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := gb.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, gb.ClassValues[argmaxRow(proba, i)])
	}
	return out, nil
}

// PredictProba returns class probabilities for each row of X.
func (gb *GradientBoostingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !gb.IsFitted() {
		return nil, errors.NewNotFittedError("GradientBoostingClassifier", "PredictProba")
	}
	if _, c := X.Dims(); c != gb.NFeaturesIn {
		return nil, errors.NewDimensionError("GradientBoostingClassifier.PredictProba", gb.NFeaturesIn, c, 1)
	}

	scores, err := gb.decisionScores(X)
	if err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	series := len(scores)
	prob := stageProbabilities(scores, series)
	k := len(gb.ClassValues)
	out := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		if series == 1 {
			out.Set(i, 1, prob[0][i])
			out.Set(i, 0, 1-prob[0][i])
		} else {
			for c := 0; c < k; c++ {
				out.Set(i, c, prob[c][i])
			}
		}
	}
	return out, nil
}

// Classes returns the sorted class codes seen during fitting.
func (gb *GradientBoostingClassifier) Classes() []float64 {
	out := make([]float64, len(gb.ClassValues))
	copy(out, gb.ClassValues)
	return out
}

// Score returns the accuracy on X, y.
func (gb *GradientBoostingClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := gb.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy(columnVec(y), columnVec(pred))
}

// FeatureImportances returns importances averaged over all stage trees.
func (gb *GradientBoostingClassifier) FeatureImportances() ([]float64, error) {
	if !gb.IsFitted() {
		return nil, errors.NewNotFittedError("GradientBoostingClassifier", "FeatureImportances")
	}
	out := make([]float64, len(gb.Importances))
	copy(out, gb.Importances)
	return out, nil
}

// GetParams returns the hyperparameters keyed by their snake_case names.
func (gb *GradientBoostingClassifier) GetParams() map[string]interface{} {
	return gb.cfg.asMap()
}

// SetParams updates hyperparameters from a snake_case keyed map.
func (gb *GradientBoostingClassifier) SetParams(params map[string]interface{}) error {
	return gb.cfg.apply("GradientBoostingClassifier.SetParams", params)
}

// CloneBlank returns an unfitted copy with the same hyperparameters.
func (gb *GradientBoostingClassifier) CloneBlank() model.Tunable {
	return &GradientBoostingClassifier{cfg: gb.cfg}
}

// GradientBoostingRegressor fits stage-wise additive regression trees
// to least-squares residuals.
type GradientBoostingRegressor struct {
	model.BaseEstimator

	cfg gbConfig

	// Fitted state, exported for gob encoding.
	Trees       []*tree.DecisionTreeRegressor
	InitScore   float64
	Shrinkage   float64
	NFeaturesIn int
	Importances []float64
}

var (
	_ model.Regressor     = (*GradientBoostingRegressor)(nil)
	_ model.FeatureRanker = (*GradientBoostingRegressor)(nil)
	_ model.Tunable       = (*GradientBoostingRegressor)(nil)
)

// NewGradientBoostingRegressor creates a booster of 100 depth-3 trees
// with learning rate 0.1.
func NewGradientBoostingRegressor() *GradientBoostingRegressor {
	return &GradientBoostingRegressor{cfg: defaultGBConfig()}
}

// WithNEstimators sets the number of boosting stages.
func (gb *GradientBoostingRegressor) WithNEstimators(n int) *GradientBoostingRegressor {
	gb.cfg.nEstimators = n
	return gb
}

// WithLearningRate sets the shrinkage applied to each stage.
func (gb *GradientBoostingRegressor) WithLearningRate(lr float64) *GradientBoostingRegressor {
	gb.cfg.learningRate = lr
	return gb
}

// WithMaxDepth limits the residual tree depth.
func (gb *GradientBoostingRegressor) WithMaxDepth(d int) *GradientBoostingRegressor {
	gb.cfg.maxDepth = d
	return gb
}

// WithSubsample fits each stage on a random fraction of the rows.
func (gb *GradientBoostingRegressor) WithSubsample(f float64) *GradientBoostingRegressor {
	gb.cfg.subsample = f
	return gb
}

// WithRandomState seeds subsampling and the residual trees.
func (gb *GradientBoostingRegressor) WithRandomState(seed int64) *GradientBoostingRegressor {
	gb.cfg.randomState = seed
	return gb
}

// Fit runs least-squares gradient boosting.
func (gb *GradientBoostingRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingRegressor.Fit")

	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("GradientBoostingRegressor.Fit", "empty data", errors.ErrEmptyData)
	}

	mean := 0.0
	for i := 0; i < n; i++ {
		mean += y.At(i, 0)
	}
	mean /= float64(n)

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = mean
	}

	base := gb.cfg.baseSeed()
	rng := rand.New(rand.NewPCG(uint64(base), uint64(base)>>1))
	trees := make([]*tree.DecisionTreeRegressor, 0, gb.cfg.nEstimators)
	residual := make([]float64, n)

	for m := 0; m < gb.cfg.nEstimators; m++ {
		for i := 0; i < n; i++ {
			residual[i] = y.At(i, 0) - scores[i]
		}
		rows := sampleRows(rng, n, gb.cfg.subsample)
		t, err := fitStageTree(&gb.cfg, X, residual, rows, treeSeed(base, m))
		if err != nil {
			return err
		}
		trees = append(trees, t)

		pred, err := t.Predict(X)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			scores[i] += gb.cfg.learningRate * pred.At(i, 0)
		}
	}

	vectors, err := collectImportances(trees)
	if err != nil {
		return err
	}

	gb.Trees = trees
	gb.InitScore = mean
	gb.Shrinkage = gb.cfg.learningRate
	gb.NFeaturesIn = d
	gb.Importances = averageImportances(vectors, nil)
	gb.SetFitted()

	log.GetLoggerWithName("ensemble.gradient_boosting").Debug("fitted gradient boosting regressor",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.EstimatorsKey, len(trees),
	)
	return nil
}

// Predict accumulates the staged predictions for each row of X.
func (gb *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !gb.IsFitted() {
		return nil, errors.NewNotFittedError("GradientBoostingRegressor", "Predict")
	}
	if _, c := X.Dims(); c != gb.NFeaturesIn {
		return nil, errors.NewDimensionError("GradientBoostingRegressor.Predict", gb.NFeaturesIn, c, 1)
	}

	n, _ := X.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, gb.InitScore)
	}
	for _, t := range gb.Trees {
		pred, err := t.Predict(X)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			out.Set(i, 0, out.At(i, 0)+gb.Shrinkage*pred.At(i, 0))
		}
	}
	return out, nil
}

// Score returns the coefficient of determination R^2 on X, y.
func (gb *GradientBoostingRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := gb.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(columnVec(y), columnVec(pred))
}

// FeatureImportances returns importances averaged over all stage trees.
func (gb *GradientBoostingRegressor) FeatureImportances() ([]float64, error) {
	if !gb.IsFitted() {
		return nil, errors.NewNotFittedError("GradientBoostingRegressor", "FeatureImportances")
	}
	out := make([]float64, len(gb.Importances))
	copy(out, gb.Importances)
	return out, nil
}

// GetParams returns the hyperparameters keyed by their snake_case names.
func (gb *GradientBoostingRegressor) GetParams() map[string]interface{} {
	return gb.cfg.asMap()
}

// SetParams updates hyperparameters from a snake_case keyed map.
func (gb *GradientBoostingRegressor) SetParams(params map[string]interface{}) error {
	return gb.cfg.apply("GradientBoostingRegressor.SetParams", params)
}

// CloneBlank returns an unfitted copy with the same hyperparameters.
func (gb *GradientBoostingRegressor) CloneBlank() model.Tunable {
	return &GradientBoostingRegressor{cfg: gb.cfg}
}
