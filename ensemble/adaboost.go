package ensemble

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/core/model"
	"github.com/otulearn/otulearn/metrics"
	"github.com/otulearn/otulearn/pkg/errors"
	"github.com/otulearn/otulearn/pkg/log"
	"github.com/otulearn/otulearn/tree"
)

// boostConfig carries the hyperparameters shared by the AdaBoost
// estimators.
type boostConfig struct {
	nEstimators  int
	learningRate float64
	randomState  int64
}

func (c *boostConfig) asMap() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":  c.nEstimators,
		"learning_rate": c.learningRate,
		"random_state":  c.randomState,
	}
}

func (c *boostConfig) apply(op string, params map[string]interface{}) error {
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

// AdaBoostClassifier boosts weighted decision trees with the
// multi-class SAMME scheme. The base tree is cloned per round, so a
// pre-configured tree (for example one tuned separately) can be handed
// in through WithBaseEstimator.
type AdaBoostClassifier struct {
	model.BaseEstimator

	cfg  boostConfig
	base *tree.DecisionTreeClassifier

	// Fitted state, exported for gob encoding.
	Trees       []*tree.DecisionTreeClassifier
	Alphas      []float64
	ClassValues []float64
	NFeaturesIn int
	Importances []float64
}

var (
	_ model.Classifier    = (*AdaBoostClassifier)(nil)
	_ model.FeatureRanker = (*AdaBoostClassifier)(nil)
	_ model.Tunable       = (*AdaBoostClassifier)(nil)
)

// NewAdaBoostClassifier creates a SAMME booster over depth-1 stumps
// with 100 rounds.
func NewAdaBoostClassifier() *AdaBoostClassifier {
	return &AdaBoostClassifier{
		cfg:  boostConfig{nEstimators: 100, learningRate: 1.0},
		base: tree.NewDecisionTreeClassifier(tree.WithMaxDepth(1)),
	}
}

// WithNEstimators sets the number of boosting rounds.
func (ab *AdaBoostClassifier) WithNEstimators(n int) *AdaBoostClassifier {
	ab.cfg.nEstimators = n
	return ab
}

// WithLearningRate shrinks the per-round estimator weight.
func (ab *AdaBoostClassifier) WithLearningRate(lr float64) *AdaBoostClassifier {
	ab.cfg.learningRate = lr
	return ab
}

// WithRandomState seeds the base trees.
func (ab *AdaBoostClassifier) WithRandomState(seed int64) *AdaBoostClassifier {
	ab.cfg.randomState = seed
	return ab
}

// WithBaseEstimator replaces the default stump with a configured tree.
func (ab *AdaBoostClassifier) WithBaseEstimator(t *tree.DecisionTreeClassifier) *AdaBoostClassifier {
	ab.base = t
	return ab
}

// BaseEstimatorTemplate returns the tree cloned for each round.
func (ab *AdaBoostClassifier) BaseEstimatorTemplate() *tree.DecisionTreeClassifier {
	return ab.base
}

// Fit runs SAMME boosting. Rounds stop early when a base tree fits the
// weighted sample perfectly or does worse than random guessing.
func (ab *AdaBoostClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "AdaBoostClassifier.Fit")

	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("AdaBoostClassifier.Fit", "empty data", errors.ErrEmptyData)
	}

	classValues, encoded := encodeTargets(y)
	k := len(classValues)
	if k < 2 {
		return errors.NewValueError("AdaBoostClassifier.Fit", "need at least two classes")
	}

	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}

	var trees []*tree.DecisionTreeClassifier
	var alphas []float64
	for m := 0; m < ab.cfg.nEstimators; m++ {
		t := ab.base.CloneBlank().(*tree.DecisionTreeClassifier)
		if ab.cfg.randomState != 0 {
			if err := t.SetParams(map[string]interface{}{
				"random_state": treeSeed(ab.cfg.randomState, m),
			}); err != nil {
				return err
			}
		}
		if err := t.FitWeighted(X, encoded, w); err != nil {
			return err
		}
		pred, err := t.Predict(X)
		if err != nil {
			return err
		}

		werr := 0.0
		for i := 0; i < n; i++ {
			if pred.At(i, 0) != encoded.At(i, 0) {
				werr += w[i]
			}
		}
		if werr <= 0 {
			// Perfect fit: keep this tree alone with unit weight.
			trees = append(trees, t)
			alphas = append(alphas, 1.0)
			break
		}
		if werr >= 1-1/float64(k) {
			// No better than random guessing; stop boosting.
			break
		}

		alpha := ab.cfg.learningRate * (math.Log((1-werr)/werr) + math.Log(float64(k)-1))
		trees = append(trees, t)
		alphas = append(alphas, alpha)

		total := 0.0
		for i := 0; i < n; i++ {
			if pred.At(i, 0) != encoded.At(i, 0) {
				w[i] *= errors.StabilizeExp(alpha)
			}
			total += w[i]
		}
		for i := range w {
			w[i] /= total
		}
	}
	if len(trees) == 0 {
		return errors.NewValueError("AdaBoostClassifier.Fit",
			"base estimator is no better than random guessing")
	}

	vectors, err := collectImportances(trees)
	if err != nil {
		return err
	}

	ab.Trees = trees
	ab.Alphas = alphas
	ab.ClassValues = classValues
	ab.NFeaturesIn = d
	ab.Importances = averageImportances(vectors, alphas)
	ab.SetFitted()

	log.GetLoggerWithName("ensemble.adaboost").Debug("fitted adaboost",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.ClassesKey, k,
		log.EstimatorsKey, len(trees),
	)
	return nil
}

// Predict returns the alpha-weighted majority vote for each row of X.
func (ab *AdaBoostClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := ab.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, ab.ClassValues[argmaxRow(proba, i)])
	}
	return out, nil
}

// PredictProba returns normalized alpha-weighted vote shares.
func (ab *AdaBoostClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !ab.IsFitted() {
		return nil, errors.NewNotFittedError("AdaBoostClassifier", "PredictProba")
	}
	if _, c := X.Dims(); c != ab.NFeaturesIn {
		return nil, errors.NewDimensionError("AdaBoostClassifier.PredictProba", ab.NFeaturesIn, c, 1)
	}

	n, _ := X.Dims()
	k := len(ab.ClassValues)
	votes := mat.NewDense(n, k, nil)
	for m, t := range ab.Trees {
		pred, err := t.Predict(X)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			c := int(pred.At(i, 0))
			votes.Set(i, c, votes.At(i, c)+ab.Alphas[m])
		}
	}
	for i := 0; i < n; i++ {
		total := 0.0
		for j := 0; j < k; j++ {
			total += votes.At(i, j)
		}
		if total > 0 {
			for j := 0; j < k; j++ {
				votes.Set(i, j, votes.At(i, j)/total)
			}
		}
	}
	return votes, nil
}

// Classes returns the sorted class codes seen during fitting.
func (ab *AdaBoostClassifier) Classes() []float64 {
	out := make([]float64, len(ab.ClassValues))
	copy(out, ab.ClassValues)
	return out
}

// Score returns the accuracy on X, y.
func (ab *AdaBoostClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := ab.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy(columnVec(y), columnVec(pred))
}

// FeatureImportances returns alpha-weighted averaged importances.
func (ab *AdaBoostClassifier) FeatureImportances() ([]float64, error) {
	if !ab.IsFitted() {
		return nil, errors.NewNotFittedError("AdaBoostClassifier", "FeatureImportances")
	}
	out := make([]float64, len(ab.Importances))
	copy(out, ab.Importances)
	return out, nil
}

// GetParams returns the hyperparameters keyed by their snake_case names.
func (ab *AdaBoostClassifier) GetParams() map[string]interface{} {
	return ab.cfg.asMap()
}

// SetParams updates hyperparameters from a snake_case keyed map.
func (ab *AdaBoostClassifier) SetParams(params map[string]interface{}) error {
	return ab.cfg.apply("AdaBoostClassifier.SetParams", params)
}

// CloneBlank returns an unfitted copy sharing the base tree template.
func (ab *AdaBoostClassifier) CloneBlank() model.Tunable {
	return &AdaBoostClassifier{cfg: ab.cfg, base: ab.base}
}

// AdaBoostRegressor implements the AdaBoost.R2 scheme over regression
// trees with linear loss and weighted-median prediction.
type AdaBoostRegressor struct {
	model.BaseEstimator

	cfg  boostConfig
	base *tree.DecisionTreeRegressor

	// Fitted state, exported for gob encoding.
	Trees       []*tree.DecisionTreeRegressor
	Alphas      []float64
	NFeaturesIn int
	Importances []float64
}

var (
	_ model.Regressor     = (*AdaBoostRegressor)(nil)
	_ model.FeatureRanker = (*AdaBoostRegressor)(nil)
	_ model.Tunable       = (*AdaBoostRegressor)(nil)
)

// NewAdaBoostRegressor creates an AdaBoost.R2 booster over depth-3
// trees with 100 rounds.
func NewAdaBoostRegressor() *AdaBoostRegressor {
	return &AdaBoostRegressor{
		cfg:  boostConfig{nEstimators: 100, learningRate: 1.0},
		base: tree.NewDecisionTreeRegressor(tree.WithMaxDepth(3)),
	}
}

// WithNEstimators sets the number of boosting rounds.
func (ab *AdaBoostRegressor) WithNEstimators(n int) *AdaBoostRegressor {
	ab.cfg.nEstimators = n
	return ab
}

// WithLearningRate shrinks the per-round estimator weight.
func (ab *AdaBoostRegressor) WithLearningRate(lr float64) *AdaBoostRegressor {
	ab.cfg.learningRate = lr
	return ab
}

// WithRandomState seeds the base trees.
func (ab *AdaBoostRegressor) WithRandomState(seed int64) *AdaBoostRegressor {
	ab.cfg.randomState = seed
	return ab
}

// WithBaseEstimator replaces the default base tree.
func (ab *AdaBoostRegressor) WithBaseEstimator(t *tree.DecisionTreeRegressor) *AdaBoostRegressor {
	ab.base = t
	return ab
}

// BaseEstimatorTemplate returns the tree cloned for each round.
func (ab *AdaBoostRegressor) BaseEstimatorTemplate() *tree.DecisionTreeRegressor {
	return ab.base
}

// Fit runs AdaBoost.R2. Rounds stop early when the weighted average
// loss reaches 0.5.
func (ab *AdaBoostRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "AdaBoostRegressor.Fit")

	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("AdaBoostRegressor.Fit", "empty data", errors.ErrEmptyData)
	}

	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}

	var trees []*tree.DecisionTreeRegressor
	var alphas []float64
	for m := 0; m < ab.cfg.nEstimators; m++ {
		t := ab.base.CloneBlank().(*tree.DecisionTreeRegressor)
		if ab.cfg.randomState != 0 {
			if err := t.SetParams(map[string]interface{}{
				"random_state": treeSeed(ab.cfg.randomState, m),
			}); err != nil {
				return err
			}
		}
		if err := t.FitWeighted(X, y, w); err != nil {
			return err
		}
		pred, err := t.Predict(X)
		if err != nil {
			return err
		}

		maxErr := 0.0
		loss := make([]float64, n)
		for i := 0; i < n; i++ {
			loss[i] = math.Abs(pred.At(i, 0) - y.At(i, 0))
			if loss[i] > maxErr {
				maxErr = loss[i]
			}
		}
		if maxErr <= 0 {
			trees = append(trees, t)
			alphas = append(alphas, 1.0)
			break
		}
		avgLoss := 0.0
		for i := 0; i < n; i++ {
			loss[i] /= maxErr
			avgLoss += w[i] * loss[i]
		}
		if avgLoss >= 0.5 {
			break
		}

		beta := avgLoss / (1 - avgLoss)
		alpha := ab.cfg.learningRate * math.Log(1/beta)
		trees = append(trees, t)
		alphas = append(alphas, alpha)

		total := 0.0
		for i := 0; i < n; i++ {
			w[i] *= math.Pow(beta, ab.cfg.learningRate*(1-loss[i]))
			total += w[i]
		}
		for i := range w {
			w[i] /= total
		}
	}
	if len(trees) == 0 {
		return errors.NewValueError("AdaBoostRegressor.Fit",
			"base estimator loss too high to boost")
	}

	vectors, err := collectImportances(trees)
	if err != nil {
		return err
	}

	ab.Trees = trees
	ab.Alphas = alphas
	ab.NFeaturesIn = d
	ab.Importances = averageImportances(vectors, alphas)
	ab.SetFitted()

	log.GetLoggerWithName("ensemble.adaboost").Debug("fitted adaboost regressor",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.EstimatorsKey, len(trees),
	)
	return nil
}

// Predict returns the alpha-weighted median of per-tree predictions.
func (ab *AdaBoostRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !ab.IsFitted() {
		return nil, errors.NewNotFittedError("AdaBoostRegressor", "Predict")
	}
	if _, c := X.Dims(); c != ab.NFeaturesIn {
		return nil, errors.NewDimensionError("AdaBoostRegressor.Predict", ab.NFeaturesIn, c, 1)
	}

	n, _ := X.Dims()
	preds := make([]*mat.Dense, len(ab.Trees))
	for m, t := range ab.Trees {
		p, err := t.Predict(X)
		if err != nil {
			return nil, err
		}
		preds[m] = p.(*mat.Dense)
	}

	out := mat.NewDense(n, 1, nil)
	row := make([]struct{ v, w float64 }, len(ab.Trees))
	for i := 0; i < n; i++ {
		totalW := 0.0
		for m := range ab.Trees {
			row[m].v = preds[m].At(i, 0)
			row[m].w = ab.Alphas[m]
			totalW += ab.Alphas[m]
		}
		sort.Slice(row, func(a, b int) bool { return row[a].v < row[b].v })
		cum := 0.0
		med := row[len(row)-1].v
		for m := range row {
			cum += row[m].w
			if cum >= totalW/2 {
				med = row[m].v
				break
			}
		}
		out.Set(i, 0, med)
	}
	return out, nil
}

// Score returns the coefficient of determination R^2 on X, y.
func (ab *AdaBoostRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := ab.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(columnVec(y), columnVec(pred))
}

// FeatureImportances returns alpha-weighted averaged importances.
func (ab *AdaBoostRegressor) FeatureImportances() ([]float64, error) {
	if !ab.IsFitted() {
		return nil, errors.NewNotFittedError("AdaBoostRegressor", "FeatureImportances")
	}
	out := make([]float64, len(ab.Importances))
	copy(out, ab.Importances)
	return out, nil
}

// GetParams returns the hyperparameters keyed by their snake_case names.
func (ab *AdaBoostRegressor) GetParams() map[string]interface{} {
	return ab.cfg.asMap()
}

// SetParams updates hyperparameters from a snake_case keyed map.
func (ab *AdaBoostRegressor) SetParams(params map[string]interface{}) error {
	return ab.cfg.apply("AdaBoostRegressor.SetParams", params)
}

// CloneBlank returns an unfitted copy sharing the base tree template.
func (ab *AdaBoostRegressor) CloneBlank() model.Tunable {
	return &AdaBoostRegressor{cfg: ab.cfg, base: ab.base}
}
