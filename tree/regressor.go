package tree

import (
	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/core/model"
	"github.com/otulearn/otulearn/metrics"
	"github.com/otulearn/otulearn/pkg/errors"
	"github.com/otulearn/otulearn/pkg/log"
)

// DecisionTreeRegressor is a CART regressor minimizing weighted
// squared error.
type DecisionTreeRegressor struct {
	model.BaseEstimator

	params treeParams

	// Fitted state, exported for gob encoding.
	Root        *Node
	NFeaturesIn int
	Importances []float64

	nLeaves int
	depth   int
}

var (
	_ model.Regressor     = (*DecisionTreeRegressor)(nil)
	_ model.FeatureRanker = (*DecisionTreeRegressor)(nil)
	_ model.Tunable       = (*DecisionTreeRegressor)(nil)
)

// NewDecisionTreeRegressor creates a regressor tree with the same
// defaults as the classifier, minus the criterion choice.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	p := defaultTreeParams("squared_error")
	for _, opt := range opts {
		opt(&p)
	}
	p.criterion = "squared_error"
	return &DecisionTreeRegressor{params: p}
}

// Fit grows the tree with uniform sample weights.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted grows the tree with per-sample weights; nil means
// uniform. AdaBoost.R2 fits its base trees through this entry point.
func (dt *DecisionTreeRegressor) FitWeighted(X, y mat.Matrix, w []float64) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.FitWeighted")

	n, d, yCol, err := checkFitInputs("DecisionTreeRegressor.Fit", X, y, w)
	if err != nil {
		return err
	}
	if w == nil {
		w = uniformWeights(n)
	}

	g := newGrower(X, yCol, w, 0, dt.params)
	dt.Root = g.grow(allIndices(n), 0)
	dt.NFeaturesIn = d
	dt.Importances = g.normalizedImportances()
	dt.nLeaves = g.nLeaves
	dt.depth = g.depth

	dt.SetFitted()
	log.GetLoggerWithName("tree.regressor").Debug("fitted decision tree",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		"depth", dt.depth,
		"leaves", dt.nLeaves,
	)
	return nil
}

// Predict returns the leaf mean for each row of X.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !dt.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeRegressor", "Predict")
	}
	_, c := X.Dims()
	if c != dt.NFeaturesIn {
		return nil, errors.NewDimensionError("DecisionTreeRegressor.Predict", dt.NFeaturesIn, c, 1)
	}

	n, _ := X.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		leaf := traverse(dt.Root, X, i)
		out.Set(i, 0, leaf.Value[0])
	}
	return out, nil
}

// Score returns the coefficient of determination R^2 on X, y.
func (dt *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(columnVec(y), columnVec(pred))
}

// FeatureImportances returns normalized impurity decreases per feature.
func (dt *DecisionTreeRegressor) FeatureImportances() ([]float64, error) {
	if !dt.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeRegressor", "FeatureImportances")
	}
	out := make([]float64, len(dt.Importances))
	copy(out, dt.Importances)
	return out, nil
}

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeRegressor) GetDepth() int { return dt.depth }

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeRegressor) GetNLeaves() int { return dt.nLeaves }

// GetParams returns the hyperparameters keyed by their snake_case names.
func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return dt.params.asMap()
}

// SetParams updates hyperparameters from a snake_case keyed map.
func (dt *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	return dt.params.apply(params, false)
}

// CloneBlank returns an unfitted copy with the same hyperparameters.
func (dt *DecisionTreeRegressor) CloneBlank() model.Tunable {
	clone := *dt
	clone.BaseEstimator = model.BaseEstimator{}
	clone.Root = nil
	clone.NFeaturesIn = 0
	clone.Importances = nil
	clone.nLeaves = 0
	clone.depth = 0
	return &clone
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
