package tree

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/core/model"
	"github.com/otulearn/otulearn/pkg/errors"
	"github.com/otulearn/otulearn/pkg/log"
)

// DecisionTreeClassifier is a CART classifier over numeric class codes.
type DecisionTreeClassifier struct {
	model.BaseEstimator

	params treeParams

	// Fitted state, exported for gob encoding.
	Root        *Node
	ClassValues []float64
	NFeaturesIn int
	Importances []float64

	nLeaves int
	depth   int
}

var (
	_ model.Classifier    = (*DecisionTreeClassifier)(nil)
	_ model.FeatureRanker = (*DecisionTreeClassifier)(nil)
	_ model.Tunable       = (*DecisionTreeClassifier)(nil)
)

// NewDecisionTreeClassifier creates a classifier tree. Defaults:
// gini criterion, unlimited depth, min_samples_split=2,
// min_samples_leaf=1, all features per split.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	p := defaultTreeParams("gini")
	for _, opt := range opts {
		opt(&p)
	}
	return &DecisionTreeClassifier{params: p}
}

// Fit grows the tree with uniform sample weights.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted grows the tree with per-sample weights. A nil weight
// slice means uniform weights. Boosting relies on this entry point.
func (dt *DecisionTreeClassifier) FitWeighted(X, y mat.Matrix, w []float64) (err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.FitWeighted")

	n, d, yCol, err := checkFitInputs("DecisionTreeClassifier.Fit", X, y, w)
	if err != nil {
		return err
	}
	if dt.params.criterion != "gini" && dt.params.criterion != "entropy" {
		return errors.NewValueError("DecisionTreeClassifier.Fit",
			fmt.Sprintf("unknown criterion %q (want gini or entropy)", dt.params.criterion))
	}

	classValues, yIdx := encodeClasses(yCol)
	if w == nil {
		w = uniformWeights(n)
	}

	g := newGrower(X, yIdx, w, len(classValues), dt.params)
	dt.Root = g.grow(allIndices(n), 0)
	dt.ClassValues = classValues
	dt.NFeaturesIn = d
	dt.Importances = g.normalizedImportances()
	dt.nLeaves = g.nLeaves
	dt.depth = g.depth

	dt.SetFitted()
	log.GetLoggerWithName("tree.classifier").Debug("fitted decision tree",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.ClassesKey, len(classValues),
		"depth", dt.depth,
		"leaves", dt.nLeaves,
	)
	return nil
}

// Predict returns the majority class code for each row of X.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !dt.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeClassifier", "Predict")
	}
	if err := dt.checkWidth("Predict", X); err != nil {
		return nil, err
	}

	n, _ := X.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		leaf := traverse(dt.Root, X, i)
		out.Set(i, 0, dt.ClassValues[argmax(leaf.Value)])
	}
	return out, nil
}

// PredictProba returns per-class probability estimates, columns ordered
// as Classes().
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !dt.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeClassifier", "PredictProba")
	}
	if err := dt.checkWidth("PredictProba", X); err != nil {
		return nil, err
	}

	n, _ := X.Dims()
	out := mat.NewDense(n, len(dt.ClassValues), nil)
	for i := 0; i < n; i++ {
		leaf := traverse(dt.Root, X, i)
		for c, p := range leaf.Value {
			out.Set(i, c, p)
		}
	}
	return out, nil
}

// Classes returns the sorted class codes seen during fitting.
func (dt *DecisionTreeClassifier) Classes() []float64 {
	out := make([]float64, len(dt.ClassValues))
	copy(out, dt.ClassValues)
	return out
}

// Score returns the accuracy on X against true labels y.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	return accuracyOf(y, pred)
}

// FeatureImportances returns normalized impurity decreases per feature.
func (dt *DecisionTreeClassifier) FeatureImportances() ([]float64, error) {
	if !dt.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeClassifier", "FeatureImportances")
	}
	out := make([]float64, len(dt.Importances))
	copy(out, dt.Importances)
	return out, nil
}

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeClassifier) GetDepth() int { return dt.depth }

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeClassifier) GetNLeaves() int { return dt.nLeaves }

// GetParams returns the hyperparameters keyed by their snake_case names.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	params := dt.params.asMap()
	params["criterion"] = dt.params.criterion
	return params
}

// SetParams updates hyperparameters from a snake_case keyed map.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	return dt.params.apply(params, true)
}

// CloneBlank returns an unfitted copy with the same hyperparameters.
func (dt *DecisionTreeClassifier) CloneBlank() model.Tunable {
	clone := *dt
	clone.BaseEstimator = model.BaseEstimator{}
	clone.Root = nil
	clone.ClassValues = nil
	clone.NFeaturesIn = 0
	clone.Importances = nil
	clone.nLeaves = 0
	clone.depth = 0
	return &clone
}

func (dt *DecisionTreeClassifier) checkWidth(method string, X mat.Matrix) error {
	_, c := X.Dims()
	if c != dt.NFeaturesIn {
		return errors.NewDimensionError("DecisionTreeClassifier."+method, dt.NFeaturesIn, c, 1)
	}
	return nil
}

// ---------------------------------------------------------------------------
// shared helpers
// ---------------------------------------------------------------------------

// checkFitInputs validates X/y/w shapes and extracts y's first column.
func checkFitInputs(op string, X, y mat.Matrix, w []float64) (n, d int, yCol []float64, err error) {
	n, d = X.Dims()
	if n == 0 || d == 0 {
		return 0, 0, nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	ry, cy := y.Dims()
	if ry != n {
		return 0, 0, nil, errors.NewDimensionError(op, n, ry, 0)
	}
	if cy != 1 {
		return 0, 0, nil, errors.NewValueError(op, "y must be a column vector")
	}
	if w != nil && len(w) != n {
		return 0, 0, nil, errors.NewDimensionError(op, n, len(w), 0)
	}

	yCol = make([]float64, n)
	for i := 0; i < n; i++ {
		yCol[i] = y.At(i, 0)
	}
	return n, d, yCol, nil
}

// encodeClasses maps raw class codes to contiguous indices and returns
// the sorted distinct values plus the index-encoded targets.
func encodeClasses(yCol []float64) ([]float64, []float64) {
	seen := make(map[float64]bool)
	for _, v := range yCol {
		seen[v] = true
	}
	values := make([]float64, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Float64s(values)

	index := make(map[float64]int, len(values))
	for i, v := range values {
		index[v] = i
	}
	encoded := make([]float64, len(yCol))
	for i, v := range yCol {
		encoded[i] = float64(index[v])
	}
	return values, encoded
}

func allIndices(n int) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return indices
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

// accuracyOf compares two column vectors of class codes.
func accuracyOf(yTrue, yPred mat.Matrix) (float64, error) {
	n, _ := yTrue.Dims()
	np, _ := yPred.Dims()
	if n == 0 {
		return 0, errors.Wrap(errors.ErrEmptyData, "accuracy")
	}
	if n != np {
		return 0, errors.NewDimensionError("accuracy", n, np, 0)
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.At(i, 0) == yPred.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}
