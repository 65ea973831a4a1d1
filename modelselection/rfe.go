package modelselection

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/core/model"
	"github.com/otulearn/otulearn/pkg/errors"
	"github.com/otulearn/otulearn/pkg/log"
)

// StageScore records the cross-validated score of one elimination stage.
type StageScore struct {
	NFeatures int
	MeanScore float64
}

// RFECV performs recursive feature elimination with cross-validation.
// At each stage the estimator is fitted on the remaining features, the
// lowest-ranked fraction is dropped, and the stage is scored by
// cross-validation. The stage with the best mean score wins; ties go to
// the stage with fewer features.
//
// The estimator must expose model.FeatureRanker after fitting.
type RFECV struct {
	Estimator   model.Tunable
	Step        float64
	MinFeatures int
	CV          Splitter
	Scorer      Scorer
	NJobs       int

	// Populated by Fit.
	BestEstimator model.Tunable
	Support       []bool
	NSelected     int
	GridScores    []StageScore
}

// NewRFECV creates an eliminator dropping 5% of the starting features
// per stage, down to a single feature.
func NewRFECV(est model.Tunable) *RFECV {
	return &RFECV{
		Estimator:   est,
		Step:        0.05,
		MinFeatures: 1,
		NJobs:       1,
	}
}

// Fit runs the elimination over X, y and refits the estimator on the
// winning feature subset.
func (r *RFECV) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RFECV.Fit")

	if r.Estimator == nil {
		return errors.NewValueError("RFECV.Fit", "estimator is nil")
	}
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("RFECV.Fit", "empty data", errors.ErrEmptyData)
	}
	if r.Step <= 0 || r.Step >= 1 {
		return errors.NewValueError("RFECV.Fit", "step must be in (0, 1)")
	}
	minFeatures := r.MinFeatures
	if minFeatures < 1 {
		minFeatures = 1
	}
	cv := r.CV
	if cv == nil {
		cv = NewKFold(5, true, 0)
	}

	// Features removed per stage, fixed from the starting width.
	drop := int(math.Floor(r.Step * float64(d)))
	if drop < 1 {
		drop = 1
	}

	current := make([]int, d)
	for i := range current {
		current[i] = i
	}

	r.GridScores = r.GridScores[:0]
	var bestSubset []int
	bestScore := math.Inf(-1)

	for {
		Xsub := selectColumns(X, current)
		result, err := CrossValScore(r.Estimator, Xsub, y, cv, r.Scorer, r.NJobs)
		if err != nil {
			return err
		}
		score := result.MeanScore()
		r.GridScores = append(r.GridScores, StageScore{NFeatures: len(current), MeanScore: score})

		// >= prefers later stages, which have fewer features.
		if score >= bestScore {
			bestScore = score
			bestSubset = append([]int(nil), current...)
		}

		if len(current) <= minFeatures {
			break
		}

		ranked, err := r.rankFeatures(Xsub, y, current)
		if err != nil {
			return err
		}
		keep := len(current) - drop
		if keep < minFeatures {
			keep = minFeatures
		}
		current = ranked[:keep]
		sort.Ints(current)
	}

	r.Support = make([]bool, d)
	for _, j := range bestSubset {
		r.Support[j] = true
	}
	r.NSelected = len(bestSubset)

	r.BestEstimator = r.Estimator.CloneBlank()
	if err := r.BestEstimator.Fit(selectColumns(X, bestSubset), y); err != nil {
		return err
	}

	log.GetLoggerWithName("modelselection.rfe").Debug("feature elimination complete",
		log.OperationKey, log.OperationSelect,
		log.SelectedFeaturesKey, r.NSelected,
		log.StepKey, r.Step,
		log.BestScoreKey, bestScore,
	)
	return nil
}

// rankFeatures fits the estimator on the current subset and returns the
// original column indices ordered from most to least important.
func (r *RFECV) rankFeatures(Xsub mat.Matrix, y mat.Matrix, current []int) ([]int, error) {
	clone := r.Estimator.CloneBlank()
	if err := clone.Fit(Xsub, y); err != nil {
		return nil, err
	}
	ranker, ok := clone.(model.FeatureRanker)
	if !ok {
		return nil, errors.NewValueError("RFECV.Fit",
			"estimator does not expose feature importances")
	}
	imp, err := ranker.FeatureImportances()
	if err != nil {
		return nil, err
	}
	if len(imp) != len(current) {
		return nil, errors.NewValueError("RFECV.Fit", "importance length mismatch")
	}

	order := make([]int, len(current))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return imp[order[a]] > imp[order[b]] })

	ranked := make([]int, len(order))
	for i, pos := range order {
		ranked[i] = current[pos]
	}
	return ranked, nil
}

// SelectedColumns returns the retained original column indices in order.
func (r *RFECV) SelectedColumns() []int {
	var cols []int
	for j, keep := range r.Support {
		if keep {
			cols = append(cols, j)
		}
	}
	return cols
}

// Transform reduces X to the selected feature columns.
func (r *RFECV) Transform(X mat.Matrix) (mat.Matrix, error) {
	if r.Support == nil {
		return nil, errors.NewNotFittedError("RFECV", "Transform")
	}
	if _, c := X.Dims(); c != len(r.Support) {
		return nil, errors.NewDimensionError("RFECV.Transform", len(r.Support), c, 1)
	}
	return selectColumns(X, r.SelectedColumns()), nil
}

// selectColumns copies the given columns of X into a fresh matrix.
func selectColumns(X mat.Matrix, cols []int) *mat.Dense {
	n, _ := X.Dims()
	out := mat.NewDense(n, len(cols), nil)
	for i := 0; i < n; i++ {
		for k, j := range cols {
			out.Set(i, k, X.At(i, j))
		}
	}
	return out
}
