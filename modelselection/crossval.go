package modelselection

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/core/model"
	"github.com/otulearn/otulearn/core/parallel"
	"github.com/otulearn/otulearn/metrics"
	"github.com/otulearn/otulearn/pkg/errors"
	"github.com/otulearn/otulearn/pkg/log"
)

// Scorer evaluates a fitted estimator on held-out data. Higher is
// better; scorers for losses negate them.
type Scorer func(est model.Tunable, X, y mat.Matrix) (float64, error)

// ScoreDefault delegates to the estimator's own Score method: accuracy
// for classifiers, R^2 for regressors.
func ScoreDefault(est model.Tunable, X, y mat.Matrix) (float64, error) {
	s, ok := est.(model.Scorer)
	if !ok {
		return 0, errors.NewValueError("ScoreDefault", "estimator does not implement Score")
	}
	return s.Score(X, y)
}

// ScoreAccuracy computes classification accuracy from predictions.
func ScoreAccuracy(est model.Tunable, X, y mat.Matrix) (float64, error) {
	pred, err := est.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy(firstCol(y), firstCol(pred))
}

// ScoreNegMSE computes the negated mean squared error, so that larger
// values still mean better fits.
func ScoreNegMSE(est model.Tunable, X, y mat.Matrix) (float64, error) {
	pred, err := est.Predict(X)
	if err != nil {
		return 0, err
	}
	mse, err := metrics.MSE(firstCol(y), firstCol(pred))
	if err != nil {
		return 0, err
	}
	return -mse, nil
}

// CVResult holds per-fold test scores from a cross-validation run.
type CVResult struct {
	TestScores []float64
}

// MeanScore returns the average fold score.
func (r *CVResult) MeanScore() float64 {
	if len(r.TestScores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range r.TestScores {
		sum += s
	}
	return sum / float64(len(r.TestScores))
}

// StdScore returns the standard deviation of the fold scores.
func (r *CVResult) StdScore() float64 {
	if len(r.TestScores) < 2 {
		return 0
	}
	mean := r.MeanScore()
	sum := 0.0
	for _, s := range r.TestScores {
		d := s - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(r.TestScores)))
}

// CrossValScore fits a blank clone of the estimator on each training
// fold and scores it on the matching test fold. Folds run in parallel.
func CrossValScore(est model.Tunable, X, y mat.Matrix, cv Splitter, scorer Scorer, nJobs int) (*CVResult, error) {
	if cv == nil {
		cv = NewKFold(5, true, 0)
	}
	if scorer == nil {
		scorer = ScoreDefault
	}

	folds := cv.Split(X, y)
	if len(folds) == 0 {
		return nil, errors.NewValueError("CrossValScore", "splitter produced no folds")
	}

	scores := make([]float64, len(folds))
	err := parallel.ForEachIndex(len(folds), parallel.Workers(nJobs), func(f int) error {
		XTrain, yTrain := Subset(X, y, folds[f].TrainIndices)
		XTest, yTest := Subset(X, y, folds[f].TestIndices)

		clone := est.CloneBlank()
		if err := clone.Fit(XTrain, yTrain); err != nil {
			return err
		}
		s, err := scorer(clone, XTest, yTest)
		if err != nil {
			return err
		}
		scores[f] = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &CVResult{TestScores: scores}
	log.GetLoggerWithName("modelselection.crossval").Debug("cross-validation complete",
		log.OperationKey, log.OperationScore,
		log.FoldsKey, len(folds),
		log.BestScoreKey, result.MeanScore(),
	)
	return result, nil
}

// firstCol copies the first column of m into a VecDense.
func firstCol(m mat.Matrix) *mat.VecDense {
	r, _ := m.Dims()
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v
}
