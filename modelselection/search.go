package modelselection

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/core/model"
	"github.com/otulearn/otulearn/pkg/errors"
	"github.com/otulearn/otulearn/pkg/log"
)

// Dist draws hyperparameter values for randomized search.
type Dist interface {
	Sample(rng *rand.Rand) interface{}
}

// ParamSpace maps snake_case parameter names to sampling distributions.
type ParamSpace map[string]Dist

// choice picks uniformly from a fixed set of values.
type choice struct {
	values []interface{}
}

// Choice returns a distribution over the given values.
func Choice(values ...interface{}) Dist {
	return choice{values: values}
}

func (c choice) Sample(rng *rand.Rand) interface{} {
	return c.values[rng.IntN(len(c.values))]
}

// intRange draws integers uniformly from [lo, hi).
type intRange struct {
	lo, hi int
}

// IntRange returns a distribution over integers in [lo, hi).
func IntRange(lo, hi int) Dist {
	if hi <= lo {
		hi = lo + 1
	}
	return intRange{lo: lo, hi: hi}
}

func (r intRange) Sample(rng *rand.Rand) interface{} {
	return r.lo + rng.IntN(r.hi-r.lo)
}

// uniform draws floats uniformly from [lo, hi).
type uniform struct {
	lo, hi float64
}

// Uniform returns a distribution over floats in [lo, hi).
func Uniform(lo, hi float64) Dist {
	return uniform{lo: lo, hi: hi}
}

func (u uniform) Sample(rng *rand.Rand) interface{} {
	return u.lo + rng.Float64()*(u.hi-u.lo)
}

// SearchCandidate records one sampled parameter setting and its
// cross-validated performance.
type SearchCandidate struct {
	Params    map[string]interface{}
	MeanScore float64
	StdScore  float64
}

// RandomizedSearchCV samples parameter settings from a ParamSpace,
// cross-validates each and refits the best on the full data.
type RandomizedSearchCV struct {
	Estimator model.Tunable
	Space     ParamSpace
	NIter     int
	CV        Splitter
	Scorer    Scorer
	Seed      int64
	NJobs     int

	// Populated by Fit.
	BestEstimator model.Tunable
	BestParams    map[string]interface{}
	BestScore     float64
	Candidates    []SearchCandidate
}

// NewRandomizedSearchCV creates a search with 10 sampled candidates and
// 5-fold cross-validation.
func NewRandomizedSearchCV(est model.Tunable, space ParamSpace) *RandomizedSearchCV {
	return &RandomizedSearchCV{
		Estimator: est,
		Space:     space,
		NIter:     10,
		NJobs:     1,
	}
}

// sample draws one parameter setting, with keys visited in sorted order
// so a fixed seed reproduces the same candidates.
func (s *RandomizedSearchCV) sample(rng *rand.Rand) map[string]interface{} {
	keys := make([]string, 0, len(s.Space))
	for k := range s.Space {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	params := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		params[k] = s.Space[k].Sample(rng)
	}
	return params
}

// Fit evaluates NIter sampled settings and refits the best one on the
// full data. With an empty space it degenerates to cross-validating the
// estimator's current parameters.
func (s *RandomizedSearchCV) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomizedSearchCV.Fit")

	if s.Estimator == nil {
		return errors.NewValueError("RandomizedSearchCV.Fit", "estimator is nil")
	}
	n, _ := X.Dims()
	if n == 0 {
		return errors.NewModelError("RandomizedSearchCV.Fit", "empty data", errors.ErrEmptyData)
	}

	nIter := s.NIter
	if nIter < 1 {
		nIter = 10
	}
	if len(s.Space) == 0 {
		nIter = 1
	}
	cv := s.CV
	if cv == nil {
		cv = NewKFold(5, true, s.Seed)
	}

	rng := newRNG(s.Seed)
	s.Candidates = s.Candidates[:0]
	bestIdx := -1

	for i := 0; i < nIter; i++ {
		params := s.sample(rng)

		clone := s.Estimator.CloneBlank()
		if err := clone.SetParams(params); err != nil {
			return err
		}
		result, err := CrossValScore(clone, X, y, cv, s.Scorer, s.NJobs)
		if err != nil {
			return err
		}

		s.Candidates = append(s.Candidates, SearchCandidate{
			Params:    params,
			MeanScore: result.MeanScore(),
			StdScore:  result.StdScore(),
		})
		if bestIdx < 0 || result.MeanScore() > s.Candidates[bestIdx].MeanScore {
			bestIdx = len(s.Candidates) - 1
		}
	}

	best := s.Candidates[bestIdx]
	s.BestParams = best.Params
	s.BestScore = best.MeanScore

	s.BestEstimator = s.Estimator.CloneBlank()
	if err := s.BestEstimator.SetParams(best.Params); err != nil {
		return err
	}
	if err := s.BestEstimator.Fit(X, y); err != nil {
		return err
	}

	log.GetLoggerWithName("modelselection.search").Debug("randomized search complete",
		log.OperationKey, log.OperationTune,
		log.CandidatesKey, len(s.Candidates),
		log.FoldsKey, cv.GetNSplits(),
		log.BestScoreKey, s.BestScore,
	)
	return nil
}
