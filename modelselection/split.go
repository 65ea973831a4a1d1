// Package modelselection provides data splitting, cross-validation,
// randomized hyperparameter search and recursive feature elimination
// over the model.Tunable contract.
package modelselection

import (
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/pkg/errors"
)

// CVFold is one train/test index split.
type CVFold struct {
	TrainIndices []int
	TestIndices  []int
}

// Splitter generates cross-validation folds.
type Splitter interface {
	Split(X, y mat.Matrix) []CVFold
	GetNSplits() int
}

// splitConfig carries the train/test split options.
type splitConfig struct {
	testSize float64
	seed     int64
	stratify bool
}

// SplitOption configures TrainTestSplit.
type SplitOption func(*splitConfig)

// WithTestSize sets the held-out fraction (default 0.2).
func WithTestSize(f float64) SplitOption {
	return func(c *splitConfig) { c.testSize = f }
}

// WithSeed seeds the shuffle; 0 draws from the clock.
func WithSeed(seed int64) SplitOption {
	return func(c *splitConfig) { c.seed = seed }
}

// WithStratify preserves the class balance of y in both halves.
func WithStratify(s bool) SplitOption {
	return func(c *splitConfig) { c.stratify = s }
}

// SplitIndices shuffles the samples and returns train and test index
// sets. The indices come back sorted so callers can map them onto
// sample identifiers.
func SplitIndices(y mat.Matrix, opts ...SplitOption) (trainIdx, testIdx []int, err error) {
	cfg := splitConfig{testSize: 0.2}
	for _, opt := range opts {
		opt(&cfg)
	}

	n, _ := y.Dims()
	if n == 0 {
		return nil, nil, errors.NewModelError("TrainTestSplit", "empty data", errors.ErrEmptyData)
	}
	if cfg.testSize <= 0 || cfg.testSize >= 1 {
		return nil, nil, errors.NewValueError("TrainTestSplit", "test_size must be in (0, 1)")
	}

	nTest := int(math.Round(cfg.testSize * float64(n)))
	if nTest < 1 {
		nTest = 1
	}
	if nTest >= n {
		return nil, nil, errors.NewValueError("TrainTestSplit", "test split leaves no training samples")
	}

	rng := newRNG(cfg.seed)
	if cfg.stratify {
		testIdx, trainIdx, err = stratifiedIndices(y, nTest, rng)
		if err != nil {
			return nil, nil, err
		}
	} else {
		perm := rng.Perm(n)
		testIdx = perm[:nTest]
		trainIdx = perm[nTest:]
	}
	sort.Ints(trainIdx)
	sort.Ints(testIdx)
	return trainIdx, testIdx, nil
}

// TrainTestSplit shuffles the samples and splits them into train and
// test portions.
func TrainTestSplit(X, y mat.Matrix, opts ...SplitOption) (XTrain, XTest, yTrain, yTest *mat.Dense, err error) {
	trainIdx, testIdx, err := SplitIndices(y, opts...)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	XTrain, yTrain = Subset(X, y, trainIdx)
	XTest, yTest = Subset(X, y, testIdx)
	return XTrain, XTest, yTrain, yTest, nil
}

// stratifiedIndices draws a proportional share of each class into the
// test split, at least one sample per class where possible.
func stratifiedIndices(y mat.Matrix, nTest int, rng *rand.Rand) (test, train []int, err error) {
	n, _ := y.Dims()
	groups := make(map[float64][]int)
	for i := 0; i < n; i++ {
		v := y.At(i, 0)
		groups[v] = append(groups[v], i)
	}

	frac := float64(nTest) / float64(n)
	var labels []float64
	for v := range groups {
		labels = append(labels, v)
	}
	sort.Float64s(labels)

	for _, v := range labels {
		idx := groups[v]
		if len(idx) < 2 {
			return nil, nil, errors.NewValueError("TrainTestSplit",
				"stratified split needs at least two samples per class")
		}
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		k := int(math.Round(frac * float64(len(idx))))
		if k < 1 {
			k = 1
		}
		if k >= len(idx) {
			k = len(idx) - 1
		}
		test = append(test, idx[:k]...)
		train = append(train, idx[k:]...)
	}
	return test, train, nil
}

// KFold splits samples into k consecutive folds after an optional
// shuffle.
type KFold struct {
	NSplits int
	Shuffle bool
	Seed    int64
}

// NewKFold creates a splitter with at least two folds.
func NewKFold(nSplits int, shuffle bool, seed int64) *KFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &KFold{NSplits: nSplits, Shuffle: shuffle, Seed: seed}
}

// GetNSplits returns the number of folds.
func (kf *KFold) GetNSplits() int { return kf.NSplits }

// Split generates train/test indices for each fold.
func (kf *KFold) Split(X, _ mat.Matrix) []CVFold {
	n, _ := X.Dims()
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		rng := newRNG(kf.Seed)
		rng.Shuffle(n, func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
	}

	folds := make([]CVFold, kf.NSplits)
	foldSize := n / kf.NSplits
	remainder := n % kf.NSplits

	start := 0
	for f := 0; f < kf.NSplits; f++ {
		size := foldSize
		if f < remainder {
			size++
		}
		test := append([]int(nil), indices[start:start+size]...)
		train := make([]int, 0, n-size)
		train = append(train, indices[:start]...)
		train = append(train, indices[start+size:]...)
		folds[f] = CVFold{TrainIndices: train, TestIndices: test}
		start += size
	}
	return folds
}

// StratifiedKFold distributes each class evenly across folds.
type StratifiedKFold struct {
	NSplits int
	Shuffle bool
	Seed    int64
}

// NewStratifiedKFold creates a splitter with at least two folds.
func NewStratifiedKFold(nSplits int, shuffle bool, seed int64) *StratifiedKFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &StratifiedKFold{NSplits: nSplits, Shuffle: shuffle, Seed: seed}
}

// GetNSplits returns the number of folds.
func (skf *StratifiedKFold) GetNSplits() int { return skf.NSplits }

// Split generates stratified train/test indices for each fold.
func (skf *StratifiedKFold) Split(X, y mat.Matrix) []CVFold {
	n, _ := X.Dims()

	groups := make(map[float64][]int)
	for i := 0; i < n; i++ {
		v := y.At(i, 0)
		groups[v] = append(groups[v], i)
	}
	var labels []float64
	for v := range groups {
		labels = append(labels, v)
	}
	sort.Float64s(labels)

	if skf.Shuffle {
		rng := newRNG(skf.Seed)
		for _, v := range labels {
			idx := groups[v]
			rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		}
	}

	folds := make([]CVFold, skf.NSplits)
	for _, v := range labels {
		idx := groups[v]
		size := len(idx) / skf.NSplits
		remainder := len(idx) % skf.NSplits
		start := 0
		for f := 0; f < skf.NSplits; f++ {
			k := size
			if f < remainder {
				k++
			}
			folds[f].TestIndices = append(folds[f].TestIndices, idx[start:start+k]...)
			start += k
		}
	}

	for f := range folds {
		inTest := make(map[int]bool, len(folds[f].TestIndices))
		for _, i := range folds[f].TestIndices {
			inTest[i] = true
		}
		for i := 0; i < n; i++ {
			if !inTest[i] {
				folds[f].TrainIndices = append(folds[f].TrainIndices, i)
			}
		}
	}
	return folds
}

// Subset copies the given rows of X and y into fresh matrices, in
// ascending index order.
func Subset(X, y mat.Matrix, indices []int) (*mat.Dense, *mat.Dense) {
	_, d := X.Dims()
	sorted := append([]int(nil), indices...)
	sort.Ints(sorted)

	Xs := mat.NewDense(len(sorted), d, nil)
	ys := mat.NewDense(len(sorted), 1, nil)
	for k, i := range sorted {
		for j := 0; j < d; j++ {
			Xs.Set(k, j, X.At(i, j))
		}
		ys.Set(k, 0, y.At(i, 0))
	}
	return Xs, ys
}

func newRNG(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1))
}
