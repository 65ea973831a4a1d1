package tree

// FeatureSubset controls how many features a tree considers at each
// split. The subset is resolved against the actual feature count at
// fit time.
type FeatureSubset struct {
	// Kind is one of "all", "sqrt", "log2", "fraction", "count".
	Kind     string
	Fraction float64
	Count    int
}

// AllFeatures considers every feature at every split.
func AllFeatures() FeatureSubset { return FeatureSubset{Kind: "all"} }

// SqrtFeatures considers sqrt(n_features) features per split.
func SqrtFeatures() FeatureSubset { return FeatureSubset{Kind: "sqrt"} }

// Log2Features considers log2(n_features) features per split.
func Log2Features() FeatureSubset { return FeatureSubset{Kind: "log2"} }

// FeatureFraction considers the given fraction of features per split.
func FeatureFraction(f float64) FeatureSubset {
	return FeatureSubset{Kind: "fraction", Fraction: f}
}

// FeatureCount considers exactly n features per split.
func FeatureCount(n int) FeatureSubset {
	return FeatureSubset{Kind: "count", Count: n}
}

// treeParams holds the hyperparameters shared by classifier and
// regressor trees.
type treeParams struct {
	criterion             string
	maxDepth              int // 0 means unlimited
	minSamplesSplit       float64
	minSamplesLeaf        int
	minWeightFractionLeaf float64
	maxFeatures           FeatureSubset
	randomState           int64
	randomSplitter        bool
}

func defaultTreeParams(criterion string) treeParams {
	return treeParams{
		criterion:       criterion,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     AllFeatures(),
	}
}

// Option configures a decision tree.
type Option func(*treeParams)

// WithCriterion sets the split quality measure. Classifiers accept
// "gini" and "entropy"; regressors always use squared error.
func WithCriterion(criterion string) Option {
	return func(p *treeParams) { p.criterion = criterion }
}

// WithMaxDepth limits the tree depth. Zero or negative means unlimited.
func WithMaxDepth(depth int) Option {
	return func(p *treeParams) {
		if depth < 0 {
			depth = 0
		}
		p.maxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum number of samples required to
// split a node. Values below 1 are interpreted as a fraction of the
// training set.
func WithMinSamplesSplit(v float64) Option {
	return func(p *treeParams) { p.minSamplesSplit = v }
}

// WithMinSamplesLeaf sets the minimum number of samples in a leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(p *treeParams) { p.minSamplesLeaf = n }
}

// WithMinWeightFractionLeaf sets the minimum fraction of the total
// sample weight a leaf must hold.
func WithMinWeightFractionLeaf(f float64) Option {
	return func(p *treeParams) { p.minWeightFractionLeaf = f }
}

// WithMaxFeatures sets the per-split feature subset.
func WithMaxFeatures(fs FeatureSubset) Option {
	return func(p *treeParams) { p.maxFeatures = fs }
}

// WithRandomState seeds the per-split feature sampling and the random
// splitter. Zero draws a seed from the current time.
func WithRandomState(seed int64) Option {
	return func(p *treeParams) { p.randomState = seed }
}

// WithRandomSplitter draws split thresholds uniformly between the
// per-feature minimum and maximum instead of scanning all candidate
// thresholds. Extra-trees ensembles build their trees this way.
func WithRandomSplitter() Option {
	return func(p *treeParams) { p.randomSplitter = true }
}

// resolve returns the number of features to consider per split.
func (fs FeatureSubset) resolve(nFeatures int) int {
	n := nFeatures
	switch fs.Kind {
	case "sqrt":
		n = intSqrt(nFeatures)
	case "log2":
		n = intLog2(nFeatures)
	case "fraction":
		n = int(fs.Fraction * float64(nFeatures))
	case "count":
		n = fs.Count
	}
	if n < 1 {
		n = 1
	}
	if n > nFeatures {
		n = nFeatures
	}
	return n
}

// String names the subset the way sklearn parameter maps do.
func (fs FeatureSubset) String() string {
	switch fs.Kind {
	case "sqrt", "log2":
		return fs.Kind
	case "fraction":
		return "fraction"
	case "count":
		return "count"
	default:
		return "all"
	}
}

func intSqrt(n int) int {
	k := 0
	for (k+1)*(k+1) <= n {
		k++
	}
	return k
}

func intLog2(n int) int {
	k := 0
	for v := n; v > 1; v >>= 1 {
		k++
	}
	return k
}
