// Package supervised ties the estimator packages together into a
// catalog of classification and regression entry points over microbiome
// feature tables: load and align data, split, optionally eliminate
// features and tune hyperparameters, fit, evaluate and write a report.
package supervised

import (
	"github.com/otulearn/otulearn/pkg/errors"
	"github.com/otulearn/otulearn/svm"
)

// Options carries the knobs shared by every catalog entry point.
// Entry points read the fields they document and ignore the rest.
type Options struct {
	// TestSize is the held-out fraction of samples.
	TestSize float64

	// Step is the fraction of starting features dropped per elimination
	// round when OptimizeFeatureSelection is on.
	Step float64

	// CV is the number of cross-validation folds for feature
	// elimination and parameter search.
	CV int

	// RandomState seeds splits, searches and estimators; 0 draws from
	// the clock.
	RandomState int64

	// NJobs bounds worker goroutines; <= 0 uses all CPUs.
	NJobs int

	// NEstimators sizes ensemble entry points.
	NEstimators int

	// OptimizeFeatureSelection enables recursive feature elimination.
	OptimizeFeatureSelection bool

	// ParameterTuning enables randomized hyperparameter search.
	ParameterTuning bool

	// Kernel selects the SVC/SVR kernel.
	Kernel string

	// Solver selects the Ridge solver.
	Solver string

	// Algorithm selects the k-NN backend.
	Algorithm string
}

func defaultOptions() Options {
	return Options{
		TestSize:    0.2,
		Step:        0.05,
		CV:          5,
		NJobs:       1,
		NEstimators: 100,
		Kernel:      svm.KernelRBF,
		Solver:      "auto",
		Algorithm:   "auto",
	}
}

// Option mutates the shared entry-point configuration.
type Option func(*Options)

// WithTestSize sets the held-out sample fraction (default 0.2).
func WithTestSize(f float64) Option {
	return func(o *Options) { o.TestSize = f }
}

// WithStep sets the feature-elimination step fraction (default 0.05).
func WithStep(f float64) Option {
	return func(o *Options) { o.Step = f }
}

// WithCV sets the number of cross-validation folds (default 5).
func WithCV(k int) Option {
	return func(o *Options) { o.CV = k }
}

// WithRandomState seeds splits, searches and estimators.
func WithRandomState(seed int64) Option {
	return func(o *Options) { o.RandomState = seed }
}

// WithNJobs bounds worker goroutines; <= 0 uses all CPUs.
func WithNJobs(n int) Option {
	return func(o *Options) { o.NJobs = n }
}

// WithNEstimators sizes ensemble entry points (default 100).
func WithNEstimators(n int) Option {
	return func(o *Options) { o.NEstimators = n }
}

// WithOptimizeFeatureSelection toggles recursive feature elimination.
func WithOptimizeFeatureSelection(on bool) Option {
	return func(o *Options) { o.OptimizeFeatureSelection = on }
}

// WithParameterTuning toggles randomized hyperparameter search.
func WithParameterTuning(on bool) Option {
	return func(o *Options) { o.ParameterTuning = on }
}

// WithKernel selects the SVC/SVR kernel (default rbf).
func WithKernel(kernel string) Option {
	return func(o *Options) { o.Kernel = kernel }
}

// WithSolver selects the Ridge solver (default auto).
func WithSolver(solver string) Option {
	return func(o *Options) { o.Solver = solver }
}

// WithAlgorithm selects the k-NN backend (default auto).
func WithAlgorithm(algorithm string) Option {
	return func(o *Options) { o.Algorithm = algorithm }
}

func buildOptions(opts []Option) (Options, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.TestSize <= 0 || o.TestSize >= 1 {
		return o, errors.NewValueError("supervised", "test size must be in (0, 1)")
	}
	if o.Step <= 0 || o.Step >= 1 {
		return o, errors.NewValueError("supervised", "step must be in (0, 1)")
	}
	if o.CV < 2 {
		return o, errors.NewValueError("supervised", "cv must be at least 2")
	}
	if o.NEstimators < 1 {
		return o, errors.NewValueError("supervised", "n_estimators must be positive")
	}
	return o, nil
}
