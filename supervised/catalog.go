package supervised

import (
	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/core/model"
	"github.com/otulearn/otulearn/ensemble"
	"github.com/otulearn/otulearn/linear"
	"github.com/otulearn/otulearn/modelselection"
	"github.com/otulearn/otulearn/neighbors"
	"github.com/otulearn/otulearn/preprocessing"
	"github.com/otulearn/otulearn/svm"
	"github.com/otulearn/otulearn/table"
	"github.com/otulearn/otulearn/tree"
)

// entry describes one catalog run: the estimator, its search space and
// the feature-handling flags after gating.
type entry struct {
	name           string
	classification bool
	est            model.Tunable
	space          modelselection.ParamSpace
	calcImportance bool
	optimize       bool
	tuning         bool

	// preTune, when set and parameter tuning was requested, replaces
	// the estimator before the pipeline runs; the pipeline itself then
	// runs without tuning.
	preTune func(X, y *mat.Dense) (model.Tunable, error)
}

// runEntry loads and encodes the data, applies any pre-tuning hook,
// runs the shared pipeline and writes the report.
func runEntry(outputDir string, t *table.FeatureTable, md *table.Metadata,
	category string, o Options, e entry) (*Result, error) {

	X, targets, sampleIDs, err := LoadData(t, md, category)
	if err != nil {
		return nil, err
	}

	var y *mat.Dense
	var enc *preprocessing.LabelEncoder
	if e.classification {
		enc = preprocessing.NewLabelEncoder()
		codes, err := enc.FitTransform(targets)
		if err != nil {
			return nil, err
		}
		values := make([]float64, codes.Len())
		for i := range values {
			values[i] = codes.AtVec(i)
		}
		y = targetColumn(values)
	} else {
		values, err := NumericTargets(targets)
		if err != nil {
			return nil, err
		}
		y = targetColumn(values)
	}

	est := e.est
	tuning := e.tuning
	if e.preTune != nil && o.ParameterTuning {
		est, err = e.preTune(X, y)
		if err != nil {
			return nil, err
		}
		tuning = false
	}

	cfg := PipelineConfig{
		EstimatorName:            e.name,
		Classification:           e.classification,
		FeatureIDs:               t.FeatureIDs,
		Encoder:                  enc,
		Space:                    e.space,
		CalcImportance:           e.calcImportance,
		OptimizeFeatureSelection: e.optimize,
		ParameterTuning:          tuning,
		TestSize:                 o.TestSize,
		Step:                     o.Step,
		CV:                       o.CV,
		Seed:                     o.RandomState,
		NJobs:                    o.NJobs,
	}
	res, err := SplitOptimizeClassify(X, y, sampleIDs, est, outputDir, cfg)
	if err != nil {
		return nil, err
	}
	res.Category = category

	if err := Visualize(outputDir, res); err != nil {
		return nil, err
	}
	return res, nil
}

// ClassifyRandomForest trains and evaluates a random-forest classifier
// on the metadata category.
func ClassifyRandomForest(outputDir string, t *table.FeatureTable, md *table.Metadata,
	category string, opts ...Option) (*Result, error) {

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return runEntry(outputDir, t, md, category, o, entry{
		name:           "RandomForestClassifier",
		classification: true,
		est: ensemble.NewRandomForestClassifier().
			WithNEstimators(o.NEstimators).
			WithNJobs(o.NJobs).
			WithRandomState(o.RandomState),
		space:          ensembleSpace(true, true),
		calcImportance: true,
		optimize:       o.OptimizeFeatureSelection,
		tuning:         o.ParameterTuning,
	})
}

// ClassifyExtraTrees trains and evaluates an extra-trees classifier.
func ClassifyExtraTrees(outputDir string, t *table.FeatureTable, md *table.Metadata,
	category string, opts ...Option) (*Result, error) {

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return runEntry(outputDir, t, md, category, o, entry{
		name:           "ExtraTreesClassifier",
		classification: true,
		est: ensemble.NewExtraTreesClassifier().
			WithNEstimators(o.NEstimators).
			WithNJobs(o.NJobs).
			WithRandomState(o.RandomState),
		space:          ensembleSpace(true, true),
		calcImportance: true,
		optimize:       o.OptimizeFeatureSelection,
		tuning:         o.ParameterTuning,
	})
}

// ClassifyAdaBoost trains and evaluates an AdaBoost classifier over
// decision stumps. With parameter tuning requested, the base tree is
// tuned on the full data first and the pipeline runs without tuning.
func ClassifyAdaBoost(outputDir string, t *table.FeatureTable, md *table.Metadata,
	category string, opts ...Option) (*Result, error) {

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return runEntry(outputDir, t, md, category, o, entry{
		name:           "AdaBoostClassifier",
		classification: true,
		est: ensemble.NewAdaBoostClassifier().
			WithNEstimators(o.NEstimators).
			WithRandomState(o.RandomState),
		space:          nil,
		calcImportance: true,
		optimize:       o.OptimizeFeatureSelection,
		tuning:         false,
		preTune: func(X, y *mat.Dense) (model.Tunable, error) {
			cv := modelselection.NewStratifiedKFold(o.CV, true, o.RandomState)
			tuned, _, err := TuneParameters(X, y, tree.NewDecisionTreeClassifier(),
				baseTreeSpace(), cv, modelselection.ScoreAccuracy, o.RandomState, o.NJobs)
			if err != nil {
				return nil, err
			}
			base := tuned.CloneBlank().(*tree.DecisionTreeClassifier)
			return ensemble.NewAdaBoostClassifier().
				WithNEstimators(o.NEstimators).
				WithRandomState(o.RandomState).
				WithBaseEstimator(base), nil
		},
	})
}

// ClassifyGradientBoosting trains and evaluates a gradient-boosting
// classifier.
func ClassifyGradientBoosting(outputDir string, t *table.FeatureTable, md *table.Metadata,
	category string, opts ...Option) (*Result, error) {

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return runEntry(outputDir, t, md, category, o, entry{
		name:           "GradientBoostingClassifier",
		classification: true,
		est: ensemble.NewGradientBoostingClassifier().
			WithNEstimators(o.NEstimators).
			WithRandomState(o.RandomState),
		space:          ensembleSpace(false, false),
		calcImportance: true,
		optimize:       o.OptimizeFeatureSelection,
		tuning:         o.ParameterTuning,
	})
}

// ClassifyLinearSVC trains and evaluates a linear support vector
// classifier.
func ClassifyLinearSVC(outputDir string, t *table.FeatureTable, md *table.Metadata,
	category string, opts ...Option) (*Result, error) {

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return runEntry(outputDir, t, md, category, o, entry{
		name:           "LinearSVC",
		classification: true,
		est:            svm.NewLinearSVC().WithRandomState(o.RandomState),
		space:          linearSVMSpace(),
		calcImportance: true,
		optimize:       o.OptimizeFeatureSelection,
		tuning:         o.ParameterTuning,
	})
}

// ClassifySVC trains and evaluates a kernel support vector classifier.
// Non-linear kernels force feature selection and importances off.
func ClassifySVC(outputDir string, t *table.FeatureTable, md *table.Metadata,
	category string, opts ...Option) (*Result, error) {

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	calcImportance, optimize := svmSet("SVC", o.Kernel, o.OptimizeFeatureSelection)
	return runEntry(outputDir, t, md, category, o, entry{
		name:           "SVC",
		classification: true,
		est:            svm.NewSVC().WithKernel(o.Kernel).WithRandomState(o.RandomState),
		space:          svmSpace(false),
		calcImportance: calcImportance,
		optimize:       optimize,
		tuning:         o.ParameterTuning,
	})
}

// ClassifyKNeighbors trains and evaluates a k-nearest-neighbor
// classifier. Nearest neighbors exposes no per-feature weights, so
// feature selection and importances are always off.
func ClassifyKNeighbors(outputDir string, t *table.FeatureTable, md *table.Metadata,
	category string, opts ...Option) (*Result, error) {

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return runEntry(outputDir, t, md, category, o, entry{
		name:           "KNeighborsClassifier",
		classification: true,
		est: neighbors.NewKNeighborsClassifier().
			WithAlgorithm(o.Algorithm).
			WithNJobs(o.NJobs),
		space:          neighborsSpace(),
		calcImportance: false,
		optimize:       false,
		tuning:         o.ParameterTuning,
	})
}

// RegressRandomForest trains and evaluates a random-forest regressor.
func RegressRandomForest(outputDir string, t *table.FeatureTable, md *table.Metadata,
	category string, opts ...Option) (*Result, error) {

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return runEntry(outputDir, t, md, category, o, entry{
		name: "RandomForestRegressor",
		est: ensemble.NewRandomForestRegressor().
			WithNEstimators(o.NEstimators).
			WithNJobs(o.NJobs).
			WithRandomState(o.RandomState),
		space:          ensembleSpace(false, true),
		calcImportance: true,
		optimize:       o.OptimizeFeatureSelection,
		tuning:         o.ParameterTuning,
	})
}

// RegressExtraTrees trains and evaluates an extra-trees regressor.
func RegressExtraTrees(outputDir string, t *table.FeatureTable, md *table.Metadata,
	category string, opts ...Option) (*Result, error) {

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return runEntry(outputDir, t, md, category, o, entry{
		name: "ExtraTreesRegressor",
		est: ensemble.NewExtraTreesRegressor().
			WithNEstimators(o.NEstimators).
			WithNJobs(o.NJobs).
			WithRandomState(o.RandomState),
		space:          ensembleSpace(false, true),
		calcImportance: true,
		optimize:       o.OptimizeFeatureSelection,
		tuning:         o.ParameterTuning,
	})
}

// RegressAdaBoost trains and evaluates an AdaBoost.R2 regressor. With
// parameter tuning requested, the base tree is tuned on the full data
// first and the pipeline runs without tuning.
func RegressAdaBoost(outputDir string, t *table.FeatureTable, md *table.Metadata,
	category string, opts ...Option) (*Result, error) {

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return runEntry(outputDir, t, md, category, o, entry{
		name: "AdaBoostRegressor",
		est: ensemble.NewAdaBoostRegressor().
			WithNEstimators(o.NEstimators).
			WithRandomState(o.RandomState),
		space:          nil,
		calcImportance: true,
		optimize:       o.OptimizeFeatureSelection,
		tuning:         false,
		preTune: func(X, y *mat.Dense) (model.Tunable, error) {
			cv := modelselection.NewKFold(o.CV, true, o.RandomState)
			tuned, _, err := TuneParameters(X, y, tree.NewDecisionTreeRegressor(),
				baseTreeSpace(), cv, modelselection.ScoreNegMSE, o.RandomState, o.NJobs)
			if err != nil {
				return nil, err
			}
			base := tuned.CloneBlank().(*tree.DecisionTreeRegressor)
			return ensemble.NewAdaBoostRegressor().
				WithNEstimators(o.NEstimators).
				WithRandomState(o.RandomState).
				WithBaseEstimator(base), nil
		},
	})
}

// RegressGradientBoosting trains and evaluates a gradient-boosting
// regressor.
func RegressGradientBoosting(outputDir string, t *table.FeatureTable, md *table.Metadata,
	category string, opts ...Option) (*Result, error) {

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return runEntry(outputDir, t, md, category, o, entry{
		name: "GradientBoostingRegressor",
		est: ensemble.NewGradientBoostingRegressor().
			WithNEstimators(o.NEstimators).
			WithRandomState(o.RandomState),
		space:          ensembleSpace(false, false),
		calcImportance: true,
		optimize:       o.OptimizeFeatureSelection,
		tuning:         o.ParameterTuning,
	})
}

// RegressSVR trains and evaluates a kernel support vector regressor.
// Non-linear kernels force feature selection and importances off.
func RegressSVR(outputDir string, t *table.FeatureTable, md *table.Metadata,
	category string, opts ...Option) (*Result, error) {

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	calcImportance, optimize := svmSet("SVR", o.Kernel, o.OptimizeFeatureSelection)
	return runEntry(outputDir, t, md, category, o, entry{
		name:           "SVR",
		est:            svm.NewSVR().WithKernel(o.Kernel).WithRandomState(o.RandomState),
		space:          svmSpace(true),
		calcImportance: calcImportance,
		optimize:       optimize,
		tuning:         o.ParameterTuning,
	})
}

// RegressRidge trains and evaluates an L2-regularized linear regressor.
func RegressRidge(outputDir string, t *table.FeatureTable, md *table.Metadata,
	category string, opts ...Option) (*Result, error) {

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return runEntry(outputDir, t, md, category, o, entry{
		name:           "Ridge",
		est:            linear.NewRidge().WithSolver(o.Solver),
		space:          linearSpace(),
		calcImportance: true,
		optimize:       o.OptimizeFeatureSelection,
		tuning:         o.ParameterTuning,
	})
}

// RegressLasso trains and evaluates an L1-regularized linear regressor.
func RegressLasso(outputDir string, t *table.FeatureTable, md *table.Metadata,
	category string, opts ...Option) (*Result, error) {

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return runEntry(outputDir, t, md, category, o, entry{
		name:           "Lasso",
		est:            linear.NewLasso(),
		space:          linearSpace(),
		calcImportance: true,
		optimize:       o.OptimizeFeatureSelection,
		tuning:         o.ParameterTuning,
	})
}

// RegressElasticNet trains and evaluates an elastic-net linear
// regressor.
func RegressElasticNet(outputDir string, t *table.FeatureTable, md *table.Metadata,
	category string, opts ...Option) (*Result, error) {

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return runEntry(outputDir, t, md, category, o, entry{
		name:           "ElasticNet",
		est:            linear.NewElasticNet(),
		space:          linearSpace(),
		calcImportance: true,
		optimize:       o.OptimizeFeatureSelection,
		tuning:         o.ParameterTuning,
	})
}

// RegressKNeighbors trains and evaluates a k-nearest-neighbor
// regressor. Feature selection and importances are always off.
func RegressKNeighbors(outputDir string, t *table.FeatureTable, md *table.Metadata,
	category string, opts ...Option) (*Result, error) {

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return runEntry(outputDir, t, md, category, o, entry{
		name: "KNeighborsRegressor",
		est: neighbors.NewKNeighborsRegressor().
			WithAlgorithm(o.Algorithm).
			WithNJobs(o.NJobs),
		space:          neighborsSpace(),
		calcImportance: false,
		optimize:       false,
		tuning:         o.ParameterTuning,
	})
}
