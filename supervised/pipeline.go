package supervised

import (
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/core/model"
	"github.com/otulearn/otulearn/metrics"
	"github.com/otulearn/otulearn/modelselection"
	"github.com/otulearn/otulearn/pkg/errors"
	"github.com/otulearn/otulearn/pkg/log"
	"github.com/otulearn/otulearn/preprocessing"
	"github.com/otulearn/otulearn/svm"
)

// svmWarningText is emitted when a kernel SVM cannot support recursive
// feature extraction.
const svmWarningText = "This estimator does not support recursive " +
	"feature extraction with the parameter settings requested. See " +
	"documentation or try a different estimator model."

// svmSet gates feature handling for the kernel SVMs. Linear kernels
// expose |coef| importances and pass the caller's feature-selection
// choice through; any other kernel forces both off and emits a
// FeatureSelectionWarning.
func svmSet(estimator, kernel string, optimizeFeatureSelection bool) (calcImportance, optimize bool) {
	if kernel == svm.KernelLinear {
		return true, optimizeFeatureSelection
	}
	errors.Warn(errors.NewFeatureSelectionWarning(estimator, svmWarningText))
	return false, false
}

// FeatureImportance pairs a feature ID with its importance weight.
type FeatureImportance struct {
	FeatureID  string
	Importance float64
}

// PipelineConfig parameterizes one run of the shared pipeline.
type PipelineConfig struct {
	EstimatorName  string
	Classification bool

	// FeatureIDs name the columns of X, in order.
	FeatureIDs []string

	// Encoder decodes class codes back to labels; nil for regression.
	Encoder *preprocessing.LabelEncoder

	// Space is the randomized-search space; ignored unless
	// ParameterTuning is set.
	Space modelselection.ParamSpace

	CalcImportance           bool
	OptimizeFeatureSelection bool
	ParameterTuning          bool

	TestSize float64
	Step     float64
	CV       int
	Seed     int64
	NJobs    int
}

// Result is the outcome of one pipeline run.
type Result struct {
	RunID     string
	Estimator string
	Params    map[string]interface{}

	Classification bool
	Category       string
	NSamples       int
	NFeatures      int

	// Classification metrics.
	Accuracy  float64
	Confusion *metrics.ConfusionMatrix

	// Regression metrics.
	MSE float64
	MAE float64
	R2  float64

	// Held-out predictions, aligned by index.
	TestSampleIDs   []string
	TrueLabels      []string
	PredictedLabels []string
	TrueValues      []float64
	PredictedValues []float64

	// Importances are ranked best first; empty when the estimator does
	// not expose them or calculation was gated off.
	Importances []FeatureImportance

	// SelectedFeatures are the feature IDs the model was fitted on.
	SelectedFeatures []string

	// RFEScores traces the elimination search; nil when feature
	// selection was off.
	RFEScores []modelselection.StageScore

	Elapsed time.Duration

	// Trained carries the fitted estimator for persistence and
	// new-data prediction.
	Trained *TrainedModel
}

// TuneParameters cross-validates randomized parameter samples and
// returns the best setting refitted on the full data. It backs both
// the pipeline tuning stage and the AdaBoost base-tree pre-tuning.
// Candidates are ranked by scorer: accuracy for classification, negated
// mean squared error for regression.
func TuneParameters(X, y mat.Matrix, est model.Tunable, space modelselection.ParamSpace,
	cv modelselection.Splitter, scorer modelselection.Scorer, seed int64, nJobs int) (model.Tunable, float64, error) {

	search := modelselection.NewRandomizedSearchCV(est, space)
	search.CV = cv
	search.Scorer = scorer
	search.Seed = seed
	search.NJobs = nJobs
	if err := search.Fit(X, y); err != nil {
		return nil, 0, err
	}
	return search.BestEstimator, search.BestScore, nil
}

// SplitOptimizeClassify runs the shared pipeline: train/test split,
// optional recursive feature elimination, optional randomized parameter
// search, fit, held-out evaluation and importance ranking. Elimination
// diagnostics are written into outputDir as they are produced.
func SplitOptimizeClassify(X *mat.Dense, y *mat.Dense, sampleIDs []string,
	est model.Tunable, outputDir string, cfg PipelineConfig) (res *Result, err error) {

	defer errors.Recover(&err, "supervised.SplitOptimizeClassify")
	start := time.Now()

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "supervised: creating output dir %s", outputDir)
	}

	n, d := X.Dims()
	if n == 0 || d == 0 {
		return nil, errors.NewModelError("supervised.SplitOptimizeClassify", "empty data", errors.ErrEmptyData)
	}
	if len(sampleIDs) != n {
		return nil, errors.NewDimensionError("supervised.SplitOptimizeClassify", n, len(sampleIDs), 0)
	}
	if len(cfg.FeatureIDs) != d {
		return nil, errors.NewDimensionError("supervised.SplitOptimizeClassify", d, len(cfg.FeatureIDs), 1)
	}
	if cfg.Classification && cfg.Encoder == nil {
		return nil, errors.NewValueError("supervised.SplitOptimizeClassify",
			"classification runs need a label encoder")
	}

	res = &Result{
		RunID:          uuid.NewString(),
		Estimator:      cfg.EstimatorName,
		Classification: cfg.Classification,
		NSamples:       n,
		NFeatures:      d,
	}
	logger := log.GetLoggerWithName("supervised.pipeline")
	logger.Info("pipeline start",
		log.RunIDKey, res.RunID,
		log.ModelNameKey, cfg.EstimatorName,
		log.SamplesKey, n,
		log.FeaturesKey, d,
	)

	trainIdx, testIdx, err := modelselection.SplitIndices(y,
		modelselection.WithTestSize(cfg.TestSize),
		modelselection.WithSeed(cfg.Seed),
		modelselection.WithStratify(cfg.Classification),
	)
	if err != nil {
		return nil, err
	}
	XTrain, yTrain := modelselection.Subset(X, y, trainIdx)
	XTest, yTest := modelselection.Subset(X, y, testIdx)
	res.TestSampleIDs = make([]string, len(testIdx))
	for k, i := range testIdx {
		res.TestSampleIDs[k] = sampleIDs[i]
	}

	// Classification selects by fold accuracy, regression by negated
	// mean squared error, so that higher is always better.
	var cv modelselection.Splitter
	scorer := modelselection.Scorer(modelselection.ScoreNegMSE)
	if cfg.Classification {
		cv = modelselection.NewStratifiedKFold(cfg.CV, true, cfg.Seed)
		scorer = modelselection.ScoreAccuracy
	} else {
		cv = modelselection.NewKFold(cfg.CV, true, cfg.Seed)
	}

	featureIDs := append([]string(nil), cfg.FeatureIDs...)
	if cfg.OptimizeFeatureSelection {
		rfe := modelselection.NewRFECV(est)
		rfe.Step = cfg.Step
		rfe.CV = cv
		rfe.Scorer = scorer
		rfe.NJobs = cfg.NJobs
		if err := rfe.Fit(XTrain, yTrain); err != nil {
			return nil, err
		}
		res.RFEScores = rfe.GridScores
		if err := writeRFEReport(outputDir, rfe.GridScores); err != nil {
			return nil, err
		}

		reducedTrain, err := rfe.Transform(XTrain)
		if err != nil {
			return nil, err
		}
		reducedTest, err := rfe.Transform(XTest)
		if err != nil {
			return nil, err
		}
		XTrain = reducedTrain.(*mat.Dense)
		XTest = reducedTest.(*mat.Dense)

		cols := rfe.SelectedColumns()
		kept := make([]string, len(cols))
		for k, j := range cols {
			kept[k] = featureIDs[j]
		}
		featureIDs = kept
		logger.Info("feature elimination done",
			log.RunIDKey, res.RunID,
			log.SelectedFeaturesKey, len(featureIDs),
		)
	}

	if cfg.ParameterTuning && len(cfg.Space) > 0 {
		tuned, best, err := TuneParameters(XTrain, yTrain, est, cfg.Space, cv, scorer, cfg.Seed, cfg.NJobs)
		if err != nil {
			return nil, err
		}
		est = tuned
		logger.Info("parameter tuning done",
			log.RunIDKey, res.RunID,
			log.BestScoreKey, best,
		)
	} else {
		if err := est.Fit(XTrain, yTrain); err != nil {
			return nil, err
		}
	}

	preds, err := est.Predict(XTest)
	if err != nil {
		return nil, err
	}

	if cfg.Classification {
		if err := evaluateClassification(res, cfg.Encoder, yTest, preds); err != nil {
			return nil, err
		}
	} else {
		if err := evaluateRegression(res, yTest, preds); err != nil {
			return nil, err
		}
	}

	if cfg.CalcImportance {
		imps, err := rankImportances(est, featureIDs)
		if err != nil {
			return nil, err
		}
		res.Importances = imps
	}

	res.Params = est.GetParams()
	res.SelectedFeatures = featureIDs
	res.Trained = newTrainedModel(cfg, est, featureIDs)
	res.Elapsed = time.Since(start)

	logger.Info("pipeline done",
		log.RunIDKey, res.RunID,
		log.ModelNameKey, cfg.EstimatorName,
		log.AccuracyKey, res.Accuracy,
		log.MSEKey, res.MSE,
		log.DurationMsKey, res.Elapsed.Milliseconds(),
	)
	return res, nil
}

func evaluateClassification(res *Result, enc *preprocessing.LabelEncoder, yTest mat.Matrix, preds mat.Matrix) error {
	trueLabels, err := enc.InverseTransformVec(yTest)
	if err != nil {
		return err
	}
	predLabels, err := enc.InverseTransformVec(preds)
	if err != nil {
		return err
	}

	cm, err := metrics.NewConfusionMatrix(trueLabels, predLabels)
	if err != nil {
		return err
	}
	res.Confusion = cm
	res.Accuracy = cm.Accuracy()
	res.TrueLabels = trueLabels
	res.PredictedLabels = predLabels
	return nil
}

func evaluateRegression(res *Result, yTest mat.Matrix, preds mat.Matrix) error {
	n, _ := yTest.Dims()
	yv := mat.NewVecDense(n, nil)
	pv := mat.NewVecDense(n, nil)
	res.TrueValues = make([]float64, n)
	res.PredictedValues = make([]float64, n)
	for i := 0; i < n; i++ {
		yv.SetVec(i, yTest.At(i, 0))
		pv.SetVec(i, preds.At(i, 0))
		res.TrueValues[i] = yTest.At(i, 0)
		res.PredictedValues[i] = preds.At(i, 0)
	}

	var err error
	if res.MSE, err = metrics.MSE(yv, pv); err != nil {
		return err
	}
	if res.MAE, err = metrics.MAE(yv, pv); err != nil {
		return err
	}
	if res.R2, err = metrics.R2Score(yv, pv); err != nil {
		return err
	}
	return nil
}

// rankImportances pairs estimator importances with feature IDs, ranked
// best first.
func rankImportances(est model.Tunable, featureIDs []string) ([]FeatureImportance, error) {
	ranker, ok := est.(model.FeatureRanker)
	if !ok {
		return nil, errors.NewValueError("supervised.SplitOptimizeClassify",
			"estimator does not expose feature importances")
	}
	weights, err := ranker.FeatureImportances()
	if err != nil {
		return nil, err
	}
	if len(weights) != len(featureIDs) {
		return nil, errors.NewDimensionError("supervised.SplitOptimizeClassify",
			len(featureIDs), len(weights), 1)
	}

	out := make([]FeatureImportance, len(weights))
	for j, w := range weights {
		out[j] = FeatureImportance{FeatureID: featureIDs[j], Importance: w}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	return out, nil
}
