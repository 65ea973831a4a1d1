package supervised

import (
	"encoding/gob"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/core/model"
	"github.com/otulearn/otulearn/ensemble"
	"github.com/otulearn/otulearn/linear"
	"github.com/otulearn/otulearn/neighbors"
	"github.com/otulearn/otulearn/pkg/errors"
	"github.com/otulearn/otulearn/svm"
	"github.com/otulearn/otulearn/table"
	"github.com/otulearn/otulearn/tree"
)

// The gob registry covers every concrete estimator the catalog can
// produce, so a TrainedModel round-trips through an interface field.
func init() {
	gob.Register(&ensemble.RandomForestClassifier{})
	gob.Register(&ensemble.RandomForestRegressor{})
	gob.Register(&ensemble.ExtraTreesClassifier{})
	gob.Register(&ensemble.ExtraTreesRegressor{})
	gob.Register(&ensemble.AdaBoostClassifier{})
	gob.Register(&ensemble.AdaBoostRegressor{})
	gob.Register(&ensemble.GradientBoostingClassifier{})
	gob.Register(&ensemble.GradientBoostingRegressor{})
	gob.Register(&svm.LinearSVC{})
	gob.Register(&svm.SVC{})
	gob.Register(&svm.SVR{})
	gob.Register(&linear.Ridge{})
	gob.Register(&linear.Lasso{})
	gob.Register(&linear.ElasticNet{})
	gob.Register(&neighbors.KNeighborsClassifier{})
	gob.Register(&neighbors.KNeighborsRegressor{})
	gob.Register(&tree.DecisionTreeClassifier{})
	gob.Register(&tree.DecisionTreeRegressor{})
}

// TrainedModel bundles a fitted estimator with the context needed to
// apply it to new tables: the feature IDs it was trained on and, for
// classifiers, the label set that decodes class codes.
type TrainedModel struct {
	EstimatorName string
	FeatureIDs    []string

	// ClassLabels decode class codes by index; nil for regression.
	ClassLabels []string

	Estimator model.Tunable
}

func newTrainedModel(cfg PipelineConfig, est model.Tunable, featureIDs []string) *TrainedModel {
	tm := &TrainedModel{
		EstimatorName: cfg.EstimatorName,
		FeatureIDs:    append([]string(nil), featureIDs...),
		Estimator:     est,
	}
	if cfg.Encoder != nil {
		tm.ClassLabels = append([]string(nil), cfg.Encoder.Classes...)
	}
	return tm
}

// SaveEstimator writes a trained model to path with gob.
func SaveEstimator(path string, tm *TrainedModel) error {
	if tm == nil || tm.Estimator == nil {
		return errors.NewValueError("supervised.SaveEstimator", "nil trained model")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "supervised.SaveEstimator: creating %s", path)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(tm); err != nil {
		return errors.Wrapf(err, "supervised.SaveEstimator: encoding %s", path)
	}
	return nil
}

// LoadEstimator reads a trained model saved by SaveEstimator.
func LoadEstimator(path string) (*TrainedModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "supervised.LoadEstimator: opening %s", path)
	}
	defer f.Close()

	var tm TrainedModel
	if err := gob.NewDecoder(f).Decode(&tm); err != nil {
		return nil, errors.Wrapf(err, "supervised.LoadEstimator: decoding %s", path)
	}
	if tm.Estimator == nil || len(tm.FeatureIDs) == 0 {
		return nil, errors.NewValidationError("model", "incomplete trained model", path)
	}
	return &tm, nil
}

// Predictions holds per-sample predictions on a new table. Labels is
// populated for classifiers, Values always carries the raw outputs.
type Predictions struct {
	SampleIDs []string
	Labels    []string
	Values    []float64
}

// PredictNewData applies a trained model to a new feature table. The
// table's features are aligned to the model's training features by ID:
// missing features are zero-filled, extra features are dropped. An
// empty overlap is a validation error.
func PredictNewData(t *table.FeatureTable, tm *TrainedModel) (*Predictions, error) {
	if tm == nil || tm.Estimator == nil {
		return nil, errors.NewValueError("supervised.PredictNewData", "nil trained model")
	}

	row := make(map[string]int, len(t.FeatureIDs))
	for i, id := range t.FeatureIDs {
		row[id] = i
	}
	overlap := 0
	for _, id := range tm.FeatureIDs {
		if _, ok := row[id]; ok {
			overlap++
		}
	}
	if overlap == 0 {
		return nil, errors.NewValidationError("features",
			"the table shares no features with the trained model", tm.EstimatorName)
	}

	n := t.NSamples()
	X := mat.NewDense(n, len(tm.FeatureIDs), nil)
	for k, id := range tm.FeatureIDs {
		i, ok := row[id]
		if !ok {
			continue
		}
		for j := 0; j < n; j++ {
			X.Set(j, k, t.At(i, j))
		}
	}

	raw, err := tm.Estimator.Predict(X)
	if err != nil {
		return nil, err
	}

	out := &Predictions{SampleIDs: append([]string(nil), t.SampleIDs...)}
	out.Values = make([]float64, n)
	for j := 0; j < n; j++ {
		out.Values[j] = raw.At(j, 0)
	}
	if tm.ClassLabels != nil {
		out.Labels = make([]string, n)
		for j, v := range out.Values {
			code := int(v)
			if code < 0 || code >= len(tm.ClassLabels) {
				return nil, errors.NewValueError("supervised.PredictNewData",
					fmt.Sprintf("prediction %v is not a known class code", v))
			}
			out.Labels[j] = tm.ClassLabels[code]
		}
	}
	return out, nil
}
