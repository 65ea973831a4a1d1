package tree

import (
	"fmt"

	"github.com/otulearn/otulearn/core/model"
	"github.com/otulearn/otulearn/pkg/errors"
)

// asMap renders the shared tree hyperparameters with sklearn-style
// snake_case keys. The criterion key is added by the classifier only.
func (p *treeParams) asMap() map[string]interface{} {
	return map[string]interface{}{
		"max_depth":                p.maxDepth,
		"min_samples_split":        p.minSamplesSplit,
		"min_samples_leaf":         p.minSamplesLeaf,
		"min_weight_fraction_leaf": p.minWeightFractionLeaf,
		"max_features":             p.maxFeatures,
		"random_state":             p.randomState,
		"splitter":                 p.splitterName(),
	}
}

func (p *treeParams) splitterName() string {
	if p.randomSplitter {
		return "random"
	}
	return "best"
}

// apply updates hyperparameters from a snake_case keyed map. Unknown
// keys produce a ValueError so search spaces fail loudly.
func (p *treeParams) apply(params map[string]interface{}, classifier bool) error {
	for key, value := range params {
		switch key {
		case "criterion":
			s, ok := model.CoerceString(value)
			if !ok || !classifier {
				return badParam(key, value)
			}
			p.criterion = s
		case "max_depth":
			v, ok := model.CoerceInt(value)
			if !ok {
				return badParam(key, value)
			}
			if v < 0 {
				v = 0
			}
			p.maxDepth = v
		case "min_samples_split":
			v, ok := model.CoerceFloat(value)
			if !ok {
				return badParam(key, value)
			}
			p.minSamplesSplit = v
		case "min_samples_leaf":
			v, ok := model.CoerceInt(value)
			if !ok {
				return badParam(key, value)
			}
			p.minSamplesLeaf = v
		case "min_weight_fraction_leaf":
			v, ok := model.CoerceFloat(value)
			if !ok {
				return badParam(key, value)
			}
			p.minWeightFractionLeaf = v
		case "max_features":
			fs, ok := value.(FeatureSubset)
			if !ok {
				return badParam(key, value)
			}
			p.maxFeatures = fs
		case "random_state":
			v, ok := model.CoerceInt(value)
			if !ok {
				return badParam(key, value)
			}
			p.randomState = int64(v)
		case "splitter":
			s, ok := model.CoerceString(value)
			if !ok || (s != "best" && s != "random") {
				return badParam(key, value)
			}
			p.randomSplitter = s == "random"
		default:
			return errors.NewValueError("tree.SetParams",
				fmt.Sprintf("unknown parameter %q", key))
		}
	}
	return nil
}

func badParam(key string, value interface{}) error {
	return errors.NewValidationError(key, "invalid parameter value", value)
}
