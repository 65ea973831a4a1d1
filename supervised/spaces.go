package supervised

import (
	"github.com/otulearn/otulearn/modelselection"
	"github.com/otulearn/otulearn/tree"
)

// ensembleSpace is the search space shared by the tree ensembles.
// Classifier variants add the split criterion; boosting variants drop
// bootstrap (they never bag).
func ensembleSpace(classifier, bootstrap bool) modelselection.ParamSpace {
	space := modelselection.ParamSpace{
		// 0 grows unbounded trees.
		"max_depth": modelselection.Choice(4, 8, 16, 0),
		"max_features": modelselection.Choice(
			tree.AllFeatures(),
			tree.SqrtFeatures(),
			tree.Log2Features(),
			tree.FeatureFraction(0.1),
		),
		"min_samples_split":        modelselection.Choice(0.001, 0.01, 0.1),
		"min_weight_fraction_leaf": modelselection.Choice(0.0001, 0.001, 0.01),
	}
	if bootstrap {
		space["bootstrap"] = modelselection.Choice(true, false)
	}
	if classifier {
		space["criterion"] = modelselection.Choice("gini", "entropy")
	}
	return space
}

// baseTreeSpace tunes the AdaBoost base tree: the shared tree knobs
// without bootstrap, which a single tree does not accept, and without
// criterion, which the booster's tree keeps at its default.
func baseTreeSpace() modelselection.ParamSpace {
	return ensembleSpace(false, false)
}

// linearSVMSpace is the LinearSVC search space.
func linearSVMSpace() modelselection.ParamSpace {
	return modelselection.ParamSpace{
		"C":    modelselection.Choice(1.0, 0.5, 0.1, 0.9, 0.8),
		"loss": modelselection.Choice("hinge", "squared_hinge"),
		"tol":  modelselection.Choice(1e-5, 1e-4, 1e-3),
	}
}

// svmSpace is the kernel SVC/SVR search space; SVR adds the insensitive
// band width.
func svmSpace(withEpsilon bool) modelselection.ParamSpace {
	space := modelselection.ParamSpace{
		"C":     modelselection.Choice(1.0, 0.5, 0.1, 0.9, 0.8),
		"tol":   modelselection.Choice(1e-5, 1e-4, 1e-3, 1e-2),
		"gamma": modelselection.Choice("scale", 0.001, 0.01, 0.1, 1.0),
	}
	if withEpsilon {
		space["epsilon"] = modelselection.Choice(0.0, 0.1)
	}
	return space
}

// neighborsSpace is the k-NN search space.
func neighborsSpace() modelselection.ParamSpace {
	return modelselection.ParamSpace{
		"n_neighbors": modelselection.IntRange(2, 15),
		"weights":     modelselection.Choice("uniform", "distance"),
		"p":           modelselection.Choice(1.0, 2.0),
	}
}

// linearSpace is the Ridge/Lasso/ElasticNet search space.
func linearSpace() modelselection.ParamSpace {
	return modelselection.ParamSpace{
		"alpha": modelselection.Choice(0.0001, 0.01, 1.0, 10.0, 1000.0),
		"tol":   modelselection.Choice(1e-5, 1e-4, 1e-3, 1e-2),
	}
}
