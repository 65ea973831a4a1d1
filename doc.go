// Package otulearn provides supervised learning on microbiome feature
// tables: classifiers and regressors that predict sample metadata
// categories from BIOM-style OTU abundance tables.
//
// The supervised package is the main entry point. Each of its catalog
// functions runs the same pipeline: align a feature table with sample
// metadata, hold out a stratified test split, optionally eliminate
// uninformative features by recursive cross-validated elimination,
// optionally tune hyperparameters by randomized search, fit, score on
// the held-out samples and write a report directory with plots.
//
//	t, _ := table.LoadBIOM("table.tsv")
//	md, _ := table.LoadMetadataTSV("metadata.tsv")
//
//	res, err := supervised.ClassifyRandomForest("out/", t, md, "bodysite",
//	    supervised.WithOptimizeFeatureSelection(true),
//	    supervised.WithParameterTuning(true),
//	    supervised.WithRandomState(42),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("accuracy %.3f\n", res.Accuracy)
//
// # Packages
//
//   - supervised: the entry-point catalog, shared pipeline, persistence
//   - table: BIOM feature tables and sample metadata TSV
//   - modelselection: splits, cross-validation, randomized search, RFE
//   - ensemble: random forests, extra trees, AdaBoost, gradient boosting
//   - tree: decision trees underlying the ensembles
//   - svm, linear, neighbors: the remaining estimator families
//   - metrics: accuracy, confusion matrices, regression metrics
//   - preprocessing: label encoding and scaling
//   - core/model, core/parallel, pkg/errors, pkg/log: shared plumbing
//
// Trained models round-trip through supervised.SaveEstimator and
// supervised.LoadEstimator, and apply to new tables with
// supervised.PredictNewData, which aligns features by ID.
//
// The otulearn command under cmd/otulearn exposes the catalog on the
// command line.
package otulearn
