package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otulearn/otulearn/pkg/errors"
	"github.com/otulearn/otulearn/supervised"
	"github.com/otulearn/otulearn/table"
)

type entryPoint func(outputDir string, t *table.FeatureTable, md *table.Metadata,
	category string, opts ...supervised.Option) (*supervised.Result, error)

var classifiers = map[string]entryPoint{
	"random-forest":     supervised.ClassifyRandomForest,
	"extra-trees":       supervised.ClassifyExtraTrees,
	"adaboost":          supervised.ClassifyAdaBoost,
	"gradient-boosting": supervised.ClassifyGradientBoosting,
	"linear-svc":        supervised.ClassifyLinearSVC,
	"svc":               supervised.ClassifySVC,
	"kneighbors":        supervised.ClassifyKNeighbors,
}

var regressors = map[string]entryPoint{
	"random-forest":     supervised.RegressRandomForest,
	"extra-trees":       supervised.RegressExtraTrees,
	"adaboost":          supervised.RegressAdaBoost,
	"gradient-boosting": supervised.RegressGradientBoosting,
	"svr":               supervised.RegressSVR,
	"ridge":             supervised.RegressRidge,
	"lasso":             supervised.RegressLasso,
	"elasticnet":        supervised.RegressElasticNet,
	"kneighbors":        supervised.RegressKNeighbors,
}

func estimatorNames(m map[string]entryPoint) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newClassifyCmd() *cobra.Command {
	return newTrainCmd("classify", "predict a categorical metadata column", classifiers)
}

func newRegressCmd() *cobra.Command {
	return newTrainCmd("regress", "predict a numeric metadata column", regressors)
}

func newTrainCmd(verb, short string, entries map[string]entryPoint) *cobra.Command {
	var fl = defaultRunConfig()
	var configPath string

	names := estimatorNames(entries)
	cmd := &cobra.Command{
		Use:       verb + " <" + strings.Join(names, "|") + ">",
		Short:     short,
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			run, ok := entries[args[0]]
			if !ok {
				return errors.Newf("otulearn %s: unknown estimator %q (one of %s)",
					verb, args[0], strings.Join(names, ", "))
			}
			cfg, err := resolveRunConfig(cmd, fl, configPath)
			if err != nil {
				return err
			}
			return runTraining(cmd, run, cfg)
		},
	}
	registerRunFlags(cmd, &fl, &configPath)
	return cmd
}

func runTraining(cmd *cobra.Command, run entryPoint, cfg runConfig) error {
	t, err := table.LoadBIOM(cfg.Table)
	if err != nil {
		return err
	}
	md, err := table.LoadMetadataTSV(cfg.Metadata)
	if err != nil {
		return err
	}

	res, err := run(cfg.OutputDir, t, md, cfg.Category, cfg.options()...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %s on %q (%d samples, %d features)\n",
		res.RunID, res.Estimator, res.Category, res.NSamples, res.NFeatures)
	if res.Classification {
		fmt.Fprintf(out, "test accuracy: %.4f\n", res.Accuracy)
	} else {
		fmt.Fprintf(out, "test MSE: %.4f  MAE: %.4f  R2: %.4f\n", res.MSE, res.MAE, res.R2)
	}
	if len(res.SelectedFeatures) > 0 {
		fmt.Fprintf(out, "selected features: %d\n", len(res.SelectedFeatures))
	}
	fmt.Fprintf(out, "report written to %s\n", cfg.OutputDir)

	if cfg.SaveModel != "" {
		if err := supervised.SaveEstimator(cfg.SaveModel, res.Trained); err != nil {
			return err
		}
		fmt.Fprintf(out, "model saved to %s\n", cfg.SaveModel)
	}
	return nil
}
