package main

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/otulearn/otulearn/pkg/errors"
	"github.com/otulearn/otulearn/supervised"
)

// runConfig is the shared configuration for classify and regress runs.
// Every field maps to a flag and to a key in the optional YAML run
// config; explicit flags win over the file.
type runConfig struct {
	Table     string `yaml:"table"`
	Metadata  string `yaml:"metadata"`
	Category  string `yaml:"category"`
	OutputDir string `yaml:"output_dir"`

	TestSize    float64 `yaml:"test_size"`
	Step        float64 `yaml:"step"`
	CV          int     `yaml:"cv"`
	RandomState int64   `yaml:"random_state"`
	NJobs       int     `yaml:"n_jobs"`
	NEstimators int     `yaml:"n_estimators"`

	OptimizeFeatureSelection bool `yaml:"optimize_feature_selection"`
	ParameterTuning          bool `yaml:"parameter_tuning"`

	Kernel    string `yaml:"kernel"`
	Solver    string `yaml:"solver"`
	Algorithm string `yaml:"algorithm"`

	SaveModel string `yaml:"save_model"`
}

func defaultRunConfig() runConfig {
	return runConfig{
		TestSize:    0.2,
		Step:        0.05,
		CV:          5,
		NJobs:       1,
		NEstimators: 100,
		Kernel:      "rbf",
		Solver:      "auto",
		Algorithm:   "auto",
	}
}

// registerRunFlags binds the shared run flags to fl and returns the
// name of the config-file flag it also registers.
func registerRunFlags(cmd *cobra.Command, fl *runConfig, configPath *string) {
	f := cmd.Flags()
	f.StringVar(configPath, "config", "", "YAML run config; explicit flags override it")
	f.StringVar(&fl.Table, "table", "", "feature table (BIOM v1 JSON)")
	f.StringVar(&fl.Metadata, "metadata", "", "sample metadata TSV")
	f.StringVar(&fl.Category, "category", "", "metadata column to predict")
	f.StringVar(&fl.OutputDir, "output-dir", "", "directory for the run report")
	f.Float64Var(&fl.TestSize, "test-size", fl.TestSize, "held-out sample fraction")
	f.Float64Var(&fl.Step, "step", fl.Step, "feature fraction eliminated per round")
	f.IntVar(&fl.CV, "cv", fl.CV, "cross-validation folds")
	f.Int64Var(&fl.RandomState, "random-state", fl.RandomState, "random seed (0 uses the clock)")
	f.IntVar(&fl.NJobs, "n-jobs", fl.NJobs, "worker goroutines (<= 0 uses all CPUs)")
	f.IntVar(&fl.NEstimators, "n-estimators", fl.NEstimators, "ensemble size")
	f.BoolVar(&fl.OptimizeFeatureSelection, "optimize-feature-selection",
		fl.OptimizeFeatureSelection, "run recursive feature elimination")
	f.BoolVar(&fl.ParameterTuning, "parameter-tuning",
		fl.ParameterTuning, "run randomized hyperparameter search")
	f.StringVar(&fl.Kernel, "kernel", fl.Kernel, "SVC/SVR kernel")
	f.StringVar(&fl.Solver, "solver", fl.Solver, "ridge solver")
	f.StringVar(&fl.Algorithm, "algorithm", fl.Algorithm, "k-NN backend")
	f.StringVar(&fl.SaveModel, "save-model", "", "also save the trained model to this path")
}

// resolveRunConfig layers defaults, the YAML file and explicit flags,
// in that order of increasing precedence.
func resolveRunConfig(cmd *cobra.Command, fl runConfig, configPath string) (runConfig, error) {
	cfg := defaultRunConfig()
	if configPath != "" {
		raw, err := os.ReadFile(configPath)
		if err != nil {
			return cfg, errors.Wrapf(err, "otulearn: reading config %s", configPath)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "otulearn: parsing config %s", configPath)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("table") {
		cfg.Table = fl.Table
	}
	if flags.Changed("metadata") {
		cfg.Metadata = fl.Metadata
	}
	if flags.Changed("category") {
		cfg.Category = fl.Category
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = fl.OutputDir
	}
	if flags.Changed("test-size") {
		cfg.TestSize = fl.TestSize
	}
	if flags.Changed("step") {
		cfg.Step = fl.Step
	}
	if flags.Changed("cv") {
		cfg.CV = fl.CV
	}
	if flags.Changed("random-state") {
		cfg.RandomState = fl.RandomState
	}
	if flags.Changed("n-jobs") {
		cfg.NJobs = fl.NJobs
	}
	if flags.Changed("n-estimators") {
		cfg.NEstimators = fl.NEstimators
	}
	if flags.Changed("optimize-feature-selection") {
		cfg.OptimizeFeatureSelection = fl.OptimizeFeatureSelection
	}
	if flags.Changed("parameter-tuning") {
		cfg.ParameterTuning = fl.ParameterTuning
	}
	if flags.Changed("kernel") {
		cfg.Kernel = fl.Kernel
	}
	if flags.Changed("solver") {
		cfg.Solver = fl.Solver
	}
	if flags.Changed("algorithm") {
		cfg.Algorithm = fl.Algorithm
	}
	if flags.Changed("save-model") {
		cfg.SaveModel = fl.SaveModel
	}

	if cfg.Table == "" || cfg.Metadata == "" || cfg.Category == "" || cfg.OutputDir == "" {
		return cfg, errors.NewValueError("otulearn",
			"--table, --metadata, --category and --output-dir are required (flags or config file)")
	}
	return cfg, nil
}

func (c runConfig) options() []supervised.Option {
	return []supervised.Option{
		supervised.WithTestSize(c.TestSize),
		supervised.WithStep(c.Step),
		supervised.WithCV(c.CV),
		supervised.WithRandomState(c.RandomState),
		supervised.WithNJobs(c.NJobs),
		supervised.WithNEstimators(c.NEstimators),
		supervised.WithOptimizeFeatureSelection(c.OptimizeFeatureSelection),
		supervised.WithParameterTuning(c.ParameterTuning),
		supervised.WithKernel(c.Kernel),
		supervised.WithSolver(c.Solver),
		supervised.WithAlgorithm(c.Algorithm),
	}
}
