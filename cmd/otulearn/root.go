package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/otulearn/otulearn/pkg/errors"
	"github.com/otulearn/otulearn/pkg/log"
)

var logLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "otulearn",
		Short: "supervised learning on microbiome feature tables",
		Long: `otulearn trains classifiers and regressors on BIOM-style feature
tables against sample metadata, with optional recursive feature
elimination and randomized hyperparameter search, and writes a
per-run report directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !logLevels[logLevel] {
				return errors.NewValueError("otulearn",
					"log level must be one of debug, info, warn, error")
			}
			log.SetupLogger(logLevel)
			zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				With().Timestamp().Logger()
			log.RouteWarningsToZerolog(zl)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")

	root.AddCommand(newClassifyCmd())
	root.AddCommand(newRegressCmd())
	root.AddCommand(newPredictCmd())
	return root
}
