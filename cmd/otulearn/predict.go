package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otulearn/otulearn/pkg/errors"
	"github.com/otulearn/otulearn/supervised"
	"github.com/otulearn/otulearn/table"
)

func newPredictCmd() *cobra.Command {
	var (
		tablePath string
		modelPath string
		outputDir string
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "apply a saved model to a new feature table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if tablePath == "" || modelPath == "" || outputDir == "" {
				return errors.NewValueError("otulearn predict",
					"--table, --model and --output-dir are required")
			}

			t, err := table.LoadBIOM(tablePath)
			if err != nil {
				return err
			}
			tm, err := supervised.LoadEstimator(modelPath)
			if err != nil {
				return err
			}
			preds, err := supervised.PredictNewData(t, tm)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return errors.Wrapf(err, "otulearn predict: creating %s", outputDir)
			}
			path := filepath.Join(outputDir, "predictions.tsv")
			if err := writePredictions(path, preds); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d predictions written to %s\n",
				tm.EstimatorName, len(preds.SampleIDs), path)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&tablePath, "table", "", "feature table (BIOM v1 JSON)")
	f.StringVar(&modelPath, "model", "", "model saved with --save-model")
	f.StringVar(&outputDir, "output-dir", "", "directory for predictions.tsv")
	return cmd
}

func writePredictions(path string, preds *supervised.Predictions) error {
	var b strings.Builder
	b.WriteString("sample-id\tprediction\n")
	for i, id := range preds.SampleIDs {
		b.WriteString(id)
		b.WriteByte('\t')
		if preds.Labels != nil {
			b.WriteString(preds.Labels[i])
		} else {
			b.WriteString(strconv.FormatFloat(preds.Values[i], 'g', -1, 64))
		}
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return errors.Wrapf(err, "otulearn predict: writing %s", path)
	}
	return nil
}
