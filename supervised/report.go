package supervised

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/otulearn/otulearn/linear"
	"github.com/otulearn/otulearn/metrics"
	"github.com/otulearn/otulearn/modelselection"
	"github.com/otulearn/otulearn/pkg/errors"
)

// importanceBarLimit caps the bar chart; the TSV always carries the
// full ranking.
const importanceBarLimit = 20

// Visualize writes the human-readable report for a pipeline run into
// outputDir: an index.html summary, prediction and metric TSVs, and
// PNG plots.
func Visualize(outputDir string, res *Result) error {
	if res == nil {
		return errors.NewValueError("supervised.Visualize", "nil result")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return errors.Wrapf(err, "supervised.Visualize: creating %s", outputDir)
	}

	if err := writePredictionsTSV(outputDir, res); err != nil {
		return err
	}
	if res.Classification {
		if err := writeConfusionTSV(outputDir, res.Confusion); err != nil {
			return err
		}
		if err := plotConfusionHeatmap(outputDir, res.Confusion); err != nil {
			return err
		}
	} else {
		if err := writeRegressionMetricsTSV(outputDir, res); err != nil {
			return err
		}
		if err := plotRegressionScatter(outputDir, res); err != nil {
			return err
		}
	}
	if len(res.Importances) > 0 {
		if err := writeImportanceTSV(outputDir, res.Importances); err != nil {
			return err
		}
		if err := plotImportanceBars(outputDir, res.Importances); err != nil {
			return err
		}
	}
	return writeIndexHTML(outputDir, res)
}

// writeRFEReport records the elimination search: scores per stage and a
// feature-count versus score curve.
func writeRFEReport(outputDir string, scores []modelselection.StageScore) error {
	f, err := os.Create(filepath.Join(outputDir, "rfe_scores.tsv"))
	if err != nil {
		return errors.Wrap(err, "supervised: writing rfe_scores.tsv")
	}
	fmt.Fprintln(f, "n_features\tmean_cv_score")
	for _, s := range scores {
		fmt.Fprintf(f, "%d\t%g\n", s.NFeatures, s.MeanScore)
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "supervised: writing rfe_scores.tsv")
	}

	pts := make(plotter.XYs, len(scores))
	for i, s := range scores {
		pts[i].X = float64(s.NFeatures)
		pts[i].Y = s.MeanScore
	}
	p := plot.New()
	p.Title.Text = "Recursive feature elimination"
	p.X.Label.Text = "Features retained"
	p.Y.Label.Text = "Mean CV score"
	line, err := plotter.NewLine(pts)
	if err != nil {
		return errors.Wrap(err, "supervised: plotting rfe curve")
	}
	p.Add(line, plotter.NewGrid())
	return savePlot(p, outputDir, "rfe_plot.png")
}

func writePredictionsTSV(outputDir string, res *Result) error {
	f, err := os.Create(filepath.Join(outputDir, "predictions.tsv"))
	if err != nil {
		return errors.Wrap(err, "supervised: writing predictions.tsv")
	}
	defer f.Close()

	fmt.Fprintln(f, "sample_id\ttrue\tpredicted")
	if res.Classification {
		for i, id := range res.TestSampleIDs {
			fmt.Fprintf(f, "%s\t%s\t%s\n", id, res.TrueLabels[i], res.PredictedLabels[i])
		}
		return nil
	}
	for i, id := range res.TestSampleIDs {
		fmt.Fprintf(f, "%s\t%g\t%g\n", id, res.TrueValues[i], res.PredictedValues[i])
	}
	return nil
}

func writeConfusionTSV(outputDir string, cm *metrics.ConfusionMatrix) error {
	f, err := os.Create(filepath.Join(outputDir, "confusion_matrix.tsv"))
	if err != nil {
		return errors.Wrap(err, "supervised: writing confusion_matrix.tsv")
	}
	defer f.Close()

	labels := cm.Labels()
	fmt.Fprint(f, "true\\predicted")
	for _, l := range labels {
		fmt.Fprintf(f, "\t%s", l)
	}
	fmt.Fprintln(f)
	for _, row := range labels {
		fmt.Fprint(f, row)
		for _, col := range labels {
			fmt.Fprintf(f, "\t%d", cm.Count(row, col))
		}
		fmt.Fprintln(f)
	}
	return nil
}

// confusionGrid adapts a confusion matrix to the heatmap grid contract.
type confusionGrid struct {
	cm     *metrics.ConfusionMatrix
	labels []string
}

func (g confusionGrid) Dims() (int, int) { return len(g.labels), len(g.labels) }
func (g confusionGrid) X(c int) float64  { return float64(c) }
func (g confusionGrid) Y(r int) float64  { return float64(r) }
func (g confusionGrid) Z(c, r int) float64 {
	return float64(g.cm.Count(g.labels[r], g.labels[c]))
}

func plotConfusionHeatmap(outputDir string, cm *metrics.ConfusionMatrix) error {
	labels := cm.Labels()
	grid := confusionGrid{cm: cm, labels: labels}
	hm := plotter.NewHeatMap(grid, palette.Heat(12, 1))

	p := plot.New()
	p.Title.Text = "Confusion matrix"
	p.X.Label.Text = "Predicted"
	p.Y.Label.Text = "True"

	ticks := make([]plot.Tick, len(labels))
	for i, l := range labels {
		ticks[i] = plot.Tick{Value: float64(i), Label: l}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	p.Y.Tick.Marker = plot.ConstantTicks(ticks)
	p.Add(hm)
	return savePlot(p, outputDir, "confusion_matrix.png")
}

func writeRegressionMetricsTSV(outputDir string, res *Result) error {
	f, err := os.Create(filepath.Join(outputDir, "metrics.tsv"))
	if err != nil {
		return errors.Wrap(err, "supervised: writing metrics.tsv")
	}
	defer f.Close()
	fmt.Fprintln(f, "metric\tvalue")
	fmt.Fprintf(f, "mse\t%g\n", res.MSE)
	fmt.Fprintf(f, "mae\t%g\n", res.MAE)
	fmt.Fprintf(f, "r2\t%g\n", res.R2)
	return nil
}

// plotRegressionScatter draws predicted against true values with a
// least-squares fit line through the predictions.
func plotRegressionScatter(outputDir string, res *Result) error {
	n := len(res.TrueValues)
	if n == 0 {
		return nil
	}

	pts := make(plotter.XYs, n)
	lo, hi := res.TrueValues[0], res.TrueValues[0]
	for i := range pts {
		pts[i].X = res.TrueValues[i]
		pts[i].Y = res.PredictedValues[i]
		if res.TrueValues[i] < lo {
			lo = res.TrueValues[i]
		}
		if res.TrueValues[i] > hi {
			hi = res.TrueValues[i]
		}
	}

	p := plot.New()
	p.Title.Text = "Predicted vs. true"
	p.X.Label.Text = "True value"
	p.Y.Label.Text = "Predicted value"
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "supervised: plotting scatter")
	}
	p.Add(scatter, plotter.NewGrid())

	if n >= 2 && hi > lo {
		X := mat.NewDense(n, 1, append([]float64(nil), res.TrueValues...))
		y := mat.NewDense(n, 1, append([]float64(nil), res.PredictedValues...))
		lr := linear.NewLinearRegression()
		if err := lr.Fit(X, y); err == nil {
			ends := mat.NewDense(2, 1, []float64{lo, hi})
			fit, err := lr.Predict(ends)
			if err == nil {
				line, err := plotter.NewLine(plotter.XYs{
					{X: lo, Y: fit.At(0, 0)},
					{X: hi, Y: fit.At(1, 0)},
				})
				if err == nil {
					p.Add(line)
				}
			}
		}
	}
	return savePlot(p, outputDir, "scatter.png")
}

func writeImportanceTSV(outputDir string, imps []FeatureImportance) error {
	f, err := os.Create(filepath.Join(outputDir, "feature_importance.tsv"))
	if err != nil {
		return errors.Wrap(err, "supervised: writing feature_importance.tsv")
	}
	defer f.Close()
	fmt.Fprintln(f, "feature_id\timportance")
	for _, fi := range imps {
		fmt.Fprintf(f, "%s\t%g\n", fi.FeatureID, fi.Importance)
	}
	return nil
}

func plotImportanceBars(outputDir string, imps []FeatureImportance) error {
	top := imps
	if len(top) > importanceBarLimit {
		top = top[:importanceBarLimit]
	}

	values := make(plotter.Values, len(top))
	names := make([]string, len(top))
	for i, fi := range top {
		values[i] = fi.Importance
		names[i] = fi.FeatureID
	}

	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return errors.Wrap(err, "supervised: plotting importances")
	}
	p := plot.New()
	p.Title.Text = "Top feature importances"
	p.Y.Label.Text = "Importance"
	p.Add(bars)
	p.NominalX(names...)
	return savePlot(p, outputDir, "feature_importance.png")
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Estimator}} report</title></head>
<body>
<h1>{{.Estimator}}</h1>
<p>Run {{.RunID}} &mdash; category <b>{{.Category}}</b>,
{{.NSamples}} samples &times; {{.NFeatures}} features,
finished in {{.Elapsed}}.</p>

{{if .Classification}}
<h2>Classification results</h2>
<p>Held-out accuracy: <b>{{printf "%.4f" .Accuracy}}</b></p>
<p>See <a href="confusion_matrix.tsv">confusion_matrix.tsv</a> and
<a href="confusion_matrix.png">the heatmap</a>.</p>
{{else}}
<h2>Regression results</h2>
<table border="1" cellpadding="4">
<tr><th>MSE</th><th>MAE</th><th>R&sup2;</th></tr>
<tr><td>{{printf "%.6g" .MSE}}</td><td>{{printf "%.6g" .MAE}}</td><td>{{printf "%.4f" .R2}}</td></tr>
</table>
<p>See <a href="scatter.png">predicted vs. true</a>.</p>
{{end}}

<h2>Parameters</h2>
<table border="1" cellpadding="4">
<tr><th>Parameter</th><th>Value</th></tr>
{{range .ParamRows}}<tr><td>{{.Key}}</td><td>{{.Value}}</td></tr>
{{end}}</table>

{{if .Importances}}
<h2>Top features</h2>
<table border="1" cellpadding="4">
<tr><th>Feature</th><th>Importance</th></tr>
{{range .TopImportances}}<tr><td>{{.FeatureID}}</td><td>{{printf "%.6g" .Importance}}</td></tr>
{{end}}</table>
<p>Full ranking in <a href="feature_importance.tsv">feature_importance.tsv</a>.</p>
{{end}}

{{if .RFEScores}}
<h2>Feature elimination</h2>
<p>{{len .SelectedFeatures}} features retained; see
<a href="rfe_scores.tsv">rfe_scores.tsv</a> and
<a href="rfe_plot.png">the curve</a>.</p>
{{end}}

<p>Per-sample predictions in <a href="predictions.tsv">predictions.tsv</a>.</p>
</body>
</html>
`))

type paramRow struct {
	Key   string
	Value interface{}
}

type indexData struct {
	*Result
	ParamRows      []paramRow
	TopImportances []FeatureImportance
}

func writeIndexHTML(outputDir string, res *Result) error {
	keys := make([]string, 0, len(res.Params))
	for k := range res.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([]paramRow, len(keys))
	for i, k := range keys {
		rows[i] = paramRow{Key: k, Value: res.Params[k]}
	}

	top := res.Importances
	if len(top) > importanceBarLimit {
		top = top[:importanceBarLimit]
	}

	f, err := os.Create(filepath.Join(outputDir, "index.html"))
	if err != nil {
		return errors.Wrap(err, "supervised: writing index.html")
	}
	defer f.Close()
	if err := indexTemplate.Execute(f, indexData{Result: res, ParamRows: rows, TopImportances: top}); err != nil {
		return errors.Wrap(err, "supervised: rendering index.html")
	}
	return nil
}

func savePlot(p *plot.Plot, outputDir, name string) error {
	if err := p.Save(6*vg.Inch, 4*vg.Inch, filepath.Join(outputDir, name)); err != nil {
		return errors.Wrapf(err, "supervised: saving %s", name)
	}
	return nil
}
