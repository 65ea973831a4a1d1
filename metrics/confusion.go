package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/otulearn/otulearn/pkg/errors"
)

// ConfusionMatrix holds classification counts indexed by string class
// labels. Rows are true labels, columns predicted labels, both in the
// same sorted order.
type ConfusionMatrix struct {
	labels []string
	index  map[string]int
	counts [][]int
	total  int
}

// NewConfusionMatrix builds a confusion matrix from true and predicted
// labels. The label set is the union of both slices, sorted.
func NewConfusionMatrix(yTrue, yPred []string) (*ConfusionMatrix, error) {
	if len(yTrue) == 0 {
		return nil, errors.NewValueError("NewConfusionMatrix", "empty label slice")
	}
	if len(yTrue) != len(yPred) {
		return nil, errors.NewDimensionError("NewConfusionMatrix", len(yTrue), len(yPred), 0)
	}

	seen := make(map[string]bool)
	for _, l := range yTrue {
		seen[l] = true
	}
	for _, l := range yPred {
		seen[l] = true
	}
	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	index := make(map[string]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}

	counts := make([][]int, len(labels))
	for i := range counts {
		counts[i] = make([]int, len(labels))
	}
	for i := range yTrue {
		counts[index[yTrue[i]]][index[yPred[i]]]++
	}

	return &ConfusionMatrix{
		labels: labels,
		index:  index,
		counts: counts,
		total:  len(yTrue),
	}, nil
}

// Labels returns the ordered class labels.
func (cm *ConfusionMatrix) Labels() []string {
	out := make([]string, len(cm.labels))
	copy(out, cm.labels)
	return out
}

// Count returns the number of samples with the given true and predicted
// labels. Unknown labels count as zero.
func (cm *ConfusionMatrix) Count(trueLabel, predLabel string) int {
	i, ok := cm.index[trueLabel]
	if !ok {
		return 0
	}
	j, ok := cm.index[predLabel]
	if !ok {
		return 0
	}
	return cm.counts[i][j]
}

// Total returns the number of samples the matrix was built from.
func (cm *ConfusionMatrix) Total() int {
	return cm.total
}

// Accuracy returns the fraction of samples on the matrix diagonal.
func (cm *ConfusionMatrix) Accuracy() float64 {
	if cm.total == 0 {
		return 0
	}
	correct := 0
	for i := range cm.counts {
		correct += cm.counts[i][i]
	}
	return float64(correct) / float64(cm.total)
}

// String renders the matrix as a TSV block with a header row of
// predicted labels, suitable for writing into a report.
func (cm *ConfusionMatrix) String() string {
	var b strings.Builder
	b.WriteString("true\\predicted")
	for _, l := range cm.labels {
		b.WriteByte('\t')
		b.WriteString(l)
	}
	b.WriteByte('\n')
	for i, l := range cm.labels {
		b.WriteString(l)
		for j := range cm.labels {
			fmt.Fprintf(&b, "\t%d", cm.counts[i][j])
		}
		if i < len(cm.labels)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// AccuracyScore は文字列ラベル同士の正解率を計算する
func AccuracyScore(yTrue, yPred []string) (float64, error) {
	if len(yTrue) == 0 {
		return 0, errors.NewValueError("AccuracyScore", "empty label slice")
	}
	if len(yTrue) != len(yPred) {
		return 0, errors.NewDimensionError("AccuracyScore", len(yTrue), len(yPred), 0)
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}

// ClassScores holds per-class precision, recall and F1.
type ClassScores struct {
	Label     string
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// PrecisionRecallF1 computes per-class scores from the confusion matrix.
// Classes with no predicted samples get precision 0 (an
// UndefinedMetricWarning is emitted), mirroring the recall convention
// for classes with no true samples.
func (cm *ConfusionMatrix) PrecisionRecallF1() []ClassScores {
	out := make([]ClassScores, len(cm.labels))
	for i, label := range cm.labels {
		tp := cm.counts[i][i]
		truePos := 0
		predPos := 0
		for j := range cm.labels {
			truePos += cm.counts[i][j]
			predPos += cm.counts[j][i]
		}

		var precision, recall float64
		if predPos == 0 {
			errors.Warn(errors.NewUndefinedMetricWarning(
				"precision", fmt.Sprintf("no predicted samples for class %q", label), 0))
		} else {
			precision = float64(tp) / float64(predPos)
		}
		if truePos == 0 {
			errors.Warn(errors.NewUndefinedMetricWarning(
				"recall", fmt.Sprintf("no true samples for class %q", label), 0))
		} else {
			recall = float64(tp) / float64(truePos)
		}

		f1 := 0.0
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		out[i] = ClassScores{
			Label:     label,
			Precision: precision,
			Recall:    recall,
			F1:        f1,
			Support:   truePos,
		}
	}
	return out
}

// MacroF1 returns the unweighted mean of per-class F1 scores.
func (cm *ConfusionMatrix) MacroF1() float64 {
	scores := cm.PrecisionRecallF1()
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s.F1
	}
	return sum / float64(len(scores))
}
