package metrics

import (
	"math"
	"strings"
	"testing"
)

func TestNewConfusionMatrix(t *testing.T) {
	tests := []struct {
		name     string
		yTrue    []string
		yPred    []string
		wantAcc  float64
		wantErr  bool
		counts   map[[2]string]int
		nClasses int
	}{
		{
			name:     "Perfect binary",
			yTrue:    []string{"healthy", "sick", "healthy", "sick"},
			yPred:    []string{"healthy", "sick", "healthy", "sick"},
			wantAcc:  1.0,
			nClasses: 2,
			counts: map[[2]string]int{
				{"healthy", "healthy"}: 2,
				{"sick", "sick"}:       2,
				{"healthy", "sick"}:    0,
			},
		},
		{
			name:     "One misclassification",
			yTrue:    []string{"a", "a", "b", "b"},
			yPred:    []string{"a", "b", "b", "b"},
			wantAcc:  0.75,
			nClasses: 2,
			counts: map[[2]string]int{
				{"a", "a"}: 1,
				{"a", "b"}: 1,
				{"b", "b"}: 2,
			},
		},
		{
			name:     "Predicted-only class appears in label set",
			yTrue:    []string{"a", "a", "a"},
			yPred:    []string{"a", "b", "a"},
			wantAcc:  2.0 / 3.0,
			nClasses: 2,
		},
		{
			name:    "Empty input",
			yTrue:   []string{},
			yPred:   []string{},
			wantErr: true,
		},
		{
			name:    "Length mismatch",
			yTrue:   []string{"a", "b"},
			yPred:   []string{"a"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cm, err := NewConfusionMatrix(tt.yTrue, tt.yPred)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewConfusionMatrix() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := cm.Accuracy(); math.Abs(got-tt.wantAcc) > 1e-9 {
				t.Errorf("Accuracy() = %v, want %v", got, tt.wantAcc)
			}
			if got := len(cm.Labels()); got != tt.nClasses {
				t.Errorf("len(Labels()) = %d, want %d", got, tt.nClasses)
			}
			if cm.Total() != len(tt.yTrue) {
				t.Errorf("Total() = %d, want %d", cm.Total(), len(tt.yTrue))
			}
			for pair, want := range tt.counts {
				if got := cm.Count(pair[0], pair[1]); got != want {
					t.Errorf("Count(%q, %q) = %d, want %d", pair[0], pair[1], got, want)
				}
			}
		})
	}
}

func TestConfusionMatrixString(t *testing.T) {
	cm, err := NewConfusionMatrix(
		[]string{"a", "b", "b"},
		[]string{"a", "b", "a"},
	)
	if err != nil {
		t.Fatalf("NewConfusionMatrix() error = %v", err)
	}

	s := cm.String()
	lines := strings.Split(s, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), s)
	}
	if lines[0] != "true\\predicted\ta\tb" {
		t.Errorf("unexpected header: %q", lines[0])
	}
	if lines[1] != "a\t1\t0" {
		t.Errorf("unexpected row for a: %q", lines[1])
	}
	if lines[2] != "b\t1\t1" {
		t.Errorf("unexpected row for b: %q", lines[2])
	}
}

func TestAccuracyScore(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []string
		yPred   []string
		want    float64
		wantErr bool
	}{
		{"Perfect", []string{"x", "y"}, []string{"x", "y"}, 1.0, false},
		{"Half", []string{"x", "y"}, []string{"x", "x"}, 0.5, false},
		{"Empty", nil, nil, 0, true},
		{"Mismatch", []string{"x"}, []string{"x", "y"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AccuracyScore(tt.yTrue, tt.yPred)
			if (err != nil) != tt.wantErr {
				t.Fatalf("AccuracyScore() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("AccuracyScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPrecisionRecallF1(t *testing.T) {
	// true: a a a b b, pred: a a b b b
	cm, err := NewConfusionMatrix(
		[]string{"a", "a", "a", "b", "b"},
		[]string{"a", "a", "b", "b", "b"},
	)
	if err != nil {
		t.Fatalf("NewConfusionMatrix() error = %v", err)
	}

	scores := cm.PrecisionRecallF1()
	if len(scores) != 2 {
		t.Fatalf("expected 2 class scores, got %d", len(scores))
	}

	a := scores[0]
	if a.Label != "a" || math.Abs(a.Precision-1.0) > 1e-9 || math.Abs(a.Recall-2.0/3.0) > 1e-9 {
		t.Errorf("class a scores wrong: %+v", a)
	}
	b := scores[1]
	if b.Label != "b" || math.Abs(b.Precision-2.0/3.0) > 1e-9 || math.Abs(b.Recall-1.0) > 1e-9 {
		t.Errorf("class b scores wrong: %+v", b)
	}
	if a.Support != 3 || b.Support != 2 {
		t.Errorf("supports wrong: a=%d b=%d", a.Support, b.Support)
	}

	macro := cm.MacroF1()
	wantF1 := 2 * 1.0 * (2.0 / 3.0) / (1.0 + 2.0/3.0) // same for both classes
	if math.Abs(macro-wantF1) > 1e-9 {
		t.Errorf("MacroF1() = %v, want %v", macro, wantF1)
	}
}
