package preprocessing

import (
	"testing"
)

func TestLabelEncoder_FitTransform(t *testing.T) {
	le := NewLabelEncoder()

	labels := []string{"sick", "healthy", "sick", "healthy", "healthy"}
	codes, err := le.FitTransform(labels)
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}

	// Sorted label order: healthy=0, sick=1
	want := []float64{1, 0, 1, 0, 0}
	for i, w := range want {
		if codes.AtVec(i) != w {
			t.Errorf("code[%d] = %v, want %v", i, codes.AtVec(i), w)
		}
	}

	if len(le.Classes) != 2 || le.Classes[0] != "healthy" || le.Classes[1] != "sick" {
		t.Errorf("Classes = %v, want [healthy sick]", le.Classes)
	}
}

func TestLabelEncoder_InverseTransform(t *testing.T) {
	le := NewLabelEncoder()
	if _, err := le.FitTransform([]string{"a", "b", "c"}); err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}

	decoded, err := le.InverseTransform([]float64{2, 0, 1})
	if err != nil {
		t.Fatalf("InverseTransform() error = %v", err)
	}
	want := []string{"c", "a", "b"}
	for i := range want {
		if decoded[i] != want[i] {
			t.Errorf("decoded[%d] = %q, want %q", i, decoded[i], want[i])
		}
	}

	if _, err := le.InverseTransform([]float64{5}); err == nil {
		t.Error("expected error for out-of-range code")
	}
}

func TestLabelEncoder_Errors(t *testing.T) {
	le := NewLabelEncoder()

	if _, err := le.Transform([]string{"a"}); err == nil {
		t.Error("expected not-fitted error from Transform")
	}
	if err := le.Fit(nil); err == nil {
		t.Error("expected error fitting empty labels")
	}

	if err := le.Fit([]string{"a", "b"}); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if _, err := le.Transform([]string{"z"}); err == nil {
		t.Error("expected error for unseen label")
	}
}
