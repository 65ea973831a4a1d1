package svm

import (
	"bytes"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/core/model"
)

// margins returns a linearly separable two-class sample.
func margins() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(12, 2, []float64{
		-3.0, 0.2, -2.5, -0.4, -2.0, 0.9, -1.8, -0.1, -2.7, 0.5, -2.2, -0.8,
		2.1, 0.3, 2.6, -0.2, 3.0, 0.7, 1.9, -0.6, 2.4, 0.1, 2.8, -0.9,
	})
	y := mat.NewDense(12, 1, []float64{0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1})
	return X, y
}

// ring returns a radially separable sample that a linear classifier
// cannot split.
func ring() (*mat.Dense, *mat.Dense) {
	inner := [][2]float64{{0.3, 0}, {-0.3, 0}, {0, 0.3}, {0, -0.3}, {0.2, 0.2}, {-0.2, -0.2}}
	outer := [][2]float64{{3, 0}, {-3, 0}, {0, 3}, {0, -3}, {2.2, 2.2}, {-2.2, -2.2}}
	X := mat.NewDense(12, 2, nil)
	y := mat.NewDense(12, 1, nil)
	for i, p := range inner {
		X.Set(i, 0, p[0])
		X.Set(i, 1, p[1])
		y.Set(i, 0, 0)
	}
	for i, p := range outer {
		X.Set(6+i, 0, p[0])
		X.Set(6+i, 1, p[1])
		y.Set(6+i, 0, 1)
	}
	return X, y
}

func TestLinearSVC(t *testing.T) {
	X, y := margins()

	clf := NewLinearSVC().WithRandomState(42)
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	score, err := clf.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if score != 1.0 {
		t.Errorf("training accuracy = %v, want 1.0", score)
	}

	coef, err := clf.Coef()
	if err != nil {
		t.Fatalf("Coef failed: %v", err)
	}
	if len(coef) != 1 || len(coef[0]) != 2 {
		t.Fatalf("coef shape = %dx%d, want 1x2", len(coef), len(coef[0]))
	}
	// The first feature separates the classes, so it must dominate.
	if math.Abs(coef[0][0]) <= math.Abs(coef[0][1]) {
		t.Errorf("expected the separating feature to dominate: %v", coef[0])
	}

	imp, err := clf.FeatureImportances()
	if err != nil {
		t.Fatalf("FeatureImportances failed: %v", err)
	}
	if imp[0] <= imp[1] {
		t.Errorf("importances = %v, want first feature dominant", imp)
	}
}

func TestLinearSVCMulticlass(t *testing.T) {
	X := mat.NewDense(9, 1, []float64{-5, -4.5, -4, 0, 0.3, -0.3, 4, 4.5, 5})
	y := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})

	clf := NewLinearSVC().WithRandomState(7)
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if len(clf.Classes()) != 3 {
		t.Fatalf("Classes() = %v, want 3 classes", clf.Classes())
	}
	// One weight vector per class in the one-vs-rest scheme.
	if len(clf.Weights) != 3 {
		t.Errorf("got %d weight vectors, want 3", len(clf.Weights))
	}

	pred, err := clf.Predict(X)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	// The extreme groups are linearly separable from the rest and
	// must be recovered; the middle class is the hard one.
	for _, i := range []int{0, 1, 2, 6, 7, 8} {
		if pred.At(i, 0) != y.At(i, 0) {
			t.Errorf("sample %d: predicted %v, want %v", i, pred.At(i, 0), y.At(i, 0))
		}
	}
}

func TestLinearSVCLossValidation(t *testing.T) {
	X, y := margins()
	clf := NewLinearSVC().WithLoss("log")
	if err := clf.Fit(X, y); err == nil {
		t.Error("expected error for unsupported loss")
	}
}

func TestLinearSVCParams(t *testing.T) {
	clf := NewLinearSVC()
	params := clf.GetParams()
	if params["C"] != 1.0 || params["loss"] != "squared_hinge" {
		t.Errorf("unexpected defaults: %v", params)
	}

	err := clf.SetParams(map[string]interface{}{
		"C":    10.0,
		"loss": "hinge",
		"tol":  1e-3,
	})
	if err != nil {
		t.Fatalf("SetParams failed: %v", err)
	}
	params = clf.GetParams()
	if params["C"] != 10.0 || params["loss"] != "hinge" {
		t.Errorf("params not applied: %v", params)
	}

	if err := clf.SetParams(map[string]interface{}{"C": -1.0}); err == nil {
		t.Error("expected error for non-positive C")
	}
	if err := clf.SetParams(map[string]interface{}{"no_such": 1}); err == nil {
		t.Error("expected error for unknown parameter")
	}
}

func TestLinearSVR(t *testing.T) {
	// y = 2x + 1 with a little slack.
	xs := []float64{-3, -2, -1, 0, 1, 2, 3, 4}
	X := mat.NewDense(len(xs), 1, xs)
	y := mat.NewDense(len(xs), 1, nil)
	for i, v := range xs {
		y.Set(i, 0, 2*v+1)
	}

	reg := NewLinearSVR().WithRandomState(3).WithEpsilon(0.05)
	if err := reg.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	r2, err := reg.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if r2 < 0.95 {
		t.Errorf("training R^2 = %v, want >= 0.95", r2)
	}
}

func TestSVCRBF(t *testing.T) {
	X, y := ring()

	clf := NewSVC().WithRandomState(11).WithC(10)
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	score, err := clf.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if score < 0.9 {
		t.Errorf("training accuracy = %v, want >= 0.9", score)
	}

	// Nonlinear kernels expose no per-feature weights.
	if _, err := clf.FeatureImportances(); err == nil {
		t.Error("expected error for importances with the rbf kernel")
	}
}

func TestSVCLinearKernel(t *testing.T) {
	X, y := margins()

	clf := NewSVC().WithKernel(KernelLinear).WithRandomState(5)
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	score, err := clf.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if score < 0.9 {
		t.Errorf("training accuracy = %v, want >= 0.9", score)
	}

	imp, err := clf.FeatureImportances()
	if err != nil {
		t.Fatalf("FeatureImportances failed: %v", err)
	}
	if len(imp) != 2 {
		t.Fatalf("importance length = %d, want 2", len(imp))
	}
}

func TestSVCUnsupportedKernel(t *testing.T) {
	X, y := margins()
	clf := NewSVC().WithKernel("laplacian")
	if err := clf.Fit(X, y); err == nil {
		t.Error("expected error for unsupported kernel")
	}
}

func TestSVCGammaParam(t *testing.T) {
	clf := NewSVC()
	if clf.GetParams()["gamma"] != "scale" {
		t.Errorf("default gamma = %v, want scale", clf.GetParams()["gamma"])
	}

	if err := clf.SetParams(map[string]interface{}{"gamma": 0.5}); err != nil {
		t.Fatalf("SetParams failed: %v", err)
	}
	if clf.GetParams()["gamma"] != 0.5 {
		t.Errorf("gamma = %v, want 0.5", clf.GetParams()["gamma"])
	}

	if err := clf.SetParams(map[string]interface{}{"gamma": "huge"}); err == nil {
		t.Error("expected error for invalid gamma string")
	}
	if err := clf.SetParams(map[string]interface{}{"gamma": -0.1}); err == nil {
		t.Error("expected error for negative gamma")
	}
}

func TestSVR(t *testing.T) {
	// Smooth nonlinear target.
	xs := []float64{-3, -2.2, -1.5, -0.7, 0, 0.7, 1.5, 2.2, 3}
	X := mat.NewDense(len(xs), 1, xs)
	y := mat.NewDense(len(xs), 1, nil)
	for i, v := range xs {
		y.Set(i, 0, math.Sin(v))
	}

	reg := NewSVR().WithRandomState(9).WithC(10).WithEpsilon(0.01)
	if err := reg.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	pred, err := reg.Predict(X)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	mse := 0.0
	for i := range xs {
		d := pred.At(i, 0) - y.At(i, 0)
		mse += d * d
	}
	mse /= float64(len(xs))
	if mse > 0.1 {
		t.Errorf("training MSE = %v, want <= 0.1", mse)
	}

	if reg.GetParams()["epsilon"] != 0.01 {
		t.Errorf("epsilon = %v, want 0.01", reg.GetParams()["epsilon"])
	}
}

func TestSVCGobRoundTrip(t *testing.T) {
	X, y := ring()
	clf := NewSVC().WithRandomState(17).WithC(10)
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	want, err := clf.Predict(X)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	var buf bytes.Buffer
	if err := model.SaveModelToWriter(clf, &buf); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded := NewSVC()
	if err := model.LoadModelFromReader(loaded, &buf); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	got, err := loaded.Predict(X)
	if err != nil {
		t.Fatalf("Predict after load failed: %v", err)
	}
	n, _ := X.Dims()
	for i := 0; i < n; i++ {
		if got.At(i, 0) != want.At(i, 0) {
			t.Errorf("sample %d: loaded model predicts %v, want %v", i, got.At(i, 0), want.At(i, 0))
		}
	}
}

func TestCloneBlank(t *testing.T) {
	clf := NewSVC().WithC(5).WithKernel(KernelPoly)
	clone := clf.CloneBlank().(*SVC)
	if clone.IsFitted() {
		t.Error("clone should be unfitted")
	}
	if clone.GetParams()["C"] != 5.0 || clone.GetParams()["kernel"] != KernelPoly {
		t.Errorf("clone lost hyperparameters: %v", clone.GetParams())
	}
}
