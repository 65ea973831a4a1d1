package linear

import (
	"bytes"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// planeData returns samples of y = 3*x1 - 2*x2 + 1.
func planeData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		-2, -1, -1, 1, 0, -2, 1, 2,
		2, 0, 3, -1, -3, 2, 0.5, 0.5,
	})
	y := mat.NewDense(8, 1, nil)
	for i := 0; i < 8; i++ {
		y.Set(i, 0, 3*X.At(i, 0)-2*X.At(i, 1)+1)
	}
	return X, y
}

func TestRidgeSolvers(t *testing.T) {
	X, y := planeData()

	for _, solver := range []string{SolverAuto, SolverCholesky, SolverSVD} {
		t.Run(solver, func(t *testing.T) {
			m := NewRidge().WithAlpha(0.01).WithSolver(solver)
			if err := m.Fit(X, y); err != nil {
				t.Fatalf("Fit failed: %v", err)
			}

			coefs, err := m.Coef()
			if err != nil {
				t.Fatalf("Coef failed: %v", err)
			}
			if math.Abs(coefs[0]-3) > 0.1 || math.Abs(coefs[1]+2) > 0.1 {
				t.Errorf("coefs = %v, want approx [3 -2]", coefs)
			}
			if math.Abs(m.Intercept-1) > 0.1 {
				t.Errorf("intercept = %v, want approx 1", m.Intercept)
			}

			r2, err := m.Score(X, y)
			if err != nil {
				t.Fatalf("Score failed: %v", err)
			}
			if r2 < 0.99 {
				t.Errorf("R^2 = %v, want >= 0.99", r2)
			}
		})
	}
}

func TestRidgeUnknownSolver(t *testing.T) {
	X, y := planeData()
	m := NewRidge().WithSolver("sag")
	if err := m.Fit(X, y); err == nil {
		t.Error("expected error for unknown solver")
	}
}

func TestRidgeShrinkage(t *testing.T) {
	X, y := planeData()

	weak := NewRidge().WithAlpha(0.01)
	strong := NewRidge().WithAlpha(100)
	if err := weak.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if err := strong.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	// Heavier regularization must shrink the coefficients.
	if math.Abs(strong.Coefs[0]) >= math.Abs(weak.Coefs[0]) {
		t.Errorf("alpha=100 coef %v not smaller than alpha=0.01 coef %v",
			strong.Coefs[0], weak.Coefs[0])
	}
}

func TestLassoSparsity(t *testing.T) {
	// y depends on the first feature only; the second is small noise
	// that the L1 penalty should zero out.
	X := mat.NewDense(8, 2, []float64{
		-3, 0.1, -2, -0.2, -1, 0.15, 0, -0.05,
		1, 0.2, 2, -0.15, 3, 0.05, 4, -0.1,
	})
	y := mat.NewDense(8, 1, nil)
	for i := 0; i < 8; i++ {
		y.Set(i, 0, 2*X.At(i, 0))
	}

	m := NewLasso().WithAlpha(0.5)
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if m.Coefs[1] != 0 {
		t.Errorf("noise coefficient = %v, want exactly 0", m.Coefs[1])
	}
	if m.Coefs[0] < 1.5 || m.Coefs[0] > 2 {
		t.Errorf("signal coefficient = %v, want shrunk toward 2", m.Coefs[0])
	}

	r2, err := m.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if r2 < 0.9 {
		t.Errorf("R^2 = %v, want >= 0.9", r2)
	}
}

func TestElasticNet(t *testing.T) {
	X, y := planeData()

	m := NewElasticNet().WithAlpha(0.01).WithL1Ratio(0.5)
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	r2, err := m.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if r2 < 0.98 {
		t.Errorf("R^2 = %v, want >= 0.98", r2)
	}

	imp, err := m.FeatureImportances()
	if err != nil {
		t.Fatalf("FeatureImportances failed: %v", err)
	}
	if len(imp) != 2 || imp[0] <= 0 {
		t.Errorf("importances = %v", imp)
	}
}

func TestElasticNetParamValidation(t *testing.T) {
	m := NewElasticNet()
	if err := m.SetParams(map[string]interface{}{"l1_ratio": 1.5}); err == nil {
		t.Error("expected error for l1_ratio > 1")
	}
	if err := m.SetParams(map[string]interface{}{"alpha": -0.1}); err == nil {
		t.Error("expected error for negative alpha")
	}
	if err := m.SetParams(map[string]interface{}{"no_such": 1}); err == nil {
		t.Error("expected error for unknown parameter")
	}

	if err := m.SetParams(map[string]interface{}{"alpha": 0.2, "tol": 1e-3}); err != nil {
		t.Fatalf("SetParams failed: %v", err)
	}
	if m.GetParams()["alpha"] != 0.2 {
		t.Errorf("alpha = %v, want 0.2", m.GetParams()["alpha"])
	}
}

func TestRidgeCloneBlank(t *testing.T) {
	m := NewRidge().WithAlpha(2.5).WithSolver(SolverSVD)
	clone := m.CloneBlank().(*Ridge)
	if clone.IsFitted() {
		t.Error("clone should be unfitted")
	}
	if clone.GetParams()["alpha"] != 2.5 || clone.GetParams()["solver"] != SolverSVD {
		t.Errorf("clone lost hyperparameters: %v", clone.GetParams())
	}
}

func TestWeightsRoundTrip(t *testing.T) {
	xs := []float64{-2, -1, 0, 1, 2, 3}
	X := mat.NewDense(len(xs), 1, xs)
	y := mat.NewDense(len(xs), 1, nil)
	for i, v := range xs {
		y.Set(i, 0, 2*v+1)
	}

	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	var buf bytes.Buffer
	if err := lr.ExportWeightsWriter(&buf); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	loaded := NewLinearRegression()
	if err := loaded.LoadWeightsReader(&buf); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	want, err := lr.Predict(X)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	got, err := loaded.Predict(X)
	if err != nil {
		t.Fatalf("Predict after load failed: %v", err)
	}
	for i := range xs {
		if math.Abs(got.At(i, 0)-want.At(i, 0)) > 1e-12 {
			t.Errorf("sample %d: loaded model predicts %v, want %v", i, got.At(i, 0), want.At(i, 0))
		}
	}
}

func TestReadWeightsModelMismatch(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWeights(&buf, ModelWeights{
		Model:        "Ridge",
		Coefficients: []float64{1},
		NFeatures:    1,
	}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := ReadWeights(&buf, "LinearRegression"); err == nil {
		t.Error("expected error for mismatched model name")
	}
}
