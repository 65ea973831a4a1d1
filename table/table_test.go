package table

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
)

const denseBIOM = `{
  "id": "None",
  "format": "Biological Observation Matrix 1.0.0",
  "format_url": "http://biom-format.org",
  "type": "OTU table",
  "generated_by": "test",
  "date": "2025-01-01T00:00:00",
  "matrix_type": "dense",
  "matrix_element_type": "float",
  "shape": [3, 2],
  "rows": [{"id": "OTU1", "metadata": null},
           {"id": "OTU2", "metadata": null},
           {"id": "OTU3", "metadata": null}],
  "columns": [{"id": "S1", "metadata": null},
              {"id": "S2", "metadata": null}],
  "data": [[1, 0], [2, 5], [0, 3]]
}`

const sparseBIOM = `{
  "id": "None",
  "format": "Biological Observation Matrix 1.0.0",
  "format_url": "http://biom-format.org",
  "type": "OTU table",
  "generated_by": "test",
  "date": "2025-01-01T00:00:00",
  "matrix_type": "sparse",
  "matrix_element_type": "float",
  "shape": [3, 2],
  "rows": [{"id": "OTU1", "metadata": null},
           {"id": "OTU2", "metadata": null},
           {"id": "OTU3", "metadata": null}],
  "columns": [{"id": "S1", "metadata": null},
              {"id": "S2", "metadata": null}],
  "data": [[0, 0, 1], [1, 0, 2], [1, 1, 5], [2, 1, 3]]
}`

func TestReadBIOM(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"Dense", denseBIOM},
		{"Sparse", sparseBIOM},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft, err := ReadBIOM(strings.NewReader(tt.doc))
			if err != nil {
				t.Fatalf("ReadBIOM() error = %v", err)
			}

			if ft.NFeatures() != 3 || ft.NSamples() != 2 {
				t.Fatalf("dims = (%d, %d), want (3, 2)", ft.NFeatures(), ft.NSamples())
			}
			if ft.FeatureIDs[1] != "OTU2" || ft.SampleIDs[1] != "S2" {
				t.Errorf("IDs wrong: %v / %v", ft.FeatureIDs, ft.SampleIDs)
			}
			if ft.At(1, 1) != 5 {
				t.Errorf("At(1,1) = %v, want 5", ft.At(1, 1))
			}
			if ft.At(2, 0) != 0 {
				t.Errorf("At(2,0) = %v, want 0", ft.At(2, 0))
			}
		})
	}
}

func TestReadBIOM_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"Not JSON", "not json at all"},
		{"Bad matrix type", strings.Replace(denseBIOM, `"dense"`, `"hdf5"`, 1)},
		{"Sparse out of range", strings.Replace(sparseBIOM, "[2, 1, 3]", "[9, 1, 3]", 1)},
		{"Row count mismatch", strings.Replace(denseBIOM, `"shape": [3, 2]`, `"shape": [4, 2]`, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadBIOM(strings.NewReader(tt.doc)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestBIOMRoundTrip(t *testing.T) {
	ft, err := ReadBIOM(strings.NewReader(denseBIOM))
	if err != nil {
		t.Fatalf("ReadBIOM() error = %v", err)
	}

	var buf bytes.Buffer
	if err := ft.WriteBIOM(&buf); err != nil {
		t.Fatalf("WriteBIOM() error = %v", err)
	}

	back, err := ReadBIOM(&buf)
	if err != nil {
		t.Fatalf("ReadBIOM() after write error = %v", err)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 2; j++ {
			if back.At(i, j) != ft.At(i, j) {
				t.Errorf("round trip changed value at (%d,%d)", i, j)
			}
		}
	}
}

func TestSamplesTransposes(t *testing.T) {
	data := mat.NewDense(2, 3, []float64{
		1, 2, 3,
		4, 5, 6,
	})
	ft, err := NewFeatureTable([]string{"f1", "f2"}, []string{"a", "b", "c"}, data)
	if err != nil {
		t.Fatalf("NewFeatureTable() error = %v", err)
	}

	X := ft.Samples()
	r, c := X.Dims()
	if r != 3 || c != 2 {
		t.Fatalf("Samples() dims = (%d, %d), want (3, 2)", r, c)
	}
	if X.At(0, 0) != 1 || X.At(2, 1) != 6 {
		t.Errorf("Samples() transposed wrong: %v", mat.Formatted(X))
	}
}

func TestNewFeatureTable_Validation(t *testing.T) {
	data := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	if _, err := NewFeatureTable([]string{"f1"}, []string{"a", "b"}, data); err == nil {
		t.Error("expected error for feature-ID count mismatch")
	}
	if _, err := NewFeatureTable([]string{"f1", "f2"}, []string{"a", "a"}, data); err == nil {
		t.Error("expected error for duplicate sample IDs")
	}
	if _, err := NewFeatureTable(nil, nil, nil); err == nil {
		t.Error("expected error for nil data")
	}
}

func TestFilterSamplesAndFeatures(t *testing.T) {
	data := mat.NewDense(3, 3, []float64{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	})
	ft, err := NewFeatureTable(
		[]string{"f1", "f2", "f3"}, []string{"a", "b", "c"}, data)
	if err != nil {
		t.Fatalf("NewFeatureTable() error = %v", err)
	}

	sub, err := ft.FilterSamples([]string{"c", "a"})
	if err != nil {
		t.Fatalf("FilterSamples() error = %v", err)
	}
	if sub.NSamples() != 2 || sub.SampleIDs[0] != "c" {
		t.Errorf("FilterSamples order wrong: %v", sub.SampleIDs)
	}
	if sub.At(0, 0) != 3 || sub.At(0, 1) != 1 {
		t.Errorf("FilterSamples values wrong")
	}

	if _, err := ft.FilterSamples([]string{"nope"}); err == nil {
		t.Error("expected error for unknown sample ID")
	}

	fsub, err := ft.FilterFeatures([]int{2, 0})
	if err != nil {
		t.Fatalf("FilterFeatures() error = %v", err)
	}
	if fsub.FeatureIDs[0] != "f3" || fsub.At(0, 0) != 7 {
		t.Errorf("FilterFeatures wrong: %v", fsub.FeatureIDs)
	}
	if _, err := ft.FilterFeatures([]int{5}); err == nil {
		t.Error("expected error for out-of-range feature index")
	}
}

const metadataTSV = "sample-id\tbody-site\tdays\n" +
	"#q2:types\tcategorical\tnumeric\n" +
	"S1\tgut\t3\n" +
	"S2\ttongue\t7\n" +
	"S3\tgut\t\n" +
	"S4\tpalm\t12\n"

func TestReadMetadataTSV(t *testing.T) {
	md, err := ReadMetadataTSV(strings.NewReader(metadataTSV))
	if err != nil {
		t.Fatalf("ReadMetadataTSV() error = %v", err)
	}

	if got := md.SampleIDs(); len(got) != 4 || got[0] != "S1" {
		t.Errorf("SampleIDs() = %v", got)
	}
	if !md.HasColumn("body-site") || md.HasColumn("nope") {
		t.Error("HasColumn wrong")
	}

	sites, err := md.Column("body-site")
	if err != nil {
		t.Fatalf("Column() error = %v", err)
	}
	if sites[1] != "tongue" {
		t.Errorf("Column values wrong: %v", sites)
	}

	if _, err := md.Column("nope"); err == nil {
		t.Error("expected error for unknown column")
	}
	if _, err := md.NumericColumn("body-site"); err == nil {
		t.Error("expected error parsing categorical column as numeric")
	}
}

func TestNumericColumn(t *testing.T) {
	tsv := "sample-id\tdays\nS1\t1.5\nS2\t-2\n"
	md, err := ReadMetadataTSV(strings.NewReader(tsv))
	if err != nil {
		t.Fatalf("ReadMetadataTSV() error = %v", err)
	}
	days, err := md.NumericColumn("days")
	if err != nil {
		t.Fatalf("NumericColumn() error = %v", err)
	}
	if math.Abs(days[0]-1.5) > 1e-12 || math.Abs(days[1]+2) > 1e-12 {
		t.Errorf("NumericColumn() = %v", days)
	}
}

func TestAlign(t *testing.T) {
	data := mat.NewDense(2, 4, []float64{
		1, 2, 3, 4,
		5, 6, 7, 8,
	})
	ft, err := NewFeatureTable(
		[]string{"f1", "f2"}, []string{"S1", "S2", "S3", "SX"}, data)
	if err != nil {
		t.Fatalf("NewFeatureTable() error = %v", err)
	}

	md, err := ReadMetadataTSV(strings.NewReader(metadataTSV))
	if err != nil {
		t.Fatalf("ReadMetadataTSV() error = %v", err)
	}

	// S3 has an empty "days" value and SX is absent from the metadata,
	// so aligning on "days" keeps S1 and S2 only.
	X, targets, ids, err := Align(ft, md, "days")
	if err != nil {
		t.Fatalf("Align() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "S1" || ids[1] != "S2" {
		t.Fatalf("aligned sample IDs = %v", ids)
	}
	if targets[0] != "3" || targets[1] != "7" {
		t.Errorf("targets = %v", targets)
	}
	r, c := X.Dims()
	if r != 2 || c != 2 {
		t.Fatalf("X dims = (%d, %d), want (2, 2)", r, c)
	}
	if X.At(1, 0) != 2 || X.At(1, 1) != 6 {
		t.Errorf("X values wrong: %v", mat.Formatted(X))
	}

	if _, _, _, err := Align(ft, md, "nope"); err == nil {
		t.Error("expected error for unknown category")
	}

	// No overlap at all.
	ft2, _ := NewFeatureTable([]string{"f1"}, []string{"Z1"}, mat.NewDense(1, 1, []float64{1}))
	if _, _, _, err := Align(ft2, md, "body-site"); err == nil {
		t.Error("expected error for empty sample intersection")
	}
}
