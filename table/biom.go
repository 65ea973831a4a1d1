package table

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/otulearn/otulearn/pkg/errors"
)

// biomDocument is the BIOM v1 ("Biological Observation Matrix") JSON
// layout. Only the fields otulearn consumes are mapped; the rest of the
// document is ignored on read and filled with fixed values on write.
type biomDocument struct {
	ID          string        `json:"id"`
	Format      string        `json:"format"`
	FormatURL   string        `json:"format_url"`
	Type        string        `json:"type"`
	GeneratedBy string        `json:"generated_by"`
	Date        string        `json:"date"`
	MatrixType  string        `json:"matrix_type"`
	MatrixElem  string        `json:"matrix_element_type"`
	Shape       []int         `json:"shape"`
	Rows        []biomAxis    `json:"rows"`
	Columns     []biomAxis    `json:"columns"`
	Data        [][]float64   `json:"data"`
}

type biomAxis struct {
	ID       string          `json:"id"`
	Metadata json.RawMessage `json:"metadata"`
}

// ReadBIOM parses a BIOM v1 JSON document into a FeatureTable. Both
// "dense" and "sparse" matrix types are supported; sparse data is a
// list of [row, column, value] triplets.
func ReadBIOM(r io.Reader) (*FeatureTable, error) {
	var doc biomDocument
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "table.ReadBIOM: decoding BIOM JSON")
	}

	if len(doc.Shape) != 2 {
		return nil, errors.NewValidationError("shape",
			"BIOM shape must have exactly two entries", doc.Shape)
	}
	nRows, nCols := doc.Shape[0], doc.Shape[1]
	if nRows <= 0 || nCols <= 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "table.ReadBIOM")
	}
	if len(doc.Rows) != nRows {
		return nil, errors.NewDimensionError("table.ReadBIOM", nRows, len(doc.Rows), 0)
	}
	if len(doc.Columns) != nCols {
		return nil, errors.NewDimensionError("table.ReadBIOM", nCols, len(doc.Columns), 1)
	}

	featureIDs := make([]string, nRows)
	for i, row := range doc.Rows {
		featureIDs[i] = row.ID
	}
	sampleIDs := make([]string, nCols)
	for j, col := range doc.Columns {
		sampleIDs[j] = col.ID
	}

	data := mat.NewDense(nRows, nCols, nil)
	switch doc.MatrixType {
	case "dense":
		if len(doc.Data) != nRows {
			return nil, errors.NewDimensionError("table.ReadBIOM", nRows, len(doc.Data), 0)
		}
		for i, row := range doc.Data {
			if len(row) != nCols {
				return nil, errors.NewDimensionError("table.ReadBIOM", nCols, len(row), 1)
			}
			for j, v := range row {
				data.Set(i, j, v)
			}
		}
	case "sparse":
		for _, triplet := range doc.Data {
			if len(triplet) != 3 {
				return nil, errors.NewValidationError("data",
					"sparse BIOM entries must be [row, column, value] triplets", triplet)
			}
			i, j := int(triplet[0]), int(triplet[1])
			if i < 0 || i >= nRows || j < 0 || j >= nCols {
				return nil, errors.NewValidationError("data",
					fmt.Sprintf("sparse index out of range for shape [%d %d]", nRows, nCols),
					triplet)
			}
			data.Set(i, j, triplet[2])
		}
	default:
		return nil, errors.NewValueError("table.ReadBIOM",
			fmt.Sprintf("unsupported matrix_type %q (want dense or sparse)", doc.MatrixType))
	}

	return NewFeatureTable(featureIDs, sampleIDs, data)
}

// LoadBIOM reads a BIOM v1 JSON file from disk.
func LoadBIOM(path string) (*FeatureTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "table.LoadBIOM: opening %s", path)
	}
	defer f.Close()
	t, err := ReadBIOM(f)
	if err != nil {
		return nil, errors.Wrapf(err, "table.LoadBIOM: %s", path)
	}
	return t, nil
}

// WriteBIOM writes the table as a dense BIOM v1 JSON document.
func (t *FeatureTable) WriteBIOM(w io.Writer) error {
	nRows, nCols := t.data.Dims()

	rows := make([]biomAxis, nRows)
	for i, id := range t.FeatureIDs {
		rows[i] = biomAxis{ID: id, Metadata: json.RawMessage("null")}
	}
	cols := make([]biomAxis, nCols)
	for j, id := range t.SampleIDs {
		cols[j] = biomAxis{ID: id, Metadata: json.RawMessage("null")}
	}

	data := make([][]float64, nRows)
	for i := 0; i < nRows; i++ {
		row := make([]float64, nCols)
		for j := 0; j < nCols; j++ {
			row[j] = t.data.At(i, j)
		}
		data[i] = row
	}

	doc := biomDocument{
		ID:          "None",
		Format:      "Biological Observation Matrix 1.0.0",
		FormatURL:   "http://biom-format.org",
		Type:        "OTU table",
		GeneratedBy: "otulearn",
		Date:        time.Now().Format(time.RFC3339),
		MatrixType:  "dense",
		MatrixElem:  "float",
		Shape:       []int{nRows, nCols},
		Rows:        rows,
		Columns:     cols,
		Data:        data,
	}

	enc := json.NewEncoder(w)
	if err := enc.Encode(&doc); err != nil {
		return errors.Wrap(err, "table.WriteBIOM: encoding BIOM JSON")
	}
	return nil
}

// SaveBIOM writes the table to a BIOM v1 JSON file.
func (t *FeatureTable) SaveBIOM(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "table.SaveBIOM: creating %s", path)
	}
	defer f.Close()
	return t.WriteBIOM(f)
}
