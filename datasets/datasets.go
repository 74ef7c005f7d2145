// Package datasets provides the toy datasets used by the smoke harnesses.
package datasets

import (
	_ "embed"
	"encoding/csv"
	"io"
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/YuminosukeSato/mllite/dmatrix"
	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

//go:embed data/iris.csv
var irisCSV []byte

// Dataset is a feature matrix with an n x 1 target.
type Dataset struct {
	X            *mat.Dense
	Y            *mat.Dense
	FeatureNames []string
	TargetNames  []string
}

// Rows returns the number of samples.
func (d *Dataset) Rows() int {
	r, _ := d.X.Dims()
	return r
}

// Target returns the target column as a slice.
func (d *Dataset) Target() []float64 {
	if d.Y == nil {
		return nil
	}
	return mat.Col(nil, 0, d.Y)
}

// DMatrix wraps the dataset in a training matrix.
func (d *Dataset) DMatrix(opts ...dmatrix.Option) (*dmatrix.DMatrix, error) {
	base := []dmatrix.Option{}
	if d.Y != nil {
		base = append(base, dmatrix.WithLabel(d.Target()))
	}
	if d.FeatureNames != nil {
		base = append(base, dmatrix.WithFeatureNames(d.FeatureNames))
	}
	return dmatrix.New(d.X, append(base, opts...)...)
}

type irisRecord struct {
	SepalLength float64 `csv:"sepal_length"`
	SepalWidth  float64 `csv:"sepal_width"`
	PetalLength float64 `csv:"petal_length"`
	PetalWidth  float64 `csv:"petal_width"`
	Target      int     `csv:"target"`
}

// LoadIris returns the 150 sample iris dataset with targets 0, 1 and 2.
func LoadIris() (*Dataset, error) {
	var records []*irisRecord
	if err := gocsv.UnmarshalBytes(irisCSV, &records); err != nil {
		return nil, scigoErrors.Wrap(err, "datasets.LoadIris")
	}
	X := mat.NewDense(len(records), 4, nil)
	Y := mat.NewDense(len(records), 1, nil)
	for i, r := range records {
		X.SetRow(i, []float64{r.SepalLength, r.SepalWidth, r.PetalLength, r.PetalWidth})
		Y.Set(i, 0, float64(r.Target))
	}
	return &Dataset{
		X:            X,
		Y:            Y,
		FeatureNames: []string{"sepal_length", "sepal_width", "petal_length", "petal_width"},
		TargetNames:  []string{"setosa", "versicolor", "virginica"},
	}, nil
}

// IrisCSV returns the raw iris file, header included, target last.
func IrisCSV() []byte {
	return append([]byte(nil), irisCSV...)
}

// MakeFriedman1 generates the Friedman #1 regression problem with ten
// uniform features, of which the first five are informative:
//
//	y = 10 sin(pi x0 x1) + 20 (x2 - 0.5)^2 + 10 x3 + 5 x4 + noise * N(0, 1)
func MakeFriedman1(n int, noise float64, seed uint64) (*Dataset, error) {
	const nFeatures = 10
	if n <= 0 {
		return nil, scigoErrors.NewValidationError("n", "must be positive", n)
	}
	if noise < 0 {
		return nil, scigoErrors.NewValidationError("noise", "must be non-negative", noise)
	}
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	uniform := distuv.Uniform{Min: 0, Max: 1, Src: src}
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	X := mat.NewDense(n, nFeatures, nil)
	Y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		row := X.RawRowView(i)
		for j := range row {
			row[j] = uniform.Rand()
		}
		y := 10*math.Sin(math.Pi*row[0]*row[1]) + 20*(row[2]-0.5)*(row[2]-0.5) + 10*row[3] + 5*row[4]
		if noise > 0 {
			y += noise * normal.Rand()
		}
		Y.Set(i, 0, y)
	}
	names := make([]string, nFeatures)
	for j := range names {
		names[j] = "x" + strconv.Itoa(j)
	}
	return &Dataset{X: X, Y: Y, FeatureNames: names}, nil
}

// ToyMulticlass returns the row-major rows x cols buffer and the labels of the
// dense multiclass toy problem. The buffer is filled column-major with
// value row+col and read back row-major, so entry k holds k%rows + k/rows.
// Labels cycle through four classes.
func ToyMulticlass(rows, cols int) (values, labels []float64) {
	values = make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			values[i+j*rows] = float64(i + j)
		}
	}
	labels = make([]float64, rows)
	for i := range labels {
		labels[i] = float64(i % 4)
	}
	return values, labels
}

// LoadCSV loads a dataset through a dmatrix URI such as
// "iris.csv?format=csv&label_column=4&header=true".
func LoadCSV(uri string) (*Dataset, error) {
	d, err := dmatrix.FromURI(uri)
	if err != nil {
		return nil, err
	}
	ds := &Dataset{X: mat.DenseCopyOf(d.Data()), FeatureNames: d.FeatureNames()}
	if label := d.Label(); label != nil {
		ds.Y = mat.NewDense(len(label), 1, append([]float64(nil), label...))
	}
	return ds, nil
}

// WriteCSV writes the dataset with a header row, target last when present.
func WriteCSV(w io.Writer, d *Dataset) error {
	rows, cols := d.X.Dims()
	cw := csv.NewWriter(w)

	header := make([]string, 0, cols+1)
	for j := 0; j < cols; j++ {
		if j < len(d.FeatureNames) {
			header = append(header, d.FeatureNames[j])
		} else {
			header = append(header, "f"+strconv.Itoa(j))
		}
	}
	if d.Y != nil {
		header = append(header, "target")
	}
	if err := cw.Write(header); err != nil {
		return scigoErrors.Wrap(err, "datasets.WriteCSV")
	}

	record := make([]string, len(header))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			record[j] = strconv.FormatFloat(d.X.At(i, j), 'g', -1, 64)
		}
		if d.Y != nil {
			record[cols] = strconv.FormatFloat(d.Y.At(i, 0), 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return scigoErrors.Wrap(err, "datasets.WriteCSV")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return scigoErrors.Wrap(err, "datasets.WriteCSV")
	}
	return nil
}
