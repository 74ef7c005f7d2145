// Package report renders charts of fitted models.
package report

import (
	"sort"

	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Importance is the score of one feature.
type Importance struct {
	Feature string
	Score   float64
}

// SortImportances pairs names with scores, highest score first. Ties keep
// the feature order.
func SortImportances(names []string, scores []float64) ([]Importance, error) {
	if len(names) != len(scores) {
		return nil, scigoErrors.NewDimensionError("report.SortImportances", len(names), len(scores), 0)
	}
	out := make([]Importance, len(names))
	for i := range names {
		out[i] = Importance{Feature: names[i], Score: scores[i]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// ImportancePlot builds a bar chart of the importances in the given order.
func ImportancePlot(title string, imp []Importance) (*plot.Plot, error) {
	if len(imp) == 0 {
		return nil, scigoErrors.NewValueError("report.ImportancePlot", "no importances to plot")
	}
	values := make(plotter.Values, len(imp))
	labels := make([]string, len(imp))
	for i, v := range imp {
		values[i] = v.Score
		labels[i] = v.Feature
	}

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "importance"
	p.Y.Min = 0

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return nil, scigoErrors.Wrap(err, "report.ImportancePlot")
	}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(labels...)
	return p, nil
}

// SaveImportancePlot writes the chart to path; the extension selects the
// image format (png, svg, pdf, ...).
func SaveImportancePlot(path, title string, imp []Importance, widthInches, heightInches float64) error {
	p, err := ImportancePlot(title, imp)
	if err != nil {
		return err
	}
	if err := p.Save(vg.Length(widthInches)*vg.Inch, vg.Length(heightInches)*vg.Inch, path); err != nil {
		return scigoErrors.Wrapf(err, "report: save %s", path)
	}
	return nil
}
