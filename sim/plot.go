package sim

import (
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// NewSeriesPlot creates a time series plot from the three data sources:
// truth:   simulated hidden states
// measure: measurement values
// filter:  filter estimates
// The first row of each matrix is plotted against the step index.
// It returns error if the plot fails to be created. This can be due to either of the following conditions:
// * either of the supplied data matrices is nil
// * the supplied data matrices do not have the same number of columns
// * gonum plot fails to be created
func NewSeriesPlot(truth, measure, filter *mat.Dense) (*plot.Plot, error) {
	if truth == nil || measure == nil || filter == nil {
		return nil, fmt.Errorf("invalid data supplied")
	}

	_, ct := truth.Dims()
	_, cm := measure.Dims()
	_, cf := filter.Dims()

	if ct != cm || ct != cf || ct == 0 {
		return nil, fmt.Errorf("invalid data dimensions")
	}

	p := plot.New()

	p.Title.Text = "Simulation"
	p.X.Label.Text = "step"
	p.Y.Label.Text = "state"

	legend := plot.NewLegend()
	legend.Top = true
	p.Legend = legend

	// Make a line plotter for the simulated truth
	truthLine, err := plotter.NewLine(makeSeries(truth))
	if err != nil {
		return nil, err
	}
	truthLine.Color = color.RGBA{R: 255, B: 128, A: 255}

	p.Add(truthLine)
	p.Legend.Add("truth", truthLine)

	// Make a scatter plotter for measurement data
	measScatter, err := plotter.NewScatter(makeSeries(measure))
	if err != nil {
		return nil, err
	}
	measScatter.GlyphStyle.Color = color.RGBA{G: 255, A: 128}
	measScatter.GlyphStyle.Radius = vg.Points(2)
	measScatter.Shape = draw.CrossGlyph{}

	p.Add(measScatter)
	p.Legend.Add("measurement", measScatter)

	// Make a line plotter for the filter estimates
	filterLine, err := plotter.NewLine(makeSeries(filter))
	if err != nil {
		return nil, fmt.Errorf("failed to create line plot: %v", err)
	}
	filterLine.Color = color.RGBA{R: 169, G: 169, B: 169, A: 255}

	p.Add(filterLine)
	p.Legend.Add("filtered", filterLine)

	return p, nil
}

func makeSeries(m *mat.Dense) plotter.XYs {
	_, c := m.Dims()
	pts := make(plotter.XYs, c)
	for i := 0; i < c; i++ {
		pts[i].X = float64(i)
		pts[i].Y = m.At(0, i)
	}

	return pts
}
