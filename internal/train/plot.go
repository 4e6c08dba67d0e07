package train

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Feature columns used by the plot.
const (
	colPaddleX   = 2
	colPredicted = 5
)

// WritePlot saves a scatter of the held-out rows, predicted landing against
// paddle x, split into rows the classifier got right and wrong.
func WritePlot(path string, res Result) error {
	if res.Model == nil {
		return fmt.Errorf("no model to evaluate")
	}

	hits := make(plotter.XYs, 0, res.Test.Len())
	misses := make(plotter.XYs, 0)
	for i, row := range res.Test.X {
		xy := plotter.XY{X: row[colPredicted], Y: row[colPaddleX]}
		if res.Model.Predict(row) == res.Test.Y[i] {
			hits = append(hits, xy)
		} else {
			misses = append(misses, xy)
		}
	}

	p := plot.New()
	p.Title.Text = "Held-out rows"
	if res.HasAccuracy {
		p.Title.Text = fmt.Sprintf("Held-out rows (accuracy %.3f)", res.Accuracy)
	}
	p.X.Label.Text = "predicted landing x"
	p.Y.Label.Text = "paddle x"
	p.Add(plotter.NewGrid())

	for _, s := range []struct {
		name string
		xys  plotter.XYs
		col  color.RGBA
	}{
		{"correct", hits, color.RGBA{R: 48, G: 161, B: 78, A: 200}},
		{"wrong", misses, color.RGBA{R: 200, G: 30, B: 30, A: 220}},
	} {
		if len(s.xys) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(s.xys)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = s.col
		sc.GlyphStyle.Radius = vg.Points(2)
		p.Add(sc)
		p.Legend.Add(s.name, sc)
	}

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}
