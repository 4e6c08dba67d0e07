package knn

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/fchimpan/paddle-pilot/internal/action"
)

// DefaultK is the neighbor count used when none is configured.
const DefaultK = 20

// Model is a k-nearest-neighbor classifier. It keeps every training row and
// votes among the K closest (Euclidean) rows with uniform weights. A Model
// is not modified after Fit.
type Model struct {
	K      int
	Points [][]float64
	Labels []action.Label
}

// Fit stores the training rows. All rows must have the same width and
// every label must be a known class.
func Fit(x [][]float64, y []action.Label, k int) (*Model, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("knn: no training rows")
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("knn: %d rows but %d labels", len(x), len(y))
	}
	if k <= 0 {
		return nil, fmt.Errorf("knn: k must be > 0, got %d", k)
	}
	width := len(x[0])
	points := make([][]float64, len(x))
	for i, row := range x {
		if len(row) != width {
			return nil, fmt.Errorf("knn: row %d has width %d, want %d", i, len(row), width)
		}
		if y[i] < 0 || int(y[i]) >= action.NumLabels {
			return nil, fmt.Errorf("knn: row %d has unknown label %d", i, y[i])
		}
		points[i] = append([]float64(nil), row...)
	}
	labels := append([]action.Label(nil), y...)
	return &Model{K: k, Points: points, Labels: labels}, nil
}

// Width is the number of features per row.
func (m *Model) Width() int {
	if len(m.Points) == 0 {
		return 0
	}
	return len(m.Points[0])
}

type neighbor struct {
	dist float64
	idx  int
}

// Predict returns the majority label among the K nearest rows. Equal
// distances keep training order; equal vote counts pick the smaller label.
func (m *Model) Predict(v []float64) action.Label {
	k := m.K
	if k > len(m.Points) {
		k = len(m.Points)
	}
	if k == 0 {
		return action.LabelHold
	}

	// Sorted ascending by distance, at most k long.
	best := make([]neighbor, 0, k)
	for i, p := range m.Points {
		d := floats.Distance(p, v, 2)
		if len(best) == k && d >= best[k-1].dist {
			continue
		}
		pos := len(best)
		for pos > 0 && best[pos-1].dist > d {
			pos--
		}
		if len(best) < k {
			best = append(best, neighbor{})
		}
		copy(best[pos+1:], best[pos:len(best)-1])
		best[pos] = neighbor{dist: d, idx: i}
	}

	var votes [action.NumLabels]int
	for _, n := range best {
		votes[m.Labels[n.idx]]++
	}
	winner := 0
	for l := 1; l < action.NumLabels; l++ {
		if votes[l] > votes[winner] {
			winner = l
		}
	}
	return action.Label(winner)
}

// Accuracy returns the fraction of rows in x predicted as y. It returns
// false when x is empty.
func (m *Model) Accuracy(x [][]float64, y []action.Label) (float64, bool) {
	if len(x) == 0 || len(x) != len(y) {
		return 0, false
	}
	hits := 0
	for i := range x {
		if m.Predict(x[i]) == y[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(x)), true
}
