// Package features defines the input vector shared by the policy at play
// time and the trainer offline. Both sides must build vectors through
// Build so the column order and the velocity estimate stay identical.
package features

import "github.com/fchimpan/paddle-pilot/internal/scene"

// Names is the column order of a Vector. Classifier artifacts carry it so a
// model trained on a different layout is rejected at load time.
var Names = []string{"ball_x", "ball_y", "paddle_x", "ball_dx", "ball_dy", "predicted_x"}

// Width is len(Names).
const Width = 6

type Vector [Width]float64

// Build returns the feature vector for o. prev is the observation recorded
// on the tick before o in the same episode, or nil on the first one; its
// ball position gives the velocity. When o has no predicted landing the
// paddle x stands in for it.
func Build(o scene.Observation, prev *scene.Observation) Vector {
	var dx, dy float64
	if prev != nil {
		dx, dy = o.Scene.Ball.Sub(prev.Scene.Ball)
	}

	landing := o.Scene.Platform.X
	if o.PredictedX != nil {
		landing = *o.PredictedX
	}

	return Vector{
		o.Scene.Ball.X,
		o.Scene.Ball.Y,
		o.Scene.Platform.X,
		dx,
		dy,
		landing,
	}
}

// Slice returns v as a freshly allocated slice.
func (v Vector) Slice() []float64 {
	out := make([]float64, Width)
	copy(out, v[:])
	return out
}

// SameLayout reports whether names matches Names exactly.
func SameLayout(names []string) bool {
	if len(names) != len(Names) {
		return false
	}
	for i := range names {
		if names[i] != Names[i] {
			return false
		}
	}
	return true
}
