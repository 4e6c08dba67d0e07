package predict

import (
	"math"

	"github.com/fchimpan/paddle-pilot/internal/scene"
)

// Court is the geometry the ball is projected onto.
type Court struct {
	Width   float64 // distance between the side walls
	PaddleY float64 // y of the paddle's line
}

// Landing projects the ball's straight-line path onto the paddle line and
// returns the x where it will arrive. Wall bounces are folded analytically:
// the unbounded court is mirrored at every multiple of Width, so an odd
// number of crossings reflects the position.
//
// It returns false when there is no previous position, the ball is not
// moving down, or the path is too flat to project to a finite x.
func Landing(ball scene.Point, prev *scene.Point, c Court) (float64, bool) {
	if prev == nil {
		return 0, false
	}
	dx, dy := ball.Sub(*prev)
	if dy <= 0 {
		return 0, false
	}
	if dx == 0 {
		return ball.X, true
	}

	slope := dy / dx
	x := ball.X + (c.PaddleY-ball.Y)/slope
	if math.IsInf(x, 0) || math.IsNaN(x) {
		return 0, false
	}

	return fold(x, c.Width), true
}

func fold(x, width float64) float64 {
	if width <= 0 {
		return 0
	}
	bounces := math.Floor(x / width)
	m := x - bounces*width // in [0, width)
	if math.Mod(bounces, 2) != 0 {
		x = width - m
	} else {
		x = m
	}
	x = math.Max(0, math.Min(x, width-1))
	return math.Trunc(x)
}
