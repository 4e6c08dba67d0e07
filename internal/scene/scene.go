package scene

import (
	"encoding/json"
	"fmt"

	"github.com/fchimpan/paddle-pilot/internal/action"
)

// Point is a position on the court. It is encoded as a [x, y] pair,
// matching how the game reports positions.
type Point struct {
	X float64
	Y float64
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

func (p *Point) UnmarshalJSON(b []byte) error {
	var xy [2]float64
	if err := json.Unmarshal(b, &xy); err != nil {
		return fmt.Errorf("point: %w", err)
	}
	p.X, p.Y = xy[0], xy[1]
	return nil
}

// Sub returns the per-axis difference p - q.
func (p Point) Sub(q Point) (dx, dy float64) {
	return p.X - q.X, p.Y - q.Y
}

type Status string

const (
	StatusAlive    Status = "GAME_ALIVE"
	StatusGameOver Status = "GAME_OVER"
	StatusGamePass Status = "GAME_PASS"
)

// Terminal reports whether the round has ended.
func (s Status) Terminal() bool {
	return s == StatusGameOver || s == StatusGamePass
}

// Snapshot is the scene reported by the game on a single tick.
// Platform is the paddle's top-left corner.
type Snapshot struct {
	Frame      int     `json:"frame"`
	Status     Status  `json:"status"`
	Ball       Point   `json:"ball"`
	Platform   Point   `json:"platform"`
	BallServed bool    `json:"ball_served"`
	Bricks     []Point `json:"bricks,omitempty"`
	HardBricks []Point `json:"hard_bricks,omitempty"`
}

// Features is the part of a Snapshot that is kept when recording.
type Features struct {
	Ball     Point `json:"ball"`
	Platform Point `json:"platform"`
}

// Observation is one recorded tick: what the agent saw, what it did, and
// where it expected the ball to land. PredictedX is nil when no landing
// could be predicted.
type Observation struct {
	Scene      Features       `json:"scene_info"`
	Command    action.Command `json:"command"`
	PredictedX *float64       `json:"predicted_x"`
}

// Project strips a snapshot down to the serializable subset and pairs it
// with the command issued on that tick. The snapshot is not modified.
func Project(s Snapshot, cmd action.Command, landing float64, ok bool) Observation {
	o := Observation{
		Scene: Features{
			Ball:     s.Ball,
			Platform: s.Platform,
		},
		Command: cmd,
	}
	if ok {
		v := landing
		o.PredictedX = &v
	}
	return o
}
