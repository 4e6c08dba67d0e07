package game

import (
	"math"

	"github.com/fchimpan/paddle-pilot/internal/action"
	"github.com/fchimpan/paddle-pilot/internal/mapping"
	"github.com/fchimpan/paddle-pilot/internal/scene"
)

// Config is the court geometry and speeds, in pixels and pixels per frame.
type Config struct {
	Width       float64
	PaddleY     float64
	PaddleW     float64
	PaddleSpeed float64
	BallSize    float64
	BallSpeed   float64

	// MaxFrames ends a round as GAME_OVER once reached. Zero means no limit.
	MaxFrames int
}

func DefaultConfig() Config {
	return Config{
		Width:       200,
		PaddleY:     400,
		PaddleW:     40,
		PaddleSpeed: 5,
		BallSize:    5,
		BallSpeed:   7,
		MaxFrames:   20000,
	}
}

// State is a single-ball round. Positions are top-left corners.
type State struct {
	cfg Config

	Bricks []mapping.Brick

	PaddleX float64

	BallX  float64
	BallY  float64
	BallVX float64
	BallVY float64

	Frame    int
	Served   bool
	Cleared  bool
	GameOver bool
}

// MinWidth is the narrowest court a round is played on.
const MinWidth = 50

// Normalized returns the geometry a round actually uses: the width is
// raised to MinWidth and an out-of-range paddle gets a fifth of the width.
func (c Config) Normalized() Config {
	if c.Width < MinWidth {
		c.Width = MinWidth
	}
	if c.PaddleW <= 0 || c.PaddleW > c.Width {
		c.PaddleW = c.Width / 5
	}
	return c
}

func NewState(cfg Config, layout mapping.Layout) *State {
	cfg = cfg.Normalized()

	s := &State{cfg: cfg}
	s.Bricks = append([]mapping.Brick(nil), layout.Bricks...)
	s.PaddleX = math.Round(cfg.Width/2 - cfg.PaddleW/2)
	s.holdBall()
	return s
}

func (s *State) Config() Config { return s.cfg }

func (s *State) BricksRemaining() int {
	n := 0
	for _, b := range s.Bricks {
		if b.HP > 0 {
			n++
		}
	}
	return n
}

func (s *State) Status() scene.Status {
	switch {
	case s.Cleared:
		return scene.StatusGamePass
	case s.GameOver:
		return scene.StatusGameOver
	default:
		return scene.StatusAlive
	}
}

// Snapshot reports the round the way the game reports it to a player.
func (s *State) Snapshot() scene.Snapshot {
	snap := scene.Snapshot{
		Frame:      s.Frame,
		Status:     s.Status(),
		Ball:       scene.Point{X: s.BallX, Y: s.BallY},
		Platform:   scene.Point{X: s.PaddleX, Y: s.cfg.PaddleY},
		BallServed: s.Served,
	}
	for _, b := range s.Bricks {
		switch {
		case b.HP >= 2:
			snap.HardBricks = append(snap.HardBricks, scene.Point{X: b.X, Y: b.Y})
		case b.HP == 1:
			snap.Bricks = append(snap.Bricks, scene.Point{X: b.X, Y: b.Y})
		}
	}
	return snap
}

// holdBall puts the ball on top of the paddle's center.
func (s *State) holdBall() {
	s.BallX = s.PaddleX + s.cfg.PaddleW/2 - s.cfg.BallSize/2
	s.BallY = s.cfg.PaddleY - s.cfg.BallSize
}

// Step advances the round by one frame with cmd as the player's input.
func (s *State) Step(cmd action.Command) {
	if s.Cleared || s.GameOver {
		return
	}
	s.Frame++

	// Paddle move.
	move := 0.0
	switch cmd {
	case action.MoveLeft:
		move = -1
	case action.MoveRight:
		move = 1
	}
	s.PaddleX += move * s.cfg.PaddleSpeed
	if s.PaddleX < 0 {
		s.PaddleX = 0
	}
	if s.PaddleX+s.cfg.PaddleW > s.cfg.Width {
		s.PaddleX = s.cfg.Width - s.cfg.PaddleW
	}

	if !s.Served {
		switch cmd {
		case action.ServeLeft:
			s.Served = true
			s.BallVX, s.BallVY = -s.cfg.BallSpeed, -s.cfg.BallSpeed
		case action.ServeRight:
			s.Served = true
			s.BallVX, s.BallVY = s.cfg.BallSpeed, -s.cfg.BallSpeed
		default:
			s.holdBall()
			s.checkFrameLimit()
			return
		}
	}

	prevX := s.BallX
	prevY := s.BallY

	// Integrate ball.
	s.BallX += s.BallVX
	s.BallY += s.BallVY

	// Wall collisions.
	right := s.cfg.Width - s.cfg.BallSize
	if s.BallX < 0 {
		s.BallX = -s.BallX
		s.BallVX = math.Abs(s.BallVX)
	} else if s.BallX > right {
		s.BallX = 2*right - s.BallX
		s.BallVX = -math.Abs(s.BallVX)
	}
	if s.BallY < 0 {
		s.BallY = -s.BallY
		s.BallVY = math.Abs(s.BallVY)
	}

	s.hitBrick(prevX, prevY)

	// Paddle collision.
	bottom := s.BallY + s.cfg.BallSize
	if s.BallVY > 0 && bottom >= s.cfg.PaddleY && prevY+s.cfg.BallSize <= s.cfg.PaddleY &&
		s.BallX+s.cfg.BallSize >= s.PaddleX && s.BallX <= s.PaddleX+s.cfg.PaddleW {
		s.BallY = s.cfg.PaddleY - s.cfg.BallSize
		s.BallVY = -math.Abs(s.BallVY)
		// A paddle sweeping against the ball sends it back the way it came.
		if move != 0 && math.Signbit(move) != math.Signbit(s.BallVX) {
			s.BallVX = -s.BallVX
		}
	}

	// Bottom: game over (missed the paddle).
	if s.BallY > s.cfg.PaddleY {
		s.GameOver = true
		return
	}
	if s.BricksRemaining() == 0 {
		s.Cleared = true
		return
	}
	s.checkFrameLimit()
}

func (s *State) checkFrameLimit() {
	if s.cfg.MaxFrames > 0 && s.Frame >= s.cfg.MaxFrames {
		s.GameOver = true
	}
}

// hitBrick damages the first brick the ball overlaps and bounces the ball
// off the side it entered from.
func (s *State) hitBrick(prevX, prevY float64) {
	size := s.cfg.BallSize
	for i := range s.Bricks {
		b := &s.Bricks[i]
		if b.HP <= 0 {
			continue
		}
		left, right := b.X, b.X+mapping.BrickW
		top, bottom := b.Y, b.Y+mapping.BrickH
		if s.BallX+size <= left || s.BallX >= right || s.BallY+size <= top || s.BallY >= bottom {
			continue
		}

		b.HP--

		switch {
		// Entered from left/right side.
		case prevX+size <= left:
			s.BallX = left - size
			s.BallVX = -math.Abs(s.BallVX)
		case prevX >= right:
			s.BallX = right
			s.BallVX = math.Abs(s.BallVX)
		// Entered from top/bottom side.
		case prevY+size <= top:
			s.BallY = top - size
			s.BallVY = -math.Abs(s.BallVY)
		case prevY >= bottom:
			s.BallY = bottom
			s.BallVY = math.Abs(s.BallVY)
		default:
			// Fallback (corner cases): flip vertical.
			s.BallVY = -s.BallVY
		}
		return
	}
}
