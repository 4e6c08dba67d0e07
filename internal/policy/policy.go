package policy

import (
	"math/rand/v2"

	"fortio.org/log"

	"github.com/fchimpan/paddle-pilot/internal/action"
	"github.com/fchimpan/paddle-pilot/internal/features"
	"github.com/fchimpan/paddle-pilot/internal/predict"
	"github.com/fchimpan/paddle-pilot/internal/scene"
)

// State is the episode phase of a Policy.
type State int

const (
	AwaitingServe State = iota
	InFlight
	Terminal
)

func (s State) String() string {
	switch s {
	case AwaitingServe:
		return "awaiting-serve"
	case InFlight:
		return "in-flight"
	case Terminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Classifier picks a label from a feature vector.
type Classifier interface {
	Predict(v []float64) action.Label
}

// Recorder persists the observations of a finished episode.
type Recorder interface {
	Record(obs []scene.Observation, status scene.Status) (string, error)
}

// Config selects the capabilities of a Policy. The zero values of
// Classifier and Recorder mean "threshold rule" and "do not record".
type Config struct {
	Court       predict.Court
	PaddleWidth float64

	Classifier Classifier
	Recorder   Recorder
	Serve      ServeStrategy
	Seed       uint64

	// Jitter shifts the threshold rule's target by a uniform offset in
	// [-Jitter, Jitter] each tick. The recorded landing is unaffected.
	Jitter int

	// KeepLosses also records episodes that end in GAME_OVER.
	KeepLosses bool

	// IdleX is where the threshold rule steers when no landing is known.
	// Nil means the court center.
	IdleX *float64
}

// Policy decides one command per game tick. It is not safe for concurrent
// use; the game calls Update once per tick and Reset between episodes.
type Policy struct {
	cfg Config
	rng *rand.Rand

	state     State
	prevBall  *scene.Point
	lastObs   *scene.Observation
	buffer    []scene.Observation
	lastLand  float64
	lastKnown bool
}

func New(cfg Config) *Policy {
	if cfg.PaddleWidth <= 0 {
		cfg.PaddleWidth = 40
	}
	return &Policy{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

// HasClassifier reports whether commands come from a classifier.
func (p *Policy) HasClassifier() bool { return p.cfg.Classifier != nil }

func (p *Policy) State() State { return p.state }

// Observations returns a copy of the current episode's buffer.
func (p *Policy) Observations() []scene.Observation {
	return append([]scene.Observation(nil), p.buffer...)
}

// LastLanding returns the landing predicted on the most recent in-flight
// tick.
func (p *Policy) LastLanding() (float64, bool) { return p.lastLand, p.lastKnown }

// Reset starts a new episode: no buffered observations and no ball history.
func (p *Policy) Reset() {
	p.state = AwaitingServe
	p.prevBall = nil
	p.lastObs = nil
	p.buffer = nil
	p.lastLand, p.lastKnown = 0, false
}

// Update returns the command for s.
func (p *Policy) Update(s scene.Snapshot) action.Command {
	if s.Status.Terminal() {
		p.state = Terminal
		p.finish(s.Status)
		p.Reset()
		return action.Reset
	}

	if p.state == AwaitingServe && s.BallServed {
		p.state = InFlight
	}

	var cmd action.Command
	switch p.state {
	case InFlight:
		cmd = p.fly(s)
	default:
		cmd = p.cfg.Serve.pick(p.rng)
	}

	ball := s.Ball
	p.prevBall = &ball
	return cmd
}

func (p *Policy) fly(s scene.Snapshot) action.Command {
	landing, ok := predict.Landing(s.Ball, p.prevBall, p.cfg.Court)
	p.lastLand, p.lastKnown = landing, ok

	// The command is filled in below; Build only reads the scene and landing.
	obs := scene.Project(s, action.Hold, landing, ok)

	var cmd action.Command
	if p.cfg.Classifier != nil {
		v := features.Build(obs, p.lastObs)
		cmd = p.cfg.Classifier.Predict(v[:]).Command()
	} else {
		cmd = p.threshold(s.Platform.X, landing, ok)
	}
	obs.Command = cmd

	p.lastObs = &obs
	if p.cfg.Recorder != nil {
		p.buffer = append(p.buffer, obs)
	}
	return cmd
}

func (p *Policy) threshold(paddleX, landing float64, ok bool) action.Command {
	target := landing
	if !ok {
		target = p.cfg.Court.Width / 2
		if p.cfg.IdleX != nil {
			target = *p.cfg.IdleX
		}
	}
	if p.cfg.Jitter > 0 {
		target += float64(p.rng.IntN(2*p.cfg.Jitter+1) - p.cfg.Jitter)
	}

	center := paddleX + p.cfg.PaddleWidth/2
	switch {
	case target < center:
		return action.MoveLeft
	case target > center:
		return action.MoveRight
	default:
		return action.Hold
	}
}

func (p *Policy) finish(status scene.Status) {
	if p.cfg.Recorder == nil {
		return
	}
	if status != scene.StatusGamePass && !p.cfg.KeepLosses {
		log.Debugf("discarding %d observations from %s episode", len(p.buffer), status)
		return
	}
	if _, err := p.cfg.Recorder.Record(p.Observations(), status); err != nil {
		log.Errf("failed to save episode: %v", err)
	}
}
