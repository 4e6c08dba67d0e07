// Package session runs the policy against the court, one round at a time.
package session

import (
	"context"

	"fortio.org/log"

	"github.com/fchimpan/paddle-pilot/internal/action"
	"github.com/fchimpan/paddle-pilot/internal/game"
	"github.com/fchimpan/paddle-pilot/internal/mapping"
	"github.com/fchimpan/paddle-pilot/internal/policy"
	"github.com/fchimpan/paddle-pilot/internal/runlog"
	"github.com/fchimpan/paddle-pilot/internal/scene"
)

// EpisodeLog stores finished rounds. *runlog.Store implements it.
type EpisodeLog interface {
	RecordEpisode(e runlog.Episode) (runlog.Episode, error)
}

type Options struct {
	Game   game.Config
	Layout mapping.Layout
	Policy policy.Config

	// Ledger is optional.
	Ledger EpisodeLog
}

// Result is one finished round. File is set when the round was recorded.
type Result struct {
	Status       scene.Status
	Frames       int
	Observations int
	File         string
}

// recorder wraps the configured Recorder to remember what the policy
// flushed for the round that just ended.
type recorder struct {
	inner policy.Recorder
	file  string
	n     int
}

func (r *recorder) Record(obs []scene.Observation, status scene.Status) (string, error) {
	name, err := r.inner.Record(obs, status)
	if err == nil {
		r.file, r.n = name, len(obs)
	}
	return name, err
}

type Session struct {
	opts   Options
	pol    *policy.Policy
	rec    *recorder
	round  *game.State
	passes int
	losses int
}

func New(opts Options) *Session {
	s := &Session{opts: opts}
	if opts.Policy.Recorder != nil {
		s.rec = &recorder{inner: opts.Policy.Recorder}
		opts.Policy.Recorder = s.rec
	}
	s.pol = policy.New(opts.Policy)
	s.NextRound()
	return s
}

func (s *Session) Policy() *policy.Policy { return s.pol }

// Round is the round in progress.
func (s *Session) Round() *game.State { return s.round }

func (s *Session) Passes() int { return s.passes }
func (s *Session) Losses() int { return s.losses }

// NextRound discards the current round and starts a fresh one.
func (s *Session) NextRound() {
	s.round = game.NewState(s.opts.Game, s.opts.Layout)
	if s.rec != nil {
		s.rec.file, s.rec.n = "", 0
	}
}

// Tick shows the policy the current frame and applies its command. When
// the frame is terminal the policy finishes its episode, the round is
// logged and a non-nil Result is returned.
func (s *Session) Tick() (action.Command, *Result) {
	snap := s.round.Snapshot()
	cmd := s.pol.Update(snap)
	if !snap.Status.Terminal() {
		s.round.Step(cmd)
		return cmd, nil
	}

	res := Result{Status: snap.Status, Frames: snap.Frame}
	if s.rec != nil {
		res.File, res.Observations = s.rec.file, s.rec.n
	}
	if snap.Status == scene.StatusGamePass {
		s.passes++
	} else {
		s.losses++
	}
	if s.opts.Ledger != nil {
		if _, err := s.opts.Ledger.RecordEpisode(runlog.Episode{
			Status:       res.Status,
			Frames:       res.Frames,
			Observations: res.Observations,
			File:         res.File,
		}); err != nil {
			log.Warnf("failed to log episode: %v", err)
		}
	}
	return cmd, &res
}

// PlayRound runs the current round to its end.
func (s *Session) PlayRound(ctx context.Context) (Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if _, res := s.Tick(); res != nil {
			return *res, nil
		}
	}
}

// Summary totals a batch of rounds.
type Summary struct {
	Rounds []Result
	Passes int
	Losses int
}

// Play runs n rounds headless.
func Play(ctx context.Context, opts Options, n int) (Summary, error) {
	s := New(opts)
	var sum Summary
	for i := 0; i < n; i++ {
		if i > 0 {
			s.NextRound()
		}
		res, err := s.PlayRound(ctx)
		if err != nil {
			return sum, err
		}
		log.Infof("round %d/%d: %s after %d frames", i+1, n, res.Status, res.Frames)
		sum.Rounds = append(sum.Rounds, res)
	}
	sum.Passes, sum.Losses = s.passes, s.losses
	return sum, nil
}
