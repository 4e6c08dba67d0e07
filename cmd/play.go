package cmd

import (
	"context"
	"fmt"

	"fortio.org/log"
	"github.com/spf13/cobra"

	"github.com/fchimpan/paddle-pilot/internal/game"
	"github.com/fchimpan/paddle-pilot/internal/github"
	"github.com/fchimpan/paddle-pilot/internal/mapping"
	"github.com/fchimpan/paddle-pilot/internal/policy"
	"github.com/fchimpan/paddle-pilot/internal/predict"
	"github.com/fchimpan/paddle-pilot/internal/session"
	"github.com/fchimpan/paddle-pilot/internal/tui"
)

// playFlags are shared by play and watch. Unset flags fall back to config.
type playFlags struct {
	rounds     int
	model      string
	record     bool
	serve      string
	seed       uint64
	jitter     int
	keepLosses bool
	github     bool
	githubUser string
	weeks      int
}

func (f *playFlags) register(c *cobra.Command) {
	c.Flags().IntVarP(&f.rounds, "episodes", "n", 0, "number of rounds to play")
	c.Flags().StringVarP(&f.model, "model", "m", "", "classifier to load (falls back to the landing-point rule)")
	c.Flags().BoolVar(&f.record, "record", false, "save observations of passed rounds for training")
	c.Flags().StringVar(&f.serve, "serve", "", "serve direction: left, right or random")
	c.Flags().Uint64Var(&f.seed, "seed", 0, "seed for random serves and jitter")
	c.Flags().IntVar(&f.jitter, "jitter", 0, "random offset in px added to the rule's target")
	c.Flags().BoolVar(&f.keepLosses, "keep-losses", false, "with --record, also save rounds that end in GAME_OVER")
	c.Flags().BoolVar(&f.github, "github", false, "lay out bricks from the authenticated user's contribution calendar")
	c.Flags().StringVarP(&f.githubUser, "github-user", "u", "", "lay out bricks from this GitHub user's contribution calendar")
	c.Flags().IntVar(&f.weeks, "weeks", 52, "weeks of contributions to lay out (1-52)")
}

func (f *playFlags) apply(c *cobra.Command, st *rootState) {
	cfg := &st.cfg
	fl := c.Flags()
	if fl.Changed("episodes") {
		cfg.Play.Episodes = f.rounds
	}
	if fl.Changed("model") {
		cfg.Paths.Model = f.model
	}
	if fl.Changed("serve") {
		cfg.Policy.Serve = f.serve
	}
	if fl.Changed("seed") {
		cfg.Policy.Seed = f.seed
	}
	if fl.Changed("jitter") {
		cfg.Policy.Jitter = f.jitter
	}
	if fl.Changed("keep-losses") {
		cfg.Policy.KeepLosses = f.keepLosses
	}
}

func newPlayCmd(st *rootState) *cobra.Command {
	var f playFlags
	c := &cobra.Command{
		Use:   "play",
		Short: "Play rounds headless and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.apply(cmd, st)
			return runPlay(cmd.Context(), st, f)
		},
	}
	f.register(c)
	return c
}

func newWatchCmd(st *rootState) *cobra.Command {
	var f playFlags
	var speed int
	c := &cobra.Command{
		Use:   "watch",
		Short: "Watch the agent play in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.apply(cmd, st)
			if !cmd.Flags().Changed("episodes") {
				// Watching is open-ended unless asked otherwise.
				st.cfg.Play.Episodes = 0
			}
			return runWatch(cmd.Context(), st, f, speed)
		},
	}
	f.register(c)
	c.Flags().IntVarP(&speed, "speed", "s", 1, fmt.Sprintf("court frames per screen tick (1-%d)", tui.MaxSpeed))
	return c
}

// sessionOptions builds everything a session needs from config and flags.
// The returned close func releases the ledger.
func sessionOptions(ctx context.Context, st *rootState, f playFlags) (session.Options, func(), error) {
	deps := st.deps
	if deps.LoadClassifier == nil {
		return session.Options{}, nil, fmt.Errorf("deps.LoadClassifier is nil")
	}
	if f.record && deps.NewRecorder == nil {
		return session.Options{}, nil, fmt.Errorf("deps.NewRecorder is nil")
	}
	cfg := st.cfg
	serve, err := policy.ParseServe(cfg.Policy.Serve)
	if err != nil {
		return session.Options{}, nil, err
	}

	gc := game.DefaultConfig()
	gc.Width = cfg.Court.Width
	gc.PaddleY = cfg.Court.PaddleY
	gc.PaddleW = cfg.Court.PaddleWidth
	gc.MaxFrames = cfg.Play.MaxFrames
	gc = gc.Normalized()

	layout := mapping.DefaultLayout()
	if f.github || f.githubUser != "" {
		if deps.FetchCalendar == nil {
			return session.Options{}, nil, fmt.Errorf("deps.FetchCalendar is nil")
		}
		login, cal, err := deps.FetchCalendar(ctx, f.githubUser, f.weeks)
		if err != nil {
			if github.IsUserNotFound(err) {
				return session.Options{}, nil, fmt.Errorf("GitHub user %q was not found", f.githubUser)
			}
			fmt.Fprintln(deps.Stderr, "hint: ensure you're logged in: `gh auth login`")
			return session.Options{}, nil, fmt.Errorf("failed to fetch GitHub contributions: %w", err)
		}
		layout = mapping.FromCalendar(cal, gc.Width)
		log.Infof("bricks from %s's contributions: %d (%d hard)", login, len(layout.Bricks), layout.Hard())
	}

	pc := policy.Config{
		Court:       predict.Court{Width: gc.Width, PaddleY: gc.PaddleY},
		PaddleWidth: gc.PaddleW,
		Classifier:  deps.LoadClassifier(cfg.Paths.Model),
		Serve:       serve,
		Seed:        cfg.Policy.Seed,
		Jitter:      cfg.Policy.Jitter,
		KeepLosses:  cfg.Policy.KeepLosses,
	}
	if f.record {
		pc.Recorder = deps.NewRecorder(cfg.Paths.CollectDir)
	}

	opts := session.Options{Game: gc, Layout: layout, Policy: pc}
	closeFn := func() {}
	if l := st.ledger(); l != nil {
		opts.Ledger = l
		closeFn = func() {
			if err := l.Close(); err != nil {
				log.Warnf("close ledger: %v", err)
			}
		}
	}
	return opts, closeFn, nil
}

func runPlay(ctx context.Context, st *rootState, f playFlags) error {
	if st.deps.Play == nil {
		return fmt.Errorf("deps.Play is nil")
	}
	n := st.cfg.Play.Episodes
	if n <= 0 {
		return fmt.Errorf("--episodes must be > 0")
	}
	opts, closeLedger, err := sessionOptions(ctx, st, f)
	if err != nil {
		return err
	}
	defer closeLedger()

	sum, err := st.deps.Play(ctx, opts, n)
	if err != nil {
		return fmt.Errorf("play: %w", err)
	}

	mode := "landing-point rule"
	if opts.Policy.Classifier != nil {
		mode = "classifier"
	}
	recorded := 0
	for _, r := range sum.Rounds {
		if r.File != "" {
			recorded++
		}
	}
	fmt.Fprintf(st.deps.Stdout, "played %d rounds with the %s: %d passed, %d over\n", len(sum.Rounds), mode, sum.Passes, sum.Losses)
	if f.record {
		fmt.Fprintf(st.deps.Stdout, "recorded %d episodes to %s\n", recorded, st.cfg.Paths.CollectDir)
	}
	return nil
}

func runWatch(ctx context.Context, st *rootState, f playFlags, speed int) error {
	if st.deps.RunTUI == nil {
		return fmt.Errorf("deps.RunTUI is nil")
	}
	if speed < 1 || speed > tui.MaxSpeed {
		return fmt.Errorf("--speed must be in [1, %d]", tui.MaxSpeed)
	}
	opts, closeLedger, err := sessionOptions(ctx, st, f)
	if err != nil {
		return err
	}
	defer closeLedger()

	return st.deps.RunTUI(session.New(opts), st.cfg.Play.Episodes, speed)
}
