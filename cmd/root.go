package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"fortio.org/log"
	"github.com/spf13/cobra"

	"github.com/fchimpan/paddle-pilot/internal/config"
	"github.com/fchimpan/paddle-pilot/internal/episode"
	"github.com/fchimpan/paddle-pilot/internal/github"
	"github.com/fchimpan/paddle-pilot/internal/policy"
	"github.com/fchimpan/paddle-pilot/internal/runlog"
	"github.com/fchimpan/paddle-pilot/internal/scene"
	"github.com/fchimpan/paddle-pilot/internal/session"
	"github.com/fchimpan/paddle-pilot/internal/train"
)

// Ledger is the part of *runlog.Store the commands use.
type Ledger interface {
	session.EpisodeLog
	RecordTrainRun(r runlog.TrainRun) (runlog.TrainRun, error)
	RecentEpisodes(limit int) ([]runlog.Episode, error)
	RecentTrainRuns(limit int) ([]runlog.TrainRun, error)
	Totals() (map[scene.Status]int, error)
	Close() error
}

type Deps struct {
	LoadConfig     func(path string) (config.Config, error)
	FetchCalendar  func(ctx context.Context, user string, weeks int) (string, github.Calendar, error)
	LoadClassifier func(path string) policy.Classifier
	NewRecorder    func(dir string) policy.Recorder
	OpenLedger     func(path string) (Ledger, error)
	Play           func(ctx context.Context, opts session.Options, rounds int) (session.Summary, error)
	RunTUI         func(sess *session.Session, rounds, speed int) error
	Train          func(ctx context.Context, cfg train.Config) (train.Result, error)
	Now            func() time.Time
	Stdout         io.Writer
	Stderr         io.Writer
}

func DefaultDeps() Deps {
	return Deps{
		LoadConfig:     config.Load,
		FetchCalendar:  fetchCalendar,
		LoadClassifier: policy.LoadClassifier,
		NewRecorder:    func(dir string) policy.Recorder { return episode.NewWriter(dir) },
		OpenLedger:     openLedger,
		Play:           session.Play,
		RunTUI:         defaultRunTUI,
		Train:          train.Run,
		Now:            time.Now,
		Stdout:         os.Stdout,
		Stderr:         os.Stderr,
	}
}

func fetchCalendar(ctx context.Context, user string, weeks int) (string, github.Calendar, error) {
	c, err := github.NewClient()
	if err != nil {
		return "", github.Calendar{}, err
	}
	return c.FetchCalendar(ctx, user, weeks)
}

func openLedger(path string) (Ledger, error) {
	s, err := runlog.NewStore(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// rootState is shared by the subcommands: flags on the root command and
// the config they resolve to.
type rootState struct {
	deps       Deps
	configPath string
	logLevel   string
	cfg        config.Config
}

func NewRootCmd(deps Deps) *cobra.Command {
	st := &rootState{deps: deps}

	c := &cobra.Command{
		Use:          "paddle-pilot",
		Short:        "An Arkanoid paddle agent: play, watch, and train its classifier",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return st.load(cmd)
		},
	}

	c.PersistentFlags().StringVarP(&st.configPath, "config", "c", "", "YAML config file (default: "+config.DefaultPath+" if present)")
	c.PersistentFlags().StringVar(&st.logLevel, "log-level", "", "log level: debug, verbose, info, warning, error")

	c.AddCommand(
		newPlayCmd(st),
		newWatchCmd(st),
		newTrainCmd(st),
		newHistoryCmd(st),
	)

	c.SetOut(deps.Stdout)
	c.SetErr(deps.Stderr)
	return c
}

func (st *rootState) load(cmd *cobra.Command) error {
	if st.deps.LoadConfig == nil {
		return fmt.Errorf("deps.LoadConfig is nil")
	}
	cfg, err := st.deps.LoadConfig(st.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = st.logLevel
	}
	if cfg.LogLevel != "" {
		if err := log.SetLogLevelStr(cfg.LogLevel); err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
	}
	st.cfg = cfg
	return nil
}

// ledger opens the configured ledger. The ledger is bookkeeping only, so a
// failure is logged and the command carries on without one.
func (st *rootState) ledger() Ledger {
	if st.deps.OpenLedger == nil || st.cfg.Paths.Ledger == "" {
		return nil
	}
	l, err := st.deps.OpenLedger(st.cfg.Paths.Ledger)
	if err != nil {
		log.Warnf("ledger unavailable: %v", err)
		return nil
	}
	return l
}
