package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fchimpan/paddle-pilot/internal/config"
	"github.com/fchimpan/paddle-pilot/internal/github"
	"github.com/fchimpan/paddle-pilot/internal/policy"
	"github.com/fchimpan/paddle-pilot/internal/runlog"
	"github.com/fchimpan/paddle-pilot/internal/scene"
	"github.com/fchimpan/paddle-pilot/internal/session"
	"github.com/fchimpan/paddle-pilot/internal/train"
)

type fakeLedger struct {
	episodes []runlog.Episode
	runs     []runlog.TrainRun
	closed   bool
}

func (f *fakeLedger) RecordEpisode(e runlog.Episode) (runlog.Episode, error) {
	f.episodes = append(f.episodes, e)
	return e, nil
}

func (f *fakeLedger) RecordTrainRun(r runlog.TrainRun) (runlog.TrainRun, error) {
	f.runs = append(f.runs, r)
	return r, nil
}

func (f *fakeLedger) RecentEpisodes(limit int) ([]runlog.Episode, error) { return f.episodes, nil }
func (f *fakeLedger) RecentTrainRuns(limit int) ([]runlog.TrainRun, error) {
	return f.runs, nil
}

func (f *fakeLedger) Totals() (map[scene.Status]int, error) {
	out := map[scene.Status]int{}
	for _, e := range f.episodes {
		out[e.Status]++
	}
	return out, nil
}

func (f *fakeLedger) Close() error {
	f.closed = true
	return nil
}

type nopRecorder struct{}

func (nopRecorder) Record([]scene.Observation, scene.Status) (string, error) { return "", nil }

// testDeps fails the test on any call a case does not override.
func testDeps(t *testing.T, stdout, stderr *bytes.Buffer) Deps {
	t.Helper()
	return Deps{
		LoadConfig: func(path string) (config.Config, error) {
			cfg := config.Default()
			cfg.LogLevel = ""
			cfg.Paths.Ledger = ""
			return cfg, nil
		},
		FetchCalendar: func(ctx context.Context, user string, weeks int) (string, github.Calendar, error) {
			t.Fatalf("FetchCalendar should not be called in this test")
			return "", github.Calendar{}, nil
		},
		LoadClassifier: func(path string) policy.Classifier { return nil },
		NewRecorder: func(dir string) policy.Recorder {
			t.Fatalf("NewRecorder should not be called in this test")
			return nil
		},
		OpenLedger: func(path string) (Ledger, error) {
			t.Fatalf("OpenLedger should not be called in this test")
			return nil, nil
		},
		Play: func(ctx context.Context, opts session.Options, rounds int) (session.Summary, error) {
			t.Fatalf("Play should not be called in this test")
			return session.Summary{}, nil
		},
		RunTUI: func(sess *session.Session, rounds, speed int) error {
			t.Fatalf("RunTUI should not be called in this test")
			return nil
		},
		Train: func(ctx context.Context, cfg train.Config) (train.Result, error) {
			t.Fatalf("Train should not be called in this test")
			return train.Result{}, nil
		},
		Now:    func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) },
		Stdout: stdout,
		Stderr: stderr,
	}
}

func TestRootCmd_MissingConfigLoader(t *testing.T) {
	t.Parallel()

	var out, errOut bytes.Buffer
	deps := testDeps(t, &out, &errOut)
	deps.LoadConfig = nil

	cmd := NewRootCmd(deps)
	cmd.SetArgs([]string{"play"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error for missing deps")
	}
}

func TestRootCmd_ConfigErrorStopsCommand(t *testing.T) {
	t.Parallel()

	var out, errOut bytes.Buffer
	deps := testDeps(t, &out, &errOut)
	var gotPath string
	deps.LoadConfig = func(path string) (config.Config, error) {
		gotPath = path
		return config.Config{}, errors.New("bad yaml")
	}

	cmd := NewRootCmd(deps)
	cmd.SetArgs([]string{"--config", "x.yaml", "train"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error")
	}
	if gotPath != "x.yaml" {
		t.Fatalf("config path = %q", gotPath)
	}
}

func TestRootCmd_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	var out, errOut bytes.Buffer
	deps := testDeps(t, &out, &errOut)

	cmd := NewRootCmd(deps)
	cmd.SetArgs([]string{"--log-level", "loud", "history"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error for invalid log level")
	}
}

func TestHistory_PrintsLedger(t *testing.T) {
	t.Parallel()

	var out, errOut bytes.Buffer
	deps := testDeps(t, &out, &errOut)
	acc := 0.9
	ledger := &fakeLedger{
		episodes: []runlog.Episode{
			{Status: scene.StatusGamePass, Frames: 812, Observations: 800, File: "a.json"},
			{Status: scene.StatusGameOver, Frames: 90},
		},
		runs: []runlog.TrainRun{
			{Sources: []string{"manual", "auto"}, TrainRows: 96, TestRows: 24, Accuracy: &acc, ModelPath: "m.json", Saved: true},
		},
	}
	var gotPath string
	deps.LoadConfig = func(path string) (config.Config, error) {
		cfg := config.Default()
		cfg.LogLevel = ""
		cfg.Paths.Ledger = "ledger.db"
		return cfg, nil
	}
	deps.OpenLedger = func(path string) (Ledger, error) {
		gotPath = path
		return ledger, nil
	}

	cmd := NewRootCmd(deps)
	cmd.SetArgs([]string{"history"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if gotPath != "ledger.db" {
		t.Fatalf("ledger path = %q", gotPath)
	}
	for _, want := range []string{"1 passed, 1 over", "GAME_PASS", "800 obs", "manual,auto", "0.9000", "m.json"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("history output missing %q:\n%s", want, out.String())
		}
	}
	if !ledger.closed {
		t.Fatalf("ledger not closed")
	}
}
