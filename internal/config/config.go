// Package config loads paddle-pilot's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given. It may be absent.
const DefaultPath = "paddle_pilot.yaml"

type Config struct {
	Court    Court  `yaml:"court"`
	Policy   Policy `yaml:"policy"`
	Paths    Paths  `yaml:"paths"`
	Train    Train  `yaml:"train"`
	Play     Play   `yaml:"play"`
	LogLevel string `yaml:"log_level"`
}

type Court struct {
	Width       float64 `yaml:"width"`
	PaddleY     float64 `yaml:"paddle_y"`
	PaddleWidth float64 `yaml:"paddle_width"`
}

type Policy struct {
	Serve      string `yaml:"serve"` // left, right or random
	Seed       uint64 `yaml:"seed"`
	Jitter     int    `yaml:"jitter"`
	KeepLosses bool   `yaml:"keep_losses"`
}

type Paths struct {
	Model      string   `yaml:"model"`
	CollectDir string   `yaml:"collect_dir"`
	DataDirs   []string `yaml:"data_dirs"`
	Ledger     string   `yaml:"ledger"`
}

type Train struct {
	Neighbors    int     `yaml:"neighbors"`
	TestFraction float64 `yaml:"test_fraction"`
	Seed         uint64  `yaml:"seed"`
}

type Play struct {
	Episodes  int `yaml:"episodes"`
	MaxFrames int `yaml:"max_frames"`
}

func Default() Config {
	return Config{
		Court: Court{Width: 200, PaddleY: 400, PaddleWidth: 40},
		Policy: Policy{
			Serve: "random",
		},
		Paths: Paths{
			Model:      "arkanoid_model.json",
			CollectDir: "arkanoid_data_collection",
			DataDirs:   []string{"manual_arkanoid_data_collection", "arkanoid_data_collection"},
			Ledger:     "paddle_pilot.db",
		},
		Train:    Train{Neighbors: 20, TestFraction: 0.2, Seed: 42},
		Play:     Play{Episodes: 10, MaxFrames: 20000},
		LogLevel: "info",
	}
}

// Load reads path over Default. An empty path means DefaultPath, which is
// allowed to be missing; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

const minCourtWidth = 50

func (c Config) Validate() error {
	switch {
	case c.Court.Width < minCourtWidth:
		return fmt.Errorf("court.width must be >= %d", minCourtWidth)
	case c.Court.PaddleWidth <= 0 || c.Court.PaddleWidth > c.Court.Width:
		return fmt.Errorf("court.paddle_width must be in (0, court.width]")
	case c.Policy.Jitter < 0:
		return fmt.Errorf("policy.jitter must be >= 0")
	case c.Train.Neighbors <= 0:
		return fmt.Errorf("train.neighbors must be > 0")
	case c.Train.TestFraction < 0 || c.Train.TestFraction >= 1:
		return fmt.Errorf("train.test_fraction must be in [0, 1)")
	case c.Play.Episodes < 0 || c.Play.MaxFrames < 0:
		return fmt.Errorf("play.episodes and play.max_frames must be >= 0")
	}
	return nil
}
