// Package train fits the paddle classifier from recorded episodes.
package train

import (
	"context"
	"errors"
	"fmt"

	"fortio.org/log"

	"github.com/fchimpan/paddle-pilot/internal/episode"
	"github.com/fchimpan/paddle-pilot/internal/knn"
	"github.com/fchimpan/paddle-pilot/internal/scene"
)

var (
	ErrNoData = errors.New("no episode files found")
	ErrNoRows = errors.New("no labeled rows in the loaded episodes")
)

type Options struct {
	Neighbors    int
	TestFraction float64
	Seed         uint64
}

func DefaultOptions() Options {
	return Options{
		Neighbors:    knn.DefaultK,
		TestFraction: 0.2,
		Seed:         42,
	}
}

// Result describes a training run. Accuracy is only meaningful when
// HasAccuracy is set (the held-out set was not empty).
type Result struct {
	Model       *knn.Model
	Train       Dataset
	Test        Dataset
	Accuracy    float64
	HasAccuracy bool

	Files   int
	Skipped int
	Rows    int

	ModelPath string
	Saved     bool
	SaveErr   error
}

// Fit extracts rows from episodes, splits them and fits the classifier.
func Fit(episodes [][]scene.Observation, opts Options) (Result, error) {
	if opts.Neighbors <= 0 {
		opts.Neighbors = knn.DefaultK
	}
	d := Extract(episodes)
	if d.Len() == 0 {
		return Result{}, ErrNoRows
	}

	trainSet, testSet := Split(d, opts.TestFraction, opts.Seed)
	m, err := knn.Fit(trainSet.X, trainSet.Y, opts.Neighbors)
	if err != nil {
		return Result{}, fmt.Errorf("fit classifier: %w", err)
	}
	acc, ok := m.Accuracy(testSet.X, testSet.Y)

	return Result{
		Model:       m,
		Train:       trainSet,
		Test:        testSet,
		Accuracy:    acc,
		HasAccuracy: ok,
		Rows:        d.Len(),
	}, nil
}

// Config is a full training run: where the episodes are and where the
// classifier goes.
type Config struct {
	Dirs      []string
	ModelPath string
	PlotPath  string
	Options   Options
}

// Run loads every episode file under cfg.Dirs, fits a classifier and saves
// it to cfg.ModelPath. It returns ErrNoData or ErrNoRows without writing
// anything when there is nothing to learn from. A failure to save the
// model is recorded in Result.SaveErr and does not fail the run.
func Run(ctx context.Context, cfg Config) (Result, error) {
	files, err := episode.Discover(cfg.Dirs)
	if err != nil {
		return Result{}, err
	}
	if len(files) == 0 {
		return Result{}, fmt.Errorf("%w in %v", ErrNoData, cfg.Dirs)
	}

	episodes, loadErr := episode.LoadAll(files)
	skipped := 0
	if loadErr != nil {
		skipped = len(files) - len(episodes)
		log.Warnf("%d of %d episode files could not be loaded", skipped, len(files))
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res, err := Fit(episodes, cfg.Options)
	if err != nil {
		return Result{Files: len(files), Skipped: skipped}, err
	}
	res.Files = len(files)
	res.Skipped = skipped
	res.ModelPath = cfg.ModelPath

	log.Infof("trained on %d rows (%d held out) from %d files", res.Train.Len(), res.Test.Len(), len(files)-skipped)
	if res.HasAccuracy {
		log.Infof("held-out accuracy: %.4f", res.Accuracy)
	}

	if err := knn.Save(cfg.ModelPath, res.Model); err != nil {
		log.Errf("failed to save classifier: %v", err)
		res.SaveErr = err
	} else {
		res.Saved = true
		log.Infof("saved classifier to %s", cfg.ModelPath)
	}

	if cfg.PlotPath != "" {
		if err := WritePlot(cfg.PlotPath, res); err != nil {
			log.Warnf("failed to write evaluation plot: %v", err)
		}
	}
	return res, nil
}
