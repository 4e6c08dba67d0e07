package knn

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fchimpan/paddle-pilot/internal/action"
	"github.com/fchimpan/paddle-pilot/internal/features"
)

// artifact is the on-disk form of a Model. Features records the column
// order the model was trained with.
type artifact struct {
	Features  []string       `json:"features"`
	K         int            `json:"k"`
	Points    [][]float64    `json:"points"`
	Labels    []action.Label `json:"labels"`
	TrainedAt time.Time      `json:"trained_at"`
}

// ShapeError means a stored model does not match the current feature
// layout.
type ShapeError struct {
	Features []string
	Width    int
}

func (e *ShapeError) Error() string {
	if e == nil {
		return "incompatible feature shape"
	}
	return fmt.Sprintf("incompatible feature shape: model has %v (width %d), want %v", e.Features, e.Width, features.Names)
}

func IsShapeError(err error) bool {
	var e *ShapeError
	return errors.As(err, &e)
}

// Save writes m to path. The file is replaced only after the new content
// has been fully written.
func Save(path string, m *Model) error {
	if m == nil {
		return fmt.Errorf("knn: nil model")
	}
	a := artifact{
		Features:  features.Names,
		K:         m.K,
		Points:    m.Points,
		Labels:    m.Labels,
		TrainedAt: time.Now().UTC(),
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp model: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := json.NewEncoder(tmp).Encode(a); err != nil {
		tmp.Close()
		return fmt.Errorf("encode model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp model: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace model: %w", err)
	}
	return nil
}

// Load reads a model written by Save and checks it against the current
// feature layout.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer f.Close()

	var a artifact
	if err := json.NewDecoder(f).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}

	if !features.SameLayout(a.Features) {
		return nil, &ShapeError{Features: a.Features, Width: widthOf(a.Points)}
	}
	for _, p := range a.Points {
		if len(p) != features.Width {
			return nil, &ShapeError{Features: a.Features, Width: len(p)}
		}
	}

	m, err := Fit(a.Points, a.Labels, a.K)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	return m, nil
}

func widthOf(points [][]float64) int {
	if len(points) == 0 {
		return 0
	}
	return len(points[0])
}
