// Package episode persists the observations of finished episodes and finds
// them again for training. Each episode is one JSON file holding an array of
// observations in tick order.
package episode

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"fortio.org/log"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/fchimpan/paddle-pilot/internal/scene"
)

// Ext is the file extension of episode files.
const Ext = ".json"

const filePrefix = "arkanoid_data_"

// FileName returns the name an episode finished at t is stored under. The
// id suffix keeps episodes that end within the same second apart.
func FileName(t time.Time, id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return filePrefix + t.Format("20060102_150405") + "_" + id + Ext
}

// Writer stores episodes in Dir.
type Writer struct {
	Dir   string
	Now   func() time.Time
	NewID func() string
}

func NewWriter(dir string) *Writer {
	return &Writer{
		Dir:   dir,
		Now:   time.Now,
		NewID: uuid.NewString,
	}
}

// Record writes obs to a new file and returns its path. status is the
// terminal status of the episode; it is only used for logging.
func (w *Writer) Record(obs []scene.Observation, status scene.Status) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create collection dir: %w", err)
	}
	if obs == nil {
		obs = []scene.Observation{}
	}
	b, err := json.Marshal(obs)
	if err != nil {
		return "", fmt.Errorf("encode episode: %w", err)
	}

	path := filepath.Join(w.Dir, FileName(w.Now(), w.NewID()))
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("write episode: %w", err)
	}
	log.Infof("saved %d observations (%s) to %s", len(obs), status, path)
	return path, nil
}

// Discover returns the episode files in dirs, sorted within each directory.
// A directory that does not exist contributes nothing. Repeated
// directories are only scanned once.
func Discover(dirs []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, dir := range dirs {
		clean := filepath.Clean(dir)
		if seen[clean] {
			continue
		}
		seen[clean] = true

		matches, err := filepath.Glob(filepath.Join(clean, "*"+Ext))
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", dir, err)
		}
		sort.Strings(matches)
		log.Infof("found %d episode files in %q", len(matches), dir)
		out = append(out, matches...)
	}
	return out, nil
}

// Load reads one episode file.
func Load(path string) ([]scene.Observation, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read episode: %w", err)
	}
	var obs []scene.Observation
	if err := json.Unmarshal(b, &obs); err != nil {
		return nil, fmt.Errorf("decode episode %s: %w", path, err)
	}
	return obs, nil
}

// LoadAll reads every file in paths. Files that cannot be read or parsed
// are skipped; their errors are returned together as a *multierror.Error
// alongside the episodes that did load.
func LoadAll(paths []string) ([][]scene.Observation, error) {
	var (
		episodes [][]scene.Observation
		errs     *multierror.Error
	)
	for _, p := range paths {
		obs, err := Load(p)
		if err != nil {
			log.Warnf("skipping episode file: %v", err)
			errs = multierror.Append(errs, err)
			continue
		}
		episodes = append(episodes, obs)
	}
	return episodes, errs.ErrorOrNil()
}
