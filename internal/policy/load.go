package policy

import (
	"errors"
	"io/fs"

	"fortio.org/log"

	"github.com/fchimpan/paddle-pilot/internal/knn"
)

// LoadClassifier loads the model at path for a play session. Any failure is
// logged and yields nil, which makes the policy use the threshold rule for
// the rest of the session.
func LoadClassifier(path string) Classifier {
	if path == "" {
		return nil
	}
	m, err := knn.Load(path)
	switch {
	case err == nil:
		log.Infof("loaded classifier from %s (%d rows, k=%d)", path, len(m.Points), m.K)
		return m
	case errors.Is(err, fs.ErrNotExist):
		log.Infof("no classifier at %s, using the landing-point rule", path)
	case knn.IsShapeError(err):
		log.Warnf("classifier %s does not match the feature layout, using the landing-point rule: %v", path, err)
	default:
		log.Warnf("failed to load classifier, using the landing-point rule: %v", err)
	}
	return nil
}
