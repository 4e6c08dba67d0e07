package train

import (
	"math"
	"math/rand/v2"

	"github.com/fchimpan/paddle-pilot/internal/action"
	"github.com/fchimpan/paddle-pilot/internal/features"
	"github.com/fchimpan/paddle-pilot/internal/scene"
)

// Dataset is a feature table with one label per row.
type Dataset struct {
	X [][]float64
	Y []action.Label
}

func (d Dataset) Len() int { return len(d.X) }

// Extract turns recorded episodes into rows. Velocity restarts at zero at
// the beginning of every episode. Records whose command has no label are
// left out but still serve as the previous record for the next one, the
// same way the policy tracks them while playing.
func Extract(episodes [][]scene.Observation) Dataset {
	var d Dataset
	for _, ep := range episodes {
		var prev *scene.Observation
		for i := range ep {
			o := ep[i]
			if label, ok := action.LabelOf(o.Command); ok {
				v := features.Build(o, prev)
				d.X = append(d.X, v.Slice())
				d.Y = append(d.Y, label)
			}
			prev = &ep[i]
		}
	}
	return d
}

// Split shuffles d with a fixed seed and holds out ceil(len*testFraction)
// rows, keeping at least one training row.
func Split(d Dataset, testFraction float64, seed uint64) (trainSet, testSet Dataset) {
	n := d.Len()
	nTest := int(math.Ceil(float64(n) * testFraction))
	if nTest > n-1 {
		nTest = n - 1
	}
	if nTest < 0 {
		nTest = 0
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x517cc1b727220a95))
	perm := rng.Perm(n)

	for i, idx := range perm {
		if i < nTest {
			testSet.X = append(testSet.X, d.X[idx])
			testSet.Y = append(testSet.Y, d.Y[idx])
		} else {
			trainSet.X = append(trainSet.X, d.X[idx])
			trainSet.Y = append(trainSet.Y, d.Y[idx])
		}
	}
	return trainSet, testSet
}
