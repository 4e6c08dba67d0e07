package policy

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/fchimpan/paddle-pilot/internal/action"
)

// ServeStrategy chooses the serve direction at the start of a round.
type ServeStrategy int

const (
	ServeRandom ServeStrategy = iota
	ServeLeft
	ServeRight
)

func (s ServeStrategy) String() string {
	switch s {
	case ServeLeft:
		return "left"
	case ServeRight:
		return "right"
	default:
		return "random"
	}
}

// ParseServe parses "left", "right" or "random".
func ParseServe(s string) (ServeStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "random":
		return ServeRandom, nil
	case "left":
		return ServeLeft, nil
	case "right":
		return ServeRight, nil
	default:
		return ServeRandom, fmt.Errorf("invalid serve strategy %q (expected left, right or random)", s)
	}
}

func (s ServeStrategy) pick(rng *rand.Rand) action.Command {
	switch s {
	case ServeLeft:
		return action.ServeLeft
	case ServeRight:
		return action.ServeRight
	default:
		if rng.IntN(2) == 0 {
			return action.ServeLeft
		}
		return action.ServeRight
	}
}
