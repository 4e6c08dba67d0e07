package mapping

import (
	"math"

	"github.com/fchimpan/paddle-pilot/internal/github"
)

// Brick size in pixels.
const (
	BrickW = 25
	BrickH = 10
)

// Top of the first brick row.
const topY = 60

type Brick struct {
	X  float64
	Y  float64
	HP int
}

type Layout struct {
	Bricks []Brick
}

func (l Layout) Hard() int {
	n := 0
	for _, b := range l.Bricks {
		if b.HP >= 2 {
			n++
		}
	}
	return n
}

// DefaultLayout is four full rows across a 200px court with a hard second row.
func DefaultLayout() Layout {
	return gridLayout(4, 8, func(r, _ int) int {
		if r == 1 {
			return 2
		}
		return 1
	})
}

func gridLayout(rows, cols int, hp func(r, c int) int) Layout {
	var l Layout
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			h := hp(r, c)
			if h <= 0 {
				continue
			}
			l.Bricks = append(l.Bricks, Brick{
				X:  float64(c * BrickW),
				Y:  float64(topY + r*BrickH),
				HP: h,
			})
		}
	}
	return l
}

func HPFromCount(count, maxCount int) int {
	if count <= 0 {
		return 0
	}
	if maxCount <= 0 {
		return 1
	}
	hp := int(math.Ceil(4.0 * float64(count) / float64(maxCount)))
	if hp < 1 {
		hp = 1
	}
	if hp > 4 {
		hp = 4
	}
	return hp
}

// FromCalendar converts a GitHub contribution calendar into bricks, one row
// per weekday (0=Sunday..6=Saturday) and one column per group of weeks.
// Days without contributions leave a gap. The busiest days (strength 3 and 4
// out of 4) become hard bricks. An empty calendar yields DefaultLayout.
//
// The calendar is week-major (N weeks x 7 days). Weeks are compressed into
// courtWidth/BrickW columns by taking the per-weekday MAX contributionCount
// within each group.
func FromCalendar(cal github.Calendar, courtWidth float64) Layout {
	weeks := cal.Weeks
	maxCols := int(courtWidth) / BrickW
	if maxCols <= 0 {
		maxCols = 1
	}
	if len(weeks) == 0 {
		return DefaultLayout()
	}

	cols := min(len(weeks), maxCols)
	counts := make([][]int, 7)
	for r := range counts {
		counts[r] = make([]int, cols)
	}

	// Evenly distribute week indices into [0..cols-1].
	maxCount := 0
	for wi, w := range weeks {
		col := (wi * cols) / len(weeks)
		for _, d := range w.ContributionDays {
			r := d.Weekday
			if r < 0 || r >= 7 {
				continue
			}
			if d.ContributionCount > counts[r][col] {
				counts[r][col] = d.ContributionCount
			}
			maxCount = max(maxCount, counts[r][col])
		}
	}
	if maxCount == 0 {
		return DefaultLayout()
	}

	return gridLayout(7, cols, func(r, c int) int {
		switch hp := HPFromCount(counts[r][c], maxCount); {
		case hp >= 3:
			return 2
		case hp > 0:
			return 1
		default:
			return 0
		}
	})
}
