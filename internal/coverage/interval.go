package coverage

import (
	"fmt"
	"sort"
)

// Interval is a time span in seconds. Valid intervals satisfy Start < End.
type Interval struct {
	Start float64
	End   float64
}

// Length returns the span duration in seconds.
func (i Interval) Length() float64 {
	return i.End - i.Start
}

// Valid reports whether the interval has positive length.
func (i Interval) Valid() bool {
	return i.End > i.Start
}

func (i Interval) String() string {
	return fmt.Sprintf("%.1fs-%.1fs", i.Start, i.End)
}

// Sorted returns a copy of intervals ordered by start, then end.
func Sorted(intervals []Interval) []Interval {
	out := append([]Interval(nil), intervals...)
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Start == out[b].Start {
			return out[a].End < out[b].End
		}
		return out[a].Start < out[b].Start
	})
	return out
}

// Total sums the length of every interval. Overlaps are counted twice.
func Total(intervals []Interval) float64 {
	var sum float64
	for _, iv := range intervals {
		sum += iv.Length()
	}
	return sum
}
