package interval

import (
	"sort"
	"time"
)

// Interval is a half-open time interval [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// IsValid reports whether the interval has positive length.
func (iv Interval) IsValid() bool {
	return iv.Start.Before(iv.End)
}

// Overlaps reports whether two intervals share any instant.
// Touching intervals ([9:00,9:30) and [9:30,10:00)) do not overlap,
// and zero-length intervals overlap nothing.
func (iv Interval) Overlaps(other Interval) bool {
	start := iv.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := iv.End
	if other.End.Before(end) {
		end = other.End
	}
	return start.Before(end)
}

// Contains reports whether t falls inside the interval.
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Merge returns the union of the given intervals as a sorted, minimal
// set of non-overlapping intervals. Invalid (zero or negative length)
// entries are dropped. The input slice is not modified.
func Merge(ivs []Interval) []Interval {
	valid := make([]Interval, 0, len(ivs))
	for _, iv := range ivs {
		if iv.IsValid() {
			valid = append(valid, iv)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	sort.Slice(valid, func(i, j int) bool {
		return valid[i].Start.Before(valid[j].Start)
	})

	merged := []Interval{valid[0]}
	for _, iv := range valid[1:] {
		last := &merged[len(merged)-1]
		if iv.Start.After(last.End) {
			merged = append(merged, iv)
			continue
		}
		if iv.End.After(last.End) {
			last.End = iv.End
		}
	}

	return merged
}

// AnyOverlap reports whether candidate overlaps at least one of the
// given busy intervals. Pairwise testing keeps behavior identical to
// the merged representation while busy sets stay small.
func AnyOverlap(candidate Interval, busy []Interval) bool {
	for _, iv := range busy {
		if candidate.Overlaps(iv) {
			return true
		}
	}
	return false
}
