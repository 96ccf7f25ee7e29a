package slots

import (
	"errors"
	"sort"
	"time"
)

// ErrInvalidWindow is returned by FreeSlots when end is not after start.
var ErrInvalidWindow = errors.New("slots: window end must be after start")

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether the two half-open intervals share any instant.
// Touching intervals (a.End == b.Start) do not overlap.
func (a Interval) Overlaps(b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// AnyOverlap reports whether candidate overlaps any interval in busy.
func AnyOverlap(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}

// MergeIntervals sorts busy intervals by start and coalesces the ones that
// overlap or touch. The input slice is not modified.
func MergeIntervals(busy []Interval) []Interval {
	if len(busy) == 0 {
		return nil
	}
	sorted := make([]Interval, len(busy))
	copy(sorted, busy)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	merged := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// FreeSlots splits the gaps between busy intervals inside [start, end) into
// consecutive fixed-size slots. A trailing gap shorter than slot is dropped.
func FreeSlots(start, end time.Time, slot time.Duration, busy []Interval) ([]Interval, error) {
	if slot <= 0 {
		return nil, ErrInvalidConfiguration
	}
	if !start.Before(end) {
		return nil, ErrInvalidWindow
	}

	var clipped []Interval
	for _, b := range busy {
		if !b.End.After(start) || !b.Start.Before(end) {
			continue
		}
		if b.Start.Before(start) {
			b.Start = start
		}
		if b.End.After(end) {
			b.End = end
		}
		clipped = append(clipped, b)
	}

	out := []Interval{}
	cursor := start
	emit := func(gapEnd time.Time) {
		for s := cursor; !s.Add(slot).After(gapEnd); s = s.Add(slot) {
			out = append(out, Interval{Start: s, End: s.Add(slot)})
		}
	}
	for _, b := range MergeIntervals(clipped) {
		if cursor.Before(b.Start) {
			emit(b.Start)
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if cursor.Before(end) {
		emit(end)
	}
	return out, nil
}
