// Package selection tracks a user's progress through picking a booking
// interval: first a start, then an end strictly after it.
package selection

import (
	"errors"
	"time"

	"github.com/iliyamo/resource-booking/internal/slots"
)

// ErrInvalidSelection is returned when an end is chosen without a start or
// at or before the chosen start.
var ErrInvalidSelection = errors.New("selection: end must be after the chosen start")

// ErrOutsideWindow is returned when a start or end falls outside the
// availability window.
var ErrOutsideWindow = errors.New("selection: time outside the availability window")

// Phase is the stage of one booking attempt.
type Phase int

const (
	NoSelection Phase = iota
	StartChosen
	Complete
)

func (p Phase) String() string {
	switch p {
	case NoSelection:
		return "no-selection"
	case StartChosen:
		return "start-chosen"
	case Complete:
		return "complete"
	}
	return "unknown"
}

// Selector is the state machine for a single booking attempt. It is not
// safe for concurrent use; callers that share one must serialize access.
type Selector struct {
	windowStart time.Time
	windowEnd   time.Time
	step        time.Duration

	starts []time.Time
	ends   []time.Time

	start *time.Time
	end   *time.Time
}

// New builds a selector over the given availability window. The start
// candidates are computed once here.
func New(windowStart, windowEnd time.Time, step time.Duration) (*Selector, error) {
	starts, err := slots.Generate(windowStart, windowEnd, step, nil)
	if err != nil {
		return nil, err
	}
	return &Selector{
		windowStart: windowStart,
		windowEnd:   windowEnd,
		step:        step,
		starts:      starts,
	}, nil
}

func (s *Selector) Phase() Phase {
	switch {
	case s.start == nil:
		return NoSelection
	case s.end == nil:
		return StartChosen
	default:
		return Complete
	}
}

// ChooseStart sets the start from any phase, discards any chosen end and
// recomputes the end candidates relative to t. A start outside
// [windowStart, windowEnd) fails with ErrOutsideWindow and leaves the state
// untouched.
func (s *Selector) ChooseStart(t time.Time) error {
	if t.Before(s.windowStart) || !t.Before(s.windowEnd) {
		return ErrOutsideWindow
	}
	ends, err := slots.Generate(s.windowStart, s.windowEnd, s.step, &t)
	if err != nil {
		return err
	}
	start := t
	s.start = &start
	s.end = nil
	s.ends = ends
	return nil
}

// ChooseEnd completes the selection. It fails with ErrInvalidSelection and
// leaves the state untouched unless a start is chosen and t is after it, and
// with ErrOutsideWindow when t is past the window end.
func (s *Selector) ChooseEnd(t time.Time) error {
	if s.Phase() != StartChosen || !t.After(*s.start) {
		return ErrInvalidSelection
	}
	if t.After(s.windowEnd) {
		return ErrOutsideWindow
	}
	end := t
	s.end = &end
	return nil
}

// Reset clears both ends of the selection.
func (s *Selector) Reset() {
	s.start = nil
	s.end = nil
	s.ends = nil
}

// DiscardEnd drops the chosen end but keeps the start, returning a complete
// selection to StartChosen. It is a no-op in other phases.
func (s *Selector) DiscardEnd() {
	if s.Phase() == Complete {
		s.end = nil
	}
}

// StartCandidates returns a copy of the start candidates.
func (s *Selector) StartCandidates() []time.Time {
	return append([]time.Time(nil), s.starts...)
}

// EndCandidates returns a copy of the end candidates for the current start,
// or nil when no start is chosen.
func (s *Selector) EndCandidates() []time.Time {
	if s.start == nil {
		return nil
	}
	return append([]time.Time(nil), s.ends...)
}

// Selection returns the chosen interval and whether it is complete.
func (s *Selector) Selection() (start, end time.Time, ok bool) {
	if s.start != nil {
		start = *s.start
	}
	if s.end != nil {
		end = *s.end
	}
	return start, end, s.Phase() == Complete
}

// Interval returns the chosen range when the selection is complete.
func (s *Selector) Interval() (slots.Interval, bool) {
	start, end, ok := s.Selection()
	return slots.Interval{Start: start, End: end}, ok
}
