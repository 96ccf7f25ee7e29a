// Package slots derives candidate booking times from a resource's
// availability window. Everything here is a pure function of its inputs.
package slots

import (
	"errors"
	"time"
)

// DefaultStep is the step used when a resource does not configure one.
const DefaultStep = 30 * time.Minute

// ErrInvalidConfiguration is returned when the step size is not positive.
var ErrInvalidConfiguration = errors.New("slots: step must be positive")

// Generate returns every step-aligned timestamp between windowStart and
// windowEnd, inclusive of windowEnd when it falls on a step boundary.
//
// When after is non-nil the sequence restarts from after+step, so end
// candidates stay aligned to the chosen start rather than to the window
// origin. Points of that sequence before windowStart are skipped. The
// result is empty when the window is empty or after is not before
// windowEnd.
func Generate(windowStart, windowEnd time.Time, step time.Duration, after *time.Time) ([]time.Time, error) {
	if step <= 0 {
		return nil, ErrInvalidConfiguration
	}
	out := []time.Time{}
	if !windowStart.Before(windowEnd) {
		return out, nil
	}
	cur := windowStart
	if after != nil {
		if !after.Before(windowEnd) {
			return out, nil
		}
		cur = after.Add(step)
		if cur.Before(windowStart) {
			n := (windowStart.Sub(cur) + step - 1) / step
			cur = cur.Add(n * step)
		}
	}
	for !cur.After(windowEnd) {
		out = append(out, cur)
		cur = cur.Add(step)
	}
	return out, nil
}

// GenerateMinutes is Generate with the step expressed in whole minutes.
func GenerateMinutes(windowStart, windowEnd time.Time, stepMinutes int, after *time.Time) ([]time.Time, error) {
	return Generate(windowStart, windowEnd, time.Duration(stepMinutes)*time.Minute, after)
}
