package application

import (
	"context"
	"math/rand"
	"time"
)

// Jitter pauses a random interval between portal interactions so the
// traffic pattern resembles a person clicking through pages.
type Jitter struct {
	min time.Duration
	max time.Duration
}

// NewJitter builds a Jitter bounded by min and max. Swapped bounds are
// reordered.
func NewJitter(min, max time.Duration) *Jitter {
	if max < min {
		min, max = max, min
	}
	return &Jitter{min: min, max: max}
}

// Pause sleeps for a random duration within the bounds, returning early on
// context cancellation.
func (j *Jitter) Pause(ctx context.Context) {
	span := j.max - j.min
	wait := j.min
	if span > 0 {
		wait += time.Duration(rand.Int63n(int64(span)))
	}
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// NoDelay is a DelayPolicy that never pauses. Used in tests.
type NoDelay struct{}

// Pause returns immediately.
func (NoDelay) Pause(context.Context) {}
