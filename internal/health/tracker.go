// Package health tracks pipeline liveness: the time of the last successful
// message processing and a verdict derived from how long the pipeline has
// been idle.
package health

import (
	"sync"
	"time"
)

// Tracker records the last successful processing timestamp. Evaluating the
// verdict is a side-effecting read: an idle time beyond the threshold flips
// the stored flag to unhealthy until the next MarkProcessed.
type Tracker struct {
	mu            sync.Mutex
	lastProcessed time.Time
	healthy       bool
	threshold     time.Duration

	now func() time.Time
}

// Snapshot is a point-in-time view for the metrics endpoint.
type Snapshot struct {
	Healthy       bool      `json:"healthy"`
	LastProcessed time.Time `json:"last_processed"`
	IdleSeconds   float64   `json:"idle_seconds"`
}

func NewTracker(threshold time.Duration) *Tracker {
	t := &Tracker{threshold: threshold, healthy: true, now: time.Now}
	t.lastProcessed = t.now()
	return t
}

// MarkProcessed records a successful processing cycle and clears any
// unhealthy verdict.
func (t *Tracker) MarkProcessed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastProcessed = t.now()
	t.healthy = true
}

// Check evaluates and returns the current verdict.
func (t *Tracker) Check() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.evaluate()
}

// Snapshot evaluates the verdict and returns it together with the last
// processed timestamp and the current idle time.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	healthy := t.evaluate()
	return Snapshot{
		Healthy:       healthy,
		LastProcessed: t.lastProcessed,
		IdleSeconds:   t.now().Sub(t.lastProcessed).Seconds(),
	}
}

// evaluate must be called with the mutex held.
func (t *Tracker) evaluate() bool {
	if t.now().Sub(t.lastProcessed) > t.threshold {
		t.healthy = false
	}
	return t.healthy
}
