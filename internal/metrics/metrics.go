package metrics

import (
	"sync/atomic"
	"time"
)

type Counter struct {
	value uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

func (c *Counter) Add(n uint64) {
	atomic.AddUint64(&c.value, n)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Reconciliation counts webhook notifications through the engine.
type Reconciliation struct {
	Received     Counter
	Processed    Counter
	Unmatched    Counter
	Unrecognized Counter
	Superseded   Counter
	Transitions  Counter
	Failures     Counter
}

func (r *Reconciliation) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"received":     r.Received.Load(),
		"processed":    r.Processed.Load(),
		"unmatched":    r.Unmatched.Load(),
		"unrecognized": r.Unrecognized.Load(),
		"superseded":   r.Superseded.Load(),
		"transitions":  r.Transitions.Load(),
		"failures":     r.Failures.Load(),
	}
}
