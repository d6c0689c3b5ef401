package domain

import (
	"sync"
	"time"
)

// ProgressFunc receives progress percentages in [0,100].
type ProgressFunc func(percent int)

// Span maps a local 0-100 counter onto the [lo,hi] range of sink.
func Span(sink ProgressFunc, lo, hi int) ProgressFunc {
	if sink == nil {
		return func(int) {}
	}
	return func(p int) {
		p = clampPercent(p)
		sink(lo + (hi-lo)*p/100)
	}
}

// Fraction converts done/total into a 0-100 percentage. An unknown total
// yields 0.
func Fraction(done, total int) int {
	if total <= 0 || done <= 0 {
		return 0
	}
	return clampPercent(done * 100 / total)
}

// ProgressReporter forwards monotonically increasing values to a sink and
// drops updates that arrive faster than minInterval unless they moved by at
// least minStep.
type ProgressReporter struct {
	mu          sync.Mutex
	sink        ProgressFunc
	minStep     int
	minInterval time.Duration
	now         func() time.Time

	seen     int
	emitted  int
	lastEmit time.Time
}

func NewProgressReporter(sink ProgressFunc, minStep int, minInterval time.Duration) *ProgressReporter {
	if minStep <= 0 {
		minStep = 1
	}
	return &ProgressReporter{
		sink:        sink,
		minStep:     minStep,
		minInterval: minInterval,
		now:         time.Now,
		seen:        -1,
		emitted:     -1,
	}
}

func (r *ProgressReporter) Report(p int) {
	p = clampPercent(p)

	r.mu.Lock()
	defer r.mu.Unlock()
	if p <= r.seen {
		return
	}
	r.seen = p
	now := r.now()
	emit := r.emitted < 0 ||
		p-r.emitted >= r.minStep ||
		now.Sub(r.lastEmit) >= r.minInterval ||
		p >= ProgressCeiling
	if !emit {
		return
	}
	r.emitted = p
	r.lastEmit = now
	// The sink is called under the lock so values reach it in order.
	if r.sink != nil {
		r.sink(p)
	}
}

// Func adapts the reporter to a ProgressFunc.
func (r *ProgressReporter) Func() ProgressFunc {
	return r.Report
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
