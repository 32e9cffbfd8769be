package resilience

import (
	"sync"
	"sync/atomic"
	"time"
)

// Outcome is the result of one command execution as seen by the statistics.
type Outcome int

const (
	// OutcomeSuccess means the operation returned without error in time.
	OutcomeSuccess Outcome = iota
	// OutcomeFailure means the operation returned an error.
	OutcomeFailure
	// OutcomeTimeout means the operation did not finish before its deadline.
	OutcomeTimeout
	// OutcomeRejected means the bulkhead was saturated.
	OutcomeRejected
	// OutcomeShortCircuited means the circuit breaker refused the call.
	OutcomeShortCircuited

	numOutcomes
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeRejected:
		return "rejected"
	case OutcomeShortCircuited:
		return "short-circuited"
	default:
		return "unknown"
	}
}

// IsError reports whether the outcome counts against the error rate.
func (o Outcome) IsError() bool {
	return o == OutcomeFailure || o == OutcomeTimeout || o == OutcomeRejected
}

func (o Outcome) sentinel() error {
	switch o {
	case OutcomeFailure:
		return ErrOperationFailed
	case OutcomeTimeout:
		return ErrTimeout
	case OutcomeRejected:
		return ErrRejected
	case OutcomeShortCircuited:
		return ErrShortCircuited
	default:
		return nil
	}
}

// Snapshot is the aggregate of all live buckets in a RollingWindow.
type Snapshot struct {
	Success        int64
	Failure        int64
	Timeout        int64
	Rejected       int64
	ShortCircuited int64
}

// TotalVolume is the number of calls that reached the breaker's decision:
// successes, failures, timeouts and rejections. Short-circuited calls never
// left the breaker and are not part of the volume.
func (s Snapshot) TotalVolume() int64 {
	return s.Success + s.Failure + s.Timeout + s.Rejected
}

// ErrorCount is the number of failures, timeouts and rejections.
func (s Snapshot) ErrorCount() int64 {
	return s.Failure + s.Timeout + s.Rejected
}

// FailureRate is ErrorCount/TotalVolume in [0, 1]. An empty window has a
// failure rate of 0.
func (s Snapshot) FailureRate() float64 {
	total := s.TotalVolume()
	if total == 0 {
		return 0
	}
	return float64(s.ErrorCount()) / float64(total)
}

// ErrorPercentage is FailureRate scaled to 0-100.
func (s Snapshot) ErrorPercentage() float64 {
	return s.FailureRate() * 100
}

func (s *Snapshot) add(o Outcome, n int64) {
	switch o {
	case OutcomeSuccess:
		s.Success += n
	case OutcomeFailure:
		s.Failure += n
	case OutcomeTimeout:
		s.Timeout += n
	case OutcomeRejected:
		s.Rejected += n
	case OutcomeShortCircuited:
		s.ShortCircuited += n
	}
}

// bucket is one time slice of the window. start is the aligned start time in
// unix nanoseconds; zero marks an unused bucket.
type bucket struct {
	start  atomic.Int64
	counts [numOutcomes]atomic.Int64
}

// RollingWindow is a fixed ring of time buckets counting outcomes for one
// call type.
//
// Contract:
//   - Concurrency: Record and Snapshot are safe for concurrent use. Record
//     only takes a lock when it has to recycle a bucket.
//   - Consistency: Snapshot does not block writers and may observe a bucket
//     while it is being incremented.
type RollingWindow struct {
	buckets    []bucket
	bucketSize int64
	window     int64
	now        Clock

	rollMu sync.Mutex
}

// NewRollingWindow creates a window spanning d split into numBuckets
// buckets. A nil clock uses time.Now.
func NewRollingWindow(d time.Duration, numBuckets int, clock Clock) *RollingWindow {
	if numBuckets < 1 {
		numBuckets = 1
	}
	if clock == nil {
		clock = time.Now
	}
	size := int64(d) / int64(numBuckets)
	if size <= 0 {
		size = 1
	}

	return &RollingWindow{
		buckets:    make([]bucket, numBuckets),
		bucketSize: size,
		window:     size * int64(numBuckets),
		now:        clock,
	}
}

// Record adds one outcome to the current bucket, recycling the oldest bucket
// when time has moved past it.
func (w *RollingWindow) Record(o Outcome) {
	if o < 0 || o >= numOutcomes {
		return
	}
	w.current().counts[o].Add(1)
}

func (w *RollingWindow) current() *bucket {
	now := w.now().UnixNano()
	start := now - now%w.bucketSize
	b := &w.buckets[(start/w.bucketSize)%int64(len(w.buckets))]

	// A late writer whose bucket was already recycled counts into the newer
	// slice instead of moving the bucket back in time.
	if b.start.Load() >= start {
		return b
	}

	w.rollMu.Lock()
	if b.start.Load() < start {
		for i := range b.counts {
			b.counts[i].Store(0)
		}
		b.start.Store(start)
	}
	w.rollMu.Unlock()
	return b
}

// Snapshot sums the buckets younger than the window duration.
func (w *RollingWindow) Snapshot() Snapshot {
	now := w.now().UnixNano()
	cutoff := now - w.window

	var s Snapshot
	for i := range w.buckets {
		b := &w.buckets[i]
		start := b.start.Load()
		if start == 0 || start <= cutoff || start > now {
			continue
		}
		for o := Outcome(0); o < numOutcomes; o++ {
			s.add(o, b.counts[o].Load())
		}
	}
	return s
}

// Reset discards every bucket.
func (w *RollingWindow) Reset() {
	w.rollMu.Lock()
	defer w.rollMu.Unlock()

	for i := range w.buckets {
		b := &w.buckets[i]
		b.start.Store(0)
		for j := range b.counts {
			b.counts[j].Store(0)
		}
	}
}

// Duration returns the span covered by the window.
func (w *RollingWindow) Duration() time.Duration {
	return time.Duration(w.window)
}

// NumBuckets returns the number of buckets in the ring.
func (w *RollingWindow) NumBuckets() int {
	return len(w.buckets)
}
