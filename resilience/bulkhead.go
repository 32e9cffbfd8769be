package resilience

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// BulkheadConfig configures the bulkhead.
type BulkheadConfig struct {
	// CoreSize is the number of worker goroutines.
	// Default: 10
	CoreSize int

	// MaxQueueSize is the number of tasks that may wait for a worker.
	// Default: 0 (no queue, reject when every worker is busy)
	MaxQueueSize int
}

// Bulkhead is a fixed pool of workers behind a bounded queue. One bulkhead
// serves one call type, so saturating it never affects another call type.
//
// Contract:
//   - Concurrency: Submit and Metrics are safe for concurrent use.
//   - Backpressure: Submit never blocks; it fails with ErrRejected when
//     CoreSize+MaxQueueSize tasks are already admitted.
//   - Ownership: a worker is returned to the pool only when its task returns.
type Bulkhead struct {
	config BulkheadConfig
	admit  *semaphore.Weighted
	tasks  chan func()
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	active    atomic.Int64
	queued    atomic.Int64
	maxActive atomic.Int64
	rejected  atomic.Int64
	completed atomic.Int64
}

// NewBulkhead creates a bulkhead and starts its workers.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	// Apply defaults
	if config.CoreSize <= 0 {
		config.CoreSize = 10
	}
	if config.MaxQueueSize < 0 {
		config.MaxQueueSize = 0
	}

	capacity := config.CoreSize + config.MaxQueueSize
	b := &Bulkhead{
		config: config,
		admit:  semaphore.NewWeighted(int64(capacity)),
		tasks:  make(chan func(), capacity),
	}

	b.wg.Add(config.CoreSize)
	for i := 0; i < config.CoreSize; i++ {
		go b.worker()
	}
	return b
}

// Submit hands task to a free worker, queues it, or fails with ErrRejected.
func (b *Bulkhead) Submit(task func()) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBulkheadClosed
	}
	if !b.admit.TryAcquire(1) {
		b.rejected.Add(1)
		return ErrRejected
	}

	b.queued.Add(1)
	// Admission caps outstanding tasks at the channel capacity, so this
	// send never blocks.
	b.tasks <- task
	return nil
}

func (b *Bulkhead) worker() {
	defer b.wg.Done()

	for task := range b.tasks {
		b.queued.Add(-1)
		b.run(task)
	}
}

func (b *Bulkhead) run(task func()) {
	active := b.active.Add(1)
	for {
		peak := b.maxActive.Load()
		if active <= peak || b.maxActive.CompareAndSwap(peak, active) {
			break
		}
	}

	defer func() {
		// A panicking task must not take the worker down with it.
		_ = recover()
		b.active.Add(-1)
		b.completed.Add(1)
		b.admit.Release(1)
	}()

	task()
}

// Close stops accepting tasks and waits for the workers to drain the queue.
func (b *Bulkhead) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.tasks)
	b.mu.Unlock()

	b.wg.Wait()
}

// Metrics returns current bulkhead metrics.
func (b *Bulkhead) Metrics() BulkheadMetrics {
	active := int(b.active.Load())
	return BulkheadMetrics{
		Active:       active,
		Queued:       int(b.queued.Load()),
		MaxActive:    int(b.maxActive.Load()),
		Available:    b.config.CoreSize - active,
		CoreSize:     b.config.CoreSize,
		MaxQueueSize: b.config.MaxQueueSize,
		Rejected:     b.rejected.Load(),
		Completed:    b.completed.Load(),
	}
}

// BulkheadMetrics contains bulkhead statistics.
type BulkheadMetrics struct {
	Active       int
	Queued       int
	MaxActive    int
	Available    int
	CoreSize     int
	MaxQueueSize int
	Rejected     int64
	Completed    int64
}
