package compare

import (
	"sync"
	"sync/atomic"

	"qfleet/internal/metrics"
)

// DefaultPoolSize is the fixed worker count for algorithm dispatch.
const DefaultPoolSize = 4

// Pool is a fixed-size worker pool. It is created explicitly at
// construction time and torn down with Shutdown, which drains queued
// jobs before returning.
type Pool struct {
	jobs   chan func()
	wg     sync.WaitGroup
	active int64

	mu     sync.Mutex
	closed bool
}

// NewPool starts size workers; size <= 0 selects DefaultPoolSize.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	p := &Pool{jobs: make(chan func(), size*4)}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		atomic.AddInt64(&p.active, 1)
		metrics.PoolActiveWorkers.Inc()
		job()
		metrics.PoolActiveWorkers.Dec()
		atomic.AddInt64(&p.active, -1)
	}
}

// Submit queues a job, blocking when the queue is full. Submitting after
// Shutdown reports false and drops the job. The mutex is held across the
// send so Shutdown can never close the channel under a pending send.
func (p *Pool) Submit(job func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.jobs <- job
	return true
}

// ActiveWorkers reports how many workers are currently running a job.
func (p *Pool) ActiveWorkers() int {
	return int(atomic.LoadInt64(&p.active))
}

// Shutdown stops accepting work and waits for queued jobs to finish.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	close(p.jobs)
	p.wg.Wait()
}
