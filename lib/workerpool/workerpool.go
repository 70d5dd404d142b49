package workerpool

import (
	"sync"
	"time"
)

// Pool runs submitted jobs on at most maxWorkers goroutines, optionally
// spacing job starts by a minimum delay. Scraper detail fetches use it to
// keep secondary request bursts polite.
type Pool struct {
	semaphore chan struct{}
	minDelay  time.Duration
	wg        sync.WaitGroup

	mu        sync.Mutex
	lastStart time.Time
}

func New(maxWorkers int, minDelay time.Duration) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Pool{
		semaphore: make(chan struct{}, maxWorkers),
		minDelay:  minDelay,
	}
}

// Submit enqueues a job, blocking while all workers are busy.
func (p *Pool) Submit(job func()) {
	p.wg.Add(1)
	p.semaphore <- struct{}{}

	go func() {
		defer p.wg.Done()
		defer func() { <-p.semaphore }()

		p.throttle()
		job()
	}()
}

// Wait blocks until every submitted job has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) throttle() {
	if p.minDelay <= 0 {
		return
	}
	p.mu.Lock()
	wait := p.minDelay - time.Since(p.lastStart)
	if wait > 0 {
		p.lastStart = p.lastStart.Add(p.minDelay)
		p.mu.Unlock()
		time.Sleep(wait)
		return
	}
	p.lastStart = time.Now()
	p.mu.Unlock()
}
