package cache

import (
	"sync"
)

// RebuildPool runs cache rebuild tasks on a fixed set of workers with
// a bounded backlog. Submissions beyond the backlog are dropped, the
// caller keeps serving the stale value instead of blocking.
type RebuildPool struct {
	tasks chan func()
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewRebuildPool creates a pool with the given number of workers
func NewRebuildPool(workers int) *RebuildPool {
	if workers <= 0 {
		workers = 10
	}
	p := &RebuildPool{
		tasks: make(chan func(), workers*4),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *RebuildPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit queues a task. Returns false when the pool is closed or the
// backlog is full.
func (p *RebuildPool) Submit(task func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// Close stops accepting tasks and waits for in-flight rebuilds
func (p *RebuildPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}
