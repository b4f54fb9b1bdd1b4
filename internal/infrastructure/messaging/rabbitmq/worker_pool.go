package rabbitmq

import "sync"

// WorkerPool fans deliveries out to a fixed set of workers so one slow
// handler does not stall the consume loop.
type WorkerPool struct {
	workers    int
	jobs       chan func()
	wg         sync.WaitGroup
	stopOnce   sync.Once
	stopSignal chan struct{}
}

func NewWorkerPool(workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	wp := &WorkerPool{
		workers:    workers,
		jobs:       make(chan func(), workers*2),
		stopSignal: make(chan struct{}),
	}

	for i := 0; i < workers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}

	return wp
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.stopSignal:
			return
		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			job()
		}
	}
}

// Submit queues a job. Jobs offered while the pool is stopping are dropped;
// an unacked delivery behind a dropped job redelivers after the channel
// closes.
func (wp *WorkerPool) Submit(job func()) {
	select {
	case <-wp.stopSignal:
		return
	default:
	}

	select {
	case <-wp.stopSignal:
	case wp.jobs <- job:
	}
}

// Queued reports the jobs waiting for a worker.
func (wp *WorkerPool) Queued() int { return len(wp.jobs) }

// Wait stops intake and blocks until the running jobs finish.
func (wp *WorkerPool) Wait() {
	wp.stopOnce.Do(func() {
		close(wp.stopSignal)
		close(wp.jobs)
	})
	wp.wg.Wait()
}

// Stop stops the worker pool.
func (wp *WorkerPool) Stop() {
	wp.Wait()
}
