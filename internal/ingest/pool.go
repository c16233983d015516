package ingest

import (
	"context"
	"sync"
)

// task is one unit of pipeline work.
type task func(ctx context.Context) error

// pool fans tasks out over a fixed number of workers and collects their
// errors. Detail fetches and record upserts run through it so one slow
// page never serializes a whole run.
type pool struct {
	workers   int
	tasks     chan task
	errs      chan error
	collected []error
	done      chan struct{}
	wg        sync.WaitGroup
}

func newPool(workers int) *pool {
	if workers <= 0 {
		workers = 1
	}
	return &pool{
		workers: workers,
		tasks:   make(chan task, workers*2),
		errs:    make(chan error, workers*2),
		done:    make(chan struct{}),
	}
}

// start launches the workers and the error collector. Errors are drained
// while tasks are still being submitted, so a run with many failures never
// wedges the workers on a full error channel.
func (p *pool) start(ctx context.Context) {
	for range p.workers {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	go func() {
		defer close(p.done)
		for err := range p.errs {
			p.collected = append(p.collected, err)
		}
	}()
}

func (p *pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-p.tasks:
			if !ok {
				return
			}
			if err := t(ctx); err != nil {
				select {
				case p.errs <- err:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// submit queues one task. It is a no-op once ctx is done.
func (p *pool) submit(ctx context.Context, t task) {
	select {
	case <-ctx.Done():
	case p.tasks <- t:
	}
}

// wait closes the queue, waits for the workers, and returns every error
// they reported.
func (p *pool) wait() []error {
	close(p.tasks)
	p.wg.Wait()
	close(p.errs)
	<-p.done
	return p.collected
}
