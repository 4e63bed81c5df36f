package survey

import (
	"context"
	"fmt"
	"sync"
)

// task is one deferred job handed to the worker pool. run must only touch
// its captured inputs; its result is routed back to the coordinator through
// the completions channel.
type task struct {
	id  uint64
	run func(ctx context.Context) (any, error)
}

type completion struct {
	id     uint64
	result any
	err    error
}

// pool executes tasks on a fixed number of worker goroutines. Both channels
// are buffered to the worker count: the coordinator never admits more
// pending tasks than workers, so neither submitting nor completing blocks
// for long.
type pool struct {
	tasks       chan task
	completions chan completion
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	stopOnce    sync.Once
}

func newPool(ctx context.Context, workers int) *pool {
	ctx, cancel := context.WithCancel(ctx)
	p := &pool{
		tasks:       make(chan task, workers),
		completions: make(chan completion, workers),
		cancel:      cancel,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(ctx)
	}
	return p
}

// submit queues a task for execution. Must only be called from the
// coordinator, and never after stop.
func (p *pool) submit(t task) {
	p.tasks <- t
}

// stop cancels running tasks and waits for the workers to exit. Queued
// completions are not drained.
func (p *pool) stop() {
	p.stopOnce.Do(p.cancel)
	p.wg.Wait()
}

func (p *pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-p.tasks:
			result, err := runTask(ctx, t)
			select {
			case p.completions <- completion{id: t.id, result: result, err: err}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// runTask recovers panics from job computations into plain errors so a
// misbehaving job cannot take down the run.
func runTask(ctx context.Context, t task) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return t.run(ctx)
}
