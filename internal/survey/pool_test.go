package survey

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_RunsTasksAndRoutesCompletions(t *testing.T) {
	p := newPool(context.Background(), 2)
	defer p.stop()

	p.submit(task{id: 1, run: func(ctx context.Context) (any, error) { return "one", nil }})
	p.submit(task{id: 2, run: func(ctx context.Context) (any, error) { return "two", nil }})

	got := make(map[uint64]string, 2)
	for i := 0; i < 2; i++ {
		select {
		case c := <-p.completions:
			if c.err != nil {
				t.Fatalf("task %d returned error: %v", c.id, c.err)
			}
			got[c.id] = c.result.(string)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for completions")
		}
	}
	if got[1] != "one" || got[2] != "two" {
		t.Fatalf("unexpected results: %v", got)
	}
}

func TestPool_RecoversTaskPanics(t *testing.T) {
	p := newPool(context.Background(), 1)
	defer p.stop()

	p.submit(task{id: 7, run: func(ctx context.Context) (any, error) { panic("boom") }})

	select {
	case c := <-p.completions:
		if c.err == nil {
			t.Fatal("expected an error from a panicking task")
		}
		if !strings.Contains(c.err.Error(), "boom") {
			t.Fatalf("panic value not preserved: %v", c.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for completion")
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	const workers = 3
	const tasks = 12

	p := newPool(context.Background(), workers)
	defer p.stop()

	var current, peak atomic.Int64
	go func() {
		for i := 0; i < tasks; i++ {
			p.submit(task{id: uint64(i), run: func(ctx context.Context) (any, error) {
				n := current.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				current.Add(-1)
				return nil, nil
			}})
		}
	}()

	for i := 0; i < tasks; i++ {
		select {
		case <-p.completions:
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for completions")
		}
	}

	if got := peak.Load(); got > workers {
		t.Fatalf("observed %d concurrent tasks, worker bound is %d", got, workers)
	}
}

func TestPool_StopCancelsRunningTasks(t *testing.T) {
	p := newPool(context.Background(), 1)

	started := make(chan struct{})
	p.submit(task{id: 1, run: func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}})

	<-started
	done := make(chan struct{})
	go func() {
		p.stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not return; running task was not canceled")
	}
	// stop is idempotent.
	p.stop()
}
