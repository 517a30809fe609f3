// Package taskgraph provides the engine's per-tick task executor: a
// static DAG of closures submitted once to a bounded worker pool,
// polled from the caller's thread with a single non-blocking check
// per tick, never cancelled mid-flight. Each task waits for its
// dependencies' completion signals, then runs under a weighted
// semaphore sized to the configured parallelism.
package taskgraph

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"worldforge/internal/engine/engerr"
)

// TaskID names a node in a Graph. Manager composes these out of
// layer name + chunk key + stage so they are unique across an entire
// composed per-tick graph.
type TaskID string

// TaskFunc is one unit of work. It must not block indefinitely and
// must not panic on build-time conditions the engine expects; an
// exhausted pool or a failed generation is reported by returning or
// recording it, never by panicking across the task boundary.
type TaskFunc func(ctx context.Context) error

type node struct {
	id   TaskID
	fn   TaskFunc
	deps []TaskID
}

// Graph is a static, append-only DAG of tasks. It is built fresh each
// tick and discarded after one Launch.
type Graph struct {
	nodes map[TaskID]*node
	order []TaskID
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[TaskID]*node)}
}

// AddTask registers fn under id, depending on every task in deps.
// deps must already be present in the graph: edges are only ever
// added parent-before-child, in the same order the manager assembles
// per-layer sub-graphs, so a forward reference is a programmer error.
func (g *Graph) AddTask(id TaskID, fn TaskFunc, deps ...TaskID) {
	if _, exists := g.nodes[id]; exists {
		engerr.AssertionFailed("taskgraph: duplicate task id %q", id)
	}
	for _, d := range deps {
		if _, ok := g.nodes[d]; !ok {
			engerr.AssertionFailed("taskgraph: task %q depends on unknown task %q", id, d)
		}
	}
	g.nodes[id] = &node{id: id, fn: fn, deps: append([]TaskID(nil), deps...)}
	g.order = append(g.order, id)
}

// Empty reports whether the graph has no tasks — the manager skips
// launching entirely in that case.
func (g *Graph) Empty() bool { return len(g.order) == 0 }

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int { return len(g.order) }

// Executor runs Graphs on a bounded worker pool.
type Executor struct {
	parallelism int64
}

// NewExecutor returns an Executor that runs at most parallelism
// tasks concurrently.
func NewExecutor(parallelism int) *Executor {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Executor{parallelism: int64(parallelism)}
}

// Future is a handle to one in-flight Launch. The manager polls it
// once per tick from its own goroutine; the poll itself never blocks.
type Future struct {
	done chan struct{}
	err  error
}

// Poll reports whether the graph has finished, and if so, the first
// error any task returned (nil if every task succeeded). Calling Poll
// after completion is safe and keeps returning the same result.
func (f *Future) Poll() (finished bool, err error) {
	select {
	case <-f.done:
		return true, f.err
	default:
		return false, nil
	}
}

// Launch starts running g's tasks respecting their dependency edges
// and returns immediately with a Future. Exactly one Launch may be
// outstanding per manager at any moment — the caller is responsible
// for that invariant.
func (e *Executor) Launch(ctx context.Context, g *Graph) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.err = e.run(ctx, g)
	}()
	return f
}

func (e *Executor) run(ctx context.Context, g *Graph) error {
	signals := make(map[TaskID]chan struct{}, len(g.order))
	for _, id := range g.order {
		signals[id] = make(chan struct{})
	}

	eg, egCtx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(e.parallelism)

	for _, id := range g.order {
		n := g.nodes[id]
		eg.Go(func() error {
			for _, dep := range n.deps {
				select {
				case <-signals[dep]:
				case <-egCtx.Done():
					close(signals[n.id])
					return egCtx.Err()
				}
			}
			if err := sem.Acquire(egCtx, 1); err != nil {
				close(signals[n.id])
				return err
			}
			err := n.fn(egCtx)
			sem.Release(1)
			close(signals[n.id])
			if err != nil {
				return fmt.Errorf("task %q: %w", n.id, err)
			}
			return nil
		})
	}
	return eg.Wait()
}
