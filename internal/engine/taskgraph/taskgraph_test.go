package taskgraph

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func wait(t *testing.T, f *Future) error {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		finished, err := f.Poll()
		if finished {
			return err
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("task graph did not finish in time")
	return nil
}

func TestDependencyOrdering(t *testing.T) {
	g := NewGraph()
	var mu sync.Mutex
	var order []string
	record := func(name string) TaskFunc {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}
	g.AddTask("a", record("a"))
	g.AddTask("b", record("b"), "a")
	g.AddTask("c", record("c"), "b")

	f := NewExecutor(4).Launch(context.Background(), g)
	if err := wait(t, f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("execution order = %v, want [a b c]", order)
	}
}

func TestDiamondWaitsForBothParents(t *testing.T) {
	g := NewGraph()
	var leftDone, rightDone atomic.Bool
	g.AddTask("root", func(ctx context.Context) error { return nil })
	g.AddTask("left", func(ctx context.Context) error {
		time.Sleep(10 * time.Millisecond)
		leftDone.Store(true)
		return nil
	}, "root")
	g.AddTask("right", func(ctx context.Context) error {
		rightDone.Store(true)
		return nil
	}, "root")
	g.AddTask("join", func(ctx context.Context) error {
		if !leftDone.Load() || !rightDone.Load() {
			t.Error("join ran before both parents completed")
		}
		return nil
	}, "left", "right")

	f := NewExecutor(4).Launch(context.Background(), g)
	if err := wait(t, f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParallelismBound(t *testing.T) {
	const bound = 3
	g := NewGraph()
	var running, peak atomic.Int32
	for i := 0; i < 20; i++ {
		id := TaskID("t" + string(rune('a'+i)))
		g.AddTask(id, func(ctx context.Context) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			running.Add(-1)
			return nil
		})
	}
	f := NewExecutor(bound).Launch(context.Background(), g)
	if err := wait(t, f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peak.Load() > bound {
		t.Errorf("observed %d concurrent tasks, bound is %d", peak.Load(), bound)
	}
}

func TestTaskErrorSurfacesInFuture(t *testing.T) {
	g := NewGraph()
	boom := errors.New("boom")
	g.AddTask("ok", func(ctx context.Context) error { return nil })
	g.AddTask("bad", func(ctx context.Context) error { return boom }, "ok")

	f := NewExecutor(2).Launch(context.Background(), g)
	err := wait(t, f)
	if !errors.Is(err, boom) {
		t.Errorf("future error = %v, want wrapped boom", err)
	}
	// Poll keeps returning the same result after completion.
	finished, err2 := f.Poll()
	if !finished || !errors.Is(err2, boom) {
		t.Errorf("second Poll = %v, %v", finished, err2)
	}
}

func TestEmptyGraph(t *testing.T) {
	g := NewGraph()
	if !g.Empty() {
		t.Error("new graph should be empty")
	}
	f := NewExecutor(2).Launch(context.Background(), g)
	if err := wait(t, f); err != nil {
		t.Errorf("empty graph returned error: %v", err)
	}
}

func TestDuplicateTaskIDPanics(t *testing.T) {
	g := NewGraph()
	g.AddTask("x", func(ctx context.Context) error { return nil })
	defer func() {
		if recover() == nil {
			t.Error("duplicate task id should panic")
		}
	}()
	g.AddTask("x", func(ctx context.Context) error { return nil })
}

func TestUnknownDependencyPanics(t *testing.T) {
	g := NewGraph()
	defer func() {
		if recover() == nil {
			t.Error("unknown dependency should panic")
		}
	}()
	g.AddTask("y", func(ctx context.Context) error { return nil }, "missing")
}
