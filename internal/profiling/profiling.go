// Package profiling provides a tiny per-tick timing aggregator used to
// diagnose where a Layer Manager update spends its time: demand
// propagation, task-graph execution, or cleanup.
package profiling

import (
	"maps"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	mu         sync.Mutex
	tickTotals = make(map[string]time.Duration)
)

// Track returns a stop function that records the elapsed time under name
// into the current tick's totals. Usage: defer profiling.Track("manager.update")()
func Track(name string) func() {
	start := time.Now()
	return func() {
		d := time.Since(start)
		mu.Lock()
		tickTotals[name] += d
		mu.Unlock()
	}
}

// ResetTick clears accumulated totals. Call once at the start of each tick.
func ResetTick() {
	mu.Lock()
	for k := range tickTotals {
		delete(tickTotals, k)
	}
	mu.Unlock()
}

// Snapshot returns a copy of the current tick's totals.
func Snapshot() map[string]time.Duration {
	mu.Lock()
	defer mu.Unlock()
	out := make(map[string]time.Duration, len(tickTotals))
	maps.Copy(out, tickTotals)
	return out
}

// SumWithPrefix returns the sum of durations whose names start with any of the given prefixes.
func SumWithPrefix(prefixes ...string) time.Duration {
	ss := Snapshot()
	var sum time.Duration
	for k, v := range ss {
		for _, p := range prefixes {
			if strings.HasPrefix(k, p) {
				sum += v
				break
			}
		}
	}
	return sum
}

// Add records an externally-measured duration under name.
func Add(name string, d time.Duration) {
	if d <= 0 {
		return
	}
	mu.Lock()
	tickTotals[name] += d
	mu.Unlock()
}

// TopN formats the N slowest tracked operations, e.g. "manager.execute:4.2ms, manager.propagate:1.1ms".
func TopN(n int) string {
	mu.Lock()
	defer mu.Unlock()

	type pair struct {
		name string
		dur  time.Duration
	}
	list := make([]pair, 0, len(tickTotals))
	for k, v := range tickTotals {
		list = append(list, pair{name: k, dur: v})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].dur > list[j].dur })
	if n > len(list) {
		n = len(list)
	}
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ms := float64(list[i].dur.Microseconds()) / 1000.0
		parts = append(parts, list[i].name+":"+formatMs(ms))
	}
	return strings.Join(parts, ", ")
}

func formatMs(ms float64) string {
	whole := int64(ms)
	frac := int64((ms-float64(whole))*10.0 + 0.0001)
	if frac <= 0 {
		return strconv.FormatInt(whole, 10) + "ms"
	}
	return strconv.FormatInt(whole, 10) + "." + strconv.FormatInt(frac, 10) + "ms"
}

