// Command worldforge-demo drives one world-generation manager over a
// series of synthetic ticks with a reference point moving along a
// straight line, printing per-tick build/unload statistics and a
// timing breakdown. It renders into an in-memory host, so it runs
// headless.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"worldforge/internal/engine"
	"worldforge/internal/engine/engconfig"
	"worldforge/internal/engine/hostapi"
	"worldforge/internal/profiling"
)

func main() {
	seed := flag.Int64("seed", 1337, "world seed")
	ticks := flag.Int("ticks", 60, "number of update ticks to run")
	renderDistance := flag.Float64("render-distance", 4096, "requested region side length, meters")
	speed := flag.Float64("speed", 24, "reference point speed, meters per tick")
	parallelism := flag.Int("parallelism", 4, "worker pool size")
	flag.Parse()

	cfg := engconfig.Static()
	cfg.Seed = *seed
	cfg.RenderDistance = float32(*renderDistance)
	cfg.WorkerParallelism = *parallelism

	renderer := hostapi.NewMemoryRenderer()
	world, err := engine.New(cfg, renderer)
	if err != nil {
		log.Fatalf("worldforge-demo: %v", err)
	}

	ref := mgl32.Vec2{0, 0}
	for tick := 0; tick < *ticks; tick++ {
		profiling.ResetTick()
		stats := world.Update(ref)
		if stats.TickCompleted || stats.BuildsAttempted > 0 || stats.Unloads > 0 {
			fmt.Printf("tick %3d ref=(%.0f,%.0f) attempted=%d stored=%d skipped=%d unloads=%d instances=%d\n",
				tick, ref[0], ref[1],
				stats.BuildsAttempted, stats.BuildsStored, stats.PoolExhaustedSkips,
				stats.Unloads, renderer.InstanceCount())
			if top := profiling.TopN(3); top != "" {
				fmt.Printf("         %s\n", top)
			}
		}
		if h, err := world.SampleHeight(ref); err == nil {
			fmt.Printf("         height at ref: %.2f\n", h)
		}
		ref[0] += float32(*speed)
		time.Sleep(10 * time.Millisecond)
	}

	// Drain the in-flight graph so the final counts are stable.
	for world.Manager.Busy() {
		world.Update(ref)
		time.Sleep(5 * time.Millisecond)
	}
	counts := make(map[string]int)
	for name, keys := range world.Manager.LoadedKeysPerLayer() {
		counts[name] = len(keys)
	}
	fmt.Printf("done: loaded per layer: %v\n", counts)
}
