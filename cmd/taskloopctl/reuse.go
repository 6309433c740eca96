package main

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Swind/go-task-loop/core"
	"github.com/Swind/go-task-loop/internal/threadid"
)

func reuseCommand() *cli.Command {
	return &cli.Command{
		Name:  "reuse",
		Usage: "show how a shared pool reuses OS threads",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "max-threads",
				Value: 2,
				Usage: "worker limit of the shared pool",
			},
			&cli.IntFlag{
				Name:  "items",
				Value: 8,
				Usage: "work items to push",
			},
			&cli.DurationFlag{
				Name:  "work",
				Value: 20 * time.Millisecond,
				Usage: "how long each item runs",
			},
		},
		Action: reuseAction,
	}
}

func reuseAction(c *cli.Context) error {
	items := c.Int("items")
	work := c.Duration("work")

	pool := core.NewSharedTaskPool(&core.PoolConfig{
		Name:       "reuse",
		MaxThreads: c.Int("max-threads"),
		Logger:     core.NewDefaultLogger(),
		Spawner:    core.GoroutineSpawner{LockOSThread: true},
	})
	if err := pool.Prepare(); err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	defer pool.Cleanup()

	var mu sync.Mutex
	threads := map[int]int{}
	handles := make([]*core.Handle, 0, items)
	start := time.Now()

	for i := 0; i < items; i++ {
		h, err := pool.Push(core.RunnableFunc(func(ctx context.Context) {
			tid := threadid.OSThread()
			mu.Lock()
			threads[tid]++
			mu.Unlock()
			time.Sleep(work)
		}))
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to push item %d: %v", i, err), 1)
		}
		handles = append(handles, h)
	}
	for _, h := range handles {
		pool.Join(h)
	}
	elapsed := time.Since(start)

	tids := make([]int, 0, len(threads))
	for tid := range threads {
		tids = append(tids, tid)
	}
	sort.Ints(tids)

	stats := pool.Stats()
	fmt.Printf("✓ %d items on %d OS threads in %v (limit %d, %d workers alive)\n",
		items, len(tids), elapsed.Round(time.Millisecond), stats.MaxThreads, stats.Workers)
	for _, tid := range tids {
		fmt.Printf("  thread %d ran %d items\n", tid, threads[tid])
	}
	return nil
}
