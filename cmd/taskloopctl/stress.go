package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Swind/go-task-loop/core"
)

func stressCommand() *cli.Command {
	return &cli.Command{
		Name:  "stress",
		Usage: "race a self-pausing task against stop and join",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "iterations",
				Aliases: []string{"n"},
				Value:   1000,
				Usage:   "start/stop/join cycles per loop",
			},
			&cli.IntFlag{
				Name:  "loops",
				Value: 1,
				Usage: "independent tasks raced concurrently",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 30 * time.Second,
				Usage: "fail if the run takes longer",
			},
		},
		Action: stressAction,
	}
}

func stressAction(c *cli.Context) error {
	iterations := c.Int("iterations")
	loops := c.Int("loops")
	if iterations < 1 || loops < 1 {
		return cli.Exit("iterations and loops must be positive", 1)
	}

	done := make(chan error, 1)
	start := time.Now()
	go func() {
		var g errgroup.Group
		for i := 0; i < loops; i++ {
			g.Go(func() error { return pauseStopRace(i, iterations) })
		}
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
		}
	case <-time.After(c.Duration("timeout")):
		return cli.Exit("Failed: timed out, a join is probably stuck", 1)
	}

	zap.L().Info("stress run finished",
		zap.Int("loops", loops),
		zap.Int("iterations", iterations),
		zap.Duration("elapsed", time.Since(start)))
	fmt.Printf("✓ %d x %d start/stop/join cycles completed\n", loops, iterations)
	return nil
}

// pauseStopRace starts a task whose function signals the controller and
// then pauses itself, while the controller stops and joins it right away.
func pauseStopRace(loop, iterations int) error {
	var mu sync.Mutex
	cond := sync.NewCond(&mu)
	signaled := false

	task := core.NewTask(func(ctx context.Context) {
		mu.Lock()
		signaled = true
		cond.Signal()
		mu.Unlock()

		_ = core.CurrentTask(ctx).Pause()
	}, core.WithLock(&core.RecMutex{}), core.WithName(fmt.Sprintf("stress-%d", loop)))

	for i := 0; i < iterations; i++ {
		mu.Lock()
		signaled = false
		if err := task.Start(); err != nil {
			mu.Unlock()
			return fmt.Errorf("loop %d iteration %d: start: %w", loop, i, err)
		}
		for !signaled {
			cond.Wait()
		}
		mu.Unlock()

		if err := task.Stop(); err != nil {
			return fmt.Errorf("loop %d iteration %d: stop: %w", loop, i, err)
		}
		if err := task.Join(); err != nil {
			return fmt.Errorf("loop %d iteration %d: join: %w", loop, i, err)
		}
	}
	return nil
}
