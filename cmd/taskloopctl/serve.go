package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Swind/go-task-loop/config"
	"github.com/Swind/go-task-loop/core"
	obs "github.com/Swind/go-task-loop/observability/prometheus"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run paced tasks on a shared pool until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "TOML config file, watched for max_threads changes",
			},
			&cli.IntFlag{
				Name:  "tasks",
				Value: 4,
				Usage: "number of tasks to run",
			},
			&cli.Float64Flag{
				Name:  "rate",
				Value: 10,
				Usage: "iterations per second of each task",
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg := config.Default()
	path := c.String("config")
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to load config: %v", err), 1)
		}
		cfg = loaded
		level := cfg.Log.Level
		if c.IsSet("log-level") {
			level = c.String("log-level")
		}
		logger, err := newLogger(level, cfg.Log.Development)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to build logger: %v", err), 1)
		}
		zap.ReplaceGlobals(logger)
	}
	if c.Int("tasks") < 1 || c.Float64("rate") <= 0 {
		return cli.Exit("tasks and rate must be positive", 1)
	}
	// Every task loop holds a worker for as long as it runs.
	maxThreads := threadsForTasks(cfg.Pool.MaxThreads, c.Int("tasks"))

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	coreLogger := core.NewDefaultLogger()
	poolCfg := &core.PoolConfig{
		Name:       cfg.Pool.Name,
		MaxThreads: maxThreads,
		Logger:     coreLogger,
		Spawner:    core.GoroutineSpawner{LockOSThread: cfg.Pool.LockOSThread},
	}

	reg := prom.NewRegistry()
	var poller *obs.SnapshotPoller
	if cfg.Metrics.Enabled {
		exporter, err := obs.NewMetricsExporter(cfg.Metrics.Namespace, reg, obs.ExporterOptions{})
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to register metrics: %v", err), 1)
		}
		poolCfg.Metrics = exporter
		if poller, err = obs.NewSnapshotPoller(reg, cfg.Metrics.PollInterval.Duration); err != nil {
			return cli.Exit(fmt.Sprintf("Failed to register metrics: %v", err), 1)
		}
	}

	pool := core.NewSharedTaskPool(poolCfg)
	if err := pool.Prepare(); err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	defer pool.Cleanup()

	lock := &core.RecMutex{}
	tasks := make([]*core.Task, c.Int("tasks"))
	for i := range tasks {
		limiter := rate.NewLimiter(rate.Limit(c.Float64("rate")), 1)
		tasks[i] = core.NewTask(func(context.Context) {
			// The serve context, not the run context, so shutdown unblocks the wait.
			_ = limiter.Wait(ctx)
		}, core.WithLock(lock), core.WithPool(pool), core.WithName(fmt.Sprintf("paced-%d", i)))
		poller.AddTask(tasks[i].Name(), tasks[i])
	}
	poller.AddPool(pool.ID(), pool)

	for _, task := range tasks {
		if err := task.Start(); err != nil {
			return cli.Exit(fmt.Sprintf("Failed to start %s: %v", task.Name(), err), 1)
		}
	}
	zap.L().Info("tasks started",
		zap.Int("tasks", len(tasks)),
		zap.String("pool", pool.ID()),
		zap.Int("max_threads", pool.MaxThreads()))

	g, gctx := errgroup.WithContext(ctx)
	if poller != nil {
		poller.Start(gctx)
		defer poller.Stop()

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
		g.Go(func() error {
			zap.L().Info("serving metrics", zap.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}
	if path != "" {
		g.Go(func() error {
			return config.Watch(gctx, path, func(next *config.Config) {
				n := threadsForTasks(next.Pool.MaxThreads, len(tasks))
				if n != pool.MaxThreads() {
					zap.L().Info("applying max_threads",
						zap.Int("from", pool.MaxThreads()), zap.Int("to", n))
					pool.SetMaxThreads(n)
				}
			})
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err := g.Wait()
	stop()

	for _, task := range tasks {
		if jerr := task.Join(); jerr != nil {
			zap.L().Warn("join failed", zap.String("task", task.Name()), zap.Error(jerr))
		}
		zap.L().Info("task joined", zap.String("task", task.Name()), zap.Uint64("iterations", task.Iterations()))
	}
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	return nil
}

// threadsForTasks raises a bounded worker limit below the task count to the
// task count, since a task loop never gives its worker back while it runs.
func threadsForTasks(maxThreads, tasks int) int {
	if maxThreads == 0 || maxThreads >= tasks {
		return maxThreads
	}
	zap.L().Warn("max_threads is below the task count, raising it so no task starves",
		zap.Int("max_threads", maxThreads), zap.Int("tasks", tasks))
	return tasks
}
