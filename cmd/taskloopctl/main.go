// Command taskloopctl exercises task pools and tasks from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "taskloopctl",
		Usage: "drive task loops on shared and per-push pools",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"TASKLOOP_LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			logger, err := newLogger(c.String("log-level"), !isProduction())
			if err != nil {
				return cli.Exit(fmt.Sprintf("Failed to build logger: %v", err), 1)
			}
			zap.ReplaceGlobals(logger)
			return nil
		},
		After: func(c *cli.Context) error {
			_ = zap.L().Sync()
			return nil
		},
		Commands: []*cli.Command{
			stressCommand(),
			reuseCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
