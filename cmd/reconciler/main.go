package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"camrelay/internal/app"
	"camrelay/internal/core/services"
	"camrelay/internal/infrastructure/reliability"
	"camrelay/internal/infrastructure/scheduler"
	"camrelay/pkg/config"
	"camrelay/pkg/logger"
	"camrelay/pkg/retry"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	cliApp := &cli.App{
		Name:  "camrelay-reconciler",
		Usage: "run the session liveness sweeps",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "retries",
				Value: retry.DefaultConfig().MaxAttempts,
				Usage: "extra attempts for a sweep whose store query failed; 0 disables retrying",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "configs/config.yaml",
				Usage:   "path to the YAML config file",
				EnvVars: []string{"CAMRELAY_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "sweep",
				Usage:     "run one sweep and exit; a non-zero exit means the sweep could not run",
				ArgsUsage: "<" + strings.Join(services.SweepNames(), "|") + ">",
				Action:    sweep,
			},
			{
				Name:   "run",
				Usage:  "run every enabled sweep on its configured interval until interrupted",
				Action: run,
			},
			{
				Name:  "list",
				Usage: "print the sweep names",
				Action: func(c *cli.Context) error {
					for _, name := range services.SweepNames() {
						fmt.Fprintln(c.App.Writer, name)
					}
					return nil
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(c *cli.Context) (*app.App, *zap.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	zapLogger, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(c.Context, cfg, zapLogger.Sugar())
	if err != nil {
		return nil, nil, err
	}
	return a, zapLogger, nil
}

func retryConfig(c *cli.Context) retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = c.Int("retries")
	cfg.Enabled = cfg.MaxAttempts > 0
	return cfg
}

func sweep(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return cli.Exit("sweep name required: "+strings.Join(services.SweepNames(), ", "), 2)
	}

	a, zapLogger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = zapLogger.Sync() }()
	defer a.Close(context.Background())

	runner := reliability.NewRetryingRunner(a.Reconciler, retryConfig(c), a.Logger)
	report, err := runner.Run(c.Context, name)
	if err != nil {
		return cli.Exit(fmt.Sprintf("sweep %s failed: %v", name, err), 1)
	}
	fmt.Fprintf(c.App.Writer, "%s: matched=%d affected=%d failed_chunks=%d duration=%s\n",
		report.Sweep, report.Matched, report.Affected, report.FailedChunks, report.Duration)
	return nil
}

func run(c *cli.Context) error {
	a, zapLogger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = zapLogger.Sync() }()
	defer a.Close(context.Background())

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var locks scheduler.Locker
	if lm := a.Factory.LockManager(); lm != nil {
		locks = lm
	}
	runner := reliability.NewRetryingRunner(a.Reconciler, retryConfig(c), a.Logger)
	s := scheduler.NewScheduler(runner, a.Config.Sweeps(), locks, a.Logger)
	s.Start(ctx)
	a.Logger.Infow("reconciler scheduler started", "store", a.Factory.Backend())

	<-ctx.Done()
	s.Stop()
	a.Logger.Info("reconciler scheduler stopped")
	return nil
}
