package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-course-checkout/config"
)

var (
	workerMode bool
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Run deferred task commands",
}

var tasksRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute due deferred tasks such as transaction expiry",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"tasks_run",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.TasksInterval },
			func(app *application, ctx context.Context) error {
				return app.taskRunner.RunDueBatch(ctx)
			},
		)
	},
}

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Run expiration-related commands",
}

var expireSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire pending transactions whose deadline has passed",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"expire_sweep",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.ExpireSweepInterval },
			func(app *application, ctx context.Context) error {
				return app.transactionService.RunExpireSweepBatch(ctx)
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(expireCmd)
	tasksCmd.AddCommand(tasksRunCmd)
	expireCmd.AddCommand(expireSweepCmd)

	rootCmd.PersistentFlags().BoolVar(&workerMode, "worker", false, "Run continuously using configured interval")
}

func runCommand(
	name string,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn func(app *application, ctx context.Context) error,
) {
	app, cleanup := mustCreateApplication(appOptions{})
	defer cleanup()

	if workerMode {
		runWorker(name, intervalResolver(app.cfg), app, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() error { return fn(app, ctx) })
}

func runWorker(
	name string,
	interval time.Duration,
	app *application,
	fn func(app *application, ctx context.Context) error,
) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() error { return fn(app, ctx) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() error { return fn(app, ctx) })
		}
	}
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
