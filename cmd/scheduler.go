package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the task runner and expiry sweep on cron schedules in one process",
	Run:   runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}

func runScheduler(_ *cobra.Command, _ []string) {
	app, cleanup := mustCreateApplication(appOptions{withNotifier: true})
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newScheduler(cron.PrintfLogger(logrus.StandardLogger()))
	if _, err := c.AddFunc(app.cfg.Jobs.TasksCron, func() {
		runJob("tasks_run", func() error { return app.taskRunner.RunDueBatch(ctx) })
	}); err != nil {
		logrus.WithError(err).WithField("spec", app.cfg.Jobs.TasksCron).Fatal("Invalid tasks cron spec")
	}
	if _, err := c.AddFunc(app.cfg.Jobs.ExpireSweepCron, func() {
		runJob("expire_sweep", func() error { return app.transactionService.RunExpireSweepBatch(ctx) })
	}); err != nil {
		logrus.WithError(err).WithField("spec", app.cfg.Jobs.ExpireSweepCron).Fatal("Invalid expire sweep cron spec")
	}

	c.Start()
	logrus.WithFields(logrus.Fields{
		"tasks_cron":        app.cfg.Jobs.TasksCron,
		"expire_sweep_cron": app.cfg.Jobs.ExpireSweepCron,
	}).Info("Scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Scheduler shutdown requested")

	cancel()
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		logrus.Warn("Scheduler jobs did not finish before timeout")
	}
	logrus.Info("Scheduler stopped")
}

// newScheduler skips a run while the previous run of the same job is still in progress.
func newScheduler(logger cron.Logger) *cron.Cron {
	return cron.New(
		cron.WithSeconds(),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
}
