package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/gocatalog/internal/bootstrap"
	"github.com/jonesrussell/gocatalog/internal/logger"
)

func newSchedulerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run collection cycles on a cron schedule",
		Long: `Runs collection cycles periodically until interrupted. The schedule
is a standard five-field cron expression from the scheduler.spec setting.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap.New(cfgFile, version)
			if err != nil {
				return err
			}
			defer app.Close()

			return runScheduler(cmd.Context(), app)
		},
	}
}

func runScheduler(ctx context.Context, app *bootstrap.App) error {
	c := cron.New()

	_, err := c.AddFunc(app.Config.Scheduler.Spec, func() {
		stats, runErr := app.Runner.RunCycle(ctx)
		if runErr != nil {
			app.Log.Error("scheduled collection cycle failed", logger.Error(runErr))
			return
		}
		app.Log.Info("scheduled collection cycle completed",
			logger.Int("sources", stats.Sources),
			logger.Int("artifacts", stats.Artifacts),
			logger.Duration("elapsed", stats.Elapsed))
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", app.Config.Scheduler.Spec, err)
	}

	c.Start()
	app.Log.Info("scheduler started", logger.String("spec", app.Config.Scheduler.Spec))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		app.Log.Info("scheduler stopping", logger.String("signal", sig.String()))
	case <-ctx.Done():
		app.Log.Info("scheduler stopping", logger.Error(ctx.Err()))
	}

	// Let an in-flight cycle finish before exiting.
	<-c.Stop().Done()
	return nil
}
