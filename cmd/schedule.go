package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/scheduler"
	"github.com/spigell/jobmatch/internal/service"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run lazy enrichment periodically",
	Run: func(cmd *cobra.Command, _ []string) {
		runSchedule(cmd)
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().String("spec", "", "cron spec (default from schedule)")
	scheduleCmd.Flags().Bool("now", false, "run a first cycle immediately")
	scheduleCmd.Flags().BoolP("force", "f", false, "enrich companies again even if they already carry suggestions")
	viper.BindPFlag("schedule", scheduleCmd.Flags().Lookup("spec"))
}

func runSchedule(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt := setup(ctx, false)
	defer rt.close()

	force, _ := cmd.Flags().GetBool("force")
	now, _ := cmd.Flags().GetBool("now")

	s := scheduler.New(rt.service, rt.config.Schedule, service.EnrichRequest{
		Profile: rt.config.Profile,
		Force:   force,
	}, rt.logger)
	if err := s.Start(ctx, now); err != nil {
		rt.logger.Fatal("starting the scheduler", zap.Error(err))
	}

	<-ctx.Done()
	rt.logger.Info("shutting down")
	s.Stop()
}
