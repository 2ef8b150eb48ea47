package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/enrichment"
	"github.com/spigell/jobmatch/internal/service"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var errDeclined = errors.New("enrichment declined")

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich the best scored companies with AI outreach suggestions",
	Long: `Enrich the best scored companies with AI outreach suggestions.

With --structured every described job is classified on its own instead and
the structured fields are stored on the job.`,
	Run: func(cmd *cobra.Command, _ []string) {
		runEnrich(cmd)
	},
}

func init() {
	rootCmd.AddCommand(enrichCmd)

	enrichCmd.Flags().IntP("limit", "l", 0, "maximum number of companies, or jobs with --structured, to enrich (default from enrichment.top-k or enrichment.job-limit)")
	enrichCmd.Flags().BoolP("force", "f", false, "enrich again even if already enriched")
	enrichCmd.Flags().Bool("structured", false, "classify jobs one by one instead of enriching companies")
	enrichCmd.Flags().Int("version", 0, "enrichment version stored by --structured (default from enrichment.version)")
	enrichCmd.Flags().Bool("dry-run", false, "only report the companies that would be enriched")
	enrichCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	enrichCmd.Flags().String("user-id", "", "load the stored profile of this user")
}

func runEnrich(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt := setup(ctx, true)
	defer rt.close()
	logger := rt.logger

	if structured, _ := cmd.Flags().GetBool("structured"); structured {
		runStructured(ctx, cmd, rt)
		return
	}

	req := service.EnrichRequest{Profile: rt.config.Profile}
	req.TopK, _ = cmd.Flags().GetInt("limit")
	req.Force, _ = cmd.Flags().GetBool("force")
	req.DryRun, _ = cmd.Flags().GetBool("dry-run")
	req.UserID, _ = cmd.Flags().GetString("user-id")
	yes, _ := cmd.Flags().GetBool("yes")

	if !req.DryRun && !yes {
		if err := confirm(ctx, rt, req); err != nil {
			if errors.Is(err, errDeclined) {
				logger.Info("exiting", zap.String("reason", "got no from prompt"))
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}

	report, err := rt.service.EnrichLazy(ctx, req)
	if err != nil {
		logger.Fatal("enrichment failed", zap.Error(err))
	}
	logger.Info(report.Message, zap.String("run_id", report.RunID))

	if err := printJSON(report); err != nil {
		logger.Fatal("printing report", zap.Error(err))
	}
}

func runStructured(ctx context.Context, cmd *cobra.Command, rt *runtime) {
	logger := rt.logger

	var req service.StructuredRequest
	req.Limit, _ = cmd.Flags().GetInt("limit")
	req.Version, _ = cmd.Flags().GetInt("version")
	req.Force, _ = cmd.Flags().GetBool("force")
	req.DryRun, _ = cmd.Flags().GetBool("dry-run")
	yes, _ := cmd.Flags().GetBool("yes")

	if !req.DryRun && !yes {
		if err := confirmStructured(ctx, rt, req); err != nil {
			if errors.Is(err, errDeclined) {
				logger.Info("exiting", zap.String("reason", "got no from prompt"))
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}

	report, err := rt.service.EnrichStructured(ctx, req)
	if err != nil {
		logger.Fatal("structured enrichment failed", zap.Error(err))
	}
	logger.Info(report.Message, zap.String("run_id", report.RunID), zap.Int("skipped", report.Skipped))

	if err := printJSON(report); err != nil {
		logger.Fatal("printing report", zap.Error(err))
	}
}

func confirmStructured(ctx context.Context, rt *runtime, req service.StructuredRequest) error {
	preview := req
	preview.DryRun = true

	report, err := rt.service.EnrichStructured(ctx, preview)
	if err != nil {
		return fmt.Errorf("previewing enrichment: %w", err)
	}
	if report.Processed == 0 {
		rt.logger.Info("no jobs to enrich", zap.Int("version", report.Version))
		return errDeclined
	}

	for _, d := range report.Details {
		rt.logger.Info("candidate job", zap.String("job_id", d.JobID), zap.String("title", d.Title), zap.String("company", d.Company))
	}
	return ask(fmt.Sprintf("Classify %d jobs with AI at version %d (about %s)?", report.Processed, report.Version,
		estimate(report.Processed, rt.config.Enrichment.Delay)))
}

// confirm previews the selection with a dry run and asks before calling the AI.
func confirm(ctx context.Context, rt *runtime, req service.EnrichRequest) error {
	preview := req
	preview.DryRun = true

	report, err := rt.service.EnrichLazy(ctx, preview)
	if err != nil {
		return fmt.Errorf("previewing enrichment: %w", err)
	}
	if report.Processed == 0 {
		rt.logger.Info("no companies to enrich")
		return errDeclined
	}

	for _, d := range report.Details {
		rt.logger.Info("candidate company",
			zap.String("company", d.Company),
			zap.Int("score", d.Score),
			zap.Int("jobs", d.JobsCount),
		)
	}

	return ask(fmt.Sprintf("Enrich %d companies with AI (about %s)?", report.Processed,
		estimate(report.Processed, rt.config.Enrichment.Delay)))
}

func ask(label string) error {
	prompt := promptui.Select{
		Label: label,
		Items: []string{PromptYes, PromptNo},
	}
	_, answer, err := prompt.Run()
	if err != nil {
		return err
	}
	if answer != PromptYes {
		return errDeclined
	}
	return nil
}

func estimate(companies int, delay time.Duration) string {
	switch {
	case delay == 0:
		delay = enrichment.DefaultDelay
	case delay < 0:
		delay = 0
	}
	return (time.Duration(companies) * delay).String()
}
