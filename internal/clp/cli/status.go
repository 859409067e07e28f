package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/abdul-hamid-achik/clip.cheap/internal/clp/client"
	"github.com/abdul-hamid-achik/clip.cheap/internal/clp/output"
	"github.com/spf13/cobra"
)

const maxConsecutiveErrors = 5

var statusCmd = &cobra.Command{
	Use:   "status <feature> <job-id>",
	Short: "Show a job's status",
	Long: `Show the status and progress of a job.

Examples:
  clp status downloads 3f2a...
  clp status exports 3f2a... --watch`,
	Args: cobra.ExactArgs(2),
	RunE: runStatus,
}

var statusWatch bool

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Watch until the job finishes")
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := requireAuth(); err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	feature, jobID := args[0], args[1]
	if statusWatch {
		return watchJob(ctx, feature, jobID)
	}

	job, err := apiClient.GetJob(ctx, feature, jobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}
	if jsonOutput {
		return printer.JSON(job)
	}
	printJob(job)
	return nil
}

func printJob(job *client.Job) {
	printer.Section("Job")
	printer.KeyValue("ID", job.ID)
	printer.KeyValue("Kind", job.Kind)
	printer.KeyValue("Status", output.Status(job.Status))
	printer.KeyValue("Progress", strconv.Itoa(job.Progress)+"%")
	if job.Platform != "" {
		printer.KeyValue("Platform", job.Platform)
	}
	printer.KeyValue("Created", formatTime(job.CreatedAt))
	if job.CompletedAt != nil {
		printer.KeyValue("Finished", formatTime(*job.CompletedAt))
	}
	if job.Error != "" {
		printer.KeyValue("Error", job.Error)
	}
}

// watchJob polls until the job is terminal, tolerating transient errors.
func watchJob(ctx context.Context, feature, jobID string) error {
	bar := output.NewJobProgress(jobID[:min(8, len(jobID))], quietMode || jsonOutput)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	timeout := time.After(cfg.GetTimeout("status_watch"))
	var consecutiveErrors int

	for {
		select {
		case <-ctx.Done():
			bar.Finish()
			return ctx.Err()
		case <-timeout:
			bar.Finish()
			return fmt.Errorf("timed out watching job %s", jobID)
		case <-ticker.C:
			job, err := apiClient.GetJob(ctx, feature, jobID)
			if err != nil {
				if isFatal(err) {
					bar.Finish()
					return fmt.Errorf("failed to get job: %w", err)
				}
				consecutiveErrors++
				bar.Update(fmt.Sprintf("error (%d/%d)", consecutiveErrors, maxConsecutiveErrors), 0)
				if consecutiveErrors >= maxConsecutiveErrors {
					bar.Finish()
					return fmt.Errorf("failed after %d consecutive errors: %w", consecutiveErrors, err)
				}
				continue
			}

			consecutiveErrors = 0
			bar.Update(job.Status, job.Progress)
			if !job.Done() {
				continue
			}

			bar.Finish()
			if jsonOutput {
				return printer.JSON(job)
			}
			return reportFinished(feature, job)
		}
	}
}

// isFatal reports client errors that retrying cannot fix.
func isFatal(err error) bool {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
}
