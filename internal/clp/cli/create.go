package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/clip.cheap/internal/clp/client"
	"github.com/abdul-hamid-achik/clip.cheap/internal/clp/output"
	"github.com/spf13/cobra"
)

const pollInterval = 2 * time.Second

var createCmd = &cobra.Command{
	Use:   "create <feature>",
	Short: "Submit a job from a JSON parameters file",
	Long: `Submit a job to POST /v1/<feature> using parameters read from a file.

Features: downloads, exports, loops, reactions. Use "clp stream start" for streams.

Examples:
  clp create exports -f timeline.json
  clp create loops -f loop.json --wait
  cat reaction.json | clp create reactions -f -`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

var downloadCmd = &cobra.Command{
	Use:   "download <url>",
	Short: "Download a video from a supported platform",
	Long: `Submit a download job for a YouTube, TikTok, Instagram, or X URL.

Examples:
  clp download https://www.youtube.com/watch?v=abc
  clp download https://www.tiktok.com/@user/video/123 --max-height 720 --wait`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

var (
	paramsFile     string
	waitForJob     bool
	fetchOnDone    string
	downloadFormat string
	downloadHeight int
)

func init() {
	createCmd.Flags().StringVarP(&paramsFile, "file", "f", "", "JSON parameters file (- for stdin)")
	createCmd.Flags().BoolVarP(&waitForJob, "wait", "w", false, "Wait for the job to finish")
	createCmd.Flags().StringVarP(&fetchOnDone, "output", "o", "", "Save the result here after --wait")
	_ = createCmd.MarkFlagRequired("file")

	downloadCmd.Flags().StringVar(&downloadFormat, "format", "", "Output container (mp4, webm, m4a)")
	downloadCmd.Flags().IntVar(&downloadHeight, "max-height", 0, "Maximum video height")
	downloadCmd.Flags().BoolVarP(&waitForJob, "wait", "w", false, "Wait for the job to finish")
	downloadCmd.Flags().StringVarP(&fetchOnDone, "output", "o", "", "Save the result here after --wait")
}

func runCreate(cmd *cobra.Command, args []string) error {
	if err := requireAuth(); err != nil {
		return err
	}

	feature := args[0]
	if feature == "streams" {
		return fmt.Errorf("use 'clp stream start' for streams")
	}

	params, err := readParams(cmd.InOrStdin(), paramsFile)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	resp, err := apiClient.CreateJob(ctx, feature, params)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return afterSubmit(ctx, feature, resp)
}

func runDownload(cmd *cobra.Command, args []string) error {
	if err := requireAuth(); err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	resp, err := apiClient.Download(ctx, &client.DownloadRequest{
		URL:       args[0],
		Format:    downloadFormat,
		MaxHeight: downloadHeight,
	})
	if err != nil {
		return fmt.Errorf("failed to create download: %w", err)
	}
	return afterSubmit(ctx, "downloads", resp)
}

func afterSubmit(ctx context.Context, feature string, resp *client.CreateResponse) error {
	if !waitForJob {
		if jsonOutput {
			return printer.JSON(resp)
		}
		printer.Success("Job %s %s", resp.JobID, output.Status(resp.Status))
		printer.Info("Follow it with: clp status %s %s --watch", feature, resp.JobID)
		return nil
	}

	job, err := waitWithProgress(ctx, feature, resp.JobID)
	if err != nil {
		return err
	}
	if jsonOutput {
		if err := printer.JSON(job); err != nil {
			return err
		}
	}
	if err := reportFinished(feature, job); err != nil {
		return err
	}
	if fetchOnDone != "" {
		return saveOutput(ctx, feature, job.ID, fetchOnDone)
	}
	return nil
}

func waitWithProgress(ctx context.Context, feature, jobID string) (*client.Job, error) {
	bar := output.NewJobProgress(jobID[:min(8, len(jobID))], quietMode || jsonOutput)
	job, err := apiClient.WaitForJob(ctx, feature, jobID, pollInterval, cfg.GetTimeout("wait"), func(j *client.Job) {
		bar.Update(j.Status, j.Progress)
	})
	bar.Finish()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("timed out waiting for job %s", jobID)
		}
		return nil, fmt.Errorf("failed waiting for job: %w", err)
	}
	return job, nil
}

func reportFinished(feature string, job *client.Job) error {
	if job.Status == client.StatusFailed {
		return fmt.Errorf("job %s failed: %s", job.ID, job.Error)
	}
	printer.Success("Job %s %s", job.ID, output.Status(job.Status))
	if feature != "streams" && fetchOnDone == "" {
		printer.Info("Fetch it with: clp fetch %s %s", feature, job.ID)
	}
	return nil
}

func readParams(stdin io.Reader, path string) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read parameters: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("parameters in %s are not valid JSON", path)
	}
	return json.RawMessage(data), nil
}
