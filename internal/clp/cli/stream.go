package cli

import (
	"fmt"

	"github.com/abdul-hamid-achik/clip.cheap/internal/clp/output"
	"github.com/spf13/cobra"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Start and stop restreams",
}

var streamStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start restreaming a source to RTMP targets",
	Long: `Start a restream from a JSON parameters file.

Stream keys are sent to the server but never shown again.

Examples:
  clp stream start -f stream.json`,
	Args: cobra.NoArgs,
	RunE: runStreamStart,
}

var streamStopCmd = &cobra.Command{
	Use:   "stop <job-id>",
	Short: "Stop a running restream",
	Args:  cobra.ExactArgs(1),
	RunE:  runStreamStop,
}

var streamParamsFile string

func init() {
	streamCmd.AddCommand(streamStartCmd)
	streamCmd.AddCommand(streamStopCmd)

	streamStartCmd.Flags().StringVarP(&streamParamsFile, "file", "f", "", "JSON parameters file (- for stdin)")
	_ = streamStartCmd.MarkFlagRequired("file")
}

func runStreamStart(cmd *cobra.Command, args []string) error {
	if err := requireAuth(); err != nil {
		return err
	}

	params, err := readParams(cmd.InOrStdin(), streamParamsFile)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	resp, err := apiClient.StartStream(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}

	if jsonOutput {
		return printer.JSON(resp)
	}
	printer.Success("Stream %s %s", resp.JobID, output.Status(resp.Status))
	printer.Info("Stop it with: clp stream stop %s", resp.JobID)
	return nil
}

func runStreamStop(cmd *cobra.Command, args []string) error {
	if err := requireAuth(); err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	job, err := apiClient.StopStream(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to stop stream: %w", err)
	}

	if jsonOutput {
		return printer.JSON(job)
	}
	printer.Success("Stream %s %s", job.ID, output.Status(job.Status))
	return nil
}
