package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/clip.cheap/internal/clp/output"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <feature> <job-id>",
	Short: "Download a finished job's file",
	Long: `Save the output of a completed job.

Without -o the server-suggested filename is used in the current directory.

Examples:
  clp fetch exports 3f2a...
  clp fetch loops 3f2a... -o loop.gif`,
	Args: cobra.ExactArgs(2),
	RunE: runFetch,
}

var fetchOutput string

func init() {
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "Destination path or directory")
}

func runFetch(cmd *cobra.Command, args []string) error {
	if err := requireAuth(); err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	return saveOutput(ctx, args[0], args[1], fetchOutput)
}

func saveOutput(ctx context.Context, feature, jobID, dest string) error {
	body, file, err := apiClient.Fetch(ctx, feature, jobID)
	if err != nil {
		return fmt.Errorf("failed to fetch output: %w", err)
	}
	defer func() { _ = body.Close() }()

	path := resolveDest(dest, file.Filename, jobID)

	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	bar := output.NewByteProgress(sizeOrUnknown(file.Size), filepath.Base(path), quietMode || jsonOutput)
	n, err := io.Copy(io.MultiWriter(f, bar), body)
	bar.Finish()
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to save output: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to save output: %w", err)
	}

	if jsonOutput {
		return printer.JSON(map[string]any{
			"path":         path,
			"bytes":        n,
			"content_type": file.ContentType,
		})
	}
	printer.Success("Saved %s (%s)", path, formatSize(n))
	return nil
}

func resolveDest(dest, suggested, jobID string) string {
	name := filepath.Base(suggested)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = jobID
	}
	if dest == "" {
		return name
	}
	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		return filepath.Join(dest, name)
	}
	return dest
}

func sizeOrUnknown(n int64) int64 {
	if n <= 0 {
		return -1
	}
	return n
}
