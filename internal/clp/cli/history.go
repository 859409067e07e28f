package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/abdul-hamid-achik/clip.cheap/internal/clp/output"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <feature>",
	Short: "List recent jobs for a feature",
	Long: `List your most recent jobs for a feature, newest first.

Examples:
  clp history downloads
  clp history exports --limit 50 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of jobs")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if err := requireAuth(); err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	jobs, err := apiClient.History(ctx, args[0], historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	if jsonOutput {
		return printer.JSON(jobs)
	}

	if len(jobs) == 0 {
		printer.Info("No %s yet", args[0])
		return nil
	}

	table := output.NewTableWriter(cmd.OutOrStdout(), []string{"ID", "STATUS", "PROGRESS", "CREATED"}, quietMode)
	for _, j := range jobs {
		table.Append(j.ID, output.Status(j.Status), strconv.Itoa(j.Progress)+"%", formatTime(j.CreatedAt))
	}
	table.Render()
	return nil
}

func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}

func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
