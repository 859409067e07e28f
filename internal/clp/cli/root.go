package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/abdul-hamid-achik/clip.cheap/internal/clp/client"
	"github.com/abdul-hamid-achik/clip.cheap/internal/clp/config"
	"github.com/abdul-hamid-achik/clip.cheap/internal/clp/output"
	"github.com/abdul-hamid-achik/clip.cheap/internal/clp/version"
	"github.com/spf13/cobra"
)

var (
	jsonOutput bool
	quietMode  bool
	noColor    bool
	cfg        *config.Config
	apiClient  client.ClientInterface
	printer    *output.Printer
)

// newClient is replaced in tests.
var newClient = func(c *config.Config) client.ClientInterface {
	return client.New(c.BaseURL, c.APIKey).WithTimeout(c.GetTimeout("http"))
}

var rootCmd = &cobra.Command{
	Use:   "clp",
	Short: "clip.cheap CLI - download, edit, and restream video",
	Long: `clp is the command-line interface for clip.cheap.

Submit media jobs, follow their progress, and fetch the results.

Get started:
  clp auth set-key <key>                  # Store your API token
  clp download https://youtu.be/abc --wait
  clp history downloads`,
	Version: version.Full(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		printer = output.New(
			output.WithJSON(jsonOutput),
			output.WithQuiet(quietMode),
			output.WithNoColor(noColor),
			output.WithOutput(cmd.OutOrStdout()),
			output.WithErrOutput(cmd.ErrOrStderr()),
		)

		apiClient = newClient(cfg)
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON (for scripting)")
	rootCmd.PersistentFlags().BoolVar(&quietMode, "quiet", false, "Suppress non-error output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.SetVersionTemplate("clp version {{.Version}}\n")

	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(subscriptionCmd)
	rootCmd.AddCommand(upgradeCmd)
}

func requireAuth() error {
	if !cfg.IsAuthenticated() {
		return fmt.Errorf("not authenticated, run 'clp auth set-key <key>' or set %s", config.EnvAPIKey)
	}
	return nil
}

// commandContext is cancelled on SIGINT or SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
