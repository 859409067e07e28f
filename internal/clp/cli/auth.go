package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the stored API token",
}

var authSetKeyCmd = &cobra.Command{
	Use:   "set-key <token>",
	Short: "Store an API token",
	Long: `Store a bearer token for clip.cheap in ~/.config/clp/config.yaml.

The CLP_API_KEY environment variable takes precedence over the stored token.

Examples:
  clp auth set-key eyJhbGciOi...`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthSetKey,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	RunE:  runAuthStatus,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored API token",
	RunE:  runAuthLogout,
}

func init() {
	authCmd.AddCommand(authSetKeyCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authLogoutCmd)
}

func runAuthSetKey(cmd *cobra.Command, args []string) error {
	key := strings.TrimSpace(args[0])
	if key == "" {
		return fmt.Errorf("token is empty")
	}
	if err := cfg.SetAPIKey(key); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	printer.Success("Token saved (%s)", maskAPIKey(key))
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	if jsonOutput {
		return printer.JSON(map[string]any{
			"authenticated": cfg.IsAuthenticated(),
			"base_url":      cfg.BaseURL,
		})
	}

	if !cfg.IsAuthenticated() {
		printer.Warn("Not authenticated")
		printer.KeyValue("API URL", cfg.BaseURL)
		return nil
	}

	printer.Success("Authenticated")
	printer.KeyValue("Token", maskAPIKey(cfg.APIKey))
	printer.KeyValue("API URL", cfg.BaseURL)
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	if err := cfg.ClearAuth(); err != nil {
		return fmt.Errorf("failed to clear config: %w", err)
	}
	printer.Success("Logged out")
	return nil
}

func maskAPIKey(key string) string {
	if len(key) <= 10 {
		if len(key) <= 4 {
			return "****"
		}
		return key[:2] + "..." + key[len(key)-2:]
	}
	return key[:6] + "..." + key[len(key)-4:]
}
