package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/clip.cheap/internal/clp/client"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
)

var subscriptionCmd = &cobra.Command{
	Use:   "subscription",
	Short: "Show your plan and export allowance",
	Args:  cobra.NoArgs,
	RunE:  runSubscription,
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade <tier>",
	Short: "Open checkout for a paid plan",
	Long: `Create a checkout session for a paid tier and open it in the browser.

Tiers: creator, pro.

Examples:
  clp upgrade pro
  clp upgrade creator --no-browser`,
	Args: cobra.ExactArgs(1),
	RunE: runUpgrade,
}

var noBrowser bool

// openURL is replaced in tests.
var openURL = browser.OpenURL

func init() {
	upgradeCmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the checkout URL instead of opening it")
}

func runSubscription(cmd *cobra.Command, args []string) error {
	if err := requireAuth(); err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	sub, err := apiClient.GetSubscription(ctx)
	if err != nil {
		return fmt.Errorf("failed to get subscription: %w", err)
	}

	if jsonOutput {
		return printer.JSON(sub)
	}

	printer.Section("Subscription")
	printer.KeyValue("Tier", sub.Tier)
	if sub.Status != "" {
		printer.KeyValue("Status", sub.Status)
	}
	printer.KeyValue("Exports", exportsSummary(sub))
	if sub.ValidUntil != nil {
		printer.KeyValue("Renews", sub.ValidUntil.Format("Jan 2, 2006"))
	}
	return nil
}

func exportsSummary(sub *client.Subscription) string {
	if sub.Unlimited {
		return strconv.Itoa(sub.ExportsUsed) + " used, unlimited"
	}
	return fmt.Sprintf("%d of %d used, %d remaining", sub.ExportsUsed, sub.ExportsLimit, sub.ExportsRemaining)
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	if err := requireAuth(); err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	resp, err := apiClient.Checkout(ctx, strings.ToLower(args[0]))
	if err != nil {
		return fmt.Errorf("failed to start checkout: %w", err)
	}

	if jsonOutput {
		return printer.JSON(resp)
	}

	if noBrowser {
		printer.Printf("%s\n", resp.URL)
		return nil
	}
	if err := openURL(resp.URL); err != nil {
		printer.Warn("Could not open browser automatically")
		printer.Printf("Open this URL to finish checkout: %s\n", resp.URL)
		return nil
	}
	printer.Success("Opened checkout in your browser")
	return nil
}
