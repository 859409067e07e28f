package billing

import (
	"github.com/abdul-hamid-achik/clip.cheap/internal/db"
	"github.com/stripe/stripe-go/v83"
)

type Client struct {
	client        *stripe.Client
	webhookSecret string
	prices        map[db.SubscriptionTier]string
}

// NewClient returns nil when no secret key is configured; a nil *Client is
// valid and reports itself as unconfigured.
func NewClient(secretKey, webhookSecret, priceCreator, pricePro string) *Client {
	if secretKey == "" {
		return nil
	}

	return &Client{
		client:        stripe.NewClient(secretKey),
		webhookSecret: webhookSecret,
		prices: map[db.SubscriptionTier]string{
			db.SubscriptionTierCreator: priceCreator,
			db.SubscriptionTierPro:     pricePro,
		},
	}
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.client != nil
}

// PriceID returns the Stripe price for a paid tier, or "".
func (c *Client) PriceID(tier db.SubscriptionTier) string {
	if c == nil {
		return ""
	}
	return c.prices[tier]
}

func (c *Client) WebhookSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

func (c *Client) StripeClient() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.client
}
