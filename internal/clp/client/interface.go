package client

import (
	"context"
	"encoding/json"
	"io"
	"time"
)

// ClientInterface is implemented by Client and MockClient.
type ClientInterface interface {
	SetAPIKey(apiKey string)

	CreateJob(ctx context.Context, feature string, params json.RawMessage) (*CreateResponse, error)
	Download(ctx context.Context, req *DownloadRequest) (*CreateResponse, error)
	GetJob(ctx context.Context, feature, jobID string) (*Job, error)
	History(ctx context.Context, feature string, limit int) ([]Job, error)
	Fetch(ctx context.Context, feature, jobID string) (io.ReadCloser, *File, error)

	StartStream(ctx context.Context, params json.RawMessage) (*CreateResponse, error)
	StopStream(ctx context.Context, jobID string) (*Job, error)

	GetSubscription(ctx context.Context) (*Subscription, error)
	Checkout(ctx context.Context, tier string) (*CheckoutResponse, error)

	WaitForJob(ctx context.Context, feature, jobID string, pollInterval, timeout time.Duration, onUpdate func(*Job)) (*Job, error)
}

var _ ClientInterface = (*Client)(nil)
