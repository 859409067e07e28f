package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/clip.cheap/internal/clp/version"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// WithTimeout sets the per-request HTTP timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.httpClient.Timeout = d
	return c
}

func (c *Client) SetAPIKey(apiKey string) {
	c.apiKey = apiKey
}

func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("User-Agent", "clp-cli/"+version.Short())

	return c.httpClient.Do(req)
}

// doJSON sends reqBody and decodes the envelope's data into respBody.
func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		switch v := reqBody.(type) {
		case json.RawMessage:
			body = bytes.NewReader(v)
		default:
			data, err := json.Marshal(reqBody)
			if err != nil {
				return err
			}
			body = bytes.NewReader(data)
		}
	}

	resp, err := c.doRequest(ctx, method, path, body, "application/json")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if !env.Success {
		return errors.New("server reported failure without an error body")
	}
	if respBody != nil {
		return json.Unmarshal(env.Data, respBody)
	}
	return nil
}

func (c *Client) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil && env.Error.Message != "" {
		return &APIError{StatusCode: resp.StatusCode, Code: env.Error.Code, Message: env.Error.Message}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}

func featurePath(feature string, parts ...string) string {
	p := "/v1/" + url.PathEscape(feature)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

// CreateJob submits raw params to POST /v1/{feature}.
func (c *Client) CreateJob(ctx context.Context, feature string, params json.RawMessage) (*CreateResponse, error) {
	var result CreateResponse
	if err := c.doJSON(ctx, http.MethodPost, featurePath(feature), params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Download(ctx context.Context, req *DownloadRequest) (*CreateResponse, error) {
	var result CreateResponse
	if err := c.doJSON(ctx, http.MethodPost, featurePath("downloads"), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetJob(ctx context.Context, feature, jobID string) (*Job, error) {
	var result Job
	if err := c.doJSON(ctx, http.MethodGet, featurePath(feature, jobID, "status"), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) History(ctx context.Context, feature string, limit int) ([]Job, error) {
	path := featurePath(feature, "history")
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var result HistoryResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Jobs, nil
}

// Fetch opens a completed job's artifact.
func (c *Client) Fetch(ctx context.Context, feature, jobID string) (io.ReadCloser, *File, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, featurePath(feature, jobID, "file"), nil, "")
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode >= 400 {
		defer func() { _ = resp.Body.Close() }()
		return nil, nil, c.parseError(resp)
	}

	file := &File{
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		file.Filename = params["filename"]
	}
	return resp.Body, file, nil
}

func (c *Client) StartStream(ctx context.Context, params json.RawMessage) (*CreateResponse, error) {
	var result CreateResponse
	if err := c.doJSON(ctx, http.MethodPost, featurePath("streams", "start"), params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) StopStream(ctx context.Context, jobID string) (*Job, error) {
	var result Job
	if err := c.doJSON(ctx, http.MethodPost, featurePath("streams", jobID, "stop"), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetSubscription(ctx context.Context) (*Subscription, error) {
	var result Subscription
	if err := c.doJSON(ctx, http.MethodGet, "/v1/subscription", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Checkout(ctx context.Context, tier string) (*CheckoutResponse, error) {
	var result CheckoutResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/billing/checkout", &CheckoutRequest{Tier: tier}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// WaitForJob polls until the job reaches a terminal status. onUpdate, when
// set, sees every snapshot.
func (c *Client) WaitForJob(ctx context.Context, feature, jobID string, pollInterval, timeout time.Duration, onUpdate func(*Job)) (*Job, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		job, err := c.GetJob(ctx, feature, jobID)
		if err != nil {
			return nil, err
		}
		if onUpdate != nil {
			onUpdate(job)
		}
		if job.Done() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
