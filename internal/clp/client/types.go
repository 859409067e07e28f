package client

import (
	"encoding/json"
	"fmt"
	"time"
)

// Terminal job statuses.
const (
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
	StatusEnded     = "ENDED"
)

type Job struct {
	ID             string     `json:"jobId"`
	Kind           string     `json:"kind"`
	Status         string     `json:"status"`
	Progress       int        `json:"progress"`
	Platform       string     `json:"platform,omitempty"`
	OutputLocation string     `json:"outputLocation,omitempty"`
	Error          string     `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

func (j *Job) Done() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed || j.Status == StatusEnded
}

type CreateResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

type HistoryResponse struct {
	Jobs []Job `json:"jobs"`
}

type Subscription struct {
	Tier             string     `json:"tier"`
	Status           string     `json:"status"`
	ExportsUsed      int        `json:"exportsUsed"`
	ExportsLimit     int        `json:"exportsLimit"`
	ExportsRemaining int        `json:"exportsRemaining"`
	Unlimited        bool       `json:"unlimited"`
	ValidUntil       *time.Time `json:"validUntil,omitempty"`
}

type CheckoutRequest struct {
	Tier string `json:"tier"`
}

type CheckoutResponse struct {
	URL string `json:"url"`
}

type DownloadRequest struct {
	URL       string `json:"url"`
	Format    string `json:"format,omitempty"`
	MaxHeight int    `json:"maxHeight,omitempty"`
}

// File is an opened job artifact. The caller closes Body.
type File struct {
	Filename    string
	ContentType string
	Size        int64
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError is a failure envelope returned by the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
