package client

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockClient is a mock implementation of ClientInterface for testing.
type MockClient struct {
	mock.Mock
}

var _ ClientInterface = (*MockClient)(nil)

func (m *MockClient) SetAPIKey(apiKey string) {
	m.Called(apiKey)
}

func (m *MockClient) CreateJob(ctx context.Context, feature string, params json.RawMessage) (*CreateResponse, error) {
	args := m.Called(ctx, feature, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CreateResponse), args.Error(1)
}

func (m *MockClient) Download(ctx context.Context, req *DownloadRequest) (*CreateResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CreateResponse), args.Error(1)
}

func (m *MockClient) GetJob(ctx context.Context, feature, jobID string) (*Job, error) {
	args := m.Called(ctx, feature, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Job), args.Error(1)
}

func (m *MockClient) History(ctx context.Context, feature string, limit int) ([]Job, error) {
	args := m.Called(ctx, feature, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Job), args.Error(1)
}

func (m *MockClient) Fetch(ctx context.Context, feature, jobID string) (io.ReadCloser, *File, error) {
	args := m.Called(ctx, feature, jobID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(*File), args.Error(2)
}

func (m *MockClient) StartStream(ctx context.Context, params json.RawMessage) (*CreateResponse, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CreateResponse), args.Error(1)
}

func (m *MockClient) StopStream(ctx context.Context, jobID string) (*Job, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Job), args.Error(1)
}

func (m *MockClient) GetSubscription(ctx context.Context) (*Subscription, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Subscription), args.Error(1)
}

func (m *MockClient) Checkout(ctx context.Context, tier string) (*CheckoutResponse, error) {
	args := m.Called(ctx, tier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CheckoutResponse), args.Error(1)
}

func (m *MockClient) WaitForJob(ctx context.Context, feature, jobID string, pollInterval, timeout time.Duration, onUpdate func(*Job)) (*Job, error) {
	args := m.Called(ctx, feature, jobID, pollInterval, timeout, onUpdate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	job := args.Get(0).(*Job)
	if onUpdate != nil {
		onUpdate(job)
	}
	return job, args.Error(1)
}
