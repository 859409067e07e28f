package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/clip.cheap/internal/billing"
	"github.com/abdul-hamid-achik/clip.cheap/internal/db"
	"github.com/abdul-hamid-achik/clip.cheap/internal/jobs"
	"github.com/abdul-hamid-achik/clip.cheap/internal/processor"
	"github.com/abdul-hamid-achik/clip.cheap/internal/storage"
	"github.com/abdul-hamid-achik/clip.cheap/internal/stream"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type enqueued struct {
	kind db.JobKind
	id   uuid.UUID
}

type mockEnqueuer struct {
	mu   sync.Mutex
	jobs []enqueued
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, kind db.JobKind, jobID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, enqueued{kind: kind, id: jobID})
	return nil
}

func (m *mockEnqueuer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

type allowAll struct{}

func (allowAll) Allow(context.Context, string) bool { return true }

type denyAll struct{}

func (denyAll) Allow(context.Context, string) bool { return false }

type testServer struct {
	handler  http.Handler
	store    *db.MemoryStore
	objects  *storage.MemoryStorage
	enqueuer *mockEnqueuer
	jobs     *jobs.Service
	streams  *stream.Service
	procs    chan *processor.FakeProcess
	owner    uuid.UUID
	token    string
}

func newTestServer(t *testing.T, opts ...func(*Config)) *testServer {
	t.Helper()

	store := db.NewMemoryStore()
	objects := storage.NewMemoryStorage()
	enqueuer := &mockEnqueuer{}
	billingSvc := billing.NewService(nil, store, "http://localhost:8080")
	jobsSvc := jobs.NewService(store, objects, enqueuer, billingSvc)

	procs := make(chan *processor.FakeProcess, 4)
	runner := &processor.FakeRunner{
		StartFunc: func(ctx context.Context, tool processor.Tool, args []string) (processor.Process, error) {
			p := processor.NewFakeProcess()
			procs <- p
			return p, nil
		},
	}
	streams := stream.NewService(jobsSvc, store, runner, stream.NewRegistry())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = streams.Shutdown(ctx)
	})

	cfg := &Config{
		Jobs:      jobsSvc,
		Streams:   streams,
		Billing:   billingSvc,
		JWTSecret: testSecret,
		Limiter:   allowAll{},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	owner := uuid.New()
	return &testServer{
		handler:  NewRouter(cfg),
		store:    store,
		objects:  objects,
		enqueuer: enqueuer,
		jobs:     jobsSvc,
		streams:  streams,
		procs:    procs,
		owner:    owner,
		token:    signToken(t, owner.String(), time.Hour),
	}
}

func signToken(t *testing.T, sub string, ttl time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(ttl).Unix(),
	})
	s, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return s.doAs(t, s.token, method, path, body)
}

func (s *testServer) doAs(t *testing.T, token, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	env := decode(t, rec)
	require.True(t, env.Success, rec.Body.String())
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	env := decode(t, rec)
	require.False(t, env.Success)
	require.NotNil(t, env.Error, rec.Body.String())
	return env.Error.Code
}
