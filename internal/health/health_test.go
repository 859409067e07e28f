package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/abdul-hamid-achik/clip.cheap/internal/processor"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type storageFunc func(ctx context.Context) error

func (f storageFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

type toolsFunc func() map[processor.Tool]error

func (f toolsFunc) Check() map[processor.Tool]error { return f() }

func healthy(context.Context) error { return nil }

func TestCheckAll(t *testing.T) {
	tests := []struct {
		name    string
		db      error
		storage error
		missing map[processor.Tool]error
		want    Status
		wantErr string
	}{
		{name: "all healthy", want: StatusHealthy},
		{name: "database down", db: errors.New("connection refused"), want: StatusUnhealthy},
		{name: "storage down", storage: errors.New("bucket missing"), want: StatusUnhealthy},
		{
			name: "tools missing",
			missing: map[processor.Tool]error{
				processor.ToolYtDlp:  errors.New("not found"),
				processor.ToolFFmpeg: errors.New("not found"),
			},
			want:    StatusUnhealthy,
			wantErr: "missing: ffmpeg, yt-dlp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(pingFunc(func(context.Context) error { return tt.db }), nil).
				WithStorage(storageFunc(func(context.Context) error { return tt.storage })).
				WithTools(toolsFunc(func() map[processor.Tool]error { return tt.missing }))

			resp := c.CheckAll(context.Background())
			if resp.Status != tt.want {
				t.Errorf("status = %s, want %s", resp.Status, tt.want)
			}
			if len(resp.Components) != 3 {
				t.Fatalf("components = %d, want 3", len(resp.Components))
			}
			if tt.wantErr != "" && resp.Components[2].Error != tt.wantErr {
				t.Errorf("tools error = %q, want %q", resp.Components[2].Error, tt.wantErr)
			}
		})
	}
}

func TestReadinessHandler(t *testing.T) {
	c := NewChecker(pingFunc(healthy), nil).WithStorage(storageFunc(func(context.Context) error {
		return errors.New("timeout")
	}))

	rec := httptest.NewRecorder()
	ReadinessHandler(c)(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want 503", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Components[1].Name != "storage" || resp.Components[1].Error != "timeout" {
		t.Errorf("components = %+v", resp.Components)
	}
}

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status code = %d, want 200", rec.Code)
	}
}
