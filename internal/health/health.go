package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/clip.cheap/internal/processor"
	"github.com/redis/go-redis/v9"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type StorageHealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ToolChecker reports external binaries that cannot be resolved.
type ToolChecker interface {
	Check() map[processor.Tool]error
}

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

type ComponentHealth struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Latency int64  `json:"latency_ms"`
	Error   string `json:"error,omitempty"`
}

type HealthResponse struct {
	Status     Status            `json:"status"`
	Components []ComponentHealth `json:"components,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

type check struct {
	name string
	fn   func(ctx context.Context) error
}

type Checker struct {
	checks []check
}

func NewChecker(db Pinger, redisClient *redis.Client) *Checker {
	c := &Checker{}
	if db != nil {
		c.add("database", db.Ping)
	}
	if redisClient != nil {
		c.add("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	return c
}

func (c *Checker) add(name string, fn func(ctx context.Context) error) {
	c.checks = append(c.checks, check{name: name, fn: fn})
}

func (c *Checker) WithStorage(s StorageHealthChecker) *Checker {
	if s != nil {
		c.add("storage", s.HealthCheck)
	}
	return c
}

// WithTools marks the service unhealthy while ffmpeg, ffprobe or yt-dlp
// cannot be found.
func (c *Checker) WithTools(t ToolChecker) *Checker {
	if t != nil {
		c.add("tools", func(context.Context) error { return toolsError(t.Check()) })
	}
	return c
}

func toolsError(missing map[processor.Tool]error) error {
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(missing))
	for tool := range missing {
		names = append(names, string(tool))
	}
	sort.Strings(names)
	return errors.New("missing: " + strings.Join(names, ", "))
}

func (c *Checker) CheckAll(ctx context.Context) HealthResponse {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	components := make([]ComponentHealth, len(c.checks))
	for i, chk := range c.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			components[i] = run(ctx, chk)
		}()
	}
	wg.Wait()

	status := StatusHealthy
	for _, comp := range components {
		if comp.Status == StatusUnhealthy {
			status = StatusUnhealthy
			break
		}
	}

	return HealthResponse{
		Status:     status,
		Components: components,
		Timestamp:  time.Now(),
	}
}

func run(ctx context.Context, chk check) (comp ComponentHealth) {
	start := time.Now()
	comp = ComponentHealth{Name: chk.name, Status: StatusHealthy}
	defer func() {
		if r := recover(); r != nil {
			comp.Status = StatusUnhealthy
			comp.Error = fmt.Sprint(r)
		}
		comp.Latency = time.Since(start).Milliseconds()
	}()

	if err := chk.fn(ctx); err != nil {
		comp.Status = StatusUnhealthy
		comp.Error = err.Error()
	}
	return comp
}

func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}
}

func ReadinessHandler(checker *Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := checker.CheckAll(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
