package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrToolNotFound = errors.New("processor: external tool not found")
	ErrToolFailed   = errors.New("processor: external tool failed")
)

// Tool names an external binary the runner knows how to resolve.
type Tool string

const (
	ToolFFmpeg  Tool = "ffmpeg"
	ToolFFprobe Tool = "ffprobe"
	ToolYtDlp   Tool = "yt-dlp"
)

// ToolNotFoundError is returned when a binary cannot be located or spawned.
type ToolNotFoundError struct {
	Tool Tool
	Path string
	Err  error
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("%s not found (%s): %v", e.Tool, e.Path, e.Err)
}

func (e *ToolNotFoundError) Is(target error) bool { return target == ErrToolNotFound }

func (e *ToolNotFoundError) Unwrap() error { return e.Err }

// ToolFailureError is returned when a binary exits with a non-zero status.
// StderrTail holds the last lines the process wrote to stderr; it is meant
// for logs, not for end users.
type ToolFailureError struct {
	Tool       Tool
	ExitCode   int
	StderrTail []string
}

func (e *ToolFailureError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	if n := len(e.StderrTail); n > 0 {
		msg += ": " + strings.TrimSpace(e.StderrTail[n-1])
	}
	return msg
}

func (e *ToolFailureError) Is(target error) bool { return target == ErrToolFailed }

type RunResult struct {
	ExitCode int
	Stdout   []byte
	Duration time.Duration
}

// Runner spawns external tools. Every Run call creates exactly one child
// process; sequencing several runs is the caller's job.
type Runner interface {
	Run(ctx context.Context, tool Tool, args []string) (*RunResult, error)
	Start(ctx context.Context, tool Tool, args []string) (Process, error)
}

// Process is a handle to a long-running child started with Runner.Start.
type Process interface {
	// Wait blocks until the process exits and returns the same error Run would.
	Wait() error
	// Stop asks the process to exit and kills it after timeout.
	Stop(timeout time.Duration) error
	Done() <-chan struct{}
	Pid() int
	StderrTail() []string
}

type Config struct {
	StderrTailLines int
	KillDelay       time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		StderrTailLines: 20,
		KillDelay:       10 * time.Second,
	}
}
