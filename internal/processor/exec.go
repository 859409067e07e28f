package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/clip.cheap/internal/logger"
	"github.com/abdul-hamid-achik/clip.cheap/internal/metrics"
)

// ExecRunner runs tools with os/exec.
type ExecRunner struct {
	tools  *Registry
	config *Config
}

var _ Runner = (*ExecRunner)(nil)

func NewExecRunner(tools *Registry, cfg *Config) *ExecRunner {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &ExecRunner{tools: tools, config: cfg}
}

func (r *ExecRunner) Tools() *Registry {
	return r.tools
}

func (r *ExecRunner) Run(ctx context.Context, tool Tool, args []string) (*RunResult, error) {
	path, err := r.tools.Resolve(tool)
	if err != nil {
		metrics.RecordToolRun(string(tool), "not_found", 0)
		return nil, err
	}

	log := logger.FromContext(ctx).With("tool", string(tool))
	log.Debug("running external tool", "args", strings.Join(args, " "))

	cmd := r.command(ctx, path, args)
	var stdout bytes.Buffer
	tail := newStderrTail(r.config.StderrTailLines, log)
	cmd.Stdout = &stdout
	cmd.Stderr = tail

	start := time.Now()
	runErr := cmd.Run()
	tail.flush()
	duration := time.Since(start)

	result := &RunResult{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdout.Bytes(),
		Duration: duration,
	}
	if runErr != nil {
		err := classifyExit(ctx, tool, path, runErr, tail)
		metrics.RecordToolRun(string(tool), resultLabel(err), duration)
		log.Warn("external tool failed",
			"exit_code", result.ExitCode,
			"duration_ms", duration.Milliseconds(),
			"stderr_tail", strings.Join(tail.lines(), "\n"),
		)
		return result, err
	}

	metrics.RecordToolRun(string(tool), "success", duration)
	log.Debug("external tool finished", "duration_ms", duration.Milliseconds())
	return result, nil
}

func (r *ExecRunner) Start(ctx context.Context, tool Tool, args []string) (Process, error) {
	path, err := r.tools.Resolve(tool)
	if err != nil {
		metrics.RecordToolRun(string(tool), "not_found", 0)
		return nil, err
	}

	log := logger.FromContext(ctx).With("tool", string(tool))
	cmd := r.command(ctx, path, args)
	tail := newStderrTail(r.config.StderrTailLines, log)
	cmd.Stderr = tail

	if err := cmd.Start(); err != nil {
		metrics.RecordToolRun(string(tool), "not_found", 0)
		return nil, &ToolNotFoundError{Tool: tool, Path: path, Err: err}
	}

	p := &execProcess{
		cmd:     cmd,
		tail:    tail,
		done:    make(chan struct{}),
		started: time.Now(),
	}
	log.Info("external tool started", "pid", cmd.Process.Pid)

	go func() {
		waitErr := cmd.Wait()
		tail.flush()
		duration := time.Since(p.started)
		if waitErr != nil {
			p.err = classifyExit(ctx, tool, path, waitErr, tail)
		}
		metrics.RecordToolRun(string(tool), resultLabel(p.err), duration)
		close(p.done)
	}()

	return p, nil
}

func (r *ExecRunner) command(ctx context.Context, path string, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, path, args...)
	// Give ffmpeg a chance to finalize its output before the hard kill.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = r.config.KillDelay
	return cmd
}

func classifyExit(ctx context.Context, tool Tool, path string, err error, tail *stderrTail) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		failure := &ToolFailureError{
			Tool:       tool,
			ExitCode:   exitErr.ExitCode(),
			StderrTail: tail.lines(),
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ctxErr, failure)
		}
		return failure
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s interrupted: %w", tool, ctxErr)
	}
	return &ToolNotFoundError{Tool: tool, Path: path, Err: err}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrToolNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "interrupted"
	default:
		return "failure"
	}
}

type execProcess struct {
	cmd     *exec.Cmd
	tail    *stderrTail
	done    chan struct{}
	err     error
	started time.Time
}

func (p *execProcess) Wait() error {
	<-p.done
	return p.err
}

func (p *execProcess) Done() <-chan struct{} {
	return p.done
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) StderrTail() []string {
	return p.tail.lines()
}

func (p *execProcess) Stop(timeout time.Duration) error {
	select {
	case <-p.done:
		return nil
	default:
	}

	if err := p.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to signal process %d: %w", p.cmd.Process.Pid, err)
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(timeout):
	}

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill process %d: %w", p.cmd.Process.Pid, err)
	}
	<-p.done
	return nil
}

// stderrTail forwards stderr to the logger line by line and keeps the last
// max lines. Carriage returns count as line breaks since ffmpeg uses them for
// progress updates.
type stderrTail struct {
	mu      sync.Mutex
	max     int
	buf     []string
	partial []byte
	log     *slog.Logger
}

func newStderrTail(max int, log *slog.Logger) *stderrTail {
	if max <= 0 {
		max = 20
	}
	return &stderrTail{max: max, log: log}
}

func (t *stderrTail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, b := range p {
		if b == '\n' || b == '\r' {
			t.push()
			continue
		}
		t.partial = append(t.partial, b)
	}
	return len(p), nil
}

func (t *stderrTail) push() {
	line := strings.TrimSpace(string(t.partial))
	t.partial = t.partial[:0]
	if line == "" {
		return
	}
	if t.log != nil {
		t.log.Debug("tool stderr", "line", line)
	}
	t.buf = append(t.buf, line)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
}

func (t *stderrTail) flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.push()
}

func (t *stderrTail) lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, len(t.buf))
	copy(out, t.buf)
	return out
}
