package processor

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func skipIfNoShell(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available, skipping test")
	}
}

// shellRunner registers sh under the ffmpeg name so tests can script exits.
func shellRunner() *ExecRunner {
	r := NewRegistry()
	r.Register(ToolFFmpeg, "sh")
	return NewExecRunner(r, &Config{StderrTailLines: 3, KillDelay: time.Second})
}

func TestExecRunner_Success(t *testing.T) {
	skipIfNoShell(t)

	res, err := shellRunner().Run(context.Background(), ToolFFmpeg, []string{"-c", "printf hello"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if string(res.Stdout) != "hello" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "hello")
	}
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	skipIfNoShell(t)

	script := "echo one >&2; echo two >&2; echo three >&2; echo four >&2; exit 3"
	_, err := shellRunner().Run(context.Background(), ToolFFmpeg, []string{"-c", script})
	if !errors.Is(err, ErrToolFailed) {
		t.Fatalf("Run() error = %v, want ErrToolFailed", err)
	}

	var failure *ToolFailureError
	if !errors.As(err, &failure) {
		t.Fatalf("error type = %T, want *ToolFailureError", err)
	}
	if failure.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", failure.ExitCode)
	}
	want := []string{"two", "three", "four"}
	if strings.Join(failure.StderrTail, ",") != strings.Join(want, ",") {
		t.Errorf("StderrTail = %v, want %v", failure.StderrTail, want)
	}
	if !strings.Contains(failure.Error(), "four") {
		t.Errorf("Error() = %q, want last stderr line", failure.Error())
	}
}

func TestExecRunner_ToolNotFound(t *testing.T) {
	r := NewRegistry()
	r.Register(ToolYtDlp, "definitely-not-a-real-binary-clip")

	_, err := NewExecRunner(r, nil).Run(context.Background(), ToolYtDlp, []string{"--version"})
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("Run() error = %v, want ErrToolNotFound", err)
	}
}

func TestExecRunner_ContextCancel(t *testing.T) {
	skipIfNoShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := shellRunner().Run(ctx, ToolFFmpeg, []string{"-c", "exec sleep 30"})
	if err == nil {
		t.Fatal("Run() error = nil, want interruption")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Run() took %s after cancel", elapsed)
	}
}

func TestExecRunner_StartAndStop(t *testing.T) {
	skipIfNoShell(t)

	p, err := shellRunner().Start(context.Background(), ToolFFmpeg, []string{"-c", "exec sleep 30"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if p.Pid() <= 0 {
		t.Errorf("Pid() = %d, want > 0", p.Pid())
	}

	if err := p.Stop(2 * time.Second); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after Stop")
	}
	if err := p.Wait(); !errors.Is(err, ErrToolFailed) {
		t.Errorf("Wait() error = %v, want ErrToolFailed for signalled exit", err)
	}
}

func TestExecRunner_StartExitZero(t *testing.T) {
	skipIfNoShell(t)

	p, err := shellRunner().Start(context.Background(), ToolFFmpeg, []string{"-c", "exit 0"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := p.Wait(); err != nil {
		t.Errorf("Wait() error = %v, want nil", err)
	}
}

func TestStderrTail_SplitsCarriageReturns(t *testing.T) {
	tail := newStderrTail(5, nil)
	_, _ = tail.Write([]byte("frame=1\rframe=2\rframe=3\nError opening output"))
	tail.flush()

	got := tail.lines()
	want := []string{"frame=1", "frame=2", "frame=3", "Error opening output"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("lines() = %v, want %v", got, want)
	}
}

func TestToolFailureError_Error(t *testing.T) {
	err := &ToolFailureError{Tool: ToolFFmpeg, ExitCode: 1}
	if got := err.Error(); got != "ffmpeg exited with code 1" {
		t.Errorf("Error() = %q", got)
	}
}
