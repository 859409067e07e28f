package processor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FakeRunner records calls instead of spawning processes. By default it
// imitates the tools just enough for pipelines to proceed: ffmpeg writes its
// output file, ffprobe reports a 10s clip with audio, and yt-dlp writes a
// file matching its -o template and prints the path.
type FakeRunner struct {
	mu    sync.Mutex
	calls []FakeCall

	// RunFunc overrides the default Run behaviour when set.
	RunFunc func(ctx context.Context, tool Tool, args []string) (*RunResult, error)
	// StartFunc overrides the default Start behaviour when set.
	StartFunc func(ctx context.Context, tool Tool, args []string) (Process, error)
}

type FakeCall struct {
	Tool Tool
	Args []string
}

var _ Runner = (*FakeRunner)(nil)

func (f *FakeRunner) record(tool Tool, args []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, FakeCall{Tool: tool, Args: append([]string(nil), args...)})
}

func (f *FakeRunner) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}

// CallsFor returns the recorded calls of a single tool.
func (f *FakeRunner) CallsFor(tool Tool) []FakeCall {
	var out []FakeCall
	for _, c := range f.Calls() {
		if c.Tool == tool {
			out = append(out, c)
		}
	}
	return out
}

func (f *FakeRunner) Run(ctx context.Context, tool Tool, args []string) (*RunResult, error) {
	f.record(tool, args)
	if f.RunFunc != nil {
		return f.RunFunc(ctx, tool, args)
	}
	return FakeToolOutput(tool, args)
}

func (f *FakeRunner) Start(ctx context.Context, tool Tool, args []string) (Process, error) {
	f.record(tool, args)
	if f.StartFunc != nil {
		return f.StartFunc(ctx, tool, args)
	}
	return NewFakeProcess(), nil
}

const fakeProbeJSON = `{"streams":[{"codec_type":"video","codec_name":"h264","width":1280,"height":720,"r_frame_rate":"30/1"},{"codec_type":"audio","codec_name":"aac"}],"format":{"duration":"10.000000","size":"1048576","bit_rate":"838860","format_name":"mov,mp4,m4a,3gp,3g2,mj2"}}`

// FakeToolOutput produces the side effects FakeRunner uses by default.
func FakeToolOutput(tool Tool, args []string) (*RunResult, error) {
	switch tool {
	case ToolFFprobe:
		return &RunResult{Stdout: []byte(fakeProbeJSON)}, nil
	case ToolFFmpeg:
		if len(args) > 0 {
			out := args[len(args)-1]
			if err := os.WriteFile(out, []byte("fake media"), 0o644); err != nil {
				return nil, err
			}
		}
		return &RunResult{}, nil
	case ToolYtDlp:
		for i := 0; i < len(args)-1; i++ {
			if args[i] == "-o" {
				out := strings.ReplaceAll(args[i+1], "%(ext)s", "mp4")
				if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
					return nil, err
				}
				if err := os.WriteFile(out, []byte("fake download"), 0o644); err != nil {
					return nil, err
				}
				return &RunResult{Stdout: []byte(out + "\n")}, nil
			}
		}
		return &RunResult{}, nil
	}
	return &RunResult{}, nil
}

// FakeProcess is a Process whose exit is controlled by the test.
type FakeProcess struct {
	once    sync.Once
	done    chan struct{}
	err     error
	stopped bool
	mu      sync.Mutex

	// StopErr is the exit error reported when Stop is called.
	StopErr error
}

var _ Process = (*FakeProcess)(nil)

func NewFakeProcess() *FakeProcess {
	return &FakeProcess{done: make(chan struct{})}
}

// Exit makes the process exit with err. Later calls are ignored.
func (p *FakeProcess) Exit(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

func (p *FakeProcess) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

func (p *FakeProcess) Wait() error {
	<-p.done
	return p.err
}

func (p *FakeProcess) Stop(timeout time.Duration) error {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.Exit(p.StopErr)
	return nil
}

func (p *FakeProcess) Done() <-chan struct{} { return p.done }

func (p *FakeProcess) Pid() int { return 4242 }

func (p *FakeProcess) StderrTail() []string { return nil }
