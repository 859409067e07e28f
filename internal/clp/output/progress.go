package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// JobProgress renders a job's 0-100 progress.
type JobProgress struct {
	bar     *progressbar.ProgressBar
	out     io.Writer
	started time.Time
}

type ProgressOption func(*JobProgress)

func ProgressWithOutput(out io.Writer) ProgressOption {
	return func(p *JobProgress) { p.out = out }
}

func NewJobProgress(description string, quiet bool, opts ...ProgressOption) *JobProgress {
	p := &JobProgress{
		out:     os.Stderr,
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if quiet {
		return p
	}

	p.bar = progressbar.NewOptions(100,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprint(p.out, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	return p
}

// Update moves the bar to percent and shows status.
func (p *JobProgress) Update(status string, percent int) {
	if p.bar == nil {
		return
	}
	p.bar.Describe(status)
	_ = p.bar.Set(min(max(percent, 0), 100))
}

func (p *JobProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

func (p *JobProgress) Duration() time.Duration {
	return time.Since(p.started)
}

// ByteProgress counts bytes written through it.
type ByteProgress struct {
	bar *progressbar.ProgressBar
	out io.Writer
}

// NewByteProgress shows a spinner when total is unknown (-1).
func NewByteProgress(total int64, description string, quiet bool) *ByteProgress {
	p := &ByteProgress{out: os.Stderr}
	if quiet {
		return p
	}

	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprint(p.out, "\n")
		}),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[cyan]=[reset]",
			SaucerHead:    "[cyan]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	return p
}

func (p *ByteProgress) Write(b []byte) (int, error) {
	if p.bar != nil {
		_ = p.bar.Add(len(b))
	}
	return len(b), nil
}

func (p *ByteProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
