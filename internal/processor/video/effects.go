package video

import (
	"fmt"
	"strings"
)

const (
	MaxLoopCount     = 10
	DefaultGIFFPS    = 15
	DefaultGIFWidth  = 480
	loopBufferFrames = 32767
)

type LoopParams struct {
	Input  string
	Output string
	Window Window
	// Count is the total number of plays, 1..MaxLoopCount. GIFs loop
	// forever and ignore it.
	Count int
	// Width scales the output keeping aspect ratio. Zero keeps the source.
	Width int
	// FPS only applies to GIFs.
	FPS      int
	Encoding Encoding
}

func (p LoopParams) validate() error {
	if p.Input == "" || p.Output == "" {
		return ErrNoInputs
	}
	if p.Width < 0 {
		return fmt.Errorf("video: negative width %d", p.Width)
	}
	return p.Window.Validate()
}

func (p LoopParams) validateCount() error {
	if err := p.validate(); err != nil {
		return err
	}
	if p.Count < 1 || p.Count > MaxLoopCount {
		return fmt.Errorf("video: loop count %d out of range 1..%d", p.Count, MaxLoopCount)
	}
	return nil
}

// headStages returns the trim and scale stages shared by every loop mode.
func (p LoopParams) headStages() []string {
	var stages []string
	if trim := p.Window.filter("trim"); trim != "" {
		stages = append(stages, trim, "setpts=PTS-STARTPTS")
	}
	if p.Width > 0 {
		stages = append(stages, fmt.Sprintf("scale=%d:-2", p.Width))
	}
	return stages
}

func loopStages(count int) []string {
	if count <= 1 {
		return nil
	}
	return []string{
		fmt.Sprintf("loop=loop=%d:size=%d:start=0", count-1, loopBufferFrames),
		"setpts=N/FRAME_RATE/TB",
	}
}

func chain(stages []string) string {
	if len(stages) == 0 {
		return "null"
	}
	return strings.Join(stages, ",")
}

func (p LoopParams) renderArgs(graph string) []string {
	args := newArgs()
	args = append(args, "-i", p.Input, "-filter_complex", graph, "-map", "[v]", "-an")
	args = append(args, p.Encoding.videoArgs()...)
	return append(args, "-movflags", "+faststart", p.Output)
}

// LoopArgs repeats a clip Count times. Audio is dropped.
func LoopArgs(p LoopParams) ([]string, error) {
	if err := p.validateCount(); err != nil {
		return nil, err
	}
	stages := append(p.headStages(), loopStages(p.Count)...)
	graph := "[0:v]" + chain(stages) + "[v]"
	return p.renderArgs(graph), nil
}

// BoomerangArgs plays the clip forward then backward, Count times.
func BoomerangArgs(p LoopParams) ([]string, error) {
	if err := p.validateCount(); err != nil {
		return nil, err
	}
	head := append(p.headStages(), "split[fwd][rev]")
	graph := "[0:v]" + strings.Join(head, ",") + ";[rev]reverse[bwd];[fwd][bwd]concat=n=2:v=1:a=0"
	if tail := loopStages(p.Count); len(tail) > 0 {
		graph += "[bo];[bo]" + strings.Join(tail, ",")
	}
	graph += "[v]"
	return p.renderArgs(graph), nil
}

// GIFArgs renders an infinitely looping GIF with a generated palette.
func GIFArgs(p LoopParams) ([]string, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	fps := p.FPS
	if fps <= 0 {
		fps = DefaultGIFFPS
	}
	width := p.Width
	if width <= 0 {
		width = DefaultGIFWidth
	}

	var stages []string
	if trim := p.Window.filter("trim"); trim != "" {
		stages = append(stages, trim, "setpts=PTS-STARTPTS")
	}
	stages = append(stages,
		fmt.Sprintf("fps=%d", fps),
		fmt.Sprintf("scale=%d:-1:flags=lanczos", width),
		"split[g0][g1]",
	)
	graph := "[0:v]" + strings.Join(stages, ",") + ";[g0]palettegen[pal];[g1][pal]paletteuse[v]"

	args := newArgs()
	return append(args,
		"-i", p.Input,
		"-filter_complex", graph,
		"-map", "[v]",
		"-loop", "0",
		p.Output,
	), nil
}
