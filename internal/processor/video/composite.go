package video

import (
	"fmt"
	"strings"
)

const (
	MinOverlayScale     = 0.1
	MaxOverlayScale     = 0.5
	DefaultOverlayScale = 0.3
	DefaultMarginPx     = 20
	DefaultStackSize    = 720
)

type OverlayParams struct {
	Main     string
	Reaction string
	Output   string
	Position Position
	// Scale is the reaction width as a fraction of the main width.
	Scale    float64
	MarginPx int
	MixAudio bool
	// ReactionWindow trims the reaction input before compositing.
	ReactionWindow   Window
	MainHasAudio     bool
	ReactionHasAudio bool
	Encoding         Encoding
}

// OverlayArgs composites the reaction as a picture-in-picture over the main
// video. Stages run in a fixed order: scale, overlay, then the optional mix.
func OverlayArgs(p OverlayParams) ([]string, error) {
	if p.Main == "" || p.Reaction == "" || p.Output == "" {
		return nil, ErrNoInputs
	}
	if err := p.ReactionWindow.Validate(); err != nil {
		return nil, err
	}

	scale := p.Scale
	if scale == 0 {
		scale = DefaultOverlayScale
	}
	scale = clamp(scale, MinOverlayScale, MaxOverlayScale)
	margin := p.MarginPx
	if margin < 0 {
		margin = 0
	}

	var graph []string
	reaction := "[1:v]"
	if trim := p.ReactionWindow.filter("trim"); trim != "" {
		graph = append(graph, "[1:v]"+trim+",setpts=PTS-STARTPTS[rt]")
		reaction = "[rt]"
	}
	graph = append(graph, fmt.Sprintf("%s[0:v]scale2ref=w=main_w*%.2f:h=ow/mdar[pip][base]", reaction, scale))

	x, y := overlayPosition(p.Position, margin)
	graph = append(graph, fmt.Sprintf("[base][pip]overlay=x=%s:y=%s:eof_action=pass[v]", x, y))

	audioMap, mix := mixAudio(p.MixAudio, p.MainHasAudio, p.ReactionHasAudio, p.ReactionWindow)
	if mix != "" {
		graph = append(graph, mix)
	}

	return compositeArgs(p.Main, p.Reaction, strings.Join(graph, ";"), audioMap, p.Encoding, p.Output), nil
}

type Layout string

const (
	LayoutHorizontal Layout = "horizontal"
	LayoutVertical   Layout = "vertical"
)

type SideBySideParams struct {
	Left   string
	Right  string
	Output string
	Layout Layout
	// Size is the shared height (horizontal) or width (vertical) in pixels.
	Size          int
	MixAudio      bool
	RightWindow   Window
	LeftHasAudio  bool
	RightHasAudio bool
	Encoding      Encoding
}

// SideBySideArgs stacks the two inputs. The right input is the reaction and
// is the only one that can be trimmed.
func SideBySideArgs(p SideBySideParams) ([]string, error) {
	if p.Left == "" || p.Right == "" || p.Output == "" {
		return nil, ErrNoInputs
	}
	if err := p.RightWindow.Validate(); err != nil {
		return nil, err
	}

	size := p.Size
	if size <= 0 {
		size = DefaultStackSize
	}

	scale, stack := fmt.Sprintf("scale=-2:%d", size), "hstack"
	if p.Layout == LayoutVertical {
		scale, stack = fmt.Sprintf("scale=%d:-2", size), "vstack"
	}

	right := scale + ",setsar=1"
	if trim := p.RightWindow.filter("trim"); trim != "" {
		right = trim + ",setpts=PTS-STARTPTS," + right
	}

	graph := []string{
		"[0:v]" + scale + ",setsar=1[l]",
		"[1:v]" + right + "[r]",
		fmt.Sprintf("[l][r]%s=inputs=2:shortest=1[v]", stack),
	}

	audioMap, mix := mixAudio(p.MixAudio, p.LeftHasAudio, p.RightHasAudio, p.RightWindow)
	if mix != "" {
		graph = append(graph, mix)
	}

	return compositeArgs(p.Left, p.Right, strings.Join(graph, ";"), audioMap, p.Encoding, p.Output), nil
}

// mixAudio picks the audio mapping. It returns the -map value (empty for no
// audio) and an amix stage when both inputs are mixed.
func mixAudio(mix, mainHasAudio, secondHasAudio bool, secondWindow Window) (string, string) {
	switch {
	case mix && mainHasAudio && secondHasAudio:
		second := "[1:a]"
		stage := ""
		if trim := secondWindow.filter("atrim"); trim != "" {
			stage = "[1:a]" + trim + ",asetpts=PTS-STARTPTS[ra];"
			second = "[ra]"
		}
		return "[a]", stage + "[0:a]" + second + "amix=inputs=2:duration=first:dropout_transition=0[a]"
	case mainHasAudio:
		return "0:a:0", ""
	default:
		return "", ""
	}
}

func compositeArgs(first, second, graph, audioMap string, enc Encoding, output string) []string {
	args := newArgs()
	args = append(args, "-i", first, "-i", second, "-filter_complex", graph, "-map", "[v]")
	if audioMap != "" {
		args = append(args, "-map", audioMap)
		args = append(args, enc.videoArgs()...)
		args = append(args, enc.audioArgs()...)
	} else {
		args = append(args, enc.videoArgs()...)
		args = append(args, "-an")
	}
	return append(args, "-movflags", "+faststart", output)
}
