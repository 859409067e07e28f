package video

import (
	"fmt"
	"strings"
)

var baseArgs = []string{"-hide_banner", "-nostdin", "-y"}

func newArgs() []string {
	return append([]string(nil), baseArgs...)
}

type TrimParams struct {
	Input    string
	Output   string
	Window   Window
	Canvas   Canvas
	HasAudio bool
	Encoding Encoding
}

// TrimArgs re-encodes one export clip onto the shared canvas so the results
// can be joined with a stream-copy concat. Sources without audio get a silent
// stereo track.
func TrimArgs(p TrimParams) ([]string, error) {
	if p.Input == "" || p.Output == "" {
		return nil, ErrNoInputs
	}
	if err := p.Window.Validate(); err != nil {
		return nil, err
	}
	canvas := p.Canvas
	if canvas.Width <= 0 || canvas.Height <= 0 {
		canvas, _ = CanvasFor(DefaultResolution)
	}
	if canvas.FPS <= 0 {
		canvas.FPS = 30
	}

	args := newArgs()
	if p.Window.Enabled() && p.Window.StartMs > 0 {
		args = append(args, "-ss", FormatSeconds(p.Window.StartMs))
	}
	args = append(args, "-i", p.Input)
	if !p.HasAudio {
		args = append(args, "-f", "lavfi", "-i", "anullsrc=channel_layout=stereo:sample_rate=44100")
	}
	if p.Window.Enabled() {
		args = append(args, "-t", FormatSeconds(p.Window.DurationMs()))
	}

	vf := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%d",
		canvas.Width, canvas.Height, canvas.Width, canvas.Height, canvas.FPS,
	)

	args = append(args, "-map", "0:v:0")
	if p.HasAudio {
		args = append(args, "-map", "0:a:0")
	} else {
		args = append(args, "-map", "1:a:0", "-shortest")
	}
	args = append(args, "-vf", vf)
	args = append(args, p.Encoding.videoArgs()...)
	args = append(args, p.Encoding.audioArgs()...)
	args = append(args, "-ar", "44100", "-ac", "2", "-movflags", "+faststart", p.Output)
	return args, nil
}

// ConcatList renders a concat demuxer list file.
func ConcatList(paths []string) string {
	var b strings.Builder
	for _, p := range paths {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(p, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

// ConcatArgs joins clips listed in listPath without re-encoding. Every clip
// must share codecs and canvas, which TrimArgs guarantees.
func ConcatArgs(listPath, output string) []string {
	args := newArgs()
	return append(args,
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-movflags", "+faststart",
		output,
	)
}

type WatermarkParams struct {
	Input    string
	Output   string
	Text     string
	Position Position
	Opacity  float64
	FontSize int
	Encoding Encoding
}

const (
	DefaultWatermarkOpacity  = 0.7
	DefaultWatermarkFontSize = 36
)

func WatermarkArgs(p WatermarkParams) ([]string, error) {
	if p.Input == "" || p.Output == "" {
		return nil, ErrNoInputs
	}
	if strings.TrimSpace(p.Text) == "" {
		return nil, fmt.Errorf("video: watermark text is empty")
	}

	opacity := p.Opacity
	if opacity <= 0 {
		opacity = DefaultWatermarkOpacity
	}
	opacity = clamp(opacity, 0.1, 1.0)

	fontSize := p.FontSize
	if fontSize <= 0 {
		fontSize = DefaultWatermarkFontSize
	}

	x, y := textPosition(p.Position, DefaultPadding)
	drawtext := fmt.Sprintf(
		"drawtext=text='%s':fontsize=%d:fontcolor=white@%.2f:x=%s:y=%s:shadowcolor=black@0.5:shadowx=2:shadowy=2",
		escapeFFmpegText(p.Text), fontSize, opacity, x, y,
	)

	args := newArgs()
	args = append(args, "-i", p.Input, "-vf", drawtext)
	args = append(args, p.Encoding.videoArgs()...)
	args = append(args, "-c:a", "copy", "-movflags", "+faststart", p.Output)
	return args, nil
}

// escapeFFmpegText escapes text for a quoted drawtext value so user input
// cannot break out into other filter options.
func escapeFFmpegText(text string) string {
	escaped := strings.ReplaceAll(text, "\\", "\\\\\\\\")
	escaped = strings.ReplaceAll(escaped, "'", "'\\''")
	escaped = strings.ReplaceAll(escaped, ":", "\\:")
	// drawtext expands %{...} sequences
	escaped = strings.ReplaceAll(escaped, "%", "\\%")
	return escaped
}
