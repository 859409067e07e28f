package video

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidWindow = errors.New("video: trim end must be after start")
	ErrNoInputs      = errors.New("video: at least one input is required")
	ErrNoTargets     = errors.New("video: at least one stream target is required")
	ErrInvalidProbe  = errors.New("video: invalid ffprobe output")
)

// Position names a corner (or the center) of the frame.
type Position string

const (
	PositionTopLeft     Position = "top-left"
	PositionTopRight    Position = "top-right"
	PositionBottomLeft  Position = "bottom-left"
	PositionBottomRight Position = "bottom-right"
	PositionCenter      Position = "center"
)

const DefaultPadding = 10

// positionTable holds x/y expressions with placeholders: {W}/{H} for the
// container size, {w}/{h} for the placed element, {pad} for the margin.
var positionTable = map[Position][2]string{
	PositionTopLeft:     {"{pad}", "{pad}"},
	PositionTopRight:    {"{W}-{w}-{pad}", "{pad}"},
	PositionBottomLeft:  {"{pad}", "{H}-{h}-{pad}"},
	PositionBottomRight: {"{W}-{w}-{pad}", "{H}-{h}-{pad}"},
	PositionCenter:      {"({W}-{w})/2", "({H}-{h})/2"},
}

func ValidPosition(p Position) bool {
	_, ok := positionTable[p]
	return ok
}

// place resolves a position to x/y expressions. Unknown positions fall back
// to bottom-right.
func place(pos Position, pad int, containerW, elemW, containerH, elemH string) (x, y string) {
	tmpl, ok := positionTable[pos]
	if !ok {
		tmpl = positionTable[PositionBottomRight]
	}
	r := strings.NewReplacer(
		"{W}", containerW,
		"{w}", elemW,
		"{H}", containerH,
		"{h}", elemH,
		"{pad}", strconv.Itoa(pad),
	)
	return r.Replace(tmpl[0]), r.Replace(tmpl[1])
}

// textPosition places drawtext output.
func textPosition(pos Position, pad int) (x, y string) {
	return place(pos, pad, "w", "tw", "h", "th")
}

// overlayPosition places the second input of an overlay filter.
func overlayPosition(pos Position, margin int) (x, y string) {
	return place(pos, margin, "main_w", "overlay_w", "main_h", "overlay_h")
}

// Window is an optional trim window in milliseconds. A window without an end
// disables trimming entirely.
type Window struct {
	StartMs int64
	EndMs   *int64
}

func (w Window) Enabled() bool {
	return w.EndMs != nil
}

func (w Window) Validate() error {
	if w.StartMs < 0 {
		return fmt.Errorf("%w: start %dms is negative", ErrInvalidWindow, w.StartMs)
	}
	if w.EndMs != nil && *w.EndMs <= w.StartMs {
		return fmt.Errorf("%w: end %dms <= start %dms", ErrInvalidWindow, *w.EndMs, w.StartMs)
	}
	return nil
}

func (w Window) DurationMs() int64 {
	if w.EndMs == nil {
		return 0
	}
	return *w.EndMs - w.StartMs
}

// filter renders the trim stage for name ("trim" or "atrim"), or "" when the
// window is disabled.
func (w Window) filter(name string) string {
	if !w.Enabled() {
		return ""
	}
	return fmt.Sprintf("%s=start=%s:duration=%s", name, FormatSeconds(w.StartMs), FormatSeconds(w.DurationMs()))
}

// FormatSeconds renders milliseconds as seconds with at least one decimal:
// 1000 -> "1.0", 1500 -> "1.5", 1234 -> "1.234".
func FormatSeconds(ms int64) string {
	whole, frac := ms/1000, ms%1000
	if frac == 0 {
		return fmt.Sprintf("%d.0", whole)
	}
	return strings.TrimRight(fmt.Sprintf("%d.%03d", whole, frac), "0")
}

// Encoding holds the x264/AAC settings shared by rendering builders.
type Encoding struct {
	Preset       string
	CRF          int
	AudioBitrate string
}

func DefaultEncoding() Encoding {
	return Encoding{
		Preset:       "veryfast",
		CRF:          23,
		AudioBitrate: "128k",
	}
}

func (e Encoding) withDefaults() Encoding {
	d := DefaultEncoding()
	if e.Preset == "" {
		e.Preset = d.Preset
	}
	if e.CRF <= 0 || e.CRF > 51 {
		e.CRF = d.CRF
	}
	if e.AudioBitrate == "" {
		e.AudioBitrate = d.AudioBitrate
	}
	return e
}

func (e Encoding) videoArgs() []string {
	e = e.withDefaults()
	return []string{
		"-c:v", "libx264",
		"-preset", e.Preset,
		"-crf", strconv.Itoa(e.CRF),
		"-pix_fmt", "yuv420p",
	}
}

func (e Encoding) audioArgs() []string {
	e = e.withDefaults()
	return []string{"-c:a", "aac", "-b:a", e.AudioBitrate}
}

// Canvas is the frame every export clip is normalized to before concat.
type Canvas struct {
	Width  int
	Height int
	FPS    int
}

var canvases = map[string]Canvas{
	"720p":     {Width: 1280, Height: 720, FPS: 30},
	"1080p":    {Width: 1920, Height: 1080, FPS: 30},
	"vertical": {Width: 1080, Height: 1920, FPS: 30},
	"square":   {Width: 1080, Height: 1080, FPS: 30},
}

const DefaultResolution = "720p"

func CanvasFor(resolution string) (Canvas, bool) {
	c, ok := canvases[resolution]
	return c, ok
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func ContentType(ext string) string {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "mp4", "m4v":
		return "video/mp4"
	case "webm":
		return "video/webm"
	case "mkv":
		return "video/x-matroska"
	case "mov":
		return "video/quicktime"
	case "gif":
		return "image/gif"
	case "m4a":
		return "audio/mp4"
	case "mp3":
		return "audio/mpeg"
	case "opus", "ogg":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}
