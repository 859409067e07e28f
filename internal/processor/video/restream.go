package video

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultVideoBitrateKbps = 4500
	DefaultAudioBitrateKbps = 160
	DefaultKeyframeSeconds  = 2
	restreamFPS             = 30
)

type RestreamTarget struct {
	URL string
	Key string
}

// Endpoint is the full ingest URL including the stream key.
func (t RestreamTarget) Endpoint() string {
	if t.Key == "" {
		return t.URL
	}
	return strings.TrimRight(t.URL, "/") + "/" + t.Key
}

// Redacted is safe to persist or log.
func (t RestreamTarget) Redacted() string {
	return strings.TrimRight(t.URL, "/")
}

type RestreamParams struct {
	Source           string
	Targets          []RestreamTarget
	VideoBitrateKbps int
	AudioBitrateKbps int
	Preset           string
	// Loop repeats a file source forever instead of ending at EOF.
	Loop bool
}

func RestreamArgs(p RestreamParams) ([]string, error) {
	if p.Source == "" {
		return nil, ErrNoInputs
	}
	if len(p.Targets) == 0 {
		return nil, ErrNoTargets
	}

	vb := p.VideoBitrateKbps
	if vb <= 0 {
		vb = DefaultVideoBitrateKbps
	}
	ab := p.AudioBitrateKbps
	if ab <= 0 {
		ab = DefaultAudioBitrateKbps
	}
	preset := p.Preset
	if preset == "" {
		preset = "veryfast"
	}
	gop := strconv.Itoa(restreamFPS * DefaultKeyframeSeconds)

	args := newArgs()
	args = append(args, "-re")
	if p.Loop {
		args = append(args, "-stream_loop", "-1")
	}
	args = append(args,
		"-i", p.Source,
		"-map", "0:v:0",
		"-map", "0:a:0?",
		"-c:v", "libx264",
		"-preset", preset,
		"-b:v", fmt.Sprintf("%dk", vb),
		"-maxrate", fmt.Sprintf("%dk", vb),
		"-bufsize", fmt.Sprintf("%dk", vb*2),
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(restreamFPS),
		"-g", gop,
		"-keyint_min", gop,
		"-sc_threshold", "0",
		"-c:a", "aac",
		"-b:a", fmt.Sprintf("%dk", ab),
		"-ar", "44100",
	)

	if len(p.Targets) == 1 {
		return append(args, "-f", "flv", p.Targets[0].Endpoint()), nil
	}

	outputs := make([]string, len(p.Targets))
	for i, t := range p.Targets {
		outputs[i] = "[f=flv:onfail=ignore]" + t.Endpoint()
	}
	return append(args, "-flags", "+global_header", "-f", "tee", strings.Join(outputs, "|")), nil
}

// RedactTargets lists target URLs without their keys.
func RedactTargets(targets []RestreamTarget) string {
	out := make([]string, len(targets))
	for i, t := range targets {
		out[i] = t.Redacted()
	}
	return strings.Join(out, ",")
}
