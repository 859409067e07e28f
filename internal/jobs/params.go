package jobs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/abdul-hamid-achik/clip.cheap/internal/apperror"
	"github.com/abdul-hamid-achik/clip.cheap/internal/db"
	"github.com/abdul-hamid-achik/clip.cheap/internal/processor/video"
	"github.com/abdul-hamid-achik/clip.cheap/internal/processor/ytdlp"
	"github.com/abdul-hamid-achik/clip.cheap/internal/storage"
	"github.com/google/uuid"
)

const (
	MaxExportClips     = 20
	MaxWatermarkLength = 100
	MaxStreamTargets   = 3
	MaxDownloadHeight  = 2160
)

// Params is a kind's request payload. Normalize fills defaults and must run
// before Validate.
type Params interface {
	Kind() db.JobKind
	Normalize()
	Validate(ownerID uuid.UUID) error
}

// DecodeParams strictly decodes raw into the params type for kind.
func DecodeParams(kind db.JobKind, raw []byte) (Params, error) {
	var p Params
	switch kind {
	case db.JobKindDownload:
		p = &DownloadParams{}
	case db.JobKindExport:
		p = &ExportParams{}
	case db.JobKindLoop:
		p = &LoopParams{}
	case db.JobKindReaction:
		p = &ReactionParams{}
	case db.JobKindStream:
		p = &StreamParams{}
	default:
		return nil, apperror.Validation("unknown job kind %q", kind)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperror.Validation("request body is required")
		}
		return nil, apperror.Validation("invalid request body: %v", err)
	}
	return p, nil
}

func checkOwnedKey(field, key string, ownerID uuid.UUID) error {
	if key == "" {
		return apperror.Validation("%s is required", field)
	}
	if !storage.OwnedBy(key, ownerID.String()) {
		return apperror.Validation("%s must reference one of your uploads", field)
	}
	return nil
}

func checkHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperror.Validation("%s must be an http(s) URL", field)
	}
	return nil
}

func checkWindow(field string, startMs int64, endMs *int64) error {
	if err := (video.Window{StartMs: startMs, EndMs: endMs}).Validate(); err != nil {
		return apperror.Validation("%s: endMs must be greater than startMs and startMs must not be negative", field)
	}
	return nil
}

// checkBoundedWindow is checkWindow for inputs that are trimmed only when an
// end is given, so a start without an end would be dropped.
func checkBoundedWindow(field string, startMs int64, endMs *int64) error {
	if startMs > 0 && endMs == nil {
		return apperror.Validation("%s: endMs is required when startMs is set", field)
	}
	return checkWindow(field, startMs, endMs)
}

type DownloadParams struct {
	URL       string       `json:"url"`
	Format    ytdlp.Format `json:"format,omitempty"`
	MaxHeight int          `json:"maxHeight,omitempty"`
}

func (p *DownloadParams) Kind() db.JobKind { return db.JobKindDownload }

func (p *DownloadParams) Normalize() {
	p.URL = strings.TrimSpace(p.URL)
	if p.Format == "" {
		p.Format = ytdlp.FormatVideo
	}
}

func (p *DownloadParams) Validate(uuid.UUID) error {
	if p.URL == "" {
		return apperror.Validation("url is required")
	}
	if err := checkHTTPURL("url", p.URL); err != nil {
		return err
	}
	if p.Format != ytdlp.FormatVideo && p.Format != ytdlp.FormatAudio {
		return apperror.Validation("format must be video or audio")
	}
	if p.MaxHeight < 0 || p.MaxHeight > MaxDownloadHeight {
		return apperror.Validation("maxHeight must be between 0 and %d", MaxDownloadHeight)
	}
	return nil
}

type Clip struct {
	SourceKey string `json:"sourceKey,omitempty"`
	SourceURL string `json:"sourceUrl,omitempty"`
	StartMs   int64  `json:"startMs"`
	EndMs     *int64 `json:"endMs,omitempty"`
}

func (c Clip) Window() video.Window {
	return video.Window{StartMs: c.StartMs, EndMs: c.EndMs}
}

type Watermark struct {
	Text     string         `json:"text"`
	Position video.Position `json:"position,omitempty"`
	Opacity  float64        `json:"opacity,omitempty"`
}

type ExportParams struct {
	Clips      []Clip     `json:"clips"`
	Resolution string     `json:"resolution,omitempty"`
	Watermark  *Watermark `json:"watermark,omitempty"`
}

func (p *ExportParams) Kind() db.JobKind { return db.JobKindExport }

func (p *ExportParams) Normalize() {
	if p.Resolution == "" {
		p.Resolution = video.DefaultResolution
	}
	for i := range p.Clips {
		p.Clips[i].SourceKey = strings.TrimSpace(p.Clips[i].SourceKey)
		p.Clips[i].SourceURL = strings.TrimSpace(p.Clips[i].SourceURL)
	}
	if p.Watermark != nil {
		p.Watermark.Text = strings.TrimSpace(p.Watermark.Text)
		if p.Watermark.Position == "" {
			p.Watermark.Position = video.PositionBottomRight
		}
	}
}

func (p *ExportParams) Validate(ownerID uuid.UUID) error {
	if len(p.Clips) == 0 {
		return apperror.Validation("clips must contain at least one clip")
	}
	if len(p.Clips) > MaxExportClips {
		return apperror.Validation("clips may contain at most %d clips", MaxExportClips)
	}
	for i, c := range p.Clips {
		field := fmt.Sprintf("clips[%d]", i)
		switch {
		case c.SourceKey != "" && c.SourceURL != "":
			return apperror.Validation("%s: set either sourceKey or sourceUrl, not both", field)
		case c.SourceKey != "":
			if err := checkOwnedKey(field+".sourceKey", c.SourceKey, ownerID); err != nil {
				return err
			}
		case c.SourceURL != "":
			if err := checkHTTPURL(field+".sourceUrl", c.SourceURL); err != nil {
				return err
			}
		default:
			return apperror.Validation("%s: sourceKey or sourceUrl is required", field)
		}
		if err := checkBoundedWindow(field, c.StartMs, c.EndMs); err != nil {
			return err
		}
	}
	if _, ok := video.CanvasFor(p.Resolution); !ok {
		return apperror.Validation("resolution must be one of 720p, 1080p, vertical, square")
	}
	if w := p.Watermark; w != nil {
		if w.Text == "" {
			return apperror.Validation("watermark.text is required")
		}
		if len([]rune(w.Text)) > MaxWatermarkLength {
			return apperror.Validation("watermark.text must be at most %d characters", MaxWatermarkLength)
		}
		if !video.ValidPosition(w.Position) {
			return apperror.Validation("watermark.position is not a known position")
		}
		if w.Opacity < 0 || w.Opacity > 1 {
			return apperror.Validation("watermark.opacity must be between 0 and 1")
		}
	}
	return nil
}

type LoopMode string

const (
	LoopModeLoop      LoopMode = "loop"
	LoopModeBoomerang LoopMode = "boomerang"
	LoopModeGIF       LoopMode = "gif"
)

type LoopParams struct {
	SourceKey string   `json:"sourceKey"`
	StartMs   int64    `json:"startMs"`
	EndMs     *int64   `json:"endMs,omitempty"`
	Mode      LoopMode `json:"mode,omitempty"`
	Count     int      `json:"count,omitempty"`
	FPS       int      `json:"fps,omitempty"`
	Width     int      `json:"width,omitempty"`
}

func (p *LoopParams) Kind() db.JobKind { return db.JobKindLoop }

func (p *LoopParams) Normalize() {
	p.SourceKey = strings.TrimSpace(p.SourceKey)
	if p.Mode == "" {
		p.Mode = LoopModeLoop
	}
	if p.Count == 0 {
		p.Count = 3
	}
}

func (p *LoopParams) Window() video.Window {
	return video.Window{StartMs: p.StartMs, EndMs: p.EndMs}
}

func (p *LoopParams) Validate(ownerID uuid.UUID) error {
	if err := checkOwnedKey("sourceKey", p.SourceKey, ownerID); err != nil {
		return err
	}
	if err := checkWindow("window", p.StartMs, p.EndMs); err != nil {
		return err
	}
	switch p.Mode {
	case LoopModeLoop, LoopModeBoomerang, LoopModeGIF:
	default:
		return apperror.Validation("mode must be loop, boomerang or gif")
	}
	if p.Count < 1 || p.Count > video.MaxLoopCount {
		return apperror.Validation("count must be between 1 and %d", video.MaxLoopCount)
	}
	if p.FPS < 0 || p.FPS > 60 {
		return apperror.Validation("fps must be between 0 and 60")
	}
	if p.Width != 0 && (p.Width < 64 || p.Width > 1920) {
		return apperror.Validation("width must be between 64 and 1920")
	}
	return nil
}

type ReactionLayout string

const (
	ReactionLayoutPIP        ReactionLayout = "pip"
	ReactionLayoutSideBySide ReactionLayout = "side-by-side"
)

type ReactionParams struct {
	MainKey         string         `json:"mainKey"`
	ReactionKey     string         `json:"reactionKey"`
	Layout          ReactionLayout `json:"layout,omitempty"`
	Stack           video.Layout   `json:"stack,omitempty"`
	Position        video.Position `json:"position,omitempty"`
	Scale           float64        `json:"scale,omitempty"`
	MarginPx        *int           `json:"marginPx,omitempty"`
	MixAudio        *bool          `json:"mixAudio,omitempty"`
	ReactionStartMs int64          `json:"reactionStartMs"`
	ReactionEndMs   *int64         `json:"reactionEndMs,omitempty"`
}

func (p *ReactionParams) Kind() db.JobKind { return db.JobKindReaction }

func (p *ReactionParams) Normalize() {
	p.MainKey = strings.TrimSpace(p.MainKey)
	p.ReactionKey = strings.TrimSpace(p.ReactionKey)
	if p.Layout == "" {
		p.Layout = ReactionLayoutPIP
	}
	if p.Stack == "" {
		p.Stack = video.LayoutHorizontal
	}
	if p.Position == "" {
		p.Position = video.PositionBottomRight
	}
	if p.Scale == 0 {
		p.Scale = video.DefaultOverlayScale
	}
	if p.MarginPx == nil {
		m := video.DefaultMarginPx
		p.MarginPx = &m
	}
	if p.MixAudio == nil {
		mix := true
		p.MixAudio = &mix
	}
}

func (p *ReactionParams) ReactionWindow() video.Window {
	return video.Window{StartMs: p.ReactionStartMs, EndMs: p.ReactionEndMs}
}

func (p *ReactionParams) Validate(ownerID uuid.UUID) error {
	if err := checkOwnedKey("mainKey", p.MainKey, ownerID); err != nil {
		return err
	}
	if err := checkOwnedKey("reactionKey", p.ReactionKey, ownerID); err != nil {
		return err
	}
	switch p.Layout {
	case ReactionLayoutPIP, ReactionLayoutSideBySide:
	default:
		return apperror.Validation("layout must be pip or side-by-side")
	}
	if p.Stack != video.LayoutHorizontal && p.Stack != video.LayoutVertical {
		return apperror.Validation("stack must be horizontal or vertical")
	}
	if !video.ValidPosition(p.Position) {
		return apperror.Validation("position is not a known position")
	}
	if p.Scale < video.MinOverlayScale || p.Scale > video.MaxOverlayScale {
		return apperror.Validation("scale must be between %.1f and %.1f", video.MinOverlayScale, video.MaxOverlayScale)
	}
	if *p.MarginPx < 0 || *p.MarginPx > 200 {
		return apperror.Validation("marginPx must be between 0 and 200")
	}
	return checkBoundedWindow("reaction window", p.ReactionStartMs, p.ReactionEndMs)
}

type StreamTarget struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

type StreamParams struct {
	SourceURL        string         `json:"sourceUrl"`
	Targets          []StreamTarget `json:"targets"`
	VideoBitrateKbps int            `json:"videoBitrateKbps,omitempty"`
	Preset           string         `json:"preset,omitempty"`
	Loop             bool           `json:"loop,omitempty"`
}

func (p *StreamParams) Kind() db.JobKind { return db.JobKindStream }

var streamPresets = map[string]bool{
	"ultrafast": true, "superfast": true, "veryfast": true, "faster": true, "fast": true, "medium": true,
}

func (p *StreamParams) Normalize() {
	p.SourceURL = strings.TrimSpace(p.SourceURL)
	for i := range p.Targets {
		p.Targets[i].URL = strings.TrimSpace(p.Targets[i].URL)
		p.Targets[i].Key = strings.TrimSpace(p.Targets[i].Key)
	}
	if p.VideoBitrateKbps == 0 {
		p.VideoBitrateKbps = video.DefaultVideoBitrateKbps
	}
	if p.Preset == "" {
		p.Preset = "veryfast"
	}
}

func (p *StreamParams) Validate(uuid.UUID) error {
	u, err := url.Parse(p.SourceURL)
	if p.SourceURL == "" || err != nil || u.Host == "" {
		return apperror.Validation("sourceUrl must be an absolute URL")
	}
	switch u.Scheme {
	case "rtmp", "rtmps", "http", "https", "srt":
	default:
		return apperror.Validation("sourceUrl scheme must be rtmp, rtmps, http, https or srt")
	}
	if len(p.Targets) == 0 || len(p.Targets) > MaxStreamTargets {
		return apperror.Validation("targets must contain between 1 and %d entries", MaxStreamTargets)
	}
	for i, t := range p.Targets {
		tu, err := url.Parse(t.URL)
		if err != nil || (tu.Scheme != "rtmp" && tu.Scheme != "rtmps") || tu.Host == "" {
			return apperror.Validation("targets[%d].url must be an rtmp(s) URL", i)
		}
		if t.Key == "" {
			return apperror.Validation("targets[%d].key is required", i)
		}
	}
	if p.VideoBitrateKbps < 500 || p.VideoBitrateKbps > 8000 {
		return apperror.Validation("videoBitrateKbps must be between 500 and 8000")
	}
	if !streamPresets[p.Preset] {
		return apperror.Validation("preset %q is not supported", p.Preset)
	}
	return nil
}

// RestreamTargets converts targets for the argument builder.
func (p *StreamParams) RestreamTargets() []video.RestreamTarget {
	out := make([]video.RestreamTarget, len(p.Targets))
	for i, t := range p.Targets {
		out[i] = video.RestreamTarget{URL: t.URL, Key: t.Key}
	}
	return out
}
