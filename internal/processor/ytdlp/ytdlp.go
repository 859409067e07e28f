// Package ytdlp builds yt-dlp invocations and recognizes supported platforms.
package ytdlp

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	ErrInvalidURL  = errors.New("ytdlp: invalid url")
	ErrEmptyOutput = errors.New("ytdlp: no output path reported")
)

type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformUnknown   Platform = "unknown"
)

var platformHosts = []struct {
	platform Platform
	hosts    []string
}{
	{PlatformYouTube, []string{"youtube.com", "youtu.be", "youtube-nocookie.com"}},
	{PlatformTikTok, []string{"tiktok.com"}},
	{PlatformInstagram, []string{"instagram.com"}},
	{PlatformTwitter, []string{"twitter.com", "x.com"}},
}

// DetectPlatform matches the URL host (or any subdomain of it) against the
// known platforms.
func DetectPlatform(rawURL string) Platform {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return PlatformUnknown
	}
	host := strings.ToLower(u.Hostname())
	for _, entry := range platformHosts {
		for _, h := range entry.hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return entry.platform
			}
		}
	}
	return PlatformUnknown
}

// ExtractVideoID returns the platform's id for the video, or "".
func ExtractVideoID(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	switch DetectPlatform(rawURL) {
	case PlatformYouTube:
		if strings.EqualFold(u.Hostname(), "youtu.be") {
			return segments[0]
		}
		if v := u.Query().Get("v"); v != "" {
			return v
		}
		if len(segments) >= 2 && (segments[0] == "shorts" || segments[0] == "embed" || segments[0] == "live") {
			return segments[1]
		}
	case PlatformTikTok:
		for i, s := range segments {
			if s == "video" && i+1 < len(segments) {
				return segments[i+1]
			}
		}
	case PlatformInstagram:
		if len(segments) >= 2 && (segments[0] == "p" || segments[0] == "reel" || segments[0] == "tv") {
			return segments[1]
		}
	case PlatformTwitter:
		for i, s := range segments {
			if s == "status" && i+1 < len(segments) {
				return segments[i+1]
			}
		}
	}
	return ""
}

type Format string

const (
	FormatVideo Format = "video"
	FormatAudio Format = "audio"
)

type DownloadParams struct {
	URL        string
	OutputDir  string
	OutputName string
	Format     Format
	// MaxHeight caps the video resolution. Zero means best available.
	MaxHeight int
}

// OutputTemplate is the -o value; yt-dlp substitutes the extension.
func (p DownloadParams) OutputTemplate() string {
	name := p.OutputName
	if name == "" {
		name = "download"
	}
	return filepath.Join(p.OutputDir, name+".%(ext)s")
}

func DownloadArgs(p DownloadParams) ([]string, error) {
	u, err := url.Parse(strings.TrimSpace(p.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, p.URL)
	}
	if p.OutputDir == "" {
		return nil, fmt.Errorf("ytdlp: output dir is required")
	}

	args := []string{
		"--no-playlist",
		"--no-progress",
		"--no-warnings",
		"--restrict-filenames",
		"--no-part",
	}

	switch p.Format {
	case FormatAudio:
		args = append(args, "-f", "bestaudio/best", "-x", "--audio-format", "m4a")
	default:
		selector := "bv*+ba/b"
		if p.MaxHeight > 0 {
			h := strconv.Itoa(p.MaxHeight)
			selector = "bv*[height<=" + h + "]+ba/b[height<=" + h + "]"
		}
		args = append(args, "-f", selector, "--merge-output-format", "mp4")
	}

	return append(args,
		"-o", p.OutputTemplate(),
		"--print", "after_move:filepath",
		u.String(),
	), nil
}

// OutputPath reads the final file path printed by --print after_move:filepath.
func OutputPath(stdout []byte) (string, error) {
	lines := strings.Split(strings.TrimSpace(string(stdout)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line, nil
		}
	}
	return "", ErrEmptyOutput
}
