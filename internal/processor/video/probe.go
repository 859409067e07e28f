package video

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Metadata is the subset of ffprobe output the pipelines care about.
type Metadata struct {
	Duration   float64 `json:"duration"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Bitrate    int64   `json:"bitrate"`
	VideoCodec string  `json:"video_codec"`
	AudioCodec string  `json:"audio_codec"`
	FrameRate  float64 `json:"frame_rate"`
	FileSize   int64   `json:"file_size"`
	Container  string  `json:"container"`
	HasAudio   bool    `json:"has_audio"`
	HasVideo   bool    `json:"has_video"`
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
		BitRate  string `json:"bit_rate"`
		Name     string `json:"format_name"`
	} `json:"format"`
}

func ProbeArgs(path string) []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
}

func ParseProbe(data []byte) (*Metadata, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProbe, err)
	}

	metadata := &Metadata{}

	if probe.Format.Duration != "" {
		if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
			metadata.Duration = d
		}
	}
	if probe.Format.Size != "" {
		if s, err := strconv.ParseInt(probe.Format.Size, 10, 64); err == nil {
			metadata.FileSize = s
		}
	}
	if probe.Format.BitRate != "" {
		if b, err := strconv.ParseInt(probe.Format.BitRate, 10, 64); err == nil {
			metadata.Bitrate = b
		}
	}
	metadata.Container = strings.Split(probe.Format.Name, ",")[0]

	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			if metadata.HasVideo {
				continue
			}
			metadata.HasVideo = true
			metadata.VideoCodec = stream.CodecName
			metadata.Width = stream.Width
			metadata.Height = stream.Height
			metadata.FrameRate = parseFrameRate(stream.RFrameRate)
		case "audio":
			if metadata.HasAudio {
				continue
			}
			metadata.HasAudio = true
			metadata.AudioCodec = stream.CodecName
		}
	}

	if !metadata.HasVideo {
		return nil, fmt.Errorf("%w: no video stream", ErrInvalidProbe)
	}

	return metadata, nil
}

// parseFrameRate reads "30/1" or "30000/1001".
func parseFrameRate(s string) float64 {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return 0
	}
	num, _ := strconv.ParseFloat(parts[0], 64)
	den, _ := strconv.ParseFloat(parts[1], 64)
	if den <= 0 {
		return 0
	}
	return num / den
}
