package video

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ms(v int64) *int64 { return &v }

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0.0"},
		{1000, "1.0"},
		{4000, "4.0"},
		{1500, "1.5"},
		{1234, "1.234"},
		{1050, "1.05"},
		{61001, "61.001"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatSeconds(tt.ms))
		})
	}
}

func TestWindow(t *testing.T) {
	t.Run("no end disables trim", func(t *testing.T) {
		w := Window{StartMs: 1000}
		assert.False(t, w.Enabled())
		assert.Empty(t, w.filter("trim"))
		assert.NoError(t, w.Validate())
	})

	t.Run("start and end", func(t *testing.T) {
		w := Window{StartMs: 1000, EndMs: ms(5000)}
		assert.True(t, w.Enabled())
		assert.Equal(t, int64(4000), w.DurationMs())
		assert.Equal(t, "trim=start=1.0:duration=4.0", w.filter("trim"))
		assert.Equal(t, "atrim=start=1.0:duration=4.0", w.filter("atrim"))
	})

	t.Run("end before start", func(t *testing.T) {
		w := Window{StartMs: 5000, EndMs: ms(5000)}
		assert.True(t, errors.Is(w.Validate(), ErrInvalidWindow))
	})

	t.Run("negative start", func(t *testing.T) {
		w := Window{StartMs: -1}
		assert.True(t, errors.Is(w.Validate(), ErrInvalidWindow))
	})
}

func TestTextPosition(t *testing.T) {
	tests := []struct {
		position Position
		wantX    string
		wantY    string
	}{
		{PositionTopLeft, "10", "10"},
		{PositionTopRight, "w-tw-10", "10"},
		{PositionBottomLeft, "10", "h-th-10"},
		{PositionBottomRight, "w-tw-10", "h-th-10"},
		{PositionCenter, "(w-tw)/2", "(h-th)/2"},
		{"unknown", "w-tw-10", "h-th-10"},
	}

	for _, tt := range tests {
		t.Run(string(tt.position), func(t *testing.T) {
			x, y := textPosition(tt.position, DefaultPadding)
			assert.Equal(t, tt.wantX, x)
			assert.Equal(t, tt.wantY, y)
		})
	}
}

func TestOverlayPosition(t *testing.T) {
	x, y := overlayPosition(PositionTopRight, 24)
	assert.Equal(t, "main_w-overlay_w-24", x)
	assert.Equal(t, "24", y)
}

func TestCanvasFor(t *testing.T) {
	c, ok := CanvasFor("1080p")
	require.True(t, ok)
	assert.Equal(t, Canvas{Width: 1920, Height: 1080, FPS: 30}, c)

	_, ok = CanvasFor("8k")
	assert.False(t, ok)
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		".mp4":  "video/mp4",
		"MP4":   "video/mp4",
		".webm": "video/webm",
		".gif":  "image/gif",
		".m4a":  "audio/mp4",
		".xyz":  "application/octet-stream",
	}
	for ext, want := range tests {
		assert.Equal(t, want, ContentType(ext), ext)
	}
}

func TestParseProbe(t *testing.T) {
	data := []byte(`{
		"streams": [
			{"codec_type":"video","codec_name":"h264","width":1920,"height":1080,"r_frame_rate":"30000/1001"},
			{"codec_type":"audio","codec_name":"aac"}
		],
		"format": {"duration":"12.500000","size":"2048","bit_rate":"1311","format_name":"mov,mp4,m4a"}
	}`)

	m, err := ParseProbe(data)
	require.NoError(t, err)
	assert.Equal(t, 12.5, m.Duration)
	assert.Equal(t, 1920, m.Width)
	assert.Equal(t, 1080, m.Height)
	assert.Equal(t, "h264", m.VideoCodec)
	assert.Equal(t, "aac", m.AudioCodec)
	assert.True(t, m.HasAudio)
	assert.Equal(t, int64(2048), m.FileSize)
	assert.Equal(t, "mov", m.Container)
	assert.InDelta(t, 29.97, m.FrameRate, 0.01)
}

func TestParseProbe_NoAudio(t *testing.T) {
	m, err := ParseProbe([]byte(`{"streams":[{"codec_type":"video","codec_name":"vp9","width":640,"height":360,"r_frame_rate":"25/1"}],"format":{"duration":"3.0"}}`))
	require.NoError(t, err)
	assert.False(t, m.HasAudio)
	assert.Equal(t, 25.0, m.FrameRate)
}

func TestParseProbe_Invalid(t *testing.T) {
	_, err := ParseProbe([]byte("not json"))
	assert.ErrorIs(t, err, ErrInvalidProbe)

	_, err = ParseProbe([]byte(`{"streams":[{"codec_type":"audio"}],"format":{}}`))
	assert.ErrorIs(t, err, ErrInvalidProbe)
}

func TestProbeArgs(t *testing.T) {
	args := ProbeArgs("/tmp/in.mp4")
	assert.Equal(t, "/tmp/in.mp4", args[len(args)-1])
	assert.Contains(t, args, "-show_streams")
}
