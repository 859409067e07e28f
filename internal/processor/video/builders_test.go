package video

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilders_Deterministic(t *testing.T) {
	window := Window{StartMs: 1500, EndMs: ms(4000)}
	loop := LoopParams{Input: "in.mp4", Output: "out.mp4", Window: window, Count: 3, Width: 640}

	builders := map[string]func() ([]string, error){
		"trim": func() ([]string, error) {
			return TrimArgs(TrimParams{Input: "in.mp4", Output: "out.mp4", Window: window, Canvas: Canvas{Width: 1280, Height: 720, FPS: 30}})
		},
		"watermark": func() ([]string, error) {
			return WatermarkArgs(WatermarkParams{Input: "in.mp4", Output: "out.mp4", Text: "it's 100%", Position: PositionCenter, Opacity: 0.5})
		},
		"loop":      func() ([]string, error) { return LoopArgs(loop) },
		"boomerang": func() ([]string, error) { return BoomerangArgs(loop) },
		"gif": func() ([]string, error) {
			return GIFArgs(LoopParams{Input: "in.mp4", Output: "out.gif", Window: window, FPS: 12, Width: 320})
		},
		"overlay": func() ([]string, error) {
			return OverlayArgs(OverlayParams{
				Main: "main.mp4", Reaction: "cam.mp4", Output: "out.mp4",
				Position: PositionTopRight, Scale: 0.3, MarginPx: 12,
				MixAudio: true, MainHasAudio: true, ReactionHasAudio: true,
				ReactionWindow: window,
			})
		},
		"side-by-side": func() ([]string, error) {
			return SideBySideArgs(SideBySideParams{
				Left: "a.mp4", Right: "b.mp4", Output: "out.mp4",
				Layout: LayoutVertical, Size: 1080, RightWindow: window,
				MixAudio: true, LeftHasAudio: true, RightHasAudio: true,
			})
		},
		"restream": func() ([]string, error) {
			return RestreamArgs(RestreamParams{
				Source:  "in.mp4",
				Loop:    true,
				Targets: []RestreamTarget{{URL: "rtmp://a/live", Key: "k1"}, {URL: "rtmp://b/app", Key: "k2"}},
			})
		},
	}

	for name, build := range builders {
		t.Run(name, func(t *testing.T) {
			first, err := build()
			require.NoError(t, err)
			second, err := build()
			require.NoError(t, err)
			assert.Equal(t, first, second)
		})
	}
}
