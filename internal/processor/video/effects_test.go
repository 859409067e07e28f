package video

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopArgs(t *testing.T) {
	args, err := LoopArgs(LoopParams{
		Input:  "in.mp4",
		Output: "out.mp4",
		Window: Window{StartMs: 1000, EndMs: ms(5000)},
		Count:  3,
	})
	require.NoError(t, err)

	graph := argAfter(args, "-filter_complex")
	assert.Equal(t,
		"[0:v]trim=start=1.0:duration=4.0,setpts=PTS-STARTPTS,loop=loop=2:size=32767:start=0,setpts=N/FRAME_RATE/TB[v]",
		graph)
	assert.Contains(t, args, "-an")
	assert.Equal(t, "out.mp4", args[len(args)-1])
}

func TestLoopArgs_NoEndOmitsTrim(t *testing.T) {
	args, err := LoopArgs(LoopParams{
		Input:  "in.mp4",
		Output: "out.mp4",
		Window: Window{StartMs: 1000},
		Count:  2,
	})
	require.NoError(t, err)

	joined := strings.Join(args, " ")
	assert.NotContains(t, joined, "trim=")
	assert.NotContains(t, joined, "duration=0")
}

func TestLoopArgs_SinglePlayWithScale(t *testing.T) {
	args, err := LoopArgs(LoopParams{Input: "in", Output: "out", Count: 1, Width: 640})
	require.NoError(t, err)
	assert.Equal(t, "[0:v]scale=640:-2[v]", argAfter(args, "-filter_complex"))
}

func TestLoopArgs_PassThrough(t *testing.T) {
	args, err := LoopArgs(LoopParams{Input: "in", Output: "out", Count: 1})
	require.NoError(t, err)
	assert.Equal(t, "[0:v]null[v]", argAfter(args, "-filter_complex"))
}

func TestLoopArgs_Invalid(t *testing.T) {
	_, err := LoopArgs(LoopParams{Input: "in", Output: "out", Count: 11})
	assert.Error(t, err)

	_, err = LoopArgs(LoopParams{Input: "in", Output: "out", Count: 1, Window: Window{StartMs: 3000, EndMs: ms(2000)}})
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestLoopArgs_ZeroCount(t *testing.T) {
	_, err := LoopArgs(LoopParams{Input: "in", Output: "out"})
	assert.ErrorContains(t, err, "loop count 0")

	_, err = BoomerangArgs(LoopParams{Input: "in", Output: "out", Count: 0})
	assert.ErrorContains(t, err, "loop count 0")

	_, err = GIFArgs(LoopParams{Input: "in", Output: "out.gif"})
	assert.NoError(t, err)
}

func TestBoomerangArgs(t *testing.T) {
	args, err := BoomerangArgs(LoopParams{
		Input:  "in.mp4",
		Output: "out.mp4",
		Window: Window{StartMs: 0, EndMs: ms(2000)},
		Count:  2,
	})
	require.NoError(t, err)

	graph := argAfter(args, "-filter_complex")
	assert.Equal(t,
		"[0:v]trim=start=0.0:duration=2.0,setpts=PTS-STARTPTS,split[fwd][rev];[rev]reverse[bwd];[fwd][bwd]concat=n=2:v=1:a=0[bo];[bo]loop=loop=1:size=32767:start=0,setpts=N/FRAME_RATE/TB[v]",
		graph)
}

func TestBoomerangArgs_Once(t *testing.T) {
	args, err := BoomerangArgs(LoopParams{Input: "in", Output: "out", Count: 1})
	require.NoError(t, err)
	assert.Equal(t, "[0:v]split[fwd][rev];[rev]reverse[bwd];[fwd][bwd]concat=n=2:v=1:a=0[v]", argAfter(args, "-filter_complex"))
}

func TestGIFArgs(t *testing.T) {
	args, err := GIFArgs(LoopParams{
		Input:  "in.mp4",
		Output: "out.gif",
		Window: Window{StartMs: 500, EndMs: ms(2500)},
	})
	require.NoError(t, err)

	graph := argAfter(args, "-filter_complex")
	assert.Equal(t,
		"[0:v]trim=start=0.5:duration=2.0,setpts=PTS-STARTPTS,fps=15,scale=480:-1:flags=lanczos,split[g0][g1];[g0]palettegen[pal];[g1][pal]paletteuse[v]",
		graph)
	assert.Equal(t, "0", argAfter(args, "-loop"))
	assert.Equal(t, "out.gif", args[len(args)-1])
}

func TestGIFArgs_CustomSize(t *testing.T) {
	args, err := GIFArgs(LoopParams{Input: "in", Output: "out.gif", FPS: 10, Width: 320})
	require.NoError(t, err)

	graph := argAfter(args, "-filter_complex")
	assert.True(t, strings.HasPrefix(graph, "[0:v]fps=10,scale=320:-1:flags=lanczos"))
}
