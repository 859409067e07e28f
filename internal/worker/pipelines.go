package worker

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/clip.cheap/internal/jobs"
	"github.com/abdul-hamid-achik/clip.cheap/internal/processor"
	"github.com/abdul-hamid-achik/clip.cheap/internal/processor/video"
	"github.com/abdul-hamid-achik/clip.cheap/internal/processor/ytdlp"
	"golang.org/x/sync/errgroup"
)

// maxParallelFetches bounds concurrent source downloads per job.
const maxParallelFetches = 4

func runDownload(jc *JobContext, p *jobs.DownloadParams) (string, error) {
	jc.Progress(10)

	args, err := ytdlp.DownloadArgs(ytdlp.DownloadParams{
		URL:        p.URL,
		OutputDir:  jc.WorkDir,
		OutputName: "download",
		Format:     p.Format,
		MaxHeight:  p.MaxHeight,
	})
	if err != nil {
		return "", err
	}

	res, err := jc.Run("download", processor.ToolYtDlp, args)
	if err != nil {
		return "", err
	}

	out, err := ytdlp.OutputPath(res.Stdout)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(jc.WorkDir, out)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("yt-dlp wrote outside the work directory: %s", out)
	}
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("downloaded file missing: %w", err)
	}

	jc.Progress(90)
	return out, nil
}

func sourceExt(ref string) string {
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		ref = u.Path
	}
	if ext := path.Ext(ref); ext != "" && len(ext) <= 5 {
		return strings.ToLower(ext)
	}
	return ".mp4"
}

// fetchClips downloads every clip source into the workdir concurrently.
func fetchClips(jc *JobContext, clips []jobs.Clip) ([]string, error) {
	paths := make([]string, len(clips))
	g, ctx := errgroup.WithContext(jc.Context)
	g.SetLimit(maxParallelFetches)

	for i, c := range clips {
		g.Go(func() error {
			var err error
			if c.SourceKey != "" {
				name := fmt.Sprintf("src-%02d%s", i, sourceExt(c.SourceKey))
				paths[i], err = jc.Fetch(ctx, c.SourceKey, name)
			} else {
				name := fmt.Sprintf("src-%02d%s", i, sourceExt(c.SourceURL))
				paths[i], err = jc.FetchURL(ctx, c.SourceURL, name)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func runExport(jc *JobContext, p *jobs.ExportParams) (string, error) {
	canvas, ok := video.CanvasFor(p.Resolution)
	if !ok {
		return "", fmt.Errorf("unknown resolution %q", p.Resolution)
	}

	sources, err := fetchClips(jc, p.Clips)
	if err != nil {
		return "", err
	}

	trimmed := make([]string, len(p.Clips))
	for i, clip := range p.Clips {
		meta, err := jc.Probe(sources[i])
		if err != nil {
			return "", fmt.Errorf("clip %d: %w", i, err)
		}

		trimmed[i] = jc.Path(fmt.Sprintf("trim-%02d.mp4", i))
		args, err := video.TrimArgs(video.TrimParams{
			Input:    sources[i],
			Output:   trimmed[i],
			Window:   clip.Window(),
			Canvas:   canvas,
			HasAudio: meta.HasAudio,
		})
		if err != nil {
			return "", fmt.Errorf("clip %d: %w", i, err)
		}
		if _, err := jc.Run("trim", processor.ToolFFmpeg, args); err != nil {
			return "", fmt.Errorf("clip %d: %w", i, err)
		}
		jc.Progress(50 * (i + 1) / len(p.Clips))
	}

	listPath := jc.Path("concat.txt")
	if err := os.WriteFile(listPath, []byte(video.ConcatList(trimmed)), 0o600); err != nil {
		return "", fmt.Errorf("write concat list: %w", err)
	}
	joined := jc.Path("joined.mp4")
	if _, err := jc.Run("concat", processor.ToolFFmpeg, video.ConcatArgs(listPath, joined)); err != nil {
		return "", err
	}
	jc.Progress(75)

	final := jc.Path("export.mp4")
	if w := p.Watermark; w != nil {
		args, err := video.WatermarkArgs(video.WatermarkParams{
			Input:    joined,
			Output:   final,
			Text:     w.Text,
			Position: w.Position,
			Opacity:  w.Opacity,
		})
		if err != nil {
			return "", err
		}
		if _, err := jc.Run("watermark", processor.ToolFFmpeg, args); err != nil {
			return "", err
		}
		jc.Progress(90)
	} else if err := os.Rename(joined, final); err != nil {
		return "", fmt.Errorf("finalize export: %w", err)
	}

	intermediates := append(append(sources, trimmed...), listPath, joined)
	removeQuietly(jc, intermediates)
	return final, nil
}

// removeQuietly deletes intermediate files, logging and ignoring failures.
func removeQuietly(jc *JobContext, paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			jc.Log.Debug("failed to remove intermediate", "path", p, "error", err)
		}
	}
}

func runLoop(jc *JobContext, p *jobs.LoopParams) (string, error) {
	src, err := jc.Fetch(jc.Context, p.SourceKey, "source"+sourceExt(p.SourceKey))
	if err != nil {
		return "", err
	}
	jc.Progress(10)

	params := video.LoopParams{
		Input:  src,
		Window: p.Window(),
		Count:  p.Count,
		Width:  p.Width,
		FPS:    p.FPS,
	}

	var args []string
	switch p.Mode {
	case jobs.LoopModeBoomerang:
		params.Output = jc.Path("boomerang.mp4")
		args, err = video.BoomerangArgs(params)
	case jobs.LoopModeGIF:
		params.Output = jc.Path("loop.gif")
		args, err = video.GIFArgs(params)
	default:
		params.Output = jc.Path("loop.mp4")
		args, err = video.LoopArgs(params)
	}
	if err != nil {
		return "", err
	}

	if _, err := jc.Run(string(p.Mode), processor.ToolFFmpeg, args); err != nil {
		return "", err
	}
	jc.Progress(90)
	return params.Output, nil
}

func runReaction(jc *JobContext, p *jobs.ReactionParams) (string, error) {
	var mainPath, reactionPath string
	g, ctx := errgroup.WithContext(jc.Context)
	g.Go(func() (err error) {
		mainPath, err = jc.Fetch(ctx, p.MainKey, "main"+sourceExt(p.MainKey))
		return err
	})
	g.Go(func() (err error) {
		reactionPath, err = jc.Fetch(ctx, p.ReactionKey, "reaction"+sourceExt(p.ReactionKey))
		return err
	})
	if err := g.Wait(); err != nil {
		return "", err
	}
	jc.Progress(10)

	mainMeta, err := jc.Probe(mainPath)
	if err != nil {
		return "", fmt.Errorf("main video: %w", err)
	}
	reactionMeta, err := jc.Probe(reactionPath)
	if err != nil {
		return "", fmt.Errorf("reaction video: %w", err)
	}
	jc.Progress(50)

	output := jc.Path("reaction.mp4")
	var args []string
	if p.Layout == jobs.ReactionLayoutSideBySide {
		args, err = video.SideBySideArgs(video.SideBySideParams{
			Left:          mainPath,
			Right:         reactionPath,
			Output:        output,
			Layout:        p.Stack,
			MixAudio:      *p.MixAudio,
			RightWindow:   p.ReactionWindow(),
			LeftHasAudio:  mainMeta.HasAudio,
			RightHasAudio: reactionMeta.HasAudio,
		})
	} else {
		args, err = video.OverlayArgs(video.OverlayParams{
			Main:             mainPath,
			Reaction:         reactionPath,
			Output:           output,
			Position:         p.Position,
			Scale:            p.Scale,
			MarginPx:         *p.MarginPx,
			MixAudio:         *p.MixAudio,
			ReactionWindow:   p.ReactionWindow(),
			MainHasAudio:     mainMeta.HasAudio,
			ReactionHasAudio: reactionMeta.HasAudio,
		})
	}
	if err != nil {
		return "", err
	}

	if _, err := jc.Run(string(p.Layout), processor.ToolFFmpeg, args); err != nil {
		return "", err
	}
	jc.Progress(90)
	return output, nil
}
