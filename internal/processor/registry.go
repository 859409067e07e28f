package processor

import (
	"os/exec"
	"sort"
	"sync"
)

// Registry maps tools to the binary path configured for them.
type Registry struct {
	paths map[Tool]string
	mu    sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		paths: make(map[Tool]string),
	}
}

// NewRegistryWithPaths registers ffmpeg, ffprobe and yt-dlp in one go.
// Empty paths fall back to the tool name and PATH lookup.
func NewRegistryWithPaths(ffmpeg, ffprobe, ytdlp string) *Registry {
	r := NewRegistry()
	r.Register(ToolFFmpeg, ffmpeg)
	r.Register(ToolFFprobe, ffprobe)
	r.Register(ToolYtDlp, ytdlp)
	return r
}

func (r *Registry) Register(tool Tool, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if path == "" {
		path = string(tool)
	}
	r.paths[tool] = path
}

func (r *Registry) Path(tool Tool) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.paths[tool]
	return p, ok
}

// Resolve returns the absolute path of tool, or a *ToolNotFoundError.
func (r *Registry) Resolve(tool Tool) (string, error) {
	path, ok := r.Path(tool)
	if !ok {
		path = string(tool)
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return "", &ToolNotFoundError{Tool: tool, Path: path, Err: err}
	}
	return resolved, nil
}

func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.paths))
	for tool := range r.paths {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i] < tools[j] })
	return tools
}

// Check resolves every registered tool and reports the ones that are missing.
func (r *Registry) Check() map[Tool]error {
	missing := make(map[Tool]error)
	for _, tool := range r.List() {
		if _, err := r.Resolve(tool); err != nil {
			missing[tool] = err
		}
	}
	return missing
}
