package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"novacontent/internal/model"
)

const (
	DefaultFFmpeg = "ffmpeg"
	captionsFile  = "captions.ass"
	frameRate     = 30
)

// FFmpegCompositor renders a manifest without Remotion: every scene becomes
// its image held for the scene's duration over the scene's audio, the
// scenes are concatenated in order, and word captions are burned in.
type FFmpegCompositor struct {
	Binary   string
	Width    int
	Height   int
	Captions bool
	Style    CaptionStyle
	// AudioDir maps manifest audio URLs under AudioPrefix back to files.
	AudioDir    string
	AudioPrefix string
	HTTPClient  *http.Client
}

func NewFFmpegCompositor(binary, audioDir, audioPrefix string) *FFmpegCompositor {
	if binary == "" {
		binary = DefaultFFmpeg
	}
	return &FFmpegCompositor{
		Binary:      binary,
		Width:       1080,
		Height:      1920,
		Captions:    true,
		Style:       DefaultCaptionStyle(),
		AudioDir:    audioDir,
		AudioPrefix: strings.TrimSuffix(audioPrefix, "/"),
		HTTPClient:  http.DefaultClient,
	}
}

func (c *FFmpegCompositor) Compose(ctx context.Context, req Request) error {
	if req.Manifest == nil {
		return model.ErrManifestMissing
	}
	if len(req.Manifest.Scenes) == 0 {
		return fmt.Errorf("%w: manifest has no scenes", model.ErrRenderFailed)
	}
	output, err := filepath.Abs(req.Output)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	work, err := os.MkdirTemp("", "render-ffmpeg-*")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(work) }()

	inputs := make([]sceneInput, len(req.Manifest.Scenes))
	for i, s := range req.Manifest.Scenes {
		image, err := c.fetch(ctx, s.AssetURL, work, fmt.Sprintf("scene-%d", i))
		if err != nil {
			return fmt.Errorf("%w: scene %d image: %v", model.ErrRenderFailed, i, err)
		}
		inputs[i] = sceneInput{Image: image, Audio: c.audioPath(s.AudioURL), Duration: s.DurationInSeconds}
	}

	if c.Captions {
		ass := ToASS(Captions(req.Manifest), c.Style, c.Width, c.Height)
		if err := os.WriteFile(filepath.Join(work, captionsFile), []byte(ass), 0644); err != nil {
			return fmt.Errorf("write captions: %w", err)
		}
	}

	args := c.buildArgs(inputs, output)
	slog.Debug("Running ffmpeg", "args", args)

	cmd := exec.CommandContext(ctx, c.Binary, args...)
	// Captions are referenced relative to the work dir to avoid filter escaping.
	cmd.Dir = work
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: ffmpeg failed: %v, output: %s", model.ErrRenderFailed, err, tail(out, 2000))
	}

	info, err := os.Stat(output)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("%w: ffmpeg produced no output at %s", model.ErrRenderFailed, output)
	}
	return nil
}

type sceneInput struct {
	Image    string
	Audio    string
	Duration float64
}

func (c *FFmpegCompositor) buildArgs(scenes []sceneInput, output string) []string {
	args := []string{"-y"}
	for _, s := range scenes {
		args = append(args,
			"-loop", "1", "-t", fmt.Sprintf("%.3f", s.Duration), "-i", s.Image,
			"-i", s.Audio,
		)
	}

	scale := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1,fps=%d,format=yuv420p",
		c.Width, c.Height, c.Width, c.Height, frameRate)

	var (
		filters []string
		pairs   strings.Builder
	)
	for i, s := range scenes {
		filters = append(filters,
			fmt.Sprintf("[%d:v]%s[v%d]", 2*i, scale, i),
			fmt.Sprintf("[%d:a]aresample=44100,aformat=channel_layouts=stereo,apad,atrim=0:%.3f[a%d]", 2*i+1, s.Duration, i),
		)
		fmt.Fprintf(&pairs, "[v%d][a%d]", i, i)
	}
	filters = append(filters, fmt.Sprintf("%sconcat=n=%d:v=1:a=1[cv][a]", pairs.String(), len(scenes)))
	if c.Captions {
		filters = append(filters, "[cv]ass="+captionsFile+"[v]")
	} else {
		filters = append(filters, "[cv]null[v]")
	}

	return append(args,
		"-filter_complex", strings.Join(filters, ";"),
		"-map", "[v]",
		"-map", "[a]",
		"-c:v", "libx264",
		"-c:a", "aac",
		"-ar", "44100",
		"-preset", "fast",
		output,
	)
}

// audioPath turns a public cache URL back into the cached file.
func (c *FFmpegCompositor) audioPath(u string) string {
	if c.AudioDir != "" && c.AudioPrefix != "" && strings.HasPrefix(u, c.AudioPrefix+"/") {
		return filepath.Join(c.AudioDir, path.Base(u))
	}
	return u
}

// fetch downloads remote images into dir. Local paths are used as they are.
func (c *FFmpegCompositor) fetch(ctx context.Context, src, dir, name string) (string, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return src, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", src, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: status %d", src, resp.StatusCode)
	}

	dst := filepath.Join(dir, name+imageExt(resp.Header.Get("Content-Type")))
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("download %s: %w", src, err)
	}
	return dst, f.Close()
}

func imageExt(contentType string) string {
	switch {
	case strings.Contains(contentType, "jpeg"):
		return ".jpg"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	case strings.Contains(contentType, "gif"):
		return ".gif"
	default:
		return ".png"
	}
}
