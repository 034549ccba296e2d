// Package render turns a persisted manifest into a video file by invoking
// an external compositor.
package render

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"novacontent/internal/model"
)

const (
	DefaultComposition = "NovaVideo"
	DefaultCommand     = "npx"
)

var DefaultArgs = []string{"remotion", "render", "src/remotion/Root.tsx", "{composition}", "{output}", "--props={props}"}

type Request struct {
	Manifest    *model.Manifest
	Composition string
	Output      string
}

type Compositor interface {
	Compose(ctx context.Context, req Request) error
}

// CLICompositor runs a command line compositor. The manifest is handed over
// as a JSON props file; {props}, {composition} and {output} in Args are
// replaced before the command runs.
type CLICompositor struct {
	Command string
	Args    []string
	Dir     string
}

func NewCLICompositor(command string, args []string, dir string) *CLICompositor {
	if command == "" {
		command = DefaultCommand
	}
	if len(args) == 0 {
		args = DefaultArgs
	}
	return &CLICompositor{Command: command, Args: args, Dir: dir}
}

func (c *CLICompositor) Compose(ctx context.Context, req Request) error {
	if req.Manifest == nil {
		return model.ErrManifestMissing
	}
	if err := os.MkdirAll(filepath.Dir(req.Output), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	props, err := writeProps(req.Manifest)
	if err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(props); err != nil {
			slog.Warn("Failed to remove props file", "path", props, "error", err)
		}
	}()

	replacer := strings.NewReplacer(
		"{props}", props,
		"{composition}", req.Composition,
		"{output}", req.Output,
	)
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = replacer.Replace(a)
	}

	slog.Debug("Running compositor", "command", c.Command, "args", args)

	cmd := exec.CommandContext(ctx, c.Command, args...)
	cmd.Dir = c.Dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: compositor failed: %v, output: %s", model.ErrRenderFailed, err, tail(output, 2000))
	}

	info, err := os.Stat(req.Output)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("%w: compositor produced no output at %s", model.ErrRenderFailed, req.Output)
	}
	return nil
}

func writeProps(m *model.Manifest) (string, error) {
	f, err := os.CreateTemp("", "render-props-*.json")
	if err != nil {
		return "", fmt.Errorf("create props file: %w", err)
	}
	if err := json.NewEncoder(f).Encode(m); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write props file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("close props file: %w", err)
	}
	return f.Name(), nil
}

func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return "..." + s[len(s)-n:]
	}
	return s
}
