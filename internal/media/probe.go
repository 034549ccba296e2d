// Package media measures audio files on disk.
package media

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var ErrUnknownDuration = errors.New("unknown duration")

type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// FFProbe reads the container duration with ffprobe.
type FFProbe struct {
	Binary string
}

func NewFFProbe(binary string) *FFProbe {
	if binary == "" {
		binary = "ffprobe"
	}
	return &FFProbe{Binary: binary}
}

func (p *FFProbe) Duration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	cmd := exec.CommandContext(ctx, p.Binary, args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	var dur float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(output)), "%f", &dur); err != nil {
		return 0, fmt.Errorf("%w: parse ffprobe output %q: %v", ErrUnknownDuration, output, err)
	}
	if dur <= 0 {
		return 0, fmt.Errorf("%w: ffprobe reported %v", ErrUnknownDuration, dur)
	}
	return dur, nil
}

// WAVProbe computes the duration of PCM WAV files from their header.
type WAVProbe struct{}

func (WAVProbe) Duration(ctx context.Context, path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open wav: %w", err)
	}
	defer func() { _ = f.Close() }()

	header := make([]byte, 44)
	if _, err := io.ReadFull(f, header); err != nil {
		return 0, fmt.Errorf("%w: read wav header: %v", ErrUnknownDuration, err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return 0, fmt.Errorf("%w: not a wav file", ErrUnknownDuration)
	}

	byteRate := binary.LittleEndian.Uint32(header[28:32])
	dataSize := binary.LittleEndian.Uint32(header[40:44])
	if byteRate == 0 || dataSize == 0 {
		return 0, fmt.Errorf("%w: empty wav data", ErrUnknownDuration)
	}
	return float64(dataSize) / float64(byteRate), nil
}

// ExtensionProber dispatches on file extension and falls back to Default.
type ExtensionProber struct {
	ByExt   map[string]Prober
	Default Prober
}

func NewDefaultProber(ffprobe string) *ExtensionProber {
	return &ExtensionProber{
		ByExt:   map[string]Prober{".wav": WAVProbe{}},
		Default: NewFFProbe(ffprobe),
	}
}

func (p *ExtensionProber) Duration(ctx context.Context, path string) (float64, error) {
	if prober, ok := p.ByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return prober.Duration(ctx, path)
	}
	if p.Default == nil {
		return 0, fmt.Errorf("%w: no prober for %s", ErrUnknownDuration, filepath.Ext(path))
	}
	return p.Default.Duration(ctx, path)
}
