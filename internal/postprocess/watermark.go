package postprocess

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/catalog-crawler/internal/hash/sha256"
)

// WatermarkSettings position a logo in the bottom-right corner.
type WatermarkSettings struct {
	Image  string `mapstructure:"image" json:"image"`
	Height int    `mapstructure:"height" json:"height"`
	Right  int    `mapstructure:"right" json:"right"`
	Bottom int    `mapstructure:"bottom" json:"bottom"`
}

// DefaultWatermarkSettings matches the channel's published videos.
func DefaultWatermarkSettings() WatermarkSettings {
	return WatermarkSettings{Image: "watermark.png", Height: 68, Right: 16, Bottom: 16}
}

// Watermark overlays a logo with ffmpeg and stores the result under a name
// derived from its content.
type Watermark struct {
	settings WatermarkSettings
	ffmpeg   string
	outDir   string
	hasher   *sha256.Hasher
	run      func(ctx context.Context, name string, args ...string) error
}

// NewWatermark validates settings. ffmpeg defaults to "ffmpeg" on $PATH.
func NewWatermark(settings WatermarkSettings, ffmpeg, outDir string) (*Watermark, error) {
	if strings.TrimSpace(settings.Image) == "" {
		return nil, fmt.Errorf("watermark image is required")
	}
	if settings.Height <= 0 {
		return nil, fmt.Errorf("watermark height must be positive")
	}
	if settings.Right < 0 || settings.Bottom < 0 {
		return nil, fmt.Errorf("watermark margins must not be negative")
	}
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return nil, fmt.Errorf("create watermark output dir: %w", err)
	}
	return &Watermark{
		settings: settings,
		ffmpeg:   ffmpeg,
		outDir:   outDir,
		hasher:   sha256.New(),
		run:      runCommand,
	}, nil
}

// Name implements Operation.
func (w *Watermark) Name() string { return "WATERMARKED" }

// Fingerprint implements Operation.
func (w *Watermark) Fingerprint() string {
	data, _ := json.Marshal(w.settings)
	return string(data)
}

// Args builds the ffmpeg command line. The logo is scaled to the configured
// height and kept Right/Bottom pixels from the corner; audio is copied.
func (w *Watermark) Args(input, output string) []string {
	filter := fmt.Sprintf("[1:v]scale=-1:%d[wm];[0:v][wm]overlay=W-w-%d:H-h-%d",
		w.settings.Height, w.settings.Right, w.settings.Bottom)
	return []string{
		"-y", "-loglevel", "error",
		"-i", input,
		"-i", w.settings.Image,
		"-filter_complex", filter,
		"-codec:a", "copy",
		output,
	}
}

// Run implements Operation.
func (w *Watermark) Run(ctx context.Context, input string) (string, error) {
	tmp, err := os.CreateTemp(w.outDir, ".watermark-*.mp4")
	if err != nil {
		return "", fmt.Errorf("create temp output: %w", err)
	}
	tmpName := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpName) //nolint:errcheck // gone after rename

	if err := w.run(ctx, w.ffmpeg, w.Args(input, tmpName)...); err != nil {
		return "", err
	}
	// #nosec G304 -- tmpName was created above inside outDir.
	data, err := os.ReadFile(tmpName)
	if err != nil {
		return "", fmt.Errorf("read watermarked output: %w", err)
	}
	digest, err := w.hasher.Hash(data)
	if err != nil {
		return "", fmt.Errorf("hash watermarked output: %w", err)
	}
	final := filepath.Join(w.outDir, digest+".mp4")
	if err := os.Rename(tmpName, final); err != nil {
		return "", fmt.Errorf("store watermarked output: %w", err)
	}
	return final, nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	// #nosec G204 -- binary and arguments come from configuration.
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}
