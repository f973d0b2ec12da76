package video

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lrstanley/go-ytdlp"
	"go.uber.org/zap"
)

// Downloader fetches the media file of a video into a directory.
type Downloader interface {
	Download(ctx context.Context, videoID, dir string) (string, error)
}

// Download saves the video as <dir>/<id>.<ext> and returns the path.
func (c *YTDLPClient) Download(ctx context.Context, videoID, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.DownloadTimeout)
	defer cancel()

	path, err := c.fetch(ctx, WatchURL(videoID), dir)
	if err != nil {
		c.logger.Debug("yt-dlp download failed", zap.String("video_id", videoID), zap.Error(err))
		return "", fmt.Errorf("download %s: %w", videoID, err)
	}
	if path == "" {
		if path = ExistingDownload(dir, videoID); path == "" {
			return "", fmt.Errorf("download %s: yt-dlp reported no output file", videoID)
		}
	}
	return path, nil
}

// ExistingDownload returns a finished download of videoID in dir, or "".
// Partial downloads are ignored.
func ExistingDownload(dir, videoID string) string {
	matches, err := filepath.Glob(filepath.Join(dir, globEscape(videoID)+".*"))
	if err != nil {
		return ""
	}
	for _, m := range matches {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() && fi.Size() > 0 {
			return m
		}
	}
	return ""
}

func (c *YTDLPClient) runDownload(ctx context.Context, url, dir string) (string, error) {
	cmd := ytdlp.New().
		NoPlaylist().
		ForceOverwrites().
		RestrictFilenames().
		Output(filepath.Join(dir, "%(id)s.%(ext)s"))
	if c.cfg.Executable != "" {
		cmd = cmd.SetExecutable(c.cfg.Executable)
	}
	result, err := cmd.Run(ctx, url)
	if err != nil {
		return "", fmt.Errorf("run yt-dlp: %w", err)
	}
	infos, err := result.GetExtractedInfo()
	if err != nil || len(infos) == 0 || infos[0] == nil || infos[0].Filename == nil {
		return "", nil
	}
	return *infos[0].Filename, nil
}

func globEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`)
	return r.Replace(s)
}
