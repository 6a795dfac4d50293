package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"vetarchive/models"
)

// frameOffset is where in the video the still frame is taken. Early
// frames are often black or title cards, so we skip a few seconds in.
const frameOffset = "00:00:05"

// extractTimeout bounds a single ffmpeg invocation. Remote sources can
// stall on slow hosts; the caller treats a timeout like any other
// extraction failure.
const extractTimeout = 30 * time.Second

// Generator extracts still-frame thumbnails with ffmpeg.
type Generator struct {
	VideosDir     string
	ThumbnailsDir string
	Logger        *logrus.Logger
}

// NewGenerator returns a Generator writing JPEGs into thumbnailsDir.
func NewGenerator(videosDir, thumbnailsDir string, logger *logrus.Logger) *Generator {
	return &Generator{
		VideosDir:     videosDir,
		ThumbnailsDir: thumbnailsDir,
		Logger:        logger,
	}
}

// Filename returns the deterministic thumbnail name for a video id.
func Filename(videoID int64) string {
	return fmt.Sprintf("thumb_%d.jpg", videoID)
}

// Generate extracts one frame from the video's source and writes it as
// a JPEG named after the video id. It returns the written filename, or
// "" when no thumbnail could be produced. Failures are reported through
// the returned error but are expected to be treated as non-fatal by
// callers: a video without a thumbnail is still a valid video.
func (g *Generator) Generate(ctx context.Context, sourceKind, sourceRef string, videoID int64) (string, error) {
	var input string
	switch sourceKind {
	case models.TypeLocal:
		input = filepath.Join(g.VideosDir, sourceRef)
		if _, err := os.Stat(input); err != nil {
			return "", fmt.Errorf("video file missing: %s", input)
		}
	case models.TypeDirect:
		// ffmpeg reads http(s) inputs directly.
		input = sourceRef
	default:
		// youtube/embed pages are not media streams; nothing to extract.
		return "", nil
	}

	name := Filename(videoID)
	output := filepath.Join(g.ThumbnailsDir, name)

	ctx, cancel := context.WithTimeout(ctx, extractTimeout)
	defer cancel()

	// ffmpeg -y -ss <offset> -i <input> -vframes 1 -q:v 2 <output>
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-ss", frameOffset,
		"-i", input,
		"-vframes", "1",
		"-q:v", "2",
		output,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg failed for video %d: %v: %s", videoID, err, truncate(stderr.String(), 200))
	}

	g.Logger.WithFields(logrus.Fields{
		"video_id":  videoID,
		"thumbnail": name,
	}).Info("Thumbnail generated")
	return name, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
