package source

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/dancret/groovebox/internal/track"
)

// YTDLPSource opens remote tracks by asking yt-dlp for a direct audio stream
// URL and handing it to the decoder. Stream URLs expire, so extraction runs
// fresh on every open; a retried attempt gets a fresh URL.
type YTDLPSource struct {
	binary  string
	decoder *FFmpegSource
	log     *zap.SugaredLogger
}

// NewYTDLPSource creates a remote source backed by the given decoder.
func NewYTDLPSource(binary string, decoder *FFmpegSource, log *zap.SugaredLogger) *YTDLPSource {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YTDLPSource{binary: binary, decoder: decoder, log: log}
}

// Name returns the source implementation name.
func (s *YTDLPSource) Name() string {
	return "yt-dlp"
}

// Close releases long-lived resources; the decoder is shared and closed by
// its own owner.
func (s *YTDLPSource) Close() error {
	return nil
}

// OpenReader extracts the stream URL and opens a decoder reader over it.
func (s *YTDLPSource) OpenReader(ctx context.Context, t track.Track) (Reader, error) {
	streamURL, err := s.extractStreamURL(ctx, t.URI)
	if err != nil {
		return nil, err
	}
	s.log.Debugf("stream url extracted for %s (length %d)", t.URI, len(streamURL))

	streamed := t
	streamed.URI = streamURL
	return s.decoder.OpenReader(ctx, streamed)
}

// extractStreamURL tries the common audio format selectors in order, falling
// back to no selector at all.
func (s *YTDLPSource) extractStreamURL(ctx context.Context, url string) (string, error) {
	base := []string{
		"--ignore-config",
		"--no-playlist",
		"--no-warnings",
		"--socket-timeout", "10",
	}

	var lastErr error
	for _, selector := range []string{"bestaudio/best", "bestaudio", ""} {
		args := append([]string{}, base...)
		if selector != "" {
			args = append(args, "-f", selector)
		}
		args = append(args, "--get-url", url)

		out, err := exec.CommandContext(ctx, s.binary, args...).Output()
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				err = fmt.Errorf("%s: %w: %s", s.binary, err, strings.TrimSpace(string(exitErr.Stderr)))
			}
			lastErr = err
			continue
		}

		// yt-dlp may emit several URLs; the first is the selected stream.
		lines := strings.Split(strings.TrimSpace(string(out)), "\n")
		if len(lines) > 0 && lines[0] != "" {
			return lines[0], nil
		}
		lastErr = fmt.Errorf("%s returned no stream url", s.binary)
	}

	return "", fmt.Errorf("extract stream url for %s: %w", url, lastErr)
}
