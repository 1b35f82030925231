package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dancret/groovebox/internal/track"
)

// remoteMetadata is the subset of yt-dlp's JSON output the resolver needs.
type remoteMetadata struct {
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	URL      string  `json:"webpage_url"`
}

// Remote resolves media URLs through yt-dlp metadata extraction, with an
// optional TTL cache keyed by the normalized URL.
type Remote struct {
	binary string
	cache  RequestCache
	ttl    time.Duration
	log    *zap.SugaredLogger
}

// NewRemote creates a remote resolver. cache may be nil to disable caching.
func NewRemote(binary string, cache RequestCache, ttl time.Duration, log *zap.SugaredLogger) *Remote {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &Remote{binary: binary, cache: cache, ttl: ttl, log: log}
}

// Name returns the resolver name.
func (r *Remote) Name() string {
	return "remote"
}

// CanResolve accepts http(s) URLs. It must stay cheap: no network access.
func (r *Remote) CanResolve(req track.Request) bool {
	if req.KindHint != nil {
		return *req.KindHint == track.KindRemote
	}
	raw := strings.TrimSpace(req.Raw)
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}

// Resolve fetches title and duration for the URL, skipping yt-dlp on a cache
// hit.
func (r *Remote) Resolve(ctx context.Context, req track.Request) ([]track.Track, error) {
	url := strings.TrimSpace(req.Raw)

	if r.cache != nil {
		if tracks, ok := r.cache.TryGet(url); ok {
			r.log.Debugf("cache hit for %s", url)
			return tracks, nil
		}
	}

	meta, err := r.extractMetadata(ctx, url)
	if err != nil {
		return nil, err
	}

	title := meta.Title
	if title == "" {
		title = url
	}
	tracks := []track.Track{{
		URI:          url,
		Title:        title,
		Kind:         track.KindRemote,
		DurationHint: time.Duration(meta.Duration * float64(time.Second)),
	}}

	if r.cache != nil && r.ttl > 0 {
		r.cache.Set(url, tracks, r.ttl)
	}
	return tracks, nil
}

// extractMetadata asks yt-dlp for the track's JSON without downloading.
func (r *Remote) extractMetadata(ctx context.Context, url string) (*remoteMetadata, error) {
	args := []string{
		"--ignore-config",
		"--no-playlist",
		"--no-warnings",
		"--socket-timeout", "10",
		"-j",
		"--skip-download",
		url,
	}

	cmd := exec.CommandContext(ctx, r.binary, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s metadata failed: %w: %s", r.binary, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("%s metadata failed: %w", r.binary, err)
	}

	var meta remoteMetadata
	if err := json.Unmarshal(out, &meta); err != nil {
		return nil, fmt.Errorf("parse %s metadata: %w", r.binary, err)
	}
	return &meta, nil
}
