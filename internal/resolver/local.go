package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dhowden/tag"
	"go.uber.org/zap"

	"github.com/dancret/groovebox/internal/track"
)

// audioExtensions are the file types the local resolver admits when walking a
// directory.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".wav":  true,
	".ogg":  true,
	".opus": true,
	".m4a":  true,
	".aac":  true,
	".wma":  true,
}

// Local resolves file and directory paths into tracks, reading embedded
// metadata for titles.
type Local struct {
	log *zap.SugaredLogger
}

// NewLocal creates a local-file resolver.
func NewLocal(log *zap.SugaredLogger) *Local {
	return &Local{log: log}
}

// Name returns the resolver name.
func (l *Local) Name() string {
	return "local"
}

// CanResolve accepts anything that does not look like a URL. It must stay
// cheap: no filesystem access.
func (l *Local) CanResolve(req track.Request) bool {
	if req.KindHint != nil {
		return *req.KindHint == track.KindLocalFile
	}
	raw := strings.TrimSpace(req.Raw)
	return raw != "" && !strings.Contains(raw, "://")
}

// Resolve expands a path into tracks: a file yields one, a directory yields
// its audio files in lexical order.
func (l *Local) Resolve(ctx context.Context, req track.Request) ([]track.Track, error) {
	path := strings.TrimSpace(req.Raw)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if !info.IsDir() {
		return []track.Track{l.trackFor(path)}, nil
	}

	var tracks []track.Track
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if audioExtensions[strings.ToLower(filepath.Ext(p))] {
			tracks = append(tracks, l.trackFor(p))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", path, err)
	}

	sort.Slice(tracks, func(i, j int) bool { return tracks[i].URI < tracks[j].URI })
	l.log.Debugf("resolved %d track(s) under %s", len(tracks), path)
	return tracks, nil
}

// trackFor builds a track for a file, preferring the embedded title tag.
func (l *Local) trackFor(path string) track.Track {
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if f, err := os.Open(path); err == nil {
		if meta, err := tag.ReadFrom(f); err == nil && meta.Title() != "" {
			title = meta.Title()
		}
		f.Close()
	}
	return track.Track{
		URI:   path,
		Title: title,
		Kind:  track.KindLocalFile,
	}
}
