package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/dancret/groovebox/internal/track"
)

// ErrUnsupportedKind is returned when no source is registered for a track's
// kind and the router has no fallback.
var ErrUnsupportedKind = errors.New("unsupported track kind")

// RoutingSource selects an inner source per track kind.
type RoutingSource struct {
	byKind   map[track.Kind]AudioSource
	fallback AudioSource
}

// NewRoutingSource creates a router over the given kind table. fallback may be
// nil, in which case unknown kinds fail with ErrUnsupportedKind.
func NewRoutingSource(byKind map[track.Kind]AudioSource, fallback AudioSource) *RoutingSource {
	return &RoutingSource{byKind: byKind, fallback: fallback}
}

// Name returns the source implementation name.
func (r *RoutingSource) Name() string {
	return "routing"
}

// OpenReader dispatches to the source registered for the track's kind.
func (r *RoutingSource) OpenReader(ctx context.Context, t track.Track) (Reader, error) {
	src, ok := r.byKind[t.Kind]
	if !ok {
		src = r.fallback
	}
	if src == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, t.Kind)
	}
	return src.OpenReader(ctx, t)
}

// Close closes every distinct inner source exactly once, joining any errors.
func (r *RoutingSource) Close() error {
	seen := make(map[AudioSource]bool)
	var errs []error
	for _, src := range r.byKind {
		if seen[src] {
			continue
		}
		seen[src] = true
		if err := src.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.fallback != nil && !seen[r.fallback] {
		if err := r.fallback.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
