// Package resolver turns raw user inputs into playable tracks. Resolvers are
// routed first-match; order is policy (remote first, so URLs are never
// mis-read as file paths).
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/dancret/groovebox/internal/track"
)

// ErrNoResolver is returned when no registered resolver can handle a request.
var ErrNoResolver = errors.New("no resolver for request")

// Resolver converts track requests into tracks.
type Resolver interface {
	// Name returns the resolver name (e.g. "local", "remote").
	Name() string

	// CanResolve is a cheap, non-I/O check.
	CanResolve(req track.Request) bool

	// Resolve produces the tracks for the request. It may be empty.
	Resolve(ctx context.Context, req track.Request) ([]track.Track, error)
}

// Routing dispatches to the first inner resolver whose CanResolve accepts the
// request, and yields exclusively from it.
type Routing struct {
	inner []Resolver
}

// NewRouting creates a routing resolver over the given resolvers in priority
// order.
func NewRouting(inner ...Resolver) *Routing {
	return &Routing{inner: inner}
}

// Name returns the resolver name.
func (r *Routing) Name() string {
	return "routing"
}

// CanResolve is the disjunction over the inner resolvers.
func (r *Routing) CanResolve(req track.Request) bool {
	for _, in := range r.inner {
		if in.CanResolve(req) {
			return true
		}
	}
	return false
}

// Resolve yields from the first capable inner resolver.
func (r *Routing) Resolve(ctx context.Context, req track.Request) ([]track.Track, error) {
	for _, in := range r.inner {
		if in.CanResolve(req) {
			return in.Resolve(ctx, req)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNoResolver, req.Raw)
}

// ResolveFirst returns the first emission of Resolve, or nil when the request
// resolves to nothing.
func ResolveFirst(ctx context.Context, r Resolver, req track.Request) (*track.Track, error) {
	tracks, err := r.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, nil
	}
	return &tracks[0], nil
}
