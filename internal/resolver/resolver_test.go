package resolver

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dancret/groovebox/internal/track"
)

// fake is a scriptable resolver for routing tests.
type fake struct {
	name    string
	accepts func(track.Request) bool
	tracks  []track.Track
	calls   int
}

func (f *fake) Name() string                      { return f.name }
func (f *fake) CanResolve(req track.Request) bool { return f.accepts(req) }
func (f *fake) Resolve(ctx context.Context, req track.Request) ([]track.Track, error) {
	f.calls++
	return f.tracks, nil
}

func isURL(req track.Request) bool {
	return len(req.Raw) > 8 && (req.Raw[:7] == "http://" || req.Raw[:8] == "https://")
}

func TestRoutingPicksFirstCapable(t *testing.T) {
	remote := &fake{name: "remote", accepts: isURL,
		tracks: []track.Track{{URI: "https://x/y", Kind: track.KindRemote}}}
	local := &fake{name: "local", accepts: func(track.Request) bool { return true },
		tracks: []track.Track{{URI: "/tmp/a.mp3", Kind: track.KindLocalFile}}}
	r := NewRouting(remote, local)

	got, err := r.Resolve(context.Background(), track.Request{Raw: "/tmp/a.mp3"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/tmp/a.mp3", got[0].URI)
	assert.Equal(t, 0, remote.calls)
	assert.Equal(t, 1, local.calls)

	got, err = r.Resolve(context.Background(), track.Request{Raw: "https://x/y"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, track.KindRemote, got[0].Kind)
	assert.Equal(t, 1, remote.calls)
	assert.Equal(t, 1, local.calls) // remote yielded exclusively
}

func TestRoutingNoResolver(t *testing.T) {
	r := NewRouting(&fake{name: "never", accepts: func(track.Request) bool { return false }})

	assert.False(t, r.CanResolve(track.Request{Raw: "x"}))
	_, err := r.Resolve(context.Background(), track.Request{Raw: "x"})
	assert.ErrorIs(t, err, ErrNoResolver)
}

func TestResolveFirst(t *testing.T) {
	r := NewRouting(&fake{name: "many", accepts: func(track.Request) bool { return true },
		tracks: []track.Track{{URI: "a"}, {URI: "b"}}})

	first, err := ResolveFirst(context.Background(), r, track.Request{Raw: "anything"})
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "a", first.URI)

	empty := NewRouting(&fake{name: "empty", accepts: func(track.Request) bool { return true }})
	first, err = ResolveFirst(context.Background(), empty, track.Request{Raw: "anything"})
	require.NoError(t, err)
	assert.Nil(t, first)
}

func TestLocalCanResolve(t *testing.T) {
	l := NewLocal(zap.NewNop().Sugar())

	assert.True(t, l.CanResolve(track.Request{Raw: "/tmp/a.mp3"}))
	assert.True(t, l.CanResolve(track.Request{Raw: "songs/b.flac"}))
	assert.False(t, l.CanResolve(track.Request{Raw: "https://x/y"}))
	assert.False(t, l.CanResolve(track.Request{Raw: "  "}))

	remote := track.KindRemote
	assert.False(t, l.CanResolve(track.Request{Raw: "/tmp/a.mp3", KindHint: &remote}))
}

func TestLocalResolveFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "song.mp3")
	require.NoError(t, os.WriteFile(path, []byte("not really audio"), 0o644))

	l := NewLocal(zap.NewNop().Sugar())
	tracks, err := l.Resolve(context.Background(), track.Request{Raw: path})
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, path, tracks[0].URI)
	assert.Equal(t, "song", tracks[0].Title) // no tag: basename fallback
	assert.Equal(t, track.KindLocalFile, tracks[0].Kind)
}

func TestLocalResolveDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.mp3", "a.flac", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	l := NewLocal(zap.NewNop().Sugar())
	tracks, err := l.Resolve(context.Background(), track.Request{Raw: dir})
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, filepath.Join(dir, "a.flac"), tracks[0].URI)
	assert.Equal(t, filepath.Join(dir, "b.mp3"), tracks[1].URI)
}

func TestLocalResolveMissingPath(t *testing.T) {
	l := NewLocal(zap.NewNop().Sugar())
	_, err := l.Resolve(context.Background(), track.Request{Raw: "/no/such/file.mp3"})
	assert.Error(t, err)
}

func TestRemoteCanResolve(t *testing.T) {
	r := NewRemote("yt-dlp", nil, 0, zap.NewNop().Sugar())

	assert.True(t, r.CanResolve(track.Request{Raw: "https://youtu.be/abc"}))
	assert.True(t, r.CanResolve(track.Request{Raw: "http://x/y"}))
	assert.False(t, r.CanResolve(track.Request{Raw: "/tmp/a.mp3"}))
}

func TestRemoteUsesCache(t *testing.T) {
	cache := NewRequestCache(time.Minute)
	cached := []track.Track{{URI: "https://x/y", Title: "cached", Kind: track.KindRemote}}
	cache.Set("https://x/y", cached, time.Minute)

	// A nonexistent binary proves the hit skipped extraction.
	r := NewRemote("definitely-not-a-binary", cache, time.Minute, zap.NewNop().Sugar())
	tracks, err := r.Resolve(context.Background(), track.Request{Raw: "https://x/y"})
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "cached", tracks[0].Title)
}

func TestRequestCacheExpiry(t *testing.T) {
	cache := NewRequestCache(10 * time.Millisecond)
	cache.Set("k", []track.Track{{URI: "u"}}, 10*time.Millisecond)

	got, ok := cache.TryGet("k")
	require.True(t, ok)
	assert.Equal(t, "u", got[0].URI)

	time.Sleep(30 * time.Millisecond)
	_, ok = cache.TryGet("k")
	assert.False(t, ok)
}
