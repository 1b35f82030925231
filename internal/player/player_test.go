package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dancret/groovebox/internal/source"
	"github.com/dancret/groovebox/internal/track"
)

// memReader serves a fixed byte stream.
type memReader struct {
	data []byte
	pos  int
}

func (r *memReader) Read(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

func (r *memReader) Close() error { return nil }

// memSource serves byte-stream fixtures keyed by URI, with an optional
// failure budget per URI to exercise retries.
type memSource struct {
	mu       sync.Mutex
	streams  map[string][]byte
	failures map[string]int
	opened   []time.Time
}

func newMemSource() *memSource {
	return &memSource{streams: map[string][]byte{}, failures: map[string]int{}}
}

func (s *memSource) add(uri string, size int) track.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[uri] = make([]byte, size)
	return track.Track{URI: uri, Title: uri, Kind: track.KindLocalFile}
}

func (s *memSource) failFirst(uri string, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[uri] = times
}

func (s *memSource) Name() string { return "mem" }
func (s *memSource) Close() error { return nil }

func (s *memSource) OpenReader(ctx context.Context, t track.Track) (source.Reader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = append(s.opened, time.Now())
	if s.failures[t.URI] > 0 {
		s.failures[t.URI]--
		return nil, errors.New("transient stream error")
	}
	data, ok := s.streams[t.URI]
	if !ok {
		return nil, fmt.Errorf("no fixture for %s", t.URI)
	}
	return &memReader{data: data}, nil
}

// recordSink counts bytes and can simulate a slow consumer.
type recordSink struct {
	writeDelay time.Duration
	bytes      atomic.Int64
	writes     atomic.Int64
}

func (s *recordSink) Write(ctx context.Context, p []byte) error {
	if s.writeDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.writeDelay):
		}
	}
	s.bytes.Add(int64(len(p)))
	s.writes.Add(1)
	return ctx.Err()
}

func (s *recordSink) Complete(ctx context.Context) error { return ctx.Err() }
func (s *recordSink) Close() error                       { return nil }

// event is a flattened observation from the hook set.
type event struct {
	kind   string // "state", "track", "ended"
	state  State
	track  string // "" for track-changed(absent)
	reason EndReason
}

func (e event) String() string {
	switch e.kind {
	case "state":
		return fmt.Sprintf("state:%s", e.state)
	case "track":
		if e.track == "" {
			return "track:<none>"
		}
		return fmt.Sprintf("track:%s", e.track)
	case "ended":
		return fmt.Sprintf("ended:%s:%s", e.track, e.reason)
	}
	return "?"
}

type recorder struct {
	ch chan event
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan event, 128)}
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		OnStateChanged: func(s State) { r.ch <- event{kind: "state", state: s} },
		OnTrackChanged: func(t *track.Track) {
			e := event{kind: "track"}
			if t != nil {
				e.track = t.URI
			}
			r.ch <- e
		},
		OnSessionEnded: func(t track.Track, res EndResult) {
			r.ch <- event{kind: "ended", track: t.URI, reason: res.Reason}
		},
	}
}

// next pops the next event, failing the test after a timeout.
func (r *recorder) next(t *testing.T) event {
	t.Helper()
	select {
	case e := <-r.ch:
		return e
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return event{}
	}
}

func (r *recorder) expect(t *testing.T, want ...string) {
	t.Helper()
	for _, w := range want {
		got := r.next(t)
		require.Equal(t, w, got.String())
	}
}

// expectUntil pops events until one matches, failing on timeout. Useful where
// the trace interleaves with command timing.
func (r *recorder) expectUntil(t *testing.T, want string) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case e := <-r.ch:
			if e.String() == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func newTestPlayer(t *testing.T, src *memSource, snk *recordSink, rec *recorder, opts Options) *Player {
	t.Helper()
	log := zap.NewNop().Sugar()
	p := New(src, snk, opts, rec.hooks(), log)
	t.Cleanup(p.Dispose)
	p.Start()
	return p
}

const mb = 1 << 20

func TestEnqueueTwoThenComplete(t *testing.T) {
	src := newMemSource()
	t1 := src.add("t1", mb)
	t2 := src.add("t2", mb)
	snk := &recordSink{}
	rec := newRecorder()
	p := newTestPlayer(t, src, snk, rec, Options{})

	p.Enqueue(t1, t2)

	rec.expect(t,
		"state:playing",
		"track:t1",
		"ended:t1:completed",
		"track:t2",
		"ended:t2:completed",
		"track:<none>",
		"state:idle",
	)
	assert.Equal(t, int64(2*mb), snk.bytes.Load())
}

func TestPauseResume(t *testing.T) {
	src := newMemSource()
	tr := src.add("t", 2*mb)
	snk := &recordSink{writeDelay: 2 * time.Millisecond}
	rec := newRecorder()
	p := newTestPlayer(t, src, snk, rec, Options{})

	p.Enqueue(tr)
	rec.expect(t, "state:playing", "track:t")

	p.Pause()
	rec.expect(t, "state:paused")
	time.Sleep(50 * time.Millisecond)
	p.Resume()
	rec.expect(t, "state:playing")

	rec.expectUntil(t, "ended:t:completed")
	rec.expect(t, "track:<none>", "state:idle")
	assert.Equal(t, int64(2*mb), snk.bytes.Load())
}

func TestPauseStallsBytes(t *testing.T) {
	src := newMemSource()
	tr := src.add("t", 8*mb)
	snk := &recordSink{writeDelay: 2 * time.Millisecond}
	rec := newRecorder()
	p := newTestPlayer(t, src, snk, rec, Options{})

	p.Enqueue(tr)
	rec.expect(t, "state:playing", "track:t")

	p.Pause()
	rec.expect(t, "state:paused")
	time.Sleep(20 * time.Millisecond) // let any in-flight write land
	before := snk.bytes.Load()
	time.Sleep(60 * time.Millisecond)
	assert.LessOrEqual(t, snk.bytes.Load(), before+int64(DefaultBufferSize),
		"bytes advanced while paused")

	p.Resume()
	rec.expectUntil(t, "ended:t:completed")
	assert.Equal(t, int64(8*mb), snk.bytes.Load())
}

func TestSkipMidPlayback(t *testing.T) {
	src := newMemSource()
	t1 := src.add("t1", 8*mb)
	t2 := src.add("t2", mb)
	snk := &recordSink{writeDelay: 2 * time.Millisecond}
	rec := newRecorder()
	p := newTestPlayer(t, src, snk, rec, Options{})

	p.Enqueue(t1, t2)
	rec.expect(t, "state:playing", "track:t1")

	p.Skip()
	rec.expect(t,
		"ended:t1:cancelled",
		"track:t2",
		"ended:t2:completed",
		"track:<none>",
		"state:idle",
	)
}

func TestPlayNowPreemption(t *testing.T) {
	src := newMemSource()
	t1 := src.add("t1", 8*mb)
	t2 := src.add("t2", mb)
	snk := &recordSink{writeDelay: 2 * time.Millisecond}
	rec := newRecorder()
	p := newTestPlayer(t, src, snk, rec, Options{})

	p.Enqueue(t1)
	rec.expect(t, "state:playing", "track:t1")

	p.PlayNow(t2)
	rec.expect(t,
		"ended:t1:cancelled",
		"track:t2",
		"ended:t2:completed",
		"track:<none>",
		"state:idle",
	)
}

func TestPlayNowRemovesQueuedDuplicates(t *testing.T) {
	src := newMemSource()
	t1 := src.add("t1", 8*mb)
	t2 := src.add("t2", mb)
	snk := &recordSink{writeDelay: 2 * time.Millisecond}
	rec := newRecorder()
	p := newTestPlayer(t, src, snk, rec, Options{})

	p.Enqueue(t1, t2, t2)
	rec.expect(t, "state:playing", "track:t1")

	p.PlayNow(t2)
	rec.expect(t, "ended:t1:cancelled", "track:t2", "ended:t2:completed")

	// Both queued copies of t2 were removed; nothing left to play.
	rec.expect(t, "track:<none>", "state:idle")
	assert.Empty(t, p.QueueSnapshot())
}

func TestRepeatOneReenqueuesToFront(t *testing.T) {
	src := newMemSource()
	tr := src.add("t", mb)
	snk := &recordSink{}
	rec := newRecorder()
	p := newTestPlayer(t, src, snk, rec, Options{})
	p.SetRepeatMode(RepeatOne)

	p.Enqueue(tr)
	rec.expect(t,
		"state:playing",
		"track:t",
		"ended:t:completed",
		"track:t",
		"ended:t:completed",
	)
	p.Stop()
	rec.expectUntil(t, "state:stopped")
}

func TestRepeatOneAfterSkipDoesNotReenqueue(t *testing.T) {
	src := newMemSource()
	tr := src.add("t", 8*mb)
	snk := &recordSink{writeDelay: 2 * time.Millisecond}
	rec := newRecorder()
	p := newTestPlayer(t, src, snk, rec, Options{})
	p.SetRepeatMode(RepeatOne)

	p.Enqueue(tr)
	rec.expect(t, "state:playing", "track:t")

	p.Skip()
	rec.expect(t, "ended:t:cancelled", "track:<none>", "state:idle")
	assert.Empty(t, p.QueueSnapshot())
}

func TestRepeatAllCyclesInOrder(t *testing.T) {
	src := newMemSource()
	t1 := src.add("t1", mb/4)
	t2 := src.add("t2", mb/4)
	snk := &recordSink{}
	rec := newRecorder()
	p := newTestPlayer(t, src, snk, rec, Options{})
	p.SetRepeatMode(RepeatAll)

	p.Enqueue(t1, t2)
	rec.expect(t, "state:playing", "track:t1", "ended:t1:completed")
	rec.expect(t, "track:t2", "ended:t2:completed")
	// Full cycle: order preserved.
	rec.expect(t, "track:t1", "ended:t1:completed")
	rec.expect(t, "track:t2", "ended:t2:completed")
	p.Stop()
	rec.expectUntil(t, "state:stopped")
}

func TestStopThenEnqueueRestarts(t *testing.T) {
	src := newMemSource()
	t1 := src.add("t1", 8*mb)
	t2 := src.add("t2", mb)
	snk := &recordSink{writeDelay: 2 * time.Millisecond}
	rec := newRecorder()
	p := newTestPlayer(t, src, snk, rec, Options{})

	p.Enqueue(t1, t2)
	rec.expect(t, "state:playing", "track:t1")

	p.Stop()
	rec.expect(t, "ended:t1:cancelled", "state:stopped")
	assert.Empty(t, p.QueueSnapshot())
	assert.Equal(t, StateStopped, p.State())

	p.Enqueue(t2)
	rec.expect(t, "state:playing", "track:t2", "ended:t2:completed")
}

func TestClearKeepsCurrentSession(t *testing.T) {
	src := newMemSource()
	t1 := src.add("t1", 4*mb)
	t2 := src.add("t2", mb)
	snk := &recordSink{writeDelay: 2 * time.Millisecond}
	rec := newRecorder()
	p := newTestPlayer(t, src, snk, rec, Options{})

	p.Enqueue(t1, t2)
	rec.expect(t, "state:playing", "track:t1")

	p.Clear()
	// t1 keeps playing to completion; t2 never starts.
	rec.expect(t, "ended:t1:completed", "track:<none>", "state:idle")
	assert.Equal(t, int64(4*mb), snk.bytes.Load())
}

func TestTransientRetrySucceeds(t *testing.T) {
	src := newMemSource()
	tr := src.add("t", mb)
	src.failFirst("t", 2)
	snk := &recordSink{}
	rec := newRecorder()
	p := newTestPlayer(t, src, snk, rec, Options{})

	start := time.Now()
	p.Enqueue(tr)
	rec.expect(t, "state:playing", "track:t", "ended:t:completed")

	// Two retry delays: >= 200ms then >= 400ms of linear backoff.
	assert.GreaterOrEqual(t, time.Since(start), 600*time.Millisecond)

	src.mu.Lock()
	opens := len(src.opened)
	gap1 := src.opened[1].Sub(src.opened[0])
	gap2 := src.opened[2].Sub(src.opened[1])
	src.mu.Unlock()
	require.Equal(t, 3, opens)
	assert.GreaterOrEqual(t, gap1, 200*time.Millisecond)
	assert.GreaterOrEqual(t, gap2, 400*time.Millisecond)
}

func TestExhaustedRetriesFail(t *testing.T) {
	src := newMemSource()
	tr := src.add("t", mb)
	src.failFirst("t", 99)
	snk := &recordSink{}
	rec := newRecorder()
	p := newTestPlayer(t, src, snk, rec, Options{MaxAttempts: 2, RetryBase: 5 * time.Millisecond})

	p.Enqueue(tr)
	rec.expect(t, "state:playing", "track:t", "ended:t:failed")
	// A failure does not bring the player down.
	rec.expect(t, "track:<none>", "state:idle")

	t2 := src.add("t2", mb/4)
	p.Enqueue(t2)
	rec.expect(t, "state:playing", "track:t2", "ended:t2:completed")
}

func TestBackPressureLosesNothing(t *testing.T) {
	src := newMemSource()
	tr := src.add("t", mb/2)
	snk := &recordSink{writeDelay: 10 * time.Millisecond}
	rec := newRecorder()
	p := newTestPlayer(t, src, snk, rec, Options{})

	p.Enqueue(tr)
	rec.expectUntil(t, "ended:t:completed")
	assert.Equal(t, int64(mb/2), snk.bytes.Load())
}

func TestAtMostOneSessionObserved(t *testing.T) {
	src := newMemSource()
	tracks := make([]track.Track, 0, 4)
	for i := 0; i < 4; i++ {
		tracks = append(tracks, src.add(fmt.Sprintf("t%d", i), mb/4))
	}
	snk := &recordSink{writeDelay: time.Millisecond}
	rec := newRecorder()
	p := newTestPlayer(t, src, snk, rec, Options{})

	p.Enqueue(tracks...)

	// While draining, a started track must end before the next starts.
	open := ""
	ended := 0
	for ended < 4 {
		e := rec.next(t)
		switch e.kind {
		case "track":
			if e.track != "" {
				require.Empty(t, open, "track %s started before %s ended", e.track, open)
				open = e.track
			}
		case "ended":
			require.Equal(t, open, e.track)
			open = ""
			ended++
		}
	}
}

func TestStartIsIdempotent(t *testing.T) {
	src := newMemSource()
	tr := src.add("t", mb/4)
	snk := &recordSink{}
	rec := newRecorder()

	log := zap.NewNop().Sugar()
	p := New(src, snk, Options{}, rec.hooks(), log)
	t.Cleanup(p.Dispose)
	p.Start()
	p.Start()

	p.Enqueue(tr)
	rec.expect(t, "state:playing", "track:t", "ended:t:completed")
}

func TestDisposedPlayerRejectsCommands(t *testing.T) {
	src := newMemSource()
	tr := src.add("t", mb/4)
	snk := &recordSink{}
	rec := newRecorder()

	log := zap.NewNop().Sugar()
	p := New(src, snk, Options{}, rec.hooks(), log)
	p.Start()
	p.Dispose()

	assert.ErrorIs(t, p.send(command{tag: cmdPause}), ErrClosed)

	// Transport calls on a disposed player are logged no-ops.
	p.Enqueue(tr)
	p.Stop()
	assert.Equal(t, int64(0), snk.bytes.Load())
}

func TestFullChannelReportsSentinel(t *testing.T) {
	src := newMemSource()
	tr := src.add("t", mb/4)
	snk := &recordSink{}
	rec := newRecorder()

	// Never started: commands pile up in the channel until it is full.
	log := zap.NewNop().Sugar()
	p := New(src, snk, Options{QueueCapacity: 2}, rec.hooks(), log)
	t.Cleanup(p.Dispose)

	require.NoError(t, p.send(command{tag: cmdEnqueueTracks, tracks: []track.Track{tr}}))
	require.NoError(t, p.send(command{tag: cmdEnqueueTracks, tracks: []track.Track{tr}}))
	assert.ErrorIs(t, p.send(command{tag: cmdPause}), ErrChannelFull)
}

func TestCurrentSessionSnapshot(t *testing.T) {
	src := newMemSource()
	tr := src.add("t", 8*mb)
	snk := &recordSink{writeDelay: 2 * time.Millisecond}
	rec := newRecorder()
	p := newTestPlayer(t, src, snk, rec, Options{})

	info, _ := p.CurrentSession()
	assert.Nil(t, info)

	p.Enqueue(tr)
	rec.expect(t, "state:playing", "track:t")

	info, _ = p.CurrentSession()
	require.NotNil(t, info)
	assert.Equal(t, "t", info.Track.URI)
	assert.Equal(t, StatePlaying, info.State)
	assert.False(t, info.StartedAt.IsZero())

	p.Stop()
	rec.expectUntil(t, "state:stopped")
	info, _ = p.CurrentSession()
	assert.Nil(t, info)
}
