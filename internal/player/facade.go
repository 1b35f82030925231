package player

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dancret/groovebox/internal/pcm"
	"github.com/dancret/groovebox/internal/sink"
	"github.com/dancret/groovebox/internal/source"
	"github.com/dancret/groovebox/internal/track"
	"github.com/dancret/groovebox/pkg/bufferpool"
)

// Player errors.
var (
	// ErrChannelFull is returned when the command channel is at capacity.
	ErrChannelFull = errors.New("command channel full")
	// ErrClosed is returned when commanding a disposed player.
	ErrClosed = errors.New("player closed")
)

// Hooks lets front-ends observe and shape the player. Before-hooks may
// transform or veto; all hooks are optional.
type Hooks struct {
	OnStarted      func()
	OnStateChanged func(State)
	OnTrackChanged func(*track.Track)
	OnSessionEnded func(track.Track, EndResult)

	// OnBeforeEnqueue may filter the tracks; returning an empty slice
	// suppresses the enqueue.
	OnBeforeEnqueue func([]track.Track) []track.Track
	OnAfterEnqueue  func([]track.Track)

	// OnBeforePlayNow may replace the track; returning nil suppresses the
	// action.
	OnBeforePlayNow func(track.Track) *track.Track
	OnAfterPlayNow  func(track.Track)

	OnLoopFaulted func(error)
}

// Options configures a Player. Zero values take defaults.
type Options struct {
	QueueCapacity int
	MaxAttempts   int
	RetryBase     time.Duration
	Profile       pcm.Profile
	BufferSize    int
}

// Player is the public transport surface. Every call lowers to a command on
// the loop's channel.
type Player struct {
	loop  *loop
	snk   sink.AudioSink
	src   source.AudioSource
	log   *zap.SugaredLogger
	hooks Hooks

	mu       sync.Mutex
	started  bool
	disposed bool
	cancel   context.CancelFunc
	runDone  chan struct{}
	runErr   error
}

// New creates a Player around the given source and sink. Call Start before
// issuing transport commands and Dispose when done.
func New(src source.AudioSource, snk sink.AudioSink, opts Options, h Hooks, log *zap.SugaredLogger) *Player {
	lo := defaultLoopOptions()
	if opts.QueueCapacity > 0 {
		lo.queueCapacity = opts.QueueCapacity
	}
	if opts.MaxAttempts > 0 {
		lo.maxAttempts = opts.MaxAttempts
	}
	if opts.RetryBase > 0 {
		lo.retryBase = opts.RetryBase
	}
	if opts.Profile.SampleRate > 0 {
		lo.profile = opts.Profile
	}
	if opts.BufferSize > 0 {
		lo.pool = bufferpool.New(opts.BufferSize)
	}

	p := &Player{snk: snk, src: src, log: log, runDone: make(chan struct{})}
	p.loop = newLoop(src, snk, lo, hooks{
		onStateChanged: h.OnStateChanged,
		onTrackChanged: h.OnTrackChanged,
		onSessionEnded: h.OnSessionEnded,
		onLoopFaulted:  h.OnLoopFaulted,
	}, log)
	p.hooks = h
	return p
}

// Start launches the playback loop. It is idempotent; a second call is a
// no-op.
func (p *Player) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.disposed {
		return
	}
	p.started = true

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go func() {
		p.runErr = p.loop.run(ctx)
		close(p.runDone)
	}()

	if p.hooks.OnStarted != nil {
		p.hooks.OnStarted()
	}
}

// Enqueue appends tracks to the back of the queue.
func (p *Player) Enqueue(tracks ...track.Track) {
	if p.hooks.OnBeforeEnqueue != nil {
		tracks = p.hooks.OnBeforeEnqueue(tracks)
	}
	if len(tracks) == 0 {
		return
	}
	if err := p.send(command{tag: cmdEnqueueTracks, tracks: tracks}); err != nil {
		p.log.Warnf("enqueue dropped: %v", err)
		return
	}
	if p.hooks.OnAfterEnqueue != nil {
		p.hooks.OnAfterEnqueue(tracks)
	}
}

// PlayNow pre-empts the current session and plays t immediately, removing any
// queued entries with the same URI.
func (p *Player) PlayNow(t track.Track) {
	if p.hooks.OnBeforePlayNow != nil {
		replaced := p.hooks.OnBeforePlayNow(t)
		if replaced == nil {
			return
		}
		t = *replaced
	}
	if err := p.send(command{tag: cmdPlayNow, track: t}); err != nil {
		p.log.Warnf("play-now dropped: %v", err)
		return
	}
	if p.hooks.OnAfterPlayNow != nil {
		p.hooks.OnAfterPlayNow(t)
	}
}

// Pause stalls the copy loop before its next read. No-op unless playing.
func (p *Player) Pause() {
	p.sendLogged(command{tag: cmdPause})
}

// Resume releases a paused session. No-op unless paused.
func (p *Player) Resume() {
	p.sendLogged(command{tag: cmdResume})
}

// Skip cancels the current session; the next queued track follows.
func (p *Player) Skip() {
	p.sendLogged(command{tag: cmdSkip})
}

// Stop cancels the current session and clears the queue. Errors sending the
// command are swallowed and logged.
func (p *Player) Stop() {
	p.sendLogged(command{tag: cmdStop})
}

// Clear empties the pending queue without touching the current session.
func (p *Player) Clear() {
	p.sendLogged(command{tag: cmdClear})
}

// send rejects commands on a disposed player with ErrClosed, otherwise
// forwarding to the loop's channel.
func (p *Player) send(cmd command) error {
	p.mu.Lock()
	disposed := p.disposed
	p.mu.Unlock()
	if disposed {
		return ErrClosed
	}
	return p.loop.send(cmd)
}

func (p *Player) sendLogged(cmd command) {
	if err := p.send(cmd); err != nil {
		p.log.Warnf("%s dropped: %v", cmd.tag, err)
	}
}

// State returns the player state.
func (p *Player) State() State {
	return p.loop.State()
}

// RepeatMode returns the repeat mode.
func (p *Player) RepeatMode() RepeatMode {
	return RepeatMode(p.loop.repeat.Load())
}

// SetRepeatMode sets the repeat mode. The next repeat-policy application uses
// the latest observed value.
func (p *Player) SetRepeatMode(m RepeatMode) {
	p.loop.repeat.Store(int32(m))
}

// Shuffle reports whether dequeue picks randomly.
func (p *Player) Shuffle() bool {
	return p.loop.shuffle.Load()
}

// SetShuffle toggles random dequeue. The next dequeue uses the latest
// observed value.
func (p *Player) SetShuffle(on bool) {
	p.loop.shuffle.Store(on)
}

// CurrentSession snapshots the live session, or returns nil with zero
// elapsed when nothing is playing.
func (p *Player) CurrentSession() (*SessionInfo, time.Duration) {
	return p.loop.sessionSnapshot()
}

// QueueSnapshot returns a copy of the pending tracks.
func (p *Player) QueueSnapshot() []track.Track {
	return p.loop.queueSnapshot()
}

// Dispose performs a soft stop, cancels the loop's lifetime, awaits its
// termination, and closes the sink and source. The cancellation sentinel is
// absorbed; a loop fault surfaces through OnLoopFaulted.
func (p *Player) Dispose() {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return
	}
	p.disposed = true
	started := p.started
	p.mu.Unlock()

	if started {
		// Soft stop goes straight to the loop: the facade surface is
		// already closed to callers at this point.
		if err := p.loop.send(command{tag: cmdStop}); err != nil {
			p.log.Warnf("stop dropped: %v", err)
		}
		p.cancel()
		<-p.runDone
	}

	if err := p.snk.Close(); err != nil {
		p.log.Warnf("sink close: %v", err)
	}
	if err := p.src.Close(); err != nil {
		p.log.Warnf("source close: %v", err)
	}
}
