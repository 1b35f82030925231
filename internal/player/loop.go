package player

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dancret/groovebox/internal/pcm"
	"github.com/dancret/groovebox/internal/queue"
	"github.com/dancret/groovebox/internal/sink"
	"github.com/dancret/groovebox/internal/source"
	"github.com/dancret/groovebox/internal/track"
	"github.com/dancret/groovebox/pkg/bufferpool"
)

// DefaultQueueCapacity bounds the command channel.
const DefaultQueueCapacity = 256

// DefaultBufferSize is the pooled transfer buffer size for the copy loop.
const DefaultBufferSize = 80 * 1024

// hooks are invoked synchronously from the loop's step.
type hooks struct {
	onStateChanged func(State)
	onTrackChanged func(*track.Track) // nil when playback runs out of tracks
	onSessionEnded func(track.Track, EndResult)
	onLoopFaulted  func(error)
}

type loopOptions struct {
	queueCapacity int
	maxAttempts   int
	retryBase     time.Duration
	profile       pcm.Profile
	pool          *bufferpool.Pool
}

func defaultLoopOptions() loopOptions {
	return loopOptions{
		queueCapacity: DefaultQueueCapacity,
		maxAttempts:   DefaultMaxAttempts,
		retryBase:     DefaultRetryBase,
		profile:       pcm.Default(),
		pool:          bufferpool.New(DefaultBufferSize),
	}
}

// loop is the single consumer of the command channel. It exclusively owns the
// queue and the current session; every state transition happens on its
// goroutine.
type loop struct {
	opts  loopOptions
	src   source.AudioSource
	snk   sink.AudioSink
	log   *zap.SugaredLogger
	cmds  chan command
	q     *queue.Queue
	hooks hooks

	// repeat and shuffle may be flipped from outside the loop; they are read
	// only at dequeue and repeat-policy time, so the latest observed value
	// wins.
	repeat  atomic.Int32
	shuffle atomic.Bool

	// qMu guards the queue only for snapshot readers; the loop goroutine is
	// the sole mutator.
	qMu sync.Mutex

	state       State       // loop goroutine only
	stateShared atomic.Int32 // mirror for observers
	stopped     bool         // latched by Stop, cleared by enqueue/play-now

	current   *session
	curMu     sync.Mutex
	curShared *session // mirror of current for observers
}

func newLoop(src source.AudioSource, snk sink.AudioSink, opts loopOptions, h hooks, log *zap.SugaredLogger) *loop {
	if opts.queueCapacity <= 0 {
		opts.queueCapacity = DefaultQueueCapacity
	}
	if opts.pool == nil {
		opts.pool = bufferpool.New(DefaultBufferSize)
	}
	if opts.maxAttempts <= 0 {
		opts.maxAttempts = DefaultMaxAttempts
	}
	if opts.retryBase <= 0 {
		opts.retryBase = DefaultRetryBase
	}
	if opts.profile.SampleRate == 0 {
		opts.profile = pcm.Default()
	}
	return &loop{
		opts:  opts,
		src:   src,
		snk:   snk,
		log:   log,
		cmds:  make(chan command, opts.queueCapacity),
		q:     queue.New(),
		hooks: h,
	}
}

// send enqueues a command without blocking. A full channel is reported to the
// caller; commanding a dead loop is the caller's problem to log.
func (l *loop) send(cmd command) error {
	select {
	case l.cmds <- cmd:
		return nil
	default:
		return fmt.Errorf("%w (capacity %d)", ErrChannelFull, l.opts.queueCapacity)
	}
}

// run consumes commands until ctx is cancelled. A fault in the loop body
// terminates it and is returned; command handler panics are contained.
func (l *loop) run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("playback loop fault: %v", r)
		}
		l.releaseOnExit()
		if err != nil && err != context.Canceled && l.hooks.onLoopFaulted != nil {
			l.hooks.onLoopFaulted(err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-l.cmds:
			l.handle(ctx, cmd)
			l.maybeStart(ctx)
		}
	}
}

// handle dispatches one command. Panics are logged and the loop continues.
func (l *loop) handle(ctx context.Context, cmd command) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Errorf("command %s panicked: %v", cmd.tag, r)
		}
	}()

	switch cmd.tag {
	case cmdEnqueueTracks:
		l.withQueue(func() { l.q.EnqueueBack(cmd.tracks...) })
		l.stopped = false

	case cmdPlayNow:
		l.stopped = false
		l.preemptCurrent()
		l.withQueue(func() { l.q.RemoveAllByURI(cmd.track.URI) })
		l.startTrack(ctx, cmd.track)

	case cmdPause:
		if l.current != nil && l.state == StatePlaying {
			l.current.pause()
			l.setState(StatePaused)
		}

	case cmdResume:
		if l.current != nil && l.state == StatePaused {
			l.current.resume()
			l.setState(StatePlaying)
		}

	case cmdSkip:
		if l.current != nil {
			l.log.Infof("skipping %s", l.current.track.URI)
			l.current.cancel()
		}

	case cmdStop:
		l.stopped = true
		l.withQueue(l.q.Clear)
		if l.current != nil {
			l.current.cancel()
		} else {
			l.setState(StateStopped)
		}

	case cmdClear:
		l.withQueue(l.q.Clear)

	case cmdSessionEnded:
		l.handleSessionEnded(cmd)
	}
}

// handleSessionEnded releases the session, fires the hook, and applies the
// repeat policy. A result for a session already consumed by preemption is
// dropped.
func (l *loop) handleSessionEnded(cmd command) {
	s := cmd.session
	if s != l.current {
		return
	}
	l.release(s)
	l.publishSessionEnded(s.track, cmd.result)

	// Re-enqueue keys off natural completion only: a skipped or failed track
	// never comes back on its own.
	if cmd.result.Reason == EndCompleted {
		switch RepeatMode(l.repeat.Load()) {
		case RepeatOne:
			l.withQueue(func() { l.q.EnqueueFront(s.track) })
		case RepeatAll:
			l.withQueue(func() { l.q.EnqueueBack(s.track) })
		}
	}

	if l.stopped {
		l.setState(StateStopped)
	}
}

// startTrack creates and launches a session for t. Its termination comes back
// through the command channel, serialised with user commands.
func (l *loop) startTrack(ctx context.Context, t track.Track) {
	sessCtx, cancel := context.WithCancel(ctx)
	s := newSession(t, l.src, l.snk, l.opts, l.log)
	s.cancel = cancel

	l.current = s
	l.curMu.Lock()
	l.curShared = s
	l.curMu.Unlock()

	l.setState(StatePlaying)
	l.publishTrackChanged(&t)
	l.log.Infof("playing %s (%s)", t.Title, t.URI)

	go func() {
		res := s.run(sessCtx)
		s.result = res
		close(s.done)
		select {
		case l.cmds <- command{tag: cmdSessionEnded, session: s, result: res}:
		case <-ctx.Done():
		}
	}()
}

// preemptCurrent cancels and fully disposes the running session before the
// caller starts a successor. Its end is published here; the stale
// session-ended command is dropped when it surfaces.
func (l *loop) preemptCurrent() {
	s := l.current
	if s == nil {
		return
	}
	s.cancel()
	<-s.done
	l.release(s)
	l.publishSessionEnded(s.track, s.result)
}

// release disposes the session and clears current.
func (l *loop) release(s *session) {
	s.cancel()
	s.dispose()
	l.current = nil
	l.curMu.Lock()
	l.curShared = nil
	l.curMu.Unlock()
}

// maybeStart autostarts the next track after any command, unless stopped. On
// an exhausted queue the player goes idle.
func (l *loop) maybeStart(ctx context.Context) {
	if l.current != nil || l.stopped || ctx.Err() != nil {
		return
	}
	var (
		t  track.Track
		ok bool
	)
	l.withQueue(func() { t, ok = l.q.DequeueNext(l.shuffle.Load()) })
	if ok {
		l.startTrack(ctx, t)
		return
	}
	if l.state != StateIdle && l.state != StateStopped {
		l.publishTrackChanged(nil)
		l.setState(StateIdle)
	}
}

// releaseOnExit tears down any live session when the loop's lifetime ends.
func (l *loop) releaseOnExit() {
	s := l.current
	if s == nil {
		return
	}
	s.cancel()
	<-s.done
	l.release(s)
	l.publishSessionEnded(s.track, s.result)
}

func (l *loop) setState(next State) {
	if l.state == next {
		return
	}
	l.state = next
	l.stateShared.Store(int32(next))
	if l.hooks.onStateChanged != nil {
		l.hooks.onStateChanged(next)
	}
}

func (l *loop) publishTrackChanged(t *track.Track) {
	if l.hooks.onTrackChanged != nil {
		l.hooks.onTrackChanged(t)
	}
}

func (l *loop) publishSessionEnded(t track.Track, res EndResult) {
	switch res.Reason {
	case EndFailed:
		l.log.Warnf("session for %s failed: %s", t.URI, res.Details)
	default:
		l.log.Debugf("session for %s ended: %s", t.URI, res.Reason)
	}
	if l.hooks.onSessionEnded != nil {
		l.hooks.onSessionEnded(t, res)
	}
}

// State is safe to read from any goroutine.
func (l *loop) State() State {
	return State(l.stateShared.Load())
}

// sessionSnapshot projects the live session for observers, or nil.
func (l *loop) sessionSnapshot() (*SessionInfo, time.Duration) {
	l.curMu.Lock()
	s := l.curShared
	l.curMu.Unlock()
	if s == nil {
		return nil, 0
	}
	info := s.info(l.State())
	return &info, s.elapsed()
}

// withQueue runs fn with the snapshot guard held.
func (l *loop) withQueue(fn func()) {
	l.qMu.Lock()
	defer l.qMu.Unlock()
	fn()
}

// queueSnapshot returns a copy of the pending tracks. Safe from any goroutine.
func (l *loop) queueSnapshot() []track.Track {
	l.qMu.Lock()
	defer l.qMu.Unlock()
	return l.q.Snapshot()
}
