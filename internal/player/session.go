package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dancret/groovebox/internal/pcm"
	"github.com/dancret/groovebox/internal/sink"
	"github.com/dancret/groovebox/internal/source"
	"github.com/dancret/groovebox/internal/track"
	"github.com/dancret/groovebox/pkg/bufferpool"
)

// Retry configuration.
const (
	// DefaultMaxAttempts is how many times a session tries a track before
	// giving up.
	DefaultMaxAttempts = 3
	// DefaultRetryBase is the linear backoff unit between attempts.
	DefaultRetryBase = 200 * time.Millisecond
)

// Progress is reported at whichever boundary arrives first.
const (
	progressBytesStep = 1 << 20 // 1 MiB
	progressTimeStep  = 5 * time.Second
)

// errSink marks a sink failure, which is fatal for the session rather than a
// transient retry candidate.
var errSink = errors.New("sink error")

// session drives one track's playback attempts. It owns its reader; the loop
// owns the session.
type session struct {
	id        string
	track     track.Track
	src       source.AudioSource
	snk       sink.AudioSink
	gate      *PauseGate
	startedAt time.Time

	maxAttempts int
	retryBase   time.Duration
	profile     pcm.Profile
	pool        *bufferpool.Pool
	log         *zap.SugaredLogger

	cancel context.CancelFunc
	done   chan struct{}
	result EndResult
	bytes  atomic.Int64 // read by status observers off the session goroutine
}

func newSession(t track.Track, src source.AudioSource, snk sink.AudioSink, opts loopOptions, log *zap.SugaredLogger) *session {
	id := uuid.NewString()
	return &session{
		id:          id,
		track:       t,
		src:         src,
		snk:         snk,
		gate:        NewPauseGate(true), // starts unpaused
		startedAt:   time.Now(),
		maxAttempts: opts.maxAttempts,
		retryBase:   opts.retryBase,
		profile:     opts.profile,
		pool:        opts.pool,
		log:         log.With("session", shortID(id)),
		done:        make(chan struct{}),
	}
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// pause resets the gate; the copy loop parks before its next read.
func (s *session) pause() {
	s.gate.Reset()
}

// resume releases the gate.
func (s *session) resume() {
	s.gate.Set()
}

// info projects an observer snapshot.
func (s *session) info(state State) SessionInfo {
	return SessionInfo{Track: s.track, State: state, StartedAt: s.startedAt}
}

// elapsed is the audio position implied by bytes streamed so far.
func (s *session) elapsed() time.Duration {
	return s.profile.Duration(s.bytes.Load())
}

// dispose releases any parked waiter. The loop cancels the session's lifetime
// before calling this.
func (s *session) dispose() {
	s.gate.Set()
}

// run performs up to maxAttempts attempts and returns the end result. It is
// called once, on the session goroutine.
func (s *session) run(ctx context.Context) EndResult {
	var lastErr error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err := s.attempt(ctx)
		if err == nil {
			s.log.Infof("completed %s (%d bytes, %s)", s.track.URI, s.bytes.Load(), s.elapsed().Round(time.Second))
			return EndResult{Reason: EndCompleted}
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return EndResult{Reason: EndCancelled, Details: "cancelled"}
		}
		lastErr = err
		if errors.Is(err, errSink) {
			break
		}

		s.log.Warnf("attempt %d/%d for %s failed: %v", attempt, s.maxAttempts, s.track.URI, err)
		if attempt < s.maxAttempts {
			select {
			case <-ctx.Done():
				return EndResult{Reason: EndCancelled, Details: "cancelled"}
			case <-time.After(time.Duration(attempt) * s.retryBase):
			}
		}
	}

	if lastErr != nil {
		return EndResult{Reason: EndFailed, Details: lastErr.Error(), Err: lastErr}
	}
	return EndResult{Reason: EndFailed, Details: "maximum attempts reached"}
}

// attempt opens a reader and pumps it into the sink until end of stream. The
// gate is awaited before each read so no decoded input is stranded in flight
// when paused; a write already issued completes.
func (s *session) attempt(ctx context.Context) error {
	reader, err := s.src.OpenReader(ctx, s.track)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.track.URI, err)
	}
	defer reader.Close()

	buf := s.pool.Get()
	defer s.pool.Put(buf)

	var nextReportBytes int64 = progressBytesStep
	nextReportTime := progressTimeStep

	for {
		if err := s.gate.Wait(ctx); err != nil {
			return err
		}

		n, err := reader.Read(ctx, buf)
		if n > 0 {
			if werr := s.snk.Write(ctx, buf[:n]); werr != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("%w: %v", errSink, werr)
			}
			total := s.bytes.Add(int64(n))

			if total >= nextReportBytes || s.elapsed() >= nextReportTime {
				s.log.Debugf("position %s (%d bytes)", formatElapsed(s.elapsed()), total)
				for nextReportBytes <= total {
					nextReportBytes += progressBytesStep
				}
				for nextReportTime <= s.elapsed() {
					nextReportTime += progressTimeStep
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("read %s: %w", s.track.URI, err)
		}
	}

	if err := s.snk.Complete(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", errSink, err)
	}
	return nil
}

// formatElapsed renders a duration as mm:ss.
func formatElapsed(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
