package player

import (
	"time"

	"github.com/dancret/groovebox/internal/track"
)

// State is the public player state.
type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// RepeatMode controls re-enqueueing after a track completes naturally.
type RepeatMode int

const (
	RepeatNone RepeatMode = iota
	RepeatOne
	RepeatAll
)

// String returns the string representation of the repeat mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatNone:
		return "off"
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "unknown"
	}
}

// EndReason classifies how a session finished.
type EndReason int

const (
	EndCompleted EndReason = iota
	EndCancelled
	EndFailed
)

// String returns the string representation of the end reason.
func (r EndReason) String() string {
	switch r {
	case EndCompleted:
		return "completed"
	case EndCancelled:
		return "cancelled"
	case EndFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// EndResult describes the outcome of one session. Err is set only when
// Reason is EndFailed and an underlying cause is known.
type EndResult struct {
	Reason  EndReason
	Details string
	Err     error
}

// SessionInfo is a snapshot of the live session, projected for observers.
type SessionInfo struct {
	Track     track.Track
	State     State
	StartedAt time.Time
}

// command is the tagged variant consumed by the playback loop. Exactly one
// field group is meaningful per tag.
type command struct {
	tag commandTag

	tracks []track.Track // enqueueTracks
	track  track.Track   // playNow

	// sessionEnded (internal)
	session *session
	result  EndResult
}

type commandTag int

const (
	cmdEnqueueTracks commandTag = iota
	cmdPlayNow
	cmdPause
	cmdResume
	cmdSkip
	cmdStop
	cmdClear
	cmdSessionEnded
)

func (t commandTag) String() string {
	switch t {
	case cmdEnqueueTracks:
		return "enqueue"
	case cmdPlayNow:
		return "play-now"
	case cmdPause:
		return "pause"
	case cmdResume:
		return "resume"
	case cmdSkip:
		return "skip"
	case cmdStop:
		return "stop"
	case cmdClear:
		return "clear"
	case cmdSessionEnded:
		return "session-ended"
	default:
		return "unknown"
	}
}
