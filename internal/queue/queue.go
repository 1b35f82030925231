// Package queue manages the pending playback queue.
package queue

import (
	"math/rand"
	"time"

	"github.com/dancret/groovebox/internal/track"
)

// Queue is an ordered sequence of tracks. It is not safe for concurrent use;
// the playback loop is its sole mutator.
type Queue struct {
	items []track.Track
	rng   *rand.Rand
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		items: make([]track.Track, 0),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// EnqueueBack appends tracks to the end of the queue, preserving order.
func (q *Queue) EnqueueBack(tracks ...track.Track) {
	q.items = append(q.items, tracks...)
}

// EnqueueFront makes t the next track to be dequeued in sequential mode.
func (q *Queue) EnqueueFront(t track.Track) {
	q.items = append([]track.Track{t}, q.items...)
}

// DequeueNext removes and returns the next track. In sequential mode that is
// the front; with shuffle a uniformly random element. Returns false on empty.
func (q *Queue) DequeueNext(shuffle bool) (track.Track, bool) {
	if len(q.items) == 0 {
		return track.Track{}, false
	}

	idx := 0
	if shuffle {
		idx = q.rng.Intn(len(q.items))
	}

	t := q.items[idx]
	q.items = append(q.items[:idx], q.items[idx+1:]...)
	return t, true
}

// Clear removes all pending tracks.
func (q *Queue) Clear() {
	q.items = q.items[:0]
}

// RemoveAllByURI removes every track whose URI matches, preserving the
// relative order of the survivors. Returns the number removed.
func (q *Queue) RemoveAllByURI(uri string) int {
	kept := q.items[:0]
	removed := 0
	for _, t := range q.items {
		if t.URI == uri {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	q.items = kept
	return removed
}

// Snapshot returns a copy of the pending tracks in order.
func (q *Queue) Snapshot() []track.Track {
	out := make([]track.Track, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the number of pending tracks.
func (q *Queue) Len() int {
	return len(q.items)
}
