// Package sink provides audio sinks that consume raw PCM. A slow sink applies
// back-pressure by blocking Write.
package sink

import "context"

// AudioSink consumes PCM bytes in the player's fixed profile.
type AudioSink interface {
	// Write consumes p. Suspension of the call is the back-pressure signal.
	Write(ctx context.Context, p []byte) error

	// Complete flushes per-track state. It may be a no-op.
	Complete(ctx context.Context) error

	// Close flushes, closes, and waits bounded-then-force for any child
	// process.
	Close() error
}
