// Package source provides audio sources that open tracks as raw PCM byte
// streams in the player's fixed profile.
package source

import (
	"context"

	"github.com/dancret/groovebox/internal/track"
)

// Reader is a cancellable byte stream of decoded PCM.
type Reader interface {
	// Read fills p with decoded bytes. It returns 0, io.EOF at end of stream.
	Read(ctx context.Context, p []byte) (int, error)

	// Close releases the stream. Any backing subprocess is given a bounded
	// grace to exit and is then force-killed.
	Close() error
}

// AudioSource opens tracks as PCM readers.
type AudioSource interface {
	// OpenReader starts decoding the track. Failures are treated by callers
	// as transient retry candidates.
	OpenReader(ctx context.Context, t track.Track) (Reader, error)

	// Name returns the source implementation name.
	Name() string

	// Close releases any long-lived resources held by the source.
	Close() error
}
