// Package pcm defines the raw audio interchange format between source and sink.
// All decoded audio traverses the pipeline as 48kHz stereo s16le.
package pcm

import "time"

// Profile describes an interleaved PCM byte stream.
type Profile struct {
	SampleRate     int // Sample rate in Hz (default: 48000)
	Channels       int // Number of channels (default: 2 for stereo)
	BytesPerSample int // Bytes per sample per channel (2 for s16le)
}

// Default returns the profile every source and sink in this player speaks.
func Default() Profile {
	return Profile{
		SampleRate:     48000,
		Channels:       2,
		BytesPerSample: 2,
	}
}

// BytesPerSecond returns the byte rate of the profile.
func (p Profile) BytesPerSecond() int {
	return p.SampleRate * p.Channels * p.BytesPerSample
}

// Duration converts a byte count into playback time.
func (p Profile) Duration(bytes int64) time.Duration {
	rate := int64(p.BytesPerSecond())
	if rate <= 0 {
		return 0
	}
	return time.Duration(bytes * int64(time.Second) / rate)
}

// Bytes converts a playback duration into a byte count.
func (p Profile) Bytes(d time.Duration) int64 {
	return int64(d) * int64(p.BytesPerSecond()) / int64(time.Second)
}
