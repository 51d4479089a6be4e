// Package audio defines the media abstractions a voice call is built from:
// a capture [Stream] obtained from a [Source], incoming [RemoteTrack]s, and a
// [Sink] that plays them.
//
// Device and transport packages implement these interfaces; the voice
// session only ever talks to them through this package.
package audio

import "context"

// Stream is a live capture stream, typically the microphone.
//
// Packets delivers Opus packets until Stop is called, after which the channel
// is closed. A disabled stream keeps delivering packets, but they carry
// silence. Implementations must be safe for concurrent use.
type Stream interface {
	Packets() <-chan Packet
	SetEnabled(enabled bool)
	Enabled() bool

	// Stop releases the capture device. It is idempotent.
	Stop() error
}

// Source acquires capture streams. Acquire fails when the device is missing
// or access is denied.
type Source interface {
	Acquire(ctx context.Context) (Stream, error)
}

// RemoteTrack is an incoming audio track from the far end of a call.
type RemoteTrack interface {
	ID() string

	// ReadPacket blocks until the next packet arrives. It returns an error
	// once the track has ended.
	ReadPacket() (Packet, error)
}

// Sink plays remote audio.
type Sink interface {
	// Attach starts playing track, replacing any previously attached track.
	Attach(track RemoteTrack) error

	// Remove stops playback and releases the output device. It is idempotent.
	Remove() error
}
