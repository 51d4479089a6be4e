// Package webrtc carries a voice call over a WebRTC peer connection.
//
// [PeerTransport] is the narrow surface the voice session needs: publish the
// microphone, receive the far end's audio, open a data channel for control
// events and run the offer/answer exchange. [Transport] implements it with
// pion/webrtc; tests substitute their own.
package webrtc

import (
	"context"
	"errors"

	"github.com/MrWong99/strategydeck/pkg/audio"
)

// ErrPeerFailed is passed to the disconnect callback when ICE gives up on the
// connection.
var ErrPeerFailed = errors.New("webrtc: peer connection failed")

// ErrPeerClosed is passed to the disconnect callback when the connection
// closes without a local Close.
var ErrPeerClosed = errors.New("webrtc: peer connection closed")

// PeerTransport abstracts a single peer connection.
type PeerTransport interface {
	// AddLocalStream publishes s as the outgoing audio track. Packets are
	// forwarded until s is stopped or the transport is closed.
	AddLocalStream(s audio.Stream) error

	// OnRemoteTrack registers the callback invoked for each incoming audio
	// track. It must be set before the offer is created.
	OnRemoteTrack(fn func(audio.RemoteTrack))

	// OnDisconnect registers fn, called at most once when the connection is
	// lost for a reason other than a local Close.
	OnDisconnect(fn func(err error))

	// OpenEventChannel creates a data channel. It opens once negotiation
	// completes.
	OpenEventChannel(label string) (EventChannel, error)

	// CreateOffer returns the local SDP offer with ICE candidates gathered.
	CreateOffer(ctx context.Context) (string, error)

	// AcceptAnswer applies the remote SDP answer.
	AcceptAnswer(ctx context.Context, sdp string) error

	// Close tears down the connection. It is idempotent.
	Close() error
}

// EventChannel is an ordered, reliable message channel next to the media.
// Callbacks run on transport goroutines and must not block.
type EventChannel interface {
	Label() string
	OnOpen(fn func())
	OnMessage(fn func(data []byte))
	OnError(fn func(err error))
	OnClose(fn func())
	Send(data []byte) error
	Close() error
}
