// Package mock provides in-memory implementations of the [audio.Source],
// [audio.Stream], [audio.RemoteTrack] and [audio.Sink] interfaces for tests.
//
// All mocks are safe for concurrent use. They record calls so tests can
// assert on them, and expose exported fields that control return values.
//
//	stream := mock.NewStream()
//	src := &mock.Source{Stream: stream}
//	s, err := src.Acquire(ctx)
//	...
//	if !stream.Stopped() { t.Error("microphone left open") }
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/MrWong99/strategydeck/pkg/audio"
)

var (
	_ audio.Source      = (*Source)(nil)
	_ audio.Stream      = (*Stream)(nil)
	_ audio.RemoteTrack = (*RemoteTrack)(nil)
	_ audio.Sink        = (*Sink)(nil)
)

// ErrTrackEnded is returned by [RemoteTrack.ReadPacket] after End.
var ErrTrackEnded = errors.New("mock: track ended")

// ─── Source ───────────────────────────────────────────────────────────────────

// Source is a mock [audio.Source].
type Source struct {
	mu sync.Mutex

	// Stream is returned by Acquire. When it is nil or already stopped,
	// Acquire replaces it with a fresh [NewStream].
	Stream *Stream

	// AcquireErr, if set, is returned by Acquire.
	AcquireErr error

	// AcquireCalls counts Acquire invocations.
	AcquireCalls int
}

// Acquire implements [audio.Source].
func (s *Source) Acquire(ctx context.Context) (audio.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AcquireCalls++
	if s.AcquireErr != nil {
		return nil, s.AcquireErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Stream == nil || s.Stream.Stopped() {
		s.Stream = NewStream()
	}
	return s.Stream, nil
}

// ─── Stream ───────────────────────────────────────────────────────────────────

// Stream is a mock [audio.Stream]. Tests feed packets with [Stream.Push].
type Stream struct {
	mu        sync.Mutex
	packets   chan audio.Packet
	enabled   bool
	stopped   bool
	stopCalls int
}

// NewStream returns an enabled stream with a small packet buffer.
func NewStream() *Stream {
	return &Stream{packets: make(chan audio.Packet, 16), enabled: true}
}

// Packets implements [audio.Stream].
func (s *Stream) Packets() <-chan audio.Packet { return s.packets }

// SetEnabled implements [audio.Stream].
func (s *Stream) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// Enabled implements [audio.Stream].
func (s *Stream) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Stop implements [audio.Stream]. The packet channel is closed on the first call.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCalls++
	if !s.stopped {
		s.stopped = true
		close(s.packets)
	}
	return nil
}

// Push delivers p to the consumer. It reports false once the stream is stopped
// or the buffer is full.
func (s *Stream) Push(p audio.Packet) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	select {
	case s.packets <- p:
		return true
	default:
		return false
	}
}

// Stopped reports whether Stop has been called.
func (s *Stream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// StopCalls returns how many times Stop was called.
func (s *Stream) StopCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCalls
}

// ─── RemoteTrack ──────────────────────────────────────────────────────────────

// RemoteTrack is a mock [audio.RemoteTrack].
type RemoteTrack struct {
	TrackID string

	packets chan audio.Packet
	once    sync.Once
}

// NewRemoteTrack returns a track that yields packets sent with Send.
func NewRemoteTrack(id string) *RemoteTrack {
	return &RemoteTrack{TrackID: id, packets: make(chan audio.Packet, 16)}
}

// ID implements [audio.RemoteTrack].
func (t *RemoteTrack) ID() string { return t.TrackID }

// ReadPacket implements [audio.RemoteTrack].
func (t *RemoteTrack) ReadPacket() (audio.Packet, error) {
	p, ok := <-t.packets
	if !ok {
		return audio.Packet{}, ErrTrackEnded
	}
	return p, nil
}

// Send queues p for ReadPacket.
func (t *RemoteTrack) Send(p audio.Packet) { t.packets <- p }

// End makes subsequent reads fail with [ErrTrackEnded].
func (t *RemoteTrack) End() { t.once.Do(func() { close(t.packets) }) }

// ─── Sink ─────────────────────────────────────────────────────────────────────

// Sink is a mock [audio.Sink].
type Sink struct {
	mu sync.Mutex

	// AttachErr, if set, is returned by Attach.
	AttachErr error

	attached    []audio.RemoteTrack
	removeCalls int
	removed     bool
}

// Attach implements [audio.Sink].
func (s *Sink) Attach(track audio.RemoteTrack) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AttachErr != nil {
		return s.AttachErr
	}
	s.attached = append(s.attached, track)
	s.removed = false
	return nil
}

// Remove implements [audio.Sink].
func (s *Sink) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeCalls++
	s.removed = true
	return nil
}

// Attached returns the tracks attached so far, in order.
func (s *Sink) Attached() []audio.RemoteTrack {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audio.RemoteTrack(nil), s.attached...)
}

// Removed reports whether Remove was called after the last Attach.
func (s *Sink) Removed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removed
}

// RemoveCalls returns how many times Remove was called.
func (s *Sink) RemoveCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeCalls
}
