// Package mock provides hand-written test doubles for the collaborators of a
// [voice.Session]: the credential source, the SDP negotiator and the peer
// transport with its event channel.
//
// All mocks are safe for concurrent use and record their calls.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/MrWong99/strategydeck/internal/voice"
	"github.com/MrWong99/strategydeck/pkg/audio"
	"github.com/MrWong99/strategydeck/pkg/audio/webrtc"
)

var (
	_ voice.CredentialSource = (*Credentials)(nil)
	_ voice.Negotiator       = (*Negotiator)(nil)
	_ webrtc.PeerTransport   = (*Transport)(nil)
	_ webrtc.EventChannel    = (*Channel)(nil)
)

// ─── Credentials ──────────────────────────────────────────────────────────────

// Credentials is a mock [voice.CredentialSource].
type Credentials struct {
	mu sync.Mutex

	// Result is returned when Err is nil. An empty Value defaults to "ek_test".
	Result voice.Credential
	Err    error

	// Block, if set, makes Credential wait for ctx to be done.
	Block bool

	Calls int
}

// Credential implements [voice.CredentialSource].
func (c *Credentials) Credential(ctx context.Context) (voice.Credential, error) {
	c.mu.Lock()
	c.Calls++
	block, res, err := c.Block, c.Result, c.Err
	c.mu.Unlock()

	if block {
		<-ctx.Done()
		return voice.Credential{}, ctx.Err()
	}
	if err != nil {
		return voice.Credential{}, err
	}
	if res.Value == "" {
		res.Value = "ek_test"
	}
	return res, nil
}

// ─── Negotiator ───────────────────────────────────────────────────────────────

// NegotiateCall records one Negotiate invocation.
type NegotiateCall struct {
	Credential voice.Credential
	Offer      string
}

// Negotiator is a mock [voice.Negotiator].
type Negotiator struct {
	mu sync.Mutex

	// Answer is returned when Err is nil.
	Answer string
	Err    error

	calls []NegotiateCall
}

// Negotiate implements [voice.Negotiator].
func (n *Negotiator) Negotiate(_ context.Context, cred voice.Credential, offer string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, NegotiateCall{Credential: cred, Offer: offer})
	if n.Err != nil {
		return "", n.Err
	}
	if n.Answer == "" {
		return "v=0\r\ns=answer\r\n", nil
	}
	return n.Answer, nil
}

// Calls returns a copy of the recorded calls.
func (n *Negotiator) Calls() []NegotiateCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]NegotiateCall(nil), n.calls...)
}

// ─── Transport ────────────────────────────────────────────────────────────────

// ErrClosed is returned by Transport and Channel operations after Close.
var ErrClosed = errors.New("mock: transport closed")

// Transport is a mock [webrtc.PeerTransport]. Set the *Err fields to inject
// failures; use Channel and EmitRemoteTrack to drive callbacks.
type Transport struct {
	mu sync.Mutex

	AddLocalStreamErr error
	OpenChannelErr    error
	CreateOfferErr    error
	AcceptAnswerErr   error

	// Offer is returned by CreateOffer. Defaults to a minimal SDP.
	Offer string

	// OpenOnAnswer opens the event channel as soon as the answer is accepted.
	OpenOnAnswer bool

	stream       audio.Stream
	onRemote     func(audio.RemoteTrack)
	onDisconnect func(error)
	channel      *Channel
	answer       string
	closeCalls   int
}

// AddLocalStream implements [webrtc.PeerTransport].
func (t *Transport) AddLocalStream(s audio.Stream) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closeCalls > 0 {
		return ErrClosed
	}
	if t.AddLocalStreamErr != nil {
		return t.AddLocalStreamErr
	}
	t.stream = s
	return nil
}

// OnRemoteTrack implements [webrtc.PeerTransport].
func (t *Transport) OnRemoteTrack(fn func(audio.RemoteTrack)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRemote = fn
}

// OnDisconnect implements [webrtc.PeerTransport].
func (t *Transport) OnDisconnect(fn func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDisconnect = fn
}

// OpenEventChannel implements [webrtc.PeerTransport].
func (t *Transport) OpenEventChannel(label string) (webrtc.EventChannel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closeCalls > 0 {
		return nil, ErrClosed
	}
	if t.OpenChannelErr != nil {
		return nil, t.OpenChannelErr
	}
	t.channel = &Channel{label: label}
	return t.channel, nil
}

// CreateOffer implements [webrtc.PeerTransport].
func (t *Transport) CreateOffer(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if t.CreateOfferErr != nil {
		return "", t.CreateOfferErr
	}
	if t.Offer == "" {
		return "v=0\r\ns=offer\r\n", nil
	}
	return t.Offer, nil
}

// AcceptAnswer implements [webrtc.PeerTransport].
func (t *Transport) AcceptAnswer(_ context.Context, sdp string) error {
	t.mu.Lock()
	if t.AcceptAnswerErr != nil {
		t.mu.Unlock()
		return t.AcceptAnswerErr
	}
	t.answer = sdp
	open, ch := t.OpenOnAnswer, t.channel
	t.mu.Unlock()

	if open && ch != nil {
		ch.Open()
	}
	return nil
}

// Close implements [webrtc.PeerTransport].
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeCalls++
	return nil
}

// Closed reports whether Close was called.
func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeCalls > 0
}

// Stream returns the stream passed to AddLocalStream.
func (t *Transport) Stream() audio.Stream {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stream
}

// Answer returns the SDP passed to AcceptAnswer.
func (t *Transport) Answer() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.answer
}

// Channel returns the event channel opened on t, or nil.
func (t *Transport) Channel() *Channel {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.channel
}

// EmitRemoteTrack invokes the registered remote track callback.
func (t *Transport) EmitRemoteTrack(track audio.RemoteTrack) {
	t.mu.Lock()
	fn := t.onRemote
	t.mu.Unlock()
	if fn != nil {
		fn(track)
	}
}

// Disconnect invokes the registered disconnect callback with err.
func (t *Transport) Disconnect(err error) {
	t.mu.Lock()
	fn := t.onDisconnect
	t.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// ─── Channel ──────────────────────────────────────────────────────────────────

// Channel is a mock [webrtc.EventChannel]. Open, Deliver and Fail invoke the
// registered callbacks synchronously.
type Channel struct {
	mu      sync.Mutex
	label   string
	onOpen  func()
	onMsg   func([]byte)
	onErr   func(error)
	onClose func()
	sent    [][]byte
	closed  bool
}

func (c *Channel) Label() string { return c.label }

func (c *Channel) OnOpen(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onOpen = fn
}

func (c *Channel) OnMessage(fn func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMsg = fn
}

func (c *Channel) OnError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onErr = fn
}

func (c *Channel) OnClose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = fn
}

func (c *Channel) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *Channel) Close() error {
	c.mu.Lock()
	fn := c.onClose
	already := c.closed
	c.closed = true
	c.mu.Unlock()
	if fn != nil && !already {
		fn()
	}
	return nil
}

// Open fires the open callback.
func (c *Channel) Open() {
	c.mu.Lock()
	fn := c.onOpen
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Deliver fires the message callback with data.
func (c *Channel) Deliver(data string) {
	c.mu.Lock()
	fn := c.onMsg
	c.mu.Unlock()
	if fn != nil {
		fn([]byte(data))
	}
}

// Fail fires the error callback with err.
func (c *Channel) Fail(err error) {
	c.mu.Lock()
	fn := c.onErr
	c.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// Closed reports whether Close was called.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
