// Package voice drives one realtime voice call at a time against the hosted
// speech API.
//
// A [Session] walks the call through disconnected, connecting, connected and
// error. Start obtains an ephemeral credential, opens the microphone, builds
// the peer transport, opens the "oai-events" side channel and runs the SDP
// exchange. The call counts as connected once the side channel opens or
// delivers its first message. Losing the side channel or the peer connection
// moves the call into error. End tears everything down from any state.
//
// Collaborators are interfaces so the state machine can be exercised without
// a network or audio hardware; see the mock subpackage.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/strategydeck/internal/observe"
	"github.com/MrWong99/strategydeck/pkg/audio"
	"github.com/MrWong99/strategydeck/pkg/audio/webrtc"
)

// EventChannelLabel is the side channel the realtime service talks on.
const EventChannelLabel = "oai-events"

var (
	// ErrCallActive is returned by [Session.Start] unless the session is
	// disconnected.
	ErrCallActive = errors.New("voice: call already active")

	// ErrNotConnected is returned by [Session.ToggleMute] outside a connected call.
	ErrNotConnected = errors.New("voice: not connected")

	// ErrCallEnded is returned by [Session.Start] when End runs before setup
	// completes.
	ErrCallEnded = errors.New("voice: call ended during setup")

	errChannelClosed = errors.New("side channel closed")
)

// Setup stages, used to label failures.
const (
	StageCredential = "credential"
	StageMicrophone = "microphone"
	StageTransport  = "transport"
	StageChannel    = "channel"
	StageNegotiate  = "negotiate"
)

// TransportFactory builds a fresh peer transport for one call attempt.
type TransportFactory func() (webrtc.PeerTransport, error)

// Snapshot is a consistent copy of the session state handed to observers.
type Snapshot struct {
	CallID     uuid.UUID
	Status     Status
	Listening  bool
	Muted      bool
	Transcript Transcript

	// Err is the cause of the last failure while Status is StatusError.
	Err error
}

// Config holds a session's collaborators. Credentials, Microphone, Transport
// and Negotiator are required.
type Config struct {
	Credentials CredentialSource
	Microphone  audio.Source
	Transport   TransportFactory
	Negotiator  Negotiator

	// Sink plays the agent's audio. Nil discards it.
	Sink audio.Sink

	// AgentName labels agent lines and the connected message.
	AgentName string

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Session is a voice call controller. It is safe for concurrent use.
type Session struct {
	cfg     Config
	metrics *observe.Metrics
	now     func() time.Time

	mu         sync.Mutex
	gen        uint64
	status     Status
	callID     uuid.UUID
	listening  bool
	muted      bool
	transcript Transcript
	err        error
	started    time.Time
	cancel     context.CancelFunc
	res        resources
	observers  []func(Snapshot)
}

// resources are the per-attempt handles released on teardown.
type resources struct {
	stream    audio.Stream
	transport webrtc.PeerTransport
	channel   webrtc.EventChannel
	sink      bool
}

// NewSession validates cfg and returns a disconnected [Session].
func NewSession(cfg Config) (*Session, error) {
	var errs []error
	if cfg.Credentials == nil {
		errs = append(errs, errors.New("credentials source is required"))
	}
	if cfg.Microphone == nil {
		errs = append(errs, errors.New("microphone is required"))
	}
	if cfg.Transport == nil {
		errs = append(errs, errors.New("transport factory is required"))
	}
	if cfg.Negotiator == nil {
		errs = append(errs, errors.New("negotiator is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("voice: %w", err)
	}

	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	s := &Session{cfg: cfg, metrics: m, now: time.Now}
	s.transcript.AgentName = cfg.AgentName
	return s, nil
}

// OnChange registers fn to receive a [Snapshot] after every state change.
// Callbacks run synchronously on the goroutine that caused the change and
// must not call back into the session.
func (s *Session) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		CallID:     s.callID,
		Status:     s.status,
		Listening:  s.listening,
		Muted:      s.muted,
		Transcript: s.transcript.Clone(),
		Err:        s.err,
	}
}

// publish sends snap to every observer. Caller must not hold s.mu.
func (s *Session) publish(snap Snapshot) {
	s.mu.Lock()
	obs := slices.Clone(s.observers)
	s.mu.Unlock()
	for _, fn := range obs {
		fn(snap)
	}
}

// Start begins a call. It returns once the SDP exchange has completed; the
// status turns connected when the side channel opens. On failure the session
// is left in StatusError with everything acquired so far released, and the
// error is returned.
//
// ctx bounds the setup only. There is no built-in setup timeout.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusDisconnected {
		s.mu.Unlock()
		return ErrCallActive
	}
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.status = StatusConnecting
	s.callID = uuid.New()
	s.started = s.now()
	s.err = nil
	callID := s.callID
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)

	ctx, span := observe.StartSpan(ctx, "voice.start")
	defer span.End()
	span.SetAttributes(attribute.String("voice.call_id", callID.String()))
	observe.Logger(ctx).Info("voice call starting", "call_id", callID)

	if err := s.setup(ctx, gen); err != nil {
		observe.FailSpan(span, err)
		return err
	}
	observe.Logger(ctx).Debug("voice call negotiated, waiting for side channel", "call_id", callID)
	return nil
}

func (s *Session) setup(ctx context.Context, gen uint64) error {
	cred, err := s.cfg.Credentials.Credential(ctx)
	if err != nil {
		return s.fail(ctx, gen, StageCredential, err)
	}
	if cred.Expired(s.now()) {
		return s.fail(ctx, gen, StageCredential, errors.New("ephemeral credential already expired"))
	}

	stream, err := s.cfg.Microphone.Acquire(ctx)
	if err != nil {
		return s.fail(ctx, gen, StageMicrophone, err)
	}
	if !s.hold(gen, func(r *resources) { r.stream = stream }) {
		_ = stream.Stop()
		return ErrCallEnded
	}

	tr, err := s.cfg.Transport()
	if err != nil {
		return s.fail(ctx, gen, StageTransport, err)
	}
	if !s.hold(gen, func(r *resources) { r.transport = tr }) {
		_ = tr.Close()
		return ErrCallEnded
	}
	tr.OnDisconnect(func(err error) { _ = s.fail(context.Background(), gen, StageTransport, err) })
	if s.cfg.Sink != nil {
		s.hold(gen, func(r *resources) { r.sink = true })
		tr.OnRemoteTrack(func(t audio.RemoteTrack) { s.attachRemote(gen, t) })
	}
	if err := tr.AddLocalStream(stream); err != nil {
		return s.fail(ctx, gen, StageTransport, err)
	}

	ch, err := tr.OpenEventChannel(EventChannelLabel)
	if err != nil {
		return s.fail(ctx, gen, StageChannel, err)
	}
	s.hold(gen, func(r *resources) { r.channel = ch })
	ch.OnOpen(func() { s.channelOpened(gen) })
	ch.OnMessage(func(data []byte) { s.handleMessage(gen, data) })
	ch.OnError(func(err error) { _ = s.fail(context.Background(), gen, StageChannel, err) })
	ch.OnClose(func() { _ = s.fail(context.Background(), gen, StageChannel, errChannelClosed) })

	offer, err := tr.CreateOffer(ctx)
	if err != nil {
		return s.fail(ctx, gen, StageNegotiate, err)
	}
	answer, err := s.cfg.Negotiator.Negotiate(ctx, cred, offer)
	if err != nil {
		return s.fail(ctx, gen, StageNegotiate, err)
	}
	if err := tr.AcceptAnswer(ctx, answer); err != nil {
		return s.fail(ctx, gen, StageNegotiate, err)
	}
	if !s.current(gen) {
		return ErrCallEnded
	}
	return nil
}

// hold records an acquired resource if attempt gen is still current.
func (s *Session) hold(gen uint64, fn func(*resources)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	fn(&s.res)
	return true
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

// fail moves attempt gen into StatusError and releases its resources. A
// superseded attempt only reports [ErrCallEnded].
func (s *Session) fail(ctx context.Context, gen uint64, stage string, cause error) error {
	s.mu.Lock()
	if s.gen != gen || s.status == StatusError {
		s.mu.Unlock()
		return ErrCallEnded
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	wasConnected := s.status == StatusConnected
	s.status = StatusError
	s.listening = false
	s.err = cause
	s.transcript.Reset()
	s.transcript.AppendSystem(failureMessage(cause))
	res := s.takeResourcesLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.release(res)
	if wasConnected {
		s.metrics.VoiceActiveCalls.Add(ctx, -1)
	}
	s.metrics.RecordVoiceFailure(ctx, stage)
	observe.Logger(ctx).Warn("voice call failed", "call_id", snap.CallID, "stage", stage, "err", cause)
	s.publish(snap)
	return fmt.Errorf("voice: %s: %w", stage, cause)
}

func (s *Session) attachRemote(gen uint64, t audio.RemoteTrack) {
	if !s.current(gen) {
		return
	}
	if err := s.cfg.Sink.Attach(t); err != nil {
		slog.Warn("voice: attach remote audio", "track", t.ID(), "err", err)
		return
	}
	slog.Debug("voice: playing remote audio", "track", t.ID())
}

func (s *Session) channelOpened(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || s.status != StatusConnecting {
		s.mu.Unlock()
		return
	}
	s.status = StatusConnected
	s.listening = false
	s.transcript.Reset()
	s.transcript.AppendSystem(connectedMessage(s.cfg.AgentName))
	setup := s.now().Sub(s.started)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	ctx := context.Background()
	s.metrics.VoiceActiveCalls.Add(ctx, 1)
	s.metrics.VoiceSetupDuration.Record(ctx, setup.Seconds())
	slog.Info("voice call connected", "call_id", snap.CallID, "setup", setup)
	s.publish(snap)
}

func (s *Session) handleMessage(gen uint64, data []byte) {
	evt, err := ParseEvent(data)
	if err != nil {
		slog.Warn("voice: ignoring malformed event", "err", err)
		return
	}
	// A message can overtake the open callback.
	s.channelOpened(gen)

	s.mu.Lock()
	if s.gen != gen || s.status != StatusConnected {
		s.mu.Unlock()
		return
	}
	switch e := evt.(type) {
	case SpeechStarted:
		s.listening = true
	case SpeechStopped, ResponseDone:
		s.listening = false
	case TranscriptionCompleted:
		s.transcript.AppendUser(e.Transcript)
	case TextDelta:
		s.transcript.AppendAgentDelta(e.Delta)
	case ServerError:
		s.mu.Unlock()
		slog.Warn("voice: realtime service error", "code", e.Code, "message", e.Message)
		return
	default:
		s.mu.Unlock()
		slog.Debug("voice: unhandled event", "type", evt.Type())
		return
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// ToggleMute flips the microphone's enabled flag and returns the new muted
// state. The call status is unchanged.
func (s *Session) ToggleMute() (bool, error) {
	s.mu.Lock()
	if s.status != StatusConnected || s.res.stream == nil {
		s.mu.Unlock()
		return false, ErrNotConnected
	}
	s.muted = !s.muted
	s.res.stream.SetEnabled(!s.muted)
	muted := s.muted
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
	return muted, nil
}

// End hangs up from any state and cancels a Start in progress. The
// transcript, listening and muted flags are cleared. Calling End on a
// disconnected session does nothing.
func (s *Session) End() {
	s.mu.Lock()
	if s.status == StatusDisconnected && s.cancel == nil {
		s.mu.Unlock()
		return
	}
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	wasConnected := s.status == StatusConnected
	s.status = StatusDisconnected
	s.listening = false
	s.muted = false
	s.err = nil
	s.transcript.Reset()
	res := s.takeResourcesLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.release(res)
	if wasConnected {
		s.metrics.VoiceActiveCalls.Add(context.Background(), -1)
	}
	slog.Info("voice call ended", "call_id", snap.CallID)
	s.publish(snap)
}

func (s *Session) takeResourcesLocked() resources {
	res := s.res
	s.res = resources{}
	return res
}

// release closes the transport, stops the microphone and removes the sink.
func (s *Session) release(res resources) {
	if res.channel != nil {
		_ = res.channel.Close()
	}
	if res.transport != nil {
		if err := res.transport.Close(); err != nil {
			slog.Debug("voice: close transport", "err", err)
		}
	}
	if res.stream != nil {
		if err := res.stream.Stop(); err != nil {
			slog.Debug("voice: stop microphone", "err", err)
		}
	}
	if res.sink {
		if err := s.cfg.Sink.Remove(); err != nil {
			slog.Debug("voice: remove sink", "err", err)
		}
	}
}

func connectedMessage(agent string) string {
	return "✅ Connected to " + agent + " via OpenAI Realtime API!\n\nStart speaking to begin the conversation..."
}

func failureMessage(err error) string {
	return "❌ Failed to connect: " + err.Error() + "\n\nPlease ensure you have a valid OpenAI API key and try again."
}
