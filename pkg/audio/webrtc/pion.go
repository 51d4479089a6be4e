package webrtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/MrWong99/strategydeck/pkg/audio"
)

var (
	_ PeerTransport = (*Transport)(nil)
	_ EventChannel  = (*dataChannel)(nil)
)

// DefaultSTUNServers is used when no servers are configured.
var DefaultSTUNServers = []string{"stun:stun.l.google.com:19302"}

// Option configures a [Transport].
type Option func(*Transport)

// WithSTUNServers sets the ICE servers. An empty list disables STUN, leaving
// host candidates only.
func WithSTUNServers(servers ...string) Option {
	return func(t *Transport) { t.stunServers = servers }
}

// WithStreamID sets the media stream ID of the outgoing track.
func WithStreamID(id string) Option {
	return func(t *Transport) { t.streamID = id }
}

// Transport is a pion/webrtc backed [PeerTransport].
type Transport struct {
	stunServers []string
	streamID    string

	pc   *webrtc.PeerConnection
	done chan struct{}

	mu           sync.Mutex
	onRemote     func(audio.RemoteTrack)
	onDisconnect func(error)
	lost         bool

	closeOnce sync.Once
	closeErr  error
}

// New creates a peer connection. Callers must Close it.
func New(opts ...Option) (*Transport, error) {
	t := &Transport{
		stunServers: DefaultSTUNServers,
		streamID:    "strategydeck",
		done:        make(chan struct{}),
	}
	for _, o := range opts {
		o(t)
	}

	cfg := webrtc.Configuration{}
	if len(t.stunServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: t.stunServers}}
	}
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("webrtc: new peer connection: %w", err)
	}
	t.pc = pc

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		t.mu.Lock()
		fn := t.onRemote
		t.mu.Unlock()
		slog.Debug("webrtc: remote track", "id", track.ID(), "codec", track.Codec().MimeType)
		if fn != nil {
			fn(&remoteTrack{track: track})
		}
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		slog.Debug("webrtc: connection state changed", "state", s.String())
		switch s {
		case webrtc.PeerConnectionStateFailed:
			t.disconnected(ErrPeerFailed)
		case webrtc.PeerConnectionStateClosed:
			t.disconnected(ErrPeerClosed)
		}
	})
	return t, nil
}

// AddLocalStream implements [PeerTransport].
func (t *Transport) AddLocalStream(s audio.Stream) error {
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: audio.SampleRate,
		Channels:  2,
	}, "microphone", t.streamID)
	if err != nil {
		return fmt.Errorf("webrtc: new local track: %w", err)
	}
	sender, err := t.pc.AddTrack(track)
	if err != nil {
		return fmt.Errorf("webrtc: add track: %w", err)
	}

	// RTCP has to be read for interceptors to run.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	go func() {
		for {
			select {
			case <-t.done:
				return
			case p, ok := <-s.Packets():
				if !ok {
					return
				}
				if err := track.WriteSample(media.Sample{Data: p.Data, Duration: p.Duration}); err != nil {
					if !errors.Is(err, io.ErrClosedPipe) {
						slog.Debug("webrtc: write sample", "err", err)
					}
					return
				}
			}
		}
	}()
	return nil
}

// OnRemoteTrack implements [PeerTransport].
func (t *Transport) OnRemoteTrack(fn func(audio.RemoteTrack)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRemote = fn
}

// OnDisconnect implements [PeerTransport].
func (t *Transport) OnDisconnect(fn func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDisconnect = fn
}

// disconnected reports a lost connection once. A Close in progress
// suppresses it.
func (t *Transport) disconnected(err error) {
	select {
	case <-t.done:
		return
	default:
	}
	t.mu.Lock()
	fn := t.onDisconnect
	first := !t.lost
	t.lost = true
	t.mu.Unlock()
	if fn != nil && first {
		fn(err)
	}
}

// OpenEventChannel implements [PeerTransport].
func (t *Transport) OpenEventChannel(label string) (EventChannel, error) {
	dc, err := t.pc.CreateDataChannel(label, nil)
	if err != nil {
		return nil, fmt.Errorf("webrtc: create data channel %q: %w", label, err)
	}
	return &dataChannel{dc: dc}, nil
}

// CreateOffer implements [PeerTransport]. It waits for ICE gathering to
// finish so the offer can be sent in a single HTTP exchange.
func (t *Transport) CreateOffer(ctx context.Context) (string, error) {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("webrtc: create offer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(t.pc)
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("webrtc: set local description: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return "", fmt.Errorf("webrtc: gather candidates: %w", ctx.Err())
	}
	return t.pc.LocalDescription().SDP, nil
}

// AcceptAnswer implements [PeerTransport].
func (t *Transport) AcceptAnswer(_ context.Context, sdp string) error {
	err := t.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp})
	if err != nil {
		return fmt.Errorf("webrtc: set remote description: %w", err)
	}
	return nil
}

// Close implements [PeerTransport].
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		if err := t.pc.Close(); err != nil {
			t.closeErr = fmt.Errorf("webrtc: close: %w", err)
		}
	})
	return t.closeErr
}

type remoteTrack struct {
	track *webrtc.TrackRemote
}

func (r *remoteTrack) ID() string { return r.track.ID() }

func (r *remoteTrack) ReadPacket() (audio.Packet, error) {
	pkt, _, err := r.track.ReadRTP()
	if err != nil {
		return audio.Packet{}, err
	}
	return audio.Packet{Data: pkt.Payload, Duration: audio.FrameDuration}, nil
}

type dataChannel struct {
	dc *webrtc.DataChannel
}

func (d *dataChannel) Label() string          { return d.dc.Label() }
func (d *dataChannel) OnOpen(fn func())       { d.dc.OnOpen(fn) }
func (d *dataChannel) OnClose(fn func())      { d.dc.OnClose(fn) }
func (d *dataChannel) OnError(fn func(error)) { d.dc.OnError(fn) }
func (d *dataChannel) Send(data []byte) error { return d.dc.Send(data) }
func (d *dataChannel) Close() error           { return d.dc.Close() }

func (d *dataChannel) OnMessage(fn func([]byte)) {
	d.dc.OnMessage(func(msg webrtc.DataChannelMessage) { fn(msg.Data) })
}
