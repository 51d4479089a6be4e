package device

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/MrWong99/strategydeck/pkg/audio"
)

var _ audio.Sink = (*Speaker)(nil)

const (
	playbackChannels = 2

	// maxQueued caps buffered playback at roughly one second.
	maxQueued = audio.SampleRate * playbackChannels * 2
)

// Speaker plays remote tracks on the default output device. The device is
// opened on the first Attach and closed by Remove.
type Speaker struct {
	ctx *Context
	buf playbackBuffer

	mu  sync.Mutex
	dev *malgo.Device
	gen uint64
}

// NewSpeaker creates a [Speaker] on ctx.
func NewSpeaker(ctx *Context) *Speaker {
	return &Speaker{ctx: ctx, buf: playbackBuffer{limit: maxQueued}}
}

// Attach implements [audio.Sink].
func (s *Speaker) Attach(track audio.RemoteTrack) error {
	dec, err := newOpusDecoder(playbackChannels)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		if err := s.open(); err != nil {
			return err
		}
	}
	s.gen++
	go s.play(track, dec, s.gen)
	return nil
}

// open starts the playback device. Caller holds s.mu.
func (s *Speaker) open() error {
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = playbackChannels
	cfg.SampleRate = audio.SampleRate
	cfg.Alsa.NoMMap = 1

	dev, err := malgo.InitDevice(s.ctx.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) { s.buf.read(out) },
	})
	if err != nil {
		return fmt.Errorf("device: open speaker: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return fmt.Errorf("device: start speaker: %w", err)
	}
	s.dev = dev
	return nil
}

// play decodes track until it ends or a newer Attach/Remove supersedes it.
func (s *Speaker) play(track audio.RemoteTrack, dec *opusDecoder, gen uint64) {
	for {
		p, err := track.ReadPacket()
		if err != nil {
			slog.Debug("speaker: track ended", "track", track.ID(), "err", err)
			return
		}
		if !s.current(gen) {
			return
		}
		pcm, err := dec.decode(p.Data)
		if err != nil {
			slog.Debug("speaker: dropping packet", "err", err)
			continue
		}
		s.buf.write(pcm)
	}
}

func (s *Speaker) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen && s.dev != nil
}

// Remove implements [audio.Sink].
func (s *Speaker) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.dev != nil {
		_ = s.dev.Stop()
		s.dev.Uninit()
		s.dev = nil
	}
	s.buf.reset()
	return nil
}
