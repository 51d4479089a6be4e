package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/MrWong99/strategydeck/pkg/audio"
)

var _ audio.Source = (*Microphone)(nil)

// Microphone captures the default input device as mono 48 kHz Opus.
type Microphone struct {
	ctx *Context
}

// NewMicrophone creates a [Microphone] on ctx.
func NewMicrophone(ctx *Context) *Microphone {
	return &Microphone{ctx: ctx}
}

// Acquire opens and starts the capture device.
func (m *Microphone) Acquire(ctx context.Context) (audio.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	const channels = 1

	enc, err := newOpusEncoder(channels)
	if err != nil {
		return nil, err
	}

	s := &captureStream{
		frames:  make(chan []byte, 16),
		packets: make(chan audio.Packet, 16),
		done:    make(chan struct{}),
	}
	s.enabled.Store(true)
	chunks := &chunker{size: audio.FrameSamples * channels * 2}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = channels
	cfg.SampleRate = audio.SampleRate
	cfg.PeriodSizeInMilliseconds = 20
	cfg.Alsa.NoMMap = 1

	dev, err := malgo.InitDevice(m.ctx.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			for _, f := range chunks.push(in) {
				select {
				case s.frames <- f:
				case <-s.done:
					return
				default:
					// Encoder is behind; drop rather than stall the device thread.
				}
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("device: open microphone: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return nil, fmt.Errorf("device: start microphone: %w", err)
	}
	s.dev = dev

	go s.encodeLoop(enc)
	return s, nil
}

type captureStream struct {
	dev     *malgo.Device
	frames  chan []byte
	packets chan audio.Packet
	done    chan struct{}
	enabled atomic.Bool

	stopOnce sync.Once
}

func (s *captureStream) Packets() <-chan audio.Packet { return s.packets }
func (s *captureStream) SetEnabled(enabled bool)      { s.enabled.Store(enabled) }
func (s *captureStream) Enabled() bool                { return s.enabled.Load() }

func (s *captureStream) Stop() error {
	s.stopOnce.Do(func() {
		_ = s.dev.Stop()
		s.dev.Uninit()
		close(s.done)
	})
	return nil
}

// encodeLoop turns PCM frames into Opus packets. A disabled stream encodes
// silence so the far end keeps receiving a steady packet cadence.
func (s *captureStream) encodeLoop(enc *opusEncoder) {
	defer close(s.packets)
	for {
		select {
		case <-s.done:
			return
		case f := <-s.frames:
			if !s.enabled.Load() {
				clear(f)
			}
			data, err := enc.encode(f)
			if err != nil {
				slog.Warn("microphone: dropping frame", "err", err)
				continue
			}
			select {
			case s.packets <- audio.Packet{Data: data, Duration: audio.FrameDuration}:
			case <-s.done:
				return
			}
		}
	}
}
