package device

import (
	"fmt"

	"layeh.com/gopus"

	"github.com/MrWong99/strategydeck/pkg/audio"
)

// maxPacketBytes bounds a single encoded Opus packet.
const maxPacketBytes = 4000

// opusEncoder encodes 20 ms PCM frames for one outgoing stream.
type opusEncoder struct {
	enc      *gopus.Encoder
	channels int
}

func newOpusEncoder(channels int) (*opusEncoder, error) {
	enc, err := gopus.NewEncoder(audio.SampleRate, channels, gopus.Voip)
	if err != nil {
		return nil, fmt.Errorf("device: create opus encoder: %w", err)
	}
	return &opusEncoder{enc: enc, channels: channels}, nil
}

func (e *opusEncoder) encode(pcm []byte) ([]byte, error) {
	out, err := e.enc.Encode(audio.BytesToInt16s(pcm), audio.FrameSamples, maxPacketBytes)
	if err != nil {
		return nil, fmt.Errorf("device: opus encode: %w", err)
	}
	return out, nil
}

// opusDecoder decodes one incoming track. Decoder state carries across
// packets, so each track gets its own.
type opusDecoder struct {
	dec *gopus.Decoder
}

func newOpusDecoder(channels int) (*opusDecoder, error) {
	dec, err := gopus.NewDecoder(audio.SampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("device: create opus decoder: %w", err)
	}
	return &opusDecoder{dec: dec}, nil
}

func (d *opusDecoder) decode(packet []byte) ([]byte, error) {
	pcm, err := d.dec.Decode(packet, audio.FrameSamples, false)
	if err != nil {
		return nil, fmt.Errorf("device: opus decode: %w", err)
	}
	return audio.Int16sToBytes(pcm), nil
}
