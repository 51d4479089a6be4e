package audio

import "time"

// Realtime voice calls carry 48 kHz Opus in 20 ms packets.
const (
	SampleRate    = 48000
	FrameDuration = 20 * time.Millisecond

	// FrameSamples is the number of samples per channel in one frame.
	FrameSamples = SampleRate * int(FrameDuration/time.Millisecond) / 1000
)

// Packet is one encoded Opus packet.
type Packet struct {
	Data     []byte
	Duration time.Duration
}
