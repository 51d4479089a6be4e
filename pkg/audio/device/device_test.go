package device

import (
	"bytes"
	"math"
	"testing"

	"github.com/MrWong99/strategydeck/pkg/audio"
)

func TestChunker(t *testing.T) {
	t.Parallel()
	c := &chunker{size: 4}

	if got := c.push([]byte{1, 2, 3}); len(got) != 0 {
		t.Fatalf("partial push produced %d frames", len(got))
	}
	got := c.push([]byte{4, 5, 6, 7, 8, 9})
	if len(got) != 2 {
		t.Fatalf("got %d frames, want 2", len(got))
	}
	if !bytes.Equal(got[0], []byte{1, 2, 3, 4}) || !bytes.Equal(got[1], []byte{5, 6, 7, 8}) {
		t.Errorf("frames = %v", got)
	}
	if !bytes.Equal(c.buf, []byte{9}) {
		t.Errorf("remainder = %v", c.buf)
	}
}

func TestChunker_FramesDoNotAliasInput(t *testing.T) {
	t.Parallel()
	c := &chunker{size: 2}
	in := []byte{1, 2}
	frames := c.push(in)
	in[0] = 99
	if frames[0][0] != 1 {
		t.Error("frame aliases the device buffer")
	}
}

func TestPlaybackBuffer_PadsWithSilence(t *testing.T) {
	t.Parallel()
	var p playbackBuffer
	p.write([]byte{1, 2})

	out := []byte{9, 9, 9, 9}
	if n := p.read(out); n != 2 {
		t.Errorf("read %d bytes, want 2", n)
	}
	if !bytes.Equal(out, []byte{1, 2, 0, 0}) {
		t.Errorf("out = %v", out)
	}
	if p.len() != 0 {
		t.Errorf("len = %d after drain", p.len())
	}
}

func TestPlaybackBuffer_DropsOldest(t *testing.T) {
	t.Parallel()
	p := playbackBuffer{limit: 4}
	p.write([]byte{1, 2, 3, 4})
	p.write([]byte{5, 6})

	out := make([]byte, 4)
	p.read(out)
	if !bytes.Equal(out, []byte{3, 4, 5, 6}) {
		t.Errorf("out = %v, want newest 4 bytes", out)
	}
}

func TestPlaybackBuffer_Reset(t *testing.T) {
	t.Parallel()
	var p playbackBuffer
	p.write([]byte{1, 2, 3, 4})
	p.reset()
	if p.len() != 0 {
		t.Errorf("len = %d after reset", p.len())
	}
}

func TestOpusRoundTrip(t *testing.T) {
	t.Parallel()
	enc, err := newOpusEncoder(1)
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	dec, err := newOpusDecoder(playbackChannels)
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	tone := make([]int16, audio.FrameSamples)
	for i := range tone {
		tone[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/audio.SampleRate))
	}
	packet, err := enc.encode(audio.Int16sToBytes(tone))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(packet) == 0 || len(packet) > maxPacketBytes {
		t.Fatalf("packet size = %d", len(packet))
	}

	pcm, err := dec.decode(packet)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if want := audio.FrameSamples * playbackChannels * 2; len(pcm) != want {
		t.Errorf("decoded %d bytes, want %d", len(pcm), want)
	}
}
