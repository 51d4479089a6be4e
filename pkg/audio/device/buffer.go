package device

import "sync"

// chunker slices an arbitrary PCM byte stream into fixed-size frames.
type chunker struct {
	size int
	buf  []byte
}

// push appends b and returns every complete frame now available.
func (c *chunker) push(b []byte) [][]byte {
	c.buf = append(c.buf, b...)
	var frames [][]byte
	for len(c.buf) >= c.size {
		f := make([]byte, c.size)
		copy(f, c.buf[:c.size])
		frames = append(frames, f)
		c.buf = c.buf[c.size:]
	}
	return frames
}

// playbackBuffer queues decoded PCM for the output callback. When more than
// limit bytes are queued the oldest audio is dropped.
type playbackBuffer struct {
	mu    sync.Mutex
	data  []byte
	limit int
}

func (p *playbackBuffer) write(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = append(p.data, b...)
	if over := len(p.data) - p.limit; p.limit > 0 && over > 0 {
		p.data = p.data[over:]
	}
}

// read fills out from the queue and pads the remainder with silence.
func (p *playbackBuffer) read(out []byte) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := copy(out, p.data)
	p.data = p.data[n:]
	clear(out[n:])
	return n
}

func (p *playbackBuffer) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = nil
}

func (p *playbackBuffer) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.data)
}
