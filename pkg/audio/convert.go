package audio

// Int16sToBytes converts samples to little-endian PCM bytes.
func Int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

// BytesToInt16s converts little-endian PCM bytes to samples. A trailing odd
// byte is ignored.
func BytesToInt16s(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(uint16(b[i*2]) | uint16(b[i*2+1])<<8)
	}
	return pcm
}
