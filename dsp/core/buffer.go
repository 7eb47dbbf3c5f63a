package core

// Block is one batch of audio: one equal-length sample slice per channel.
// Processors mutate it in place.
type Block [][]float64

// NewBlock allocates a zeroed block.
func NewBlock(channels, samples int) Block {
	b := make(Block, channels)
	for ch := range b {
		b[ch] = make([]float64, samples)
	}
	return b
}

// NumChannels returns the channel count.
func (b Block) NumChannels() int { return len(b) }

// NumSamples returns the per-channel sample count, or 0 for an empty block.
func (b Block) NumSamples() int {
	if len(b) == 0 {
		return 0
	}
	return len(b[0])
}

// Uniform reports whether every channel has the same length.
func (b Block) Uniform() bool {
	n := b.NumSamples()
	for _, ch := range b {
		if len(ch) != n {
			return false
		}
	}
	return true
}

// Clear zeroes every channel.
func (b Block) Clear() {
	for _, ch := range b {
		Zero(ch)
	}
}

// EnsureLen returns a slice with the requested length, reusing buf capacity if possible.
func EnsureLen(buf []float64, n int) []float64 {
	if n <= 0 {
		return buf[:0]
	}
	if cap(buf) >= n {
		return buf[:n]
	}
	return make([]float64, n)
}

// Zero sets all values in buf to 0.
func Zero(buf []float64) {
	for i := range buf {
		buf[i] = 0
	}
}

// CopyInto copies src into dst and returns the number of copied elements.
func CopyInto(dst, src []float64) int {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	copy(dst[:n], src[:n])
	return n
}
