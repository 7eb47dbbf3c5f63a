// Package testutil holds signal builders and assertions shared by the
// package tests of the effect chain.
package testutil

import (
	"math"
	"math/rand"

	"github.com/cwbudde/algo-fxchain/dsp/core"
)

// DeterministicSine returns length samples of a sine starting at phase 0.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// DeterministicNoise returns uniform noise in [-amplitude, amplitude) drawn
// from a seeded source, so repeated calls with the same seed match.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// NoiseBlock returns a block of deterministic noise. Channel ch is seeded
// with seed+ch so channels are decorrelated but reproducible.
func NoiseBlock(seed int64, amplitude float64, channels, length int) core.Block {
	blk := make(core.Block, channels)
	for ch := range blk {
		blk[ch] = DeterministicNoise(seed+int64(ch), amplitude, length)
	}
	return blk
}

// Impulse returns a unit impulse at pos. Out-of-range positions give silence.
func Impulse(length, pos int) []float64 {
	out := make([]float64, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}
	return out
}

// DC returns a constant signal.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}
	return out
}

// Ones returns a slice of length n filled with 1.0.
func Ones(n int) []float64 {
	return DC(1.0, n)
}

// CloneBlock returns a deep copy of blk.
func CloneBlock(blk core.Block) core.Block {
	out := make(core.Block, len(blk))
	for ch, samples := range blk {
		out[ch] = append([]float64(nil), samples...)
	}
	return out
}

// SplitBlock returns views of blk covering samples [from, to) on every channel.
func SplitBlock(blk core.Block, from, to int) core.Block {
	out := make(core.Block, len(blk))
	for ch, samples := range blk {
		out[ch] = samples[from:to]
	}
	return out
}
