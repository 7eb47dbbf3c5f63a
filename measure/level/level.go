// Package level computes time-domain level statistics of processed audio:
// peak, RMS, DC offset and crest factor, for single buffers or streamed
// multichannel blocks.
package level

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-fxchain/dsp/core"
)

// Stats holds level statistics of one channel.
//
//nolint:revive
type Stats struct {
	Length         int
	DC             float64 // mean
	RMS            float64
	RMS_dB         float64
	Peak           float64 // max(|max|, |min|)
	PeakPos        int
	Peak_dB        float64
	CrestFactor    float64 // peak / RMS (linear)
	CrestFactor_dB float64
	ZeroCrossings  int
}

func emptyStats() Stats {
	return Stats{
		RMS_dB:         math.Inf(-1),
		Peak_dB:        math.Inf(-1),
		CrestFactor_dB: math.Inf(-1),
	}
}

// accumulator gathers running sums for one channel.
type accumulator struct {
	n             int
	sum           float64
	sumSq         float64
	peak          float64
	peakPos       int
	zeroCrossings int
	last          float64
}

func (a *accumulator) update(samples []float64) {
	for _, x := range samples {
		if a.n > 0 && a.last*x < 0 {
			a.zeroCrossings++
		}
		if abs := math.Abs(x); abs > a.peak {
			a.peak = abs
			a.peakPos = a.n
		}
		a.sum += x
		a.sumSq += x * x
		a.last = x
		a.n++
	}
}

func (a *accumulator) result() Stats {
	if a.n == 0 {
		return emptyStats()
	}

	nf := float64(a.n)
	rms := math.Sqrt(a.sumSq / nf)

	crest, crestDB := 0.0, 0.0
	if rms > 0 {
		crest = a.peak / rms
		crestDB = core.LinearToDB(crest)
	}

	return Stats{
		Length:         a.n,
		DC:             a.sum / nf,
		RMS:            rms,
		RMS_dB:         core.LinearToDB(rms),
		Peak:           a.peak,
		PeakPos:        a.peakPos,
		Peak_dB:        core.LinearToDB(a.peak),
		CrestFactor:    crest,
		CrestFactor_dB: crestDB,
		ZeroCrossings:  a.zeroCrossings,
	}
}

// Calculate computes the statistics of samples in a single pass.
func Calculate(samples []float64) Stats {
	var a accumulator
	a.update(samples)
	return a.result()
}

// Meter accumulates per-channel statistics over a stream of blocks.
type Meter struct {
	channels []accumulator
}

// NewMeter creates a meter for the given channel count.
func NewMeter(channels int) (*Meter, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("level meter channel count must be > 0: %d", channels)
	}
	return &Meter{channels: make([]accumulator, channels)}, nil
}

// NumChannels returns the channel count.
func (m *Meter) NumChannels() int { return len(m.channels) }

// Update adds a block. Extra channels in block are ignored and missing
// channels are left untouched.
func (m *Meter) Update(block core.Block) {
	for ch := range min(len(block), len(m.channels)) {
		m.channels[ch].update(block[ch])
	}
}

// Channel returns the statistics of channel ch so far.
func (m *Meter) Channel(ch int) Stats {
	return m.channels[ch].result()
}

// Reset clears all accumulated data.
func (m *Meter) Reset() {
	clear(m.channels)
}
