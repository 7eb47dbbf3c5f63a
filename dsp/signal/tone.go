package signal

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-fxchain/dsp/core"
	"github.com/cwbudde/algo-fxchain/dsp/param"
)

// Tone is a continuous sine source for streaming. Frequency and amplitude
// may be changed from another goroutine while Fill runs.
type Tone struct {
	sampleRate float64
	freqHz     *param.Scalar
	amplitude  *param.Scalar
	phase      float64
}

// NewTone creates a sine source.
func NewTone(sampleRate, freqHz, amplitude float64) (*Tone, error) {
	if !core.ValidSampleRate(sampleRate) {
		return nil, fmt.Errorf("tone sample rate must be > 0 and finite: %f", sampleRate)
	}
	t := &Tone{
		sampleRate: sampleRate,
		freqHz:     param.NewScalar(0),
		amplitude:  param.NewScalar(amplitude),
	}
	if err := t.SetFrequency(freqHz); err != nil {
		return nil, err
	}
	return t, nil
}

// SetFrequency sets the tone frequency in Hz, [0, sampleRate/2).
func (t *Tone) SetFrequency(hz float64) error {
	if hz < 0 || hz >= t.sampleRate/2 || math.IsNaN(hz) {
		return fmt.Errorf("tone frequency must be in [0, %g): %f", t.sampleRate/2, hz)
	}
	t.freqHz.Store(hz)
	return nil
}

// SetAmplitude sets the peak amplitude.
func (t *Tone) SetAmplitude(amplitude float64) {
	t.amplitude.Store(amplitude)
}

// Fill writes the next len(dst) samples into dst. The phase carries over
// between calls.
func (t *Tone) Fill(dst []float64) {
	inc := t.freqHz.Load() / t.sampleRate
	amp := t.amplitude.Load()
	for i := range dst {
		dst[i] = amp * math.Sin(2*math.Pi*t.phase)
		t.phase += inc
		if t.phase >= 1 {
			t.phase -= 1
		}
	}
}
