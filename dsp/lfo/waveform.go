package lfo

import (
	"fmt"
	"math"
)

// Waveform selects the oscillator shape.
type Waveform int32

const (
	WaveformSine Waveform = iota
	WaveformSaw
	WaveformSquare
)

// String returns a short waveform name.
func (w Waveform) String() string {
	switch w {
	case WaveformSine:
		return "sine"
	case WaveformSaw:
		return "saw"
	case WaveformSquare:
		return "square"
	default:
		return fmt.Sprintf("Waveform(%d)", int32(w))
	}
}

// Waveforms lists every valid waveform in declaration order.
func Waveforms() []Waveform {
	return []Waveform{WaveformSine, WaveformSaw, WaveformSquare}
}

// ParseWaveform maps a waveform name back to its Waveform.
func ParseWaveform(name string) (Waveform, error) {
	for _, w := range Waveforms() {
		if w.String() == name {
			return w, nil
		}
	}
	return 0, fmt.Errorf("lfo waveform is unknown: %q", name)
}

func validWaveform(w Waveform) bool {
	return w >= WaveformSine && w <= WaveformSquare
}

// Eval returns the waveform value at phase p, measured in cycles. Any p is
// accepted and reduced to [0, 1).
func (w Waveform) Eval(p float64) float64 {
	p = wrap(p)

	switch w {
	case WaveformSaw:
		// Folded ramp: distance to the nearer cycle edge, scaled to [-1, 1].
		return 2*math.Abs(2*p-1) - 1
	case WaveformSquare:
		if p < 0.5 {
			return -1
		}
		return 1
	default:
		return math.Sin(2 * math.Pi * p)
	}
}

// wrap reduces p to [0, 1).
func wrap(p float64) float64 {
	p -= math.Floor(p)
	if p >= 1 {
		p = 0
	}
	return p
}
