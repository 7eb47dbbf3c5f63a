package param

import (
	"math"
	"sync/atomic"
)

// Smoothed ramps linearly from its current value to a target over a fixed
// number of samples. It replaces per-call static smoothing state with a value
// that each effect owns and re-arms in Prepare.
//
// SetTarget only publishes the destination. The audio goroutine picks it up on
// its next call to Next and starts a fresh ramp from wherever it currently is.
type Smoothed struct {
	pending atomic.Uint64

	current   float64
	target    float64
	step      float64
	countdown int

	rampSeconds float64
	rampSamples int
}

// NewSmoothed returns a ramp resting at initial with no ramp length configured.
func NewSmoothed(initial float64) *Smoothed {
	s := &Smoothed{}
	s.init(initial)
	return s
}

func (s *Smoothed) init(initial float64) {
	s.pending.Store(math.Float64bits(initial))
	s.current = initial
	s.target = initial
}

// SetTarget records a new destination value. Safe to call from any goroutine.
func (s *Smoothed) SetTarget(v float64) {
	s.pending.Store(math.Float64bits(v))
}

// Target returns the most recently published destination value.
func (s *Smoothed) Target() float64 {
	return math.Float64frombits(s.pending.Load())
}

// SetCurrentAndTarget jumps straight to v without ramping.
func (s *Smoothed) SetCurrentAndTarget(v float64) {
	s.pending.Store(math.Float64bits(v))
	s.current = v
	s.target = v
	s.countdown = 0
}

// Reset derives the ramp length from sampleRate and rampSeconds and snaps the
// current value to the last published target. Non-positive or non-finite
// sample rates and negative ramp times leave the previous configuration in
// place.
func (s *Smoothed) Reset(sampleRate, rampSeconds float64) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return
	}
	if rampSeconds < 0 || math.IsNaN(rampSeconds) || math.IsInf(rampSeconds, 0) {
		return
	}

	s.rampSeconds = rampSeconds
	s.rampSamples = int(math.Round(rampSeconds * sampleRate))
	s.SetCurrentAndTarget(s.Target())
}

// Next advances the ramp by one sample and returns the new value. Once the
// ramp length has elapsed it returns the target exactly.
//
// Next does not return the pre-step value first: the first call after a
// target change already yields one step toward the target, and the last step
// of the ramp lands on it.
func (s *Smoothed) Next() float64 {
	s.sync()

	if s.countdown <= 0 {
		return s.target
	}

	s.countdown--
	if s.countdown == 0 {
		s.current = s.target
	} else {
		s.current += s.step
	}

	return s.current
}

// Skip advances the ramp by n samples and returns the resulting value.
func (s *Smoothed) Skip(n int) float64 {
	s.sync()

	if n >= s.countdown {
		s.current = s.target
		s.countdown = 0
		return s.current
	}
	if n > 0 {
		s.current += s.step * float64(n)
		s.countdown -= n
	}

	return s.current
}

// Current returns the value most recently produced by Next.
func (s *Smoothed) Current() float64 { return s.current }

// IsSmoothing reports whether a ramp is in progress or a new target is pending.
func (s *Smoothed) IsSmoothing() bool {
	return s.countdown > 0 || s.Target() != s.target
}

// RampSeconds returns the configured ramp duration.
func (s *Smoothed) RampSeconds() float64 { return s.rampSeconds }

// RampSamples returns the configured ramp length in samples.
func (s *Smoothed) RampSamples() int { return s.rampSamples }

func (s *Smoothed) sync() {
	t := s.Target()
	if t == s.target || (math.IsNaN(t) && math.IsNaN(s.target)) {
		return
	}

	s.target = t
	if s.rampSamples <= 0 {
		s.current = t
		s.countdown = 0
		return
	}

	s.countdown = s.rampSamples
	s.step = (t - s.current) / float64(s.countdown)
}
