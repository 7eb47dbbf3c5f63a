package lfo

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-fxchain/dsp/core"
	"github.com/cwbudde/algo-fxchain/dsp/param"
)

const (
	defaultFrequencyHz = 0.0
	defaultMix         = 1.0
	defaultRampSeconds = 0.02

	minFrequencyHz = 0.0
	maxFrequencyHz = 20.0
)

// Option mutates oscillator construction parameters.
type Option func(*config) error

type config struct {
	waveform    Waveform
	frequencyHz float64
	mix         float64
	rampSeconds float64
	tableSize   int
}

func defaultConfig() config {
	return config{
		waveform:    WaveformSine,
		frequencyHz: defaultFrequencyHz,
		mix:         defaultMix,
		rampSeconds: defaultRampSeconds,
	}
}

// WithWaveform sets the initial shape.
func WithWaveform(w Waveform) Option {
	return func(cfg *config) error {
		if !validWaveform(w) {
			return fmt.Errorf("lfo waveform is invalid: %d", w)
		}
		cfg.waveform = w
		return nil
	}
}

// WithFrequency sets the initial rate in Hz, [0, 20].
func WithFrequency(hz float64) Option {
	return func(cfg *config) error {
		if err := validateFrequency(hz); err != nil {
			return err
		}
		cfg.frequencyHz = hz
		return nil
	}
}

// WithMix sets modulation depth in [0, 1].
func WithMix(mix float64) Option {
	return func(cfg *config) error {
		if err := validateMix(mix); err != nil {
			return err
		}
		cfg.mix = mix
		return nil
	}
}

// WithRampSeconds sets the smoothing time for frequency and mix.
func WithRampSeconds(seconds float64) Option {
	return func(cfg *config) error {
		if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
			return fmt.Errorf("lfo ramp time must be >= 0 and finite: %f", seconds)
		}
		cfg.rampSeconds = seconds
		return nil
	}
}

// WithLookupTable evaluates waveforms from precomputed tables of size points
// instead of by formula. A size of 0 selects the default resolution.
func WithLookupTable(size int) Option {
	return func(cfg *config) error {
		if size == 0 {
			size = defaultTableSize
		}
		if size < minTableSize || size > maxTableSize {
			return fmt.Errorf("lfo table size must be in [%d, %d]: %d", minTableSize, maxTableSize, size)
		}
		cfg.tableSize = size
		return nil
	}
}

// Oscillator is a phase-accumulator LFO. Phase is kept in cycles, [0, 1).
type Oscillator struct {
	sampleRate  float64
	rampSeconds float64

	frequency *param.Smoothed
	mix       *param.Smoothed
	waveform  atomic.Int32
	bypass    atomic.Bool

	tables [3]*Table

	phase float64
	value float64

	curve []float64
}

// NewOscillator creates an oscillator with validated options.
func NewOscillator(sampleRate float64, opts ...Option) (*Oscillator, error) {
	if !core.ValidSampleRate(sampleRate) {
		return nil, fmt.Errorf("lfo sample rate must be > 0 and finite: %f", sampleRate)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	o := &Oscillator{
		sampleRate:  sampleRate,
		rampSeconds: cfg.rampSeconds,
		frequency:   param.NewSmoothed(cfg.frequencyHz),
		mix:         param.NewSmoothed(cfg.mix),
	}
	o.waveform.Store(int32(cfg.waveform))

	if cfg.tableSize > 0 {
		for _, w := range Waveforms() {
			tbl, err := NewTable(w, cfg.tableSize)
			if err != nil {
				return nil, err
			}
			o.tables[w] = tbl
		}
	}

	o.Reset()

	return o, nil
}

// Prepare re-derives ramp lengths from spec and sizes the modulation curve
// for spec.MaxBlockSize. An invalid sample rate keeps the previous one.
func (o *Oscillator) Prepare(spec core.ProcessSpec) {
	if core.ValidSampleRate(spec.SampleRate) {
		o.sampleRate = spec.SampleRate
	}
	o.curve = core.EnsureLen(o.curve, spec.MaxBlockSize)
	o.Reset()
}

// Release drops the modulation curve. Prepare must run again before
// ModulateBlock.
func (o *Oscillator) Release() {
	o.curve = nil
}

// Reset rewinds the phase and snaps frequency and mix to their targets.
func (o *Oscillator) Reset() {
	o.frequency.Reset(o.sampleRate, o.rampSeconds)
	o.mix.Reset(o.sampleRate, o.rampSeconds)
	o.phase = 0
	o.value = o.eval(Waveform(o.waveform.Load()), 0)
}

// SetFrequency sets the rate in Hz, [0, 20].
func (o *Oscillator) SetFrequency(hz float64) error {
	if err := validateFrequency(hz); err != nil {
		return err
	}
	o.frequency.SetTarget(hz)
	return nil
}

// SetWaveform switches shape from the next processed sample.
func (o *Oscillator) SetWaveform(w Waveform) error {
	if !validWaveform(w) {
		return fmt.Errorf("lfo waveform is invalid: %d", w)
	}
	o.waveform.Store(int32(w))
	return nil
}

// SetMix sets modulation depth in [0, 1].
func (o *Oscillator) SetMix(mix float64) error {
	if err := validateMix(mix); err != nil {
		return err
	}
	o.mix.SetTarget(mix)
	return nil
}

// SetBypass makes rendered curves unity gain. The phase keeps running.
func (o *Oscillator) SetBypass(bypass bool) {
	o.bypass.Store(bypass)
}

// Process advances the phase by one sample and recomputes the value.
func (o *Oscillator) Process() {
	o.phase += o.frequency.Next() / o.sampleRate
	if o.phase >= 1 {
		o.phase = wrap(o.phase)
	}
	o.value = o.eval(Waveform(o.waveform.Load()), o.phase)
}

// Value returns the value computed by the last Process (or Reset).
func (o *Oscillator) Value() float64 { return o.value }

// Phase returns the current phase in cycles, [0, 1).
func (o *Oscillator) Phase() float64 { return o.phase }

// Render fills dst with the amplitude curve, advancing the oscillator once
// per element. The bipolar value is mapped to [0, 1] and blended toward unity
// by mix, so mix 0 is a flat curve. Bypassed oscillators render unity.
func (o *Oscillator) Render(dst []float64) {
	if o.bypass.Load() {
		o.skip(len(dst))
		for i := range dst {
			dst[i] = 1
		}
		return
	}
	for i := range dst {
		o.Process()
		dst[i] = modGain(o.mix.Next(), o.value)
	}
}

// ProcessInPlace multiplies one channel by the amplitude curve sample by sample.
func (o *Oscillator) ProcessInPlace(buf []float64) {
	if o.bypass.Load() {
		o.skip(len(buf))
		return
	}
	for i := range buf {
		o.Process()
		buf[i] *= modGain(o.mix.Next(), o.value)
	}
}

// skip runs the phase for n samples while bypassed. The mix ramp has no
// audible effect then and jumps ahead in one step.
func (o *Oscillator) skip(n int) {
	for range n {
		o.Process()
	}
	o.mix.Skip(n)
}

// ModulateBlock renders one curve for the block and multiplies it into every
// channel, so all channels share the same LFO phase. Prepare must have sized
// the curve for at least block.NumSamples() samples.
func (o *Oscillator) ModulateBlock(block core.Block) {
	n := block.NumSamples()
	curve := o.curve[:n]
	o.Render(curve)

	for ch := range block {
		vecmath.MulBlockInPlace(block[ch], curve)
	}
}

// SampleRate returns sample rate in Hz.
func (o *Oscillator) SampleRate() float64 { return o.sampleRate }

// Frequency returns the frequency target in Hz.
func (o *Oscillator) Frequency() float64 { return o.frequency.Target() }

// Waveform returns the active shape.
func (o *Oscillator) Waveform() Waveform { return Waveform(o.waveform.Load()) }

// Mix returns the mix target.
func (o *Oscillator) Mix() float64 { return o.mix.Target() }

// Bypassed reports whether rendering is bypassed.
func (o *Oscillator) Bypassed() bool { return o.bypass.Load() }

// UsesTable reports whether values come from lookup tables.
func (o *Oscillator) UsesTable() bool { return o.tables[0] != nil }

func (o *Oscillator) eval(w Waveform, p float64) float64 {
	if tbl := o.tables[w]; tbl != nil {
		return tbl.Lookup(p)
	}
	return w.Eval(p)
}

func modGain(mix, value float64) float64 {
	return (1 - mix) + mix*0.5*(1+value)
}

func validateFrequency(hz float64) error {
	if hz < minFrequencyHz || hz > maxFrequencyHz || math.IsNaN(hz) {
		return fmt.Errorf("lfo frequency must be in [%g, %g] Hz: %f", minFrequencyHz, maxFrequencyHz, hz)
	}
	return nil
}

func validateMix(mix float64) error {
	if mix < 0 || mix > 1 || math.IsNaN(mix) {
		return fmt.Errorf("lfo mix must be in [0, 1]: %f", mix)
	}
	return nil
}
