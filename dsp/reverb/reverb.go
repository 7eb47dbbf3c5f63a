package reverb

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-fxchain/dsp/core"
	"github.com/cwbudde/algo-fxchain/dsp/param"
	vecmath "github.com/cwbudde/algo-vecmath"
)

const (
	numCombs     = 8
	numAllpasses = 4

	tuningSampleRate = 44100.0
	stereoSpread     = 23

	fixedGain       = 0.015
	allpassFeedback = 0.5
	roomScale       = 0.28
	roomOffset      = 0.7
	dampScale       = 0.4
	wetScale        = 3.0
	dryScale        = 2.0

	defaultWet         = 0.33
	defaultDry         = 0.4
	defaultRoomSize    = 0.5
	defaultDamp        = 0.5
	defaultRampSeconds = 0.01
)

// Delay lengths in samples at 44.1 kHz.
var (
	combTuning    = [numCombs]int{1116, 1188, 1277, 1356, 1422, 1491, 1557, 1617}
	allpassTuning = [numAllpasses]int{556, 441, 341, 225}
)

// Option mutates reverb construction parameters.
type Option func(*config) error

type config struct {
	wet         float64
	dry         float64
	roomSize    float64
	damp        float64
	rampSeconds float64
}

func defaultConfig() config {
	return config{
		wet:         defaultWet,
		dry:         defaultDry,
		roomSize:    defaultRoomSize,
		damp:        defaultDamp,
		rampSeconds: defaultRampSeconds,
	}
}

// WithWet sets wet level in [0, 1].
func WithWet(v float64) Option {
	return func(cfg *config) error {
		if err := validateUnit("wet", v); err != nil {
			return err
		}
		cfg.wet = v
		return nil
	}
}

// WithDry sets dry level in [0, 1].
func WithDry(v float64) Option {
	return func(cfg *config) error {
		if err := validateUnit("dry", v); err != nil {
			return err
		}
		cfg.dry = v
		return nil
	}
}

// WithRoomSize sets comb feedback in [0, 1].
func WithRoomSize(v float64) Option {
	return func(cfg *config) error {
		if err := validateUnit("room size", v); err != nil {
			return err
		}
		cfg.roomSize = v
		return nil
	}
}

// WithDamp sets high-frequency damping in [0, 1].
func WithDamp(v float64) Option {
	return func(cfg *config) error {
		if err := validateUnit("damp", v); err != nil {
			return err
		}
		cfg.damp = v
		return nil
	}
}

// WithRampSeconds sets the wet/dry smoothing time.
func WithRampSeconds(seconds float64) Option {
	return func(cfg *config) error {
		if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
			return fmt.Errorf("reverb ramp seconds must be >= 0 and finite: %f", seconds)
		}
		cfg.rampSeconds = seconds
		return nil
	}
}

type channel struct {
	combs     [numCombs]comb
	allpasses [numAllpasses]allpass
}

func newChannel(sampleRate float64, spread int) *channel {
	scale := sampleRate / tuningSampleRate
	ch := &channel{}
	for i, n := range combTuning {
		ch.combs[i] = newComb(int(math.Round(float64(n+spread) * scale)))
	}
	for i, n := range allpassTuning {
		ch.allpasses[i] = newAllpass(int(math.Round(float64(n+spread) * scale)))
	}
	return ch
}

func (c *channel) process(input float64) float64 {
	x := input * fixedGain

	var acc float64
	for i := range c.combs {
		acc += c.combs[i].process(x)
	}
	for i := range c.allpasses {
		acc = c.allpasses[i].process(acc)
	}
	return acc
}

func (c *channel) reset() {
	for i := range c.combs {
		c.combs[i].reset()
	}
	for i := range c.allpasses {
		c.allpasses[i].reset()
	}
}

func (c *channel) setRoom(feedback, damp float64) {
	for i := range c.combs {
		c.combs[i].feedback = feedback
		c.combs[i].setDamp(damp)
	}
}

// Reverb is a multichannel Freeverb. Odd channels use slightly longer delays
// to decorrelate stereo pairs. Room size and damping are sampled once per
// block; wet and dry levels ramp per sample.
type Reverb struct {
	sampleRate  float64
	rampSeconds float64

	wet      *param.Smoothed
	dry      *param.Smoothed
	roomSize *param.Scalar
	damp     *param.Scalar

	channels []*channel

	wetCurve []float64
	dryCurve []float64
	scratch  []float64
}

// New creates a reverb with validated options. Prepare must run before
// processing.
func New(sampleRate float64, opts ...Option) (*Reverb, error) {
	if !core.ValidSampleRate(sampleRate) {
		return nil, fmt.Errorf("reverb sample rate must be > 0 and finite: %f", sampleRate)
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

	r := &Reverb{
		sampleRate:  sampleRate,
		rampSeconds: cfg.rampSeconds,
		wet:         param.NewSmoothed(cfg.wet),
		dry:         param.NewSmoothed(cfg.dry),
		roomSize:    param.NewScalar(cfg.roomSize),
		damp:        param.NewScalar(cfg.damp),
	}
	r.wet.Reset(sampleRate, cfg.rampSeconds)
	r.dry.Reset(sampleRate, cfg.rampSeconds)

	return r, nil
}

// Prepare allocates per-channel delay lines for spec, scales their lengths to
// spec.SampleRate and snaps the wet/dry ramps.
func (r *Reverb) Prepare(spec core.ProcessSpec) error {
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("reverb: %w", err)
	}

	r.sampleRate = spec.SampleRate
	r.channels = make([]*channel, spec.NumChannels)
	for i := range r.channels {
		r.channels[i] = newChannel(spec.SampleRate, (i%2)*stereoSpread)
	}

	r.wetCurve = core.EnsureLen(r.wetCurve, spec.MaxBlockSize)
	r.dryCurve = core.EnsureLen(r.dryCurve, spec.MaxBlockSize)
	r.scratch = core.EnsureLen(r.scratch, spec.MaxBlockSize)

	r.Reset()
	return nil
}

// Release drops the delay lines and block buffers. Prepare must run again
// before processing.
func (r *Reverb) Release() {
	r.channels = nil
	r.wetCurve = nil
	r.dryCurve = nil
	r.scratch = nil
}

// Reset clears all delay and filter state and snaps the level ramps.
func (r *Reverb) Reset() {
	for _, ch := range r.channels {
		ch.reset()
	}
	r.wet.Reset(r.sampleRate, r.rampSeconds)
	r.dry.Reset(r.sampleRate, r.rampSeconds)
}

// SetWet sets wet level in [0, 1].
func (r *Reverb) SetWet(v float64) error {
	if err := validateUnit("wet", v); err != nil {
		return err
	}
	r.wet.SetTarget(v)
	return nil
}

// SetDry sets dry level in [0, 1].
func (r *Reverb) SetDry(v float64) error {
	if err := validateUnit("dry", v); err != nil {
		return err
	}
	r.dry.SetTarget(v)
	return nil
}

// SetRoomSize sets comb feedback in [0, 1].
func (r *Reverb) SetRoomSize(v float64) error {
	if err := validateUnit("room size", v); err != nil {
		return err
	}
	r.roomSize.Store(v)
	return nil
}

// SetDamp sets high-frequency damping in [0, 1].
func (r *Reverb) SetDamp(v float64) error {
	if err := validateUnit("damp", v); err != nil {
		return err
	}
	r.damp.Store(v)
	return nil
}

// ProcessBlock reverberates block in place. The block must fit the spec
// given to Prepare.
func (r *Reverb) ProcessBlock(block core.Block) {
	if len(block) > len(r.channels) {
		panic(fmt.Sprintf("reverb: block has %d channels, prepared for %d", len(block), len(r.channels)))
	}

	n := block.NumSamples()
	if n == 0 {
		return
	}

	feedback := r.roomSize.Load()*roomScale + roomOffset
	damp := r.damp.Load() * dampScale

	wetCurve := r.wetCurve[:n]
	dryCurve := r.dryCurve[:n]
	for i := range n {
		wetCurve[i] = r.wet.Next() * wetScale
		dryCurve[i] = r.dry.Next() * dryScale
	}

	wet := r.scratch[:n]
	for c, buf := range block {
		ch := r.channels[c]
		ch.setRoom(feedback, damp)

		for i, x := range buf {
			wet[i] = ch.process(x)
		}

		vecmath.MulBlockInPlace(wet, wetCurve)
		vecmath.MulBlockInPlace(buf, dryCurve)
		vecmath.AddBlockInPlace(buf, wet)
	}
}

// SampleRate returns sample rate in Hz.
func (r *Reverb) SampleRate() float64 { return r.sampleRate }

// Wet returns the wet level target.
func (r *Reverb) Wet() float64 { return r.wet.Target() }

// Dry returns the dry level target.
func (r *Reverb) Dry() float64 { return r.dry.Target() }

// RoomSize returns the room size.
func (r *Reverb) RoomSize() float64 { return r.roomSize.Load() }

// Damp returns the damping amount.
func (r *Reverb) Damp() float64 { return r.damp.Load() }

func validateUnit(name string, v float64) error {
	if v < 0 || v > 1 || math.IsNaN(v) {
		return fmt.Errorf("reverb %s must be in [0, 1]: %f", name, v)
	}
	return nil
}
