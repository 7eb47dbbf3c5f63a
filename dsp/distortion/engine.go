package distortion

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-fxchain/dsp/core"
	"github.com/cwbudde/algo-fxchain/dsp/param"
)

const (
	defaultDriveDB     = 0.0
	defaultMix         = 1.0
	defaultOutputDB    = 0.0
	defaultRampSeconds = 0.02

	minDriveDB  = 0.0
	maxDriveDB  = 24.0
	minOutputDB = -24.0
	maxOutputDB = 24.0

	// Wet signal magnitude ceiling shared by the clipping models.
	clipCeiling = 0.99

	// Exponent applied to the drive (in dB) for the soft clipper's makeup loss.
	softClipMakeup = -0.25
)

// Model selects the per-sample nonlinearity.
type Model int32

const (
	ModelHardClip Model = iota
	ModelSoftClip
	ModelSaturation
)

// String returns a short model name.
func (m Model) String() string {
	switch m {
	case ModelHardClip:
		return "hard"
	case ModelSoftClip:
		return "soft"
	case ModelSaturation:
		return "saturation"
	default:
		return fmt.Sprintf("Model(%d)", int32(m))
	}
}

// Models lists every valid model in declaration order.
func Models() []Model {
	return []Model{ModelHardClip, ModelSoftClip, ModelSaturation}
}

// ParseModel maps a model name back to its Model.
func ParseModel(name string) (Model, error) {
	for _, m := range Models() {
		if m.String() == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("distortion model is unknown: %q", name)
}

func validModel(m Model) bool {
	return m >= ModelHardClip && m <= ModelSaturation
}

// Option mutates construction-time parameters.
type Option func(*config) error

type config struct {
	model       Model
	driveDB     float64
	mix         float64
	outputDB    float64
	rampSeconds float64
}

func defaultConfig() config {
	return config{
		model:       ModelHardClip,
		driveDB:     defaultDriveDB,
		mix:         defaultMix,
		outputDB:    defaultOutputDB,
		rampSeconds: defaultRampSeconds,
	}
}

// WithModel selects the initial transfer model.
func WithModel(m Model) Option {
	return func(cfg *config) error {
		if !validModel(m) {
			return fmt.Errorf("distortion model is invalid: %d", m)
		}
		cfg.model = m
		return nil
	}
}

// WithDrive sets input drive in dB, [0, 24].
func WithDrive(db float64) Option {
	return func(cfg *config) error {
		if err := validateDrive(db); err != nil {
			return err
		}
		cfg.driveDB = db
		return nil
	}
}

// WithMix sets dry/wet mix in [0, 1].
func WithMix(mix float64) Option {
	return func(cfg *config) error {
		if err := validateMix(mix); err != nil {
			return err
		}
		cfg.mix = mix
		return nil
	}
}

// WithOutput sets output gain in dB, [-24, 24].
func WithOutput(db float64) Option {
	return func(cfg *config) error {
		if err := validateOutput(db); err != nil {
			return err
		}
		cfg.outputDB = db
		return nil
	}
}

// WithRampSeconds sets the smoothing time for all three controls.
func WithRampSeconds(seconds float64) Option {
	return func(cfg *config) error {
		if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
			return fmt.Errorf("distortion ramp time must be >= 0 and finite: %f", seconds)
		}
		cfg.rampSeconds = seconds
		return nil
	}
}

// Engine is a waveshaping distortion with three smoothed controls.
type Engine struct {
	sampleRate  float64
	rampSeconds float64

	model atomic.Int32

	input  *param.Smoothed
	mix    *param.Smoothed
	output *param.Smoothed
}

// NewEngine creates a distortion engine with validated options. Ramps are
// armed for sampleRate; Prepare re-arms them for a new stream.
func NewEngine(sampleRate float64, opts ...Option) (*Engine, error) {
	if !core.ValidSampleRate(sampleRate) {
		return nil, fmt.Errorf("distortion sample rate must be > 0 and finite: %f", sampleRate)
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

	e := &Engine{
		sampleRate:  sampleRate,
		rampSeconds: cfg.rampSeconds,
		input:       param.NewSmoothed(cfg.driveDB),
		mix:         param.NewSmoothed(cfg.mix),
		output:      param.NewSmoothed(cfg.outputDB),
	}
	e.model.Store(int32(cfg.model))
	e.Reset()

	return e, nil
}

// Prepare re-derives ramp lengths from spec. An invalid sample rate leaves
// the previous ramps in place.
func (e *Engine) Prepare(spec core.ProcessSpec) {
	if core.ValidSampleRate(spec.SampleRate) {
		e.sampleRate = spec.SampleRate
	}
	e.Reset()
}

// Reset snaps every control to its target and re-arms the ramps.
func (e *Engine) Reset() {
	e.input.Reset(e.sampleRate, e.rampSeconds)
	e.mix.Reset(e.sampleRate, e.rampSeconds)
	e.output.Reset(e.sampleRate, e.rampSeconds)
}

// SetDrive sets input drive in dB, [0, 24].
func (e *Engine) SetDrive(db float64) error {
	if err := validateDrive(db); err != nil {
		return err
	}
	e.input.SetTarget(db)
	return nil
}

// SetMix sets dry/wet mix in [0, 1].
func (e *Engine) SetMix(mix float64) error {
	if err := validateMix(mix); err != nil {
		return err
	}
	e.mix.SetTarget(mix)
	return nil
}

// SetOutput sets output gain in dB, [-24, 24].
func (e *Engine) SetOutput(db float64) error {
	if err := validateOutput(db); err != nil {
		return err
	}
	e.output.SetTarget(db)
	return nil
}

// SetModel switches the transfer model. It applies from the next sample.
func (e *Engine) SetModel(m Model) error {
	if !validModel(m) {
		return fmt.Errorf("distortion model is invalid: %d", m)
	}
	e.model.Store(int32(m))
	return nil
}

// ProcessSample shapes one sample. Each control ramp advances once, except
// the soft clipper which reads the drive ramp twice.
func (e *Engine) ProcessSample(x float64) float64 {
	switch Model(e.model.Load()) {
	case ModelSoftClip:
		return e.mixOutput(x, e.softClip(x))
	case ModelSaturation:
		return e.mixOutput(x, e.saturate(x))
	default:
		return e.mixOutput(x, e.hardClip(x))
	}
}

// ProcessInPlace shapes one channel in place.
func (e *Engine) ProcessInPlace(buf []float64) {
	for i := range buf {
		buf[i] = e.ProcessSample(buf[i])
	}
}

// ProcessBlock shapes every channel of block in place, channel by channel.
// Control ramps continue across channel boundaries.
func (e *Engine) ProcessBlock(block core.Block) {
	for ch := range block {
		e.ProcessInPlace(block[ch])
	}
}

// SampleRate returns sample rate in Hz.
func (e *Engine) SampleRate() float64 { return e.sampleRate }

// Model returns the active transfer model.
func (e *Engine) Model() Model { return Model(e.model.Load()) }

// Drive returns the drive target in dB.
func (e *Engine) Drive() float64 { return e.input.Target() }

// Mix returns the mix target.
func (e *Engine) Mix() float64 { return e.mix.Target() }

// Output returns the output gain target in dB.
func (e *Engine) Output() float64 { return e.output.Target() }

func (e *Engine) hardClip(x float64) float64 {
	wet := x * core.DBToLinear(e.input.Next())
	return ceiling(wet)
}

func (e *Engine) softClip(x float64) float64 {
	wet := x * core.DBToLinear(e.input.Next())
	wet = (2 / math.Pi) * math.Atan(wet)
	wet *= 2
	wet *= core.DBToLinear(e.input.Next() * softClipMakeup)
	return ceiling(wet)
}

func (e *Engine) saturate(x float64) float64 {
	wet := x * core.DBToLinear(e.input.Next())
	if wet >= 0 {
		return math.Tanh(wet)
	}
	return math.Tanh(math.Sinh(wet)) - 0.2*wet*math.Sin(math.Pi*wet)
}

// mixOutput is the tail shared by every model: dry/wet blend, then output gain.
func (e *Engine) mixOutput(dry, wet float64) float64 {
	mix := e.mix.Next()
	return core.Lerp(dry, wet, mix) * core.DBToLinear(e.output.Next())
}

func ceiling(wet float64) float64 {
	if a := math.Abs(wet); a > clipCeiling {
		wet *= clipCeiling / a
	}
	return wet
}

func validateDrive(db float64) error {
	if db < minDriveDB || db > maxDriveDB || math.IsNaN(db) {
		return fmt.Errorf("distortion drive must be in [%g, %g] dB: %f", minDriveDB, maxDriveDB, db)
	}
	return nil
}

func validateMix(mix float64) error {
	if mix < 0 || mix > 1 || math.IsNaN(mix) {
		return fmt.Errorf("distortion mix must be in [0, 1]: %f", mix)
	}
	return nil
}

func validateOutput(db float64) error {
	if db < minOutputDB || db > maxOutputDB || math.IsNaN(db) {
		return fmt.Errorf("distortion output must be in [%g, %g] dB: %f", minOutputDB, maxOutputDB, db)
	}
	return nil
}
