package delay

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-fxchain/dsp/core"
	"github.com/cwbudde/algo-fxchain/dsp/param"
)

const (
	defaultStutterFeedback = 0.35
	defaultStutterMix      = 0.5
	defaultStutterGain     = 1.0
	defaultStutterDrive    = 1.0
	defaultStutterDelayMs  = 200.0

	minStutterDrive   = 1.0
	maxStutterDrive   = 10.0
	maxStutterDelayMs = 2000.0

	// Pre-gain of the arctangent limiter on the dry input.
	stutterLimiterGain = 10.0
)

// TapMode selects which signal the wet path of Stutter carries.
type TapMode int

const (
	// TapFeedback outputs the feedback-scaled tap, the same value that is
	// re-injected into the loop. With zero feedback the wet path is silent.
	TapFeedback TapMode = iota
	// TapDirect outputs the unscaled tap, so the first echo arrives at full
	// level and feedback only shapes the repeats.
	TapDirect
)

// StutterOption mutates stutter construction parameters.
type StutterOption func(*stutterConfig) error

type stutterConfig struct {
	feedback float64
	mix      float64
	gain     float64
	drive    float64
	delayMs  float64
	tapMode  TapMode
}

func defaultStutterConfig() stutterConfig {
	return stutterConfig{
		feedback: defaultStutterFeedback,
		mix:      defaultStutterMix,
		gain:     defaultStutterGain,
		drive:    defaultStutterDrive,
		delayMs:  defaultStutterDelayMs,
		tapMode:  TapFeedback,
	}
}

// WithFeedback sets the loop feedback in [0, 1].
func WithFeedback(feedback float64) StutterOption {
	return func(cfg *stutterConfig) error {
		if err := validateUnit("feedback", feedback); err != nil {
			return err
		}
		cfg.feedback = feedback
		return nil
	}
}

// WithMix sets dry/wet mix in [0, 1].
func WithMix(mix float64) StutterOption {
	return func(cfg *stutterConfig) error {
		if err := validateUnit("mix", mix); err != nil {
			return err
		}
		cfg.mix = mix
		return nil
	}
}

// WithGain sets linear output gain in [0, 1].
func WithGain(gain float64) StutterOption {
	return func(cfg *stutterConfig) error {
		if err := validateUnit("gain", gain); err != nil {
			return err
		}
		cfg.gain = gain
		return nil
	}
}

// WithDrive sets the input limiter drive in [1, 10].
func WithDrive(drive float64) StutterOption {
	return func(cfg *stutterConfig) error {
		if err := validateDrive(drive); err != nil {
			return err
		}
		cfg.drive = drive
		return nil
	}
}

// WithDelayMs sets the delay time used when Prepare is given a zero time.
func WithDelayMs(ms float64) StutterOption {
	return func(cfg *stutterConfig) error {
		if err := validateDelayMs(ms); err != nil {
			return err
		}
		cfg.delayMs = ms
		return nil
	}
}

// WithTapMode selects what the wet path carries.
func WithTapMode(mode TapMode) StutterOption {
	return func(cfg *stutterConfig) error {
		if mode != TapFeedback && mode != TapDirect {
			return fmt.Errorf("stutter tap mode is invalid: %d", mode)
		}
		cfg.tapMode = mode
		return nil
	}
}

// Stutter is a per-channel feedback delay. Every line is written once per
// sample, so all write positions stay at one shared cursor that advances by
// the block length.
type Stutter struct {
	feedback *param.Scalar
	mix      *param.Scalar
	gain     *param.Scalar
	drive    *param.Scalar
	tapMode  TapMode

	sampleRate float64
	delayMs    float64
	lines      []*Line
	capacity   int
	cursor     int
}

// NewStutter creates an unprepared stutter with validated options.
func NewStutter(opts ...StutterOption) (*Stutter, error) {
	cfg := defaultStutterConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	return &Stutter{
		feedback: param.NewScalar(cfg.feedback),
		mix:      param.NewScalar(cfg.mix),
		gain:     param.NewScalar(cfg.gain),
		drive:    param.NewScalar(cfg.drive),
		tapMode:  cfg.tapMode,
		delayMs:  cfg.delayMs,
	}, nil
}

// Prepare allocates one zeroed line per channel holding
// round(sampleRate*delayMs/1000) samples and rewinds the cursor. A delayMs of
// zero keeps the configured delay time.
func (s *Stutter) Prepare(spec core.ProcessSpec, delayMs float64) error {
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("stutter: %w", err)
	}
	if delayMs == 0 {
		delayMs = s.delayMs
	}
	if err := validateDelayMs(delayMs); err != nil {
		return err
	}

	capacity := int(math.Round(spec.SampleRate * delayMs / 1000))
	if capacity < 1 {
		capacity = 1
	}

	lines := make([]*Line, spec.NumChannels)
	for ch := range lines {
		line, err := New(capacity)
		if err != nil {
			return fmt.Errorf("stutter: %w", err)
		}
		lines[ch] = line
	}

	s.sampleRate = spec.SampleRate
	s.delayMs = delayMs
	s.lines = lines
	s.capacity = capacity
	s.cursor = 0

	return nil
}

// Release drops the delay buffers. Prepare must run again before processing.
func (s *Stutter) Release() {
	s.lines = nil
	s.capacity = 0
	s.cursor = 0
}

// Reset zeroes every line and rewinds the cursor without reallocating.
func (s *Stutter) Reset() {
	for _, line := range s.lines {
		line.Reset()
	}
	s.cursor = 0
}

// SetFeedback sets the loop feedback in [0, 1].
func (s *Stutter) SetFeedback(feedback float64) error {
	if err := validateUnit("feedback", feedback); err != nil {
		return err
	}
	s.feedback.Store(feedback)
	return nil
}

// SetMix sets dry/wet mix in [0, 1].
func (s *Stutter) SetMix(mix float64) error {
	if err := validateUnit("mix", mix); err != nil {
		return err
	}
	s.mix.Store(mix)
	return nil
}

// SetGain sets linear output gain in [0, 1].
func (s *Stutter) SetGain(gain float64) error {
	if err := validateUnit("gain", gain); err != nil {
		return err
	}
	s.gain.Store(gain)
	return nil
}

// SetDrive sets the input limiter drive in [1, 10].
func (s *Stutter) SetDrive(drive float64) error {
	if err := validateDrive(drive); err != nil {
		return err
	}
	s.drive.Store(drive)
	return nil
}

// ProcessBlock runs every channel of block through its delay line in place.
// Controls are sampled once per block. The block must not have more channels
// than the spec passed to Prepare.
func (s *Stutter) ProcessBlock(block core.Block) {
	if len(block) > len(s.lines) {
		panic(fmt.Sprintf("stutter: block has %d channels, prepared for %d", len(block), len(s.lines)))
	}

	n := block.NumSamples()
	if n == 0 {
		return
	}

	feedback := s.feedback.Load()
	mix := s.mix.Load()
	gain := s.gain.Load()
	drive := s.drive.Load() * stutterLimiterGain

	for ch, buf := range block {
		line := s.lines[ch]

		for i, x := range buf {
			dry := math.Atan(x * drive)

			// The oldest sample is the one the write below replaces.
			tap := line.Read(s.capacity)
			delayed := tap * feedback
			line.Write(dry + delayed)

			wet := delayed
			if s.tapMode == TapDirect {
				wet = tap
			}
			buf[i] = core.Lerp(dry, wet, mix) * gain
		}
	}

	s.cursor = (s.cursor + n) % s.capacity
}

// Capacity returns the delay length in samples.
func (s *Stutter) Capacity() int { return s.capacity }

// Cursor returns the shared write cursor.
func (s *Stutter) Cursor() int { return s.cursor }

// DelayMs returns the delay time in milliseconds.
func (s *Stutter) DelayMs() float64 { return s.delayMs }

// Feedback returns the loop feedback.
func (s *Stutter) Feedback() float64 { return s.feedback.Load() }

// Mix returns the dry/wet mix.
func (s *Stutter) Mix() float64 { return s.mix.Load() }

// Gain returns the linear output gain.
func (s *Stutter) Gain() float64 { return s.gain.Load() }

// Drive returns the input limiter drive.
func (s *Stutter) Drive() float64 { return s.drive.Load() }

// TapMode returns the wet path selection.
func (s *Stutter) TapMode() TapMode { return s.tapMode }

func validateUnit(name string, v float64) error {
	if v < 0 || v > 1 || math.IsNaN(v) {
		return fmt.Errorf("stutter %s must be in [0, 1]: %f", name, v)
	}
	return nil
}

func validateDrive(drive float64) error {
	if drive < minStutterDrive || drive > maxStutterDrive || math.IsNaN(drive) {
		return fmt.Errorf("stutter drive must be in [%g, %g]: %f", minStutterDrive, maxStutterDrive, drive)
	}
	return nil
}

func validateDelayMs(ms float64) error {
	if ms <= 0 || ms > maxStutterDelayMs || math.IsNaN(ms) {
		return fmt.Errorf("stutter delay must be in (0, %g] ms: %f", maxStutterDelayMs, ms)
	}
	return nil
}
