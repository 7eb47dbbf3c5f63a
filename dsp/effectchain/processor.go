package effectchain

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/cwbudde/algo-fxchain/dsp/core"
	"github.com/cwbudde/algo-fxchain/dsp/delay"
	"github.com/cwbudde/algo-fxchain/dsp/distortion"
	"github.com/cwbudde/algo-fxchain/dsp/lfo"
	"github.com/cwbudde/algo-fxchain/dsp/param"
	"github.com/cwbudde/algo-fxchain/dsp/reverb"
)

// ErrNotPrepared is returned by accessors that need a prepared processor.
var ErrNotPrepared = errors.New("effectchain: processor not prepared")

// Stage names.
const (
	StageReverb     = "reverb"
	StageDistortion = "distortion"
	StageLFO        = "lfo"
	StageStutter    = "stutter"
)

// State is the processor lifecycle state.
type State int32

const (
	StateUninitialized State = iota
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Layout selects which stages run and in what order.
type Layout int

const (
	// LayoutModulation runs reverb, then distortion, then LFO amplitude
	// modulation.
	LayoutModulation Layout = iota
	// LayoutStutter runs distortion, then the stutter delay.
	LayoutStutter
)

func (l Layout) String() string {
	switch l {
	case LayoutModulation:
		return "modulation"
	case LayoutStutter:
		return "stutter"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// Stages returns the stage names of l in processing order.
func (l Layout) Stages() []string {
	switch l {
	case LayoutModulation:
		return []string{StageReverb, StageDistortion, StageLFO}
	case LayoutStutter:
		return []string{StageDistortion, StageStutter}
	default:
		return nil
	}
}

// ParseLayout converts a layout name to a Layout.
func ParseLayout(name string) (Layout, error) {
	for _, l := range []Layout{LayoutModulation, LayoutStutter} {
		if strings.EqualFold(name, l.String()) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown layout: %q", name)
}

// Option configures a Processor.
type Option func(*config) error

type config struct {
	layout    Layout
	delayMs   float64
	useTable  bool
	tableSize int
}

func defaultConfig() config {
	return config{
		layout:  LayoutModulation,
		delayMs: 200,
	}
}

// WithLayout selects the stage layout.
func WithLayout(l Layout) Option {
	return func(cfg *config) error {
		if l.Stages() == nil {
			return fmt.Errorf("effectchain layout is invalid: %d", l)
		}
		cfg.layout = l
		return nil
	}
}

// WithDelayMs sets the stutter delay time in milliseconds.
func WithDelayMs(ms float64) Option {
	return func(cfg *config) error {
		if ms <= 0 {
			return fmt.Errorf("effectchain delay must be > 0 ms: %f", ms)
		}
		cfg.delayMs = ms
		return nil
	}
}

// WithLookupTable backs the LFO with lookup tables of size points.
// Zero selects the default table size.
func WithLookupTable(size int) Option {
	return func(cfg *config) error {
		if size < 0 {
			return fmt.Errorf("effectchain lookup table size must be >= 0: %d", size)
		}
		cfg.useTable = true
		cfg.tableSize = size
		return nil
	}
}

// Processor runs the effect stages of one Layout over blocks of audio.
//
// Prepare, ProcessBlock, Reset and ReleaseResources must be called from a
// single goroutine. The control methods may be called from any goroutine.
type Processor struct {
	layout Layout
	state  atomic.Int32
	spec   core.ProcessSpec

	reverb     *reverb.Reverb
	distortion *distortion.Engine
	lfo        *lfo.Oscillator
	stutter    *delay.Stutter

	all    []Stage
	stages []Stage

	registry *param.Registry
	controls map[string]control
}

// New creates an uninitialized processor.
func New(opts ...Option) (*Processor, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	sampleRate := core.DefaultProcessSpec().SampleRate

	rv, err := reverb.New(sampleRate)
	if err != nil {
		return nil, fmt.Errorf("effectchain: create reverb: %w", err)
	}

	dist, err := distortion.NewEngine(sampleRate)
	if err != nil {
		return nil, fmt.Errorf("effectchain: create distortion: %w", err)
	}

	var lfoOpts []lfo.Option
	if cfg.useTable {
		lfoOpts = append(lfoOpts, lfo.WithLookupTable(cfg.tableSize))
	}
	osc, err := lfo.NewOscillator(sampleRate, lfoOpts...)
	if err != nil {
		return nil, fmt.Errorf("effectchain: create lfo: %w", err)
	}

	st, err := delay.NewStutter(delay.WithDelayMs(cfg.delayMs))
	if err != nil {
		return nil, fmt.Errorf("effectchain: create stutter: %w", err)
	}

	p := &Processor{
		layout:     cfg.layout,
		reverb:     rv,
		distortion: dist,
		lfo:        osc,
		stutter:    st,
	}

	byName := map[string]Stage{
		StageReverb:     reverbStage{fx: rv},
		StageDistortion: distortionStage{fx: dist},
		StageLFO:        lfoStage{fx: osc},
		StageStutter:    stutterStage{fx: st},
	}
	p.all = []Stage{byName[StageReverb], byName[StageDistortion], byName[StageLFO], byName[StageStutter]}
	for _, name := range cfg.layout.Stages() {
		p.stages = append(p.stages, byName[name])
	}

	if err := p.initControls(); err != nil {
		return nil, err
	}

	return p, nil
}

// Prepare validates spec, prepares every owned stage for it and moves the
// processor to StateReady. On error the processor is left uninitialized.
func (p *Processor) Prepare(spec core.ProcessSpec) error {
	if err := spec.Validate(); err != nil {
		p.state.Store(int32(StateUninitialized))
		return fmt.Errorf("effectchain: %w", err)
	}

	for _, s := range p.all {
		if err := s.Prepare(spec); err != nil {
			p.state.Store(int32(StateUninitialized))
			return fmt.Errorf("effectchain: %w", err)
		}
	}

	p.spec = spec
	p.state.Store(int32(StateReady))

	return nil
}

// Reset clears every stage's internal state without reallocating.
func (p *Processor) Reset() {
	for _, s := range p.all {
		s.Reset()
	}
}

// ReleaseResources drops every stage's processing buffers and returns to
// StateUninitialized. Control values are kept.
func (p *Processor) ReleaseResources() {
	for _, s := range p.all {
		s.Release()
	}
	p.state.Store(int32(StateUninitialized))
}

// ProcessBlock runs block through the layout's stages in place.
//
// It panics if the processor is not prepared, if the block's channel count
// differs from the prepared spec, if channels have unequal lengths or if the
// block is longer than the prepared MaxBlockSize.
func (p *Processor) ProcessBlock(block core.Block) {
	if State(p.state.Load()) != StateReady {
		panic("effectchain: ProcessBlock called before Prepare")
	}
	if len(block) != p.spec.NumChannels {
		panic(fmt.Sprintf("effectchain: block has %d channels, prepared for %d", len(block), p.spec.NumChannels))
	}
	if !block.Uniform() {
		panic("effectchain: block channels have unequal lengths")
	}
	if n := block.NumSamples(); n > p.spec.MaxBlockSize {
		panic(fmt.Sprintf("effectchain: block has %d samples, prepared for at most %d", n, p.spec.MaxBlockSize))
	}

	for _, s := range p.stages {
		s.Process(block)
	}
}

// State returns the lifecycle state.
func (p *Processor) State() State { return State(p.state.Load()) }

// Layout returns the stage layout.
func (p *Processor) Layout() Layout { return p.layout }

// StageNames returns the active stage names in processing order.
func (p *Processor) StageNames() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Spec returns the prepared spec, or ErrNotPrepared.
func (p *Processor) Spec() (core.ProcessSpec, error) {
	if p.State() != StateReady {
		return core.ProcessSpec{}, ErrNotPrepared
	}
	return p.spec, nil
}

// DelayCapacity returns the stutter delay length in samples, or
// ErrNotPrepared.
func (p *Processor) DelayCapacity() (int, error) {
	if p.State() != StateReady {
		return 0, ErrNotPrepared
	}
	return p.stutter.Capacity(), nil
}
