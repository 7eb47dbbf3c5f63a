package effectchain

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/cwbudde/algo-fxchain/dsp/distortion"
	"github.com/cwbudde/algo-fxchain/dsp/lfo"
	"github.com/cwbudde/algo-fxchain/dsp/param"
)

// ErrUnknownParameter is returned for parameter IDs the processor does not expose.
var ErrUnknownParameter = errors.New("unknown parameter")

// Parameter IDs.
const (
	ParamDrive           = "drive"
	ParamMix             = "mix"
	ParamOutput          = "output"
	ParamDistortionModel = "distortionModel"
	ParamLFOType         = "lfoType"
	ParamLFOFrequency    = "lfoFrequency"
	ParamLFOMix          = "lfoMix"
	ParamLFOBypass       = "lfoBypass"
	ParamReverbWet       = "reverbWet"
	ParamReverbDry       = "reverbDry"
	ParamReverbRoomSize  = "reverbRoomSize"
	ParamReverbDamp      = "reverbDamp"
	ParamFeedback        = "feedback"
	ParamStutterMix      = "stutterMix"
	ParamGain            = "gain"
	ParamStutterDrive    = "stutterDrive"
)

type control struct {
	value *param.Scalar
	apply func(float64) error
}

func (p *Processor) initControls() error {
	boolean := func(set func(bool)) func(float64) error {
		return func(v float64) error {
			set(v >= 0.5)
			return nil
		}
	}

	defs := []struct {
		desc  param.Descriptor
		apply func(float64) error
	}{
		{param.Descriptor{ID: ParamDrive, Name: "Drive", Unit: "dB", Min: 0, Max: 24, Default: 0}, p.distortion.SetDrive},
		{param.Descriptor{ID: ParamMix, Name: "Mix", Min: 0, Max: 1, Default: 1}, p.distortion.SetMix},
		{param.Descriptor{ID: ParamOutput, Name: "Output", Unit: "dB", Min: -24, Max: 24, Default: 0}, p.distortion.SetOutput},
		{
			param.Descriptor{ID: ParamDistortionModel, Name: "Model", Min: 0, Max: 2, Default: float64(distortion.ModelHardClip), Steps: 3},
			func(v float64) error { return p.distortion.SetModel(distortion.Model(v)) },
		},
		{
			param.Descriptor{ID: ParamLFOType, Name: "LFO Type", Min: 0, Max: 2, Default: float64(lfo.WaveformSine), Steps: 3},
			func(v float64) error { return p.lfo.SetWaveform(lfo.Waveform(v)) },
		},
		{param.Descriptor{ID: ParamLFOFrequency, Name: "LFO Frequency", Unit: "Hz", Min: 0, Max: 20, Default: 0}, p.lfo.SetFrequency},
		{param.Descriptor{ID: ParamLFOMix, Name: "LFO Mix", Min: 0, Max: 1, Default: 1}, p.lfo.SetMix},
		{param.Descriptor{ID: ParamLFOBypass, Name: "LFO Bypass", Min: 0, Max: 1, Default: 0, Steps: 2}, boolean(p.lfo.SetBypass)},
		{param.Descriptor{ID: ParamReverbWet, Name: "Reverb Wet", Min: 0, Max: 1, Default: 0.33}, p.reverb.SetWet},
		{param.Descriptor{ID: ParamReverbDry, Name: "Reverb Dry", Min: 0, Max: 1, Default: 0.4}, p.reverb.SetDry},
		{param.Descriptor{ID: ParamReverbRoomSize, Name: "Room Size", Min: 0, Max: 1, Default: 0.5}, p.reverb.SetRoomSize},
		{param.Descriptor{ID: ParamReverbDamp, Name: "Damping", Min: 0, Max: 1, Default: 0.5}, p.reverb.SetDamp},
		{param.Descriptor{ID: ParamFeedback, Name: "Feedback", Min: 0, Max: 1, Default: 0.35}, p.stutter.SetFeedback},
		{param.Descriptor{ID: ParamStutterMix, Name: "Dry/Wet", Min: 0, Max: 1, Default: 0.5}, p.stutter.SetMix},
		{param.Descriptor{ID: ParamGain, Name: "Gain", Min: 0, Max: 1, Default: 1}, p.stutter.SetGain},
		{param.Descriptor{ID: ParamStutterDrive, Name: "Drive", Min: 1, Max: 10, Default: 1}, p.stutter.SetDrive},
	}

	p.registry = param.NewRegistry()
	p.controls = make(map[string]control, len(defs))

	for _, d := range defs {
		if err := p.registry.Register(d.desc); err != nil {
			return fmt.Errorf("effectchain: %w", err)
		}
		if err := d.apply(d.desc.Default); err != nil {
			return fmt.Errorf("effectchain: default %s: %w", d.desc.ID, err)
		}
		p.controls[d.desc.ID] = control{
			value: param.NewScalar(d.desc.Default),
			apply: d.apply,
		}
	}

	return nil
}

func (p *Processor) lookup(id string) (param.Descriptor, control, error) {
	d, ok := p.registry.Lookup(id)
	if !ok {
		return param.Descriptor{}, control{}, fmt.Errorf("effectchain: %w: %s", ErrUnknownParameter, id)
	}
	return d, p.controls[id], nil
}

// SetParameter sets a control in plain units. The value is clamped to the
// parameter's range and enumerated values snap to the nearest step.
func (p *Processor) SetParameter(id string, plain float64) error {
	d, c, err := p.lookup(id)
	if err != nil {
		return err
	}

	v := d.Clamp(plain)
	if err := c.apply(v); err != nil {
		return fmt.Errorf("effectchain: set %s: %w", id, err)
	}
	c.value.Store(v)

	return nil
}

// SetNormalized sets a control from a host-normalized value in [0, 1].
func (p *Processor) SetNormalized(id string, normalized float64) error {
	d, _, err := p.lookup(id)
	if err != nil {
		return err
	}
	return p.SetParameter(id, d.Denormalize(normalized))
}

// Parameter returns the last value set for id in plain units.
func (p *Processor) Parameter(id string) (float64, error) {
	_, c, err := p.lookup(id)
	if err != nil {
		return 0, err
	}
	return c.value.Load(), nil
}

// Normalized returns the last value set for id mapped to [0, 1].
func (p *Processor) Normalized(id string) (float64, error) {
	d, c, err := p.lookup(id)
	if err != nil {
		return 0, err
	}
	return d.Normalize(c.value.Load()), nil
}

// Parameters returns every exposed parameter in registration order.
func (p *Processor) Parameters() []param.Descriptor {
	return p.registry.All()
}

// ApplyParams sets every known parameter present in params. Non-finite values
// are skipped. Unknown IDs do not stop the update; the first one, in sorted
// order, is reported as ErrUnknownParameter.
func (p *Processor) ApplyParams(params Params) error {
	for _, d := range p.registry.All() {
		v := params.GetNum(d.ID, math.NaN())
		if math.IsNaN(v) {
			continue
		}
		if err := p.SetParameter(d.ID, v); err != nil {
			return err
		}
	}

	for _, id := range slices.Sorted(maps.Keys(params.Num)) {
		if _, _, err := p.lookup(id); err != nil {
			return err
		}
	}

	return nil
}
