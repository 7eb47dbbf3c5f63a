package effectchain

import (
	"fmt"

	"github.com/cwbudde/algo-fxchain/dsp/core"
	"github.com/cwbudde/algo-fxchain/dsp/delay"
	"github.com/cwbudde/algo-fxchain/dsp/distortion"
	"github.com/cwbudde/algo-fxchain/dsp/lfo"
	"github.com/cwbudde/algo-fxchain/dsp/reverb"
)

// Stage is one effect in the processing order.
type Stage interface {
	Name() string
	Prepare(spec core.ProcessSpec) error
	Reset()
	Release()
	Process(block core.Block)
}

type reverbStage struct {
	fx *reverb.Reverb
}

func (s reverbStage) Name() string { return StageReverb }

func (s reverbStage) Prepare(spec core.ProcessSpec) error {
	if err := s.fx.Prepare(spec); err != nil {
		return fmt.Errorf("prepare reverb: %w", err)
	}
	return nil
}

func (s reverbStage) Reset()                   { s.fx.Reset() }
func (s reverbStage) Release()                 { s.fx.Release() }
func (s reverbStage) Process(block core.Block) { s.fx.ProcessBlock(block) }

type distortionStage struct {
	fx *distortion.Engine
}

func (s distortionStage) Name() string { return StageDistortion }

func (s distortionStage) Prepare(spec core.ProcessSpec) error {
	s.fx.Prepare(spec)
	return nil
}

func (s distortionStage) Reset()                   { s.fx.Reset() }
func (s distortionStage) Release()                 {}
func (s distortionStage) Process(block core.Block) { s.fx.ProcessBlock(block) }

type lfoStage struct {
	fx *lfo.Oscillator
}

func (s lfoStage) Name() string { return StageLFO }

func (s lfoStage) Prepare(spec core.ProcessSpec) error {
	s.fx.Prepare(spec)
	return nil
}

func (s lfoStage) Reset()                   { s.fx.Reset() }
func (s lfoStage) Release()                 { s.fx.Release() }
func (s lfoStage) Process(block core.Block) { s.fx.ModulateBlock(block) }

type stutterStage struct {
	fx *delay.Stutter
}

func (s stutterStage) Name() string { return StageStutter }

func (s stutterStage) Prepare(spec core.ProcessSpec) error {
	if err := s.fx.Prepare(spec, 0); err != nil {
		return fmt.Errorf("prepare stutter: %w", err)
	}
	return nil
}

func (s stutterStage) Reset()                   { s.fx.Reset() }
func (s stutterStage) Release()                 { s.fx.Release() }
func (s stutterStage) Process(block core.Block) { s.fx.ProcessBlock(block) }
