package thd

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-fxchain/dsp/core"
	"github.com/cwbudde/algo-fxchain/dsp/signal"
	"github.com/cwbudde/algo-fxchain/measure/level"
)

// BlockProcessor processes a block of channels in place.
type BlockProcessor interface {
	ProcessBlock(block core.Block)
}

// ProbeConfig describes a tone measurement through a BlockProcessor.
type ProbeConfig struct {
	Spec core.ProcessSpec
	// Frequency is snapped to the nearest FFT bin so the tone is periodic in
	// the analysis frame.
	Frequency float64
	Amplitude float64
	// FFTSize is the analysis frame length. It must be a power of two.
	FFTSize int
	// Warmup samples are processed and discarded before the analysis frame.
	Warmup int
	// Analysis carries the THD settings. SampleRate and FundamentalBin are
	// filled in by Probe.
	Analysis Config
}

// ProbeResult is the THD of the processed tone plus its output level.
type ProbeResult struct {
	Result
	Frequency float64
	Peak      float64
	PeakDB    float64
	Level     level.Stats
}

// Probe renders a sine through p block by block and analyzes channel 0 of
// the last FFTSize output samples.
func Probe(p BlockProcessor, cfg ProbeConfig) (ProbeResult, error) {
	if err := cfg.Spec.Validate(); err != nil {
		return ProbeResult{}, fmt.Errorf("thd probe: %w", err)
	}
	if cfg.FFTSize < 2 || cfg.FFTSize&(cfg.FFTSize-1) != 0 {
		return ProbeResult{}, fmt.Errorf("thd probe fft size must be a power of two >= 2: %d", cfg.FFTSize)
	}
	if cfg.Warmup < 0 {
		return ProbeResult{}, fmt.Errorf("thd probe warmup must be >= 0: %d", cfg.Warmup)
	}

	binHz := cfg.Spec.SampleRate / float64(cfg.FFTSize)
	bin := math.Round(cfg.Frequency / binHz)
	if bin < 1 || bin >= float64(cfg.FFTSize/2) {
		return ProbeResult{}, fmt.Errorf("thd probe frequency must be within (0, %g): %f", cfg.Spec.SampleRate/2, cfg.Frequency)
	}
	freq := bin * binHz

	acfg := cfg.Analysis
	acfg.SampleRate = cfg.Spec.SampleRate
	acfg.FundamentalBin = int(bin)
	analyzer, err := NewAnalyzer(cfg.FFTSize, acfg)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("thd probe: %w", err)
	}

	total := cfg.Warmup + cfg.FFTSize
	gen := signal.NewGenerator(
		core.WithSampleRate(cfg.Spec.SampleRate),
		core.WithNumChannels(cfg.Spec.NumChannels),
	)
	tone, err := gen.Sine(freq, cfg.Amplitude, total)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("thd probe: %w", err)
	}
	out := gen.Block(tone)

	for start := 0; start < total; start += cfg.Spec.MaxBlockSize {
		end := min(start+cfg.Spec.MaxBlockSize, total)
		view := make(core.Block, len(out))
		for ch := range out {
			view[ch] = out[ch][start:end]
		}
		p.ProcessBlock(view)
	}

	frame := out[0][cfg.Warmup:]
	res, err := analyzer.Analyze(frame)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("thd probe: %w", err)
	}
	stats := level.Calculate(frame)

	return ProbeResult{
		Result:    res,
		Frequency: freq,
		Peak:      stats.Peak,
		PeakDB:    stats.Peak_dB,
		Level:     stats,
	}, nil
}
