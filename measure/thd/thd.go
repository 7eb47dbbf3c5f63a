// Package thd measures harmonic distortion of a signal or of a block
// processor driven by a test tone.
//
// The analysis assumes the tone sits exactly on an FFT bin, which Probe
// guarantees by snapping the test frequency. Harmonic and noise figures are
// power sums over each component's window main lobe, expressed relative to
// the fundamental amplitude.
package thd

import (
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"

	"github.com/cwbudde/algo-fxchain/dsp/core"
	"github.com/cwbudde/algo-fxchain/dsp/window"
)

const defaultUpperHz = 20000.0

// Config describes the analysis of one tone frame.
type Config struct {
	SampleRate float64
	// FundamentalBin is the FFT bin the tone occupies.
	FundamentalBin int
	// UpperFreq bounds the harmonic and noise sums. Zero selects 20 kHz,
	// capped at Nyquist.
	UpperFreq float64
	// MaxHarmonics limits the number of harmonics summed. Zero sums every
	// harmonic below UpperFreq.
	MaxHarmonics int
	// WindowType is the analysis window. The zero value selects Hann.
	WindowType window.Type
}

// Result holds THD measurement results. Ratios are relative to the
// fundamental amplitude.
//
//nolint:revive
type Result struct {
	FundamentalFreq  float64
	FundamentalLevel float64
	THD              float64
	THDN             float64
	THD_dB           float64
	THDN_dB          float64
	OddHD            float64
	EvenHD           float64
	Noise            float64
	// Harmonics holds the ratio of harmonic 2, 3, ... in order.
	Harmonics []float64
	SINAD     float64
}

// Analyzer evaluates frames of a fixed length. It owns its FFT plan and
// scratch buffers, so one Analyzer must not be shared between goroutines.
type Analyzer struct {
	cfg         Config
	size        int
	lowerBin    int
	upperBin    int
	captureBins int
	coeffs      []float64
	plan        *algofft.Plan[complex128]
	in          []complex128
	out         []complex128
	power       []float64
}

// NewAnalyzer prepares an analyzer for frames of size samples.
func NewAnalyzer(size int, cfg Config) (*Analyzer, error) {
	if size < 2 || size&(size-1) != 0 {
		return nil, fmt.Errorf("thd frame size must be a power of two >= 2: %d", size)
	}
	if !core.ValidSampleRate(cfg.SampleRate) {
		return nil, fmt.Errorf("thd sample rate must be > 0 and finite: %f", cfg.SampleRate)
	}
	if cfg.FundamentalBin < 1 || cfg.FundamentalBin >= size/2 {
		return nil, fmt.Errorf("thd fundamental bin must be in [1, %d): %d", size/2, cfg.FundamentalBin)
	}
	if cfg.MaxHarmonics < 0 {
		return nil, fmt.Errorf("thd max harmonics must be >= 0: %d", cfg.MaxHarmonics)
	}
	if cfg.UpperFreq < 0 || math.IsNaN(cfg.UpperFreq) {
		return nil, fmt.Errorf("thd upper frequency must be >= 0: %f", cfg.UpperFreq)
	}
	if cfg.WindowType == 0 {
		cfg.WindowType = window.TypeHann
	}

	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return nil, fmt.Errorf("thd fft plan: %w", err)
	}

	upper := cfg.UpperFreq
	if upper == 0 {
		upper = defaultUpperHz
	}
	binHz := cfg.SampleRate / float64(size)
	nyquistBin := size / 2

	upperBin := min(int(math.Floor(upper/binHz)), nyquistBin)
	if upperBin < cfg.FundamentalBin {
		return nil, fmt.Errorf("thd upper frequency must be above the fundamental: %f", upper)
	}

	// The fundamental's main lobe must not reach DC.
	capture := min(window.Info(cfg.WindowType).MainLobeBins, cfg.FundamentalBin/2)

	return &Analyzer{
		cfg:         cfg,
		size:        size,
		lowerBin:    capture + 1,
		upperBin:    upperBin,
		captureBins: capture,
		coeffs:      window.Generate(cfg.WindowType, size, window.WithPeriodic()),
		plan:        plan,
		in:          make([]complex128, size),
		out:         make([]complex128, size),
		power:       make([]float64, nyquistBin+1),
	}, nil
}

// Size returns the frame length.
func (a *Analyzer) Size() int { return a.size }

// Analyze windows frame, transforms it and evaluates the distortion
// figures. frame must hold exactly Size samples.
func (a *Analyzer) Analyze(frame []float64) (Result, error) {
	if len(frame) != a.size {
		return Result{}, fmt.Errorf("thd frame length must be %d: %d", a.size, len(frame))
	}

	for i, x := range frame {
		a.in[i] = complex(x*a.coeffs[i], 0)
	}
	if err := a.plan.Forward(a.out, a.in); err != nil {
		return Result{}, fmt.Errorf("thd fft: %w", err)
	}
	for k := range a.power {
		c := a.out[k]
		a.power[k] = real(c)*real(c) + imag(c)*imag(c)
	}

	fb := a.cfg.FundamentalBin
	res := Result{FundamentalFreq: float64(fb) * a.cfg.SampleRate / float64(a.size)}

	fundPower := a.bandPower(fb)
	if fundPower <= 0 {
		return res, nil
	}

	var oddPower, evenPower float64
	for k := 2; k*fb <= a.upperBin; k++ {
		if a.cfg.MaxHarmonics > 0 && k-1 > a.cfg.MaxHarmonics {
			break
		}
		p := a.bandPower(k * fb)
		if k%2 == 0 {
			evenPower += p
		} else {
			oddPower += p
		}
		res.Harmonics = append(res.Harmonics, math.Sqrt(p/fundPower))
	}

	var residual float64
	for k := a.lowerBin; k <= a.upperBin; k++ {
		residual += a.power[k]
	}
	residual -= fundPower
	harmPower := oddPower + evenPower
	noisePower := max(residual-harmPower, 0)

	res.FundamentalLevel = math.Sqrt(fundPower)
	res.THD = math.Sqrt(harmPower / fundPower)
	res.THDN = math.Sqrt(max(residual, 0) / fundPower)
	res.OddHD = math.Sqrt(oddPower / fundPower)
	res.EvenHD = math.Sqrt(evenPower / fundPower)
	res.Noise = math.Sqrt(noisePower / fundPower)
	res.THD_dB = core.LinearToDB(res.THD)
	res.THDN_dB = core.LinearToDB(res.THDN)
	res.SINAD = -res.THDN_dB
	return res, nil
}

// bandPower sums the power of the main lobe centred on bin, clipped to the
// analysis range.
func (a *Analyzer) bandPower(bin int) float64 {
	lo := max(bin-a.captureBins, a.lowerBin)
	hi := min(bin+a.captureBins, a.upperBin)
	var sum float64
	for k := lo; k <= hi; k++ {
		sum += a.power[k]
	}
	return sum
}
