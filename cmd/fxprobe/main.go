// Command fxprobe measures the harmonic distortion of the effect chain.
//
// It drives a sine through an effectchain.Processor once per distortion
// model and prints THD, THD+N and the output peak.
//
// Usage:
//
//	fxprobe [flags] [model ...]
//
// Examples:
//
//	fxprobe
//	fxprobe -drive 18 soft saturation
//	fxprobe -layout stutter -freq 440 -window blackman
//	fxprobe -windows
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/cwbudde/algo-fxchain/dsp/core"
	"github.com/cwbudde/algo-fxchain/dsp/distortion"
	"github.com/cwbudde/algo-fxchain/dsp/effectchain"
	"github.com/cwbudde/algo-fxchain/dsp/window"
	"github.com/cwbudde/algo-fxchain/measure/thd"
)

type options struct {
	sampleRate float64
	freq       float64
	amp        float64
	drive      float64
	fftSize    int
	blockSize  int
	layout     effectchain.Layout
	window     window.Type
	reverb     bool
}

type row struct {
	model  distortion.Model
	result thd.ProbeResult
}

func main() {
	rate := flag.Float64("rate", 48000, "sample rate in Hz")
	freq := flag.Float64("freq", 1000, "probe tone frequency in Hz (snapped to an FFT bin)")
	amp := flag.Float64("amp", 0.5, "probe tone amplitude")
	drive := flag.Float64("drive", 12, "distortion drive in dB [0, 24]")
	fftSize := flag.Int("fft", 8192, "analysis FFT size (power of two)")
	block := flag.Int("block", 512, "processing block size")
	layoutName := flag.String("layout", "modulation", "chain layout: modulation or stutter")
	windowName := flag.String("window", "hann", "analysis window")
	reverb := flag.Bool("reverb", false, "keep the reverb wet path and LFO in the modulation layout")
	windows := flag.Bool("windows", false, "list the analysis windows accepted by -window and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: fxprobe [flags] [model ...]\n\n")
		fmt.Fprintf(os.Stderr, "Measures THD of the effect chain per distortion model.\n")
		fmt.Fprintf(os.Stderr, "Models: hard, soft, saturation. Without arguments all are measured.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *windows {
		if err := printWindows(os.Stdout, window.Types(), *fftSize); err != nil {
			fatal(err)
		}
		return
	}

	layout, err := effectchain.ParseLayout(*layoutName)
	if err != nil {
		fatal(err)
	}
	winType, err := window.ParseType(*windowName)
	if err != nil {
		fatal(err)
	}
	models, err := parseModels(flag.Args())
	if err != nil {
		fatal(err)
	}

	opts := options{
		sampleRate: *rate,
		freq:       *freq,
		amp:        *amp,
		drive:      *drive,
		fftSize:    *fftSize,
		blockSize:  *block,
		layout:     layout,
		window:     winType,
		reverb:     *reverb,
	}

	rows, err := probeModels(models, opts)
	if err != nil {
		fatal(err)
	}
	printRows(os.Stdout, opts, rows)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func parseModels(names []string) ([]distortion.Model, error) {
	if len(names) == 0 {
		return distortion.Models(), nil
	}
	models := make([]distortion.Model, 0, len(names))
	for _, name := range names {
		m, err := distortion.ParseModel(name)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, nil
}

func probeModels(models []distortion.Model, opts options) ([]row, error) {
	if len(models) == 0 {
		return nil, errors.New("no models to probe")
	}
	spec := core.NewProcessSpec(
		core.WithSampleRate(opts.sampleRate),
		core.WithMaxBlockSize(opts.blockSize),
	)

	rows := make([]row, 0, len(models))
	for _, m := range models {
		p, err := newChain(m, opts)
		if err != nil {
			return nil, err
		}
		if err := p.Prepare(spec); err != nil {
			return nil, err
		}
		res, err := thd.Probe(p, thd.ProbeConfig{
			Spec:      spec,
			Frequency: opts.freq,
			Amplitude: opts.amp,
			FFTSize:   opts.fftSize,
			Warmup:    opts.fftSize,
			Analysis:  thd.Config{WindowType: opts.window},
		})
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", m, err)
		}
		rows = append(rows, row{model: m, result: res})
	}
	return rows, nil
}

func newChain(m distortion.Model, opts options) (*effectchain.Processor, error) {
	p, err := effectchain.New(effectchain.WithLayout(opts.layout))
	if err != nil {
		return nil, err
	}
	params := effectchain.Params{Num: map[string]float64{
		effectchain.ParamDistortionModel: float64(m),
		effectchain.ParamDrive:           opts.drive,
	}}
	if !opts.reverb {
		params.Num[effectchain.ParamReverbWet] = 0
		params.Num[effectchain.ParamReverbDry] = 0.5
		params.Num[effectchain.ParamLFOBypass] = 1
	}
	if err := p.ApplyParams(params); err != nil {
		return nil, err
	}
	return p, nil
}

func printRows(w io.Writer, opts options, rows []row) {
	fmt.Fprintf(w, "layout=%s rate=%g fft=%d window=%s drive=%g dB\n\n",
		opts.layout, opts.sampleRate, opts.fftSize, opts.window, opts.drive)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Model\tFreq (Hz)\tTHD (%%)\tTHD (dB)\tTHD+N (dB)\tOdd/Even\tPeak (dB)\tCrest (dB)\t\n")
	fmt.Fprintf(tw, "-----\t---------\t-------\t--------\t----------\t--------\t---------\t----------\t\n")
	for _, r := range rows {
		res := r.result
		fmt.Fprintf(tw, "%s\t%.1f\t%.4f\t%.2f\t%.2f\t%s\t%.2f\t%.2f\t\n",
			r.model, res.Frequency, 100*res.THD, res.THD_dB, res.THDN_dB,
			oddEven(res.OddHD, res.EvenHD), res.PeakDB, res.Level.CrestFactor_dB)
	}
	tw.Flush()
}

func oddEven(odd, even float64) string {
	if even <= 0 {
		return "inf"
	}
	return fmt.Sprintf("%.1f", odd/even)
}

// printWindows lists the analysis windows with the main-lobe width the THD
// analyzer integrates over and the ENBW measured at the given frame size.
func printWindows(w io.Writer, types []window.Type, size int) error {
	if size < 2 {
		return fmt.Errorf("window size must be >= 2: %d", size)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Window\tFlag\tCoherent Gain\tENBW [bins]\tSidelobe [dB]\tCapture [bins]\n")
	fmt.Fprintf(tw, "------\t----\t-------------\t-----------\t-------------\t--------------\n")
	for _, t := range types {
		info := window.Info(t)
		enbw, err := window.EquivalentNoiseBandwidth(window.Generate(t, size, window.WithPeriodic()))
		if err != nil {
			return fmt.Errorf("%s: %w", info.Name, err)
		}
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.4f\t%.1f\t%d\n",
			info.Name, windowFlag(t), info.CoherentGain, enbw, info.HighestSidelobe, info.MainLobeBins)
	}
	return tw.Flush()
}

// windowFlag returns the -window spelling of t.
func windowFlag(t window.Type) string {
	return strings.ToLower(strings.ReplaceAll(t.String(), " ", "-"))
}
