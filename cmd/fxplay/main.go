// Command fxplay streams a test tone through the effect chain to the
// default audio device.
//
// While playing, the LFO rate sweeps between 0 and -lfo-max Hz so the
// modulation can be heard changing on the audio thread.
//
// Usage:
//
//	fxplay [flags]
//
// Examples:
//
//	fxplay -duration 10s
//	fxplay -layout stutter -delay 120 -feedback 0.6
//	fxplay -model soft -drive 18 -freq 110
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/cwbudde/algo-fxchain/dsp/core"
	"github.com/cwbudde/algo-fxchain/dsp/distortion"
	"github.com/cwbudde/algo-fxchain/dsp/effectchain"
	fxsignal "github.com/cwbudde/algo-fxchain/dsp/signal"
)

const controlInterval = 50 * time.Millisecond

func main() {
	rate := flag.Int("rate", 48000, "output sample rate in Hz")
	block := flag.Int("block", 512, "processing block size")
	freq := flag.Float64("freq", 220, "tone frequency in Hz")
	amp := flag.Float64("amp", 0.3, "tone amplitude")
	layoutName := flag.String("layout", "modulation", "chain layout: modulation or stutter")
	modelName := flag.String("model", "soft", "distortion model: hard, soft, saturation")
	drive := flag.Float64("drive", 12, "distortion drive in dB [0, 24]")
	delayMs := flag.Float64("delay", 200, "stutter delay in ms")
	feedback := flag.Float64("feedback", 0.35, "stutter feedback [0, 1]")
	lfoMax := flag.Float64("lfo-max", 8, "upper bound of the LFO rate sweep in Hz")
	sweep := flag.Duration("sweep", 4*time.Second, "duration of one LFO sweep cycle")
	duration := flag.Duration("duration", 8*time.Second, "playback duration")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: fxplay [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Plays a tone through the effect chain.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	layout, err := effectchain.ParseLayout(*layoutName)
	if err != nil {
		fatal(err)
	}
	model, err := distortion.ParseModel(*modelName)
	if err != nil {
		fatal(err)
	}

	proc, err := effectchain.New(effectchain.WithLayout(layout), effectchain.WithDelayMs(*delayMs))
	if err != nil {
		fatal(err)
	}
	err = proc.ApplyParams(effectchain.Params{Num: map[string]float64{
		effectchain.ParamDistortionModel: float64(model),
		effectchain.ParamDrive:           *drive,
		effectchain.ParamFeedback:        *feedback,
	}})
	if err != nil {
		fatal(err)
	}

	spec := core.NewProcessSpec(
		core.WithSampleRate(float64(*rate)),
		core.WithMaxBlockSize(*block),
		core.WithNumChannels(2),
	)
	if err := proc.Prepare(spec); err != nil {
		fatal(err)
	}
	defer proc.ReleaseResources()

	tone, err := fxsignal.NewTone(spec.SampleRate, *freq, *amp)
	if err != nil {
		fatal(err)
	}
	stream, err := newChainStream(proc, tone)
	if err != nil {
		fatal(err)
	}

	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   *rate,
		ChannelCount: spec.NumChannels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   2 * time.Duration(*block) * time.Second / time.Duration(*rate),
	})
	if err != nil {
		fatal(err)
	}
	<-ready

	player := otoCtx.NewPlayer(stream)
	defer player.Close()
	player.Play()

	fmt.Fprintf(os.Stderr, "playing %s layout, %s model, %g Hz tone for %s\n", layout, model, *freq, *duration)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *duration)
	defer cancelTimeout()

	if err := runControls(ctx, proc, *lfoMax, *sweep); err != nil {
		fatal(err)
	}
	if err := player.Err(); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

// runControls moves the LFO rate along a triangle sweep until ctx is done.
func runControls(ctx context.Context, proc *effectchain.Processor, lfoMax float64, cycle time.Duration) error {
	ticker := time.NewTicker(controlInterval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			hz := sweepValue(now.Sub(start), cycle, lfoMax)
			if err := proc.SetParameter(effectchain.ParamLFOFrequency, hz); err != nil {
				return err
			}
		}
	}
}

// sweepValue maps elapsed time onto a triangle from 0 up to peak and back
// over one cycle.
func sweepValue(elapsed, cycle time.Duration, peak float64) float64 {
	if cycle <= 0 {
		return peak
	}
	p := float64(elapsed%cycle) / float64(cycle)
	if p < 0.5 {
		return 2 * p * peak
	}
	return 2 * (1 - p) * peak
}
