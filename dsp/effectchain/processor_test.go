package effectchain

import (
	"errors"
	"math"
	"slices"
	"sync"
	"testing"

	"github.com/cwbudde/algo-fxchain/dsp/core"
	"github.com/cwbudde/algo-fxchain/dsp/delay"
	"github.com/cwbudde/algo-fxchain/dsp/distortion"
	"github.com/cwbudde/algo-fxchain/dsp/lfo"
	"github.com/cwbudde/algo-fxchain/dsp/reverb"
	"github.com/cwbudde/algo-fxchain/internal/testutil"
)

func newProcessor(t *testing.T, opts ...Option) *Processor {
	t.Helper()

	p, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func mustSet(t *testing.T, p *Processor, id string, v float64) {
	t.Helper()

	if err := p.SetParameter(id, v); err != nil {
		t.Fatalf("SetParameter(%q, %g) error = %v", id, v, err)
	}
}

func requirePanic(t *testing.T, name string, fn func()) {
	t.Helper()

	defer func() {
		if recover() == nil {
			t.Fatalf("%s: expected panic", name)
		}
	}()
	fn()
}

func TestNewValidation(t *testing.T) {
	if _, err := New(WithLayout(Layout(9))); err == nil {
		t.Fatal("expected error for invalid layout")
	}
	if _, err := New(WithDelayMs(0)); err == nil {
		t.Fatal("expected error for zero delay")
	}
	if _, err := New(WithDelayMs(5000)); err == nil {
		t.Fatal("expected error for delay beyond stutter range")
	}
	if _, err := New(WithLookupTable(-1)); err == nil {
		t.Fatal("expected error for negative table size")
	}
	if _, err := New(WithLookupTable(3)); err == nil {
		t.Fatal("expected error for tiny table size")
	}
}

func TestLayoutStages(t *testing.T) {
	tests := []struct {
		layout Layout
		want   []string
	}{
		{LayoutModulation, []string{StageReverb, StageDistortion, StageLFO}},
		{LayoutStutter, []string{StageDistortion, StageStutter}},
	}

	for _, tc := range tests {
		p := newProcessor(t, WithLayout(tc.layout))
		if got := p.StageNames(); !slices.Equal(got, tc.want) {
			t.Fatalf("%s stages = %v, want %v", tc.layout, got, tc.want)
		}
		if p.Layout() != tc.layout {
			t.Fatalf("Layout() = %s, want %s", p.Layout(), tc.layout)
		}
	}
}

func TestParseLayout(t *testing.T) {
	l, err := ParseLayout("Stutter")
	if err != nil || l != LayoutStutter {
		t.Fatalf("ParseLayout(Stutter) = %v, %v", l, err)
	}
	if _, err := ParseLayout("granular"); err == nil {
		t.Fatal("expected error for unknown layout")
	}
}

func TestStateMachine(t *testing.T) {
	p := newProcessor(t)

	if p.State() != StateUninitialized {
		t.Fatalf("new processor state = %s", p.State())
	}
	if _, err := p.Spec(); !errors.Is(err, ErrNotPrepared) {
		t.Fatalf("Spec() before Prepare error = %v, want ErrNotPrepared", err)
	}
	requirePanic(t, "process before prepare", func() {
		p.ProcessBlock(core.NewBlock(2, 16))
	})

	spec := core.NewProcessSpec(core.WithMaxBlockSize(64))
	if err := p.Prepare(spec); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if p.State() != StateReady {
		t.Fatalf("state after Prepare = %s", p.State())
	}
	got, err := p.Spec()
	if err != nil || got != spec {
		t.Fatalf("Spec() = %+v, %v", got, err)
	}
	p.ProcessBlock(core.NewBlock(2, 64))

	p.ReleaseResources()
	if p.State() != StateUninitialized {
		t.Fatalf("state after ReleaseResources = %s", p.State())
	}
	requirePanic(t, "process after release", func() {
		p.ProcessBlock(core.NewBlock(2, 16))
	})

	if err := p.Prepare(spec); err != nil {
		t.Fatalf("re-Prepare() error = %v", err)
	}
	p.ProcessBlock(core.NewBlock(2, 16))
}

func TestReleaseResourcesFreesEveryStage(t *testing.T) {
	spec := core.NewProcessSpec(core.WithMaxBlockSize(64))
	in := testutil.NoiseBlock(3, 0.5, 2, 64)

	fresh := newProcessor(t)
	if err := fresh.Prepare(spec); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	want := testutil.CloneBlock(in)
	fresh.ProcessBlock(want)

	p := newProcessor(t)
	if err := p.Prepare(spec); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	p.ReleaseResources()

	if p.stutter.Capacity() != 0 {
		t.Fatalf("stutter capacity after release = %d, want 0", p.stutter.Capacity())
	}
	requirePanic(t, "reverb after release", func() {
		p.reverb.ProcessBlock(core.NewBlock(1, 16))
	})
	requirePanic(t, "lfo after release", func() {
		p.lfo.ModulateBlock(core.NewBlock(1, 16))
	})

	if err := p.Prepare(spec); err != nil {
		t.Fatalf("re-Prepare() error = %v", err)
	}
	got := testutil.CloneBlock(in)
	p.ProcessBlock(got)
	testutil.RequireBlockNearlyEqual(t, got, want, 1e-12)
}

func TestPrepareInvalidSpec(t *testing.T) {
	p := newProcessor(t)

	err := p.Prepare(core.ProcessSpec{SampleRate: -1, MaxBlockSize: 64, NumChannels: 2})
	if !errors.Is(err, core.ErrInvalidSpec) {
		t.Fatalf("Prepare() error = %v, want ErrInvalidSpec", err)
	}
	if p.State() != StateUninitialized {
		t.Fatalf("state after failed Prepare = %s", p.State())
	}
}

func TestProcessBlockPreconditions(t *testing.T) {
	p := newProcessor(t)
	if err := p.Prepare(core.NewProcessSpec(core.WithMaxBlockSize(32), core.WithNumChannels(2))); err != nil {
		t.Fatal(err)
	}

	requirePanic(t, "channel mismatch", func() {
		p.ProcessBlock(core.NewBlock(1, 16))
	})
	requirePanic(t, "ragged channels", func() {
		p.ProcessBlock(core.Block{make([]float64, 16), make([]float64, 15)})
	})
	requirePanic(t, "oversized block", func() {
		p.ProcessBlock(core.NewBlock(2, 33))
	})

	// Empty and short blocks are fine.
	p.ProcessBlock(core.NewBlock(2, 0))
	p.ProcessBlock(core.NewBlock(2, 1))
}

func TestSaturationScenario(t *testing.T) {
	p := newProcessor(t)
	mustSet(t, p, ParamDistortionModel, float64(distortion.ModelSaturation))
	mustSet(t, p, ParamReverbWet, 0)
	mustSet(t, p, ParamReverbDry, 0.5)
	mustSet(t, p, ParamLFOBypass, 1)

	spec := core.NewProcessSpec(core.WithSampleRate(44100), core.WithNumChannels(1))
	if err := p.Prepare(spec); err != nil {
		t.Fatal(err)
	}

	buf := []float64{0.5, -0.5}
	p.ProcessBlock(core.Block{buf})

	want := []float64{
		math.Tanh(0.5),
		math.Tanh(math.Sinh(-0.5)) - 0.2*(-0.5)*math.Sin(math.Pi*-0.5),
	}
	testutil.RequireSliceNearlyEqual(t, buf, want, 1e-12)
}

func TestZeroInZeroOut(t *testing.T) {
	for _, layout := range []Layout{LayoutModulation, LayoutStutter} {
		for _, m := range distortion.Models() {
			p := newProcessor(t, WithLayout(layout))
			mustSet(t, p, ParamDistortionModel, float64(m))
			mustSet(t, p, ParamDrive, 18)
			mustSet(t, p, ParamLFOFrequency, 4)
			if err := p.Prepare(core.NewProcessSpec(core.WithMaxBlockSize(128))); err != nil {
				t.Fatal(err)
			}

			blk := core.NewBlock(2, 128)
			for range 4 {
				p.ProcessBlock(blk)
			}
			for ch := range blk {
				for i, v := range blk[ch] {
					if v != 0 {
						t.Fatalf("%s/%s: ch %d sample %d = %g", layout, m, ch, i, v)
					}
				}
			}
		}
	}
}

func TestModulationStageOrder(t *testing.T) {
	const sampleRate = 44100.0
	spec := core.NewProcessSpec(core.WithSampleRate(sampleRate), core.WithMaxBlockSize(256))

	p := newProcessor(t)
	mustSet(t, p, ParamDrive, 12)
	mustSet(t, p, ParamDistortionModel, float64(distortion.ModelSoftClip))
	mustSet(t, p, ParamLFOFrequency, 3)
	if err := p.Prepare(spec); err != nil {
		t.Fatal(err)
	}

	rv, err := reverb.New(sampleRate)
	if err != nil {
		t.Fatal(err)
	}
	if err := rv.Prepare(spec); err != nil {
		t.Fatal(err)
	}
	dist, err := distortion.NewEngine(sampleRate, distortion.WithDrive(12), distortion.WithModel(distortion.ModelSoftClip))
	if err != nil {
		t.Fatal(err)
	}
	dist.Prepare(spec)
	osc, err := lfo.NewOscillator(sampleRate, lfo.WithFrequency(3))
	if err != nil {
		t.Fatal(err)
	}
	osc.Prepare(spec)

	for blockIdx := range 3 {
		left := testutil.DeterministicNoise(int64(10+blockIdx), 0.6, 256)
		right := testutil.DeterministicSine(220, sampleRate, 0.6, 256)

		got := core.Block{slices.Clone(left), slices.Clone(right)}
		p.ProcessBlock(got)

		want := core.Block{slices.Clone(left), slices.Clone(right)}
		rv.ProcessBlock(want)
		dist.ProcessBlock(want)
		osc.ModulateBlock(want)

		testutil.RequireSliceNearlyEqual(t, got[0], want[0], 1e-12)
		testutil.RequireSliceNearlyEqual(t, got[1], want[1], 1e-12)
	}
}

func TestStutterStageOrder(t *testing.T) {
	const sampleRate = 8000.0
	spec := core.NewProcessSpec(core.WithSampleRate(sampleRate), core.WithMaxBlockSize(100))

	p := newProcessor(t, WithLayout(LayoutStutter), WithDelayMs(25))
	mustSet(t, p, ParamDrive, 6)
	mustSet(t, p, ParamFeedback, 0.6)
	mustSet(t, p, ParamStutterMix, 0.7)
	if err := p.Prepare(spec); err != nil {
		t.Fatal(err)
	}
	capacity, err := p.DelayCapacity()
	if err != nil || capacity != 200 {
		t.Fatalf("DelayCapacity() = %d, %v; want 200", capacity, err)
	}

	dist, err := distortion.NewEngine(sampleRate, distortion.WithDrive(6))
	if err != nil {
		t.Fatal(err)
	}
	dist.Prepare(spec)
	st, err := delay.NewStutter(delay.WithFeedback(0.6), delay.WithMix(0.7))
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Prepare(spec, 25); err != nil {
		t.Fatal(err)
	}

	for blockIdx := range 6 {
		in := testutil.NoiseBlock(int64(100*blockIdx), 0.4, 2, 100)

		got := testutil.CloneBlock(in)
		p.ProcessBlock(got)

		want := testutil.CloneBlock(in)
		dist.ProcessBlock(want)
		st.ProcessBlock(want)

		testutil.RequireBlockNearlyEqual(t, got, want, 1e-12)
	}
}

func TestResetRestoresOutput(t *testing.T) {
	p := newProcessor(t, WithLayout(LayoutStutter))
	if err := p.Prepare(core.NewProcessSpec(core.WithMaxBlockSize(512))); err != nil {
		t.Fatal(err)
	}

	in := testutil.DeterministicNoise(1, 0.5, 512)
	first := core.Block{slices.Clone(in), slices.Clone(in)}
	p.ProcessBlock(first)

	p.Reset()

	second := core.Block{slices.Clone(in), slices.Clone(in)}
	p.ProcessBlock(second)

	testutil.RequireSliceNearlyEqual(t, second[0], first[0], 1e-12)
}

func TestLookupTableProcessorMatchesFormula(t *testing.T) {
	spec := core.NewProcessSpec(core.WithSampleRate(48000), core.WithMaxBlockSize(512))

	run := func(opts ...Option) core.Block {
		p := newProcessor(t, opts...)
		mustSet(t, p, ParamLFOFrequency, 5)
		mustSet(t, p, ParamReverbWet, 0)
		if err := p.Prepare(spec); err != nil {
			t.Fatal(err)
		}
		blk := core.Block{testutil.Ones(512), testutil.Ones(512)}
		p.ProcessBlock(blk)
		return blk
	}

	formula := run()
	table := run(WithLookupTable(0))

	for ch := range formula {
		diff, err := testutil.MaxAbsDiff(table[ch], formula[ch])
		if err != nil {
			t.Fatal(err)
		}
		if diff > 1e-5 {
			t.Fatalf("channel %d: table deviates from formula by %g", ch, diff)
		}
	}
}

func TestConcurrentControlUpdates(t *testing.T) {
	p := newProcessor(t)
	if err := p.Prepare(core.NewProcessSpec(core.WithMaxBlockSize(64))); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			_ = p.SetParameter(ParamDrive, float64(i%24))
			_ = p.SetParameter(ParamLFOType, float64(i%3))
			_ = p.SetNormalized(ParamLFOFrequency, float64(i%10)/10)
		}
	}()

	blk := testutil.NoiseBlock(1, 0.5, 2, 64)
	for range 200 {
		p.ProcessBlock(blk)
		testutil.RequireBlockFinite(t, blk)
	}

	close(stop)
	wg.Wait()
}

func BenchmarkProcessorModulation(b *testing.B) {
	p, err := New()
	if err != nil {
		b.Fatal(err)
	}
	if err := p.SetParameter(ParamLFOFrequency, 2); err != nil {
		b.Fatal(err)
	}
	if err := p.Prepare(core.NewProcessSpec(core.WithMaxBlockSize(512))); err != nil {
		b.Fatal(err)
	}
	blk := testutil.NoiseBlock(1, 0.5, 2, 512)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.ProcessBlock(blk)
	}
}
