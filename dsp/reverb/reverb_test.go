package reverb

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-fxchain/dsp/core"
	"github.com/cwbudde/algo-fxchain/internal/testutil"
)

func newPrepared(t *testing.T, sampleRate float64, channels int, opts ...Option) *Reverb {
	t.Helper()

	r, err := New(sampleRate, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	spec := core.NewProcessSpec(
		core.WithSampleRate(sampleRate),
		core.WithMaxBlockSize(512),
		core.WithNumChannels(channels),
	)
	if err := r.Prepare(spec); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	return r
}

func TestNewValidation(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
	if _, err := New(48000, WithWet(1.5)); err == nil {
		t.Fatal("expected error for wet=1.5")
	}
	if _, err := New(48000, WithDry(-0.1)); err == nil {
		t.Fatal("expected error for dry=-0.1")
	}
	if _, err := New(48000, WithRoomSize(math.NaN())); err == nil {
		t.Fatal("expected error for NaN room size")
	}
	if _, err := New(48000, WithDamp(2)); err == nil {
		t.Fatal("expected error for damp=2")
	}
	if _, err := New(48000, WithRampSeconds(-1)); err == nil {
		t.Fatal("expected error for negative ramp")
	}
}

func TestDefaults(t *testing.T) {
	r, err := New(48000)
	if err != nil {
		t.Fatal(err)
	}
	if r.Wet() != 0.33 || r.Dry() != 0.4 || r.RoomSize() != 0.5 || r.Damp() != 0.5 {
		t.Fatalf("defaults wet=%g dry=%g room=%g damp=%g", r.Wet(), r.Dry(), r.RoomSize(), r.Damp())
	}
}

func TestDryOnlyIsIdentity(t *testing.T) {
	r := newPrepared(t, 48000, 2, WithWet(0), WithDry(0.5))

	in := testutil.NoiseBlock(1, 0.5, 2, 256)
	blk := testutil.CloneBlock(in)
	r.ProcessBlock(blk)

	testutil.RequireBlockNearlyEqual(t, blk, in, 1e-12)
}

func TestImpulseTailExists(t *testing.T) {
	r := newPrepared(t, 44100, 1, WithDry(0), WithWet(1))

	const n = 4096
	buf := testutil.Impulse(n, 0)
	for start := 0; start < n; start += 512 {
		r.ProcessBlock(core.Block{buf[start : start+512]})
	}

	// Nothing arrives before the shortest comb.
	testutil.RequireSilent(t, buf[:combTuning[0]], 0)

	var energy float64
	for _, v := range buf[combTuning[0]:] {
		energy += v * v
	}
	if energy < 1e-8 {
		t.Fatalf("expected reverb tail, energy=%g", energy)
	}
	testutil.RequireFinite(t, buf)
}

func TestResetRestoresState(t *testing.T) {
	r := newPrepared(t, 48000, 1)

	in := testutil.DeterministicNoise(9, 0.8, 512)
	out1 := append([]float64(nil), in...)
	r.ProcessBlock(core.Block{out1})

	r.Reset()

	out2 := append([]float64(nil), in...)
	r.ProcessBlock(core.Block{out2})

	testutil.RequireSliceNearlyEqual(t, out2, out1, 1e-12)
}

func TestBlockSplitEquivalence(t *testing.T) {
	in := testutil.DeterministicNoise(4, 0.5, 1000)

	whole := newPrepared(t, 48000, 1)
	ref := append([]float64(nil), in...)
	for start := 0; start < len(ref); start += 500 {
		whole.ProcessBlock(core.Block{ref[start : start+500]})
	}

	split := newPrepared(t, 48000, 1)
	got := append([]float64(nil), in...)
	for start := 0; start < len(got); {
		end := min(start+37, len(got))
		split.ProcessBlock(core.Block{got[start:end]})
		start = end
	}

	testutil.RequireSliceNearlyEqual(t, got, ref, 1e-12)
}

func TestDelayLengthsFollowSampleRate(t *testing.T) {
	r := newPrepared(t, 88200, 2)

	if got := len(r.channels[0].combs[0].buffer); got != 2*combTuning[0] {
		t.Fatalf("comb length=%d want %d", got, 2*combTuning[0])
	}
	if got := len(r.channels[0].allpasses[3].buffer); got != 2*allpassTuning[3] {
		t.Fatalf("allpass length=%d want %d", got, 2*allpassTuning[3])
	}
	if got := len(r.channels[1].combs[0].buffer); got != 2*(combTuning[0]+stereoSpread) {
		t.Fatalf("spread comb length=%d want %d", got, 2*(combTuning[0]+stereoSpread))
	}
}

func TestWetRampIsSmooth(t *testing.T) {
	r := newPrepared(t, 48000, 1, WithWet(0), WithDry(0.5))

	if err := r.SetWet(1); err != nil {
		t.Fatal(err)
	}
	if r.Wet() != 1 {
		t.Fatalf("Wet()=%g want 1", r.Wet())
	}

	buf := make([]float64, 480)
	r.ProcessBlock(core.Block{buf})

	prev := 0.0
	for i, g := range r.wetCurve[:480] {
		if g < prev {
			t.Fatalf("wet gain decreased at %d: %g < %g", i, g, prev)
		}
		prev = g
	}
	if math.Abs(prev-wetScale) > 1e-12 {
		t.Fatalf("wet gain after ramp=%g want %g", prev, wetScale)
	}
}

func TestSettersValidate(t *testing.T) {
	r := newPrepared(t, 48000, 1)

	if err := r.SetWet(-1); err == nil {
		t.Fatal("expected error for wet=-1")
	}
	if err := r.SetDry(2); err == nil {
		t.Fatal("expected error for dry=2")
	}
	if err := r.SetRoomSize(0.9); err != nil {
		t.Fatal(err)
	}
	if err := r.SetDamp(0.1); err != nil {
		t.Fatal(err)
	}
	if r.RoomSize() != 0.9 || r.Damp() != 0.1 {
		t.Fatalf("room=%g damp=%g", r.RoomSize(), r.Damp())
	}
}

func TestPrepareRejectsInvalidSpec(t *testing.T) {
	r, err := New(48000)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Prepare(core.ProcessSpec{SampleRate: 48000, MaxBlockSize: 0, NumChannels: 2}); err == nil {
		t.Fatal("expected error for zero block size")
	}
}

func TestReleaseThenPrepare(t *testing.T) {
	in := testutil.DeterministicNoise(5, 0.5, 256)

	ref := newPrepared(t, 48000, 1)
	want := append([]float64(nil), in...)
	ref.ProcessBlock(core.Block{want})

	r := newPrepared(t, 48000, 1)
	r.ProcessBlock(core.NewBlock(1, 64))
	r.Release()
	if r.channels != nil || r.scratch != nil || r.wetCurve != nil || r.dryCurve != nil {
		t.Fatal("Release should drop every buffer")
	}

	spec := core.NewProcessSpec(core.WithSampleRate(48000), core.WithMaxBlockSize(512), core.WithNumChannels(1))
	if err := r.Prepare(spec); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	got := append([]float64(nil), in...)
	r.ProcessBlock(core.Block{got})
	testutil.RequireSliceNearlyEqual(t, got, want, 1e-12)
}

func TestChannelMismatchPanics(t *testing.T) {
	r := newPrepared(t, 48000, 1)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	r.ProcessBlock(core.NewBlock(2, 16))
}

func BenchmarkReverbStereo(b *testing.B) {
	r, err := New(48000)
	if err != nil {
		b.Fatal(err)
	}
	spec := core.NewProcessSpec(core.WithSampleRate(48000), core.WithMaxBlockSize(512))
	if err := r.Prepare(spec); err != nil {
		b.Fatal(err)
	}
	blk := testutil.NoiseBlock(1, 0.5, 2, 512)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.ProcessBlock(blk)
	}
}
