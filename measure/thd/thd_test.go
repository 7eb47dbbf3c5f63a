package thd

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-fxchain/dsp/window"
	"github.com/cwbudde/algo-fxchain/internal/testutil"
)

const (
	testRate = 48000.0
	testSize = 4096
	testBin  = 64
)

// toneFrame returns a frame holding the fundamental at testBin plus the
// given harmonic amplitudes, keyed by harmonic number.
func toneFrame(harmonics map[int]float64) []float64 {
	frame := make([]float64, testSize)
	for i := range frame {
		ph := 2 * math.Pi * testBin * float64(i) / testSize
		frame[i] = math.Sin(ph)
		for k, amp := range harmonics {
			frame[i] += amp * math.Sin(float64(k)*ph)
		}
	}
	return frame
}

func newTestAnalyzer(t *testing.T, cfg Config) *Analyzer {
	t.Helper()
	cfg.SampleRate = testRate
	cfg.FundamentalBin = testBin
	a, err := NewAnalyzer(testSize, cfg)
	if err != nil {
		t.Fatalf("NewAnalyzer() error = %v", err)
	}
	return a
}

func TestNewAnalyzerValidation(t *testing.T) {
	valid := Config{SampleRate: testRate, FundamentalBin: testBin}

	tests := []struct {
		name string
		size int
		mut  func(*Config)
	}{
		{name: "size not power of two", size: 1000},
		{name: "size too small", size: 1},
		{name: "zero sample rate", size: testSize, mut: func(c *Config) { c.SampleRate = 0 }},
		{name: "fundamental at dc", size: testSize, mut: func(c *Config) { c.FundamentalBin = 0 }},
		{name: "fundamental at nyquist", size: testSize, mut: func(c *Config) { c.FundamentalBin = testSize / 2 }},
		{name: "negative harmonics", size: testSize, mut: func(c *Config) { c.MaxHarmonics = -1 }},
		{name: "upper below fundamental", size: testSize, mut: func(c *Config) { c.UpperFreq = 100 }},
		{name: "nan upper", size: testSize, mut: func(c *Config) { c.UpperFreq = math.NaN() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			if tt.mut != nil {
				tt.mut(&cfg)
			}
			if _, err := NewAnalyzer(tt.size, cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	a, err := NewAnalyzer(testSize, valid)
	if err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if a.Size() != testSize {
		t.Fatalf("Size() = %d, want %d", a.Size(), testSize)
	}
}

func TestAnalyzePureTone(t *testing.T) {
	a := newTestAnalyzer(t, Config{})

	res, err := a.Analyze(toneFrame(nil))
	if err != nil {
		t.Fatal(err)
	}
	if res.THD > 1e-9 || res.THDN > 1e-9 {
		t.Fatalf("pure tone THD=%g THD+N=%g", res.THD, res.THDN)
	}
	if want := testBin * testRate / testSize; res.FundamentalFreq != want {
		t.Fatalf("FundamentalFreq = %g, want %g", res.FundamentalFreq, want)
	}
	if !math.IsInf(res.SINAD, 1) && res.SINAD < 150 {
		t.Fatalf("SINAD = %g, want very large", res.SINAD)
	}
}

func TestAnalyzeKnownHarmonics(t *testing.T) {
	for _, wt := range []window.Type{window.TypeRectangular, window.TypeHann, window.TypeBlackman, window.TypeBlackmanHarris4Term, window.TypeFlatTop} {
		t.Run(wt.String(), func(t *testing.T) {
			a := newTestAnalyzer(t, Config{WindowType: wt})

			res, err := a.Analyze(toneFrame(map[int]float64{2: 0.04, 3: 0.03}))
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(res.THD-0.05) > 1e-9 {
				t.Fatalf("THD = %g, want 0.05", res.THD)
			}
			if math.Abs(res.EvenHD-0.04) > 1e-9 || math.Abs(res.OddHD-0.03) > 1e-9 {
				t.Fatalf("even=%g odd=%g, want 0.04 / 0.03", res.EvenHD, res.OddHD)
			}
			if len(res.Harmonics) < 2 || math.Abs(res.Harmonics[0]-0.04) > 1e-9 || math.Abs(res.Harmonics[1]-0.03) > 1e-9 {
				t.Fatalf("Harmonics = %v", res.Harmonics[:2])
			}
			if res.Noise > 1e-9 {
				t.Fatalf("Noise = %g, want ~0", res.Noise)
			}
		})
	}
}

func TestAnalyzeIgnoresDCOffset(t *testing.T) {
	a := newTestAnalyzer(t, Config{})

	frame := toneFrame(map[int]float64{3: 0.01})
	for i := range frame {
		frame[i] += 0.3
	}
	res, err := a.Analyze(frame)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(res.THD-0.01) > 1e-9 || math.Abs(res.THDN-0.01) > 1e-9 {
		t.Fatalf("THD=%g THD+N=%g, want 0.01 with DC excluded", res.THD, res.THDN)
	}
}

func TestAnalyzeNoiseRaisesTHDN(t *testing.T) {
	a := newTestAnalyzer(t, Config{})

	frame := toneFrame(map[int]float64{3: 0.01})
	noise := testutil.DeterministicNoise(5, 1e-3, testSize)
	for i := range frame {
		frame[i] += noise[i]
	}
	res, err := a.Analyze(frame)
	if err != nil {
		t.Fatal(err)
	}
	if res.THDN <= res.THD || res.Noise <= 0 {
		t.Fatalf("THD=%g THD+N=%g noise=%g, want noise on top of THD", res.THD, res.THDN, res.Noise)
	}
	if math.Abs(res.THD-0.01) > 1e-3 {
		t.Fatalf("THD = %g, want ~0.01", res.THD)
	}
}

func TestAnalyzeHarmonicLimits(t *testing.T) {
	frame := toneFrame(map[int]float64{2: 0.02, 5: 0.02})

	limited := newTestAnalyzer(t, Config{MaxHarmonics: 3})
	res, err := limited.Analyze(frame)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Harmonics) != 3 || math.Abs(res.THD-0.02) > 1e-9 {
		t.Fatalf("MaxHarmonics=3: %d harmonics, THD=%g", len(res.Harmonics), res.THD)
	}
	// The 5th harmonic still counts toward THD+N.
	if math.Abs(res.THDN-math.Sqrt(0.0008)) > 1e-9 {
		t.Fatalf("THD+N = %g, want %g", res.THDN, math.Sqrt(0.0008))
	}

	// Only harmonics 2 to 4 of 750 Hz fit below 3 kHz.
	band := newTestAnalyzer(t, Config{UpperFreq: 3000})
	res, err = band.Analyze(frame)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Harmonics) != 3 {
		t.Fatalf("UpperFreq=3000: %d harmonics, want 3", len(res.Harmonics))
	}
}

func TestAnalyzeFrameLength(t *testing.T) {
	a := newTestAnalyzer(t, Config{})
	if _, err := a.Analyze(make([]float64, testSize-1)); err == nil {
		t.Fatal("expected error for short frame")
	}
}

func TestAnalyzeSilence(t *testing.T) {
	a := newTestAnalyzer(t, Config{})
	res, err := a.Analyze(make([]float64, testSize))
	if err != nil {
		t.Fatal(err)
	}
	if res.FundamentalLevel != 0 || res.THD != 0 {
		t.Fatalf("silence = %+v", res)
	}
}
