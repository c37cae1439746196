package processor

import (
	"math"
	"testing"

	"github.com/linuxmatters/clinivox/internal/config"
)

func TestPreEmphasisCarriesAcrossBuffers(t *testing.T) {
	p := NewPreEmphasis(0.5)

	first := []float32{1, 1, 0}
	p.Process(first, first) // in place
	want := []float32{1, 0.5, -0.5}
	for i := range want {
		if first[i] != want[i] {
			t.Errorf("first[%d] = %v, want %v", i, first[i], want[i])
		}
	}

	dst := make([]float32, 2)
	out := p.Process(dst, []float32{2, 2})
	if out[0] != 2 || out[1] != 1 {
		t.Errorf("second buffer = %v, want [2 1] (previous sample was 0)", out)
	}

	p.Reset()
	out = p.Process(dst, []float32{4})
	if out[0] != 4 {
		t.Errorf("after Reset = %v, want 4", out[0])
	}
}

func TestPeakingGainAtCentre(t *testing.T) {
	tests := []struct {
		freq, q, gain float64
	}{
		{150, 0.8, 4},
		{1000, 1.0, 3},
		{3000, 1.2, 5},
		{1000, 1.0, -6},
	}

	for _, tt := range tests {
		b := Biquad{c: peakingCoeffs(16000, tt.freq, tt.q, tt.gain)}
		got := b.Response(tt.freq, 16000)
		if !approxEqual(got, tt.gain, 0.01) {
			t.Errorf("peaking %g Hz %+g dB: response at centre = %.3f dB", tt.freq, tt.gain, got)
		}
	}
}

func TestPeakingAboveNyquistIsPassthrough(t *testing.T) {
	if c := peakingCoeffs(4000, 3000, 1.2, 5); c != passthrough {
		t.Errorf("band above Nyquist = %+v, want passthrough", c)
	}
}

func TestEqualiserZeroLevelIsTransparent(t *testing.T) {
	eq := NewEqualiser(config.Default().Equaliser, 0)
	in := speechLike(16000, 2048)
	out := append([]float32(nil), in...)
	eq.Process(out, 16000)

	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d changed from %v to %v at zero enhancement", i, in[i], out[i])
		}
	}
}

func TestEqualiserBoostsVoiceBands(t *testing.T) {
	eq := NewEqualiser(config.Default().Equaliser, 1)
	for _, freq := range []float64{150, 1000, 3000} {
		if db := eq.Response(freq, 16000); db < 2.5 {
			t.Errorf("response at %g Hz = %.2f dB, want a boost", freq, db)
		}
	}

	// Boosting a 1 kHz tone raises its steady-state peak
	in := sineWave(1000, 16000, 8000, 0.1)
	eq.Process(in, 16000)
	if peak := Peak(in[4000:]); peak <= 0.1 {
		t.Errorf("steady-state peak = %.4f, want above 0.1", peak)
	}
}

func TestEqualiserHumNotch(t *testing.T) {
	cfg := config.Default().Equaliser
	cfg.HumHz = 50
	cfg.HumHarmonics = 3
	eq := NewEqualiser(cfg, 0)

	for _, freq := range []float64{50, 100, 150} {
		if db := eq.Response(freq, 16000); db > -30 {
			t.Errorf("response at %g Hz = %.1f dB, want a deep notch", freq, db)
		}
	}
	if db := eq.Response(1000, 16000); !approxEqual(db, 0, 0.1) {
		t.Errorf("response at 1 kHz = %.2f dB, want flat", db)
	}

	// A 50 Hz tone is removed once the filter settles
	hum := sineWave(50, 16000, 32000, 0.5)
	eq.Process(hum, 16000)
	if peak := Peak(hum[16000:]); peak > 0.02 {
		t.Errorf("residual hum peak = %.4f, want under 0.02", peak)
	}
}

func TestEqualiserRateChangeKeepsFinite(t *testing.T) {
	eq := NewEqualiser(config.Default().Equaliser, 1)
	buf := speechLike(48000, 1024)
	eq.Process(buf, 48000)
	buf = speechLike(4000, 256) // clarity band sits above Nyquist here
	eq.Process(buf, 4000)

	for i, s := range buf {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			t.Fatalf("sample %d is %v after rate change", i, s)
		}
	}
}
