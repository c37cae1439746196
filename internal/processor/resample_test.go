package processor

import (
	"math"
	"testing"
)

func TestResampleLength(t *testing.T) {
	tests := []struct {
		n        int
		from, to float64
		want     int
	}{
		{1000, 48000, 16000, 333},
		{441, 44100, 16000, 160},
		{160, 16000, 48000, 480},
		{1024, 48000, 16000, 341},
		{1, 48000, 16000, 0},
	}

	var r Resampler
	for _, tt := range tests {
		out := r.Process(make([]float32, tt.n), tt.from, tt.to)
		if len(out) != tt.want {
			t.Errorf("Process(%d samples, %g -> %g) length = %d, want %d", tt.n, tt.from, tt.to, len(out), tt.want)
		}
	}
}

func TestResampleRoundTrip(t *testing.T) {
	in := sineWave(440, 48000, 1000, 0.5)

	var down, up Resampler
	mid := down.Process(in, 48000, 16000)
	back := up.Process(mid, 16000, 48000)

	if d := len(back) - len(in); d < -1 || d > 1 {
		t.Fatalf("round trip length = %d, want %d +-1", len(back), len(in))
	}
	n := min(len(back), len(in))
	if e := mse(t, back[:n], in[:n]); e > 1e-3 {
		t.Errorf("round trip MSE = %g, want under 1e-3", e)
	}
}

func TestResampleNoOp(t *testing.T) {
	var r Resampler
	in := []float32{0.1, 0.2, 0.3}
	out := r.Process(in, 16000, 16000.5)
	if &out[0] != &in[0] {
		t.Error("rates within 1 Hz should return the input unchanged")
	}
}

func TestResampleDegenerate(t *testing.T) {
	var r Resampler
	if out := r.Process(nil, 48000, 16000); len(out) != 0 {
		t.Errorf("empty input gave %d samples", len(out))
	}
	if out := r.Process([]float32{1, 2}, 0, 16000); len(out) != 0 {
		t.Errorf("zero source rate gave %d samples", len(out))
	}
	if out := r.Process([]float32{1, 2}, 16000, -1); len(out) != 0 {
		t.Errorf("negative target rate gave %d samples", len(out))
	}
}

func TestResampleAntiAliasing(t *testing.T) {
	// Decimating a 16 kHz cosine at 48 kHz by three lands on its peaks and
	// would alias to DC. The three-tap average nulls it first.
	in := make([]float32, 4800)
	for i := range in {
		in[i] = float32(0.5 * math.Cos(2*math.Pi*16000*float64(i)/48000))
	}

	var r Resampler
	out := r.Process(in, 48000, 16000)
	if peak := Peak(out[1 : len(out)-1]); peak > 0.01 {
		t.Errorf("aliased peak = %.4f, want under 0.01", peak)
	}

	pass := r.Process(sineWave(300, 48000, 4800, 0.5), 48000, 16000)
	if peak := Peak(pass); peak < 0.45 {
		t.Errorf("300 Hz peak = %.3f, want passband preserved", peak)
	}
}

func TestResampleReusesBuffer(t *testing.T) {
	var r Resampler
	a := r.Process(make([]float32, 960), 48000, 16000)
	b := r.Process(make([]float32, 960), 48000, 16000)
	if &a[0] != &b[0] {
		t.Error("output buffer reallocated for an equal-length frame")
	}
}
