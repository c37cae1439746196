package processor

import (
	"math"
	"testing"
)

// sineWave generates n samples of a sine at freq Hz with peak amplitude amp.
func sineWave(freq, sampleRate float64, n int, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/sampleRate))
	}
	return out
}

// speechLike mixes four tones across the voice band with a combined peak
// of 0.3. After pre-emphasis its zero-crossing rate sits near 50 per 10 ms.
func speechLike(sampleRate float64, n int) []float32 {
	tones := []struct{ freq, amp float64 }{
		{300, 0.06},
		{800, 0.07},
		{1500, 0.08},
		{2500, 0.09},
	}
	out := make([]float32, n)
	for i := range out {
		t := float64(i) / sampleRate
		var v float64
		for _, tone := range tones {
			v += tone.amp * math.Sin(2*math.Pi*tone.freq*t)
		}
		out[i] = float32(v)
	}
	return out
}

// whiteNoise generates uniform noise in [-amp, amp].
// Simple LCG random number generator for deterministic noise
// (avoids importing math/rand and seeding complexity)
func whiteNoise(n int, amp float64, seed uint32) []float32 {
	rngState := seed
	out := make([]float32, n)
	for i := range out {
		rngState = rngState*1664525 + 1013904223
		out[i] = float32(amp * (2*float64(rngState)/4294967296.0 - 1))
	}
	return out
}

// constant returns n copies of v.
func constant(v float32, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// mse returns the mean squared difference of two equal-length buffers.
func mse(t *testing.T, a, b []float32) float64 {
	t.Helper()
	if len(a) != len(b) {
		t.Fatalf("mse: length mismatch %d vs %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum / float64(len(a))
}

// approxEqual reports whether a and b differ by at most tol.
func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
