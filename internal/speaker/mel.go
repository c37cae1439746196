package speaker

import "math"

const (
	numMelBands = 24
	melLowHz    = 80.0
	melHighHz   = 7600.0
)

// hzToMel converts frequency in Hz to mel scale.
func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// melToHz converts mel scale frequency back to Hz.
func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// melBank is a set of triangular filters over the bins of one FFT size at
// one sample rate. Each filter stores only its non-zero span.
type melBank struct {
	rate    float64
	first   [numMelBands]int
	weights [numMelBands][]float64
}

func newMelBank(fftSize int, sampleRate float64) *melBank {
	halfFFT := fftSize/2 + 1
	high := min(melHighHz, sampleRate/2)
	lowMel := hzToMel(melLowHz)
	highMel := hzToMel(high)

	// numMelBands + 2 equally spaced mel points, rounded to bins
	var bins [numMelBands + 2]int
	step := (highMel - lowMel) / float64(numMelBands+1)
	for i := range bins {
		hz := melToHz(lowMel + float64(i)*step)
		bins[i] = min(int(math.Round(hz*float64(fftSize)/sampleRate)), halfFFT-1)
	}
	for i := 1; i < len(bins); i++ {
		if bins[i] <= bins[i-1] {
			bins[i] = bins[i-1] + 1
		}
	}

	b := &melBank{rate: sampleRate}
	for m := range numMelBands {
		left, center, right := bins[m], bins[m+1], bins[m+2]
		right = min(right, halfFFT-1)
		w := make([]float64, 0, max(right-left+1, 0))
		for k := left; k <= right; k++ {
			var v float64
			switch {
			case k < center:
				v = float64(k-left) / float64(center-left)
			case right > center:
				v = float64(right-k) / float64(right-center)
			case k == center:
				v = 1
			}
			w = append(w, v)
		}
		b.first[m] = left
		b.weights[m] = w
	}
	return b
}

// apply writes log mel energies of the power spectrum into out.
func (b *melBank) apply(power []float64, out *[numMelBands]float64) {
	for m := range numMelBands {
		var sum float64
		for i, w := range b.weights[m] {
			k := b.first[m] + i
			if k < len(power) {
				sum += w * power[k]
			}
		}
		out[m] = math.Log(sum + 1e-10)
	}
}

// dctTable holds DCT-II basis rows for cepstral coefficients 1..NumCepstra.
// c0 tracks overall loudness and is left out so comparison reflects
// spectral shape.
var dctTable = func() [NumCepstra][numMelBands]float64 {
	var t [NumCepstra][numMelBands]float64
	for k := range NumCepstra {
		for m := range numMelBands {
			t[k][m] = math.Cos(math.Pi * float64(k+1) * (float64(m) + 0.5) / numMelBands)
		}
	}
	return t
}()
