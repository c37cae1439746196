package speaker

import (
	"errors"
	"fmt"
	"math"

	"github.com/linuxmatters/clinivox/internal/config"
	"github.com/linuxmatters/clinivox/internal/processor"
	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// NumFormants is the number of tracked formant frequencies.
	NumFormants = 3
	// NumCepstra is the length of the cepstral feature vector.
	NumCepstra = 13

	minPitchHz   = 50.0
	maxPitchHz   = 500.0
	voicingLevel = 0.3 // normalised autocorrelation needed to call a window voiced
	octaveGuard  = 0.9 // earliest peak within this fraction of the best wins
)

// ErrWindowSize is returned for unusable analysis window settings.
var ErrWindowSize = errors.New("invalid analysis window")

// formantBands are the search ranges for F1, F2 and F3 in Hz, half open.
var formantBands = [NumFormants][2]float64{
	{250, 900},
	{900, 2500},
	{2500, 3500},
}

// DefaultFormants are reported when a frame carries no voiced window.
var DefaultFormants = [NumFormants]float64{500, 1500, 2500}

// Features describes the voice in one frame of audio.
type Features struct {
	Pitch        float64              // Hz, 0 when unvoiced
	Formants     [NumFormants]float64 // Hz
	Cepstrum     [NumCepstra]float64  // mel cepstral coefficients 1..13
	SpeakingRate float64              // zero crossings per 10 ms
	Energy       float64              // RMS
	Centroid     float64              // Hz
}

// Voiced reports whether a fundamental frequency was found.
func (f Features) Voiced() bool {
	return f.Pitch > 0
}

// Extractor computes Features over overlapping analysis windows. FFT plans
// and scratch buffers are built once; the mel bank is rebuilt only when the
// sample rate changes.
type Extractor struct {
	window int
	hop    int
	hann   []float64

	fft   *fourier.FFT
	block []float64
	coeff []complex128
	power []float64

	acf      *fourier.FFT // 2x window for linear autocorrelation
	acBlock  []float64
	acCoeff  []complex128
	acResult []float64

	rate float64
	mel  *melBank
}

// NewExtractor creates an extractor for power-of-two windows with the given
// overlap in samples.
func NewExtractor(window, overlap int) (*Extractor, error) {
	if !config.IsPowerOfTwo(window) || window < 64 {
		return nil, fmt.Errorf("%w: window %d must be a power of two of at least 64", ErrWindowSize, window)
	}
	if overlap < 0 || overlap >= window {
		return nil, fmt.Errorf("%w: overlap %d must be within [0,%d)", ErrWindowSize, overlap, window)
	}
	return &Extractor{
		window:   window,
		hop:      window - overlap,
		hann:     processor.HannWindow(window),
		fft:      fourier.NewFFT(window),
		block:    make([]float64, window),
		coeff:    make([]complex128, window/2+1),
		power:    make([]float64, window/2+1),
		acf:      fourier.NewFFT(2 * window),
		acBlock:  make([]float64, 2*window),
		acCoeff:  make([]complex128, window+1),
		acResult: make([]float64, 2*window),
	}, nil
}

// windowFeatures holds the per-window measurements averaged into Features.
type windowFeatures struct {
	pitch    float64
	formants [NumFormants]float64
	cepstrum [NumCepstra]float64
	centroid float64
}

// Extract measures samples. It reports false for frames shorter than a
// quarter window or with a non-positive rate.
func (e *Extractor) Extract(samples []float32, sampleRate float64) (Features, bool) {
	if sampleRate <= 0 || len(samples) < e.window/4 {
		return Features{}, false
	}
	if sampleRate != e.rate {
		e.rate = sampleRate
		e.mel = newMelBank(e.window, sampleRate)
	}

	var f Features
	windows, voiced := 0, 0
	for start := 0; ; start += e.hop {
		end := min(start+e.window, len(samples))
		if windows > 0 && end-start < e.window {
			break
		}
		w := e.analyse(samples[start:end])
		windows++
		for i := range NumCepstra {
			f.Cepstrum[i] += w.cepstrum[i]
		}
		f.Centroid += w.centroid
		if w.pitch > 0 {
			voiced++
			f.Pitch += w.pitch
			for i := range NumFormants {
				f.Formants[i] += w.formants[i]
			}
		}
		if end == len(samples) {
			break
		}
	}

	n := float64(windows)
	for i := range NumCepstra {
		f.Cepstrum[i] /= n
	}
	f.Centroid /= n
	if voiced > 0 {
		f.Pitch /= float64(voiced)
		for i := range NumFormants {
			f.Formants[i] /= float64(voiced)
		}
	} else {
		f.Formants = DefaultFormants
	}

	f.SpeakingRate = processor.ZeroCrossingRate(samples, sampleRate)
	f.Energy = math.Sqrt(processor.MeanSquare(samples))
	return f, true
}

func (e *Extractor) analyse(seg []float32) windowFeatures {
	var w windowFeatures

	for i := range e.block {
		if i < len(seg) {
			e.block[i] = float64(seg[i]) * e.hann[i]
		} else {
			e.block[i] = 0
		}
	}
	e.coeff = e.fft.Coefficients(e.coeff, e.block)

	binHz := e.rate / float64(e.window)
	var weighted, total float64
	for k, c := range e.coeff {
		m := math.Hypot(real(c), imag(c))
		e.power[k] = m * m
		weighted += float64(k) * binHz * m
		total += m
	}
	if total > 0 {
		w.centroid = weighted / total
	}

	var logMel [numMelBands]float64
	e.mel.apply(e.power, &logMel)
	for k := range NumCepstra {
		var sum float64
		for m, v := range logMel {
			sum += dctTable[k][m] * v
		}
		w.cepstrum[k] = sum
	}

	w.pitch = e.pitch(seg)
	if w.pitch > 0 {
		w.formants = e.formants(binHz)
	}
	return w
}

// pitch finds the fundamental by autocorrelation, computed as the inverse
// FFT of the zero-padded power spectrum. Correlations are normalised per
// overlapping sample so long lags are not penalised.
func (e *Extractor) pitch(seg []float32) float64 {
	var mean float64
	for _, s := range seg {
		mean += float64(s)
	}
	mean /= float64(len(seg))

	clear(e.acBlock)
	for i, s := range seg {
		e.acBlock[i] = float64(s) - mean
	}
	e.acCoeff = e.acf.Coefficients(e.acCoeff, e.acBlock)
	for k, c := range e.acCoeff {
		e.acCoeff[k] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
	}
	r := e.acf.Sequence(e.acResult, e.acCoeff)

	n := len(seg)
	if r[0] <= 0 {
		return 0
	}
	energy := r[0] / float64(n)

	minLag := max(int(e.rate/maxPitchHz), 1)
	maxLag := min(int(e.rate/minPitchHz), n/2)
	if maxLag <= minLag+1 {
		return 0
	}

	norm := func(lag int) float64 {
		return r[lag] / float64(n-lag) / energy
	}

	best := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		best = max(best, norm(lag))
	}
	if best < voicingLevel {
		return 0
	}

	// Earliest local peak close to the best avoids octave-down errors
	for lag := minLag + 1; lag < maxLag; lag++ {
		v := norm(lag)
		if v >= octaveGuard*best && v >= norm(lag-1) && v >= norm(lag+1) {
			return e.rate / float64(lag)
		}
	}
	return 0
}

// formants picks the strongest bin in each formant band of the last
// analysed spectrum.
func (e *Extractor) formants(binHz float64) [NumFormants]float64 {
	out := DefaultFormants
	for i, band := range formantBands {
		lo := int(math.Ceil(band[0] / binHz))
		hi := min(int(math.Ceil(band[1]/binHz)), len(e.power))
		bestBin, bestPow := -1, 0.0
		for k := lo; k < hi; k++ {
			if e.power[k] > bestPow {
				bestBin, bestPow = k, e.power[k]
			}
		}
		if bestBin >= 0 {
			out[i] = float64(bestBin) * binHz
		}
	}
	return out
}
