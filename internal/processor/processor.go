// Package processor implements the per-frame DSP stages of a capture session:
// pre-emphasis, adaptive noise gate, voice activity detection, spectral noise
// reduction, voice-band equalisation, compression, normalisation, resampling
// and quality measurement.
//
// Every stage owns its state and is driven synchronously by one goroutine.
// Buffers are processed in place where the stage allows it; scratch memory
// is allocated at construction and only grows when a longer frame arrives.
package processor

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// DigitalSilenceFloor is the dB value reported for zero amplitude.
const DigitalSilenceFloor = -120.0

// ClipLevel is the absolute sample value counted as clipped.
const ClipLevel = 0.99

// DbToLinear converts decibel value to linear amplitude.
func DbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// LinearToDb converts linear amplitude to decibel value.
// Inverse of DbToLinear.
func LinearToDb(linear float64) float64 {
	if linear <= 0 {
		return DigitalSilenceFloor
	}
	return max(20*math.Log10(linear), DigitalSilenceFloor)
}

// Peak returns the largest absolute sample value.
func Peak(buf []float32) float64 {
	var peak float32
	for _, s := range buf {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return float64(peak)
}

// MeanSquare returns the mean of squared samples, 0 for an empty buffer.
func MeanSquare(buf []float32) float64 {
	if len(buf) == 0 {
		return 0
	}
	var sum float64
	for _, s := range buf {
		sum += float64(s) * float64(s)
	}
	return sum / float64(len(buf))
}

// ZeroCrossingRate returns sign changes per 10 ms of audio.
func ZeroCrossingRate(buf []float32, sampleRate float64) float64 {
	if len(buf) < 2 || sampleRate <= 0 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(buf); i++ {
		if (buf[i] >= 0) != (buf[i-1] >= 0) {
			crossings++
		}
	}
	seconds := float64(len(buf)) / sampleRate
	return float64(crossings) / seconds / 100
}

// HannWindow returns an n-point periodic Hann window.
func HannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// spectrum computes windowed magnitude spectra with a plan built once.
type spectrum struct {
	fft    *fourier.FFT
	window []float64
	block  []float64
	coeff  []complex128
}

func newSpectrum(n int) *spectrum {
	return &spectrum{
		fft:    fourier.NewFFT(n),
		window: HannWindow(n),
		block:  make([]float64, n),
		coeff:  make([]complex128, n/2+1),
	}
}

// centroid returns the magnitude-weighted mean frequency of the first
// window of samples, zero-padded when the buffer is short.
func (s *spectrum) centroid(samples []float32, sampleRate float64) float64 {
	n := len(s.block)
	for i := range s.block {
		if i < len(samples) {
			s.block[i] = float64(samples[i]) * s.window[i]
		} else {
			s.block[i] = 0
		}
	}
	s.coeff = s.fft.Coefficients(s.coeff, s.block)

	binHz := sampleRate / float64(n)
	var weighted, total float64
	for k, c := range s.coeff {
		m := math.Hypot(real(c), imag(c))
		weighted += float64(k) * binHz * m
		total += m
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// clamp restricts val to the range [min, max]
func clamp(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
