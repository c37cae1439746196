package processor

import (
	"errors"
	"fmt"

	"github.com/linuxmatters/clinivox/internal/config"
	"gonum.org/v1/gonum/dsp/fourier"
)

// ErrFFTSize is returned when an FFT plan is requested for an unusable size.
var ErrFFTSize = errors.New("fft size must be a power of two")

// SpectralReducer removes stationary noise by spectral subtraction.
//
// Frames are processed in consecutive FFT-sized blocks; a short tail block
// is zero-padded and truncated on output. The noise profile is a running
// per-bin magnitude estimate that is only updated through Learn, which the
// session calls for frames the VAD marks as non-speech.
type SpectralReducer struct {
	cfg   config.Spectral
	level float64
	n     int

	fft   *fourier.FFT
	block []float64
	coeff []complex128

	profile    []float64
	hasProfile bool
	updates    int
}

// NewSpectralReducer builds the FFT plan for n-point blocks. level scales
// the over-subtraction factor and is clamped to [0,1].
func NewSpectralReducer(n int, cfg config.Spectral, level float64) (*SpectralReducer, error) {
	if !config.IsPowerOfTwo(n) || n < 16 || n > 16384 {
		return nil, fmt.Errorf("%w: got %d", ErrFFTSize, n)
	}
	return &SpectralReducer{
		cfg:     cfg,
		level:   clamp(level, 0, 1),
		n:       n,
		fft:     fourier.NewFFT(n),
		block:   make([]float64, n),
		coeff:   make([]complex128, n/2+1),
		profile: make([]float64, n/2+1),
	}, nil
}

// Learn folds the magnitude spectrum of samples into the noise profile.
// The first block seeds the profile; later blocks blend in with weight
// 1 - ProfileDecay.
func (r *SpectralReducer) Learn(samples []float32) {
	for start := 0; start < len(samples); start += r.n {
		r.forward(samples[start:min(start+r.n, len(samples))])

		if !r.hasProfile {
			for k, c := range r.coeff {
				r.profile[k] = cmplxAbs(c)
			}
			r.hasProfile = true
		} else {
			keep := r.cfg.ProfileDecay
			for k, c := range r.coeff {
				r.profile[k] = keep*r.profile[k] + (1-keep)*cmplxAbs(c)
			}
		}
		r.updates++
	}
}

// Reduce subtracts the scaled noise profile from samples in place, keeping
// at least FloorRatio of each bin's magnitude and the original phase.
// Without a profile the samples pass through untouched.
func (r *SpectralReducer) Reduce(samples []float32) {
	if !r.hasProfile {
		return
	}
	sub := r.cfg.OverSubtraction * r.level
	if sub == 0 {
		return
	}

	scale := 1 / float64(r.n)
	for start := 0; start < len(samples); start += r.n {
		blk := samples[start:min(start+r.n, len(samples))]
		r.forward(blk)

		for k, c := range r.coeff {
			mag := cmplxAbs(c)
			if mag == 0 {
				continue
			}
			kept := mag - sub*r.profile[k]
			if floor := r.cfg.FloorRatio * mag; kept < floor {
				kept = floor
			}
			r.coeff[k] = c * complex(kept/mag, 0)
		}

		// Sequence is unnormalised: it returns n times the input
		r.block = r.fft.Sequence(r.block, r.coeff)
		for i := range blk {
			blk[i] = float32(r.block[i] * scale)
		}
	}
}

func (r *SpectralReducer) forward(blk []float32) {
	for i := range r.block {
		if i < len(blk) {
			r.block[i] = float64(blk[i])
		} else {
			r.block[i] = 0
		}
	}
	r.coeff = r.fft.Coefficients(r.coeff, r.block)
}

// HasProfile reports whether any non-speech audio has been learned.
func (r *SpectralReducer) HasProfile() bool {
	return r.hasProfile
}

// Updates returns the number of blocks folded into the profile.
func (r *SpectralReducer) Updates() int {
	return r.updates
}

// ProfileLevel returns the mean profile magnitude in dB, or the silence
// floor when no profile exists.
func (r *SpectralReducer) ProfileLevel() float64 {
	if !r.hasProfile {
		return DigitalSilenceFloor
	}
	var sum float64
	for _, m := range r.profile {
		sum += m
	}
	mean := sum / float64(len(r.profile))
	// bins hold unnormalised magnitudes; n/2 maps a full-scale sine to 1
	return LinearToDb(mean / (float64(r.n) / 2))
}

// Profile returns a copy of the current per-bin noise magnitudes.
func (r *SpectralReducer) Profile() []float64 {
	if !r.hasProfile {
		return nil
	}
	out := make([]float64, len(r.profile))
	copy(out, r.profile)
	return out
}

// Reset discards the noise profile.
func (r *SpectralReducer) Reset() {
	clear(r.profile)
	r.hasProfile = false
	r.updates = 0
}
