package processor

import "github.com/linuxmatters/clinivox/internal/config"

// Decision is the VAD verdict for one frame plus the measurements behind it.
type Decision struct {
	Speech   bool    // smoothed verdict
	Raw      bool    // this frame's verdict before smoothing
	Energy   float64 // mean square
	ZCR      float64 // crossings per 10 ms
	Centroid float64 // Hz
}

// VAD fuses short-term energy, zero-crossing rate and spectral centroid into
// a per-frame verdict, then smooths verdicts with a majority vote over the
// most recent frames.
type VAD struct {
	cfg     config.VAD
	spec    *spectrum
	history []bool
	next    int
	filled  int
}

// NewVAD creates a detector whose centroid estimate uses an fftSize-point
// spectrum. fftSize must be a power of two.
func NewVAD(cfg config.VAD, fftSize int) (*VAD, error) {
	if !config.IsPowerOfTwo(fftSize) {
		return nil, ErrFFTSize
	}
	return &VAD{
		cfg:     cfg,
		spec:    newSpectrum(fftSize),
		history: make([]bool, max(cfg.Window, 1)),
	}, nil
}

// Detect classifies samples. Empty frames and non-positive rates are
// reported as non-speech without touching the smoothing window.
func (v *VAD) Detect(samples []float32, sampleRate float64) Decision {
	if len(samples) == 0 || sampleRate <= 0 {
		return Decision{}
	}

	d := Decision{
		Energy: MeanSquare(samples),
		ZCR:    ZeroCrossingRate(samples, sampleRate),
	}
	// Centroid only matters once the cheaper tests pass
	if d.Energy > v.cfg.EnergyThreshold && d.ZCR >= v.cfg.ZCRMin && d.ZCR <= v.cfg.ZCRMax {
		d.Centroid = v.spec.centroid(samples, sampleRate)
		d.Raw = d.Centroid >= v.cfg.CentroidMin && d.Centroid <= v.cfg.CentroidMax
	}

	v.history[v.next] = d.Raw
	v.next = (v.next + 1) % len(v.history)
	if v.filled < len(v.history) {
		v.filled++
	}

	votes := 0
	for i := range v.filled {
		if v.history[i] {
			votes++
		}
	}
	d.Speech = 2*votes > v.filled
	return d
}

// Reset empties the smoothing window.
func (v *VAD) Reset() {
	clear(v.history)
	v.next = 0
	v.filled = 0
}
