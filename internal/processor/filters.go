package processor

import (
	"math"

	"github.com/linuxmatters/clinivox/internal/config"
)

// =============================================================================
// Pre-emphasis
// =============================================================================

// PreEmphasis is a first-order differencing high-pass: y[i] = x[i] - k·x[i-1].
// The last input sample carries over to the next buffer.
type PreEmphasis struct {
	k    float32
	prev float32
}

// NewPreEmphasis creates a filter with coefficient k (typically 0.97).
func NewPreEmphasis(k float64) *PreEmphasis {
	return &PreEmphasis{k: float32(k)}
}

// Process writes the filtered src into dst and returns it. dst may be src.
func (p *PreEmphasis) Process(dst, src []float32) []float32 {
	dst = dst[:len(src)]
	prev := p.prev
	for i, x := range src {
		dst[i] = x - p.k*prev
		prev = x
	}
	p.prev = prev
	return dst
}

// Reset clears the carried sample.
func (p *PreEmphasis) Reset() {
	p.prev = 0
}

// =============================================================================
// Biquad sections
// =============================================================================

// biquadCoeffs are normalised (a0 = 1) second-order section coefficients.
type biquadCoeffs struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// passthrough is the identity section
var passthrough = biquadCoeffs{b0: 1}

// peakingCoeffs returns an RBJ cookbook peaking EQ section.
func peakingCoeffs(sampleRate, freq, q, gainDB float64) biquadCoeffs {
	if freq <= 0 || freq >= sampleRate/2 || q <= 0 || gainDB == 0 {
		return passthrough
	}
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / sampleRate
	cosw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)

	a0 := 1 + alpha/a
	return biquadCoeffs{
		b0: (1 + alpha*a) / a0,
		b1: -2 * cosw / a0,
		b2: (1 - alpha*a) / a0,
		a1: -2 * cosw / a0,
		a2: (1 - alpha/a) / a0,
	}
}

// notchCoeffs returns an RBJ cookbook notch section.
func notchCoeffs(sampleRate, freq, q float64) biquadCoeffs {
	if freq <= 0 || freq >= sampleRate/2 || q <= 0 {
		return passthrough
	}
	w0 := 2 * math.Pi * freq / sampleRate
	cosw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)

	a0 := 1 + alpha
	return biquadCoeffs{
		b0: 1 / a0,
		b1: -2 * cosw / a0,
		b2: 1 / a0,
		a1: -2 * cosw / a0,
		a2: (1 - alpha) / a0,
	}
}

// Biquad is a direct form I second-order IIR section. Its delay line
// persists across buffers.
type Biquad struct {
	c              biquadCoeffs
	x1, x2, y1, y2 float64
}

// Process filters buf in place.
func (b *Biquad) Process(buf []float32) {
	c := b.c
	x1, x2, y1, y2 := b.x1, b.x2, b.y1, b.y2
	for i, s := range buf {
		x := float64(s)
		y := c.b0*x + c.b1*x1 + c.b2*x2 - c.a1*y1 - c.a2*y2
		x2, x1 = x1, x
		y2, y1 = y1, y
		buf[i] = float32(y)
	}
	b.x1, b.x2, b.y1, b.y2 = x1, x2, y1, y2
}

// Reset clears the delay line.
func (b *Biquad) Reset() {
	b.x1, b.x2, b.y1, b.y2 = 0, 0, 0, 0
}

// Response returns the magnitude response in dB at freq.
func (b *Biquad) Response(freq, sampleRate float64) float64 {
	w := 2 * math.Pi * freq / sampleRate
	z1 := complex(math.Cos(w), -math.Sin(w))
	z2 := z1 * z1
	c := b.c
	num := complex(c.b0, 0) + complex(c.b1, 0)*z1 + complex(c.b2, 0)*z2
	den := complex(1, 0) + complex(c.a1, 0)*z1 + complex(c.a2, 0)*z2
	return LinearToDb(cmplxAbs(num / den))
}

func cmplxAbs(z complex128) float64 {
	return math.Hypot(real(z), imag(z))
}

// =============================================================================
// Voice-band equaliser
// =============================================================================

// Equaliser cascades three peaking bands (fundamental, formant, clarity) and
// optional mains hum notches. Band gains scale with the voice enhancement
// level. Coefficients are recomputed when the frame rate changes; delay
// lines are kept.
type Equaliser struct {
	cfg   config.Equaliser
	level float64
	rate  float64
	bands []Biquad
}

// NewEqualiser allocates every section up front.
func NewEqualiser(cfg config.Equaliser, level float64) *Equaliser {
	n := 3
	if cfg.HumHz > 0 {
		n += cfg.HumHarmonics
	}
	return &Equaliser{
		cfg:   cfg,
		level: clamp(level, 0, 1),
		bands: make([]Biquad, n),
	}
}

// Process equalises buf in place.
func (e *Equaliser) Process(buf []float32, sampleRate float64) {
	if sampleRate <= 0 {
		return
	}
	if sampleRate != e.rate {
		e.design(sampleRate)
	}
	for i := range e.bands {
		e.bands[i].Process(buf)
	}
}

func (e *Equaliser) design(sampleRate float64) {
	e.rate = sampleRate
	voice := []config.Band{e.cfg.Fundamental, e.cfg.Formant, e.cfg.Clarity}
	for i, b := range voice {
		e.bands[i].c = peakingCoeffs(sampleRate, b.Frequency, b.Q, b.GainDB*e.level)
	}
	for h := 3; h < len(e.bands); h++ {
		harmonic := float64(h - 2)
		e.bands[h].c = notchCoeffs(sampleRate, e.cfg.HumHz*harmonic, e.cfg.HumQ)
	}
}

// Response returns the cascade's magnitude response in dB at freq.
func (e *Equaliser) Response(freq, sampleRate float64) float64 {
	if sampleRate != e.rate {
		e.design(sampleRate)
	}
	var db float64
	for i := range e.bands {
		db += e.bands[i].Response(freq, sampleRate)
	}
	return db
}

// Reset clears every delay line.
func (e *Equaliser) Reset() {
	for i := range e.bands {
		e.bands[i].Reset()
	}
}
