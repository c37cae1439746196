package processor

import (
	"math"

	"github.com/linuxmatters/clinivox/internal/config"
)

// Compressor is a feed-forward peak compressor driven by an envelope follower.
// Above the threshold the gain is (threshold + (env-threshold)/ratio) / env,
// which never exceeds 1 and never drops below 1/ratio; below it the gain is 1.
type Compressor struct {
	cfg      config.Compressor
	rate     float64
	attack   float64
	release  float64
	envelope float64
}

// NewCompressor creates a compressor with a zero envelope.
func NewCompressor(cfg config.Compressor) *Compressor {
	return &Compressor{cfg: cfg}
}

// Process compresses buf in place.
func (c *Compressor) Process(buf []float32, sampleRate float64) {
	if sampleRate <= 0 {
		return
	}
	if sampleRate != c.rate {
		c.rate = sampleRate
		c.attack = timeConstant(c.cfg.AttackMs, sampleRate)
		c.release = timeConstant(c.cfg.ReleaseMs, sampleRate)
	}

	env := c.envelope
	for i, s := range buf {
		mag := math.Abs(float64(s))
		coef := c.release
		if mag > env {
			coef = c.attack
		}
		env = coef*env + (1-coef)*mag
		buf[i] = float32(float64(s) * c.Gain(env))
	}
	c.envelope = env
}

// Gain returns the multiplier applied at envelope level env.
func (c *Compressor) Gain(env float64) float64 {
	thr := c.cfg.Threshold
	if env <= thr || env <= 0 {
		return 1
	}
	return (thr + (env-thr)/c.cfg.Ratio) / env
}

// Envelope returns the current follower level.
func (c *Compressor) Envelope() float64 {
	return c.envelope
}

// Reset zeroes the envelope.
func (c *Compressor) Reset() {
	c.envelope = 0
}

// timeConstant converts milliseconds into a one-pole smoothing coefficient.
func timeConstant(ms, sampleRate float64) float64 {
	if ms <= 0 {
		return 0
	}
	return math.Exp(-1 / (ms / 1000 * sampleRate))
}
