package processor

import (
	"math"

	"github.com/linuxmatters/clinivox/internal/config"
)

// minNoiseFloor keeps the floor estimate above -120 dBFS so the open
// threshold never collapses to zero.
const minNoiseFloor = 1e-6

// floorTrackingRatio limits noise floor tracking to signal estimates near
// the floor.
const floorTrackingRatio = 1.5

// floorRiseScale slows floor tracking above the band to a drift, relative
// to FloorRate. At the default rate the drift takes about 20 s at 48 kHz to
// follow a raised noise level, so speech bursts barely move it.
const floorRiseScale = 0.001

// GateState is the adaptive gate's per-sample estimate of where the noise
// floor sits and how loud the current signal is.
type GateState struct {
	NoiseFloor  float64 // linear magnitude
	SignalPower float64 // smoothed linear magnitude
	Open        bool
}

// Gate is a soft noise gate whose thresholds follow an adaptive noise floor.
//
// The gate opens when the signal estimate rises above Threshold × floor and
// closes only once it falls below Hysteresis × Threshold × floor, so a
// signal hovering at the open threshold cannot chatter. Closed samples are
// attenuated rather than muted.
type Gate struct {
	cfg         config.Gate
	closeRatio  float64
	attenuation float32
	state       GateState
	transitions int
}

// NewGate creates a closed gate with the configured initial floor.
func NewGate(cfg config.Gate) *Gate {
	g := &Gate{
		cfg:         cfg,
		closeRatio:  cfg.Hysteresis * cfg.Threshold,
		attenuation: float32(clamp(cfg.Attenuation, 0, 1)),
	}
	g.Reset()
	return g
}

// Process gates buf in place.
func (g *Gate) Process(buf []float32) {
	st := &g.state
	for i, s := range buf {
		mag := math.Abs(float64(s))
		st.SignalPower += g.cfg.PowerRate * (mag - st.SignalPower)

		// The floor follows the smoothed estimate, not single samples: on
		// steady noise the estimate sits at the noise's mean magnitude and
		// the floor settles there.
		rate := g.cfg.FloorRate
		if st.SignalPower >= floorTrackingRatio*st.NoiseFloor {
			rate *= floorRiseScale
		}
		st.NoiseFloor += rate * (st.SignalPower - st.NoiseFloor)
		if st.NoiseFloor < minNoiseFloor {
			st.NoiseFloor = minNoiseFloor
		}

		switch {
		case !st.Open && st.SignalPower > g.cfg.Threshold*st.NoiseFloor:
			st.Open = true
			g.transitions++
		case st.Open && st.SignalPower < g.closeRatio*st.NoiseFloor:
			st.Open = false
			g.transitions++
		}

		if !st.Open {
			buf[i] = s * g.attenuation
		}
	}
}

// State returns a copy of the current gate estimate.
func (g *Gate) State() GateState {
	return g.state
}

// Transitions returns how many times the gate has opened or closed.
func (g *Gate) Transitions() int {
	return g.transitions
}

// Reset returns the gate to its initial closed state.
func (g *Gate) Reset() {
	g.state = GateState{
		NoiseFloor: max(g.cfg.InitialFloor, minNoiseFloor),
	}
	g.transitions = 0
}
