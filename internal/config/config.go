// Package config holds the single configuration value consumed by a pipeline session.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every configuration validation failure.
// A session built from an invalid configuration is never returned.
var ErrInvalid = errors.New("invalid configuration")

// Gate configures the adaptive noise gate.
type Gate struct {
	Threshold    float64 `yaml:"threshold"`     // Open when signal > Threshold × noise floor
	Hysteresis   float64 `yaml:"hysteresis"`    // Close when signal < Hysteresis × Threshold × noise floor
	InitialFloor float64 `yaml:"initial_floor"` // Noise floor estimate before any audio (linear)
	Attenuation  float64 `yaml:"attenuation"`   // Gain applied while closed (soft gating, not a mute)
	FloorRate    float64 `yaml:"floor_rate"`    // Per-sample smoothing for the noise floor
	PowerRate    float64 `yaml:"power_rate"`    // Per-sample smoothing for the signal estimate
}

// VAD configures the voice activity detector.
type VAD struct {
	EnergyThreshold float64 `yaml:"energy_threshold"` // Mean-square energy required for speech
	ZCRMin          float64 `yaml:"zcr_min"`          // Crossings per 10 ms, lower speech bound
	ZCRMax          float64 `yaml:"zcr_max"`          // Crossings per 10 ms, upper speech bound
	CentroidMin     float64 `yaml:"centroid_min"`     // Hz, lower bound on spectral centroid
	CentroidMax     float64 `yaml:"centroid_max"`     // Hz, upper bound on spectral centroid
	Window          int     `yaml:"window"`           // Majority-vote smoothing window (frames)
}

// Spectral configures the spectral noise reducer.
type Spectral struct {
	OverSubtraction float64 `yaml:"over_subtraction"` // Multiplier on the noise profile
	FloorRatio      float64 `yaml:"floor_ratio"`      // Minimum kept fraction of each bin magnitude
	ProfileDecay    float64 `yaml:"profile_decay"`    // Weight kept by the old profile on update
}

// Band is a single peaking EQ band at full voice enhancement.
type Band struct {
	Frequency float64 `yaml:"frequency"` // Hz
	Q         float64 `yaml:"q"`
	GainDB    float64 `yaml:"gain_db"`
}

// Equaliser configures the voice-band parametric equaliser.
type Equaliser struct {
	Fundamental  Band    `yaml:"fundamental"`
	Formant      Band    `yaml:"formant"`
	Clarity      Band    `yaml:"clarity"`
	HumHz        float64 `yaml:"hum_hz"`        // Mains hum fundamental to notch, 0 disables
	HumHarmonics int     `yaml:"hum_harmonics"` // Number of notched harmonics including the fundamental
	HumQ         float64 `yaml:"hum_q"`
}

// Compressor configures the dynamic range compressor.
type Compressor struct {
	Threshold float64 `yaml:"threshold"`  // Linear envelope level where gain reduction starts
	Ratio     float64 `yaml:"ratio"`      // Input:output ratio above threshold
	AttackMs  float64 `yaml:"attack_ms"`  // Envelope rise time constant
	ReleaseMs float64 `yaml:"release_ms"` // Envelope fall time constant
}

// Normaliser configures the peak level normaliser.
type Normaliser struct {
	Ceiling float64 `yaml:"ceiling"` // Target peak (linear)
}

// Speaker configures feature extraction and role attribution.
type Speaker struct {
	Enabled         bool    `yaml:"enabled"`
	MatchThreshold  float64 `yaml:"match_threshold"`   // Minimum similarity to reuse a fingerprint
	SeedConfidence  float64 `yaml:"seed_confidence"`   // Confidence of a freshly seeded fingerprint
	ConfidenceStep  float64 `yaml:"confidence_step"`   // Confidence gained per confirming match
	UpdateWeight    float64 `yaml:"update_weight"`     // Weight of new features when blending
	History         int     `yaml:"history"`           // Finalised segments retained
	PreserveOnReset bool    `yaml:"preserve_on_reset"` // Keep fingerprints across Reset
}

// Quality configures periodic quality reporting.
type Quality struct {
	IntervalSecs float64 `yaml:"interval_secs"` // Audio seconds between published snapshots
}

// Config is the complete set of recognised pipeline options.
// It is supplied at construction or through Session.Reconfigure and is
// never modified by the pipeline itself.
type Config struct {
	NoiseReduction   float64 `yaml:"noise_reduction"`    // 0-1, scales spectral subtraction
	VoiceEnhancement float64 `yaml:"voice_enhancement"`  // 0-1, scales EQ band gains
	TargetSampleRate float64 `yaml:"target_sample_rate"` // Rate delivered to speech recognition (Hz)
	WindowSize       int     `yaml:"window_size"`        // Analysis window and FFT size (power of two)
	Overlap          int     `yaml:"overlap"`            // Analysis window overlap in samples
	PreEmphasis      float64 `yaml:"pre_emphasis"`       // First-order differencing coefficient

	Gate       Gate       `yaml:"gate"`
	VAD        VAD        `yaml:"vad"`
	Spectral   Spectral   `yaml:"spectral"`
	Equaliser  Equaliser  `yaml:"equaliser"`
	Compressor Compressor `yaml:"compressor"`
	Normaliser Normaliser `yaml:"normaliser"`
	Speaker    Speaker    `yaml:"speaker"`
	Quality    Quality    `yaml:"quality"`
}

// Default returns the configuration tuned for close-talk clinical dictation.
func Default() Config {
	return Config{
		NoiseReduction:   1.0,
		VoiceEnhancement: 0.5,
		TargetSampleRate: 16000,
		WindowSize:       1024,
		Overlap:          512,
		PreEmphasis:      0.97,

		Gate: Gate{
			Threshold:    2.5,
			Hysteresis:   0.8,
			InitialFloor: 0.01, // -40 dBFS
			Attenuation:  0.1,  // -20 dB while closed
			FloorRate:    0.001,
			PowerRate:    0.01,
		},

		VAD: VAD{
			EnergyThreshold: 1e-4, // -40 dBFS RMS after pre-emphasis
			ZCRMin:          10,   // 1 kHz crossing density
			ZCRMax:          100,  // 10 kHz crossing density
			CentroidMin:     100,
			CentroidMax:     6000,
			Window:          5,
		},

		Spectral: Spectral{
			OverSubtraction: 2.0,
			FloorRatio:      0.1, // keeps 10% of each bin to avoid musical noise
			ProfileDecay:    0.9,
		},

		Equaliser: Equaliser{
			Fundamental:  Band{Frequency: 150, Q: 0.8, GainDB: 4},
			Formant:      Band{Frequency: 1000, Q: 1.0, GainDB: 3},
			Clarity:      Band{Frequency: 3000, Q: 1.2, GainDB: 5},
			HumHz:        0,
			HumHarmonics: 3,
			HumQ:         30,
		},

		Compressor: Compressor{
			Threshold: 0.5,
			Ratio:     4.0,
			AttackMs:  3,
			ReleaseMs: 100,
		},

		Normaliser: Normaliser{
			Ceiling: 0.9,
		},

		Speaker: Speaker{
			Enabled:         true,
			MatchThreshold:  0.75,
			SeedConfidence:  0.6,
			ConfidenceStep:  0.05,
			UpdateWeight:    0.3,
			History:         256,
			PreserveOnReset: false,
		},

		Quality: Quality{
			IntervalSecs: 2.0,
		},
	}
}

// Load reads a YAML configuration file layered over Default, so a file only
// needs the keys it changes. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports the first option that cannot produce a working pipeline.
func (c *Config) Validate() error {
	switch {
	case !inUnit(c.NoiseReduction):
		return invalid("noise_reduction", "must be within [0,1], got %g", c.NoiseReduction)
	case !inUnit(c.VoiceEnhancement):
		return invalid("voice_enhancement", "must be within [0,1], got %g", c.VoiceEnhancement)
	case !(c.TargetSampleRate > 0):
		return invalid("target_sample_rate", "must be positive, got %g", c.TargetSampleRate)
	case !IsPowerOfTwo(c.WindowSize) || c.WindowSize < 64 || c.WindowSize > 16384:
		return invalid("window_size", "must be a power of two in [64,16384], got %d", c.WindowSize)
	case c.Overlap < 0 || c.Overlap >= c.WindowSize:
		return invalid("overlap", "must be within [0,window_size), got %d", c.Overlap)
	case c.PreEmphasis < 0 || c.PreEmphasis >= 1:
		return invalid("pre_emphasis", "must be within [0,1), got %g", c.PreEmphasis)
	}

	if err := c.Gate.validate(); err != nil {
		return err
	}
	if err := c.VAD.validate(); err != nil {
		return err
	}

	switch {
	case c.Spectral.OverSubtraction < 0:
		return invalid("spectral.over_subtraction", "must not be negative, got %g", c.Spectral.OverSubtraction)
	case !inUnit(c.Spectral.FloorRatio):
		return invalid("spectral.floor_ratio", "must be within [0,1], got %g", c.Spectral.FloorRatio)
	case !inUnit(c.Spectral.ProfileDecay):
		return invalid("spectral.profile_decay", "must be within [0,1], got %g", c.Spectral.ProfileDecay)
	}

	// Checked in band order so the first bad band is always the one named.
	for _, band := range []struct {
		name string
		b    Band
	}{
		{"equaliser.fundamental", c.Equaliser.Fundamental},
		{"equaliser.formant", c.Equaliser.Formant},
		{"equaliser.clarity", c.Equaliser.Clarity},
	} {
		if !(band.b.Frequency > 0) || !(band.b.Q > 0) {
			return invalid(band.name, "frequency and q must be positive")
		}
	}
	if c.Equaliser.HumHz < 0 {
		return invalid("equaliser.hum_hz", "must not be negative, got %g", c.Equaliser.HumHz)
	}
	if c.Equaliser.HumHz > 0 && (c.Equaliser.HumHarmonics < 1 || c.Equaliser.HumHarmonics > 8 || !(c.Equaliser.HumQ > 0)) {
		return invalid("equaliser.hum_harmonics", "need 1-8 harmonics and a positive q")
	}

	switch {
	case !(c.Compressor.Threshold > 0) || c.Compressor.Threshold > 1:
		return invalid("compressor.threshold", "must be within (0,1], got %g", c.Compressor.Threshold)
	case c.Compressor.Ratio < 1:
		return invalid("compressor.ratio", "must be at least 1, got %g", c.Compressor.Ratio)
	case !(c.Compressor.AttackMs > 0) || !(c.Compressor.ReleaseMs > 0):
		return invalid("compressor.attack_ms", "attack and release must be positive")
	case !(c.Normaliser.Ceiling > 0) || c.Normaliser.Ceiling > 1:
		return invalid("normaliser.ceiling", "must be within (0,1], got %g", c.Normaliser.Ceiling)
	}

	s := c.Speaker
	switch {
	case !(s.MatchThreshold > 0) || s.MatchThreshold >= 1:
		return invalid("speaker.match_threshold", "must be within (0,1), got %g", s.MatchThreshold)
	case !inUnit(s.SeedConfidence):
		return invalid("speaker.seed_confidence", "must be within [0,1], got %g", s.SeedConfidence)
	case !inUnit(s.ConfidenceStep):
		return invalid("speaker.confidence_step", "must be within [0,1], got %g", s.ConfidenceStep)
	case !(s.UpdateWeight > 0) || s.UpdateWeight > 1:
		return invalid("speaker.update_weight", "must be within (0,1], got %g", s.UpdateWeight)
	case s.History < 1:
		return invalid("speaker.history", "must be at least 1, got %d", s.History)
	case !(c.Quality.IntervalSecs > 0):
		return invalid("quality.interval_secs", "must be positive, got %g", c.Quality.IntervalSecs)
	}

	return nil
}

func (g Gate) validate() error {
	switch {
	case !(g.Threshold > 1):
		return invalid("gate.threshold", "must be greater than 1, got %g", g.Threshold)
	case !(g.Hysteresis > 0) || g.Hysteresis >= 1:
		// close threshold must sit strictly below the open threshold
		return invalid("gate.hysteresis", "must be within (0,1), got %g", g.Hysteresis)
	case !(g.InitialFloor > 0):
		return invalid("gate.initial_floor", "must be positive, got %g", g.InitialFloor)
	case !inUnit(g.Attenuation):
		return invalid("gate.attenuation", "must be within [0,1], got %g", g.Attenuation)
	case !(g.FloorRate > 0) || g.FloorRate > 1 || !(g.PowerRate > 0) || g.PowerRate > 1:
		return invalid("gate.floor_rate", "smoothing rates must be within (0,1]")
	}
	return nil
}

func (v VAD) validate() error {
	switch {
	case v.EnergyThreshold < 0:
		return invalid("vad.energy_threshold", "must not be negative, got %g", v.EnergyThreshold)
	case v.ZCRMin < 0 || v.ZCRMax <= v.ZCRMin:
		return invalid("vad.zcr_max", "band [%g,%g] is empty", v.ZCRMin, v.ZCRMax)
	case v.CentroidMin < 0 || v.CentroidMax <= v.CentroidMin:
		return invalid("vad.centroid_max", "band [%g,%g] is empty", v.CentroidMin, v.CentroidMax)
	case v.Window < 1 || v.Window > 64:
		return invalid("vad.window", "must be within [1,64], got %d", v.Window)
	}
	return nil
}

// Sanitize replaces NaN and Inf values with defaults and clamps the two
// user-facing levels into [0,1]. Structural fields are left for Validate.
func (c *Config) Sanitize() {
	d := Default()
	c.NoiseReduction = clamp(sanitizeFloat(c.NoiseReduction, d.NoiseReduction), 0, 1)
	c.VoiceEnhancement = clamp(sanitizeFloat(c.VoiceEnhancement, d.VoiceEnhancement), 0, 1)
	c.TargetSampleRate = sanitizeFloat(c.TargetSampleRate, d.TargetSampleRate)
	c.PreEmphasis = sanitizeFloat(c.PreEmphasis, d.PreEmphasis)

	c.Gate.Threshold = sanitizeFloat(c.Gate.Threshold, d.Gate.Threshold)
	c.Gate.Hysteresis = sanitizeFloat(c.Gate.Hysteresis, d.Gate.Hysteresis)
	c.Gate.InitialFloor = sanitizeFloat(c.Gate.InitialFloor, d.Gate.InitialFloor)
	c.Gate.Attenuation = sanitizeFloat(c.Gate.Attenuation, d.Gate.Attenuation)

	c.Compressor.Threshold = sanitizeFloat(c.Compressor.Threshold, d.Compressor.Threshold)
	c.Compressor.Ratio = sanitizeFloat(c.Compressor.Ratio, d.Compressor.Ratio)
	c.Normaliser.Ceiling = sanitizeFloat(c.Normaliser.Ceiling, d.Normaliser.Ceiling)
	c.Speaker.MatchThreshold = sanitizeFloat(c.Speaker.MatchThreshold, d.Speaker.MatchThreshold)
}

// HopSize is the distance between successive analysis windows.
func (c *Config) HopSize() int {
	return c.WindowSize - c.Overlap
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func invalid(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s %s", ErrInvalid, field, fmt.Sprintf(format, args...))
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}

// sanitizeFloat returns defaultVal if val is NaN or Inf
func sanitizeFloat(val, defaultVal float64) float64 {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return defaultVal
	}
	return val
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
