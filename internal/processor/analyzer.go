package processor

import (
	"math"

	"github.com/linuxmatters/clinivox/internal/config"
)

// =============================================================================
// Quality scoring constants
// =============================================================================

const (
	// SNRCeiling is reported when no noise power has been measured.
	SNRCeiling = 60.0

	snrFullScore   = 40.0  // dB SNR that earns the full SNR share
	levelFloorDB   = -45.0 // average level scoring zero
	levelTargetDB  = -20.0 // average level scoring one
	clippingWeight = 10.0  // 10% clipped samples zeroes the clipping share
)

// QualityTier is a human-readable band of the quality score.
type QualityTier string

const (
	TierExcellent QualityTier = "Excellent"
	TierGood      QualityTier = "Good"
	TierFair      QualityTier = "Fair"
	TierPoor      QualityTier = "Poor"
	TierVeryPoor  QualityTier = "Very Poor"
)

// QualityMetrics summarises a stretch of input audio. Values are fixed at
// construction.
type QualityMetrics struct {
	SNR            float64 // dB, speech power over non-speech power
	SpeechPresence float64 // fraction of samples in speech frames
	ClippingRatio  float64 // fraction of samples at or above ClipLevel
	AverageLevel   float64 // RMS level in dBFS
	DroppedFrames  uint64  // frames discarded by the frame source
	Samples        int     // samples measured
}

// Score combines SNR, level and clipping into a value in [0,1].
func (m QualityMetrics) Score() float64 {
	snr := clamp(m.SNR/snrFullScore, 0, 1)
	level := clamp((m.AverageLevel-levelFloorDB)/(levelTargetDB-levelFloorDB), 0, 1)
	clip := 1 - clamp(clippingWeight*m.ClippingRatio, 0, 1)
	return 0.5*snr + 0.3*level + 0.2*clip
}

// Tier maps Score onto the fixed 0.8/0.6/0.4/0.2 cutoffs.
func (m QualityMetrics) Tier() QualityTier {
	return TierFor(m.Score())
}

// TierFor maps a quality score to its tier.
func TierFor(score float64) QualityTier {
	switch {
	case score >= 0.8:
		return TierExcellent
	case score >= 0.6:
		return TierGood
	case score >= 0.4:
		return TierFair
	case score >= 0.2:
		return TierPoor
	default:
		return TierVeryPoor
	}
}

// QualityMeter accumulates frame statistics between snapshots.
type QualityMeter struct {
	speechEnergy  float64
	noiseEnergy   float64
	speechSamples int
	noiseSamples  int
	clipped       int
}

// Add accounts one frame with its VAD verdict.
func (q *QualityMeter) Add(samples []float32, speech bool) {
	var energy float64
	for _, s := range samples {
		v := float64(s)
		energy += v * v
		if math.Abs(v) >= ClipLevel {
			q.clipped++
		}
	}
	if speech {
		q.speechEnergy += energy
		q.speechSamples += len(samples)
	} else {
		q.noiseEnergy += energy
		q.noiseSamples += len(samples)
	}
}

// Samples returns the number of samples accounted since the last reset.
func (q *QualityMeter) Samples() int {
	return q.speechSamples + q.noiseSamples
}

// Metrics builds an immutable summary of everything added so far.
func (q *QualityMeter) Metrics(dropped uint64) QualityMetrics {
	total := q.Samples()
	m := QualityMetrics{
		DroppedFrames: dropped,
		Samples:       total,
		AverageLevel:  DigitalSilenceFloor,
	}
	if total == 0 {
		return m
	}

	m.SpeechPresence = float64(q.speechSamples) / float64(total)
	m.ClippingRatio = float64(q.clipped) / float64(total)
	m.AverageLevel = LinearToDb(math.Sqrt((q.speechEnergy + q.noiseEnergy) / float64(total)))
	m.SNR = snr(q.speechEnergy, q.speechSamples, q.noiseEnergy, q.noiseSamples)
	return m
}

// Reset clears the accumulators.
func (q *QualityMeter) Reset() {
	*q = QualityMeter{}
}

func snr(speechEnergy float64, speechN int, noiseEnergy float64, noiseN int) float64 {
	if speechN == 0 || speechEnergy == 0 {
		return 0
	}
	speech := speechEnergy / float64(speechN)
	if noiseN == 0 || noiseEnergy == 0 {
		return SNRCeiling
	}
	noise := noiseEnergy / float64(noiseN)
	return clamp(10*math.Log10(speech/noise), -SNRCeiling, SNRCeiling)
}

// MeasureWindow computes quality metrics for an arbitrary window of audio,
// classifying it in WindowSize chunks through a fresh pre-emphasis, gate and
// VAD chain built from cfg.
func MeasureWindow(samples []float32, sampleRate float64, cfg config.Config) (QualityMetrics, error) {
	vad, err := NewVAD(cfg.VAD, cfg.WindowSize)
	if err != nil {
		return QualityMetrics{}, err
	}
	if sampleRate <= 0 {
		return QualityMetrics{AverageLevel: DigitalSilenceFloor}, nil
	}
	pre := NewPreEmphasis(cfg.PreEmphasis)
	gate := NewGate(cfg.Gate)

	var meter QualityMeter
	scratch := make([]float32, cfg.WindowSize)
	for start := 0; start < len(samples); start += cfg.WindowSize {
		chunk := samples[start:min(start+cfg.WindowSize, len(samples))]
		work := pre.Process(scratch, chunk)
		gate.Process(work)
		meter.Add(chunk, vad.Detect(work, sampleRate).Speech)
	}
	return meter.Metrics(0), nil
}
