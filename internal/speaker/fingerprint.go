package speaker

import (
	"math"

	"github.com/linuxmatters/clinivox/internal/config"
	"gonum.org/v1/gonum/floats"
)

// Similarity weights
const (
	pitchWeight    = 0.3
	formantWeight  = 0.3
	cepstrumWeight = 0.4
)

// Heuristic bands for the fallback classifier
const (
	clinicianMaxPitch = 165.0 // Hz, lower and steadier voices
	clinicianMinRate  = 12.0  // crossings per 10 ms, clear articulation
	clinicianMaxRate  = 60.0
	clinicianMinLevel = 0.02 // RMS, projected speech
)

// Fingerprint is the running voice profile of one role.
type Fingerprint struct {
	Role       Role
	Features   Features
	Count      int     // frames folded into the profile
	Confidence float64 // [0,1]
}

// Attribution is the classifier's verdict for one frame.
type Attribution struct {
	Role       Role
	Confidence float64 // the role fingerprint's confidence after the update
	Score      float64 // best similarity against existing fingerprints
	Matched    bool    // true when an existing fingerprint scored above threshold
}

// Classifier keeps one fingerprint per role and assigns frames to roles.
//
// A frame scoring above the match threshold against a fingerprint is
// assigned that role and confirms it. Otherwise a pitch, rate and level
// heuristic picks a role and seeds its fingerprint; a heuristic hit on an
// existing fingerprint reinforces the profile without raising confidence.
type Classifier struct {
	cfg   config.Speaker
	table [numRoles]Fingerprint
	known [numRoles]bool
}

// NewClassifier creates a classifier with no fingerprints.
func NewClassifier(cfg config.Speaker) *Classifier {
	c := &Classifier{cfg: cfg}
	for i := range c.table {
		c.table[i].Role = Role(i)
	}
	return c
}

// Classify attributes f to a role and updates that role's fingerprint.
func (c *Classifier) Classify(f Features) Attribution {
	best, bestScore := RoleUnknown, -1.0
	for i := range c.table {
		if !c.known[i] {
			continue
		}
		if s := Similarity(f, c.table[i].Features); s > bestScore {
			best, bestScore = Role(i), s
		}
	}

	if bestScore > c.cfg.MatchThreshold {
		fp := &c.table[best]
		fp.Features = blend(fp.Features, f, c.cfg.UpdateWeight)
		fp.Count++
		fp.Confidence = clampUnit(fp.Confidence + c.cfg.ConfidenceStep)
		return Attribution{Role: best, Confidence: fp.Confidence, Score: bestScore, Matched: true}
	}

	role := Heuristic(f)
	fp := &c.table[role]
	if c.known[role] {
		fp.Features = blend(fp.Features, f, c.cfg.UpdateWeight)
		fp.Count++
	} else {
		c.known[role] = true
		fp.Features = f
		fp.Count = 1
		fp.Confidence = clampUnit(c.cfg.SeedConfidence)
	}
	return Attribution{Role: role, Confidence: fp.Confidence, Score: max(bestScore, 0)}
}

// Configure replaces the matching and update parameters, keeping learned
// fingerprints.
func (c *Classifier) Configure(cfg config.Speaker) {
	c.cfg = cfg
}

// Fingerprint returns a copy of the role's fingerprint and whether it exists.
func (c *Classifier) Fingerprint(r Role) (Fingerprint, bool) {
	if r < 0 || r >= numRoles || !c.known[r] {
		return Fingerprint{}, false
	}
	return c.table[r], true
}

// Fingerprints returns copies of every learned fingerprint in role order.
func (c *Classifier) Fingerprints() []Fingerprint {
	out := make([]Fingerprint, 0, numRoles)
	for i := range c.table {
		if c.known[i] {
			out = append(out, c.table[i])
		}
	}
	return out
}

// Reset forgets every fingerprint.
func (c *Classifier) Reset() {
	for i := range c.table {
		c.table[i] = Fingerprint{Role: Role(i)}
		c.known[i] = false
	}
}

// Heuristic assigns a role from pitch, speaking rate and level alone.
func Heuristic(f Features) Role {
	switch {
	case !f.Voiced():
		return RoleUnknown
	case f.Pitch < clinicianMaxPitch &&
		f.SpeakingRate >= clinicianMinRate && f.SpeakingRate <= clinicianMaxRate &&
		f.Energy >= clinicianMinLevel:
		return RoleClinician
	default:
		return RolePatient
	}
}

// Similarity scores two feature sets in [0,1]: 30% pitch closeness, 30%
// formant closeness and 40% cepstral cosine similarity.
func Similarity(a, b Features) float64 {
	var pitch float64
	switch {
	case !a.Voiced() && !b.Voiced():
		pitch = 1
	case a.Voiced() && b.Voiced():
		pitch = closeness(a.Pitch, b.Pitch)
	}

	var formant float64
	for i := range NumFormants {
		formant += closeness(a.Formants[i], b.Formants[i])
	}
	formant /= NumFormants

	return clampUnit(pitchWeight*pitch + formantWeight*formant + cepstrumWeight*cosine(a.Cepstrum[:], b.Cepstrum[:]))
}

// closeness is 1 - |a-b| / max(a,b) for non-negative values.
func closeness(a, b float64) float64 {
	hi := max(a, b)
	if hi <= 0 {
		return 1
	}
	return clampUnit(1 - math.Abs(a-b)/hi)
}

// cosine returns the cosine similarity clamped to [0,1]; zero vectors score 0.
func cosine(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return clampUnit(floats.Dot(a, b) / (na * nb))
}

// blend moves old towards f by weight w.
func blend(old, f Features, w float64) Features {
	mix := func(o, n float64) float64 { return (1-w)*o + w*n }

	out := old
	switch {
	case old.Voiced() && f.Voiced():
		out.Pitch = mix(old.Pitch, f.Pitch)
	case !old.Voiced():
		out.Pitch = f.Pitch
	}
	for i := range NumFormants {
		out.Formants[i] = mix(old.Formants[i], f.Formants[i])
	}
	for i := range NumCepstra {
		out.Cepstrum[i] = mix(old.Cepstrum[i], f.Cepstrum[i])
	}
	out.SpeakingRate = mix(old.SpeakingRate, f.SpeakingRate)
	out.Energy = mix(old.Energy, f.Energy)
	out.Centroid = mix(old.Centroid, f.Centroid)
	return out
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return min(v, 1)
}
