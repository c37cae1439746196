package pipeline

import (
	"math"
	"testing"

	"github.com/linuxmatters/clinivox/internal/audio"
	"github.com/linuxmatters/clinivox/internal/config"
)

const (
	captureRate = 48000.0
	frameSize   = 1024
	// twoSeconds is just over 2 s, rounded up to whole frames
	twoSeconds = 94 * frameSize
)

// speechLike mixes voice-band tones on a 100 Hz fundamental with a combined
// peak of 0.3.
func speechLike(sampleRate float64, n int) []float32 {
	tones := []struct{ freq, amp float64 }{
		{300, 0.06},
		{800, 0.07},
		{1500, 0.08},
		{2500, 0.09},
	}
	out := make([]float32, n)
	for i := range out {
		t := float64(i) / sampleRate
		var v float64
		for _, tone := range tones {
			v += tone.amp * math.Sin(2*math.Pi*tone.freq*t)
		}
		out[i] = float32(v)
	}
	return out
}

// whiteNoise generates deterministic uniform noise in [-amp, amp].
func whiteNoise(n int, amp float64, seed uint32) []float32 {
	rngState := seed
	out := make([]float32, n)
	for i := range out {
		rngState = rngState*1664525 + 1013904223
		out[i] = float32(amp * (2*float64(rngState)/4294967296.0 - 1))
	}
	return out
}

func newTestSession(t *testing.T, cfg config.Config, opts ...Option) *Session {
	t.Helper()
	s, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

// feed processes samples in capture-sized frames and collects the results.
// Enhanced audio is copied since results alias session buffers.
func feed(s *Session, samples []float32) (results []Result, enhanced []float32) {
	for _, f := range audio.Frames(samples, captureRate, frameSize) {
		res := s.Process(f)
		enhanced = append(enhanced, res.Enhanced...)
		res.Enhanced = nil
		results = append(results, res)
	}
	return results, enhanced
}

func openedSegments(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Segment != nil {
			n++
		}
	}
	return n
}
