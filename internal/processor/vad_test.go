package processor

import (
	"errors"
	"testing"

	"github.com/linuxmatters/clinivox/internal/config"
)

func newTestVAD(t *testing.T) *VAD {
	t.Helper()
	v, err := NewVAD(config.Default().VAD, 1024)
	if err != nil {
		t.Fatalf("NewVAD() error = %v", err)
	}
	return v
}

func TestVADPureToneOutsideZCRBand(t *testing.T) {
	v := newTestVAD(t)
	tone := sineWave(200, 16000, 16000, 0.5)

	for start := 0; start < len(tone); start += 1024 {
		frame := tone[start:min(start+1024, len(tone))]
		d := v.Detect(frame, 16000)
		if d.Speech {
			t.Fatalf("frame at %d: 200 Hz sine classified as speech (zcr %.1f)", start, d.ZCR)
		}
		if d.Energy < config.Default().VAD.EnergyThreshold {
			t.Fatalf("frame at %d: energy %g too low to exercise the ZCR test", start, d.Energy)
		}
	}
}

func TestVADSpeechLikeSignal(t *testing.T) {
	v := newTestVAD(t)
	pre := NewPreEmphasis(0.97)
	sig := speechLike(48000, 48000)
	pre.Process(sig, sig)

	var last Decision
	for start := 0; start+1024 <= len(sig); start += 1024 {
		last = v.Detect(sig[start:start+1024], 48000)
		if !last.Raw {
			t.Fatalf("frame at %d rejected: energy %g zcr %.1f centroid %.0f", start, last.Energy, last.ZCR, last.Centroid)
		}
	}
	if !last.Speech {
		t.Error("speech-like signal not classified as speech")
	}
	if last.ZCR < 40 || last.ZCR > 60 {
		t.Errorf("ZCR = %.1f, want about 50 per 10 ms", last.ZCR)
	}
	if last.Centroid < 1000 || last.Centroid > 3000 {
		t.Errorf("Centroid = %.0f Hz, want within the mixed tones", last.Centroid)
	}
}

func TestVADRejectsWhiteNoise(t *testing.T) {
	v := newTestVAD(t)
	noise := whiteNoise(48000, 0.02, 12345)

	for start := 0; start+1024 <= len(noise); start += 1024 {
		if d := v.Detect(noise[start:start+1024], 48000); d.Speech {
			t.Fatalf("frame at %d: white noise classified as speech (zcr %.1f)", start, d.ZCR)
		}
	}
}

func TestVADMajoritySmoothing(t *testing.T) {
	speech := speechLike(48000, 1024)
	NewPreEmphasis(0.97).Process(speech, speech)
	silence := make([]float32, 1024)

	tests := []struct {
		name  string
		feed  []bool // true = speech frame
		final bool
	}{
		{"single speech frame", []bool{true}, true},
		{"isolated dropout ignored", []bool{true, true, true, true, true, false, true}, true},
		{"two silent frames still speech", []bool{true, true, true, true, true, false, false}, true},
		{"three silent frames end speech", []bool{true, true, true, true, true, false, false, false}, false},
		{"isolated blip ignored", []bool{false, false, false, false, true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestVAD(t)
			var d Decision
			for _, isSpeech := range tt.feed {
				frame := silence
				if isSpeech {
					frame = speech
				}
				d = v.Detect(frame, 48000)
			}
			if d.Speech != tt.final {
				t.Errorf("final Speech = %v, want %v", d.Speech, tt.final)
			}
		})
	}
}

func TestVADDegenerateInput(t *testing.T) {
	v := newTestVAD(t)
	if d := v.Detect(nil, 16000); d.Speech || d.Energy != 0 {
		t.Errorf("empty frame decision = %+v, want zero", d)
	}
	if d := v.Detect([]float32{0.5}, 0); d.Speech {
		t.Error("zero sample rate classified as speech")
	}
	if d := v.Detect([]float32{0.5}, 16000); d.Speech {
		t.Error("single-sample frame classified as speech")
	}
}

func TestVADReset(t *testing.T) {
	v := newTestVAD(t)
	speech := speechLike(48000, 1024)
	NewPreEmphasis(0.97).Process(speech, speech)
	for range 5 {
		v.Detect(speech, 48000)
	}
	v.Reset()
	if d := v.Detect(make([]float32, 1024), 48000); d.Speech {
		t.Error("history survived Reset")
	}
}

func TestNewVADRejectsFFTSize(t *testing.T) {
	if _, err := NewVAD(config.Default().VAD, 1000); !errors.Is(err, ErrFFTSize) {
		t.Errorf("NewVAD(1000) error = %v, want ErrFFTSize", err)
	}
}
