package logging

import (
	"strings"
	"testing"
	"time"

	"github.com/linuxmatters/clinivox/internal/processor"
	"github.com/linuxmatters/clinivox/internal/speaker"
)

// cleanQuality is a healthy recording that triggers no tips on its own.
func cleanQuality() processor.QualityMetrics {
	return processor.QualityMetrics{
		SNR:            30,
		SpeechPresence: 0.6,
		AverageLevel:   -24,
		Samples:        48000 * 60,
	}
}

func turns(role speaker.Role, n int, each time.Duration) []speaker.Segment {
	segs := make([]speaker.Segment, n)
	for i := range segs {
		start := time.Duration(i) * each
		segs[i] = speaker.Segment{Role: role, Start: start, End: start + each, Confidence: 0.8, Frames: 10}
	}
	return segs
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxWidth int
		indent   string
		want     string
	}{
		{
			name:     "short_text_no_wrap",
			text:     "Hello world",
			maxWidth: 20,
			indent:   "  ",
			want:     "Hello world",
		},
		{
			name:     "long_text_wraps",
			text:     "Try moving closer to your microphone for better results",
			maxWidth: 30,
			indent:   "  ",
			want:     "Try moving closer to your\n  microphone for better results",
		},
		{
			name:     "single_long_word",
			text:     "supercalifragilisticexpialidocious",
			maxWidth: 10,
			indent:   "  ",
			want:     "supercalifragilisticexpialidocious",
		},
		{
			name:     "empty_input",
			text:     "",
			maxWidth: 20,
			indent:   "  ",
			want:     "",
		},
		{
			name:     "multiple_wraps",
			text:     "one two three four five six seven eight nine ten",
			maxWidth: 15,
			indent:   "    ",
			want:     "one two three\n    four five six\n    seven eight\n    nine ten",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapText(tt.text, tt.maxWidth, tt.indent)
			if got != tt.want {
				t.Errorf("wrapText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTipLevel(t *testing.T) {
	tests := []struct {
		name       string
		level      float64
		wantRuleID string // empty for no tip
		wantGain   string
	}{
		{"very quiet -45 dBFS", -45, "level_too_quiet", "21 dB"},
		{"boundary -42 dBFS is quiet", -42, "level_quiet", "18 dB"},
		{"quiet -40 dBFS", -40, "level_quiet", "16 dB"},
		{"boundary -36 dBFS no tip", -36, "", ""},
		{"healthy -24 dBFS", -24, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &TipInput{Quality: cleanQuality()}
			in.Quality.AverageLevel = tt.level

			var tip *RecordingTip
			if tip = tipLevelTooQuiet(in); tip == nil {
				tip = tipLevelQuiet(in)
			}
			if tt.wantRuleID == "" {
				if tip != nil {
					t.Errorf("unexpected tip %q", tip.RuleID)
				}
				return
			}
			if tip == nil {
				t.Fatalf("no tip, want %q", tt.wantRuleID)
			}
			if tip.RuleID != tt.wantRuleID {
				t.Errorf("RuleID = %q, want %q", tip.RuleID, tt.wantRuleID)
			}
			if !strings.Contains(tip.Message, tt.wantGain) {
				t.Errorf("Message %q should contain %q", tip.Message, tt.wantGain)
			}
		})
	}
}

func TestTipClipping(t *testing.T) {
	tests := []struct {
		ratio      float64
		wantRuleID string
	}{
		{0, ""},
		{0.001, ""},
		{0.005, "level_near_clipping"},
		{0.02, "level_clipping"},
	}
	for _, tt := range tests {
		in := &TipInput{Quality: cleanQuality()}
		in.Quality.ClippingRatio = tt.ratio
		tip := tipClipping(in)
		got := ""
		if tip != nil {
			got = tip.RuleID
		}
		if got != tt.wantRuleID {
			t.Errorf("tipClipping(%g) = %q, want %q", tt.ratio, got, tt.wantRuleID)
		}
	}
}

func TestTipBackgroundNoise(t *testing.T) {
	tests := []struct {
		name       string
		noise      float64
		hum        bool
		wantRuleID string
		wantText   string
	}{
		{"no profile", 0, false, "", ""},
		{"quiet room", -70, false, "", ""},
		{"moderate", -50, false, "background_noise_moderate", "slightly elevated"},
		{"loud", -40, false, "background_noise_high", "close the door"},
		{"loud with hum notch", -40, true, "background_noise_high", "mains hum removed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tip := tipBackgroundNoise(&TipInput{Quality: cleanQuality(), NoiseLevel: tt.noise, HumNotch: tt.hum})
			if tt.wantRuleID == "" {
				if tip != nil {
					t.Errorf("unexpected tip %q", tip.RuleID)
				}
				return
			}
			if tip == nil || tip.RuleID != tt.wantRuleID {
				t.Fatalf("tip = %+v, want %q", tip, tt.wantRuleID)
			}
			if !strings.Contains(tip.Message, tt.wantText) {
				t.Errorf("Message %q should contain %q", tip.Message, tt.wantText)
			}
		})
	}
}

func TestTipTooFarFromMic(t *testing.T) {
	tests := []struct {
		name     string
		snr      float64
		level    float64
		presence float64
		want     bool
	}{
		{"far and quiet", 12, -35, 0.5, true},
		{"good snr", 20, -35, 0.5, false},
		{"loud enough", 12, -28, 0.5, false},
		{"no speech", 12, -35, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &TipInput{Quality: processor.QualityMetrics{
				SNR: tt.snr, AverageLevel: tt.level, SpeechPresence: tt.presence, Samples: 1,
			}}
			if got := tipTooFarFromMic(in) != nil; got != tt.want {
				t.Errorf("tipTooFarFromMic() fired = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTipPoorSNR(t *testing.T) {
	for _, tt := range []struct {
		snr  float64
		want bool
	}{{0, false}, {5, true}, {9.9, true}, {10, false}} {
		in := &TipInput{Quality: cleanQuality()}
		in.Quality.SNR = tt.snr
		if got := tipPoorSNR(in) != nil; got != tt.want {
			t.Errorf("tipPoorSNR(%g) fired = %v, want %v", tt.snr, got, tt.want)
		}
	}
}

func TestTipSpeakerAttribution(t *testing.T) {
	t.Run("mostly unknown", func(t *testing.T) {
		segs := append(turns(speaker.RoleUnknown, 2, 5*time.Second), turns(speaker.RoleClinician, 1, 5*time.Second)...)
		if tip := tipUnattributed(&TipInput{Segments: segs}); tip == nil {
			t.Error("tipUnattributed() did not fire with 2/3 unknown talk time")
		}
	})
	t.Run("a third unknown", func(t *testing.T) {
		segs := append(turns(speaker.RoleUnknown, 1, 5*time.Second), turns(speaker.RolePatient, 2, 5*time.Second)...)
		if tip := tipUnattributed(&TipInput{Segments: segs}); tip != nil {
			t.Error("tipUnattributed() fired at exactly one third")
		}
	})
	t.Run("rapid turns", func(t *testing.T) {
		if tip := tipRapidTurns(&TipInput{Segments: turns(speaker.RolePatient, 12, 500*time.Millisecond)}); tip == nil {
			t.Error("tipRapidTurns() did not fire for 12 half-second turns")
		}
		if tip := tipRapidTurns(&TipInput{Segments: turns(speaker.RolePatient, 9, 500*time.Millisecond)}); tip != nil {
			t.Error("tipRapidTurns() fired for fewer than 10 segments")
		}
		if tip := tipRapidTurns(&TipInput{Segments: turns(speaker.RolePatient, 12, 2*time.Second)}); tip != nil {
			t.Error("tipRapidTurns() fired for long turns")
		}
	})
}

// hasRuleID checks whether any tip in the slice has the given RuleID.
func hasRuleID(tips []RecordingTip, ruleID string) bool {
	for _, tip := range tips {
		if tip.RuleID == ruleID {
			return true
		}
	}
	return false
}

// ruleIDs extracts RuleIDs from tips for error messages.
func ruleIDs(tips []RecordingTip) []string {
	ids := make([]string, len(tips))
	for i, tip := range tips {
		ids[i] = tip.RuleID
	}
	return ids
}

func TestGenerateRecordingTips(t *testing.T) {
	tests := []struct {
		name             string
		input            *TipInput
		wantRuleIDs      []string // these RuleIDs must be present
		excludeRuleIDs   []string // these RuleIDs must NOT be present
		checkFirstRuleID string   // if set, first tip must have this RuleID
		wantExact        int      // if > 0, verify len(tips) == this
		wantEmpty        bool     // if true, verify tips is nil or empty
	}{
		{
			name: "too far suppresses level_quiet and poor_snr",
			input: &TipInput{Quality: processor.QualityMetrics{
				SNR: 8, AverageLevel: -40, SpeechPresence: 0.5, Samples: 1,
			}},
			wantRuleIDs:    []string{"too_far_from_mic"},
			excludeRuleIDs: []string{"level_quiet", "poor_snr"},
		},
		{
			name: "clipping suppresses level advice",
			input: &TipInput{Quality: processor.QualityMetrics{
				SNR: 30, AverageLevel: -45, SpeechPresence: 0.5, ClippingRatio: 0.02, Samples: 1,
			}},
			wantRuleIDs:      []string{"level_clipping"},
			excludeRuleIDs:   []string{"level_too_quiet"},
			checkFirstRuleID: "level_clipping",
		},
		{
			name: "little speech suppresses attribution advice",
			input: &TipInput{
				Quality:  processor.QualityMetrics{SNR: 30, AverageLevel: -24, SpeechPresence: 0.05, Samples: 1},
				Segments: turns(speaker.RoleUnknown, 2, time.Second),
			},
			wantRuleIDs:    []string{"little_speech"},
			excludeRuleIDs: []string{"speaker_unattributed"},
		},
		{
			name: "clean recording no tips",
			input: &TipInput{
				Quality:    cleanQuality(),
				NoiseLevel: -70,
				Segments:   append(turns(speaker.RoleClinician, 2, 5*time.Second), turns(speaker.RolePatient, 2, 5*time.Second)...),
			},
			wantEmpty: true,
		},
		{
			name: "no samples no tips",
			input: &TipInput{
				Quality: processor.QualityMetrics{AverageLevel: -80},
			},
			wantEmpty: true,
		},
		{
			name: "all bad recording returns exactly 5",
			input: &TipInput{
				Quality: processor.QualityMetrics{
					SNR:            5,
					AverageLevel:   -45,
					SpeechPresence: 0.05,
					ClippingRatio:  0.02,
					DroppedFrames:  3,
					Samples:        1,
				},
				NoiseLevel: -40,
				Segments:   turns(speaker.RoleUnknown, 12, 500*time.Millisecond),
			},
			checkFirstRuleID: "level_clipping",
			wantExact:        5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tips := GenerateRecordingTips(tt.input)

			if tt.wantEmpty {
				if len(tips) != 0 {
					t.Errorf("expected no tips, got %d: %v", len(tips), ruleIDs(tips))
				}
				return
			}

			for _, wantID := range tt.wantRuleIDs {
				if !hasRuleID(tips, wantID) {
					t.Errorf("expected RuleID %q in tips, got %v", wantID, ruleIDs(tips))
				}
			}

			for _, excludeID := range tt.excludeRuleIDs {
				if hasRuleID(tips, excludeID) {
					t.Errorf("RuleID %q should be excluded, got %v", excludeID, ruleIDs(tips))
				}
			}

			if tt.checkFirstRuleID != "" && len(tips) > 0 {
				if tips[0].RuleID != tt.checkFirstRuleID {
					t.Errorf("first tip RuleID = %q, want %q (tips: %v)", tips[0].RuleID, tt.checkFirstRuleID, ruleIDs(tips))
				}
			}

			if tt.wantExact > 0 && len(tips) != tt.wantExact {
				t.Errorf("got %d tips, want exactly %d: %v", len(tips), tt.wantExact, ruleIDs(tips))
			}

			for i := 1; i < len(tips); i++ {
				if tips[i].Priority > tips[i-1].Priority {
					t.Errorf("tips not ordered by priority: %v", ruleIDs(tips))
				}
			}
		})
	}
}

func TestGenerateRecordingTipsNil(t *testing.T) {
	if tips := GenerateRecordingTips(nil); tips != nil {
		t.Errorf("GenerateRecordingTips(nil) = %v", tips)
	}
}
