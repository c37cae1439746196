package logging

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/linuxmatters/clinivox/internal/processor"
	"github.com/linuxmatters/clinivox/internal/speaker"
)

// RecordingTip represents a single piece of actionable recording advice
// derived from session measurements.
type RecordingTip struct {
	Priority int    // Higher = more important (1-10)
	Message  string // Human-readable advice (1-2 sentences)
	RuleID   string // Identifier for testing/logging (e.g., "level_too_quiet")
}

// MaxRecordingTips is the maximum number of tips to return.
const MaxRecordingTips = 5

// TipInput collects the measurements the tip rules inspect.
type TipInput struct {
	Quality    processor.QualityMetrics
	NoiseLevel float64 // learned noise profile level in dBFS, 0 when unknown
	Segments   []speaker.Segment
	HumNotch   bool // a mains hum notch was active
}

// GenerateRecordingTips analyses session measurements and returns
// prioritised suggestions for improving the next recording.
func GenerateRecordingTips(in *TipInput) []RecordingTip {
	if in == nil || in.Quality.Samples == 0 {
		return nil
	}

	var tips []RecordingTip
	firedRules := make(map[string]bool)

	rules := []func(*TipInput) *RecordingTip{
		tipClipping,
		tipLevelTooQuiet,
		tipLevelQuiet,
		tipBackgroundNoise,
		tipTooFarFromMic,
		tipPoorSNR,
		tipLittleSpeech,
		tipDroppedFrames,
		tipUnattributed,
		tipRapidTurns,
	}

	for _, rule := range rules {
		if tip := rule(in); tip != nil {
			tips = append(tips, *tip)
			firedRules[tip.RuleID] = true
		}
	}

	tips = applyExclusions(tips, firedRules)

	sort.SliceStable(tips, func(i, j int) bool {
		return tips[i].Priority > tips[j].Priority
	})

	if len(tips) > MaxRecordingTips {
		tips = tips[:MaxRecordingTips]
	}
	return tips
}

// applyExclusions removes tips that are redundant when a more specific tip
// has already fired. For example, "level_quiet" is suppressed when
// "too_far_from_mic" fires because the latter already implies the former.
func applyExclusions(tips []RecordingTip, fired map[string]bool) []RecordingTip {
	var result []RecordingTip
	for _, tip := range tips {
		switch tip.RuleID {
		case "level_too_quiet", "level_quiet":
			if fired["level_clipping"] || fired["level_near_clipping"] || fired["too_far_from_mic"] {
				continue
			}
		case "poor_snr":
			if fired["too_far_from_mic"] {
				continue
			}
		case "speaker_unattributed":
			if fired["little_speech"] {
				continue
			}
		}
		result = append(result, tip)
	}
	return result
}

// wrapText wraps text at word boundaries to fit within maxWidth columns.
// Continuation lines are prefixed with indent.
func wrapText(text string, maxWidth int, indent string) string {
	words := strings.Fields(text)
	var lines []string
	currentLine := ""

	for _, word := range words {
		if currentLine == "" {
			currentLine = word
		} else if len(currentLine)+1+len(word) <= maxWidth {
			currentLine += " " + word
		} else {
			lines = append(lines, currentLine)
			currentLine = word
		}
	}
	if currentLine != "" {
		lines = append(lines, currentLine)
	}

	return strings.Join(lines, "\n"+indent)
}

// tipClipping fires when samples reach the clip level.
// More than 1% clipped is audible distortion; 0.1% is close to it.
func tipClipping(in *TipInput) *RecordingTip {
	ratio := in.Quality.ClippingRatio
	switch {
	case ratio > 0.01:
		return &RecordingTip{
			Priority: 10,
			RuleID:   "level_clipping",
			Message:  fmt.Sprintf("%.1f%% of the recording is clipped - turn the microphone gain down by 6-10 dB to prevent distortion.", ratio*100),
		}
	case ratio > 0.001:
		return &RecordingTip{
			Priority: 9,
			RuleID:   "level_near_clipping",
			Message:  "The loudest moments are clipping - turn the microphone gain down by 3-6 dB to leave some headroom.",
		}
	}
	return nil
}

// tipLevelTooQuiet fires when the average level is below -42 dBFS.
// Gain target is levelTarget.
func tipLevelTooQuiet(in *TipInput) *RecordingTip {
	level := in.Quality.AverageLevel
	if level >= -42.0 {
		return nil
	}
	return &RecordingTip{
		Priority: 10,
		RuleID:   "level_too_quiet",
		Message:  fmt.Sprintf("The microphone gain is too low - try increasing it by about %.0f dB.", levelTarget-level),
	}
}

// tipLevelQuiet fires when the average level is between -42 and -36 dBFS.
func tipLevelQuiet(in *TipInput) *RecordingTip {
	level := in.Quality.AverageLevel
	if level < -42.0 || level >= -36.0 {
		return nil
	}
	return &RecordingTip{
		Priority: 8,
		RuleID:   "level_quiet",
		Message:  fmt.Sprintf("The recording is a bit quiet - increasing the microphone gain by about %.0f dB would help transcription.", levelTarget-level),
	}
}

// tipBackgroundNoise fires when the learned noise profile is loud.
// A zero level means no noise profile was learned.
func tipBackgroundNoise(in *TipInput) *RecordingTip {
	noise := in.NoiseLevel
	if noise == 0 {
		return nil
	}
	if noise > -45.0 {
		msg := fmt.Sprintf("Background noise is high (%.0f dBFS) - close the door and switch off fans or equipment near the microphone.", noise)
		if in.HumNotch {
			msg = fmt.Sprintf("Background noise is high (%.0f dBFS) even with mains hum removed - move the microphone away from equipment fans and power supplies.", noise)
		}
		return &RecordingTip{Priority: 9, RuleID: "background_noise_high", Message: msg}
	}
	if noise > -55.0 {
		return &RecordingTip{
			Priority: 6,
			RuleID:   "background_noise_moderate",
			Message:  fmt.Sprintf("Background noise is slightly elevated (%.0f dBFS) - if possible, reduce noise from nearby equipment.", noise),
		}
	}
	return nil
}

// tipTooFarFromMic fires when speech is quiet relative to the room.
// Thresholds: SNR < 15 dB and average level < -30 dBFS.
func tipTooFarFromMic(in *TipInput) *RecordingTip {
	q := in.Quality
	if q.SpeechPresence == 0 || q.SNR >= 15.0 || q.AverageLevel >= -30.0 {
		return nil
	}
	return &RecordingTip{
		Priority: 8,
		RuleID:   "too_far_from_mic",
		Message:  "The speakers sound far from the microphone. Place it between clinician and patient, within about an arm's length of both.",
	}
}

// tipPoorSNR fires when speech is barely above the background.
// SNR == 0 means no speech was measured and is skipped.
func tipPoorSNR(in *TipInput) *RecordingTip {
	snr := in.Quality.SNR
	if snr >= 10.0 || snr == 0 {
		return nil
	}
	return &RecordingTip{
		Priority: 7,
		RuleID:   "poor_snr",
		Message:  "The gap between speech and background noise is very small. Move the microphone closer and reduce background noise if possible.",
	}
}

// tipLittleSpeech fires when under 10% of the audio was detected as speech.
func tipLittleSpeech(in *TipInput) *RecordingTip {
	if in.Quality.SpeechPresence >= 0.10 {
		return nil
	}
	return &RecordingTip{
		Priority: 6,
		RuleID:   "little_speech",
		Message:  "Very little speech was detected. Check the right microphone is selected and that it is not muted or covered.",
	}
}

// tipDroppedFrames fires when the capture source discarded audio.
func tipDroppedFrames(in *TipInput) *RecordingTip {
	if in.Quality.DroppedFrames == 0 {
		return nil
	}
	return &RecordingTip{
		Priority: 7,
		RuleID:   "dropped_frames",
		Message:  fmt.Sprintf("%d audio frames were dropped because processing fell behind capture. Close other demanding applications during the visit.", in.Quality.DroppedFrames),
	}
}

// tipUnattributed fires when over a third of speaking time has no role.
func tipUnattributed(in *TipInput) *RecordingTip {
	var total, unknown time.Duration
	for _, seg := range in.Segments {
		total += seg.Duration()
		if seg.Role == speaker.RoleUnknown {
			unknown += seg.Duration()
		}
	}
	if total == 0 || float64(unknown) <= float64(total)/3 {
		return nil
	}
	return &RecordingTip{
		Priority: 5,
		RuleID:   "speaker_unattributed",
		Message:  "Much of the speech could not be attributed to a speaker. Whispered or very breathy speech is hard to attribute - a closer microphone helps.",
	}
}

// tipRapidTurns fires when there are many segments averaging under a second,
// which usually means two voices are too similar at the microphone.
func tipRapidTurns(in *TipInput) *RecordingTip {
	if len(in.Segments) < 10 {
		return nil
	}
	var total time.Duration
	for _, seg := range in.Segments {
		total += seg.Duration()
	}
	if total/time.Duration(len(in.Segments)) >= time.Second {
		return nil
	}
	return &RecordingTip{
		Priority: 4,
		RuleID:   "speaker_rapid_turns",
		Message:  "Speaker attribution switched very often. Position the microphone so each speaker is at a clearly different distance or angle.",
	}
}
