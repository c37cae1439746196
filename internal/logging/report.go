package logging

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/linuxmatters/clinivox/internal/config"
	"github.com/linuxmatters/clinivox/internal/pipeline"
	"github.com/linuxmatters/clinivox/internal/speaker"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ============================================================================
// Interpretation Functions
// ============================================================================
// These return short human-readable descriptions of session measurements for
// the Interpretation column of report tables.

// interpretSNR describes how well speech stands out from the background.
func interpretSNR(db float64) string {
	switch {
	case db == 0:
		return "no speech measured"
	case db < 10:
		return "speech buried in noise"
	case db < 20:
		return "noticeable background"
	case db < 30:
		return "good separation"
	default:
		return "clean, well separated"
	}
}

// interpretLevel describes the average recording level.
func interpretLevel(db float64) string {
	switch {
	case db <= DigitalSilenceThreshold:
		return "digital silence"
	case db < -42:
		return "very quiet"
	case db < -30:
		return "quiet"
	case db < -12:
		return "healthy"
	default:
		return "hot, little headroom"
	}
}

// interpretPresence describes how much of the recording is speech.
func interpretPresence(ratio float64) string {
	switch {
	case ratio < 0.1:
		return "mostly silence"
	case ratio < 0.4:
		return "sparse conversation"
	case ratio < 0.8:
		return "typical conversation"
	default:
		return "continuous speech"
	}
}

// interpretClipping describes the share of clipped samples.
func interpretClipping(ratio float64) string {
	switch {
	case ratio == 0:
		return "none"
	case ratio <= 0.001:
		return "occasional peaks"
	case ratio <= 0.01:
		return "audible on peaks"
	default:
		return "heavy distortion"
	}
}

// interpretPitch places a mean fundamental in a typical voice range.
func interpretPitch(hz float64) string {
	switch {
	case hz == 0:
		return "unvoiced"
	case hz < 165:
		return "low voice"
	case hz < 255:
		return "mid voice"
	default:
		return "high voice"
	}
}

// =============================================================================
// Report Generation
// =============================================================================

// writeSection writes a section header with title and dashed underline.
// The underline length matches the title length.
func writeSection(w io.Writer, title string) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("-", len(title)))
}

// ReportData contains everything needed to generate a session report.
type ReportData struct {
	InputPath string
	StartTime time.Time
	EndTime   time.Time
	Result    *pipeline.FileResult
	Config    config.Config
}

// ReportPath returns the report file name for an input recording.
// Example: /path/to/visit.wav → /path/to/visit-clinivox.log
func ReportPath(inputPath string) string {
	dir := filepath.Dir(inputPath)
	name := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(dir, name+"-clinivox.log")
}

// GenerateReport writes the session report next to the input file and
// returns its path.
//
// Report structure:
// 1. Header - file info and timestamp
// 2. Processing Summary - timing and frame counts
// 3. Recording Quality - file measurement against interval statistics
// 4. Speakers - talk time and confidence per role
// 5. Speaker Profiles - learned voice fingerprints
// 6. Configuration - active processing settings
// 7. Recording Tips - prioritised advice
func GenerateReport(data ReportData) (string, error) {
	if data.Result == nil {
		return "", fmt.Errorf("no result to report for %s", data.InputPath)
	}
	logPath := ReportPath(data.InputPath)

	f, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to create log file: %w", err)
	}
	defer f.Close()

	if err := WriteReport(f, data); err != nil {
		return "", err
	}
	return logPath, nil
}

// WriteReport renders the session report to w.
func WriteReport(w io.Writer, data ReportData) error {
	r := data.Result
	if r == nil {
		return fmt.Errorf("no result to report for %s", data.InputPath)
	}

	writeReportHeader(w, data)
	writeProcessingSummary(w, data)
	writeQualityTable(w, r)
	writeSpeakerTable(w, r.Segments)
	writeProfileTable(w, r.Fingerprints)
	writeConfiguration(w, data.Config, r)
	writeRecordingTips(w, &TipInput{
		Quality:    r.Quality,
		NoiseLevel: r.NoiseLevel,
		Segments:   r.Segments,
		HumNotch:   data.Config.Equaliser.HumHz > 0,
	})
	return nil
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60

	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}

	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}

// channelName returns a human-readable channel name
func channelName(channels int) string {
	switch channels {
	case 1:
		return "mono"
	case 2:
		return "stereo (downmixed)"
	default:
		return fmt.Sprintf("%d channels (downmixed)", channels)
	}
}

func writeReportHeader(w io.Writer, data ReportData) {
	r := data.Result
	fmt.Fprintln(w, "Clinivox Session Report")
	fmt.Fprintln(w, "=======================")
	fmt.Fprintf(w, "File: %s\n", filepath.Base(data.InputPath))
	fmt.Fprintf(w, "Session: %s\n", r.SessionID)
	fmt.Fprintf(w, "Processed: %s\n", data.EndTime.Format("2006-01-02 15:04:05 MST"))
	if r.Metadata != nil {
		fmt.Fprintf(w, "Duration: %s\n", formatDuration(time.Duration(r.Metadata.Duration*float64(time.Second))))
		fmt.Fprintf(w, "Format: %d Hz, %d-bit, %s\n", r.Metadata.SampleRate, r.Metadata.BitDepth, channelName(r.Metadata.Channels))
	}
	fmt.Fprintln(w, "")
}

func writeProcessingSummary(w io.Writer, data ReportData) {
	r := data.Result
	writeSection(w, "Processing Summary")

	totalTime := data.EndTime.Sub(data.StartTime)
	fmt.Fprintf(w, "Processing time:  %s", formatDuration(totalTime))
	if r.Metadata != nil && r.Metadata.Duration > 0 && totalTime > 0 {
		audioDuration := time.Duration(r.Metadata.Duration * float64(time.Second))
		fmt.Fprintf(w, " (%.0fx real-time)", float64(audioDuration)/float64(totalTime))
	}
	fmt.Fprintln(w, "")

	fmt.Fprintf(w, "Session rate:     %s\n", formatMetricWithUnit(float64(r.ProcessRate), 0, "Hz"))
	fmt.Fprintf(w, "Frames:           %d (%d speech, %s)\n", r.Frames, r.SpeechFrames,
		formatPercent(ratio(r.SpeechFrames, r.Frames), 0))
	fmt.Fprintf(w, "Gate transitions: %d\n", r.GateChanges)
	fmt.Fprintf(w, "Enhanced speech:  %s -> %s\n", formatDuration(time.Duration(r.OutputSecs*float64(time.Second))), filepath.Base(r.OutputPath))
	fmt.Fprintf(w, "Speaker timeline: %s\n", filepath.Base(r.SpeakersPath))
	fmt.Fprintln(w, "")
}

// levelTarget is the average speech level the gain advice aims for.
const levelTarget = -24.0

// writeQualityTable compares the whole-file measurement with the mean and
// worst periodic interval.
func writeQualityTable(w io.Writer, r *pipeline.FileResult) {
	writeSection(w, "Recording Quality")

	q := r.Quality
	n := len(r.Intervals)
	scores := make([]float64, n)
	snrs := make([]float64, n)
	presence := make([]float64, n)
	clipping := make([]float64, n)
	levels := make([]float64, n)
	for i, m := range r.Intervals {
		scores[i] = m.Score()
		snrs[i] = m.SNR
		presence[i] = m.SpeechPresence
		clipping[i] = m.ClippingRatio
		levels[i] = m.AverageLevel
	}

	table := NewMetricTable("File", "Mean", "Worst")
	table.AddRow("Quality Score", []string{
		formatMetric(q.Score(), 2), formatMetric(mean(scores), 2), formatMetric(lowest(scores), 2),
	}, "", string(q.Tier()))
	table.AddRow("Signal-to-Noise", []string{
		formatMetric(q.SNR, 1), formatMetric(mean(snrs), 1), formatMetric(lowest(snrs), 1),
	}, "dB", interpretSNR(q.SNR))
	table.AddRow("Speech Presence", []string{
		formatPercent(q.SpeechPresence, 0), formatPercent(mean(presence), 0), formatPercent(lowest(presence), 0),
	}, "", interpretPresence(q.SpeechPresence))
	table.AddRow("Clipping", []string{
		formatPercent(q.ClippingRatio, 2), formatPercent(mean(clipping), 2), formatPercent(highest(clipping), 2),
	}, "", interpretClipping(q.ClippingRatio))
	table.AddRow("Average Level", []string{
		formatMetricDB(q.AverageLevel, 1), formatMetricDB(mean(levels), 1), formatMetricDB(lowest(levels), 1),
	}, "dBFS", interpretLevel(q.AverageLevel))
	if !isDigitalSilence(q.AverageLevel) {
		table.AddRow("Gain to Target", []string{formatMetricSigned(levelTarget-q.AverageLevel, 1)}, "dB", "")
	}
	if r.NoiseLevel != 0 {
		table.AddRow("Noise Profile", []string{formatMetricDB(r.NoiseLevel, 1)}, "dBFS", "")
	}

	fmt.Fprint(w, table.String())
	fmt.Fprintf(w, "Intervals measured: %d\n", n)
	fmt.Fprintln(w, "")
}

// roleStats aggregates one role's segments.
type roleStats struct {
	role        speaker.Role
	segments    int
	talk        time.Duration
	confidences []float64
	weights     []float64
}

func collectRoleStats(segments []speaker.Segment) ([]roleStats, time.Duration) {
	byRole := make(map[speaker.Role]*roleStats)
	var total time.Duration
	for _, seg := range segments {
		rs, ok := byRole[seg.Role]
		if !ok {
			rs = &roleStats{role: seg.Role}
			byRole[seg.Role] = rs
		}
		rs.segments++
		rs.talk += seg.Duration()
		rs.confidences = append(rs.confidences, seg.Confidence)
		rs.weights = append(rs.weights, float64(max(seg.Frames, 1)))
		total += seg.Duration()
	}

	var out []roleStats
	for _, role := range speaker.Roles() {
		if rs, ok := byRole[role]; ok {
			out = append(out, *rs)
		}
	}
	return out, total
}

func writeSpeakerTable(w io.Writer, segments []speaker.Segment) {
	writeSection(w, "Speakers")
	if len(segments) == 0 {
		fmt.Fprintln(w, "No speech segments attributed")
		fmt.Fprintln(w, "")
		return
	}

	stats, total := collectRoleStats(segments)
	table := NewMetricTable("Segments", "Talk", "Share", "Mean Turn", "Confidence", "Spread")
	table.LabelHeader = "Role"
	for _, rs := range stats {
		spread := math.NaN()
		if len(rs.confidences) > 1 {
			spread = stat.StdDev(rs.confidences, rs.weights)
		}
		table.AddRow(rs.role.Title(), []string{
			fmt.Sprintf("%d", rs.segments),
			formatDuration(rs.talk),
			formatPercent(ratio(int(rs.talk), int(total)), 0),
			formatDuration(rs.talk / time.Duration(rs.segments)),
			formatMetric(stat.Mean(rs.confidences, rs.weights), 2),
			formatMetric(spread, 2),
		}, "", "")
	}
	fmt.Fprint(w, table.String())
	fmt.Fprintf(w, "Turns: %d over %s of attributed speech\n", len(segments), formatDuration(total))
	fmt.Fprintln(w, "")
}

func writeProfileTable(w io.Writer, fingerprints []speaker.Fingerprint) {
	if len(fingerprints) == 0 {
		return
	}
	writeSection(w, "Speaker Profiles")

	table := NewMetricTable("Pitch", "F1", "F2", "F3", "Rate", "Frames", "Confidence")
	table.LabelHeader = "Role"
	for _, fp := range fingerprints {
		feats := fp.Features
		table.AddRow(fp.Role.Title(), []string{
			formatMetric(feats.Pitch, 0),
			formatMetric(feats.Formants[0], 0),
			formatMetric(feats.Formants[1], 0),
			formatMetric(feats.Formants[2], 0),
			formatMetric(feats.SpeakingRate, 1),
			fmt.Sprintf("%d", fp.Count),
			formatMetric(fp.Confidence, 2),
		}, "", interpretPitch(feats.Pitch))
	}
	fmt.Fprint(w, table.String())
	fmt.Fprintln(w, "Pitch and formants in Hz; rate in zero crossings per 10 ms")
	fmt.Fprintln(w, "")
}

func writeConfiguration(w io.Writer, cfg config.Config, r *pipeline.FileResult) {
	writeSection(w, "Configuration")

	fmt.Fprintf(w, "Noise reduction:   %s\n", formatPercent(cfg.NoiseReduction, 0))
	fmt.Fprintf(w, "Voice enhancement: %s\n", formatPercent(cfg.VoiceEnhancement, 0))
	fmt.Fprintf(w, "Target rate:       %s Hz\n", formatMetric(cfg.TargetSampleRate, 0))
	fmt.Fprintf(w, "Analysis window:   %d samples, %d overlap\n", cfg.WindowSize, cfg.Overlap)
	fmt.Fprintf(w, "Gate:              threshold %.1fx floor, hysteresis %.2f\n", cfg.Gate.Threshold, cfg.Gate.Hysteresis)
	fmt.Fprintf(w, "Compressor:        %.0f:1 above %.2f, %s/%s ms\n", cfg.Compressor.Ratio, cfg.Compressor.Threshold,
		formatMetric(cfg.Compressor.AttackMs, 0), formatMetric(cfg.Compressor.ReleaseMs, 0))
	if cfg.Equaliser.HumHz > 0 {
		fmt.Fprintf(w, "Hum notch:         %.0f Hz, %d harmonics\n", cfg.Equaliser.HumHz, cfg.Equaliser.HumHarmonics)
	} else {
		fmt.Fprintln(w, "Hum notch:         off")
	}
	if cfg.Speaker.Enabled {
		fmt.Fprintf(w, "Speaker match:     similarity > %.2f\n", cfg.Speaker.MatchThreshold)
	} else {
		fmt.Fprintln(w, "Speaker match:     off")
	}
	if r.ProcessRate != 0 && r.Metadata != nil && r.ProcessRate != r.Metadata.SampleRate {
		fmt.Fprintf(w, "Input converted:   %d Hz -> %d Hz\n", r.Metadata.SampleRate, r.ProcessRate)
	}
	fmt.Fprintln(w, "")
}

func writeRecordingTips(w io.Writer, in *TipInput) {
	tips := GenerateRecordingTips(in)
	if len(tips) == 0 {
		return
	}
	writeSection(w, "Recording Tips")
	for i, tip := range tips {
		fmt.Fprintf(w, "%d. %s\n", i+1, wrapText(tip.Message, 76, "   "))
	}
	fmt.Fprintln(w, "")
}

// mean returns NaN for an empty slice.
func mean(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return stat.Mean(x, nil)
}

func lowest(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return floats.Min(x)
}

func highest(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return floats.Max(x)
}

func ratio(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}
