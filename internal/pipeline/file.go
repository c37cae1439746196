package pipeline

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/linuxmatters/clinivox/internal/audio"
	"github.com/linuxmatters/clinivox/internal/config"
	"github.com/linuxmatters/clinivox/internal/processor"
	"github.com/linuxmatters/clinivox/internal/speaker"
	"gopkg.in/yaml.v3"
)

// progressInterval is the number of frames between progress callbacks.
const progressInterval = 16

// FileOptions control offline processing of a recording.
type FileOptions struct {
	FrameSize   int // samples per frame; 0 uses the analysis window size
	CaptureRate int // resample the file to this rate first; 0 keeps its rate
	Session     []Option
	Progress    func(Progress)
}

// Progress reports how far a file has been processed.
type Progress struct {
	Fraction float64 // 0-1
	Level    float64 // dBFS of the latest frame
	Speech   bool
	Role     speaker.Role
	Tier     processor.QualityTier
	Segments int
}

// FileResult summarises one processed recording.
type FileResult struct {
	SessionID    string
	InputPath    string
	OutputPath   string // enhanced speech at the target rate
	SpeakersPath string // segment and profile export

	Metadata     *audio.Metadata
	ProcessRate  int // rate the session ran at
	Frames       int
	SpeechFrames int
	OutputSecs   float64
	NoiseLevel   float64 // learned noise profile in dBFS, 0 when none was learned
	GateChanges  int     // gate open/close transitions

	Quality      processor.QualityMetrics   // whole-file measurement
	Intervals    []processor.QualityMetrics // periodic snapshots
	Segments     []speaker.Segment
	Fingerprints []speaker.Fingerprint
}

// ProcessFile runs a WAV recording through a fresh session. The enhanced
// speech is written next to the input as <name>-enhanced.wav and the speaker
// timeline as <name>-speakers.yaml.
func ProcessFile(inputPath string, cfg config.Config, opts FileOptions) (*FileResult, error) {
	samples, meta, err := audio.ReadWAV(inputPath)
	if err != nil {
		return nil, err
	}

	rate := meta.SampleRate
	if opts.CaptureRate > 0 && opts.CaptureRate != rate {
		samples, err = audio.ConvertRate(samples, rate, opts.CaptureRate)
		if err != nil {
			return nil, fmt.Errorf("failed to convert %s to %d Hz: %w", inputPath, opts.CaptureRate, err)
		}
		rate = opts.CaptureRate
	}

	s, err := New(cfg, opts.Session...)
	if err != nil {
		return nil, err
	}

	frameSize := opts.FrameSize
	if frameSize <= 0 {
		frameSize = cfg.WindowSize
	}

	result := &FileResult{
		SessionID:    s.ID(),
		InputPath:    inputPath,
		OutputPath:   outputPath(inputPath, "-enhanced", ".wav"),
		SpeakersPath: outputPath(inputPath, "-speakers", ".yaml"),
		Metadata:     meta,
		ProcessRate:  rate,
	}
	result.Quality, err = processor.MeasureWindow(samples, float64(rate), cfg)
	if err != nil {
		return nil, err
	}

	frames := audio.Frames(samples, float64(rate), frameSize)
	enhanced := make([]float32, 0, int(float64(len(samples))*cfg.TargetSampleRate/float64(rate))+frameSize)
	tier := result.Quality.Tier()
	role := speaker.RoleUnknown

	for i, f := range frames {
		res := s.Process(f)
		result.Frames++
		if res.Speech {
			result.SpeechFrames++
			enhanced = append(enhanced, res.Enhanced...)
			role = res.Role
		}
		if res.Closed != nil {
			result.Segments = append(result.Segments, *res.Closed)
		}
		if res.Quality != nil {
			result.Intervals = append(result.Intervals, *res.Quality)
			tier = res.Quality.Tier()
		}

		if opts.Progress != nil && (i%progressInterval == 0 || i == len(frames)-1) {
			opts.Progress(Progress{
				Fraction: float64(i+1) / float64(len(frames)),
				Level:    processor.LinearToDb(processor.Peak(f.Samples)),
				Speech:   res.Speech,
				Role:     role,
				Tier:     tier,
				Segments: len(result.Segments),
			})
		}
	}

	if seg := s.Flush(); seg != nil {
		result.Segments = append(result.Segments, *seg)
	}
	if s.meter.Samples() > 0 {
		result.Intervals = append(result.Intervals, s.Quality())
	}
	result.Fingerprints = s.Fingerprints()
	if s.st.reducer.HasProfile() {
		result.NoiseLevel = s.st.reducer.ProfileLevel()
	}
	result.GateChanges = s.st.gate.Transitions()
	result.OutputSecs = float64(len(enhanced)) / cfg.TargetSampleRate

	if err := audio.WriteWAV(result.OutputPath, enhanced, int(cfg.TargetSampleRate)); err != nil {
		return nil, err
	}
	if err := writeSpeakers(result); err != nil {
		return nil, err
	}

	s.log.WithField("input", inputPath).
		WithField("frames", result.Frames).
		WithField("speech_frames", result.SpeechFrames).
		WithField("segments", len(result.Segments)).
		Info("File processed")
	return result, nil
}

// speakerExport is the YAML layout of <name>-speakers.yaml.
type speakerExport struct {
	Session  string          `yaml:"session"`
	Source   string          `yaml:"source"`
	Duration time.Duration   `yaml:"duration"`
	Segments []exportSegment `yaml:"segments"`
	Profiles []exportProfile `yaml:"profiles,omitempty"`
}

type exportSegment struct {
	Role       speaker.Role  `yaml:"role"`
	Start      time.Duration `yaml:"start"`
	End        time.Duration `yaml:"end"`
	Confidence float64       `yaml:"confidence"`
}

type exportProfile struct {
	Role       speaker.Role `yaml:"role"`
	Pitch      float64      `yaml:"pitch_hz"`
	Formants   []float64    `yaml:"formants_hz"`
	Frames     int          `yaml:"frames"`
	Confidence float64      `yaml:"confidence"`
}

func writeSpeakers(r *FileResult) error {
	out := speakerExport{
		Session:  r.SessionID,
		Source:   filepath.Base(r.InputPath),
		Duration: time.Duration(r.Metadata.Duration * float64(time.Second)),
		Segments: make([]exportSegment, 0, len(r.Segments)),
	}
	for _, seg := range r.Segments {
		out.Segments = append(out.Segments, exportSegment{
			Role:       seg.Role,
			Start:      seg.Start,
			End:        seg.End,
			Confidence: round(seg.Confidence, 3),
		})
	}
	for _, fp := range r.Fingerprints {
		formants := make([]float64, len(fp.Features.Formants))
		for i, f := range fp.Features.Formants {
			formants[i] = round(f, 1)
		}
		out.Profiles = append(out.Profiles, exportProfile{
			Role:       fp.Role,
			Pitch:      round(fp.Features.Pitch, 1),
			Formants:   formants,
			Frames:     fp.Count,
			Confidence: round(fp.Confidence, 3),
		})
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to encode speaker timeline: %w", err)
	}
	if err := os.WriteFile(r.SpeakersPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write speaker timeline: %w", err)
	}
	return nil
}

// outputPath derives an output file name from the input file name.
// Example: /path/to/visit.wav → /path/to/visit-enhanced.wav
func outputPath(inputPath, suffix, ext string) string {
	dir := filepath.Dir(inputPath)
	filename := filepath.Base(inputPath)
	nameWithoutExt := strings.TrimSuffix(filename, filepath.Ext(filename))

	return filepath.Join(dir, nameWithoutExt+suffix+ext)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
