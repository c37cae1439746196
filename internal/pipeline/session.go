// Package pipeline runs captured audio through the enhancement chain and the
// speaker attribution layer, one Session per capture stream.
//
// Per frame the chain is: pre-emphasis → adaptive gate → voice activity
// detection. Speech frames continue through spectral noise reduction →
// voice-band EQ → compression → normalisation → resampling to the target
// rate, and the raw frame is attributed to a speaker role. Non-speech frames
// only refine the noise profile.
package pipeline

import (
	"fmt"
	"io"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/linuxmatters/clinivox/internal/audio"
	"github.com/linuxmatters/clinivox/internal/config"
	"github.com/linuxmatters/clinivox/internal/processor"
	"github.com/linuxmatters/clinivox/internal/speaker"
	"github.com/sirupsen/logrus"
)

// Result is the outcome of processing one frame.
type Result struct {
	// Enhanced holds speech audio at SampleRate. It is empty for non-speech
	// frames and aliases a session buffer that is reused by the next call.
	Enhanced   []float32
	SampleRate float64
	Speech     bool

	Role       speaker.Role
	Confidence float64
	Segment    *speaker.Segment // set when this frame opened a new segment
	Closed     *speaker.Segment // the segment finalised by that boundary

	Quality *processor.QualityMetrics // set when a periodic snapshot was published
}

// Snapshot is an immutable view of the session published after segment
// boundaries, quality intervals, resets and flushes. It is safe to read from
// any goroutine.
type Snapshot struct {
	SessionID  string
	Frames     uint64
	Position   time.Duration // end of the last processed frame
	Segment    speaker.Segment
	HasSegment bool
	Quality    processor.QualityMetrics
	HasQuality bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the log entry used for lifecycle events.
func WithLogger(l *logrus.Entry) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// stages holds everything derived from the configuration.
type stages struct {
	pre       *processor.PreEmphasis
	gate      *processor.Gate
	vad       *processor.VAD
	reducer   *processor.SpectralReducer
	eq        *processor.Equaliser
	comp      *processor.Compressor
	resampler processor.Resampler
	extractor *speaker.Extractor
}

func newStages(cfg config.Config) (*stages, error) {
	vad, err := processor.NewVAD(cfg.VAD, cfg.WindowSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}
	reducer, err := processor.NewSpectralReducer(cfg.WindowSize, cfg.Spectral, cfg.NoiseReduction)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}
	extractor, err := speaker.NewExtractor(cfg.WindowSize, cfg.Overlap)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}
	return &stages{
		pre:       processor.NewPreEmphasis(cfg.PreEmphasis),
		gate:      processor.NewGate(cfg.Gate),
		vad:       vad,
		reducer:   reducer,
		eq:        processor.NewEqualiser(cfg.Equaliser, cfg.VoiceEnhancement),
		comp:      processor.NewCompressor(cfg.Compressor),
		extractor: extractor,
	}, nil
}

// Session processes one audio stream. Process, Reset, Reconfigure, Flush,
// History and Fingerprints must be called from a single goroutine; Snapshot
// may be called from any goroutine.
type Session struct {
	cfg config.Config
	id  string
	log *logrus.Entry

	st         *stages
	classifier *speaker.Classifier
	tracker    *speaker.Tracker
	meter      processor.QualityMeter

	work     []float32
	frames   uint64
	position time.Duration
	dropped  uint64
	quality  processor.QualityMetrics
	measured bool

	snap atomic.Pointer[Snapshot]
}

// New validates cfg and builds a session. All buffers and FFT plans are
// allocated here.
func New(cfg config.Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	st, err := newStages(cfg)
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	s := &Session{
		cfg:        cfg,
		id:         uuid.NewString(),
		log:        logrus.NewEntry(log),
		st:         st,
		classifier: speaker.NewClassifier(cfg.Speaker),
		tracker:    speaker.NewTracker(cfg.Speaker.History),
		work:       make([]float32, cfg.WindowSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("session", s.id)
	s.publish()

	s.log.WithFields(logrus.Fields{
		"window":        cfg.WindowSize,
		"overlap":       cfg.Overlap,
		"target_rate":   cfg.TargetSampleRate,
		"speaker_roles": cfg.Speaker.Enabled,
	}).Info("Session started")
	return s, nil
}

// ID returns the session id used in logs and reports.
func (s *Session) ID() string { return s.id }

// Config returns the active configuration.
func (s *Session) Config() config.Config { return s.cfg }

// Process runs one frame through the chain. It never fails: empty frames and
// frames with an unusable sample rate produce an empty result.
func (s *Session) Process(f audio.Frame) Result {
	res := Result{SampleRate: s.cfg.TargetSampleRate}
	if len(f.Samples) == 0 || !(f.SampleRate > 0) || math.IsInf(f.SampleRate, 0) {
		return res
	}
	s.frames++
	s.position = max(s.position, f.End())

	work := s.scratch(len(f.Samples))
	work = s.st.pre.Process(work, f.Samples)
	s.st.gate.Process(work)
	d := s.st.vad.Detect(work, f.SampleRate)
	s.meter.Add(f.Samples, d.Speech)

	if !d.Speech {
		s.st.reducer.Learn(work)
		s.checkQuality(&res, f.SampleRate)
		return res
	}

	res.Speech = true
	s.st.reducer.Reduce(work)
	s.st.eq.Process(work, f.SampleRate)
	s.st.comp.Process(work, f.SampleRate)
	processor.Normalise(work, s.cfg.Normaliser.Ceiling)
	res.Enhanced = s.st.resampler.Process(work, f.SampleRate, s.cfg.TargetSampleRate)

	if s.cfg.Speaker.Enabled {
		s.attribute(&res, f)
	}
	if !s.checkQuality(&res, f.SampleRate) && res.Segment != nil {
		s.publish()
	}
	return res
}

// attribute classifies the raw frame and updates the segment tracker.
func (s *Session) attribute(res *Result, f audio.Frame) {
	feats, ok := s.st.extractor.Extract(f.Samples, f.SampleRate)
	if !ok {
		return
	}
	a := s.classifier.Classify(feats)
	res.Role, res.Confidence = a.Role, a.Confidence

	_, hadOpen := s.tracker.Current()
	seg := s.tracker.Observe(a.Role, a.Confidence, f.Timestamp, f.End())
	if seg == nil {
		return
	}
	res.Segment = seg
	if hadOpen {
		if last, ok := s.tracker.Last(); ok {
			res.Closed = &last
		}
	}

	if s.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		s.log.WithFields(logrus.Fields{
			"role":       seg.Role.String(),
			"start":      seg.Start,
			"confidence": fmt.Sprintf("%.2f", a.Confidence),
			"score":      fmt.Sprintf("%.2f", a.Score),
			"matched":    a.Matched,
		}).Debug("Speaker segment opened")
	}
}

// checkQuality publishes a quality snapshot once a full interval of audio
// has been measured. It reports whether a snapshot was published.
func (s *Session) checkQuality(res *Result, sampleRate float64) bool {
	if float64(s.meter.Samples()) < s.cfg.Quality.IntervalSecs*sampleRate {
		return false
	}
	s.quality = s.meter.Metrics(s.dropped)
	s.measured = true
	s.meter.Reset()
	m := s.quality
	res.Quality = &m
	s.publish()
	return true
}

// scratch returns the work buffer sized to n, growing it only when a longer
// frame arrives.
func (s *Session) scratch(n int) []float32 {
	if cap(s.work) < n {
		s.work = make([]float32, n)
	}
	return s.work[:n]
}

// Quality returns metrics for the audio measured since the last published
// snapshot, or the last published metrics when nothing is pending.
func (s *Session) Quality() processor.QualityMetrics {
	if s.meter.Samples() > 0 {
		return s.meter.Metrics(s.dropped)
	}
	return s.quality
}

// SetDropped records the frame source's drop counter for quality metrics.
func (s *Session) SetDropped(n uint64) { s.dropped = n }

// Snapshot returns the latest published snapshot.
func (s *Session) Snapshot() *Snapshot {
	return s.snap.Load()
}

func (s *Session) publish() {
	snap := &Snapshot{
		SessionID:  s.id,
		Frames:     s.frames,
		Position:   s.position,
		Quality:    s.quality,
		HasQuality: s.measured,
	}
	if seg, ok := s.tracker.Current(); ok {
		snap.Segment, snap.HasSegment = seg, true
	} else if seg, ok := s.tracker.Last(); ok {
		snap.Segment, snap.HasSegment = seg, true
	}
	s.snap.Store(snap)
}

// History returns the finalised segments, oldest first.
func (s *Session) History() []speaker.Segment {
	return s.tracker.History()
}

// Fingerprints returns the learned speaker fingerprints.
func (s *Session) Fingerprints() []speaker.Fingerprint {
	return s.classifier.Fingerprints()
}

// Flush finalises the open segment at end of stream and returns it, or nil
// when no segment is open.
func (s *Session) Flush() *speaker.Segment {
	seg := s.tracker.Flush()
	s.publish()
	return seg
}

// Reset clears all per-stream state between frames: filter delay lines, the
// gate, VAD history, the noise profile, quality accumulators and segments.
// Fingerprints survive when the speaker configuration asks to preserve them.
func (s *Session) Reset() {
	s.st.pre.Reset()
	s.st.gate.Reset()
	s.st.vad.Reset()
	s.st.reducer.Reset()
	s.st.eq.Reset()
	s.st.comp.Reset()
	s.meter.Reset()
	s.tracker.Reset()
	if !s.cfg.Speaker.PreserveOnReset {
		s.classifier.Reset()
	}

	s.frames = 0
	s.position = 0
	s.quality = processor.QualityMetrics{}
	s.measured = false
	s.publish()

	s.log.WithField("fingerprints_kept", s.cfg.Speaker.PreserveOnReset).Info("Session reset")
}

// Reconfigure validates cfg and rebuilds the processing stages, which
// restart from a clean state. The segment timeline is kept; fingerprints are
// kept only when preserve_on_reset is set. On error the session is left
// unchanged.
func (s *Session) Reconfigure(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	st, err := newStages(cfg)
	if err != nil {
		return err
	}

	s.st = st
	if cfg.WindowSize > cap(s.work) {
		s.work = make([]float32, cfg.WindowSize)
	}
	if cfg.Speaker.PreserveOnReset {
		s.classifier.Configure(cfg.Speaker)
	} else {
		s.classifier = speaker.NewClassifier(cfg.Speaker)
	}
	if cfg.Speaker.History != s.cfg.Speaker.History {
		s.tracker.Resize(cfg.Speaker.History)
	}
	s.meter.Reset()
	s.cfg = cfg
	s.publish()

	s.log.WithFields(logrus.Fields{
		"window":          cfg.WindowSize,
		"noise_reduction": cfg.NoiseReduction,
		"enhancement":     cfg.VoiceEnhancement,
	}).Info("Session reconfigured")
	return nil
}
