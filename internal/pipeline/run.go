package pipeline

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/linuxmatters/clinivox/internal/audio"
	"github.com/linuxmatters/clinivox/internal/processor"
	"github.com/linuxmatters/clinivox/internal/speaker"
)

// FrameSource delivers captured frames in arrival order. *audio.Source
// implements it.
type FrameSource interface {
	Next(ctx context.Context, dst []float32) (audio.Frame, error)
	Dropped() uint64
}

// Handlers receive session output. Nil handlers are skipped. They run on the
// processing goroutine and must not retain Speech samples after returning.
type Handlers struct {
	// OnSpeech receives enhanced speech at the target rate.
	OnSpeech func(samples []float32, sampleRate float64, at time.Duration)
	// OnSegment is called when a new speaker segment opens.
	OnSegment func(speaker.Segment)
	// OnSegmentClosed receives each finalised segment, including the one
	// flushed at end of stream.
	OnSegmentClosed func(speaker.Segment)
	// OnQuality receives periodic quality metrics.
	OnQuality func(processor.QualityMetrics)
}

// Run processes frames from src until it is closed and drained or ctx is
// cancelled. At end of stream the open segment is flushed and the remaining
// quality measurements are reported. A closed source returns nil.
func (s *Session) Run(ctx context.Context, src FrameSource, h Handlers) error {
	buf := make([]float32, 0, s.cfg.WindowSize)
	for {
		f, err := src.Next(ctx, buf)
		if errors.Is(err, io.EOF) {
			s.finish(src, h)
			return nil
		}
		if err != nil {
			return err
		}
		buf = f.Samples[:0]

		s.SetDropped(src.Dropped())
		res := s.Process(f)
		h.dispatch(res, f.Timestamp)
	}
}

func (s *Session) finish(src FrameSource, h Handlers) {
	s.SetDropped(src.Dropped())
	if seg := s.Flush(); seg != nil && h.OnSegmentClosed != nil {
		h.OnSegmentClosed(*seg)
	}
	if s.meter.Samples() > 0 && h.OnQuality != nil {
		h.OnQuality(s.Quality())
	}
}

func (h Handlers) dispatch(res Result, at time.Duration) {
	if res.Closed != nil && h.OnSegmentClosed != nil {
		h.OnSegmentClosed(*res.Closed)
	}
	if res.Segment != nil && h.OnSegment != nil {
		h.OnSegment(*res.Segment)
	}
	if len(res.Enhanced) > 0 && h.OnSpeech != nil {
		h.OnSpeech(res.Enhanced, res.SampleRate, at)
	}
	if res.Quality != nil && h.OnQuality != nil {
		h.OnQuality(*res.Quality)
	}
}
