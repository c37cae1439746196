// Package audio provides the capture-side frame type, the bounded frame
// source that sits between a capture callback and a pipeline session, and
// WAV file I/O for offline runs.
package audio

import "time"

// Frame is a buffer of mono PCM samples in [-1,1] at a known rate.
// Timestamp is the stream position of the first sample.
type Frame struct {
	Samples    []float32
	SampleRate float64
	Timestamp  time.Duration
}

// Duration returns the playback length of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(f.Samples)) / f.SampleRate * float64(time.Second))
}

// End returns the stream position just after the last sample.
func (f Frame) End() time.Duration {
	return f.Timestamp + f.Duration()
}

// Frames splits samples into consecutive frames of size samples each,
// stamping each with its stream position. The last frame may be shorter.
// The returned frames alias samples.
func Frames(samples []float32, sampleRate float64, size int) []Frame {
	if size <= 0 || sampleRate <= 0 {
		return nil
	}
	frames := make([]Frame, 0, (len(samples)+size-1)/size)
	for start := 0; start < len(samples); start += size {
		end := min(start+size, len(samples))
		frames = append(frames, Frame{
			Samples:    samples[start:end],
			SampleRate: sampleRate,
			Timestamp:  time.Duration(float64(start) / sampleRate * float64(time.Second)),
		})
	}
	return frames
}
