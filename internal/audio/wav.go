package audio

import (
	"errors"
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrUnsupportedFormat is returned for WAV files that are not integer PCM.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// wavFormatPCM is the WAVE_FORMAT_PCM tag
const wavFormatPCM = 1

// Metadata contains audio file metadata
type Metadata struct {
	Duration   float64 // seconds
	SampleRate int
	Channels   int
	BitDepth   int
}

// ReadWAV decodes an integer PCM WAV file into mono float32 samples in
// [-1,1]. Multi-channel files are downmixed by averaging.
func ReadWAV(path string) ([]float32, *Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, nil, fmt.Errorf("%w: %s is not a valid WAV file", ErrUnsupportedFormat, path)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, nil, fmt.Errorf("%w: WAV format tag %d in %s", ErrUnsupportedFormat, dec.WavAudioFormat, path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	channels := int(dec.NumChans)
	if channels < 1 {
		return nil, nil, fmt.Errorf("%w: %s has no channels", ErrUnsupportedFormat, path)
	}
	bitDepth := int(dec.BitDepth)
	if bitDepth < 8 || bitDepth > 32 {
		return nil, nil, fmt.Errorf("%w: %d-bit samples in %s", ErrUnsupportedFormat, bitDepth, path)
	}

	samples := downmix(buf.Data, channels, bitDepth)
	meta := &Metadata{
		SampleRate: int(dec.SampleRate),
		Channels:   channels,
		BitDepth:   bitDepth,
	}
	if meta.SampleRate > 0 {
		meta.Duration = float64(len(samples)) / float64(meta.SampleRate)
	}
	return samples, meta, nil
}

// downmix averages interleaved integer samples into mono floats.
func downmix(data []int, channels, bitDepth int) []float32 {
	scale := 1.0 / math.Exp2(float64(bitDepth-1))
	// 8-bit WAV is unsigned, centred on 128
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}

	n := len(data) / channels
	out := make([]float32, n)
	for i := range n {
		var sum float64
		for c := range channels {
			sum += float64(data[i*channels+c] - offset)
		}
		out[i] = float32(sum / float64(channels) * scale)
	}
	return out
}

// WriteWAV encodes mono float32 samples as 16-bit PCM.
// Samples outside [-1,1] are clipped.
func WriteWAV(path string, samples []float32, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	data := make([]int, len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * 32767)
		data[i] = int(max(-32768, min(32767, v)))
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("failed to finalise %s: %w", path, err)
	}
	return f.Close()
}
