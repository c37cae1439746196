package audio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func sine(freq float64, rate, n int, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	in := sine(440, 16000, 1600, 0.5)
	in[10] = 1.5 // clipped on write

	if err := WriteWAV(path, in, 16000); err != nil {
		t.Fatalf("WriteWAV() error = %v", err)
	}

	out, meta, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV() error = %v", err)
	}
	if meta.SampleRate != 16000 || meta.Channels != 1 || meta.BitDepth != 16 {
		t.Errorf("metadata = %+v, want 16000 Hz mono 16-bit", meta)
	}
	if math.Abs(meta.Duration-0.1) > 1e-9 {
		t.Errorf("Duration = %v, want 0.1", meta.Duration)
	}
	if len(out) != len(in) {
		t.Fatalf("read %d samples, wrote %d", len(out), len(in))
	}

	for i := range in {
		want := math.Max(-1, math.Min(1, float64(in[i])))
		if math.Abs(float64(out[i])-want) > 1.0/16384 {
			t.Fatalf("sample %d = %v, want %v", i, out[i], want)
		}
	}
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := os.WriteFile(path, []byte("definitely not RIFF data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ReadWAV(path); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("ReadWAV() error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestDownmix(t *testing.T) {
	// 16-bit stereo: left full scale positive, right silent
	got := downmix([]int{16384, 0, -16384, -16384}, 2, 16)
	want := []float32{0.25, -0.5}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("downmix[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	// 8-bit is offset binary
	got = downmix([]int{128, 255, 0}, 1, 8)
	if got[0] != 0 || got[2] != -1 {
		t.Errorf("8-bit downmix = %v, want [0 ~1 -1]", got)
	}
}

func TestConvertRate(t *testing.T) {
	t.Run("same rate copies", func(t *testing.T) {
		in := sine(440, 16000, 100, 0.5)
		out, err := ConvertRate(in, 16000, 16000)
		if err != nil {
			t.Fatal(err)
		}
		if len(out) != len(in) || &out[0] == &in[0] {
			t.Error("same-rate conversion should return an equal-length copy")
		}
	})

	t.Run("invalid rates", func(t *testing.T) {
		if _, err := ConvertRate(nil, 0, 16000); err == nil {
			t.Error("ConvertRate with zero input rate returned nil error")
		}
	})

	t.Run("downsample length", func(t *testing.T) {
		in := sine(440, 48000, 48000, 0.5)
		out, err := ConvertRate(in, 48000, 16000)
		if err != nil {
			t.Fatalf("ConvertRate() error = %v", err)
		}
		if len(out) == 0 || len(out) > 16000+64 {
			t.Errorf("got %d samples, want about 16000", len(out))
		}
		for _, v := range out {
			if v > 1 || v < -1 {
				t.Fatalf("sample %v outside [-1,1]", v)
			}
		}
	})
}
