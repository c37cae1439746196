package processor

import "math"

// maxAntiAliasTaps bounds the moving-average pre-filter used when downsampling.
const maxAntiAliasTaps = 64

// Resampler converts frame rates by linear interpolation. When the target
// rate is lower, the input is first smoothed by a centred moving average
// sized to the rate ratio.
//
// The returned slice is owned by the Resampler and valid until the next call.
type Resampler struct {
	smooth []float32
	out    []float32
}

// Process converts src from one rate to the other. Rates within 1 Hz of each
// other return src itself; empty input or non-positive rates return an empty
// slice.
func (r *Resampler) Process(src []float32, from, to float64) []float32 {
	if len(src) == 0 || from <= 0 || to <= 0 {
		return r.out[:0]
	}
	if math.Abs(from-to) < 1 {
		return src
	}

	in := src
	if to < from {
		taps := min(int(math.Round(from/to)), maxAntiAliasTaps)
		if taps > 1 {
			in = r.antiAlias(src, taps)
		}
	}

	n := int(math.Round(float64(len(src)) * to / from))
	if cap(r.out) < n {
		r.out = make([]float32, n)
	}
	out := r.out[:n]

	step := from / to
	last := len(in) - 1
	for i := range out {
		pos := float64(i) * step
		i0 := int(pos)
		if i0 >= last {
			out[i] = in[last]
			continue
		}
		frac := float32(pos - float64(i0))
		out[i] = in[i0] + (in[i0+1]-in[i0])*frac
	}
	return out
}

// antiAlias applies a centred moving average of taps samples. Windows are
// truncated at the buffer edges.
func (r *Resampler) antiAlias(src []float32, taps int) []float32 {
	if cap(r.smooth) < len(src) {
		r.smooth = make([]float32, len(src))
	}
	dst := r.smooth[:len(src)]

	half := taps / 2
	for i := range dst {
		lo := max(i-half, 0)
		hi := min(i-half+taps, len(src))
		var sum float32
		for j := lo; j < hi; j++ {
			sum += src[j]
		}
		dst[i] = sum / float32(hi-lo)
	}
	return dst
}
