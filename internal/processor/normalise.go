package processor

// Normalise scales buf in place so its peak equals ceiling and returns the
// gain applied. Digital silence is left untouched with unity gain.
func Normalise(buf []float32, ceiling float64) float64 {
	peak := Peak(buf)
	if peak == 0 || ceiling <= 0 {
		return 1
	}
	gain := ceiling / peak
	g := float32(gain)
	for i := range buf {
		buf[i] *= g
	}
	return gain
}
