package speaker

import "time"

// Segment is a contiguous span of audio attributed to one role.
type Segment struct {
	Role       Role          `yaml:"role"`
	Start      time.Duration `yaml:"start"`
	End        time.Duration `yaml:"end"`
	Confidence float64       `yaml:"confidence"` // mean attribution confidence
	Frames     int           `yaml:"frames"`
}

// Duration returns the segment length.
func (s Segment) Duration() time.Duration {
	return s.End - s.Start
}

// Tracker turns per-frame attributions into segments. A frame whose role
// differs from the open segment's role closes that segment at the end of its
// last frame and opens a new one; closed segments go to a bounded history
// that drops its oldest entry when full. End timestamps never decrease.
type Tracker struct {
	open    bool
	cur     Segment
	confSum float64
	lastEnd time.Duration

	history []Segment
	head    int
	count   int
}

// NewTracker creates a tracker retaining up to capacity closed segments.
func NewTracker(capacity int) *Tracker {
	return &Tracker{history: make([]Segment, max(capacity, 1))}
}

// Observe records one attributed frame spanning [start, end). It returns the
// newly opened segment when the role changes, nil otherwise.
func (t *Tracker) Observe(role Role, confidence float64, start, end time.Duration) *Segment {
	confidence = clampUnit(confidence)

	// Frames must not move backwards in time
	start = max(start, t.lastEnd)
	if t.open {
		start = max(start, t.cur.End)
	}
	end = max(end, start)

	if t.open {
		if role == t.cur.Role {
			t.cur.End = end
			t.cur.Frames++
			t.confSum += confidence
			t.cur.Confidence = clampUnit(t.confSum / float64(t.cur.Frames))
			return nil
		}

		t.push(t.cur)
	}

	t.open = true
	t.cur = Segment{Role: role, Start: start, End: end, Confidence: confidence, Frames: 1}
	t.confSum = confidence
	seg := t.cur
	return &seg
}

// Current returns the open segment, if any.
func (t *Tracker) Current() (Segment, bool) {
	return t.cur, t.open
}

// Flush closes the open segment and returns it, or nil when none is open.
func (t *Tracker) Flush() *Segment {
	if !t.open {
		return nil
	}
	t.open = false
	t.push(t.cur)
	seg := t.cur
	return &seg
}

func (t *Tracker) push(s Segment) {
	t.lastEnd = s.End
	if t.count == len(t.history) {
		t.history[t.head] = s
		t.head = (t.head + 1) % len(t.history)
		return
	}
	t.history[(t.head+t.count)%len(t.history)] = s
	t.count++
}

// Last returns the most recently closed segment.
func (t *Tracker) Last() (Segment, bool) {
	if t.count == 0 {
		return Segment{}, false
	}
	return t.history[(t.head+t.count-1)%len(t.history)], true
}

// History returns the closed segments oldest first.
func (t *Tracker) History() []Segment {
	out := make([]Segment, t.count)
	for i := range out {
		out[i] = t.history[(t.head+i)%len(t.history)]
	}
	return out
}

// Resize changes the history capacity, keeping the newest segments.
func (t *Tracker) Resize(capacity int) {
	hist := t.History()
	capacity = max(capacity, 1)
	hist = hist[max(len(hist)-capacity, 0):]
	t.history = make([]Segment, capacity)
	copy(t.history, hist)
	t.head = 0
	t.count = len(hist)
}

// Reset drops the open segment and the history.
func (t *Tracker) Reset() {
	t.open = false
	t.cur = Segment{}
	t.confSum = 0
	t.lastEnd = 0
	clear(t.history)
	t.head = 0
	t.count = 0
}
