package audio

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Source is a bounded queue of frames between one capture callback and one
// consumer. Push never blocks and takes no lock: when the queue is full the
// oldest queued frame is discarded and counted. Samples are copied into slots
// allocated up front, so the producer never shares memory with the consumer.
//
// Push must only be called from a single goroutine, as must Next.
type Source struct {
	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	slots    []slot
	capacity uint64

	// head and tail are free-running indices; slot i lives at i % len(slots).
	// The producer owns tail and may advance head to drop; the consumer
	// claims a frame by advancing head.
	head atomic.Uint64
	tail atomic.Uint64
	// reading is one past the index the consumer is copying, or 0.
	reading atomic.Uint64
	dropped atomic.Uint64
	closed  atomic.Bool
}

type slot struct {
	samples   []float32
	rate      float64
	timestamp time.Duration
}

// NewSource creates a Source holding up to capacity frames, each slot
// pre-sized for frameSize samples.
func NewSource(capacity, frameSize int) *Source {
	if capacity < 1 {
		capacity = 1
	}
	// one spare slot for the frame the consumer is copying out
	slots := make([]slot, capacity+1)
	for i := range slots {
		slots[i].samples = make([]float32, 0, max(frameSize, 0))
	}
	return &Source{
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		slots:    slots,
		capacity: uint64(capacity),
	}
}

// Push queues a copy of f. It reports false only after Close.
func (s *Source) Push(f Frame) bool {
	if s.closed.Load() {
		return false
	}

	t := s.tail.Load()
	for {
		h := s.head.Load()
		if t-h < s.capacity {
			break
		}
		// a failed swap means the consumer just took the oldest frame
		if s.head.CompareAndSwap(h, h+1) {
			s.dropped.Add(1)
		}
	}

	n := uint64(len(s.slots))
	if r := s.reading.Load(); r != 0 && (r-1)%n == t%n {
		// the consumer is still copying this slot out; lose the new frame
		s.dropped.Add(1)
		return true
	}

	sl := &s.slots[t%n]
	sl.samples = append(sl.samples[:0], f.Samples...)
	sl.rate = f.SampleRate
	sl.timestamp = f.Timestamp
	s.tail.Store(t + 1)

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return true
}

// Next blocks until a frame is queued, ctx is done, or the source is closed
// and drained. The frame's samples are copied into dst, which is grown if
// needed and returned as Frame.Samples. After Close, queued frames are still
// delivered before io.EOF.
func (s *Source) Next(ctx context.Context, dst []float32) (Frame, error) {
	for {
		closed := s.closed.Load()
		if f, ok := s.take(dst); ok {
			return f, nil
		}
		if closed {
			return Frame{}, io.EOF
		}

		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-s.notify:
		case <-s.done:
		}
	}
}

// take copies out the oldest frame, retrying if the producer drops it
// first. It reports false when the queue is empty.
func (s *Source) take(dst []float32) (Frame, bool) {
	defer s.reading.Store(0)
	for {
		h := s.head.Load()
		if h == s.tail.Load() {
			return Frame{}, false
		}
		// announce before claiming so the producer never refills this slot
		// while it is copied out
		s.reading.Store(h + 1)
		if !s.head.CompareAndSwap(h, h+1) {
			continue
		}
		sl := &s.slots[h%uint64(len(s.slots))]
		return Frame{
			Samples:    append(dst[:0], sl.samples...),
			SampleRate: sl.rate,
			Timestamp:  sl.timestamp,
		}, true
	}
}

// Close stops accepting frames. It is safe to call more than once.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
	})
	return nil
}

// Dropped returns the number of frames discarded because the queue was full.
func (s *Source) Dropped() uint64 {
	return s.dropped.Load()
}

// Len returns the number of queued frames.
func (s *Source) Len() int {
	h := s.head.Load()
	return int(s.tail.Load() - h)
}
