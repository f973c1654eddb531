package audio

import (
	"context"
	"sync"
	"time"

	"github.com/eel-brah/kokorodoki/internal/synth"
)

// PlayRecord captures one Play call made against the mock sink.
type PlayRecord struct {
	Frames int
	Offset int
}

// MockSink simulates the output device on a compressed clock: every clip
// takes ClipDelay of wall time regardless of its length, and the reported
// frame offset advances proportionally to elapsed time. Used by tests and
// by headless daemons (audio.enabled=false).
type MockSink struct {
	ClipDelay time.Duration

	mu        sync.Mutex
	clip      *synth.Clip
	offset    int
	started   time.Time
	interrupt chan struct{}
	records   []PlayRecord
}

// NewMockSink returns a mock sink with a 20ms per-clip playback time.
func NewMockSink() *MockSink {
	return &MockSink{ClipDelay: 20 * time.Millisecond}
}

func (s *MockSink) Play(ctx context.Context, clip *synth.Clip, offsetFrames int) (int, error) {
	if clip == nil || clip.Frames() == 0 {
		return offsetFrames, nil
	}
	if offsetFrames >= clip.Frames() {
		return clip.Frames(), nil
	}

	s.mu.Lock()
	s.clip = clip
	s.offset = offsetFrames
	s.started = time.Now()
	interrupt := make(chan struct{})
	s.interrupt = interrupt
	s.records = append(s.records, PlayRecord{Frames: clip.Frames(), Offset: offsetFrames})
	s.mu.Unlock()

	finished := false
	select {
	case <-time.After(s.ClipDelay):
		finished = true
	case <-interrupt:
	case <-ctx.Done():
	}

	s.mu.Lock()
	if finished && s.clip == clip {
		s.offset = clip.Frames()
		s.clip = nil
	}
	off := s.offset
	s.mu.Unlock()
	return off, ctx.Err()
}

// progressLocked estimates the offset reached so far.
func (s *MockSink) progressLocked() int {
	if s.clip == nil {
		return s.offset
	}
	frac := float64(time.Since(s.started)) / float64(s.ClipDelay)
	if frac > 1 {
		frac = 1
	}
	off := s.offset + int(frac*float64(s.clip.Frames()-s.offset))
	if off >= s.clip.Frames() {
		off = s.clip.Frames() - 1
	}
	return off
}

func (s *MockSink) Pause() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clip == nil {
		return 0
	}
	off := s.progressLocked()
	s.offset = off
	s.clip = nil
	if s.interrupt != nil {
		close(s.interrupt)
		s.interrupt = nil
	}
	return off
}

func (s *MockSink) StopNow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clip = nil
	s.offset = 0
	if s.interrupt != nil {
		close(s.interrupt)
		s.interrupt = nil
	}
}

func (s *MockSink) Close() error {
	s.StopNow()
	return nil
}

// Records returns a copy of every Play call seen so far.
func (s *MockSink) Records() []PlayRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PlayRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Busy reports whether a clip is currently being played.
func (s *MockSink) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clip != nil
}
