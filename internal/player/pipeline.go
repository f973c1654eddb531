package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eel-brah/kokorodoki/internal/segment"
	"github.com/eel-brah/kokorodoki/internal/synth"
)

var (
	// ErrSynthesisFailed wraps a synthesizer error for one utterance. The
	// playback policy is to skip the utterance, never abort the session.
	ErrSynthesisFailed = errors.New("player: synthesis failed")

	// ErrInterrupted is returned from Take when a command invalidated the
	// wait; the caller re-examines session state and retries.
	ErrInterrupted = errors.New("player: take interrupted")
)

// slot is one synthesis-in-flight record, keyed by utterance index. ready
// closes once clip or err is set. A slot created under one epoch never
// delivers into a later one.
type slot struct {
	epoch  uint64
	cancel context.CancelFunc
	ready  chan struct{}
	clip   *synth.Clip
	err    error
}

// Pipeline keeps a bounded window of upcoming utterances synthesized ahead
// of the playback cursor. Synthesis runs outside the controller lock; only
// publishing a finished clip or invalidating a slot touches pipeline state.
type Pipeline struct {
	synth   synth.Synthesizer
	width   int
	logger  *slog.Logger
	metrics *metrics

	mu    sync.Mutex
	epoch uint64
	slots map[int]*slot
}

// NewPipeline creates a lookahead pipeline with the given window width.
func NewPipeline(syn synth.Synthesizer, width int, logger *slog.Logger, m *metrics) *Pipeline {
	if width < 1 {
		width = 1
	}
	return &Pipeline{
		synth:   syn,
		width:   width,
		logger:  logger.With(slog.String("component", "pipeline")),
		metrics: m,
		slots:   make(map[int]*slot),
	}
}

// EnsureWindow begins asynchronous synthesis for every index in
// [cursor, cursor+width) that has no slot yet.
func (p *Pipeline) EnsureWindow(utts []segment.Utterance, cursor int, params synth.Params) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := cursor; i < cursor+p.width && i < len(utts); i++ {
		if i < 0 {
			continue
		}
		if _, ok := p.slots[i]; ok {
			continue
		}
		ctx, cancel := context.WithCancel(context.Background())
		s := &slot{epoch: p.epoch, cancel: cancel, ready: make(chan struct{})}
		p.slots[i] = s
		go p.fill(ctx, i, utts[i].Text, params, s)
	}
}

func (p *Pipeline) fill(ctx context.Context, index int, text string, params synth.Params, s *slot) {
	start := time.Now()
	clip, err := p.synth.Synthesize(ctx, text, params)

	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.slots[index]; !ok || cur != s || s.epoch != p.epoch {
		// The slot was invalidated while synthesizing; drop the result.
		return
	}
	if err == nil && p.metrics != nil {
		p.metrics.synthSeconds.Record(ctx, time.Since(start).Seconds())
	}
	s.clip, s.err = clip, err
	close(s.ready)
}

// Take blocks until the clip for index is ready and returns ownership of
// it, removing the slot. interrupt aborts the wait with ErrInterrupted so
// the caller can observe a seek or parameter change.
func (p *Pipeline) Take(ctx context.Context, index int, interrupt <-chan struct{}) (*synth.Clip, error) {
	p.mu.Lock()
	s, ok := p.slots[index]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: no slot for index %d", ErrInterrupted, index)
	}

	select {
	case <-s.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-interrupt:
		return nil, ErrInterrupted
	}

	p.mu.Lock()
	if cur, ok := p.slots[index]; ok && cur == s {
		delete(p.slots, index)
	}
	p.mu.Unlock()

	if s.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, s.err)
	}
	return s.clip, nil
}

// Trim cancels and removes every slot outside [lo, hi). Used on seek;
// slots still inside the window stay valid.
func (p *Pipeline) Trim(lo, hi int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, s := range p.slots {
		if i >= lo && i < hi {
			continue
		}
		s.cancel()
		delete(p.slots, i)
	}
}

// CancelAll invalidates every slot and advances the epoch, so in-flight
// synthesis that completes later is discarded. Required on stop, parameter
// change, and session teardown.
func (p *Pipeline) CancelAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.epoch++
	for i, s := range p.slots {
		s.cancel()
		delete(p.slots, i)
	}
}

// Pending returns the number of live slots, for status and tests.
func (p *Pipeline) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}
