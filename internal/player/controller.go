// Package player implements the playback engine: a lookahead synthesis
// pipeline feeding a single playback loop, driven by serialized commands.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eel-brah/kokorodoki/internal/audio"
	"github.com/eel-brah/kokorodoki/internal/segment"
	"github.com/eel-brah/kokorodoki/internal/synth"
	"github.com/eel-brah/kokorodoki/internal/voices"
)

// ErrInvalidTransition marks a command that is not valid in the current
// phase. It is reported to the caller as a no-op, never as a crash.
var ErrInvalidTransition = errors.New("player: invalid transition")

// Notifier receives playback progress events. Implementations must not
// call back into the controller.
type Notifier interface {
	PlaybackState(st Status)
	UtteranceStarted(index int, text string)
}

// Options configures a Controller.
type Options struct {
	Lookahead int
	Gap       time.Duration
	Language  string
	Voice     string
	Speed     float64
	Notifier  Notifier
}

// Controller owns the playback session and is the only component allowed
// to mutate it. Every command runs to completion under cmdMu before the
// next is accepted; mu guards the state shared with the play loop.
type Controller struct {
	sink     audio.Sink
	pipeline *Pipeline
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics
	gap      time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cmdMu sync.Mutex

	mu       sync.Mutex
	cond     *sync.Cond
	wake     chan struct{}
	sess     *session
	voice    string
	language string
	speed    float64
}

// NewController creates a controller in the Idle phase.
func NewController(parent context.Context, syn synth.Synthesizer, sink audio.Sink, opts Options, logger *slog.Logger) *Controller {
	ctx, cancel := context.WithCancel(parent)
	m := newMetrics()
	c := &Controller{
		sink:     sink,
		notifier: opts.Notifier,
		logger:   logger.With(slog.String("component", "controller")),
		metrics:  m,
		gap:      opts.Gap,
		ctx:      ctx,
		cancel:   cancel,
		wake:     make(chan struct{}),
		voice:    opts.Voice,
		language: opts.Language,
		speed:    opts.Speed,
	}
	if c.voice == "" {
		c.voice = voices.DefaultVoice
	}
	if c.language == "" {
		c.language = voices.DefaultLanguage
	}
	if c.speed == 0 {
		c.speed = voices.DefaultSpeed
	}
	c.cond = sync.NewCond(&c.mu)
	c.pipeline = NewPipeline(syn, opts.Lookahead, logger, m)
	return c
}

// kick wakes the play loop out of any blocking wait. Must be called with
// mu held.
func (c *Controller) kick() {
	close(c.wake)
	c.wake = make(chan struct{})
	c.cond.Broadcast()
}

func (c *Controller) paramsLocked() synth.Params {
	return synth.Params{Voice: c.voice, Language: c.language, Speed: c.speed}
}

// Load starts playback of a new utterance sequence from index 0. Any
// existing session is fully cancelled first, so two sessions never drive
// the sink concurrently.
func (c *Controller) Load(utts []segment.Utterance) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	c.metrics.command("load")

	if len(utts) == 0 {
		return segment.ErrEmptyInput
	}
	c.detach()

	c.mu.Lock()
	sess := &session{
		utts:         utts,
		phase:        Playing,
		startedAt:    time.Now(),
		currentIndex: -1,
	}
	c.sess = sess
	c.pipeline.EnsureWindow(utts, 0, c.paramsLocked())
	c.wg.Add(1)
	go c.playLoop(sess)
	st := c.statusLocked()
	c.mu.Unlock()

	c.notifyState(st)
	c.logger.Info("session loaded", slog.Int("utterances", len(utts)))
	return nil
}

// detach cancels the current session, halts the sink, and waits for the
// play loop to exit.
func (c *Controller) detach() {
	c.mu.Lock()
	c.sess = nil
	c.kick()
	c.mu.Unlock()
	c.sink.StopNow()
	c.pipeline.CancelAll()
	c.wg.Wait()
}

// Stop halts playback and returns the controller to Idle. Valid from any
// state.
func (c *Controller) Stop() {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	c.metrics.command("stop")

	c.detach()
	c.notifyState(c.Status())
	c.logger.Info("playback stopped")
}

// Pause halts the sink mid-buffer and records the frame offset reached, so
// Resume continues the same utterance without replaying it from the start.
func (c *Controller) Pause() error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	c.metrics.command("pause")

	c.mu.Lock()
	sess := c.sess
	if sess == nil || sess.phase != Playing {
		c.mu.Unlock()
		return fmt.Errorf("%w: pause requires playing", ErrInvalidTransition)
	}
	sess.phase = Paused
	sess.pausedFrame = c.sink.Pause()
	st := c.statusLocked()
	c.mu.Unlock()

	c.notifyState(st)
	return nil
}

// Resume re-engages the sink at the recorded offset.
func (c *Controller) Resume() error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	c.metrics.command("resume")

	c.mu.Lock()
	sess := c.sess
	if sess == nil || sess.phase != Paused {
		c.mu.Unlock()
		return fmt.Errorf("%w: resume requires paused", ErrInvalidTransition)
	}
	sess.phase = Playing
	c.kick()
	st := c.statusLocked()
	c.mu.Unlock()

	c.notifyState(st)
	return nil
}

// Next skips forward one utterance. At the last utterance the cursor
// clamps to the end of the sequence, which finishes the session.
func (c *Controller) Next() error {
	c.metrics.command("next")
	return c.seek(+1)
}

// Back rewinds one utterance. At the first utterance it restarts it.
func (c *Controller) Back() error {
	c.metrics.command("back")
	return c.seek(-1)
}

func (c *Controller) seek(delta int) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.Lock()
	sess := c.sess
	if sess == nil || (sess.phase != Playing && sess.phase != Paused) {
		c.mu.Unlock()
		return fmt.Errorf("%w: seek requires playing or paused", ErrInvalidTransition)
	}
	sess.cursor += delta
	sess.clampCursor()
	sess.current = nil
	sess.currentIndex = -1
	sess.pausedFrame = 0
	c.pipeline.Trim(sess.cursor, sess.cursor+c.pipeline.width)
	c.kick()
	c.mu.Unlock()

	c.sink.StopNow()
	return nil
}

// SetVoice changes the active voice. The clip already playing is not
// affected; every slot ahead of the cursor is re-synthesized.
func (c *Controller) SetVoice(voice string) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	c.metrics.command("set-voice")

	if !voices.IsVoice(voice) {
		return fmt.Errorf("unknown voice %q", voice)
	}
	c.mu.Lock()
	c.voice = voice
	c.invalidateAheadLocked()
	c.mu.Unlock()
	return nil
}

// SetLanguage changes the active language and switches to its default
// voice, matching the catalog's per-language prefixes.
func (c *Controller) SetLanguage(code string) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	c.metrics.command("set-language")

	if !voices.IsLanguage(code) {
		return fmt.Errorf("unknown language code %q", code)
	}
	c.mu.Lock()
	c.language = code
	c.voice = voices.DefaultFor(code)
	c.invalidateAheadLocked()
	c.mu.Unlock()
	return nil
}

// SetSpeed changes the playback speed within the supported range.
func (c *Controller) SetSpeed(speed float64) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	c.metrics.command("set-speed")

	if !voices.ValidSpeed(speed) {
		return fmt.Errorf("speed must be between %v and %v", voices.MinSpeed, voices.MaxSpeed)
	}
	c.mu.Lock()
	c.speed = speed
	c.invalidateAheadLocked()
	c.mu.Unlock()
	return nil
}

// invalidateAheadLocked drops every pre-synthesized slot so it is rebuilt
// with the new parameters. The clip already playing keeps going.
func (c *Controller) invalidateAheadLocked() {
	c.pipeline.CancelAll()
	c.kick()
}

// Status returns a snapshot of the session and active parameters.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Controller) statusLocked() Status {
	st := Status{
		Phase:    Idle.String(),
		Voice:    c.voice,
		Language: c.language,
		Speed:    c.speed,
	}
	if c.sess != nil {
		st.Phase = c.sess.phase.String()
		st.Cursor = c.sess.cursor
		st.Total = len(c.sess.utts)
		if c.sess.cursor < len(c.sess.utts) {
			st.Utterance = c.sess.utts[c.sess.cursor].Text
		}
	}
	return st
}

// Wait blocks until the current session finishes or the context ends.
func (c *Controller) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.mu.Lock()
		for c.sess != nil && c.sess.phase != Stopped && ctx.Err() == nil {
			c.cond.Wait()
		}
		c.mu.Unlock()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		c.cond.Broadcast()
		c.mu.Unlock()
		<-done
		return ctx.Err()
	}
}

// SpeakAllVoices plays the sequence once per voice of a language, in
// catalog order, waiting for each pass to finish before switching to the
// next voice. The last voice of the sweep remains active.
func (c *Controller) SpeakAllVoices(ctx context.Context, utts []segment.Utterance, lang string) error {
	if err := c.SetLanguage(lang); err != nil {
		return err
	}
	for _, voice := range voices.ForLanguage(lang) {
		if err := c.SetVoice(voice); err != nil {
			return err
		}
		if err := c.Load(utts); err != nil {
			return err
		}
		if err := c.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close stops playback and releases the controller.
func (c *Controller) Close() {
	c.cancel()
	c.detach()
}

func (c *Controller) notifyState(st Status) {
	if c.notifier != nil {
		c.notifier.PlaybackState(st)
	}
}

// playLoop is the single playback driver for one session. It owns no state
// of its own: every decision re-reads the session under the lock, so
// commands and the loop can never interleave mid-transition.
func (c *Controller) playLoop(sess *session) {
	defer c.wg.Done()
	for {
		c.mu.Lock()
		for c.sess == sess && sess.phase == Paused {
			c.cond.Wait()
		}
		if c.sess != sess || c.ctx.Err() != nil {
			c.mu.Unlock()
			return
		}
		if sess.cursor >= len(sess.utts) {
			sess.phase = Stopped
			st := c.statusLocked()
			c.cond.Broadcast()
			c.mu.Unlock()
			c.pipeline.CancelAll()
			c.notifyState(st)
			c.logger.Info("playback complete")
			return
		}

		idx := sess.cursor
		utt := sess.utts[idx]
		offset := 0
		clip := sess.current
		if clip != nil && sess.currentIndex == idx {
			offset = sess.pausedFrame
		} else {
			clip = nil
		}
		c.pipeline.EnsureWindow(sess.utts, idx, c.paramsLocked())
		wake := c.wake
		c.mu.Unlock()

		if clip == nil {
			var err error
			clip, err = c.pipeline.Take(c.ctx, idx, wake)
			if err != nil {
				if errors.Is(err, ErrInterrupted) {
					continue
				}
				if c.ctx.Err() != nil {
					return
				}
				c.logger.Warn("skipping utterance",
					slog.Int("index", idx), slog.String("error", err.Error()))
				if c.metrics.skipped != nil {
					c.metrics.skipped.Add(c.ctx, 1)
				}
				c.advance(sess, idx)
				continue
			}

			// Subtitle entries wait for their scheduled start time.
			if utt.Timed {
				target := sess.startedAt.Add(utt.StartTime)
				if !c.sleepUntil(target, wake) {
					c.holdClip(sess, idx, clip)
					continue
				}
			}
		}

		c.mu.Lock()
		if c.sess != sess || sess.cursor != idx {
			c.mu.Unlock()
			continue
		}
		if sess.phase != Playing {
			sess.current = clip
			sess.currentIndex = idx
			c.mu.Unlock()
			continue
		}
		sess.current = clip
		sess.currentIndex = idx
		c.mu.Unlock()

		if offset == 0 && c.notifier != nil {
			c.notifier.UtteranceStarted(idx, utt.Text)
		}

		began := time.Now()
		endFrame, err := c.sink.Play(c.ctx, clip, offset)
		if err != nil && c.ctx.Err() == nil {
			c.logger.Error("output device failure", slog.String("error", err.Error()))
			c.mu.Lock()
			if c.sess == sess {
				c.sess = nil
			}
			st := c.statusLocked()
			c.cond.Broadcast()
			c.mu.Unlock()
			c.pipeline.CancelAll()
			c.notifyState(st)
			return
		}
		finished := endFrame >= clip.Frames()

		c.mu.Lock()
		if c.sess != sess {
			c.mu.Unlock()
			return
		}
		if finished && sess.cursor == idx {
			// The utterance completed; drop the clip so a pause landing
			// in the silence below can never rewind into it.
			sess.current = nil
			sess.currentIndex = -1
			sess.pausedFrame = 0
		}
		if !finished || sess.cursor != idx {
			// Interrupted mid-clip by pause (Pause recorded the offset
			// and the clip is kept for resume), by a seek, or by stop.
			c.mu.Unlock()
			continue
		}
		wake = c.wake
		c.mu.Unlock()

		// Pad short subtitle entries to their declared duration; plain
		// text gets a small breathing gap between sentences instead. An
		// interrupted wait only shortens the silence; the utterance is
		// already complete, so the cursor moves on either way.
		if utt.Timed {
			if rest := utt.MinDuration - time.Since(began); rest > 0 {
				c.sleepUntil(time.Now().Add(rest), wake)
			}
		} else if c.gap > 0 && idx < len(sess.utts)-1 {
			c.sleepUntil(time.Now().Add(c.gap), wake)
		}

		if c.metrics.played != nil {
			c.metrics.played.Add(c.ctx, 1)
		}
		c.advance(sess, idx)
	}
}

// advance moves the cursor past idx if no command moved it meanwhile.
func (c *Controller) advance(sess *session, idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != sess || sess.cursor != idx {
		return
	}
	// A pause taken after the clip completed still moves past it; resume
	// then continues with the next utterance instead of repeating this one.
	if sess.phase != Playing && sess.phase != Paused {
		return
	}
	sess.current = nil
	sess.currentIndex = -1
	sess.pausedFrame = 0
	sess.cursor++
}

// holdClip stashes a taken clip on the session so a later loop iteration
// can play it without re-synthesis, if the cursor still matches.
func (c *Controller) holdClip(sess *session, idx int, clip *synth.Clip) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == sess && sess.cursor == idx {
		sess.current = clip
		sess.currentIndex = idx
		sess.pausedFrame = 0
	}
}

// sleepUntil waits for target, returning false if the wait was interrupted
// by a command or shutdown.
func (c *Controller) sleepUntil(target time.Time, wake <-chan struct{}) bool {
	d := time.Until(target)
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-wake:
		return false
	case <-c.ctx.Done():
		return false
	}
}
