package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/eel-brah/kokorodoki/internal/synth"
)

// PortAudioSink renders mono clips on the default stereo output device via
// a callback-driven portaudio stream. The stream stays open for the sink's
// lifetime; between clips the callback emits silence.
type PortAudioSink struct {
	stream *portaudio.Stream
	logger *slog.Logger

	mu      sync.Mutex
	clip    *synth.Clip
	frame   int
	playing bool
	done    chan struct{}
}

// NewPortAudioSink opens the default output device at the given sample
// rate. Failure to open the device is reported as ErrDeviceUnavailable.
func NewPortAudioSink(sampleRate, framesPerBuffer int, logger *slog.Logger) (*PortAudioSink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if framesPerBuffer <= 0 {
		framesPerBuffer = 1024
	}
	s := &PortAudioSink{logger: logger.With(slog.String("component", "portaudio-sink"))}
	stream, err := portaudio.OpenDefaultStream(0, 2, float64(sampleRate), framesPerBuffer, s.callback)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	s.stream = stream
	s.logger.Info("output device opened", slog.Int("sample_rate", sampleRate))
	return s, nil
}

func (s *PortAudioSink) callback(out [][]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ch := range out {
		for i := range out[ch] {
			out[ch][i] = 0
		}
	}
	if !s.playing || s.clip == nil {
		return
	}

	frames := len(out[0])
	n := s.clip.Frames() - s.frame
	if n > frames {
		n = frames
	}
	for i := 0; i < n; i++ {
		sample := s.clip.Samples[s.frame+i]
		for ch := range out {
			out[ch][i] = sample
		}
	}
	s.frame += n
	if s.frame >= s.clip.Frames() {
		s.clip = nil
		s.playing = false
		s.signalDone()
	}
}

// signalDone must be called with mu held.
func (s *PortAudioSink) signalDone() {
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
}

func (s *PortAudioSink) Play(ctx context.Context, clip *synth.Clip, offsetFrames int) (int, error) {
	if clip == nil || clip.Frames() == 0 {
		return offsetFrames, nil
	}
	if offsetFrames < 0 {
		offsetFrames = 0
	}
	if offsetFrames >= clip.Frames() {
		return clip.Frames(), nil
	}

	s.mu.Lock()
	s.signalDone()
	done := make(chan struct{})
	s.clip = clip
	s.frame = offsetFrames
	s.playing = true
	s.done = done
	s.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		s.StopNow()
		<-done
	}

	s.mu.Lock()
	frame := s.frame
	s.mu.Unlock()
	return frame, ctx.Err()
}

// Pause halts the current clip and returns the frame reached. With no
// clip active it returns 0 so a held clip resumes from its start.
func (s *PortAudioSink) Pause() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clip == nil {
		return 0
	}
	off := s.frame
	s.clip = nil
	s.playing = false
	s.signalDone()
	return off
}

func (s *PortAudioSink) StopNow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clip = nil
	s.frame = 0
	s.playing = false
	s.signalDone()
}

func (s *PortAudioSink) Close() error {
	s.StopNow()
	var err error
	if s.stream != nil {
		if stopErr := s.stream.Stop(); stopErr != nil {
			err = stopErr
		}
		if closeErr := s.stream.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	portaudio.Terminate()
	return err
}
