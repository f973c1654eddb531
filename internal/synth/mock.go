package synth

import (
	"context"
	"math"
	"strings"
	"time"
)

// MockSynth produces silent-with-tone clips whose length is proportional to
// the input text: SampleRate/100 frames per rune. Latency simulates model
// inference time. FailSubstring, when non-empty, makes matching utterances
// fail with ErrUnsupportedText.
type MockSynth struct {
	SampleRate    int
	Latency       time.Duration
	FailSubstring string
}

// NewMockSynth returns a mock synthesizer with the given output rate.
func NewMockSynth(sampleRate int) *MockSynth {
	return &MockSynth{SampleRate: sampleRate}
}

func (m *MockSynth) Synthesize(ctx context.Context, text string, p Params) (*Clip, error) {
	if m.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Latency):
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if m.FailSubstring != "" && strings.Contains(text, m.FailSubstring) {
		return nil, ErrUnsupportedText
	}

	frames := len([]rune(text)) * m.SampleRate / 100
	if frames < 1 {
		frames = 1
	}
	speed := p.Speed
	if speed > 0 {
		frames = int(float64(frames) / speed)
	}
	samples := make([]float32, frames)
	for i := range samples {
		samples[i] = float32(0.1 * math.Sin(2*math.Pi*440*float64(i)/float64(m.SampleRate)))
	}
	return &Clip{Samples: samples, SampleRate: m.SampleRate}, nil
}
