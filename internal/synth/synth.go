// Package synth defines the synthesizer boundary: one utterance of text in,
// one audio clip out. The neural model itself always runs out of process.
package synth

import (
	"context"
	"errors"
)

// Params selects how an utterance is rendered.
type Params struct {
	Voice    string
	Language string
	Speed    float64
}

// Clip is a synthesized utterance: mono float32 samples in [-1, 1].
type Clip struct {
	Samples    []float32
	SampleRate int
}

// Frames returns the number of sample frames in the clip.
func (c *Clip) Frames() int {
	if c == nil {
		return 0
	}
	return len(c.Samples)
}

// ErrUnsupportedText is returned when the model cannot voice the input.
var ErrUnsupportedText = errors.New("synth: text not supported by model")

// Synthesizer is the contract for producing audio from text.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, p Params) (*Clip, error)
}
