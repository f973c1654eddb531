// Package audio provides the output-device boundary for the playback
// engine: start a clip, interrupt it, pause with a frame offset.
package audio

import (
	"context"
	"errors"

	"github.com/eel-brah/kokorodoki/internal/synth"
)

// ErrDeviceUnavailable is returned when the output device cannot be opened.
var ErrDeviceUnavailable = errors.New("audio: output device unavailable")

// Sink plays one clip at a time on the output device.
//
// Play blocks until the clip finishes or is interrupted by Pause, StopNow,
// or context cancellation, and returns the frame offset reached. Pause
// halts playback immediately and returns the offset so the same clip can be
// resumed from it. StopNow halts playback and discards the position. All
// methods are safe for concurrent use; only one Play may be active.
type Sink interface {
	Play(ctx context.Context, clip *synth.Clip, offsetFrames int) (int, error)
	Pause() int
	StopNow()
	Close() error
}
