// Package render assembles synthesized utterances into a WAV file instead
// of playing them live.
package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/eel-brah/kokorodoki/internal/segment"
	"github.com/eel-brah/kokorodoki/internal/synth"
)

const (
	bitDepth = 16
	channels = 2
)

// Options controls rendering.
type Options struct {
	Params     synth.Params
	SampleRate int
	// Gap separates consecutive plain-text utterances. Timed utterances
	// are placed at their own start times instead.
	Gap time.Duration
}

// WriteSeeker is what the WAV encoder needs; os.File satisfies it.
type WriteSeeker interface {
	io.Writer
	io.Seeker
}

// Render synthesizes every utterance and writes a 16-bit stereo WAV.
// Timed utterances are placed at their subtitle start times and padded to
// their declared durations; plain text is laid out sequentially with the
// configured gap. Utterances that fail to synthesize are skipped, matching
// live playback.
func Render(ctx context.Context, syn synth.Synthesizer, utts []segment.Utterance, w WriteSeeker, opts Options, logger *slog.Logger) error {
	if len(utts) == 0 {
		return segment.ErrEmptyInput
	}
	rate := opts.SampleRate
	if rate <= 0 {
		return fmt.Errorf("render: invalid sample rate %d", rate)
	}

	var track []float32
	cursor := 0 // next write position in frames
	rendered := 0
	for _, utt := range utts {
		clip, err := syn.Synthesize(ctx, utt.Text, opts.Params)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("skipping utterance",
				slog.Int("index", utt.Index), slog.String("error", err.Error()))
			continue
		}

		onset := cursor
		if utt.Timed {
			onset = int(utt.StartTime.Seconds() * float64(rate))
		}
		end := onset + clip.Frames()
		if utt.Timed {
			if min := onset + int(utt.MinDuration.Seconds()*float64(rate)); min > end {
				end = min
			}
		}
		if end > len(track) {
			track = append(track, make([]float32, end-len(track))...)
		}
		copy(track[onset:onset+clip.Frames()], clip.Samples)

		cursor = end
		if !utt.Timed && opts.Gap > 0 {
			cursor += int(opts.Gap.Seconds() * float64(rate))
		}
		rendered++
	}
	if rendered == 0 {
		return fmt.Errorf("render: no utterance could be synthesized")
	}

	return encode(w, track, rate)
}

func encode(w WriteSeeker, track []float32, rate int) error {
	buffer := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		SourceBitDepth: bitDepth,
	}
	buffer.Data = make([]int, len(track)*channels)
	for i, s := range track {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int(s * 32767)
		buffer.Data[i*2] = v
		buffer.Data[i*2+1] = v
	}

	enc := wav.NewEncoder(w, rate, bitDepth, channels, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}
