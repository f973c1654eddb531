package render

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"

	"github.com/eel-brah/kokorodoki/internal/segment"
	"github.com/eel-brah/kokorodoki/internal/synth"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func renderToTemp(t *testing.T, syn synth.Synthesizer, utts []segment.Utterance, opts Options) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer f.Close()

	if err := Render(context.Background(), syn, utts, f, opts, testLogger()); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	return path
}

func decodeFrames(t *testing.T, path string) (samples []int, channels, rate int) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open wav: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode wav: %v", err)
	}
	return buf.Data, buf.Format.NumChannels, buf.Format.SampleRate
}

func TestRenderPlainText(t *testing.T) {
	syn := synth.NewMockSynth(1000) // 10 frames per rune at this rate
	opts := Options{
		Params:     synth.Params{Voice: "af_heart", Language: "a", Speed: 1.0},
		SampleRate: 1000,
		Gap:        100 * time.Millisecond,
	}
	utts := []segment.Utterance{
		{Index: 0, Text: "aaaaaaaaaa"}, // 100 frames
		{Index: 1, Text: "bbbbbbbbbb"}, // 100 frames
	}
	path := renderToTemp(t, syn, utts, opts)

	samples, channels, rate := decodeFrames(t, path)
	if channels != 2 {
		t.Fatalf("expected stereo output, got %d channels", channels)
	}
	if rate != 1000 {
		t.Fatalf("expected 1000 Hz, got %d", rate)
	}
	// 100 frames + 100 frame gap + 100 frames.
	if frames := len(samples) / channels; frames != 300 {
		t.Fatalf("expected 300 frames, got %d", frames)
	}
}

func TestRenderSRTPlacement(t *testing.T) {
	syn := synth.NewMockSynth(1000)
	opts := Options{
		Params:     synth.Params{Voice: "af_heart", Language: "a", Speed: 1.0},
		SampleRate: 1000,
	}
	utts := []segment.Utterance{
		{Index: 0, Text: "aaaaaaaaaa", Timed: true,
			StartTime: 1 * time.Second, MinDuration: 500 * time.Millisecond},
		{Index: 1, Text: "bbbbbbbbbb", Timed: true,
			StartTime: 3 * time.Second, MinDuration: 200 * time.Millisecond},
	}
	path := renderToTemp(t, syn, utts, opts)

	samples, channels, _ := decodeFrames(t, path)
	frames := len(samples) / channels

	// Second entry starts at 3s and is padded to at least 200ms.
	if frames < 3200 {
		t.Fatalf("output too short for the subtitle schedule: %d frames", frames)
	}

	sampleAt := func(frame int) int { return samples[frame*channels] }
	// Before the first onset the track is silence.
	for _, f := range []int{0, 500, 999} {
		if sampleAt(f) != 0 {
			t.Fatalf("expected silence at frame %d, got %d", f, sampleAt(f))
		}
	}
	// Inside the first clip there is signal.
	found := false
	for f := 1000; f < 1100; f++ {
		if sampleAt(f) != 0 {
			found = true
			break
		}
	}
	if !found {
		t.Fatal("no signal at the first subtitle onset")
	}
	// The gap between the first clip's end and the second onset is silent.
	for f := 1200; f < 3000; f += 100 {
		if sampleAt(f) != 0 {
			t.Fatalf("expected silence between entries at frame %d", f)
		}
	}
}

func TestRenderSkipsFailedUtterances(t *testing.T) {
	syn := synth.NewMockSynth(1000)
	syn.FailSubstring = "bad"
	opts := Options{
		Params:     synth.Params{Voice: "af_heart", Language: "a", Speed: 1.0},
		SampleRate: 1000,
	}
	utts := []segment.Utterance{
		{Index: 0, Text: "good aaaa"},
		{Index: 1, Text: "bad bbbb"},
	}
	path := renderToTemp(t, syn, utts, opts)

	samples, channels, _ := decodeFrames(t, path)
	// Only the first utterance (9 runes = 90 frames) survives.
	if frames := len(samples) / channels; frames != 90 {
		t.Fatalf("expected 90 frames, got %d", frames)
	}
}

func TestRenderAllFailed(t *testing.T) {
	syn := synth.NewMockSynth(1000)
	syn.FailSubstring = "x"
	opts := Options{SampleRate: 1000}

	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer f.Close()

	err = Render(context.Background(), syn, []segment.Utterance{{Text: "x"}}, f, opts, testLogger())
	if err == nil {
		t.Fatal("expected error when nothing could be synthesized")
	}
}

func TestRenderEmptyInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer f.Close()

	err = Render(context.Background(), synth.NewMockSynth(1000), nil, f, Options{SampleRate: 1000}, testLogger())
	if err != segment.ErrEmptyInput {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}
