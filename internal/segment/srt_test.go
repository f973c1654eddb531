package segment

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

const sampleSRT = `1
00:00:01,000 --> 00:00:03,500
First line.

2
00:00:05,250 --> 00:00:07,000
Second line,
continued here.
`

func TestParseSRT(t *testing.T) {
	utts, err := ParseSRT(strings.NewReader(sampleSRT), discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(utts) != 2 {
		t.Fatalf("expected 2 utterances, got %d", len(utts))
	}

	first := utts[0]
	if !first.Timed {
		t.Error("srt utterance not marked timed")
	}
	if first.Index != 0 {
		t.Errorf("expected index 0, got %d", first.Index)
	}
	if first.StartTime != time.Second {
		t.Errorf("expected start 1s, got %v", first.StartTime)
	}
	if first.MinDuration != 2500*time.Millisecond {
		t.Errorf("expected min duration 2.5s, got %v", first.MinDuration)
	}
	if first.Text != "First line." {
		t.Errorf("unexpected text %q", first.Text)
	}

	second := utts[1]
	if second.StartTime != 5250*time.Millisecond {
		t.Errorf("expected start 5.25s, got %v", second.StartTime)
	}
	if !strings.Contains(second.Text, "continued here") {
		t.Errorf("multi-line text not joined: %q", second.Text)
	}
}

func TestParseSRTSortsByStartTime(t *testing.T) {
	input := `2
00:00:10,000 --> 00:00:11,000
Later.

1
00:00:02,000 --> 00:00:03,000
Earlier.
`
	utts, err := ParseSRT(strings.NewReader(input), discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if utts[0].Text != "Earlier." || utts[1].Text != "Later." {
		t.Fatalf("entries not sorted by start time: %+v", utts)
	}
	if utts[0].Index != 0 || utts[1].Index != 1 {
		t.Fatalf("entries not re-indexed: %+v", utts)
	}
}

func TestParseSRTSkipsMalformedBlocks(t *testing.T) {
	input := `1
00:00:01,000 --> 00:00:02,000
Good one.

2
not a timestamp
Bad block.

3
00:00:04,000 --> 00:00:05,000
Another good one.
`
	utts, err := ParseSRT(strings.NewReader(input), discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(utts) != 2 {
		t.Fatalf("expected malformed block skipped, got %d utterances", len(utts))
	}
}

func TestParseSRTNoValidBlocks(t *testing.T) {
	_, err := ParseSRT(strings.NewReader("just some text\nwith lines"), discardLogger())
	if !errors.Is(err, ErrNotSRT) {
		t.Fatalf("expected ErrNotSRT, got %v", err)
	}
}

func TestParseSRTRejectsInvalidUTF8(t *testing.T) {
	_, err := ParseSRT(strings.NewReader("1\n00:00:01,000 --> 00:00:02,000\nhi \xff\xfe\n"), discardLogger())
	if err == nil {
		t.Fatal("expected error for invalid UTF-8 input")
	}
}

func TestLooksLikeSRT(t *testing.T) {
	if !LooksLikeSRT(sampleSRT) {
		t.Error("sample SRT not recognized")
	}
	if LooksLikeSRT("plain text. nothing else.") {
		t.Error("plain text misidentified as SRT")
	}
}

func TestPrepareDetectsSource(t *testing.T) {
	utts, source, err := Prepare(sampleSRT, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source != "srt" || !utts[0].Timed {
		t.Fatalf("expected srt source, got %q", source)
	}

	utts, source, err = Prepare("Hello there. General greeting.", discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source != "text" || utts[0].Timed {
		t.Fatalf("expected text source, got %q", source)
	}

	if _, _, err := Prepare("  \n ", discardLogger()); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}
