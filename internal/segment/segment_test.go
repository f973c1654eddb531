package segment

import (
	"errors"
	"strings"
	"testing"
)

func TestSplitSentences(t *testing.T) {
	utts, err := Split("Hello world. How are you? Fine!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Hello world.", "How are you?", "Fine!"}
	if len(utts) != len(want) {
		t.Fatalf("expected %d utterances, got %d", len(want), len(utts))
	}
	for i, u := range utts {
		if u.Index != i {
			t.Errorf("utterance %d has index %d", i, u.Index)
		}
		if u.Text != want[i] {
			t.Errorf("utterance %d: got %q, want %q", i, u.Text, want[i])
		}
		if u.Timed {
			t.Errorf("plain text utterance %d marked timed", i)
		}
	}
}

func TestSplitNewlinesAndSemicolons(t *testing.T) {
	utts, err := Split("first line\nsecond part; third part")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(utts) != 3 {
		t.Fatalf("expected 3 utterances, got %d: %+v", len(utts), utts)
	}
}

func TestSplitEmptyInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\n \n"} {
		if _, err := Split(input); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("Split(%q): expected ErrEmptyInput, got %v", input, err)
		}
	}
}

func TestSplitLongSentenceAtClauses(t *testing.T) {
	clause := strings.Repeat("word ", 30) // ~150 runes
	sentence := strings.TrimSpace(clause) + ", " +
		strings.TrimSpace(clause) + ", " +
		strings.TrimSpace(clause) + "."

	utts, err := Split(sentence)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(utts) < 2 {
		t.Fatalf("expected the long sentence to be split, got %d utterances", len(utts))
	}
	for _, u := range utts {
		if n := len([]rune(u.Text)); n > 350 {
			t.Errorf("utterance exceeds limit: %d runes", n)
		}
	}
}

func TestSplitLongWordRun(t *testing.T) {
	// No sentence or clause boundaries at all; must fall back to words.
	utts, err := Split(strings.Repeat("abcdefghij ", 60))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(utts) < 2 {
		t.Fatalf("expected word-level split, got %d utterances", len(utts))
	}
	for _, u := range utts {
		if n := len([]rune(u.Text)); n > 350 {
			t.Errorf("utterance exceeds limit: %d runes", n)
		}
	}
}

func TestSplitShortClauseMerges(t *testing.T) {
	long := strings.Repeat("x", 340)
	utts, err := Split(long + ", ok, " + strings.Repeat("y", 100) + ".")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, u := range utts {
		if n := len([]rune(u.Text)); n > 350 {
			t.Errorf("utterance exceeds limit: %d runes", n)
		}
	}
}

func TestSplitCJKBoundaries(t *testing.T) {
	utts, err := Split("你好。再见！")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(utts) != 2 {
		t.Fatalf("expected 2 utterances, got %d: %+v", len(utts), utts)
	}
}
