// Package segment turns raw text and SRT subtitle files into ordered
// utterance sequences for the playback engine.
package segment

import (
	"errors"
	"strings"
	"time"
)

// Utterance is one unit of text scheduled for independent synthesis and
// playback. Index is the stable identity used by seek commands. StartTime
// and MinDuration are set only for subtitle input.
type Utterance struct {
	Index       int
	Text        string
	StartTime   time.Duration
	MinDuration time.Duration
	Timed       bool
}

// ErrEmptyInput is returned when segmentation produces no utterances.
var ErrEmptyInput = errors.New("segment: no utterances in input")

const (
	maxUtteranceRunes = 350
	minClauseRunes    = 50
)

// Split tokenizes text into sentence-sized utterances. Sentences longer
// than maxUtteranceRunes are further split at clause boundaries, then at
// word boundaries.
func Split(text string) ([]Utterance, error) {
	var sentences []string
	var buf []rune
	flush := func() {
		s := strings.TrimSpace(string(buf))
		buf = buf[:0]
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	for _, r := range text {
		buf = append(buf, r)
		if isSentenceBoundary(r) {
			flush()
		}
	}
	flush()

	var utts []Utterance
	for _, s := range sentences {
		for _, chunk := range splitLong(s, maxUtteranceRunes) {
			utts = append(utts, Utterance{Index: len(utts), Text: chunk})
		}
	}
	if len(utts) == 0 {
		return nil, ErrEmptyInput
	}
	return utts, nil
}

func isSentenceBoundary(r rune) bool {
	switch r {
	case '\n', '.', '!', '?', ';', '。', '！', '？', '；', '…':
		return true
	default:
		return false
	}
}

// splitLong breaks a sentence exceeding maxLen runes at clause separators
// ("," or ";" followed by a space), falling back to word splitting. Clause
// fragments shorter than minClauseRunes merge into the previous chunk.
func splitLong(sentence string, maxLen int) []string {
	if len([]rune(sentence)) <= maxLen {
		return []string{sentence}
	}

	var chunks []string
	runes := []rune(sentence)
	last := 0
	for i := 0; i < len(runes)-1; i++ {
		if (runes[i] == ',' || runes[i] == ';') && runes[i+1] == ' ' {
			seg := string(runes[last : i+2])
			switch {
			case len([]rune(seg)) > maxLen:
				chunks = append(chunks, splitWords(seg, maxLen)...)
			case len([]rune(seg)) < minClauseRunes && len(chunks) > 0:
				chunks[len(chunks)-1] += seg
			default:
				chunks = append(chunks, seg)
			}
			last = i + 2
		}
	}
	if last < len(runes) {
		chunks = append(chunks, splitWords(string(runes[last:]), maxLen)...)
	}

	var out []string
	for _, c := range chunks {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if len([]rune(c)) > maxLen {
			out = append(out, splitWords(c, maxLen)...)
		} else {
			out = append(out, c)
		}
	}
	return out
}

// splitWords splits a chunk on spaces so each piece stays within maxLen
// runes. A single word longer than maxLen is cut mid-word.
func splitWords(chunk string, maxLen int) []string {
	if len([]rune(chunk)) <= maxLen {
		return []string{chunk}
	}

	var chunks []string
	current := ""
	for _, word := range strings.Split(chunk, " ") {
		sep := 0
		if current != "" {
			sep = 1
		}
		if len([]rune(current))+len([]rune(word))+sep > maxLen {
			if current != "" {
				chunks = append(chunks, current)
				current = ""
			}
			for len([]rune(word)) > maxLen {
				wr := []rune(word)
				chunks = append(chunks, string(wr[:maxLen]))
				word = string(wr[maxLen:])
			}
			current = word
			continue
		}
		if current == "" {
			current = word
		} else {
			current += " " + word
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}
