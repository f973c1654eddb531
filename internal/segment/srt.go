package segment

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrNotSRT is returned when no well-formed subtitle block can be found.
var ErrNotSRT = errors.New("segment: no valid SRT entries")

var timestampLine = regexp.MustCompile(
	`^(\d{2}:\d{2}:\d{2},\d{3})\s*-->\s*(\d{2}:\d{2}:\d{2},\d{3})`)

// LooksLikeSRT reports whether text contains at least one subtitle
// timestamp line, a cheap pre-check before a full parse.
func LooksLikeSRT(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if timestampLine.MatchString(strings.TrimSpace(line)) {
			return true
		}
	}
	return false
}

// Prepare turns a raw payload into an utterance sequence, treating
// subtitle-shaped input as SRT and everything else as plain text. The
// returned source is "srt" or "text".
func Prepare(text string, logger *slog.Logger) ([]Utterance, string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, "", ErrEmptyInput
	}
	if LooksLikeSRT(text) {
		utts, err := ParseSRT(strings.NewReader(text), logger)
		if err == nil {
			return utts, "srt", nil
		}
		if !errors.Is(err, ErrNotSRT) {
			return nil, "", err
		}
	}
	utts, err := Split(text)
	if err != nil {
		return nil, "", err
	}
	return utts, "text", nil
}

// ParseSRT reads an SRT subtitle stream and returns utterances sorted by
// start time, re-indexed from zero. Malformed blocks are skipped with a
// warning; an input with no valid blocks at all is an error. The input
// must be UTF-8.
func ParseSRT(r io.Reader, logger *slog.Logger) ([]Utterance, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, errors.New("segment: srt input is not valid UTF-8")
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	var utts []Utterance
	for _, block := range splitBlocks(content) {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 3 {
			if strings.TrimSpace(block) != "" {
				logger.Warn("skipping malformed srt block", slog.String("block", preview(block)))
			}
			continue
		}
		if _, err := strconv.Atoi(strings.TrimSpace(lines[0])); err != nil {
			logger.Warn("skipping srt block with bad index", slog.String("line", lines[0]))
			continue
		}
		m := timestampLine.FindStringSubmatch(strings.TrimSpace(lines[1]))
		if m == nil {
			logger.Warn("skipping srt block with bad timestamps", slog.String("line", lines[1]))
			continue
		}
		start, err1 := parseTimestamp(m[1])
		end, err2 := parseTimestamp(m[2])
		if err1 != nil || err2 != nil || end < start {
			logger.Warn("skipping srt block with bad time range", slog.String("line", lines[1]))
			continue
		}
		text := strings.TrimSpace(strings.Join(lines[2:], "\n"))
		if text == "" {
			continue
		}
		utts = append(utts, Utterance{
			Text:        text,
			StartTime:   start,
			MinDuration: end - start,
			Timed:       true,
		})
	}
	if len(utts) == 0 {
		return nil, ErrNotSRT
	}

	sort.SliceStable(utts, func(i, j int) bool { return utts[i].StartTime < utts[j].StartTime })
	for i := range utts {
		utts[i].Index = i
	}
	return utts, nil
}

var blockSep = regexp.MustCompile(`\n\s*\n`)

func splitBlocks(content string) []string {
	return blockSep.Split(strings.TrimSpace(content), -1)
}

// parseTimestamp converts "HH:MM:SS,mmm" to a duration.
func parseTimestamp(ts string) (time.Duration, error) {
	parts := strings.Split(ts, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("bad timestamp %q", ts)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("bad timestamp %q", ts)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("bad timestamp %q", ts)
	}
	secParts := strings.Split(parts[2], ",")
	if len(secParts) != 2 {
		return 0, fmt.Errorf("bad timestamp %q", ts)
	}
	seconds, err := strconv.Atoi(secParts[0])
	if err != nil {
		return 0, fmt.Errorf("bad timestamp %q", ts)
	}
	millis, err := strconv.Atoi(secParts[1])
	if err != nil {
		return 0, fmt.Errorf("bad timestamp %q", ts)
	}
	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond, nil
}

func preview(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) > 40 {
		return string(runes[:40]) + "..."
	}
	return s
}
