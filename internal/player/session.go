package player

import (
	"time"

	"github.com/eel-brah/kokorodoki/internal/segment"
	"github.com/eel-brah/kokorodoki/internal/synth"
)

// Phase is the playback state machine position.
type Phase int

const (
	Idle Phase = iota
	Playing
	Paused
	Stopped
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// session is the mutable playback state owned by the Controller. All fields
// are guarded by the controller mutex. current holds the clip for
// currentIndex across a pause so resume can continue from pausedFrame.
type session struct {
	utts      []segment.Utterance
	cursor    int
	phase     Phase
	startedAt time.Time

	current      *synth.Clip
	currentIndex int
	pausedFrame  int
}

func (s *session) clampCursor() {
	if s.cursor < 0 {
		s.cursor = 0
	}
	if s.cursor > len(s.utts) {
		s.cursor = len(s.utts)
	}
}

// Status is a read-only snapshot of the controller state.
type Status struct {
	Phase     string  `json:"phase"`
	Cursor    int     `json:"cursor"`
	Total     int     `json:"total"`
	Utterance string  `json:"utterance,omitempty"`
	Voice     string  `json:"voice"`
	Language  string  `json:"language"`
	Speed     float64 `json:"speed"`
}
