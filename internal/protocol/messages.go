// Package protocol defines the JSON messages exchanged over the daemon's
// command socket and published on the event bus.
package protocol

import "time"

// Command verbs accepted on the command socket. Each connection carries
// exactly one command and receives exactly one reply.
const (
	VerbSpeak         = "speak"
	VerbStop          = "stop"
	VerbPause         = "pause"
	VerbResume        = "resume"
	VerbNext          = "next"
	VerbBack          = "back"
	VerbSetVoice      = "set-voice"
	VerbSetLanguage   = "set-language"
	VerbSetSpeed      = "set-speed"
	VerbStatus        = "status"
	VerbListLanguages = "list-languages"
	VerbListVoices    = "list-voices"
	VerbClearHistory  = "clear-history"
	VerbExit          = "exit"
)

// Command is a single request from a client. Fields beyond Verb are
// verb-specific and ignored otherwise.
type Command struct {
	Verb     string  `json:"verb"`
	Text     string  `json:"text,omitempty"`
	Voice    string  `json:"voice,omitempty"`
	Language string  `json:"language,omitempty"`
	Speed    float64 `json:"speed,omitempty"`
}

// Reply is the daemon's answer. OK reports whether the command took
// effect; Message carries the error or informational text; Status is set
// for the status verb and Items for the list verbs.
type Reply struct {
	OK      bool           `json:"ok"`
	Message string         `json:"message,omitempty"`
	Status  *StatusPayload `json:"status,omitempty"`
	Items   []ListItem     `json:"items,omitempty"`
}

// StatusPayload is a snapshot of the playback session.
type StatusPayload struct {
	Phase     string  `json:"phase"`
	Cursor    int     `json:"cursor"`
	Total     int     `json:"total"`
	Utterance string  `json:"utterance,omitempty"`
	Voice     string  `json:"voice"`
	Language  string  `json:"language"`
	Speed     float64 `json:"speed"`
}

// ListItem is one entry of a list reply.
type ListItem struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// PlaybackState is broadcast on the bus whenever the session changes
// phase.
type PlaybackState struct {
	Phase     string    `json:"phase"`
	Cursor    int       `json:"cursor"`
	Total     int       `json:"total"`
	Voice     string    `json:"voice"`
	Language  string    `json:"language"`
	Speed     float64   `json:"speed"`
	Timestamp time.Time `json:"timestamp"`
}

// UtteranceEvent is broadcast when an utterance begins playing.
type UtteranceEvent struct {
	Index     int       `json:"index"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectPlaybackState = "doki.playback.state"
	SubjectUtterance     = "doki.playback.utterance"
)
