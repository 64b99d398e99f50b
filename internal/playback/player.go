package playback

// Player is the capability contract of the external streaming engine.
// Implementations deliver asynchronous signals on Events; the host applies
// them to a Projector on its single event loop.
type Player interface {
	Load(url string)
	Play()
	Pause()

	// Seek requests a jump to target seconds. Completion arrives later as an
	// EventSeekCompleted carrying the same target.
	Seek(target float64)

	SetPlaybackRate(rate float64)
	PlaybackRate() float64

	// SetQuality pins a rendition by name and leaves auto mode.
	SetQuality(name string)
	SetAutoQuality(auto bool)
	Qualities() []Quality
	Quality() string
	AutoQuality() bool

	State() State
	Duration() Duration
	Position() float64
	Buffered() float64
	Path() string

	Events() <-chan Event
}

// Seeker is the part of Player the Projector drives.
type Seeker interface {
	Seek(target float64)
}

// EventKind tags an Event.
type EventKind int

const (
	EventStateChanged EventKind = iota
	EventDurationChanged
	EventBufferedChanged
	EventSeekCompleted
	EventError
	EventWillRebuffer
	EventCue
)

// Event is one asynchronous signal from the engine.
type Event struct {
	Kind     EventKind
	State    State
	Duration Duration
	Buffered float64
	Target   float64
	Err      error
	Cue      Cue
}

// CueType is the kind of timed payload carried by a Cue.
type CueType string

const (
	CueTextMetadata CueType = "text/metadata"
	CueText         CueType = "text"
)

// Cue is a timed payload delivered in sync with the stream.
type Cue struct {
	Type CueType
	Text string
}

// Quality is one selectable rendition.
type Quality struct {
	Name      string `json:"name"`
	Bandwidth int    `json:"bandwidth"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}
