package playback

import (
	"encoding/json"
	"math"
)

// State is the player engine state as reported by its state-changed callback.
type State int

const (
	StateIdle State = iota
	StateReady
	StateBuffering
	StatePlaying
	StateEnded
	StateErrored
)

// String returns a human-readable label for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateReady:
		return "Ready"
	case StateBuffering:
		return "Buffering"
	case StatePlaying:
		return "Playing"
	case StateEnded:
		return "Ended"
	case StateErrored:
		return "Errored"
	default:
		return "Unknown"
	}
}

// MarshalJSON encodes the state as its label.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// DurationKind distinguishes finite media from live and not-yet-loaded media.
type DurationKind int

const (
	DurationUnknown DurationKind = iota
	DurationIndefinite
	DurationFinite
)

// Duration is the media duration: a finite number of seconds (VOD),
// Indefinite (live) or Unknown (nothing loaded).
type Duration struct {
	Kind    DurationKind
	Seconds float64
}

var (
	// UnknownDuration means no media is loaded.
	UnknownDuration = Duration{Kind: DurationUnknown}

	// Indefinite is the duration of a live stream.
	Indefinite = Duration{Kind: DurationIndefinite}
)

// Finite returns a VOD duration. NaN and negative values are reported as
// Unknown and +Inf as Indefinite so callers can pass raw engine values.
func Finite(seconds float64) Duration {
	switch {
	case math.IsNaN(seconds) || seconds < 0:
		return UnknownDuration
	case math.IsInf(seconds, 1):
		return Indefinite
	}
	return Duration{Kind: DurationFinite, Seconds: seconds}
}

// IsFinite reports whether d is a known VOD duration.
func (d Duration) IsFinite() bool { return d.Kind == DurationFinite }

// IsIndefinite reports whether d is a live stream duration.
func (d Duration) IsIndefinite() bool { return d.Kind == DurationIndefinite }

// MarshalJSON encodes finite durations as seconds and the sentinels as strings.
func (d Duration) MarshalJSON() ([]byte, error) {
	switch d.Kind {
	case DurationFinite:
		return json.Marshal(d.Seconds)
	case DurationIndefinite:
		return json.Marshal("indefinite")
	default:
		return json.Marshal("unknown")
	}
}

// ScrubPhase is the phase of a manual seek-slider drag.
type ScrubPhase int

const (
	ScrubNone ScrubPhase = iota
	ScrubChoosing
	ScrubPendingSeek
)

// String returns the phase name.
func (p ScrubPhase) String() string {
	switch p {
	case ScrubChoosing:
		return "choosing"
	case ScrubPendingSeek:
		return "pending_seek"
	default:
		return "none"
	}
}

// Scrub is the scrub state. Only the field matching Phase is meaningful;
// build values with Choosing and PendingSeek (the zero value is ScrubNone).
type Scrub struct {
	Phase    ScrubPhase `json:"phase"`
	Fraction float64    `json:"fraction,omitempty"`
	Target   float64    `json:"target,omitempty"`
}

// Choosing is the scrub state while the user drags the slider.
func Choosing(fraction float64) Scrub {
	return Scrub{Phase: ScrubChoosing, Fraction: clampFraction(fraction)}
}

// PendingSeek is the scrub state after release until the engine confirms the seek.
func PendingSeek(target float64) Scrub {
	return Scrub{Phase: ScrubPendingSeek, Target: target}
}

// Active reports whether the scrub state overrides live position telemetry.
func (s Scrub) Active() bool { return s.Phase != ScrubNone }

// MarshalJSON encodes the phase as its name.
func (p ScrubPhase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func clampFraction(f float64) float64 {
	switch {
	case math.IsNaN(f) || f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
