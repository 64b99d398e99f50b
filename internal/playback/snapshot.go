package playback

import (
	"fmt"
	"math"
)

// Snapshot is the derived playback UI state for one tick.
type Snapshot struct {
	State State `json:"state"`
	// Position is the displayed position in seconds: the scrub target while a
	// scrub is outstanding, the engine position otherwise.
	Position float64  `json:"position_seconds"`
	Duration Duration `json:"duration"`
	// Buffered is clamped to [0, Duration] and zero unless Duration is finite.
	Buffered float64 `json:"buffered_seconds"`
	Scrub    Scrub   `json:"scrub"`
	Display  Display `json:"display"`
}

// Display holds the widget flags and labels derived from a Snapshot.
// Live streams hide every duration widget and set ShowLiveBadge instead.
type Display struct {
	PositionLabel string `json:"position_label"`
	DurationLabel string `json:"duration_label"`
	StatusLabel   string `json:"status_label"`

	ShowDuration   bool `json:"show_duration"`
	ShowSeekSlider bool `json:"show_seek_slider"`
	ShowBufferBar  bool `json:"show_buffer_bar"`
	ShowPause      bool `json:"show_pause"`
	ShowSpinner    bool `json:"show_spinner"`
	ShowLiveBadge  bool `json:"show_live_badge"`

	SliderFraction float64 `json:"slider_fraction"`
	BufferFraction float64 `json:"buffer_fraction"`
}

func project(s State, d Duration, position, buffered float64, scrub Scrub) Display {
	disp := Display{
		PositionLabel: FormatPositional(position),
		StatusLabel:   statusLabel(s, d),
		ShowPause:     s == StatePlaying || s == StateBuffering,
		ShowSpinner:   s == StateBuffering,
	}

	switch d.Kind {
	case DurationIndefinite:
		disp.ShowLiveBadge = true
	case DurationFinite:
		disp.DurationLabel = FormatPositional(d.Seconds)
		disp.ShowDuration = true
		disp.ShowSeekSlider = true
		disp.ShowBufferBar = true
		if d.Seconds > 0 {
			if scrub.Phase == ScrubChoosing {
				disp.SliderFraction = scrub.Fraction
			} else {
				disp.SliderFraction = clampFraction(position / d.Seconds)
			}
			disp.BufferFraction = clampFraction(buffered / d.Seconds)
		}
	}
	return disp
}

func statusLabel(s State, d Duration) string {
	switch s {
	case StateBuffering:
		return "Buffering..."
	case StatePlaying:
		if d.IsIndefinite() {
			return "● LIVE"
		}
		return "◼︎ RECORDED VIDEO"
	case StateEnded:
		return "Ended"
	case StateErrored:
		return "Error"
	default:
		return "Paused"
	}
}

// FormatPositional renders seconds as MM:SS, or H:MM:SS from one hour up.
// Values are rounded to whole seconds.
func FormatPositional(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	total := int64(math.Round(seconds))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
