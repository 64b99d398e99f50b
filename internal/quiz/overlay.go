package quiz

import (
	"errors"
	"log/slog"

	"playback-console/internal/platform/logger"
	"playback-console/internal/platform/metrics"
	"playback-console/internal/playback"
)

// ErrNoQuestion is returned when answering while no question is shown.
var ErrNoQuestion = errors.New("no question is shown")

// Overlay tracks the question currently shown over the player.
type Overlay struct {
	log     *slog.Logger
	metrics *metrics.Metrics

	current *Question
}

// NewOverlay returns an empty overlay. log and m may be nil.
func NewOverlay(log *slog.Logger, m *metrics.Metrics) *Overlay {
	if log == nil {
		log = logger.Discard()
	}
	return &Overlay{log: log, metrics: m}
}

// OnCue shows the question carried by cue, replacing any current one.
// Other cues and malformed payloads are dropped.
func (o *Overlay) OnCue(cue playback.Cue) bool {
	if cue.Type != playback.CueTextMetadata {
		return false
	}
	q, err := Decode([]byte(cue.Text))
	if err != nil {
		o.log.Debug("cue dropped", slog.String("error", err.Error()))
		if o.metrics != nil {
			o.metrics.IncCuesDropped()
		}
		return false
	}
	o.current = &q
	if o.metrics != nil {
		o.metrics.IncQuestionsShown()
	}
	return true
}

// Current returns the shown question.
func (o *Overlay) Current() (Question, bool) {
	if o.current == nil {
		return Question{}, false
	}
	return *o.current, true
}

// Answer checks the answer at index and hides the question.
func (o *Overlay) Answer(index int) (bool, error) {
	if o.current == nil {
		return false, ErrNoQuestion
	}
	correct := o.current.IsCorrect(index)
	o.current = nil
	return correct, nil
}

// Hide dismisses the shown question without answering.
func (o *Overlay) Hide() {
	o.current = nil
}
