package console

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"playback-console/internal/platform/logger"
	"playback-console/internal/platform/metrics"
	"playback-console/internal/playback"
	"playback-console/internal/quiz"
	"playback-console/internal/sources"
)

var (
	// ErrStopped is returned by operations issued after Run has returned.
	ErrStopped = errors.New("screen stopped")
	// ErrProtected is returned when removing a protected seed row.
	ErrProtected = errors.New("source is protected")
	// ErrInvalidRate is returned for playback rates outside the supported range.
	ErrInvalidRate = errors.New("invalid playback rate")
	// ErrUnknownQuality is returned for renditions the stream does not offer.
	ErrUnknownQuality = errors.New("unknown quality")
	// ErrNoCues is returned when the engine cannot inject timed metadata.
	ErrNoCues = errors.New("engine does not accept injected cues")
)

// Engine is the streaming engine a Screen drives. Advance moves the engine
// clock forward and is called on every tick.
type Engine interface {
	playback.Player
	Advance(dt time.Duration)
}

type cueEmitter interface {
	EmitCue(cue playback.Cue)
}

// Options configures a Screen.
type Options struct {
	TickInterval time.Duration
	SeekTimeout  time.Duration
	// StartURL is loaded when Run starts.
	StartURL string
	// Ticks replaces the internal ticker when set.
	Ticks   <-chan time.Time
	Now     func() time.Time
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Hub     *Hub
}

// View is a Snapshot plus the engine settings the screen shows around it.
type View struct {
	playback.Snapshot
	Path        string         `json:"path"`
	Rate        float64        `json:"playback_rate"`
	Quality     string         `json:"quality"`
	AutoQuality bool           `json:"auto_quality"`
	Question    *quiz.Question `json:"question,omitempty"`
	Background  bool           `json:"background"`
}

// NoticeView is the JSON form of a playback.Notice.
type NoticeView struct {
	Kind   string  `json:"kind"`
	Error  string  `json:"error,omitempty"`
	Target float64 `json:"target,omitempty"`
}

// SourceView is one history row as listed to clients.
type SourceView struct {
	sources.Entity
	Deletable bool `json:"deletable"`
}

type request struct {
	fn   func()
	done chan struct{}
}

// Screen is the host of one player. It owns the engine, the projector, the
// source history and the quiz overlay, and mutates them only from the
// goroutine running Run. Other goroutines reach it through Do.
type Screen struct {
	player  Engine
	proj    *playback.Projector
	history *sources.History
	quiz    *quiz.Overlay
	hub     *Hub
	log     *slog.Logger

	tickInterval time.Duration
	ticks        <-chan time.Time
	now          func() time.Time
	startURL     string

	ops     chan request
	stopped chan struct{}

	lastTick     time.Time
	background   bool
	resumeActive bool
	published    []byte
}

// NewScreen wires a screen around player and history.
func NewScreen(player Engine, history *sources.History, opts Options) *Screen {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = 200 * time.Millisecond
	}
	return &Screen{
		player: player,
		proj: playback.NewProjector(player, playback.Options{
			SeekTimeout: opts.SeekTimeout,
			Now:         opts.Now,
			Logger:      opts.Logger,
			Metrics:     opts.Metrics,
		}),
		history:      history,
		quiz:         quiz.NewOverlay(opts.Logger, opts.Metrics),
		hub:          opts.Hub,
		log:          opts.Logger,
		tickInterval: opts.TickInterval,
		ticks:        opts.Ticks,
		now:          opts.Now,
		startURL:     opts.StartURL,
		ops:          make(chan request),
		stopped:      make(chan struct{}),
	}
}

// Run is the screen's event loop. It returns when ctx is done.
func (s *Screen) Run(ctx context.Context) error {
	defer close(s.stopped)

	ticks := s.ticks
	if ticks == nil {
		t := time.NewTicker(s.tickInterval)
		defer t.Stop()
		ticks = t.C
	}
	s.lastTick = s.now()
	if s.startURL != "" {
		if err := s.load(ctx, s.startURL); err != nil {
			s.log.Warn("start url not loaded", slog.String("url", s.startURL), slog.String("error", err.Error()))
		}
	}
	s.publish()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticks:
			s.tick(now)
		case ev := <-s.player.Events():
			s.apply(ev)
		case op := <-s.ops:
			s.drainEvents()
			op.fn()
			s.drainEvents()
			close(op.done)
		}
		s.publish()
	}
}

// Do runs fn on the event loop and waits for it to finish.
func (s *Screen) Do(ctx context.Context, fn func()) error {
	op := request{fn: fn, done: make(chan struct{})}
	select {
	case s.ops <- op:
	case <-s.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-op.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Screen) tick(now time.Time) {
	dt := now.Sub(s.lastTick)
	if dt < 0 {
		dt = 0
	}
	s.lastTick = now
	s.player.Advance(dt)
	s.drainEvents()
	if s.player.Path() != "" {
		s.proj.OnPositionSample(s.player.Position())
	}
	s.proj.Tick(now)
}

func (s *Screen) drainEvents() {
	for {
		select {
		case ev := <-s.player.Events():
			s.apply(ev)
		default:
			return
		}
	}
}

func (s *Screen) apply(ev playback.Event) {
	switch ev.Kind {
	case playback.EventStateChanged:
		s.proj.OnStateChanged(ev.State)
	case playback.EventDurationChanged:
		s.proj.OnDurationChanged(ev.Duration)
	case playback.EventBufferedChanged:
		s.proj.OnBufferedChanged(ev.Buffered)
	case playback.EventSeekCompleted:
		s.proj.OnSeekCompleted(ev.Target, ev.Err)
	case playback.EventError:
		s.log.Error("player error", slog.String("path", s.player.Path()), slog.String("error", errString(ev.Err)))
		s.proj.OnPlayerError(ev.Err)
	case playback.EventWillRebuffer:
		s.log.Debug("player will rebuffer")
	case playback.EventCue:
		s.quiz.OnCue(ev.Cue)
	}
}

func (s *Screen) view() View {
	v := View{
		Snapshot:    s.proj.Snapshot(),
		Path:        s.player.Path(),
		Rate:        s.player.PlaybackRate(),
		Quality:     s.player.Quality(),
		AutoQuality: s.player.AutoQuality(),
		Background:  s.background,
	}
	if q, ok := s.quiz.Current(); ok {
		v.Question = &q
	}
	return v
}

// publish broadcasts the view to viewers when it changed since the last call.
func (s *Screen) publish() {
	if s.hub == nil {
		return
	}
	b, err := json.Marshal(s.view())
	if err != nil {
		s.log.Error("encode view failed", slog.String("error", err.Error()))
		return
	}
	if bytes.Equal(b, s.published) {
		return
	}
	s.published = b
	s.hub.Broadcast(b)
}

func (s *Screen) load(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return sources.ErrEmptyURL
	}
	s.proj.Reset()
	s.quiz.Hide()
	s.player.Load(url)
	s.log.Info("source loaded", slog.String("url", url))
	if _, err := s.history.Add(ctx, url, url); err != nil {
		s.log.Warn("source not recorded", slog.String("url", url), slog.String("error", err.Error()))
	}
	return nil
}

// Snapshot returns the current view.
func (s *Screen) Snapshot(ctx context.Context) (View, error) {
	var v View
	err := s.Do(ctx, func() { v = s.view() })
	return v, err
}

// Load plays url and records it in the history under its own URL as title.
func (s *Screen) Load(ctx context.Context, url string) error {
	var loadErr error
	if err := s.Do(ctx, func() { loadErr = s.load(ctx, url) }); err != nil {
		return err
	}
	return loadErr
}

// Play starts or resumes playback.
func (s *Screen) Play(ctx context.Context) error {
	return s.Do(ctx, func() {
		s.resumeActive = false
		s.player.Play()
	})
}

// Pause pauses playback.
func (s *Screen) Pause(ctx context.Context) error {
	return s.Do(ctx, func() {
		s.resumeActive = false
		s.player.Pause()
	})
}

// SetRate changes the playback rate.
func (s *Screen) SetRate(ctx context.Context, rate float64) error {
	if !playback.ValidRate(rate) {
		return fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}
	return s.Do(ctx, func() { s.player.SetPlaybackRate(rate) })
}

// SetQuality pins a rendition, or returns to automatic selection for
// playback.AutoQuality.
func (s *Screen) SetQuality(ctx context.Context, name string) error {
	var qErr error
	err := s.Do(ctx, func() {
		if name == playback.AutoQuality {
			s.player.SetAutoQuality(true)
			return
		}
		for _, q := range s.player.Qualities() {
			if q.Name == name {
				s.player.SetQuality(name)
				return
			}
		}
		qErr = fmt.Errorf("%w: %q", ErrUnknownQuality, name)
	})
	if err != nil {
		return err
	}
	return qErr
}

// RateMenu lists the playback rate choices.
func (s *Screen) RateMenu(ctx context.Context) ([]playback.MenuItem, error) {
	var items []playback.MenuItem
	err := s.Do(ctx, func() { items = playback.RateMenu(s.player.PlaybackRate()) })
	return items, err
}

// QualityMenu lists the rendition choices of the loaded stream.
func (s *Screen) QualityMenu(ctx context.Context) ([]playback.MenuItem, error) {
	var items []playback.MenuItem
	err := s.Do(ctx, func() {
		items = playback.QualityMenu(s.player.Qualities(), s.player.Quality(), s.player.AutoQuality())
	})
	return items, err
}

// ScrubBegin starts a slider drag.
func (s *Screen) ScrubBegin(ctx context.Context, fraction float64) error {
	return s.Do(ctx, func() { s.proj.OnScrubBegin(fraction) })
}

// ScrubMove updates a slider drag.
func (s *Screen) ScrubMove(ctx context.Context, fraction float64) error {
	return s.Do(ctx, func() { s.proj.OnScrubMove(fraction) })
}

// ScrubEnd commits a slider drag and reports whether a seek was issued.
func (s *Screen) ScrubEnd(ctx context.Context, fraction float64) (bool, error) {
	var issued bool
	err := s.Do(ctx, func() { issued = s.proj.OnScrubEnd(fraction) })
	return issued, err
}

// ScrubCancel abandons a slider drag.
func (s *Screen) ScrubCancel(ctx context.Context) error {
	return s.Do(ctx, func() { s.proj.OnScrubCancel() })
}

// Notices drains the pending notices, oldest first.
func (s *Screen) Notices(ctx context.Context) ([]NoticeView, error) {
	out := []NoticeView{}
	err := s.Do(ctx, func() {
		for {
			n, ok := s.proj.TakeNotice()
			if !ok {
				return
			}
			out = append(out, NoticeView{Kind: n.Kind.String(), Error: errString(n.Err), Target: n.Target})
		}
	})
	return out, err
}

// Sources lists the history.
func (s *Screen) Sources(ctx context.Context) ([]SourceView, error) {
	var out []SourceView
	err := s.Do(ctx, func() {
		entries := s.history.Entries()
		out = make([]SourceView, len(entries))
		for i, e := range entries {
			out[i] = SourceView{Entity: e, Deletable: s.history.Deletable(i)}
		}
	})
	return out, err
}

// AddSource appends a source to the history without loading it. The URL is
// trimmed the same way Load trims it.
func (s *Screen) AddSource(ctx context.Context, title, url string) (bool, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return false, sources.ErrEmptyURL
	}
	var (
		added  bool
		addErr error
	)
	if err := s.Do(ctx, func() { added, addErr = s.history.Add(ctx, title, url) }); err != nil {
		return false, err
	}
	return added, addErr
}

// RemoveSource deletes a history row. Protected rows are refused.
func (s *Screen) RemoveSource(ctx context.Context, index int) error {
	var rmErr error
	if err := s.Do(ctx, func() {
		if index >= 0 && index < s.history.Len() && !s.history.Deletable(index) {
			rmErr = fmt.Errorf("remove %d: %w", index, ErrProtected)
			return
		}
		rmErr = s.history.Remove(ctx, index)
	}); err != nil {
		return err
	}
	return rmErr
}

// SelectSource loads the history row at index.
func (s *Screen) SelectSource(ctx context.Context, index int) error {
	var selErr error
	if err := s.Do(ctx, func() {
		url, err := s.history.Select(index)
		if err != nil {
			selErr = err
			return
		}
		selErr = s.load(ctx, url)
	}); err != nil {
		return err
	}
	return selErr
}

// Question returns the quiz question currently shown.
func (s *Screen) Question(ctx context.Context) (quiz.Question, bool, error) {
	var (
		q     quiz.Question
		shown bool
	)
	err := s.Do(ctx, func() { q, shown = s.quiz.Current() })
	return q, shown, err
}

// Answer answers the shown question.
func (s *Screen) Answer(ctx context.Context, index int) (bool, error) {
	var (
		correct bool
		ansErr  error
	)
	if err := s.Do(ctx, func() { correct, ansErr = s.quiz.Answer(index) }); err != nil {
		return false, err
	}
	return correct, ansErr
}

// InjectCue hands a timed metadata cue to the engine as if the stream carried it.
func (s *Screen) InjectCue(ctx context.Context, cue playback.Cue) error {
	em, ok := s.player.(cueEmitter)
	if !ok {
		return ErrNoCues
	}
	return s.Do(ctx, func() { em.EmitCue(cue) })
}

// EnterBackground pauses playback while the screen is hidden, remembering
// whether to resume.
func (s *Screen) EnterBackground(ctx context.Context) error {
	return s.Do(ctx, func() {
		if s.background {
			return
		}
		s.background = true
		st := s.player.State()
		s.resumeActive = st == playback.StatePlaying || st == playback.StateBuffering
		if s.resumeActive {
			s.player.Pause()
		}
		s.log.Debug("entered background", slog.Bool("resume", s.resumeActive))
	})
}

// BecomeActive resumes playback paused by EnterBackground.
func (s *Screen) BecomeActive(ctx context.Context) error {
	return s.Do(ctx, func() {
		if !s.background {
			return
		}
		s.background = false
		if s.resumeActive {
			s.resumeActive = false
			s.player.Play()
		}
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
