package engine

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"playback-console/internal/platform/logger"
	"playback-console/internal/playback"
)

// ErrNotSeekable is the seek completion error for streams without a finite duration.
var ErrNotSeekable = errors.New("stream is not seekable")

const (
	eventBuffer = 256
	// bufferAhead is how far past the position the simulated buffer reaches.
	bufferAhead = 12.0
)

// SimOptions configures a Sim.
type SimOptions struct {
	Probe        ProbeFunc
	ProbeTimeout time.Duration
	Logger       *slog.Logger
}

type probeResult struct {
	url  string
	info StreamInfo
	err  error
}

// Sim is a simulated streaming engine. Load probes the stream playlist in
// the background; everything else happens when the host calls Advance from
// its event loop. Sim is not safe for concurrent use except that probes
// report back over a channel.
type Sim struct {
	probe        ProbeFunc
	probeTimeout time.Duration
	log          *slog.Logger

	events chan playback.Event
	probed chan probeResult
	ctx    context.Context
	cancel context.CancelFunc

	path      string
	loaded    bool
	wantPlay  bool
	state     playback.State
	duration  playback.Duration
	position  float64
	buffered  float64
	rate      float64
	qualities []playback.Quality
	quality   string
	auto      bool
	seeks     []float64
}

// NewSim returns an idle engine.
func NewSim(opts SimOptions) *Sim {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sim{
		probe:        opts.Probe,
		probeTimeout: opts.ProbeTimeout,
		log:          opts.Logger,
		events:       make(chan playback.Event, eventBuffer),
		probed:       make(chan probeResult, 4),
		ctx:          ctx,
		cancel:       cancel,
		duration:     playback.UnknownDuration,
		rate:         1,
		auto:         true,
	}
}

// Close stops outstanding probes.
func (s *Sim) Close() { s.cancel() }

// Events implements playback.Player.
func (s *Sim) Events() <-chan playback.Event { return s.events }

// Load implements playback.Player. An empty url unloads the engine.
func (s *Sim) Load(url string) {
	s.path = url
	s.loaded = false
	s.wantPlay = false
	s.position = 0
	s.buffered = 0
	s.seeks = nil
	s.qualities = nil
	s.quality = ""
	s.setState(playback.StateIdle)
	s.setDuration(playback.UnknownDuration)
	if url == "" || s.probe == nil {
		return
	}
	s.log.Info("probing stream", slog.String("url", url))
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.probeTimeout)
		defer cancel()
		info, err := s.probe(ctx, url)
		select {
		case s.probed <- probeResult{url: url, info: info, err: err}:
		case <-s.ctx.Done():
		}
	}()
}

// Play implements playback.Player.
func (s *Sim) Play() {
	if s.path == "" {
		return
	}
	if !s.loaded {
		s.wantPlay = true
		return
	}
	switch s.state {
	case playback.StatePlaying, playback.StateBuffering, playback.StateErrored:
		return
	case playback.StateEnded:
		s.position = 0
	}
	s.setState(playback.StateBuffering)
}

// Pause implements playback.Player.
func (s *Sim) Pause() {
	s.wantPlay = false
	if s.state == playback.StatePlaying || s.state == playback.StateBuffering {
		s.setState(playback.StateReady)
	}
}

// Seek implements playback.Player. The completion is delivered on the next Advance.
func (s *Sim) Seek(target float64) {
	s.seeks = append(s.seeks, target)
}

// SetPlaybackRate implements playback.Player. Rates outside the supported
// range are ignored.
func (s *Sim) SetPlaybackRate(rate float64) {
	if !playback.ValidRate(rate) {
		s.log.Debug("playback rate ignored", slog.Float64("rate", rate))
		return
	}
	s.rate = rate
}

// PlaybackRate implements playback.Player.
func (s *Sim) PlaybackRate() float64 { return s.rate }

// SetQuality implements playback.Player. Unknown names are ignored.
func (s *Sim) SetQuality(name string) {
	for _, q := range s.qualities {
		if q.Name == name {
			s.quality = name
			s.auto = false
			return
		}
	}
	s.log.Debug("quality ignored", slog.String("quality", name))
}

// SetAutoQuality implements playback.Player.
func (s *Sim) SetAutoQuality(auto bool) {
	s.auto = auto
	if auto && len(s.qualities) > 0 {
		s.quality = s.qualities[0].Name
	}
}

// Qualities implements playback.Player.
func (s *Sim) Qualities() []playback.Quality {
	out := make([]playback.Quality, len(s.qualities))
	copy(out, s.qualities)
	return out
}

// Quality implements playback.Player.
func (s *Sim) Quality() string { return s.quality }

// AutoQuality implements playback.Player.
func (s *Sim) AutoQuality() bool { return s.auto }

// State implements playback.Player.
func (s *Sim) State() playback.State { return s.state }

// Duration implements playback.Player.
func (s *Sim) Duration() playback.Duration { return s.duration }

// Position implements playback.Player.
func (s *Sim) Position() float64 { return s.position }

// Buffered implements playback.Player.
func (s *Sim) Buffered() float64 { return s.buffered }

// Path implements playback.Player.
func (s *Sim) Path() string { return s.path }

// EmitCue delivers a timed metadata cue as if it were carried by the stream.
func (s *Sim) EmitCue(cue playback.Cue) {
	s.emit(playback.Event{Kind: playback.EventCue, Cue: cue})
}

// Advance moves the simulation forward by dt: it applies finished probes,
// completes queued seeks in issue order and advances playback.
func (s *Sim) Advance(dt time.Duration) {
	s.drainProbes()
	s.completeSeeks()

	switch s.state {
	case playback.StateBuffering:
		s.setState(playback.StatePlaying)
	case playback.StatePlaying:
		s.position += dt.Seconds() * s.rate
		if s.duration.IsFinite() && s.position >= s.duration.Seconds {
			s.position = s.duration.Seconds
			s.setBuffered(s.duration.Seconds)
			s.setState(playback.StateEnded)
			return
		}
	default:
		return
	}
	s.setBuffered(s.position + bufferAhead)
}

func (s *Sim) drainProbes() {
	for {
		select {
		case r := <-s.probed:
			s.applyProbe(r)
		default:
			return
		}
	}
}

func (s *Sim) applyProbe(r probeResult) {
	if r.url != s.path {
		s.log.Debug("stale probe dropped", slog.String("url", r.url))
		return
	}
	if r.err != nil {
		s.log.Warn("probe failed", slog.String("url", r.url), slog.String("error", r.err.Error()))
		s.state = playback.StateErrored
		s.emit(playback.Event{Kind: playback.EventError, Err: r.err})
		return
	}
	s.loaded = true
	s.qualities = r.info.Qualities
	if len(s.qualities) > 0 && (s.auto || s.quality == "") {
		s.quality = s.qualities[0].Name
	}
	if r.info.Live {
		s.setDuration(playback.Indefinite)
	} else {
		s.setDuration(playback.Finite(r.info.Duration))
	}
	s.setState(playback.StateReady)
	if s.wantPlay {
		s.wantPlay = false
		s.setState(playback.StateBuffering)
	}
}

func (s *Sim) completeSeeks() {
	seeks := s.seeks
	s.seeks = nil
	for _, target := range seeks {
		if !s.duration.IsFinite() {
			s.emit(playback.Event{Kind: playback.EventSeekCompleted, Target: target, Err: ErrNotSeekable})
			continue
		}
		s.position = math.Max(0, math.Min(target, s.duration.Seconds))
		if s.state == playback.StateEnded && s.position < s.duration.Seconds {
			s.setState(playback.StateReady)
		}
		s.emit(playback.Event{Kind: playback.EventSeekCompleted, Target: target})
	}
}

func (s *Sim) setState(st playback.State) {
	if s.state == st {
		return
	}
	s.state = st
	s.emit(playback.Event{Kind: playback.EventStateChanged, State: st})
}

func (s *Sim) setDuration(d playback.Duration) {
	if s.duration == d {
		return
	}
	s.duration = d
	s.emit(playback.Event{Kind: playback.EventDurationChanged, Duration: d})
}

func (s *Sim) setBuffered(b float64) {
	if s.duration.IsFinite() {
		b = math.Min(b, s.duration.Seconds)
	}
	if s.buffered == b {
		return
	}
	s.buffered = b
	s.emit(playback.Event{Kind: playback.EventBufferedChanged, Buffered: b})
}

func (s *Sim) emit(ev playback.Event) {
	select {
	case s.events <- ev:
	default:
		s.log.Warn("engine event dropped", slog.Int("kind", int(ev.Kind)))
	}
}

var _ playback.Player = (*Sim)(nil)
