package playback

import (
	"log/slog"
	"math"
	"time"

	"playback-console/internal/platform/logger"
	"playback-console/internal/platform/metrics"
)

// DefaultSeekTimeout bounds how long a seek may stay unconfirmed before the
// projector gives up on it.
const DefaultSeekTimeout = 10 * time.Second

// NoticeKind classifies a Notice.
type NoticeKind int

const (
	NoticeSeekFailed NoticeKind = iota
	NoticeSeekTimeout
	NoticePlayerError
)

// String returns the notice kind name.
func (k NoticeKind) String() string {
	switch k {
	case NoticeSeekFailed:
		return "seek_failed"
	case NoticeSeekTimeout:
		return "seek_timeout"
	case NoticePlayerError:
		return "player_error"
	default:
		return "unknown"
	}
}

// Notice is a dismissible, one-shot condition for the host to display.
// Notices are reported through TakeNotice and never appear in a Snapshot.
type Notice struct {
	Kind   NoticeKind
	Err    error
	Target float64
}

// Options configures a Projector. The zero value is usable.
type Options struct {
	// SeekTimeout is how long a PendingSeek may wait for its completion.
	// Zero selects DefaultSeekTimeout; a negative value disables the timeout.
	SeekTimeout time.Duration
	Now         func() time.Time
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

// Projector reconciles engine telemetry and scrub gestures into one Snapshot.
// It is not safe for concurrent use; the host drives it from a single loop.
type Projector struct {
	seeker      Seeker
	log         *slog.Logger
	metrics     *metrics.Metrics
	seekTimeout time.Duration
	now         func() time.Time

	state    State
	duration Duration
	position float64
	buffered float64
	scrub    Scrub

	seekIssuedAt time.Time
	notices      []Notice
}

// NewProjector returns a Projector that issues seeks to seeker.
func NewProjector(seeker Seeker, opts Options) *Projector {
	if opts.SeekTimeout == 0 {
		opts.SeekTimeout = DefaultSeekTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &Projector{
		seeker:      seeker,
		log:         opts.Logger,
		metrics:     opts.Metrics,
		seekTimeout: opts.SeekTimeout,
		now:         opts.Now,
		duration:    UnknownDuration,
	}
}

// Reset returns the projector to its unloaded state. Call it when the
// engine path is cleared or a new source is loaded.
func (p *Projector) Reset() {
	p.state = StateIdle
	p.duration = UnknownDuration
	p.position = 0
	p.buffered = 0
	p.scrub = Scrub{}
	p.seekIssuedAt = time.Time{}
}

// OnStateChanged records a new engine state.
func (p *Projector) OnStateChanged(s State) {
	p.state = s
}

// OnDurationChanged records a new media duration.
func (p *Projector) OnDurationChanged(d Duration) {
	if d.Kind == DurationFinite {
		d = Finite(d.Seconds)
	}
	p.duration = d
}

// OnBufferedChanged records the latest buffered-range end in seconds.
func (p *Projector) OnBufferedChanged(seconds float64) {
	if math.IsNaN(seconds) || seconds < 0 {
		p.log.Debug("clamped buffered sample", slog.Float64("buffered", seconds))
		seconds = 0
	}
	p.buffered = seconds
}

// OnPositionSample records a position pulled from the engine on a tick.
func (p *Projector) OnPositionSample(seconds float64) {
	if math.IsNaN(seconds) {
		return
	}
	if seconds < 0 {
		seconds = 0
	}
	p.position = seconds
}

// OnScrubBegin starts a slider drag at fraction of the duration.
func (p *Projector) OnScrubBegin(fraction float64) {
	p.scrub = Choosing(fraction)
}

// OnScrubMove updates the fraction being chosen.
func (p *Projector) OnScrubMove(fraction float64) {
	p.scrub = Choosing(fraction)
}

// OnScrubEnd commits the drag: it issues a seek to fraction of the duration
// and waits for the matching completion. Without a finite duration nothing
// is issued, the scrub is cleared and false is returned.
func (p *Projector) OnScrubEnd(fraction float64) bool {
	if !p.duration.IsFinite() {
		p.scrub = Scrub{}
		return false
	}
	target := clampFraction(fraction) * p.duration.Seconds
	p.scrub = PendingSeek(target)
	p.seekIssuedAt = p.now()
	if p.metrics != nil {
		p.metrics.IncSeeksIssued()
	}
	p.log.Debug("seek issued", slog.Float64("target", target))
	if p.seeker != nil {
		p.seeker.Seek(target)
	}
	return true
}

// OnScrubCancel abandons the drag without seeking.
func (p *Projector) OnScrubCancel() {
	p.scrub = Scrub{}
}

// OnSeekCompleted applies a seek completion. Only the completion for the
// currently pending target is accepted; completions for superseded targets
// are dropped whether they succeeded or failed.
func (p *Projector) OnSeekCompleted(target float64, err error) {
	if p.scrub.Phase != ScrubPendingSeek || p.scrub.Target != target {
		p.log.Debug("stale seek completion dropped", slog.Float64("target", target))
		if p.metrics != nil {
			p.metrics.IncStaleSeekCompletions()
		}
		return
	}
	p.scrub = Scrub{}
	if err != nil {
		p.log.Warn("seek failed", slog.Float64("target", target), slog.String("error", err.Error()))
		if p.metrics != nil {
			p.metrics.IncSeekFailures()
		}
		p.notices = append(p.notices, Notice{Kind: NoticeSeekFailed, Err: err, Target: target})
		return
	}
	p.position = target
}

// OnPlayerError records a fatal engine error. The projector keeps working;
// the host decides what to do with the resulting notice.
func (p *Projector) OnPlayerError(err error) {
	p.state = StateErrored
	p.scrub = Scrub{}
	if p.metrics != nil {
		p.metrics.IncPlayerErrors()
	}
	p.notices = append(p.notices, Notice{Kind: NoticePlayerError, Err: err})
}

// Tick expires a pending seek that has waited longer than the seek timeout.
func (p *Projector) Tick(now time.Time) {
	if p.scrub.Phase != ScrubPendingSeek || p.seekTimeout < 0 {
		return
	}
	if now.Sub(p.seekIssuedAt) < p.seekTimeout {
		return
	}
	target := p.scrub.Target
	p.scrub = Scrub{}
	p.log.Warn("seek timed out", slog.Float64("target", target))
	if p.metrics != nil {
		p.metrics.IncSeekTimeouts()
	}
	p.notices = append(p.notices, Notice{Kind: NoticeSeekTimeout, Target: target})
}

// TakeNotice pops the oldest pending notice.
func (p *Projector) TakeNotice() (Notice, bool) {
	if len(p.notices) == 0 {
		return Notice{}, false
	}
	n := p.notices[0]
	p.notices = p.notices[1:]
	return n, true
}

// Scrub returns the current scrub state.
func (p *Projector) Scrub() Scrub { return p.scrub }

// Snapshot derives the display state. It has no side effects.
func (p *Projector) Snapshot() Snapshot {
	d := p.duration
	position := p.displayPosition()

	buffered := 0.0
	if d.IsFinite() {
		buffered = math.Min(p.buffered, d.Seconds)
	}

	return Snapshot{
		State:    p.state,
		Position: position,
		Duration: d,
		Buffered: buffered,
		Scrub:    p.scrub,
		Display:  project(p.state, d, position, buffered, p.scrub),
	}
}

// displayPosition prefers the scrub target over telemetry while a scrub is outstanding.
func (p *Projector) displayPosition() float64 {
	d := p.duration
	switch p.scrub.Phase {
	case ScrubChoosing:
		if !d.IsFinite() {
			return 0
		}
		return p.scrub.Fraction * d.Seconds
	case ScrubPendingSeek:
		return p.scrub.Target
	}
	if d.IsFinite() && p.position > d.Seconds {
		return d.Seconds
	}
	return p.position
}
