package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the playback console.
type Metrics struct {
	registry            *prometheus.Registry
	requestsTotal       prometheus.Counter
	errorsTotal         prometheus.Counter
	seeksIssuedTotal    prometheus.Counter
	staleSeeksTotal     prometheus.Counter
	seekFailuresTotal   prometheus.Counter
	seekTimeoutsTotal   prometheus.Counter
	sourcesAddedTotal   prometheus.Counter
	sourcesRemovedTotal prometheus.Counter
	cuesDroppedTotal    prometheus.Counter
	questionsShownTotal prometheus.Counter
	playerErrorsTotal   prometheus.Counter
	viewers             prometheus.Gauge

	segmentsRegisteredTotal prometheus.Counter
	streamsEndedTotal       prometheus.Counter
	activeStreams           prometheus.Gauge
}

// New creates and registers Prometheus metrics for the console.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}

	m := &Metrics{
		registry:            registry,
		requestsTotal:       counter("playback_requests_total", "Total number of HTTP requests received"),
		errorsTotal:         counter("playback_errors_total", "Total number of HTTP responses with error status (4xx or 5xx)"),
		seeksIssuedTotal:    counter("playback_seeks_issued_total", "Total number of seeks issued from a scrub"),
		staleSeeksTotal:     counter("playback_seek_completions_stale_total", "Seek completions dropped because a newer seek superseded them"),
		seekFailuresTotal:   counter("playback_seek_failures_total", "Seeks the engine reported as failed"),
		seekTimeoutsTotal:   counter("playback_seek_timeouts_total", "Pending seeks reset after the seek timeout"),
		sourcesAddedTotal:   counter("playback_sources_added_total", "Sources appended to the history"),
		sourcesRemovedTotal: counter("playback_sources_removed_total", "Sources removed from the history"),
		cuesDroppedTotal:    counter("playback_cues_dropped_total", "Timed metadata cues dropped as malformed"),
		questionsShownTotal: counter("playback_questions_shown_total", "Quiz questions decoded from cues"),
		playerErrorsTotal:   counter("playback_player_errors_total", "Fatal errors reported by the engine"),
		viewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "playback_viewers",
			Help: "Number of connected snapshot stream viewers",
		}),

		segmentsRegisteredTotal: counter("origin_segments_registered_total", "Total number of segments registered on the built-in origin"),
		streamsEndedTotal:       counter("origin_streams_ended_total", "Total number of streams ended on the built-in origin"),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "origin_active_streams",
			Help: "Number of origin streams that have not ended",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.seeksIssuedTotal,
		m.staleSeeksTotal,
		m.seekFailuresTotal,
		m.seekTimeoutsTotal,
		m.sourcesAddedTotal,
		m.sourcesRemovedTotal,
		m.cuesDroppedTotal,
		m.questionsShownTotal,
		m.playerErrorsTotal,
		m.viewers,
		m.segmentsRegisteredTotal,
		m.streamsEndedTotal,
		m.activeStreams,
	)

	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() { m.requestsTotal.Inc() }

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() { m.errorsTotal.Inc() }

func (m *Metrics) IncSeeksIssued()          { m.seeksIssuedTotal.Inc() }
func (m *Metrics) IncStaleSeekCompletions() { m.staleSeeksTotal.Inc() }
func (m *Metrics) IncSeekFailures()         { m.seekFailuresTotal.Inc() }
func (m *Metrics) IncSeekTimeouts()         { m.seekTimeoutsTotal.Inc() }
func (m *Metrics) IncSourcesAdded()         { m.sourcesAddedTotal.Inc() }
func (m *Metrics) IncSourcesRemoved()       { m.sourcesRemovedTotal.Inc() }
func (m *Metrics) IncCuesDropped()          { m.cuesDroppedTotal.Inc() }
func (m *Metrics) IncQuestionsShown()       { m.questionsShownTotal.Inc() }
func (m *Metrics) IncPlayerErrors()         { m.playerErrorsTotal.Inc() }

// SetViewers sets the connected viewers gauge.
func (m *Metrics) SetViewers(n int) {
	m.viewers.Set(float64(n))
}

// IncSegmentsRegistered increments the origin segment counter.
func (m *Metrics) IncSegmentsRegistered() { m.segmentsRegisteredTotal.Inc() }

// IncStreamsEnded increments the origin ended-stream counter.
func (m *Metrics) IncStreamsEnded() { m.streamsEndedTotal.Inc() }

// SetActiveStreams sets the origin active streams gauge.
func (m *Metrics) SetActiveStreams(n int) {
	m.activeStreams.Set(float64(n))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
