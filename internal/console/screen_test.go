package console

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playback-console/internal/engine"
	"playback-console/internal/playback"
	"playback-console/internal/quiz"
	"playback-console/internal/sources"
)

const (
	vodURL  = "https://media.test/vod/master.m3u8"
	liveURL = "https://media.test/live.m3u8"
	badURL  = "https://media.test/broken.m3u8"
)

var errBroken = errors.New("playlist unavailable")

func testProbe(_ context.Context, url string) (engine.StreamInfo, error) {
	switch url {
	case liveURL:
		return engine.StreamInfo{Live: true}, nil
	case badURL:
		return engine.StreamInfo{}, errBroken
	default:
		return engine.StreamInfo{
			Duration: 80,
			Qualities: []playback.Quality{
				{Name: "1080p", Bandwidth: 6_000_000},
				{Name: "720p", Bandwidth: 3_000_000},
			},
		}, nil
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type harness struct {
	t       *testing.T
	screen  *Screen
	hub     *Hub
	router  *chi.Mux
	clock   *fakeClock
	ticks   chan time.Time
	history *sources.History
	cancel  context.CancelFunc
	done    chan error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	history := sources.NewHistory(sources.NewMemorySettings(), sources.HistoryOptions{
		Seeds:     []sources.Seed{{Title: "Seed", URL: "https://media.test/seed.m3u8"}},
		Protected: 1,
		Now:       clock.Now,
	})
	history.Load(ctx)

	sim := engine.NewSim(engine.SimOptions{Probe: testProbe})
	hub := NewHub(nil, nil)
	ticks := make(chan time.Time)
	screen := NewScreen(sim, history, Options{Ticks: ticks, Now: clock.Now, Hub: hub})

	router := chi.NewRouter()
	NewHandler(screen, hub, nil).Routes(router)

	h := &harness{
		t: t, screen: screen, hub: hub, router: router, clock: clock,
		ticks: ticks, history: history, cancel: cancel, done: make(chan error, 1),
	}
	go hub.Run(ctx)
	go func() { h.done <- screen.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.done
		sim.Close()
	})
	return h
}

// tick advances the clock by d, delivers the tick and waits for the loop to
// finish handling it.
func (h *harness) tick(d time.Duration) {
	h.t.Helper()
	h.ticks <- h.clock.advance(d)
	require.NoError(h.t, h.screen.Do(context.Background(), func() {}))
}

func (h *harness) waitState(want string) view {
	h.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		v := h.snapshot()
		if v.State == want {
			return v
		}
		if time.Now().After(deadline) {
			h.t.Fatalf("state %q never reached, last %q", want, v.State)
		}
		time.Sleep(time.Millisecond)
		h.tick(0)
	}
}

func (h *harness) do(method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

type scrubView struct {
	Phase string `json:"phase"`
}

type view struct {
	State       string           `json:"state"`
	Position    float64          `json:"position_seconds"`
	Duration    json.RawMessage  `json:"duration"`
	Scrub       scrubView        `json:"scrub"`
	Display     playback.Display `json:"display"`
	Path        string           `json:"path"`
	Rate        float64          `json:"playback_rate"`
	Quality     string           `json:"quality"`
	AutoQuality bool             `json:"auto_quality"`
	Question    *quiz.Question   `json:"question"`
	Background  bool             `json:"background"`
}

func (h *harness) snapshot() view {
	h.t.Helper()
	rec := h.do(http.MethodGet, "/snapshot", nil)
	require.Equal(h.t, http.StatusOK, rec.Code)
	var v view
	require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func (h *harness) load(url, state string) view {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/player/load", map[string]string{"url": url})
	require.Equal(h.t, http.StatusNoContent, rec.Code)
	return h.waitState(state)
}

func TestScreen_initial_snapshot(t *testing.T) {
	h := newHarness(t)

	v := h.snapshot()
	assert.Equal(t, "Idle", v.State)
	assert.JSONEq(t, `"unknown"`, string(v.Duration))
	assert.Equal(t, "none", v.Scrub.Phase)
	assert.False(t, v.Display.ShowSeekSlider)
	assert.Equal(t, "Paused", v.Display.StatusLabel)
	assert.Empty(t, v.Path)
}

func TestScreen_load_records_source(t *testing.T) {
	h := newHarness(t)

	v := h.load(vodURL, "Ready")
	assert.Equal(t, vodURL, v.Path)
	assert.JSONEq(t, `80`, string(v.Duration))
	assert.Equal(t, "01:20", v.Display.DurationLabel)
	assert.True(t, v.Display.ShowSeekSlider)
	assert.Equal(t, "1080p", v.Quality)

	rec := h.do(http.MethodGet, "/sources", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []SourceView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, vodURL, list[1].URL)
	assert.Equal(t, vodURL, list[1].Title, "loaded sources are titled by their URL")
	assert.False(t, list[0].Deletable)
	assert.True(t, list[1].Deletable)

	// Loading again does not duplicate the row.
	h.load(vodURL, "Ready")
	assert.Equal(t, 2, len(h.history.Entries()))
}

func TestScreen_load_rejects_empty_url(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/player/load", map[string]string{"url": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, "/player/load", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing body")
}

func TestScreen_play_advances_position(t *testing.T) {
	h := newHarness(t)
	h.load(vodURL, "Ready")

	require.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/player/play", nil).Code)
	h.tick(0)
	h.tick(4 * time.Second)

	v := h.snapshot()
	assert.Equal(t, "Playing", v.State)
	assert.InDelta(t, 4.0, v.Position, 1e-9)
	assert.Equal(t, "00:04", v.Display.PositionLabel)
	assert.Equal(t, "◼︎ RECORDED VIDEO", v.Display.StatusLabel)
	assert.True(t, v.Display.ShowPause)

	require.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/player/pause", nil).Code)
	h.tick(4 * time.Second)
	v = h.snapshot()
	assert.Equal(t, "Ready", v.State)
	assert.InDelta(t, 4.0, v.Position, 1e-9)
	assert.False(t, v.Display.ShowPause)
}

func TestScreen_live_stream(t *testing.T) {
	h := newHarness(t)
	h.load(liveURL, "Ready")
	h.do(http.MethodPost, "/player/play", nil)
	h.tick(0)

	v := h.snapshot()
	assert.JSONEq(t, `"indefinite"`, string(v.Duration))
	assert.Empty(t, v.Display.DurationLabel)
	assert.False(t, v.Display.ShowDuration)
	assert.True(t, v.Display.ShowLiveBadge)
	assert.Equal(t, "● LIVE", v.Display.StatusLabel)
	assert.False(t, v.Display.ShowSeekSlider)

	rec := h.do(http.MethodPost, "/scrub/end", map[string]float64{"fraction": 0.5})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"seek_issued":false}`, rec.Body.String())
}

func TestScreen_scrub_flow(t *testing.T) {
	h := newHarness(t)
	h.load(vodURL, "Ready")

	require.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/scrub/begin", map[string]float64{"fraction": 0.25}).Code)
	require.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/scrub/move", map[string]float64{"fraction": 0.5}).Code)
	h.tick(time.Second)

	v := h.snapshot()
	assert.Equal(t, "choosing", v.Scrub.Phase)
	assert.InDelta(t, 40.0, v.Position, 1e-9)
	assert.InDelta(t, 0.5, v.Display.SliderFraction, 1e-9)

	rec := h.do(http.MethodPost, "/scrub/end", map[string]float64{"fraction": 0.5})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"seek_issued":true}`, rec.Body.String())
	assert.Equal(t, "pending_seek", h.snapshot().Scrub.Phase)

	h.tick(0)
	v = h.snapshot()
	assert.Equal(t, "none", v.Scrub.Phase)
	assert.InDelta(t, 40.0, v.Position, 1e-9)

	notices := h.do(http.MethodGet, "/notices", nil)
	assert.JSONEq(t, `[]`, notices.Body.String())
}

func TestScreen_scrub_cancel(t *testing.T) {
	h := newHarness(t)
	h.load(vodURL, "Ready")

	h.do(http.MethodPost, "/scrub/begin", map[string]float64{"fraction": 0.9})
	require.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/scrub/cancel", nil).Code)

	v := h.snapshot()
	assert.Equal(t, "none", v.Scrub.Phase)
	assert.Zero(t, v.Position)
}

func TestScreen_player_error_notice(t *testing.T) {
	h := newHarness(t)
	h.load(badURL, "Errored")

	rec := h.do(http.MethodGet, "/notices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var notices []NoticeView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notices))
	require.Len(t, notices, 1)
	assert.Equal(t, "player_error", notices[0].Kind)
	assert.Equal(t, errBroken.Error(), notices[0].Error)

	rec = h.do(http.MethodGet, "/notices", nil)
	assert.JSONEq(t, `[]`, rec.Body.String(), "notices are reported once")
}

func TestScreen_sources(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/sources", map[string]string{"title": "Mine", "url": "https://media.test/mine.m3u8"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = h.do(http.MethodPost, "/sources", map[string]string{"title": "Again", "url": "https://media.test/mine.m3u8"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"added":false}`, rec.Body.String())
	rec = h.do(http.MethodPost, "/sources", map[string]string{"title": "Padded", "url": "  https://media.test/mine.m3u8\n"})
	assert.Equal(t, http.StatusOK, rec.Code, "urls are trimmed before they reach the history")
	rec = h.do(http.MethodPost, "/sources", map[string]string{"title": "Empty"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = h.do(http.MethodPost, "/sources", map[string]string{"title": "Blank", "url": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodDelete, "/sources/0", nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/sources/7", nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodDelete, "/sources/x", nil).Code)

	require.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/sources/1/select", nil).Code)
	v := h.waitState("Ready")
	assert.Equal(t, "https://media.test/mine.m3u8", v.Path)

	require.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/sources/1", nil).Code)
	assert.Equal(t, 1, len(h.history.Entries()))
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPost, "/sources/1/select", nil).Code)
}

func TestScreen_rate(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/player/rate", map[string]float64{"rate": 4}).Code)
	require.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/player/rate", map[string]float64{"rate": 1.5}).Code)

	rec := h.do(http.MethodGet, "/menus/rates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var items []playback.MenuItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 4)
	assert.Equal(t, "1.5x", items[1].Title)
	assert.True(t, items[1].Active)
	assert.Equal(t, 1.5, h.snapshot().Rate)
}

func TestScreen_quality(t *testing.T) {
	h := newHarness(t)
	h.load(vodURL, "Ready")

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/player/quality", map[string]string{"quality": "4k"}).Code)
	require.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/player/quality", map[string]string{"quality": "720p"}).Code)

	rec := h.do(http.MethodGet, "/menus/qualities", nil)
	var items []playback.MenuItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 3)
	assert.Equal(t, []string{"1080p", "720p", "Auto"}, []string{items[0].Title, items[1].Title, items[2].Title})
	assert.True(t, items[1].Active)
	assert.False(t, items[2].Active)

	require.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/player/quality", map[string]string{"quality": playback.AutoQuality}).Code)
	v := h.snapshot()
	assert.True(t, v.AutoQuality)
}

func TestScreen_quiz(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusNoContent, h.do(http.MethodGet, "/quiz", nil).Code)
	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, "/quiz/answer", map[string]int{"index": 0}).Code)

	require.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/cues", map[string]string{"text": "not a question"}).Code)
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodGet, "/quiz", nil).Code, "malformed payloads are dropped")

	payload := `{"question":"Which one?","answers":["a","b","c"],"correctIndex":2}`
	require.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/cues", map[string]string{"type": "text/metadata", "text": payload}).Code)

	rec := h.do(http.MethodGet, "/quiz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, payload, rec.Body.String())
	require.NotNil(t, h.snapshot().Question)

	rec = h.do(http.MethodPost, "/quiz/answer", map[string]int{"index": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"correct":true}`, rec.Body.String())
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodGet, "/quiz", nil).Code)
}

func TestScreen_background_pauses_and_resumes(t *testing.T) {
	h := newHarness(t)
	h.load(vodURL, "Ready")
	h.do(http.MethodPost, "/player/play", nil)
	h.tick(0)
	require.Equal(t, "Playing", h.snapshot().State)

	require.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/app/background", nil).Code)
	v := h.snapshot()
	assert.True(t, v.Background)
	assert.Equal(t, "Ready", v.State)

	require.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/app/active", nil).Code)
	h.tick(0)
	v = h.snapshot()
	assert.False(t, v.Background)
	assert.Equal(t, "Playing", v.State)
}

func TestScreen_background_keeps_paused(t *testing.T) {
	h := newHarness(t)
	h.load(vodURL, "Ready")

	h.do(http.MethodPost, "/app/background", nil)
	h.do(http.MethodPost, "/app/active", nil)
	h.tick(0)
	assert.Equal(t, "Ready", h.snapshot().State)
}

func TestScreen_websocket_snapshots(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.router)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	h.load(vodURL, "Ready")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var v view
		require.NoError(t, json.Unmarshal(msg, &v))
		if v.Path == vodURL && v.State == "Ready" {
			break
		}
	}
	assert.Equal(t, 1, h.hub.Viewers(context.Background()))
}

func TestScreen_stopped(t *testing.T) {
	h := newHarness(t)
	h.cancel()
	assert.ErrorIs(t, <-h.done, context.Canceled)
	h.done <- nil

	assert.ErrorIs(t, h.screen.Play(context.Background()), ErrStopped)
	assert.Equal(t, http.StatusServiceUnavailable, h.do(http.MethodGet, "/snapshot", nil).Code)
}

func TestHandler_health(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}
