package console

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"playback-console/internal/platform/logger"
	"playback-console/internal/playback"
	"playback-console/internal/quiz"
	"playback-console/internal/sources"
)

// Handler exposes a Screen over HTTP.
type Handler struct {
	screen *Screen
	hub    *Hub
	log    *slog.Logger
}

// NewHandler returns a Handler for screen. hub may be nil to disable /ws.
func NewHandler(screen *Screen, hub *Hub, log *slog.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{screen: screen, hub: hub, log: log}
}

// Routes mounts the console endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/snapshot", h.GetSnapshot)
	if h.hub != nil {
		r.Get("/ws", h.hub.ServeWS)
	}

	r.Route("/player", func(r chi.Router) {
		r.Post("/play", h.Play)
		r.Post("/pause", h.Pause)
		r.Post("/load", h.Load)
		r.Post("/rate", h.SetRate)
		r.Post("/quality", h.SetQuality)
	})
	r.Route("/scrub", func(r chi.Router) {
		r.Post("/begin", h.ScrubBegin)
		r.Post("/move", h.ScrubMove)
		r.Post("/end", h.ScrubEnd)
		r.Post("/cancel", h.ScrubCancel)
	})
	r.Get("/notices", h.GetNotices)

	r.Route("/sources", func(r chi.Router) {
		r.Get("/", h.ListSources)
		r.Post("/", h.AddSource)
		r.Delete("/{index}", h.RemoveSource)
		r.Post("/{index}/select", h.SelectSource)
	})
	r.Get("/menus/rates", h.GetRateMenu)
	r.Get("/menus/qualities", h.GetQualityMenu)

	r.Get("/quiz", h.GetQuestion)
	r.Post("/quiz/answer", h.AnswerQuestion)
	r.Post("/cues", h.InjectCue)

	r.Post("/app/background", h.EnterBackground)
	r.Post("/app/active", h.BecomeActive)
}

type loadRequest struct {
	URL string `json:"url"`
}

type rateRequest struct {
	Rate float64 `json:"rate"`
}

type qualityRequest struct {
	Quality string `json:"quality"`
}

type scrubRequest struct {
	Fraction float64 `json:"fraction"`
}

type sourceRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type answerRequest struct {
	Index int `json:"index"`
}

type cueRequest struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": "playback-console"})
}

// GetSnapshot handles GET /snapshot.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	v, err := h.screen.Snapshot(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Play handles POST /player/play.
func (h *Handler) Play(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.screen.Play(r.Context()))
}

// Pause handles POST /player/pause.
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.screen.Pause(r.Context()))
}

// Load handles POST /player/load. Body: {"url": "https://.../master.m3u8"}.
func (h *Handler) Load(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, r, h.screen.Load(r.Context(), req.URL))
}

// SetRate handles POST /player/rate. Body: {"rate": 1.5}.
func (h *Handler) SetRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, r, h.screen.SetRate(r.Context(), req.Rate))
}

// SetQuality handles POST /player/quality. Body: {"quality": "720p"} or "auto".
func (h *Handler) SetQuality(w http.ResponseWriter, r *http.Request) {
	var req qualityRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, r, h.screen.SetQuality(r.Context(), req.Quality))
}

// ScrubBegin handles POST /scrub/begin. Body: {"fraction": 0.25}.
func (h *Handler) ScrubBegin(w http.ResponseWriter, r *http.Request) {
	var req scrubRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, r, h.screen.ScrubBegin(r.Context(), req.Fraction))
}

// ScrubMove handles POST /scrub/move.
func (h *Handler) ScrubMove(w http.ResponseWriter, r *http.Request) {
	var req scrubRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, r, h.screen.ScrubMove(r.Context(), req.Fraction))
}

// ScrubEnd handles POST /scrub/end and reports whether a seek was issued.
func (h *Handler) ScrubEnd(w http.ResponseWriter, r *http.Request) {
	var req scrubRequest
	if !h.decode(w, r, &req) {
		return
	}
	issued, err := h.screen.ScrubEnd(r.Context(), req.Fraction)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"seek_issued": issued})
}

// ScrubCancel handles POST /scrub/cancel.
func (h *Handler) ScrubCancel(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.screen.ScrubCancel(r.Context()))
}

// GetNotices handles GET /notices. Returned notices are consumed.
func (h *Handler) GetNotices(w http.ResponseWriter, r *http.Request) {
	notices, err := h.screen.Notices(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notices)
}

// ListSources handles GET /sources.
func (h *Handler) ListSources(w http.ResponseWriter, r *http.Request) {
	list, err := h.screen.Sources(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// AddSource handles POST /sources. Body: {"title": "...", "url": "..."}.
// It answers 201 when the source was added and 200 when it already existed.
func (h *Handler) AddSource(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if !h.decode(w, r, &req) {
		return
	}
	added, err := h.screen.AddSource(r.Context(), req.Title, req.URL)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]bool{"added": added})
}

// RemoveSource handles DELETE /sources/{index}.
func (h *Handler) RemoveSource(w http.ResponseWriter, r *http.Request) {
	index, ok := h.index(w, r)
	if !ok {
		return
	}
	h.respond(w, r, h.screen.RemoveSource(r.Context(), index))
}

// SelectSource handles POST /sources/{index}/select.
func (h *Handler) SelectSource(w http.ResponseWriter, r *http.Request) {
	index, ok := h.index(w, r)
	if !ok {
		return
	}
	h.respond(w, r, h.screen.SelectSource(r.Context(), index))
}

// GetRateMenu handles GET /menus/rates.
func (h *Handler) GetRateMenu(w http.ResponseWriter, r *http.Request) {
	items, err := h.screen.RateMenu(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// GetQualityMenu handles GET /menus/qualities.
func (h *Handler) GetQualityMenu(w http.ResponseWriter, r *http.Request) {
	items, err := h.screen.QualityMenu(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// GetQuestion handles GET /quiz. It answers 204 when no question is shown.
func (h *Handler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	q, shown, err := h.screen.Question(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !shown {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// AnswerQuestion handles POST /quiz/answer. Body: {"index": 1}.
func (h *Handler) AnswerQuestion(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !h.decode(w, r, &req) {
		return
	}
	correct, err := h.screen.Answer(r.Context(), req.Index)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"correct": correct})
}

// InjectCue handles POST /cues. Body: {"type": "text/metadata", "text": "..."}.
func (h *Handler) InjectCue(w http.ResponseWriter, r *http.Request) {
	var req cueRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Type == "" {
		req.Type = string(playback.CueTextMetadata)
	}
	h.respond(w, r, h.screen.InjectCue(r.Context(), playback.Cue{Type: playback.CueType(req.Type), Text: req.Text}))
}

// EnterBackground handles POST /app/background.
func (h *Handler) EnterBackground(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.screen.EnterBackground(r.Context()))
}

// BecomeActive handles POST /app/active.
func (h *Handler) BecomeActive(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.screen.BecomeActive(r.Context()))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.log.Debug("invalid request body", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid index")
		return 0, false
	}
	return index, true
}

// respond answers 204 on success and maps err otherwise.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			slog.String("request_id", logger.RequestID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}
	writeError(w, status, err.Error())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, sources.ErrEmptyURL),
		errors.Is(err, ErrInvalidRate),
		errors.Is(err, ErrUnknownQuality):
		return http.StatusBadRequest
	case errors.Is(err, sources.ErrOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, ErrProtected):
		return http.StatusForbidden
	case errors.Is(err, quiz.ErrNoQuestion):
		return http.StatusConflict
	case errors.Is(err, ErrNoCues):
		return http.StatusNotImplemented
	case errors.Is(err, ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
