package origin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"playback-console/internal/platform/logger"
	"playback-console/internal/platform/metrics"
)

const playlistContentType = "application/vnd.apple.mpegurl"

// Handler exposes the origin over HTTP.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler for svc. log and m may be nil.
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{svc: svc, log: log, metrics: m}
}

// Routes mounts the origin endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/streams", h.ListStreams)
	r.Route("/streams/{stream_id}", func(r chi.Router) {
		r.Get("/master.m3u8", h.GetMaster)
		r.Post("/end", h.EndStream)
		r.Route("/renditions/{rendition}", func(r chi.Router) {
			r.Post("/segments", h.RegisterSegment)
			r.Get("/playlist.m3u8", h.GetPlaylist)
		})
	})
}

// RegisterSegment handles POST /streams/{stream_id}/renditions/{rendition}/segments.
// Body: {"sequence": 42, "duration": 4.0, "uri": "42.ts"}.
func (h *Handler) RegisterSegment(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))
	renditionID := RenditionID(chi.URLParam(r, "rendition"))

	var seg Segment
	if err := json.NewDecoder(r.Body).Decode(&seg); err != nil {
		h.log.Debug("invalid segment body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.svc.RegisterSegment(streamID, renditionID, seg); err != nil {
		switch {
		case errors.Is(err, ErrInvalidSegment):
			w.WriteHeader(http.StatusBadRequest)
		case errors.Is(err, ErrStreamEnded):
			h.log.Info("segment rejected, stream ended",
				slog.String("stream_id", string(streamID)),
				slog.String("rendition", string(renditionID)),
				slog.Int64("sequence", seg.Sequence))
			w.WriteHeader(http.StatusConflict)
		default:
			h.log.Error("register segment failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}

	h.log.Debug("segment registered",
		slog.String("stream_id", string(streamID)),
		slog.String("rendition", string(renditionID)),
		slog.Int64("sequence", seg.Sequence))
	if h.metrics != nil {
		h.metrics.IncSegmentsRegistered()
	}
	w.WriteHeader(http.StatusCreated)
}

// GetPlaylist handles GET /streams/{stream_id}/renditions/{rendition}/playlist.m3u8.
func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))
	renditionID := RenditionID(chi.URLParam(r, "rendition"))

	body, ok, err := h.svc.MediaPlaylist(streamID, renditionID)
	if err != nil {
		h.log.Error("render playlist failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writePlaylist(w, body)
}

// ListStreams handles GET /streams.
func (h *Handler) ListStreams(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(h.svc.Streams()); err != nil {
		h.log.Error("encode streams failed", slog.String("error", err.Error()))
	}
}

// GetMaster handles GET /streams/{stream_id}/master.m3u8.
func (h *Handler) GetMaster(w http.ResponseWriter, r *http.Request) {
	body, ok := h.svc.MasterPlaylist(StreamID(chi.URLParam(r, "stream_id")))
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writePlaylist(w, body)
}

// EndStream handles POST /streams/{stream_id}/end.
func (h *Handler) EndStream(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))
	h.svc.EndStream(streamID)
	h.log.Info("stream ended", slog.String("stream_id", string(streamID)))
	if h.metrics != nil {
		h.metrics.IncStreamsEnded()
	}
	w.WriteHeader(http.StatusOK)
}

func writePlaylist(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", playlistContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
