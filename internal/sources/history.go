package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"playback-console/internal/platform/logger"
	"playback-console/internal/platform/metrics"
)

// DefaultKey is the settings key the history is stored under.
const DefaultKey = "sources_history_data"

var (
	// ErrOutOfRange is returned for an index that does not address an entity.
	ErrOutOfRange = errors.New("source index out of range")

	// ErrEmptyURL is returned when adding a source without a URL.
	ErrEmptyURL = errors.New("source url is empty")
)

// Encode serializes the full list as one blob.
func Encode(entries []Entity) ([]byte, error) {
	if entries == nil {
		entries = []Entity{}
	}
	return json.Marshal(entries)
}

// Decode parses a blob written by Encode. Any entity with an empty title or
// URL, or a repeated URL, rejects the whole blob.
func Decode(data []byte) ([]Entity, error) {
	var entries []Entity
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	if entries == nil {
		return nil, errors.New("decode history: not a list")
	}
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if e.Title == "" || e.URL == "" {
			return nil, fmt.Errorf("decode history: entry %d is incomplete", i)
		}
		if _, dup := seen[e.URL]; dup {
			return nil, fmt.Errorf("decode history: duplicate url at entry %d", i)
		}
		seen[e.URL] = struct{}{}
	}
	return entries, nil
}

// HistoryOptions configures a History. The zero value is usable.
type HistoryOptions struct {
	// Key is the settings key; DefaultKey when empty.
	Key string
	// Seeds are loaded when nothing usable is persisted.
	Seeds []Seed
	// Protected is the number of leading rows the UI must not offer to delete.
	Protected int
	Now       func() time.Time
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// History is the ordered, URL-deduplicated list of stream sources. Every
// mutation is followed by a full-list write to the settings store.
// It is not safe for concurrent use.
type History struct {
	settings  Settings
	key       string
	seeds     []Seed
	protected int
	now       func() time.Time
	log       *slog.Logger
	metrics   *metrics.Metrics

	entries []Entity
}

// NewHistory returns an empty History backed by settings. Call Load to
// populate it.
func NewHistory(settings Settings, opts HistoryOptions) *History {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &History{
		settings:  settings,
		key:       opts.Key,
		seeds:     opts.Seeds,
		protected: opts.Protected,
		now:       opts.Now,
		log:       opts.Logger,
		metrics:   opts.Metrics,
	}
}

// Load reads the persisted list. Missing, unreadable or undecodable data
// yields the seed list; Load never fails.
func (h *History) Load(ctx context.Context) []Entity {
	h.entries = h.loadOrSeed(ctx)
	return h.Entries()
}

func (h *History) loadOrSeed(ctx context.Context) []Entity {
	data, ok, err := h.settings.Get(ctx, h.key)
	switch {
	case err != nil:
		h.log.Warn("history read failed, using defaults", slog.String("key", h.key), slog.String("error", err.Error()))
	case !ok:
		h.log.Debug("no persisted history, using defaults", slog.String("key", h.key))
	default:
		entries, err := Decode(data)
		if err == nil {
			return entries
		}
		h.log.Warn("history discarded", slog.String("key", h.key), slog.String("error", err.Error()))
	}
	return h.seedEntities()
}

func (h *History) seedEntities() []Entity {
	ts := h.timestamp()
	out := make([]Entity, 0, len(h.seeds))
	for _, s := range h.seeds {
		out = append(out, Entity{Title: s.Title, URL: s.URL, Timestamp: ts})
	}
	return out
}

// Entries returns a copy of the list in insertion order.
func (h *History) Entries() []Entity {
	return append([]Entity(nil), h.entries...)
}

// Len returns the number of entities.
func (h *History) Len() int { return len(h.entries) }

// Contains reports whether url is already in the list (exact match).
func (h *History) Contains(url string) bool {
	for _, e := range h.entries {
		if e.URL == url {
			return true
		}
	}
	return false
}

// Add appends a source and persists the list. A URL already present (exact,
// case-sensitive match) makes Add a no-op returning false. Callers normalize
// the URL; Add stores it as given. An empty title falls back to the URL.
// A persistence error is returned but the in-memory append stands.
func (h *History) Add(ctx context.Context, title, url string) (bool, error) {
	if url == "" {
		return false, ErrEmptyURL
	}
	if h.Contains(url) {
		return false, nil
	}
	if strings.TrimSpace(title) == "" {
		title = url
	}
	h.entries = append(h.entries, Entity{Title: title, URL: url, Timestamp: h.timestamp()})
	if h.metrics != nil {
		h.metrics.IncSourcesAdded()
	}
	h.log.Info("source added", slog.String("url", url), slog.Int("count", len(h.entries)))
	return true, h.persist(ctx)
}

// Remove deletes the entity at index and persists the list.
func (h *History) Remove(ctx context.Context, index int) error {
	if index < 0 || index >= len(h.entries) {
		return fmt.Errorf("remove %d of %d: %w", index, len(h.entries), ErrOutOfRange)
	}
	removed := h.entries[index]
	h.entries = append(h.entries[:index:index], h.entries[index+1:]...)
	if h.metrics != nil {
		h.metrics.IncSourcesRemoved()
	}
	h.log.Info("source removed", slog.String("url", removed.URL), slog.Int("count", len(h.entries)))
	return h.persist(ctx)
}

// Select returns the URL at index.
func (h *History) Select(index int) (string, error) {
	if index < 0 || index >= len(h.entries) {
		return "", fmt.Errorf("select %d of %d: %w", index, len(h.entries), ErrOutOfRange)
	}
	return h.entries[index].URL, nil
}

// Deletable reports whether the UI should offer deletion for index.
// The leading seed rows are protected.
func (h *History) Deletable(index int) bool {
	return index >= h.protected && index < len(h.entries)
}

func (h *History) persist(ctx context.Context) error {
	data, err := Encode(h.entries)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := h.settings.Set(ctx, h.key, data); err != nil {
		h.log.Error("history write failed", slog.String("key", h.key), slog.String("error", err.Error()))
		return fmt.Errorf("persist history: %w", err)
	}
	return nil
}

// timestamp drops the monotonic reading so persisted and in-memory values compare equal.
func (h *History) timestamp() time.Time {
	return h.now().UTC().Round(0)
}
