package origin

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrStreamEnded is returned when registering a segment on an ended stream.
	ErrStreamEnded = errors.New("stream has ended")

	// ErrInvalidSegment is returned for segments without a URI or with a
	// non-positive duration.
	ErrInvalidSegment = errors.New("invalid segment")
)

// Repository is the concurrency-safe stream state of the origin.
type Repository struct {
	mu      sync.RWMutex
	streams map[StreamID]*streamState
	now     func() time.Time
}

// NewRepository returns an empty repository.
func NewRepository() *Repository {
	return &Repository{
		streams: make(map[StreamID]*streamState),
		now:     time.Now,
	}
}

// RegisterSegment records seg for the stream and rendition, creating them
// on first use. Duplicate sequence numbers are ignored.
func (r *Repository) RegisterSegment(streamID StreamID, renditionID RenditionID, seg Segment) error {
	if seg.URI == "" || seg.Duration <= 0 {
		return ErrInvalidSegment
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stream, ok := r.streams[streamID]
	if !ok {
		stream = &streamState{id: streamID, renditions: make(map[RenditionID]*renditionState)}
		r.streams[streamID] = stream
	}
	if stream.ended {
		return ErrStreamEnded
	}

	rendition, ok := stream.renditions[renditionID]
	if !ok {
		rendition = &renditionState{
			Rendition: Rendition{ID: renditionID},
			segments:  make(map[int64]Segment),
		}
		stream.renditions[renditionID] = rendition
	}
	if rendition.Bandwidth == 0 {
		rendition.Bandwidth = seg.Bandwidth
	}
	if rendition.Resolution == "" {
		rendition.Resolution = seg.Resolution
	}

	if _, exists := rendition.segments[seg.Sequence]; exists {
		return nil
	}
	seg.ReceivedAt = r.now().UTC()
	rendition.segments[seg.Sequence] = seg
	return nil
}

// Segments returns the rendition's segments sorted by sequence and whether
// the stream has ended. ok is false when the stream or rendition is unknown.
func (r *Repository) Segments(streamID StreamID, renditionID RenditionID) (segments []Segment, ended bool, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stream, exists := r.streams[streamID]
	if !exists {
		return nil, false, false
	}
	rendition, exists := stream.renditions[renditionID]
	if !exists {
		return nil, false, false
	}

	segments = make([]Segment, 0, len(rendition.segments))
	for _, seg := range rendition.segments {
		segments = append(segments, seg)
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].Sequence < segments[j].Sequence })
	return segments, rendition.ended, true
}

// Renditions lists a stream's renditions, highest bandwidth first.
func (r *Repository) Renditions(streamID StreamID) ([]Rendition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stream, exists := r.streams[streamID]
	if !exists {
		return nil, false
	}
	return stream.renditionList(), true
}

// Streams lists every stream, ordered by ID.
func (r *Repository) Streams() []StreamSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]StreamSummary, 0, len(r.streams))
	for id, st := range r.streams {
		out = append(out, StreamSummary{
			ID:            id,
			Ended:         st.ended,
			Renditions:    st.renditionList(),
			LastSegmentAt: st.lastSegmentAt(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (st *streamState) renditionList() []Rendition {
	out := make([]Rendition, 0, len(st.renditions))
	for _, rs := range st.renditions {
		out = append(out, rs.Rendition)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Bandwidth != out[j].Bandwidth {
			return out[i].Bandwidth > out[j].Bandwidth
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (st *streamState) lastSegmentAt() time.Time {
	var last time.Time
	for _, rs := range st.renditions {
		for _, seg := range rs.segments {
			if seg.ReceivedAt.After(last) {
				last = seg.ReceivedAt
			}
		}
	}
	return last
}

// EndStream closes a stream and its renditions. Ending an unknown or
// already ended stream is a no-op.
func (r *Repository) EndStream(streamID StreamID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stream, exists := r.streams[streamID]
	if !exists || stream.ended {
		return
	}
	stream.ended = true
	for _, rendition := range stream.renditions {
		rendition.ended = true
	}
}

// ActiveStreamCount returns the number of streams still accepting segments.
func (r *Repository) ActiveStreamCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, st := range r.streams {
		if !st.ended {
			n++
		}
	}
	return n
}
