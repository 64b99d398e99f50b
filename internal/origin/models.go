package origin

import "time"

// StreamID identifies a stream published to the origin.
type StreamID string

// RenditionID identifies one rendition of a stream (e.g. "720p").
type RenditionID string

// Segment is one media segment. It is also the body of a segment
// registration; Bandwidth and Resolution describe the rendition and are
// only recorded from the first segment that carries them.
type Segment struct {
	Sequence   int64   `json:"sequence"`
	Duration   float64 `json:"duration"`
	URI        string  `json:"uri"`
	Bandwidth  uint32  `json:"bandwidth,omitempty"`
	Resolution string  `json:"resolution,omitempty"`

	ReceivedAt time.Time `json:"-"`
}

// Rendition describes a rendition for the master playlist.
type Rendition struct {
	ID         RenditionID `json:"id"`
	Bandwidth  uint32      `json:"bandwidth"`
	Resolution string      `json:"resolution,omitempty"`
}

// StreamSummary is one stream as listed by the origin. LastSegmentAt is
// when the newest segment of any rendition was registered.
type StreamSummary struct {
	ID            StreamID    `json:"id"`
	Ended         bool        `json:"ended"`
	Renditions    []Rendition `json:"renditions"`
	LastSegmentAt time.Time   `json:"last_segment_at"`
}

type renditionState struct {
	Rendition
	segments map[int64]Segment
	ended    bool
}

type streamState struct {
	id         StreamID
	renditions map[RenditionID]*renditionState
	ended      bool
}
