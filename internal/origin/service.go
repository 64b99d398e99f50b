package origin

import (
	"fmt"
	"math"

	"github.com/grafov/m3u8"
)

// DefaultWindowSize is the number of segments a live media playlist lists.
const DefaultWindowSize = 6

// Service renders HLS playlists from the repository. Live renditions are
// served as a contiguous sliding window; ended ones as a closed playlist of
// every contiguous segment from the start.
type Service struct {
	repo       *Repository
	windowSize int
}

// NewService returns a Service over repo. If windowSize <= 0,
// DefaultWindowSize is used.
func NewService(repo *Repository, windowSize int) *Service {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Service{repo: repo, windowSize: windowSize}
}

// RegisterSegment records a segment; duplicates are idempotent.
func (s *Service) RegisterSegment(streamID StreamID, renditionID RenditionID, seg Segment) error {
	return s.repo.RegisterSegment(streamID, renditionID, seg)
}

// EndStream closes the stream; later segments are rejected.
func (s *Service) EndStream(streamID StreamID) {
	s.repo.EndStream(streamID)
}

// Streams lists the streams published to the origin.
func (s *Service) Streams() []StreamSummary { return s.repo.Streams() }

// ActiveStreamCount returns the number of live streams.
func (s *Service) ActiveStreamCount() int { return s.repo.ActiveStreamCount() }

// MediaPlaylist renders the rendition's media playlist.
func (s *Service) MediaPlaylist(streamID StreamID, renditionID RenditionID) ([]byte, bool, error) {
	segments, ended, ok := s.repo.Segments(streamID, renditionID)
	if !ok {
		return nil, false, nil
	}
	var window []Segment
	if ended {
		window = contiguousRun(segments)
	} else {
		window = visibleWindow(segments, s.windowSize)
	}
	pl, err := buildMediaPlaylist(window, ended)
	if err != nil {
		return nil, true, err
	}
	return pl, true, nil
}

// MasterPlaylist renders a master playlist listing every rendition of the stream.
func (s *Service) MasterPlaylist(streamID StreamID) ([]byte, bool) {
	renditions, ok := s.repo.Renditions(streamID)
	if !ok || len(renditions) == 0 {
		return nil, false
	}
	master := m3u8.NewMasterPlaylist()
	for _, r := range renditions {
		master.Append(fmt.Sprintf("renditions/%s/playlist.m3u8", r.ID), nil, m3u8.VariantParams{
			Bandwidth:  r.Bandwidth,
			Resolution: r.Resolution,
		})
	}
	return master.Encode().Bytes(), true
}

func buildMediaPlaylist(segments []Segment, ended bool) ([]byte, error) {
	capacity := uint(len(segments))
	if capacity == 0 {
		capacity = 1
	}
	pl, err := m3u8.NewMediaPlaylist(0, capacity)
	if err != nil {
		return nil, fmt.Errorf("new media playlist: %w", err)
	}
	if len(segments) > 0 {
		pl.SeqNo = uint64(segments[0].Sequence)
	}
	for _, seg := range segments {
		if err := pl.AppendSegment(&m3u8.MediaSegment{URI: seg.URI, Duration: seg.Duration}); err != nil {
			return nil, fmt.Errorf("append segment %d: %w", seg.Sequence, err)
		}
	}
	pl.TargetDuration = targetDuration(segments)
	if ended {
		pl.Close()
	}
	return pl.Encode().Bytes(), nil
}

// targetDuration is the ceiling of the longest segment, at least 1.
func targetDuration(segments []Segment) float64 {
	longest := 0.0
	for _, seg := range segments {
		longest = math.Max(longest, seg.Duration)
	}
	if longest <= 0 {
		return 1
	}
	return math.Ceil(longest)
}

// visibleWindow slides to the last windowSize segments, then keeps the
// contiguous run at its head so a missing sequence eventually falls off
// the back instead of stalling the playlist. segs must be sorted.
func visibleWindow(segs []Segment, windowSize int) []Segment {
	if len(segs) == 0 {
		return nil
	}
	start := 0
	if len(segs) > windowSize {
		start = len(segs) - windowSize
	}
	return contiguousRun(segs[start:])
}

// contiguousRun returns the leading segments whose sequences have no gap.
func contiguousRun(segs []Segment) []Segment {
	out := make([]Segment, 0, len(segs))
	for i, seg := range segs {
		if i > 0 && seg.Sequence != segs[i-1].Sequence+1 {
			break
		}
		out = append(out, seg)
	}
	return out
}
