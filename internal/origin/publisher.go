package origin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"playback-console/internal/platform/logger"
)

// DemoRenditions are the renditions published for the demo streams.
var DemoRenditions = []Rendition{
	{ID: "1080p", Bandwidth: 6_000_000, Resolution: "1920x1080"},
	{ID: "720p", Bandwidth: 3_000_000, Resolution: "1280x720"},
	{ID: "360p", Bandwidth: 800_000, Resolution: "640x360"},
}

// Publisher feeds synthetic segments into the origin so the console has
// local live and recorded streams to play.
type Publisher struct {
	svc        *Service
	renditions []Rendition
	segment    time.Duration
	log        *slog.Logger
}

// NewPublisher returns a Publisher that writes segment-long segments for
// each of renditions. log may be nil.
func NewPublisher(svc *Service, renditions []Rendition, segment time.Duration, log *slog.Logger) *Publisher {
	if log == nil {
		log = logger.Discard()
	}
	if segment <= 0 {
		segment = 4 * time.Second
	}
	return &Publisher{svc: svc, renditions: renditions, segment: segment, log: log}
}

// PublishRecorded writes count segments per rendition and ends the stream.
func (p *Publisher) PublishRecorded(id StreamID, count int) error {
	for seq := int64(0); seq < int64(count); seq++ {
		if err := p.publish(id, seq); err != nil {
			return err
		}
	}
	p.svc.EndStream(id)
	p.log.Info("recorded stream published", slog.String("stream_id", string(id)), slog.Int("segments", count))
	return nil
}

// RunLive appends one segment per rendition every segment interval until
// ctx is done, then ends the stream.
func (p *Publisher) RunLive(ctx context.Context, id StreamID) error {
	ticker := time.NewTicker(p.segment)
	defer ticker.Stop()

	var seq int64
	if err := p.publish(id, seq); err != nil {
		return err
	}
	p.log.Info("live stream started", slog.String("stream_id", string(id)))
	for {
		select {
		case <-ctx.Done():
			p.svc.EndStream(id)
			return nil
		case <-ticker.C:
			seq++
			if err := p.publish(id, seq); err != nil {
				return err
			}
		}
	}
}

func (p *Publisher) publish(id StreamID, seq int64) error {
	for _, r := range p.renditions {
		seg := Segment{
			Sequence:   seq,
			Duration:   p.segment.Seconds(),
			URI:        fmt.Sprintf("%d.ts", seq),
			Bandwidth:  r.Bandwidth,
			Resolution: r.Resolution,
		}
		if err := p.svc.RegisterSegment(id, r.ID, seg); err != nil {
			return fmt.Errorf("publish %s/%s #%d: %w", id, r.ID, seq, err)
		}
	}
	return nil
}
