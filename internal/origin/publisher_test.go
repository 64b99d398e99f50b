package origin

import (
	"context"
	"testing"
	"time"
)

func TestPublisher_PublishRecorded(t *testing.T) {
	svc := NewService(NewRepository(), 6)
	p := NewPublisher(svc, DemoRenditions, 4*time.Second, nil)

	if err := p.PublishRecorded("vod", 10); err != nil {
		t.Fatalf("PublishRecorded: %v", err)
	}
	if n := svc.ActiveStreamCount(); n != 0 {
		t.Errorf("recorded stream should be ended, %d active", n)
	}
	body, ok, err := svc.MediaPlaylist("vod", "720p")
	if err != nil || !ok {
		t.Fatalf("MediaPlaylist: ok=%v err=%v", ok, err)
	}
	pl := decodeMedia(t, body)
	if !pl.Closed || len(segmentURIs(pl)) != 10 {
		t.Errorf("expected closed playlist of 10 segments, got closed=%v n=%d", pl.Closed, len(segmentURIs(pl)))
	}

	if err := p.PublishRecorded("vod", 1); err == nil {
		t.Error("publishing into an ended stream should fail")
	}
}

func TestPublisher_RunLive(t *testing.T) {
	svc := NewService(NewRepository(), 6)
	p := NewPublisher(svc, DemoRenditions[:1], 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.RunLive(ctx, "live") }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		segs, _, _ := svc.repo.Segments("live", "1080p")
		if len(segs) >= 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("live publisher produced %d segments", len(segs))
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("RunLive: %v", err)
	}
	if n := svc.ActiveStreamCount(); n != 0 {
		t.Errorf("live stream should be ended after cancel, %d active", n)
	}
}
