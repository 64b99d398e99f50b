package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"

	"playback-console/internal/playback"
)

// ErrNotPlaylist is returned when a URL does not serve an HLS playlist.
var ErrNotPlaylist = errors.New("not an hls playlist")

// StreamInfo is what a probe learns about a stream.
type StreamInfo struct {
	Live      bool
	Duration  float64
	Qualities []playback.Quality
}

// ProbeFunc inspects a stream URL.
type ProbeFunc func(ctx context.Context, streamURL string) (StreamInfo, error)

// Prober fetches HLS playlists to classify a stream as live or VOD and list
// its renditions. Master playlists are followed to their first variant.
type Prober struct {
	client *http.Client
}

// NewProber returns a Prober using client, or http.DefaultClient when nil.
func NewProber(client *http.Client) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	return &Prober{client: client}
}

// Probe implements ProbeFunc.
func (p *Prober) Probe(ctx context.Context, streamURL string) (StreamInfo, error) {
	base, err := url.Parse(streamURL)
	if err != nil {
		return StreamInfo{}, fmt.Errorf("parse url: %w", err)
	}
	pl, lt, err := p.fetch(ctx, base)
	if err != nil {
		return StreamInfo{}, err
	}

	var info StreamInfo
	if lt == m3u8.MASTER {
		master := pl.(*m3u8.MasterPlaylist)
		if len(master.Variants) == 0 {
			return StreamInfo{}, fmt.Errorf("%w: master playlist has no variants", ErrNotPlaylist)
		}
		info.Qualities = qualitiesOf(master.Variants)
		ref, err := url.Parse(master.Variants[0].URI)
		if err != nil {
			return StreamInfo{}, fmt.Errorf("parse variant uri: %w", err)
		}
		pl, lt, err = p.fetch(ctx, base.ResolveReference(ref))
		if err != nil {
			return StreamInfo{}, fmt.Errorf("variant: %w", err)
		}
		if lt != m3u8.MEDIA {
			return StreamInfo{}, fmt.Errorf("%w: variant is not a media playlist", ErrNotPlaylist)
		}
	}

	media := pl.(*m3u8.MediaPlaylist)
	info.Live = !media.Closed
	if !info.Live {
		for _, seg := range media.Segments {
			if seg != nil {
				info.Duration += seg.Duration
			}
		}
	}
	return info, nil
}

func (p *Prober) fetch(ctx context.Context, u *url.URL) (m3u8.Playlist, m3u8.ListType, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch playlist: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("fetch playlist: status %d", resp.StatusCode)
	}
	pl, lt, err := m3u8.DecodeFrom(bufio.NewReader(resp.Body), false)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrNotPlaylist, err)
	}
	return pl, lt, nil
}

func qualitiesOf(variants []*m3u8.Variant) []playback.Quality {
	out := make([]playback.Quality, 0, len(variants))
	seen := make(map[string]bool, len(variants))
	for _, v := range variants {
		if v == nil {
			continue
		}
		q := playback.Quality{Bandwidth: int(v.Bandwidth)}
		q.Width, q.Height = parseResolution(v.Resolution)
		if q.Height > 0 {
			q.Name = strconv.Itoa(q.Height) + "p"
		} else {
			q.Name = strconv.Itoa(q.Bandwidth/1000) + "k"
		}
		if seen[q.Name] {
			continue
		}
		seen[q.Name] = true
		out = append(out, q)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Bandwidth > out[j].Bandwidth })
	return out
}

func parseResolution(res string) (w, h int) {
	ws, hs, ok := strings.Cut(strings.ToLower(res), "x")
	if !ok {
		return 0, 0
	}
	w, _ = strconv.Atoi(ws)
	h, _ = strconv.Atoi(hs)
	return w, h
}
