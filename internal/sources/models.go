package sources

import "time"

// Entity is one stream source in the history. Entities are immutable;
// URL is the unique key within a History.
type Entity struct {
	Title     string    `json:"title"`
	URL       string    `json:"urlString"`
	Timestamp time.Time `json:"timestamp"`
}

// Seed is a built-in source used when no history has been persisted.
type Seed struct {
	Title string
	URL   string
}

// Seed sets shipped with the sample hosts.
var (
	CustomUISeeds = []Seed{
		{"Live stream Landscape", "https://fcc3ddae59ed.us-west-2.playback.live-video.net/api/video/v1/us-west-2.893648527354.channel.DmumNckWFTqz.m3u8"},
		{"Recorded video Landscape", "https://d6hwdeiig07o4.cloudfront.net/ivs/956482054022/cTo5UpKS07do/2020-07-13T22-54-42.188Z/OgRXMLtq8M11/media/hls/master.m3u8"},
	}
	QuizSeeds = []Seed{
		{"Pre-defined stream 1", "https://fcc3ddae59ed.us-west-2.playback.live-video.net/api/video/v1/us-west-2.893648527354.channel.xhP3ExfcX8ON.m3u8"},
	}
	BasicSeeds = []Seed{
		{"Live stream", "https://fcc3ddae59ed.us-west-2.playback.live-video.net/api/video/v1/us-west-2.893648527354.channel.DmumNckWFTqz.m3u8"},
	}
)

// SeedSet returns the named seed set ("customui", "quiz", "basic") and how
// many of its leading rows are protected from deletion in the UI.
func SeedSet(name string) (seeds []Seed, protected int) {
	switch name {
	case "quiz":
		return QuizSeeds, 0
	case "basic":
		return BasicSeeds, 0
	default:
		return CustomUISeeds, len(CustomUISeeds)
	}
}
