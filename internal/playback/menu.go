package playback

import (
	"sort"
	"strconv"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// AutoQuality is the menu value that re-enables automatic rendition switching.
const AutoQuality = "auto"

const (
	MinPlaybackRate = 0.5
	MaxPlaybackRate = 2.0
)

// PlaybackRates are the rates offered in the speed menu, fastest first.
var PlaybackRates = []float64{2.0, 1.5, 1.0, 0.5}

// MenuItem is one entry of an action-sheet style menu. Active entries are
// the current selection and are shown disabled.
type MenuItem struct {
	Title  string `json:"title"`
	Value  string `json:"value"`
	Active bool   `json:"active"`
}

// ValidRate reports whether rate is within the engine's supported range.
func ValidRate(rate float64) bool {
	return rate >= MinPlaybackRate && rate <= MaxPlaybackRate
}

// RateMenu lists PlaybackRates with current marked active.
func RateMenu(current float64) []MenuItem {
	items := make([]MenuItem, 0, len(PlaybackRates))
	for _, r := range PlaybackRates {
		v := strconv.FormatFloat(r, 'f', 1, 64)
		items = append(items, MenuItem{Title: v + "x", Value: v, Active: r == current})
	}
	return items
}

// QualityMenu lists the auto entry and every rendition. Labels starting with
// a digit ("1080p60", "720p") come first, highest first by numeric
// collation; the rest keep their original order after them.
func QualityMenu(qualities []Quality, current string, auto bool) []MenuItem {
	items := make([]MenuItem, 0, len(qualities)+1)
	items = append(items, MenuItem{Title: "Auto", Value: AutoQuality, Active: auto})
	for _, q := range qualities {
		items = append(items, MenuItem{Title: q.Name, Value: q.Name, Active: !auto && q.Name == current})
	}

	c := collate.New(language.Und, collate.Numeric)
	sort.SliceStable(items, func(i, j int) bool {
		ni, nj := startsWithDigit(items[i].Title), startsWithDigit(items[j].Title)
		if ni && nj {
			return c.CompareString(items[i].Title, items[j].Title) > 0
		}
		return ni && !nj
	})
	return items
}

func startsWithDigit(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r != utf8.RuneError && unicode.IsDigit(r)
}
