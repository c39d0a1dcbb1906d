package media

import (
	"fmt"
	"time"
)

// Metadata is the display information attached to a Track.
type Metadata struct {
	Title        string        `json:"title"`
	Channel      string        `json:"channel,omitempty"`
	URL          string        `json:"url"`
	ThumbnailURL string        `json:"thumbnail_url,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Track is a single playable item. It is a plain value and is never mutated
// once resolved.
type Track struct {
	ID       string   `json:"id"`
	Metadata Metadata `json:"metadata"`
}

func (t Track) String() string {
	if t.Metadata.Channel == "" {
		return t.Metadata.Title
	}
	return fmt.Sprintf("%s - %s", t.Metadata.Title, t.Metadata.Channel)
}

// Playlist is flattened into individual tracks when enqueued.
type Playlist struct {
	ID          string
	Title       string
	Description string
	URL         string
	Tracks      []Track
}

// Result is the outcome of a search. Exactly one of Track, Candidates or
// Playlist is set.
type Result struct {
	Track      *Track
	Candidates []Track
	Playlist   *Playlist
}

// FormatDuration renders a duration as m:ss or h:mm:ss.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "live"
	}
	total := int(d.Round(time.Second).Seconds())
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
