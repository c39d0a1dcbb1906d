package player

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

type EventType string

const (
	EventTrackStarted    EventType = "track_started"
	EventPlaybackStopped EventType = "playback_stopped"
	EventQueueChanged    EventType = "queue_changed"
	EventVolumeChanged   EventType = "volume_changed"
)

// Event describes a player state change for outside observers.
type Event struct {
	Type      EventType    `json:"type"`
	GuildID   snowflake.ID `json:"guild_id"`
	Track     string       `json:"track,omitempty"`
	QueueSize int          `json:"queue_size"`
	Volume    int          `json:"volume"`
	At        time.Time    `json:"at"`
}

// EventSink receives player events. Publish must not block.
type EventSink interface {
	Publish(Event)
}
