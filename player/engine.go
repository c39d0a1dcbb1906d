package player

import (
	"context"

	"github.com/disgoorg/snowflake/v2"

	"github.com/leeineian/tempo/media"
)

// Engine starts audio for a track on a guild's voice connection.
type Engine interface {
	Start(ctx context.Context, guildID snowflake.ID, track media.Track) (Handle, error)
}

// Handle controls one playing track.
type Handle interface {
	Stop() error
	SetVolume(v float64) error
	// OnEnded registers a one-shot callback fired when the track finishes or
	// is stopped. It fires immediately if the track has already ended.
	OnEnded(fn func())
}

// Voice manages a guild's voice connection.
type Voice interface {
	Join(ctx context.Context, guildID, channelID snowflake.ID) error
	Leave(ctx context.Context, guildID snowflake.ID) error
	CurrentChannelOf(guildID, userID snowflake.ID) (snowflake.ID, bool)
	// HumanCount is the number of non-bot members sharing the bot's channel.
	HumanCount(guildID snowflake.ID) int
}

// VolumeStore persists the per-guild display volume.
type VolumeStore interface {
	GuildVolume(ctx context.Context, guildID snowflake.ID) (int, bool, error)
	SaveGuildVolume(ctx context.Context, guildID snowflake.ID, volume int) error
}

// Announcer is told about tracks started by the queue advancing on its own.
// Implementations must not block.
type Announcer interface {
	NowPlaying(guildID snowflake.ID, track media.Track)
}
