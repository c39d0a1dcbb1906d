package player

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
)

// Signal is an asynchronous notification routed to a guild's player.
type Signal interface {
	Guild() snowflake.ID
}

// TrackEnded is raised by a Handle when its track finishes or is stopped.
type TrackEnded struct {
	GuildID    snowflake.ID
	Generation uint64
}

// DriverDisconnected is raised when the bot's voice link drops.
type DriverDisconnected struct {
	GuildID snowflake.ID
}

// MembersChanged is raised when a member's voice state changes in a guild
// where the bot holds a voice session.
type MembersChanged struct {
	GuildID snowflake.ID
}

func (s TrackEnded) Guild() snowflake.ID         { return s.GuildID }
func (s DriverDisconnected) Guild() snowflake.ID { return s.GuildID }
func (s MembersChanged) Guild() snowflake.ID     { return s.GuildID }

func (r *Registry) handle(ctx context.Context, sig Signal) {
	switch s := sig.(type) {
	case TrackEnded:
		r.onTrackEnded(ctx, s)
	case DriverDisconnected:
		r.log.Info(fmt.Sprintf("Voice connection lost in guild %s", s.GuildID))
		r.Teardown(ctx, s.GuildID)
	case MembersChanged:
		if r.voice != nil && r.voice.HumanCount(s.GuildID) == 0 {
			r.log.Info(fmt.Sprintf("Voice channel empty in guild %s, leaving", s.GuildID))
			r.Teardown(ctx, s.GuildID)
		}
	default:
		r.log.Warn(fmt.Sprintf("Unhandled signal %T", sig))
	}
}

func (r *Registry) onTrackEnded(ctx context.Context, s TrackEnded) {
	p, ok := r.Get(s.GuildID)
	if !ok {
		return
	}
	next, stale, err := p.trackEnded(ctx, s.Generation)
	if stale {
		return
	}
	if err != nil {
		r.log.Error(fmt.Sprintf("Queue advance failed in guild %s: %v", s.GuildID, err))
		return
	}
	if next != nil && r.announcer != nil {
		r.announcer.NowPlaying(s.GuildID, *next)
	}
}

// Teardown leaves voice, force-stops playback and drops the guild's player.
// Failures are logged, never returned.
func (r *Registry) Teardown(ctx context.Context, guildID snowflake.ID) {
	if r.voice != nil {
		if err := r.voice.Leave(ctx, guildID); err != nil {
			r.log.Warn(fmt.Sprintf("Leave failed in guild %s: %v", guildID, err))
		}
	}

	p, ok := r.Get(guildID)
	if !ok {
		return
	}
	if err := p.StopPlayback(); err != nil {
		r.log.Warn(fmt.Sprintf("Stop failed in guild %s: %v", guildID, err))
	}
	r.remove(guildID, p)
}
