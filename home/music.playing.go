package home

import (
	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/tempo/sys"
)

func handleMusicPlaying(event *events.ApplicationCommandInteractionCreate) {
	s, guildID, ok := guildContext(event)
	if !ok {
		return
	}
	if p, ok := s.Players.Get(guildID); ok {
		if cur, ok := p.CurrentTrack(); ok {
			respond(event, nowPlayingText(cur), false)
			return
		}
	}
	respond(event, sys.ErrPlayerNotPlaying, true)
}
