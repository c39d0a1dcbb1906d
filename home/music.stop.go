package home

import (
	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/tempo/sys"
)

func handleMusicStop(event *events.ApplicationCommandInteractionCreate) {
	s, guildID, ok := guildContext(event)
	if !ok || !requireControl(event, s, guildID) {
		return
	}
	p, ok := s.Players.Get(guildID)
	if !ok {
		respond(event, sys.ErrPlayerNotPlaying, true)
		return
	}
	if err := p.StopPlayback(); err != nil {
		sys.LogPlayer("Stop failed in guild %s: %v", guildID, err)
	}
	respond(event, sys.MsgPlayerStopped, false)
}
