package home

import (
	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/tempo/sys"
)

func handleMusicQueue(event *events.ApplicationCommandInteractionCreate) {
	s, guildID, ok := guildContext(event)
	if !ok {
		return
	}
	p, ok := s.Players.Get(guildID)
	if !ok {
		respond(event, sys.MsgPlayerQueueEmpty, true)
		return
	}
	respond(event, formatQueue(p.Snapshot()), false)
}
