package home

import (
	"fmt"

	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/tempo/sys"
)

func handleMusicShuffle(event *events.ApplicationCommandInteractionCreate) {
	s, guildID, ok := guildContext(event)
	if !ok || !requireControl(event, s, guildID) {
		return
	}
	p, ok := s.Players.Get(guildID)
	if !ok {
		respond(event, sys.ErrPlayerEmptyQueue, true)
		return
	}
	n := p.Shuffle()
	if n == 0 {
		respond(event, sys.ErrPlayerEmptyQueue, true)
		return
	}
	respond(event, fmt.Sprintf(sys.MsgPlayerShuffled, n), false)
}
