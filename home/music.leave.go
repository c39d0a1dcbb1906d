package home

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/tempo/sys"
)

func handleMusicLeave(event *events.ApplicationCommandInteractionCreate) {
	s, guildID, ok := guildContext(event)
	if !ok || !requireControl(event, s, guildID) {
		return
	}
	ctx, cancel := context.WithTimeout(sys.AppContext, 10*time.Second)
	defer cancel()

	s.Players.Teardown(ctx, guildID)
	s.Announcer.Unbind(guildID)
	respond(event, sys.MsgPlayerLeft, false)
}
