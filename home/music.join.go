package home

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/tempo/sys"
)

func handleMusicJoin(event *events.ApplicationCommandInteractionCreate) {
	s, guildID, ok := guildContext(event)
	if !ok {
		return
	}
	channelID, inVoice := s.Voice.CurrentChannelOf(guildID, event.User().ID)
	if !inVoice {
		respond(event, sys.ErrPlayerNotInVoice, true)
		return
	}
	if busy, ok := busyElsewhere(s, guildID, channelID); ok {
		respond(event, fmt.Sprintf(sys.ErrPlayerVoiceBusy, busy), true)
		return
	}

	_ = event.DeferCreateMessage(false)
	ctx, cancel := context.WithTimeout(sys.AppContext, 15*time.Second)
	defer cancel()

	if err := s.Voice.Join(ctx, guildID, channelID); err != nil {
		sys.LogPlayer("Join failed in guild %s: %v", guildID, err)
		editDeferred(event, textContainer(sys.ErrPlayerJoinFailed))
		return
	}
	s.Announcer.Bind(guildID, event.Channel().ID())
	editDeferred(event, textContainer(fmt.Sprintf(sys.MsgPlayerJoined, channelID)))
}
