package home

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/tempo/sys"
)

func handleMusicVolume(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	s, guildID, ok := guildContext(event)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(sys.AppContext, 5*time.Second)
	defer cancel()
	p := s.Players.Acquire(ctx, guildID)

	percent, ok := data.OptInt("percent")
	if !ok {
		respond(event, fmt.Sprintf(sys.MsgPlayerVolumeCurrent, p.DisplayVolume()), true)
		return
	}
	if !requireControl(event, s, guildID) {
		return
	}

	level, err := p.SetVolume(ctx, percent)
	if err != nil {
		sys.LogPlayer("Volume for guild %s not saved: %v", guildID, err)
		respond(event, fmt.Sprintf(sys.MsgPlayerVolumeNotSaved, level), false)
		return
	}
	respond(event, fmt.Sprintf(sys.MsgPlayerVolumeSet, level), false)
}
