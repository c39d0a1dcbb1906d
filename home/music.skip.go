package home

import (
	"context"
	"errors"
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"

	"github.com/leeineian/tempo/player"
	"github.com/leeineian/tempo/proc"
	"github.com/leeineian/tempo/sys"
)

func handleMusicSkip(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	s, guildID, ok := guildContext(event)
	if !ok || !requireControl(event, s, guildID) {
		return
	}
	p, ok := s.Players.Get(guildID)
	if !ok {
		respond(event, sys.ErrPlayerNotPlaying, true)
		return
	}
	amount, ok := data.OptInt("amount")
	if !ok {
		amount = 1
	}

	_ = event.DeferCreateMessage(false)
	ctx, cancel := context.WithTimeout(sys.AppContext, playTimeout)
	defer cancel()

	skipped, err := p.Skip(ctx, amount)
	editDeferred(event, textContainer(skipText(p, skipped, err)))
}

func skipText(p *player.Player, skipped int, err error) string {
	if err != nil && !errors.Is(err, player.ErrEngineFailure) {
		return errorText(err)
	}
	if cur, ok := p.CurrentTrack(); ok {
		return fmt.Sprintf(sys.MsgPlayerSkippedNext, skipped, cur.Metadata.Title)
	}
	if err != nil {
		return errorText(err)
	}
	return fmt.Sprintf(sys.MsgPlayerSkippedToEnd, skipped)
}

// requireControl lets a user drive playback only from the bot's channel.
// Owners are exempt.
func requireControl(event *events.ApplicationCommandInteractionCreate, s *proc.Services, guildID snowflake.ID) bool {
	botChannel, ok := s.Voice.ChannelOf(guildID)
	if !ok || sys.GlobalConfig.IsOwner(event.User().ID.String()) {
		return true
	}
	if userChannel, in := s.Voice.CurrentChannelOf(guildID, event.User().ID); in && userChannel == botChannel {
		return true
	}
	respond(event, fmt.Sprintf(sys.ErrPlayerWrongChannel, botChannel), true)
	return false
}
