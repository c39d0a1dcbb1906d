package home

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"

	"github.com/leeineian/tempo/media"
	"github.com/leeineian/tempo/proc"
	"github.com/leeineian/tempo/sys"
)

const playTimeout = 45 * time.Second

func handleMusicPlay(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	s, guildID, ok := guildContext(event)
	if !ok {
		return
	}
	userID := event.User().ID
	channelID, inVoice := s.Voice.CurrentChannelOf(guildID, userID)
	if !inVoice {
		respond(event, sys.ErrPlayerNotInVoice, true)
		return
	}
	if busy, ok := busyElsewhere(s, guildID, channelID); ok {
		respond(event, fmt.Sprintf(sys.ErrPlayerVoiceBusy, busy), true)
		return
	}

	_ = event.DeferCreateMessage(false)

	ctx, cancel := context.WithTimeout(sys.AppContext, playTimeout)
	defer cancel()

	query := data.String("query")
	res, err := s.Searcher.Search(ctx, query)
	if err != nil {
		sys.LogPlayer("Search for %q failed: %v", query, err)
		editDeferred(event, textContainer(errorText(err)))
		return
	}

	if len(res.Candidates) > 0 {
		editDeferred(event, pickContainer(query, res.Candidates, picks.add(&pendingPick{
			guildID: guildID,
			userID:  userID,
			tracks:  res.Candidates,
		}, sys.GlobalConfig.Player.PickTimeout, func() {
			editDeferred(event, textContainer(sys.MsgPlayerPickExpired))
		})))
		return
	}

	editDeferred(event, textContainer(play(ctx, s, guildID, channelID, event.Channel().ID(), res)))
}

// play joins the requester's channel and enqueues a resolved result. It
// returns the text to show.
func play(ctx context.Context, s *proc.Services, guildID, voiceID, textID snowflake.ID, res media.Result) string {
	if err := s.Voice.Join(ctx, guildID, voiceID); err != nil {
		if errors.Is(err, proc.ErrVoiceBusy) {
			busy, _ := s.Voice.ChannelOf(guildID)
			return fmt.Sprintf(sys.ErrPlayerVoiceBusy, busy)
		}
		sys.LogPlayer("Join failed in guild %s: %v", guildID, err)
		return sys.ErrPlayerJoinFailed
	}
	s.Announcer.Bind(guildID, textID)

	p := s.Players.Acquire(ctx, guildID)
	switch {
	case res.Playlist != nil:
		out, err := p.EnqueuePlaylist(ctx, *res.Playlist)
		if err != nil {
			return errorText(err)
		}
		if out.Added == 0 {
			return sys.ErrPlayerNoResults
		}
		return describeEnqueue(out, res.Playlist)
	case res.Track != nil:
		out, err := p.EnqueueTrack(ctx, *res.Track)
		if err != nil {
			return errorText(err)
		}
		return describeEnqueue(out, nil)
	}
	return sys.ErrPlayerNoResults
}

// busyElsewhere reports the bot's channel when it is connected somewhere
// other than channelID.
func busyElsewhere(s *proc.Services, guildID, channelID snowflake.ID) (snowflake.ID, bool) {
	cur, ok := s.Voice.ChannelOf(guildID)
	if !ok || cur == channelID {
		return 0, false
	}
	return cur, true
}

func pickContainer(query string, candidates []media.Track, customID string) discord.ContainerComponent {
	opts := make([]discord.StringSelectMenuOption, 0, len(candidates))
	for i, t := range candidates {
		opt := discord.NewStringSelectMenuOption(truncate(t.Metadata.Title, 100), strconv.Itoa(i))
		desc := media.FormatDuration(t.Metadata.Duration)
		if t.Metadata.Channel != "" {
			desc = t.Metadata.Channel + " | " + desc
		}
		opts = append(opts, opt.WithDescription(truncate(desc, 100)))
	}
	menu := discord.NewStringSelectMenu(customID, sys.MsgPlayerPickPlaceholder, opts...)
	return discord.NewContainer(
		discord.NewTextDisplay(fmt.Sprintf(sys.MsgPlayerPickPrompt, truncate(query, 200))),
		discord.NewActionRow(menu),
	)
}

func handleMusicPick(event *events.ComponentInteractionCreate) {
	menu, ok := event.Data.(discord.StringSelectMenuInteractionData)
	if !ok || len(menu.Values) == 0 {
		return
	}
	pick, err := picks.claim(event.Data.CustomID(), event.User().ID)
	switch {
	case errors.Is(err, errPickNotYours):
		replyComponent(event, sys.ErrPlayerPickNotYours)
		return
	case err != nil:
		updatePick(event, sys.ErrPlayerPickInvalid)
		return
	}

	idx, err := strconv.Atoi(menu.Values[0])
	if err != nil || idx < 0 || idx >= len(pick.tracks) {
		updatePick(event, sys.ErrPlayerPickInvalid)
		return
	}
	s := proc.Current()
	if s == nil {
		updatePick(event, sys.ErrBotNotReady)
		return
	}
	voiceID, inVoice := s.Voice.CurrentChannelOf(pick.guildID, pick.userID)
	if !inVoice {
		updatePick(event, sys.ErrPlayerNotInVoice)
		return
	}

	_ = event.DeferUpdateMessage()

	ctx, cancel := context.WithTimeout(sys.AppContext, playTimeout)
	defer cancel()
	track := pick.tracks[idx]
	text := play(ctx, s, pick.guildID, voiceID, event.Channel().ID(), media.Result{Track: &track})

	_, err = event.Client().Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(),
		discord.NewMessageUpdateBuilder().
			SetIsComponentsV2(true).
			SetComponents(textContainer(text)).
			Build())
	if err != nil {
		sys.LogError("Failed to update pick message: %v", err)
	}
}

func updatePick(event *events.ComponentInteractionCreate, content string) {
	err := event.UpdateMessage(discord.NewMessageUpdateBuilder().
		SetIsComponentsV2(true).
		SetComponents(textContainer(content)).
		Build())
	if err != nil {
		sys.LogError("Failed to update pick message: %v", err)
	}
}

func replyComponent(event *events.ComponentInteractionCreate, content string) {
	err := event.CreateMessage(discord.NewMessageCreateBuilder().
		SetIsComponentsV2(true).
		AddComponents(textContainer(content)).
		SetEphemeral(true).
		Build())
	if err != nil {
		sys.LogError("Failed to reply to component: %v", err)
	}
}
