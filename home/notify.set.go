package home

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"

	"github.com/leeineian/tempo/notify"
	"github.com/leeineian/tempo/proc"
	"github.com/leeineian/tempo/sys"
)

func handleNotifySet(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	s := proc.Current()
	if s == nil {
		respond(event, sys.ErrBotNotReady, true)
		return
	}

	_ = event.DeferCreateMessage(false)
	ctx, cancel := context.WithTimeout(sys.AppContext, 10*time.Second)
	defer cancel()

	// The deferred response is the message the delivery links back to.
	origin, err := event.Client().Rest.GetInteractionResponse(event.ApplicationID(), event.Token(), rest.WithCtx(ctx))
	if err != nil {
		sys.LogNotifier("Failed to fetch origin message: %v", err)
		editDeferred(event, textContainer(sys.ErrNotifyOriginNotFound))
		return
	}

	req := notify.Request{
		ChannelID: event.Channel().ID(),
		UserID:    event.User().ID,
		MessageID: origin.ID,
		When:      data.String("when"),
		Note:      data.String("note"),
	}
	if g := event.GuildID(); g != nil {
		req.GuildID = *g
	}

	n, err := s.Notifier.Schedule(ctx, req)
	if err != nil {
		editDeferred(event, textContainer(errorText(err)))
		return
	}
	editDeferred(event, textContainer(createdText(n)))
}

func createdText(n notify.Notification) string {
	at := notify.FormatTime(n.NotifyAt)
	if n.Note == "" {
		return fmt.Sprintf(sys.MsgNotifyCreated, at)
	}
	return fmt.Sprintf(sys.MsgNotifyCreatedNote, at, n.Note)
}
