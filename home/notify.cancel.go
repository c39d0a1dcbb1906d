package home

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"

	"github.com/leeineian/tempo/notify"
	"github.com/leeineian/tempo/proc"
	"github.com/leeineian/tempo/sys"
)

func handleNotifyCancel(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	s := proc.Current()
	if s == nil {
		respond(event, sys.ErrBotNotReady, true)
		return
	}
	id, err := snowflake.Parse(strings.TrimSpace(data.String("id")))
	if err != nil {
		respond(event, sys.ErrNotifyNotFound, true)
		return
	}

	ctx, cancel := context.WithTimeout(sys.AppContext, 5*time.Second)
	defer cancel()
	if err := s.Notifier.Cancel(ctx, event.User().ID, id); err != nil {
		respond(event, errorText(err), true)
		return
	}
	respond(event, sys.MsgNotifyCancelled, true)
}

func handleNotifyAutocomplete(event *events.AutocompleteInteractionCreate) {
	s := proc.Current()
	if s == nil {
		_ = event.AutocompleteResult(nil)
		return
	}
	_ = event.AutocompleteResult(notificationChoices(s.Notifier.PendingFor(event.User().ID), event.Data.String("id")))
}

func notificationChoices(pending []notify.Notification, typed string) []discord.AutocompleteChoice {
	typed = strings.ToLower(strings.TrimSpace(typed))
	choices := make([]discord.AutocompleteChoice, 0, min(len(pending), 25))
	for _, n := range pending {
		if len(choices) == 25 {
			break
		}
		name := notify.FormatTime(n.NotifyAt)
		if n.Note != "" {
			name = fmt.Sprintf("%s - %s", name, n.Note)
		}
		if typed != "" && !strings.Contains(strings.ToLower(name), typed) && !strings.HasPrefix(n.MessageID.String(), typed) {
			continue
		}
		choices = append(choices, discord.AutocompleteChoiceString{
			Name:  truncate(name, 100),
			Value: n.MessageID.String(),
		})
	}
	return choices
}
