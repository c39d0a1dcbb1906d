package home

import (
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/tempo/notify"
	"github.com/leeineian/tempo/proc"
	"github.com/leeineian/tempo/sys"
)

const listLimit = 20

func handleNotifyList(event *events.ApplicationCommandInteractionCreate) {
	s := proc.Current()
	if s == nil {
		respond(event, sys.ErrBotNotReady, true)
		return
	}
	respond(event, formatNotifications(s.Notifier.PendingFor(event.User().ID)), true)
}

func formatNotifications(pending []notify.Notification) string {
	if len(pending) == 0 {
		return sys.MsgNotifyNone
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, sys.MsgNotifyListHeader, len(pending))
	for i, n := range pending {
		if i == listLimit {
			fmt.Fprintf(&sb, sys.MsgPlayerQueueMore, len(pending)-listLimit)
			break
		}
		note := n.Note
		if note == "" {
			note = "-"
		}
		fmt.Fprintf(&sb, sys.MsgNotifyListItem, notify.FormatTime(n.NotifyAt), truncate(note, 60), n.MessageID)
	}
	return strings.TrimRight(sb.String(), "\n")
}
