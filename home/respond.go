package home

import (
	"errors"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"

	"github.com/leeineian/tempo/media"
	"github.com/leeineian/tempo/notify"
	"github.com/leeineian/tempo/player"
	"github.com/leeineian/tempo/proc"
	"github.com/leeineian/tempo/sys"
)

const queuePreview = 10

func textContainer(content string) discord.ContainerComponent {
	return discord.NewContainer(discord.NewTextDisplay(content))
}

func respond(event *events.ApplicationCommandInteractionCreate, content string, ephemeral bool) {
	err := event.CreateMessage(discord.NewMessageCreateBuilder().
		SetIsComponentsV2(true).
		AddComponents(textContainer(content)).
		SetEphemeral(ephemeral).
		Build())
	if err != nil {
		sys.LogError("Failed to respond to /%s: %v", event.Data.CommandName(), err)
	}
}

// editDeferred replaces the body of a deferred response.
func editDeferred(event *events.ApplicationCommandInteractionCreate, components ...discord.LayoutComponent) {
	_, err := event.Client().Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(),
		discord.NewMessageUpdateBuilder().
			SetIsComponentsV2(true).
			SetComponents(components...).
			Build())
	if err != nil {
		sys.LogError("Failed to edit response to /%s: %v", event.Data.CommandName(), err)
	}
}

// guildContext resolves the services and guild for a guild-only command,
// replying with an error when either is missing.
func guildContext(event *events.ApplicationCommandInteractionCreate) (*proc.Services, snowflake.ID, bool) {
	guildID := event.GuildID()
	if guildID == nil {
		respond(event, sys.ErrPlayerGuildOnly, true)
		return nil, 0, false
	}
	s := proc.Current()
	if s == nil {
		respond(event, sys.ErrBotNotReady, true)
		return nil, 0, false
	}
	return s, *guildID, true
}

// errorText maps a domain error to the message shown to the user.
func errorText(err error) string {
	switch {
	case errors.Is(err, player.ErrNotInVoice):
		return sys.ErrPlayerNotInVoice
	case errors.Is(err, player.ErrNotPlaying):
		return sys.ErrPlayerNotPlaying
	case errors.Is(err, player.ErrAlreadyPlaying):
		return sys.ErrPlayerAlreadyPlaying
	case errors.Is(err, player.ErrEmptyQueue):
		return sys.ErrPlayerEmptyQueue
	case errors.Is(err, player.ErrEngineFailure):
		return sys.ErrPlayerEngine
	case errors.Is(err, media.ErrNotFound):
		return sys.ErrPlayerNoResults
	case errors.Is(err, media.ErrUpstreamFailure):
		return sys.ErrPlayerSearchFailed
	case errors.Is(err, notify.ErrInvalidTimeFormat):
		return sys.ErrNotifyInvalidFormat
	case errors.Is(err, notify.ErrStorageFailure):
		return sys.ErrNotifySaveFailed
	case errors.Is(err, notify.ErrNotFound):
		return sys.ErrNotifyNotFound
	}
	return fmt.Sprintf(sys.MsgGenericError, err)
}

func describeEnqueue(res player.EnqueueResult, playlist *media.Playlist) string {
	if playlist != nil {
		if res.Started {
			return fmt.Sprintf(sys.MsgPlayerPlaylistStarted, res.Track.Metadata.Title, res.Added-1, playlist.Title)
		}
		return fmt.Sprintf(sys.MsgPlayerPlaylistQueued, res.Added, playlist.Title)
	}
	if res.Started {
		return nowPlayingText(res.Track)
	}
	return fmt.Sprintf(sys.MsgPlayerQueued, res.Track.Metadata.Title, res.Position)
}

func nowPlayingText(t media.Track) string {
	return fmt.Sprintf(sys.MsgPlayerNowPlayingLink, t.Metadata.Title, t.Metadata.URL, media.FormatDuration(t.Metadata.Duration))
}

func formatQueue(snap player.Snapshot) string {
	var sb strings.Builder
	if snap.Current != nil {
		sb.WriteString(nowPlayingText(*snap.Current))
		sb.WriteString("\n\n")
	}
	if len(snap.Queue) == 0 {
		sb.WriteString(sys.MsgPlayerQueueEmpty)
		return sb.String()
	}

	fmt.Fprintf(&sb, sys.MsgPlayerQueueHeader, len(snap.Queue))
	for i, t := range snap.Queue {
		if i == queuePreview {
			fmt.Fprintf(&sb, sys.MsgPlayerQueueMore, len(snap.Queue)-queuePreview)
			break
		}
		fmt.Fprintf(&sb, sys.MsgPlayerQueueItem, i+1, truncate(t.String(), 80), media.FormatDuration(t.Metadata.Duration))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
