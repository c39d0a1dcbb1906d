package proc

import (
	"context"
	"fmt"
	"sync"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/time/rate"

	"github.com/leeineian/tempo/media"
	"github.com/leeineian/tempo/sys"
)

type announcement struct {
	channelID snowflake.ID
	text      string
}

// ChannelAnnouncer posts "now playing" messages to the text channel where a
// guild's playback was last requested.
type ChannelAnnouncer struct {
	mu       sync.Mutex
	channels map[snowflake.ID]snowflake.ID

	queue   chan announcement
	limiter *rate.Limiter
	send    func(ctx context.Context, channelID snowflake.ID, text string) error
}

func NewChannelAnnouncer(client *bot.Client) *ChannelAnnouncer {
	a := newChannelAnnouncer(nil)
	a.send = func(ctx context.Context, channelID snowflake.ID, text string) error {
		_, err := client.Rest.CreateMessage(channelID, discord.NewMessageCreateBuilder().
			SetIsComponentsV2(true).
			AddComponents(discord.NewContainer(discord.NewTextDisplay(text))).
			Build(), rest.WithCtx(ctx))
		return err
	}
	return a
}

func newChannelAnnouncer(send func(ctx context.Context, channelID snowflake.ID, text string) error) *ChannelAnnouncer {
	return &ChannelAnnouncer{
		channels: make(map[snowflake.ID]snowflake.ID),
		queue:    make(chan announcement, 32),
		limiter:  rate.NewLimiter(rate.Limit(2), 4),
		send:     send,
	}
}

// Bind routes the guild's announcements to channelID.
func (a *ChannelAnnouncer) Bind(guildID, channelID snowflake.ID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.channels[guildID] = channelID
}

func (a *ChannelAnnouncer) Unbind(guildID snowflake.ID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.channels, guildID)
}

func (a *ChannelAnnouncer) NowPlaying(guildID snowflake.ID, track media.Track) {
	a.mu.Lock()
	channelID, ok := a.channels[guildID]
	a.mu.Unlock()
	if !ok {
		return
	}

	text := fmt.Sprintf(sys.MsgPlayerNowPlayingLink, track.Metadata.Title, track.Metadata.URL, media.FormatDuration(track.Metadata.Duration))
	select {
	case a.queue <- announcement{channelID: channelID, text: text}:
	default:
		sys.LogPlayer("Announcement queue full, dropped now playing for guild %s", guildID)
	}
}

// Run delivers queued announcements until ctx ends.
func (a *ChannelAnnouncer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-a.queue:
			if err := a.limiter.Wait(ctx); err != nil {
				return
			}
			if err := a.send(ctx, msg.channelID, msg.text); err != nil {
				sys.LogPlayer("Failed to announce in channel %s: %v", msg.channelID, err)
			}
		}
	}
}
