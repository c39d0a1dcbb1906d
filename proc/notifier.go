package proc

import (
	"context"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/time/rate"

	"github.com/leeineian/tempo/notify"
	"github.com/leeineian/tempo/sys"
)

// DiscordDeliverer posts due notifications back to their origin channel.
type DiscordDeliverer struct {
	client  *bot.Client
	limiter *rate.Limiter
}

func NewDiscordDeliverer(client *bot.Client) *DiscordDeliverer {
	return &DiscordDeliverer{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(4), 10),
	}
}

func (d *DiscordDeliverer) Deliver(ctx context.Context, n notify.Notification) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := d.client.Rest.CreateMessage(n.ChannelID, discord.NewMessageCreateBuilder().
		SetIsComponentsV2(true).
		AddComponents(discord.NewContainer(discord.NewTextDisplay(deliveryText(n)))).
		Build(), rest.WithCtx(ctx))
	return err
}

func deliveryText(n notify.Notification) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "||<@%s>||\n", n.UserID)
	fmt.Fprintf(&sb, sys.MsgNotifyDelivery,
		n.UserID,
		notify.FormatTime(n.NotifyAt),
		notify.FormatTime(n.CreatedAt),
		MessageLink(n.GuildID, n.ChannelID, n.MessageID),
	)
	if n.Note != "" {
		fmt.Fprintf(&sb, sys.MsgNotifyDeliveryNote, n.Note)
	}
	return sb.String()
}

// MessageLink is the jump URL of a message. Guild 0 means a DM channel.
func MessageLink(guildID, channelID, messageID snowflake.ID) string {
	guild := "@me"
	if guildID != 0 {
		guild = guildID.String()
	}
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guild, channelID, messageID)
}

func startNotifier(ctx context.Context, n *notify.Notifier, cfg sys.NotifyConfig) (bool, func(), func()) {
	return true, func() {
			sys.LogNotifier(sys.MsgNotifyDaemonStarted, cfg.Interval, cfg.MaxAttempts)
			n.Run(ctx, cfg.Interval)
		}, func() {
			sys.LogNotifier("Shutting down notifier...")
		}
}
