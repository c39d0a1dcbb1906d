package proc

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/gateway"

	"github.com/leeineian/tempo/sys"
)

func rotationInterval() time.Duration {
	return time.Duration(15+rand.IntN(46)) * time.Second
}

// presenceRotator cycles the listening activity through a set of live
// figures, never showing the same text twice in a row.
type presenceRotator struct {
	sources []func() string
	set     func(ctx context.Context, text string) error
	last    string
}

func newPresenceRotator(client *bot.Client, s *Services) *presenceRotator {
	return &presenceRotator{
		sources: []func() string{
			func() string { return playingStatus(s) },
			func() string { return pendingStatus(len(s.Notifier.Pending())) },
			func() string { return uptimeStatus(time.Since(sys.StartupTime)) },
			func() string {
				if client.Gateway == nil {
					return ""
				}
				return latencyStatus(client.Gateway.Latency())
			},
		},
		set: func(ctx context.Context, text string) error {
			return client.SetPresence(ctx,
				gateway.WithOnlineStatus(discord.OnlineStatusOnline),
				gateway.WithListeningActivity(text),
			)
		},
	}
}

func (r *presenceRotator) Run(ctx context.Context) {
	for {
		next := rotationInterval()
		r.update(ctx, next)
		select {
		case <-time.After(next):
		case <-ctx.Done():
			return
		}
	}
}

func (r *presenceRotator) update(ctx context.Context, next time.Duration) {
	text := r.pick()
	if err := r.set(ctx, text); err != nil {
		sys.LogPresence(sys.MsgPresenceUpdateFail, err)
		return
	}
	r.last = text
	sys.LogPresence(sys.MsgPresenceRotated, text, next)
}

func (r *presenceRotator) pick() string {
	var available []string
	for _, src := range r.sources {
		if text := src(); text != "" {
			available = append(available, text)
		}
	}
	if len(available) == 0 {
		return "/music play"
	}

	choices := available[:0:0]
	for _, text := range available {
		if text != r.last {
			choices = append(choices, text)
		}
	}
	if len(choices) == 0 {
		return available[0]
	}
	return choices[rand.IntN(len(choices))]
}

func playingStatus(s *Services) string {
	playing := 0
	for _, snap := range s.Players.Snapshots() {
		if snap.Playing {
			playing++
		}
	}
	if playing == 0 {
		return ""
	}
	if playing == 1 {
		return "music in 1 server"
	}
	return fmt.Sprintf("music in %d servers", playing)
}

func pendingStatus(n int) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprintf("%d pending notifications", n)
}

func uptimeStatus(d time.Duration) string {
	return fmt.Sprintf("for %dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

func latencyStatus(ping time.Duration) string {
	if ping == 0 {
		return ""
	}
	return fmt.Sprintf("at %dms", ping.Milliseconds())
}
