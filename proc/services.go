package proc

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/tempo/media"
	"github.com/leeineian/tempo/notify"
	"github.com/leeineian/tempo/player"
	"github.com/leeineian/tempo/sys"
)

// Services is everything the command handlers talk to. It exists once the
// client is ready.
type Services struct {
	Voice     *VoiceSystem
	Players   *player.Registry
	Announcer *ChannelAnnouncer
	Searcher  *media.Searcher
	Notifier  *notify.Notifier

	events *RedisPublisher
	status *StatusServer
}

var current atomic.Pointer[Services]

// Current returns the running services, or nil before the client is ready.
func Current() *Services {
	return current.Load()
}

func init() {
	sys.RegisterVoiceStateUpdateHandler(func(event *events.GuildVoiceStateUpdate) {
		if s := Current(); s != nil {
			s.Voice.onVoiceStateUpdate(event)
		}
	})

	sys.OnClientReady(func(ctx context.Context, client *bot.Client) {
		// Ready fires again after a gateway resume failure
		if Current() != nil {
			return
		}
		s, err := NewServices(ctx, client, sys.GlobalConfig)
		if err != nil {
			sys.LogError("Failed to start services: %v", err)
			return
		}
		current.Store(s)
		s.registerDaemons(client)
	})
}

func NewServices(ctx context.Context, client *bot.Client, cfg *sys.Config) (*Services, error) {
	store := sys.NewStore(sys.DB)
	s := &Services{
		Voice:     NewVoiceSystem(client),
		Announcer: NewChannelAnnouncer(client),
		Searcher:  media.NewSearcher(sys.ComponentLogger("SEARCH")),
	}

	var sink player.EventSink
	if cfg.Events.RedisURL != "" {
		pub, err := NewRedisPublisher(ctx, cfg.Events.RedisURL, cfg.Events.Channel)
		if err != nil {
			sys.LogWarn("Player events disabled: %v", err)
		} else {
			s.events, sink = pub, pub
			sys.LogEvents(sys.MsgEventsConnected, cfg.Events.Channel)
		}
	}

	s.Players = player.NewRegistry(ctx, player.Options{
		Engine:        NewAstiavEngine(s.Voice),
		Voice:         s.Voice,
		Volumes:       store,
		Announcer:     s.Announcer,
		Events:        sink,
		Logger:        sys.ComponentLogger("PLAYER"),
		DefaultVolume: cfg.Player.DefaultVolume,
	})
	s.Voice.Signals = s.Players.Dispatch

	parser, err := notify.NewParser(cfg.Notify.NaturalTime)
	if err != nil {
		return nil, fmt.Errorf("time parser: %w", err)
	}
	s.Notifier, err = notify.New(ctx, parser, store, NewDiscordDeliverer(client), notify.Config{
		MaxAttempts: cfg.Notify.MaxAttempts,
		Logger:      sys.ComponentLogger("NOTIFIER"),
	})
	if err != nil {
		return nil, err
	}

	if cfg.Status.Addr != "" {
		s.status = NewStatusServer(cfg.Status.Addr, s.Players)
	}
	return s, nil
}

func (s *Services) registerDaemons(client *bot.Client) {
	notifyCfg := sys.GlobalConfig.Notify

	sys.RegisterDaemon(sys.LogNotifier, func(ctx context.Context) (bool, func(), func()) {
		return startNotifier(ctx, s.Notifier, notifyCfg)
	})

	sys.RegisterDaemon(sys.LogPlayer, func(ctx context.Context) (bool, func(), func()) {
		return true, func() { s.Announcer.Run(ctx) }, func() {
			sys.LogPlayer("Shutting down players...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			s.Players.Shutdown(shutdownCtx)
			s.Voice.Shutdown(shutdownCtx)
		}
	})

	presence := newPresenceRotator(client, s)
	sys.RegisterDaemon(sys.LogPresence, func(ctx context.Context) (bool, func(), func()) {
		return true, func() { presence.Run(ctx) }, nil
	})

	if s.events != nil {
		sys.RegisterDaemon(sys.LogEvents, func(ctx context.Context) (bool, func(), func()) {
			return true, func() { s.events.Run(ctx) }, func() {
				if err := s.events.Close(); err != nil {
					sys.LogWarn(sys.MsgEventsPublishFail, err)
				}
			}
		})
	}

	if s.status != nil {
		sys.RegisterDaemon(sys.LogStatus, func(ctx context.Context) (bool, func(), func()) {
			return true, s.status.ListenAndServe, func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = s.status.Shutdown(shutdownCtx)
			}
		})
	}
}
