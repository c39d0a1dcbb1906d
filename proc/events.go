package proc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/leeineian/tempo/player"
	"github.com/leeineian/tempo/sys"
)

// eventEnvelope is the JSON payload published for every player event.
type eventEnvelope struct {
	ID string `json:"id"`
	player.Event
}

// RedisPublisher broadcasts player events on a redis pub/sub channel.
// Publish never blocks; events are dropped when the buffer is full.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	queue   chan player.Event
	done    chan struct{}
}

// NewRedisPublisher connects to url and checks the connection.
func NewRedisPublisher(ctx context.Context, url, channel string) (*RedisPublisher, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	return newRedisPublisher(rdb, channel), nil
}

func newRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{
		rdb:     rdb,
		channel: channel,
		queue:   make(chan player.Event, 256),
		done:    make(chan struct{}),
	}
}

func (p *RedisPublisher) Publish(ev player.Event) {
	select {
	case p.queue <- ev:
	default:
		sys.LogWarn(sys.MsgEventsDropped, ev.Type, ev.GuildID)
	}
}

// Run forwards queued events to redis until ctx ends, then flushes what is
// left in the buffer.
func (p *RedisPublisher) Run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case ev := <-p.queue:
			p.send(ctx, ev)
		case <-ctx.Done():
			flushCtx := context.WithoutCancel(ctx)
			for {
				select {
				case ev := <-p.queue:
					p.send(flushCtx, ev)
				default:
					return
				}
			}
		}
	}
}

func (p *RedisPublisher) send(ctx context.Context, ev player.Event) {
	data, err := json.Marshal(eventEnvelope{ID: uuid.NewString(), Event: ev})
	if err != nil {
		sys.LogError(sys.MsgEventsPublishFail, err)
		return
	}
	if err := p.rdb.Publish(ctx, p.channel, string(data)).Err(); err != nil {
		sys.LogError(sys.MsgEventsPublishFail, err)
	}
}

// Close waits for Run to return and closes the client.
func (p *RedisPublisher) Close() error {
	<-p.done
	return p.rdb.Close()
}
