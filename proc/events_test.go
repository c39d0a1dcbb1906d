package proc

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeineian/tempo/player"
)

func TestRedisPublisher_PublishesEvents(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sub := rdb.Subscribe(context.Background(), "tempo:player")
	defer sub.Close()
	_, err = sub.Receive(context.Background())
	require.NoError(t, err)

	pub := newRedisPublisher(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "tempo:player")
	ctx, cancel := context.WithCancel(context.Background())
	go pub.Run(ctx)

	pub.Publish(player.Event{
		Type:      player.EventTrackStarted,
		GuildID:   42,
		Track:     "Song - Artist",
		QueueSize: 2,
		Volume:    50,
		At:        time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC),
	})

	select {
	case msg := <-sub.Channel():
		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, "track_started", got["type"])
		assert.Equal(t, "42", got["guild_id"])
		assert.Equal(t, "Song - Artist", got["track"])
		assert.EqualValues(t, 2, got["queue_size"])
		_, err := uuid.Parse(got["id"].(string))
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	assert.NoError(t, pub.Close())
}

func TestRedisPublisher_DropsWhenFull(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	pub := newRedisPublisher(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "tempo:player")

	done := make(chan struct{})
	go func() {
		for range cap(pub.queue) + 5 {
			pub.Publish(player.Event{Type: player.EventQueueChanged, GuildID: 42})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked")
	}
	assert.Len(t, pub.queue, cap(pub.queue))
}

func TestNewRedisPublisher_BadURL(t *testing.T) {
	_, err := NewRedisPublisher(context.Background(), "not a url", "x")
	assert.Error(t, err)
}
