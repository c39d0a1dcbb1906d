package sys

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateCommandHash(t *testing.T) {
	a := []discord.ApplicationCommandCreate{
		discord.SlashCommandCreate{Name: "music", Description: "Play music"},
	}
	b := []discord.ApplicationCommandCreate{
		discord.SlashCommandCreate{Name: "music", Description: "Play music in voice"},
	}

	assert.Len(t, calculateCommandHash(a), 64)
	assert.Equal(t, calculateCommandHash(a), calculateCommandHash(a))
	assert.NotEqual(t, calculateCommandHash(a), calculateCommandHash(b))
}

func TestFindComponentHandler(t *testing.T) {
	saved := componentHandlers
	t.Cleanup(func() { componentHandlers = saved })
	componentHandlers = map[string]func(event *events.ComponentInteractionCreate){}

	var hit string
	RegisterComponentHandler("music:pick:", func(*events.ComponentInteractionCreate) { hit = "prefix" })
	RegisterComponentHandler("notify:refresh", func(*events.ComponentInteractionCreate) { hit = "exact" })

	h := findComponentHandler("music:pick:abc123")
	require.NotNil(t, h)
	h(nil)
	assert.Equal(t, "prefix", hit)

	h = findComponentHandler("notify:refresh")
	require.NotNil(t, h)
	h(nil)
	assert.Equal(t, "exact", hit)

	assert.Nil(t, findComponentHandler("notify:refresh:extra"))
	assert.Nil(t, findComponentHandler("music:other"))
}

func TestShutdownDaemons_RunsHooks(t *testing.T) {
	var calls atomic.Int32
	activeShutdownMu.Lock()
	activeShutdownHooks = []func(){
		func() { calls.Add(1) },
		func() { panic("boom") },
		func() { calls.Add(1) },
	}
	activeShutdownMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ShutdownDaemons(ctx)

	assert.Equal(t, int32(2), calls.Load())

	// hooks run once
	ShutdownDaemons(ctx)
	assert.Equal(t, int32(2), calls.Load())
}
