package proc

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/voice"
	"github.com/disgoorg/snowflake/v2"

	"github.com/leeineian/tempo/player"
	"github.com/leeineian/tempo/sys"
)

// ErrVoiceBusy is returned by Join when the bot already sits in another
// channel of the same guild.
var ErrVoiceBusy = errors.New("already connected to another channel")

// VoiceSystem owns the bot's voice connections, one per guild.
type VoiceSystem struct {
	client *bot.Client

	mu       sync.Mutex
	sessions map[snowflake.ID]*voiceSession

	// Signals receives lifecycle signals for guilds with a session.
	Signals func(player.Signal)
}

type voiceSession struct {
	conn      voice.Conn
	channelID snowflake.ID
}

func NewVoiceSystem(client *bot.Client) *VoiceSystem {
	return &VoiceSystem{
		client:   client,
		sessions: make(map[snowflake.ID]*voiceSession),
	}
}

// Join connects to channelID. Joining the channel the bot is already in is a
// no-op.
func (vs *VoiceSystem) Join(ctx context.Context, guildID, channelID snowflake.ID) error {
	vs.mu.Lock()
	if s, ok := vs.sessions[guildID]; ok {
		vs.mu.Unlock()
		if s.channelID == channelID {
			return nil
		}
		return ErrVoiceBusy
	}
	s := &voiceSession{conn: vs.client.VoiceManager.CreateConn(guildID), channelID: channelID}
	vs.sessions[guildID] = s
	vs.mu.Unlock()

	if err := s.conn.Open(ctx, channelID, false, true); err != nil {
		vs.mu.Lock()
		if vs.sessions[guildID] == s {
			delete(vs.sessions, guildID)
		}
		vs.mu.Unlock()
		s.conn.Close(context.WithoutCancel(ctx))
		return err
	}

	sys.LogVoice(sys.MsgVoiceJoined, channelID, guildID)
	return nil
}

// Leave closes the guild's connection. It is safe to call without one.
func (vs *VoiceSystem) Leave(ctx context.Context, guildID snowflake.ID) error {
	vs.mu.Lock()
	s, ok := vs.sessions[guildID]
	delete(vs.sessions, guildID)
	vs.mu.Unlock()
	if !ok {
		return nil
	}

	s.conn.SetOpusFrameProvider(nil)
	s.conn.Close(ctx)
	sys.LogVoice(sys.MsgVoiceLeft, guildID)
	return nil
}

// Conn returns the guild's open connection.
func (vs *VoiceSystem) Conn(guildID snowflake.ID) (voice.Conn, bool) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	s, ok := vs.sessions[guildID]
	if !ok {
		return nil, false
	}
	return s.conn, true
}

// ChannelOf returns the channel the bot is connected to in the guild.
func (vs *VoiceSystem) ChannelOf(guildID snowflake.ID) (snowflake.ID, bool) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	s, ok := vs.sessions[guildID]
	if !ok {
		return 0, false
	}
	return s.channelID, true
}

func (vs *VoiceSystem) CurrentChannelOf(guildID, userID snowflake.ID) (snowflake.ID, bool) {
	state, ok := vs.client.Caches.VoiceState(guildID, userID)
	if !ok || state.ChannelID == nil {
		return 0, false
	}
	return *state.ChannelID, true
}

func (vs *VoiceSystem) HumanCount(guildID snowflake.ID) int {
	channelID, ok := vs.ChannelOf(guildID)
	if !ok {
		return 0
	}
	return countHumans(vs.client.Caches.VoiceStates(guildID), channelID, vs.client.ID(), func(userID snowflake.ID) bool {
		m, ok := vs.client.Caches.Member(guildID, userID)
		return ok && m.User.Bot
	})
}

// Shutdown closes every connection.
func (vs *VoiceSystem) Shutdown(ctx context.Context) {
	vs.mu.Lock()
	ids := make([]snowflake.ID, 0, len(vs.sessions))
	for id := range vs.sessions {
		ids = append(ids, id)
	}
	vs.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = vs.Leave(ctx, id)
		}()
	}
	wg.Wait()
}

func (vs *VoiceSystem) onVoiceStateUpdate(event *events.GuildVoiceStateUpdate) {
	state := event.VoiceState
	selfID := event.Client().ID()

	vs.mu.Lock()
	s, ok := vs.sessions[state.GuildID]
	if ok && state.UserID == selfID && state.ChannelID != nil && *state.ChannelID != s.channelID {
		sys.LogVoice(sys.MsgVoiceMoved, *state.ChannelID, state.GuildID)
		s.channelID = *state.ChannelID
	}
	vs.mu.Unlock()

	if sig := classifyVoiceUpdate(state, selfID, ok); sig != nil && vs.Signals != nil {
		if _, disconnected := sig.(player.DriverDisconnected); disconnected {
			sys.LogVoice(sys.MsgVoiceDisconnected, state.GuildID)
		}
		vs.Signals(sig)
	}
}

// classifyVoiceUpdate maps a voice state update to the signal it raises, if
// any. Updates for guilds without a session raise nothing.
func classifyVoiceUpdate(state discord.VoiceState, selfID snowflake.ID, hasSession bool) player.Signal {
	if !hasSession {
		return nil
	}
	if state.UserID == selfID && state.ChannelID == nil {
		return player.DriverDisconnected{GuildID: state.GuildID}
	}
	return player.MembersChanged{GuildID: state.GuildID}
}

func countHumans(states iter.Seq[discord.VoiceState], channelID, selfID snowflake.ID, isBot func(snowflake.ID) bool) int {
	n := 0
	for state := range states {
		if state.ChannelID == nil || *state.ChannelID != channelID || state.UserID == selfID {
			continue
		}
		if !isBot(state.UserID) {
			n++
		}
	}
	return n
}
