package player

import (
	"context"
	"errors"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/mock"

	"github.com/leeineian/tempo/media"
)

func tr(id string) media.Track {
	return media.Track{ID: id, Metadata: media.Metadata{Title: id}}
}

func ids(tracks []media.Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.ID
	}
	return out
}

type fakeHandle struct {
	mu      sync.Mutex
	track   media.Track
	stopped bool
	volume  float64
	stopErr error
	onEnded []func()
}

func (h *fakeHandle) Stop() error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return ErrAlreadyStopped
	}
	h.stopped = true
	fns := h.onEnded
	h.onEnded = nil
	err := h.stopErr
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return err
}

// End simulates the track finishing on its own.
func (h *fakeHandle) End() {
	_ = h.Stop()
}

func (h *fakeHandle) SetVolume(v float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.volume = v
	return nil
}

func (h *fakeHandle) Volume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.volume
}

func (h *fakeHandle) OnEnded(fn func()) {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		fn()
		return
	}
	h.onEnded = append(h.onEnded, fn)
	h.mu.Unlock()
}

type fakeEngine struct {
	mu      sync.Mutex
	fail    map[string]bool
	handles []*fakeHandle
}

func newFakeEngine(failing ...string) *fakeEngine {
	e := &fakeEngine{fail: make(map[string]bool)}
	for _, id := range failing {
		e.fail[id] = true
	}
	return e
}

func (e *fakeEngine) Start(_ context.Context, _ snowflake.ID, t media.Track) (Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail[t.ID] {
		return nil, errors.New("cannot decode " + t.ID)
	}
	h := &fakeHandle{track: t}
	e.handles = append(e.handles, h)
	return h, nil
}

func (e *fakeEngine) last() *fakeHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.handles) == 0 {
		return nil
	}
	return e.handles[len(e.handles)-1]
}

func (e *fakeEngine) started() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.handles))
	for i, h := range e.handles {
		out[i] = h.track.ID
	}
	return out
}

type memVolumes struct {
	mu      sync.Mutex
	levels  map[snowflake.ID]int
	saveErr error
}

func newMemVolumes() *memVolumes {
	return &memVolumes{levels: make(map[snowflake.ID]int)}
}

func (m *memVolumes) GuildVolume(_ context.Context, id snowflake.ID) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.levels[id]
	return v, ok, nil
}

func (m *memVolumes) SaveGuildVolume(_ context.Context, id snowflake.ID, v int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.levels[id] = v
	return nil
}

type MockVoice struct {
	mock.Mock
}

func (m *MockVoice) Join(ctx context.Context, guildID, channelID snowflake.ID) error {
	return m.Called(guildID, channelID).Error(0)
}

func (m *MockVoice) Leave(ctx context.Context, guildID snowflake.ID) error {
	return m.Called(guildID).Error(0)
}

func (m *MockVoice) CurrentChannelOf(guildID, userID snowflake.ID) (snowflake.ID, bool) {
	args := m.Called(guildID, userID)
	return args.Get(0).(snowflake.ID), args.Bool(1)
}

func (m *MockVoice) HumanCount(guildID snowflake.ID) int {
	return m.Called(guildID).Int(0)
}

type recordingAnnouncer struct {
	mu     sync.Mutex
	tracks []string
}

func (a *recordingAnnouncer) NowPlaying(_ snowflake.ID, t media.Track) {
	a.mu.Lock()
	a.tracks = append(a.tracks, t.ID)
	a.mu.Unlock()
}

func (a *recordingAnnouncer) announced() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.tracks...)
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Publish(e Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *recordingSink) types() []EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EventType, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}

func playlistOf(trackIDs ...string) media.Playlist {
	pl := media.Playlist{ID: "PL"}
	for _, id := range trackIDs {
		pl.Tracks = append(pl.Tracks, tr(id))
	}
	return pl
}
