package player

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/disgoorg/snowflake/v2"
)

type Options struct {
	Engine    Engine
	Voice     Voice
	Volumes   VolumeStore
	Announcer Announcer
	Events    EventSink
	Logger    *slog.Logger
	// DefaultVolume is the display volume for guilds without a stored one.
	DefaultVolume int
}

// Registry owns one Player per guild and routes signals to them. Its lock
// only guards the map.
type Registry struct {
	mu      sync.Mutex
	players map[snowflake.ID]*Player
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	generations atomic.Uint64

	engine        Engine
	voice         Voice
	volumes       VolumeStore
	announcer     Announcer
	events        EventSink
	log           *slog.Logger
	defaultVolume int
}

func NewRegistry(ctx context.Context, opts Options) *Registry {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	vol := opts.DefaultVolume
	if vol <= 0 {
		vol = DefaultVolume
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Registry{
		players:       make(map[snowflake.ID]*Player),
		ctx:           ctx,
		cancel:        cancel,
		engine:        opts.Engine,
		voice:         opts.Voice,
		volumes:       opts.Volumes,
		announcer:     opts.Announcer,
		events:        opts.Events,
		log:           log,
		defaultVolume: clampVolume(vol),
	}
}

// Acquire returns the guild's player, creating it with its stored volume.
func (r *Registry) Acquire(ctx context.Context, guildID snowflake.ID) *Player {
	if p, ok := r.Get(guildID); ok {
		return p
	}

	vol := r.defaultVolume
	if r.volumes != nil {
		stored, ok, err := r.volumes.GuildVolume(ctx, guildID)
		switch {
		case err != nil:
			r.log.Warn(fmt.Sprintf("Could not load volume for guild %s: %v", guildID, err))
		case ok:
			vol = stored
		}
	}

	p := NewPlayer(guildID, PlayerConfig{
		Engine:  r.engine,
		Volumes: r.volumes,
		Events:  r.events,
		Signal:  r.Dispatch,
		Logger:  r.log,
		Volume:  vol,

		Generations: &r.generations,
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.players[guildID]; ok {
		return existing
	}
	r.players[guildID] = p
	return p
}

func (r *Registry) Get(guildID snowflake.ID) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[guildID]
	return p, ok
}

func (r *Registry) remove(guildID snowflake.ID, p *Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.players[guildID] == p {
		delete(r.players, guildID)
	}
}

// Dispatch handles sig on its own goroutine. It never blocks.
func (r *Registry) Dispatch(sig Signal) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error(fmt.Sprintf("Recovered from panic handling %T: %v", sig, rec))
			}
		}()
		r.handle(r.ctx, sig)
	}()
}

// Snapshots returns the state of every active player ordered by guild.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	players := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p)
	}
	r.mu.Unlock()

	out := make([]Snapshot, 0, len(players))
	for _, p := range players {
		out = append(out, p.Snapshot())
	}
	slices.SortFunc(out, func(a, b Snapshot) int {
		switch {
		case a.GuildID < b.GuildID:
			return -1
		case a.GuildID > b.GuildID:
			return 1
		}
		return 0
	})
	return out
}

// Shutdown tears down every guild and waits for in-flight signals.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	ids := make([]snowflake.ID, 0, len(r.players))
	for id := range r.players {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Teardown(ctx, id)
	}
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
