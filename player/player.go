package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/leeineian/tempo/media"
)

const (
	MaxVolume     = 1000
	DefaultVolume = 50
)

// PlayerConfig holds the collaborators of a Player. Only Engine is required.
type PlayerConfig struct {
	Engine  Engine
	Volumes VolumeStore
	Events  EventSink
	// Signal receives TrackEnded notifications. It is called with the player
	// lock held and must not block.
	Signal func(Signal)
	Logger *slog.Logger
	// Volume is the initial display volume (0-1000).
	Volume int
	// Generations numbers started tracks. Players of one registry share it so
	// that a replaced player never reuses a generation.
	Generations *atomic.Uint64
}

// Player is the per-guild playback state machine. Every mutation holds the
// write lock for its whole critical section.
type Player struct {
	mu sync.RWMutex

	guildID    snowflake.ID
	playing    bool
	current    *media.Track
	handle     Handle
	queue      []media.Track
	volume     float64
	generation uint64
	nextGen    *atomic.Uint64

	engine  Engine
	volumes VolumeStore
	events  EventSink
	signal  func(Signal)
	log     *slog.Logger
	shuffle func(n int, swap func(i, j int))
}

// EnqueueResult describes where an enqueued item ended up.
type EnqueueResult struct {
	// Started is set when the call started playback; Track is then the track
	// now playing.
	Started bool
	Track   media.Track
	// Position is the 1-based queue position of the first added track when
	// playback was already running.
	Position int
	Added    int
}

// Snapshot is a read-only copy of a player's state.
type Snapshot struct {
	GuildID snowflake.ID  `json:"guild_id"`
	Playing bool          `json:"playing"`
	Current *media.Track  `json:"current,omitempty"`
	Queue   []media.Track `json:"queue"`
	Volume  int           `json:"volume"`
}

func NewPlayer(guildID snowflake.ID, cfg PlayerConfig) *Player {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	signal := cfg.Signal
	if signal == nil {
		signal = func(Signal) {}
	}
	gens := cfg.Generations
	if gens == nil {
		gens = new(atomic.Uint64)
	}
	return &Player{
		guildID: guildID,
		volume:  toEngineVolume(cfg.Volume),
		engine:  cfg.Engine,
		volumes: cfg.Volumes,
		events:  cfg.Events,
		signal:  signal,
		log:     log.With(slog.String("guild", guildID.String())),
		shuffle: rand.Shuffle,
		nextGen: gens,
	}
}

func (p *Player) GuildID() snowflake.ID { return p.guildID }

func (p *Player) EnqueueTrack(ctx context.Context, track media.Track) (EnqueueResult, error) {
	return p.enqueue(ctx, []media.Track{track})
}

// EnqueuePlaylist appends the playlist's tracks in order. An empty playlist
// adds nothing and leaves the player untouched.
func (p *Player) EnqueuePlaylist(ctx context.Context, pl media.Playlist) (EnqueueResult, error) {
	if len(pl.Tracks) == 0 {
		return EnqueueResult{}, nil
	}
	return p.enqueue(ctx, pl.Tracks)
}

func (p *Player) enqueue(ctx context.Context, tracks []media.Track) (EnqueueResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := EnqueueResult{Position: len(p.queue) + 1, Added: len(tracks)}
	p.queue = append(p.queue, tracks...)

	if p.playing {
		p.emitLocked(EventQueueChanged)
		return res, nil
	}

	next, err := p.advanceLocked(ctx)
	if err != nil {
		return EnqueueResult{}, err
	}
	if next != nil {
		res.Started, res.Track, res.Position = true, *next, 0
	}
	return res, nil
}

// StartPlayback starts the head of the queue.
func (p *Player) StartPlayback(ctx context.Context) (*media.Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.playing {
		return nil, ErrAlreadyPlaying
	}
	if len(p.queue) == 0 {
		return nil, ErrEmptyQueue
	}
	return p.advanceLocked(ctx)
}

// Skip discards amount-1 queued tracks and advances. It returns how many
// tracks were skipped, counting the one playing.
func (p *Player) Skip(ctx context.Context, amount int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.playing {
		return 0, ErrNotPlaying
	}
	if amount < 1 {
		amount = 1
	}
	skipped := min(amount, len(p.queue)+1)
	p.queue = p.queue[min(amount-1, len(p.queue)):]

	if _, err := p.advanceLocked(ctx); err != nil {
		return skipped, err
	}
	return skipped, nil
}

// StopTrack stops the current track but keeps the queue. State is cleared
// even when the engine reports a failure.
func (p *Player) StopTrack() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	wasPlaying := p.playing
	err := p.stopTrackLocked()
	if wasPlaying {
		p.emitLocked(EventPlaybackStopped)
	}
	return err
}

// StopPlayback stops the current track and clears the queue.
func (p *Player) StopPlayback() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.stopTrackLocked()
	p.queue = nil
	p.emitLocked(EventPlaybackStopped)
	return err
}

// SetVolume clamps percent to [0, MaxVolume], applies it to the current track
// and persists it. The new level is kept even when persisting fails.
func (p *Player) SetVolume(ctx context.Context, percent int) (int, error) {
	percent = clampVolume(percent)

	p.mu.Lock()
	p.volume = toEngineVolume(percent)
	if p.handle != nil {
		if err := p.handle.SetVolume(p.volume); err != nil {
			p.log.Warn(fmt.Sprintf("Failed to apply volume: %v", err))
		}
	}
	p.emitLocked(EventVolumeChanged)
	p.mu.Unlock()

	if p.volumes != nil {
		if err := p.volumes.SaveGuildVolume(ctx, p.guildID, percent); err != nil {
			return percent, fmt.Errorf("save volume: %w", err)
		}
	}
	return percent, nil
}

// Shuffle permutes the queue in place and returns its length.
func (p *Player) Shuffle() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.queue)
	if n > 1 {
		p.shuffle(n, func(i, j int) { p.queue[i], p.queue[j] = p.queue[j], p.queue[i] })
		p.emitLocked(EventQueueChanged)
	}
	return n
}

func (p *Player) CurrentTrack() (media.Track, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return media.Track{}, false
	}
	return *p.current, true
}

func (p *Player) Queue() []media.Track {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]media.Track(nil), p.queue...)
}

func (p *Player) IsPlaying() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.playing
}

// Volume returns the engine volume (display / 100).
func (p *Player) Volume() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.volume
}

func (p *Player) DisplayVolume() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return toDisplayVolume(p.volume)
}

func (p *Player) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Snapshot{
		GuildID: p.guildID,
		Playing: p.playing,
		Queue:   append([]media.Track{}, p.queue...),
		Volume:  toDisplayVolume(p.volume),
	}
	if p.current != nil {
		c := *p.current
		s.Current = &c
	}
	return s
}

// trackEnded runs the queue advance for an end-of-track signal. Signals for
// a handle that is no longer current are ignored.
func (p *Player) trackEnded(ctx context.Context, generation uint64) (*media.Track, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.playing || generation != p.generation {
		return nil, true, nil
	}
	next, err := p.advanceLocked(ctx)
	return next, false, err
}

// advanceLocked stops the current handle, then starts the first queued
// track that the engine accepts. An empty queue stops playback and returns a
// nil track.
func (p *Player) advanceLocked(ctx context.Context) (*media.Track, error) {
	if err := p.stopTrackLocked(); err != nil {
		p.log.Warn(err.Error())
	}

	var lastErr error
	for len(p.queue) > 0 {
		next := p.queue[0]
		p.queue = p.queue[1:]

		h, err := p.engine.Start(ctx, p.guildID, next)
		if err != nil {
			p.log.Error(fmt.Sprintf("Failed to start %q: %v", next.Metadata.Title, err))
			lastErr = err
			continue
		}

		p.generation = p.nextGen.Add(1)
		gen := p.generation
		p.current, p.handle, p.playing = &next, h, true

		if err := h.SetVolume(p.volume); err != nil {
			p.log.Warn(fmt.Sprintf("Failed to apply volume: %v", err))
		}
		guildID := p.guildID
		h.OnEnded(func() { p.signal(TrackEnded{GuildID: guildID, Generation: gen}) })

		p.emitLocked(EventTrackStarted)
		return &next, nil
	}

	p.emitLocked(EventPlaybackStopped)
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineFailure, lastErr)
	}
	return nil, nil
}

func (p *Player) stopTrackLocked() error {
	h := p.handle
	p.playing, p.current, p.handle = false, nil, nil
	if h == nil {
		return nil
	}
	if err := h.Stop(); err != nil && !errors.Is(err, ErrAlreadyStopped) {
		return fmt.Errorf("%w: stop: %v", ErrEngineFailure, err)
	}
	return nil
}

func (p *Player) emitLocked(t EventType) {
	if p.events == nil {
		return
	}
	ev := Event{
		Type:      t,
		GuildID:   p.guildID,
		QueueSize: len(p.queue),
		Volume:    toDisplayVolume(p.volume),
		At:        time.Now(),
	}
	if p.current != nil {
		ev.Track = p.current.String()
	}
	p.events.Publish(ev)
}

func clampVolume(v int) int {
	return max(0, min(v, MaxVolume))
}

func toEngineVolume(display int) float64 {
	return float64(clampVolume(display)) / 100
}

func toDisplayVolume(v float64) int {
	return int(math.Round(v * 100))
}
