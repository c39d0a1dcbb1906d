package proc

import (
	"context"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disgoorg/disgo/voice"
	"github.com/disgoorg/snowflake/v2"

	"github.com/leeineian/tempo/media"
	"github.com/leeineian/tempo/player"
	"github.com/leeineian/tempo/sys"
)

// AstiavEngine streams tracks into a guild's voice connection:
// yt-dlp -> pipe -> astiav (decode, resample, gain, opus) -> frame provider.
type AstiavEngine struct {
	voice  *VoiceSystem
	stream func(ctx context.Context, url string, out io.Writer) error

	mu     sync.Mutex
	active map[snowflake.ID]*streamHandle
}

func NewAstiavEngine(vs *VoiceSystem) *AstiavEngine {
	return &AstiavEngine{
		voice:  vs,
		stream: media.Stream,
		active: make(map[snowflake.ID]*streamHandle),
	}
}

func (e *AstiavEngine) Start(ctx context.Context, guildID snowflake.ID, track media.Track) (player.Handle, error) {
	conn, ok := e.voice.Conn(guildID)
	if !ok {
		return nil, player.ErrNotInVoice
	}

	// playback outlives the command that started it
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &streamHandle{
		guildID: guildID,
		cancel:  cancel,
		frames:  make(chan []byte, 100),
		done:    sctx.Done(),
	}
	h.gain.Store(math.Float64bits(1))
	h.release = func() { e.release(h, conn) }

	pr, pw := io.Pipe()
	go func() {
		err := e.stream(sctx, track.Metadata.URL, pw)
		if err != nil {
			sys.LogVoice(sys.MsgVoiceStreamError, track.Metadata.URL, err)
		}
		_ = pw.CloseWithError(err)
	}()
	sys.SafeGo(func() {
		defer pr.Close()
		e.transcode(sctx, h, pr, track)
	})

	e.mu.Lock()
	prev := e.active[guildID]
	e.active[guildID] = h
	conn.SetOpusFrameProvider(h)
	e.mu.Unlock()
	if prev != nil {
		_ = prev.Stop()
	}

	_ = conn.SetSpeaking(sctx, voice.SpeakingFlagMicrophone)
	return h, nil
}

func (e *AstiavEngine) transcode(ctx context.Context, h *streamHandle, r io.Reader, track media.Track) {
	t := NewAstiavTranscoder()
	defer t.Close()
	t.Gain = h.Gain

	fail := func(err error) {
		sys.LogVoice(sys.MsgVoiceEngineError, track.String(), err)
		h.push(nil)
	}
	if err := t.OpenInput(r); err != nil {
		fail(err)
		return
	}
	if err := t.SetupDecoder(); err != nil {
		fail(err)
		return
	}
	if err := t.SetupEncoder(); err != nil {
		fail(err)
		return
	}
	if err := t.Transcode(ctx, h.push); err != nil && ctx.Err() == nil {
		sys.LogVoice(sys.MsgVoiceEngineError, track.String(), err)
	}
}

// release detaches h from the connection unless a newer track replaced it.
func (e *AstiavEngine) release(h *streamHandle, conn voice.Conn) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active[h.guildID] != h {
		return
	}
	delete(e.active, h.guildID)
	conn.SetOpusFrameProvider(nil)
	_ = conn.SetSpeaking(context.Background(), 0)
}

// streamHandle is both the player's Handle and the connection's
// OpusFrameProvider for one track.
type streamHandle struct {
	guildID snowflake.ID
	cancel  context.CancelFunc
	frames  chan []byte
	done    <-chan struct{}
	gain    atomic.Uint64
	release func()

	mu      sync.Mutex
	ended   bool
	onEnded []func()
}

func (h *streamHandle) push(f []byte) {
	select {
	case h.frames <- f:
	case <-h.done:
	}
}

// ProvideOpusFrame returns io.EOF once the track is exhausted and an empty
// frame while the transcoder is still buffering.
func (h *streamHandle) ProvideOpusFrame() ([]byte, error) {
	select {
	case f := <-h.frames:
		if f == nil {
			h.finish()
			return nil, io.EOF
		}
		return f, nil
	case <-h.done:
		return nil, io.EOF
	case <-time.After(100 * time.Millisecond):
		return nil, nil
	}
}

func (h *streamHandle) Close() {
	_ = h.Stop()
}

func (h *streamHandle) Stop() error {
	if !h.finish() {
		return player.ErrAlreadyStopped
	}
	return nil
}

func (h *streamHandle) SetVolume(v float64) error {
	h.gain.Store(math.Float64bits(max(0, v)))
	return nil
}

func (h *streamHandle) Gain() float64 {
	return math.Float64frombits(h.gain.Load())
}

func (h *streamHandle) OnEnded(fn func()) {
	h.mu.Lock()
	if h.ended {
		h.mu.Unlock()
		fn()
		return
	}
	h.onEnded = append(h.onEnded, fn)
	h.mu.Unlock()
}

// finish ends the track once. It reports whether this call ended it.
func (h *streamHandle) finish() bool {
	h.mu.Lock()
	if h.ended {
		h.mu.Unlock()
		return false
	}
	h.ended = true
	callbacks := h.onEnded
	h.onEnded = nil
	h.mu.Unlock()

	h.cancel()
	// may run on the connection's audio goroutine
	if h.release != nil {
		go h.release()
	}
	for _, fn := range callbacks {
		fn()
	}
	return true
}
