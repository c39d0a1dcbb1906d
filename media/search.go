package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ppalone/ytsearch"
	"github.com/raitonoberu/ytmusic"
)

const (
	DefaultMaxCandidates = 6
	DefaultMaxPlaylist   = 50
)

// Searcher resolves user queries into tracks, candidate lists or playlists.
type Searcher struct {
	MaxCandidates int
	MaxPlaylist   int
	Timeout       time.Duration

	log *slog.Logger

	// overridable for tests
	searchMusic  func(ctx context.Context, q string) ([]Track, error)
	searchVideo  func(ctx context.Context, q string) ([]Track, error)
	resolveTrack func(ctx context.Context, u string) (*Track, error)
	resolveList  func(ctx context.Context, u string, max int) (*Playlist, error)
}

func NewSearcher(log *slog.Logger) *Searcher {
	if log == nil {
		log = slog.Default()
	}
	return &Searcher{
		MaxCandidates: DefaultMaxCandidates,
		MaxPlaylist:   DefaultMaxPlaylist,
		Timeout:       8 * time.Second,
		log:           log,
		searchMusic:   searchYTMusic,
		searchVideo:   searchYouTube,
		resolveTrack:  ytdlpResolveTrack,
		resolveList:   ytdlpExtractPlaylist,
	}
}

// Search resolves q. URLs resolve to a single track or a playlist, anything
// else is a text search returning up to MaxCandidates tracks.
func (s *Searcher) Search(ctx context.Context, q string) (Result, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return Result{}, ErrNotFound
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	switch classifyQuery(q) {
	case queryPlaylist:
		pl, err := s.resolveList(ctx, q, s.MaxPlaylist)
		if err != nil {
			return Result{}, err
		}
		return Result{Playlist: pl}, nil
	case queryTrack:
		t, err := s.resolveTrack(ctx, q)
		if err != nil {
			return Result{}, err
		}
		return Result{Track: t}, nil
	}

	tracks, err := s.searchText(ctx, q)
	if err != nil {
		return Result{}, err
	}
	return Result{Candidates: tracks}, nil
}

func (s *Searcher) searchText(ctx context.Context, q string) ([]Track, error) {
	var (
		wg           sync.WaitGroup
		music, video []Track
		musicErr     error
		videoErr     error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		music, musicErr = s.searchMusic(ctx, q)
	}()
	go func() {
		defer wg.Done()
		video, videoErr = s.searchVideo(ctx, q)
	}()
	wg.Wait()

	if musicErr != nil {
		s.log.Warn(fmt.Sprintf("Music search for %q failed: %v", q, musicErr))
	}
	if videoErr != nil {
		s.log.Warn(fmt.Sprintf("Video search for %q failed: %v", q, videoErr))
	}
	if musicErr != nil && videoErr != nil {
		return nil, errors.Join(ErrUpstreamFailure, musicErr, videoErr)
	}

	merged := mergeCandidates(s.MaxCandidates, music, video)
	if len(merged) == 0 {
		return nil, ErrNotFound
	}
	return merged, nil
}

// mergeCandidates interleaves sources in order, dropping duplicate IDs.
func mergeCandidates(max int, sources ...[]Track) []Track {
	seen := make(map[string]bool)
	var out []Track
	for i := 0; ; i++ {
		progressed := false
		for _, src := range sources {
			if i >= len(src) {
				continue
			}
			progressed = true
			t := src[i]
			if t.ID == "" || seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			out = append(out, t)
			if max > 0 && len(out) >= max {
				return out
			}
		}
		if !progressed {
			return out
		}
	}
}

type queryKind int

const (
	queryText queryKind = iota
	queryTrack
	queryPlaylist
)

func classifyQuery(q string) queryKind {
	u, err := url.Parse(q)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return queryText
	}
	vals := u.Query()
	if vals.Get("list") != "" && vals.Get("v") == "" {
		return queryPlaylist
	}
	p := strings.ToLower(u.Path)
	if strings.HasPrefix(p, "/playlist") || strings.Contains(p, "/sets/") || strings.Contains(p, "/album/") {
		return queryPlaylist
	}
	return queryTrack
}

func searchYTMusic(ctx context.Context, q string) ([]Track, error) {
	type result struct {
		tracks []Track
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		r, err := ytmusic.TrackSearch(q).Next()
		if err != nil {
			ch <- result{err: err}
			return
		}
		var out []Track
		for _, v := range r.Tracks {
			if v.VideoID == "" {
				continue
			}
			artist := ""
			if len(v.Artists) > 0 {
				artist = v.Artists[0].Name
			}
			out = append(out, Track{
				ID: v.VideoID,
				Metadata: Metadata{
					Title:   v.Title,
					Channel: artist,
					URL:     "https://music.youtube.com/watch?v=" + v.VideoID,
				},
			})
		}
		ch <- result{tracks: out}
	}()
	select {
	case r := <-ch:
		return r.tracks, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func searchYouTube(ctx context.Context, q string) ([]Track, error) {
	r, err := ytsearch.NewClient(nil).Search(ctx, q)
	if err != nil {
		return nil, err
	}
	var out []Track
	for _, v := range r.Results {
		if v.VideoID == "" {
			continue
		}
		out = append(out, Track{
			ID: v.VideoID,
			Metadata: Metadata{
				Title:    v.Title,
				Channel:  v.Channel,
				Duration: parseDurationColon(v.Duration),
				URL:      "https://www.youtube.com/watch?v=" + v.VideoID,
			},
		})
	}
	return out, nil
}
