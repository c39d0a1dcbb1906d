package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

const (
	trackFields    = "%(id)s\t%(title)s\t%(uploader)s\t%(duration)s\t%(webpage_url)s\t%(thumbnail)s"
	playlistFields = "%(playlist_id)s\t%(playlist_title)s\t%(id)s\t%(title)s\t%(uploader)s\t%(duration)s\t%(url)s"
)

func ytdlpResolveTrack(ctx context.Context, u string) (*Track, error) {
	res, err := ytdlp.New().
		Print(trackFields).
		NoPlaylist().
		NoWarnings().
		IgnoreConfig().
		Run(ctx, "--skip-download", u)
	if err != nil {
		return nil, fmt.Errorf("%w: yt-dlp: %v", ErrUpstreamFailure, err)
	}
	tracks := parseTrackLines(res.Stdout)
	if len(tracks) == 0 {
		return nil, ErrNotFound
	}
	return &tracks[0], nil
}

func ytdlpExtractPlaylist(ctx context.Context, u string, max int) (*Playlist, error) {
	res, err := ytdlp.New().
		FlatPlaylist().
		Print(playlistFields).
		PlaylistItems(fmt.Sprintf("1-%d", max)).
		NoWarnings().
		IgnoreConfig().
		Run(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%w: yt-dlp: %v", ErrUpstreamFailure, err)
	}
	pl := parsePlaylistLines(res.Stdout, max)
	if len(pl.Tracks) == 0 {
		return nil, ErrNotFound
	}
	pl.URL = u
	return pl, nil
}

// Stream writes the best audio stream of u to out until the source ends or
// ctx is cancelled.
func Stream(ctx context.Context, u string, out io.Writer) error {
	cmd := ytdlp.New().
		Format("bestaudio[ext=webm]/bestaudio").
		Output("-").
		NoSimulate().
		NoPart().
		NoPlaylist().
		NoCheckFormats().
		NoWarnings().
		IgnoreConfig().
		BuildCommand(ctx, u)

	cmd.Stdout = out
	cmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: yt-dlp start: %v", ErrUpstreamFailure, err)
	}
	if err := cmd.Wait(); err != nil {
		// the reader closing first shows up as a broken pipe
		if ctx.Err() != nil || strings.Contains(strings.ToLower(stderr.String()), "broken pipe") {
			return nil
		}
		return fmt.Errorf("%w: yt-dlp: %v: %s", ErrUpstreamFailure, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func parseTrackLines(out string) []Track {
	var tracks []Track
	for _, l := range strings.Split(strings.TrimSpace(out), "\n") {
		ps := strings.Split(l, "\t")
		if len(ps) < 6 || ps[0] == "" {
			continue
		}
		tracks = append(tracks, Track{
			ID: ps[0],
			Metadata: Metadata{
				Title:        ps[1],
				Channel:      orEmpty(ps[2]),
				Duration:     parseSeconds(ps[3]),
				URL:          ps[4],
				ThumbnailURL: orEmpty(ps[5]),
			},
		})
	}
	return tracks
}

func parsePlaylistLines(out string, max int) *Playlist {
	pl := &Playlist{}
	for _, l := range strings.Split(strings.TrimSpace(out), "\n") {
		if len(pl.Tracks) >= max {
			break
		}
		ps := strings.Split(l, "\t")
		if len(ps) < 7 || ps[2] == "" {
			continue
		}
		if pl.ID == "" {
			pl.ID, pl.Title = orEmpty(ps[0]), orEmpty(ps[1])
		}
		u := ps[6]
		if !strings.HasPrefix(u, "http") {
			u = "https://www.youtube.com/watch?v=" + ps[2]
		}
		pl.Tracks = append(pl.Tracks, Track{
			ID: ps[2],
			Metadata: Metadata{
				Title:    ps[3],
				Channel:  orEmpty(ps[4]),
				Duration: parseSeconds(ps[5]),
				URL:      u,
			},
		})
	}
	return pl
}

// yt-dlp prints NA for missing fields
func orEmpty(s string) string {
	if s == "NA" {
		return ""
	}
	return s
}

func parseSeconds(s string) time.Duration {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

// parseDurationColon parses strings like "3:20" or "1:05:20".
func parseDurationColon(s string) time.Duration {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0
	}
	var total int
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second
}
