package media

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func track(id string) Track {
	return Track{ID: id, Metadata: Metadata{Title: "title " + id}}
}

func testSearcher() *Searcher {
	s := NewSearcher(nil)
	s.searchMusic = func(context.Context, string) ([]Track, error) { return nil, nil }
	s.searchVideo = func(context.Context, string) ([]Track, error) { return nil, nil }
	s.resolveTrack = func(context.Context, string) (*Track, error) { return nil, ErrNotFound }
	s.resolveList = func(context.Context, string, int) (*Playlist, error) { return nil, ErrNotFound }
	return s
}

func TestClassifyQuery(t *testing.T) {
	tests := []struct {
		q    string
		want queryKind
	}{
		{"never gonna give you up", queryText},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", queryTrack},
		{"https://youtu.be/dQw4w9WgXcQ", queryTrack},
		{"https://www.youtube.com/watch?v=abc&list=PL123", queryTrack},
		{"https://www.youtube.com/playlist?list=PL123", queryPlaylist},
		{"https://soundcloud.com/artist/sets/album-name", queryPlaylist},
		{"ftp://example.com/file", queryText},
		{"youtube.com/watch?v=abc", queryText},
	}
	for _, tt := range tests {
		t.Run(tt.q, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyQuery(tt.q))
		})
	}
}

func TestMergeCandidates(t *testing.T) {
	a := []Track{track("1"), track("2"), track("3")}
	b := []Track{track("2"), track("4")}

	got := mergeCandidates(6, a, b)
	ids := make([]string, len(got))
	for i, tr := range got {
		ids[i] = tr.ID
	}
	assert.Equal(t, []string{"1", "2", "4", "3"}, ids)

	assert.Len(t, mergeCandidates(2, a, b), 2)
	assert.Empty(t, mergeCandidates(6))
}

func TestSearch_TextCapsCandidates(t *testing.T) {
	s := testSearcher()
	s.searchMusic = func(context.Context, string) ([]Track, error) {
		return []Track{track("a"), track("b"), track("c"), track("d")}, nil
	}
	s.searchVideo = func(context.Context, string) ([]Track, error) {
		return []Track{track("e"), track("f"), track("g"), track("h")}, nil
	}

	res, err := s.Search(context.Background(), "some song")
	require.NoError(t, err)
	assert.Nil(t, res.Track)
	assert.Nil(t, res.Playlist)
	assert.Len(t, res.Candidates, DefaultMaxCandidates)
}

func TestSearch_OneSourceFailing(t *testing.T) {
	s := testSearcher()
	s.searchMusic = func(context.Context, string) ([]Track, error) { return nil, errors.New("boom") }
	s.searchVideo = func(context.Context, string) ([]Track, error) { return []Track{track("x")}, nil }
	var buf bytes.Buffer
	s.log = slog.New(slog.NewTextHandler(&buf, nil))

	res, err := s.Search(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "x", res.Candidates[0].ID)
	assert.Contains(t, buf.String(), `Music search for \"q\" failed: boom`)
	assert.NotContains(t, buf.String(), "Video search")
}

func TestSearch_Errors(t *testing.T) {
	t.Run("empty query", func(t *testing.T) {
		_, err := testSearcher().Search(context.Background(), "   ")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("no results", func(t *testing.T) {
		_, err := testSearcher().Search(context.Background(), "nothing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("all sources failing", func(t *testing.T) {
		s := testSearcher()
		s.searchMusic = func(context.Context, string) ([]Track, error) { return nil, errors.New("a") }
		s.searchVideo = func(context.Context, string) ([]Track, error) { return nil, errors.New("b") }
		_, err := s.Search(context.Background(), "q")
		assert.ErrorIs(t, err, ErrUpstreamFailure)
	})
}

func TestSearch_URLs(t *testing.T) {
	s := testSearcher()
	s.resolveTrack = func(_ context.Context, u string) (*Track, error) {
		tr := track("single")
		tr.Metadata.URL = u
		return &tr, nil
	}
	var gotMax int
	s.resolveList = func(_ context.Context, u string, max int) (*Playlist, error) {
		gotMax = max
		return &Playlist{ID: "PL1", URL: u, Tracks: []Track{track("1"), track("2")}}, nil
	}

	res, err := s.Search(context.Background(), "https://youtu.be/abc")
	require.NoError(t, err)
	require.NotNil(t, res.Track)
	assert.Equal(t, "https://youtu.be/abc", res.Track.Metadata.URL)

	res, err = s.Search(context.Background(), "https://www.youtube.com/playlist?list=PL1")
	require.NoError(t, err)
	require.NotNil(t, res.Playlist)
	assert.Len(t, res.Playlist.Tracks, 2)
	assert.Equal(t, DefaultMaxPlaylist, gotMax)
}

func TestParseTrackLines(t *testing.T) {
	out := "abc\tSong\tArtist\t215.0\thttps://youtu.be/abc\thttps://img/abc.jpg\n" +
		"broken line\n" +
		"def\tOther\tNA\tNA\thttps://youtu.be/def\tNA\n"

	tracks := parseTrackLines(out)
	require.Len(t, tracks, 2)
	assert.Equal(t, "abc", tracks[0].ID)
	assert.Equal(t, 215*time.Second, tracks[0].Metadata.Duration)
	assert.Equal(t, "https://img/abc.jpg", tracks[0].Metadata.ThumbnailURL)
	assert.Equal(t, "", tracks[1].Metadata.Channel)
	assert.Zero(t, tracks[1].Metadata.Duration)
}

func TestParsePlaylistLines(t *testing.T) {
	out := "PL1\tMix\ta\tA\tX\t60\thttps://www.youtube.com/watch?v=a\n" +
		"PL1\tMix\tb\tB\tY\t120\tb\n" +
		"PL1\tMix\tc\tC\tZ\t30\thttps://www.youtube.com/watch?v=c\n"

	pl := parsePlaylistLines(out, 2)
	assert.Equal(t, "PL1", pl.ID)
	assert.Equal(t, "Mix", pl.Title)
	require.Len(t, pl.Tracks, 2)
	assert.Equal(t, "https://www.youtube.com/watch?v=b", pl.Tracks[1].Metadata.URL)
}

func TestParseDurationColon(t *testing.T) {
	assert.Equal(t, 200*time.Second, parseDurationColon("3:20"))
	assert.Equal(t, time.Hour+5*time.Minute+20*time.Second, parseDurationColon("1:05:20"))
	assert.Zero(t, parseDurationColon("live"))
	assert.Zero(t, parseDurationColon("1:x"))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "3:05", FormatDuration(185*time.Second))
	assert.Equal(t, "1:00:00", FormatDuration(time.Hour))
	assert.Equal(t, "live", FormatDuration(0))
}
