package proc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeineian/tempo/media"
	"github.com/leeineian/tempo/player"
)

type staticSnapshots []player.Snapshot

func (s staticSnapshots) Snapshots() []player.Snapshot { return s }

func newTestStatus() http.Handler {
	cur := media.Track{ID: "a", Metadata: media.Metadata{Title: "Song", Channel: "Artist"}}
	return NewStatusServer(":0", staticSnapshots{
		{GuildID: 42, Playing: true, Current: &cur, Queue: []media.Track{{ID: "b"}}, Volume: 50},
		{GuildID: 43, Queue: []media.Track{}, Volume: 120},
	}).Router()
}

func TestStatus_Health(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestStatus().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestStatus_Guilds(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestStatus().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/guilds", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "42", got[0]["guild_id"])
	assert.Equal(t, true, got[0]["playing"])
	assert.EqualValues(t, 120, got[1]["volume"])
}

func TestStatus_Guild(t *testing.T) {
	tests := []struct {
		name string
		path string
		code int
	}{
		{"found", "/guilds/42", http.StatusOK},
		{"unknown", "/guilds/99", http.StatusNotFound},
		{"invalid", "/guilds/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newTestStatus().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.code, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	newTestStatus().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/guilds/42", nil))
	var snap player.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.NotNil(t, snap.Current)
	assert.Equal(t, "Song", snap.Current.Metadata.Title)
	assert.Len(t, snap.Queue, 1)
}
