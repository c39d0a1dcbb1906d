package proc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/leeineian/tempo/player"
	"github.com/leeineian/tempo/sys"
)

// SnapshotSource is the read side of the player registry.
type SnapshotSource interface {
	Snapshots() []player.Snapshot
}

// StatusServer exposes read-only player state over HTTP.
type StatusServer struct {
	players SnapshotSource
	srv     *http.Server
}

func NewStatusServer(addr string, players SnapshotSource) *StatusServer {
	s := &StatusServer{players: players}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *StatusServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/guilds", s.handleGuilds)
	r.Get("/guilds/{guildID}", s.handleGuild)
	return r
}

func (s *StatusServer) ListenAndServe() {
	sys.LogStatus(sys.MsgStatusListening, s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		sys.LogStatus(sys.MsgStatusServeFail, err)
	}
}

func (s *StatusServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *StatusServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(sys.StartupTime).Round(time.Second).String(),
	})
}

func (s *StatusServer) handleGuilds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.players.Snapshots())
}

func (s *StatusServer) handleGuild(w http.ResponseWriter, r *http.Request) {
	guildID, err := snowflake.Parse(chi.URLParam(r, "guildID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid guild id")
		return
	}
	for _, snap := range s.players.Snapshots() {
		if snap.GuildID == guildID {
			writeJSON(w, http.StatusOK, snap)
			return
		}
	}
	writeError(w, http.StatusNotFound, sys.MsgStatusGuildNotFound)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
