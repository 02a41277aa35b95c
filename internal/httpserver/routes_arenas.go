package httpserver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cryptods8/openframedl-sub001/internal/arena"
	"github.com/cryptods8/openframedl-sub001/internal/game"
)

func (s *Server) mountArenas(r chi.Router) {
	r.Route("/arenas", func(r chi.Router) {
		r.Post("/", s.handleCreateArena)
		r.Get("/{id}", s.handleGetArena)
		r.Get("/{id}/standings", s.handleStandings)
		r.Post("/{id}/join", s.handleJoinArena)
		r.Post("/{id}/play", s.handlePlayArena)
		r.Post("/{id}/kick", s.handleKick(s.arenas.Kick))
		r.Post("/{id}/unkick", s.handleKick(s.arenas.Unkick))
	})
}

// arenaView is an arena as seen by one caller.
type arenaView struct {
	Arena        *arena.Arena       `json:"arena"`
	Availability arena.Availability `json:"availability"`
}

func (s *Server) handleCreateArena(w http.ResponseWriter, r *http.Request) {
	var cfg arena.Config
	if err := decode(r, &cfg); err != nil {
		writeError(w, r, errBadJSON)
		return
	}
	a, err := s.arenas.Create(r.Context(), s.identity(w, r), cfg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleGetArena(w http.ResponseWriter, r *http.Request) {
	s.writeArena(w, r, s.identity(w, r))
}

func (s *Server) writeArena(w http.ResponseWriter, r *http.Request, user game.UserKey) {
	a, av, err := s.arenas.Availability(r.Context(), chi.URLParam(r, "id"), user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, arenaView{Arena: a, Availability: av})
}

func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	st, err := s.arenas.Standings(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"standings": st})
}

type joinReq struct {
	Username string `json:"username"`
}

func (s *Server) handleJoinArena(w http.ResponseWriter, r *http.Request) {
	var req joinReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, errBadJSON)
		return
	}
	user := s.identity(w, r)
	if _, err := s.arenas.Join(r.Context(), chi.URLParam(r, "id"), user, req.Username); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeArena(w, r, user)
}

// handlePlayArena returns the caller's current round, creating the next one
// when the previous is finished.
func (s *Server) handlePlayArena(w http.ResponseWriter, r *http.Request) {
	g, err := s.arenas.PlayNextRound(r.Context(), chi.URLParam(r, "id"), s.identity(w, r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, game.ToGuessedGame(g))
}

type kickFunc func(ctx context.Context, arenaID string, actor, target game.UserKey) (*arena.Arena, error)

func (s *Server) handleKick(fn kickFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var target game.UserKey
		if err := decode(r, &target); err != nil {
			writeError(w, r, errBadJSON)
			return
		}
		if _, err := fn(r.Context(), chi.URLParam(r, "id"), s.identity(w, r), target); err != nil {
			writeError(w, r, err)
			return
		}
		s.writeArena(w, r, target)
	}
}
