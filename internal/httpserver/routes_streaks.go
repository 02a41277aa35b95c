package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cryptods8/openframedl-sub001/internal/apperr"
	"github.com/cryptods8/openframedl-sub001/internal/freeze"
	"github.com/cryptods8/openframedl-sub001/internal/game"
	"github.com/cryptods8/openframedl-sub001/internal/leaderboard"
)

var errInvalidLimit = apperr.New(apperr.Validation, "invalid_limit", "limit must be a non-negative integer")

func (s *Server) mountStreaks(r chi.Router) {
	r.Get("/streak", s.handleStreak)
	r.Route("/freezes", func(r chi.Router) {
		r.Get("/", s.handleListFreezes)
		r.Get("/balance", s.handleBalance)
		r.Post("/claim", s.handleClaim)
		r.Post("/purchase", s.handlePurchase)
		r.Post("/apply", s.handleApply)
		r.Post("/backfill", s.handleBackfill)
	})
}

// handleStreak reports the caller's streak as of ?date= (default today).
func (s *Server) handleStreak(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("date")
	if ref != "" && !game.IsDateKey(ref) {
		writeError(w, r, errInvalidDate)
		return
	}
	st, err := s.streaks.Get(r.Context(), s.identity(w, r), ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleListFreezes(w http.ResponseWriter, r *http.Request) {
	mints, err := s.freezes.Mints(r.Context(), s.identity(w, r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if mints == nil {
		mints = []*freeze.Mint{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"mints": mints})
}

// handleBalance reports the on-chain freeze balance; lookups that fail report 0.
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int64{"balance": s.freezes.Balance(r.Context(), s.identity(w, r))})
}

type claimReq struct {
	MintID string `json:"mintId"`
	TxHash string `json:"txHash"`
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, errBadJSON)
		return
	}
	m, err := s.freezes.Claim(r.Context(), s.identity(w, r), req.MintID, req.TxHash)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type purchaseReq struct {
	TxHash string `json:"txHash"`
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, errBadJSON)
		return
	}
	m, err := s.freezes.Purchase(r.Context(), s.identity(w, r), req.TxHash)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

type applyReq struct {
	GameKey string `json:"gameKey"`
	TxHash  string `json:"txHash"`
}

// handleApply covers a missed day; the streak and streak leaderboard change.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var req applyReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, errBadJSON)
		return
	}
	a, err := s.freezes.Apply(r.Context(), s.identity(w, r), req.GameKey, req.TxHash)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.ranker.Invalidate(r.Context(), s.today())
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	n, err := s.freezes.BackfillEarned(r.Context(), s.identity(w, r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"granted": n})
}

// handleLeaderboard serves GET /leaderboard?type=score|wins|streak&from=&to=&limit=.
// Authenticated callers outside the top entries get their own row appended.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	typ, err := leaderboard.ParseType(q.Get("type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			writeError(w, r, errInvalidLimit)
			return
		}
	}
	b, err := s.ranker.Rank(r.Context(), typ, leaderboard.Window{From: q.Get("from"), To: q.Get("to")}, limit, authenticated(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
