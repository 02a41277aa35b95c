// HTTP routes for single-player rounds.
//   - POST /games               → load or create a daily, practice or custom game
//   - GET  /games/{id}          → fetch one of the caller's games
//   - POST /games/{id}/guess    → submit a guess
//   - POST /games/{id}/undo     → drop the last guess
//   - POST /games/{id}/reset    → restart a practice or custom game
//   - POST /games/validate      → dry-run a guess without saving it
//
// Finishing a round fans out to the streak freeze ledger (daily wins), the
// leaderboard cache (daily results) and the arena engine (arena rounds).

package httpserver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cryptods8/openframedl-sub001/internal/apperr"
	"github.com/cryptods8/openframedl-sub001/internal/game"
)

const (
	modeDaily    = "daily"
	modePractice = "practice"
	modeCustom   = "custom"
)

var (
	errUnknownMode  = apperr.New(apperr.Validation, "unknown_mode", "mode must be daily, practice or custom")
	errInvalidDate  = apperr.New(apperr.Validation, "invalid_date", "daily games can only be played for today or earlier")
	errWordRequired = apperr.New(apperr.Validation, "word_required", "a custom game needs a valid word")
	errNotPractice  = apperr.New(apperr.Validation, "invalid_game_key", "game key does not match the mode")
)

func (s *Server) mountGames(r chi.Router) {
	r.Route("/games", func(r chi.Router) {
		r.Post("/", s.handleNewGame)
		r.Post("/validate", s.handleValidate)
		r.Get("/{id}", s.handleGetGame)
		r.Post("/{id}/guess", s.handleGuess)
		r.Post("/{id}/undo", s.handleUndo)
		r.Post("/{id}/reset", s.handleReset)
	})
}

type newGameReq struct {
	Mode       string `json:"mode"`              // "daily" (default) | "practice" | "custom"
	Date       string `json:"date,omitempty"`    // daily only; defaults to today
	GameKey    string `json:"gameKey,omitempty"` // resume a practice/custom game
	Word       string `json:"word,omitempty"`    // custom only
	IsHardMode bool   `json:"isHardMode"`
}

// handleNewGame resolves the natural key for the requested mode and returns
// the caller's existing game for it or a fresh one.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, errBadJSON)
		return
	}
	user := s.identity(w, r)

	var (
		key  game.UserGameKey
		pick game.PreCreateFunc
	)
	switch req.Mode {
	case modeDaily, "":
		date := req.Date
		if date == "" {
			date = s.today()
		}
		if !game.IsDateKey(date) || date > s.today() {
			writeError(w, r, errInvalidDate)
			return
		}
		key = game.UserGameKey{UserKey: user, GameKey: date, IsDaily: true}
		pick = s.dailyWord
	case modePractice:
		key = game.UserGameKey{UserKey: user, GameKey: req.GameKey}
		if key.GameKey == "" {
			key.GameKey = game.PracticeKey()
		} else if !game.IsPracticeKey(key.GameKey) {
			writeError(w, r, errNotPractice)
			return
		}
		pick = s.randomWord
	case modeCustom:
		key = game.UserGameKey{UserKey: user, GameKey: req.GameKey}
		if key.GameKey == "" {
			key.GameKey = game.CustomKey(uuid.NewString())
		} else if !game.IsCustomKey(key.GameKey) {
			writeError(w, r, errNotPractice)
			return
		}
		word := game.NormalizeGuess(req.Word)
		pick = func(context.Context, game.UserGameKey) (string, error) {
			if !s.words.IsValidWord(word) {
				return "", errWordRequired
			}
			return word, nil
		}
	default:
		writeError(w, r, errUnknownMode)
		return
	}

	g, err := s.games.LoadOrCreate(r.Context(), key, game.CreateOptions{PreCreate: pick, IsHardMode: req.IsHardMode})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, game.ToGuessedGame(g))
}

func (s *Server) dailyWord(_ context.Context, key game.UserGameKey) (string, error) {
	w := s.words.DailyWord(key.GameKey, s.cfg.DailySalt)
	if w == "" {
		return "", apperr.Internalf(nil, "no answer words loaded")
	}
	return w, nil
}

func (s *Server) randomWord(context.Context, game.UserGameKey) (string, error) {
	return s.words.RandomAnswer()
}

// loadOwned fetches the game in the URL and hides other players' games.
func (s *Server) loadOwned(w http.ResponseWriter, r *http.Request) (*game.Game, bool) {
	user := s.identity(w, r)
	g, err := s.games.Load(r.Context(), chi.URLParam(r, "id"))
	if err == nil && g.UserKey != user {
		err = game.ErrGameNotFound
	}
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return g, true
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	g, ok := s.loadOwned(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, game.ToGuessedGame(g))
}

type guessReq struct {
	Guess string `json:"guess"`
}

type guessRes struct {
	Game             game.GuessedGame      `json:"game"`
	ValidationResult game.ValidationResult `json:"validationResult"`
}

// handleGuess applies a guess. A rejected guess answers 422 with the
// unchanged game and the reason.
func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	var req guessReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, errBadJSON)
		return
	}
	g, ok := s.loadOwned(w, r)
	if !ok {
		return
	}
	guess := s.games.Guess
	if g.ArenaID != nil {
		guess = s.arenas.Guess
	}
	next, res, err := guess(r.Context(), g, req.Guess)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res != game.Valid {
		writeJSON(w, http.StatusUnprocessableEntity, guessRes{Game: game.ToGuessedGame(next), ValidationResult: res})
		return
	}
	if next.Status.Terminal() {
		s.gameFinished(r.Context(), next)
	}
	writeJSON(w, http.StatusOK, guessRes{Game: game.ToGuessedGame(next), ValidationResult: res})
}

// gameFinished runs the follow-ups of a daily round that just ended. Failures
// are logged; the guess itself is already saved. Arena rounds are followed up
// by the arena engine.
func (s *Server) gameFinished(ctx context.Context, g *game.Game) {
	if g.IsDaily {
		s.ranker.Invalidate(ctx, g.GameKey)
		if g.IsWon() {
			if m, err := s.freezes.CheckMilestone(ctx, g.UserKey, g.GameKey); err != nil {
				log.Warn().Err(err).Str("user", g.UserKey.String()).Str("gameKey", g.GameKey).Msg("milestone check failed")
			} else if m != nil {
				log.Info().Str("user", g.UserKey.String()).Str("mint", m.ID).Msg("milestone freeze granted")
			}
		}
	}
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	g, ok := s.loadOwned(w, r)
	if !ok {
		return
	}
	next, err := s.games.UndoGuess(r.Context(), g)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, game.ToGuessedGame(next))
}

// handleReset redraws the word of a practice game; custom games keep theirs.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	g, ok := s.loadOwned(w, r)
	if !ok {
		return
	}
	var pick game.PreCreateFunc
	if game.IsPracticeKey(g.GameKey) {
		pick = s.randomWord
	}
	next, err := s.games.Reset(r.Context(), g, pick)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, game.ToGuessedGame(next))
}

type validateReq struct {
	GameID string `json:"gameId"`
	Guess  string `json:"guess"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, errBadJSON)
		return
	}
	user := s.identity(w, r)
	g, err := s.games.Load(r.Context(), req.GameID)
	if err == nil && g.UserKey != user {
		err = game.ErrGameNotFound
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]game.ValidationResult{"validationResult": s.games.ValidateGuess(g, req.Guess)})
}
