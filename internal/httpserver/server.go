// HTTP server wiring for the Framedl backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, access log).
//   - Public endpoints: "/", "/health", "/leaderboard".
//   - Game endpoints: /games/* (daily, practice and custom rounds).
//   - Arena endpoints: /arenas/* (create, join, play, kick, standings).
//   - Streak + freeze endpoints: /streak, /freezes/*.
//
// Notes:
//   - Every route runs with optional auth: a valid JWT names the player, otherwise
//     an anonymous cookie identity is issued.
//   - Engine errors are mapped to HTTP statuses by their apperr kind.

package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/cryptods8/openframedl-sub001/internal/arena"
	"github.com/cryptods8/openframedl-sub001/internal/config"
	"github.com/cryptods8/openframedl-sub001/internal/freeze"
	"github.com/cryptods8/openframedl-sub001/internal/game"
	"github.com/cryptods8/openframedl-sub001/internal/leaderboard"
	"github.com/cryptods8/openframedl-sub001/internal/streak"
	"github.com/cryptods8/openframedl-sub001/internal/words"
)

// Deps are the engines the server routes to.
type Deps struct {
	Config  *config.Config
	Words   *words.List
	Games   *game.Engine
	Arenas  *arena.Engine
	Streaks *streak.Engine
	Freezes *freeze.Ledger
	Ranker  *leaderboard.Ranker
}

// Server bundles router and engines.
type Server struct {
	r       *chi.Mux
	cfg     *config.Config
	words   *words.List
	games   *game.Engine
	arenas  *arena.Engine
	streaks *streak.Engine
	freezes *freeze.Ledger
	ranker  *leaderboard.Ranker
	now     func() time.Time
}

// New constructs a Server, installs middleware, and registers routes.
func New(d Deps) *Server {
	s := &Server{
		r:       chi.NewRouter(),
		cfg:     d.Config,
		words:   d.Words,
		games:   d.Games,
		arenas:  d.Arenas,
		streaks: d.Streaks,
		freezes: d.Freezes,
		ranker:  d.Ranker,
		now:     time.Now,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(accessLog)                       // zerolog request log
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(cors(s.cfg.ClientOrigin))        // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service":   "framedl",
			"endpoints": []string{"/health", "/games", "/arenas", "/streak", "/freezes", "/leaderboard"},
		})
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		a, g := s.words.Stats()
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "answers": a, "allowed": g})
	})

	s.r.Group(func(r chi.Router) {
		r.Use(s.withOptionalAuth())
		s.mountGames(r)
		s.mountArenas(r)
		s.mountStreaks(r)
		r.Get("/leaderboard", s.handleLeaderboard)
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// WithClock overrides the time source used for daily keys (tests).
func (s *Server) WithClock(now func() time.Time) *Server {
	s.now = now
	return s
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler { return s.r }

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for a single origin.
func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// accessLog writes one zerolog line per request.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("requestId", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// ------------------------------- helpers -----------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) today() string { return game.DateKey(s.now()) }
