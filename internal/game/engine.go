// Game engine for single-player rounds.
// Responsibilities:
//   - Load-or-create a Game for a natural key (insert-if-absent, race-safe).
//   - Validate and apply guesses; track IN_PROGRESS → WON/LOST.
//   - Undo the last guess and reset rounds where the mode allows it.
//
// All writes go through Store.UpdateGame with the version the caller read, so a
// stale Game never overwrites a newer one.
package game

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cryptods8/openframedl-sub001/internal/apperr"
)

var (
	ErrGameFinished     = apperr.New(apperr.Invariant, "game_finished", "game is already finished")
	ErrResetNotAllowed  = apperr.New(apperr.Invariant, "reset_not_allowed", "this game cannot be reset")
	ErrUndoNotAllowed   = apperr.New(apperr.Invariant, "undo_not_allowed", "guesses in daily and arena games cannot be undone")
	ErrGameNotFound     = apperr.New(apperr.NotFound, "game_not_found", "game not found")
	ErrInvalidWord      = apperr.New(apperr.Validation, "invalid_word", "the word for this game is not a valid 5-letter word")
	ErrConcurrentUpdate = apperr.New(apperr.Conflict, "game_conflict", "game was updated concurrently, reload and retry")
)

// Store persists Games. Implementations must enforce uniqueness of the natural
// key on insert (apperr.ErrConflict) and compare the version on update.
type Store interface {
	FindGame(ctx context.Context, key UserGameKey) (*Game, error)
	FindGameByID(ctx context.Context, id string) (*Game, error)
	InsertGame(ctx context.Context, g *Game) error
	UpdateGame(ctx context.Context, g *Game, expectedVersion int) error
}

// PreCreateFunc chooses the word for a Game that does not exist yet.
type PreCreateFunc func(ctx context.Context, key UserGameKey) (string, error)

// CreateOptions describe a Game to create when none exists for the key.
type CreateOptions struct {
	PreCreate      PreCreateFunc
	IsHardMode     bool
	ArenaID        *string
	ArenaWordIndex *int
	GameData       map[string]any
}

// Engine owns the single-player state machine.
type Engine struct {
	store     Store
	validator Validator
	now       func() time.Time
}

// NewEngine wires an Engine to its store and dictionary.
func NewEngine(store Store, dict Dictionary) *Engine {
	return &Engine{store: store, validator: Validator{Dict: dict}, now: time.Now}
}

// WithClock overrides the time source (tests).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// LoadOrCreate returns the Game for key, creating it with opts.PreCreate when
// absent. Concurrent callers for the same key all observe the same Game.
func (e *Engine) LoadOrCreate(ctx context.Context, key UserGameKey, opts CreateOptions) (*Game, error) {
	g, err := e.store.FindGame(ctx, key)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	word, err := opts.PreCreate(ctx, key)
	if err != nil {
		return nil, err
	}
	word = NormalizeGuess(word)
	if len(word) != WordLength || !isAlpha(word) {
		return nil, ErrInvalidWord
	}

	now := e.now().UTC()
	g = &Game{
		ID:             uuid.NewString(),
		UserKey:        key.UserKey,
		GameKey:        key.GameKey,
		IsDaily:        key.IsDaily,
		Word:           word,
		Guesses:        []string{},
		Status:         StatusInProgress,
		IsHardMode:     opts.IsHardMode,
		CreatedAt:      now,
		UpdatedAt:      now,
		ArenaID:        opts.ArenaID,
		ArenaWordIndex: opts.ArenaWordIndex,
		GameData:       opts.GameData,
		Version:        1,
	}
	err = e.store.InsertGame(ctx, g)
	switch {
	case err == nil:
		log.Debug().Str("game", g.ID).Str("user", key.UserKey.String()).Str("gameKey", key.GameKey).Msg("game created")
		return g.Clone(), nil
	case errors.Is(err, apperr.ErrConflict):
		// lost the insert race; the winner's row is authoritative
		return e.store.FindGame(ctx, key)
	default:
		return nil, err
	}
}

// Load returns a Game by id.
func (e *Engine) Load(ctx context.Context, id string) (*Game, error) {
	g, err := e.store.FindGameByID(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrGameNotFound
	}
	return g, err
}

// ValidateGuess is a pure check of guess against g.
func (e *Engine) ValidateGuess(g *Game, guess string) ValidationResult {
	return e.validator.Validate(g, guess)
}

// Guess validates and applies a guess. An invalid guess returns the unchanged
// Game together with the failing ValidationResult and a nil error.
func (e *Engine) Guess(ctx context.Context, g *Game, text string) (*Game, ValidationResult, error) {
	if g.Status.Terminal() {
		return g, "", ErrGameFinished
	}
	if res := e.validator.Validate(g, text); res != Valid {
		return g, res, nil
	}
	guess := NormalizeGuess(text)

	next := g.Clone()
	next.Guesses = append(next.Guesses, guess)
	next.GuessCount = len(next.Guesses)
	switch {
	case allCorrect(Evaluate(next.Word, guess)):
		next.Status = StatusWon
	case len(next.Guesses) >= MaxGuesses:
		next.Status = StatusLost
	}
	now := e.now().UTC()
	if next.Status.Terminal() {
		next.CompletedAt = &now
	}
	if err := e.save(ctx, g, next, now); err != nil {
		return g, "", err
	}
	return next, Valid, nil
}

// UndoGuess removes the last guess of an in-progress practice or custom Game.
// Daily and arena guesses are final. It is a no-op when there is nothing to
// undo.
func (e *Engine) UndoGuess(ctx context.Context, g *Game) (*Game, error) {
	if g.IsDaily || g.ArenaID != nil {
		return g, ErrUndoNotAllowed
	}
	if g.Status.Terminal() {
		return g, ErrGameFinished
	}
	if len(g.Guesses) == 0 {
		return g, nil
	}
	next := g.Clone()
	next.Guesses = next.Guesses[:len(next.Guesses)-1]
	next.GuessCount = len(next.Guesses)
	if err := e.save(ctx, g, next, e.now().UTC()); err != nil {
		return g, err
	}
	return next, nil
}

// Reset clears the guesses and reopens g. Finished daily rounds and arena
// rounds are immutable. When newWord is set (practice) the word is redrawn.
func (e *Engine) Reset(ctx context.Context, g *Game, newWord PreCreateFunc) (*Game, error) {
	if g.ArenaID != nil || (g.IsDaily && g.Status.Terminal()) {
		return g, ErrResetNotAllowed
	}
	next := g.Clone()
	next.Guesses = []string{}
	next.GuessCount = 0
	next.Status = StatusInProgress
	next.CompletedAt = nil
	if newWord != nil && !g.IsDaily {
		w, err := newWord(ctx, g.Key())
		if err != nil {
			return g, err
		}
		w = NormalizeGuess(w)
		if len(w) != WordLength || !isAlpha(w) {
			return g, ErrInvalidWord
		}
		next.Word = w
	}
	if err := e.save(ctx, g, next, e.now().UTC()); err != nil {
		return g, err
	}
	return next, nil
}

func (e *Engine) save(ctx context.Context, prev, next *Game, now time.Time) error {
	next.UpdatedAt = now
	next.Version = prev.Version + 1
	err := e.store.UpdateGame(ctx, next, prev.Version)
	if errors.Is(err, apperr.ErrConflict) {
		return ErrConcurrentUpdate
	}
	return err
}
