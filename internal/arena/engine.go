// Arena engine.
// Responsibilities:
//   - Create arenas and validate their configuration.
//   - Admit members under concurrency (version compare-and-swap with retry).
//   - Hand out the next round to each member and detect early finishes.
//   - Let the creator kick and readmit members.
package arena

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cryptods8/openframedl-sub001/internal/apperr"
	"github.com/cryptods8/openframedl-sub001/internal/game"
)

var (
	ErrArenaNotFound   = apperr.New(apperr.NotFound, "arena_not_found", "arena not found")
	ErrNotMember       = apperr.New(apperr.Validation, "not_member", "you are not a member of this arena")
	ErrNoFreeSlots     = apperr.New(apperr.Validation, "no_free_slots", "this arena is full")
	ErrArenaClosed     = apperr.New(apperr.Validation, "arena_closed", "this arena is over")
	ErrArenaNotStarted = apperr.New(apperr.Validation, "arena_not_started", "this arena has not started yet")
	ErrBlacklisted     = apperr.New(apperr.Validation, "blacklisted", "you were removed from this arena")
	ErrArenaCompleted  = apperr.New(apperr.Validation, "arena_completed", "you have played every word in this arena")
	ErrNotCreator      = apperr.New(apperr.Validation, "not_creator", "only the arena creator can do this")
	ErrInvalidConfig   = apperr.New(apperr.Validation, "invalid_arena_config", "invalid arena configuration")
	ErrJoinConflict    = apperr.New(apperr.Conflict, "arena_conflict", "arena was updated concurrently, retry")
)

const (
	MaxWordCount    = 10
	MaxAudienceSize = 50
	maxAttempts     = 8
)

// Store persists Arenas. UpdateArena must fail with apperr.ErrConflict when the
// stored version differs from expectedVersion.
type Store interface {
	FindArena(ctx context.Context, id string) (*Arena, error)
	InsertArena(ctx context.Context, a *Arena) error
	UpdateArena(ctx context.Context, a *Arena, expectedVersion int) error
	ListArenaGames(ctx context.Context, arenaID string) ([]*game.Game, error)
}

// WordSource supplies random answer words.
type WordSource interface {
	GenerateRandomWords(n int) ([]string, error)
}

// Notifier delivers a message to a set of users.
type Notifier interface {
	Notify(ctx context.Context, recipients []game.UserKey, title, body string) error
}

// Engine runs arena lifecycles on top of the single-player game engine.
type Engine struct {
	store    Store
	games    *game.Engine
	dict     game.Dictionary
	words    WordSource
	notifier Notifier
	now      func() time.Time
}

func NewEngine(store Store, games *game.Engine, dict game.Dictionary, words WordSource, notifier Notifier) *Engine {
	return &Engine{store: store, games: games, dict: dict, words: words, notifier: notifier, now: time.Now}
}

// WithClock overrides the time source (tests).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Create validates cfg and stores a new arena owned by creator. Fixed word lists
// are normalized and checked against the dictionary; random arenas draw a word
// per member per round.
func (e *Engine) Create(ctx context.Context, creator game.UserKey, cfg Config) (*Arena, error) {
	if err := e.validateConfig(&cfg); err != nil {
		return nil, err
	}
	now := e.now().UTC()
	a := &Arena{
		ID:         uuid.NewString(),
		CreatorKey: creator,
		Config:     cfg,
		Members:    []Member{},
		CreatedAt:  now,
		Version:    1,
	}
	if err := e.store.InsertArena(ctx, a); err != nil {
		return nil, err
	}
	log.Info().Str("arena", a.ID).Str("creator", creator.String()).Int("words", cfg.WordCount).Int("audienceSize", cfg.AudienceSize).Msg("arena created")
	if len(cfg.Audience) > 0 {
		recipients := make([]game.UserKey, 0, len(cfg.Audience))
		for _, am := range cfg.Audience {
			recipients = append(recipients, am.Key())
		}
		e.notify(ctx, a.ID, recipients, "You're invited", "You have been invited to a Framedl arena")
	}
	return a.Clone(), nil
}

func (e *Engine) validateConfig(cfg *Config) error {
	invalid := func(msg string) error {
		return &apperr.Error{Kind: apperr.Validation, Code: ErrInvalidConfig.Code, Msg: msg}
	}
	if cfg.AudienceSize < 1 || cfg.AudienceSize > MaxAudienceSize {
		return invalid("audience size must be between 1 and 50")
	}
	if len(cfg.Audience) > cfg.AudienceSize {
		return invalid("audience cannot exceed the audience size")
	}
	seen := map[game.UserKey]bool{}
	for _, am := range cfg.Audience {
		if am.UserID == "" || !am.IdentityProvider.Valid() || seen[am.Key()] {
			return invalid("invalid audience member")
		}
		seen[am.Key()] = true
	}
	if cfg.RandomWords {
		cfg.Words = nil
	} else {
		if len(cfg.Words) == 0 {
			return invalid("words are required unless random words are enabled")
		}
		for i, w := range cfg.Words {
			w = game.NormalizeGuess(w)
			if len(w) != game.WordLength || !e.dict.IsValidWord(w) {
				return invalid("invalid word: " + strings.ToUpper(w))
			}
			cfg.Words[i] = w
		}
		if cfg.WordCount != 0 && cfg.WordCount != len(cfg.Words) {
			return invalid("word count does not match the number of words")
		}
		cfg.WordCount = len(cfg.Words)
	}
	if cfg.WordCount < 1 || cfg.WordCount > MaxWordCount {
		return invalid("word count must be between 1 and 10")
	}
	if cfg.Duration.Type == "" {
		cfg.Duration.Type = DurationUnlimited
	}
	if cfg.Duration.Type == DurationInterval && cfg.Duration.Minutes <= 0 {
		return invalid("interval duration requires positive minutes")
	}
	if cfg.Start.Type == "" {
		cfg.Start.Type = StartImmediate
	}
	if cfg.Start.Type == StartScheduled && cfg.Start.Date == nil {
		return invalid("scheduled start requires a date")
	}
	if cfg.SuddenDeath && cfg.AudienceSize != 2 {
		return invalid("sudden death requires exactly two players")
	}
	return nil
}

// Get returns an arena by id.
func (e *Engine) Get(ctx context.Context, id string) (*Arena, error) {
	a, err := e.store.FindArena(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrArenaNotFound
	}
	return a, err
}

func (e *Engine) load(ctx context.Context, id string) (*Arena, []*game.Game, error) {
	a, err := e.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	games, err := e.store.ListArenaGames(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return a, games, nil
}

// mutate re-reads the arena and applies fn until the versioned write succeeds.
// fn returns false when no write is needed.
func (e *Engine) mutate(ctx context.Context, id string, fn func(a *Arena, games []*game.Game) (bool, error)) (*Arena, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		a, games, err := e.load(ctx, id)
		if err != nil {
			return nil, err
		}
		next := a.Clone()
		changed, err := fn(next, games)
		if err != nil {
			return nil, err
		}
		if !changed {
			return a, nil
		}
		next.Version = a.Version + 1
		err = e.store.UpdateArena(ctx, next, a.Version)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, apperr.ErrConflict) {
			return nil, err
		}
		log.Debug().Str("arena", id).Int("attempt", attempt+1).Msg("arena write conflict, retrying")
	}
	return nil, ErrJoinConflict
}

// Join admits user into the arena. At most AudienceSize active members ever
// hold a slot; concurrent joiners racing for the last slot get ErrNoFreeSlots.
// Joining twice is a no-op.
func (e *Engine) Join(ctx context.Context, arenaID string, user game.UserKey, username string) (*Arena, error) {
	var filled bool
	a, err := e.mutate(ctx, arenaID, func(a *Arena, games []*game.Game) (bool, error) {
		filled = false
		switch MembershipOf(a, user) {
		case MembershipMember, MembershipMemberFreeSlot:
			return false, nil
		case MembershipMemberKicked:
			return false, ErrBlacklisted
		case MembershipNotMember:
			return false, ErrNoFreeSlots
		}
		now := e.now().UTC()
		if ArenaStatus(a, games, now) == StatusEnded {
			return false, ErrArenaClosed
		}
		a.Members = append(a.Members, Member{
			UserID:           user.UserID,
			IdentityProvider: user.IdentityProvider,
			Username:         username,
			JoinedAt:         now,
		})
		if a.StartedAt == nil && a.Config.Start.Type == StartImmediate {
			a.StartedAt = &now
		}
		if len(a.ActiveMembers()) == a.Config.AudienceSize {
			filled = true
			a.LastNotifiedAt = &now
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("arena", arenaID).Str("user", user.String()).Msg("arena joined")
	if filled {
		e.notify(ctx, arenaID, memberKeys(a), "Arena is full", "All players have joined, let the games begin")
	}
	return a, nil
}

// Kick removes target from the active members. The entry stays so the user
// cannot rejoin until readmitted.
func (e *Engine) Kick(ctx context.Context, arenaID string, actor, target game.UserKey) (*Arena, error) {
	return e.mutate(ctx, arenaID, func(a *Arena, _ []*game.Game) (bool, error) {
		if a.CreatorKey != actor {
			return false, ErrNotCreator
		}
		i := a.memberIndex(target)
		if i < 0 {
			return false, ErrNotMember
		}
		if a.Members[i].KickedAt != nil {
			return false, nil
		}
		now := e.now().UTC()
		a.Members[i].KickedAt = &now
		return true, nil
	})
}

// Unkick readmits a kicked member if a slot is free.
func (e *Engine) Unkick(ctx context.Context, arenaID string, actor, target game.UserKey) (*Arena, error) {
	return e.mutate(ctx, arenaID, func(a *Arena, _ []*game.Game) (bool, error) {
		if a.CreatorKey != actor {
			return false, ErrNotCreator
		}
		i := a.memberIndex(target)
		if i < 0 {
			return false, ErrNotMember
		}
		if a.Members[i].KickedAt == nil {
			return false, nil
		}
		if FreeSlots(a) == 0 {
			return false, ErrNoFreeSlots
		}
		a.Members[i].KickedAt = nil
		return true, nil
	})
}

// Availability reports what user may do in the arena right now.
func (e *Engine) Availability(ctx context.Context, arenaID string, user game.UserKey) (*Arena, Availability, error) {
	a, games, err := e.load(ctx, arenaID)
	if err != nil {
		return nil, Availability{}, err
	}
	return a, Evaluate(a, user, games, e.now().UTC()), nil
}

// Standings ranks the arena's active members.
func (e *Engine) Standings(ctx context.Context, arenaID string) ([]Standing, error) {
	a, games, err := e.load(ctx, arenaID)
	if err != nil {
		return nil, err
	}
	return Standings(a, games), nil
}

// PlayNextRound returns the member's in-progress round, or creates the next
// one at index = completed rounds.
func (e *Engine) PlayNextRound(ctx context.Context, arenaID string, user game.UserKey) (*game.Game, error) {
	a, games, err := e.load(ctx, arenaID)
	if err != nil {
		return nil, err
	}
	now := e.now().UTC()
	av := Evaluate(a, user, games, now)
	if err := playable(av); err != nil {
		return nil, err
	}
	p := progressOf(groupByMember(games)[user])
	if p.current != nil {
		return p.current, nil
	}
	if !av.HasNextGame {
		return nil, ErrArenaCompleted
	}
	if a.StartedAt == nil {
		if _, err := e.mutate(ctx, arenaID, func(a *Arena, _ []*game.Game) (bool, error) {
			if a.StartedAt != nil {
				return false, nil
			}
			a.StartedAt = effectiveStart(a, now)
			if a.StartedAt == nil {
				a.StartedAt = &now
			}
			return true, nil
		}); err != nil {
			return nil, err
		}
	}

	idx := p.Completed
	id := a.ID
	key := game.UserGameKey{UserKey: user, GameKey: game.ArenaKey(a.ID, idx)}
	return e.games.LoadOrCreate(ctx, key, game.CreateOptions{
		PreCreate: func(context.Context, game.UserGameKey) (string, error) {
			return e.roundWord(a, idx)
		},
		IsHardMode:     a.Config.IsHardModeRequired,
		ArenaID:        &id,
		ArenaWordIndex: &idx,
	})
}

func (e *Engine) roundWord(a *Arena, idx int) (string, error) {
	if idx < len(a.Config.Words) {
		return a.Config.Words[idx], nil
	}
	if e.words == nil {
		return "", apperr.Internalf(nil, "arena %s has no word for round %d", a.ID, idx)
	}
	ws, err := e.words.GenerateRandomWords(1)
	if err != nil {
		return "", err
	}
	return ws[0], nil
}

// playable reports why a member may not play right now, if anything.
func playable(av Availability) error {
	switch {
	case av.Membership == MembershipMemberKicked:
		return ErrBlacklisted
	case !av.Membership.IsMember():
		return ErrNotMember
	case av.Status == StatusPending:
		return ErrArenaNotStarted
	case av.Status == StatusEnded:
		return ErrArenaClosed
	}
	return nil
}

// Guess applies a guess to an arena round. The arena must still be open and
// the player an active member; a round that ends with this guess is passed to
// RoundCompleted.
func (e *Engine) Guess(ctx context.Context, g *game.Game, text string) (*game.Game, game.ValidationResult, error) {
	if g.ArenaID == nil {
		return e.games.Guess(ctx, g, text)
	}
	a, games, err := e.load(ctx, *g.ArenaID)
	if err != nil {
		return g, "", err
	}
	if err := playable(Evaluate(a, g.UserKey, games, e.now().UTC())); err != nil {
		return g, "", err
	}
	next, res, err := e.games.Guess(ctx, g, text)
	if err != nil || res != game.Valid || !next.Status.Terminal() {
		return next, res, err
	}
	if err := e.RoundCompleted(ctx, next); err != nil {
		log.Warn().Err(err).Str("arena", a.ID).Msg("arena round completion failed")
	}
	return next, res, nil
}

// RoundCompleted runs after an arena round reaches a terminal state. The first
// call that observes the arena as ended stamps FinishedAt and notifies the
// members; later calls do nothing.
func (e *Engine) RoundCompleted(ctx context.Context, g *game.Game) error {
	if g.ArenaID == nil || !g.Status.Terminal() {
		return nil
	}
	var finished, suddenDeath bool
	a, err := e.mutate(ctx, *g.ArenaID, func(a *Arena, games []*game.Game) (bool, error) {
		finished = false
		if a.FinishedAt != nil {
			return false, nil
		}
		now := e.now().UTC()
		if ArenaStatus(a, games, now) != StatusEnded {
			return false, nil
		}
		a.FinishedAt = &now
		finished, suddenDeath = true, SuddenDeathOver(a, games)
		return true, nil
	})
	if err != nil || !finished {
		return err
	}
	body := "All rounds are done, check the final standings"
	if suddenDeath {
		body = "Sudden death: the arena has been decided"
	}
	log.Info().Str("arena", a.ID).Bool("suddenDeath", suddenDeath).Msg("arena finished")
	e.notify(ctx, a.ID, memberKeys(a), "Arena finished", body)
	return nil
}

func (e *Engine) notify(ctx context.Context, arenaID string, recipients []game.UserKey, title, body string) {
	if e.notifier == nil || len(recipients) == 0 {
		return
	}
	if err := e.notifier.Notify(ctx, recipients, title, body); err != nil {
		log.Warn().Err(err).Str("arena", arenaID).Msg("arena notification failed")
	}
}

func memberKeys(a *Arena) []game.UserKey {
	active := a.ActiveMembers()
	out := make([]game.UserKey, 0, len(active))
	for _, m := range active {
		out = append(out, m.Key())
	}
	return out
}
