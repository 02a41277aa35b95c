// Core type definitions for the word game engine.
// Defines:
//   - UserKey: the (userId, identityProvider) identity tuple.
//   - Mark: per-letter result of a guess.
//   - Game: state for a single word round (daily, practice, custom or arena).

package game

import (
	"time"
)

// IdentityProvider names the network a UserKey's userId belongs to.
type IdentityProvider string

const (
	ProviderFarcaster       IdentityProvider = "fc"        // primary social network
	ProviderXMTP            IdentityProvider = "xmtp"      // wallet-messaging network; userId is an address
	ProviderLens            IdentityProvider = "lens"      // alternate social network
	ProviderFarcasterUnauth IdentityProvider = "fc_unauth" // unauthenticated social
	ProviderAnonymous       IdentityProvider = "anon"
)

// Valid reports whether p is one of the known providers.
func (p IdentityProvider) Valid() bool {
	switch p {
	case ProviderFarcaster, ProviderXMTP, ProviderLens, ProviderFarcasterUnauth, ProviderAnonymous:
		return true
	}
	return false
}

// UserKey identifies a player. Equality is structural.
type UserKey struct {
	UserID           string           `json:"userId"`
	IdentityProvider IdentityProvider `json:"identityProvider"`
}

func (k UserKey) String() string { return string(k.IdentityProvider) + ":" + k.UserID }

// Mark represents the evaluation result for a single letter in a guess.
type Mark string

const (
	MarkCorrect       Mark = "CORRECT"        // right letter, right position
	MarkWrongPosition Mark = "WRONG_POSITION" // letter is in the word elsewhere
	MarkIncorrect     Mark = "INCORRECT"      // letter not (or no longer) available
)

// rank orders marks for keyboard display: a letter shows its best result.
func (m Mark) rank() int {
	switch m {
	case MarkCorrect:
		return 3
	case MarkWrongPosition:
		return 2
	case MarkIncorrect:
		return 1
	}
	return 0
}

// Status is the lifecycle state of a Game.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusWon        Status = "WON"
	StatusLost       Status = "LOST"
)

// Terminal reports whether no further guesses are accepted.
func (s Status) Terminal() bool { return s == StatusWon || s == StatusLost }

const (
	// MaxGuesses is the number of rows on the board.
	MaxGuesses = 6
	// WordLength is the size of every word and guess.
	WordLength = 5
)

// UserGameKey is the natural key of a Game: one Game per (user, gameKey, isDaily).
type UserGameKey struct {
	UserKey
	GameKey string `json:"gameKey"`
	IsDaily bool   `json:"isDaily"`
}

// Game holds the state of a single word round.
type Game struct {
	ID             string         `json:"id"`
	UserKey        UserKey        `json:"userKey"`
	GameKey        string         `json:"gameKey"`
	IsDaily        bool           `json:"isDaily"`
	Word           string         `json:"-"`
	Guesses        []string       `json:"guesses"`
	Status         Status         `json:"status"`
	GuessCount     int            `json:"guessCount"`
	IsHardMode     bool           `json:"isHardMode"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
	ArenaID        *string        `json:"arenaId,omitempty"`
	ArenaWordIndex *int           `json:"arenaWordIndex,omitempty"`
	GameData       map[string]any `json:"gameData,omitempty"`
	Version        int            `json:"-"`
}

// Key returns the natural key of g.
func (g *Game) Key() UserGameKey {
	return UserGameKey{UserKey: g.UserKey, GameKey: g.GameKey, IsDaily: g.IsDaily}
}

// Clone returns a deep copy so callers never share slices or maps with a store.
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	cp := *g
	cp.Guesses = append([]string(nil), g.Guesses...)
	if g.CompletedAt != nil {
		t := *g.CompletedAt
		cp.CompletedAt = &t
	}
	if g.ArenaID != nil {
		id := *g.ArenaID
		cp.ArenaID = &id
	}
	if g.ArenaWordIndex != nil {
		i := *g.ArenaWordIndex
		cp.ArenaWordIndex = &i
	}
	if g.GameData != nil {
		cp.GameData = make(map[string]any, len(g.GameData))
		for k, v := range g.GameData {
			cp.GameData[k] = v
		}
	}
	return &cp
}

// IsWon is shorthand for Status == StatusWon.
func (g *Game) IsWon() bool { return g.Status == StatusWon }
