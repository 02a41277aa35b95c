package game

import "time"

// GuessedGame is a read-only, render-ready view of a Game. The secret word is
// only exposed once the round is over.
type GuessedGame struct {
	ID                   string          `json:"id"`
	UserKey              UserKey         `json:"userKey"`
	GameKey              string          `json:"gameKey"`
	IsDaily              bool            `json:"isDaily"`
	IsHardMode           bool            `json:"isHardMode"`
	Status               Status          `json:"status"`
	Guesses              []GuessedWord   `json:"guesses"`
	AllGuessedCharacters map[string]Mark `json:"allGuessedCharacters"`
	RemainingGuesses     int             `json:"remainingGuesses"`
	Word                 string          `json:"word,omitempty"`
	CompletedAt          *time.Time      `json:"completedAt,omitempty"`
	ArenaID              *string         `json:"arenaId,omitempty"`
	ArenaWordIndex       *int            `json:"arenaWordIndex,omitempty"`
}

// ToGuessedGame evaluates every guess of g. It does not mutate g.
func ToGuessedGame(g *Game) GuessedGame {
	out := GuessedGame{
		ID:                   g.ID,
		UserKey:              g.UserKey,
		GameKey:              g.GameKey,
		IsDaily:              g.IsDaily,
		IsHardMode:           g.IsHardMode,
		Status:               g.Status,
		Guesses:              make([]GuessedWord, 0, len(g.Guesses)),
		AllGuessedCharacters: map[string]Mark{},
		RemainingGuesses:     MaxGuesses - len(g.Guesses),
		CompletedAt:          g.CompletedAt,
		ArenaID:              g.ArenaID,
		ArenaWordIndex:       g.ArenaWordIndex,
	}
	if out.RemainingGuesses < 0 {
		out.RemainingGuesses = 0
	}
	for _, guess := range g.Guesses {
		chars := Evaluate(g.Word, guess)
		out.Guesses = append(out.Guesses, GuessedWord{Word: guess, Characters: chars})
		for _, c := range chars {
			if prev, ok := out.AllGuessedCharacters[c.Character]; !ok || c.Status.rank() > prev.rank() {
				out.AllGuessedCharacters[c.Character] = c.Status
			}
		}
	}
	if g.Status.Terminal() {
		out.Word = g.Word
	}
	return out
}
