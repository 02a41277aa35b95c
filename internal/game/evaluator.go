package game

import (
	"strings"
	"unicode/utf8"
)

// GuessCharacter is one evaluated tile.
type GuessCharacter struct {
	Character string `json:"character"`
	Status    Mark   `json:"status"`
}

// GuessedWord is one evaluated row.
type GuessedWord struct {
	Word       string           `json:"word"`
	Characters []GuessCharacter `json:"characters"`
}

// ValidationResult tags the outcome of ValidateGuess.
type ValidationResult string

const (
	Valid                 ValidationResult = "VALID"
	InvalidEmpty          ValidationResult = "INVALID_EMPTY"
	InvalidSize           ValidationResult = "INVALID_SIZE"
	InvalidFormat         ValidationResult = "INVALID_FORMAT"
	InvalidWord           ValidationResult = "INVALID_WORD"
	InvalidAlreadyGuessed ValidationResult = "INVALID_ALREADY_GUESSED"
	InvalidHardMode       ValidationResult = "INVALID_HARD_MODE"
)

// Message is a user-facing description of r.
func (r ValidationResult) Message() string {
	switch r {
	case InvalidEmpty:
		return "Your guess is empty"
	case InvalidSize:
		return "Your guess must be 5 letters"
	case InvalidFormat:
		return "Your guess may only contain letters"
	case InvalidWord:
		return "Not in word list"
	case InvalidAlreadyGuessed:
		return "Already guessed"
	case InvalidHardMode:
		return "Hard mode: revealed hints must be used"
	}
	return ""
}

// Dictionary answers whether a word may be guessed.
type Dictionary interface {
	IsValidWord(word string) bool
}

// Evaluate implements the two-pass scoring algorithm.
//
// Pass 1:
//   - Mark exact matches as Correct.
//   - Count remaining (non-correct) word letters.
//
// Pass 2:
//   - For each non-correct guess letter: if there is remaining count for that letter,
//     mark WrongPosition and decrement the count; otherwise mark Incorrect.
//
// A letter is never credited more times than it occurs in word.
func Evaluate(word, guess string) []GuessCharacter {
	n := len(guess)
	res := make([]GuessCharacter, n)

	for i := 0; i < n; i++ {
		res[i].Character = string(guess[i])
		if i < len(word) && guess[i] == word[i] {
			res[i].Status = MarkCorrect
		}
	}

	// Letter frequency for the non-correct word positions (a–z).
	var counts [26]int
	for i := 0; i < len(word); i++ {
		if i < n && res[i].Status == MarkCorrect {
			continue
		}
		if j := idx(word[i]); j >= 0 {
			counts[j]++
		}
	}

	for i := 0; i < n; i++ {
		if res[i].Status == MarkCorrect {
			continue
		}
		j := idx(guess[i])
		if j >= 0 && counts[j] > 0 {
			res[i].Status = MarkWrongPosition
			counts[j]--
		} else {
			res[i].Status = MarkIncorrect
		}
	}
	return res
}

// idx maps a lowercase ASCII letter to 0..25, or -1.
func idx(b byte) int {
	if b < 'a' || b > 'z' {
		return -1
	}
	return int(b - 'a')
}

// NormalizeGuess lower-cases and trims raw input.
func NormalizeGuess(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Validator runs the ordered guess checks; the first failure wins.
type Validator struct {
	Dict Dictionary
}

// Validate checks guess against g without mutating it.
func (v Validator) Validate(g *Game, guess string) ValidationResult {
	guess = NormalizeGuess(guess)
	switch {
	case guess == "":
		return InvalidEmpty
	case utf8.RuneCountInString(guess) != WordLength:
		return InvalidSize
	case !isAlpha(guess):
		return InvalidFormat
	case v.Dict != nil && !v.Dict.IsValidWord(guess):
		return InvalidWord
	}
	for _, prev := range g.Guesses {
		if prev == guess {
			return InvalidAlreadyGuessed
		}
	}
	if g.IsHardMode && len(g.Guesses) > 0 && !satisfiesHardMode(g.Word, g.Guesses, guess) {
		return InvalidHardMode
	}
	return Valid
}

// satisfiesHardMode requires every revealed hint to be reused: correct letters
// stay in place, and each letter appears at least as often as any single prior
// guess proved it occurs.
func satisfiesHardMode(word string, prior []string, guess string) bool {
	var required [26]int
	for _, p := range prior {
		var seen [26]int
		for i, c := range Evaluate(word, p) {
			switch c.Status {
			case MarkCorrect:
				if i >= len(guess) || guess[i] != p[i] {
					return false
				}
				seen[idx(p[i])]++
			case MarkWrongPosition:
				seen[idx(p[i])]++
			}
		}
		for j, n := range seen {
			if n > required[j] {
				required[j] = n
			}
		}
	}
	var have [26]int
	for i := 0; i < len(guess); i++ {
		if j := idx(guess[i]); j >= 0 {
			have[j]++
		}
	}
	for j, n := range required {
		if have[j] < n {
			return false
		}
	}
	return true
}

// isAlpha checks that a string consists only of lowercase a–z.
func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// allCorrect returns true if every tile is MarkCorrect.
func allCorrect(cs []GuessCharacter) bool {
	for _, c := range cs {
		if c.Status != MarkCorrect {
			return false
		}
	}
	return true
}
