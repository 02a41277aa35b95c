// Package words provides the dictionary and answer source for the game engine.
//
// Word Lists:
//   - "answers": canonical solutions (exactly 5 lowercase letters).
//   - "allowed": valid guesses (always includes answers).
//
// Loading behavior (Load):
//  1. If both paths are set, answers come from the first and allowed guesses from the second.
//  2. If only the allowed path is set, that file serves as both lists.
//  3. Otherwise the embedded answers.txt / allowed.txt are used.
package words

import (
	"bufio"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
)

//go:embed answers.txt allowed.txt
var embedded embed.FS

// WordLength is the fixed size of every answer and guess.
const WordLength = 5

// List is an immutable pair of answer / allowed word sets.
type List struct {
	answers    []string
	answersSet map[string]struct{}
	allowedSet map[string]struct{} // answers ∪ guesses
}

// New builds a List from raw word slices. Invalid entries are dropped and
// every answer is also an allowed guess.
func New(answers, allowed []string) *List {
	l := &List{
		answersSet: make(map[string]struct{}, len(answers)),
		allowedSet: make(map[string]struct{}, len(answers)+len(allowed)),
	}
	for _, w := range answers {
		w = normalize(w)
		if !IsWellFormed(w) {
			continue
		}
		if _, dup := l.answersSet[w]; dup {
			continue
		}
		l.answers = append(l.answers, w)
		l.answersSet[w] = struct{}{}
		l.allowedSet[w] = struct{}{}
	}
	for _, w := range allowed {
		w = normalize(w)
		if IsWellFormed(w) {
			l.allowedSet[w] = struct{}{}
		}
	}
	return l
}

// Load reads the word lists from disk, falling back to the embedded defaults.
func Load(answersPath, allowedPath string) (*List, error) {
	var ansList, allowList []string
	var err error

	switch {
	case answersPath != "" && allowedPath != "":
		if ansList, err = readWordFile(answersPath); err != nil {
			return nil, err
		}
		if allowList, err = readWordFile(allowedPath); err != nil {
			return nil, err
		}
	case answersPath == "" && allowedPath != "":
		if allowList, err = readWordFile(allowedPath); err != nil {
			return nil, err
		}
		ansList = allowList
	default:
		return Embedded()
	}

	l := New(ansList, allowList)
	if len(l.answers) == 0 {
		return nil, errors.New("words: answers list is empty")
	}
	return l, nil
}

// Embedded returns the List compiled into the binary.
func Embedded() (*List, error) {
	ans, err := readEmbedded("answers.txt")
	if err != nil {
		return nil, err
	}
	all, err := readEmbedded("allowed.txt")
	if err != nil {
		return nil, err
	}
	l := New(ans, all)
	if len(l.answers) == 0 {
		return nil, errors.New("words: embedded answers list is empty")
	}
	return l, nil
}

func readEmbedded(name string) ([]string, error) {
	f, err := embedded.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readLines(f)
}

func readWordFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open word list %s: %w", path, err)
	}
	defer f.Close()
	return readLines(f)
}

// readLines keeps non-empty, non-comment lines, lowercased.
func readLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s := normalize(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, s)
	}
	return out, sc.Err()
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// IsWellFormed reports whether s is exactly WordLength lowercase ASCII letters.
func IsWellFormed(s string) bool {
	return len(s) == WordLength && IsAlpha(s)
}

// IsAlpha reports whether s is all lowercase ASCII letters.
func IsAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// IsValidWord reports whether w is a valid guess (answers ∪ guesses).
func (l *List) IsValidWord(w string) bool {
	_, ok := l.allowedSet[normalize(w)]
	return ok
}

// IsAnswer reports whether w is an answer word.
func (l *List) IsAnswer(w string) bool {
	_, ok := l.answersSet[normalize(w)]
	return ok
}

// RandomAnswer returns a cryptographically random answer.
func (l *List) RandomAnswer() (string, error) {
	if len(l.answers) == 0 {
		return "", errors.New("words: no answers loaded")
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(l.answers))))
	if err != nil {
		return "", err
	}
	return l.answers[n.Int64()], nil
}

// GenerateRandomWords returns n distinct random answers. When n exceeds the
// answer pool, words repeat only after the pool is exhausted.
func (l *List) GenerateRandomWords(n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	if len(l.answers) == 0 {
		return nil, errors.New("words: no answers loaded")
	}
	out := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	for len(out) < n {
		w, err := l.RandomAnswer()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[w]; dup && len(seen) < len(l.answers) {
			continue
		}
		if len(seen) >= len(l.answers) {
			seen = make(map[string]struct{}, n)
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out, nil
}

// DailyWord returns the deterministic answer for a YYYY-MM-DD date key.
func (l *List) DailyWord(dateKey, salt string) string {
	if len(l.answers) == 0 {
		return ""
	}
	return l.answers[DailyIndex(dateKey, salt, len(l.answers))]
}

// DailyIndex maps HMAC(salt, dateKey) onto [0, n).
func DailyIndex(dateKey, salt string, n int) int {
	if n <= 0 {
		return 0
	}
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(dateKey))
	sum := h.Sum(nil)
	// first 8 bytes give a uniform enough modulus
	v := binary.BigEndian.Uint64(sum[:8])
	return int(v % uint64(n))
}

// Stats returns counts of loaded words: (answers, allowed).
func (l *List) Stats() (answersCount int, allowedCount int) {
	return len(l.answers), len(l.allowedSet)
}
