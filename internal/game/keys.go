package game

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the gameKey format of daily games.
const DateLayout = "2006-01-02"

const (
	practicePrefix = "practice_"
	customPrefix   = "custom_"
	arenaPrefix    = "arena_"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDateKey parses a daily gameKey.
func ParseDateKey(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// IsDateKey reports whether s is a well-formed daily gameKey.
func IsDateKey(s string) bool {
	_, err := ParseDateKey(s)
	return err == nil
}

// AddDays shifts a date key by n calendar days.
func AddDays(dateKey string, n int) (string, error) {
	t, err := ParseDateKey(dateKey)
	if err != nil {
		return "", err
	}
	return DateKey(t.AddDate(0, 0, n)), nil
}

// PracticeKey returns a fresh synthetic key for a practice round.
func PracticeKey() string { return practicePrefix + uuid.NewString() }

// CustomKey returns the key of a custom-word round.
func CustomKey(customID string) string { return customPrefix + customID }

// ArenaKey returns the key of one arena round.
func ArenaKey(arenaID string, wordIndex int) string {
	return fmt.Sprintf("%s%s_%d", arenaPrefix, arenaID, wordIndex)
}

// IsPracticeKey reports whether key belongs to a practice round.
func IsPracticeKey(key string) bool { return strings.HasPrefix(key, practicePrefix) }

// IsCustomKey reports whether key belongs to a custom-word round.
func IsCustomKey(key string) bool { return strings.HasPrefix(key, customPrefix) }
