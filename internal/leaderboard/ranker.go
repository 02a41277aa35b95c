// Package leaderboard ranks players over daily game history.
//
// Three views are derived on demand:
//   - score: wins desc, then average guesses per win asc; dense rank on wins
//   - wins: won daily games in the window; dense rank
//   - streak: current streak at the window end; standard rank with gaps
package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cryptods8/openframedl-sub001/internal/apperr"
	"github.com/cryptods8/openframedl-sub001/internal/game"
	"github.com/cryptods8/openframedl-sub001/internal/streak"
)

type Type string

const (
	TypeScore  Type = "score"
	TypeWins   Type = "wins"
	TypeStreak Type = "streak"
)

func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeScore, TypeWins, TypeStreak:
		return t, nil
	case "":
		return TypeScore, nil
	}
	return "", ErrUnknownType
}

var (
	ErrUnknownType   = apperr.New(apperr.Validation, "unknown_leaderboard", "unknown leaderboard type")
	ErrInvalidWindow = apperr.New(apperr.Validation, "invalid_window", "invalid date window")
)

const DefaultScoreDays = 14

// Window is an inclusive range of daily game keys. An empty From is unbounded.
type Window struct {
	From string `json:"from,omitempty"`
	To   string `json:"to"`
}

// Result is one finished daily game.
type Result struct {
	UserKey    game.UserKey
	GameKey    string
	Won        bool
	GuessCount int
}

// Source reads the history the views are computed from.
type Source interface {
	ListDailyResults(ctx context.Context, from, to string) ([]Result, error)
	ListFrozenDays(ctx context.Context, to string) (map[game.UserKey][]string, error)
}

// Cache stores computed rankings for a short time.
type Cache interface {
	Get(ctx context.Context, key string) ([]Entry, bool, error)
	Set(ctx context.Context, key string, entries []Entry, ttl time.Duration) error
}

type Entry struct {
	UserKey    game.UserKey `json:"userKey"`
	Rank       int          `json:"rank"`
	Wins       int          `json:"wins,omitempty"`
	AvgGuesses float64      `json:"avgGuesses,omitempty"`
	Streak     int          `json:"streak,omitempty"`
}

// Board is a ranked view, truncated to the requested size.
type Board struct {
	Type     Type    `json:"type"`
	Window   Window  `json:"window"`
	Entries  []Entry `json:"entries"`
	Personal *Entry  `json:"personal,omitempty"`
	Total    int     `json:"total"`
}

type Ranker struct {
	source Source
	cache  Cache
	ttl    time.Duration
	limit  int
	now    func() time.Time
}

// NewRanker returns a Ranker. cache may be nil.
func NewRanker(source Source, cache Cache, ttl time.Duration, defaultLimit int) *Ranker {
	return &Ranker{source: source, cache: cache, ttl: ttl, limit: defaultLimit, now: time.Now}
}

// WithClock overrides the time source (tests).
func (r *Ranker) WithClock(now func() time.Time) *Ranker {
	r.now = now
	return r
}

// Rank builds the typ view over w, keeps the top limit entries and appends
// me's entry when it falls outside them.
func (r *Ranker) Rank(ctx context.Context, typ Type, w Window, limit int, me *game.UserKey) (*Board, error) {
	w, err := r.normalize(typ, w)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = r.limit
	}
	all, err := r.entries(ctx, typ, w)
	if err != nil {
		return nil, err
	}
	b := &Board{Type: typ, Window: w, Total: len(all)}
	b.Entries = all[:min(limit, len(all))]
	if me != nil {
		for i := range all {
			if all[i].UserKey == *me {
				if i >= limit {
					e := all[i]
					b.Personal = &e
				}
				break
			}
		}
	}
	return b, nil
}

func (r *Ranker) normalize(typ Type, w Window) (Window, error) {
	if w.To == "" {
		w.To = game.DateKey(r.now())
	}
	if !game.IsDateKey(w.To) || (w.From != "" && (!game.IsDateKey(w.From) || w.From > w.To)) {
		return w, ErrInvalidWindow
	}
	if typ == TypeScore && w.From == "" {
		w.From, _ = game.AddDays(w.To, -(DefaultScoreDays - 1))
	}
	if typ == TypeStreak {
		w.From = ""
	}
	return w, nil
}

func (r *Ranker) entries(ctx context.Context, typ Type, w Window) ([]Entry, error) {
	key := fmt.Sprintf("leaderboard:%s:%s:%s", typ, w.From, w.To)
	if r.cache != nil {
		if es, ok, err := r.cache.Get(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("leaderboard cache read failed")
		} else if ok {
			return es, nil
		}
	}
	results, err := r.source.ListDailyResults(ctx, w.From, w.To)
	if err != nil {
		return nil, err
	}
	var es []Entry
	switch typ {
	case TypeScore:
		es = RankScore(results)
	case TypeWins:
		es = RankWins(results)
	case TypeStreak:
		frozen, err := r.source.ListFrozenDays(ctx, w.To)
		if err != nil {
			return nil, err
		}
		es = RankStreak(results, frozen, w.To)
	}
	if r.cache != nil {
		if err := r.cache.Set(ctx, key, es, r.ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("leaderboard cache write failed")
		}
	}
	return es, nil
}

type tally struct {
	wins    int
	guesses int
}

func tallies(results []Result) map[game.UserKey]*tally {
	out := make(map[game.UserKey]*tally)
	for _, res := range results {
		if !res.Won {
			continue
		}
		t := out[res.UserKey]
		if t == nil {
			t = &tally{}
			out[res.UserKey] = t
		}
		t.wins++
		t.guesses += res.GuessCount
	}
	return out
}

// RankScore orders by wins desc, then average guesses per win asc. Rank is
// dense on wins.
func RankScore(results []Result) []Entry {
	es := make([]Entry, 0)
	for k, t := range tallies(results) {
		es = append(es, Entry{UserKey: k, Wins: t.wins, AvgGuesses: float64(t.guesses) / float64(t.wins)})
	}
	sort.Slice(es, func(i, j int) bool {
		if es[i].Wins != es[j].Wins {
			return es[i].Wins > es[j].Wins
		}
		if es[i].AvgGuesses != es[j].AvgGuesses {
			return es[i].AvgGuesses < es[j].AvgGuesses
		}
		return es[i].UserKey.String() < es[j].UserKey.String()
	})
	denseRank(es, func(e Entry) int { return e.Wins })
	return es
}

// RankWins orders by wins desc with dense rank.
func RankWins(results []Result) []Entry {
	es := make([]Entry, 0)
	for k, t := range tallies(results) {
		es = append(es, Entry{UserKey: k, Wins: t.wins})
	}
	sort.Slice(es, func(i, j int) bool {
		if es[i].Wins != es[j].Wins {
			return es[i].Wins > es[j].Wins
		}
		return es[i].UserKey.String() < es[j].UserKey.String()
	})
	denseRank(es, func(e Entry) int { return e.Wins })
	return es
}

// RankStreak orders users with a live streak at ref by its length, with
// standard rank: ties share a rank and the following rank skips.
func RankStreak(results []Result, frozen map[game.UserKey][]string, ref string) []Entry {
	won := make(map[game.UserKey][]string)
	for _, res := range results {
		if res.Won {
			won[res.UserKey] = append(won[res.UserKey], res.GameKey)
		}
	}
	es := make([]Entry, 0)
	for k, days := range won {
		if s := streak.Compute(days, frozen[k], ref); s.Current > 0 {
			es = append(es, Entry{UserKey: k, Streak: s.Current})
		}
	}
	sort.Slice(es, func(i, j int) bool {
		if es[i].Streak != es[j].Streak {
			return es[i].Streak > es[j].Streak
		}
		return es[i].UserKey.String() < es[j].UserKey.String()
	})
	for i := range es {
		if i > 0 && es[i].Streak == es[i-1].Streak {
			es[i].Rank = es[i-1].Rank
		} else {
			es[i].Rank = i + 1
		}
	}
	return es
}

func denseRank(es []Entry, key func(Entry) int) {
	rank := 0
	for i := range es {
		if i == 0 || key(es[i]) != key(es[i-1]) {
			rank++
		}
		es[i].Rank = rank
	}
}

type invalidator interface {
	Invalidate(ctx context.Context, dateKey string) error
}

// Invalidate drops cached views ending on dateKey and on every later day up
// to today, if the cache supports it.
func (r *Ranker) Invalidate(ctx context.Context, dateKey string) {
	inv, ok := r.cache.(invalidator)
	if !ok {
		return
	}
	today := game.DateKey(r.now())
	for d := dateKey; ; {
		if err := inv.Invalidate(ctx, d); err != nil {
			log.Warn().Err(err).Str("date", d).Msg("leaderboard cache invalidation failed")
		}
		if d >= today {
			return
		}
		next, err := game.AddDays(d, 1)
		if err != nil {
			return
		}
		d = next
	}
}
