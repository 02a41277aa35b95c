// Package streak derives daily-play streaks from game history.
//
// Nothing here is stored: every figure is recomputed from the won daily date
// keys and the days covered by applied freezes.
package streak

import (
	"context"
	"sort"
	"time"

	"github.com/cryptods8/openframedl-sub001/internal/game"
)

// Group is a maximal run of consecutive days, each either won or frozen.
type Group struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Length int    `json:"length"` // won days only
	Frozen int    `json:"frozen"`
}

// Streak summarises a user's groups relative to a reference date.
type Streak struct {
	Current      int     `json:"current"`
	Max          int     `json:"max"`
	CurrentStart string  `json:"currentStart,omitempty"`
	Groups       []Group `json:"groups"`
}

// Milestone marks the win that took a streak to a multiple of the interval.
type Milestone struct {
	GameKey      string `json:"gameKey"`
	StreakLength int    `json:"streakLength"`
}

// History provides the inputs for streak computation.
type History interface {
	ListWonDailyDates(ctx context.Context, user game.UserKey) ([]string, error)
	ListFrozenDates(ctx context.Context, user game.UserKey) ([]string, error)
}

type day struct {
	n      int // days since epoch
	key    string
	frozen bool
}

func toDays(won, frozen []string, until string) []day {
	seen := make(map[string]int)
	var out []day
	add := func(k string, isFrozen bool) {
		if until != "" && k > until {
			return
		}
		t, err := game.ParseDateKey(k)
		if err != nil {
			return
		}
		if i, ok := seen[k]; ok {
			// a won day stays won even if a freeze was also recorded
			out[i].frozen = out[i].frozen && isFrozen
			return
		}
		seen[k] = len(out)
		out = append(out, day{n: int(t.Unix() / 86400), key: k, frozen: isFrozen})
	}
	for _, k := range won {
		add(k, false)
	}
	for _, k := range frozen {
		add(k, true)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].n < out[j].n })
	return out
}

// Groups partitions won and frozen days into streak groups using
// day-number minus row-number as the group key. Groups made only of frozen
// days are dropped.
func Groups(won, frozen []string) []Group {
	return groups(toDays(won, frozen, ""))
}

func groups(days []day) []Group {
	var out []Group
	var cur *Group
	prevKey := 0
	for i, d := range days {
		k := d.n - i
		if cur == nil || k != prevKey {
			if cur != nil && cur.Length > 0 {
				out = append(out, *cur)
			}
			cur = &Group{Start: d.key}
			prevKey = k
		}
		cur.End = d.key
		if d.frozen {
			cur.Frozen++
		} else {
			cur.Length++
		}
	}
	if cur != nil && cur.Length > 0 {
		out = append(out, *cur)
	}
	return out
}

// Compute returns the streak figures as of ref (a date key). The current
// streak is the group ending on ref or on the day before it, so a player who
// has not played yet today keeps yesterday's streak.
func Compute(won, frozen []string, ref string) Streak {
	gs := groups(toDays(won, frozen, ref))
	s := Streak{Groups: gs}
	if s.Groups == nil {
		s.Groups = []Group{}
	}
	yesterday, _ := game.AddDays(ref, -1)
	for _, g := range gs {
		if g.Length > s.Max {
			s.Max = g.Length
		}
		if g.End == ref || g.End == yesterday {
			s.Current = g.Length
			s.CurrentStart = g.Start
		}
	}
	return s
}

// Milestones lists every win at which a group's won-day count reached a
// multiple of interval.
func Milestones(won, frozen []string, interval int) []Milestone {
	if interval <= 0 {
		return nil
	}
	days := toDays(won, frozen, "")
	var out []Milestone
	count := 0
	for i, d := range days {
		if i > 0 && d.n-days[i-1].n != 1 {
			count = 0
		}
		if d.frozen {
			continue
		}
		count++
		if count%interval == 0 {
			out = append(out, Milestone{GameKey: d.key, StreakLength: count})
		}
	}
	return out
}

// Engine reads history and computes streaks.
type Engine struct {
	history History
	now     func() time.Time
}

func NewEngine(history History) *Engine {
	return &Engine{history: history, now: time.Now}
}

// WithClock overrides the time source (tests).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Get computes user's streak as of ref; an empty ref means today (UTC).
func (e *Engine) Get(ctx context.Context, user game.UserKey, ref string) (Streak, error) {
	if ref == "" {
		ref = game.DateKey(e.now())
	}
	won, frozen, err := e.load(ctx, user)
	if err != nil {
		return Streak{}, err
	}
	return Compute(won, frozen, ref), nil
}

func (e *Engine) load(ctx context.Context, user game.UserKey) ([]string, []string, error) {
	won, err := e.history.ListWonDailyDates(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	frozen, err := e.history.ListFrozenDates(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return won, frozen, nil
}
