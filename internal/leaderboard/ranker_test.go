package leaderboard

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cryptods8/openframedl-sub001/internal/game"
)

func u(id string) game.UserKey {
	return game.UserKey{UserID: id, IdentityProvider: game.ProviderFarcaster}
}

func win(id, day string, guesses int) Result {
	return Result{UserKey: u(id), GameKey: day, Won: true, GuessCount: guesses}
}

func loss(id, day string) Result {
	return Result{UserKey: u(id), GameKey: day, GuessCount: game.MaxGuesses}
}

func TestRankScoreDense(t *testing.T) {
	results := []Result{
		win("a", "2024-01-01", 3), win("a", "2024-01-02", 3),
		win("b", "2024-01-01", 2), win("b", "2024-01-02", 4),
		win("c", "2024-01-01", 5), loss("c", "2024-01-02"),
		loss("d", "2024-01-01"),
	}
	got := RankScore(results)
	want := []struct {
		id   string
		rank int
	}{{"a", 1}, {"b", 1}, {"c", 2}}
	if len(got) != len(want) {
		t.Fatalf("RankScore() = %d entries, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].UserKey != u(w.id) || got[i].Rank != w.rank {
			t.Errorf("RankScore()[%d] = %s rank %d, want %s rank %d", i, got[i].UserKey.UserID, got[i].Rank, w.id, w.rank)
		}
	}
}

func TestRankScoreSecondaryKey(t *testing.T) {
	got := RankScore([]Result{win("slow", "2024-01-01", 5), win("fast", "2024-01-01", 2)})
	if got[0].UserKey != u("fast") || got[0].AvgGuesses != 2 {
		t.Errorf("RankScore()[0] = %+v, want fast with 2 avg", got[0])
	}
	if got[0].Rank != 1 || got[1].Rank != 1 {
		t.Errorf("ranks = %d,%d, want 1,1", got[0].Rank, got[1].Rank)
	}
}

func TestRankWins(t *testing.T) {
	got := RankWins([]Result{
		win("a", "2024-01-01", 1), win("a", "2024-01-02", 1),
		win("b", "2024-01-01", 1), win("b", "2024-01-02", 1),
		win("c", "2024-01-01", 1),
	})
	ranks := [3]int{got[0].Rank, got[1].Rank, got[2].Rank}
	if ranks != [3]int{1, 1, 2} {
		t.Errorf("RankWins() ranks = %v, want [1 1 2]", ranks)
	}
}

func TestRankStreakStandardRank(t *testing.T) {
	results := []Result{
		win("a", "2024-01-02", 1), win("a", "2024-01-03", 1),
		win("b", "2024-01-02", 1), win("b", "2024-01-03", 1),
		win("c", "2024-01-03", 1),
		win("d", "2024-01-01", 1), // streak broken by ref
	}
	got := RankStreak(results, map[game.UserKey][]string{u("c"): {"2024-01-01", "2024-01-02"}}, "2024-01-04")
	want := []struct {
		id     string
		streak int
		rank   int
	}{{"a", 2, 1}, {"b", 2, 1}, {"c", 1, 3}}
	if len(got) != len(want) {
		t.Fatalf("RankStreak() = %+v", got)
	}
	for i, w := range want {
		if got[i].UserKey != u(w.id) || got[i].Streak != w.streak || got[i].Rank != w.rank {
			t.Errorf("RankStreak()[%d] = %+v, want %s streak %d rank %d", i, got[i], w.id, w.streak, w.rank)
		}
	}
}

type source struct {
	results []Result
	calls   int
}

func (s *source) ListDailyResults(_ context.Context, from, to string) ([]Result, error) {
	s.calls++
	var out []Result
	for _, r := range s.results {
		if r.GameKey <= to && (from == "" || r.GameKey >= from) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *source) ListFrozenDays(context.Context, string) (map[game.UserKey][]string, error) {
	return nil, nil
}

type mapCache map[string][]Entry

func (c mapCache) Get(_ context.Context, key string) ([]Entry, bool, error) {
	es, ok := c[key]
	return es, ok, nil
}

func (c mapCache) Set(_ context.Context, key string, es []Entry, _ time.Duration) error {
	c[key] = es
	return nil
}

func (c mapCache) Invalidate(_ context.Context, dateKey string) error {
	for k := range c {
		if strings.HasSuffix(k, ":"+dateKey) {
			delete(c, k)
		}
	}
	return nil
}

func TestRankerInvalidateCoversLaterWindows(t *testing.T) {
	src := &source{results: []Result{win("a", "2024-01-08", 3)}}
	cache := mapCache{}
	r := NewRanker(src, cache, time.Minute, 10).
		WithClock(func() time.Time { return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC) })
	ctx := context.Background()

	for _, to := range []string{"2024-01-07", "2024-01-08", "2024-01-09", "2024-01-10"} {
		if _, err := r.Rank(ctx, TypeWins, Window{To: to}, 0, nil); err != nil {
			t.Fatal(err)
		}
	}
	src.results = append(src.results, win("b", "2024-01-08", 2))
	r.Invalidate(ctx, "2024-01-08")

	if len(cache) != 1 {
		t.Errorf("cached views = %v, want only the one ending 2024-01-07", cache)
	}
	b, err := r.Rank(ctx, TypeWins, Window{}, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if b.Total != 2 {
		t.Errorf("today's view total = %d, want 2", b.Total)
	}
	if b, _ := r.Rank(ctx, TypeWins, Window{To: "2024-01-07"}, 0, nil); b.Total != 0 {
		t.Errorf("earlier view total = %d, want 0", b.Total)
	}
}

func TestRankerPersonalEntryAndCache(t *testing.T) {
	src := &source{}
	for i, id := range []string{"a", "b", "c", "d"} {
		for d := 0; d < 4-i; d++ {
			day, _ := game.AddDays("2024-01-01", d)
			src.results = append(src.results, win(id, day, 3))
		}
	}
	cache := mapCache{}
	r := NewRanker(src, cache, time.Minute, 2).
		WithClock(func() time.Time { return time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC) })
	ctx := context.Background()
	me := u("d")

	b, err := r.Rank(ctx, TypeWins, Window{To: "2024-01-10"}, 0, &me)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Entries) != 2 || b.Total != 4 {
		t.Fatalf("Rank() entries %d total %d, want 2 and 4", len(b.Entries), b.Total)
	}
	if b.Personal == nil || b.Personal.UserKey != me || b.Personal.Rank != 4 {
		t.Errorf("Personal = %+v, want d at rank 4", b.Personal)
	}

	top := u("a")
	b, _ = r.Rank(ctx, TypeWins, Window{To: "2024-01-10"}, 0, &top)
	if b.Personal != nil {
		t.Errorf("Personal = %+v for a top entry, want nil", b.Personal)
	}
	if src.calls != 1 {
		t.Errorf("source calls = %d, want 1 (cached)", src.calls)
	}
}

func TestRankerWindow(t *testing.T) {
	r := NewRanker(&source{}, nil, 0, 10).
		WithClock(func() time.Time { return time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC) })
	ctx := context.Background()

	b, err := r.Rank(ctx, TypeScore, Window{}, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if b.Window.To != "2024-01-20" || b.Window.From != "2024-01-07" {
		t.Errorf("Window = %+v, want 2024-01-07..2024-01-20", b.Window)
	}
	if _, err := r.Rank(ctx, TypeScore, Window{From: "2024-02-01", To: "2024-01-01"}, 0, nil); err != ErrInvalidWindow {
		t.Errorf("Rank() error = %v, want %v", err, ErrInvalidWindow)
	}
	if _, err := ParseType("elo"); err != ErrUnknownType {
		t.Errorf("ParseType() error = %v, want %v", err, ErrUnknownType)
	}
}
