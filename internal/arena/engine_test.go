package arena_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cryptods8/openframedl-sub001/internal/arena"
	"github.com/cryptods8/openframedl-sub001/internal/game"
	"github.com/cryptods8/openframedl-sub001/internal/store"
)

type dict map[string]bool

func (d dict) IsValidWord(w string) bool { return d[w] }

var words = dict{"caper": true, "apple": true, "crane": true, "fluid": true, "shout": true, "misty": true, "begun": true}

type randomWords struct{}

func (randomWords) GenerateRandomWords(n int) ([]string, error) {
	out := make([]string, n)
	for i := range out {
		out[i] = "shout"
	}
	return out, nil
}

type notice struct {
	recipients []game.UserKey
	title      string
}

type recorder struct {
	mu   sync.Mutex
	sent []notice
}

func (r *recorder) Notify(_ context.Context, recipients []game.UserKey, title, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, notice{recipients: recipients, title: title})
	return nil
}

func user(id string) game.UserKey {
	return game.UserKey{UserID: id, IdentityProvider: game.ProviderFarcaster}
}

var (
	creator = user("100")
	now     = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
)

func setup(t *testing.T) (*arena.Engine, *game.Engine, *recorder) {
	t.Helper()
	st := store.NewMemory()
	clock := func() time.Time { return now }
	games := game.NewEngine(st, words).WithClock(clock)
	rec := &recorder{}
	return arena.NewEngine(st, games, words, randomWords{}, rec).WithClock(clock), games, rec
}

func create(t *testing.T, e *arena.Engine, cfg arena.Config) *arena.Arena {
	t.Helper()
	a, err := e.Create(context.Background(), creator, cfg)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return a
}

func TestCreateValidation(t *testing.T) {
	e, _, _ := setup(t)
	tests := []struct {
		name string
		cfg  arena.Config
	}{
		{"no words", arena.Config{AudienceSize: 2}},
		{"unknown word", arena.Config{Words: []string{"zzzzz"}, AudienceSize: 2}},
		{"word count mismatch", arena.Config{WordCount: 3, Words: []string{"caper"}, AudienceSize: 2}},
		{"audience too big", arena.Config{Words: []string{"caper"}, AudienceSize: 51}},
		{"sudden death needs two", arena.Config{Words: []string{"caper"}, AudienceSize: 3, SuddenDeath: true}},
		{"interval without minutes", arena.Config{Words: []string{"caper"}, AudienceSize: 2, Duration: arena.Duration{Type: arena.DurationInterval}}},
		{"scheduled without date", arena.Config{Words: []string{"caper"}, AudienceSize: 2, Start: arena.Start{Type: arena.StartScheduled}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Create(context.Background(), creator, tt.cfg); !errors.Is(err, arena.ErrInvalidConfig) {
				t.Errorf("Create() error = %v, want %v", err, arena.ErrInvalidConfig)
			}
		})
	}

	a := create(t, e, arena.Config{Words: []string{" CAPER", "apple"}, AudienceSize: 2})
	if a.Config.WordCount != 2 || a.Config.Words[0] != "caper" {
		t.Errorf("Create() config = %+v", a.Config)
	}
	if a.Config.Start.Type != arena.StartImmediate || a.Config.Duration.Type != arena.DurationUnlimited {
		t.Errorf("Create() defaults = %v/%v", a.Config.Start.Type, a.Config.Duration.Type)
	}
}

func TestJoin(t *testing.T) {
	e, _, rec := setup(t)
	ctx := context.Background()
	a := create(t, e, arena.Config{Words: []string{"caper"}, AudienceSize: 2})

	got, err := e.Join(ctx, a.ID, user("1"), "one")
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if got.StartedAt == nil {
		t.Error("StartedAt not set on first join")
	}
	again, err := e.Join(ctx, a.ID, user("1"), "one")
	if err != nil || len(again.Members) != 1 {
		t.Fatalf("second Join() = %d members, %v", len(again.Members), err)
	}
	if len(rec.sent) != 0 {
		t.Fatalf("notified before the arena was full: %v", rec.sent)
	}

	full, err := e.Join(ctx, a.ID, user("2"), "two")
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if full.LastNotifiedAt == nil || len(rec.sent) != 1 || len(rec.sent[0].recipients) != 2 {
		t.Errorf("fill notification: lastNotifiedAt %v, sent %v", full.LastNotifiedAt, rec.sent)
	}

	if _, err := e.Join(ctx, a.ID, user("3"), "three"); !errors.Is(err, arena.ErrNoFreeSlots) {
		t.Errorf("Join() on full arena error = %v, want %v", err, arena.ErrNoFreeSlots)
	}
	if _, err := e.Join(ctx, "missing", user("3"), ""); !errors.Is(err, arena.ErrArenaNotFound) {
		t.Errorf("Join() on missing arena error = %v, want %v", err, arena.ErrArenaNotFound)
	}
}

func TestJoinLastSlotConcurrently(t *testing.T) {
	e, _, _ := setup(t)
	ctx := context.Background()
	a := create(t, e, arena.Config{Words: []string{"caper"}, AudienceSize: 3})
	for _, id := range []string{"1", "2"} {
		if _, err := e.Join(ctx, a.ID, user(id), ""); err != nil {
			t.Fatal(err)
		}
	}

	const n = 20
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Join(ctx, a.ID, user(fmt.Sprintf("racer-%d", i)), "")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case !errors.Is(err, arena.ErrNoFreeSlots):
			t.Errorf("Join() error = %v, want %v", err, arena.ErrNoFreeSlots)
		}
	}
	if wins != 1 {
		t.Errorf("successful joins = %d, want 1", wins)
	}
	got, _ := e.Get(ctx, a.ID)
	if len(got.Members) != 3 {
		t.Errorf("members = %d, want 3", len(got.Members))
	}
}

func TestKickAndUnkick(t *testing.T) {
	e, _, _ := setup(t)
	ctx := context.Background()
	a := create(t, e, arena.Config{Words: []string{"caper"}, AudienceSize: 2})
	e.Join(ctx, a.ID, user("1"), "")
	e.Join(ctx, a.ID, user("2"), "")

	if _, err := e.Kick(ctx, a.ID, user("1"), user("2")); !errors.Is(err, arena.ErrNotCreator) {
		t.Fatalf("Kick() by non-creator error = %v, want %v", err, arena.ErrNotCreator)
	}
	if _, err := e.Kick(ctx, a.ID, creator, user("2")); err != nil {
		t.Fatalf("Kick() error = %v", err)
	}
	if _, err := e.Join(ctx, a.ID, user("2"), ""); !errors.Is(err, arena.ErrBlacklisted) {
		t.Errorf("Join() after kick error = %v, want %v", err, arena.ErrBlacklisted)
	}
	if _, err := e.PlayNextRound(ctx, a.ID, user("2")); !errors.Is(err, arena.ErrBlacklisted) {
		t.Errorf("PlayNextRound() after kick error = %v, want %v", err, arena.ErrBlacklisted)
	}

	// the freed slot goes to someone else, so readmission must fail
	if _, err := e.Join(ctx, a.ID, user("3"), ""); err != nil {
		t.Fatalf("Join() into freed slot error = %v", err)
	}
	if _, err := e.Unkick(ctx, a.ID, creator, user("2")); !errors.Is(err, arena.ErrNoFreeSlots) {
		t.Errorf("Unkick() into full arena error = %v, want %v", err, arena.ErrNoFreeSlots)
	}
	e.Kick(ctx, a.ID, creator, user("3"))
	got, err := e.Unkick(ctx, a.ID, creator, user("2"))
	if err != nil {
		t.Fatalf("Unkick() error = %v", err)
	}
	if m := arena.MembershipOf(got, user("2")); m != arena.MembershipMember {
		t.Errorf("MembershipOf() = %v, want %v", m, arena.MembershipMember)
	}
}

func TestPlayRounds(t *testing.T) {
	e, games, _ := setup(t)
	ctx := context.Background()
	a := create(t, e, arena.Config{Words: []string{"caper", "apple"}, AudienceSize: 2})

	if _, err := e.PlayNextRound(ctx, a.ID, user("1")); !errors.Is(err, arena.ErrNotMember) {
		t.Fatalf("PlayNextRound() before join error = %v, want %v", err, arena.ErrNotMember)
	}
	e.Join(ctx, a.ID, user("1"), "")

	g, err := e.PlayNextRound(ctx, a.ID, user("1"))
	if err != nil {
		t.Fatalf("PlayNextRound() error = %v", err)
	}
	if g.Word != "caper" || *g.ArenaWordIndex != 0 {
		t.Fatalf("round 0 = word %q index %d", g.Word, *g.ArenaWordIndex)
	}
	same, _ := e.PlayNextRound(ctx, a.ID, user("1"))
	if same.ID != g.ID {
		t.Errorf("PlayNextRound() with open round returned %q, want %q", same.ID, g.ID)
	}

	games.Guess(ctx, g, "caper")
	g, err = e.PlayNextRound(ctx, a.ID, user("1"))
	if err != nil || g.Word != "apple" || *g.ArenaWordIndex != 1 {
		t.Fatalf("round 1 = %+v, %v", g, err)
	}
	g, _, _ = games.Guess(ctx, g, "crane")
	if _, err := e.PlayNextRound(ctx, a.ID, user("1")); err != nil {
		t.Fatalf("PlayNextRound() mid-round error = %v", err)
	}
	for _, w := range []string{"fluid", "shout", "misty", "begun", "caper"} {
		g, _, _ = games.Guess(ctx, g, w)
	}
	if g.Status != game.StatusLost {
		t.Fatalf("round 1 status = %v, want %v", g.Status, game.StatusLost)
	}
	if _, err := e.PlayNextRound(ctx, a.ID, user("1")); !errors.Is(err, arena.ErrArenaCompleted) {
		t.Errorf("PlayNextRound() after last round error = %v, want %v", err, arena.ErrArenaCompleted)
	}

	standings, _ := e.Standings(ctx, a.ID)
	if len(standings) != 1 || standings[0].Wins != 1 || standings[0].Guesses != 1+game.MaxGuesses {
		t.Errorf("Standings() = %+v", standings)
	}
}

func TestPlayRandomWords(t *testing.T) {
	e, _, _ := setup(t)
	ctx := context.Background()
	a := create(t, e, arena.Config{WordCount: 3, RandomWords: true, AudienceSize: 1, IsHardModeRequired: true})
	e.Join(ctx, a.ID, user("1"), "")
	g, err := e.PlayNextRound(ctx, a.ID, user("1"))
	if err != nil {
		t.Fatalf("PlayNextRound() error = %v", err)
	}
	if g.Word != "shout" || !g.IsHardMode {
		t.Errorf("PlayNextRound() = word %q hard %v, want shout/true", g.Word, g.IsHardMode)
	}
}

func TestPlayBeforeScheduledStart(t *testing.T) {
	e, _, _ := setup(t)
	ctx := context.Background()
	start := now.Add(time.Hour)
	a := create(t, e, arena.Config{Words: []string{"caper"}, AudienceSize: 2, Start: arena.Start{Type: arena.StartScheduled, Date: &start}})
	joined, err := e.Join(ctx, a.ID, user("1"), "")
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if joined.StartedAt != nil {
		t.Errorf("StartedAt = %v, want unset before the scheduled date", joined.StartedAt)
	}
	if _, err := e.PlayNextRound(ctx, a.ID, user("1")); !errors.Is(err, arena.ErrArenaNotStarted) {
		t.Errorf("PlayNextRound() error = %v, want %v", err, arena.ErrArenaNotStarted)
	}
}

func TestJoinAfterIntervalEnded(t *testing.T) {
	st := store.NewMemory()
	clock := now
	games := game.NewEngine(st, words)
	e := arena.NewEngine(st, games, words, randomWords{}, nil).WithClock(func() time.Time { return clock })
	ctx := context.Background()
	a := create(t, e, arena.Config{Words: []string{"caper"}, AudienceSize: 3, Duration: arena.Duration{Type: arena.DurationInterval, Minutes: 10}})
	e.Join(ctx, a.ID, user("1"), "")

	clock = now.Add(11 * time.Minute)
	if _, err := e.Join(ctx, a.ID, user("2"), ""); !errors.Is(err, arena.ErrArenaClosed) {
		t.Errorf("Join() error = %v, want %v", err, arena.ErrArenaClosed)
	}
	if _, err := e.PlayNextRound(ctx, a.ID, user("1")); !errors.Is(err, arena.ErrArenaClosed) {
		t.Errorf("PlayNextRound() error = %v, want %v", err, arena.ErrArenaClosed)
	}
}

func TestRoundCompletedNotifiesWhenDecided(t *testing.T) {
	e, games, rec := setup(t)
	ctx := context.Background()
	a := create(t, e, arena.Config{Words: []string{"caper", "apple", "crane"}, AudienceSize: 2, SuddenDeath: true})
	e.Join(ctx, a.ID, user("1"), "")
	e.Join(ctx, a.ID, user("2"), "")
	rec.sent = nil

	play := func(u game.UserKey, guesses ...string) *game.Game {
		g, err := e.PlayNextRound(ctx, a.ID, u)
		if err != nil {
			t.Fatalf("PlayNextRound(%v) error = %v", u, err)
		}
		for _, w := range guesses {
			g, _, _ = games.Guess(ctx, g, w)
		}
		if err := e.RoundCompleted(ctx, g); err != nil {
			t.Fatalf("RoundCompleted() error = %v", err)
		}
		return g
	}
	lose := []string{"fluid", "shout", "misty", "begun", "crane", "apple"}
	play(user("1"), "caper")
	play(user("1"), "apple")
	play(user("2"), lose...)
	if len(rec.sent) != 0 {
		t.Fatalf("notified too early: %v", rec.sent)
	}
	play(user("2"), "fluid", "shout", "misty", "begun", "crane", "caper")
	if len(rec.sent) != 1 || rec.sent[0].title != "Arena finished" {
		t.Fatalf("notifications = %v", rec.sent)
	}
	if _, err := e.PlayNextRound(ctx, a.ID, user("2")); !errors.Is(err, arena.ErrArenaClosed) {
		t.Errorf("PlayNextRound() after sudden death error = %v, want %v", err, arena.ErrArenaClosed)
	}
}

func TestGuessNotifiesFinishOnce(t *testing.T) {
	e, _, rec := setup(t)
	ctx := context.Background()
	a := create(t, e, arena.Config{Words: []string{"caper"}, AudienceSize: 1})
	e.Join(ctx, a.ID, user("1"), "")
	rec.sent = nil

	g, err := e.PlayNextRound(ctx, a.ID, user("1"))
	if err != nil {
		t.Fatalf("PlayNextRound() error = %v", err)
	}
	g, res, err := e.Guess(ctx, g, "caper")
	if err != nil || res != game.Valid || g.Status != game.StatusWon {
		t.Fatalf("Guess() = %v %q %v", g.Status, res, err)
	}
	if len(rec.sent) != 1 || rec.sent[0].title != "Arena finished" {
		t.Fatalf("notifications = %v", rec.sent)
	}
	for i := 0; i < 2; i++ {
		if err := e.RoundCompleted(ctx, g); err != nil {
			t.Fatalf("RoundCompleted() error = %v", err)
		}
	}
	if len(rec.sent) != 1 {
		t.Errorf("notifications after repeated completion = %d, want 1", len(rec.sent))
	}
	got, _ := e.Get(ctx, a.ID)
	if got.FinishedAt == nil || !got.FinishedAt.Equal(now) {
		t.Errorf("FinishedAt = %v, want %v", got.FinishedAt, now)
	}
}

func TestGuessAfterIntervalEnded(t *testing.T) {
	st := store.NewMemory()
	clock := now
	games := game.NewEngine(st, words)
	rec := &recorder{}
	e := arena.NewEngine(st, games, words, randomWords{}, rec).WithClock(func() time.Time { return clock })
	ctx := context.Background()
	a := create(t, e, arena.Config{Words: []string{"caper"}, AudienceSize: 2, Duration: arena.Duration{Type: arena.DurationInterval, Minutes: 10}})
	e.Join(ctx, a.ID, user("1"), "")
	g, err := e.PlayNextRound(ctx, a.ID, user("1"))
	if err != nil {
		t.Fatalf("PlayNextRound() error = %v", err)
	}

	clock = now.Add(10 * time.Minute)
	g, _, err = e.Guess(ctx, g, "crane")
	if err != nil {
		t.Fatalf("Guess() at the interval boundary error = %v", err)
	}

	clock = now.Add(11 * time.Minute)
	got, _, err := e.Guess(ctx, g, "caper")
	if !errors.Is(err, arena.ErrArenaClosed) {
		t.Fatalf("Guess() after the interval error = %v, want %v", err, arena.ErrArenaClosed)
	}
	if len(got.Guesses) != 1 || got.Status.Terminal() {
		t.Errorf("rejected guess changed the round: %v %v", got.Guesses, got.Status)
	}
	stored, _ := games.Load(ctx, g.ID)
	if len(stored.Guesses) != 1 {
		t.Errorf("stored guesses = %v, want 1", stored.Guesses)
	}
	if len(rec.sent) != 0 {
		t.Errorf("notifications = %v", rec.sent)
	}
}

func TestGuessByKickedMember(t *testing.T) {
	e, _, _ := setup(t)
	ctx := context.Background()
	a := create(t, e, arena.Config{Words: []string{"caper"}, AudienceSize: 3})
	e.Join(ctx, a.ID, user("1"), "")
	e.Join(ctx, a.ID, user("2"), "")
	g, err := e.PlayNextRound(ctx, a.ID, user("2"))
	if err != nil {
		t.Fatalf("PlayNextRound() error = %v", err)
	}
	if _, err := e.Kick(ctx, a.ID, creator, user("2")); err != nil {
		t.Fatalf("Kick() error = %v", err)
	}
	if _, _, err := e.Guess(ctx, g, "caper"); !errors.Is(err, arena.ErrBlacklisted) {
		t.Errorf("Guess() by kicked member error = %v, want %v", err, arena.ErrBlacklisted)
	}
}
