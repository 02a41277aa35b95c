package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cryptods8/openframedl-sub001/internal/apperr"
	"github.com/cryptods8/openframedl-sub001/internal/arena"
	"github.com/cryptods8/openframedl-sub001/internal/config"
	"github.com/cryptods8/openframedl-sub001/internal/database"
	"github.com/cryptods8/openframedl-sub001/internal/freeze"
	"github.com/cryptods8/openframedl-sub001/internal/game"
	"github.com/cryptods8/openframedl-sub001/internal/repository"
	"github.com/cryptods8/openframedl-sub001/internal/words"
)

var (
	alice = game.UserKey{UserID: "1", IdentityProvider: game.ProviderFarcaster}
	bob   = game.UserKey{UserID: "2", IdentityProvider: game.ProviderFarcaster}
	t0    = time.Date(2024, 3, 10, 12, 0, 0, 123, time.UTC)
)

func newStore(t *testing.T) *repository.Store {
	t.Helper()
	db, err := database.Open(&config.Config{DatabaseType: "sqlite", DatabasePath: filepath.Join(t.TempDir(), "repo.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return repository.New(db)
}

func newGame(id string, user game.UserKey, key string, daily bool) *game.Game {
	return &game.Game{
		ID:        id,
		UserKey:   user,
		GameKey:   key,
		IsDaily:   daily,
		Word:      "crane",
		Guesses:   []string{},
		Status:    game.StatusInProgress,
		CreatedAt: t0,
		UpdatedAt: t0,
		Version:   1,
	}
}

func TestGameRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	arenaID := "arena-1"
	idx := 2
	g := newGame("g1", alice, "2024-03-10", true)
	g.ArenaID = &arenaID
	g.ArenaWordIndex = &idx
	g.GameData = map[string]any{"source": "frame"}
	if err := s.InsertGame(ctx, g); err != nil {
		t.Fatalf("InsertGame() error = %v", err)
	}

	got, err := s.FindGame(ctx, g.Key())
	if err != nil {
		t.Fatalf("FindGame() error = %v", err)
	}
	if got.ID != "g1" || got.Word != "crane" || !got.IsDaily || got.UserKey != alice {
		t.Errorf("FindGame() = %+v", got)
	}
	if !got.CreatedAt.Equal(t0) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, t0)
	}
	if got.ArenaID == nil || *got.ArenaID != arenaID || got.ArenaWordIndex == nil || *got.ArenaWordIndex != 2 {
		t.Errorf("arena fields = %v %v", got.ArenaID, got.ArenaWordIndex)
	}
	if got.GameData["source"] != "frame" {
		t.Errorf("GameData = %v", got.GameData)
	}
	if got.CompletedAt != nil {
		t.Errorf("CompletedAt = %v, want nil", got.CompletedAt)
	}

	if _, err := s.FindGameByID(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("FindGameByID(missing) error = %v, want ErrNotFound", err)
	}
	practice := newGame("g1b", alice, "2024-03-10", false)
	if err := s.InsertGame(ctx, practice); err != nil {
		t.Errorf("same key, not daily: InsertGame() error = %v", err)
	}
}

func TestInsertGameNaturalKeyConflict(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	if err := s.InsertGame(ctx, newGame("g1", alice, "2024-03-10", true)); err != nil {
		t.Fatal(err)
	}
	err := s.InsertGame(ctx, newGame("g2", alice, "2024-03-10", true))
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("InsertGame(duplicate) error = %v, want ErrConflict", err)
	}
}

func TestUpdateGameVersionCheck(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	g := newGame("g1", alice, "2024-03-10", true)
	if err := s.InsertGame(ctx, g); err != nil {
		t.Fatal(err)
	}

	next := g.Clone()
	next.Guesses = []string{"crane"}
	next.GuessCount = 1
	next.Status = game.StatusWon
	done := t0.Add(time.Minute)
	next.CompletedAt = &done
	next.Version = 2
	if err := s.UpdateGame(ctx, next, 1); err != nil {
		t.Fatalf("UpdateGame() error = %v", err)
	}

	stale := g.Clone()
	stale.Version = 2
	if err := s.UpdateGame(ctx, stale, 1); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale UpdateGame() error = %v, want ErrConflict", err)
	}
	missing := newGame("nope", bob, "x", false)
	if err := s.UpdateGame(ctx, missing, 1); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("UpdateGame(missing) error = %v, want ErrNotFound", err)
	}

	got, err := s.FindGameByID(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 2 || got.Status != game.StatusWon || len(got.Guesses) != 1 || got.CompletedAt == nil {
		t.Errorf("after update = %+v", got)
	}
}

func TestHistoryQueries(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	seed := []struct {
		id     string
		user   game.UserKey
		key    string
		status game.Status
		count  int
	}{
		{"a1", alice, "2024-03-01", game.StatusWon, 3},
		{"a2", alice, "2024-03-02", game.StatusLost, 6},
		{"a3", alice, "2024-03-03", game.StatusWon, 4},
		{"a4", alice, "2024-03-04", game.StatusInProgress, 2},
		{"b1", bob, "2024-03-03", game.StatusWon, 2},
	}
	for _, r := range seed {
		g := newGame(r.id, r.user, r.key, true)
		g.Status = r.status
		g.GuessCount = r.count
		if err := s.InsertGame(ctx, g); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.InsertGame(ctx, newGame("p1", alice, game.PracticeKey(), false)); err != nil {
		t.Fatal(err)
	}

	won, err := s.ListWonDailyDates(ctx, alice)
	if err != nil {
		t.Fatal(err)
	}
	if len(won) != 2 || won[0] != "2024-03-01" || won[1] != "2024-03-03" {
		t.Errorf("ListWonDailyDates() = %v", won)
	}

	tests := []struct {
		name     string
		from, to string
		want     int
	}{
		{"unbounded", "", "2024-03-31", 4},
		{"window", "2024-03-02", "2024-03-03", 3},
		{"upper bound excludes", "", "2024-03-01", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListDailyResults(ctx, tt.from, tt.to)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("ListDailyResults(%q, %q) = %d rows, want %d", tt.from, tt.to, len(got), tt.want)
			}
		})
	}
}

func TestArenaRoundTripAndVersionCheck(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	start := t0.Add(time.Hour)
	a := &arena.Arena{
		ID:         "ar1",
		CreatorKey: alice,
		Config: arena.Config{
			WordCount:    2,
			Words:        []string{"crane", "slate"},
			AudienceSize: 3,
			Audience:     []arena.AudienceMember{{UserID: "2", IdentityProvider: game.ProviderFarcaster}},
			Duration:     arena.Duration{Type: arena.DurationInterval, Minutes: 60},
			Start:        arena.Start{Type: arena.StartScheduled, Date: &start},
			SuddenDeath:  true,
		},
		Members:   []arena.Member{},
		CreatedAt: t0,
		Version:   1,
	}
	if err := s.InsertArena(ctx, a); err != nil {
		t.Fatalf("InsertArena() error = %v", err)
	}
	if err := s.InsertArena(ctx, a); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate InsertArena() error = %v, want ErrConflict", err)
	}

	next := a.Clone()
	next.Members = append(next.Members, arena.Member{UserID: "2", IdentityProvider: game.ProviderFarcaster, JoinedAt: t0})
	next.StartedAt = &start
	next.FinishedAt = &start
	next.Version = 2
	if err := s.UpdateArena(ctx, next, 1); err != nil {
		t.Fatalf("UpdateArena() error = %v", err)
	}
	if err := s.UpdateArena(ctx, next, 1); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale UpdateArena() error = %v, want ErrConflict", err)
	}

	got, err := s.FindArena(ctx, "ar1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 2 || len(got.Members) != 1 || got.StartedAt == nil || !got.StartedAt.Equal(start) ||
		got.FinishedAt == nil || !got.FinishedAt.Equal(start) {
		t.Errorf("FindArena() = %+v", got)
	}
	if !got.Config.SuddenDeath || got.Config.Start.Date == nil || len(got.Config.Words) != 2 {
		t.Errorf("config = %+v", got.Config)
	}

	for i, w := range []string{"crane", "slate"} {
		idx := i
		id := "ar1"
		g := newGame("ag"+w, bob, game.ArenaKey(id, idx), false)
		g.ArenaID = &id
		g.ArenaWordIndex = &idx
		g.CreatedAt = t0.Add(time.Duration(i) * time.Minute)
		if err := s.InsertGame(ctx, g); err != nil {
			t.Fatal(err)
		}
	}
	games, err := s.ListArenaGames(ctx, "ar1")
	if err != nil {
		t.Fatal(err)
	}
	if len(games) != 2 || *games[0].ArenaWordIndex != 0 || *games[1].ArenaWordIndex != 1 {
		t.Errorf("ListArenaGames() = %d games", len(games))
	}
}

func TestFreezeLedgerConstraints(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	earned := &freeze.Mint{
		ID: "m1", UserKey: alice, Source: freeze.SourceEarned,
		EarnedAtStreakLength: 100, EarnedAtGameKey: "2024-03-10",
		ClaimNonce: "n", ClaimSignature: "sig", CreatedAt: t0,
	}
	if err := s.InsertMint(ctx, earned); err != nil {
		t.Fatalf("InsertMint() error = %v", err)
	}
	dup := *earned
	dup.ID = "m2"
	if err := s.InsertMint(ctx, &dup); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate earned InsertMint() error = %v, want ErrConflict", err)
	}
	ok, err := s.HasEarnedForGameKey(ctx, alice, "2024-03-10")
	if err != nil || !ok {
		t.Errorf("HasEarnedForGameKey() = %v, %v", ok, err)
	}

	purchase := func(id, ref string) *freeze.Mint {
		return &freeze.Mint{ID: id, UserKey: alice, Source: freeze.SourcePurchased, PurchaseTxRef: ref, WalletAddress: "0xabc", CreatedAt: t0}
	}
	if err := s.InsertMint(ctx, purchase("p1", "0x01")); err != nil {
		t.Fatalf("purchase InsertMint() error = %v", err)
	}
	if err := s.InsertMint(ctx, purchase("p2", "0x02")); err != nil {
		t.Fatalf("second purchase InsertMint() error = %v", err)
	}
	if err := s.InsertMint(ctx, purchase("p3", "0x01")); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate purchase error = %v, want ErrConflict", err)
	}

	if err := s.MarkMintClaimed(ctx, "m1", "0xclaim", t0); err != nil {
		t.Fatalf("MarkMintClaimed() error = %v", err)
	}
	if err := s.MarkMintClaimed(ctx, "m1", "0xother", t0); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("second MarkMintClaimed() error = %v, want ErrConflict", err)
	}
	if err := s.MarkMintClaimed(ctx, "missing", "0x", t0); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("MarkMintClaimed(missing) error = %v, want ErrNotFound", err)
	}
	m, err := s.FindMint(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if !m.Claimed() || *m.ClaimTxHash != "0xclaim" || m.EarnedAtStreakLength != 100 {
		t.Errorf("FindMint() = %+v", m)
	}
	mints, err := s.ListMints(ctx, alice)
	if err != nil || len(mints) != 3 {
		t.Errorf("ListMints() = %d, %v; want 3", len(mints), err)
	}

	applied := func(id, key string) *freeze.Applied {
		return &freeze.Applied{ID: id, UserKey: alice, AppliedToGameKey: key, BurnTxHash: "0xb" + id, WalletAddress: "0xabc", CreatedAt: t0}
	}
	if err := s.InsertApplied(ctx, applied("f1", "2024-03-05")); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertApplied(ctx, applied("f2", "2024-03-05")); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate InsertApplied() error = %v, want ErrConflict", err)
	}
	if err := s.InsertApplied(ctx, applied("f3", "2024-03-07")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.FindApplied(ctx, alice, "2024-03-06"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("FindApplied(missing) error = %v, want ErrNotFound", err)
	}
	keys, err := s.ListFrozenDates(ctx, alice)
	if err != nil || len(keys) != 2 || keys[0] != "2024-03-05" {
		t.Errorf("ListFrozenDates() = %v, %v", keys, err)
	}
	days, err := s.ListFrozenDays(ctx, "2024-03-06")
	if err != nil || len(days[alice]) != 1 {
		t.Errorf("ListFrozenDays() = %v, %v", days, err)
	}

	reused := applied("f4", "2024-03-09")
	reused.BurnTxHash = "0xbf1"
	if err := s.InsertApplied(ctx, reused); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("InsertApplied(reused burn) error = %v, want ErrConflict", err)
	}
	other := *earned
	other.ID, other.EarnedAtGameKey = "m3", "2024-03-20"
	if err := s.InsertMint(ctx, &other); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkMintClaimed(ctx, "m3", "0xclaim", t0); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("MarkMintClaimed(reused tx) error = %v, want ErrConflict", err)
	}

	for tx, want := range map[string]bool{"0x01": true, "0xclaim": true, "0xbf1": true, "0xnever": false} {
		got, err := s.TxHashRecorded(ctx, tx)
		if err != nil || got != want {
			t.Errorf("TxHashRecorded(%s) = %v, %v, want %v", tx, got, err, want)
		}
	}
}

func TestEngineOverSQLite(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	dict := words.New([]string{"crane", "slate"}, []string{"trace"})
	eng := game.NewEngine(s, dict)
	key := game.UserGameKey{UserKey: alice, GameKey: "2024-03-10", IsDaily: true}
	pick := func(context.Context, game.UserGameKey) (string, error) { return "crane", nil }

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]bool{}
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := eng.LoadOrCreate(ctx, key, game.CreateOptions{PreCreate: pick})
			if err != nil {
				t.Errorf("LoadOrCreate() error = %v", err)
				return
			}
			mu.Lock()
			ids[g.ID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(ids) != 1 {
		t.Fatalf("LoadOrCreate() produced %d games, want 1", len(ids))
	}

	g, err := eng.LoadOrCreate(ctx, key, game.CreateOptions{PreCreate: pick})
	if err != nil {
		t.Fatal(err)
	}
	g, res, err := eng.Guess(ctx, g, "trace")
	if err != nil || res != game.Valid {
		t.Fatalf("Guess(trace) = %v, %v", res, err)
	}
	g, _, err = eng.Guess(ctx, g, "crane")
	if err != nil {
		t.Fatal(err)
	}
	if g.Status != game.StatusWon || g.GuessCount != 2 {
		t.Errorf("after win = %s/%d", g.Status, g.GuessCount)
	}
	won, _ := s.ListWonDailyDates(ctx, alice)
	if len(won) != 1 {
		t.Errorf("ListWonDailyDates() = %v", won)
	}
}
