// In-memory implementation of every persistence port.
//
// Characteristics:
//   - Concurrency-safe via one RWMutex (concurrent reads allowed, writes exclusive).
//   - Records are deep-copied on the way in and out, so callers never alias
//     stored state.
//   - Natural-key uniqueness and version checks match the SQL repositories.
//   - State is lost when the process restarts.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cryptods8/openframedl-sub001/internal/apperr"
	"github.com/cryptods8/openframedl-sub001/internal/arena"
	"github.com/cryptods8/openframedl-sub001/internal/freeze"
	"github.com/cryptods8/openframedl-sub001/internal/game"
	"github.com/cryptods8/openframedl-sub001/internal/leaderboard"
)

type appliedKey struct {
	user    game.UserKey
	gameKey string
}

// Memory is a map-backed store.
type Memory struct {
	mu        sync.RWMutex
	games     map[string]*game.Game          // by ID
	gameKeys  map[game.UserGameKey]string    // natural key -> ID
	arenas    map[string]*arena.Arena        // by ID
	mints     map[string]*freeze.Mint        // by ID
	earned    map[appliedKey]string          // (user, earnedAtGameKey) -> mint ID
	txs       map[string]bool                // purchase, claim and burn tx hashes
	applied   map[appliedKey]*freeze.Applied // (user, appliedToGameKey)
}

// NewMemory constructs an empty store.
func NewMemory() *Memory {
	return &Memory{
		games:     make(map[string]*game.Game),
		gameKeys:  make(map[game.UserGameKey]string),
		arenas:    make(map[string]*arena.Arena),
		mints:     make(map[string]*freeze.Mint),
		earned:    make(map[appliedKey]string),
		txs:       make(map[string]bool),
		applied:   make(map[appliedKey]*freeze.Applied),
	}
}

// --- games ---

func (m *Memory) FindGame(_ context.Context, key game.UserGameKey) (*game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.gameKeys[key]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return m.games[id].Clone(), nil
}

func (m *Memory) FindGameByID(_ context.Context, id string) (*game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return g.Clone(), nil
}

func (m *Memory) InsertGame(_ context.Context, g *game.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.gameKeys[g.Key()]; ok {
		return apperr.ErrConflict
	}
	if _, ok := m.games[g.ID]; ok {
		return apperr.ErrConflict
	}
	m.games[g.ID] = g.Clone()
	m.gameKeys[g.Key()] = g.ID
	return nil
}

func (m *Memory) UpdateGame(_ context.Context, g *game.Game, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.games[g.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return apperr.ErrConflict
	}
	m.games[g.ID] = g.Clone()
	return nil
}

// --- arenas ---

func (m *Memory) FindArena(_ context.Context, id string) (*arena.Arena, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.arenas[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return a.Clone(), nil
}

func (m *Memory) InsertArena(_ context.Context, a *arena.Arena) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.arenas[a.ID]; ok {
		return apperr.ErrConflict
	}
	m.arenas[a.ID] = a.Clone()
	return nil
}

func (m *Memory) UpdateArena(_ context.Context, a *arena.Arena, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.arenas[a.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return apperr.ErrConflict
	}
	m.arenas[a.ID] = a.Clone()
	return nil
}

func (m *Memory) ListArenaGames(_ context.Context, arenaID string) ([]*game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*game.Game
	for _, g := range m.games {
		if g.ArenaID != nil && *g.ArenaID == arenaID {
			out = append(out, g.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- history ---

func (m *Memory) ListWonDailyDates(_ context.Context, user game.UserKey) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, g := range m.games {
		if g.IsDaily && g.UserKey == user && g.Status == game.StatusWon {
			out = append(out, g.GameKey)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) ListFrozenDates(ctx context.Context, user game.UserKey) ([]string, error) {
	return m.ListAppliedGameKeys(ctx, user)
}

func (m *Memory) ListDailyResults(_ context.Context, from, to string) ([]leaderboard.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []leaderboard.Result
	for _, g := range m.games {
		if !g.IsDaily || !g.Status.Terminal() || g.GameKey > to || (from != "" && g.GameKey < from) {
			continue
		}
		out = append(out, leaderboard.Result{UserKey: g.UserKey, GameKey: g.GameKey, Won: g.IsWon(), GuessCount: g.GuessCount})
	}
	return out, nil
}

func (m *Memory) ListFrozenDays(_ context.Context, to string) (map[game.UserKey][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[game.UserKey][]string)
	for k := range m.applied {
		if k.gameKey <= to {
			out[k.user] = append(out[k.user], k.gameKey)
		}
	}
	return out, nil
}

// --- freeze ledger ---

func (m *Memory) HasEarnedForGameKey(_ context.Context, user game.UserKey, gameKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.earned[appliedKey{user, gameKey}]
	return ok, nil
}

func (m *Memory) InsertMint(_ context.Context, mint *freeze.Mint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch mint.Source {
	case freeze.SourceEarned:
		k := appliedKey{mint.UserKey, mint.EarnedAtGameKey}
		if _, ok := m.earned[k]; ok {
			return apperr.ErrConflict
		}
		m.earned[k] = mint.ID
	case freeze.SourcePurchased:
		if m.txs[mint.PurchaseTxRef] {
			return apperr.ErrConflict
		}
		m.txs[mint.PurchaseTxRef] = true
	}
	m.mints[mint.ID] = mint.Clone()
	return nil
}

func (m *Memory) FindMint(_ context.Context, id string) (*freeze.Mint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mint, ok := m.mints[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return mint.Clone(), nil
}

func (m *Memory) MarkMintClaimed(_ context.Context, id, txHash string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mint, ok := m.mints[id]
	if !ok {
		return apperr.ErrNotFound
	}
	if mint.Claimed() || m.txs[txHash] {
		return apperr.ErrConflict
	}
	m.txs[txHash] = true
	mint.ClaimTxHash = &txHash
	mint.ClaimedAt = &at
	return nil
}

func (m *Memory) ListMints(_ context.Context, user game.UserKey) ([]*freeze.Mint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*freeze.Mint
	for _, mint := range m.mints {
		if mint.UserKey == user {
			out = append(out, mint.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) FindApplied(_ context.Context, user game.UserKey, gameKey string) (*freeze.Applied, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.applied[appliedKey{user, gameKey}]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *Memory) InsertApplied(_ context.Context, a *freeze.Applied) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := appliedKey{a.UserKey, a.AppliedToGameKey}
	if _, ok := m.applied[k]; ok || m.txs[a.BurnTxHash] {
		return apperr.ErrConflict
	}
	m.txs[a.BurnTxHash] = true
	cp := *a
	m.applied[k] = &cp
	return nil
}

func (m *Memory) TxHashRecorded(_ context.Context, txHash string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.txs[txHash], nil
}

func (m *Memory) ListAppliedGameKeys(_ context.Context, user game.UserKey) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for k := range m.applied {
		if k.user == user {
			out = append(out, k.gameKey)
		}
	}
	sort.Strings(out)
	return out, nil
}
