package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cryptods8/openframedl-sub001/internal/apperr"
	"github.com/cryptods8/openframedl-sub001/internal/arena"
	"github.com/cryptods8/openframedl-sub001/internal/database"
	"github.com/cryptods8/openframedl-sub001/internal/game"
)

const arenaColumns = `id, creator_user_id, creator_provider, config, members,
	started_at, last_notified_at, finished_at, created_at, version`

// ArenaRepository persists arenas. Config and members are stored as JSON
// documents; every membership change rewrites the row under a version check.
type ArenaRepository struct {
	db *database.DB
}

func NewArenaRepository(db *database.DB) *ArenaRepository {
	return &ArenaRepository{db: db}
}

func (r *ArenaRepository) FindArena(ctx context.Context, id string) (*arena.Arena, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+arenaColumns+` FROM arenas WHERE id = ?`, id)
	var (
		a              arena.Arena
		provider       string
		config         string
		members        string
		startedAt      sql.NullInt64
		lastNotifiedAt sql.NullInt64
		finishedAt     sql.NullInt64
		createdAt      int64
	)
	err := row.Scan(&a.ID, &a.CreatorKey.UserID, &provider, &config, &members,
		&startedAt, &lastNotifiedAt, &finishedAt, &createdAt, &a.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan arena: %w", err)
	}
	a.CreatorKey.IdentityProvider = game.IdentityProvider(provider)
	if err := json.Unmarshal([]byte(config), &a.Config); err != nil {
		return nil, fmt.Errorf("decode arena config %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(members), &a.Members); err != nil {
		return nil, fmt.Errorf("decode arena members %s: %w", id, err)
	}
	a.StartedAt = timePtr(startedAt)
	a.LastNotifiedAt = timePtr(lastNotifiedAt)
	a.FinishedAt = timePtr(finishedAt)
	a.CreatedAt = fromNanos(createdAt)
	return &a, nil
}

func (r *ArenaRepository) InsertArena(ctx context.Context, a *arena.Arena) error {
	config, members, err := encodeArenaJSON(a)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO arenas (`+arenaColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CreatorKey.UserID, string(a.CreatorKey.IdentityProvider), config, members,
		nullNanos(a.StartedAt), nullNanos(a.LastNotifiedAt), nullNanos(a.FinishedAt), toNanos(a.CreatedAt), a.Version)
	if r.db.IsUniqueViolation(err) {
		return apperr.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert arena: %w", err)
	}
	return nil
}

// UpdateArena writes a only if the stored version still equals expectedVersion.
func (r *ArenaRepository) UpdateArena(ctx context.Context, a *arena.Arena, expectedVersion int) error {
	config, members, err := encodeArenaJSON(a)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE arenas SET
			config = ?, members = ?, started_at = ?, last_notified_at = ?, finished_at = ?, version = ?
		WHERE id = ? AND version = ?`,
		config, members, nullNanos(a.StartedAt), nullNanos(a.LastNotifiedAt), nullNanos(a.FinishedAt), a.Version,
		a.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update arena: %w", err)
	}
	return checkAffected(ctx, r.db, res, `SELECT 1 FROM arenas WHERE id = ?`, a.ID)
}

func encodeArenaJSON(a *arena.Arena) (string, string, error) {
	config, err := encodeJSON(a.Config)
	if err != nil {
		return "", "", err
	}
	ms := a.Members
	if ms == nil {
		ms = []arena.Member{}
	}
	members, err := encodeJSON(ms)
	if err != nil {
		return "", "", err
	}
	return config, members, nil
}
