package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cryptods8/openframedl-sub001/internal/apperr"
	"github.com/cryptods8/openframedl-sub001/internal/database"
	"github.com/cryptods8/openframedl-sub001/internal/game"
	"github.com/cryptods8/openframedl-sub001/internal/leaderboard"
)

const gameColumns = `id, user_id, identity_provider, game_key, is_daily, word, guesses, status,
	guess_count, is_hard_mode, arena_id, arena_word_index, game_data,
	created_at, updated_at, completed_at, version`

// GameRepository persists games.
type GameRepository struct {
	db *database.DB
}

func NewGameRepository(db *database.DB) *GameRepository {
	return &GameRepository{db: db}
}

func (r *GameRepository) FindGame(ctx context.Context, key game.UserGameKey) (*game.Game, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games
		WHERE user_id = ? AND identity_provider = ? AND game_key = ? AND is_daily = ?`,
		key.UserID, string(key.IdentityProvider), key.GameKey, key.IsDaily)
	return scanGame(row)
}

func (r *GameRepository) FindGameByID(ctx context.Context, id string) (*game.Game, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id = ?`, id)
	return scanGame(row)
}

func (r *GameRepository) InsertGame(ctx context.Context, g *game.Game) error {
	guesses, data, err := encodeGameJSON(g)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO games (`+gameColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserKey.UserID, string(g.UserKey.IdentityProvider), g.GameKey, g.IsDaily, g.Word,
		guesses, string(g.Status), g.GuessCount, g.IsHardMode,
		nullStringPtr(g.ArenaID), nullIntPtr(g.ArenaWordIndex), data,
		toNanos(g.CreatedAt), toNanos(g.UpdatedAt), nullNanos(g.CompletedAt), g.Version)
	if r.db.IsUniqueViolation(err) {
		return apperr.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

// UpdateGame writes g only if the stored version still equals expectedVersion.
func (r *GameRepository) UpdateGame(ctx context.Context, g *game.Game, expectedVersion int) error {
	guesses, data, err := encodeGameJSON(g)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE games SET
			word = ?, guesses = ?, status = ?, guess_count = ?, is_hard_mode = ?,
			game_data = ?, updated_at = ?, completed_at = ?, version = ?
		WHERE id = ? AND version = ?`,
		g.Word, guesses, string(g.Status), g.GuessCount, g.IsHardMode,
		data, toNanos(g.UpdatedAt), nullNanos(g.CompletedAt), g.Version,
		g.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update game: %w", err)
	}
	return checkAffected(ctx, r.db, res, `SELECT 1 FROM games WHERE id = ?`, g.ID)
}

// checkAffected turns a zero-row conditional update into ErrNotFound or ErrConflict.
func checkAffected(ctx context.Context, db *database.DB, res sql.Result, existsQuery, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var one int
	err = db.QueryRowContext(ctx, existsQuery, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNotFound
	}
	if err != nil {
		return err
	}
	return apperr.ErrConflict
}

// ListArenaGames returns every round played in an arena, oldest first.
func (r *GameRepository) ListArenaGames(ctx context.Context, arenaID string) ([]*game.Game, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+gameColumns+` FROM games
		WHERE arena_id = ? ORDER BY created_at, id`, arenaID)
	if err != nil {
		return nil, fmt.Errorf("list arena games: %w", err)
	}
	defer rows.Close()
	var out []*game.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ListWonDailyDates returns the date keys of the user's won daily games, ascending.
func (r *GameRepository) ListWonDailyDates(ctx context.Context, user game.UserKey) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT game_key FROM games
		WHERE user_id = ? AND identity_provider = ? AND is_daily = ? AND status = ?
		ORDER BY game_key`,
		user.UserID, string(user.IdentityProvider), true, string(game.StatusWon))
	if err != nil {
		return nil, fmt.Errorf("list won dates: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// ListDailyResults returns finished daily games with from <= gameKey <= to.
// An empty from means unbounded.
func (r *GameRepository) ListDailyResults(ctx context.Context, from, to string) ([]leaderboard.Result, error) {
	query := `SELECT user_id, identity_provider, game_key, status, guess_count FROM games
		WHERE is_daily = ? AND status IN (?, ?) AND game_key <= ?`
	args := []any{true, string(game.StatusWon), string(game.StatusLost), to}
	if from != "" {
		query += ` AND game_key >= ?`
		args = append(args, from)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list daily results: %w", err)
	}
	defer rows.Close()
	var out []leaderboard.Result
	for rows.Next() {
		var (
			res      leaderboard.Result
			provider string
			status   string
		)
		if err := rows.Scan(&res.UserKey.UserID, &provider, &res.GameKey, &status, &res.GuessCount); err != nil {
			return nil, err
		}
		res.UserKey.IdentityProvider = game.IdentityProvider(provider)
		res.Won = game.Status(status) == game.StatusWon
		out = append(out, res)
	}
	return out, rows.Err()
}

func scanGame(s rowScanner) (*game.Game, error) {
	var (
		g          game.Game
		provider   string
		status     string
		guesses    string
		arenaID    sql.NullString
		wordIndex  sql.NullInt64
		data       sql.NullString
		createdAt  int64
		updatedAt  int64
		completeAt sql.NullInt64
	)
	err := s.Scan(&g.ID, &g.UserKey.UserID, &provider, &g.GameKey, &g.IsDaily, &g.Word, &guesses, &status,
		&g.GuessCount, &g.IsHardMode, &arenaID, &wordIndex, &data,
		&createdAt, &updatedAt, &completeAt, &g.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan game: %w", err)
	}
	g.UserKey.IdentityProvider = game.IdentityProvider(provider)
	g.Status = game.Status(status)
	if err := json.Unmarshal([]byte(guesses), &g.Guesses); err != nil {
		return nil, fmt.Errorf("decode guesses of %s: %w", g.ID, err)
	}
	if data.Valid {
		if err := json.Unmarshal([]byte(data.String), &g.GameData); err != nil {
			return nil, fmt.Errorf("decode game data of %s: %w", g.ID, err)
		}
	}
	g.ArenaID = stringPtr(arenaID)
	if wordIndex.Valid {
		i := int(wordIndex.Int64)
		g.ArenaWordIndex = &i
	}
	g.CreatedAt = fromNanos(createdAt)
	g.UpdatedAt = fromNanos(updatedAt)
	g.CompletedAt = timePtr(completeAt)
	return &g, nil
}

func encodeGameJSON(g *game.Game) (string, sql.NullString, error) {
	guesses := g.Guesses
	if guesses == nil {
		guesses = []string{}
	}
	gs, err := encodeJSON(guesses)
	if err != nil {
		return "", sql.NullString{}, err
	}
	if g.GameData == nil {
		return gs, sql.NullString{}, nil
	}
	data, err := encodeJSON(g.GameData)
	if err != nil {
		return "", sql.NullString{}, err
	}
	return gs, sql.NullString{String: data, Valid: true}, nil
}

func nullIntPtr(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
