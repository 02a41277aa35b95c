// Package repository implements the engine persistence ports on top of
// internal/database. Semantics match the in-memory store: natural-key
// uniqueness maps to apperr.ErrConflict and updates are version-checked.
package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cryptods8/openframedl-sub001/internal/arena"
	"github.com/cryptods8/openframedl-sub001/internal/database"
	"github.com/cryptods8/openframedl-sub001/internal/freeze"
	"github.com/cryptods8/openframedl-sub001/internal/game"
	"github.com/cryptods8/openframedl-sub001/internal/leaderboard"
	"github.com/cryptods8/openframedl-sub001/internal/streak"
)

var (
	_ game.Store         = (*Store)(nil)
	_ arena.Store        = (*Store)(nil)
	_ freeze.Store       = (*Store)(nil)
	_ streak.History     = (*Store)(nil)
	_ leaderboard.Source = (*Store)(nil)
)

// Store aggregates every repository so one value satisfies all engine ports.
type Store struct {
	*GameRepository
	*ArenaRepository
	*FreezeRepository
}

// New builds all repositories over db.
func New(db *database.DB) *Store {
	return &Store{
		GameRepository:   NewGameRepository(db),
		ArenaRepository:  NewArenaRepository(db),
		FreezeRepository: NewFreezeRepository(db),
	}
}

func toNanos(t time.Time) int64 { return t.UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func nullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
