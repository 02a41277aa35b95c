package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cryptods8/openframedl-sub001/internal/apperr"
	"github.com/cryptods8/openframedl-sub001/internal/database"
	"github.com/cryptods8/openframedl-sub001/internal/freeze"
	"github.com/cryptods8/openframedl-sub001/internal/game"
)

const mintColumns = `id, user_id, identity_provider, source, earned_at_streak_length, earned_at_game_key,
	claim_nonce, claim_signature, claim_tx_hash, claimed_at, purchase_tx_ref, wallet_address, created_at`

const appliedColumns = `id, user_id, identity_provider, applied_to_game_key, burn_tx_hash, wallet_address, created_at`

// FreezeRepository persists freeze mints and applications. Uniqueness of
// earned mints, applied days and each purchase, claim and burn transaction is
// enforced by the schema.
type FreezeRepository struct {
	db *database.DB
}

func NewFreezeRepository(db *database.DB) *FreezeRepository {
	return &FreezeRepository{db: db}
}

func (r *FreezeRepository) HasEarnedForGameKey(ctx context.Context, user game.UserKey, gameKey string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM freeze_mints
		WHERE user_id = ? AND identity_provider = ? AND earned_at_game_key = ?`,
		user.UserID, string(user.IdentityProvider), gameKey).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query earned mint: %w", err)
	}
	return true, nil
}

func (r *FreezeRepository) InsertMint(ctx context.Context, m *freeze.Mint) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO freeze_mints (`+mintColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserKey.UserID, string(m.UserKey.IdentityProvider), string(m.Source),
		m.EarnedAtStreakLength, nullString(m.EarnedAtGameKey),
		nullString(m.ClaimNonce), nullString(m.ClaimSignature), nullStringPtr(m.ClaimTxHash), nullNanos(m.ClaimedAt),
		nullString(m.PurchaseTxRef), nullString(m.WalletAddress), toNanos(m.CreatedAt))
	if r.db.IsUniqueViolation(err) {
		return apperr.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert mint: %w", err)
	}
	return nil
}

func (r *FreezeRepository) FindMint(ctx context.Context, id string) (*freeze.Mint, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+mintColumns+` FROM freeze_mints WHERE id = ?`, id)
	return scanMint(row)
}

// MarkMintClaimed records the claim transaction on an unclaimed mint.
func (r *FreezeRepository) MarkMintClaimed(ctx context.Context, id, txHash string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE freeze_mints SET claim_tx_hash = ?, claimed_at = ?
		WHERE id = ? AND claim_tx_hash IS NULL`, txHash, toNanos(at), id)
	if r.db.IsUniqueViolation(err) {
		return apperr.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("mark mint claimed: %w", err)
	}
	return checkAffected(ctx, r.db, res, `SELECT 1 FROM freeze_mints WHERE id = ?`, id)
}

func (r *FreezeRepository) ListMints(ctx context.Context, user game.UserKey) ([]*freeze.Mint, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+mintColumns+` FROM freeze_mints
		WHERE user_id = ? AND identity_provider = ? ORDER BY created_at, id`,
		user.UserID, string(user.IdentityProvider))
	if err != nil {
		return nil, fmt.Errorf("list mints: %w", err)
	}
	defer rows.Close()
	var out []*freeze.Mint
	for rows.Next() {
		m, err := scanMint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *FreezeRepository) FindApplied(ctx context.Context, user game.UserKey, gameKey string) (*freeze.Applied, error) {
	var (
		a         freeze.Applied
		provider  string
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx, `SELECT `+appliedColumns+` FROM freeze_applied
		WHERE user_id = ? AND identity_provider = ? AND applied_to_game_key = ?`,
		user.UserID, string(user.IdentityProvider), gameKey,
	).Scan(&a.ID, &a.UserKey.UserID, &provider, &a.AppliedToGameKey, &a.BurnTxHash, &a.WalletAddress, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan applied: %w", err)
	}
	a.UserKey.IdentityProvider = game.IdentityProvider(provider)
	a.CreatedAt = fromNanos(createdAt)
	return &a, nil
}

func (r *FreezeRepository) InsertApplied(ctx context.Context, a *freeze.Applied) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO freeze_applied (`+appliedColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserKey.UserID, string(a.UserKey.IdentityProvider), a.AppliedToGameKey,
		a.BurnTxHash, a.WalletAddress, toNanos(a.CreatedAt))
	if r.db.IsUniqueViolation(err) {
		return apperr.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert applied: %w", err)
	}
	return nil
}

// TxHashRecorded reports whether txHash already backs a purchase, claim or
// applied freeze.
func (r *FreezeRepository) TxHashRecorded(ctx context.Context, txHash string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM freeze_mints WHERE purchase_tx_ref = ? OR claim_tx_hash = ?) +
		(SELECT COUNT(*) FROM freeze_applied WHERE burn_tx_hash = ?)`,
		txHash, txHash, txHash).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query tx hash: %w", err)
	}
	return n > 0, nil
}

func (r *FreezeRepository) ListAppliedGameKeys(ctx context.Context, user game.UserKey) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT applied_to_game_key FROM freeze_applied
		WHERE user_id = ? AND identity_provider = ? ORDER BY applied_to_game_key`,
		user.UserID, string(user.IdentityProvider))
	if err != nil {
		return nil, fmt.Errorf("list applied: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// ListFrozenDates is the streak history view of applied freezes.
func (r *FreezeRepository) ListFrozenDates(ctx context.Context, user game.UserKey) ([]string, error) {
	return r.ListAppliedGameKeys(ctx, user)
}

// ListFrozenDays groups every applied freeze on or before to by user.
func (r *FreezeRepository) ListFrozenDays(ctx context.Context, to string) (map[game.UserKey][]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id, identity_provider, applied_to_game_key FROM freeze_applied
		WHERE applied_to_game_key <= ?`, to)
	if err != nil {
		return nil, fmt.Errorf("list frozen days: %w", err)
	}
	defer rows.Close()
	out := make(map[game.UserKey][]string)
	for rows.Next() {
		var (
			k        game.UserKey
			provider string
			key      string
		)
		if err := rows.Scan(&k.UserID, &provider, &key); err != nil {
			return nil, err
		}
		k.IdentityProvider = game.IdentityProvider(provider)
		out[k] = append(out[k], key)
	}
	return out, rows.Err()
}

func scanMint(s rowScanner) (*freeze.Mint, error) {
	var (
		m         freeze.Mint
		provider  string
		source    string
		earnedKey sql.NullString
		nonce     sql.NullString
		signature sql.NullString
		txHash    sql.NullString
		claimedAt sql.NullInt64
		txRef     sql.NullString
		wallet    sql.NullString
		createdAt int64
	)
	err := s.Scan(&m.ID, &m.UserKey.UserID, &provider, &source, &m.EarnedAtStreakLength, &earnedKey,
		&nonce, &signature, &txHash, &claimedAt, &txRef, &wallet, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan mint: %w", err)
	}
	m.UserKey.IdentityProvider = game.IdentityProvider(provider)
	m.Source = freeze.Source(source)
	m.EarnedAtGameKey = earnedKey.String
	m.ClaimNonce = nonce.String
	m.ClaimSignature = signature.String
	m.ClaimTxHash = stringPtr(txHash)
	m.ClaimedAt = timePtr(claimedAt)
	m.PurchaseTxRef = txRef.String
	m.WalletAddress = wallet.String
	m.CreatedAt = fromNanos(createdAt)
	return &m, nil
}
