package freeze

import (
	"context"
	"time"

	"github.com/cryptods8/openframedl-sub001/internal/game"
)

type Source string

const (
	SourceEarned    Source = "earned"
	SourcePurchased Source = "purchased"
)

// Mint is a grant of one freeze token. Earned mints wait for an on-chain claim;
// purchased mints record the verified purchase transaction.
type Mint struct {
	ID                   string       `json:"id"`
	UserKey              game.UserKey `json:"userKey"`
	Source               Source       `json:"source"`
	EarnedAtStreakLength int          `json:"earnedAtStreakLength,omitempty"`
	EarnedAtGameKey      string       `json:"earnedAtGameKey,omitempty"`
	ClaimNonce           string       `json:"claimNonce,omitempty"`
	ClaimSignature       string       `json:"claimSignature,omitempty"`
	ClaimTxHash          *string      `json:"claimTxHash,omitempty"`
	ClaimedAt            *time.Time   `json:"claimedAt,omitempty"`
	PurchaseTxRef        string       `json:"purchaseTxRef,omitempty"`
	WalletAddress        string       `json:"walletAddress,omitempty"`
	CreatedAt            time.Time    `json:"createdAt"`
}

// Claimed reports whether an earned mint has been claimed on chain.
func (m *Mint) Claimed() bool { return m.ClaimTxHash != nil }

func (m *Mint) Clone() *Mint {
	cp := *m
	if m.ClaimTxHash != nil {
		h := *m.ClaimTxHash
		cp.ClaimTxHash = &h
	}
	if m.ClaimedAt != nil {
		t := *m.ClaimedAt
		cp.ClaimedAt = &t
	}
	return &cp
}

// Applied records a freeze covering one missed daily game.
type Applied struct {
	ID               string       `json:"id"`
	UserKey          game.UserKey `json:"userKey"`
	AppliedToGameKey string       `json:"appliedToGameKey"`
	BurnTxHash       string       `json:"burnTxHash"`
	WalletAddress    string       `json:"walletAddress"`
	CreatedAt        time.Time    `json:"createdAt"`
}

// Store persists the ledger. InsertMint fails with apperr.ErrConflict when an
// earned mint for the same (user, gameKey) or a purchase with the same tx ref
// exists; InsertApplied does the same per (user, appliedToGameKey) and per
// burn tx. MarkMintClaimed only updates an unclaimed mint with an unused tx
// hash, else apperr.ErrConflict.
type Store interface {
	HasEarnedForGameKey(ctx context.Context, user game.UserKey, gameKey string) (bool, error)
	InsertMint(ctx context.Context, m *Mint) error
	FindMint(ctx context.Context, id string) (*Mint, error)
	MarkMintClaimed(ctx context.Context, id, txHash string, at time.Time) error
	ListMints(ctx context.Context, user game.UserKey) ([]*Mint, error)
	FindApplied(ctx context.Context, user game.UserKey, gameKey string) (*Applied, error)
	InsertApplied(ctx context.Context, a *Applied) error
	ListAppliedGameKeys(ctx context.Context, user game.UserKey) ([]string, error)
	TxHashRecorded(ctx context.Context, txHash string) (bool, error)
}

// ChainVerifier checks freeze token transactions on chain.
type ChainVerifier interface {
	VerifyBurnTx(ctx context.Context, txHash, wallet string) (bool, error)
	VerifyMintTx(ctx context.Context, txHash, wallet string) (bool, error)
	VerifyPurchaseTx(ctx context.Context, txHash, wallet string) (bool, error)
	GetBalance(ctx context.Context, wallet string) (int64, error)
}

// WalletResolver maps a user to the wallet addresses they control.
type WalletResolver interface {
	AddressesForUser(ctx context.Context, user game.UserKey) ([]string, error)
}
