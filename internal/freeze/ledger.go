// Streak freeze ledger.
// Responsibilities:
//   - Grant earned freezes at streak milestones exactly once per milestone.
//   - Record claims of earned freezes and verified purchases.
//   - Apply freezes to missed days under the consecutive-use limit.
//   - Report the live on-chain balance.
//
// Local records are an audit trail; the chain balance is authoritative for how
// many tokens a user holds.
package freeze

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cryptods8/openframedl-sub001/internal/apperr"
	"github.com/cryptods8/openframedl-sub001/internal/game"
	"github.com/cryptods8/openframedl-sub001/internal/streak"
)

var (
	ErrAlreadyApplied     = apperr.New(apperr.Validation, "freeze_already_applied", "a freeze was already applied to this day")
	ErrConsecutiveLimit   = apperr.New(apperr.Validation, "freeze_consecutive_limit", "too many consecutive frozen days")
	ErrVerificationFailed = apperr.New(apperr.Validation, "freeze_tx_not_verified", "transaction could not be verified for your wallet")
	ErrMintNotFound       = apperr.New(apperr.NotFound, "freeze_mint_not_found", "freeze not found")
	ErrAlreadyClaimed     = apperr.New(apperr.Validation, "freeze_already_claimed", "freeze was already claimed")
	ErrNotClaimable       = apperr.New(apperr.Validation, "freeze_not_claimable", "only earned freezes can be claimed")
	ErrNoWallet           = apperr.New(apperr.Validation, "no_wallet", "no wallet is connected to this account")
	ErrInvalidTarget      = apperr.New(apperr.Validation, "freeze_invalid_target", "freezes can only cover past daily games")
	ErrDayWon             = apperr.New(apperr.Validation, "freeze_day_won", "this day was already won")
	ErrAlreadyRecorded    = apperr.New(apperr.Conflict, "freeze_tx_already_recorded", "this transaction was already recorded")
	ErrBurnAlreadyUsed    = apperr.New(apperr.Validation, "freeze_burn_already_used", "this burn transaction already covers another day")
	ErrInvalidSignature   = apperr.New(apperr.Invariant, "freeze_invalid_signature", "freeze claim authorization is invalid")
	ErrChainUnavailable   = apperr.New(apperr.External, "chain_unavailable", "could not reach the chain, try again later")
)

// Options tune the ledger rules.
type Options struct {
	MilestoneInterval int
	MaxConsecutive    int
}

func DefaultOptions() Options {
	return Options{MilestoneInterval: 100, MaxConsecutive: 7}
}

// Ledger implements the freeze economy on top of its ports.
type Ledger struct {
	store   Store
	history streak.History
	chain   ChainVerifier
	wallets WalletResolver
	signer  Signer
	opts    Options
	now     func() time.Time
}

func NewLedger(store Store, history streak.History, chain ChainVerifier, wallets WalletResolver, signer Signer, opts Options) *Ledger {
	return &Ledger{store: store, history: history, chain: chain, wallets: wallets, signer: signer, opts: opts, now: time.Now}
}

// WithClock overrides the time source (tests).
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Earn grants an earned freeze for the milestone reached at gameKey. The
// second call for the same milestone returns created=false.
func (l *Ledger) Earn(ctx context.Context, user game.UserKey, gameKey string, streakLength int) (*Mint, bool, error) {
	has, err := l.store.HasEarnedForGameKey(ctx, user, gameKey)
	if err != nil {
		return nil, false, err
	}
	if has {
		return nil, false, nil
	}
	nonce := uuid.NewString()
	m := &Mint{
		ID:                   uuid.NewString(),
		UserKey:              user,
		Source:               SourceEarned,
		EarnedAtStreakLength: streakLength,
		EarnedAtGameKey:      gameKey,
		ClaimNonce:           nonce,
		ClaimSignature:       l.signer.Sign(user, gameKey, nonce),
		CreatedAt:            l.now().UTC(),
	}
	if err := l.store.InsertMint(ctx, m); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, false, nil
		}
		return nil, false, err
	}
	log.Info().Str("user", user.String()).Str("gameKey", gameKey).Int("streak", streakLength).Msg("streak freeze earned")
	return m, true, nil
}

// CheckMilestone earns a freeze if winning gameKey completed a milestone.
func (l *Ledger) CheckMilestone(ctx context.Context, user game.UserKey, gameKey string) (*Mint, error) {
	ms, err := l.milestones(ctx, user)
	if err != nil {
		return nil, err
	}
	for _, m := range ms {
		if m.GameKey == gameKey {
			mint, _, err := l.Earn(ctx, user, m.GameKey, m.StreakLength)
			return mint, err
		}
	}
	return nil, nil
}

// BackfillEarned grants every historical milestone that has no mint yet and
// returns how many were granted.
func (l *Ledger) BackfillEarned(ctx context.Context, user game.UserKey) (int, error) {
	ms, err := l.milestones(ctx, user)
	if err != nil {
		return 0, err
	}
	granted := 0
	for _, m := range ms {
		_, created, err := l.Earn(ctx, user, m.GameKey, m.StreakLength)
		if err != nil {
			return granted, err
		}
		if created {
			granted++
		}
	}
	if granted > 0 {
		log.Info().Str("user", user.String()).Int("granted", granted).Msg("streak freeze backfill")
	}
	return granted, nil
}

func (l *Ledger) milestones(ctx context.Context, user game.UserKey) ([]streak.Milestone, error) {
	won, err := l.history.ListWonDailyDates(ctx, user)
	if err != nil {
		return nil, err
	}
	frozen, err := l.history.ListFrozenDates(ctx, user)
	if err != nil {
		return nil, err
	}
	return streak.Milestones(won, frozen, l.opts.MilestoneInterval), nil
}

// Claim marks the user's earned mint claimed by txHash once the mint
// transaction verifies against one of the user's wallets. A transaction backs
// at most one ledger record.
func (l *Ledger) Claim(ctx context.Context, user game.UserKey, mintID, txHash string) (*Mint, error) {
	txHash = normalizeTx(txHash)
	if mintID == "" || txHash == "" {
		return nil, apperr.New(apperr.Validation, "invalid_claim", "mint id and transaction hash are required")
	}
	m, err := l.store.FindMint(ctx, mintID)
	if errors.Is(err, apperr.ErrNotFound) || (err == nil && m.UserKey != user) {
		return nil, ErrMintNotFound
	}
	if err != nil {
		return nil, err
	}
	if m.Source != SourceEarned {
		return nil, ErrNotClaimable
	}
	if m.Claimed() {
		return nil, ErrAlreadyClaimed
	}
	if !l.signer.Verify(user, m.EarnedAtGameKey, m.ClaimNonce, m.ClaimSignature) {
		log.Error().Str("user", user.String()).Str("mint", mintID).Msg("claim signature mismatch")
		return nil, ErrInvalidSignature
	}
	if err := l.ensureUnused(ctx, txHash, ErrAlreadyRecorded); err != nil {
		return nil, err
	}
	if _, err := l.verifyAny(ctx, user, txHash, l.chain.VerifyMintTx); err != nil {
		return nil, err
	}
	now := l.now().UTC()
	if err := l.store.MarkMintClaimed(ctx, mintID, txHash, now); err != nil {
		if !errors.Is(err, apperr.ErrConflict) {
			return nil, err
		}
		if cur, ferr := l.store.FindMint(ctx, mintID); ferr == nil && cur.Claimed() {
			return nil, ErrAlreadyClaimed
		}
		return nil, ErrAlreadyRecorded
	}
	m.ClaimTxHash = &txHash
	m.ClaimedAt = &now
	log.Info().Str("user", user.String()).Str("mint", mintID).Msg("streak freeze claimed")
	return m, nil
}

// Purchase records a purchased freeze after verifying txHash on chain.
func (l *Ledger) Purchase(ctx context.Context, user game.UserKey, txHash string) (*Mint, error) {
	txHash = normalizeTx(txHash)
	if txHash == "" {
		return nil, apperr.New(apperr.Validation, "invalid_purchase", "transaction hash is required")
	}
	if err := l.ensureUnused(ctx, txHash, ErrAlreadyRecorded); err != nil {
		return nil, err
	}
	wallet, err := l.verifyAny(ctx, user, txHash, l.chain.VerifyPurchaseTx)
	if err != nil {
		return nil, err
	}
	m := &Mint{
		ID:            uuid.NewString(),
		UserKey:       user,
		Source:        SourcePurchased,
		PurchaseTxRef: txHash,
		WalletAddress: wallet,
		CreatedAt:     l.now().UTC(),
	}
	if err := l.store.InsertMint(ctx, m); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, ErrAlreadyRecorded
		}
		return nil, err
	}
	log.Info().Str("user", user.String()).Str("tx", txHash).Msg("streak freeze purchased")
	return m, nil
}

// Apply covers the missed daily game gameKey with a freeze burned in burnTx.
// Checks run in order: already applied, burn unused, burn verified,
// consecutive-use limit. One burn covers exactly one day.
func (l *Ledger) Apply(ctx context.Context, user game.UserKey, gameKey, burnTx string) (*Applied, error) {
	burnTx = normalizeTx(burnTx)
	if !game.IsDateKey(gameKey) || gameKey >= game.DateKey(l.now()) {
		return nil, ErrInvalidTarget
	}
	if burnTx == "" {
		return nil, apperr.New(apperr.Validation, "invalid_apply", "burn transaction hash is required")
	}
	if _, err := l.store.FindApplied(ctx, user, gameKey); err == nil {
		return nil, ErrAlreadyApplied
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	won, err := l.history.ListWonDailyDates(ctx, user)
	if err != nil {
		return nil, err
	}
	for _, k := range won {
		if k == gameKey {
			return nil, ErrDayWon
		}
	}
	if used, err := l.store.TxHashRecorded(ctx, burnTx); err != nil {
		return nil, err
	} else if used {
		return nil, l.burnConflict(ctx, user, gameKey)
	}

	wallet, err := l.verifyAny(ctx, user, burnTx, l.chain.VerifyBurnTx)
	if err != nil {
		return nil, err
	}

	applied, err := l.store.ListAppliedGameKeys(ctx, user)
	if err != nil {
		return nil, err
	}
	if run := consecutiveRun(applied, gameKey); run > l.opts.MaxConsecutive {
		return nil, ErrConsecutiveLimit
	}

	a := &Applied{
		ID:               uuid.NewString(),
		UserKey:          user,
		AppliedToGameKey: gameKey,
		BurnTxHash:       burnTx,
		WalletAddress:    wallet,
		CreatedAt:        l.now().UTC(),
	}
	if err := l.store.InsertApplied(ctx, a); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, l.burnConflict(ctx, user, gameKey)
		}
		return nil, err
	}
	log.Info().Str("user", user.String()).Str("gameKey", gameKey).Msg("streak freeze applied")
	return a, nil
}

// burnConflict explains a rejected application: the day was taken by a
// concurrent apply, or the burn already covers another day.
func (l *Ledger) burnConflict(ctx context.Context, user game.UserKey, gameKey string) error {
	if _, err := l.store.FindApplied(ctx, user, gameKey); err == nil {
		return ErrAlreadyApplied
	}
	return ErrBurnAlreadyUsed
}

// ensureUnused fails with used when txHash already backs a ledger record.
func (l *Ledger) ensureUnused(ctx context.Context, txHash string, used error) error {
	recorded, err := l.store.TxHashRecorded(ctx, txHash)
	if err != nil {
		return err
	}
	if recorded {
		return used
	}
	return nil
}

func normalizeTx(tx string) string { return strings.ToLower(strings.TrimSpace(tx)) }

// consecutiveRun is the length of the run of frozen days that would contain
// target once it is frozen too.
func consecutiveRun(applied []string, target string) int {
	set := make(map[string]bool, len(applied))
	for _, k := range applied {
		set[k] = true
	}
	run := 1
	for _, dir := range []int{-1, 1} {
		k := target
		for {
			next, err := game.AddDays(k, dir)
			if err != nil || !set[next] {
				break
			}
			run++
			k = next
		}
	}
	return run
}

// verifyAny returns the first of the user's wallets for which verify accepts
// txHash.
func (l *Ledger) verifyAny(ctx context.Context, user game.UserKey, txHash string, verify func(context.Context, string, string) (bool, error)) (string, error) {
	wallets, err := l.wallets.AddressesForUser(ctx, user)
	if err != nil {
		return "", apperr.Wrap(ErrChainUnavailable, err)
	}
	if len(wallets) == 0 {
		return "", ErrNoWallet
	}
	var lastErr error
	for _, w := range wallets {
		ok, err := verify(ctx, txHash, w)
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return w, nil
		}
	}
	if lastErr != nil {
		log.Warn().Err(lastErr).Str("user", user.String()).Str("tx", txHash).Msg("chain verification failed")
		return "", apperr.Wrap(ErrChainUnavailable, lastErr)
	}
	return "", ErrVerificationFailed
}

// Balance sums the live on-chain balance over the user's wallets. Lookup
// failures degrade to 0.
func (l *Ledger) Balance(ctx context.Context, user game.UserKey) int64 {
	wallets, err := l.wallets.AddressesForUser(ctx, user)
	if err != nil {
		log.Warn().Err(err).Str("user", user.String()).Msg("wallet lookup failed, balance defaults to 0")
		return 0
	}
	var total int64
	for _, w := range wallets {
		b, err := l.chain.GetBalance(ctx, w)
		if err != nil {
			log.Warn().Err(err).Str("wallet", w).Msg("balance lookup failed, balance defaults to 0")
			return 0
		}
		total += b
	}
	return total
}

// Mints lists the user's local freeze records.
func (l *Ledger) Mints(ctx context.Context, user game.UserKey) ([]*Mint, error) {
	return l.store.ListMints(ctx, user)
}
