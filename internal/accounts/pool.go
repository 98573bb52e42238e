// Package accounts selects upstream credentials and applies the penalties
// that failed upstream calls put on them.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"

	"github.com/rs/zerolog/log"

	"mpsync/syncer/internal/models"
)

// ErrNoAccountAvailable is returned when every account is invalid or blocked for the day.
var ErrNoAccountAvailable = errors.New("no account available")

// Store is the slice of persistent storage the pool needs.
type Store interface {
	FindAccounts(ctx context.Context, status models.Status, exclude []string, limit int) ([]models.Account, error)
	UpdateAccountStatus(ctx context.Context, id string, status models.Status) error
}

// Pool hands out enabled, unblocked accounts at random.
type Pool struct {
	store          Store
	blocklist      *Blocklist
	candidateLimit int
	pick           func(n int) int
}

// NewPool creates a pool over store. candidateLimit caps how many eligible
// accounts are loaded per selection; zero or less loads all of them.
func NewPool(store Store, blocklist *Blocklist, candidateLimit int) *Pool {
	return &Pool{
		store:          store,
		blocklist:      blocklist,
		candidateLimit: candidateLimit,
		pick:           rand.Intn,
	}
}

// Select returns a uniformly chosen account among the enabled accounts that
// are not blocked today.
func (p *Pool) Select(ctx context.Context) (models.Account, error) {
	blocked := p.blocklist.BlockedToday()
	candidates, err := p.store.FindAccounts(ctx, models.StatusEnabled, blocked, p.candidateLimit)
	if err != nil {
		return models.Account{}, fmt.Errorf("load eligible accounts: %w", err)
	}
	// A block placed while the candidates loaded still applies.
	candidates = slices.DeleteFunc(candidates, func(a models.Account) bool {
		return p.blocklist.IsBlocked(a.ID)
	})
	if len(candidates) == 0 {
		log.Warn().Int("blocked", len(blocked)).Msg("No eligible account")
		return models.Account{}, ErrNoAccountAvailable
	}
	return candidates[p.pick(len(candidates))], nil
}

// MarkInvalid disables the account in storage.
func (p *Pool) MarkInvalid(ctx context.Context, accountID string) error {
	if err := p.store.UpdateAccountStatus(ctx, accountID, models.StatusInvalid); err != nil {
		return err
	}
	log.Error().Str("account_id", accountID).Msg("Account credential rejected, disabled")
	return nil
}

// BlockForToday excludes the account from selection until the date rolls over.
func (p *Pool) BlockForToday(accountID string) {
	if p.blocklist.Block(accountID) {
		log.Warn().
			Str("account_id", accountID).
			Str("day", p.blocklist.Today()).
			Msg("Account blocked for today")
	}
}

// Unblock clears any block on the account, used after an operator touches it.
func (p *Pool) Unblock(accountID string) {
	p.blocklist.Unblock(accountID)
}

// BlockedToday returns a copy of today's blocked account ids.
func (p *Pool) BlockedToday() []string {
	return p.blocklist.BlockedToday()
}
