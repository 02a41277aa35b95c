// Package wallet maps players to the wallet addresses they control.
package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cryptods8/openframedl-sub001/internal/chain"
	"github.com/cryptods8/openframedl-sub001/internal/game"
)

// Resolver resolves wallet-messaging users to their own address and asks an
// optional HTTP source for everyone else.
type Resolver struct {
	sourceURL string
	client    *http.Client
}

// NewResolver returns a Resolver. An empty sourceURL disables lookups for
// providers whose user id is not an address.
func NewResolver(sourceURL string, timeout time.Duration) *Resolver {
	return &Resolver{sourceURL: sourceURL, client: &http.Client{Timeout: timeout}}
}

type addressesResponse struct {
	Addresses []string `json:"addresses"`
}

func (r *Resolver) AddressesForUser(ctx context.Context, user game.UserKey) ([]string, error) {
	if user.IdentityProvider == game.ProviderXMTP {
		a, ok := chain.NormalizeAddress(user.UserID)
		if !ok {
			return nil, nil
		}
		return []string{a}, nil
	}
	if r.sourceURL == "" || user.IdentityProvider == game.ProviderAnonymous {
		return nil, nil
	}

	q := url.Values{"userId": {user.UserID}, "provider": {string(user.IdentityProvider)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.sourceURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wallet lookup: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wallet lookup: http %d", resp.StatusCode)
	}
	var body addressesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("wallet lookup: decode: %w", err)
	}
	out := make([]string, 0, len(body.Addresses))
	seen := map[string]bool{}
	for _, raw := range body.Addresses {
		a, ok := chain.NormalizeAddress(raw)
		if !ok {
			continue
		}
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out, nil
}
