package api

import (
	"context"
	"net/http"

	"appsystem/internal/shop"
	"appsystem/pkg/shopware"
)

// ClientFactory builds per-request API clients from stored shop credentials.
type ClientFactory struct {
	Shops shop.Store

	// Tokens, when set, shares tokens across requests; otherwise every client
	// exchanges its own token on first use through Auth.
	Tokens *shopware.TokenCache
	Auth   *shopware.Authenticator

	APIVersion int
	HTTPClient *http.Client
}

// ForShop returns shop.ErrNotFound or shop.ErrNotConfirmed when the shop cannot
// be called yet.
func (f ClientFactory) ForShop(ctx context.Context, shopID string) (*shopware.Client, error) {
	creds, err := f.Shops.LookupCredentials(ctx, shopID)
	if err != nil {
		return nil, err
	}

	c := shopware.FromCredentials(creds)
	if f.APIVersion > 0 {
		c = c.WithAPIVersion(f.APIVersion)
	}
	if f.HTTPClient != nil {
		c = c.WithHTTPClient(f.HTTPClient)
	}
	switch {
	case f.Tokens != nil:
		c = c.WithAuthenticator(f.Tokens.ForShop(shopID))
	case f.Auth != nil:
		c = c.WithAuthenticator(f.Auth)
	}
	return c, nil
}
