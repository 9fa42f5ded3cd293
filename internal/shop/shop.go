package shop

import (
	"context"
	"errors"
	"time"

	"appsystem/pkg/shopware"
)

var (
	ErrNotFound = errors.New("shop not found")
	// ErrNotConfirmed means the shop registered but never confirmed its API keys.
	ErrNotConfirmed = errors.New("shop has no api credentials yet")
)

// Shop is a registered shop. Secret verifies inbound signatures; APIKey and
// SecretKey authenticate outbound API calls. The two are never interchangeable.
type Shop struct {
	ID        string
	URL       string
	Secret    string
	APIKey    string
	SecretKey string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists shops.
type Store interface {
	// Create registers a shop, replacing any earlier registration with the same id.
	Create(ctx context.Context, shopID, shopURL, secret string) error
	UpdateKeys(ctx context.Context, shopID, apiKey, secretKey string) error
	LookupSecret(ctx context.Context, shopID string) (string, error)
	LookupCredentials(ctx context.Context, shopID string) (shopware.Credentials, error)
	Find(ctx context.Context, shopID string) (*Shop, error)
	Remove(ctx context.Context, shopID string) error
}
