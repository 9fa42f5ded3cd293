package shop

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"appsystem/pkg/shopware"
)

// Repository is the Postgres Store.
type Repository struct {
	db *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, shopID, shopURL, secret string) error {
	const q = `
INSERT INTO shops (shop_id, shop_url, shop_secret)
VALUES ($1, $2, $3)
ON CONFLICT (shop_id) DO UPDATE SET
  shop_url = EXCLUDED.shop_url,
  shop_secret = EXCLUDED.shop_secret,
  api_key = NULL,
  secret_key = NULL,
  updated_at = now()
`
	_, err := r.db.Exec(ctx, q, shopID, shopURL, secret)
	return err
}

func (r *Repository) UpdateKeys(ctx context.Context, shopID, apiKey, secretKey string) error {
	const q = `
UPDATE shops SET api_key = $2, secret_key = $3, updated_at = now()
WHERE shop_id = $1
`
	tag, err := r.db.Exec(ctx, q, shopID, apiKey, secretKey)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) LookupSecret(ctx context.Context, shopID string) (string, error) {
	const q = `SELECT shop_secret FROM shops WHERE shop_id = $1`
	var secret string
	if err := r.db.QueryRow(ctx, q, shopID).Scan(&secret); err != nil {
		return "", notFound(err)
	}
	return secret, nil
}

func (r *Repository) LookupCredentials(ctx context.Context, shopID string) (shopware.Credentials, error) {
	const q = `
SELECT shop_url, COALESCE(api_key,''), COALESCE(secret_key,'')
FROM shops
WHERE shop_id = $1
`
	var url, apiKey, secretKey string
	if err := r.db.QueryRow(ctx, q, shopID).Scan(&url, &apiKey, &secretKey); err != nil {
		return shopware.Credentials{}, notFound(err)
	}
	if apiKey == "" || secretKey == "" {
		return shopware.Credentials{}, ErrNotConfirmed
	}
	return shopware.NewCredentials(url, apiKey, secretKey), nil
}

// Find loads the full record.
func (r *Repository) Find(ctx context.Context, shopID string) (*Shop, error) {
	const q = `
SELECT shop_id, shop_url, shop_secret, COALESCE(api_key,''), COALESCE(secret_key,''), created_at, updated_at
FROM shops
WHERE shop_id = $1
`
	s := &Shop{}
	if err := r.db.QueryRow(ctx, q, shopID).Scan(
		&s.ID, &s.URL, &s.Secret, &s.APIKey, &s.SecretKey, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// Remove deletes the shop; removing an unknown shop is not an error.
func (r *Repository) Remove(ctx context.Context, shopID string) error {
	const q = `DELETE FROM shops WHERE shop_id = $1`
	_, err := r.db.Exec(ctx, q, shopID)
	return err
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
