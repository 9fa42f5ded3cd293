package registration

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"appsystem/internal/metrics"
	"appsystem/internal/shop"
	"appsystem/pkg/shopware"
)

// secretBytes is the entropy of a generated shop secret before hex encoding.
const secretBytes = 64

var (
	// ErrUnauthorized means the request signature did not verify. No state
	// was changed.
	ErrUnauthorized   = errors.New("registration: signature verification failed")
	ErrInvalidRequest = errors.New("registration: invalid request")
)

// Result is returned to the shop after a verified registration request.
type Result struct {
	Proof           string `json:"proof"`
	Secret          string `json:"secret"`
	ConfirmationURL string `json:"confirmation_url"`
}

// Flow runs the two-step handshake. Register proves knowledge of the app
// secret and hands the shop its own secret; Confirm stores the API keys the
// shop sends back, signed with that secret.
type Flow struct {
	Shops           shop.Store
	AppName         string
	AppSecret       string
	ConfirmationURL string

	// Tokens, when set, is told to forget the shop's token once new keys
	// are confirmed.
	Tokens *shopware.TokenCache

	Metrics *metrics.Metrics
	Logger  zerolog.Logger

	random io.Reader
}

func (f Flow) Register(ctx context.Context, shopURL, shopID, rawQuery, signature string) (Result, error) {
	if !shopware.VerifyRegistrationRequest(rawQuery, signature, f.AppSecret) {
		f.Metrics.Registration("register", false)
		f.Logger.Info().Str("shop_id", shopID).Str("shop_url", shopURL).Msg("registration rejected")
		return Result{}, ErrUnauthorized
	}
	if strings.TrimSpace(shopID) == "" || strings.TrimSpace(shopURL) == "" {
		return Result{}, ErrInvalidRequest
	}

	secret, err := f.newSecret()
	if err != nil {
		return Result{}, fmt.Errorf("generate shop secret: %w", err)
	}
	if err := f.Shops.Create(ctx, shopID, shopURL, secret); err != nil {
		return Result{}, fmt.Errorf("store shop %s: %w", shopID, err)
	}

	f.Metrics.Registration("register", true)
	f.Logger.Info().Str("shop_id", shopID).Str("shop_url", shopURL).Msg("shop registered")

	return Result{
		Proof:           Proof(shopID, shopURL, f.AppName, f.AppSecret),
		Secret:          secret,
		ConfirmationURL: f.ConfirmationURL,
	}, nil
}

// Confirm verifies body against the secret issued by Register and stores the
// shop's API keys.
func (f Flow) Confirm(ctx context.Context, shopID, apiKey, secretKey string, body []byte, signature string) error {
	if strings.TrimSpace(shopID) == "" {
		f.Metrics.Registration("confirm", false)
		return ErrUnauthorized
	}

	secret, err := f.Shops.LookupSecret(ctx, shopID)
	if errors.Is(err, shop.ErrNotFound) {
		f.Metrics.Registration("confirm", false)
		return ErrUnauthorized
	}
	if err != nil {
		return fmt.Errorf("lookup shop %s: %w", shopID, err)
	}
	if !shopware.VerifyPostSignature(body, secret, signature) {
		f.Metrics.Registration("confirm", false)
		f.Logger.Info().Str("shop_id", shopID).Msg("confirmation rejected")
		return ErrUnauthorized
	}
	if apiKey == "" || secretKey == "" {
		return ErrInvalidRequest
	}

	if err := f.Shops.UpdateKeys(ctx, shopID, apiKey, secretKey); err != nil {
		return fmt.Errorf("store keys for shop %s: %w", shopID, err)
	}
	if f.Tokens != nil {
		if err := f.Tokens.Invalidate(ctx, shopID); err != nil {
			f.Logger.Warn().Err(err).Str("shop_id", shopID).Msg("token cache eviction failed")
		}
	}

	f.Metrics.Registration("confirm", true)
	f.Logger.Info().Str("shop_id", shopID).Msg("shop confirmed")
	return nil
}

// Proof is the hex HMAC-SHA256 of shopID+shopURL+appName under appSecret.
func Proof(shopID, shopURL, appName, appSecret string) string {
	return shopware.Sign([]byte(shopID+shopURL+appName), appSecret)
}

func (f Flow) newSecret() (string, error) {
	r := f.random
	if r == nil {
		r = rand.Reader
	}
	b := make([]byte, secretBytes)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
