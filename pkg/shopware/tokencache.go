package shopware

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTokenTTL is used when the token response has no expires_in.
	DefaultTokenTTL = 10 * time.Minute

	defaultExpirySkew = 30 * time.Second
)

// TokenStore keeps bearer tokens keyed by shop id.
type TokenStore interface {
	Get(ctx context.Context, shopID string) (string, bool, error)
	Set(ctx context.Context, shopID, token string, ttl time.Duration) error
	Delete(ctx context.Context, shopID string) error
}

// TokenCache shares tokens across requests. It runs at most one exchange per
// shop at a time; concurrent cold callers wait for that exchange. The exchange
// is detached from the caller that started it and bounded by its own timeout.
type TokenCache struct {
	auth            *Authenticator
	store           TokenStore
	group           singleflight.Group
	defaultTTL      time.Duration
	skew            time.Duration
	exchangeTimeout time.Duration
	logger          zerolog.Logger
}

type TokenCacheOption func(*TokenCache)

func WithDefaultTokenTTL(ttl time.Duration) TokenCacheOption {
	return func(c *TokenCache) {
		c.defaultTTL = ttl
	}
}

func WithTokenCacheLogger(l zerolog.Logger) TokenCacheOption {
	return func(c *TokenCache) {
		c.logger = l
	}
}

func NewTokenCache(auth *Authenticator, store TokenStore, opts ...TokenCacheOption) *TokenCache {
	c := &TokenCache{
		auth:            auth,
		store:           store,
		defaultTTL:      DefaultTokenTTL,
		skew:            defaultExpirySkew,
		exchangeTimeout: DefaultHTTPTimeout,
		logger:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns creds carrying a cached or freshly exchanged token for shopID.
func (c *TokenCache) Token(ctx context.Context, shopID string, creds Credentials) (Credentials, error) {
	if tok, ok := c.lookup(ctx, shopID); ok {
		return creds.WithToken(tok), nil
	}

	// The exchange outlives any single caller; each caller stops waiting on
	// its own context.
	ch := c.group.DoChan(shopID, func() (any, error) {
		xctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.exchangeTimeout)
		defer cancel()

		if tok, ok := c.lookup(xctx, shopID); ok {
			return tok, nil
		}

		resp, err := c.auth.exchange(xctx, creds)
		if err != nil {
			return "", err
		}
		if ttl := c.ttl(resp.ExpiresIn); ttl > 0 {
			if err := c.store.Set(xctx, shopID, resp.AccessToken, ttl); err != nil {
				c.logger.Warn().Err(err).Str("shop_id", shopID).Msg("token cache write failed")
			}
		}
		return resp.AccessToken, nil
	})

	select {
	case <-ctx.Done():
		return creds, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return creds, res.Err
		}
		return creds.WithToken(res.Val.(string)), nil
	}
}

// Invalidate drops the cached token for shopID.
func (c *TokenCache) Invalidate(ctx context.Context, shopID string) error {
	return c.store.Delete(ctx, shopID)
}

// ForShop binds the cache to a shop so it can serve as a Client's TokenExchanger.
func (c *TokenCache) ForShop(shopID string) TokenExchanger {
	return shopExchanger{cache: c, shopID: shopID}
}

func (c *TokenCache) lookup(ctx context.Context, shopID string) (string, bool) {
	tok, ok, err := c.store.Get(ctx, shopID)
	if err != nil {
		c.logger.Warn().Err(err).Str("shop_id", shopID).Msg("token cache read failed")
		return "", false
	}
	return tok, ok && tok != ""
}

func (c *TokenCache) ttl(expiresIn int) time.Duration {
	if expiresIn <= 0 {
		return c.defaultTTL
	}
	return time.Duration(expiresIn)*time.Second - c.skew
}

type shopExchanger struct {
	cache  *TokenCache
	shopID string
}

func (e shopExchanger) Authenticate(ctx context.Context, creds Credentials) (Credentials, error) {
	return e.cache.Token(ctx, e.shopID, creds)
}

// MemoryTokenStore is a process-local TokenStore.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]memoryToken
	now    func() time.Time
}

type memoryToken struct {
	token     string
	expiresAt time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		tokens: make(map[string]memoryToken),
		now:    time.Now,
	}
}

func (s *MemoryTokenStore) Get(_ context.Context, shopID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[shopID]
	if !ok {
		return "", false, nil
	}
	if !s.now().Before(t.expiresAt) {
		delete(s.tokens, shopID)
		return "", false, nil
	}
	return t.token, true, nil
}

func (s *MemoryTokenStore) Set(_ context.Context, shopID, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[shopID] = memoryToken{token: token, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryTokenStore) Delete(_ context.Context, shopID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, shopID)
	return nil
}
