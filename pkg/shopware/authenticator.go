package shopware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultHTTPTimeout bounds token exchanges and API calls unless overridden.
	DefaultHTTPTimeout = 15 * time.Second

	tokenPath = "/api/oauth/token"
)

// TokenExchanger turns token-less credentials into token-bearing ones.
type TokenExchanger interface {
	Authenticate(ctx context.Context, creds Credentials) (Credentials, error)
}

// Authenticator performs the OAuth2 client-credentials exchange against a shop.
type Authenticator struct {
	httpClient *http.Client
	logger     zerolog.Logger
	onExchange func(err error)
}

// AuthenticatorOption configures an Authenticator.
type AuthenticatorOption func(*Authenticator)

// WithAuthHTTPClient sets the client used for token requests.
func WithAuthHTTPClient(c *http.Client) AuthenticatorOption {
	return func(a *Authenticator) {
		a.httpClient = c
	}
}

// WithAuthLogger sets the logger.
func WithAuthLogger(l zerolog.Logger) AuthenticatorOption {
	return func(a *Authenticator) {
		a.logger = l
	}
}

// WithExchangeHook registers fn to be called after every exchange attempt.
func WithExchangeHook(fn func(err error)) AuthenticatorOption {
	return func(a *Authenticator) {
		a.onExchange = fn
	}
}

func NewAuthenticator(opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Authenticate exchanges the API key pair for a bearer token and returns
// creds.WithToken(token). The token is not stored anywhere else.
func (a *Authenticator) Authenticate(ctx context.Context, creds Credentials) (Credentials, error) {
	tok, err := a.exchange(ctx, creds)
	if err != nil {
		return creds, err
	}
	return creds.WithToken(tok.AccessToken), nil
}

func (a *Authenticator) exchange(ctx context.Context, creds Credentials) (*tokenResponse, error) {
	tok, err := a.doExchange(ctx, creds)
	if a.onExchange != nil {
		a.onExchange(err)
	}
	if err != nil {
		a.logger.Warn().Err(err).Str("shop_url", creds.ShopURL()).Msg("token exchange failed")
		return nil, err
	}
	a.logger.Debug().Str("shop_url", creds.ShopURL()).Int("expires_in", tok.ExpiresIn).Msg("token exchanged")
	return tok, nil
}

func (a *Authenticator) doExchange(ctx context.Context, creds Credentials) (*tokenResponse, error) {
	fail := func(reason string, status int, err error) error {
		return &AuthenticationError{
			ShopURL:    creds.ShopURL(),
			APIKey:     creds.APIKey(),
			Reason:     reason,
			StatusCode: status,
			Err:        err,
		}
	}

	body, err := json.Marshal(tokenRequest{
		GrantType:    "client_credentials",
		ClientID:     creds.APIKey(),
		ClientSecret: creds.SecretKey(),
	})
	if err != nil {
		return nil, fail("encode token request", 0, err)
	}

	u, err := url.JoinPath(creds.ShopURL(), tokenPath)
	if err != nil {
		return nil, fail("invalid shop url", 0, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fail("invalid shop url", 0, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fail("transport failure", 0, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fail("transport failure", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fail(string(b), resp.StatusCode, nil)
	}

	var tok tokenResponse
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fail("malformed token response", resp.StatusCode, &ParseError{Source: "token response", Body: b, Err: err})
	}
	if tok.AccessToken == "" {
		return nil, fail("malformed token response", resp.StatusCode, &ParseError{Source: "token response", Body: b})
	}
	return &tok, nil
}

// VerifyRegistrationRequest checks the app signature of a registration request.
// The signed message is the full query string, URL-decoded, with nothing removed.
func VerifyRegistrationRequest(rawQuery, signature, appSecret string) bool {
	decoded, err := url.QueryUnescape(rawQuery)
	if err != nil {
		return false
	}
	return verify([]byte(decoded), appSecret, signature)
}

// SignRegistrationQuery produces the signature VerifyRegistrationRequest expects.
func SignRegistrationQuery(rawQuery, appSecret string) (string, error) {
	decoded, err := url.QueryUnescape(rawQuery)
	if err != nil {
		return "", err
	}
	return Sign([]byte(decoded), appSecret), nil
}

// VerifyInboundPost checks a signed POST body. A missing header arrives as "" and fails.
func VerifyInboundPost(body []byte, signature, shopSecret string) bool {
	return VerifyPostSignature(body, shopSecret, signature)
}

// VerifyInboundGet checks a signed GET request using its shopware-shop-signature parameter.
func VerifyInboundGet(q Query, shopSecret string) bool {
	return VerifyGetSignature(q, shopSecret, q.Get(ShopSignatureParam))
}
