package shopware

import "strings"

// Credentials identifies a shop and the client-credentials pair used to obtain
// bearer tokens for its Admin API. Values are immutable; WithToken returns a copy.
type Credentials struct {
	shopURL   string
	apiKey    string
	secretKey string
	token     string
}

// NewCredentials builds token-less credentials from the keys stored for a shop.
func NewCredentials(shopURL, apiKey, secretKey string) Credentials {
	return Credentials{
		shopURL:   strings.TrimRight(strings.TrimSpace(shopURL), "/"),
		apiKey:    apiKey,
		secretKey: secretKey,
	}
}

// WithToken returns credentials that share url and keys with c and carry token.
func (c Credentials) WithToken(token string) Credentials {
	c.token = token
	return c
}

func (c Credentials) ShopURL() string   { return c.shopURL }
func (c Credentials) APIKey() string    { return c.apiKey }
func (c Credentials) SecretKey() string { return c.secretKey }

// Token reports the bearer token, if one has been exchanged.
func (c Credentials) Token() (string, bool) {
	return c.token, c.token != ""
}
