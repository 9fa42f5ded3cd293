package shopware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

const (
	// AppSignatureHeader carries the registration signature, keyed with the app secret.
	AppSignatureHeader = "shopware-app-signature"
	// ShopSignatureHeader carries POST signatures, keyed with the per-shop secret.
	ShopSignatureHeader = "shopware-shop-signature"
	// ShopSignatureParam carries GET signatures as a query parameter.
	ShopSignatureParam = "shopware-shop-signature"
)

// Sign returns hex(HMAC_SHA256(message, secret)).
func Sign(message []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

func verify(message []byte, secret, signature string) bool {
	if signature == "" || secret == "" {
		return false
	}
	expected := Sign(message, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignPostBody signs the raw request body exactly as it went over the wire.
func SignPostBody(body []byte, secret string) string {
	return Sign(body, secret)
}

// VerifyPostSignature reports whether signature is the body's HMAC under secret.
// An empty signature or secret never verifies.
func VerifyPostSignature(body []byte, secret, signature string) bool {
	return verify(body, secret, signature)
}

// QueryParam is a single decoded key/value pair of a query string.
type QueryParam struct {
	Key   string
	Value string
}

// Query is a decoded query string that keeps the order parameters had on the wire.
// url.Values cannot be used for signing because it loses that order.
type Query []QueryParam

// ParseQuery decodes a raw query string, keeping parameter order and duplicates.
func ParseQuery(raw string) (Query, error) {
	raw = strings.TrimPrefix(raw, "?")
	var q Query
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, err
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return nil, err
		}
		q = append(q, QueryParam{Key: key, Value: value})
	}
	return q, nil
}

// Get returns the first value for key.
func (q Query) Get(key string) string {
	for _, p := range q {
		if p.Key == key {
			return p.Value
		}
	}
	return ""
}

// Has reports whether key is present.
func (q Query) Has(key string) bool {
	for _, p := range q {
		if p.Key == key {
			return true
		}
	}
	return false
}

// Without returns a copy of q with every occurrence of key removed.
func (q Query) Without(key string) Query {
	out := make(Query, 0, len(q))
	for _, p := range q {
		if p.Key != key {
			out = append(out, p)
		}
	}
	return out
}

// With returns a copy of q with key=value appended.
func (q Query) With(key, value string) Query {
	out := make(Query, len(q), len(q)+1)
	copy(out, q)
	return append(out, QueryParam{Key: key, Value: value})
}

// Encode URL-encodes q in its current order.
func (q Query) Encode() string {
	parts := make([]string, 0, len(q))
	for _, p := range q {
		parts = append(parts, url.QueryEscape(p.Key)+"="+url.QueryEscape(p.Value))
	}
	return strings.Join(parts, "&")
}

// CanonicalizeQuery drops the signature parameter and encodes the rest in wire
// order. The shop signs the same form, so the order must not be changed.
func CanonicalizeQuery(q Query) string {
	return q.Without(ShopSignatureParam).Encode()
}

// SignQuery signs an already canonicalized query string.
func SignQuery(canonical, secret string) string {
	return Sign([]byte(canonical), secret)
}

// VerifyGetSignature canonicalizes q and compares its HMAC against signature.
func VerifyGetSignature(q Query, secret, signature string) bool {
	return verify([]byte(CanonicalizeQuery(q)), secret, signature)
}

// SignGetQuery appends the shop signature parameter to q. Used by tooling and
// tests that play the shop's side of the protocol.
func SignGetQuery(q Query, secret string) Query {
	unsigned := q.Without(ShopSignatureParam)
	return unsigned.With(ShopSignatureParam, SignQuery(unsigned.Encode(), secret))
}
